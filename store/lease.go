package store

import (
	"context"
	"errors"
	"sync"

	goredis "github.com/redis/go-redis/v9"

	"github.com/unkn0wn-root/rowcache/internal/util"
	"github.com/unkn0wn-root/rowcache/internal/wire"
)

// Lease is the outcome of Getting: either cached bytes, or a miss the caller
// must build (holding the build lock when one was requested and obtained).
type Lease struct {
	s      *Store
	key    string
	data   []byte
	locked bool
	once   sync.Once
}

func (l *Lease) Key() string { return l.key }

// Hit reports whether Data holds a cached value.
func (l *Lease) Hit() bool { return l.data != nil }

// Data is the raw cached value; nil on miss.
func (l *Lease) Data() []byte { return l.data }

// Locked reports whether this lease holds the build lock.
func (l *Lease) Locked() bool { return l.locked }

// Release gives the build lock back and wakes waiters. Only the first call
// does anything; leases without a lock release nothing. Cancellation of ctx
// does not stop the release.
func (l *Lease) Release(ctx context.Context) error {
	var err error
	l.once.Do(func() {
		if !l.locked {
			return
		}
		ctx = context.WithoutCancel(ctx)
		_, err = l.s.Eval(ctx, ScriptUnlock, []string{l.key, util.SignalKey(l.key)})
	})
	return err
}

// Getting reads key. Without lock it is a plain Get. With lock it runs the
// dogpile protocol: a present value is returned; an absent one is locked
// and handed to the caller to build; a locked one is waited on (bounded by
// LockTimeout per round) and read again.
//
// The sentinel itself is never returned as data.
func (s *Store) Getting(ctx context.Context, key string, lock bool) (*Lease, error) {
	if !lock {
		data, ok, err := s.Get(ctx, key)
		if err != nil {
			return nil, err
		}
		if !ok || wire.IsSentinel(data) {
			data = nil
		}
		return &Lease{s: s, key: key, data: data}, nil
	}

	signal := util.SignalKey(key)
	for {
		if err := ctx.Err(); err != nil {
			return nil, err
		}

		data, err := s.rdb.Get(ctx, key).Bytes()
		switch {
		case err == nil && !wire.IsSentinel(data):
			return &Lease{s: s, key: key, data: data}, nil

		case errors.Is(err, goredis.Nil):
			_, err := s.scripts.Eval(ctx, ScriptLock, []string{key, signal}, seconds(s.lockTimeout))
			if err == nil {
				return &Lease{s: s, key: key, locked: true}, nil
			}
			if !errors.Is(err, goredis.Nil) {
				return s.degradedLease(key, "lock", err)
			}
			// lost the race to another builder
			continue

		case err != nil:
			return s.degradedLease(key, "get", err)
		}

		// locked by someone else: wait for the release signal without consuming it
		_, err = s.rdb.BRPopLPush(ctx, signal, signal, s.lockTimeout).Result()
		if errors.Is(err, goredis.Nil) {
			s.obs.LockWaitTimeout(key)
			continue
		}
		if err != nil {
			if ctxErr := ctx.Err(); ctxErr != nil {
				return nil, ctxErr
			}
			return s.degradedLease(key, "wait", err)
		}
	}
}

// degradedLease returns an unlocked miss when err was swallowed by the policy.
func (s *Store) degradedLease(key, op string, err error) (*Lease, error) {
	degraded, err := s.guard(op, err)
	if degraded {
		return &Lease{s: s, key: key}, nil
	}
	return nil, err
}

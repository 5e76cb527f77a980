// Package store is the Redis facade of rowcache: plain key/value and set
// commands, the compiled-in Lua scripts, the index writer and the dogpile
// lock protocol, all behind a single connection-failure policy.
//
// Keyspace owned by the store:
//
//	q:<fingerprint>          cached entries
//	q:<fingerprint>:signal   lock release signals
//	conj:<table>:<fields>    invalidation index sets
package store

import (
	"context"
	"errors"
	"fmt"
	"time"

	goredis "github.com/redis/go-redis/v9"
)

// DefaultLockTimeout bounds how long a build lock lives and how long a
// waiter blocks before re-checking.
const DefaultLockTimeout = 60 * time.Second

// Policy decides what connection failures look like to callers.
type Policy int

const (
	// Strict surfaces every connection failure as ErrUnavailable.
	Strict Policy = iota
	// Degrade turns connection failures into misses and no-ops.
	Degrade
)

func (p Policy) String() string {
	if p == Degrade {
		return "degrade"
	}
	return "strict"
}

// Observer receives store events. Calls happen on the caller's goroutine.
type Observer interface {
	// Degraded is called once for every operation swallowed under Degrade.
	Degraded(op string, err error)
	// LockWaitTimeout is called when a waiter gave up on a signal and retries.
	LockWaitTimeout(key string)
}

type nopObserver struct{}

func (nopObserver) Degraded(string, error)  {}
func (nopObserver) LockWaitTimeout(string) {}

type Options struct {
	Client      goredis.UniversalClient // required
	Policy      Policy
	LockTimeout time.Duration // 0 => DefaultLockTimeout
	Observer    Observer      // nil => no events
	CloseClient bool          // set true only if the store exclusively owns the client
}

// Store is safe for concurrent use.
type Store struct {
	rdb         goredis.UniversalClient
	scripts     *Scripts
	policy      Policy
	lockTimeout time.Duration
	obs         Observer
	closeClient bool
}

func New(opts Options) (*Store, error) {
	if opts.Client == nil {
		return nil, ErrNilClient
	}
	s := &Store{
		rdb:         opts.Client,
		scripts:     NewScripts(opts.Client),
		policy:      opts.Policy,
		lockTimeout: opts.LockTimeout,
		obs:         opts.Observer,
		closeClient: opts.CloseClient,
	}
	if s.lockTimeout <= 0 {
		s.lockTimeout = DefaultLockTimeout
	}
	if s.obs == nil {
		s.obs = nopObserver{}
	}
	return s, nil
}

func (s *Store) Policy() Policy             { return s.policy }
func (s *Store) LockTimeout() time.Duration { return s.lockTimeout }

// Client exposes the underlying client for callers that need raw access.
func (s *Store) Client() goredis.UniversalClient { return s.rdb }

// guard applies the failure policy. degraded is true when err was a
// connection failure swallowed under Degrade; the caller then behaves as if
// the key were absent or the write succeeded.
func (s *Store) guard(op string, err error) (degraded bool, _ error) {
	if err == nil || errors.Is(err, goredis.Nil) {
		return false, err
	}
	if !isConnErr(err) {
		return false, err
	}
	if s.policy == Degrade {
		s.obs.Degraded(op, err)
		return true, nil
	}
	return false, fmt.Errorf("%w: %s: %v", ErrUnavailable, op, err)
}

// Get returns (value, true, nil) on hit and (nil, false, nil) on miss.
func (s *Store) Get(ctx context.Context, key string) ([]byte, bool, error) {
	b, err := s.rdb.Get(ctx, key).Bytes()
	if errors.Is(err, goredis.Nil) {
		return nil, false, nil
	}
	if degraded, err := s.guard("get", err); degraded || err != nil {
		return nil, false, err
	}
	return b, true, nil
}

// Set stores value; ttl <= 0 means no expiry.
func (s *Store) Set(ctx context.Context, key string, value []byte, ttl time.Duration) error {
	if ttl < 0 {
		ttl = 0
	}
	_, err := s.guard("set", s.rdb.Set(ctx, key, value, ttl).Err())
	return err
}

func (s *Store) Del(ctx context.Context, keys ...string) error {
	if len(keys) == 0 {
		return nil
	}
	_, err := s.guard("del", s.rdb.Del(ctx, keys...).Err())
	return err
}

// Keys runs KEYS. Heavy on large keyspaces.
func (s *Store) Keys(ctx context.Context, pattern string) ([]string, error) {
	keys, err := s.rdb.Keys(ctx, pattern).Result()
	if degraded, err := s.guard("keys", err); degraded || err != nil {
		return nil, err
	}
	return keys, nil
}

func (s *Store) SUnion(ctx context.Context, keys ...string) ([]string, error) {
	if len(keys) == 0 {
		return nil, nil
	}
	members, err := s.rdb.SUnion(ctx, keys...).Result()
	if degraded, err := s.guard("sunion", err); degraded || err != nil {
		return nil, err
	}
	return members, nil
}

// FlushDB empties the configured logical database.
func (s *Store) FlushDB(ctx context.Context) error {
	_, err := s.guard("flushdb", s.rdb.FlushDB(ctx).Err())
	return err
}

// Eval runs a named script. A nil reply yields (nil, nil); so does a
// degraded call.
func (s *Store) Eval(ctx context.Context, name string, keys []string, args ...any) (any, error) {
	res, err := s.scripts.Eval(ctx, name, keys, args...)
	if errors.Is(err, goredis.Nil) {
		return nil, nil
	}
	if degraded, err := s.guard("eval "+name, err); degraded || err != nil {
		return nil, err
	}
	return res, nil
}

// Install writes a cache entry and adds it to every conjunction set in one
// script run, so the invalidation script never sees one without the other.
// ttl <= 0 leaves both without expiry.
func (s *Store) Install(ctx context.Context, key string, value []byte, ttl time.Duration, conjKeys []string) error {
	keys := make([]string, 0, 1+len(conjKeys))
	keys = append(keys, key)
	keys = append(keys, conjKeys...)
	_, err := s.Eval(ctx, ScriptInstall, keys, value, seconds(ttl))
	return err
}

// seconds rounds up so sub-second ttls don't turn into "no expiry".
func seconds(d time.Duration) int64 {
	if d <= 0 {
		return 0
	}
	return int64((d + time.Second - 1) / time.Second)
}

// Close releases the underlying client only when this store owns it.
// Safe to call multiple times.
func (s *Store) Close(context.Context) error {
	if s.closeClient {
		if err := s.rdb.Close(); err != nil && !errors.Is(err, goredis.ErrClosed) {
			return err
		}
	}
	return nil
}

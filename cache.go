package rowcache

import (
	"context"
	"fmt"
	"sync/atomic"
	"time"

	"github.com/hashicorp/go-multierror"

	"github.com/unkn0wn-root/rowcache/conj"
	"github.com/unkn0wn-root/rowcache/genstore"
	"github.com/unkn0wn-root/rowcache/internal/util"
	"github.com/unkn0wn-root/rowcache/internal/wire"
	"github.com/unkn0wn-root/rowcache/profile"
	pr "github.com/unkn0wn-root/rowcache/provider"
	"github.com/unkn0wn-root/rowcache/store"
)

// Cache is safe for concurrent use.
type Cache struct {
	store          *store.Store
	profiles       *profile.Resolver
	local          pr.Provider
	gens           *genstore.Local
	log            Logger
	hooks          Hooks
	lru            bool
	computeSetCost SetCostFunc
	now            func() time.Time
}

func newCache(opts Options) (*Cache, error) {
	if opts.Client == nil {
		return nil, fmt.Errorf("%w: store connection is required", ErrMisconfigured)
	}
	profiles, err := profile.NewResolver(opts.Profiles)
	if err != nil {
		return nil, err
	}

	c := &Cache{
		profiles: profiles,
		local:    opts.Local,
		gens:     genstore.New(),
		lru:      opts.LRU,
		now:      time.Now,
	}

	// defaults
	c.log = coalesce[Logger](opts.Logger, NopLogger{})
	c.hooks = coalesce[Hooks](opts.Hooks, NopHooks{})

	if opts.ComputeSetCost != nil {
		c.computeSetCost = opts.ComputeSetCost
	} else {
		c.computeSetCost = func(_ string, _ []byte) int64 { return 1 }
	}

	policy := store.Strict
	if opts.DegradeOnFailure {
		policy = store.Degrade
	}
	c.store, err = store.New(store.Options{
		Client:      opts.Client,
		Policy:      policy,
		LockTimeout: coalesce(opts.LockTimeout, store.DefaultLockTimeout),
		Observer:    observer{log: c.log, hooks: c.hooks},
		CloseClient: opts.CloseClient,
	})
	if err != nil {
		return nil, err
	}
	return c, nil
}

// Profile is a copy of the caching policy of m; nil when m is not cached.
func (c *Cache) Profile(m *Model) *profile.Profile {
	return c.profile(m).Clone()
}

// profile is the shared resolved policy. Read-only.
func (c *Cache) profile(m *Model) *profile.Profile {
	return c.profiles.Lookup(m.App, m.Name)
}

// Key is the cache key of q under p.
func (c *Cache) Key(q Query, p *profile.Profile) string {
	db := q.DB
	if p != nil && p.DBAgnostic {
		db = ""
	}
	return util.QueryKey(string(q.Op), q.SQL, q.Args, db)
}

func (c *Cache) Close(ctx context.Context) error {
	var result *multierror.Error
	if c.local != nil {
		if err := c.local.Close(ctx); err != nil {
			result = multierror.Append(result, err)
		}
	}
	if err := c.store.Close(ctx); err != nil {
		result = multierror.Append(result, err)
	}
	return result.ErrorOrNil()
}

// BuildToken is handed out on a miss. Exactly one of Commit or Abort takes
// effect; it holds the build lock when the read asked for one.
type BuildToken struct {
	key      string
	ttl      time.Duration
	conjKeys []string
	lease    *store.Lease
	spent    atomic.Bool
}

func (t *BuildToken) Key() string { return t.key }

// Locked reports whether other readers are waiting on this build.
func (t *BuildToken) Locked() bool { return t.lease != nil && t.lease.Locked() }

// Read returns the cached payload of key, or a token the caller must Commit
// or Abort. ttl <= 0 stores without expiry. With lock, concurrent readers of
// a missing key wait for the single builder.
//
// The result is indexed under conjs; with none it depends on the whole table
// of m. A nil m requires conjs.
func (c *Cache) Read(ctx context.Context, m *Model, key string, ttl time.Duration, conjs []conj.Conjunction, lock bool) ([]byte, *BuildToken, error) {
	conjs = withTableFallback(m, conjs)
	if len(conjs) == 0 {
		return nil, nil, fmt.Errorf("%w: read of %q has no model and no conjunctions", ErrMisconfigured, key)
	}
	for attempt := 0; ; attempt++ {
		lease, err := c.store.Getting(ctx, key, lock)
		if err != nil {
			return nil, nil, err
		}
		if !lease.Hit() {
			return nil, &BuildToken{key: key, ttl: ttl, conjKeys: conj.Keys(conjs), lease: lease}, nil
		}
		_, payload, err := wire.DecodeEntry(lease.Data())
		if err == nil {
			return payload, nil, nil
		}
		if err := c.heal(ctx, key, "corrupt"); err != nil {
			return nil, nil, err
		}
		if attempt > 0 {
			// someone keeps writing garbage here; build without the lock
			return nil, &BuildToken{key: key, ttl: ttl, conjKeys: conj.Keys(conjs)}, nil
		}
	}
}

// Commit installs payload under the token's key and conjunctions, then
// releases the build lock.
func (c *Cache) Commit(ctx context.Context, tok *BuildToken, payload []byte) error {
	if !tok.spent.CompareAndSwap(false, true) {
		return ErrTokenSpent
	}
	err := c.store.Install(ctx, tok.key, wire.EncodeEntry(c.now(), payload), tok.ttl, tok.conjKeys)
	if rerr := c.release(ctx, tok); err == nil {
		err = rerr
	}
	return err
}

// Abort releases the build lock without writing. Aborting a spent token
// does nothing.
func (c *Cache) Abort(ctx context.Context, tok *BuildToken) error {
	if !tok.spent.CompareAndSwap(false, true) {
		return nil
	}
	return c.release(ctx, tok)
}

func (c *Cache) release(ctx context.Context, tok *BuildToken) error {
	if tok.lease == nil {
		return nil
	}
	return tok.lease.Release(ctx)
}

// Fetch serves q from cache when its model's profile enables q.Op and falls
// back to build otherwise. Build errors are returned as is and nothing is
// cached.
func (c *Cache) Fetch(ctx context.Context, q Query, build BuildFunc) ([]byte, error) {
	if q.Model == nil {
		return build(ctx)
	}
	p := c.profile(q.Model)
	if !p.Enabled(q.Op) {
		return build(ctx)
	}
	key := c.Key(q, p)
	ttl := c.ttl(p)
	conjs := q.conjunctions()

	if p.WriteOnly {
		b, err := build(ctx)
		if err != nil {
			return nil, err
		}
		tok := &BuildToken{key: key, ttl: ttl, conjKeys: conj.Keys(conjs)}
		if err := c.Commit(ctx, tok, b); err != nil {
			return nil, err
		}
		return b, nil
	}

	var localKey string
	useLocal := p.LocalGet && q.Op == profile.Get && c.local != nil
	if useLocal {
		// versioned before the read so a build racing an invalidation
		// lands under an already retired key
		localKey = key + "@" + c.gens.Version(tablesOf(conjs))
		if b, ok := c.localGet(ctx, localKey); ok {
			return b, nil
		}
	}

	data, tok, err := c.Read(ctx, q.Model, key, ttl, conjs, p.Lock)
	if err != nil {
		return nil, err
	}
	if tok == nil {
		if useLocal {
			c.localSet(ctx, localKey, data, p.Timeout)
		}
		return data, nil
	}

	defer func() {
		if !tok.spent.Load() {
			_ = c.Abort(context.WithoutCancel(ctx), tok)
		}
	}()

	b, err := build(ctx)
	if err != nil {
		return nil, err
	}
	if err := c.Commit(ctx, tok, b); err != nil {
		return nil, err
	}
	if useLocal {
		c.localSet(ctx, localKey, b, p.Timeout)
	}
	return b, nil
}

func (c *Cache) ttl(p *profile.Profile) time.Duration {
	if c.lru {
		return 0
	}
	return p.Timeout
}

// heal drops an unreadable entry from the store.
func (c *Cache) heal(ctx context.Context, key, reason string) error {
	c.log.Warn("dropping unreadable cache entry", Fields{"key": key, "reason": reason})
	c.hooks.EntryCorrupt(key, reason)
	return c.store.Del(ctx, key)
}

// forget drops q's entry from both tiers.
func (c *Cache) forget(ctx context.Context, q Query, reason string) error {
	p := c.profile(q.Model)
	key := c.Key(q, p)
	if c.local != nil && p != nil && p.LocalGet {
		_ = c.local.Del(ctx, key+"@"+c.gens.Version(tablesOf(q.conjunctions())))
	}
	return c.heal(ctx, key, reason)
}

// tablesOf lists the distinct tables of conjs in first-seen order.
func tablesOf(conjs []conj.Conjunction) []string {
	out := make([]string, 0, 1)
	for _, cj := range conjs {
		out = append(out, cj.Table)
	}
	return dedupe(out)
}

func (c *Cache) localGet(ctx context.Context, key string) ([]byte, bool) {
	raw, ok, err := c.local.Get(ctx, key)
	if err != nil || !ok {
		return nil, false
	}
	_, payload, err := wire.DecodeEntry(raw)
	if err != nil {
		_ = c.local.Del(ctx, key)
		c.hooks.EntryCorrupt(key, "corrupt")
		return nil, false
	}
	return payload, true
}

// localSet is best effort. Local entries are retired by this process's
// invalidations through their versioned key and otherwise live until ttl.
func (c *Cache) localSet(ctx context.Context, key string, payload []byte, ttl time.Duration) {
	raw := wire.EncodeEntry(c.now(), payload)
	ok, err := c.local.Set(ctx, key, raw, c.computeSetCost(key, raw), ttl)
	if err != nil {
		c.log.Debug("local set failed", Fields{"key": key, "err": err})
		return
	}
	if !ok {
		c.hooks.LocalSetRejected(key)
	}
}

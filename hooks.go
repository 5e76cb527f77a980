package rowcache

// Hooks lightweight callbacks for high-signal events.
// Implementations MUST be cheap and non-blocking.
// The cache calls them on hot paths.
type Hooks interface {
	// A store call failed on the connection and was swallowed (degrade mode).
	StoreDegraded(op string, err error)

	// A waiter gave up on a build signal after the lock timeout and retried.
	LockWaitTimeout(cacheKey string)

	// A cached entry was deleted on read.
	// reason ∈ {"corrupt", "value_decode"}
	EntryCorrupt(cacheKey, reason string)

	// An invalidation of table removed keys cache entries.
	Invalidated(table string, keys int)

	// An invalidation was dropped by an active suppression scope.
	// op ∈ {"invalidate_row", "invalidate_model", "invalidate_all"}
	InvalidationSuppressed(op string)

	// The local tier returned ok=false on Set (backpressure/eviction).
	LocalSetRejected(cacheKey string)
}

// NopHooks is the default no-op
type NopHooks struct{}

func (NopHooks) StoreDegraded(string, error)   {}
func (NopHooks) LockWaitTimeout(string)        {}
func (NopHooks) EntryCorrupt(string, string)   {}
func (NopHooks) Invalidated(string, int)       {}
func (NopHooks) InvalidationSuppressed(string) {}
func (NopHooks) LocalSetRejected(string)       {}

// observer feeds store events into the logger and hooks.
type observer struct {
	log   Logger
	hooks Hooks
}

func (o observer) Degraded(op string, err error) {
	o.log.Warn("store unavailable, degrading to miss", Fields{"op": op, "err": err})
	o.hooks.StoreDegraded(op, err)
}

func (o observer) LockWaitTimeout(key string) {
	o.log.Debug("lock wait timed out, retrying", Fields{"key": key})
	o.hooks.LockWaitTimeout(key)
}

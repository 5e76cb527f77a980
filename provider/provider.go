// Package provider defines the in-process byte store behind the local_get
// tier of rowcache.
//
// The local tier is never reached by invalidation: an entry lives until its
// TTL runs out or the store evicts it. Only enable local_get for models that
// tolerate reads that are stale by up to the profile timeout.
//
// Implementations MUST be byte-for-byte transparent: Get returns exactly the
// []byte previously passed to Set. Values are wire-framed cache entries and
// anything else found under a key is dropped as corrupt.
package provider

import (
	"context"
	"time"
)

// Provider is a minimal byte store with TTLs.
// Must be safe for concurrent use.
type Provider interface {
	// Get returns (value, true, nil) on hit; (nil, false, nil) on miss.
	Get(ctx context.Context, key string) ([]byte, bool, error)

	// Set stores value for at most ttl. May ignore cost if unsupported.
	// Returns ok=false when the store rejected the write under pressure.
	Set(ctx context.Context, key string, value []byte, cost int64, ttl time.Duration) (ok bool, err error)

	// Del removes a key (best-effort).
	Del(ctx context.Context, key string) error

	// Close releases resources.
	Close(ctx context.Context) error
}

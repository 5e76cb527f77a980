// Package sloghooks logs rowcache events through log/slog with sampling for
// the chatty ones and cache key redaction.
package sloghooks

import (
	"crypto/sha256"
	"encoding/hex"
	"log/slog"
	"sync/atomic"

	"github.com/unkn0wn-root/rowcache"
)

type Options struct {
	// Sampling to avoid floods; 0/1 = log all.
	InvalidatedEvery uint64
	LockWaitEvery    uint64
	DegradedEvery    uint64
	// Optional key redactor. Defaults to SHA-256 prefix.
	Redact func(string) string
}

type Hooks struct {
	l    *slog.Logger
	opts Options

	invalidatedCtr atomic.Uint64
	lockWaitCtr    atomic.Uint64
	degradedCtr    atomic.Uint64
}

var _ rowcache.Hooks = (*Hooks)(nil)

func New(l *slog.Logger, opts Options) *Hooks {
	return &Hooks{l: l, opts: opts}
}

func (h *Hooks) redact(k string) string {
	if h.opts.Redact != nil {
		return h.opts.Redact(k)
	}
	sum := sha256.Sum256([]byte(k))
	return hex.EncodeToString(sum[:8])
}

func sample(n uint64, ctr *atomic.Uint64) bool {
	if n == 0 || n == 1 {
		return true
	}
	return ctr.Add(1)%n == 0
}

func (h *Hooks) StoreDegraded(op string, err error) {
	if h.l == nil || !sample(h.opts.DegradedEvery, &h.degradedCtr) {
		return
	}
	h.l.Warn("rowcache.store_degraded",
		"op", op,
		"err", err)
}

func (h *Hooks) LockWaitTimeout(cacheKey string) {
	if h.l == nil || !sample(h.opts.LockWaitEvery, &h.lockWaitCtr) {
		return
	}
	h.l.Warn("rowcache.lock_wait_timeout",
		"key", h.redact(cacheKey))
}

func (h *Hooks) EntryCorrupt(cacheKey, reason string) {
	if h.l == nil {
		return
	}
	h.l.Warn("rowcache.entry_corrupt",
		"key", h.redact(cacheKey),
		"reason", reason)
}

func (h *Hooks) Invalidated(table string, keys int) {
	if h.l == nil || !sample(h.opts.InvalidatedEvery, &h.invalidatedCtr) {
		return
	}
	h.l.Debug("rowcache.invalidated",
		"table", table,
		"keys", keys)
}

func (h *Hooks) InvalidationSuppressed(op string) {
	if h.l == nil {
		return
	}
	h.l.Debug("rowcache.invalidation_suppressed",
		"op", op)
}

func (h *Hooks) LocalSetRejected(cacheKey string) {
	if h.l == nil {
		return
	}
	h.l.Info("rowcache.local_set_rejected",
		"key", h.redact(cacheKey))
}

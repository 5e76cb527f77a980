// Package asynchook moves rowcache hook calls off the hot path onto a
// bounded queue. Events are dropped, not blocked on, when the queue is full.
//
//	raw := sloghooks.New(slog.Default(), sloghooks.Options{InvalidatedEvery: 100})
//	hooks := asynchook.New(raw, 1, 1000) // 1 worker; queue 1000 events
//	defer hooks.Close()
//
//	cache, _ := rowcache.New(rowcache.Options{Client: rdb, Hooks: hooks})
package asynchook

import (
	"sync"
	"sync/atomic"

	"github.com/unkn0wn-root/rowcache"
)

type Hooks struct {
	inner   rowcache.Hooks
	q       chan func()
	wg      sync.WaitGroup
	once    sync.Once
	mu      sync.RWMutex
	closed  bool
	dropped atomic.Uint64
}

var _ rowcache.Hooks = (*Hooks)(nil)

func New(inner rowcache.Hooks, workers, qlen int) *Hooks {
	if workers <= 0 {
		workers = 1
	}
	if qlen <= 0 {
		qlen = 1024
	}

	h := &Hooks{inner: inner, q: make(chan func(), qlen)}
	h.wg.Add(workers)
	for i := 0; i < workers; i++ {
		go func() {
			defer h.wg.Done()
			for f := range h.q {
				f()
			}
		}()
	}
	return h
}

// Close drains queued events. Events after Close are dropped.
func (h *Hooks) Close() {
	h.once.Do(func() {
		h.mu.Lock()
		h.closed = true
		close(h.q)
		h.mu.Unlock()
		h.wg.Wait()
	})
}

// Dropped counts events lost to a full queue or a closed hook.
func (h *Hooks) Dropped() uint64 { return h.dropped.Load() }

func (h *Hooks) try(f func()) {
	h.mu.RLock()
	defer h.mu.RUnlock()
	if h.closed {
		h.dropped.Add(1)
		return
	}
	select {
	case h.q <- f:
	default:
		h.dropped.Add(1)
	}
}

func (h *Hooks) StoreDegraded(op string, err error) { h.try(func() { h.inner.StoreDegraded(op, err) }) }
func (h *Hooks) LockWaitTimeout(k string)           { h.try(func() { h.inner.LockWaitTimeout(k) }) }
func (h *Hooks) EntryCorrupt(k, r string)           { h.try(func() { h.inner.EntryCorrupt(k, r) }) }
func (h *Hooks) Invalidated(table string, n int)    { h.try(func() { h.inner.Invalidated(table, n) }) }
func (h *Hooks) LocalSetRejected(k string)          { h.try(func() { h.inner.LocalSetRejected(k) }) }
func (h *Hooks) InvalidationSuppressed(op string) {
	h.try(func() { h.inner.InvalidationSuppressed(op) })
}

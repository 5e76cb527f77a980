// Package genstore keeps in-process generation counters per table. The
// local_get tier folds them into its keys, so an invalidation issued by this
// process retires every local entry that depends on the touched tables.
// Invalidations from other processes are not seen; those entries live until
// their TTL.
package genstore

import (
	"strconv"
	"strings"
	"sync"
	"sync/atomic"
)

// Local is safe for concurrent use. The zero value is not usable; use New.
type Local struct {
	mu     sync.RWMutex
	tables map[string]*atomic.Uint64
	epoch  atomic.Uint64 // bumped by BumpAll
}

func New() *Local {
	return &Local{tables: make(map[string]*atomic.Uint64)}
}

// Snapshot returns the generation of table; never bumped => 0.
func (s *Local) Snapshot(table string) uint64 {
	s.mu.RLock()
	e, ok := s.tables[table]
	s.mu.RUnlock()
	if !ok {
		return 0
	}
	return e.Load()
}

// Bump increments the generation of every table.
func (s *Local) Bump(tables ...string) {
	for _, t := range tables {
		s.get(t).Add(1)
	}
}

// BumpAll retires every version handed out so far.
func (s *Local) BumpAll() { s.epoch.Add(1) }

// Version renders the current generations of tables (in the given order)
// as a key suffix. Any later Bump of one of them, or BumpAll, changes it.
func (s *Local) Version(tables []string) string {
	var b strings.Builder
	b.WriteString(strconv.FormatUint(s.epoch.Load(), 36))
	for _, t := range tables {
		b.WriteByte('.')
		b.WriteString(strconv.FormatUint(s.Snapshot(t), 36))
	}
	return b.String()
}

func (s *Local) get(table string) *atomic.Uint64 {
	s.mu.RLock()
	e, ok := s.tables[table]
	s.mu.RUnlock()
	if ok {
		return e
	}
	s.mu.Lock()
	defer s.mu.Unlock()
	if e, ok = s.tables[table]; !ok {
		e = new(atomic.Uint64)
		s.tables[table] = e
	}
	return e
}

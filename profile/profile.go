// Package profile resolves the caching policy that applies to a model.
//
// Overrides are keyed by "app.model", "app.*" or "*.*"; the most specific
// match wins. A nil *Profile means the model is not cached.
package profile

import (
	"errors"
	"sort"
	"strings"
	"time"
)

// ErrMisconfigured is returned for invalid or incomplete profile settings.
var ErrMisconfigured = errors.New("rowcache: misconfigured")

// Op is a cacheable read operation.
type Op string

const (
	Get    Op = "get"
	Fetch  Op = "fetch"
	Count  Op = "count"
	Exists Op = "exists"
)

// AllOps lists every cacheable operation.
var AllOps = []Op{Get, Fetch, Count, Exists}

func (o Op) valid() bool {
	switch o {
	case Get, Fetch, Count, Exists:
		return true
	}
	return false
}

// Ops is a set of operations.
type Ops map[Op]struct{}

// NewOps builds a set from ops.
func NewOps(ops ...Op) Ops {
	s := make(Ops, len(ops))
	for _, o := range ops {
		s[o] = struct{}{}
	}
	return s
}

func (s Ops) Has(o Op) bool {
	_, ok := s[o]
	return ok
}

// Sorted returns the members in a stable order.
func (s Ops) Sorted() []Op {
	out := make([]Op, 0, len(s))
	for o := range s {
		out = append(out, o)
	}
	sort.Slice(out, func(i, j int) bool { return out[i] < out[j] })
	return out
}

func (s Ops) String() string {
	parts := make([]string, 0, len(s))
	for _, o := range s.Sorted() {
		parts = append(parts, string(o))
	}
	return "{" + strings.Join(parts, ",") + "}"
}

// Profile is the caching policy of a model. Treat it as read-only.
type Profile struct {
	Ops     Ops
	Timeout time.Duration
	// LocalGet keeps GET results in process memory too. Invalidations issued
	// by the same process retire those copies; others only reach them at Timeout.
	LocalGet bool
	// DBAgnostic leaves the database alias out of cache keys.
	DBAgnostic bool
	// Lock enables the dogpile lock for misses.
	Lock bool
	// WriteOnly never serves from the cache but keeps writing to it.
	WriteOnly bool
}

// Enabled reports whether op is served through the cache.
func (p *Profile) Enabled(op Op) bool {
	return p != nil && p.Ops.Has(op)
}

// Clone returns a deep copy that can be modified freely.
func (p *Profile) Clone() *Profile {
	if p == nil {
		return nil
	}
	cp := *p
	cp.Ops = NewOps(p.Ops.Sorted()...)
	return &cp
}

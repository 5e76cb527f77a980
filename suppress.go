package rowcache

import (
	"context"
	"sync/atomic"
)

type suppressKey struct{}

// suppression is one scope. Scopes link to the enclosing scope of the
// context they were opened on; a context sees only its own chain, so
// releasing a scope or opening one elsewhere never affects unrelated
// contexts.
type suppression struct {
	parent   *suppression
	released atomic.Bool
}

func (s *suppression) active() bool {
	for ; s != nil; s = s.parent {
		if !s.released.Load() {
			return true
		}
	}
	return false
}

// Suppress returns a context under which invalidations are no-ops, and the
// func that ends the scope. Scopes nest; calling release more than once is
// harmless.
func Suppress(ctx context.Context) (context.Context, func()) {
	parent, _ := ctx.Value(suppressKey{}).(*suppression)
	for parent != nil && parent.released.Load() {
		parent = parent.parent
	}
	s := &suppression{parent: parent}
	return context.WithValue(ctx, suppressKey{}, s), func() { s.released.Store(true) }
}

// WithoutInvalidation runs fn with invalidations suppressed. The scope ends
// when fn returns or panics.
func WithoutInvalidation(ctx context.Context, fn func(ctx context.Context) error) error {
	ctx, release := Suppress(ctx)
	defer release()
	return fn(ctx)
}

// Suppressed reports whether ctx is inside an active suppression scope.
func Suppressed(ctx context.Context) bool {
	s, _ := ctx.Value(suppressKey{}).(*suppression)
	return s.active()
}

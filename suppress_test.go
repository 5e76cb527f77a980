package rowcache

import (
	"context"
	"errors"
	"sync/atomic"
	"testing"

	"github.com/unkn0wn-root/rowcache/conj"
)

func TestSuppressNesting(t *testing.T) {
	ctx := context.Background()
	if Suppressed(ctx) {
		t.Fatalf("fresh context must not be suppressed")
	}

	outer, releaseOuter := Suppress(ctx)
	inner, releaseInner := Suppress(outer)
	if !Suppressed(outer) || !Suppressed(inner) {
		t.Fatalf("both scopes must be suppressed")
	}

	releaseInner()
	releaseInner() // no double decrement
	if !Suppressed(inner) || !Suppressed(outer) {
		t.Fatalf("outer scope still active")
	}

	releaseOuter()
	if Suppressed(inner) || Suppressed(outer) {
		t.Fatalf("all scopes released")
	}
	if Suppressed(ctx) {
		t.Fatalf("parent context was never suppressed")
	}
}

func TestSuppressDoesNotLeakIntoSiblings(t *testing.T) {
	base, release := Suppress(context.Background())
	release()
	if Suppressed(base) {
		t.Fatalf("released scope still active")
	}

	child, releaseChild := Suppress(base)
	defer releaseChild()
	if !Suppressed(child) {
		t.Fatalf("new scope must be active")
	}
	if Suppressed(base) {
		t.Fatalf("scope opened on a derived context suppressed its parent")
	}
}

func TestSuppressScopesAreIndependentAcrossGoroutines(t *testing.T) {
	shared, releaseShared := Suppress(context.Background())
	releaseShared()

	started := make(chan struct{})
	hold := make(chan struct{})
	done := make(chan struct{})
	go func() {
		defer close(done)
		_ = WithoutInvalidation(shared, func(ctx context.Context) error {
			if !Suppressed(ctx) {
				t.Errorf("worker scope must be active")
			}
			close(started)
			<-hold
			return nil
		})
	}()
	<-started

	if Suppressed(shared) {
		t.Fatalf("another goroutine's scope suppressed this one")
	}
	close(hold)
	<-done
}

func TestWithoutInvalidationReleasesOnPanic(t *testing.T) {
	var inside context.Context
	func() {
		defer func() { _ = recover() }()
		_ = WithoutInvalidation(context.Background(), func(ctx context.Context) error {
			inside = ctx
			panic("boom")
		})
	}()
	if Suppressed(inside) {
		t.Fatalf("scope leaked past a panic")
	}
}

func TestWithoutInvalidationReturnsError(t *testing.T) {
	boom := errors.New("boom")
	err := WithoutInvalidation(context.Background(), func(ctx context.Context) error {
		if !Suppressed(ctx) {
			t.Fatalf("fn must run suppressed")
		}
		return boom
	})
	if !errors.Is(err, boom) {
		t.Fatalf("got %v", err)
	}
}

// TestSuppressedInvalidationsAreDropped: suppressed calls never reach the store,
// and the next unsuppressed call behaves as if they never happened.
func TestSuppressedInvalidationsAreDropped(t *testing.T) {
	cc, m, hooks := newTestCache(t, nil)
	var calls atomic.Int32
	mustFetch(t, cc, orderByID(7), countingBuild("B", &calls))
	before := m.Keys()

	err := WithoutInvalidation(context.Background(), func(ctx context.Context) error {
		if err := cc.InvalidateRow(ctx, order, conj.Row{"id": 7}); err != nil {
			return err
		}
		if err := cc.InvalidateModel(ctx, order); err != nil {
			return err
		}
		return cc.InvalidateAll(ctx)
	})
	if err != nil {
		t.Fatal(err)
	}
	if len(m.Keys()) != len(before) {
		t.Fatalf("store changed under suppression: %v -> %v", before, m.Keys())
	}
	if len(hooks.suppressed) != 3 {
		t.Fatalf("suppressed = %v", hooks.suppressed)
	}

	if err := cc.InvalidateRow(context.Background(), order, conj.Row{"id": 8}); err != nil {
		t.Fatal(err)
	}
	if got := mustFetch(t, cc, orderByID(7), countingBuild("C", &calls)); got != "B" {
		t.Fatalf("suppressed invalidation leaked: got %q", got)
	}
}

package ristretto

import (
	"context"
	"testing"
	"time"
)

func TestProviderSetGetDel(t *testing.T) {
	ctx := context.Background()
	p, err := New(Config{NumCounters: 1000, MaxCost: 1 << 20})
	if err != nil {
		t.Fatalf("New: %v", err)
	}
	defer p.Close(ctx)

	if ok, err := p.Set(ctx, "q:1", []byte("entry"), 1, time.Minute); err != nil || !ok {
		t.Fatalf("Set: ok=%v err=%v", ok, err)
	}
	p.Wait()
	if b, ok, err := p.Get(ctx, "q:1"); err != nil || !ok || string(b) != "entry" {
		t.Fatalf("Get: %q ok=%v err=%v", b, ok, err)
	}

	if err := p.Del(ctx, "q:1"); err != nil {
		t.Fatal(err)
	}
	if _, ok, _ := p.Get(ctx, "q:1"); ok {
		t.Fatalf("entry survived Del")
	}
}

func TestProviderRejectsBadConfig(t *testing.T) {
	if _, err := New(Config{}); err == nil {
		t.Fatalf("expected error for zero config")
	}
}

func TestProviderDropsForeignValues(t *testing.T) {
	ctx := context.Background()
	p, err := New(Config{NumCounters: 1000, MaxCost: 1 << 20})
	if err != nil {
		t.Fatal(err)
	}
	defer p.Close(ctx)

	p.c.Set("q:odd", "not bytes", 1)
	p.Wait()
	if _, ok, _ := p.Get(ctx, "q:odd"); ok {
		t.Fatalf("non-[]byte value must read as a miss")
	}
}

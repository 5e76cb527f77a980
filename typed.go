package rowcache

import (
	"context"

	c "github.com/unkn0wn-root/rowcache/codec"
)

// Typed is Fetch over values of V serialized by a Codec.
type Typed[V any] struct {
	cache *Cache
	codec c.Codec[V]
}

func NewTyped[V any](cache *Cache, codec c.Codec[V]) *Typed[V] {
	return &Typed[V]{cache: cache, codec: codec}
}

// Fetch returns the cached value of q or builds it. A cached payload that
// no longer decodes is dropped and rebuilt.
func (t *Typed[V]) Fetch(ctx context.Context, q Query, build func(ctx context.Context) (V, error)) (V, error) {
	var zero V
	for attempt := 0; ; attempt++ {
		var (
			built bool
			fresh V
		)
		raw, err := t.cache.Fetch(ctx, q, func(ctx context.Context) ([]byte, error) {
			v, err := build(ctx)
			if err != nil {
				return nil, err
			}
			built, fresh = true, v
			return t.codec.Encode(v)
		})
		if err != nil {
			return zero, err
		}
		if built {
			return fresh, nil
		}
		v, err := t.codec.Decode(raw)
		if err == nil {
			return v, nil
		}
		if attempt > 0 {
			return zero, err
		}
		if err := t.cache.forget(ctx, q, "value_decode"); err != nil {
			return zero, err
		}
	}
}

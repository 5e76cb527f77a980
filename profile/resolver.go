package profile

import (
	"fmt"
	"strings"

	"github.com/puzpuzpuz/xsync/v3"
)

// Config holds raw profile settings, as decoded from configuration.
type Config struct {
	// Defaults apply under every modern (map) override.
	Defaults map[string]any
	// Profiles adds or replaces named profiles for the legacy form.
	Profiles map[string]map[string]any
	// Overrides maps "app.model" | "app.*" | "*.*" to a profile map, a
	// *Profile, a Legacy tuple ([name, timeout[, options]]) or a disabled
	// marker (nil, false, Disabled).
	Overrides map[string]any
}

// Resolver maps model identities to profiles. Safe for concurrent use.
type Resolver struct {
	byPattern map[string]*Profile // nil value => explicitly disabled
	memo      *xsync.MapOf[string, *Profile]
}

// NewResolver validates every override eagerly.
func NewResolver(cfg Config) (*Resolver, error) {
	named := builtins()
	for name, opts := range cfg.Profiles {
		named[name] = merge(base(), opts)
	}
	defaults := merge(base(), cfg.Defaults)

	r := &Resolver{
		byPattern: make(map[string]*Profile, len(cfg.Overrides)),
		memo:      xsync.NewMapOf[string, *Profile](),
	}
	for pattern, raw := range cfg.Overrides {
		p, err := resolveOne(pattern, raw, defaults, named)
		if err != nil {
			return nil, err
		}
		r.byPattern[strings.ToLower(pattern)] = p
	}
	return r, nil
}

func resolveOne(pattern string, raw any, defaults map[string]any, named map[string]map[string]any) (*Profile, error) {
	if isDisabled(raw) {
		return nil, nil
	}
	switch x := raw.(type) {
	case *Profile:
		if x == nil {
			return nil, nil
		}
		if x.Timeout <= 0 {
			return nil, fmt.Errorf("%w: you must specify \"timeout\" option in %q profile", ErrMisconfigured, pattern)
		}
		return x.Clone(), nil
	case Profile:
		return resolveOne(pattern, &x, defaults, named)
	}

	if l, ok := toLegacy(raw); ok {
		opts, known := named[l.Name]
		if !known {
			return nil, fmt.Errorf("%w: unknown profile %q in %q", ErrMisconfigured, l.Name, pattern)
		}
		opts = merge(opts, l.Extra)
		opts[keyTimeout] = l.Timeout
		return build(pattern, opts)
	}

	if m, ok := toMap(raw); ok {
		return build(pattern, merge(defaults, m))
	}
	return nil, fmt.Errorf("%w: unsupported profile value %T in %q", ErrMisconfigured, raw, pattern)
}

// Lookup returns the profile for app.model or nil when it is not cached.
// The result is shared by every lookup of the same identity and must not be
// modified; use Clone for a private copy.
func (r *Resolver) Lookup(app, model string) *Profile {
	id := strings.ToLower(app + "." + model)
	p, _ := r.memo.LoadOrCompute(id, func() *Profile {
		for _, guess := range [...]string{id, strings.ToLower(app) + ".*", "*.*"} {
			if p, ok := r.byPattern[guess]; ok {
				return p
			}
		}
		return nil
	})
	return p
}

package profile

import (
	"fmt"
	"math"
	"reflect"
	"strconv"
	"strings"
	"time"
)

type disabled struct{}

// Disabled explicitly turns caching off for an override pattern.
var Disabled = disabled{}

// Legacy is the old positional form: a named profile, a timeout in seconds
// and optional option overrides.
type Legacy struct {
	Name    string
	Timeout any
	Extra   map[string]any
}

// field names accepted in profile maps
const (
	keyOps        = "ops"
	keyTimeout    = "timeout"
	keyLocalGet   = "local_get"
	keyDBAgnostic = "db_agnostic"
	keyLock       = "lock"
	keyWriteOnly  = "write_only"
)

// base is what every modern profile starts from before Config.Defaults.
func base() map[string]any {
	return map[string]any{
		keyOps:        []Op{},
		keyLocalGet:   false,
		keyDBAgnostic: true,
		keyWriteOnly:  false,
		keyLock:       false,
	}
}

func builtins() map[string]map[string]any {
	named := map[string]map[string]any{
		"just_enable": {},
		"all":         {keyOps: "all"},
		"get":         {keyOps: []Op{Get}},
		"count":       {keyOps: []Op{Count}},
	}
	for name, opts := range named {
		named[name] = merge(base(), opts)
	}
	return named
}

func merge(maps ...map[string]any) map[string]any {
	out := make(map[string]any)
	for _, m := range maps {
		for k, v := range m {
			out[strings.ToLower(k)] = v
		}
	}
	return out
}

// build turns a fully merged option map into a Profile.
func build(pattern string, opts map[string]any) (*Profile, error) {
	p := &Profile{}
	for k, v := range opts {
		var err error
		switch k {
		case keyOps:
			p.Ops, err = parseOps(v)
		case keyTimeout:
			p.Timeout, err = parseTimeout(v)
		case keyLocalGet:
			p.LocalGet, err = parseBool(v)
		case keyDBAgnostic:
			p.DBAgnostic, err = parseBool(v)
		case keyLock:
			p.Lock, err = parseBool(v)
		case keyWriteOnly:
			p.WriteOnly, err = parseBool(v)
		default:
			err = fmt.Errorf("unknown option %q", k)
		}
		if err != nil {
			return nil, fmt.Errorf("%w: profile %q: %s: %v", ErrMisconfigured, pattern, k, err)
		}
	}
	if _, ok := opts[keyTimeout]; !ok {
		return nil, fmt.Errorf("%w: you must specify \"timeout\" option in %q profile", ErrMisconfigured, pattern)
	}
	if p.Ops == nil {
		p.Ops = NewOps()
	}
	return p, nil
}

// parseOps accepts "all", a single op name, or a list of op names.
func parseOps(v any) (Ops, error) {
	switch x := v.(type) {
	case nil:
		return NewOps(), nil
	case Ops:
		return NewOps(x.Sorted()...), nil
	case string:
		if strings.EqualFold(x, "all") {
			return NewOps(AllOps...), nil
		}
		return parseOps([]string{x})
	case Op:
		return parseOps(string(x))
	}

	rv := reflect.ValueOf(v)
	if rv.Kind() != reflect.Slice && rv.Kind() != reflect.Array {
		return nil, fmt.Errorf("unsupported ops value %T", v)
	}
	out := NewOps()
	for i := 0; i < rv.Len(); i++ {
		s := fmt.Sprint(rv.Index(i).Interface())
		if strings.EqualFold(s, "all") {
			return NewOps(AllOps...), nil
		}
		op := Op(strings.ToLower(s))
		if !op.valid() {
			return nil, fmt.Errorf("unknown op %q", s)
		}
		out[op] = struct{}{}
	}
	return out, nil
}

// parseTimeout reads seconds (integer or float), a duration string, or a
// time.Duration. The result must be positive.
func parseTimeout(v any) (time.Duration, error) {
	var d time.Duration
	switch x := v.(type) {
	case time.Duration:
		d = x
	case int:
		d = time.Duration(x) * time.Second
	case int64:
		d = time.Duration(x) * time.Second
	case int32:
		d = time.Duration(x) * time.Second
	case uint:
		d = time.Duration(x) * time.Second
	case uint64:
		d = time.Duration(x) * time.Second
	case float64:
		if math.IsNaN(x) || math.IsInf(x, 0) {
			return 0, fmt.Errorf("invalid timeout %v", x)
		}
		d = time.Duration(x * float64(time.Second))
	case string:
		if n, err := strconv.Atoi(x); err == nil {
			d = time.Duration(n) * time.Second
			break
		}
		parsed, err := time.ParseDuration(x)
		if err != nil {
			return 0, fmt.Errorf("invalid timeout %q", x)
		}
		d = parsed
	default:
		return 0, fmt.Errorf("unsupported timeout value %T", v)
	}
	if d <= 0 {
		return 0, fmt.Errorf("timeout must be positive, got %v", d)
	}
	return d, nil
}

func parseBool(v any) (bool, error) {
	switch x := v.(type) {
	case bool:
		return x, nil
	case string:
		return strconv.ParseBool(x)
	}
	return false, fmt.Errorf("unsupported bool value %T", v)
}

// toMap converts decoded config maps (map[string]any, map[any]any) to
// map[string]any.
func toMap(v any) (map[string]any, bool) {
	switch x := v.(type) {
	case map[string]any:
		return x, true
	case map[any]any:
		out := make(map[string]any, len(x))
		for k, vv := range x {
			out[fmt.Sprint(k)] = vv
		}
		return out, true
	}
	return nil, false
}

// toLegacy recognizes the positional form in decoded config: [name, timeout] or
// [name, timeout, {options}].
func toLegacy(v any) (Legacy, bool) {
	switch x := v.(type) {
	case Legacy:
		return x, true
	case *Legacy:
		if x == nil {
			return Legacy{}, false
		}
		return *x, true
	}
	rv := reflect.ValueOf(v)
	if !rv.IsValid() || (rv.Kind() != reflect.Slice && rv.Kind() != reflect.Array) {
		return Legacy{}, false
	}
	if rv.Len() < 2 || rv.Len() > 3 {
		return Legacy{}, false
	}
	name, ok := rv.Index(0).Interface().(string)
	if !ok {
		return Legacy{}, false
	}
	l := Legacy{Name: name, Timeout: rv.Index(1).Interface()}
	if rv.Len() == 3 {
		extra, ok := toMap(rv.Index(2).Interface())
		if !ok {
			return Legacy{}, false
		}
		l.Extra = extra
	}
	return l, true
}

func isDisabled(v any) bool {
	switch x := v.(type) {
	case nil, disabled, *disabled:
		return true
	case bool:
		return !x
	case string:
		return strings.EqualFold(x, "disabled")
	}
	return false
}

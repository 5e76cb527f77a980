package conj

import (
	"database/sql/driver"
	"fmt"
	"reflect"
	"strconv"
	"strings"
	"time"
)

// NullToken is the encoded form of SQL NULL.
const NullToken = "%N"

// Expr marks values computed by the database (column references, arithmetic,
// function calls). They cannot be compared against a row snapshot.
type Expr interface {
	Expression() string
}

var escaper = strings.NewReplacer("%", "%25", "&", "%26", "=", "%3D")

func escape(s string) string { return escaper.Replace(s) }

// Encode serializes v for use in a conjunction key or a row snapshot.
// ok is false for expressions and types without a stable text form.
func Encode(v any) (string, bool) {
	s, null, ok := serialize(v, 0)
	if !ok {
		return "", false
	}
	if null {
		return NullToken, true
	}
	return escape(s), true
}

const maxDepth = 4

func serialize(v any, depth int) (s string, null, ok bool) {
	if depth > maxDepth {
		return "", false, false
	}
	switch x := v.(type) {
	case nil:
		return "", true, true
	case Expr:
		return "", false, false
	case string:
		return x, false, true
	case []byte:
		if x == nil {
			return "", true, true
		}
		return string(x), false, true
	case bool:
		return strconv.FormatBool(x), false, true
	case int:
		return strconv.FormatInt(int64(x), 10), false, true
	case int64:
		return strconv.FormatInt(x, 10), false, true
	case int32:
		return strconv.FormatInt(int64(x), 10), false, true
	case uint64:
		return strconv.FormatUint(x, 10), false, true
	case float64:
		return strconv.FormatFloat(x, 'g', -1, 64), false, true
	case float32:
		return strconv.FormatFloat(float64(x), 'g', -1, 32), false, true
	case time.Time:
		return x.UTC().Format(time.RFC3339Nano), false, true
	case driver.Valuer:
		rv := reflect.ValueOf(x)
		if rv.Kind() == reflect.Pointer && rv.IsNil() {
			return "", true, true
		}
		dv, err := x.Value()
		if err != nil {
			return "", false, false
		}
		return serialize(dv, depth+1)
	case fmt.Stringer:
		rv := reflect.ValueOf(x)
		if rv.Kind() == reflect.Pointer && rv.IsNil() {
			return "", true, true
		}
		return x.String(), false, true
	}
	return serializeReflect(reflect.ValueOf(v), depth)
}

// named types and pointers
func serializeReflect(rv reflect.Value, depth int) (string, bool, bool) {
	switch rv.Kind() {
	case reflect.Pointer:
		if rv.IsNil() {
			return "", true, true
		}
		return serialize(rv.Elem().Interface(), depth+1)
	case reflect.String:
		return rv.String(), false, true
	case reflect.Bool:
		return strconv.FormatBool(rv.Bool()), false, true
	case reflect.Int, reflect.Int8, reflect.Int16, reflect.Int32, reflect.Int64:
		return strconv.FormatInt(rv.Int(), 10), false, true
	case reflect.Uint, reflect.Uint8, reflect.Uint16, reflect.Uint32, reflect.Uint64:
		return strconv.FormatUint(rv.Uint(), 10), false, true
	case reflect.Float32:
		return strconv.FormatFloat(rv.Float(), 'g', -1, 32), false, true
	case reflect.Float64:
		return strconv.FormatFloat(rv.Float(), 'g', -1, 64), false, true
	}
	return "", false, false
}

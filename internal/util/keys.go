package util

import (
	"crypto/sha256"
	"database/sql/driver"
	"encoding/binary"
	"encoding/hex"
	"fmt"
	"hash"
	"reflect"
	"time"
)

// QueryPrefix is the keyspace owned by cached query results.
const QueryPrefix = "q:"

// QueryKey returns a deterministic cache key for a compiled query.
// db is mixed in only when non-empty, so db-agnostic callers pass "".
func QueryKey(op, sql string, args []any, db string) string {
	h := sha256.New()
	writeField(h, op)
	writeField(h, sql)
	for _, a := range args {
		writeField(h, argField(a))
	}
	if db != "" {
		writeField(h, "db:"+db)
	}
	sum := h.Sum(nil)
	return QueryPrefix + hex.EncodeToString(sum[:16])
}

// argField renders a bind arg by the value the driver would send, tagged
// with its type.
func argField(a any) string {
	v := bindValue(a)
	switch x := v.(type) {
	case nil:
		return "null"
	case time.Time:
		return "time:" + x.UTC().Format(time.RFC3339Nano)
	}
	return fmt.Sprintf("%T:%v", v, v)
}

const maxDeref = 8

// bindValue dereferences pointers (nil is NULL) and unwraps driver.Valuer.
func bindValue(a any) any {
	for i := 0; i < maxDeref; i++ {
		if a == nil {
			return nil
		}
		rv := reflect.ValueOf(a)
		if rv.Kind() == reflect.Pointer && rv.IsNil() {
			return nil
		}
		if v, ok := a.(driver.Valuer); ok {
			dv, err := v.Value()
			if err != nil {
				// unencodable: the driver would fail the query anyway
				return fmt.Sprintf("%T!%v", a, err)
			}
			a = dv
			continue
		}
		if rv.Kind() != reflect.Pointer {
			return a
		}
		a = rv.Elem().Interface()
	}
	return a
}

// length-prefix every field so ("ab","c") and ("a","bc") never collide
func writeField(h hash.Hash, s string) {
	var n [4]byte
	binary.BigEndian.PutUint32(n[:], uint32(len(s)))
	h.Write(n[:])
	h.Write([]byte(s))
}

// SignalKey is the wake-up list paired with a cache key.
func SignalKey(cacheKey string) string { return cacheKey + ":signal" }

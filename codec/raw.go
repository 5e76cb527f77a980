package codec

import (
	"fmt"
	"strconv"
)

// Bytes is an identity codec for results the caller already serialized.
type Bytes struct{}

func (Bytes) Encode(b []byte) ([]byte, error) { return b, nil }
func (Bytes) Decode(b []byte) ([]byte, error) { return b, nil }

// String stores UTF-8 text as is.
type String struct{}

func (String) Encode(s string) ([]byte, error) { return []byte(s), nil }
func (String) Decode(b []byte) (string, error) { return string(b), nil }

// Count stores the result of a count query as decimal text.
type Count struct{}

func (Count) Encode(n int64) ([]byte, error) { return strconv.AppendInt(nil, n, 10), nil }
func (Count) Decode(b []byte) (int64, error) {
	n, err := strconv.ParseInt(string(b), 10, 64)
	if err != nil {
		return 0, fmt.Errorf("codec: count: %w", err)
	}
	return n, nil
}

// Exists stores the result of an exists query as a single byte.
type Exists struct{}

func (Exists) Encode(ok bool) ([]byte, error) {
	if ok {
		return []byte{'1'}, nil
	}
	return []byte{'0'}, nil
}

func (Exists) Decode(b []byte) (bool, error) {
	if len(b) == 1 && (b[0] == '0' || b[0] == '1') {
		return b[0] == '1', nil
	}
	return false, fmt.Errorf("codec: exists: unexpected payload %q", b)
}

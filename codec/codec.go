// Package codec turns query results into cache payloads and back.
//
// The rowcache wire envelope wraps whatever a Codec produces, so codecs are
// free to emit any bytes, including the literal "LOCK".
package codec

// Codec encodes/decodes values V to []byte for storage.
type Codec[V any] interface {
	Encode(V) ([]byte, error)
	Decode([]byte) (V, error)
}

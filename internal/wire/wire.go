package wire

import (
	"bytes"
	"encoding/binary"
	"errors"
	"time"
)

const (
	version   byte = 1
	kindEntry byte = 1
)

var (
	ErrCorrupt = errors.New("rowcache: corrupt entry")
	magic4     = [...]byte{'R', 'O', 'W', 'C'}
)

// Sentinel marks a key whose value is being built. It never decodes as an entry.
var Sentinel = []byte("LOCK")

func hasMagic(b []byte) bool {
	return len(b) >= 4 && bytes.Equal(b[:4], magic4[:])
}

// IsSentinel reports whether b is the build-lock marker.
func IsSentinel(b []byte) bool { return bytes.Equal(b, Sentinel) }

// Entry: magic(4) | ver(1) | kind(1=entry) | built(i64 be, unix nanos) | vlen(u32 be) | payload(vlen)
func EncodeEntry(built time.Time, payload []byte) []byte {
	var buf bytes.Buffer
	buf.Grow(4 + 1 + 1 + 8 + 4 + len(payload))

	buf.Write(magic4[:])
	buf.WriteByte(version)
	buf.WriteByte(kindEntry)

	var u8 [8]byte
	var u4 [4]byte

	binary.BigEndian.PutUint64(u8[:], uint64(built.UnixNano()))
	buf.Write(u8[:])

	binary.BigEndian.PutUint32(u4[:], uint32(len(payload)))
	buf.Write(u4[:])

	buf.Write(payload)
	return buf.Bytes()
}

// DecodeEntry returns the build time and payload of an encoded entry.
// The payload aliases b.
func DecodeEntry(b []byte) (built time.Time, payload []byte, err error) {
	const hdr = 4 + 1 + 1 + 8 + 4
	if len(b) < hdr || !hasMagic(b) || b[4] != version || b[5] != kindEntry {
		return time.Time{}, nil, ErrCorrupt
	}

	off := 6
	built = time.Unix(0, int64(binary.BigEndian.Uint64(b[off:off+8])))
	off += 8

	vlen := int(binary.BigEndian.Uint32(b[off : off+4]))
	off += 4
	if vlen < 0 || vlen != len(b)-off { // trailing garbage is corruption too
		return time.Time{}, nil, ErrCorrupt
	}

	return built, b[off : off+vlen], nil
}

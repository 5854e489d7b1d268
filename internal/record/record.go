// Package record implements the on-disk Bitcask record format: a fixed
// 12-byte header followed by a key and an optional value. The codec is a
// pure function layer — it never touches a file descriptor, only byte
// slices — so file-manager and recovery code can depend on it without
// pulling in any I/O.
package record

import "encoding/binary"

// HeaderSize is the fixed length, in bytes, of an encoded record header:
// three little-endian uint32 fields (timestamp, key_size, value_size).
const HeaderSize = 12

// Tombstone is the value_size sentinel that marks a record as a deletion
// marker rather than a live value. A tombstone record carries no value
// bytes at all.
const Tombstone = 0

// Header is the fixed-size prefix of every on-disk record.
type Header struct {
	Timestamp uint32
	KeySize   uint32
	ValueSize uint32
}

// IsTombstone reports whether this header describes a deletion marker.
func (h Header) IsTombstone() bool {
	return h.ValueSize == Tombstone
}

// EncodeHeader serializes a header into its 12-byte on-disk form.
func EncodeHeader(h Header) [HeaderSize]byte {
	var buf [HeaderSize]byte
	binary.LittleEndian.PutUint32(buf[0:4], h.Timestamp)
	binary.LittleEndian.PutUint32(buf[4:8], h.KeySize)
	binary.LittleEndian.PutUint32(buf[8:12], h.ValueSize)
	return buf
}

// DecodeHeader parses a 12-byte buffer into a Header. The only failure mode
// is a buffer shorter than HeaderSize; a short read at end-of-file is the
// recovery terminator described by the storage format, so callers are
// expected to check buffer length themselves rather than treat this as an
// exceptional path.
func DecodeHeader(buf []byte) (Header, bool) {
	if len(buf) < HeaderSize {
		return Header{}, false
	}
	return Header{
		Timestamp: binary.LittleEndian.Uint32(buf[0:4]),
		KeySize:   binary.LittleEndian.Uint32(buf[4:8]),
		ValueSize: binary.LittleEndian.Uint32(buf[8:12]),
	}, true
}

// Locator is the keydir's pointer to a live value: which file it lives in,
// how many bytes it occupies, where those bytes begin, and when they were
// written. It never describes a tombstone — tombstones remove their key
// from the keydir instead of being stored in it.
type Locator struct {
	FileID    uint32
	ValueSize uint32
	ValuePos  uint64
	Timestamp uint32
}

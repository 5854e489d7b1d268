package storage

import (
	"io"
	"os"

	"github.com/nilotpaul/barrelkeep/internal/record"
	pkgerrors "github.com/nilotpaul/barrelkeep/pkg/errors"
)

// WriteRecord appends a single record — header, key, and (unless value is
// nil, which writes a tombstone) value — to f. It returns the absolute
// offset within f at which the value bytes begin (valuePos) and the total
// number of bytes written, so callers can track both the keydir locator and
// the file's new size without a separate stat call.
//
// Used directly by Storage's put/delete path for the active file, and by
// the compactor for its merge-output files — both write the exact same
// on-disk shape.
func WriteRecord(f *os.File, timestamp uint32, key []byte, value []byte) (valuePos uint64, written int64, err error) {
	valueSize := len(value)
	header := record.EncodeHeader(record.Header{
		Timestamp: timestamp,
		KeySize:   uint32(len(key)),
		ValueSize: uint32(valueSize),
	})

	buf := make([]byte, 0, record.HeaderSize+len(key)+valueSize)
	buf = append(buf, header[:]...)
	buf = append(buf, key...)
	pos := int64(len(buf))
	buf = append(buf, value...)

	offset, err := f.Seek(0, io.SeekEnd)
	if err != nil {
		return 0, 0, pkgerrors.NewStorageError(err, pkgerrors.ErrorCodeIO, "failed to seek to end of data file before append")
	}

	n, err := f.Write(buf)
	if err != nil {
		return 0, int64(n), pkgerrors.NewStorageError(err, pkgerrors.ErrorCodeIO, "failed to append record to data file").
			WithOffset(int(offset))
	}

	return uint64(offset) + uint64(pos), int64(n), nil
}

// Sync forces f's contents to stable storage (fsync). Go's os.File issues a
// plain write(2) with no user-space buffering, so every WriteRecord call has
// already handed its bytes to the OS by the time it returns — that alone is
// the "flush" the spec calls for by default. Sync is only invoked when a
// store is configured for fsync-on-write durability, which trades
// throughput for a stronger guarantee than the spec requires.
func Sync(f *os.File) error {
	if err := f.Sync(); err != nil {
		return pkgerrors.NewStorageError(err, pkgerrors.ErrorCodeIO, "failed to fsync data file")
	}
	return nil
}

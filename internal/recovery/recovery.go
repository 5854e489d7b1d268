// Package recovery rebuilds the in-memory keydir by replaying every data
// file on startup. There is no separate index snapshot or hint file — the
// data files themselves are the only source of truth, so recovery is
// always a full replay.
package recovery

import (
	"io"

	"github.com/nilotpaul/barrelkeep/internal/index"
	"github.com/nilotpaul/barrelkeep/internal/record"
	"github.com/nilotpaul/barrelkeep/internal/storage"
	pkgerrors "github.com/nilotpaul/barrelkeep/pkg/errors"
	"go.uber.org/zap"
)

// Rebuild scans every data file in fm, oldest id first, and replays its
// records into idx: a normal record sets the key's locator, a tombstone
// removes it. Replaying in ascending id order guarantees that whichever
// record for a key is seen last is also the most recently written one, so
// later writes always win.
//
// A file that ends mid-record (a header that never gets its full key/value
// body, e.g. because the process crashed mid-append) is not treated as
// fatal: recovery stops reading that file at the point of the short read
// and returns normally, since that file can only be the active file at the
// time of the crash and any tail it's missing was never acknowledged to a
// caller.
func Rebuild(fm *storage.FileManager, idx *index.Index, log *zap.SugaredLogger) error {
	ids, err := fm.ListDataFiles()
	if err != nil {
		return err
	}

	var total int
	for _, id := range ids {
		n, err := replayFile(fm, idx, id, log)
		if err != nil {
			return err
		}
		total += n
	}

	log.Infow("keydir rebuilt", "files", len(ids), "recordsReplayed", total, "liveKeys", idx.Len())
	return nil
}

func replayFile(fm *storage.FileManager, idx *index.Index, id uint32, log *zap.SugaredLogger) (int, error) {
	file, err := fm.OpenRead(id)
	if err != nil {
		return 0, err
	}
	defer file.Close()

	var offset int64
	var count int
	headerBuf := make([]byte, record.HeaderSize)

	for {
		n, err := file.ReadAt(headerBuf, offset)
		if err != nil && err != io.EOF {
			return count, pkgerrors.NewStorageError(err, pkgerrors.ErrorCodeIO, "failed to read record header during recovery").
				WithSegmentID(int(id)).WithOffset(int(offset))
		}
		if n < record.HeaderSize {
			// End of file, or a torn header shorter than HeaderSize left by
			// a crash: either way no further complete record follows.
			break
		}

		header, ok := record.DecodeHeader(headerBuf)
		if !ok {
			break
		}

		keyStart := offset + record.HeaderSize
		key := make([]byte, header.KeySize)
		if _, err := file.ReadAt(key, keyStart); err != nil {
			if err == io.EOF || err == io.ErrUnexpectedEOF {
				log.Warnw("truncated record key during recovery, stopping replay of this file",
					"fileId", id, "offset", offset)
				break
			}
			return count, pkgerrors.NewStorageError(err, pkgerrors.ErrorCodeIO, "failed to read record key during recovery").
				WithSegmentID(int(id)).WithOffset(int(keyStart))
		}

		valueStart := keyStart + int64(header.KeySize)
		if header.IsTombstone() {
			idx.Delete(string(key))
			offset = valueStart
			count++
			continue
		}

		value := make([]byte, header.ValueSize)
		if _, err := file.ReadAt(value, valueStart); err != nil {
			if err == io.EOF || err == io.ErrUnexpectedEOF {
				log.Warnw("truncated record value during recovery, stopping replay of this file",
					"fileId", id, "offset", offset)
				break
			}
			return count, pkgerrors.NewStorageError(err, pkgerrors.ErrorCodeIO, "failed to read record value during recovery").
				WithSegmentID(int(id)).WithOffset(int(valueStart))
		}

		idx.Set(string(key), record.Locator{
			FileID:    id,
			ValueSize: header.ValueSize,
			ValuePos:  uint64(valueStart),
			Timestamp: header.Timestamp,
		})

		offset = valueStart + int64(header.ValueSize)
		count++
	}

	return count, nil
}

package storage

import (
	"fmt"
	"io"

	"github.com/nilotpaul/barrelkeep/internal/record"
	pkgerrors "github.com/nilotpaul/barrelkeep/pkg/errors"
	"github.com/nilotpaul/barrelkeep/pkg/options"
	"go.uber.org/zap"
)

// Config holds the parameters needed to open a Storage.
type Config struct {
	DataDir string
	Options *options.Options
	Logger  *zap.SugaredLogger
}

// Storage owns the active data file and the directory of immutable files
// behind it. It exposes only the two primitives the engine needs to build
// put/get/delete on top of: Append a record to the active file, and
// ReadValue a value out of any file by locator. Storage itself takes no
// lock — every call is made while the engine already holds its RWMutex, or
// (for ReadValue) relies on the invariant that a file referenced by a live
// locator is never removed out from under a concurrent reader.
type Storage struct {
	fm     *FileManager
	log    *zap.SugaredLogger
	active *ActiveFile

	threshold uint64
	fsync     bool
}

// New opens (or creates) the data directory at cfg.DataDir and selects the
// active file to append to, per spec.md's rotation rule: reuse the
// highest-id file if it is below threshold, otherwise mint a new one.
func New(cfg *Config) (*Storage, error) {
	fm, err := NewFileManager(cfg.DataDir, cfg.Logger)
	if err != nil {
		return nil, err
	}

	active, err := fm.ChooseActive(cfg.Options.Threshold)
	if err != nil {
		return nil, err
	}

	cfg.Logger.Infow("storage opened", "dataDir", cfg.DataDir, "activeFileId", active.ID(), "activeFileSize", active.Size())

	return &Storage{
		fm:        fm,
		log:       cfg.Logger,
		active:    active,
		threshold: cfg.Options.Threshold,
		fsync:     cfg.Options.Fsync,
	}, nil
}

// FileManager exposes the underlying file manager, used by recovery (to
// list and replay every file at startup) and by the compactor (to create
// merge-output files and remove stale ones).
func (s *Storage) FileManager() *FileManager {
	return s.fm
}

// ActiveFileID returns the id of the file currently receiving appends.
func (s *Storage) ActiveFileID() uint32 {
	return s.active.ID()
}

// Append writes one record to the active file, rotating to a new file
// first if the record would push the active file's size at or past
// threshold. It returns the locator the keydir should store for this key.
func (s *Storage) Append(timestamp uint32, key, value []byte) (record.Locator, error) {
	projected := uint64(s.active.Size()) + uint64(record.HeaderSize+len(key)+len(value))
	if projected >= s.threshold {
		if err := s.rotate(); err != nil {
			return record.Locator{}, err
		}
	}

	valuePos, written, err := WriteRecord(s.active.file, timestamp, key, value)
	if err != nil {
		return record.Locator{}, err
	}
	s.active.size += written

	if s.fsync {
		if err := Sync(s.active.file); err != nil {
			return record.Locator{}, err
		}
	}

	return record.Locator{
		FileID:    s.active.ID(),
		ValueSize: uint32(len(value)),
		ValuePos:  valuePos,
		Timestamp: timestamp,
	}, nil
}

// rotate closes the current active file and opens a fresh one at the next id.
func (s *Storage) rotate() error {
	nextID := s.active.ID() + 1
	if err := s.active.Close(); err != nil {
		return pkgerrors.NewStorageError(err, pkgerrors.ErrorCodeIO, "failed to close active data file before rotation").
			WithSegmentID(int(s.active.ID()))
	}

	file, err := s.fm.CreateFile(nextID)
	if err != nil {
		return err
	}

	s.log.Infow("rotated active data file", "previousFileId", s.active.ID(), "newFileId", nextID)
	s.active = &ActiveFile{id: nextID, file: file, size: 0}
	return nil
}

// ReadValue reads exactly loc.ValueSize bytes from loc.FileID at loc.ValuePos.
// It opens the target file fresh for every call rather than caching handles,
// since a read may target any file in the directory, not just the active one.
func (s *Storage) ReadValue(loc record.Locator) ([]byte, error) {
	file, err := s.fm.OpenRead(loc.FileID)
	if err != nil {
		return nil, err
	}
	defer file.Close()

	buf := make([]byte, loc.ValueSize)
	if _, err := file.ReadAt(buf, int64(loc.ValuePos)); err != nil {
		if err == io.EOF || err == io.ErrUnexpectedEOF {
			return nil, pkgerrors.NewCorruptionError(NameFromID(loc.FileID), int(loc.ValuePos), err)
		}
		return nil, pkgerrors.NewStorageError(err, pkgerrors.ErrorCodeIO, "failed to read value").
			WithSegmentID(int(loc.FileID)).WithOffset(int(loc.ValuePos))
	}

	return buf, nil
}

// Close closes the active file handle. Immutable files are opened and
// closed per-call and hold no long-lived handle here.
func (s *Storage) Close() error {
	if err := s.active.Close(); err != nil {
		return pkgerrors.NewStorageError(err, pkgerrors.ErrorCodeIO, "failed to close active data file").
			WithSegmentID(int(s.active.ID()))
	}
	return nil
}

// String renders the active file's name, used in log fields.
func (s *Storage) String() string {
	return fmt.Sprintf("storage(active=%s)", NameFromID(s.active.ID()))
}

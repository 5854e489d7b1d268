// Package storage manages the directory of append-only data files that back
// a store: naming, creation, rotation, and the low-level append/read
// primitives the write and read paths build on. Exactly one data file is
// ever open for appends at a time; every other file in the directory is
// immutable once it stops being active.
package storage

import (
	"fmt"
	"os"
	"path/filepath"
	"slices"
	"strconv"
	"strings"

	pkgerrors "github.com/nilotpaul/barrelkeep/pkg/errors"
	"github.com/nilotpaul/barrelkeep/pkg/filesys"
	"go.uber.org/zap"
)

// fileSuffix is the extension every data file carries.
const fileSuffix = ".data"

// fileDigits is the zero-padded width of a data file's numeric id.
const fileDigits = 6

// FileManager names, creates, lists, and removes the data files that live
// in a single store directory. It holds no notion of which file is
// currently active — that is Storage's job — it only ever deals in file ids.
type FileManager struct {
	dir string
	log *zap.SugaredLogger
}

// NewFileManager creates a FileManager rooted at dir. dir is created if it
// does not already exist.
func NewFileManager(dir string, log *zap.SugaredLogger) (*FileManager, error) {
	if err := filesys.CreateDir(dir, 0755, true); err != nil {
		return nil, pkgerrors.ClassifyDirectoryCreationError(err, dir)
	}
	return &FileManager{dir: dir, log: log}, nil
}

// NameFromID formats a file id into its on-disk name, e.g. 17 -> "000017.data".
func NameFromID(id uint32) string {
	return fmt.Sprintf("%0*d%s", fileDigits, id, fileSuffix)
}

// IDFromName parses a data file's name back into its numeric id.
func IDFromName(name string) (uint32, error) {
	base := strings.TrimSuffix(filepath.Base(name), fileSuffix)
	id, err := strconv.ParseUint(base, 10, 32)
	if err != nil {
		return 0, pkgerrors.NewStorageError(
			err, pkgerrors.ErrorCodeSegmentCorrupted, "failed to parse data file id from name",
		).WithFileName(name)
	}
	return uint32(id), nil
}

// Path returns the absolute path of the data file with the given id.
func (fm *FileManager) Path(id uint32) string {
	return filepath.Join(fm.dir, NameFromID(id))
}

// ListDataFiles returns the ids of every data file in the directory, sorted
// ascending. Sorting the zero-padded names lexicographically is equivalent
// to sorting the ids numerically.
func (fm *FileManager) ListDataFiles() ([]uint32, error) {
	entries, err := os.ReadDir(fm.dir)
	if err != nil {
		return nil, pkgerrors.NewStorageError(err, pkgerrors.ErrorCodeIO, "failed to list data directory").
			WithPath(fm.dir)
	}

	names := make([]string, 0, len(entries))
	for _, entry := range entries {
		if entry.IsDir() {
			continue
		}
		if strings.HasSuffix(entry.Name(), fileSuffix) {
			names = append(names, entry.Name())
		}
	}
	slices.Sort(names)

	ids := make([]uint32, 0, len(names))
	for _, name := range names {
		id, err := IDFromName(name)
		if err != nil {
			return nil, err
		}
		ids = append(ids, id)
	}
	return ids, nil
}

// SizeOf returns the current byte length of the data file with the given id.
func (fm *FileManager) SizeOf(id uint32) (int64, error) {
	info, err := os.Stat(fm.Path(id))
	if err != nil {
		return 0, pkgerrors.NewStorageError(err, pkgerrors.ErrorCodeIO, "failed to stat data file").
			WithSegmentID(int(id)).WithPath(fm.Path(id))
	}
	return info.Size(), nil
}

// CreateFile creates a new data file for the given id in append+read mode.
// It fails if a file of that id already exists with nonzero length — that
// is treated as a corruption signal, since file ids are meant to be minted
// once each and never reused.
func (fm *FileManager) CreateFile(id uint32) (*os.File, error) {
	path := fm.Path(id)

	if info, err := os.Stat(path); err == nil && info.Size() > 0 {
		return nil, pkgerrors.NewStorageError(
			nil, pkgerrors.ErrorCodeSegmentCorrupted, "refusing to create data file over nonzero-length existing file",
		).WithSegmentID(int(id)).WithPath(path)
	}

	file, err := os.OpenFile(path, os.O_CREATE|os.O_RDWR|os.O_APPEND, 0644)
	if err != nil {
		return nil, pkgerrors.ClassifyFileOpenError(err, path, NameFromID(id))
	}
	return file, nil
}

// OpenRead opens an existing data file for reading only.
func (fm *FileManager) OpenRead(id uint32) (*os.File, error) {
	path := fm.Path(id)
	file, err := os.OpenFile(path, os.O_RDONLY, 0644)
	if err != nil {
		return nil, pkgerrors.ClassifyFileOpenError(err, path, NameFromID(id))
	}
	return file, nil
}

// Remove deletes the data file with the given id from disk.
func (fm *FileManager) Remove(id uint32) error {
	if err := os.Remove(fm.Path(id)); err != nil {
		return pkgerrors.NewStorageError(err, pkgerrors.ErrorCodeIO, "failed to remove data file").
			WithSegmentID(int(id)).WithPath(fm.Path(id))
	}
	return nil
}

// ActiveFile is a data file currently open for appends, along with its id
// and the number of bytes written to it so far.
type ActiveFile struct {
	id   uint32
	file *os.File
	size int64
}

// ID returns the file's numeric id.
func (a *ActiveFile) ID() uint32 { return a.id }

// Size returns the number of bytes appended to the file so far.
func (a *ActiveFile) Size() int64 { return a.size }

// Close closes the underlying file descriptor.
func (a *ActiveFile) Close() error { return a.file.Close() }

// ChooseActive returns a handle to the file that should receive the next
// append: the highest-id existing file if its size is strictly below
// threshold, or a freshly created file one id higher. When the directory is
// empty, it creates file id 0.
func (fm *FileManager) ChooseActive(threshold uint64) (*ActiveFile, error) {
	ids, err := fm.ListDataFiles()
	if err != nil {
		return nil, err
	}

	if len(ids) == 0 {
		file, err := fm.CreateFile(0)
		if err != nil {
			return nil, err
		}
		return &ActiveFile{id: 0, file: file, size: 0}, nil
	}

	latest := ids[len(ids)-1]
	size, err := fm.SizeOf(latest)
	if err != nil {
		return nil, err
	}

	if uint64(size) < threshold {
		file, err := os.OpenFile(fm.Path(latest), os.O_RDWR|os.O_APPEND, 0644)
		if err != nil {
			return nil, pkgerrors.ClassifyFileOpenError(err, fm.Path(latest), NameFromID(latest))
		}
		return &ActiveFile{id: latest, file: file, size: size}, nil
	}

	file, err := fm.CreateFile(latest + 1)
	if err != nil {
		return nil, err
	}
	return &ActiveFile{id: latest + 1, file: file, size: 0}, nil
}

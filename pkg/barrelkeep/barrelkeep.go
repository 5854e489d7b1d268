// Package barrelkeep provides a high-performance key/value data store
// designed for fast read and write operations, inspired by Bitcask.
// It combines an in-memory hash table (the keydir) with an append-only log
// structure on disk to achieve high throughput. It is designed for
// applications requiring fast read and write operations, such as caching,
// session management, and real-time data processing, aiming to provide a
// simple, efficient, and reliable solution for persistent key/value storage
// in Go applications.
package barrelkeep

import (
	"path/filepath"
	"sync"

	"github.com/gofrs/flock"
	"github.com/nilotpaul/barrelkeep/internal/engine"
	pkgerrors "github.com/nilotpaul/barrelkeep/pkg/errors"
	"github.com/nilotpaul/barrelkeep/pkg/filesys"
	"github.com/nilotpaul/barrelkeep/pkg/logger"
	"github.com/nilotpaul/barrelkeep/pkg/options"
)

// lockFileName is the advisory lock file every store directory carries,
// held for as long as any process has that directory open.
const lockFileName = ".barrelkeep.lock"

// registry tracks stores that are currently open, keyed by the absolute
// path of their data directory, so that calling Open twice for the same
// directory from within one process returns the same *Store instead of
// opening the data files twice and racing two engines against each other.
var registry = struct {
	mu     sync.Mutex
	stores map[string]*entry
}{stores: make(map[string]*entry)}

type entry struct {
	store    *Store
	refCount int
}

// Store is the primary entry point for interacting with a barrelkeep data
// directory: setting, getting, and deleting key-value pairs.
type Store struct {
	path    string
	engine  *engine.Engine
	options *options.Options
	lock    *flock.Flock
}

// Open opens (creating if necessary) the barrelkeep store rooted at path.
// Calling Open again for the same absolute path from within this process
// returns the same *Store and bumps a reference count; Close decrements it
// and only tears the store down once the count reaches zero. A second
// process attempting to open the same path fails with an AlreadyOpen error,
// enforced by an advisory file lock in the directory.
func Open(path string, opts ...options.OptionFunc) (*Store, error) {
	abs, err := filepath.Abs(path)
	if err != nil {
		return nil, pkgerrors.NewStorageError(err, pkgerrors.ErrorCodeIO, "failed to resolve store path").WithPath(path)
	}

	registry.mu.Lock()
	defer registry.mu.Unlock()

	if e, ok := registry.stores[abs]; ok {
		e.refCount++
		return e.store, nil
	}

	defaultOpts := options.NewDefaultOptions()
	defaultOpts.DataDir = abs
	for _, opt := range opts {
		opt(&defaultOpts)
	}

	log := logger.New("barrelkeep")

	if err := filesys.CreateDir(abs, 0755, true); err != nil {
		return nil, pkgerrors.ClassifyDirectoryCreationError(err, abs)
	}

	lock := flock.New(filepath.Join(abs, lockFileName))
	locked, err := lock.TryLock()
	if err != nil {
		return nil, pkgerrors.NewStorageError(err, pkgerrors.ErrorCodeIO, "failed to acquire store directory lock").WithPath(abs)
	}
	if !locked {
		return nil, pkgerrors.NewAlreadyOpenError(abs)
	}

	eng, err := engine.New(&engine.Config{Logger: log, Options: &defaultOpts})
	if err != nil {
		_ = lock.Unlock()
		return nil, err
	}

	store := &Store{path: abs, engine: eng, options: &defaultOpts, lock: lock}
	registry.stores[abs] = &entry{store: store, refCount: 1}
	return store, nil
}

// Put stores a key-value pair in the store. If the key already exists, its
// value is overwritten. The record is written to the append-only log before
// returning; it is forced to stable storage (fsync) only when the store was
// opened with options.WithFsync(true).
func (s *Store) Put(key string, value []byte) error {
	return s.engine.Put([]byte(key), value)
}

// Get retrieves the value associated with the given key.
func (s *Store) Get(key string) ([]byte, error) {
	return s.engine.Get([]byte(key))
}

// Delete removes a key-value pair from the store. The operation appends a
// tombstone record and removes the key from the keydir immediately; the
// space the old value occupied on disk is reclaimed by the next merge.
func (s *Store) Delete(key string) error {
	return s.engine.Delete([]byte(key))
}

// Close releases this handle's reference to the store. The engine, and the
// advisory directory lock, are only torn down once every caller that
// opened this path has also closed it.
func (s *Store) Close() error {
	registry.mu.Lock()
	defer registry.mu.Unlock()

	e, ok := registry.stores[s.path]
	if !ok {
		return nil
	}

	e.refCount--
	if e.refCount > 0 {
		return nil
	}
	delete(registry.stores, s.path)

	if err := s.engine.Close(); err != nil {
		return err
	}
	return s.lock.Unlock()
}

// Package engine provides the core database engine implementation for the
// barrelkeep storage system.
//
// The engine serves as the central coordinator and entry point for all
// database operations. It orchestrates the interaction between three main
// subsystems:
//   - Index: the in-memory keydir mapping keys to on-disk locators
//   - Storage: the append-only data files and the active-file write path
//   - Compaction: background reclamation of space held by stale records
//
// Engine owns the single RWMutex that guards the (keydir, active file)
// pair: put and delete take the full write lock, get takes the read lock
// only long enough to copy a locator out of the keydir before releasing it
// and reading the value file unlocked.
package engine

import (
	"errors"
	"sync"
	"sync/atomic"
	"time"
	"unicode/utf8"

	"github.com/nilotpaul/barrelkeep/internal/compaction"
	"github.com/nilotpaul/barrelkeep/internal/index"
	"github.com/nilotpaul/barrelkeep/internal/recovery"
	"github.com/nilotpaul/barrelkeep/internal/storage"
	pkgerrors "github.com/nilotpaul/barrelkeep/pkg/errors"
	"github.com/nilotpaul/barrelkeep/pkg/options"
	"go.uber.org/zap"
)

// ErrEngineClosed is returned when attempting to perform operations on a closed engine.
var ErrEngineClosed = errors.New("operation failed: cannot access closed engine")

// maxKeySize is the largest key the on-disk key_size field can encode.
const maxKeySize = 1<<32 - 1

// Engine coordinates the index, storage, and compaction subsystems behind
// a single lock, and is the thing pkg/barrelkeep's public Store wraps.
type Engine struct {
	options *options.Options
	log     *zap.SugaredLogger
	closed  atomic.Bool

	mu      sync.RWMutex
	index   *index.Index
	storage *storage.Storage

	compactor *compaction.Compactor
}

// Config holds all the parameters needed to initialize a new Engine instance.
type Config struct {
	Options *options.Options
	Logger  *zap.SugaredLogger
}

// New opens the data directory, rebuilds the keydir from it, and starts
// the background compactor.
func New(config *Config) (*Engine, error) {
	st, err := storage.New(&storage.Config{
		DataDir: config.Options.DataDir,
		Options: config.Options,
		Logger:  config.Logger,
	})
	if err != nil {
		return nil, err
	}

	idx := index.New(2048)
	if err := recovery.Rebuild(st.FileManager(), idx, config.Logger); err != nil {
		_ = st.Close()
		return nil, err
	}

	e := &Engine{
		options: config.Options,
		log:     config.Logger,
		index:   idx,
		storage: st,
	}

	e.compactor = compaction.New(compaction.Config{
		Interval:  config.Options.MergeInterval,
		FileLimit: config.Options.MergeFileLimit,
		Threshold: config.Options.Threshold,
		Index:     idx,
		Storage:   st,
		Lock:      e.mu.Lock,
		Unlock:    e.mu.Unlock,
		Logger:    config.Logger,
	})
	e.compactor.Start()

	return e, nil
}

// Put writes key/value as a new record in the active file and points the
// keydir at it, overwriting any previous locator for key.
func (e *Engine) Put(key, value []byte) error {
	if e.closed.Load() {
		return ErrEngineClosed
	}
	if err := validateKey(key); err != nil {
		return err
	}
	if len(value) == 0 {
		return pkgerrors.NewEmptyValueError(string(key))
	}

	e.mu.Lock()
	defer e.mu.Unlock()

	loc, err := e.storage.Append(uint32(time.Now().Unix()), key, value)
	if err != nil {
		return err
	}
	e.index.Set(string(key), loc)
	return nil
}

// Get returns the current value for key, or a not-found error if key has
// no live entry.
func (e *Engine) Get(key []byte) ([]byte, error) {
	if e.closed.Load() {
		return nil, ErrEngineClosed
	}
	if err := validateKey(key); err != nil {
		return nil, err
	}

	e.mu.RLock()
	loc, err := e.index.Get(string(key))
	e.mu.RUnlock()
	if err != nil {
		return nil, err
	}

	return e.storage.ReadValue(loc)
}

// Delete appends a tombstone record for key and removes it from the
// keydir. Deleting a key that does not currently exist is a no-op error
// (spec.md treats it the same as a miss on Get).
func (e *Engine) Delete(key []byte) error {
	if e.closed.Load() {
		return ErrEngineClosed
	}
	if err := validateKey(key); err != nil {
		return err
	}

	e.mu.Lock()
	defer e.mu.Unlock()

	if _, err := e.index.Get(string(key)); err != nil {
		return err
	}

	if _, err := e.storage.Append(uint32(time.Now().Unix()), key, nil); err != nil {
		return err
	}
	e.index.Delete(string(key))
	return nil
}

// Close stops the background compactor and closes the storage subsystem.
// It takes the write lock first, so a put or delete already in progress
// completes before the active file is closed. Close does not fsync the
// active file.
func (e *Engine) Close() error {
	if !e.closed.CompareAndSwap(false, true) {
		return ErrEngineClosed
	}

	e.compactor.Stop()

	e.mu.Lock()
	defer e.mu.Unlock()
	return e.storage.Close()
}

func validateKey(key []byte) error {
	if len(key) == 0 {
		return pkgerrors.NewRequiredFieldError("key")
	}
	if len(key) > maxKeySize {
		return pkgerrors.NewInvalidKeyError(string(key), "exceeds maximum key size")
	}
	if !utf8.Valid(key) {
		return pkgerrors.NewInvalidKeyError(string(key), "not valid UTF-8")
	}
	return nil
}

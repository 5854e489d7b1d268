// Package options provides data structures and functions for configuring a
// barrelkeep store. It defines the parameters that control storage
// behavior, durability, and background compaction, such as the directory
// path, the file-rotation threshold, and the merge pass's wake interval.
package options

import (
	"strings"
	"time"
)

// Options defines the configuration parameters for a barrelkeep store. It
// provides control over storage, durability, and compaction behavior.
type Options struct {
	// Specifies the base path where data files will be stored.
	//
	// Default: "/var/lib/barrelkeep"
	DataDir string `json:"dataDir"`

	// Threshold is the data file size, in bytes, at or above which the
	// active file is rotated to a new id. Checked against the *projected*
	// size a record would produce, so an append that would bring the file
	// to the threshold goes to a fresh file instead. A single record at
	// least as large as the threshold still lands whole in that fresh file.
	//
	//  - Default: 10MiB
	//  - Maximum: 4GiB
	//  - Minimum: 1MiB
	Threshold uint64 `json:"threshold"`

	// MergeInterval is how often the background compactor wakes to check
	// whether a merge pass is due. More frequent wakeups mean more
	// promptly-reclaimed disk space but higher background I/O.
	//
	// Default: 60s
	MergeInterval time.Duration `json:"mergeInterval"`

	// MergeFileLimit is the minimum number of data files that must be
	// present (excluding the active file's own count toward the total)
	// before a wakeup turns into an actual merge pass.
	//
	// Default: 10
	MergeFileLimit int `json:"mergeFileLimit"`

	// Fsync, when true, forces every appended record to stable storage
	// before put/delete returns. The default favors throughput: writes are
	// handed to the OS (which is already durable against process crashes)
	// but not forced to disk on every call.
	//
	// Default: false
	Fsync bool `json:"fsync"`
}

// OptionFunc is a function type that modifies a store's configuration.
type OptionFunc func(*Options)

// WithDefaultOptions applies a predefined set of default configuration
// values to the Options struct.
func WithDefaultOptions() OptionFunc {
	return func(o *Options) {
		opts := NewDefaultOptions()
		o.DataDir = opts.DataDir
		o.Threshold = opts.Threshold
		o.MergeInterval = opts.MergeInterval
		o.MergeFileLimit = opts.MergeFileLimit
		o.Fsync = opts.Fsync
	}
}

// WithDataDir sets the primary data directory for the store.
func WithDataDir(directory string) OptionFunc {
	return func(o *Options) {
		directory = strings.TrimSpace(directory)
		if directory != "" {
			o.DataDir = directory
		}
	}
}

// WithMergeInterval sets the interval at which the background compactor
// wakes to check whether a merge pass is due.
func WithMergeInterval(interval time.Duration) OptionFunc {
	return func(o *Options) {
		if interval > 0 {
			o.MergeInterval = interval
		}
	}
}

// WithMergeFileLimit sets the minimum data-file count that triggers a merge
// pass on a compactor wakeup.
func WithMergeFileLimit(limit int) OptionFunc {
	return func(o *Options) {
		if limit > 0 {
			o.MergeFileLimit = limit
		}
	}
}

// WithThreshold sets the file-rotation size trigger, in bytes.
func WithThreshold(size uint64) OptionFunc {
	return func(o *Options) {
		if size >= MinThreshold && size <= MaxThreshold {
			o.Threshold = size
		}
	}
}

// WithFsync enables or disables fsync-on-write durability.
func WithFsync(enabled bool) OptionFunc {
	return func(o *Options) {
		o.Fsync = enabled
	}
}

package options

import "time"

const (
	// DefaultDataDir is the base directory barrelkeep stores its data files
	// in if no other directory is specified during initialization.
	DefaultDataDir = "/var/lib/barrelkeep"

	// DefaultMergeInterval is how often the background compactor wakes to
	// check whether a merge pass is due.
	DefaultMergeInterval = time.Second * 60

	// DefaultMergeFileLimit is the minimum data-file count that triggers a
	// merge pass on a compactor wakeup.
	DefaultMergeFileLimit = 10

	// MinThreshold is the smallest file-rotation size accepted (1MiB).
	MinThreshold uint64 = 1 * 1024 * 1024

	// MaxThreshold is the largest file-rotation size accepted (4GiB).
	MaxThreshold uint64 = 4 * 1024 * 1024 * 1024

	// DefaultThreshold is the file-rotation size used when none is
	// specified (10MiB).
	DefaultThreshold uint64 = 10 * 1024 * 1024

	// DefaultFsync is whether fsync-on-write durability is enabled absent
	// an explicit choice.
	DefaultFsync = false
)

// defaultOptions holds the default configuration settings for a
// barrelkeep store.
var defaultOptions = Options{
	DataDir:        DefaultDataDir,
	Threshold:      DefaultThreshold,
	MergeInterval:  DefaultMergeInterval,
	MergeFileLimit: DefaultMergeFileLimit,
	Fsync:          DefaultFsync,
}

// NewDefaultOptions returns a copy of barrelkeep's default configuration.
func NewDefaultOptions() Options {
	return defaultOptions
}

// Package index implements the in-memory keydir: a hash table mapping every
// live key to the on-disk location of its most recent value. This is the
// core Bitcask optimization — a get never scans a file, it looks up a
// pointer here and then does one direct read.
//
// Index carries no lock of its own. Every store operation already holds the
// engine's single RWMutex before touching the keydir, so adding a second
// lock here would only buy double-locking bugs, not additional safety.
package index

import (
	"github.com/nilotpaul/barrelkeep/internal/record"
	"github.com/nilotpaul/barrelkeep/pkg/errors"
)

// Index is the in-memory map from key to the locator of its latest value.
// A key present in the map is live; a deleted key is removed from the map
// entirely rather than marked, so Len always reflects the live key count.
type Index struct {
	entries map[string]record.Locator
}

// New creates an empty Index with room for cap entries before its backing
// map needs to grow.
func New(cap int) *Index {
	return &Index{entries: make(map[string]record.Locator, cap)}
}

// Set inserts or overwrites the locator for key.
func (idx *Index) Set(key string, loc record.Locator) {
	idx.entries[key] = loc
}

// Get returns the locator for key, or a not-found error if key has no live
// entry — either it was never written or the last write was a delete.
func (idx *Index) Get(key string) (record.Locator, error) {
	loc, ok := idx.entries[key]
	if !ok {
		return record.Locator{}, errors.NewKeyNotFoundError(key)
	}
	return loc, nil
}

// Delete removes key from the index. It is not an error to delete a key
// that has no entry; callers that need "was it present" should call Get
// first.
func (idx *Index) Delete(key string) {
	delete(idx.entries, key)
}

// Len returns the number of live keys currently tracked.
func (idx *Index) Len() int {
	return len(idx.entries)
}

// Range calls fn once for every live entry, in unspecified order. Range
// stops early if fn returns false. Used by the compactor to enumerate
// everything that needs rewriting during a merge pass.
func (idx *Index) Range(fn func(key string, loc record.Locator) bool) {
	for k, v := range idx.entries {
		if !fn(k, v) {
			return
		}
	}
}

// CompareAndSet repoints key's locator to next only if its current locator
// still equals prev. It reports whether the swap happened. The compactor
// uses this to repoint an entry it just rewrote without clobbering a
// foreground write that landed on the same key while the merge was in
// flight: if the entry changed out from under it, the foreground write
// wins and the compactor's rewritten copy is simply stale.
func (idx *Index) CompareAndSet(key string, prev, next record.Locator) bool {
	cur, ok := idx.entries[key]
	if !ok || cur != prev {
		return false
	}
	idx.entries[key] = next
	return true
}

package index

import (
	"testing"

	"github.com/nilotpaul/barrelkeep/internal/record"
	pkgerrors "github.com/nilotpaul/barrelkeep/pkg/errors"
)

func TestSetGetDelete(t *testing.T) {
	idx := New(0)

	if _, err := idx.Get("missing"); err == nil {
		t.Fatal("expected error for missing key")
	}

	loc := record.Locator{FileID: 1, ValueSize: 4, ValuePos: 12, Timestamp: 100}
	idx.Set("key", loc)

	got, err := idx.Get("key")
	if err != nil {
		t.Fatalf("Get: %v", err)
	}
	if got != loc {
		t.Errorf("expected %+v, got %+v", loc, got)
	}

	if idx.Len() != 1 {
		t.Errorf("expected Len 1, got %d", idx.Len())
	}

	idx.Delete("key")
	if _, err := idx.Get("key"); err == nil {
		t.Fatal("expected error after delete")
	}
	if idx.Len() != 0 {
		t.Errorf("expected Len 0 after delete, got %d", idx.Len())
	}
}

func TestGetMissingReturnsIndexError(t *testing.T) {
	idx := New(0)
	_, err := idx.Get("absent")
	if !pkgerrors.IsIndexError(err) {
		t.Fatalf("expected IndexError, got %T: %v", err, err)
	}
}

func TestSetOverwritesExistingEntry(t *testing.T) {
	idx := New(0)
	idx.Set("key", record.Locator{FileID: 1, ValuePos: 1})
	idx.Set("key", record.Locator{FileID: 2, ValuePos: 2})

	got, err := idx.Get("key")
	if err != nil {
		t.Fatalf("Get: %v", err)
	}
	if got.FileID != 2 {
		t.Errorf("expected overwritten locator to win, got FileID %d", got.FileID)
	}
	if idx.Len() != 1 {
		t.Errorf("expected Len 1 after overwrite, got %d", idx.Len())
	}
}

func TestCompareAndSet(t *testing.T) {
	idx := New(0)
	original := record.Locator{FileID: 1, ValuePos: 10}
	idx.Set("key", original)

	stale := record.Locator{FileID: 0, ValuePos: 0}
	next := record.Locator{FileID: 2, ValuePos: 20}
	if idx.CompareAndSet("key", stale, next) {
		t.Error("CompareAndSet should fail against a stale snapshot")
	}

	if !idx.CompareAndSet("key", original, next) {
		t.Error("CompareAndSet should succeed against the current value")
	}
	got, _ := idx.Get("key")
	if got != next {
		t.Errorf("expected %+v after CAS, got %+v", next, got)
	}
}

func TestRangeVisitsEveryLiveEntry(t *testing.T) {
	idx := New(0)
	idx.Set("a", record.Locator{FileID: 1})
	idx.Set("b", record.Locator{FileID: 2})
	idx.Set("c", record.Locator{FileID: 3})

	seen := make(map[string]bool)
	idx.Range(func(key string, loc record.Locator) bool {
		seen[key] = true
		return true
	})

	for _, k := range []string{"a", "b", "c"} {
		if !seen[k] {
			t.Errorf("Range did not visit key %q", k)
		}
	}
}

func TestRangeStopsEarly(t *testing.T) {
	idx := New(0)
	idx.Set("a", record.Locator{})
	idx.Set("b", record.Locator{})
	idx.Set("c", record.Locator{})

	var count int
	idx.Range(func(key string, loc record.Locator) bool {
		count++
		return false
	})

	if count != 1 {
		t.Errorf("expected Range to stop after first call, got %d calls", count)
	}
}

package recovery

import (
	"testing"

	"github.com/nilotpaul/barrelkeep/internal/index"
	"github.com/nilotpaul/barrelkeep/internal/record"
	"github.com/nilotpaul/barrelkeep/internal/storage"
	"go.uber.org/zap"
)

func testLogger(t *testing.T) *zap.SugaredLogger {
	t.Helper()
	return zap.NewNop().Sugar()
}

func TestRebuildReplaysPutsInAscendingFileOrder(t *testing.T) {
	dir := t.TempDir()
	fm, err := storage.NewFileManager(dir, testLogger(t))
	if err != nil {
		t.Fatalf("NewFileManager: %v", err)
	}

	f0, err := fm.CreateFile(0)
	if err != nil {
		t.Fatalf("CreateFile(0): %v", err)
	}
	if _, _, err := storage.WriteRecord(f0, 1, []byte("key"), []byte("old")); err != nil {
		t.Fatalf("WriteRecord: %v", err)
	}
	f0.Close()

	f1, err := fm.CreateFile(1)
	if err != nil {
		t.Fatalf("CreateFile(1): %v", err)
	}
	if _, _, err := storage.WriteRecord(f1, 2, []byte("key"), []byte("new")); err != nil {
		t.Fatalf("WriteRecord: %v", err)
	}
	f1.Close()

	idx := index.New(0)
	if err := Rebuild(fm, idx, testLogger(t)); err != nil {
		t.Fatalf("Rebuild: %v", err)
	}

	loc, err := idx.Get("key")
	if err != nil {
		t.Fatalf("Get after rebuild: %v", err)
	}
	if loc.FileID != 1 {
		t.Errorf("expected the later file's write to win, got FileID %d", loc.FileID)
	}
}

func TestRebuildAppliesTombstones(t *testing.T) {
	dir := t.TempDir()
	fm, err := storage.NewFileManager(dir, testLogger(t))
	if err != nil {
		t.Fatalf("NewFileManager: %v", err)
	}

	f0, err := fm.CreateFile(0)
	if err != nil {
		t.Fatalf("CreateFile(0): %v", err)
	}
	if _, _, err := storage.WriteRecord(f0, 1, []byte("key"), []byte("value")); err != nil {
		t.Fatalf("WriteRecord: %v", err)
	}
	if _, _, err := storage.WriteRecord(f0, 2, []byte("key"), nil); err != nil {
		t.Fatalf("WriteRecord tombstone: %v", err)
	}
	f0.Close()

	idx := index.New(0)
	if err := Rebuild(fm, idx, testLogger(t)); err != nil {
		t.Fatalf("Rebuild: %v", err)
	}

	if _, err := idx.Get("key"); err == nil {
		t.Error("expected tombstoned key to be absent after rebuild")
	}
}

func TestRebuildStopsAtTruncatedTail(t *testing.T) {
	dir := t.TempDir()
	fm, err := storage.NewFileManager(dir, testLogger(t))
	if err != nil {
		t.Fatalf("NewFileManager: %v", err)
	}

	f0, err := fm.CreateFile(0)
	if err != nil {
		t.Fatalf("CreateFile(0): %v", err)
	}
	if _, _, err := storage.WriteRecord(f0, 1, []byte("good"), []byte("value")); err != nil {
		t.Fatalf("WriteRecord: %v", err)
	}
	header := record.EncodeHeader(record.Header{Timestamp: 2, KeySize: 5, ValueSize: 100})
	if _, err := f0.Write(header[:]); err != nil {
		t.Fatalf("writing truncated header: %v", err)
	}
	if _, err := f0.Write([]byte("part")); err != nil {
		t.Fatalf("writing truncated key: %v", err)
	}
	f0.Close()

	idx := index.New(0)
	if err := Rebuild(fm, idx, testLogger(t)); err != nil {
		t.Fatalf("Rebuild should tolerate a truncated tail, got: %v", err)
	}

	if _, err := idx.Get("good"); err != nil {
		t.Errorf("expected the complete record before the truncated tail to survive: %v", err)
	}
	if idx.Len() != 1 {
		t.Errorf("expected exactly one live key, got %d", idx.Len())
	}
}

func TestRebuildHandlesEmptyDirectory(t *testing.T) {
	dir := t.TempDir()
	fm, err := storage.NewFileManager(dir, testLogger(t))
	if err != nil {
		t.Fatalf("NewFileManager: %v", err)
	}

	idx := index.New(0)
	if err := Rebuild(fm, idx, testLogger(t)); err != nil {
		t.Fatalf("Rebuild on empty directory: %v", err)
	}
	if idx.Len() != 0 {
		t.Errorf("expected empty index, got Len %d", idx.Len())
	}
}

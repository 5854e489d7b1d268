package storage

import (
	"testing"

	"github.com/nilotpaul/barrelkeep/pkg/options"
	"go.uber.org/zap"
)

func testLogger(t *testing.T) *zap.SugaredLogger {
	t.Helper()
	return zap.NewNop().Sugar()
}

func TestFileManagerNameRoundTrip(t *testing.T) {
	cases := []uint32{0, 1, 17, 999999}
	for _, id := range cases {
		name := NameFromID(id)
		got, err := IDFromName(name)
		if err != nil {
			t.Fatalf("IDFromName(%q) error: %v", name, err)
		}
		if got != id {
			t.Errorf("round trip mismatch: id %d -> name %q -> id %d", id, name, got)
		}
	}
}

func TestChooseActiveBootstrapsFromEmptyDir(t *testing.T) {
	dir := t.TempDir()
	fm, err := NewFileManager(dir, testLogger(t))
	if err != nil {
		t.Fatalf("NewFileManager: %v", err)
	}

	active, err := fm.ChooseActive(1024)
	if err != nil {
		t.Fatalf("ChooseActive: %v", err)
	}
	defer active.Close()

	if active.ID() != 0 {
		t.Errorf("expected id 0 for empty directory, got %d", active.ID())
	}
	if active.Size() != 0 {
		t.Errorf("expected size 0, got %d", active.Size())
	}
}

func TestChooseActiveReusesUndersizedFile(t *testing.T) {
	dir := t.TempDir()
	fm, err := NewFileManager(dir, testLogger(t))
	if err != nil {
		t.Fatalf("NewFileManager: %v", err)
	}

	first, err := fm.ChooseActive(1024)
	if err != nil {
		t.Fatalf("ChooseActive: %v", err)
	}
	if _, _, err := WriteRecord(first.file, 1, []byte("k"), []byte("v")); err != nil {
		t.Fatalf("WriteRecord: %v", err)
	}
	first.Close()

	second, err := fm.ChooseActive(1024)
	if err != nil {
		t.Fatalf("ChooseActive: %v", err)
	}
	defer second.Close()

	if second.ID() != first.ID() {
		t.Errorf("expected reuse of file %d, got %d", first.ID(), second.ID())
	}
}

func TestChooseActiveRotatesWhenOverThreshold(t *testing.T) {
	dir := t.TempDir()
	fm, err := NewFileManager(dir, testLogger(t))
	if err != nil {
		t.Fatalf("NewFileManager: %v", err)
	}

	first, err := fm.ChooseActive(10)
	if err != nil {
		t.Fatalf("ChooseActive: %v", err)
	}
	if _, _, err := WriteRecord(first.file, 1, []byte("keykeykey"), []byte("valuevaluevalue")); err != nil {
		t.Fatalf("WriteRecord: %v", err)
	}
	first.Close()

	second, err := fm.ChooseActive(10)
	if err != nil {
		t.Fatalf("ChooseActive: %v", err)
	}
	defer second.Close()

	if second.ID() != first.ID()+1 {
		t.Errorf("expected rotation to id %d, got %d", first.ID()+1, second.ID())
	}
}

func TestStorageAppendAndReadValue(t *testing.T) {
	dir := t.TempDir()
	opts := options.NewDefaultOptions()
	opts.DataDir = dir

	st, err := New(&Config{DataDir: dir, Options: &opts, Logger: testLogger(t)})
	if err != nil {
		t.Fatalf("New: %v", err)
	}
	defer st.Close()

	loc, err := st.Append(42, []byte("hello"), []byte("world"))
	if err != nil {
		t.Fatalf("Append: %v", err)
	}

	value, err := st.ReadValue(loc)
	if err != nil {
		t.Fatalf("ReadValue: %v", err)
	}
	if string(value) != "world" {
		t.Errorf("expected value %q, got %q", "world", value)
	}
}

func TestStorageRotatesActiveFileAtThreshold(t *testing.T) {
	dir := t.TempDir()
	opts := options.NewDefaultOptions()
	opts.DataDir = dir
	opts.Threshold = 30

	st, err := New(&Config{DataDir: dir, Options: &opts, Logger: testLogger(t)})
	if err != nil {
		t.Fatalf("New: %v", err)
	}
	defer st.Close()

	firstID := st.ActiveFileID()
	for i := 0; i < 5; i++ {
		if _, err := st.Append(1, []byte("key"), []byte("valuevaluevalue")); err != nil {
			t.Fatalf("Append: %v", err)
		}
	}

	if st.ActiveFileID() == firstID {
		t.Error("expected active file to rotate past threshold")
	}
}

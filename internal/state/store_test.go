package state

import (
	"errors"
	"os"
	"path/filepath"
	"testing"

	"github.com/google/go-cmp/cmp"
)

func TestIDSetRoundTrip(t *testing.T) {
	store, err := NewFileStore(t.TempDir())
	if err != nil {
		t.Fatalf("new store: %v", err)
	}
	rec := NewRecord()
	rec.Liked = NewIDSet(1, 2, 3)
	if err := store.Save(rec); err != nil {
		t.Fatalf("save: %v", err)
	}
	loaded, err := store.Load()
	if err != nil {
		t.Fatalf("load: %v", err)
	}
	for _, id := range []int64{1, 2, 3} {
		if !loaded.Liked.Has(id) {
			t.Fatalf("expected %d to be liked after reload", id)
		}
	}
	if loaded.Liked.Has(4) {
		t.Fatalf("4 should not be liked")
	}
	if loaded.ClientID != rec.ClientID {
		t.Fatalf("client id changed across reload: %s vs %s", loaded.ClientID, rec.ClientID)
	}
}

func TestIDSetMarshalsSortedArray(t *testing.T) {
	data, err := NewIDSet(9, 1, 5).MarshalJSON()
	if err != nil {
		t.Fatal(err)
	}
	if string(data) != "[1,5,9]" {
		t.Fatalf("unexpected json %s", data)
	}
	var set IDSet
	if err := set.UnmarshalJSON([]byte("null")); err != nil {
		t.Fatalf("unmarshal null: %v", err)
	}
	if len(set) != 0 || set.Has(1) {
		t.Fatalf("expected empty set from null")
	}
}

func TestLoadMissingReturnsEmptyRecord(t *testing.T) {
	store, err := NewFileStore(filepath.Join(t.TempDir(), "state"))
	if err != nil {
		t.Fatalf("new store: %v", err)
	}
	rec, err := store.Load()
	if err != nil {
		t.Fatalf("load: %v", err)
	}
	if len(rec.Liked)+len(rec.Disliked)+len(rec.Created) != 0 {
		t.Fatalf("expected empty sets, got %+v", rec)
	}
	if rec.ClientID == "" {
		t.Fatalf("expected a generated client id")
	}
}

func TestLoadImportsLegacyKeys(t *testing.T) {
	dir := t.TempDir()
	files := map[string]string{
		LegacyLikedKey + ".json":    "[1,2]",
		LegacyDislikedKey + ".json": "[2,3]",
		LegacyCreatedKey + ".json":  "[7]",
	}
	for name, body := range files {
		if err := os.WriteFile(filepath.Join(dir, name), []byte(body), 0o644); err != nil {
			t.Fatal(err)
		}
	}
	store, err := NewFileStore(dir)
	if err != nil {
		t.Fatalf("new store: %v", err)
	}
	rec, err := store.Load()
	if err != nil {
		t.Fatalf("load: %v", err)
	}
	if diff := cmp.Diff([]int64{1, 2}, rec.Liked.Sorted()); diff != "" {
		t.Fatalf("liked mismatch (-want +got):\n%s", diff)
	}
	if diff := cmp.Diff([]int64{3}, rec.Disliked.Sorted()); diff != "" {
		t.Fatalf("disliked mismatch (-want +got):\n%s", diff)
	}
	if diff := cmp.Diff([]int64{7}, rec.Created.Sorted()); diff != "" {
		t.Fatalf("created mismatch (-want +got):\n%s", diff)
	}
}

func TestLoadMovesCorruptRecordAside(t *testing.T) {
	dir := t.TempDir()
	path := filepath.Join(dir, RecordFile)
	if err := os.WriteFile(path, []byte("{"), 0o644); err != nil {
		t.Fatal(err)
	}
	store, err := NewFileStore(dir)
	if err != nil {
		t.Fatalf("new store: %v", err)
	}
	if _, err := store.Load(); !errors.Is(err, ErrCorrupt) {
		t.Fatalf("expected ErrCorrupt, got %v", err)
	}
	if _, err := os.Stat(path); !errors.Is(err, os.ErrNotExist) {
		t.Fatalf("corrupt record should have been moved, stat err %v", err)
	}

	rec := NewRecord()
	rec.Created.Add(9)
	if err := store.Save(rec); err != nil {
		t.Fatalf("save after corruption: %v", err)
	}
	kept, err := os.ReadFile(path + CorruptSuffix)
	if err != nil {
		t.Fatalf("read moved record: %v", err)
	}
	if string(kept) != "{" {
		t.Fatalf("moved record changed: %q", kept)
	}

	if err := os.WriteFile(path, []byte("not json"), 0o644); err != nil {
		t.Fatal(err)
	}
	if _, err := store.Load(); !errors.Is(err, ErrCorrupt) {
		t.Fatalf("expected ErrCorrupt on second corruption, got %v", err)
	}
	second, err := os.ReadFile(path + CorruptSuffix + ".1")
	if err != nil {
		t.Fatalf("second corrupt copy missing: %v", err)
	}
	if string(second) != "not json" {
		t.Fatalf("unexpected second copy %q", second)
	}
	if first, _ := os.ReadFile(path + CorruptSuffix); string(first) != "{" {
		t.Fatalf("first corrupt copy was overwritten")
	}
}

func TestSaveLeavesNoTempFiles(t *testing.T) {
	dir := t.TempDir()
	store, err := NewFileStore(dir)
	if err != nil {
		t.Fatalf("new store: %v", err)
	}
	for i := 0; i < 3; i++ {
		rec := NewRecord()
		rec.Created.Add(int64(i))
		if err := store.Save(rec); err != nil {
			t.Fatalf("save %d: %v", i, err)
		}
	}
	entries, err := os.ReadDir(dir)
	if err != nil {
		t.Fatal(err)
	}
	if len(entries) != 1 || entries[0].Name() != RecordFile {
		t.Fatalf("expected only %s, got %v", RecordFile, entries)
	}
}

func TestMemoryStoreIsolatesCopies(t *testing.T) {
	store := NewMemoryStore(Record{Liked: NewIDSet(1)})
	rec, err := store.Load()
	if err != nil {
		t.Fatalf("load: %v", err)
	}
	rec.Liked.Add(2)
	again, _ := store.Load()
	if again.Liked.Has(2) {
		t.Fatalf("mutating a loaded record leaked into the store")
	}
	boom := errors.New("disk full")
	store.SetErr(boom)
	if err := store.Save(rec); !errors.Is(err, boom) {
		t.Fatalf("expected injected error, got %v", err)
	}
	if store.Saves() != 0 {
		t.Fatalf("failed save should not count")
	}
}

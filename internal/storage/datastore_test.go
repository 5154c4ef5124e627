package storage

import (
	"os"
	"path/filepath"
	"testing"
)

func TestNewRejectsEmptyPath(t *testing.T) {
	if _, err := New(""); err == nil {
		t.Fatal("empty path accepted")
	}
}

func TestAddGetDelete(t *testing.T) {
	ds, err := New(filepath.Join(t.TempDir(), "store.json"))
	if err != nil {
		t.Fatalf("New: %v", err)
	}
	defer ds.Close()

	ds.Add("key", "value")
	v, ok := ds.Get("key")
	if !ok || v != "value" {
		t.Fatalf("get = %v, %v", v, ok)
	}
	if keys := ds.Keys(); len(keys) != 1 || keys[0] != "key" {
		t.Fatalf("keys = %v", keys)
	}

	ds.Delete("key")
	if _, ok := ds.Get("key"); ok {
		t.Fatal("deleted key still present")
	}
}

func TestDataSurvivesReopen(t *testing.T) {
	path := filepath.Join(t.TempDir(), "store.json")
	ds, err := New(path)
	if err != nil {
		t.Fatalf("New: %v", err)
	}
	ds.Add("greeting", "hello")
	if err := ds.Close(); err != nil {
		t.Fatalf("Close: %v", err)
	}

	ds2, err := New(path)
	if err != nil {
		t.Fatalf("reopen: %v", err)
	}
	defer ds2.Close()
	v, ok := ds2.Get("greeting")
	if !ok || v != "hello" {
		t.Fatalf("get after reopen = %v, %v", v, ok)
	}
}

func TestSaveSkipsUnchangedContent(t *testing.T) {
	path := filepath.Join(t.TempDir(), "store.json")
	ds, err := New(path)
	if err != nil {
		t.Fatalf("New: %v", err)
	}
	defer ds.Close()

	ds.Add("k", "v")
	if err := ds.Save(); err != nil {
		t.Fatalf("Save: %v", err)
	}

	// Second save with identical content must not rewrite the file.
	if err := os.Remove(path); err != nil {
		t.Fatalf("remove: %v", err)
	}
	if err := ds.Save(); err != nil {
		t.Fatalf("second Save: %v", err)
	}
	if _, err := os.Stat(path); !os.IsNotExist(err) {
		t.Fatal("unchanged content was rewritten")
	}
}

func TestNewFailsOnCorruptFile(t *testing.T) {
	path := filepath.Join(t.TempDir(), "store.json")
	if err := os.WriteFile(path, []byte("{not json"), 0644); err != nil {
		t.Fatalf("seed corrupt file: %v", err)
	}
	if _, err := New(path); err == nil {
		t.Fatal("corrupt store accepted")
	}
}

package storage

import (
	"bytes"
	"os"
	"path/filepath"
	"testing"
)

func TestWriteReadRoundTrip(t *testing.T) {
	s, err := NewStore(t.TempDir())
	if err != nil {
		t.Fatalf("NewStore: %v", err)
	}
	key := Key(NamespaceOriginal, "abc123.jpg")
	data := []byte("jpeg bytes")
	if err := s.Write(key, data); err != nil {
		t.Fatalf("Write: %v", err)
	}
	got, err := s.Read(key)
	if err != nil {
		t.Fatalf("Read: %v", err)
	}
	if !bytes.Equal(got, data) {
		t.Fatalf("read back %q, want %q", got, data)
	}
	if !s.Exists(key) {
		t.Fatal("Exists should report written key")
	}
}

func TestWriteLeavesNoTempFiles(t *testing.T) {
	root := t.TempDir()
	s, err := NewStore(root)
	if err != nil {
		t.Fatalf("NewStore: %v", err)
	}
	if err := s.Write(Key(NamespaceQR, "id1.png"), []byte("png")); err != nil {
		t.Fatalf("Write: %v", err)
	}
	entries, err := os.ReadDir(filepath.Join(root, NamespaceQR))
	if err != nil {
		t.Fatalf("ReadDir: %v", err)
	}
	if len(entries) != 1 || entries[0].Name() != "id1.png" {
		t.Fatalf("unexpected directory contents: %v", entries)
	}
}

func TestRemoveMissingIsNoError(t *testing.T) {
	s, err := NewStore(t.TempDir())
	if err != nil {
		t.Fatalf("NewStore: %v", err)
	}
	if err := s.Remove(Key(NamespaceWeb, "never-written.jpg")); err != nil {
		t.Fatalf("Remove of missing key: %v", err)
	}
}

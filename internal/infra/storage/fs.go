// Package storage is the artifact filesystem: originals, web copies and QR
// images keyed by capture id, each under its own namespace directory.
package storage

import (
	"fmt"
	"os"
	"path/filepath"
)

const (
	NamespaceOriginal = "original"
	NamespaceWeb      = "web"
	NamespaceQR       = "qr"
)

type Store struct {
	root string
}

// NewStore creates the namespace directories under root.
func NewStore(root string) (*Store, error) {
	for _, ns := range []string{NamespaceOriginal, NamespaceWeb, NamespaceQR} {
		if err := os.MkdirAll(filepath.Join(root, ns), 0o755); err != nil {
			return nil, fmt.Errorf("create storage dir %s: %w", ns, err)
		}
	}
	return &Store{root: root}, nil
}

func (s *Store) Root() string {
	return s.root
}

// Key returns the storage key for an artifact, relative to the store root.
func Key(namespace, name string) string {
	return namespace + "/" + name
}

// Write persists data under key via a temp file and an atomic rename, so a
// concurrent reader never observes a partially written artifact.
func (s *Store) Write(key string, data []byte) error {
	target := filepath.Join(s.root, filepath.FromSlash(key))
	tmp, err := os.CreateTemp(filepath.Dir(target), ".tmp-*")
	if err != nil {
		return fmt.Errorf("create temp for %s: %w", key, err)
	}
	tmpName := tmp.Name()
	if _, err := tmp.Write(data); err != nil {
		tmp.Close()
		os.Remove(tmpName)
		return fmt.Errorf("write %s: %w", key, err)
	}
	if err := tmp.Close(); err != nil {
		os.Remove(tmpName)
		return fmt.Errorf("close %s: %w", key, err)
	}
	if err := os.Rename(tmpName, target); err != nil {
		os.Remove(tmpName)
		return fmt.Errorf("rename %s: %w", key, err)
	}
	return nil
}

// WriteOriginal stores the untouched upload bytes and returns their key.
func (s *Store) WriteOriginal(id string, data []byte) (string, error) {
	key := Key(NamespaceOriginal, id+".jpg")
	return key, s.Write(key, data)
}

// WriteWebCopy stores the resized display copy and returns its key.
func (s *Store) WriteWebCopy(id string, data []byte) (string, error) {
	key := Key(NamespaceWeb, id+".jpg")
	return key, s.Write(key, data)
}

func (s *Store) Read(key string) ([]byte, error) {
	return os.ReadFile(filepath.Join(s.root, filepath.FromSlash(key)))
}

func (s *Store) Exists(key string) bool {
	_, err := os.Stat(filepath.Join(s.root, filepath.FromSlash(key)))
	return err == nil
}

// Remove deletes an artifact; a missing file is not an error so rollback can
// be applied unconditionally.
func (s *Store) Remove(key string) error {
	err := os.Remove(filepath.Join(s.root, filepath.FromSlash(key)))
	if err != nil && !os.IsNotExist(err) {
		return err
	}
	return nil
}

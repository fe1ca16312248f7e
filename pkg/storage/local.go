// Package storage implements the object store used for profile images.
//
// The production deployment keeps blobs on a mounted volume; the store is
// addressed as bucket + object path so it can be swapped for a hosted
// object service without touching callers.
package storage

import (
	"fmt"
	"io"
	"os"
	"path/filepath"
	"strings"
)

// LocalStore is a bucket/path addressed blob store backed by a local directory.
type LocalStore struct {
	root string
}

// NewLocalStore creates (if needed) the root directory and returns the store.
func NewLocalStore(root string) (*LocalStore, error) {
	if root == "" {
		return nil, fmt.Errorf("storage: empty root dir")
	}
	if err := os.MkdirAll(root, 0o755); err != nil {
		return nil, fmt.Errorf("storage: create root %s: %w", root, err)
	}
	return &LocalStore{root: root}, nil
}

// Root returns the root directory blobs are stored under.
func (s *LocalStore) Root() string { return s.root }

// Save writes a blob under bucket/objectPath and returns the store-relative
// path suitable for serving under the uploads route.
func (s *LocalStore) Save(bucket, objectPath string, data []byte) (string, error) {
	rel, err := s.safeJoin(bucket, objectPath)
	if err != nil {
		return "", err
	}
	full := filepath.Join(s.root, rel)
	if err := os.MkdirAll(filepath.Dir(full), 0o755); err != nil {
		return "", fmt.Errorf("storage: create dir: %w", err)
	}
	if err := os.WriteFile(full, data, 0o644); err != nil {
		return "", fmt.Errorf("storage: write %s: %w", rel, err)
	}
	return filepath.ToSlash(rel), nil
}

// Open returns a reader for the blob at bucket/objectPath.
func (s *LocalStore) Open(bucket, objectPath string) (io.ReadCloser, error) {
	rel, err := s.safeJoin(bucket, objectPath)
	if err != nil {
		return nil, err
	}
	f, err := os.Open(filepath.Join(s.root, rel))
	if err != nil {
		return nil, fmt.Errorf("storage: open %s: %w", rel, err)
	}
	return f, nil
}

// safeJoin rejects paths that would escape the store root.
func (s *LocalStore) safeJoin(bucket, objectPath string) (string, error) {
	if bucket == "" || objectPath == "" {
		return "", fmt.Errorf("storage: empty bucket or path")
	}
	rel := filepath.Join(bucket, filepath.FromSlash(objectPath))
	if strings.Contains(rel, "..") || filepath.IsAbs(rel) {
		return "", fmt.Errorf("storage: invalid object path %q", objectPath)
	}
	return rel, nil
}

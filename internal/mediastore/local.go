package mediastore

import (
	"context"
	"os"
	"path/filepath"

	"ixode.dev/core/internal/apperr"
)

// LocalStore persists media objects as plain files under root, one file
// per key with key path-joined onto root (keys are uuid-derived, so no
// path traversal concern in practice, but filepath.Clean still guards it).
type LocalStore struct {
	root string
}

func NewLocalStore(root string) *LocalStore {
	return &LocalStore{root: root}
}

func (s *LocalStore) path(key string) string {
	return filepath.Join(s.root, filepath.Clean("/"+key))
}

func (s *LocalStore) Put(ctx context.Context, key, contentType string, data []byte) error {
	p := s.path(key)
	if err := os.MkdirAll(filepath.Dir(p), 0o755); err != nil {
		return apperr.Internalf("mediastore: %v", err)
	}
	if err := os.WriteFile(p, data, 0o644); err != nil {
		return apperr.Internalf("mediastore: %v", err)
	}
	return nil
}

func (s *LocalStore) Get(ctx context.Context, key string) ([]byte, error) {
	data, err := os.ReadFile(s.path(key))
	if os.IsNotExist(err) {
		return nil, apperr.NotFoundf("Error: media not found")
	}
	if err != nil {
		return nil, apperr.Internalf("mediastore: %v", err)
	}
	return data, nil
}

func (s *LocalStore) Delete(ctx context.Context, key string) error {
	err := os.Remove(s.path(key))
	if err != nil && !os.IsNotExist(err) {
		return apperr.Internalf("mediastore: %v", err)
	}
	return nil
}

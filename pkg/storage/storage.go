package storage

import (
	"context"
	"fmt"
	"io"
	"os"
	"path/filepath"
)

// Uploader persists a binary payload and returns a stable retrievable URL.
type Uploader interface {
	Upload(ctx context.Context, key, contentType string, body io.Reader) (string, error)
}

// LocalStore writes uploads to a local directory served under /uploads/.
// Used in development when no S3 bucket is configured.
type LocalStore struct {
	dir     string
	baseURL string
}

func NewLocalStore(dir, baseURL string) *LocalStore {
	return &LocalStore{dir: dir, baseURL: baseURL}
}

func (s *LocalStore) Upload(ctx context.Context, key, contentType string, body io.Reader) (string, error) {
	path := filepath.Join(s.dir, filepath.FromSlash(key))
	if err := os.MkdirAll(filepath.Dir(path), os.ModePerm); err != nil {
		return "", fmt.Errorf("failed to create upload dir: %v", err)
	}

	out, err := os.Create(path)
	if err != nil {
		return "", fmt.Errorf("failed to create file: %v", err)
	}
	defer out.Close()

	if _, err := io.Copy(out, body); err != nil {
		return "", fmt.Errorf("failed to save file: %v", err)
	}

	return s.baseURL + "/uploads/" + key, nil
}

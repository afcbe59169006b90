package storage

import (
	"context"
	"fmt"
	"io"
	"os"
	"path/filepath"
)

// LocalStorage writes uploads under a directory served at baseURL/uploads
type LocalStorage struct {
	dir     string
	baseURL string
}

// NewLocalStorage creates dir if needed
func NewLocalStorage(dir, baseURL string) (*LocalStorage, error) {
	if err := os.MkdirAll(dir, os.ModePerm); err != nil {
		return nil, fmt.Errorf("failed to create upload directory %s: %w", dir, err)
	}
	return &LocalStorage{dir: dir, baseURL: baseURL}, nil
}

// Dir is the directory files are written to
func (s *LocalStorage) Dir() string {
	return s.dir
}

func (s *LocalStorage) Put(ctx context.Context, objectPath, contentType string, r io.Reader, size int64) (string, error) {
	objectPath, err := CleanObjectPath(objectPath)
	if err != nil {
		return "", err
	}

	filePath := filepath.Join(s.dir, filepath.FromSlash(objectPath))
	if err := os.MkdirAll(filepath.Dir(filePath), os.ModePerm); err != nil {
		return "", fmt.Errorf("failed to create upload directory: %w", err)
	}

	dst, err := os.Create(filePath)
	if err != nil {
		return "", fmt.Errorf("failed to create file on server: %w", err)
	}
	defer dst.Close()

	if _, err := io.Copy(dst, r); err != nil {
		os.Remove(filePath)
		return "", fmt.Errorf("failed to save file: %w", err)
	}
	return s.baseURL + "/uploads/" + objectPath, nil
}

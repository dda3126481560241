package storage

import (
	"context"
	"fmt"
	"io"
	"os"
	"path/filepath"
	"strings"
)

// LocalStore 本地磁盘对象存储
type LocalStore struct {
	basePath string
}

// NewLocalStore 创建本地存储
func NewLocalStore(basePath string) (*LocalStore, error) {
	if basePath == "" {
		return nil, fmt.Errorf("local storage base path is empty")
	}
	if err := os.MkdirAll(basePath, 0o755); err != nil {
		return nil, fmt.Errorf("failed to create storage dir: %w", err)
	}
	return &LocalStore{basePath: basePath}, nil
}

// keyPath 拼接并校验对象路径，拒绝越出basePath的key
func (s *LocalStore) keyPath(key string) (string, error) {
	if key == "" {
		return "", fmt.Errorf("object key is empty")
	}
	path := filepath.Join(s.basePath, filepath.Clean("/"+key))
	if !strings.HasPrefix(path, filepath.Clean(s.basePath)+string(os.PathSeparator)) {
		return "", fmt.Errorf("invalid object key: %s", key)
	}
	return path, nil
}

func (s *LocalStore) Put(ctx context.Context, key string, reader io.Reader, size int64) error {
	path, err := s.keyPath(key)
	if err != nil {
		return err
	}
	if err := os.MkdirAll(filepath.Dir(path), 0o755); err != nil {
		return fmt.Errorf("failed to create object dir: %w", err)
	}

	file, err := os.Create(path)
	if err != nil {
		return fmt.Errorf("failed to create object file: %w", err)
	}
	defer file.Close()

	if _, err := io.Copy(file, reader); err != nil {
		return fmt.Errorf("failed to write object: %w", err)
	}
	return nil
}

func (s *LocalStore) Get(ctx context.Context, key string) (io.ReadCloser, error) {
	path, err := s.keyPath(key)
	if err != nil {
		return nil, err
	}
	file, err := os.Open(path)
	if err != nil {
		return nil, fmt.Errorf("failed to open object %s: %w", key, err)
	}
	return file, nil
}

func (s *LocalStore) Delete(ctx context.Context, key string) error {
	path, err := s.keyPath(key)
	if err != nil {
		return err
	}
	if err := os.Remove(path); err != nil && !os.IsNotExist(err) {
		return fmt.Errorf("failed to delete object %s: %w", key, err)
	}
	return nil
}

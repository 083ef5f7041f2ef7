package storage

import (
	"context"
	"errors"
	"fmt"
	"io"
	"io/fs"
	"os"
	"path/filepath"
	"strings"

	"github.com/jobrunner/leafsync/internal/domain"
	"github.com/jobrunner/leafsync/internal/ports/output"
)

// LocalStorage implements ObjectStorage for a preset directory.
type LocalStorage struct {
	basePath string
}

// NewLocalStorage creates a new local storage adapter.
func NewLocalStorage(basePath string) *LocalStorage {
	return &LocalStorage{basePath: basePath}
}

// List returns all preset documents below the base directory.
func (s *LocalStorage) List(_ context.Context) ([]output.StorageObject, error) {
	var objects []output.StorageObject

	err := filepath.WalkDir(s.basePath, func(path string, d fs.DirEntry, err error) error {
		if err != nil {
			return err
		}
		if d.IsDir() || !IsPresetKey(d.Name()) {
			return nil
		}

		info, err := d.Info()
		if err != nil {
			return err
		}
		relPath, err := filepath.Rel(s.basePath, path)
		if err != nil {
			return err
		}

		objects = append(objects, output.StorageObject{
			Key:          filepath.ToSlash(relPath),
			Size:         info.Size(),
			LastModified: info.ModTime().UnixNano(),
		})
		return nil
	})
	if err != nil {
		return nil, err
	}

	return objects, nil
}

// Download copies a preset to dest.
func (s *LocalStorage) Download(ctx context.Context, key string, dest string) error {
	srcPath := s.FullPath(key)
	if srcPath == dest {
		return nil
	}

	src, err := s.GetReader(ctx, key)
	if err != nil {
		return err
	}
	defer func() { _ = src.Close() }()

	return writeFile(dest, src)
}

// GetReader opens a preset document.
func (s *LocalStorage) GetReader(_ context.Context, key string) (io.ReadCloser, error) {
	f, err := os.Open(s.FullPath(key))
	if errors.Is(err, fs.ErrNotExist) {
		return nil, notFound("get", key)
	}
	return f, err
}

// Exists checks if a file exists.
func (s *LocalStorage) Exists(_ context.Context, key string) (bool, error) {
	_, err := os.Stat(s.FullPath(key))
	if err == nil {
		return true, nil
	}
	if errors.Is(err, fs.ErrNotExist) {
		return false, nil
	}
	return false, err
}

// FullPath returns the full path for a key.
func (s *LocalStorage) FullPath(key string) string {
	return filepath.Join(s.basePath, filepath.FromSlash(key))
}

// Key returns the object key for a path below the base directory. Both
// are resolved to absolute paths first, as the file watcher reports them.
func (s *LocalStorage) Key(path string) (string, error) {
	base, err := filepath.Abs(s.basePath)
	if err != nil {
		return "", err
	}
	abs, err := filepath.Abs(path)
	if err != nil {
		return "", err
	}
	rel, err := filepath.Rel(base, abs)
	if err != nil {
		return "", err
	}
	if rel == ".." || strings.HasPrefix(rel, ".."+string(filepath.Separator)) {
		return "", fmt.Errorf("%s is outside %s: %w", path, s.basePath, domain.ErrInvalidInput)
	}
	return filepath.ToSlash(rel), nil
}

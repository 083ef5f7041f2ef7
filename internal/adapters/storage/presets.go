// Package storage provides object storage adapters for map presets.
package storage

import (
	"io"
	"os"
	"path/filepath"
	"strings"

	"github.com/jobrunner/leafsync/internal/domain"
)

// presetExtensions are the object suffixes treated as preset documents.
var presetExtensions = []string{".yaml", ".yml"}

// IsPresetKey reports whether key names a preset document.
func IsPresetKey(key string) bool {
	lower := strings.ToLower(key)
	for _, ext := range presetExtensions {
		if strings.HasSuffix(lower, ext) {
			return true
		}
	}
	return false
}

// relativeKey strips the backend prefix from an object key.
func relativeKey(key, prefix string) string {
	rel := strings.TrimPrefix(key, prefix)
	return strings.TrimPrefix(rel, "/")
}

// joinKey prepends the backend prefix to a key.
func joinKey(prefix, key string) string {
	if prefix == "" {
		return key
	}
	return strings.TrimSuffix(prefix, "/") + "/" + key
}

// notFound wraps a missing-object failure so callers can match
// domain.ErrNotFound.
func notFound(op, key string) error {
	return &domain.StorageError{Operation: op, Key: key, Err: domain.ErrNotFound}
}

// writeFile copies r to dest, creating parent directories.
func writeFile(dest string, r io.Reader) error {
	if err := os.MkdirAll(filepath.Dir(dest), 0750); err != nil {
		return err
	}

	f, err := os.Create(dest) //#nosec G304 -- dest is a controlled local path
	if err != nil {
		return err
	}
	defer func() { _ = f.Close() }()

	_, err = io.Copy(f, r)
	return err
}

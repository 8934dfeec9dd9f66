package cache

import (
	"encoding/json"
	"errors"
	"fmt"
	"io/fs"
	"os"
	"path/filepath"
)

// JSONFile stores a payload as a JSON document. Writes go to a temporary file
// in the same directory which is then renamed into place, so readers never
// observe a partial document.
type JSONFile[T any] struct {
	path string
	// Check optionally rejects a decoded payload with missing fields.
	Check func(*T) bool
}

// NewJSONFile creates a JSON backend at path.
func NewJSONFile[T any](path string) *JSONFile[T] {
	return &JSONFile[T]{path: path}
}

// Path returns the cache file location.
func (f *JSONFile[T]) Path() string { return f.path }

// Read decodes the cached payload. A missing, unparsable or incomplete file
// is a miss.
func (f *JSONFile[T]) Read() (*T, error) {
	data, err := os.ReadFile(f.path)
	if errors.Is(err, fs.ErrNotExist) {
		return nil, nil
	}
	if err != nil {
		return nil, fmt.Errorf("cache: read %s: %w", f.path, err)
	}
	var v T
	if err := json.Unmarshal(data, &v); err != nil {
		return nil, nil
	}
	if f.Check != nil && !f.Check(&v) {
		return nil, nil
	}
	return &v, nil
}

// Write atomically replaces the cache file.
func (f *JSONFile[T]) Write(v *T) error {
	data, err := json.Marshal(v)
	if err != nil {
		return fmt.Errorf("cache: encode: %w", err)
	}
	return WriteAtomic(f.path, data)
}

// WriteAtomic writes data to path through a synced temporary file and a
// rename, creating the parent directory on demand.
func WriteAtomic(path string, data []byte) error {
	dir := filepath.Dir(path)
	if err := os.MkdirAll(dir, 0o755); err != nil {
		return fmt.Errorf("cache: mkdir: %w", err)
	}
	tmp, err := os.CreateTemp(dir, ".tmp-"+filepath.Base(path)+"-*")
	if err != nil {
		return fmt.Errorf("cache: create temp: %w", err)
	}
	tmpName := tmp.Name()
	defer os.Remove(tmpName) //nolint:errcheck // no-op after rename

	if _, err := tmp.Write(data); err != nil {
		tmp.Close()
		return fmt.Errorf("cache: write temp: %w", err)
	}
	if err := tmp.Sync(); err != nil {
		tmp.Close()
		return fmt.Errorf("cache: sync temp: %w", err)
	}
	if err := tmp.Close(); err != nil {
		return fmt.Errorf("cache: close temp: %w", err)
	}
	if err := os.Rename(tmpName, path); err != nil {
		return fmt.Errorf("cache: rename: %w", err)
	}
	return nil
}

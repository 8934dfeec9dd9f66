package render

import (
	"errors"
	"fmt"
	"io/fs"
	"os"
	"path/filepath"
	"strconv"
	"time"

	"github.com/starford/markbase/internal/cache"
	"github.com/starford/markbase/internal/checksum"
)

// Cache stores rendered HTML fragments as files named after a digest of the
// document slug and version.
type Cache struct {
	dir string
}

// NewCache creates a cache in dir. The directory is created on first write.
func NewCache(dir string) *Cache {
	return &Cache{dir: dir}
}

// Version builds a cache version from a document's mtime and size and the
// repository generation, so that pages are re-rendered when a link target
// appears or disappears.
func Version(modTime time.Time, size int64, generation time.Time) string {
	return strconv.FormatInt(modTime.UnixNano(), 10) + "-" +
		strconv.FormatInt(size, 10) + "-" +
		strconv.FormatInt(generation.UnixNano(), 10)
}

func (c *Cache) file(slug, version string) string {
	return filepath.Join(c.dir, checksum.Key(slug, version)+".html")
}

// Get returns the cached fragment, if any.
func (c *Cache) Get(slug, version string) ([]byte, bool) {
	data, err := os.ReadFile(c.file(slug, version))
	if err != nil {
		return nil, false
	}
	return data, true
}

// Put stores a fragment atomically.
func (c *Cache) Put(slug, version string, html []byte) error {
	if err := cache.WriteAtomic(c.file(slug, version), html); err != nil {
		return fmt.Errorf("render: %w", err)
	}
	return nil
}

// Purge removes every cached fragment.
func (c *Cache) Purge() error {
	entries, err := os.ReadDir(c.dir)
	if errors.Is(err, fs.ErrNotExist) {
		return nil
	}
	if err != nil {
		return fmt.Errorf("render: purge: %w", err)
	}
	for _, e := range entries {
		if e.Type().IsRegular() && filepath.Ext(e.Name()) == ".html" {
			if err := os.Remove(filepath.Join(c.dir, e.Name())); err != nil {
				return fmt.Errorf("render: purge: %w", err)
			}
		}
	}
	return nil
}

// Package storage owns the on-disk document tree: slug normalization, safe
// path resolution, mutation and traversal.
package storage

import (
	"time"

	"github.com/starford/markbase/internal/models"
)

// Provider is the interface for document repository operations. Every slug
// argument is untrusted and normalized before it touches the file system.
type Provider interface {
	// Resolve maps slug onto an existing, contained document file.
	Resolve(slug string) (string, error)
	// Read returns the raw bytes of the document named by slug.
	Read(slug string) ([]byte, error)
	// Write creates or replaces the document, creating parent directories.
	Write(slug string, content []byte) (string, error)
	// Move renames a document or a directory.
	Move(from, to string) error
	// Delete removes a document or a directory subtree.
	Delete(slug string) error
	// ListDir lists one directory level.
	ListDir(slug string) ([]models.Entry, error)
	// Tree snapshots the whole root.
	Tree() (models.Tree, error)
	// FindByFilename finds documents by bare file name.
	FindByFilename(name string) ([]string, error)
	// MaxModTime is the newest document mtime.
	MaxModTime() (time.Time, error)
	// IsDir reports whether slug is a directory.
	IsDir(slug string) bool
	// Walk visits every document.
	Walk(fn func(Document) error) error
	// Slug maps an absolute path under the root back to its slug.
	Slug(absPath string) string
}

// Verify *FS satisfies Provider at compile time.
var _ Provider = (*FS)(nil)

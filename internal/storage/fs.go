package storage

import (
	"fmt"
	"os"
	"path/filepath"
	"sort"
	"strings"

	"github.com/starford/markbase/internal/apperr"
)

// FS implements Provider backed by the local file system.
type FS struct {
	root string // absolute path to the document root
}

// NewFS creates a new FS provider rooted at the given directory.
// The directory must already exist.
func NewFS(root string) (*FS, error) {
	abs, err := filepath.Abs(root)
	if err != nil {
		return nil, fmt.Errorf("storage: resolve root: %w", err)
	}
	info, err := os.Stat(abs)
	if err != nil {
		return nil, fmt.Errorf("storage: stat root: %w", err)
	}
	if !info.IsDir() {
		return nil, fmt.Errorf("storage: root is not a directory: %s", abs)
	}
	return &FS{root: abs}, nil
}

// Root returns the absolute document root.
func (f *FS) Root() string { return f.root }

// abs maps a normalized slug onto the file system without any checks.
func (f *FS) abs(slug string) string {
	if slug == "" {
		return f.root
	}
	return filepath.Join(f.root, filepath.FromSlash(slug))
}

// Slug converts an absolute file path under the root back into a slug.
func (f *FS) Slug(absPath string) string {
	rel, err := filepath.Rel(f.root, absPath)
	if err != nil || rel == "." {
		return ""
	}
	return StripExt(filepath.ToSlash(rel))
}

// within reports whether p resolves (following symlinks) to the root or
// somewhere beneath it. Paths that cannot be resolved are rejected.
func (f *FS) within(p string) bool {
	realRoot, err := filepath.EvalSymlinks(f.root)
	if err != nil {
		return false
	}
	realPath, err := filepath.EvalSymlinks(p)
	if err != nil {
		return false
	}
	return realPath == realRoot || strings.HasPrefix(realPath, realRoot+string(os.PathSeparator))
}

// allowed is the containment check for document paths: the parent directory
// must resolve inside the root, and so must the file itself once it exists.
func (f *FS) allowed(file string) bool {
	if !f.within(filepath.Dir(file)) {
		return false
	}
	if _, err := os.Lstat(file); err == nil {
		return f.within(file)
	}
	return true
}

// dirAbs returns the absolute directory for slug if it exists and is contained.
// Directories reached through a symlink are treated as absent, matching Walk.
func (f *FS) dirAbs(slug string) (string, bool) {
	if f.throughSymlink(slug) {
		return "", false
	}
	dir := f.abs(slug)
	info, err := os.Stat(dir)
	if err != nil || !info.IsDir() {
		return "", false
	}
	if !f.within(dir) {
		return "", false
	}
	return dir, true
}

// throughSymlink reports whether any path element of slug below the root is
// a symlink.
func (f *FS) throughSymlink(slug string) bool {
	if slug == "" {
		return false
	}
	p := f.root
	for _, part := range strings.Split(slug, "/") {
		p = filepath.Join(p, part)
		info, err := os.Lstat(p)
		if err != nil {
			return false
		}
		if info.Mode()&os.ModeSymlink != 0 {
			return true
		}
	}
	return false
}

// IsDir reports whether slug names a directory inside the root.
func (f *FS) IsDir(slug string) bool {
	_, ok := f.dirAbs(Normalize(slug))
	return ok
}

// findIndex picks the index document inside dir. Any case variant of
// README.md qualifies; the exact spelling wins.
func findIndex(dir string) (string, bool) {
	entries, err := os.ReadDir(dir)
	if err != nil {
		return "", false
	}
	var names []string
	for _, e := range entries {
		if !strings.EqualFold(e.Name(), IndexName) {
			continue
		}
		if isFile(filepath.Join(dir, e.Name())) {
			names = append(names, e.Name())
		}
	}
	if len(names) == 0 {
		return "", false
	}
	sort.Slice(names, func(i, j int) bool {
		a, b := names[i], names[j]
		if (a == IndexName) != (b == IndexName) {
			return a == IndexName
		}
		return nameLess(a, b)
	})
	return filepath.Join(dir, names[0]), true
}

// DirIndex returns the index document of the directory named by slug.
func (f *FS) DirIndex(slug string) (string, error) {
	slug = Normalize(slug)
	dir, ok := f.dirAbs(slug)
	if !ok {
		return "", fmt.Errorf("storage: dir index %q: %w", slug, apperr.ErrNotFound)
	}
	p, ok := findIndex(dir)
	if !ok || !f.allowed(p) {
		return "", fmt.Errorf("storage: dir index %q: %w", slug, apperr.ErrNotFound)
	}
	return p, nil
}

// Resolve maps a slug onto an existing document file.
func (f *FS) Resolve(slug string) (string, error) {
	slug = Normalize(slug)
	if slug == "" {
		if p, err := f.DirIndex(""); err == nil {
			return p, nil
		}
		readme := filepath.Join(f.root, IndexName)
		if isFile(readme) && f.allowed(readme) {
			return readme, nil
		}
		return "", fmt.Errorf("storage: resolve root: %w", apperr.ErrNotFound)
	}

	if !HasExt(slug) {
		if _, ok := f.dirAbs(slug); ok {
			return f.DirIndex(slug)
		}
	}

	candidate := f.abs(slug)
	if !HasExt(slug) {
		candidate += Ext
	}
	if !isFile(candidate) {
		return "", fmt.Errorf("storage: resolve %q: %w", slug, apperr.ErrNotFound)
	}
	if !f.allowed(candidate) {
		return "", fmt.Errorf("storage: resolve %q: %w", slug, apperr.ErrInvalidPath)
	}
	return candidate, nil
}

// Read returns the raw bytes of the document named by slug.
func (f *FS) Read(slug string) ([]byte, error) {
	p, err := f.Resolve(slug)
	if err != nil {
		return nil, err
	}
	data, err := os.ReadFile(p)
	if err != nil {
		return nil, fmt.Errorf("storage: read %s: %w", slug, err)
	}
	return data, nil
}

// writeTarget computes where a write to slug lands.
func (f *FS) writeTarget(slug string) string {
	slug = Normalize(slug)
	if slug == "" {
		return filepath.Join(f.root, IndexName)
	}
	if HasExt(slug) {
		return f.abs(slug)
	}
	if dir, ok := f.dirAbs(slug); ok {
		if p, ok := findIndex(dir); ok {
			return p
		}
		return filepath.Join(dir, IndexName)
	}
	return f.abs(slug) + Ext
}

// ensureParent creates the missing parent directories of file. The nearest
// existing ancestor has to be inside the root before anything is created.
func (f *FS) ensureParent(file string) error {
	dir := filepath.Dir(file)
	existing := dir
	for {
		if _, err := os.Stat(existing); err == nil {
			break
		}
		up := filepath.Dir(existing)
		if up == existing {
			break
		}
		existing = up
	}
	if !f.within(existing) {
		return fmt.Errorf("storage: %s escapes root: %w", f.Slug(file), apperr.ErrInvalidPath)
	}
	if err := os.MkdirAll(dir, 0o755); err != nil {
		return fmt.Errorf("storage: mkdir: %w", err)
	}
	if !f.allowed(file) {
		return fmt.Errorf("storage: %s escapes root: %w", f.Slug(file), apperr.ErrInvalidPath)
	}
	return nil
}

// Write atomically writes content: tmp file → fsync → rename. It returns the
// absolute path written.
func (f *FS) Write(slug string, content []byte) (string, error) {
	target := f.writeTarget(slug)
	if err := f.ensureParent(target); err != nil {
		return "", err
	}
	if err := writeAtomic(target, content); err != nil {
		return "", err
	}
	return target, nil
}

func writeAtomic(target string, content []byte) error {
	dir := filepath.Dir(target)
	tmp, err := os.CreateTemp(dir, ".markbase-tmp-*")
	if err != nil {
		return fmt.Errorf("storage: create temp: %w", err)
	}
	tmpName := tmp.Name()

	success := false
	defer func() {
		if !success {
			_ = tmp.Close()
			_ = os.Remove(tmpName)
		}
	}()

	if _, err := tmp.Write(content); err != nil {
		return fmt.Errorf("storage: write temp: %w", err)
	}
	if err := tmp.Chmod(0o644); err != nil {
		return fmt.Errorf("storage: chmod temp: %w", err)
	}
	if err := tmp.Sync(); err != nil {
		return fmt.Errorf("storage: fsync: %w", err)
	}
	if err := tmp.Close(); err != nil {
		return fmt.Errorf("storage: close temp: %w", err)
	}
	if err := os.Rename(tmpName, target); err != nil {
		return fmt.Errorf("storage: rename: %w", err)
	}
	success = true
	return nil
}

func isFile(p string) bool {
	info, err := os.Stat(p)
	return err == nil && info.Mode().IsRegular()
}

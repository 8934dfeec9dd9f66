package storage

import (
	"fmt"
	"os"
	"path/filepath"
	"strings"

	"github.com/starford/markbase/internal/apperr"
)

// Move renames a document or, when from names a directory, a whole folder.
// A destination that is already occupied is rejected with ErrCollision for
// both kinds of move; moving a document onto its own file is a no-op.
func (f *FS) Move(from, to string) error {
	fromSlug := Normalize(from)
	toSlug := Normalize(to)

	if fromSlug != "" && f.IsDir(fromSlug) {
		return f.MoveDir(fromSlug, toSlug)
	}

	src, err := f.Resolve(fromSlug)
	if err != nil {
		return fmt.Errorf("storage: move source: %w", err)
	}
	dst := f.writeTarget(toSlug)
	if src == dst {
		return nil
	}
	if _, err := os.Lstat(dst); err == nil {
		return fmt.Errorf("storage: move %q to %q: %w", fromSlug, toSlug, apperr.ErrCollision)
	}
	if err := f.ensureParent(dst); err != nil {
		return err
	}
	if err := os.Rename(src, dst); err != nil {
		return fmt.Errorf("storage: move: %w", err)
	}
	return nil
}

// MoveDir renames a directory subtree in one rename call.
func (f *FS) MoveDir(from, to string) error {
	from, to = Normalize(from), Normalize(to)
	if from == "" {
		return fmt.Errorf("storage: cannot move the root folder: %w", apperr.ErrInvalidPath)
	}
	if to == "" {
		return fmt.Errorf("storage: move folder %q: empty target: %w", from, apperr.ErrInvalidPath)
	}
	if to == from || strings.HasPrefix(to, from+"/") {
		return fmt.Errorf("storage: cannot move %q into itself: %w", from, apperr.ErrInvalidPath)
	}
	src, ok := f.dirAbs(from)
	if !ok {
		return fmt.Errorf("storage: move folder %q: %w", from, apperr.ErrNotFound)
	}
	if f.IsDir(to) {
		return fmt.Errorf("storage: move folder to %q: %w", to, apperr.ErrCollision)
	}
	if _, err := f.Resolve(to); err == nil {
		return fmt.Errorf("storage: move folder to %q: %w", to, apperr.ErrCollision)
	}
	dst := f.abs(to)
	if _, err := os.Lstat(dst); err == nil {
		return fmt.Errorf("storage: move folder to %q: %w", to, apperr.ErrCollision)
	}
	if err := f.ensureParent(dst); err != nil {
		return err
	}
	if err := os.Rename(src, dst); err != nil {
		return fmt.Errorf("storage: move folder: %w", err)
	}
	return nil
}

// Delete removes a document, or a directory with everything below it.
// Directory removal is best effort: the first failure stops the walk and is
// returned, and whatever was not reached yet stays on disk. Slugs that pass
// through a symlinked directory are rejected.
func (f *FS) Delete(slug string) error {
	slug = Normalize(slug)
	if slug == "" {
		return fmt.Errorf("storage: cannot delete the root: %w", apperr.ErrInvalidPath)
	}
	if f.throughSymlink(slug) {
		return fmt.Errorf("storage: delete %s: symlinked path: %w", slug, apperr.ErrInvalidPath)
	}
	if dir, ok := f.dirAbs(slug); ok {
		if err := removeTree(dir); err != nil {
			return fmt.Errorf("storage: delete folder %s: %w", slug, err)
		}
		return nil
	}
	p, err := f.Resolve(slug)
	if err != nil {
		return err
	}
	if err := os.Remove(p); err != nil {
		return fmt.Errorf("storage: delete %s: %w", slug, err)
	}
	return nil
}

var removeFile = os.Remove

// removeTree deletes children before parents. Symlinks are removed, never followed.
func removeTree(dir string) error {
	entries, err := os.ReadDir(dir)
	if err != nil {
		return err
	}
	for _, e := range entries {
		p := filepath.Join(dir, e.Name())
		if e.IsDir() {
			if err := removeTree(p); err != nil {
				return err
			}
			continue
		}
		if err := removeFile(p); err != nil {
			return err
		}
	}
	return removeFile(dir)
}

package storage

import (
	"fmt"
	"io/fs"
	"os"
	"path/filepath"
	"sort"
	"strings"
	"time"

	"github.com/starford/markbase/internal/apperr"
	"github.com/starford/markbase/internal/models"
)

// Document describes one content file reached by Walk.
type Document struct {
	Slug    string
	Path    string
	Name    string
	ModTime time.Time
}

// nameLess orders names case-insensitively with a byte-wise tiebreak.
func nameLess(a, b string) bool {
	la, lb := strings.ToLower(a), strings.ToLower(b)
	if la != lb {
		return la < lb
	}
	return a < b
}

// entryLess puts directories first, then orders by name.
func entryLess(aDir, bDir bool, a, b string) bool {
	if aDir != bDir {
		return aDir
	}
	return nameLess(a, b)
}

// ListDir returns one level of the directory named by slug. The directory's
// own index document is left out, as is anything that is not a real
// directory or a content file. Symlinks are skipped.
func (f *FS) ListDir(slug string) ([]models.Entry, error) {
	slug = Normalize(slug)
	dir, ok := f.dirAbs(slug)
	if !ok {
		return nil, fmt.Errorf("storage: list %q: %w", slug, apperr.ErrNotFound)
	}
	entries, err := os.ReadDir(dir)
	if err != nil {
		return nil, fmt.Errorf("storage: list %q: %w", slug, err)
	}
	var index string
	if p, ok := findIndex(dir); ok {
		index = filepath.Base(p)
	}
	items := make([]models.Entry, 0, len(entries))
	for _, e := range entries {
		name := e.Name()
		switch {
		case e.IsDir():
			items = append(items, models.Entry{Type: models.EntryDir, Name: name, Slug: Join(slug, name)})
		case e.Type().IsRegular() && HasExt(name) && name != index:
			stem := StripExt(name)
			items = append(items, models.Entry{Type: models.EntryFile, Name: stem, Slug: Join(slug, stem)})
		}
	}
	sort.SliceStable(items, func(i, j int) bool {
		return entryLess(items[i].Type == models.EntryDir, items[j].Type == models.EntryDir, items[i].Name, items[j].Name)
	})
	return items, nil
}

// Tree returns a full recursive snapshot of the document root.
func (f *FS) Tree() (models.Tree, error) {
	t, err := f.buildTree(f.root)
	if err != nil {
		return nil, fmt.Errorf("storage: tree: %w", err)
	}
	return t, nil
}

func (f *FS) buildTree(dir string) (models.Tree, error) {
	entries, err := os.ReadDir(dir)
	if err != nil {
		return nil, err
	}
	tree := make(models.Tree, 0, len(entries))
	for _, e := range entries {
		p := filepath.Join(dir, e.Name())
		switch {
		case e.IsDir():
			children, err := f.buildTree(p)
			if err != nil {
				return nil, err
			}
			tree = append(tree, &models.DirNode{Name: e.Name(), Children: children})
		case e.Type().IsRegular() && HasExt(e.Name()):
			tree = append(tree, &models.FileNode{Name: e.Name(), Slug: f.Slug(p)})
		}
	}
	sort.SliceStable(tree, func(i, j int) bool {
		_, aDir := tree[i].(*models.DirNode)
		_, bDir := tree[j].(*models.DirNode)
		return entryLess(aDir, bDir, tree[i].NodeName(), tree[j].NodeName())
	})
	return tree, nil
}

// Walk calls fn for every content file under the root.
func (f *FS) Walk(fn func(Document) error) error {
	err := filepath.WalkDir(f.root, func(p string, d fs.DirEntry, walkErr error) error {
		if walkErr != nil {
			return walkErr
		}
		if !d.Type().IsRegular() || !HasExt(d.Name()) {
			return nil
		}
		info, err := d.Info()
		if err != nil {
			return err
		}
		return fn(Document{
			Slug:    f.Slug(p),
			Path:    p,
			Name:    d.Name(),
			ModTime: info.ModTime(),
		})
	})
	if err != nil {
		return fmt.Errorf("storage: walk: %w", err)
	}
	return nil
}

// FindByFilename returns the sorted slugs of every document whose file name,
// extension aside, equals name exactly.
func (f *FS) FindByFilename(name string) ([]string, error) {
	name = StripExt(name)
	var out []string
	err := f.Walk(func(d Document) error {
		if StripExt(d.Name) == name {
			out = append(out, d.Slug)
		}
		return nil
	})
	if err != nil {
		return nil, err
	}
	sort.Strings(out)
	return out, nil
}

// MaxModTime returns the newest modification time across all documents, or
// the zero time for an empty root.
func (f *FS) MaxModTime() (time.Time, error) {
	var max time.Time
	err := f.Walk(func(d Document) error {
		if d.ModTime.After(max) {
			max = d.ModTime
		}
		return nil
	})
	return max, err
}

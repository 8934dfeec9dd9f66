package wiki

import (
	"log/slog"
	"time"

	"github.com/starford/markbase/internal/cache"
	"github.com/starford/markbase/internal/models"
	"github.com/starford/markbase/internal/storage"
)

// TreePayload is the persisted navigation tree.
type TreePayload struct {
	UpdatedAt int64       `json:"updated_at"`
	Tree      models.Tree `json:"tree"`
}

// NewTreeStore returns the JSON file backend for the tree cache.
func NewTreeStore(path string) *cache.JSONFile[TreePayload] {
	f := cache.NewJSONFile[TreePayload](path)
	f.Check = func(p *TreePayload) bool { return p.UpdatedAt > 0 && p.Tree != nil }
	return f
}

// TreeCache serves the navigation tree. A cached tree is discarded when a
// document changed after it was built or when it lists a file that no
// longer exists.
type TreeCache struct {
	svc *cache.Service[TreePayload]
}

// NewTreeCache creates a tree cache over store. lock may be nil.
func NewTreeCache(store storage.Provider, backend cache.Backend[TreePayload], lock *cache.Lock, logger *slog.Logger) *TreeCache {
	return &TreeCache{svc: cache.New(cache.Spec[TreePayload]{
		Name:    "tree",
		Backend: backend,
		Oracle:  store.MaxModTime,
		Stamp:   func(p *TreePayload) int64 { return p.UpdatedAt },
		Build: func() (*TreePayload, error) {
			t, err := store.Tree()
			if err != nil {
				return nil, err
			}
			return &TreePayload{UpdatedAt: time.Now().Unix(), Tree: t}, nil
		},
		Valid:  func(p *TreePayload) bool { return !hasMissing(store, p.Tree) },
		Lock:   lock,
		Logger: logger,
	})}
}

// Get returns the current tree.
func (c *TreeCache) Get() (models.Tree, error) {
	p, err := c.svc.Get()
	if err != nil {
		return nil, err
	}
	return p.Tree, nil
}

// Rebuild discards the cached tree.
func (c *TreeCache) Rebuild() (models.Tree, error) {
	p, err := c.svc.Rebuild()
	if err != nil {
		return nil, err
	}
	return p.Tree, nil
}

// hasMissing reports whether any file node no longer resolves. Files are
// checked by their exact name so that a page sharing its slug with a folder
// is not mistaken for the folder's index.
func hasMissing(store storage.Provider, t models.Tree) bool {
	for _, n := range t {
		switch v := n.(type) {
		case *models.DirNode:
			if hasMissing(store, v.Children) {
				return true
			}
		case *models.FileNode:
			if v.Slug == "" {
				return true
			}
			if _, err := store.Resolve(storage.Join(storage.Parent(v.Slug), v.Name)); err != nil {
				return true
			}
		default:
			return true
		}
	}
	return false
}

package wiki

import (
	"fmt"
	"log/slog"
	"os"
	"path/filepath"

	"github.com/starford/markbase/internal/cache"
	"github.com/starford/markbase/internal/index"
	"github.com/starford/markbase/internal/links"
	"github.com/starford/markbase/internal/render"
	"github.com/starford/markbase/internal/sse"
	"github.com/starford/markbase/internal/storage"
)

// Index cache drivers.
const (
	DriverJSON   = "json"
	DriverSQLite = "sqlite"
)

// Cache file names inside the cache directory.
const (
	indexFile  = "search_index.json"
	sqliteFile = "search_index.db"
	treeFile   = "tree.json"
	htmlDir    = "html"
)

// Setup describes where a wiki keeps its documents and caches.
type Setup struct {
	DocRoot  string
	BasePath string
	CacheDir string
	// Driver selects the index cache backend, DriverJSON when empty.
	Driver    string
	Logger    *slog.Logger
	Publisher sse.Publisher
}

// Stack is an assembled wiki: the service plus the parts long-running
// processes need direct access to.
type Stack struct {
	Service *Service
	Store   *storage.FS
	Index   *index.Indexer

	closers []func() error
}

// Open creates the document root and cache directory if needed and wires
// storage, index, tree cache and renderer into a Service.
func Open(s Setup) (*Stack, error) {
	logger := s.Logger
	if logger == nil {
		logger = slog.Default()
	}
	for _, dir := range []string{s.DocRoot, s.CacheDir} {
		if err := os.MkdirAll(dir, 0o755); err != nil {
			return nil, fmt.Errorf("wiki: create %s: %w", dir, err)
		}
	}

	store, err := storage.NewFS(s.DocRoot)
	if err != nil {
		return nil, fmt.Errorf("wiki: init storage: %w", err)
	}
	st := &Stack{Store: store}

	lock := cache.NewLock(s.CacheDir)
	var backend cache.Backend[index.Payload]
	switch s.Driver {
	case "", DriverJSON:
		backend = index.NewJSONStore(filepath.Join(s.CacheDir, indexFile))
	case DriverSQLite:
		db, err := index.OpenSQLite(filepath.Join(s.CacheDir, sqliteFile))
		if err != nil {
			return nil, err
		}
		st.closers = append(st.closers, db.Close)
		backend = db
	default:
		return nil, fmt.Errorf("wiki: unknown index driver %q", s.Driver)
	}

	resolver := links.NewResolver(store, s.BasePath)
	st.Index = index.New(store, backend, lock, index.WithLogger(logger))
	tree := NewTreeCache(store, NewTreeStore(filepath.Join(s.CacheDir, treeFile)), lock, logger)
	renderer := render.New(resolver,
		render.WithCache(render.NewCache(filepath.Join(s.CacheDir, htmlDir))),
		render.WithLogger(logger),
	)

	opts := []Option{WithLogger(logger)}
	if s.Publisher != nil {
		opts = append(opts, WithPublisher(s.Publisher))
	}
	st.Service = NewService(store, resolver, st.Index, tree, renderer, opts...)
	return st, nil
}

// Close releases the index backend.
func (st *Stack) Close() error {
	var first error
	for _, c := range st.closers {
		if err := c(); err != nil && first == nil {
			first = err
		}
	}
	return first
}

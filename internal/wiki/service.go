// Package wiki orchestrates the document repository, link resolver, search
// index, renderer and caches behind the operations the outer surfaces
// (HTTP API, MCP tools, CLI) expose.
package wiki

import (
	"errors"
	"fmt"
	"log/slog"
	"os"
	"strings"
	"sync"

	"github.com/starford/markbase/internal/apperr"
	"github.com/starford/markbase/internal/index"
	"github.com/starford/markbase/internal/links"
	"github.com/starford/markbase/internal/models"
	"github.com/starford/markbase/internal/render"
	"github.com/starford/markbase/internal/sse"
	"github.com/starford/markbase/internal/storage"
)

// ViewKind tells a page view from a folder listing.
type ViewKind string

const (
	KindPage   ViewKind = "page"
	KindFolder ViewKind = "folder"
)

// View is what a reader sees at a slug.
type View struct {
	Kind ViewKind `json:"kind"`
	// Slug is the requested location; Doc is the document actually shown,
	// which differs for folders backed by an index document.
	Slug        string         `json:"path"`
	Doc         string         `json:"doc,omitempty"`
	Title       string         `json:"title"`
	HTML        string         `json:"html,omitempty"`
	Items       []models.Entry `json:"items,omitempty"`
	Backlinks   []string       `json:"backlinks"`
	Breadcrumbs []models.Crumb `json:"breadcrumbs"`
	IsFolder    bool           `json:"is_folder"`
}

// Draft is the editable source of a document.
type Draft struct {
	Slug    string `json:"path"`
	Content string `json:"content"`
	// Exists is false for a page that has not been written yet.
	Exists bool `json:"exists"`
	// Generated is set when the content is a freshly written folder index.
	Generated bool `json:"generated"`
}

// Service coordinates storage, index and rendering operations.
type Service struct {
	store    storage.Provider
	resolver *links.Resolver
	index    index.Searcher
	tree     *TreeCache
	renderer *render.Renderer
	events   sse.Publisher
	logger   *slog.Logger

	// Mutations hold the write lock so that no rebuild observes a
	// half-applied change.
	mu sync.RWMutex
}

// Option configures a Service.
type Option func(*Service)

// WithPublisher sends page events to p.
func WithPublisher(p sse.Publisher) Option {
	return func(s *Service) { s.events = p }
}

// WithLogger sets the logger.
func WithLogger(l *slog.Logger) Option {
	return func(s *Service) { s.logger = l }
}

// NewService creates a new wiki service.
func NewService(store storage.Provider, resolver *links.Resolver, ix index.Searcher, tree *TreeCache, renderer *render.Renderer, opts ...Option) *Service {
	s := &Service{
		store:    store,
		resolver: resolver,
		index:    ix,
		tree:     tree,
		renderer: renderer,
		logger:   slog.Default(),
	}
	for _, o := range opts {
		o(s)
	}
	return s
}

// Resolver returns the link resolver used for URLs.
func (s *Service) Resolver() *links.Resolver { return s.resolver }

// View renders the document at slug. A folder without an index document is
// shown as a listing of its items.
func (s *Service) View(slug string) (*View, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()

	slug = storage.Normalize(slug)
	isDir := s.store.IsDir(slug)
	file, err := s.store.Resolve(slug)
	switch {
	case errors.Is(err, apperr.ErrNotFound) && isDir:
		items, err := s.store.ListDir(slug)
		if err != nil {
			return nil, err
		}
		return &View{
			Kind:        KindFolder,
			Slug:        slug,
			Title:       Label(slug),
			Items:       items,
			Backlinks:   []string{},
			Breadcrumbs: s.breadcrumbs(slug),
			IsFolder:    true,
		}, nil
	case err != nil:
		return nil, err
	}

	doc := s.store.Slug(file)
	current := storage.StripExt(slug)
	if isDir {
		current = slug
	}
	html, err := s.renderFile(doc, file)
	if err != nil {
		return nil, err
	}
	backlinks, err := s.index.Backlinks(doc)
	if err != nil {
		s.logger.Warn("wiki: backlinks unavailable", slog.String("slug", doc), slog.String("error", err.Error()))
		backlinks = []string{}
	}
	return &View{
		Kind:        KindPage,
		Slug:        current,
		Doc:         doc,
		Title:       Label(current),
		HTML:        string(html),
		Backlinks:   backlinks,
		Breadcrumbs: s.breadcrumbs(current),
		IsFolder:    isDir,
	}, nil
}

func (s *Service) renderFile(doc, file string) ([]byte, error) {
	info, err := os.Stat(file)
	if err != nil {
		return nil, fmt.Errorf("wiki: stat %q: %w", doc, err)
	}
	generation, err := s.store.MaxModTime()
	if err != nil {
		return nil, err
	}
	version := render.Version(info.ModTime(), info.Size(), generation)
	return s.renderer.RenderVersion(doc, version, func() ([]byte, error) {
		return os.ReadFile(file)
	})
}

// Source returns the raw markdown of the document at slug without any side
// effects.
func (s *Service) Source(slug string) ([]byte, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()
	return s.store.Read(storage.Normalize(slug))
}

// Edit returns the source of the document at slug. Editing a folder that
// has no index document writes a generated one first.
func (s *Service) Edit(slug string) (*Draft, error) {
	slug = storage.Normalize(slug)

	s.mu.RLock()
	data, err := s.store.Read(slug)
	isDir := s.store.IsDir(slug)
	s.mu.RUnlock()

	switch {
	case err == nil:
		return &Draft{Slug: slug, Content: string(data), Exists: true}, nil
	case !errors.Is(err, apperr.ErrNotFound):
		return nil, err
	case !isDir:
		return &Draft{Slug: slug}, nil
	}

	s.mu.Lock()
	defer s.mu.Unlock()
	if data, err := s.store.Read(slug); err == nil {
		return &Draft{Slug: slug, Content: string(data), Exists: true}, nil
	}
	items, err := s.store.ListDir(slug)
	if err != nil {
		return nil, err
	}
	content := FolderIndex(slug, items)
	if _, err := s.store.Write(slug, []byte(content)); err != nil {
		return nil, err
	}
	s.afterMutation(sse.PageEvent{Kind: sse.KindCreated, Slug: slug})
	return &Draft{Slug: slug, Content: content, Exists: true, Generated: true}, nil
}

// Save creates or replaces the document at slug. Last write wins.
func (s *Service) Save(slug string, content []byte) (string, error) {
	s.mu.Lock()
	defer s.mu.Unlock()

	slug = storage.Normalize(slug)
	kind := sse.KindUpdated
	if _, err := s.store.Resolve(slug); err != nil {
		kind = sse.KindCreated
	}
	if _, err := s.store.Write(slug, content); err != nil {
		return "", err
	}
	s.afterMutation(sse.PageEvent{Kind: kind, Slug: storage.StripExt(slug)})
	return storage.StripExt(slug), nil
}

// Create makes an empty page called name inside dir and returns its slug.
// An existing page is left untouched.
func (s *Service) Create(dir, name string) (string, error) {
	target, err := Target(dir, name)
	if err != nil {
		return "", err
	}

	s.mu.Lock()
	defer s.mu.Unlock()
	if _, err := s.store.Resolve(target); err == nil {
		return target, nil
	}
	if _, err := s.store.Write(target, nil); err != nil {
		return "", err
	}
	s.afterMutation(sse.PageEvent{Kind: sse.KindCreated, Slug: target})
	return target, nil
}

// MoveTo moves from into dir under name.
func (s *Service) MoveTo(from, dir, name string) (string, error) {
	to, err := Target(dir, name)
	if err != nil {
		return "", err
	}
	return s.Move(from, to)
}

// Move renames a document or folder and returns the new slug. Moving onto
// the same slug does nothing.
func (s *Service) Move(from, to string) (string, error) {
	from, to = storage.Normalize(from), storage.Normalize(to)
	if to == "" {
		return "", fmt.Errorf("wiki: move to root: %w", apperr.ErrInvalidPath)
	}
	if from == to {
		return to, nil
	}

	s.mu.Lock()
	defer s.mu.Unlock()
	if err := s.store.Move(from, to); err != nil {
		return "", err
	}
	s.afterMutation(sse.PageEvent{Kind: sse.KindMoved, Slug: storage.StripExt(to), From: storage.StripExt(from)})
	return storage.StripExt(to), nil
}

// Delete removes a document or a whole folder and returns the slug of the
// folder that contained it.
func (s *Service) Delete(slug string) (string, error) {
	slug = storage.Normalize(slug)
	if slug == "" {
		return "", fmt.Errorf("wiki: delete root: %w", apperr.ErrInvalidPath)
	}

	s.mu.Lock()
	defer s.mu.Unlock()
	if err := s.store.Delete(slug); err != nil {
		return "", err
	}
	s.afterMutation(sse.PageEvent{Kind: sse.KindDeleted, Slug: storage.StripExt(slug)})
	return storage.Parent(slug), nil
}

// afterMutation refreshes the caches and announces the change.
// Refresh failures are logged; the next read rebuilds anyway.
func (s *Service) afterMutation(ev sse.PageEvent) {
	if _, err := s.index.Build(); err != nil {
		s.logger.Warn("wiki: reindex failed", slog.String("slug", ev.Slug), slog.String("error", err.Error()))
	}
	if _, err := s.tree.Rebuild(); err != nil {
		s.logger.Warn("wiki: tree rebuild failed", slog.String("slug", ev.Slug), slog.String("error", err.Error()))
	}
	// Rendered pages embed link targets that may have just appeared or vanished.
	if err := s.renderer.Purge(); err != nil {
		s.logger.Warn("wiki: render cache purge failed", slog.String("error", err.Error()))
	}
	s.logger.Info("wiki: page "+ev.Kind, slog.String("slug", ev.Slug))
	if s.events != nil {
		s.events.PublishPage(ev)
	}
}

// Search runs a scored full-text query. A blank query has no results.
func (s *Service) Search(query string) ([]models.SearchResult, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()
	res, err := s.index.Search(strings.TrimSpace(query))
	if err != nil {
		return nil, err
	}
	if res == nil {
		res = []models.SearchResult{}
	}
	return res, nil
}

// Filter matches query against titles and slugs for live filtering.
func (s *Service) Filter(query string) ([]string, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()
	paths, err := s.index.SearchPaths(query)
	if err != nil {
		return nil, err
	}
	if paths == nil {
		paths = []string{}
	}
	return paths, nil
}

// Disambiguate lists every page whose file name is name.
func (s *Service) Disambiguate(name string) ([]string, error) {
	name = strings.TrimSpace(name)
	if name == "" {
		return []string{}, nil
	}
	s.mu.RLock()
	defer s.mu.RUnlock()
	matches, err := s.store.FindByFilename(name)
	if err != nil {
		return nil, err
	}
	if matches == nil {
		matches = []string{}
	}
	return matches, nil
}

// Backlinks returns the pages linking to slug.
func (s *Service) Backlinks(slug string) ([]string, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()
	return s.index.Backlinks(slug)
}

// Tree returns the navigation tree.
func (s *Service) Tree() (models.Tree, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()
	return s.tree.Get()
}

// Reindex rebuilds the search index and the tree unconditionally and drops
// every rendered page.
func (s *Service) Reindex() (int, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	p, err := s.index.Build()
	if err != nil {
		return 0, err
	}
	if _, err := s.tree.Rebuild(); err != nil {
		return 0, err
	}
	if err := s.renderer.Purge(); err != nil {
		return 0, err
	}
	return len(p.Pages), nil
}

// Refresh rebuilds the caches after files changed outside the service. It
// waits for any mutation in progress, so it never sees a half-done delete
// or move.
func (s *Service) Refresh() error {
	_, err := s.Reindex()
	return err
}

// Breadcrumbs returns Home followed by one crumb per slug segment.
func (s *Service) Breadcrumbs(slug string) []models.Crumb {
	return s.breadcrumbs(storage.Normalize(slug))
}

func (s *Service) breadcrumbs(slug string) []models.Crumb {
	crumbs := []models.Crumb{{Label: "Home", URL: s.resolver.ViewURL("", "")}}
	if slug == "" {
		return crumbs
	}
	acc := ""
	for _, part := range strings.Split(slug, "/") {
		acc = storage.Join(acc, part)
		crumbs = append(crumbs, models.Crumb{Label: part, URL: s.resolver.ViewURL(acc, "")})
	}
	return crumbs
}

// Package index builds and serves the full-text search index and the
// backlink map derived from every document in the repository.
package index

import (
	"fmt"
	"log/slog"
	"sort"
	"strings"
	"time"

	"github.com/starford/markbase/internal/cache"
	"github.com/starford/markbase/internal/models"
	"github.com/starford/markbase/internal/parser"
	"github.com/starford/markbase/internal/storage"
)

// Searcher defines the interface for index queries.
// Consumers should depend on this interface rather than the concrete
// *Indexer type to facilitate testing with fakes.
type Searcher interface {
	Load() (*Payload, error)
	Build() (*Payload, error)
	Search(query string) ([]models.SearchResult, error)
	SearchPaths(query string) ([]string, error)
	Backlinks(slug string) ([]string, error)
}

// Verify *Indexer satisfies Searcher at compile time.
var _ Searcher = (*Indexer)(nil)

// Indexer owns the cached index payload for one document repository.
type Indexer struct {
	store  storage.Provider
	cache  *cache.Service[Payload]
	logger *slog.Logger
	now    func() time.Time
}

// Option configures an Indexer.
type Option func(*Indexer)

// WithLogger sets the logger.
func WithLogger(l *slog.Logger) Option {
	return func(ix *Indexer) { ix.logger = l }
}

// WithClock overrides the clock used to stamp new payloads.
func WithClock(now func() time.Time) Option {
	return func(ix *Indexer) { ix.now = now }
}

// New creates an Indexer that persists payloads through backend. lock may
// be nil.
func New(store storage.Provider, backend cache.Backend[Payload], lock *cache.Lock, opts ...Option) *Indexer {
	ix := &Indexer{store: store, logger: slog.Default(), now: time.Now}
	for _, o := range opts {
		o(ix)
	}
	ix.cache = cache.New(cache.Spec[Payload]{
		Name:    "search-index",
		Backend: backend,
		Oracle:  store.MaxModTime,
		Stamp:   func(p *Payload) int64 { return p.UpdatedAt },
		Build:   func() (*Payload, error) { return Build(store, ix.now()) },
		Lock:    lock,
		Logger:  ix.logger,
	})
	return ix
}

// Load returns the cached payload, rebuilding it when any document changed
// after it was built.
func (ix *Indexer) Load() (*Payload, error) {
	p, err := ix.cache.Get()
	if err != nil {
		return nil, fmt.Errorf("index: load: %w", err)
	}
	return p, nil
}

// Build rebuilds and stores the payload.
func (ix *Indexer) Build() (*Payload, error) {
	p, err := ix.cache.Rebuild()
	if err != nil {
		return nil, fmt.Errorf("index: build: %w", err)
	}
	return p, nil
}

// Search scores every document by the number of distinct query tokens it
// contains. Results are ordered by score, then slug.
func (ix *Indexer) Search(query string) ([]models.SearchResult, error) {
	tokens := parser.Tokenize(query)
	if len(tokens) == 0 {
		return nil, nil
	}
	p, err := ix.Load()
	if err != nil {
		return nil, err
	}

	scores := make(map[string]int)
	for _, tok := range tokens {
		for _, slug := range p.Index[tok] {
			scores[slug]++
		}
	}

	results := make([]models.SearchResult, 0, len(scores))
	for slug, score := range scores {
		page, ok := p.Pages[slug]
		if !ok {
			continue
		}
		results = append(results, models.SearchResult{
			Slug:    slug,
			Title:   page.Title,
			Snippet: parser.Snippet(page.Text, tokens),
			Score:   score,
		})
	}
	sort.Slice(results, func(i, j int) bool {
		if results[i].Score != results[j].Score {
			return results[i].Score > results[j].Score
		}
		return results[i].Slug < results[j].Slug
	})
	return results, nil
}

// SearchPaths matches query as a case-insensitive substring of each title
// and slug. Earlier title matches sort first, then earlier slug matches.
func (ix *Indexer) SearchPaths(query string) ([]string, error) {
	q := strings.ToLower(strings.TrimSpace(query))
	if q == "" {
		return nil, nil
	}
	p, err := ix.Load()
	if err != nil {
		return nil, err
	}

	type match struct {
		slug             string
		titlePos, slugPos int
	}
	const none = int(^uint(0) >> 1)
	position := func(s string) int {
		if i := strings.Index(strings.ToLower(s), q); i >= 0 {
			return i
		}
		return none
	}

	var matches []match
	for slug, page := range p.Pages {
		title := page.Title
		if title == "" {
			title = slug
		}
		m := match{slug: slug, titlePos: position(title), slugPos: position(slug)}
		if m.titlePos == none && m.slugPos == none {
			continue
		}
		matches = append(matches, m)
	}
	sort.Slice(matches, func(i, j int) bool {
		a, b := matches[i], matches[j]
		if a.titlePos != b.titlePos {
			return a.titlePos < b.titlePos
		}
		if a.slugPos != b.slugPos {
			return a.slugPos < b.slugPos
		}
		la, lb := strings.ToLower(a.slug), strings.ToLower(b.slug)
		if la != lb {
			return la < lb
		}
		return a.slug < b.slug
	})

	out := make([]string, len(matches))
	for i, m := range matches {
		out[i] = m.slug
	}
	return out, nil
}

// Backlinks returns the sorted slugs of documents linking to slug.
func (ix *Indexer) Backlinks(slug string) ([]string, error) {
	p, err := ix.Load()
	if err != nil {
		return nil, err
	}
	refs := p.Backlinks[storage.Canonical(slug)]
	return append([]string{}, refs...), nil
}

// Package render converts documents to HTML, rewriting every link and image
// through the link resolver, and caches the result per document version.
package render

import (
	"bytes"
	"fmt"
	"log/slog"

	"github.com/yuin/goldmark"
	"github.com/yuin/goldmark/ast"
	"github.com/yuin/goldmark/extension"
	"github.com/yuin/goldmark/parser"
	"github.com/yuin/goldmark/text"
	"github.com/yuin/goldmark/util"

	"github.com/starford/markbase/internal/links"
)

var slugKey = parser.NewContextKey()

// Renderer turns Markdown into HTML. Raw HTML in documents is dropped and
// replaced by an "omitted" comment.
type Renderer struct {
	md       goldmark.Markdown
	resolver *links.Resolver
	cache    *Cache
	logger   *slog.Logger
}

// Option configures a Renderer.
type Option func(*Renderer)

// WithCache stores rendered pages in c.
func WithCache(c *Cache) Option {
	return func(r *Renderer) { r.cache = c }
}

// WithLogger sets the logger.
func WithLogger(l *slog.Logger) Option {
	return func(r *Renderer) { r.logger = l }
}

// New creates a Renderer backed by resolver.
func New(resolver *links.Resolver, opts ...Option) *Renderer {
	r := &Renderer{resolver: resolver, logger: slog.Default()}
	for _, o := range opts {
		o(r)
	}
	r.md = goldmark.New(
		goldmark.WithExtensions(extension.GFM),
		goldmark.WithParserOptions(
			parser.WithAutoHeadingID(),
			parser.WithASTTransformers(util.Prioritized(&linkRewriter{resolver: resolver}, 100)),
		),
	)
	return r
}

// Render converts markdown written at slug into HTML. Wiki links become
// conventional links first; every link and image destination is then
// resolved relative to slug.
func (r *Renderer) Render(slug string, markdown []byte) ([]byte, error) {
	src := []byte(r.resolver.RewriteWikiLinks(slug, string(markdown)))
	pc := parser.NewContext()
	pc.Set(slugKey, slug)

	var buf bytes.Buffer
	if err := r.md.Convert(src, &buf, parser.WithContext(pc)); err != nil {
		return nil, fmt.Errorf("render: %s: %w", slug, err)
	}
	return buf.Bytes(), nil
}

// RenderVersion renders a document through the cache. version identifies
// the document state the HTML is derived from; load is only called on a miss.
func (r *Renderer) RenderVersion(slug, version string, load func() ([]byte, error)) ([]byte, error) {
	if r.cache != nil {
		if html, ok := r.cache.Get(slug, version); ok {
			return html, nil
		}
	}
	markdown, err := load()
	if err != nil {
		return nil, err
	}
	html, err := r.Render(slug, markdown)
	if err != nil {
		return nil, err
	}
	if r.cache != nil {
		if err := r.cache.Put(slug, version, html); err != nil {
			r.logger.Warn("render: cache write failed", slog.String("slug", slug), slog.String("error", err.Error()))
		}
	}
	return html, nil
}

// Purge drops every cached page.
func (r *Renderer) Purge() error {
	if r.cache == nil {
		return nil
	}
	return r.cache.Purge()
}

// linkRewriter resolves link and image destinations in the parsed document.
type linkRewriter struct {
	resolver *links.Resolver
}

func (t *linkRewriter) Transform(doc *ast.Document, _ text.Reader, pc parser.Context) {
	current, _ := pc.Get(slugKey).(string)
	_ = ast.Walk(doc, func(n ast.Node, entering bool) (ast.WalkStatus, error) {
		if !entering {
			return ast.WalkContinue, nil
		}
		switch node := n.(type) {
		case *ast.Link:
			if dest, ok := t.resolver.ResolveMarkdown(current, string(node.Destination)); ok {
				node.Destination = []byte(dest)
			}
		case *ast.Image:
			dest, _ := t.resolver.ResolveImage(string(node.Destination))
			node.Destination = []byte(dest)
		}
		return ast.WalkContinue, nil
	})
}

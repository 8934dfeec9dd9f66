// Package links turns wiki-style and conventional Markdown links into
// navigable application URLs.
package links

import (
	"net/url"
	"regexp"
	"strings"

	"github.com/starford/markbase/internal/storage"
)

var schemeRe = regexp.MustCompile(`^[a-zA-Z][a-zA-Z0-9+.\-]*:`)

// Finder looks documents up by bare file name.
type Finder interface {
	FindByFilename(name string) ([]string, error)
}

// Resolver resolves link targets relative to the document that contains them.
type Resolver struct {
	finder Finder
	base   string
}

// WikiTarget is the outcome of resolving a [[target]] reference.
type WikiTarget struct {
	URL        string
	Label      string
	Ambiguous  bool
	Candidates []string
	// Missing is set when the link points at a page that does not exist yet
	// and URL leads to its editor.
	Missing bool
}

// NewResolver creates a Resolver. basePath is the URL prefix the wiki is
// mounted under, "" for the host root.
func NewResolver(finder Finder, basePath string) *Resolver {
	return &Resolver{finder: finder, base: strings.TrimRight(basePath, "/")}
}

// ResolveWiki resolves a wiki link target written inside the document current.
// A target containing "/" is an explicit slug; otherwise it is a bare file
// name matched across the whole repository.
func (r *Resolver) ResolveWiki(current, target string) WikiTarget {
	target, label := SplitAlias(target)
	if target == "" {
		return WikiTarget{URL: "#", Label: label}
	}
	if strings.Contains(target, "/") {
		return WikiTarget{URL: r.ViewURL(storage.Canonical(target), ""), Label: label}
	}

	matches, err := r.finder.FindByFilename(target)
	if err != nil {
		matches = nil
	}
	switch len(matches) {
	case 0:
		slug := storage.Canonical(storage.JoinRelative(storage.Normalize(current), target))
		return WikiTarget{URL: r.EditURL(slug), Label: label, Missing: true}
	case 1:
		return WikiTarget{URL: r.ViewURL(matches[0], ""), Label: label}
	default:
		return WikiTarget{
			URL:        r.DisambiguateURL(target),
			Label:      label,
			Ambiguous:  true,
			Candidates: matches,
		}
	}
}

// ResolveMarkdown resolves the destination of a [label](target) link. Fragment
// only targets, URIs with a scheme and URLs already produced by the resolver
// pass through unchanged. It reports false for an empty target.
func (r *Resolver) ResolveMarkdown(current, target string) (string, bool) {
	target = strings.TrimSpace(target)
	if target == "" {
		return "", false
	}
	if strings.HasPrefix(target, "#") || schemeRe.MatchString(target) || r.IsRoute(target) {
		return target, true
	}

	fragment := ""
	if i := strings.IndexByte(target, '#'); i >= 0 {
		target, fragment = target[:i], target[i:]
	}
	if strings.HasPrefix(target, "/") {
		return r.ViewURL(storage.Canonical(target), fragment), true
	}
	joined := storage.JoinRelative(storage.Normalize(current), target)
	return r.ViewURL(storage.Canonical(joined), fragment), true
}

// ResolveImage maps an image source into the image namespace. Sources that
// climb above the image root are rejected.
func (r *Resolver) ResolveImage(target string) (string, bool) {
	target = strings.TrimSpace(target)
	if target == "" {
		return "", false
	}
	if schemeRe.MatchString(target) {
		return target, true
	}
	if storage.Climbs(target) {
		return "", false
	}
	p := storage.Normalize(target)
	if p == "" {
		return "", false
	}
	return r.base + "/img/" + escapePath(p), true
}

// IsRoute reports whether u is a URL the resolver itself produces.
func (r *Resolver) IsRoute(u string) bool {
	for _, prefix := range []string{"/view?", "/edit?", "/disambiguate?"} {
		if strings.HasPrefix(u, r.base+prefix) {
			return true
		}
	}
	return u == r.base+"/edit" || u == r.base+"/" || (r.base != "" && u == r.base)
}

// ViewURL is the URL of the page at slug.
func (r *Resolver) ViewURL(slug, fragment string) string {
	slug = storage.Normalize(slug)
	if slug == "" {
		return r.base + "/" + fragment
	}
	return r.base + "/view?path=" + url.QueryEscape(slug) + fragment
}

// EditURL is the URL of the editor for slug.
func (r *Resolver) EditURL(slug string) string {
	slug = storage.Normalize(slug)
	if slug == "" {
		return r.base + "/edit"
	}
	return r.base + "/edit?path=" + url.QueryEscape(slug)
}

// DisambiguateURL lists every page named name.
func (r *Resolver) DisambiguateURL(name string) string {
	return r.base + "/disambiguate?name=" + url.QueryEscape(name)
}

func escapePath(p string) string {
	segs := strings.Split(p, "/")
	for i, s := range segs {
		segs[i] = url.PathEscape(s)
	}
	return strings.Join(segs, "/")
}

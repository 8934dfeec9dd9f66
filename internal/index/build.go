package index

import (
	"fmt"
	"os"
	"regexp"
	"slices"
	"sort"
	"strings"
	"time"

	"github.com/starford/markbase/internal/links"
	"github.com/starford/markbase/internal/models"
	"github.com/starford/markbase/internal/parser"
	"github.com/starford/markbase/internal/storage"
)

var schemeRe = regexp.MustCompile(`^[a-zA-Z][a-zA-Z0-9+.\-]*:`)

// Build scans every document and produces a new payload stamped with now.
// It never updates a previous payload in place.
func Build(store storage.Provider, now time.Time) (*Payload, error) {
	var docs []storage.Document
	if err := store.Walk(func(d storage.Document) error {
		docs = append(docs, d)
		return nil
	}); err != nil {
		return nil, fmt.Errorf("index: build: %w", err)
	}
	sort.Slice(docs, func(i, j int) bool { return docs[i].Slug < docs[j].Slug })

	names := make(map[string][]string, len(docs))
	for _, d := range docs {
		stem := storage.StripExt(d.Name)
		names[stem] = append(names[stem], d.Slug)
	}

	p := newPayload(now.Unix())
	refs := make(map[string]map[string]struct{})
	for _, d := range docs {
		data, err := os.ReadFile(d.Path)
		if err != nil {
			return nil, fmt.Errorf("index: build: read %q: %w", d.Slug, err)
		}
		markdown := string(data)
		text := parser.Strip(markdown)
		tokens := parser.Tokenize(text)
		p.Pages[d.Slug] = Page{
			Title:  parser.Title(markdown, d.Slug),
			Text:   text,
			Tokens: tokens,
		}
		for _, tok := range tokens {
			p.Index[tok] = append(p.Index[tok], d.Slug)
		}

		for _, l := range links.Extract(markdown) {
			target, ok := linkTarget(d.Slug, l, names)
			if !ok {
				continue
			}
			if refs[target] == nil {
				refs[target] = make(map[string]struct{})
			}
			refs[target][d.Slug] = struct{}{}
		}
	}

	for target, set := range refs {
		list := make([]string, 0, len(set))
		for s := range set {
			list = append(list, s)
		}
		sort.Strings(list)
		p.Backlinks[target] = list
	}
	return p, nil
}

// linkTarget maps a raw link onto the slug it refers to. Bare names count
// only when exactly one document carries that file name.
func linkTarget(current string, l models.Link, names map[string][]string) (string, bool) {
	target := strings.TrimSpace(l.Target)
	if target == "" || strings.HasPrefix(target, "#") || schemeRe.MatchString(target) {
		return "", false
	}
	if i := strings.IndexByte(target, '#'); i >= 0 {
		target = target[:i]
	}

	switch {
	case target == "":
		return "", false
	case strings.HasPrefix(target, "/"):
		return storage.Canonical(target), true
	case strings.Contains(target, "/"):
		if l.Wiki {
			return storage.Canonical(target), true
		}
		return storage.Canonical(storage.JoinRelative(current, target)), true
	}

	matches := names[storage.StripExt(target)]
	if !l.Wiki {
		// A conventional link to a sibling wins over same-named pages elsewhere.
		sibling := storage.Canonical(storage.JoinRelative(current, target))
		if slices.Contains(matches, sibling) {
			return sibling, true
		}
	}
	if len(matches) == 1 {
		return matches[0], true
	}
	return "", false
}

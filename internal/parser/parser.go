// Package parser turns raw Markdown into the plain text, tokens, titles and
// snippets that the search index works with.
package parser

import (
	"html"
	"regexp"
	"strings"
	"unicode"
	"unicode/utf8"
)

var (
	fencedRe   = regexp.MustCompile("(?s)```.*?```")
	inlineRe   = regexp.MustCompile("`[^`]+`")
	mdLinkRe   = regexp.MustCompile(`\[([^\]]+)\]\([^)]+\)`)
	wikiLinkRe = regexp.MustCompile(`\[\[([^\]]+)\]\]`)
	syntaxRe   = regexp.MustCompile("[#>*_~`\\-]")
	titleRe    = regexp.MustCompile(`(?m)^#\s+(.+)$`)
)

const (
	snippetLead  = 60
	snippetWidth = 200
)

// Strip removes Markdown syntax: code spans and fences disappear, links and
// images collapse to their label, and heading/quote/emphasis/list markers
// become spaces.
func Strip(markdown string) string {
	text := fencedRe.ReplaceAllString(markdown, " ")
	text = inlineRe.ReplaceAllString(text, " ")
	text = mdLinkRe.ReplaceAllString(text, "$1")
	text = wikiLinkRe.ReplaceAllString(text, "$1")
	text = syntaxRe.ReplaceAllString(text, " ")
	return strings.TrimSpace(text)
}

// Tokenize lowercases text, splits it on runs of anything that is not a
// letter or digit and drops single-character tokens. Tokens are unique and
// keep their first-seen order.
func Tokenize(text string) []string {
	fields := strings.FieldsFunc(strings.ToLower(text), func(r rune) bool {
		return !unicode.IsLetter(r) && !unicode.IsDigit(r)
	})
	seen := make(map[string]struct{}, len(fields))
	out := make([]string, 0, len(fields))
	for _, f := range fields {
		if utf8.RuneCountInString(f) <= 1 {
			continue
		}
		if _, ok := seen[f]; ok {
			continue
		}
		seen[f] = struct{}{}
		out = append(out, f)
	}
	return out
}

// Title returns the first level-1 heading, else the slug, else "Home".
func Title(markdown, slug string) string {
	if m := titleRe.FindStringSubmatch(markdown); m != nil {
		if t := strings.TrimSpace(m[1]); t != "" {
			return t
		}
	}
	if slug == "" {
		return "Home"
	}
	return slug
}

// Snippet cuts a window of plain text around the earliest query token and
// highlights that token with <mark>. The window starts 60 bytes before the
// hit and spans 200 bytes; without a hit it is the first 200 bytes. Window
// edges are moved onto rune boundaries.
func Snippet(text string, tokens []string) string {
	pos, hitEnd := -1, -1
	for _, tok := range tokens {
		if tok == "" {
			continue
		}
		if p, e := indexFold(text, tok); p >= 0 && (pos < 0 || p < pos) {
			pos, hitEnd = p, e
		}
	}

	start := 0
	if pos >= 0 {
		start = max(0, pos-snippetLead)
	}
	end := min(len(text), start+snippetWidth)
	start, end = runeAlign(text, start, end)
	window := text[start:end]

	if pos < 0 || pos < start || hitEnd > end {
		return html.EscapeString(window)
	}
	i, j := pos-start, hitEnd-start
	return html.EscapeString(window[:i]) + "<mark>" + html.EscapeString(window[i:j]) + "</mark>" + html.EscapeString(window[j:])
}

// indexFold finds the first span of s whose runes lowercase to tok and
// returns its byte offsets in s, or -1, -1.
func indexFold(s, tok string) (int, int) {
	for i := 0; i < len(s); {
		if n, ok := foldPrefix(s[i:], tok); ok {
			return i, i + n
		}
		_, w := utf8.DecodeRuneInString(s[i:])
		i += w
	}
	return -1, -1
}

// foldPrefix reports whether s starts with tok, comparing lowercased runes,
// and how many bytes of s matched.
func foldPrefix(s, tok string) (int, bool) {
	n := 0
	for _, want := range tok {
		if n >= len(s) {
			return 0, false
		}
		r, w := utf8.DecodeRuneInString(s[n:])
		if unicode.ToLower(r) != want {
			return 0, false
		}
		n += w
	}
	return n, true
}

// runeAlign moves start forward and end backward until both sit on rune starts.
func runeAlign(s string, start, end int) (int, int) {
	for start < end && start < len(s) && !utf8.RuneStart(s[start]) {
		start++
	}
	for end > start && end < len(s) && !utf8.RuneStart(s[end]) {
		end--
	}
	return start, end
}

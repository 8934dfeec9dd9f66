package links

import (
	"regexp"
	"strings"

	"github.com/starford/markbase/internal/models"
)

var (
	mdLinkRe   = regexp.MustCompile(`\[[^\]]+\]\(([^)]+)\)`)
	wikiLinkRe = regexp.MustCompile(`\[\[([^\]]+)\]\]`)
)

// SplitAlias splits "Target|Label" into its target and label. Without a pipe
// the label is the target.
func SplitAlias(raw string) (target, label string) {
	target = strings.TrimSpace(raw)
	label = target
	if i := strings.IndexByte(target, '|'); i >= 0 {
		label = strings.TrimSpace(target[i+1:])
		target = strings.TrimSpace(target[:i])
		if label == "" {
			label = target
		}
	}
	return target, label
}

// Extract collects every conventional link target followed by every wiki
// link target, in document order within each kind. Targets are not resolved.
func Extract(markdown string) []models.Link {
	var out []models.Link
	for _, m := range mdLinkRe.FindAllStringSubmatch(markdown, -1) {
		target := strings.TrimSpace(m[1])
		if len(target) > 1 && target[0] == '<' && target[len(target)-1] == '>' {
			target = target[1 : len(target)-1]
		}
		out = append(out, models.Link{Target: target})
	}
	for _, m := range wikiLinkRe.FindAllStringSubmatch(markdown, -1) {
		target, _ := SplitAlias(m[1])
		if target == "" {
			continue
		}
		out = append(out, models.Link{Target: target, Wiki: true})
	}
	return out
}

// RewriteWikiLinks replaces every [[target]] span with a conventional Markdown
// link to the resolved URL.
func (r *Resolver) RewriteWikiLinks(current, markdown string) string {
	return wikiLinkRe.ReplaceAllStringFunc(markdown, func(span string) string {
		raw := span[2 : len(span)-2]
		res := r.ResolveWiki(current, raw)
		label := res.Label
		if label == "" {
			label = span
		}
		return "[" + label + "](" + res.URL + ")"
	})
}

package storage

import (
	"path"
	"strings"
)

const (
	// Ext is the content file extension.
	Ext = ".md"
	// IndexName is the file that backs a directory's index document.
	IndexName = "README.md"
)

// Normalize turns arbitrary input into a canonical slug. It is purely
// lexical: backslashes become slashes, leading slashes are dropped, empty and
// "." segments are skipped and ".." pops the previous segment (never past the
// root). It does not strip the extension.
func Normalize(p string) string {
	p = strings.ReplaceAll(p, `\`, "/")
	p = strings.TrimLeft(p, "/")
	if p == "" {
		return ""
	}
	var stack []string
	for _, seg := range strings.Split(p, "/") {
		switch seg {
		case "", ".":
		case "..":
			if len(stack) > 0 {
				stack = stack[:len(stack)-1]
			}
		default:
			stack = append(stack, seg)
		}
	}
	return strings.Join(stack, "/")
}

// HasExt reports whether p ends in the content extension (any case).
func HasExt(p string) bool {
	return len(p) >= len(Ext) && strings.EqualFold(p[len(p)-len(Ext):], Ext)
}

// StripExt removes a trailing content extension.
func StripExt(p string) string {
	if HasExt(p) {
		return p[:len(p)-len(Ext)]
	}
	return p
}

// Canonical normalizes p and strips the extension.
func Canonical(p string) string {
	return StripExt(Normalize(p))
}

// Climbs reports whether p, read as relative to some root, uses ".." to step
// above that root at any point.
func Climbs(p string) bool {
	p = strings.TrimLeft(strings.ReplaceAll(p, `\`, "/"), "/")
	depth := 0
	for _, seg := range strings.Split(p, "/") {
		switch seg {
		case "", ".":
		case "..":
			if depth == 0 {
				return true
			}
			depth--
		default:
			depth++
		}
	}
	return false
}

// Parent returns the directory part of a slug, "" at the top level.
func Parent(slug string) string {
	slug = strings.Trim(slug, "/")
	i := strings.LastIndex(slug, "/")
	if i < 0 {
		return ""
	}
	return slug[:i]
}

// JoinRelative joins target onto the parent directory of current. Links in a
// document are relative to the folder holding it, not to the document itself.
// The result is not normalized.
func JoinRelative(current, target string) string {
	dir := Parent(current)
	if dir == "" {
		return target
	}
	return dir + "/" + target
}

// Join appends name to a directory slug.
func Join(dir, name string) string {
	if dir == "" {
		return name
	}
	return path.Join(dir, name)
}

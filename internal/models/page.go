package models

// EntryType tags a directory listing item.
type EntryType string

const (
	EntryDir  EntryType = "dir"
	EntryFile EntryType = "file"
)

// Entry is one item of a single-level directory listing. For files Name has
// the extension stripped.
type Entry struct {
	Type EntryType `json:"type"`
	Name string    `json:"name"`
	Slug string    `json:"path"`
}

// Link is a raw link reference extracted from a document.
type Link struct {
	Target string `json:"target"`
	Wiki   bool   `json:"wiki"`
}

// SearchResult is one scored full-text hit.
type SearchResult struct {
	Slug    string `json:"path"`
	Title   string `json:"title"`
	Snippet string `json:"snippet"`
	Score   int    `json:"score"`
}

// Crumb is one breadcrumb step.
type Crumb struct {
	Label string `json:"label"`
	URL   string `json:"url"`
}

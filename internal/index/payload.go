package index

import "github.com/starford/markbase/internal/cache"

// Page is the per-document part of the index payload.
type Page struct {
	Title  string   `json:"title"`
	Text   string   `json:"text"`
	Tokens []string `json:"tokens"`
}

// Payload is the persisted search index: per-page data, token postings and
// the backlink map, stamped with the epoch second it was built.
type Payload struct {
	UpdatedAt int64               `json:"updated_at"`
	Pages     map[string]Page     `json:"pages"`
	Index     map[string][]string `json:"index"`
	Backlinks map[string][]string `json:"backlinks"`
}

// Complete reports whether every section of the payload is present. A
// decoded payload missing a section is treated as corrupt.
func (p *Payload) Complete() bool {
	return p != nil && p.UpdatedAt > 0 && p.Pages != nil && p.Index != nil && p.Backlinks != nil
}

func newPayload(stamp int64) *Payload {
	return &Payload{
		UpdatedAt: stamp,
		Pages:     make(map[string]Page),
		Index:     make(map[string][]string),
		Backlinks: make(map[string][]string),
	}
}

// NewJSONStore returns the JSON file backend for the payload. Files missing
// any section are ignored and trigger a rebuild.
func NewJSONStore(path string) *cache.JSONFile[Payload] {
	f := cache.NewJSONFile[Payload](path)
	f.Check = (*Payload).Complete
	return f
}

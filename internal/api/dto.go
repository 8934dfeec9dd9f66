package api

import (
	validation "github.com/go-ozzo/ozzo-validation/v4"

	"github.com/starford/markbase/internal/models"
	"github.com/starford/markbase/internal/wiki"
)

// maxNameLen bounds a single page or folder name.
const maxNameLen = 255

// SavePageRequest is the request body for saving a page.
type SavePageRequest struct {
	Content string `json:"content" example:"# Hello\nWorld"`
}

// Validate validates the request.
func (r SavePageRequest) Validate() error {
	return validation.ValidateStruct(&r,
		validation.Field(&r.Content, validation.Length(0, maxBodyBytes)),
	)
}

// CreatePageRequest is the request body for creating an empty page.
type CreatePageRequest struct {
	Dir  string `json:"dir" example:"guides"`
	Name string `json:"name" example:"setup" validate:"required"`
}

// Validate validates the request.
func (r CreatePageRequest) Validate() error {
	return validation.ValidateStruct(&r,
		validation.Field(&r.Name, validation.Required, validation.Length(1, maxNameLen)),
	)
}

// MovePageRequest moves a page or folder. Either To or Name must be set;
// Dir and Name form the destination when To is empty.
type MovePageRequest struct {
	From string `json:"from" example:"guides/setup" validate:"required"`
	To   string `json:"to,omitempty" example:"howto/setup"`
	Dir  string `json:"dir,omitempty" example:"howto"`
	Name string `json:"name,omitempty" example:"setup"`
}

// Validate validates the request.
func (r MovePageRequest) Validate() error {
	return validation.ValidateStruct(&r,
		validation.Field(&r.From, validation.Required),
		validation.Field(&r.To, validation.When(r.Name == "", validation.Required)),
		validation.Field(&r.Name, validation.Length(0, maxNameLen)),
	)
}

// PathResponse carries the slug a mutation ended up at.
type PathResponse struct {
	Path string `json:"path" example:"howto/setup" validate:"required"`
}

// DeleteResponse carries the folder that held a deleted page.
type DeleteResponse struct {
	Parent string `json:"parent" example:"howto"`
}

// SearchResponse wraps search results.
type SearchResponse struct {
	Results []models.SearchResult `json:"results" validate:"required"`
}

// PathsResponse wraps a list of slugs.
type PathsResponse struct {
	Paths []string `json:"paths" validate:"required"`
}

// BacklinksResponse lists the pages linking to Path.
type BacklinksResponse struct {
	Path      string   `json:"path" example:"howto/setup"`
	Backlinks []string `json:"backlinks" validate:"required"`
}

// TreeResponse wraps the navigation tree.
type TreeResponse struct {
	Tree models.Tree `json:"tree" validate:"required"`
}

// ReindexResponse reports how many pages were indexed.
type ReindexResponse struct {
	Pages int `json:"pages" example:"42"`
}

// ImageUploadResponse is returned after a successful image upload.
type ImageUploadResponse struct {
	Filename string `json:"filename" example:"diagram.png" validate:"required"`
	Size     int64  `json:"size" example:"12345" validate:"required"`
	URL      string `json:"url" example:"/img/diagram.png" validate:"required"`
}

// PageView is the rendered page or folder listing (aliased from the domain layer).
type PageView = wiki.View

// PageDraft is the raw source of a page (aliased from the domain layer).
type PageDraft = wiki.Draft

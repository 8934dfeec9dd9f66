package api

import (
	"net/http"
	"net/url"
	"strings"

	"github.com/go-chi/chi/v5"

	"github.com/starford/markbase/internal/wiki"
)

// Handler holds API route handlers.
type Handler struct {
	svc *wiki.Service
}

// NewHandler creates a new Handler.
func NewHandler(svc *wiki.Service) *Handler {
	return &Handler{svc: svc}
}

// pagePath extracts the slug from the URL (everything after the route prefix).
// Supports encoded slashes from OpenAPI clients (e.g. guides%2Fsetup).
func pagePath(r *http.Request) string {
	raw := strings.TrimPrefix(chi.URLParam(r, "*"), "/")
	if raw == "" {
		return ""
	}
	decoded, err := url.PathUnescape(raw)
	if err != nil {
		return raw
	}
	return decoded
}

// View handles GET /api/pages/*.
//
//	@Summary		Render a page or list a folder
//	@Tags			pages
//	@Produce		json
//	@Param			path	path		string	false	"Page slug, empty for the home page"
//	@Success		200		{object}	PageView
//	@Failure		400		{object}	errResponse
//	@Failure		404		{object}	errResponse
//	@Router			/pages/{path} [get]
func (h *Handler) View(w http.ResponseWriter, r *http.Request) {
	path := pagePath(r)
	view, err := h.svc.View(path)
	if err != nil {
		writeError(w, "view page", path, err)
		return
	}
	writeJSON(w, http.StatusOK, view)
}

// Edit handles GET /api/source/*. Editing a folder without an index page
// generates one.
//
//	@Summary		Get the markdown source of a page
//	@Tags			pages
//	@Produce		json
//	@Param			path	path		string	false	"Page slug"
//	@Success		200		{object}	PageDraft
//	@Failure		400		{object}	errResponse
//	@Router			/source/{path} [get]
func (h *Handler) Edit(w http.ResponseWriter, r *http.Request) {
	path := pagePath(r)
	draft, err := h.svc.Edit(path)
	if err != nil {
		writeError(w, "edit page", path, err)
		return
	}
	writeJSON(w, http.StatusOK, draft)
}

// Save handles PUT /api/pages/*.
//
//	@Summary		Create or replace a page
//	@Tags			pages
//	@Accept			json
//	@Produce		json
//	@Param			path	path		string			true	"Page slug"
//	@Param			body	body		SavePageRequest	true	"Page content"
//	@Success		200		{object}	PathResponse
//	@Failure		400		{object}	errResponse
//	@Router			/pages/{path} [put]
func (h *Handler) Save(w http.ResponseWriter, r *http.Request) {
	path := pagePath(r)
	var req SavePageRequest
	if !decodeJSON(w, r, &req) {
		return
	}
	slug, err := h.svc.Save(path, []byte(req.Content))
	if err != nil {
		writeError(w, "save page", path, err)
		return
	}
	writeJSON(w, http.StatusOK, PathResponse{Path: slug})
}

// Create handles POST /api/pages.
//
//	@Summary		Create an empty page in a folder
//	@Tags			pages
//	@Accept			json
//	@Produce		json
//	@Param			body	body		CreatePageRequest	true	"Folder and page name"
//	@Success		201		{object}	PathResponse
//	@Failure		400		{object}	errResponse
//	@Router			/pages [post]
func (h *Handler) Create(w http.ResponseWriter, r *http.Request) {
	var req CreatePageRequest
	if !decodeJSON(w, r, &req) {
		return
	}
	slug, err := h.svc.Create(req.Dir, req.Name)
	if err != nil {
		writeError(w, "create page", req.Dir, err)
		return
	}
	writeJSON(w, http.StatusCreated, PathResponse{Path: slug})
}

// Move handles POST /api/move.
//
//	@Summary		Move or rename a page or folder
//	@Tags			pages
//	@Accept			json
//	@Produce		json
//	@Param			body	body		MovePageRequest	true	"Source and destination"
//	@Success		200		{object}	PathResponse
//	@Failure		400		{object}	errResponse
//	@Failure		404		{object}	errResponse
//	@Failure		409		{object}	errResponse
//	@Router			/move [post]
func (h *Handler) Move(w http.ResponseWriter, r *http.Request) {
	var req MovePageRequest
	if !decodeJSON(w, r, &req) {
		return
	}
	var (
		slug string
		err  error
	)
	if req.To != "" {
		slug, err = h.svc.Move(req.From, req.To)
	} else {
		slug, err = h.svc.MoveTo(req.From, req.Dir, req.Name)
	}
	if err != nil {
		writeError(w, "move page", req.From, err)
		return
	}
	writeJSON(w, http.StatusOK, PathResponse{Path: slug})
}

// Delete handles DELETE /api/pages/*.
//
//	@Summary		Delete a page or a whole folder
//	@Tags			pages
//	@Produce		json
//	@Param			path	path		string	true	"Page or folder slug"
//	@Success		200		{object}	DeleteResponse
//	@Failure		400		{object}	errResponse
//	@Failure		404		{object}	errResponse
//	@Router			/pages/{path} [delete]
func (h *Handler) Delete(w http.ResponseWriter, r *http.Request) {
	path := pagePath(r)
	parent, err := h.svc.Delete(path)
	if err != nil {
		writeError(w, "delete page", path, err)
		return
	}
	writeJSON(w, http.StatusOK, DeleteResponse{Parent: parent})
}

// Search handles GET /api/search.
//
//	@Summary		Full-text search across pages
//	@Tags			search
//	@Produce		json
//	@Param			q	query		string	true	"Search query"
//	@Success		200	{object}	SearchResponse
//	@Router			/search [get]
func (h *Handler) Search(w http.ResponseWriter, r *http.Request) {
	q := r.URL.Query().Get("q")
	results, err := h.svc.Search(q)
	if err != nil {
		writeError(w, "search", q, err)
		return
	}
	writeJSON(w, http.StatusOK, SearchResponse{Results: results})
}

// Filter handles GET /api/filter.
//
//	@Summary		Match titles and paths for live filtering
//	@Tags			search
//	@Produce		json
//	@Param			q	query		string	true	"Filter text"
//	@Success		200	{object}	PathsResponse
//	@Router			/filter [get]
func (h *Handler) Filter(w http.ResponseWriter, r *http.Request) {
	q := r.URL.Query().Get("q")
	paths, err := h.svc.Filter(q)
	if err != nil {
		writeError(w, "filter", q, err)
		return
	}
	writeJSON(w, http.StatusOK, PathsResponse{Paths: paths})
}

// Disambiguate handles GET /api/disambiguate.
//
//	@Summary		List pages sharing a file name
//	@Tags			search
//	@Produce		json
//	@Param			name	query		string	true	"File name"
//	@Success		200		{object}	PathsResponse
//	@Router			/disambiguate [get]
func (h *Handler) Disambiguate(w http.ResponseWriter, r *http.Request) {
	name := r.URL.Query().Get("name")
	paths, err := h.svc.Disambiguate(name)
	if err != nil {
		writeError(w, "disambiguate", name, err)
		return
	}
	writeJSON(w, http.StatusOK, PathsResponse{Paths: paths})
}

// Backlinks handles GET /api/backlinks/*.
//
//	@Summary		List pages linking to a page
//	@Tags			graph
//	@Produce		json
//	@Param			path	path		string	true	"Page slug"
//	@Success		200		{object}	BacklinksResponse
//	@Router			/backlinks/{path} [get]
func (h *Handler) Backlinks(w http.ResponseWriter, r *http.Request) {
	path := pagePath(r)
	backlinks, err := h.svc.Backlinks(path)
	if err != nil {
		writeError(w, "backlinks", path, err)
		return
	}
	writeJSON(w, http.StatusOK, BacklinksResponse{Path: path, Backlinks: backlinks})
}

// Tree handles GET /api/tree.
//
//	@Summary		Get the navigation tree
//	@Tags			pages
//	@Produce		json
//	@Success		200	{object}	TreeResponse
//	@Router			/tree [get]
func (h *Handler) Tree(w http.ResponseWriter, r *http.Request) {
	tree, err := h.svc.Tree()
	if err != nil {
		writeError(w, "tree", "", err)
		return
	}
	writeJSON(w, http.StatusOK, TreeResponse{Tree: tree})
}

// Reindex handles POST /api/reindex.
//
//	@Summary		Rebuild the search index and tree
//	@Tags			search
//	@Produce		json
//	@Success		200	{object}	ReindexResponse
//	@Router			/reindex [post]
func (h *Handler) Reindex(w http.ResponseWriter, r *http.Request) {
	n, err := h.svc.Reindex()
	if err != nil {
		writeError(w, "reindex", "", err)
		return
	}
	writeJSON(w, http.StatusOK, ReindexResponse{Pages: n})
}

package api

import (
	"net/http"

	"github.com/go-chi/chi/v5"

	"github.com/starford/markbase/internal/wiki"
)

// NewRouter creates a chi router with all API routes mounted.
// sseHandler, if non-nil, is mounted at GET /events.
// imageRoot is where uploaded images are stored.
func NewRouter(svc *wiki.Service, sseHandler http.Handler, imageRoot string) chi.Router {
	h := NewHandler(svc)
	ih := NewImageHandler(imageRoot, svc.Resolver())

	r := chi.NewRouter()

	// Pages.
	r.Get("/tree", h.Tree)
	r.Get("/pages", h.View)
	r.Get("/pages/*", h.View)
	r.Post("/pages", h.Create)
	r.Put("/pages/*", h.Save)
	r.Delete("/pages/*", h.Delete)
	r.Get("/source", h.Edit)
	r.Get("/source/*", h.Edit)
	r.Post("/move", h.Move)

	// Search and links.
	r.Get("/search", h.Search)
	r.Get("/filter", h.Filter)
	r.Get("/disambiguate", h.Disambiguate)
	r.Get("/backlinks/*", h.Backlinks)
	r.Post("/reindex", h.Reindex)

	// Images.
	r.Post("/images", ih.Upload)
	r.Get("/img/*", ih.ServeFile)

	if sseHandler != nil {
		r.Get("/events", sseHandler.ServeHTTP)
	}

	return r
}

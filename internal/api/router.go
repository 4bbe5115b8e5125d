package api

import (
	"net/http"

	"github.com/go-chi/chi/v5"
	"github.com/starford/gebo/internal/noteservice"
)

// NewRouter builds the API router. sseHandler serves GET /events when
// non-nil; events receives completed merges and may also be nil.
func NewRouter(svc *noteservice.Service, authEnabled bool, token string, sseHandler http.Handler, events MergeEvents) chi.Router {
	r := chi.NewRouter()
	h := NewHandler(svc, events)

	r.Use(AuthMiddleware(authEnabled, token))

	r.Get("/notes", h.ListNotes)
	r.Post("/notes", h.CreateNote)
	r.Get("/notes/*", h.GetNote)
	r.Put("/notes/*", h.UpdateNote)
	r.Delete("/notes/*", h.DeleteNote)

	r.Get("/resolve/{identifier}", h.ResolveNote)
	r.Get("/search", h.Search)
	r.Get("/graph", h.Graph)
	r.Get("/backlinks/{identifier}", h.Backlinks)

	r.Post("/merge/file", h.MergeFile)
	r.Post("/merge/region", h.MergeRegion)

	r.Get("/session/unsaved", h.Unsaved)
	r.Post("/session/save", h.SaveBuffers)

	if sseHandler != nil {
		r.Get("/events", sseHandler.ServeHTTP)
	}

	return r
}

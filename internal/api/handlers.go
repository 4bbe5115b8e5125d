package api

import (
	"errors"
	"log/slog"
	"net/http"
	"net/url"
	"strconv"
	"strings"

	"github.com/go-chi/chi/v5"
	"github.com/starford/gebo/internal/apperr"
	"github.com/starford/gebo/internal/markup"
	"github.com/starford/gebo/internal/noteservice"
)

// MergeEvents receives completed merges for broadcast. A nil publisher is
// allowed; merges then complete silently.
type MergeEvents interface {
	PublishMergeEvent(op, source, dest string)
}

// Handler holds API route handlers.
type Handler struct {
	svc    *noteservice.Service
	events MergeEvents
}

// NewHandler creates a new Handler.
func NewHandler(svc *noteservice.Service, events MergeEvents) *Handler {
	return &Handler{svc: svc, events: events}
}

// notePath extracts the note path from the URL (everything after /api/notes/).
// Supports encoded slashes from OpenAPI clients (e.g. topics%2Fnote.org).
func notePath(r *http.Request) string {
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

// mergeStatus maps engine errors onto HTTP statuses. Precondition failures
// are the caller's to fix; anything unrecognized is a server problem.
func mergeStatus(err error) int {
	switch {
	case errors.Is(err, apperr.ErrNotFound):
		return http.StatusNotFound
	case errors.Is(err, apperr.ErrNotWritable):
		return http.StatusConflict
	case errors.Is(err, apperr.ErrSameFile),
		errors.Is(err, apperr.ErrFlavorMismatch),
		errors.Is(err, apperr.ErrUnsupportedFlavor),
		errors.Is(err, apperr.ErrNoIdentifier),
		errors.Is(err, apperr.ErrKindNotAllowed),
		errors.Is(err, apperr.ErrInvalidRegion),
		errors.Is(err, apperr.ErrBlankFragment):
		return http.StatusBadRequest
	default:
		return http.StatusInternalServerError
	}
}

// ListNotes handles GET /api/notes.
//
//	@Summary		List notes with optional pagination and filtering
//	@Tags			notes
//	@Produce		json
//	@Param			limit	query		int		false	"Page size"
//	@Param			offset	query		int		false	"Page offset"
//	@Param			tag		query		string	false	"Filter by tag"
//	@Param			sort	query		string	false	"Sort field"	Enums(updated_at, title, path, id)
//	@Success		200		{object}	NoteListResponse
//	@Security		BearerAuth
//	@Router			/notes [get]
func (h *Handler) ListNotes(w http.ResponseWriter, r *http.Request) {
	q := r.URL.Query()
	limit, _ := strconv.Atoi(q.Get("limit"))
	offset, _ := strconv.Atoi(q.Get("offset"))
	tag := q.Get("tag")
	sort := q.Get("sort")

	items, total, err := h.svc.ListNotes(r.Context(), limit, offset, tag, sort)
	if err != nil {
		slog.Error("list notes failed", slog.String("error", err.Error()))
		writeJSON(w, http.StatusInternalServerError, errorBody("internal error"))
		return
	}
	writeJSON(w, http.StatusOK, NoteListResponse{Notes: items, Total: total})
}

// GetNote handles GET /api/notes/*.
//
//	@Summary		Get a single note by path
//	@Tags			notes
//	@Produce		json
//	@Param			path	path		string	true	"Note path"
//	@Success		200		{object}	NoteDetail
//	@Failure		404		{object}	errResponse
//	@Security		BearerAuth
//	@Router			/notes/{path} [get]
func (h *Handler) GetNote(w http.ResponseWriter, r *http.Request) {
	path := notePath(r)
	if path == "" {
		writeJSON(w, http.StatusBadRequest, errorBody("path is required"))
		return
	}
	note, err := h.svc.GetNote(r.Context(), path)
	if err != nil {
		if errors.Is(err, apperr.ErrNotFound) {
			writeJSON(w, http.StatusNotFound, errorBody("not found"))
		} else {
			slog.Error("get note failed", slog.String("path", path), slog.String("error", err.Error()))
			writeJSON(w, http.StatusInternalServerError, errorBody("internal error"))
		}
		return
	}
	writeJSON(w, http.StatusOK, note)
}

// ResolveNote handles GET /api/resolve/{identifier}.
//
//	@Summary		Look up a note by its identifier
//	@Tags			notes
//	@Produce		json
//	@Param			identifier	path		string	true	"Note identifier"
//	@Success		200			{object}	NoteDetail
//	@Failure		404			{object}	errResponse
//	@Security		BearerAuth
//	@Router			/resolve/{identifier} [get]
func (h *Handler) ResolveNote(w http.ResponseWriter, r *http.Request) {
	id := chi.URLParam(r, "identifier")
	if id == "" {
		writeJSON(w, http.StatusBadRequest, errorBody("identifier is required"))
		return
	}
	note, err := h.svc.ResolveNote(r.Context(), id)
	if err != nil {
		if errors.Is(err, apperr.ErrNotFound) {
			writeJSON(w, http.StatusNotFound, errorBody("not found"))
		} else {
			slog.Error("resolve note failed", slog.String("identifier", id), slog.String("error", err.Error()))
			writeJSON(w, http.StatusInternalServerError, errorBody("internal error"))
		}
		return
	}
	writeJSON(w, http.StatusOK, note)
}

// CreateNote handles POST /api/notes.
//
//	@Summary		Create a new note
//	@Tags			notes
//	@Accept			json
//	@Produce		json
//	@Param			body	body		CreateNoteRequest	true	"Note to create"
//	@Success		201		{object}	NoteDetail
//	@Failure		400		{object}	errResponse
//	@Failure		409		{object}	errResponse
//	@Security		BearerAuth
//	@Router			/notes [post]
func (h *Handler) CreateNote(w http.ResponseWriter, r *http.Request) {
	var req CreateNoteRequest
	if !readJSON(w, r, 10<<20, &req) {
		return
	}
	if req.Path == "" || req.Content == "" {
		writeJSON(w, http.StatusBadRequest, errorBody("path and content are required"))
		return
	}
	note, err := h.svc.CreateNote(r.Context(), req.Path, []byte(req.Content))
	if err != nil {
		if errors.Is(err, apperr.ErrAlreadyExists) {
			writeJSON(w, http.StatusConflict, errorBody("note already exists"))
		} else {
			slog.Error("create note failed", slog.String("path", req.Path), slog.String("error", err.Error()))
			writeJSON(w, http.StatusInternalServerError, errorBody("internal error"))
		}
		return
	}
	writeJSON(w, http.StatusCreated, note)
}

// UpdateNote handles PUT /api/notes/*.
//
//	@Summary		Update a note with optimistic concurrency
//	@Tags			notes
//	@Accept			json
//	@Produce		json
//	@Param			path	path		string				true	"Note path"
//	@Param			If-Match	header	string				false	"SHA-256 checksum for optimistic concurrency"
//	@Param			body	body		UpdateNoteRequest	true	"Updated content"
//	@Success		200		{object}	NoteDetail
//	@Failure		400		{object}	errResponse
//	@Failure		404		{object}	errResponse
//	@Failure		409		{object}	errResponse
//	@Security		BearerAuth
//	@Router			/notes/{path} [put]
func (h *Handler) UpdateNote(w http.ResponseWriter, r *http.Request) {
	path := notePath(r)
	if path == "" {
		writeJSON(w, http.StatusBadRequest, errorBody("path is required"))
		return
	}
	var req UpdateNoteRequest
	if !readJSON(w, r, 10<<20, &req) {
		return
	}
	if req.Content == "" {
		writeJSON(w, http.StatusBadRequest, errorBody("content is required"))
		return
	}

	ifMatch := r.Header.Get("If-Match")
	// Strip surrounding quotes if present (standard ETag format).
	ifMatch = strings.Trim(ifMatch, `"`)

	note, err := h.svc.UpdateNote(r.Context(), path, []byte(req.Content), ifMatch)
	if err != nil {
		switch {
		case errors.Is(err, apperr.ErrNotFound):
			writeJSON(w, http.StatusNotFound, errorBody("not found"))
		case errors.Is(err, apperr.ErrConflict):
			writeJSON(w, http.StatusConflict, errorBody("checksum mismatch"))
		default:
			slog.Error("update note failed", slog.String("path", path), slog.String("error", err.Error()))
			writeJSON(w, http.StatusInternalServerError, errorBody("internal error"))
		}
		return
	}
	writeJSON(w, http.StatusOK, note)
}

// DeleteNote handles DELETE /api/notes/*.
//
//	@Summary		Delete a note
//	@Tags			notes
//	@Param			path	path	string	true	"Note path"
//	@Success		204		"Note deleted"
//	@Failure		404		{object}	errResponse
//	@Security		BearerAuth
//	@Router			/notes/{path} [delete]
func (h *Handler) DeleteNote(w http.ResponseWriter, r *http.Request) {
	path := notePath(r)
	if path == "" {
		writeJSON(w, http.StatusBadRequest, errorBody("path is required"))
		return
	}
	if err := h.svc.DeleteNote(r.Context(), path); err != nil {
		slog.Error("delete note failed", slog.String("path", path), slog.String("error", err.Error()))
		writeJSON(w, http.StatusNotFound, errorBody("not found"))
		return
	}
	w.WriteHeader(http.StatusNoContent)
}

// MergeFile handles POST /api/merge/file.
//
//	@Summary		Merge one note into another, retargeting all backlinks
//	@Tags			merge
//	@Accept			json
//	@Produce		json
//	@Param			body	body		MergeFileRequest	true	"Source and destination paths"
//	@Success		200		{object}	MergeFileResponse
//	@Failure		400		{object}	errResponse
//	@Failure		404		{object}	errResponse
//	@Failure		409		{object}	errResponse
//	@Security		BearerAuth
//	@Router			/merge/file [post]
func (h *Handler) MergeFile(w http.ResponseWriter, r *http.Request) {
	var req MergeFileRequest
	if !readJSON(w, r, 1<<20, &req) {
		return
	}
	if err := req.Validate(); err != nil {
		writeJSON(w, http.StatusBadRequest, errorBody(err.Error()))
		return
	}

	res, err := h.svc.MergeFile(r.Context(), req.Source, req.Destination)
	if err != nil {
		status := mergeStatus(err)
		if status == http.StatusInternalServerError {
			slog.Error("merge file failed",
				slog.String("source", req.Source),
				slog.String("destination", req.Destination),
				slog.String("error", err.Error()))
			writeJSON(w, status, errorBody("internal error"))
			return
		}
		writeJSON(w, status, errorBody(err.Error()))
		return
	}
	if h.events != nil {
		h.events.PublishMergeEvent("file", res.Source, res.Destination)
	}
	writeJSON(w, http.StatusOK, newMergeFileResponse(res))
}

// MergeRegion handles POST /api/merge/region.
//
//	@Summary		Move a byte region of one note into another as a formatted block
//	@Tags			merge
//	@Accept			json
//	@Produce		json
//	@Param			body	body		MergeRegionRequest	true	"Region and format kind"
//	@Success		200		{object}	MergeRegionResponse
//	@Failure		400		{object}	errResponse
//	@Failure		404		{object}	errResponse
//	@Failure		409		{object}	errResponse
//	@Security		BearerAuth
//	@Router			/merge/region [post]
func (h *Handler) MergeRegion(w http.ResponseWriter, r *http.Request) {
	var req MergeRegionRequest
	if !readJSON(w, r, 1<<20, &req) {
		return
	}
	if err := req.Validate(); err != nil {
		writeJSON(w, http.StatusBadRequest, errorBody(err.Error()))
		return
	}

	res, err := h.svc.MergeRegion(r.Context(), req.Source, req.Destination, req.Start, req.End, markup.ParseKind(req.Kind))
	if err != nil {
		status := mergeStatus(err)
		if status == http.StatusInternalServerError {
			slog.Error("merge region failed",
				slog.String("source", req.Source),
				slog.String("destination", req.Destination),
				slog.String("error", err.Error()))
			writeJSON(w, status, errorBody("internal error"))
			return
		}
		writeJSON(w, status, errorBody(err.Error()))
		return
	}
	if h.events != nil {
		h.events.PublishMergeEvent("region", res.Source, res.Destination)
	}
	writeJSON(w, http.StatusOK, newMergeRegionResponse(res))
}

// Unsaved handles GET /api/session/unsaved.
//
//	@Summary		List buffers with unsaved changes
//	@Tags			session
//	@Produce		json
//	@Success		200	{object}	UnsavedResponse
//	@Security		BearerAuth
//	@Router			/session/unsaved [get]
func (h *Handler) Unsaved(w http.ResponseWriter, r *http.Request) {
	writeJSON(w, http.StatusOK, UnsavedResponse{Unsaved: h.svc.Unsaved(r.Context())})
}

// SaveBuffers handles POST /api/session/save.
//
//	@Summary		Persist every buffer with unsaved changes
//	@Tags			session
//	@Produce		json
//	@Success		200	{object}	SaveBuffersResponse
//	@Security		BearerAuth
//	@Router			/session/save [post]
func (h *Handler) SaveBuffers(w http.ResponseWriter, r *http.Request) {
	saved, err := h.svc.SaveBuffers(r.Context())
	if err != nil {
		slog.Error("save buffers failed", slog.String("error", err.Error()))
		writeJSON(w, http.StatusInternalServerError, errorBody("internal error"))
		return
	}
	writeJSON(w, http.StatusOK, SaveBuffersResponse{Saved: saved})
}

// Search handles GET /api/search.
//
//	@Summary		Full-text search across notes
//	@Tags			search
//	@Produce		json
//	@Param			q		query		string	true	"Search query"
//	@Param			limit	query		int		false	"Max results"
//	@Success		200		{object}	SearchResponse
//	@Failure		400		{object}	errResponse
//	@Security		BearerAuth
//	@Router			/search [get]
func (h *Handler) Search(w http.ResponseWriter, r *http.Request) {
	q := r.URL.Query().Get("q")
	if q == "" {
		writeJSON(w, http.StatusBadRequest, errorBody("query parameter 'q' is required"))
		return
	}
	limit, _ := strconv.Atoi(r.URL.Query().Get("limit"))
	results, err := h.svc.Search(r.Context(), q, limit)
	if err != nil {
		slog.Error("search failed", slog.String("query", q), slog.String("error", err.Error()))
		writeJSON(w, http.StatusInternalServerError, errorBody("internal error"))
		return
	}
	out := make([]SearchResult, len(results))
	for i, res := range results {
		out[i] = SearchResult{Path: res.Path, Title: res.Title, Snippet: res.Snippet}
	}
	writeJSON(w, http.StatusOK, SearchResponse{Results: out})
}

// Graph handles GET /api/graph.
//
//	@Summary		Get the knowledge graph
//	@Tags			graph
//	@Produce		json
//	@Success		200	{object}	GraphResponse
//	@Security		BearerAuth
//	@Router			/graph [get]
func (h *Handler) Graph(w http.ResponseWriter, r *http.Request) {
	nodes, links, err := h.svc.Graph(r.Context())
	if err != nil {
		slog.Error("graph failed", slog.String("error", err.Error()))
		writeJSON(w, http.StatusInternalServerError, errorBody("internal error"))
		return
	}
	outNodes := make([]GraphNode, len(nodes))
	for i, n := range nodes {
		outNodes[i] = GraphNode{Path: n.Path, Identifier: n.Identifier, Title: n.Title}
	}
	outLinks := make([]GraphLink, len(links))
	for i, l := range links {
		outLinks[i] = GraphLink{Source: l.Source, Target: l.Target}
	}
	writeJSON(w, http.StatusOK, GraphResponse{Nodes: outNodes, Links: outLinks})
}

// Backlinks handles GET /api/backlinks/{identifier}.
//
//	@Summary		List the notes that link to an identifier
//	@Tags			graph
//	@Produce		json
//	@Param			identifier	path		string	true	"Note identifier"
//	@Success		200			{object}	BacklinksResponse
//	@Security		BearerAuth
//	@Router			/backlinks/{identifier} [get]
func (h *Handler) Backlinks(w http.ResponseWriter, r *http.Request) {
	id := chi.URLParam(r, "identifier")
	if id == "" {
		writeJSON(w, http.StatusBadRequest, errorBody("identifier is required"))
		return
	}
	bl, err := h.svc.Backlinks(r.Context(), id)
	if err != nil {
		slog.Error("backlinks failed", slog.String("identifier", id), slog.String("error", err.Error()))
		writeJSON(w, http.StatusInternalServerError, errorBody("internal error"))
		return
	}
	writeJSON(w, http.StatusOK, BacklinksResponse{Backlinks: emptyIfNil(bl)})
}

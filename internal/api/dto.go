package api

import (
	validation "github.com/go-ozzo/ozzo-validation/v4"

	"github.com/starford/gebo/internal/merge"
	"github.com/starford/gebo/internal/noteservice"
)

// CreateNoteRequest is the request body for creating a note.
type CreateNoteRequest struct {
	Path    string `json:"path" example:"20240131T094500--inbox__draft.org" validate:"required"`
	Content string `json:"content" example:"#+title: Inbox\n\nCapture here." validate:"required"`
}

// UpdateNoteRequest is the request body for updating a note.
type UpdateNoteRequest struct {
	Content string `json:"content" example:"#+title: Inbox\n\nUpdated." validate:"required"`
}

// MergeFileRequest is the request body for a whole-file merge.
type MergeFileRequest struct {
	Source      string `json:"source" example:"20240101T100000--inbox.org" validate:"required"`
	Destination string `json:"destination" example:"20240104T130000--projects.org" validate:"required"`
}

// Validate checks the request shape; merge preconditions are the engine's.
func (r MergeFileRequest) Validate() error {
	return validation.ValidateStruct(&r,
		validation.Field(&r.Source, validation.Required),
		validation.Field(&r.Destination, validation.Required),
	)
}

// MergeRegionRequest is the request body for a region merge. Start and End
// are byte offsets into the source buffer, end exclusive.
type MergeRegionRequest struct {
	Source      string `json:"source" validate:"required"`
	Destination string `json:"destination" validate:"required"`
	Start       int    `json:"start" example:"120"`
	End         int    `json:"end" example:"188" validate:"required"`
	Kind        string `json:"kind,omitempty" example:"quote-block"`
}

// Validate checks the request shape. Kind is not constrained here: unknown
// kinds format as plain by contract.
func (r MergeRegionRequest) Validate() error {
	return validation.ValidateStruct(&r,
		validation.Field(&r.Source, validation.Required),
		validation.Field(&r.Destination, validation.Required),
		validation.Field(&r.Start, validation.Min(0)),
		validation.Field(&r.End, validation.Required, validation.Min(1)),
	)
}

// NoteDetail is the full note response type (aliased from the domain layer).
type NoteDetail = noteservice.NoteDetail

// NoteListItem is a lightweight item in a list response (aliased from the domain layer).
type NoteListItem = noteservice.NoteListItem

// NoteListResponse wraps paginated note listings.
type NoteListResponse struct {
	Notes []NoteListItem `json:"notes" validate:"required"`
	Total int            `json:"total" example:"42" validate:"required"`
}

// SearchResult is a single search hit in the API response.
type SearchResult struct {
	Path    string `json:"path" example:"20240101T100000--inbox.org" validate:"required"`
	Title   string `json:"title" example:"Inbox" validate:"required"`
	Snippet string `json:"snippet" example:"...matched text..." validate:"required"`
}

// SearchResponse wraps search results.
type SearchResponse struct {
	Results []SearchResult `json:"results" validate:"required"`
}

// GraphNode is a node in the knowledge graph.
type GraphNode struct {
	Path       string `json:"path" example:"20240101T100000--inbox.org" validate:"required"`
	Identifier string `json:"identifier,omitempty" example:"20240101T100000"`
	Title      string `json:"title,omitempty" example:"Inbox"`
}

// GraphLink is an edge in the knowledge graph.
type GraphLink struct {
	Source string `json:"source" example:"20240101T100000--inbox.org" validate:"required"`
	Target string `json:"target" example:"20240104T130000--projects.org" validate:"required"`
}

// GraphResponse wraps the knowledge graph.
type GraphResponse struct {
	Nodes []GraphNode `json:"nodes" validate:"required"`
	Links []GraphLink `json:"links" validate:"required"`
}

// BacklinksResponse lists the notes referencing an identifier.
type BacklinksResponse struct {
	Backlinks []string `json:"backlinks" validate:"required"`
}

// RewriteFailureDTO reports one backlink file the merge could not update.
type RewriteFailureDTO struct {
	Path   string `json:"path" validate:"required"`
	Reason string `json:"reason" validate:"required"`
}

// MergeFileResponse reports a completed whole-file merge.
type MergeFileResponse struct {
	Source      string              `json:"source" validate:"required"`
	Destination string              `json:"destination" validate:"required"`
	SourceID    string              `json:"source_id" validate:"required"`
	DestID      string              `json:"dest_id" validate:"required"`
	Rewritten   []string            `json:"rewritten" validate:"required"`
	Failed      []RewriteFailureDTO `json:"failed" validate:"required"`
	Persisted   []string            `json:"persisted" validate:"required"`
	Unsaved     []string            `json:"unsaved" validate:"required"`
	Trashed     bool                `json:"trashed"`
	Summary     string              `json:"summary" validate:"required"`
}

func newMergeFileResponse(res *merge.FileResult) MergeFileResponse {
	failed := make([]RewriteFailureDTO, len(res.Failed))
	for i, f := range res.Failed {
		failed[i] = RewriteFailureDTO{Path: f.Path, Reason: f.Reason()}
	}
	return MergeFileResponse{
		Source:      res.Source,
		Destination: res.Destination,
		SourceID:    res.SourceID,
		DestID:      res.DestID,
		Rewritten:   emptyIfNil(res.Rewritten),
		Failed:      failed,
		Persisted:   emptyIfNil(res.Persisted),
		Unsaved:     emptyIfNil(res.Unsaved),
		Trashed:     res.Trashed,
		Summary:     res.Summary(),
	}
}

// MergeRegionResponse reports a completed region merge.
type MergeRegionResponse struct {
	Source      string   `json:"source" validate:"required"`
	Destination string   `json:"destination" validate:"required"`
	Kind        string   `json:"kind" validate:"required"`
	Persisted   []string `json:"persisted" validate:"required"`
	Unsaved     []string `json:"unsaved" validate:"required"`
	Summary     string   `json:"summary" validate:"required"`
}

func newMergeRegionResponse(res *merge.RegionResult) MergeRegionResponse {
	return MergeRegionResponse{
		Source:      res.Source,
		Destination: res.Destination,
		Kind:        string(res.Kind),
		Persisted:   emptyIfNil(res.Persisted),
		Unsaved:     emptyIfNil(res.Unsaved),
		Summary:     res.Summary(),
	}
}

// UnsavedResponse lists buffers with changes pending persistence.
type UnsavedResponse struct {
	Unsaved []string `json:"unsaved" validate:"required"`
}

// SaveBuffersResponse lists buffers written by a save sweep.
type SaveBuffersResponse struct {
	Saved []string `json:"saved" validate:"required"`
}

func emptyIfNil(s []string) []string {
	if s == nil {
		return []string{}
	}
	return s
}

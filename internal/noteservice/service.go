// Package noteservice coordinates storage, the index, buffers, and the merge
// engine behind one API used by every transport.
package noteservice

import (
	"context"
	"errors"
	"os"
	"sync"
	"time"

	"github.com/starford/gebo/internal/apperr"
	"github.com/starford/gebo/internal/checksum"
	"github.com/starford/gebo/internal/index"
	"github.com/starford/gebo/internal/markup"
	"github.com/starford/gebo/internal/merge"
	"github.com/starford/gebo/internal/parser"
	"github.com/starford/gebo/internal/session"
	"github.com/starford/gebo/internal/storage"
)

// NoteDetail is the full representation of a note.
type NoteDetail struct {
	Path       string    `json:"path"`
	Identifier string    `json:"identifier,omitempty"`
	Title      string    `json:"title"`
	Flavor     string    `json:"flavor"`
	Content    string    `json:"content"`
	Checksum   string    `json:"checksum"`
	Tags       []string  `json:"tags"`
	Backlinks  []string  `json:"backlinks"`
	UpdatedAt  time.Time `json:"updated_at"`
}

// NoteListItem is a lightweight item in a list response.
type NoteListItem struct {
	Path       string    `json:"path"`
	Identifier string    `json:"identifier,omitempty"`
	Title      string    `json:"title"`
	Flavor     string    `json:"flavor"`
	Checksum   string    `json:"checksum"`
	Tags       []string  `json:"tags"`
	UpdatedAt  time.Time `json:"updated_at"`
}

// Service coordinates storage, index, session, and merge operations.
type Service struct {
	store    storage.Provider
	db       *index.DB
	sessions *session.Manager
	merger   *merge.Merger

	// mergeMu serializes merge and buffer-save operations; the engine is
	// synchronous and single-flight.
	mergeMu sync.Mutex
}

// NewService creates a new note service.
func NewService(store storage.Provider, db *index.DB, sessions *session.Manager, merger *merge.Merger) *Service {
	return &Service{store: store, db: db, sessions: sessions, merger: merger}
}

// GetNote reads a note from storage, parses it, and enriches with backlinks.
func (s *Service) GetNote(_ context.Context, path string) (*NoteDetail, error) {
	data, err := s.store.Read(path)
	if err != nil {
		if errors.Is(err, os.ErrNotExist) {
			return nil, apperr.ErrNotFound
		}
		return nil, err
	}
	return s.buildNoteDetail(path, data)
}

// ResolveNote looks up a note by its identifier.
func (s *Service) ResolveNote(ctx context.Context, identifier string) (*NoteDetail, error) {
	path, err := s.db.ResolveIdentifier(identifier)
	if err != nil {
		return nil, err
	}
	return s.GetNote(ctx, path)
}

// CreateNote writes a new note and indexes it.
func (s *Service) CreateNote(_ context.Context, path string, content []byte) (*NoteDetail, error) {
	if _, err := s.store.Read(path); err == nil {
		return nil, apperr.ErrAlreadyExists
	}
	if err := s.store.Write(path, content); err != nil {
		return nil, err
	}
	if err := s.IndexFile(path, content); err != nil {
		return nil, err
	}
	return s.buildNoteDetail(path, content)
}

// UpdateNote writes updated content with optimistic concurrency. An open
// clean buffer for the path is dropped so it reloads the new content; a
// dirty one is left alone and keeps its unsaved edits.
func (s *Service) UpdateNote(_ context.Context, path string, content []byte, ifMatch string) (*NoteDetail, error) {
	existing, err := s.store.Read(path)
	if err != nil {
		if errors.Is(err, os.ErrNotExist) {
			return nil, apperr.ErrNotFound
		}
		return nil, err
	}
	if ifMatch != "" && ifMatch != checksum.Sum(existing) {
		return nil, apperr.ErrConflict
	}
	if err := s.store.Write(path, content); err != nil {
		return nil, err
	}
	s.sessions.Discard(path)
	if err := s.IndexFile(path, content); err != nil {
		return nil, err
	}
	return s.buildNoteDetail(path, content)
}

// DeleteNote removes a note from storage, index, and any open buffer.
func (s *Service) DeleteNote(_ context.Context, path string) error {
	if err := s.store.Delete(path); err != nil {
		return err
	}
	s.sessions.Evict(path)
	return s.db.DeleteNote(path)
}

// MergeFile merges the source note into the destination and refreshes the
// index: files the engine persisted are reindexed from disk and the
// merged-away source drops out. The result carries per-file rewrite
// outcomes even when a later step failed.
func (s *Service) MergeFile(_ context.Context, sourcePath, destPath string) (*merge.FileResult, error) {
	s.mergeMu.Lock()
	defer s.mergeMu.Unlock()

	res, err := s.merger.FileMerge(sourcePath, destPath)
	if res != nil {
		if ierr := s.reindex(res.Persisted); ierr != nil && err == nil {
			err = ierr
		}
	}
	if err != nil {
		return res, err
	}
	if err := s.db.DeleteNote(res.Source); err != nil {
		return res, err
	}
	return res, nil
}

// MergeRegion moves a byte region of the source note into the destination
// and reindexes whatever the engine persisted.
func (s *Service) MergeRegion(_ context.Context, sourcePath, destPath string, start, end int, kind markup.FormatKind) (*merge.RegionResult, error) {
	s.mergeMu.Lock()
	defer s.mergeMu.Unlock()

	res, err := s.merger.RegionMerge(sourcePath, destPath, start, end, kind)
	if res != nil {
		if ierr := s.reindex(res.Persisted); ierr != nil && err == nil {
			err = ierr
		}
	}
	return res, err
}

// SaveBuffers persists every unsaved buffer and reindexes the files written.
func (s *Service) SaveBuffers(_ context.Context) ([]string, error) {
	s.mergeMu.Lock()
	defer s.mergeMu.Unlock()

	saved, err := s.sessions.SaveAll()
	if ierr := s.reindex(saved); ierr != nil && err == nil {
		err = ierr
	}
	return nonNilSlice(saved), err
}

// Unsaved lists buffers holding changes not yet written to disk.
func (s *Service) Unsaved(_ context.Context) []string {
	return nonNilSlice(s.sessions.Unsaved())
}

// ListNotes returns paginated notes with optional tag filter.
func (s *Service) ListNotes(_ context.Context, limit, offset int, tag, sort string) ([]NoteListItem, int, error) {
	rows, total, err := s.db.ListNotes(limit, offset, tag, sort)
	if err != nil {
		return nil, 0, err
	}
	items := make([]NoteListItem, len(rows))
	for i, r := range rows {
		items[i] = NoteListItem{
			Path:       r.Path,
			Identifier: r.Identifier,
			Title:      r.Title,
			Flavor:     r.Flavor,
			Checksum:   r.Checksum,
			Tags:       nonNilSlice(r.Tags),
			UpdatedAt:  r.UpdatedAt,
		}
	}
	return items, total, nil
}

// Search delegates full-text search to the index.
func (s *Service) Search(_ context.Context, query string, limit int) ([]index.SearchResult, error) {
	return s.db.Search(query, limit)
}

// Graph returns all nodes and links for graph visualization.
func (s *Service) Graph(_ context.Context) ([]index.GraphNode, []index.GraphLink, error) {
	return s.db.Graph()
}

// Backlinks returns all note paths that link to the given identifier.
func (s *Service) Backlinks(_ context.Context, identifier string) ([]string, error) {
	return s.db.Backlinks(identifier)
}

// IndexFile parses data and upserts it into the index.
// Exported so that sync and watcher can reuse it.
func (s *Service) IndexFile(path string, data []byte) error {
	return index.IndexFile(s.db, path, data)
}

// reindex refreshes index rows for files just written to disk.
func (s *Service) reindex(paths []string) error {
	for _, path := range paths {
		data, err := s.store.Read(path)
		if err != nil {
			return err
		}
		if err := s.IndexFile(path, data); err != nil {
			return err
		}
	}
	return nil
}

// buildNoteDetail constructs a NoteDetail from raw data without re-reading the file.
func (s *Service) buildNoteDetail(path string, data []byte) (*NoteDetail, error) {
	res, err := parser.Parse(path, data)
	if err != nil {
		return nil, err
	}
	var bl []string
	if res.Identifier != "" {
		if bl, err = s.db.Backlinks(res.Identifier); err != nil {
			return nil, err
		}
	}
	return &NoteDetail{
		Path:       path,
		Identifier: res.Identifier,
		Title:      res.Title,
		Flavor:     string(res.Flavor),
		Content:    string(data),
		Checksum:   checksum.Sum(data),
		Tags:       nonNilSlice(res.Tags),
		Backlinks:  nonNilSlice(bl),
		UpdatedAt:  time.Now(),
	}, nil
}

func nonNilSlice[T any](s []T) []T {
	if s == nil {
		return []T{}
	}
	return s
}

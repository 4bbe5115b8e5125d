// Package merge implements the consolidation engine: whole-file merge with
// corpus-wide backlink rewriting, and region merge with formatted insertion
// and automatic cross-linking.
package merge

import (
	"errors"
	"fmt"
	"log/slog"
	"path/filepath"
	"sort"
	"strings"

	"github.com/starford/gebo/internal/apperr"
	"github.com/starford/gebo/internal/markup"
	"github.com/starford/gebo/internal/models"
	"github.com/starford/gebo/internal/parser"
	"github.com/starford/gebo/internal/session"
	"github.com/starford/gebo/internal/storage"
)

// BacklinkSource is the corpus-wide reverse lookup for identifiers. The
// engine only requires this one query; it never assumes how the corpus is
// indexed.
type BacklinkSource interface {
	Backlinks(identifier string) ([]string, error)
}

// ConfirmFunc can veto the rewrite of a single backlink file. A veto is
// recorded exactly like a rewrite failure and never aborts the loop.
type ConfirmFunc func(path, oldID, newID string) bool

// Options are the policy knobs for merge operations.
type Options struct {
	// FileAnnotation prefixes the heading inserted by a whole-file merge.
	// Empty disables the prefix, not the heading.
	FileAnnotation string
	// RegionAnnotation prefixes the annotation line of a merged region.
	// Empty leaves the bare back-link as the annotation.
	RegionAnnotation string
	// AutoSave persists affected buffers as part of the operation. The
	// file-merge destination is persisted regardless: the source is deleted
	// afterwards, so its content must be durable first.
	AutoSave bool
	// AutoDiscard drops affected destination buffers after the operation.
	// Buffers with unsaved changes always survive.
	AutoDiscard bool
	// UseTrash moves a merged-away source into the trash instead of
	// deleting it.
	UseTrash bool
	// TabWidth is the indent width for plain-indented regions.
	TabWidth int
	// Confirm, when set, is asked before each backlink rewrite.
	Confirm ConfirmFunc
}

var errDeclined = errors.New("declined by confirmation hook")

// Merger composes storage, buffers, and the backlink lookup into the two
// public merge operations. Operations are synchronous and run to completion;
// callers serialize concurrent use.
type Merger struct {
	store    storage.Provider
	sessions *session.Manager
	corpus   BacklinkSource
	opts     Options
	logger   *slog.Logger
}

// NewMerger creates a merge engine with the given collaborators.
func NewMerger(store storage.Provider, sessions *session.Manager, corpus BacklinkSource, opts Options, logger *slog.Logger) *Merger {
	if opts.TabWidth <= 0 {
		opts.TabWidth = 8
	}
	return &Merger{
		store:    store,
		sessions: sessions,
		corpus:   corpus,
		opts:     opts,
		logger:   logger,
	}
}

// FileMerge appends the source note's body to the destination note, retargets
// every corpus reference to the source identifier at the destination, and
// removes the source file.
//
// Preconditions are validated before any mutation. Once the destination is
// persisted the operation is past its point of no return: per-file rewrite
// failures are collected rather than fatal, and the source is removed even
// when some backlinks could not be updated. On a fatal error after that point
// the returned result still describes the mutations made so far.
func (m *Merger) FileMerge(sourcePath, destPath string) (*FileResult, error) {
	sourcePath = filepath.Clean(sourcePath)
	destPath = filepath.Clean(destPath)

	if sourcePath == destPath {
		return nil, fmt.Errorf("merge: %s: %w", sourcePath, apperr.ErrSameFile)
	}
	flavor := models.FlavorOf(sourcePath)
	if flavor == models.FlavorUnknown {
		return nil, fmt.Errorf("merge: %s: %w", sourcePath, apperr.ErrUnsupportedFlavor)
	}
	if destFlavor := models.FlavorOf(destPath); destFlavor == models.FlavorUnknown {
		return nil, fmt.Errorf("merge: %s: %w", destPath, apperr.ErrUnsupportedFlavor)
	} else if destFlavor != flavor {
		return nil, fmt.Errorf("merge: %s into %s: %w", sourcePath, destPath, apperr.ErrFlavorMismatch)
	}
	if err := m.store.CheckWritable(sourcePath); err != nil {
		return nil, fmt.Errorf("merge: source: %w", err)
	}
	if err := m.store.CheckWritable(destPath); err != nil {
		return nil, fmt.Errorf("merge: destination: %w", err)
	}

	// Extraction reads the file, not the buffer: exactly one read-only pass
	// over the source on disk.
	srcData, err := m.store.Read(sourcePath)
	if err != nil {
		return nil, fmt.Errorf("merge: %w", err)
	}
	src, err := parser.Parse(sourcePath, srcData)
	if err != nil {
		return nil, fmt.Errorf("merge: %w", err)
	}
	if src.Identifier == "" {
		return nil, fmt.Errorf("merge: source %s: %w", sourcePath, apperr.ErrNoIdentifier)
	}
	destID := parser.ParseIdentifier(destPath)
	if destID == "" {
		return nil, fmt.Errorf("merge: destination %s: %w", destPath, apperr.ErrNoIdentifier)
	}

	label := src.Title
	if label == "" {
		label = src.Identifier
	}
	heading, err := markup.Heading(label, flavor, m.opts.FileAnnotation)
	if err != nil {
		return nil, fmt.Errorf("merge: %w", err)
	}

	// The rewrite set is resolved before any mutation: the files that
	// reference the source right now, minus the source itself, plus the
	// destination, whose appended body may carry self-references.
	backlinks, err := m.backlinkSet(src.Identifier, sourcePath, destPath)
	if err != nil {
		return nil, fmt.Errorf("merge: %w", err)
	}

	res := &FileResult{
		Source:      sourcePath,
		Destination: destPath,
		SourceID:    src.Identifier,
		DestID:      destID,
	}

	// Append to the destination and persist unconditionally. This is the
	// durability point: after it the source content exists in two places
	// and cleanup may proceed no matter what the rewrite loop reports.
	destBuf, err := m.sessions.Acquire(destPath)
	if err != nil {
		return nil, fmt.Errorf("merge: %w", err)
	}
	destBuf.SetContent(destBuf.Content() + separatorFor(destBuf.Content()) + heading + src.Body)
	if err := m.sessions.Persist(destPath); err != nil {
		return res, fmt.Errorf("merge: %w", err)
	}
	res.Persisted = append(res.Persisted, destPath)
	if m.opts.AutoDiscard {
		m.sessions.Discard(destPath)
	}

	for _, path := range backlinks {
		persisted, count, rewriteErr := m.rewriteFile(path, src.Identifier, destID)
		if rewriteErr != nil {
			m.logger.Warn("merge: rewrite failed", slog.String("path", path), slog.String("error", rewriteErr.Error()))
			res.Failed = append(res.Failed, RewriteFailure{Path: path, Err: rewriteErr})
			continue
		}
		if count > 0 {
			res.Rewritten = append(res.Rewritten, path)
			if persisted {
				if path != destPath {
					res.Persisted = append(res.Persisted, path)
				}
			} else {
				res.Unsaved = append(res.Unsaved, path)
			}
			m.logger.Debug("merge: rewrote backlinks",
				slog.String("path", path), slog.Int("count", count))
		}
	}

	// Cleanup. The buffer goes first, unconditionally: its content is
	// already durable in the destination.
	m.sessions.Evict(sourcePath)
	if m.opts.UseTrash {
		if err := m.store.Trash(sourcePath); err != nil {
			return res, fmt.Errorf("merge: %w", err)
		}
		res.Trashed = true
	} else {
		if err := m.store.Delete(sourcePath); err != nil {
			return res, fmt.Errorf("merge: %w", err)
		}
	}

	m.logger.Info("merge: file merged",
		slog.String("source", sourcePath),
		slog.String("destination", destPath),
		slog.Int("rewritten", len(res.Rewritten)),
		slog.Int("failed", len(res.Failed)))
	return res, nil
}

// RegionMerge moves the byte range [start, end) of the source note into the
// destination note, wrapped in the template selected by kind, leaving a
// forward link at the cut site and a back-link above the moved fragment.
//
// The cut and the link insertion are computed first and applied as one
// buffer mutation, so a failure before the apply leaves the source intact.
// Merging a region into the note it came from is allowed; the fragment then
// moves to the end of that note.
func (m *Merger) RegionMerge(sourcePath, destPath string, start, end int, kind markup.FormatKind) (*RegionResult, error) {
	sourcePath = filepath.Clean(sourcePath)
	destPath = filepath.Clean(destPath)

	srcFlavor := models.FlavorOf(sourcePath)
	if srcFlavor == models.FlavorUnknown {
		return nil, fmt.Errorf("merge: %s: %w", sourcePath, apperr.ErrUnsupportedFlavor)
	}
	destFlavor := models.FlavorOf(destPath)
	if destFlavor == models.FlavorUnknown {
		return nil, fmt.Errorf("merge: %s: %w", destPath, apperr.ErrUnsupportedFlavor)
	}
	if !markup.KindValidFor(kind, destFlavor) {
		return nil, fmt.Errorf("merge: kind %s into %s note: %w", kind, destFlavor, apperr.ErrKindNotAllowed)
	}
	if err := m.store.CheckWritable(destPath); err != nil {
		return nil, fmt.Errorf("merge: destination: %w", err)
	}

	srcBuf, err := m.sessions.Acquire(sourcePath)
	if err != nil {
		return nil, fmt.Errorf("merge: %w", err)
	}
	content := srcBuf.Content()
	if start < 0 || end > len(content) || start >= end {
		return nil, fmt.Errorf("merge: region [%d, %d) in %s: %w", start, end, sourcePath, apperr.ErrInvalidRegion)
	}
	fragment := content[start:end]
	if strings.TrimSpace(fragment) == "" {
		return nil, fmt.Errorf("merge: region [%d, %d) in %s: %w", start, end, sourcePath, apperr.ErrBlankFragment)
	}

	src, err := parser.Parse(sourcePath, []byte(content))
	if err != nil {
		return nil, fmt.Errorf("merge: %w", err)
	}
	if src.Identifier == "" {
		return nil, fmt.Errorf("merge: source %s: %w", sourcePath, apperr.ErrNoIdentifier)
	}

	sameFile := sourcePath == destPath
	destBuf := srcBuf
	if !sameFile {
		destBuf, err = m.sessions.Acquire(destPath)
		if err != nil {
			return nil, fmt.Errorf("merge: %w", err)
		}
	}
	dest, err := parser.Parse(destPath, []byte(destBuf.Content()))
	if err != nil {
		return nil, fmt.Errorf("merge: %w", err)
	}
	if dest.Identifier == "" {
		return nil, fmt.Errorf("merge: destination %s: %w", destPath, apperr.ErrNoIdentifier)
	}

	// Compute every piece before touching any buffer: the cut, the forward
	// link replacing it, and the formatted block, so the mutation below is
	// all-or-nothing.
	forward, err := markup.Link(dest.Identifier, dest.Title, srcFlavor)
	if err != nil {
		return nil, fmt.Errorf("merge: %w", err)
	}
	back, err := markup.Link(src.Identifier, src.Title, destFlavor)
	if err != nil {
		return nil, fmt.Errorf("merge: %w", err)
	}
	annotation := markup.Annotate(m.opts.RegionAnnotation, back)
	block := markup.FormatRegion(fragment, kind, annotation, m.opts.TabWidth)

	cut := content[:start] + forward + content[end:]
	destContent := destBuf.Content()
	if sameFile {
		destContent = cut
	}
	appended := destContent + separatorFor(destContent) + block

	if sameFile {
		srcBuf.SetContent(appended)
	} else {
		srcBuf.SetContent(cut)
		destBuf.SetContent(appended)
	}

	res := &RegionResult{
		Source:      sourcePath,
		Destination: destPath,
		Kind:        kind,
	}

	if m.opts.AutoSave {
		for _, path := range res.paths() {
			if err := m.sessions.Persist(path); err != nil {
				return res, fmt.Errorf("merge: %w", err)
			}
			res.Persisted = append(res.Persisted, path)
		}
	} else {
		res.Unsaved = res.paths()
	}
	// Only the destination is a discard candidate; the source stays open at
	// the caller's cut site.
	if m.opts.AutoDiscard {
		m.sessions.Discard(destPath)
	}

	m.logger.Info("merge: region merged",
		slog.String("source", sourcePath),
		slog.String("destination", destPath),
		slog.String("kind", string(kind)),
		slog.Int("bytes", end-start))
	return res, nil
}

// rewriteFile retargets the links of a single backlink file. Failures,
// including a veto from the confirmation hook, abandon this one file only.
func (m *Merger) rewriteFile(path, oldID, newID string) (persisted bool, count int, err error) {
	if m.opts.Confirm != nil && !m.opts.Confirm(path, oldID, newID) {
		return false, 0, errDeclined
	}
	buf, err := m.sessions.Acquire(path)
	if err != nil {
		return false, 0, err
	}
	rewritten, count, err := RewriteIdentifier(buf.Content(), models.FlavorOf(path), oldID, newID)
	if err != nil {
		return false, 0, err
	}
	if count > 0 {
		buf.SetContent(rewritten)
		if m.opts.AutoSave {
			if err := m.sessions.Persist(path); err != nil {
				return false, 0, err
			}
			persisted = true
		}
	}
	// Discard is attempted even when nothing changed; the guard keeps any
	// buffer with unsaved content alive.
	if m.opts.AutoDiscard {
		m.sessions.Discard(path)
	}
	return persisted, count, nil
}

// backlinkSet resolves the files to rewrite: the corpus backlinks for id,
// without the source, with the destination, sorted for a deterministic loop.
func (m *Merger) backlinkSet(id, sourcePath, destPath string) ([]string, error) {
	paths, err := m.corpus.Backlinks(id)
	if err != nil {
		return nil, fmt.Errorf("backlinks for %s: %w", id, err)
	}
	set := map[string]struct{}{destPath: {}}
	for _, p := range paths {
		set[filepath.Clean(p)] = struct{}{}
	}
	delete(set, sourcePath)
	out := make([]string, 0, len(set))
	for p := range set {
		out = append(out, p)
	}
	sort.Strings(out)
	return out, nil
}

// separatorFor returns the glue that leaves exactly one blank line between
// existing content and an appended block.
func separatorFor(content string) string {
	switch {
	case content == "":
		return ""
	case strings.HasSuffix(content, "\n\n"):
		return ""
	case strings.HasSuffix(content, "\n"):
		return "\n"
	default:
		return "\n\n"
	}
}

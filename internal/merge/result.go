package merge

import (
	"fmt"
	"strings"

	"github.com/starford/gebo/internal/markup"
)

// RewriteFailure records one backlink file the rewrite loop could not update.
type RewriteFailure struct {
	Path string
	Err  error
}

// Reason returns the failure cause as text for reporting surfaces.
func (f RewriteFailure) Reason() string {
	if f.Err == nil {
		return ""
	}
	return f.Err.Error()
}

// FileResult reports the outcome of a whole-file merge.
type FileResult struct {
	Source      string
	Destination string
	SourceID    string
	DestID      string

	// Rewritten lists the backlink files whose references now target the
	// destination. Failed lists the files the loop had to skip.
	Rewritten []string
	Failed    []RewriteFailure

	// Persisted lists every path written to disk during the operation;
	// Unsaved lists paths left with buffer-only changes.
	Persisted []string
	Unsaved   []string

	// Trashed is true when the source was moved to the trash rather than
	// deleted outright.
	Trashed bool
}

// Summary renders the single human-readable status line every merge ends in.
func (r *FileResult) Summary() string {
	var b strings.Builder
	fmt.Fprintf(&b, "merged %s into %s", r.Source, r.Destination)
	if len(r.Rewritten) > 0 {
		fmt.Fprintf(&b, "; rewrote backlinks in %d %s", len(r.Rewritten), plural(len(r.Rewritten)))
	}
	if r.Trashed {
		b.WriteString("; source moved to trash")
	} else {
		b.WriteString("; source deleted")
	}
	if len(r.Failed) > 0 {
		fmt.Fprintf(&b, "; %d %s not updated:", len(r.Failed), plural(len(r.Failed)))
		for _, f := range r.Failed {
			fmt.Fprintf(&b, " %s (%s)", f.Path, f.Reason())
		}
	}
	if len(r.Unsaved) > 0 {
		fmt.Fprintf(&b, "; unsaved changes pending in %s", strings.Join(r.Unsaved, ", "))
	}
	return b.String()
}

// RegionResult reports the outcome of a region merge.
type RegionResult struct {
	Source      string
	Destination string
	Kind        markup.FormatKind

	Persisted []string
	Unsaved   []string
}

// Summary renders the single human-readable status line every merge ends in.
func (r *RegionResult) Summary() string {
	var b strings.Builder
	fmt.Fprintf(&b, "moved region from %s to %s (%s)", r.Source, r.Destination, r.Kind)
	if len(r.Unsaved) > 0 {
		fmt.Fprintf(&b, "; unsaved changes pending in %s", strings.Join(r.Unsaved, ", "))
	}
	return b.String()
}

// paths returns the operation's touched paths, source first, deduplicated
// for the same-file case.
func (r *RegionResult) paths() []string {
	if r.Source == r.Destination {
		return []string{r.Source}
	}
	return []string{r.Source, r.Destination}
}

func plural(n int) string {
	if n == 1 {
		return "file"
	}
	return "files"
}

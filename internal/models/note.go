// Package models defines the domain types for Gebo.
package models

import (
	"path/filepath"
	"strings"
	"time"
)

// Flavor is the markup dialect of a note, derived from its file extension.
// The set is closed: merge operations refuse anything outside it rather than
// guessing at link or heading syntax.
type Flavor string

const (
	FlavorOrg      Flavor = "org"
	FlavorMarkdown Flavor = "markdown"
	FlavorText     Flavor = "text"
	FlavorUnknown  Flavor = ""
)

// FlavorOf classifies a note path by its extension.
func FlavorOf(path string) Flavor {
	switch strings.ToLower(filepath.Ext(path)) {
	case ".org":
		return FlavorOrg
	case ".md":
		return FlavorMarkdown
	case ".txt":
		return FlavorText
	default:
		return FlavorUnknown
	}
}

// IsNote reports whether path carries one of the recognized note extensions.
func IsNote(path string) bool {
	return FlavorOf(path) != FlavorUnknown
}

// NoteMetadata is a lightweight representation returned by list operations.
type NoteMetadata struct {
	Path      string    `json:"path"`
	Checksum  string    `json:"checksum"`
	UpdatedAt time.Time `json:"updated_at"`
}

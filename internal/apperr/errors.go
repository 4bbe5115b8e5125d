// Package apperr holds the sentinel errors shared across Gebo's layers.
// Callers wrap them with context via fmt.Errorf("...: %w", err) and the
// API/MCP boundaries dispatch on them with errors.Is.
package apperr

import "errors"

var (
	ErrNotFound      = errors.New("not found")
	ErrConflict      = errors.New("conflict")
	ErrAlreadyExists = errors.New("already exists")
)

// Merge precondition failures. Each aborts the current operation before any
// mutation has happened (file-merge) or before the atomic region cut.
var (
	ErrFlavorMismatch    = errors.New("flavor mismatch")
	ErrUnsupportedFlavor = errors.New("unsupported flavor")
	ErrNoIdentifier      = errors.New("missing identifier")
	ErrNotWritable       = errors.New("not writable")
	ErrBlankFragment     = errors.New("blank fragment")
	ErrInvalidRegion     = errors.New("invalid region")
	ErrKindNotAllowed    = errors.New("format kind not allowed for flavor")
	ErrSameFile          = errors.New("source and destination are the same file")
)

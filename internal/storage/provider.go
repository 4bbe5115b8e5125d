// Package storage defines the vault file-system abstraction.
package storage

import "github.com/starford/gebo/internal/models"

// Provider is the interface for vault file operations.
type Provider interface {
	// List returns metadata for every note file under dir (relative to vault root).
	List(dir string) ([]models.NoteMetadata, error)
	// Read returns the raw bytes of the file at path (relative to vault root).
	Read(path string) ([]byte, error)
	// Write atomically writes content to path (relative to vault root).
	Write(path string, content []byte) error
	// Delete removes the file at path (relative to vault root).
	Delete(path string) error
	// Trash moves the file at path into the trash directory inside the vault.
	Trash(path string) error
	// Move renames oldPath to newPath (both relative to vault root).
	Move(oldPath, newPath string) error
	// CheckWritable returns nil when path exists and accepts writes.
	CheckWritable(path string) error
}

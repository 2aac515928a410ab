// Package storage defines the content directory abstraction.
package storage

import "github.com/starford/rulebook/internal/models"

// PageFile is the name of the per-page metadata file.
const PageFile = "_page.yaml"

// Provider is the interface for content file operations. Paths are relative
// to the content root and use forward slashes.
type Provider interface {
	// List returns metadata for every card file under dir.
	List(dir string) ([]models.CardMetadata, error)
	// Read returns the raw bytes of the file at path.
	Read(path string) ([]byte, error)
	// Write atomically writes content to path.
	Write(path string, content []byte) error
	// Delete removes the file at path.
	Delete(path string) error
	// Ignored reports whether path matches one of the ignore patterns.
	Ignored(path string) bool
}

// Package storage persists planner documents as JSON files in one flat
// directory, one file per document key.
package storage

import (
	"time"

	"github.com/starford/calendle/internal/document"
)

// Meta describes one stored document.
type Meta struct {
	Key       string
	Checksum  string
	UpdatedAt time.Time
}

// Provider is the interface for document operations. Keys are plain file
// names relative to the data root.
type Provider interface {
	// EnsureRoot creates the data root if it does not exist.
	EnsureRoot() error
	// EnsureDocument writes v under key unless the key already exists.
	EnsureDocument(key string, v any) (bool, error)
	// ReadDocument returns the raw bytes stored under key.
	ReadDocument(key string) ([]byte, error)
	// ReadWeek reads and decodes a week document, normalizing legacy indents.
	ReadWeek(key string) (document.Week, error)
	// ReadList reads and decodes a list document.
	ReadList(key string) (document.List, error)
	// WriteDocument replaces the document under key with v.
	WriteDocument(key string, v any) error
	// Keys returns metadata for every document in the root.
	Keys() ([]Meta, error)
}

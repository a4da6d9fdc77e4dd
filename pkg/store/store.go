// Package store persists scan results.
package store

import (
	"fmt"

	"github.com/praetorian-inc/perscan/pkg/types"
)

// Store provides persistence for scan results.
type Store interface {
	// AddBlob records a scanned blob. Adding the same blob again is a no-op.
	AddBlob(id types.BlobID, size int64) error

	// AddSource records that a blob was found at path.
	AddSource(id types.BlobID, path string) error

	// AddMatch stores a match. Matches are unique by structural ID.
	AddMatch(m *types.Match) error

	// GetMatches retrieves the matches of one blob in insertion order.
	GetMatches(blobID types.BlobID) ([]*types.Match, error)

	// GetAllMatches retrieves every match in insertion order.
	GetAllMatches() ([]*types.Match, error)

	// GetSources lists the paths a blob was found at.
	GetSources(blobID types.BlobID) ([]string, error)

	// BlobExists reports whether a blob was already scanned.
	BlobExists(id types.BlobID) (bool, error)

	// Close releases the store.
	Close() error
}

// MemoryPath selects the in-memory store.
const MemoryPath = ":memory:"

// Config for store initialization.
type Config struct {
	// Path is the SQLite database file, or MemoryPath.
	Path string
}

// New creates a Store: a MemoryStore for MemoryPath, SQLite otherwise.
func New(cfg Config) (Store, error) {
	switch cfg.Path {
	case "":
		return nil, fmt.Errorf("path is required")
	case MemoryPath:
		return NewMemory(), nil
	default:
		return NewSQLite(cfg.Path)
	}
}

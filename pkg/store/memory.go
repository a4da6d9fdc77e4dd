package store

import (
	"slices"
	"sync"

	"github.com/praetorian-inc/perscan/pkg/types"
)

// MemoryStore implements Store in process memory.
type MemoryStore struct {
	mu      sync.RWMutex
	blobs   map[types.BlobID]int64
	sources map[types.BlobID][]string
	matches []*types.Match
	seen    map[string]struct{} // structural IDs in matches
}

// NewMemory creates an empty in-memory store.
func NewMemory() *MemoryStore {
	return &MemoryStore{
		blobs:   make(map[types.BlobID]int64),
		sources: make(map[types.BlobID][]string),
		seen:    make(map[string]struct{}),
	}
}

// AddBlob stores a blob record.
func (m *MemoryStore) AddBlob(id types.BlobID, size int64) error {
	m.mu.Lock()
	defer m.mu.Unlock()

	if _, exists := m.blobs[id]; !exists {
		m.blobs[id] = size
	}
	return nil
}

// AddSource records a path for a blob.
func (m *MemoryStore) AddSource(id types.BlobID, path string) error {
	m.mu.Lock()
	defer m.mu.Unlock()

	if !slices.Contains(m.sources[id], path) {
		m.sources[id] = append(m.sources[id], path)
	}
	return nil
}

// AddMatch stores a match record.
func (m *MemoryStore) AddMatch(match *types.Match) error {
	m.mu.Lock()
	defer m.mu.Unlock()

	if _, dup := m.seen[match.StructuralID]; dup {
		return nil
	}
	m.seen[match.StructuralID] = struct{}{}
	m.matches = append(m.matches, match)
	return nil
}

// GetMatches retrieves matches for a blob.
func (m *MemoryStore) GetMatches(blobID types.BlobID) ([]*types.Match, error) {
	m.mu.RLock()
	defer m.mu.RUnlock()

	result := []*types.Match{}
	for _, match := range m.matches {
		if match.BlobID == blobID {
			result = append(result, match)
		}
	}
	return result, nil
}

// GetAllMatches retrieves all matches.
func (m *MemoryStore) GetAllMatches() ([]*types.Match, error) {
	m.mu.RLock()
	defer m.mu.RUnlock()

	return slices.Clone(m.matches), nil
}

// GetSources lists the paths recorded for a blob.
func (m *MemoryStore) GetSources(blobID types.BlobID) ([]string, error) {
	m.mu.RLock()
	defer m.mu.RUnlock()

	return append([]string{}, m.sources[blobID]...), nil
}

// BlobExists checks if a blob has already been scanned.
func (m *MemoryStore) BlobExists(id types.BlobID) (bool, error) {
	m.mu.RLock()
	defer m.mu.RUnlock()

	_, exists := m.blobs[id]
	return exists, nil
}

// Close is a no-op for the in-memory store.
func (m *MemoryStore) Close() error {
	return nil
}

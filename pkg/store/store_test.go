package store

import (
	"path/filepath"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/praetorian-inc/perscan/pkg/types"
)

func sampleMatch(content string, tag string, start, end uint64) *types.Match {
	data := []byte(content)
	m := &types.Match{
		BlobID:    types.ComputeBlobID(data),
		PatternID: 3,
		Tag:       tag,
		Source:    "dir/file.txt",
		Location:  types.Locate(data, types.OffsetSpan{Start: start, End: end}),
		Matching:  data[start:end],
		Before:    []byte("before\n"),
		Groups:    [][]byte{[]byte("grp")},
		NamedGroups: map[string][]byte{
			"name": []byte("grp"),
		},
	}
	m.StructuralID = m.ComputeStructuralID()
	return m
}

// stores runs fn against every Store implementation.
func stores(t *testing.T, fn func(t *testing.T, s Store)) {
	t.Run("memory", func(t *testing.T) {
		s, err := New(Config{Path: MemoryPath})
		require.NoError(t, err)
		defer s.Close()
		fn(t, s)
	})
	t.Run("sqlite", func(t *testing.T) {
		s, err := New(Config{Path: filepath.Join(t.TempDir(), "results.db")})
		require.NoError(t, err)
		defer s.Close()
		fn(t, s)
	})
}

func TestNew(t *testing.T) {
	_, err := New(Config{})
	assert.ErrorContains(t, err, "path is required")

	s, err := New(Config{Path: MemoryPath})
	require.NoError(t, err)
	assert.IsType(t, &MemoryStore{}, s)

	s, err = New(Config{Path: filepath.Join(t.TempDir(), "x.db")})
	require.NoError(t, err)
	defer s.Close()
	assert.IsType(t, &SQLiteStore{}, s)
}

func TestStore_Blobs(t *testing.T) {
	stores(t, func(t *testing.T, s Store) {
		id := types.ComputeBlobID([]byte("content"))

		exists, err := s.BlobExists(id)
		require.NoError(t, err)
		assert.False(t, exists)

		require.NoError(t, s.AddBlob(id, 7))
		require.NoError(t, s.AddBlob(id, 7), "adding twice is a no-op")

		exists, err = s.BlobExists(id)
		require.NoError(t, err)
		assert.True(t, exists)
	})
}

func TestStore_Sources(t *testing.T) {
	stores(t, func(t *testing.T, s Store) {
		id := types.ComputeBlobID([]byte("content"))
		require.NoError(t, s.AddBlob(id, 7))
		require.NoError(t, s.AddSource(id, "a.txt"))
		require.NoError(t, s.AddSource(id, "b.txt"))
		require.NoError(t, s.AddSource(id, "a.txt"))

		paths, err := s.GetSources(id)
		require.NoError(t, err)
		assert.Equal(t, []string{"a.txt", "b.txt"}, paths)

		paths, err = s.GetSources(types.ComputeBlobID([]byte("other")))
		require.NoError(t, err)
		assert.Empty(t, paths)
	})
}

func TestStore_Matches(t *testing.T) {
	stores(t, func(t *testing.T, s Store) {
		first := sampleMatch("xx\nsecret", "t.one", 3, 9)
		second := sampleMatch("xx\nsecret", "t.two", 0, 2)
		other := sampleMatch("another blob", "t.one", 0, 7)

		require.NoError(t, s.AddBlob(first.BlobID, 9))
		require.NoError(t, s.AddBlob(other.BlobID, 12))
		require.NoError(t, s.AddMatch(first))
		require.NoError(t, s.AddMatch(second))
		require.NoError(t, s.AddMatch(other))
		require.NoError(t, s.AddMatch(first), "duplicate structural id is ignored")

		matches, err := s.GetMatches(first.BlobID)
		require.NoError(t, err)
		require.Len(t, matches, 2)

		got := matches[0]
		assert.Equal(t, first.BlobID, got.BlobID)
		assert.Equal(t, first.StructuralID, got.StructuralID)
		assert.Equal(t, uint(3), got.PatternID)
		assert.Equal(t, "t.one", got.Tag)
		assert.Equal(t, "dir/file.txt", got.Source)
		assert.Equal(t, first.Location, got.Location)
		assert.Equal(t, types.SourcePoint{Line: 2, Column: 1}, got.Location.Source.Start)
		assert.Equal(t, []byte("secret"), got.Matching)
		assert.Equal(t, []byte("before\n"), got.Before)
		assert.Equal(t, [][]byte{[]byte("grp")}, got.Groups)
		assert.Equal(t, map[string][]byte{"name": []byte("grp")}, got.NamedGroups)
		assert.Equal(t, "t.two", matches[1].Tag)

		all, err := s.GetAllMatches()
		require.NoError(t, err)
		assert.Len(t, all, 3)

		none, err := s.GetMatches(types.ComputeBlobID([]byte("unknown")))
		require.NoError(t, err)
		assert.Empty(t, none)
	})
}

func TestSQLite_Reopen(t *testing.T) {
	path := filepath.Join(t.TempDir(), "results.db")
	m := sampleMatch("secret", "t", 0, 6)

	s, err := NewSQLite(path)
	require.NoError(t, err)
	require.NoError(t, s.AddBlob(m.BlobID, 6))
	require.NoError(t, s.AddMatch(m))
	require.NoError(t, s.Close())

	s, err = NewSQLite(path)
	require.NoError(t, err)
	defer s.Close()

	exists, err := s.BlobExists(m.BlobID)
	require.NoError(t, err)
	assert.True(t, exists)
	all, err := s.GetAllMatches()
	require.NoError(t, err)
	require.Len(t, all, 1)
	assert.Equal(t, m.StructuralID, all[0].StructuralID)
}

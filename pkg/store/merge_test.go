package store

import (
	"path/filepath"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/praetorian-inc/perscan/pkg/types"
)

func TestMerge_Validation(t *testing.T) {
	_, err := Merge(MergeConfig{DestPath: "dest.db"})
	assert.ErrorContains(t, err, "no source databases")

	_, err = Merge(MergeConfig{SourcePaths: []string{"source.db"}})
	assert.ErrorContains(t, err, "destination path is required")

	dir := t.TempDir()
	_, err = Merge(MergeConfig{SourcePaths: []string{filepath.Join(dir, "missing.db")}, DestPath: filepath.Join(dir, "dest.db")})
	assert.Error(t, err)
}

func TestMerge(t *testing.T) {
	dir := t.TempDir()
	shared := sampleMatch("shared secret", "t.shared", 7, 13)
	onlyA := sampleMatch("alpha", "t.a", 0, 5)
	onlyB := sampleMatch("bravo", "t.b", 0, 5)

	write := func(name string, matches ...*types.Match) string {
		path := filepath.Join(dir, name)
		s, err := NewSQLite(path)
		require.NoError(t, err)
		defer s.Close()
		for _, m := range matches {
			require.NoError(t, s.AddBlob(m.BlobID, int64(m.Location.Offset.End)))
			require.NoError(t, s.AddSource(m.BlobID, name))
			require.NoError(t, s.AddMatch(m))
		}
		return path
	}
	a := write("a.db", shared, onlyA)
	b := write("b.db", shared, onlyB)

	dest := filepath.Join(dir, "merged.db")
	stats, err := Merge(MergeConfig{SourcePaths: []string{a, b}, DestPath: dest})
	require.NoError(t, err)
	assert.Equal(t, 2, stats.SourcesProcessed)
	assert.Equal(t, 3, stats.BlobsMerged)
	assert.Equal(t, 3, stats.MatchesMerged)
	assert.Equal(t, 4, stats.SourcesMerged, "the shared blob keeps both paths")

	merged, err := NewSQLite(dest)
	require.NoError(t, err)
	defer merged.Close()

	all, err := merged.GetAllMatches()
	require.NoError(t, err)
	require.Len(t, all, 3)
	assert.Equal(t, shared.StructuralID, all[0].StructuralID)
	assert.Equal(t, shared.Groups, all[0].Groups)

	paths, err := merged.GetSources(shared.BlobID)
	require.NoError(t, err)
	assert.Equal(t, []string{"a.db", "b.db"}, paths)
}

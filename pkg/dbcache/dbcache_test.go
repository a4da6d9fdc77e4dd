//go:build cgo

package dbcache

import (
	"errors"
	"io/fs"
	"os"
	"path/filepath"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/praetorian-inc/perscan/pkg/hyperscan"
	"github.com/praetorian-inc/perscan/pkg/patterns"
)

type mockFilesystem struct {
	files    map[string][]byte
	writeErr error
}

func newMockFilesystem() *mockFilesystem {
	return &mockFilesystem{files: make(map[string][]byte)}
}

func (m *mockFilesystem) ReadFile(name string) ([]byte, error) {
	data, ok := m.files[name]
	if !ok {
		return nil, fs.ErrNotExist
	}
	return data, nil
}

func (m *mockFilesystem) WriteFile(name string, data []byte) error {
	if m.writeErr != nil {
		return m.writeErr
	}
	m.files[name] = data
	return nil
}

func (m *mockFilesystem) MkdirAll(string) error { return nil }

func testSet(t *testing.T) *patterns.Set {
	t.Helper()
	set, err := patterns.FromLiterals("100:/abc+/L")
	require.NoError(t, err)
	return set
}

func findsPattern(t *testing.T, db *hyperscan.BlockDatabase, id uint, input string) bool {
	t.Helper()
	ctx := hyperscan.NewContext(false, func(found *bool, got uint, _, _ uint64) (hyperscan.Scan, error) {
		if got == id {
			*found = true
		}
		return hyperscan.Continue, nil
	})
	s, err := hyperscan.NewBlockScanner(db, ctx)
	require.NoError(t, err)
	defer s.Close()
	_, err = s.Scan([]byte(input))
	require.NoError(t, err)
	return *ctx.UserData()
}

func TestCache_MissThenHit(t *testing.T) {
	mfs := newMockFilesystem()
	cache := New("/cache", WithFilesystem(mfs))
	set := testSet(t)

	db, err := cache.BlockDatabase(set)
	require.NoError(t, err)
	defer db.Close()
	assert.Contains(t, mfs.files, cache.Path(set, hyperscan.BlockMode))

	cached, err := cache.BlockDatabase(set)
	require.NoError(t, err)
	defer cached.Close()

	hits, misses := cache.Stats()
	assert.Equal(t, int64(1), hits)
	assert.Equal(t, int64(1), misses)
	assert.True(t, findsPattern(t, cached, 100, "abcccc"))
}

func TestCache_ModesHaveSeparateEntries(t *testing.T) {
	mfs := newMockFilesystem()
	cache := New("/cache", WithFilesystem(mfs))
	set := testSet(t)

	block, err := cache.BlockDatabase(set)
	require.NoError(t, err)
	defer block.Close()
	stream, err := cache.StreamDatabase(set)
	require.NoError(t, err)
	defer stream.Close()
	vectored, err := cache.VectoredDatabase(set)
	require.NoError(t, err)
	defer vectored.Close()

	assert.Len(t, mfs.files, 3)
	assert.Equal(t, hyperscan.StreamMode|hyperscan.SomHorizonLarge, stream.Mode())
	_, misses := cache.Stats()
	assert.Equal(t, int64(3), misses)
}

func TestCache_CorruptEntryIsRecompiled(t *testing.T) {
	mfs := newMockFilesystem()
	cache := New("/cache", WithFilesystem(mfs))
	set := testSet(t)

	path := cache.Path(set, hyperscan.BlockMode)
	mfs.files[path] = []byte("definitely not a database")

	db, err := cache.BlockDatabase(set)
	require.NoError(t, err)
	defer db.Close()
	assert.True(t, findsPattern(t, db, 100, "abc"))
	assert.NotEqual(t, []byte("definitely not a database"), mfs.files[path], "entry is rewritten")
}

func TestCache_WriteFailureIsNotFatal(t *testing.T) {
	mfs := newMockFilesystem()
	mfs.writeErr = errors.New("read-only")
	cache := New("/cache", WithFilesystem(mfs))

	db, err := cache.BlockDatabase(testSet(t))
	require.NoError(t, err)
	defer db.Close()
	assert.Empty(t, mfs.files)
}

func TestCache_CompileErrorPropagates(t *testing.T) {
	set, err := patterns.NewSet([]patterns.Entry{{Expression: "a("}})
	require.NoError(t, err)

	_, err = New("/cache", WithFilesystem(newMockFilesystem())).BlockDatabase(set)
	var ce *hyperscan.CompileError
	assert.ErrorAs(t, err, &ce)
}

func TestOSFilesystem(t *testing.T) {
	dir := filepath.Join(t.TempDir(), "nested", "cache")
	cache := New(dir)
	set := testSet(t)

	db, err := cache.BlockDatabase(set)
	require.NoError(t, err)
	defer db.Close()

	entries, err := os.ReadDir(dir)
	require.NoError(t, err)
	require.Len(t, entries, 1, "no temporary files are left behind")
	assert.Equal(t, filepath.Base(cache.Path(set, hyperscan.BlockMode)), entries[0].Name())

	again, err := New(dir).BlockDatabase(set)
	require.NoError(t, err)
	defer again.Close()
	assert.True(t, findsPattern(t, again, 100, "abc"))
}

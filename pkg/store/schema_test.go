package store

import (
	"database/sql"
	"path/filepath"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestCreateSchema(t *testing.T) {
	db, err := sql.Open(driverName, filepath.Join(t.TempDir(), "schema.db"))
	require.NoError(t, err)
	defer db.Close()

	require.NoError(t, CreateSchema(db))
	require.NoError(t, CreateSchema(db), "schema creation is idempotent")

	var version, rows int
	require.NoError(t, db.QueryRow("SELECT version FROM schema_version").Scan(&version))
	require.NoError(t, db.QueryRow("SELECT COUNT(*) FROM schema_version").Scan(&rows))
	assert.Equal(t, SchemaVersion, version)
	assert.Equal(t, 1, rows)

	for _, table := range []string{"blobs", "sources", "matches"} {
		var name string
		err := db.QueryRow("SELECT name FROM sqlite_master WHERE type = 'table' AND name = ?", table).Scan(&name)
		assert.NoError(t, err, table)
	}
}

func TestCreateSchema_RejectsOtherVersion(t *testing.T) {
	db, err := sql.Open(driverName, filepath.Join(t.TempDir(), "old.db"))
	require.NoError(t, err)
	defer db.Close()

	_, err = db.Exec("CREATE TABLE schema_version (version INTEGER NOT NULL)")
	require.NoError(t, err)
	_, err = db.Exec("INSERT INTO schema_version (version) VALUES (70)")
	require.NoError(t, err)

	assert.ErrorContains(t, CreateSchema(db), "unsupported schema version 70")
}

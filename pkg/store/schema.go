package store

import (
	"database/sql"
	"errors"
	"fmt"
)

// SchemaVersion is the version written to new databases.
const SchemaVersion = 1

var schemaStatements = []struct {
	name string
	sql  string
}{
	{"blobs", `
		CREATE TABLE IF NOT EXISTS blobs (
			id TEXT PRIMARY KEY NOT NULL,
			size INTEGER NOT NULL
		)`},
	{"sources", `
		CREATE TABLE IF NOT EXISTS sources (
			blob_id TEXT NOT NULL REFERENCES blobs(id),
			path TEXT NOT NULL,
			UNIQUE(blob_id, path)
		)`},
	{"matches", `
		CREATE TABLE IF NOT EXISTS matches (
			id INTEGER PRIMARY KEY AUTOINCREMENT,
			blob_id TEXT NOT NULL,
			pattern_id INTEGER NOT NULL,
			tag TEXT NOT NULL,
			structural_id TEXT NOT NULL UNIQUE,
			source TEXT,
			offset_start INTEGER NOT NULL,
			offset_end INTEGER NOT NULL,
			start_line INTEGER,
			start_column INTEGER,
			end_line INTEGER,
			end_column INTEGER,
			matching BLOB,
			context_before BLOB,
			context_after BLOB,
			groups_json TEXT,
			named_groups_json TEXT
		)`},
	{"matches index", `CREATE INDEX IF NOT EXISTS idx_matches_blob_id ON matches(blob_id)`},
}

// CreateSchema creates the tables if they do not exist and checks the
// version of an existing database.
func CreateSchema(db *sql.DB) error {
	if err := ensureSchemaVersion(db); err != nil {
		return fmt.Errorf("schema_version: %w", err)
	}
	for _, stmt := range schemaStatements {
		if _, err := db.Exec(stmt.sql); err != nil {
			return fmt.Errorf("creating %s: %w", stmt.name, err)
		}
	}
	return nil
}

func ensureSchemaVersion(db *sql.DB) error {
	if _, err := db.Exec(`CREATE TABLE IF NOT EXISTS schema_version (version INTEGER NOT NULL)`); err != nil {
		return err
	}

	var version int
	err := db.QueryRow("SELECT version FROM schema_version LIMIT 1").Scan(&version)
	switch {
	case errors.Is(err, sql.ErrNoRows):
		_, err = db.Exec("INSERT INTO schema_version (version) VALUES (?)", SchemaVersion)
		return err
	case err != nil:
		return err
	case version != SchemaVersion:
		return fmt.Errorf("unsupported schema version %d (want %d)", version, SchemaVersion)
	}
	return nil
}

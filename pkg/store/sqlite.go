package store

import (
	"database/sql"
	"encoding/json"
	"fmt"

	"github.com/praetorian-inc/perscan/pkg/types"

	_ "modernc.org/sqlite"
)

// driverName is the database/sql driver registered by modernc.org/sqlite.
const driverName = "sqlite"

// SQLiteStore implements Store on a SQLite file.
type SQLiteStore struct {
	db *sql.DB
}

// NewSQLite opens (or creates) the database at path.
func NewSQLite(path string) (*SQLiteStore, error) {
	db, err := openSQLite(path)
	if err != nil {
		return nil, err
	}
	return &SQLiteStore{db: db}, nil
}

func openSQLite(path string) (*sql.DB, error) {
	db, err := sql.Open(driverName, path)
	if err != nil {
		return nil, fmt.Errorf("opening database: %w", err)
	}
	// A single connection keeps ":memory:" databases and write ordering sane.
	db.SetMaxOpenConns(1)

	if err := CreateSchema(db); err != nil {
		db.Close()
		return nil, fmt.Errorf("creating schema: %w", err)
	}
	return db, nil
}

// AddBlob stores a blob record.
func (s *SQLiteStore) AddBlob(id types.BlobID, size int64) error {
	if _, err := s.db.Exec("INSERT OR IGNORE INTO blobs (id, size) VALUES (?, ?)", id.Hex(), size); err != nil {
		return fmt.Errorf("inserting blob: %w", err)
	}
	return nil
}

// AddSource records a path for a blob.
func (s *SQLiteStore) AddSource(id types.BlobID, path string) error {
	if _, err := s.db.Exec("INSERT OR IGNORE INTO sources (blob_id, path) VALUES (?, ?)", id.Hex(), path); err != nil {
		return fmt.Errorf("inserting source: %w", err)
	}
	return nil
}

// AddMatch stores a match record.
func (s *SQLiteStore) AddMatch(m *types.Match) error {
	groupsJSON, err := json.Marshal(m.Groups)
	if err != nil {
		return fmt.Errorf("marshaling groups: %w", err)
	}
	namedJSON, err := json.Marshal(m.NamedGroups)
	if err != nil {
		return fmt.Errorf("marshaling named groups: %w", err)
	}

	loc := m.Location
	_, err = s.db.Exec(`
		INSERT OR IGNORE INTO matches
		(blob_id, pattern_id, tag, structural_id, source,
		 offset_start, offset_end, start_line, start_column, end_line, end_column,
		 matching, context_before, context_after, groups_json, named_groups_json)
		VALUES (?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?)
	`,
		m.BlobID.Hex(), m.PatternID, m.Tag, m.StructuralID, m.Source,
		loc.Offset.Start, loc.Offset.End,
		loc.Source.Start.Line, loc.Source.Start.Column, loc.Source.End.Line, loc.Source.End.Column,
		m.Matching, m.Before, m.After, string(groupsJSON), string(namedJSON),
	)
	if err != nil {
		return fmt.Errorf("inserting match: %w", err)
	}
	return nil
}

const selectMatches = `
	SELECT blob_id, pattern_id, tag, structural_id, COALESCE(source, ''),
	       offset_start, offset_end,
	       COALESCE(start_line, 0), COALESCE(start_column, 0), COALESCE(end_line, 0), COALESCE(end_column, 0),
	       matching, context_before, context_after, COALESCE(groups_json, 'null'), COALESCE(named_groups_json, 'null')
	FROM matches`

// GetMatches retrieves matches for a blob.
func (s *SQLiteStore) GetMatches(blobID types.BlobID) ([]*types.Match, error) {
	return s.queryMatches(selectMatches+" WHERE blob_id = ? ORDER BY id", blobID.Hex())
}

// GetAllMatches retrieves all matches.
func (s *SQLiteStore) GetAllMatches() ([]*types.Match, error) {
	return s.queryMatches(selectMatches + " ORDER BY id")
}

func (s *SQLiteStore) queryMatches(query string, args ...any) ([]*types.Match, error) {
	rows, err := s.db.Query(query, args...)
	if err != nil {
		return nil, fmt.Errorf("querying matches: %w", err)
	}
	defer rows.Close()

	matches := []*types.Match{}
	for rows.Next() {
		m, err := scanMatch(rows)
		if err != nil {
			return nil, err
		}
		matches = append(matches, m)
	}
	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("iterating matches: %w", err)
	}
	return matches, nil
}

func scanMatch(rows *sql.Rows) (*types.Match, error) {
	var m types.Match
	var groupsJSON, namedJSON string
	loc := &m.Location

	err := rows.Scan(
		&m.BlobID, &m.PatternID, &m.Tag, &m.StructuralID, &m.Source,
		&loc.Offset.Start, &loc.Offset.End,
		&loc.Source.Start.Line, &loc.Source.Start.Column, &loc.Source.End.Line, &loc.Source.End.Column,
		&m.Matching, &m.Before, &m.After, &groupsJSON, &namedJSON,
	)
	if err != nil {
		return nil, fmt.Errorf("scanning match: %w", err)
	}
	if err := json.Unmarshal([]byte(groupsJSON), &m.Groups); err != nil {
		return nil, fmt.Errorf("unmarshaling groups: %w", err)
	}
	if err := json.Unmarshal([]byte(namedJSON), &m.NamedGroups); err != nil {
		return nil, fmt.Errorf("unmarshaling named groups: %w", err)
	}
	return &m, nil
}

// GetSources lists the paths recorded for a blob.
func (s *SQLiteStore) GetSources(blobID types.BlobID) ([]string, error) {
	rows, err := s.db.Query("SELECT path FROM sources WHERE blob_id = ? ORDER BY rowid", blobID.Hex())
	if err != nil {
		return nil, fmt.Errorf("querying sources: %w", err)
	}
	defer rows.Close()

	paths := []string{}
	for rows.Next() {
		var path string
		if err := rows.Scan(&path); err != nil {
			return nil, fmt.Errorf("scanning source: %w", err)
		}
		paths = append(paths, path)
	}
	return paths, rows.Err()
}

// BlobExists checks if a blob has already been scanned.
func (s *SQLiteStore) BlobExists(id types.BlobID) (bool, error) {
	var count int
	if err := s.db.QueryRow("SELECT COUNT(*) FROM blobs WHERE id = ?", id.Hex()).Scan(&count); err != nil {
		return false, fmt.Errorf("checking blob existence: %w", err)
	}
	return count > 0, nil
}

// Close closes the database connection.
func (s *SQLiteStore) Close() error {
	return s.db.Close()
}

package store

import (
	"database/sql"
	"fmt"
	"os"
)

// MergeConfig configures the merge operation.
type MergeConfig struct {
	// SourcePaths are the database files to merge from.
	SourcePaths []string
	// DestPath is the destination database file.
	DestPath string
}

// MergeStats tracks merge operation statistics.
type MergeStats struct {
	BlobsMerged      int
	SourcesMerged    int
	MatchesMerged    int
	SourcesProcessed int
}

// Merge combines several result databases into one. Rows already present in
// the destination are skipped.
func Merge(cfg MergeConfig) (*MergeStats, error) {
	if len(cfg.SourcePaths) == 0 {
		return nil, fmt.Errorf("no source databases specified")
	}
	if cfg.DestPath == "" {
		return nil, fmt.Errorf("destination path is required")
	}

	destDB, err := openSQLite(cfg.DestPath)
	if err != nil {
		return nil, err
	}
	defer destDB.Close()

	stats := &MergeStats{}
	for _, sourcePath := range cfg.SourcePaths {
		if err := mergeFrom(destDB, sourcePath, stats); err != nil {
			return stats, fmt.Errorf("merging from %s: %w", sourcePath, err)
		}
		stats.SourcesProcessed++
	}
	return stats, nil
}

// mergeTables lists the copied columns per table. The order matters: matches
// and sources refer to blobs.
var mergeTables = []struct {
	table   string
	columns string
	count   func(*MergeStats) *int
}{
	{"blobs", "id, size", func(s *MergeStats) *int { return &s.BlobsMerged }},
	{"sources", "blob_id, path", func(s *MergeStats) *int { return &s.SourcesMerged }},
	{"matches", `blob_id, pattern_id, tag, structural_id, source,
		offset_start, offset_end, start_line, start_column, end_line, end_column,
		matching, context_before, context_after, groups_json, named_groups_json`,
		func(s *MergeStats) *int { return &s.MatchesMerged }},
}

func mergeFrom(destDB *sql.DB, sourcePath string, stats *MergeStats) error {
	if _, err := os.Stat(sourcePath); err != nil {
		return err
	}
	sourceDB, err := openSQLite(sourcePath)
	if err != nil {
		return err
	}
	defer sourceDB.Close()

	tx, err := destDB.Begin()
	if err != nil {
		return fmt.Errorf("starting transaction: %w", err)
	}
	defer tx.Rollback()

	for _, t := range mergeTables {
		n, err := copyRows(tx, sourceDB, t.table, t.columns)
		if err != nil {
			return fmt.Errorf("merging %s: %w", t.table, err)
		}
		*t.count(stats) += n
	}

	if err := tx.Commit(); err != nil {
		return fmt.Errorf("committing transaction: %w", err)
	}
	return nil
}

// copyRows inserts every row of table from src into tx, ignoring conflicts,
// and returns the number of rows actually added.
func copyRows(tx *sql.Tx, src *sql.DB, table, columns string) (int, error) {
	rows, err := src.Query(fmt.Sprintf("SELECT %s FROM %s ORDER BY rowid", columns, table))
	if err != nil {
		return 0, err
	}
	defer rows.Close()

	cols, err := rows.Columns()
	if err != nil {
		return 0, err
	}
	placeholders := "?"
	for range cols[1:] {
		placeholders += ", ?"
	}
	stmt, err := tx.Prepare(fmt.Sprintf("INSERT OR IGNORE INTO %s (%s) VALUES (%s)", table, columns, placeholders))
	if err != nil {
		return 0, err
	}
	defer stmt.Close()

	values := make([]any, len(cols))
	ptrs := make([]any, len(cols))
	for i := range values {
		ptrs[i] = &values[i]
	}

	count := 0
	for rows.Next() {
		if err := rows.Scan(ptrs...); err != nil {
			return count, err
		}
		result, err := stmt.Exec(values...)
		if err != nil {
			return count, err
		}
		if affected, _ := result.RowsAffected(); affected > 0 {
			count++
		}
	}
	return count, rows.Err()
}

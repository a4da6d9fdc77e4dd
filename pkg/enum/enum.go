// Package enum discovers the blobs a scan should cover.
package enum

import (
	"context"

	"github.com/praetorian-inc/perscan/pkg/types"
)

// Callback receives one blob: its content, its ID and the path it was read
// from. Returning an error stops the enumeration.
type Callback func(content []byte, blobID types.BlobID, path string) error

// Enumerator discovers content to scan from a source.
type Enumerator interface {
	Enumerate(ctx context.Context, callback Callback) error
}

// Config for enumeration.
type Config struct {
	// Root is a directory to walk or a single file.
	Root string

	// IncludeHidden includes hidden files and directories (starting with .).
	IncludeHidden bool

	// IncludeBinary includes files with a NUL byte in their first 8 KiB.
	IncludeBinary bool

	// MaxFileSize is the maximum file size to process (0 = no limit).
	MaxFileSize int64

	// FollowSymlinks follows symbolic links to files.
	FollowSymlinks bool

	// Workers is the number of parallel readers (0 = one per CPU).
	Workers int
}

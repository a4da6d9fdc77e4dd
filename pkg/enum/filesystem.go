package enum

import (
	"bytes"
	"context"
	"fmt"
	"io/fs"
	"os"
	"path/filepath"
	"runtime"
	"strings"

	gitignore "github.com/sabhiram/go-gitignore"
	"golang.org/x/sync/errgroup"

	"github.com/praetorian-inc/perscan/pkg/types"
)

// binarySniffLen is how much of a file isBinary looks at.
const binarySniffLen = 8192

// FilesystemEnumerator enumerates files below a root.
type FilesystemEnumerator struct {
	config Config
}

// NewFilesystemEnumerator creates a new filesystem enumerator.
func NewFilesystemEnumerator(config Config) *FilesystemEnumerator {
	return &FilesystemEnumerator{config: config}
}

// Paths walks the root and returns the eligible files in walk order. The
// content filters (binary detection) are not applied here since they need
// the file's bytes.
func (e *FilesystemEnumerator) Paths(ctx context.Context) ([]string, error) {
	root := e.config.Root
	info, err := os.Stat(root)
	if err != nil {
		return nil, err
	}
	if !info.IsDir() {
		if e.tooLarge(info.Size()) {
			return nil, nil
		}
		return []string{root}, nil
	}

	var ignore *gitignore.GitIgnore
	if ig, err := gitignore.CompileIgnoreFile(filepath.Join(root, ".gitignore")); err == nil {
		ignore = ig
	}

	var files []string
	err = filepath.WalkDir(root, func(path string, d fs.DirEntry, err error) error {
		if err != nil {
			return err
		}
		if err := ctx.Err(); err != nil {
			return err
		}

		hidden := path != root && !e.config.IncludeHidden && isHidden(d.Name())
		if d.IsDir() {
			if hidden {
				return filepath.SkipDir
			}
			return nil
		}
		if hidden {
			return nil
		}

		if d.Type()&fs.ModeSymlink != 0 {
			if !e.config.FollowSymlinks {
				return nil
			}
			target, err := os.Stat(path)
			if err != nil || !target.Mode().IsRegular() {
				return nil
			}
		} else if !d.Type().IsRegular() {
			return nil
		}

		info, err := os.Stat(path)
		if err != nil {
			return err
		}
		if e.tooLarge(info.Size()) {
			return nil
		}

		if ignore != nil {
			rel, err := filepath.Rel(root, path)
			if err != nil {
				return err
			}
			if ignore.MatchesPath(filepath.ToSlash(rel)) {
				return nil
			}
		}

		files = append(files, path)
		return nil
	})
	if err != nil {
		return nil, err
	}
	return files, nil
}

func (e *FilesystemEnumerator) tooLarge(size int64) bool {
	return e.config.MaxFileSize > 0 && size > e.config.MaxFileSize
}

// Enumerate walks the root, then reads the files in parallel and passes each
// to callback. callback may be invoked concurrently.
func (e *FilesystemEnumerator) Enumerate(ctx context.Context, callback Callback) error {
	files, err := e.Paths(ctx)
	if err != nil {
		return err
	}

	workers := e.config.Workers
	if workers <= 0 {
		workers = runtime.NumCPU()
	}

	origCtx := ctx
	g, ctx := errgroup.WithContext(ctx)
	pathsCh := make(chan string, workers*2)

	g.Go(func() error {
		defer close(pathsCh)
		for _, f := range files {
			select {
			case pathsCh <- f:
			case <-ctx.Done():
				return ctx.Err()
			}
		}
		return nil
	})

	for i := 0; i < workers; i++ {
		g.Go(func() error {
			for path := range pathsCh {
				if err := e.processFile(ctx, path, callback); err != nil {
					return err
				}
			}
			return nil
		})
	}

	if err := g.Wait(); err != nil {
		return err
	}
	// The readers may all finish before noticing a cancellation.
	return origCtx.Err()
}

func (e *FilesystemEnumerator) processFile(ctx context.Context, path string, callback Callback) error {
	if err := ctx.Err(); err != nil {
		return err
	}

	content, err := os.ReadFile(path)
	if err != nil {
		return fmt.Errorf("failed to read file %s: %w", path, err)
	}
	if !e.config.IncludeBinary && isBinary(content) {
		return nil
	}
	return callback(content, types.ComputeBlobID(content), path)
}

// isHidden reports whether a file name starts with a dot. "." and ".." are
// not hidden.
func isHidden(name string) bool {
	if name == "." || name == ".." {
		return false
	}
	return strings.HasPrefix(name, ".")
}

// isBinary reports whether the start of content has a NUL byte.
func isBinary(content []byte) bool {
	return bytes.IndexByte(content[:min(len(content), binarySniffLen)], 0) != -1
}

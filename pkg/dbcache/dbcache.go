// Package dbcache keeps serialized Hyperscan databases on disk so that a pattern
// set is compiled once per engine version rather than once per process.
package dbcache

import (
	"fmt"
	"os"
	"path/filepath"
	"sync/atomic"

	"github.com/rs/zerolog"

	"github.com/praetorian-inc/perscan/pkg/hyperscan"
	"github.com/praetorian-inc/perscan/pkg/patterns"
)

// Filesystem is what the cache needs from the storage it persists to.
type Filesystem interface {
	ReadFile(name string) ([]byte, error)
	WriteFile(name string, data []byte) error
	MkdirAll(dir string) error
}

// Cache loads databases from Dir, compiling and storing them on a miss.
// Entries are keyed by the set's fingerprint for the mode; an entry written by
// a different engine version fails to load and is recompiled.
type Cache struct {
	dir    string
	fs     Filesystem
	logger zerolog.Logger

	hits   atomic.Int64
	misses atomic.Int64
}

// Option configures a Cache.
type Option func(*Cache)

// WithFilesystem replaces the OS filesystem.
func WithFilesystem(fs Filesystem) Option {
	return func(c *Cache) { c.fs = fs }
}

// WithLogger sets the logger for cache misses and write failures.
func WithLogger(logger zerolog.Logger) Option {
	return func(c *Cache) { c.logger = logger }
}

// New creates a cache rooted at dir.
func New(dir string, opts ...Option) *Cache {
	c := &Cache{dir: dir, fs: OSFilesystem{}, logger: zerolog.Nop()}
	for _, opt := range opts {
		opt(c)
	}
	return c
}

// DefaultDir returns the per-user cache directory for perscan databases.
func DefaultDir() (string, error) {
	base, err := os.UserCacheDir()
	if err != nil {
		return "", fmt.Errorf("failed to locate user cache directory: %w", err)
	}
	return filepath.Join(base, "perscan", "databases"), nil
}

// Stats reports the number of cache hits and misses so far.
func (c *Cache) Stats() (hits, misses int64) {
	return c.hits.Load(), c.misses.Load()
}

// Path returns the file an entry for set in mode is stored at.
func (c *Cache) Path(set *patterns.Set, mode hyperscan.Mode) string {
	return filepath.Join(c.dir, set.Fingerprint(mode)+".hsdb")
}

// BlockDatabase returns a block database for set.
func (c *Cache) BlockDatabase(set *patterns.Set) (*hyperscan.BlockDatabase, error) {
	return load(c, set, hyperscan.BlockMode, hyperscan.UnmarshalBlockDatabase, hyperscan.NewBlockDatabase)
}

// VectoredDatabase returns a vectored database for set.
func (c *Cache) VectoredDatabase(set *patterns.Set) (*hyperscan.VectoredDatabase, error) {
	return load(c, set, hyperscan.VectoredMode, hyperscan.UnmarshalVectoredDatabase, hyperscan.NewVectoredDatabase)
}

// StreamDatabase returns a stream database for set.
func (c *Cache) StreamDatabase(set *patterns.Set) (*hyperscan.StreamDatabase, error) {
	return load(c, set, hyperscan.StreamMode|hyperscan.SomHorizonLarge, hyperscan.UnmarshalStreamDatabase, hyperscan.NewStreamDatabase)
}

func load[D hyperscan.Database](
	c *Cache,
	set *patterns.Set,
	mode hyperscan.Mode,
	unmarshal func([]byte) (D, error),
	compile func(...hyperscan.Pattern) (D, error),
) (D, error) {
	path := c.Path(set, mode)
	log := c.logger.With().Str("path", path).Stringer("mode", mode).Logger()

	if data, err := c.fs.ReadFile(path); err == nil {
		db, err := unmarshal(data)
		if err == nil {
			c.hits.Add(1)
			log.Debug().Msg("loaded database from cache")
			return db, nil
		}
		log.Warn().Err(err).Msg("discarding unusable cache entry")
	}
	c.misses.Add(1)

	db, err := compile(set.Patterns()...)
	if err != nil {
		var zero D
		return zero, err
	}

	if err := c.store(path, db); err != nil {
		log.Warn().Err(err).Msg("failed to write cache entry")
	} else {
		log.Debug().Msg("stored database in cache")
	}
	return db, nil
}

func (c *Cache) store(path string, db hyperscan.Database) error {
	data, err := hyperscan.Marshal(db)
	if err != nil {
		return err
	}
	if err := c.fs.MkdirAll(filepath.Dir(path)); err != nil {
		return err
	}
	return c.fs.WriteFile(path, data)
}

// OSFilesystem stores entries on the local disk. Writes go through a temporary
// file and a rename so readers never see a partial entry.
type OSFilesystem struct{}

func (OSFilesystem) ReadFile(name string) ([]byte, error) {
	return os.ReadFile(name)
}

func (OSFilesystem) WriteFile(name string, data []byte) error {
	tmp, err := os.CreateTemp(filepath.Dir(name), filepath.Base(name)+".tmp-*")
	if err != nil {
		return err
	}
	defer os.Remove(tmp.Name())

	if _, err := tmp.Write(data); err != nil {
		tmp.Close()
		return err
	}
	if err := tmp.Close(); err != nil {
		return err
	}
	return os.Rename(tmp.Name(), name)
}

func (OSFilesystem) MkdirAll(dir string) error {
	return os.MkdirAll(dir, 0o755)
}

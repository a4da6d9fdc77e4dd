package matcher

import (
	"runtime"
	"time"

	"github.com/rs/zerolog"

	"github.com/praetorian-inc/perscan/pkg/dbcache"
)

// DefaultChunkSize is the read size MatchReader uses when none is given.
const DefaultChunkSize = 64 * 1024

// defaultCaptureTimeout bounds a single capture-group extraction.
const defaultCaptureTimeout = 5 * time.Second

type config struct {
	logger         zerolog.Logger
	maxMatches     int
	captures       bool
	captureTimeout time.Duration
	dedup          DedupeMode
	contextLines   int
	cache          *dbcache.Cache
	workers        int
}

func defaultConfig() config {
	return config{
		logger:         zerolog.Nop(),
		captureTimeout: defaultCaptureTimeout,
		dedup:          DedupeByLocation,
		workers:        runtime.NumCPU(),
	}
}

// Option configures a Matcher.
type Option func(*config)

// WithLogger sets the logger. The default discards everything.
func WithLogger(logger zerolog.Logger) Option {
	return func(c *config) { c.logger = logger }
}

// WithMaxMatches stops a scan after n matches. Zero means unlimited.
func WithMaxMatches(n int) Option {
	return func(c *config) {
		if n > 0 {
			c.maxMatches = n
		}
	}
}

// WithCaptures extracts capture groups for every match. Patterns compiled
// without SomLeftMost get their start offset recovered from the regex.
func WithCaptures() Option {
	return func(c *config) { c.captures = true }
}

// WithCaptureTimeout bounds the regex work for one capture extraction.
func WithCaptureTimeout(d time.Duration) Option {
	return func(c *config) {
		if d > 0 {
			c.captureTimeout = d
		}
	}
}

// WithDedup selects how repeated matches within one blob are collapsed.
func WithDedup(mode DedupeMode) Option {
	return func(c *config) { c.dedup = mode }
}

// WithContextLines attaches up to n lines before and after each match.
func WithContextLines(n int) Option {
	return func(c *config) {
		if n > 0 {
			c.contextLines = n
		}
	}
}

// WithCache loads compiled databases through cache instead of compiling them.
func WithCache(cache *dbcache.Cache) Option {
	return func(c *config) { c.cache = cache }
}

// WithWorkers limits the goroutines MatchAll uses.
func WithWorkers(n int) Option {
	return func(c *config) {
		if n > 0 {
			c.workers = n
		}
	}
}

// Package matcher scans content against a pattern set and turns raw engine
// callbacks into located, tagged matches. A Matcher is safe for concurrent use.
package matcher

import (
	"bytes"
	"context"
	"errors"
	"fmt"
	"io"
	"sync"
	"sync/atomic"

	"golang.org/x/sync/errgroup"

	"github.com/praetorian-inc/perscan/pkg/hyperscan"
	"github.com/praetorian-inc/perscan/pkg/patterns"
	"github.com/praetorian-inc/perscan/pkg/types"
)

var (
	// ErrNoPatterns is returned by New for an empty or nil set.
	ErrNoPatterns = errors.New("matcher: no patterns")

	errNoCaptures = errors.New("no capture expression for pattern")
)

// hit is one engine callback.
type hit struct {
	id       uint
	from, to uint64
}

// collector gathers hits for one scan.
type collector struct {
	hits []hit
	max  int
	done <-chan struct{}
}

func (c *collector) reset(maxMatches int, done <-chan struct{}) {
	c.hits = c.hits[:0]
	c.max = maxMatches
	c.done = done
}

func collect(c *collector, id uint, from, to uint64) (hyperscan.Scan, error) {
	if c.done != nil {
		select {
		case <-c.done:
			return hyperscan.Terminate, nil
		default:
		}
	}
	c.hits = append(c.hits, hit{id: id, from: from, to: to})
	if c.max > 0 && len(c.hits) >= c.max {
		return hyperscan.Terminate, nil
	}
	return hyperscan.Continue, nil
}

type blockScanner = hyperscan.BlockScanner[collector]

// Matcher owns the compiled databases for one pattern set.
type Matcher struct {
	set *patterns.Set
	cfg config

	block *hyperscan.BlockDatabase

	// proto is never used for scanning; pooled scanners are cloned from it.
	protoMu sync.Mutex
	proto   *blockScanner
	pool    sync.Pool

	streamOnce sync.Once
	stream     *hyperscan.StreamDatabase
	streamErr  error

	vectorOnce sync.Once
	vector     *hyperscan.VectoredDatabase
	vectorErr  error

	// som records the patterns whose start offsets are exact.
	som      map[uint]bool
	captures *extractor
	closed   atomic.Bool
}

// New compiles set for block scanning. Stream and vectored databases are
// compiled on first use.
func New(set *patterns.Set, opts ...Option) (*Matcher, error) {
	if set == nil || set.Len() == 0 {
		return nil, ErrNoPatterns
	}
	cfg := defaultConfig()
	for _, opt := range opts {
		opt(&cfg)
	}

	m := &Matcher{set: set, cfg: cfg, som: make(map[uint]bool, set.Len())}
	for _, p := range set.Patterns() {
		m.som[p.ID] = p.Flags.Has(hyperscan.SomLeftMost)
	}

	var err error
	if cfg.cache != nil {
		m.block, err = cfg.cache.BlockDatabase(set)
	} else {
		m.block, err = hyperscan.NewBlockDatabase(set.Patterns()...)
	}
	if err != nil {
		return nil, fmt.Errorf("failed to compile patterns: %w", err)
	}

	m.proto, err = hyperscan.NewBlockScanner(m.block, hyperscan.NewContext(collector{}, collect))
	if err != nil {
		m.block.Close()
		return nil, fmt.Errorf("failed to allocate scratch: %w", err)
	}

	if cfg.captures {
		m.captures = newExtractor(set, cfg.captureTimeout, cfg.logger)
	}

	if size, err := m.block.Size(); err == nil {
		cfg.logger.Debug().Int("patterns", set.Len()).Int("bytes", size).Msg("compiled block database")
	}
	return m, nil
}

// Patterns returns the set the matcher was built from.
func (m *Matcher) Patterns() *patterns.Set { return m.set }

func (m *Matcher) acquire() (*blockScanner, error) {
	if s, ok := m.pool.Get().(*blockScanner); ok {
		return s, nil
	}
	m.protoMu.Lock()
	defer m.protoMu.Unlock()
	if m.closed.Load() {
		return nil, hyperscan.ErrClosed
	}
	return m.proto.Clone(hyperscan.NewContext(collector{}, collect))
}

func (m *Matcher) release(s *blockScanner) {
	if m.closed.Load() {
		s.Close()
		return
	}
	m.pool.Put(s)
}

// Match scans content and returns its matches.
func (m *Matcher) Match(content []byte) ([]*types.Match, error) {
	return m.MatchWithBlobID(content, types.ComputeBlobID(content))
}

// MatchWithBlobID scans content whose blob ID the caller already knows.
func (m *Matcher) MatchWithBlobID(content []byte, blobID types.BlobID) ([]*types.Match, error) {
	return m.match(content, blobID, nil)
}

func (m *Matcher) match(content []byte, blobID types.BlobID, done <-chan struct{}) ([]*types.Match, error) {
	if m.closed.Load() {
		return nil, hyperscan.ErrClosed
	}
	s, err := m.acquire()
	if err != nil {
		return nil, err
	}
	defer m.release(s)

	c := s.Context().UserData()
	c.reset(m.cfg.maxMatches, done)
	if _, err := s.Scan(content); err != nil {
		return nil, fmt.Errorf("block scan failed: %w", err)
	}
	return m.buildMatches(content, blobID, c.hits), nil
}

// MatchAll scans each of contents concurrently. results[i] holds the matches
// of contents[i]. The first failure cancels the remaining scans.
func (m *Matcher) MatchAll(ctx context.Context, contents [][]byte) ([][]*types.Match, error) {
	results := make([][]*types.Match, len(contents))
	g, gctx := errgroup.WithContext(ctx)
	g.SetLimit(m.cfg.workers)
	for i, content := range contents {
		i, content := i, content
		g.Go(func() error {
			if err := gctx.Err(); err != nil {
				return err
			}
			matches, err := m.match(content, types.ComputeBlobID(content), gctx.Done())
			if err != nil {
				return fmt.Errorf("content %d: %w", i, err)
			}
			results[i] = matches
			return nil
		})
	}
	if err := g.Wait(); err != nil {
		return nil, err
	}
	if err := ctx.Err(); err != nil {
		return nil, err
	}
	return results, nil
}

// MatchVector scans parts as one logical input. Offsets are relative to the
// concatenation of parts.
func (m *Matcher) MatchVector(parts [][]byte) ([]*types.Match, error) {
	db, err := m.vectoredDatabase()
	if err != nil {
		return nil, err
	}
	ctx := hyperscan.NewContext(collector{max: m.cfg.maxMatches}, collect)
	s, err := hyperscan.NewVectoredScanner(db, ctx)
	if err != nil {
		return nil, fmt.Errorf("failed to allocate scratch: %w", err)
	}
	defer s.Close()

	if _, err := s.Scan(parts); err != nil {
		return nil, fmt.Errorf("vectored scan failed: %w", err)
	}
	content := bytes.Join(parts, nil)
	return m.buildMatches(content, types.ComputeBlobID(content), ctx.UserData().hits), nil
}

// MatchReader streams r through the engine chunkSize bytes at a time. Content
// is not retained, so matches carry offsets, pattern and tag only. Cancelling
// ctx stops the scan at the next callback or chunk and MatchReader returns
// ctx.Err().
func (m *Matcher) MatchReader(ctx context.Context, r io.Reader, chunkSize int) ([]*types.Match, error) {
	if chunkSize <= 0 {
		chunkSize = DefaultChunkSize
	}
	db, err := m.streamDatabase()
	if err != nil {
		return nil, err
	}
	hctx := hyperscan.NewContext(collector{max: m.cfg.maxMatches, done: ctx.Done()}, collect)
	s, err := hyperscan.NewStreamScanner(db, hctx)
	if err != nil {
		return nil, fmt.Errorf("failed to open stream: %w", err)
	}
	defer s.Close()

	buf := make([]byte, chunkSize)
	var total uint64
	outcome := hyperscan.Continue
	for outcome == hyperscan.Continue {
		if err := ctx.Err(); err != nil {
			return nil, err
		}
		n, rerr := r.Read(buf)
		if n > 0 {
			if outcome, err = s.Scan(buf[:n]); err != nil {
				return nil, fmt.Errorf("stream scan at offset %d failed: %w", total, err)
			}
			total += uint64(n)
		}
		if errors.Is(rerr, io.EOF) {
			break
		}
		if rerr != nil {
			return nil, fmt.Errorf("failed to read input: %w", rerr)
		}
	}
	if err := ctx.Err(); err != nil {
		return nil, err
	}
	if outcome == hyperscan.Continue {
		if _, err := s.Reset(); err != nil {
			return nil, fmt.Errorf("failed to flush stream: %w", err)
		}
	}

	m.cfg.logger.Debug().Uint64("bytes", total).Int("hits", len(hctx.UserData().hits)).Msg("stream scan finished")
	return m.buildMatches(nil, types.BlobID{}, hctx.UserData().hits), nil
}

func (m *Matcher) streamDatabase() (*hyperscan.StreamDatabase, error) {
	if m.closed.Load() {
		return nil, hyperscan.ErrClosed
	}
	m.streamOnce.Do(func() {
		if m.cfg.cache != nil {
			m.stream, m.streamErr = m.cfg.cache.StreamDatabase(m.set)
		} else {
			m.stream, m.streamErr = hyperscan.NewStreamDatabase(m.set.Patterns()...)
		}
		if m.streamErr != nil {
			m.streamErr = fmt.Errorf("failed to compile stream database: %w", m.streamErr)
		}
	})
	if m.closed.Load() {
		return nil, hyperscan.ErrClosed
	}
	return m.stream, m.streamErr
}

func (m *Matcher) vectoredDatabase() (*hyperscan.VectoredDatabase, error) {
	if m.closed.Load() {
		return nil, hyperscan.ErrClosed
	}
	m.vectorOnce.Do(func() {
		if m.cfg.cache != nil {
			m.vector, m.vectorErr = m.cfg.cache.VectoredDatabase(m.set)
		} else {
			m.vector, m.vectorErr = hyperscan.NewVectoredDatabase(m.set.Patterns()...)
		}
		if m.vectorErr != nil {
			m.vectorErr = fmt.Errorf("failed to compile vectored database: %w", m.vectorErr)
		}
	})
	if m.closed.Load() {
		return nil, hyperscan.ErrClosed
	}
	return m.vector, m.vectorErr
}

// buildMatches converts hits to matches. content may be nil when the input
// was streamed.
func (m *Matcher) buildMatches(content []byte, blobID types.BlobID, hits []hit) []*types.Match {
	dedup := NewDeduplicator(m.cfg.dedup)
	matches := make([]*types.Match, 0, len(hits))
	for _, h := range hits {
		span := types.OffsetSpan{Start: h.from, End: h.to}
		match := &types.Match{
			BlobID:    blobID,
			PatternID: h.id,
			Tag:       m.set.Tag(h.id),
		}

		if content != nil && h.to <= uint64(len(content)) {
			exact := m.som[h.id]
			if m.captures != nil {
				c, err := m.captures.extract(content, h.id, h.from, h.to)
				switch {
				case err == nil:
					span.Start = c.start
					match.Groups = c.groups
					match.NamedGroups = c.named
					exact = true
				case !errors.Is(err, errNoCaptures):
					m.cfg.logger.Debug().Err(err).Uint("id", h.id).Msg("capture extraction failed")
				}
			}
			match.Location = types.Locate(content, span)
			// Without a known start the span runs from 0 and says nothing
			// about the matched text.
			if exact {
				match.Matching = bytes.Clone(content[span.Start:span.End])
				match.Before, match.After = ExtractContext(content, int(span.Start), int(span.End), m.cfg.contextLines)
			}
		} else {
			match.Location = types.Location{Offset: span}
		}

		match.StructuralID = match.ComputeStructuralID()
		if dedup.Seen(match) {
			continue
		}
		matches = append(matches, match)
	}
	return matches
}

// Close releases the databases. Calls in flight finish normally; later calls
// fail with hyperscan.ErrClosed.
func (m *Matcher) Close() error {
	if m.closed.Swap(true) {
		return nil
	}
	m.protoMu.Lock()
	m.proto.Close()
	m.protoMu.Unlock()

	m.block.Close()
	// Make sure the lazy compiles have settled before closing their results.
	m.streamOnce.Do(func() {})
	m.vectorOnce.Do(func() {})
	if m.stream != nil {
		m.stream.Close()
	}
	if m.vector != nil {
		m.vector.Close()
	}
	return nil
}

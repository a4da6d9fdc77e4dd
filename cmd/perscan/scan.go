package main

import (
	"context"
	"encoding/json"
	"fmt"
	"io"
	"os"
	"os/signal"
	"sync"
	"syscall"

	"github.com/rs/zerolog"
	"github.com/spf13/cobra"

	"github.com/praetorian-inc/perscan/pkg/dbcache"
	"github.com/praetorian-inc/perscan/pkg/enum"
	"github.com/praetorian-inc/perscan/pkg/hyperscan"
	"github.com/praetorian-inc/perscan/pkg/matcher"
	"github.com/praetorian-inc/perscan/pkg/store"
	"github.com/praetorian-inc/perscan/pkg/types"
)

var (
	scanSource        patternSource
	scanMode          string
	scanChunkSize     int
	scanMaxMatches    int
	scanCaptures      bool
	scanDedup         string
	scanContextLines  int
	scanOutputPath    string
	scanOutputFormat  string
	scanColor         string
	scanCacheDir      string
	scanMaxFileSize   int64
	scanIncludeHidden bool
	scanIncremental   bool
)

var scanCmd = &cobra.Command{
	Use:   "scan <target>",
	Short: "Scan a file or directory",
	Long: `Scan a file or every file under a directory with a pattern set.

Block mode reads each file whole and reports line and column positions.
Stream mode feeds files through the engine in chunks of --chunk-size bytes
and reports byte offsets only.`,
	Args: cobra.ExactArgs(1),
	RunE: runScan,
}

func init() {
	scanSource.bind(scanCmd.Flags())
	scanCmd.Flags().StringVar(&scanMode, "mode", "block", "Scan mode: block, stream")
	scanCmd.Flags().IntVar(&scanChunkSize, "chunk-size", matcher.DefaultChunkSize, "Bytes per chunk in stream mode")
	scanCmd.Flags().IntVar(&scanMaxMatches, "max-matches", 0, "Stop scanning a file after this many matches (0 = no limit)")
	scanCmd.Flags().BoolVar(&scanCaptures, "captures", false, "Extract capture groups of each match")
	scanCmd.Flags().StringVar(&scanDedup, "dedup", "location", "Duplicate suppression: location, content, none")
	scanCmd.Flags().IntVar(&scanContextLines, "context-lines", 3, "Lines of context before/after matches in block mode (0 to disable)")
	scanCmd.Flags().StringVar(&scanOutputPath, "output", "perscan.db", "Output database path (:memory: to keep results in memory)")
	scanCmd.Flags().StringVar(&scanOutputFormat, "format", "human", "Output format: human, json, sarif")
	scanCmd.Flags().StringVar(&scanColor, "color", "auto", "Colorize human output: auto, always, never")
	scanCmd.Flags().StringVar(&scanCacheDir, "cache-dir", "", "Directory for compiled databases (empty disables the cache)")
	scanCmd.Flags().Int64Var(&scanMaxFileSize, "max-file-size", 10*1024*1024, "Maximum file size to scan (bytes, 0 = no limit)")
	scanCmd.Flags().BoolVar(&scanIncludeHidden, "include-hidden", false, "Include hidden files and directories")
	scanCmd.Flags().BoolVar(&scanIncremental, "incremental", false, "Skip already-scanned blobs")
}

func runScan(cmd *cobra.Command, args []string) error {
	target := args[0]

	if _, err := os.Stat(target); err != nil {
		return fmt.Errorf("target does not exist: %s", target)
	}
	switch scanOutputFormat {
	case "human", "json", "sarif":
	default:
		return fmt.Errorf("unknown output format: %s", scanOutputFormat)
	}
	mode, err := hyperscan.ParseMode(scanMode)
	if err != nil {
		return err
	}
	if mode != hyperscan.BlockMode && mode != hyperscan.StreamMode {
		return fmt.Errorf("scan mode must be block or stream, got %s", scanMode)
	}
	dedup, ok := matcher.ParseDedupeMode(scanDedup)
	if !ok {
		return fmt.Errorf("unknown dedup mode: %s", scanDedup)
	}

	logger := newLogger(cmd.ErrOrStderr())

	set, err := scanSource.load()
	if err != nil {
		return fmt.Errorf("loading patterns: %w", err)
	}
	logger.Debug().Int("patterns", set.Len()).Msg("loaded patterns")

	opts := []matcher.Option{
		matcher.WithLogger(logger),
		matcher.WithMaxMatches(scanMaxMatches),
		matcher.WithDedup(dedup),
		matcher.WithContextLines(scanContextLines),
	}
	if scanCaptures {
		opts = append(opts, matcher.WithCaptures())
	}
	if scanCacheDir != "" {
		opts = append(opts, matcher.WithCache(dbcache.New(scanCacheDir, dbcache.WithLogger(logger))))
	}
	m, err := matcher.New(set, opts...)
	if err != nil {
		return fmt.Errorf("creating matcher: %w", err)
	}
	defer m.Close()

	s, err := store.New(store.Config{Path: scanOutputPath})
	if err != nil {
		return fmt.Errorf("creating store: %w", err)
	}
	defer s.Close()

	ctx, stop := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
	defer stop()

	run := &scanRun{matcher: m, store: s, logger: logger}
	enumerator := enum.NewFilesystemEnumerator(enum.Config{
		Root:          target,
		IncludeHidden: scanIncludeHidden,
		MaxFileSize:   scanMaxFileSize,
	})

	if mode == hyperscan.StreamMode {
		err = run.streamFiles(ctx, enumerator)
	} else {
		err = enumerator.Enumerate(ctx, run.scanBlob)
	}
	if err != nil {
		return fmt.Errorf("scanning: %w", err)
	}

	// Keep stdout pure JSON when encoding results.
	summary := cmd.OutOrStdout()
	if scanOutputFormat != "human" {
		summary = cmd.ErrOrStderr()
	}
	if scanIncremental {
		fmt.Fprintf(summary, "Scan complete: %d blobs, %d matches (%d blobs skipped)\n", run.blobs, run.matches, run.skipped)
	} else {
		fmt.Fprintf(summary, "Scan complete: %d blobs, %d matches\n", run.blobs, run.matches)
	}
	if scanOutputPath != store.MemoryPath {
		fmt.Fprintf(summary, "Results stored in: %s\n", scanOutputPath)
	}

	matches, err := s.GetAllMatches()
	if err != nil {
		return fmt.Errorf("retrieving matches: %w", err)
	}
	switch scanOutputFormat {
	case "json":
		encoder := json.NewEncoder(cmd.OutOrStdout())
		encoder.SetIndent("", "  ")
		return encoder.Encode(matches)
	case "sarif":
		return outputSARIF(cmd, set, matches)
	}
	return outputMatchesHuman(cmd.OutOrStdout(), matches, colorEnabled(scanColor))
}

// scanRun records the blobs of one scan. Its methods may be called from
// several enumeration workers at once.
type scanRun struct {
	matcher *matcher.Matcher
	store   store.Store
	logger  zerolog.Logger

	mu      sync.Mutex
	blobs   int
	matches int
	skipped int
}

func (r *scanRun) seen(blobID types.BlobID) (bool, error) {
	if !scanIncremental {
		return false, nil
	}
	exists, err := r.store.BlobExists(blobID)
	if err != nil {
		return false, fmt.Errorf("checking blob: %w", err)
	}
	if exists {
		r.mu.Lock()
		r.skipped++
		r.mu.Unlock()
	}
	return exists, nil
}

func (r *scanRun) scanBlob(content []byte, blobID types.BlobID, path string) error {
	if skip, err := r.seen(blobID); err != nil || skip {
		return err
	}
	matches, err := r.matcher.MatchWithBlobID(content, blobID)
	if err != nil {
		return fmt.Errorf("matching %s: %w", path, err)
	}
	return r.record(blobID, int64(len(content)), path, matches)
}

// streamFiles scans the enumerated files one at a time through the stream
// engine. Each file is hashed while it streams so matches still carry the
// blob ID a block scan would give them.
func (r *scanRun) streamFiles(ctx context.Context, e *enum.FilesystemEnumerator) error {
	paths, err := e.Paths(ctx)
	if err != nil {
		return err
	}
	for _, path := range paths {
		if err := r.streamFile(ctx, path); err != nil {
			return err
		}
	}
	return nil
}

func (r *scanRun) streamFile(ctx context.Context, path string) error {
	f, err := os.Open(path)
	if err != nil {
		return fmt.Errorf("failed to open file %s: %w", path, err)
	}
	defer f.Close()

	info, err := f.Stat()
	if err != nil {
		return fmt.Errorf("failed to stat file %s: %w", path, err)
	}
	h := types.NewBlobHash(info.Size())
	tee := io.TeeReader(f, h)

	matches, err := r.matcher.MatchReader(ctx, tee, scanChunkSize)
	if err != nil {
		return fmt.Errorf("matching %s: %w", path, err)
	}
	// A terminated scan leaves the tail unread.
	if _, err := io.Copy(io.Discard, tee); err != nil {
		return fmt.Errorf("failed to read file %s: %w", path, err)
	}
	blobID := types.SumBlobID(h)

	if skip, err := r.seen(blobID); err != nil || skip {
		return err
	}
	for _, m := range matches {
		m.BlobID = blobID
		m.StructuralID = m.ComputeStructuralID()
	}
	return r.record(blobID, info.Size(), path, matches)
}

func (r *scanRun) record(blobID types.BlobID, size int64, path string, matches []*types.Match) error {
	if err := r.store.AddBlob(blobID, size); err != nil {
		return fmt.Errorf("storing blob: %w", err)
	}
	if err := r.store.AddSource(blobID, path); err != nil {
		return fmt.Errorf("storing source: %w", err)
	}
	for _, m := range matches {
		m.Source = path
		if err := r.store.AddMatch(m); err != nil {
			return fmt.Errorf("storing match: %w", err)
		}
	}

	r.mu.Lock()
	r.blobs++
	r.matches += len(matches)
	r.mu.Unlock()

	r.logger.Debug().Str("path", path).Str("blob", blobID.Short()).Int("matches", len(matches)).Msg("scanned")
	return nil
}

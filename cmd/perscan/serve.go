package main

import (
	"context"
	"fmt"
	"os"
	"os/signal"
	"syscall"

	"github.com/spf13/cobra"

	"github.com/praetorian-inc/perscan/pkg/matcher"
	"github.com/praetorian-inc/perscan/pkg/serve"
)

var (
	serveSource     patternSource
	serveMatchLimit int
	serveCaptures   bool
)

var serveCmd = &cobra.Command{
	Use:   "serve",
	Short: "Run as a streaming server for embedding",
	Long: `Run perscan as a long-lived server that accepts requests on stdin and
writes responses to stdout, one JSON object per line.

Clients compile their own pattern databases, open scanners over them and
scan block, vectored or streamed input through the handles they get back.
A "match" request scans content with the pattern set given by the flags,
which is loaded once at startup.

The server exits when stdin closes, on a "close" request, or on SIGTERM.
Logs go to stderr.`,
	Args: cobra.NoArgs,
	RunE: runServe,
}

func init() {
	serveSource.bind(serveCmd.Flags())
	serveCmd.Flags().IntVar(&serveMatchLimit, "match-limit", serve.DefaultMatchLimit, "Maximum matches one scan request may buffer")
	serveCmd.Flags().BoolVar(&serveCaptures, "captures", false, "Extract capture groups for match requests")
	rootCmd.AddCommand(serveCmd)
}

func runServe(cmd *cobra.Command, args []string) error {
	logger := newLogger(cmd.ErrOrStderr())

	set, err := serveSource.load()
	if err != nil {
		return fmt.Errorf("loading patterns: %w", err)
	}
	opts := []matcher.Option{matcher.WithLogger(logger)}
	if serveCaptures {
		opts = append(opts, matcher.WithCaptures())
	}
	m, err := matcher.New(set, opts...)
	if err != nil {
		return fmt.Errorf("creating matcher: %w", err)
	}
	defer m.Close()

	ctx, stop := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
	defer stop()

	srv := serve.NewServer(cmd.InOrStdin(), cmd.OutOrStdout(),
		serve.WithLogger(logger),
		serve.WithMatcher(m),
		serve.WithMatchLimit(serveMatchLimit),
	)
	return srv.Run(ctx)
}

package main

import (
	"fmt"

	"github.com/spf13/cobra"

	"github.com/praetorian-inc/perscan/pkg/store"
)

var (
	mergeOutput string
)

var mergeCmd = &cobra.Command{
	Use:   "merge <source1.db> <source2.db> [source3.db...]",
	Short: "Merge multiple result databases",
	Long: `Merge multiple perscan result databases into a single output database.

This is useful for combining results from scans of different targets or
from scans run on different machines.

Blobs, sources and matches already present in the output are stored once.`,
	Args: cobra.MinimumNArgs(2),
	RunE: runMerge,
}

func init() {
	mergeCmd.Flags().StringVarP(&mergeOutput, "output", "o", "merged.db", "Output database path")
}

func runMerge(cmd *cobra.Command, args []string) error {
	stats, err := store.Merge(store.MergeConfig{
		SourcePaths: args,
		DestPath:    mergeOutput,
	})
	if err != nil {
		return fmt.Errorf("merge failed: %w", err)
	}

	fmt.Fprintf(cmd.OutOrStdout(), "Merge complete:\n")
	fmt.Fprintf(cmd.OutOrStdout(), "  Databases processed: %d\n", stats.SourcesProcessed)
	fmt.Fprintf(cmd.OutOrStdout(), "  Blobs merged: %d\n", stats.BlobsMerged)
	fmt.Fprintf(cmd.OutOrStdout(), "  Sources merged: %d\n", stats.SourcesMerged)
	fmt.Fprintf(cmd.OutOrStdout(), "  Matches merged: %d\n", stats.MatchesMerged)
	fmt.Fprintf(cmd.OutOrStdout(), "Output: %s\n", mergeOutput)

	return nil
}

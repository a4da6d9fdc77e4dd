package main

import (
	"fmt"
	"runtime"

	"github.com/spf13/cobra"

	"github.com/praetorian-inc/perscan/pkg/hyperscan"
)

var (
	version = "dev"
	commit  = "unknown"
)

var versionCmd = &cobra.Command{
	Use:   "version",
	Short: "Show version information",
	Long:  "Display the version of perscan, the linked Hyperscan library and whether this CPU can run it",
	RunE:  runVersion,
}

func runVersion(cmd *cobra.Command, args []string) error {
	out := cmd.OutOrStdout()
	fmt.Fprintf(out, "perscan v%s\n", version)
	fmt.Fprintf(out, "Commit: %s\n", commit)
	fmt.Fprintf(out, "Hyperscan: %s\n", hyperscan.Version())
	if err := hyperscan.ValidPlatform(); err != nil {
		fmt.Fprintf(out, "Platform: unsupported (%v)\n", err)
	} else {
		fmt.Fprintf(out, "Platform: supported\n")
	}
	fmt.Fprintf(out, "Go version: %s\n", runtime.Version())
	fmt.Fprintf(out, "OS/Arch: %s/%s\n", runtime.GOOS, runtime.GOARCH)
	return nil
}

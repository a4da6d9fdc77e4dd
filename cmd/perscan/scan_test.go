//go:build cgo

package main

import (
	"bytes"
	"encoding/json"
	"os"
	"path/filepath"
	"testing"

	"github.com/spf13/cobra"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/praetorian-inc/perscan/pkg/matcher"
	"github.com/praetorian-inc/perscan/pkg/sarif"
	"github.com/praetorian-inc/perscan/pkg/store"
	"github.com/praetorian-inc/perscan/pkg/types"
)

const scanContent = "user=admin\npassword=hunter2\n"

// resetScanFlags restores the scan flag defaults and points the scan at a
// single literal pattern.
func resetScanFlags() {
	scanSource = patternSource{literals: []string{"/hunter[0-9]/L"}}
	scanMode = "block"
	scanChunkSize = matcher.DefaultChunkSize
	scanMaxMatches = 0
	scanCaptures = false
	scanDedup = "location"
	scanContextLines = 0
	scanOutputPath = store.MemoryPath
	scanOutputFormat = "json"
	scanColor = "never"
	scanCacheDir = ""
	scanMaxFileSize = 10 * 1024 * 1024
	scanIncludeHidden = false
	scanIncremental = false
}

func scanTarget(t *testing.T) (dir string, file string) {
	t.Helper()
	dir = t.TempDir()
	file = filepath.Join(dir, "config.txt")
	require.NoError(t, os.WriteFile(file, []byte(scanContent), 0o644))
	return dir, file
}

func runScanJSON(t *testing.T, target string) []*types.Match {
	t.Helper()
	var out, errOut bytes.Buffer
	cmd := &cobra.Command{}
	cmd.SetOut(&out)
	cmd.SetErr(&errOut)

	require.NoError(t, runScan(cmd, []string{target}))
	assert.Contains(t, errOut.String(), "Scan complete")

	var matches []*types.Match
	require.NoError(t, json.Unmarshal(out.Bytes(), &matches))
	return matches
}

func TestRunScan_Block(t *testing.T) {
	resetScanFlags()
	dir, file := scanTarget(t)

	matches := runScanJSON(t, dir)
	require.Len(t, matches, 1)

	m := matches[0]
	assert.Equal(t, "0", m.Tag)
	assert.Equal(t, file, m.Source)
	assert.Equal(t, types.ComputeBlobID([]byte(scanContent)), m.BlobID)
	assert.Equal(t, types.OffsetSpan{Start: 20, End: 27}, m.Location.Offset)
	assert.Equal(t, types.SourcePoint{Line: 2, Column: 10}, m.Location.Source.Start)
	assert.Equal(t, []byte("hunter2"), m.Matching)
}

func TestRunScan_Stream(t *testing.T) {
	resetScanFlags()
	scanMode = "stream"
	scanChunkSize = 4
	_, file := scanTarget(t)

	matches := runScanJSON(t, file)
	require.Len(t, matches, 1)

	m := matches[0]
	assert.Equal(t, file, m.Source)
	assert.Equal(t, types.ComputeBlobID([]byte(scanContent)), m.BlobID, "streamed files are hashed as they are read")
	assert.Equal(t, types.OffsetSpan{Start: 20, End: 27}, m.Location.Offset)
	assert.Empty(t, m.Matching)

	blockID := (&types.Match{Tag: "0", BlobID: m.BlobID, Location: m.Location}).ComputeStructuralID()
	assert.Equal(t, blockID, m.StructuralID)
}

func TestRunScan_StreamMaxMatches(t *testing.T) {
	resetScanFlags()
	scanMode = "stream"
	scanMaxMatches = 1
	scanSource = patternSource{literals: []string{"/a/L"}}
	dir := t.TempDir()
	content := []byte("a a a a")
	require.NoError(t, os.WriteFile(filepath.Join(dir, "a.txt"), content, 0o644))

	matches := runScanJSON(t, dir)
	require.Len(t, matches, 1)
	assert.Equal(t, types.ComputeBlobID(content), matches[0].BlobID)
}

func TestRunScan_HumanOutput(t *testing.T) {
	resetScanFlags()
	scanOutputFormat = "human"
	dir, _ := scanTarget(t)

	var out bytes.Buffer
	cmd := &cobra.Command{}
	cmd.SetOut(&out)

	require.NoError(t, runScan(cmd, []string{dir}))
	output := out.String()
	assert.Contains(t, output, "Scan complete: 1 blobs, 1 matches")
	assert.Contains(t, output, "Match 1/1")
	assert.Contains(t, output, "config.txt:2:10")
	assert.Contains(t, output, "hunter2")
	assert.NotContains(t, output, "Results stored in", "in-memory results are not reported as stored")
}

func TestRunScan_SARIF(t *testing.T) {
	resetScanFlags()
	scanOutputFormat = "sarif"
	dir, file := scanTarget(t)

	var out, errOut bytes.Buffer
	cmd := &cobra.Command{}
	cmd.SetOut(&out)
	cmd.SetErr(&errOut)
	require.NoError(t, runScan(cmd, []string{dir}))
	assert.Contains(t, errOut.String(), "Scan complete")

	var report sarif.Report
	require.NoError(t, json.Unmarshal(out.Bytes(), &report))
	require.Len(t, report.Runs, 1)
	require.Len(t, report.Runs[0].Tool.Driver.Rules, 1)
	require.Len(t, report.Runs[0].Results, 1)

	result := report.Runs[0].Results[0]
	assert.Equal(t, "0", result.RuleID)
	assert.Equal(t, "file://"+filepath.ToSlash(file), result.Locations[0].PhysicalLocation.ArtifactLocation.URI)
	assert.Equal(t, 2, result.Locations[0].PhysicalLocation.Region.StartLine)
}

func TestRunScan_Incremental(t *testing.T) {
	resetScanFlags()
	scanOutputFormat = "human"
	scanIncremental = true
	dir, _ := scanTarget(t)
	scanOutputPath = filepath.Join(t.TempDir(), "scan.db")

	cmd := &cobra.Command{}
	var first bytes.Buffer
	cmd.SetOut(&first)
	require.NoError(t, runScan(cmd, []string{dir}))
	assert.Contains(t, first.String(), "(0 blobs skipped)")
	assert.Contains(t, first.String(), "Results stored in: "+scanOutputPath)

	var second bytes.Buffer
	cmd.SetOut(&second)
	require.NoError(t, runScan(cmd, []string{dir}))
	assert.Contains(t, second.String(), "0 blobs, 0 matches (1 blobs skipped)")
	assert.Contains(t, second.String(), "Match 1/1", "earlier results are still reported")
}

func TestRunScan_Cache(t *testing.T) {
	resetScanFlags()
	scanCacheDir = t.TempDir()
	dir, _ := scanTarget(t)

	require.Len(t, runScanJSON(t, dir), 1)
	entries, err := os.ReadDir(scanCacheDir)
	require.NoError(t, err)
	assert.Len(t, entries, 1)

	require.Len(t, runScanJSON(t, dir), 1)
}

func TestRunScan_InvalidArguments(t *testing.T) {
	dir, _ := scanTarget(t)
	tests := []struct {
		name   string
		target string
		setup  func()
		want   string
	}{
		{"missing target", "/nonexistent/path", func() {}, "target does not exist"},
		{"vectored mode", dir, func() { scanMode = "vectored" }, "block or stream"},
		{"unknown mode", dir, func() { scanMode = "sideways" }, "unknown mode"},
		{"unknown format", dir, func() { scanOutputFormat = "xml" }, "unknown output format"},
		{"unknown dedup", dir, func() { scanDedup = "sometimes" }, "unknown dedup mode"},
		{"bad pattern", dir, func() { scanSource = patternSource{literals: []string{"/a(/"}} }, "creating matcher"},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			resetScanFlags()
			tt.setup()
			cmd := &cobra.Command{}
			cmd.SetOut(&bytes.Buffer{})
			cmd.SetErr(&bytes.Buffer{})
			err := runScan(cmd, []string{tt.target})
			assert.ErrorContains(t, err, tt.want)
		})
	}
}

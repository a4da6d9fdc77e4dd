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
)

func TestRunPatternsList(t *testing.T) {
	var buf bytes.Buffer
	cmd := &cobra.Command{}
	cmd.SetOut(&buf)

	listSource = patternSource{}
	outputFormat = "table"

	err := runPatternsList(cmd, []string{})
	require.NoError(t, err)

	output := buf.String()
	assert.Contains(t, output, "ID")
	assert.Contains(t, output, "Tag")
	assert.Contains(t, output, "network.ipv4")
}

func TestRunPatternsListJSON(t *testing.T) {
	var buf bytes.Buffer
	cmd := &cobra.Command{}
	cmd.SetOut(&buf)

	listSource = patternSource{literals: []string{"/abc/iL", "9:/def/"}}
	outputFormat = "json"

	err := runPatternsList(cmd, []string{})
	require.NoError(t, err)

	var infos []patternInfo
	require.NoError(t, json.Unmarshal(buf.Bytes(), &infos))
	assert.Equal(t, []patternInfo{
		{ID: 0, Tag: "0", Expression: "abc", Flags: "Caseless|SomLeftMost"},
		{ID: 9, Tag: "9", Expression: "def", Flags: "None"},
	}, infos)
}

func TestRunPatternsListFilter(t *testing.T) {
	var buf bytes.Buffer
	cmd := &cobra.Command{}
	cmd.SetOut(&buf)

	listSource = patternSource{include: `^network\.`}
	outputFormat = "json"

	require.NoError(t, runPatternsList(cmd, []string{}))

	var infos []patternInfo
	require.NoError(t, json.Unmarshal(buf.Bytes(), &infos))
	require.NotEmpty(t, infos)
	for _, p := range infos {
		assert.Regexp(t, `^network\.`, p.Tag)
	}
}

func TestRunPatternsCheck(t *testing.T) {
	var buf bytes.Buffer
	cmd := &cobra.Command{}
	cmd.SetOut(&buf)

	checkSource = patternSource{}
	require.NoError(t, runPatternsCheck(cmd, []string{}))
	assert.Contains(t, buf.String(), "patterns ok")

	path := filepath.Join(t.TempDir(), "bad.yml")
	require.NoError(t, os.WriteFile(path, []byte(`patterns:
  - tag: bad.example
    expression: 'abc'
    examples: ['xyz']
`), 0o644))

	buf.Reset()
	checkSource = patternSource{path: path}
	err := runPatternsCheck(cmd, []string{})
	assert.ErrorContains(t, err, "1 of 1 patterns failed")
	assert.Contains(t, buf.String(), "FAIL bad.example")
}

func TestPatternSource_Errors(t *testing.T) {
	_, err := (&patternSource{path: "/nonexistent/patterns.yml"}).load()
	assert.Error(t, err)

	_, err = (&patternSource{literals: []string{"3:/a/", "3:/b/"}}).load()
	assert.ErrorContains(t, err, "duplicate id 3")

	_, err = (&patternSource{include: "("}).load()
	assert.ErrorContains(t, err, "filtering patterns")
}

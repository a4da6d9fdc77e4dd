//go:build cgo

package main

import (
	"bufio"
	"bytes"
	"encoding/json"
	"strings"
	"testing"

	"github.com/spf13/cobra"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/praetorian-inc/perscan/pkg/serve"
)

func TestServeCommand_Exists(t *testing.T) {
	cmd, _, err := rootCmd.Find([]string{"serve"})
	assert.NoError(t, err)
	assert.NotNil(t, cmd)
	assert.Equal(t, "serve", cmd.Name())
}

func TestServeCommand_Integration(t *testing.T) {
	serveSource = patternSource{literals: []string{"/secret=[a-z]{3}/L"}}
	serveMatchLimit = serve.DefaultMatchLimit
	serveCaptures = false

	requests := strings.Join([]string{
		`{"type":"match","payload":{"source":"req-1","content":"x secret=abc y"}}`,
		`{"type":"compile","payload":{"mode":"block","patterns":[{"expression":"y$"}]}}`,
		`{"type":"close"}`,
	}, "\n")

	out := &bytes.Buffer{}
	cmd := &cobra.Command{}
	cmd.SetIn(strings.NewReader(requests))
	cmd.SetOut(out)
	cmd.SetErr(&bytes.Buffer{})

	require.NoError(t, runServe(cmd, nil))

	var responses []serve.Response
	scanner := bufio.NewScanner(out)
	for scanner.Scan() {
		var resp serve.Response
		require.NoError(t, json.Unmarshal(scanner.Bytes(), &resp))
		responses = append(responses, resp)
	}
	require.Len(t, responses, 4)
	assert.Equal(t, serve.TypeReady, responses[0].Type)

	require.True(t, responses[1].Success, responses[1].Error)
	var results []serve.MatchResult
	require.NoError(t, json.Unmarshal(responses[1].Data, &results))
	require.Len(t, results, 1)
	require.Len(t, results[0].Matches, 1)
	assert.Equal(t, "req-1", results[0].Matches[0].Source)
	assert.Equal(t, []byte("secret=abc"), results[0].Matches[0].Matching)

	assert.True(t, responses[2].Success)
	assert.Equal(t, serve.TypeClose, responses[3].Type)
}

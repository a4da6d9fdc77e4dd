package main

import (
	"fmt"
	"io"
	"os"
	"sort"

	"github.com/fatih/color"
	"github.com/spf13/cobra"
	"golang.org/x/term"

	"github.com/praetorian-inc/perscan/pkg/patterns"
	"github.com/praetorian-inc/perscan/pkg/sarif"
	"github.com/praetorian-inc/perscan/pkg/types"
)

// styles holds the color formatters for human output.
type styles struct {
	heading  *color.Color
	id       *color.Color
	tag      *color.Color
	match    *color.Color
	context  *color.Color
	metadata *color.Color
}

func newStyles(enabled bool) *styles {
	s := &styles{
		heading:  color.New(color.Bold),
		id:       color.New(color.FgHiGreen),
		tag:      color.New(color.Bold, color.FgHiBlue),
		match:    color.New(color.FgYellow),
		context:  color.New(color.Faint),
		metadata: color.New(color.FgHiBlue),
	}
	if !enabled {
		for _, c := range []*color.Color{s.heading, s.id, s.tag, s.match, s.context, s.metadata} {
			c.DisableColor()
		}
	}
	return s
}

// colorEnabled resolves a --color value. auto colors only a terminal stdout
// when NO_COLOR is unset.
func colorEnabled(mode string) bool {
	switch mode {
	case "always":
		return true
	case "never":
		return false
	default:
		return term.IsTerminal(int(os.Stdout.Fd())) && os.Getenv("NO_COLOR") == ""
	}
}

func outputMatchesHuman(out io.Writer, matches []*types.Match, colored bool) error {
	if len(matches) == 0 {
		fmt.Fprintf(out, "\nNo matches.\n")
		return nil
	}
	s := newStyles(colored)

	sorted := append([]*types.Match(nil), matches...)
	sort.SliceStable(sorted, func(i, j int) bool {
		if sorted[i].Source != sorted[j].Source {
			return sorted[i].Source < sorted[j].Source
		}
		return sorted[i].Location.Offset.Start < sorted[j].Location.Offset.Start
	})

	for i, m := range sorted {
		fmt.Fprintf(out, "\n%s (%s %s)\n",
			s.heading.Sprintf("Match %d/%d", i+1, len(sorted)),
			s.heading.Sprint("id"),
			s.id.Sprint(shortID(m.StructuralID)))
		fmt.Fprintf(out, "%s %s %s\n",
			s.heading.Sprint("Pattern:"),
			s.tag.Sprint(m.Tag),
			s.metadata.Sprintf("(id %d)", m.PatternID))
		fmt.Fprintf(out, "%s %s\n", s.heading.Sprint("Location:"), s.metadata.Sprint(location(m)))

		for j, group := range m.Groups {
			fmt.Fprintf(out, "%s %s\n", s.heading.Sprintf("Group %d:", j+1), s.match.Sprint(string(group)))
		}
		for _, name := range sortedKeys(m.NamedGroups) {
			fmt.Fprintf(out, "%s %s\n", s.heading.Sprintf("Group %s:", name), s.match.Sprint(string(m.NamedGroups[name])))
		}

		if len(m.Matching) > 0 {
			fmt.Fprintf(out, "%s%s%s\n",
				s.context.Sprint(string(m.Before)),
				s.match.Sprint(string(m.Matching)),
				s.context.Sprint(string(m.After)))
		}
	}
	return nil
}

// location renders path:line:column when positions are known and the byte
// range otherwise.
func location(m *types.Match) string {
	path := m.Source
	if path == "" {
		path = m.BlobID.Short()
	}
	if p := m.Location.Source.Start; p.Line > 0 {
		return fmt.Sprintf("%s:%d:%d", path, p.Line, p.Column)
	}
	return fmt.Sprintf("%s bytes %d-%d", path, m.Location.Offset.Start, m.Location.Offset.End)
}

func shortID(id string) string {
	if len(id) > 12 {
		return id[:12]
	}
	return id
}

func sortedKeys(m map[string][]byte) []string {
	keys := make([]string, 0, len(m))
	for k := range m {
		keys = append(keys, k)
	}
	sort.Strings(keys)
	return keys
}

// outputSARIF writes matches as a SARIF log with one rule per pattern.
func outputSARIF(cmd *cobra.Command, set *patterns.Set, matches []*types.Match) error {
	report := sarif.NewReport(version)
	report.AddPatterns(set)
	for _, m := range matches {
		report.AddResult(m, m.Source)
	}

	data, err := report.ToJSON()
	if err != nil {
		return fmt.Errorf("serializing SARIF: %w", err)
	}
	if _, err := cmd.OutOrStdout().Write(append(data, '\n')); err != nil {
		return fmt.Errorf("writing SARIF output: %w", err)
	}
	return nil
}

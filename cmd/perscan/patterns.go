package main

import (
	"encoding/json"
	"fmt"
	"os"
	"text/tabwriter"

	"github.com/spf13/cobra"
	"github.com/spf13/pflag"

	"github.com/praetorian-inc/perscan/pkg/patterns"
)

// patternSource is the set of flags every command that compiles patterns
// shares.
type patternSource struct {
	path     string
	literals []string
	include  string
	exclude  string
}

func (p *patternSource) bind(flags *pflag.FlagSet) {
	flags.StringVar(&p.path, "patterns", "", "Path to a pattern file or directory (default: built-in patterns)")
	flags.StringArrayVar(&p.literals, "pattern", nil, "Pattern literal as [id:]/expression/flags (repeatable)")
	flags.StringVar(&p.include, "patterns-include", "", "Include patterns whose tag matches a regex (comma-separated)")
	flags.StringVar(&p.exclude, "patterns-exclude", "", "Exclude patterns whose tag matches a regex (comma-separated)")
}

// load resolves the flags into one set. Literals are appended to the file
// patterns; with neither given the built-in set is used.
func (p *patternSource) load() (*patterns.Set, error) {
	var sets []*patterns.Set

	if p.path != "" {
		info, err := os.Stat(p.path)
		if err != nil {
			return nil, fmt.Errorf("pattern path: %w", err)
		}
		var set *patterns.Set
		if info.IsDir() {
			set, err = patterns.LoadDir(p.path)
		} else {
			set, err = patterns.LoadFile(p.path)
		}
		if err != nil {
			return nil, err
		}
		sets = append(sets, set)
	}
	if len(p.literals) > 0 {
		set, err := patterns.FromLiterals(p.literals...)
		if err != nil {
			return nil, err
		}
		sets = append(sets, set)
	}

	var set *patterns.Set
	var err error
	switch len(sets) {
	case 0:
		set, err = patterns.NewLoader().LoadBuiltin()
	case 1:
		set = sets[0]
	default:
		set, err = patterns.Merge(sets...)
	}
	if err != nil {
		return nil, err
	}

	if p.include != "" || p.exclude != "" {
		set, err = set.Filter(patterns.FilterConfig{
			Include: patterns.SplitList(p.include),
			Exclude: patterns.SplitList(p.exclude),
		})
		if err != nil {
			return nil, fmt.Errorf("filtering patterns: %w", err)
		}
	}
	return set, nil
}

var (
	listSource   patternSource
	checkSource  patternSource
	outputFormat string
)

var patternsCmd = &cobra.Command{
	Use:   "patterns",
	Short: "Manage pattern sets",
	Long:  "Commands for listing and checking pattern sets",
}

var patternsListCmd = &cobra.Command{
	Use:   "list",
	Short: "List patterns",
	Long:  "Display the patterns of a set with their IDs, tags and flags",
	Args:  cobra.NoArgs,
	RunE:  runPatternsList,
}

var patternsCheckCmd = &cobra.Command{
	Use:   "check",
	Short: "Check patterns against their examples",
	Long: `Compile every pattern on its own and run its examples through it.
Each example must match and no negative example may.`,
	Args: cobra.NoArgs,
	RunE: runPatternsCheck,
}

func init() {
	patternsCmd.AddCommand(patternsListCmd)
	patternsCmd.AddCommand(patternsCheckCmd)
	listSource.bind(patternsListCmd.Flags())
	patternsListCmd.Flags().StringVar(&outputFormat, "format", "table", "Output format: table, json")
	checkSource.bind(patternsCheckCmd.Flags())
}

// patternInfo is the JSON form of a listed pattern.
type patternInfo struct {
	ID          uint   `json:"id"`
	Tag         string `json:"tag"`
	Expression  string `json:"expression"`
	Flags       string `json:"flags"`
	Description string `json:"description,omitempty"`
}

func runPatternsList(cmd *cobra.Command, args []string) error {
	set, err := listSource.load()
	if err != nil {
		return fmt.Errorf("loading patterns: %w", err)
	}

	infos := make([]patternInfo, 0, set.Len())
	for _, e := range set.Entries() {
		infos = append(infos, patternInfo{
			ID:          *e.ID,
			Tag:         set.Tag(*e.ID),
			Expression:  e.Expression,
			Flags:       e.Flags.String(),
			Description: e.Description,
		})
	}

	switch outputFormat {
	case "json":
		encoder := json.NewEncoder(cmd.OutOrStdout())
		encoder.SetIndent("", "  ")
		return encoder.Encode(infos)
	case "table":
		return outputPatternsTable(cmd, infos)
	default:
		return fmt.Errorf("unknown output format: %s", outputFormat)
	}
}

func outputPatternsTable(cmd *cobra.Command, infos []patternInfo) error {
	w := tabwriter.NewWriter(cmd.OutOrStdout(), 0, 0, 2, ' ', 0)
	defer w.Flush()

	fmt.Fprintf(w, "ID\tTag\tFlags\tExpression\n")
	fmt.Fprintf(w, "--\t---\t-----\t----------\n")
	for _, p := range infos {
		fmt.Fprintf(w, "%d\t%s\t%s\t%s\n", p.ID, p.Tag, p.Flags, p.Expression)
	}
	return nil
}

func runPatternsCheck(cmd *cobra.Command, args []string) error {
	set, err := checkSource.load()
	if err != nil {
		return fmt.Errorf("loading patterns: %w", err)
	}

	problems := patterns.Check(set)
	for _, p := range problems {
		fmt.Fprintf(cmd.OutOrStdout(), "FAIL %s\n", p.Error())
	}
	if len(problems) > 0 {
		return fmt.Errorf("%d of %d patterns failed", len(problems), set.Len())
	}
	fmt.Fprintf(cmd.OutOrStdout(), "%d patterns ok\n", set.Len())
	return nil
}

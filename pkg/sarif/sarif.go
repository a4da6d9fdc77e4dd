// Package sarif renders scan results as a SARIF 2.1.0 log.
package sarif

import (
	"encoding/json"
	"path/filepath"
	"strings"

	"github.com/praetorian-inc/perscan/pkg/patterns"
	"github.com/praetorian-inc/perscan/pkg/types"
)

// SARIF 2.1.0 constants
const (
	SchemaURI = "https://raw.githubusercontent.com/oasis-tcs/sarif-spec/master/Schemata/sarif-schema-2.1.0.json"
	Version   = "2.1.0"
	ToolName  = "perscan"
)

// Report is the top-level SARIF log.
type Report struct {
	Schema  string `json:"$schema"`
	Version string `json:"version"`
	Runs    []Run  `json:"runs"`
}

// Run is a single invocation of the tool.
type Run struct {
	Tool    Tool     `json:"tool"`
	Results []Result `json:"results"`
}

// Tool describes the analysis tool.
type Tool struct {
	Driver Driver `json:"driver"`
}

// Driver carries the tool metadata and the rules, one per pattern.
type Driver struct {
	Name    string `json:"name"`
	Version string `json:"version"`
	Rules   []Rule `json:"rules,omitempty"`
}

// Rule describes one pattern.
type Rule struct {
	ID               string     `json:"id"`
	Name             string     `json:"name,omitempty"`
	ShortDescription Text       `json:"shortDescription"`
	Properties       Properties `json:"properties"`
}

// Properties holds the pattern itself.
type Properties struct {
	PatternID  uint   `json:"patternId"`
	Expression string `json:"expression"`
	Flags      string `json:"flags"`
}

// Text is a SARIF message string.
type Text struct {
	Text string `json:"text"`
}

// Result is one match.
type Result struct {
	RuleID              string            `json:"ruleId"`
	RuleIndex           int               `json:"ruleIndex"`
	Level               string            `json:"level"`
	Message             Text              `json:"message"`
	Locations           []Location        `json:"locations"`
	PartialFingerprints map[string]string `json:"partialFingerprints,omitempty"`
}

// Location is where a result was found.
type Location struct {
	PhysicalLocation PhysicalLocation `json:"physicalLocation"`
}

// PhysicalLocation names the artifact and the region inside it.
type PhysicalLocation struct {
	ArtifactLocation ArtifactLocation `json:"artifactLocation"`
	Region           Region           `json:"region"`
}

// ArtifactLocation identifies the file.
type ArtifactLocation struct {
	URI string `json:"uri"`
}

// Region is the matched range. Line and column fields are left out for
// matches found by a streaming scan, which only know byte offsets.
type Region struct {
	StartLine   int   `json:"startLine,omitempty"`
	StartColumn int   `json:"startColumn,omitempty"`
	EndLine     int   `json:"endLine,omitempty"`
	EndColumn   int   `json:"endColumn,omitempty"`
	ByteOffset  int64 `json:"byteOffset"`
	ByteLength  int64 `json:"byteLength"`
	Snippet     *Text `json:"snippet,omitempty"`
}

// NewReport creates a report for toolVersion with one empty run.
func NewReport(toolVersion string) *Report {
	return &Report{
		Schema:  SchemaURI,
		Version: Version,
		Runs: []Run{{
			Tool:    Tool{Driver: Driver{Name: ToolName, Version: toolVersion, Rules: []Rule{}}},
			Results: []Result{},
		}},
	}
}

// AddPatterns adds a rule for every pattern of set, keyed by tag.
func (r *Report) AddPatterns(set *patterns.Set) {
	for _, e := range set.Entries() {
		r.Runs[0].Tool.Driver.Rules = append(r.Runs[0].Tool.Driver.Rules, Rule{
			ID:               set.Tag(*e.ID),
			Name:             e.Tag,
			ShortDescription: Text{Text: e.Description},
			Properties: Properties{
				PatternID:  *e.ID,
				Expression: e.Expression,
				Flags:      e.Flags.String(),
			},
		})
	}
}

// AddResult adds a match found in the file at path. The match's tag must name
// a rule added before; otherwise ruleIndex is -1.
func (r *Report) AddResult(match *types.Match, path string) {
	region := Region{
		ByteOffset: int64(match.Location.Offset.Start),
		ByteLength: int64(match.Location.Offset.Len()),
	}
	if start := match.Location.Source.Start; start.Line > 0 {
		end := match.Location.Source.End
		region.StartLine, region.StartColumn = start.Line, start.Column
		region.EndLine, region.EndColumn = end.Line, end.Column
	}
	if len(match.Matching) > 0 {
		region.Snippet = &Text{Text: string(match.Matching)}
	}

	result := Result{
		RuleID:    match.Tag,
		RuleIndex: r.ruleIndex(match.Tag),
		Level:     "warning",
		Message:   Text{Text: "Pattern " + match.Tag + " matched"},
		Locations: []Location{{
			PhysicalLocation: PhysicalLocation{
				ArtifactLocation: ArtifactLocation{URI: formatFileURI(path)},
				Region:           region,
			},
		}},
	}
	if match.StructuralID != "" {
		result.PartialFingerprints = map[string]string{"structuralId/v1": match.StructuralID}
	}
	r.Runs[0].Results = append(r.Runs[0].Results, result)
}

func (r *Report) ruleIndex(id string) int {
	for i, rule := range r.Runs[0].Tool.Driver.Rules {
		if rule.ID == id {
			return i
		}
	}
	return -1
}

// ToJSON serializes the report.
func (r *Report) ToJSON() ([]byte, error) {
	return json.MarshalIndent(r, "", "  ")
}

// formatFileURI turns absolute paths into file:// URIs and leaves relative
// paths relative.
func formatFileURI(path string) string {
	if filepath.IsAbs(path) {
		path = filepath.ToSlash(path)
		if !strings.HasPrefix(path, "/") {
			path = "/" + path
		}
		return "file://" + path
	}
	return filepath.ToSlash(path)
}

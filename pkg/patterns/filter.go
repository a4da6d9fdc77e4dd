package patterns

import (
	"fmt"
	"regexp"
	"strings"
)

// FilterConfig selects patterns by tag.
type FilterConfig struct {
	Include []string // regexes; when non-empty only matching tags are kept
	Exclude []string // regexes; matching tags are dropped
}

// SplitList splits a comma-separated flag value, trimming blanks.
func SplitList(list string) []string {
	var out []string
	for _, part := range strings.Split(list, ",") {
		if trimmed := strings.TrimSpace(part); trimmed != "" {
			out = append(out, trimmed)
		}
	}
	return out
}

// Filter returns the patterns whose tag passes cfg. Include is applied before
// exclude. Untagged patterns are matched by their decimal ID. IDs are kept, so
// matches of a filtered set report the same IDs as the full set.
func (s *Set) Filter(cfg FilterConfig) (*Set, error) {
	include, err := compileAll(cfg.Include)
	if err != nil {
		return nil, err
	}
	exclude, err := compileAll(cfg.Exclude)
	if err != nil {
		return nil, err
	}

	var kept []Entry
	for i := range s.entries {
		tag := s.Tag(s.patterns[i].ID)
		if len(include) > 0 && !matchesAny(tag, include) {
			continue
		}
		if matchesAny(tag, exclude) {
			continue
		}
		kept = append(kept, s.entry(i))
	}
	return NewSet(kept)
}

func compileAll(exprs []string) ([]*regexp.Regexp, error) {
	out := make([]*regexp.Regexp, 0, len(exprs))
	for _, expr := range exprs {
		re, err := regexp.Compile(expr)
		if err != nil {
			return nil, fmt.Errorf("invalid filter %q: %w", expr, err)
		}
		out = append(out, re)
	}
	return out, nil
}

func matchesAny(s string, res []*regexp.Regexp) bool {
	for _, re := range res {
		if re.MatchString(s) {
			return true
		}
	}
	return false
}

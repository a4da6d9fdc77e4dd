package matcher

import (
	"fmt"
	"strconv"
	"time"
	"unicode/utf8"

	"github.com/dlclark/regexp2"
	"github.com/rs/zerolog"

	"github.com/praetorian-inc/perscan/pkg/hyperscan"
	"github.com/praetorian-inc/perscan/pkg/patterns"
)

// captureWindow is how far before a reported end the extractor looks for the
// start of a match when the pattern has no SomLeftMost.
const captureWindow = 4096

// capture is what the regex pass adds to a reported span.
type capture struct {
	start  uint64
	groups [][]byte
	named  map[string][]byte
}

// extractor re-runs a pattern's expression over a reported span to recover
// capture groups, and the start offset when the engine did not track it.
type extractor struct {
	res map[uint]*regexp2.Regexp
	som map[uint]bool
}

func newExtractor(set *patterns.Set, timeout time.Duration, logger zerolog.Logger) *extractor {
	x := &extractor{
		res: make(map[uint]*regexp2.Regexp, set.Len()),
		som: make(map[uint]bool, set.Len()),
	}
	for _, p := range set.Patterns() {
		re, err := regexp2.Compile(string(p.Expression), regexpOptions(p.Flags))
		if err != nil {
			// Hyperscan accepts constructs regexp2 does not; those patterns
			// still match, just without groups.
			logger.Debug().Err(err).Uint("id", p.ID).Msg("no capture support for pattern")
			continue
		}
		re.MatchTimeout = timeout
		x.res[p.ID] = re
		x.som[p.ID] = p.Flags.Has(hyperscan.SomLeftMost)
	}
	return x
}

func regexpOptions(f hyperscan.Flag) regexp2.RegexOptions {
	opts := regexp2.None
	if f.Has(hyperscan.Caseless) {
		opts |= regexp2.IgnoreCase
	}
	if f.Has(hyperscan.DotAll) {
		opts |= regexp2.Singleline
	}
	if f.Has(hyperscan.MultiLine) {
		opts |= regexp2.Multiline
	}
	return opts
}

// extract returns the groups for the match of pattern id reported at
// content[from:to]. When the start is not exact it picks the regex match whose
// end lies closest to to.
func (x *extractor) extract(content []byte, id uint, from, to uint64) (capture, error) {
	re, ok := x.res[id]
	if !ok {
		return capture{}, errNoCaptures
	}
	if to > uint64(len(content)) || from > to {
		return capture{}, fmt.Errorf("span [%d,%d) out of bounds for %d bytes", from, to, len(content))
	}

	base := from
	if !x.som[id] {
		base = uint64(0)
		if to > captureWindow {
			base = to - captureWindow
		}
	}
	window := content[base:to]
	runes := []rune(string(window))
	offsets := runeOffsets(window, len(runes))

	m, err := re.FindRunesMatch(runes)
	if err != nil {
		return capture{}, err
	}
	var best *regexp2.Match
	bestDistance := -1
	for m != nil {
		end := offsets[m.Index+m.Length]
		distance := len(window) - end
		if bestDistance < 0 || distance < bestDistance {
			best, bestDistance = m, distance
		}
		if distance == 0 {
			break
		}
		if m, err = re.FindNextMatch(m); err != nil {
			return capture{}, err
		}
	}
	if best == nil {
		return capture{}, fmt.Errorf("pattern %d did not match at [%d,%d)", id, from, to)
	}

	c := capture{start: base + uint64(offsets[best.Index])}
	for i, g := range best.Groups() {
		if i == 0 {
			continue
		}
		var value []byte
		if len(g.Captures) > 0 {
			value = window[offsets[g.Index]:offsets[g.Index+g.Length]]
			value = append([]byte{}, value...)
		}
		if _, err := strconv.Atoi(g.Name); err != nil {
			if c.named == nil {
				c.named = make(map[string][]byte)
			}
			c.named[g.Name] = value
		}
		c.groups = append(c.groups, value)
	}
	return c, nil
}

// runeOffsets maps rune indexes of data to byte offsets, including one past
// the last rune. Invalid bytes count as one rune each, as in []rune(string).
func runeOffsets(data []byte, n int) []int {
	offsets := make([]int, 0, n+1)
	for i := 0; i < len(data); {
		offsets = append(offsets, i)
		_, size := utf8.DecodeRune(data[i:])
		i += size
	}
	return append(offsets, len(data))
}

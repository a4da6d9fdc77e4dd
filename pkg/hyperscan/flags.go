package hyperscan

import (
	"fmt"
	"strings"
)

// Flag is a set of per-pattern compile options. Flags combine with |.
type Flag uint

// Pattern flags. The values are the engine's HS_FLAG_* bits.
const (
	Caseless    Flag = 1 << iota // HS_FLAG_CASELESS
	DotAll                       // HS_FLAG_DOTALL
	MultiLine                    // HS_FLAG_MULTILINE
	SingleMatch                  // HS_FLAG_SINGLEMATCH
	AllowEmpty                   // HS_FLAG_ALLOWEMPTY
	UTF8                         // HS_FLAG_UTF8
	UCP                          // HS_FLAG_UCP
	Prefilter                    // HS_FLAG_PREFILTER
	SomLeftMost                  // HS_FLAG_SOM_LEFTMOST
	Combination                  // HS_FLAG_COMBINATION
	Quiet                        // HS_FLAG_QUIET
)

var flagNames = []struct {
	flag Flag
	name string
}{
	{Caseless, "Caseless"},
	{DotAll, "DotAll"},
	{MultiLine, "MultiLine"},
	{SingleMatch, "SingleMatch"},
	{AllowEmpty, "AllowEmpty"},
	{UTF8, "UTF8"},
	{UCP, "UCP"},
	{Prefilter, "Prefilter"},
	{SomLeftMost, "SomLeftMost"},
	{Combination, "Combination"},
	{Quiet, "Quiet"},
}

// Has reports whether every bit of other is set in f.
func (f Flag) Has(other Flag) bool {
	return f&other == other
}

// String renders the set as "Caseless|DotAll". Unknown bits are shown in hex.
func (f Flag) String() string {
	if f == 0 {
		return "None"
	}
	var parts []string
	rest := f
	for _, fn := range flagNames {
		if f&fn.flag != 0 {
			parts = append(parts, fn.name)
			rest &^= fn.flag
		}
	}
	if rest != 0 {
		parts = append(parts, fmt.Sprintf("0x%x", uint(rest)))
	}
	return strings.Join(parts, "|")
}

// ParseFlag looks up a single flag by name. Matching ignores case, "_" and "-",
// so "som_leftmost", "SOM-LEFTMOST" and "SomLeftMost" are equivalent.
func ParseFlag(name string) (Flag, error) {
	key := normalizeFlagName(name)
	for _, fn := range flagNames {
		if normalizeFlagName(fn.name) == key {
			return fn.flag, nil
		}
	}
	return 0, fmt.Errorf("hyperscan: unknown flag %q", name)
}

// ParseFlags unions a list of flag names.
func ParseFlags(names []string) (Flag, error) {
	var flags Flag
	for _, name := range names {
		f, err := ParseFlag(name)
		if err != nil {
			return 0, err
		}
		flags |= f
	}
	return flags, nil
}

func normalizeFlagName(name string) string {
	name = strings.ToLower(name)
	name = strings.ReplaceAll(name, "_", "")
	return strings.ReplaceAll(name, "-", "")
}

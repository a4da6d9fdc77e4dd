package patterns

import (
	"fmt"
	"io/fs"
	"os"
	"path/filepath"
	"sort"
	"strconv"
	"strings"

	gohs "github.com/flier/gohs/hyperscan"
	"gopkg.in/yaml.v3"

	"github.com/praetorian-inc/perscan/pkg/hyperscan"
)

// Loader reads pattern sets from YAML.
type Loader struct {
	fs fs.FS // built-in pattern sets
}

// NewLoader creates a loader whose built-in sets come from the embedded files.
func NewLoader() *Loader {
	return &Loader{fs: builtinFS}
}

// NewLoaderWithFS creates a loader with a custom filesystem for built-in sets.
func NewLoaderWithFS(fsys fs.FS) *Loader {
	return &Loader{fs: fsys}
}

// Load parses a pattern-set document.
func Load(data []byte) (*Set, error) {
	entries, err := parse(data)
	if err != nil {
		return nil, err
	}
	return NewSet(entries)
}

// LoadFile parses a pattern-set file.
func LoadFile(path string) (*Set, error) {
	data, err := os.ReadFile(path)
	if err != nil {
		return nil, fmt.Errorf("failed to read file %s: %w", path, err)
	}
	set, err := Load(data)
	if err != nil {
		return nil, fmt.Errorf("%s: %w", path, err)
	}
	return set, nil
}

// LoadDir loads every .yml and .yaml file under dir, in lexical path order,
// into one set.
func LoadDir(dir string) (*Set, error) {
	return loadTree(os.DirFS(dir), ".", dir)
}

// LoadBuiltin loads the built-in pattern sets.
func (l *Loader) LoadBuiltin() (*Set, error) {
	return loadTree(l.fs, "builtin", "builtin")
}

func loadTree(fsys fs.FS, root, display string) (*Set, error) {
	var paths []string
	err := fs.WalkDir(fsys, root, func(path string, d fs.DirEntry, err error) error {
		if err != nil {
			return err
		}
		if d.IsDir() {
			return nil
		}
		switch filepath.Ext(path) {
		case ".yml", ".yaml":
			paths = append(paths, path)
		}
		return nil
	})
	if err != nil {
		return nil, fmt.Errorf("failed to walk %s: %w", display, err)
	}
	sort.Strings(paths)

	var entries []Entry
	for _, path := range paths {
		data, err := fs.ReadFile(fsys, path)
		if err != nil {
			return nil, fmt.Errorf("failed to read %s: %w", path, err)
		}
		parsed, err := parse(data)
		if err != nil {
			return nil, fmt.Errorf("%s: %w", path, err)
		}
		entries = append(entries, parsed...)
	}
	return NewSet(entries)
}

func parse(data []byte) ([]Entry, error) {
	var file yamlFile
	if err := yaml.Unmarshal(data, &file); err != nil {
		return nil, fmt.Errorf("failed to parse YAML: %w", err)
	}

	entries := make([]Entry, 0, len(file.Patterns))
	for i, yp := range file.Patterns {
		e, err := convertYAMLPattern(yp)
		if err != nil {
			return nil, fmt.Errorf("pattern %d: %w", i, err)
		}
		entries = append(entries, e)
	}
	return entries, nil
}

func convertYAMLPattern(yp yamlPattern) (Entry, error) {
	e := Entry{
		Expression:       yp.Expression,
		ID:               yp.ID,
		Tag:              yp.Tag,
		Description:      yp.Description,
		Examples:         yp.Examples,
		NegativeExamples: yp.NegativeExamples,
	}

	switch {
	case yp.Literal != "" && yp.Expression != "":
		return Entry{}, fmt.Errorf("expression and literal are mutually exclusive")
	case yp.Literal != "":
		lit, err := ParseLiteral(yp.Literal)
		if err != nil {
			return Entry{}, err
		}
		e.Expression, e.Flags = lit.Expression, lit.Flags
		if e.ID == nil {
			e.ID = lit.ID
		}
	case yp.Expression == "":
		return Entry{}, fmt.Errorf("expression is required")
	}

	flags, err := hyperscan.ParseFlags(yp.Flags)
	if err != nil {
		return Entry{}, err
	}
	e.Flags |= flags
	return e, nil
}

// ParseLiteral parses the compact "/expression/flags" form, optionally prefixed
// with a numeric ID as in "7:/foo.*bar/is". Flags are single letters: i
// (Caseless), s (DotAll), m (MultiLine), H (SingleMatch), V (AllowEmpty), 8
// (UTF8), W (UCP), P (Prefilter), L (SomLeftMost), C (Combination), Q (Quiet).
func ParseLiteral(s string) (Entry, error) {
	p, err := gohs.ParsePattern(s)
	if err != nil {
		return Entry{}, fmt.Errorf("invalid literal %q: %w", s, err)
	}
	e := Entry{
		Expression: string(p.Expression),
		Flags:      hyperscan.Flag(p.Flags),
	}
	if prefix, _, ok := strings.Cut(s, ":/"); ok && prefix != "" {
		if _, err := strconv.ParseUint(prefix, 10, 32); err == nil {
			id := uint(p.Id)
			e.ID = &id
		}
	}
	return e, nil
}

// FromLiterals builds a set from literals in the ParseLiteral form. Literals
// without an ID are numbered by position.
func FromLiterals(literals ...string) (*Set, error) {
	entries := make([]Entry, 0, len(literals))
	for _, lit := range literals {
		e, err := ParseLiteral(lit)
		if err != nil {
			return nil, err
		}
		entries = append(entries, e)
	}
	return NewSet(entries)
}

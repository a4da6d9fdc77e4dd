package patterns

import (
	"crypto/sha1"
	"encoding/binary"
	"encoding/hex"
	"fmt"
	"strconv"

	"github.com/praetorian-inc/perscan/pkg/hyperscan"
)

// Entry is one pattern of a set together with the metadata the engine does not
// carry.
type Entry struct {
	Expression       string
	Flags            hyperscan.Flag
	ID               *uint // nil: assigned from the entry's position in the set
	Tag              string
	Description      string
	Examples         []string
	NegativeExamples []string
}

// Set is an ordered collection of patterns with unique numeric IDs and the
// mapping from ID back to tag.
type Set struct {
	entries  []Entry // as given; ID nil when assigned by position
	patterns []hyperscan.Pattern
	byID     map[uint]int
}

// NewSet resolves IDs and validates the entries. An entry without an ID gets its
// index in entries. Duplicate IDs are rejected, as are expressions the engine
// cannot accept.
func NewSet(entries []Entry) (*Set, error) {
	s := &Set{
		entries:  make([]Entry, len(entries)),
		patterns: make([]hyperscan.Pattern, len(entries)),
		byID:     make(map[uint]int, len(entries)),
	}
	for i, e := range entries {
		id := uint(i)
		if e.ID != nil {
			id = *e.ID
		}
		if prev, ok := s.byID[id]; ok {
			return nil, fmt.Errorf("pattern %d (%s): duplicate id %d, already used by pattern %d", i, describe(e), id, prev)
		}
		p, err := hyperscan.NewPattern([]byte(e.Expression), e.Flags)
		if err != nil {
			return nil, fmt.Errorf("pattern %d (%s): %w", i, describe(e), err)
		}
		s.entries[i] = e
		s.patterns[i] = p.WithID(id)
		s.byID[id] = i
	}
	return s, nil
}

func describe(e Entry) string {
	if e.Tag != "" {
		return e.Tag
	}
	return strconv.Quote(e.Expression)
}

// Len returns the number of patterns.
func (s *Set) Len() int { return len(s.patterns) }

// Patterns returns the patterns ready for compilation, IDs resolved.
func (s *Set) Patterns() []hyperscan.Pattern {
	return append([]hyperscan.Pattern(nil), s.patterns...)
}

// Entries returns the entries in set order, IDs resolved.
func (s *Set) Entries() []Entry {
	out := make([]Entry, len(s.entries))
	for i := range s.entries {
		out[i] = s.entry(i)
	}
	return out
}

// Lookup returns the entry reported under id.
func (s *Set) Lookup(id uint) (Entry, bool) {
	i, ok := s.byID[id]
	if !ok {
		return Entry{}, false
	}
	return s.entry(i), true
}

func (s *Set) entry(i int) Entry {
	e := s.entries[i]
	id := s.patterns[i].ID
	e.ID = &id
	return e
}

// Tag returns the tag of the pattern with the given ID, or the decimal ID when
// the pattern has no tag.
func (s *Set) Tag(id uint) string {
	if e, ok := s.Lookup(id); ok && e.Tag != "" {
		return e.Tag
	}
	return strconv.FormatUint(uint64(id), 10)
}

// Fingerprint identifies the database that compiling the set for mode would
// produce. Tags and descriptions do not contribute.
func (s *Set) Fingerprint(mode hyperscan.Mode) string {
	h := sha1.New()
	var buf [8]byte
	put := func(v uint64) {
		binary.BigEndian.PutUint64(buf[:], v)
		h.Write(buf[:])
	}
	put(uint64(mode))
	put(uint64(len(s.patterns)))
	for _, p := range s.patterns {
		put(uint64(p.ID))
		put(uint64(p.Flags))
		put(uint64(len(p.Expression)))
		h.Write(p.Expression)
	}
	return hex.EncodeToString(h.Sum(nil))
}

// Merge concatenates sets. IDs assigned by position are reassigned against the
// merged order.
func Merge(sets ...*Set) (*Set, error) {
	var entries []Entry
	for _, s := range sets {
		entries = append(entries, s.entries...)
	}
	return NewSet(entries)
}

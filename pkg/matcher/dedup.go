package matcher

import (
	"crypto/sha256"
	"encoding/hex"

	"github.com/praetorian-inc/perscan/pkg/types"
)

// DedupeMode controls how matches are deduplicated.
type DedupeMode int

const (
	// DedupeByLocation drops repeats of the same tag at the same span.
	// Hyperscan can report one span more than once when a pattern has
	// several ways to reach the same end.
	DedupeByLocation DedupeMode = iota

	// DedupeByContent keeps the first match per tag and matched value, so the
	// same value appearing several times in a blob is reported once.
	DedupeByContent

	// DedupeNone reports every callback.
	DedupeNone
)

// String returns the flag spelling of the mode.
func (m DedupeMode) String() string {
	switch m {
	case DedupeByLocation:
		return "location"
	case DedupeByContent:
		return "content"
	case DedupeNone:
		return "none"
	default:
		return "unknown"
	}
}

// ParseDedupeMode accepts "location", "content" or "none".
func ParseDedupeMode(s string) (DedupeMode, bool) {
	switch s {
	case "location", "":
		return DedupeByLocation, true
	case "content":
		return DedupeByContent, true
	case "none":
		return DedupeNone, true
	}
	return 0, false
}

// Deduplicator remembers the matches it has seen.
type Deduplicator struct {
	seen map[string]struct{}
	mode DedupeMode
}

// NewDeduplicator creates a deduplicator for mode.
func NewDeduplicator(mode DedupeMode) *Deduplicator {
	return &Deduplicator{seen: make(map[string]struct{}), mode: mode}
}

// Seen reports whether an equivalent match was seen before and records m.
func (d *Deduplicator) Seen(m *types.Match) bool {
	if d.mode == DedupeNone {
		return false
	}
	key := d.computeKey(m)
	if _, ok := d.seen[key]; ok {
		return true
	}
	d.seen[key] = struct{}{}
	return false
}

// Reset clears the deduplicator for reuse.
func (d *Deduplicator) Reset() {
	clear(d.seen)
}

func (d *Deduplicator) computeKey(m *types.Match) string {
	if d.mode != DedupeByContent {
		return m.StructuralID
	}

	// Groups hold the interesting value when the pattern has any; otherwise
	// the whole matched span is the value.
	h := sha256.New()
	h.Write([]byte(m.Tag))
	h.Write([]byte{0})
	if len(m.Groups) == 0 {
		h.Write(m.Matching)
	}
	for _, group := range m.Groups {
		h.Write(group)
		h.Write([]byte{0})
	}
	return hex.EncodeToString(h.Sum(nil))
}

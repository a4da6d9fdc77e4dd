package types

import (
	"crypto/sha1"
	"encoding/hex"
	"strconv"
)

// Match is one pattern hit inside a blob.
type Match struct {
	BlobID       BlobID            `json:"blob_id"`
	StructuralID string            `json:"structural_id"`
	PatternID    uint              `json:"pattern_id"`
	Tag          string            `json:"tag"`
	Source       string            `json:"source,omitempty"` // path or other origin of the blob
	Location     Location          `json:"location"`
	Matching     []byte            `json:"matching,omitempty"`
	Before       []byte            `json:"before,omitempty"` // context lines preceding the match
	After        []byte            `json:"after,omitempty"`  // context lines following the match
	Groups       [][]byte          `json:"groups,omitempty"`
	NamedGroups  map[string][]byte `json:"named_groups,omitempty"`
}

// ComputeStructuralID derives a content-based ID for the match:
// SHA-1(tag '\0' blob_id '\0' start '\0' end). Two scans of the same blob with the
// same pattern set yield the same IDs.
func (m *Match) ComputeStructuralID() string {
	h := sha1.New()
	h.Write([]byte(m.Tag))
	h.Write([]byte{0})
	h.Write(m.BlobID[:])
	h.Write([]byte{0})
	h.Write(strconv.AppendUint(nil, m.Location.Offset.Start, 10))
	h.Write([]byte{0})
	h.Write(strconv.AppendUint(nil, m.Location.Offset.End, 10))
	return hex.EncodeToString(h.Sum(nil))
}

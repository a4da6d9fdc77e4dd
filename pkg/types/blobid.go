package types

import (
	"crypto/sha1"
	"database/sql/driver"
	"encoding/hex"
	"encoding/json"
	"fmt"
	"hash"
	"strconv"
)

// BlobID identifies scanned content by its Git blob hash: SHA-1("blob <len>\0<content>").
type BlobID [sha1.Size]byte

// ComputeBlobID hashes content the way `git hash-object` does.
func ComputeBlobID(content []byte) BlobID {
	h := NewBlobHash(int64(len(content)))
	h.Write(content)
	return SumBlobID(h)
}

// NewBlobHash returns a hash primed with the header of a blob of size bytes.
// Writing exactly size bytes of content and calling SumBlobID yields the same
// ID as ComputeBlobID.
func NewBlobHash(size int64) hash.Hash {
	h := sha1.New()
	h.Write([]byte("blob "))
	h.Write(strconv.AppendInt(nil, size, 10))
	h.Write([]byte{0})
	return h
}

// SumBlobID finishes a hash from NewBlobHash.
func SumBlobID(h hash.Hash) BlobID {
	var id BlobID
	h.Sum(id[:0])
	return id
}

// ParseBlobID decodes a 40-character hex string.
func ParseBlobID(s string) (BlobID, error) {
	var id BlobID
	if len(s) != hex.EncodedLen(len(id)) {
		return id, fmt.Errorf("invalid blob ID length: expected %d, got %d", hex.EncodedLen(len(id)), len(s))
	}
	if _, err := hex.Decode(id[:], []byte(s)); err != nil {
		return BlobID{}, fmt.Errorf("invalid blob ID: %w", err)
	}
	return id, nil
}

// Hex returns the 40-character hex form.
func (id BlobID) Hex() string { return hex.EncodeToString(id[:]) }

func (id BlobID) String() string { return id.Hex() }

// Short returns the first 12 hex characters, for display.
func (id BlobID) Short() string { return id.Hex()[:12] }

// IsZero reports whether the ID was never set.
func (id BlobID) IsZero() bool { return id == BlobID{} }

func (id BlobID) MarshalJSON() ([]byte, error) {
	return json.Marshal(id.Hex())
}

func (id *BlobID) UnmarshalJSON(data []byte) error {
	var s string
	if err := json.Unmarshal(data, &s); err != nil {
		return err
	}
	parsed, err := ParseBlobID(s)
	if err != nil {
		return err
	}
	*id = parsed
	return nil
}

// Value stores the ID as hex text.
func (id BlobID) Value() (driver.Value, error) {
	return id.Hex(), nil
}

// Scan reads an ID stored as hex text.
func (id *BlobID) Scan(value any) error {
	var s string
	switch v := value.(type) {
	case string:
		s = v
	case []byte:
		s = string(v)
	case nil:
		return fmt.Errorf("cannot scan NULL into BlobID")
	default:
		return fmt.Errorf("cannot scan %T into BlobID", value)
	}
	parsed, err := ParseBlobID(s)
	if err != nil {
		return err
	}
	*id = parsed
	return nil
}

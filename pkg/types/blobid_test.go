package types

import (
	"encoding/json"
	"strings"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestComputeBlobID_MatchesGit(t *testing.T) {
	// Expected values from `git hash-object --stdin`.
	tests := map[string]string{
		"":               "e69de29bb2d1d6434b8b29ae775ad8c2e48c5391",
		"hello world":    "95d09f2b10159347eece71399a7e2e907ea3df4f",
		"test content\n": "d670460b4b4aece5915caf5c68d12f560a9fe3e4",
	}
	for content, want := range tests {
		id := ComputeBlobID([]byte(content))
		assert.Equal(t, want, id.Hex(), "content %q", content)
		assert.Equal(t, want, id.String())
		assert.Equal(t, want[:12], id.Short())
		assert.False(t, id.IsZero())
	}
	assert.True(t, BlobID{}.IsZero())
}

func TestNewBlobHash_Incremental(t *testing.T) {
	content := []byte("hello world")
	h := NewBlobHash(int64(len(content)))
	h.Write(content[:5])
	h.Write(content[5:])
	assert.Equal(t, ComputeBlobID(content), SumBlobID(h))
}

func TestParseBlobID(t *testing.T) {
	valid := []string{
		"123456789abcdef0123456789abcdef012345678",
		"ABCDEF0123456789ABCDEF0123456789ABCDEF01",
	}
	for _, s := range valid {
		id, err := ParseBlobID(s)
		require.NoError(t, err, s)
		assert.Equal(t, strings.ToLower(s), id.Hex())
	}

	invalid := []string{
		"",
		"123456789abcdef0123456789abcdef01234567",
		"123456789abcdef0123456789abcdef0123456789",
		"zzz456789abcdef0123456789abcdef012345678",
	}
	for _, s := range invalid {
		_, err := ParseBlobID(s)
		assert.Error(t, err, s)
	}
}

func TestBlobID_JSON(t *testing.T) {
	id := ComputeBlobID([]byte("hello world"))

	data, err := json.Marshal(struct {
		Blob BlobID `json:"blob"`
	}{id})
	require.NoError(t, err)
	assert.JSONEq(t, `{"blob":"95d09f2b10159347eece71399a7e2e907ea3df4f"}`, string(data))

	var back BlobID
	require.NoError(t, json.Unmarshal([]byte(`"95d09f2b10159347eece71399a7e2e907ea3df4f"`), &back))
	assert.Equal(t, id, back)

	assert.Error(t, json.Unmarshal([]byte(`123`), &back))
	assert.Error(t, json.Unmarshal([]byte(`"nope"`), &back))
}

func TestBlobID_SQL(t *testing.T) {
	id := ComputeBlobID([]byte("hello world"))

	v, err := id.Value()
	require.NoError(t, err)
	assert.Equal(t, id.Hex(), v)

	var fromString, fromBytes BlobID
	require.NoError(t, fromString.Scan(id.Hex()))
	require.NoError(t, fromBytes.Scan([]byte(id.Hex())))
	assert.Equal(t, id, fromString)
	assert.Equal(t, id, fromBytes)

	assert.Error(t, fromString.Scan(nil))
	assert.Error(t, fromString.Scan(42))
}

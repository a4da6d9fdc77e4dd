package matcher

import (
	"testing"

	"github.com/stretchr/testify/assert"

	"github.com/praetorian-inc/perscan/pkg/types"
)

func TestDeduplicator_ByLocation(t *testing.T) {
	d := NewDeduplicator(DedupeByLocation)

	m1 := &types.Match{StructuralID: "abc123", Matching: []byte("x")}
	m2 := &types.Match{StructuralID: "def456", Matching: []byte("x")}
	m3 := &types.Match{StructuralID: "abc123"}

	assert.False(t, d.Seen(m1))
	assert.False(t, d.Seen(m2), "same value elsewhere is a separate match")
	assert.True(t, d.Seen(m3))

	d.Reset()
	assert.False(t, d.Seen(m1))
}

func TestDeduplicator_ByContent(t *testing.T) {
	d := NewDeduplicator(DedupeByContent)

	first := &types.Match{Tag: "aws", StructuralID: "1", Matching: []byte("key=AKIA1"), Groups: [][]byte{[]byte("AKIA1")}}
	sameGroups := &types.Match{Tag: "aws", StructuralID: "2", Matching: []byte("id: AKIA1"), Groups: [][]byte{[]byte("AKIA1")}}
	otherTag := &types.Match{Tag: "gcp", StructuralID: "3", Groups: [][]byte{[]byte("AKIA1")}}

	assert.False(t, d.Seen(first))
	assert.True(t, d.Seen(sameGroups), "groups decide, not the surrounding text")
	assert.False(t, d.Seen(otherTag))

	plain := &types.Match{Tag: "word", StructuralID: "4", Matching: []byte("hello")}
	again := &types.Match{Tag: "word", StructuralID: "5", Matching: []byte("hello")}
	assert.False(t, d.Seen(plain))
	assert.True(t, d.Seen(again), "without groups the matched bytes decide")
}

func TestDeduplicator_None(t *testing.T) {
	d := NewDeduplicator(DedupeNone)
	m := &types.Match{StructuralID: "abc123"}
	assert.False(t, d.Seen(m))
	assert.False(t, d.Seen(m))
}

func TestParseDedupeMode(t *testing.T) {
	for _, mode := range []DedupeMode{DedupeByLocation, DedupeByContent, DedupeNone} {
		got, ok := ParseDedupeMode(mode.String())
		assert.True(t, ok)
		assert.Equal(t, mode, got)
	}
	_, ok := ParseDedupeMode("fuzzy")
	assert.False(t, ok)
}

package matcher

import (
	"testing"

	"github.com/stretchr/testify/assert"
)

func TestExtractContext(t *testing.T) {
	const seven = "line1\nline2\nline3\nMATCH\nline5\nline6\nline7"

	tests := []struct {
		name       string
		content    string
		start      int
		end        int
		lines      int
		wantBefore string
		wantAfter  string
	}{
		{"two lines each side", seven, 18, 23, 2, "line2\nline3\n", "line5\nline6\n"},
		{"start of file", "MATCH\nline2\nline3\nline4\n", 0, 5, 3, "", "line2\nline3\nline4\n"},
		{"end of file", "line1\nline2\nline3\nMATCH", 18, 23, 3, "line1\nline2\nline3\n", ""},
		{"fewer lines before", "line1\nMATCH\nline3\nline4\n", 6, 11, 3, "line1\n", "line3\nline4\n"},
		{"fewer lines after", "line1\nline2\nline3\nMATCH\nline5\n", 18, 23, 3, "line1\nline2\nline3\n", "line5\n"},
		{"no context requested", seven, 18, 23, 0, "", ""},
		{"negative lines", seven, 18, 23, -1, "", ""},
		{"multi-line match", "line1\nline2\nMATCH\nCONTINUES\nHERE\nline6\nline7\n", 12, 33, 2, "line1\nline2\n", "line6\nline7\n"},
		{"whole content", "MATCH", 0, 5, 3, "", ""},
		{"empty content", "", 0, 0, 3, "", ""},
		{"match includes its newline", "line1\nline2\nMATCH\nline4\nline5", 12, 18, 1, "line2\n", "line4\n"},
		{"text before match on its line", "line1\nkey=MATCH\nline3", 10, 15, 1, "line1\nkey=", "line3"},
		{"zero-length match", "line1\nline2\nline3\nline4\nline5", 12, 12, 2, "line1\nline2\n", "line3\nline4\n"},
		{"start out of range", "short", 100, 100, 3, "", ""},
		{"end out of range", "short", 0, 100, 3, "", ""},
		{"start after end", "line1\nline2\nline3", 10, 5, 2, "", ""},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			before, after := ExtractContext([]byte(tt.content), tt.start, tt.end, tt.lines)
			assert.Equal(t, tt.wantBefore, string(before), "before")
			assert.Equal(t, tt.wantAfter, string(after), "after")
		})
	}
}

func TestExtractContext_ReturnsIndependentCopies(t *testing.T) {
	content := []byte("line1\nline2\nline3\nMATCH\nline5\nline6\nline7\n")

	before, after := ExtractContext(content, 18, 23, 2)
	clear(content)

	assert.Equal(t, "line2\nline3\n", string(before))
	assert.Equal(t, "line5\nline6\n", string(after))
}

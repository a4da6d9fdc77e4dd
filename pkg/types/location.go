package types

// OffsetSpan is the half-open byte range [Start, End) reported for a match.
type OffsetSpan struct {
	Start uint64 `json:"start"`
	End   uint64 `json:"end"`
}

// Len returns End-Start, or 0 for an inverted span.
func (s OffsetSpan) Len() uint64 {
	if s.End < s.Start {
		return 0
	}
	return s.End - s.Start
}

// SourcePoint is a 1-based line and column.
type SourcePoint struct {
	Line   int `json:"line"`
	Column int `json:"column"`
}

// SourceSpan is the line/column range of a match.
type SourceSpan struct {
	Start SourcePoint `json:"start"`
	End   SourcePoint `json:"end"`
}

// Location is where a match sits inside its blob.
type Location struct {
	Offset OffsetSpan `json:"offset"`
	Source SourceSpan `json:"source"`
}

// Locate resolves a byte span of content into a Location. Offsets past the end
// of content are clamped for the line/column computation only.
func Locate(content []byte, span OffsetSpan) Location {
	start := pointAt(content, span.Start, SourcePoint{Line: 1, Column: 1}, 0)
	end := pointAt(content, span.End, start, span.Start)
	return Location{Offset: span, Source: SourceSpan{Start: start, End: end}}
}

// pointAt walks content from offset from (at point p) up to offset to.
func pointAt(content []byte, to uint64, p SourcePoint, from uint64) SourcePoint {
	limit := min(to, uint64(len(content)))
	for i := from; i < limit; i++ {
		if content[i] == '\n' {
			p.Line++
			p.Column = 1
		} else {
			p.Column++
		}
	}
	return p
}

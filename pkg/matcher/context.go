package matcher

import "bytes"

// ExtractContext returns up to lines lines around content[start:end]. before
// runs from the start of the lines-th line above the match up to start; after
// runs from end through the lines-th newline below it. Both are copies, so
// keeping them does not pin content.
func ExtractContext(content []byte, start, end, lines int) (before, after []byte) {
	if lines <= 0 || start < 0 || end > len(content) || start > end {
		return nil, nil
	}
	return bytes.Clone(linesBefore(content, start, lines)), bytes.Clone(linesAfter(content, end, lines))
}

func linesBefore(content []byte, start, lines int) []byte {
	pos := start
	for i := 0; i <= lines; i++ {
		idx := bytes.LastIndexByte(content[:pos], '\n')
		if idx < 0 {
			break
		}
		if i == lines {
			return content[idx+1 : start]
		}
		pos = idx
	}
	if start == 0 {
		return nil
	}
	return content[:start]
}

func linesAfter(content []byte, end, lines int) []byte {
	if end >= len(content) {
		return nil
	}
	// A newline right after the match closes the match's own line.
	from := end
	if content[from] == '\n' {
		from++
	}
	pos := from
	for i := 0; i < lines; i++ {
		idx := bytes.IndexByte(content[pos:], '\n')
		if idx < 0 {
			return content[from:]
		}
		pos += idx + 1
	}
	return content[from:pos]
}

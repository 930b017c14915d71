package table

import (
	"regexp"
	"sort"
	"strings"
	"unicode/utf8"
)

const (
	// StringMarker opens a string-typed column in the header line.
	StringMarker = "<S>"
	// NumericMarker opens a numeric-typed column in the header line.
	NumericMarker = "<C>"
)

var columnMarkerPattern = regexp.MustCompile(`<[SC]>`)

// Layout is the ordered list of column widths of one table block, in runes.
type Layout []int

// Columns returns the number of columns the layout splits a line into.
func (l Layout) Columns() int {
	return len(l)
}

// Span returns the total width covered by the layout.
func (l Layout) Span() int {
	total := 0
	for _, w := range l {
		total += w
	}
	return total
}

// Split cuts a line into trimmed cells, one per column. Columns past the end of
// the line yield empty cells.
func (l Layout) Split(line string) Row {
	runes := []rune(line)
	row := make(Row, len(l))
	start := 0
	for i, w := range l {
		end := start + w
		if start < len(runes) {
			stop := end
			if stop > len(runes) {
				stop = len(runes)
			}
			row[i] = strings.TrimSpace(string(runes[start:stop]))
		}
		start = end
	}
	return row
}

// InferWidths derives the column widths of a block from the offsets of its column
// markers. Each width is the distance between two consecutive markers, so N markers
// produce N-1 widths. Fewer than two markers produce an empty layout.
func InferWidths(block string) Layout {
	matches := columnMarkerPattern.FindAllStringIndex(block, -1)
	if len(matches) < 2 {
		return Layout{}
	}

	positions := make([]int, 0, len(matches))
	for _, m := range matches {
		// Rune offsets keep cells aligned when the text carries non-ASCII characters.
		positions = append(positions, utf8.RuneCountInString(block[:m[0]]))
	}
	sort.Ints(positions)

	widths := make(Layout, 0, len(positions)-1)
	for i := 0; i+1 < len(positions); i++ {
		widths = append(widths, positions[i+1]-positions[i])
	}
	return widths
}

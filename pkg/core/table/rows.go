package table

import (
	"errors"
	"fmt"
	"strings"
)

// ErrLayoutTooNarrow is returned when a block's layout has fewer columns than the
// identifier, value and share-count positions require.
var ErrLayoutTooNarrow = errors.New("table layout too narrow")

// Row is one data line split into trimmed cells.
type Row []string

// Columns names the cell positions the extractor relies on.
type Columns struct {
	Class      int // title of class; carried over on continuation lines
	Identifier int // CUSIP
	Value      int // market value
	Shares     int // shares or principal amount
}

// DefaultColumns is the column order of the 13F information table:
// name of issuer, title of class, CUSIP, value, shares.
func DefaultColumns() Columns {
	return Columns{Class: 1, Identifier: 2, Value: 3, Shares: 4}
}

// width is the minimum number of columns a layout needs for these positions.
func (c Columns) width() int {
	widest := c.Class
	for _, v := range []int{c.Identifier, c.Value, c.Shares} {
		if v > widest {
			widest = v
		}
	}
	return widest + 1
}

// Extractor converts table blocks into rows.
type Extractor struct {
	columns Columns
}

// NewExtractor creates an extractor reading the given column positions.
func NewExtractor(columns Columns) *Extractor {
	return &Extractor{columns: columns}
}

// Columns returns the positions the extractor reads.
func (e *Extractor) Columns() Columns {
	return e.columns
}

// ExtractRows splits a block into repaired, filtered data rows.
//
// Data starts after the <S> sentinel line and stops at the first line holding a
// "---" run (totals and footnotes follow it). A block that yields no rows returns
// an empty slice and no error.
func (e *Extractor) ExtractRows(block Block) ([]Row, error) {
	layout := InferWidths(block.Text)
	if layout.Columns() < e.columns.width() {
		return nil, fmt.Errorf("block %d: %d columns, need %d: %w",
			block.Index, layout.Columns(), e.columns.width(), ErrLayoutTooNarrow)
	}

	lines := dataLines(block.Text)
	rows := make([]Row, 0, len(lines))
	for _, line := range lines {
		rows = append(rows, layout.Split(line))
	}

	rows = RepairContinuations(rows, e.columns)
	return FilterRows(rows, e.columns), nil
}

// dataLines returns the lines between the sentinel and the first separator line.
func dataLines(text string) []string {
	lines := strings.Split(strings.TrimSpace(text), "\n")
	for i := range lines {
		lines[i] = strings.TrimRight(lines[i], "\r")
	}

	start := -1
	for i, line := range lines {
		if strings.HasPrefix(strings.TrimLeft(line, " \t"), StringMarker) {
			start = i + 1
			break
		}
	}
	if start < 0 {
		return nil
	}
	lines = lines[start:]

	for i, line := range lines {
		if strings.Contains(line, "---") {
			return lines[:i]
		}
	}
	return lines
}

// RepairContinuations fills rows whose identifier cell is empty with the class and
// identifier of the row above. Long issuer names wrap onto a second physical line
// that does not repeat the CUSIP. The input is not modified. Applying the repair
// twice gives the same result as applying it once.
func RepairContinuations(rows []Row, columns Columns) []Row {
	repaired := make([]Row, len(rows))
	for i, row := range rows {
		repaired[i] = append(Row(nil), row...)
		if i == 0 || !hasCell(row, columns.Identifier) || !hasCell(row, columns.Class) {
			continue
		}
		prev := repaired[i-1]
		if !hasCell(prev, columns.Identifier) || !hasCell(prev, columns.Class) {
			continue
		}
		if strings.TrimSpace(repaired[i][columns.Identifier]) == "" {
			repaired[i][columns.Class] = prev[columns.Class]
			repaired[i][columns.Identifier] = prev[columns.Identifier]
		}
	}
	return repaired
}

// FilterRows drops separator rows and rows without a value cell.
func FilterRows(rows []Row, columns Columns) []Row {
	kept := make([]Row, 0, len(rows))
	for _, row := range rows {
		if isSeparator(row) {
			continue
		}
		if !hasCell(row, columns.Value) || strings.TrimSpace(row[columns.Value]) == "" {
			continue
		}
		kept = append(kept, row)
	}
	return kept
}

func isSeparator(row Row) bool {
	for _, cell := range row {
		if strings.Contains(cell, "---") || strings.Contains(cell, "===") {
			return true
		}
	}
	return false
}

func hasCell(row Row, i int) bool {
	return i >= 0 && i < len(row)
}

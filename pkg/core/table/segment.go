package table

import (
	"fmt"
	"regexp"
)

// DefaultMinNumericRun is the number of consecutive numeric markers that marks a
// block as a holdings table. Signature and cover-page tables use the same markup
// but never carry that many numeric columns in a row.
const DefaultMinNumericRun = 5

var tableBlockPattern = regexp.MustCompile(`(?is)<TABLE>.*?</TABLE>`)

// Block is the raw text of one <TABLE>...</TABLE> span, tags included.
type Block struct {
	Index int    // position among all table spans of the document
	Text  string // raw text
}

// SegmenterOptions configures block detection.
type SegmenterOptions struct {
	// MinNumericRun is the minimum run of whitespace-separated <C> markers a block
	// must contain to be kept. Zero means DefaultMinNumericRun.
	MinNumericRun int
}

// Segmenter finds holdings-table blocks in a filing.
type Segmenter struct {
	signature *regexp.Regexp
}

// NewSegmenter creates a segmenter for the given options.
func NewSegmenter(opts SegmenterOptions) *Segmenter {
	run := opts.MinNumericRun
	if run <= 0 {
		run = DefaultMinNumericRun
	}

	pattern := regexp.QuoteMeta(NumericMarker)
	if run > 1 {
		pattern = fmt.Sprintf(`%s(?:\s*%s){%d,}`, pattern, regexp.QuoteMeta(NumericMarker), run-1)
	}
	return &Segmenter{signature: regexp.MustCompile(pattern)}
}

// FindTableBlocks returns the table spans of a document that carry the holdings
// table signature. Spans without it are skipped; that is the common case and not
// an error.
func (s *Segmenter) FindTableBlocks(document string) []Block {
	spans := tableBlockPattern.FindAllString(document, -1)

	blocks := make([]Block, 0, len(spans))
	for i, span := range spans {
		if !s.signature.MatchString(span) {
			continue
		}
		blocks = append(blocks, Block{Index: i, Text: span})
	}
	return blocks
}

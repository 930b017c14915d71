package reconcile

import (
	"errors"
	"fmt"
	"os"
	"strings"
	"time"

	"filing_holdings/pkg/core/ingest"

	hjson "github.com/hjson/hjson-go/v4"
)

// Correction patches one known rendering defect. A few historical filings put a
// footnote marker after the value, which pushes the share count out of its
// column; the correction removes the marker and supplies the share count.
//
// Rows are matched by identifier and period, and by the raw value cell when
// Value is set (a filing can list the same CUSIP more than once).
type Correction struct {
	Identifier  string `json:"cusip"`
	FiledFor    string `json:"filed_for"`
	Value       string `json:"value,omitempty"`
	StripSuffix string `json:"strip_suffix,omitempty"`
	Shares      string `json:"shares,omitempty"`
	Note        string `json:"note,omitempty"`
}

type correctionKey struct {
	identifier string
	period     string
}

// Corrections is an immutable override table keyed by row identity.
type Corrections struct {
	byKey map[correctionKey][]int
	list  []Correction
}

// NewCorrections validates and indexes a list of corrections.
func NewCorrections(list []Correction) (*Corrections, error) {
	c := &Corrections{byKey: make(map[correctionKey][]int, len(list))}
	for i, corr := range list {
		corr.Identifier = strings.TrimSpace(corr.Identifier)
		if corr.Identifier == "" {
			return nil, fmt.Errorf("correction %d: cusip is required", i)
		}
		period, err := ingest.ParsePeriod(corr.FiledFor)
		if err != nil {
			return nil, fmt.Errorf("correction %d: %w", i, err)
		}
		corr.FiledFor = period.Format("2006-01-02")
		if corr.StripSuffix == "" && corr.Shares == "" {
			return nil, fmt.Errorf("correction %d (%s %s): nothing to change", i, corr.Identifier, corr.FiledFor)
		}

		key := correctionKey{corr.Identifier, corr.FiledFor}
		c.byKey[key] = append(c.byKey[key], len(c.list))
		c.list = append(c.list, corr)
	}
	return c, nil
}

// LoadCorrections reads an hjson corrections file:
//
//	{
//	  corrections: [
//	    { cusip: "02581610", filed_for: "2004-12-31", strip_suffix: " 1", shares: "120,255,879" }
//	  ]
//	}
//
// A missing file yields an empty table.
func LoadCorrections(path string) (*Corrections, error) {
	if path == "" {
		return NewCorrections(nil)
	}
	data, err := os.ReadFile(path)
	if err != nil {
		if errors.Is(err, os.ErrNotExist) {
			return NewCorrections(nil)
		}
		return nil, fmt.Errorf("failed to read corrections: %w", err)
	}

	var file struct {
		Corrections []Correction `json:"corrections"`
	}
	if err := hjson.Unmarshal(data, &file); err != nil {
		return nil, fmt.Errorf("failed to parse corrections %s: %w", path, err)
	}
	return NewCorrections(file.Corrections)
}

// Len returns the number of corrections.
func (c *Corrections) Len() int {
	if c == nil {
		return 0
	}
	return len(c.list)
}

// match returns the index of the correction for a row, or -1. A correction
// applies only to the row it describes: its value must equal Value when set and
// end with StripSuffix when set. A correction that only supplies a share count
// applies only to rows that have none.
func (c *Corrections) match(identifier string, period time.Time, value, shares string) int {
	if c == nil {
		return -1
	}
	value = strings.TrimSpace(value)
	for _, i := range c.byKey[correctionKey{identifier, period.Format("2006-01-02")}] {
		corr := c.list[i]
		if corr.Value != "" && strings.TrimSpace(corr.Value) != value {
			continue
		}
		if corr.StripSuffix != "" && !strings.HasSuffix(value, corr.StripSuffix) {
			continue
		}
		if corr.Value == "" && corr.StripSuffix == "" && strings.TrimSpace(shares) != "" {
			continue
		}
		return i
	}
	return -1
}

// apply returns the patched value and share cells. The suffix is removed
// literally, so " 1" never clips the last digit of "1,001".
func (corr Correction) apply(value, shares string) (string, string) {
	if corr.StripSuffix != "" {
		value = strings.TrimSpace(value)
		value = strings.TrimSpace(strings.TrimSuffix(value, corr.StripSuffix))
	}
	if corr.Shares != "" {
		shares = corr.Shares
	}
	return value, shares
}

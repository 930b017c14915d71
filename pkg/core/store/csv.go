// Package store writes reconciled holdings to files and to Postgres.
package store

import (
	"encoding/csv"
	"fmt"
	"os"
	"path/filepath"
	"strconv"

	"filing_holdings/pkg/core/reconcile"
)

// HoldingsHeader is the column order of flat holdings output.
var HoldingsHeader = []string{"cusip", "valuation", "shares", "filedFor", "cik", "ticker"}

// HoldingRow renders a record as flat output cells. Absent registrant codes and
// symbols are empty cells.
func HoldingRow(rec reconcile.HoldingRecord) []string {
	cik := ""
	if rec.RegistrantCode != nil {
		cik = strconv.FormatInt(*rec.RegistrantCode, 10)
	}
	return []string{
		rec.Identifier,
		strconv.FormatInt(rec.Valuation, 10),
		strconv.FormatInt(rec.Shares, 10),
		rec.FiledFor.Format("2006-01-02"),
		cik,
		rec.Symbol,
	}
}

// CSVWriter writes holdings as a CSV file.
type CSVWriter struct {
	Path string
}

// WriteHoldings replaces the file with a header row and one row per record.
func (w CSVWriter) WriteHoldings(records []reconcile.HoldingRecord) error {
	if err := os.MkdirAll(filepath.Dir(w.Path), 0o755); err != nil {
		return fmt.Errorf("failed to create output dir: %w", err)
	}
	f, err := os.Create(w.Path)
	if err != nil {
		return fmt.Errorf("failed to create %s: %w", w.Path, err)
	}
	defer f.Close()

	cw := csv.NewWriter(f)
	if err := cw.Write(HoldingsHeader); err != nil {
		return fmt.Errorf("failed to write header: %w", err)
	}
	for _, rec := range records {
		if err := cw.Write(HoldingRow(rec)); err != nil {
			return fmt.Errorf("failed to write row: %w", err)
		}
	}
	cw.Flush()
	if err := cw.Error(); err != nil {
		return fmt.Errorf("failed to flush %s: %w", w.Path, err)
	}
	return f.Close()
}

package store

import (
	"fmt"
	"os"
	"path/filepath"

	"filing_holdings/pkg/core/portfolio"
	"filing_holdings/pkg/core/reconcile"

	"github.com/xuri/excelize/v2"
)

// Sheet names of the workbook output.
const (
	HoldingsSheet  = "holdings"
	PortfolioSheet = "portfolio"
)

// PortfolioHeader is the column order of the portfolio sheet.
var PortfolioHeader = []string{"filedFor", "cik", "ticker", "cusip", "shares", "value", "weight", "holdings"}

// XLSXWriter writes holdings and positions to a workbook.
type XLSXWriter struct {
	Path string
}

// Write replaces the workbook with a holdings sheet and a portfolio sheet.
func (w XLSXWriter) Write(records []reconcile.HoldingRecord, positions []portfolio.Position) error {
	f := excelize.NewFile()
	defer f.Close()

	if err := f.SetSheetName("Sheet1", HoldingsSheet); err != nil {
		return fmt.Errorf("failed to name sheet: %w", err)
	}
	if err := writeRow(f, HoldingsSheet, 1, toAny(HoldingsHeader)); err != nil {
		return err
	}
	for i, rec := range records {
		var cik any
		if rec.RegistrantCode != nil {
			cik = *rec.RegistrantCode
		}
		row := []any{rec.Identifier, rec.Valuation, rec.Shares, rec.FiledFor.Format("2006-01-02"), cik, rec.Symbol}
		if err := writeRow(f, HoldingsSheet, i+2, row); err != nil {
			return err
		}
	}

	if _, err := f.NewSheet(PortfolioSheet); err != nil {
		return fmt.Errorf("failed to add sheet: %w", err)
	}
	if err := writeRow(f, PortfolioSheet, 1, toAny(PortfolioHeader)); err != nil {
		return err
	}
	for i, p := range positions {
		var cik any
		if p.RegistrantCode != nil {
			cik = *p.RegistrantCode
		}
		value, _ := p.Valuation.Float64()
		weight, _ := p.Weight.Float64()
		row := []any{p.FiledFor.Format("2006-01-02"), cik, p.Symbol, p.Identifier, p.Shares, value, weight, p.Holdings}
		if err := writeRow(f, PortfolioSheet, i+2, row); err != nil {
			return err
		}
	}

	if err := os.MkdirAll(filepath.Dir(w.Path), 0o755); err != nil {
		return fmt.Errorf("failed to create output dir: %w", err)
	}
	if err := f.SaveAs(w.Path); err != nil {
		return fmt.Errorf("failed to save %s: %w", w.Path, err)
	}
	return nil
}

func writeRow(f *excelize.File, sheet string, row int, values []any) error {
	cell, err := excelize.CoordinatesToCellName(1, row)
	if err != nil {
		return err
	}
	if err := f.SetSheetRow(sheet, cell, &values); err != nil {
		return fmt.Errorf("failed to write %s!%s: %w", sheet, cell, err)
	}
	return nil
}

func toAny(ss []string) []any {
	out := make([]any, len(ss))
	for i, s := range ss {
		out[i] = s
	}
	return out
}

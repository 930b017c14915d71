// Package reconcile turns aggregated holdings rows into typed records: it joins
// the reference tables, applies the correction table, drops unusable rows and
// parses the numeric columns.
package reconcile

import (
	"errors"
	"fmt"
	"strings"
	"time"

	"filing_holdings/pkg/core/lookup"
	"filing_holdings/pkg/core/pipeline"

	"github.com/shopspring/decimal"
	"go.uber.org/zap"
)

// DefaultExcludedYears is the coverage window known to be unreliable in the
// plain-text filings.
var DefaultExcludedYears = []int{1998, 1999, 2000, 2001}

// HoldingRecord is one reconciled holding.
type HoldingRecord struct {
	Identifier     string    // normalized 8-character CUSIP
	RegistrantCode *int64    // CIK, nil when the lookup has no entry
	Symbol         string    // ticker, empty when unknown
	Valuation      int64     // market value as reported
	Shares         int64     // shares or principal amount
	FiledFor       time.Time // period of report
}

// Result is the output of one reconciliation pass.
type Result struct {
	Records           []HoldingRecord
	Dropped           []RowError
	UnusedCorrections []Correction
}

// DroppedBy counts dropped rows of one kind.
func (r *Result) DroppedBy(kind error) int {
	n := 0
	for _, d := range r.Dropped {
		if errors.Is(d.Err, kind) {
			n++
		}
	}
	return n
}

// Options configures a Reconciler.
type Options struct {
	// ExcludedYears drops rows whose period falls in one of these years.
	ExcludedYears []int
}

// Reconciler joins and types aggregated rows. It is safe to reuse; it holds only
// read-only tables.
type Reconciler struct {
	registrants *lookup.Registrants
	symbols     *lookup.Symbols
	corrections *Corrections
	excluded    map[int]bool
}

// NewReconciler creates a reconciler. Nil tables behave as empty ones.
func NewReconciler(registrants *lookup.Registrants, symbols *lookup.Symbols, corrections *Corrections, opts Options) *Reconciler {
	if registrants == nil {
		registrants = lookup.NewRegistrants(nil, false)
	}
	if symbols == nil {
		symbols = lookup.NewSymbols(nil, nil)
	}
	excluded := make(map[int]bool, len(opts.ExcludedYears))
	for _, y := range opts.ExcludedYears {
		excluded[y] = true
	}
	return &Reconciler{
		registrants: registrants,
		symbols:     symbols,
		corrections: corrections,
		excluded:    excluded,
	}
}

// Reconcile processes entries in order. Lookup misses keep the row with absent
// fields; every other problem drops the row and records why.
func (r *Reconciler) Reconcile(entries []pipeline.Entry) *Result {
	log := zap.L().Named("reconcile")
	result := &Result{Records: make([]HoldingRecord, 0, len(entries))}
	used := make(map[int]bool)

	for _, entry := range entries {
		record, corrIdx, err := r.reconcileEntry(entry)
		if corrIdx >= 0 {
			used[corrIdx] = true
		}
		if err != nil {
			rowErr := RowError{Entry: entry, Err: err}
			result.Dropped = append(result.Dropped, rowErr)
			if errors.Is(err, ErrUnparseable) {
				log.Warn("row dropped", zap.String("cusip", entry.Identifier),
					zap.Time("filed_for", entry.FiledFor), zap.Error(err))
			} else {
				log.Debug("row dropped", zap.String("cusip", entry.Identifier),
					zap.Time("filed_for", entry.FiledFor), zap.Error(err))
			}
			continue
		}
		result.Records = append(result.Records, record)
	}

	if r.corrections != nil {
		for i, corr := range r.corrections.list {
			if !used[i] {
				result.UnusedCorrections = append(result.UnusedCorrections, corr)
				log.Warn("correction matched no row", zap.String("cusip", corr.Identifier),
					zap.String("filed_for", corr.FiledFor))
			}
		}
	}

	log.Info("reconciled",
		zap.Int("records", len(result.Records)),
		zap.Int("dropped", len(result.Dropped)))
	return result
}

func (r *Reconciler) reconcileEntry(entry pipeline.Entry) (HoldingRecord, int, error) {
	record := HoldingRecord{Identifier: entry.Identifier, FiledFor: entry.FiledFor}

	// Join
	code, hasCode := r.registrants.Lookup(entry.Identifier)
	code = strings.TrimSpace(code)
	hasCode = hasCode && code != ""
	if sym, ok := r.symbols.Lookup(entry.Identifier); ok {
		record.Symbol = sym
	} else if hasCode {
		if sym, ok := r.symbols.ByRegistrant(code); ok {
			record.Symbol = sym
		}
	}

	// Corrections
	value, shares := entry.Value, entry.Shares
	corrIdx := r.corrections.match(entry.Identifier, entry.FiledFor, value, shares)
	if corrIdx >= 0 {
		value, shares = r.corrections.list[corrIdx].apply(value, shares)
	}

	// Filters
	if strings.TrimSpace(shares) == "" {
		return record, corrIdx, ErrMissingShares
	}
	if r.excluded[entry.FiledFor.Year()] {
		return record, corrIdx, fmt.Errorf("%d: %w", entry.FiledFor.Year(), ErrExcludedPeriod)
	}

	// Types
	var err error
	if record.Valuation, err = ParseAmount(value); err != nil {
		return record, corrIdx, fmt.Errorf("value: %w", err)
	}
	if record.Shares, err = ParseAmount(shares); err != nil {
		return record, corrIdx, fmt.Errorf("shares: %w", err)
	}
	if hasCode {
		n, err := ParseAmount(code)
		if err != nil {
			return record, corrIdx, fmt.Errorf("registrant code: %w", err)
		}
		record.RegistrantCode = &n
	}

	return record, corrIdx, nil
}

// ParseAmount parses a reported amount: a currency symbol and group separators
// are stripped, a zero fractional part is accepted ("1067983.0"), anything else
// that is not a non-negative integer fails with ErrUnparseable. Blanks inside the
// number ("6,778,836 1", a footnote marker) are an error, never joined.
func ParseAmount(raw string) (int64, error) {
	cleaned := strings.TrimSpace(raw)
	cleaned = strings.TrimSpace(strings.TrimPrefix(cleaned, "$"))
	cleaned = strings.ReplaceAll(cleaned, ",", "")
	if cleaned == "" {
		return 0, fmt.Errorf("empty amount: %w", ErrUnparseable)
	}
	if strings.ContainsAny(cleaned, " \t$") {
		return 0, fmt.Errorf("%q: %w", raw, ErrUnparseable)
	}

	d, err := decimal.NewFromString(cleaned)
	if err != nil {
		return 0, fmt.Errorf("%q: %w", raw, ErrUnparseable)
	}
	if !d.IsInteger() {
		return 0, fmt.Errorf("%q is fractional: %w", raw, ErrUnparseable)
	}
	if d.IsNegative() {
		return 0, fmt.Errorf("%q is negative: %w", raw, ErrUnparseable)
	}
	if !d.BigInt().IsInt64() {
		return 0, fmt.Errorf("%q overflows: %w", raw, ErrUnparseable)
	}
	return d.IntPart(), nil
}

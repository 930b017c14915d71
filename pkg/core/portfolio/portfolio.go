// Package portfolio rolls reconciled holdings up into per-period positions.
package portfolio

import (
	"sort"
	"strconv"
	"time"

	"filing_holdings/pkg/core/reconcile"

	"github.com/shopspring/decimal"
)

// DefaultValueScale converts 13F market values, reported in thousands of dollars,
// to dollars.
const DefaultValueScale = 1000

// weightPlaces is the precision of position weights.
const weightPlaces = 6

// Position is the sum of every holding of one security in one period.
type Position struct {
	FiledFor       time.Time
	RegistrantCode *int64
	Symbol         string
	Identifier     string // first identifier seen for the position
	Shares         int64
	Valuation      decimal.Decimal // in dollars, after scaling
	Weight         decimal.Decimal // share of the period's total valuation
	Holdings       int             // number of records merged
}

// Key identifies the position within its period: the registrant code and the
// symbol, or the identifier when the symbol is unknown. It is the grouping key
// of Build, so two positions of one period never share a key.
func (p Position) Key() string {
	name := p.Symbol
	if name == "" {
		name = p.Identifier
	}
	if p.RegistrantCode == nil {
		return name
	}
	return strconv.FormatInt(*p.RegistrantCode, 10) + ":" + name
}

// Options configures Build.
type Options struct {
	// ValueScale multiplies every reported valuation. Zero means DefaultValueScale.
	ValueScale int64
}

type groupKey struct {
	period string
	key    string
}

// Build groups records by (period, registrant code, symbol) and sums shares and
// scaled valuation. Records without a symbol are grouped by identifier. Output
// is ordered by period, then by first appearance within the period.
func Build(records []reconcile.HoldingRecord, opts Options) []Position {
	scale := decimal.NewFromInt(DefaultValueScale)
	if opts.ValueScale > 0 {
		scale = decimal.NewFromInt(opts.ValueScale)
	}

	index := make(map[groupKey]int)
	var positions []Position
	for _, rec := range records {
		candidate := Position{
			FiledFor:       rec.FiledFor,
			RegistrantCode: rec.RegistrantCode,
			Symbol:         rec.Symbol,
			Identifier:     rec.Identifier,
			Valuation:      decimal.Zero,
		}
		key := groupKey{period: rec.FiledFor.Format("2006-01-02"), key: candidate.Key()}

		value := decimal.NewFromInt(rec.Valuation).Mul(scale)
		i, ok := index[key]
		if !ok {
			i = len(positions)
			index[key] = i
			positions = append(positions, candidate)
		}
		positions[i].Shares += rec.Shares
		positions[i].Valuation = positions[i].Valuation.Add(value)
		positions[i].Holdings++
	}

	sort.SliceStable(positions, func(a, b int) bool {
		return positions[a].FiledFor.Before(positions[b].FiledFor)
	})

	totals := PeriodTotals(positions)
	for i := range positions {
		total := totals[positions[i].FiledFor.Format("2006-01-02")]
		if total.IsZero() {
			positions[i].Weight = decimal.Zero
			continue
		}
		positions[i].Weight = positions[i].Valuation.DivRound(total, weightPlaces)
	}
	return positions
}

// PeriodTotals sums position valuations per period, keyed by "2006-01-02" dates.
func PeriodTotals(positions []Position) map[string]decimal.Decimal {
	totals := make(map[string]decimal.Decimal)
	for _, p := range positions {
		k := p.FiledFor.Format("2006-01-02")
		totals[k] = totals[k].Add(p.Valuation)
	}
	return totals
}

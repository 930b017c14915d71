package portfolio

import (
	"testing"
	"time"

	"filing_holdings/pkg/core/reconcile"

	"github.com/shopspring/decimal"
)

func code(n int64) *int64 { return &n }

func day(s string) time.Time {
	t, _ := time.Parse("2006-01-02", s)
	return t
}

func TestBuildGroupsAndScales(t *testing.T) {
	records := []reconcile.HoldingRecord{
		{Identifier: "19121610", RegistrantCode: code(21344), Symbol: "KO", Valuation: 300, Shares: 10, FiledFor: day("2005-03-31")},
		{Identifier: "02581610", RegistrantCode: code(4962), Symbol: "AXP", Valuation: 100, Shares: 5, FiledFor: day("2005-03-31")},
		{Identifier: "19121610", RegistrantCode: code(21344), Symbol: "KO", Valuation: 100, Shares: 2, FiledFor: day("2005-03-31")},
		{Identifier: "19121610", RegistrantCode: code(21344), Symbol: "KO", Valuation: 50, Shares: 1, FiledFor: day("2004-12-31")},
	}

	got := Build(records, Options{})
	if len(got) != 3 {
		t.Fatalf("Build() returned %d positions, want 3", len(got))
	}

	tests := []struct {
		period    string
		key       string
		shares    int64
		valuation string
		weight    string
		holdings  int
	}{
		{"2004-12-31", "21344:KO", 1, "50000", "1", 1},
		{"2005-03-31", "21344:KO", 12, "400000", "0.8", 2},
		{"2005-03-31", "4962:AXP", 5, "100000", "0.2", 1},
	}
	for i, tt := range tests {
		p := got[i]
		if p.FiledFor.Format("2006-01-02") != tt.period || p.Key() != tt.key {
			t.Errorf("position %d = %s %s, want %s %s", i, p.FiledFor.Format("2006-01-02"), p.Key(), tt.period, tt.key)
			continue
		}
		if p.Shares != tt.shares || p.Holdings != tt.holdings {
			t.Errorf("position %d shares/holdings = %d/%d, want %d/%d", i, p.Shares, p.Holdings, tt.shares, tt.holdings)
		}
		if !p.Valuation.Equal(decimal.RequireFromString(tt.valuation)) {
			t.Errorf("position %d valuation = %s, want %s", i, p.Valuation, tt.valuation)
		}
		if !p.Weight.Equal(decimal.RequireFromString(tt.weight)) {
			t.Errorf("position %d weight = %s, want %s", i, p.Weight, tt.weight)
		}
	}
}

func TestBuildWithoutSymbolGroupsByIdentifier(t *testing.T) {
	records := []reconcile.HoldingRecord{
		{Identifier: "AAAAAAAA", Valuation: 1, Shares: 1, FiledFor: day("2005-03-31")},
		{Identifier: "BBBBBBBB", Valuation: 1, Shares: 1, FiledFor: day("2005-03-31")},
		{Identifier: "AAAAAAAA", Valuation: 1, Shares: 1, FiledFor: day("2005-03-31")},
	}

	got := Build(records, Options{ValueScale: 1})
	if len(got) != 2 {
		t.Fatalf("Build() returned %d positions, want 2", len(got))
	}
	if got[0].Key() != "AAAAAAAA" || got[0].Shares != 2 {
		t.Errorf("first position = %+v", got[0])
	}
	if got[0].RegistrantCode != nil {
		t.Errorf("RegistrantCode = %v, want nil", *got[0].RegistrantCode)
	}
}

func TestBuildSharedSymbolAcrossRegistrants(t *testing.T) {
	records := []reconcile.HoldingRecord{
		{Identifier: "AAAAAA10", RegistrantCode: code(1), Symbol: "ABC", Valuation: 1, Shares: 1, FiledFor: day("2005-03-31")},
		{Identifier: "BBBBBB10", RegistrantCode: code(2), Symbol: "ABC", Valuation: 3, Shares: 3, FiledFor: day("2005-03-31")},
	}

	got := Build(records, Options{ValueScale: 1})
	if len(got) != 2 {
		t.Fatalf("Build() returned %d positions, want 2", len(got))
	}
	if got[0].Key() == got[1].Key() {
		t.Errorf("positions share key %q", got[0].Key())
	}
	if got[0].Key() != "1:ABC" || got[1].Key() != "2:ABC" {
		t.Errorf("keys = %q, %q; want 1:ABC, 2:ABC", got[0].Key(), got[1].Key())
	}
}

func TestBuildZeroTotal(t *testing.T) {
	got := Build([]reconcile.HoldingRecord{
		{Identifier: "AAAAAAAA", Symbol: "A", FiledFor: day("2005-03-31")},
	}, Options{})
	if len(got) != 1 || !got[0].Weight.IsZero() {
		t.Errorf("Build() = %+v, want a single zero-weight position", got)
	}
}

func TestPeriodTotals(t *testing.T) {
	positions := []Position{
		{FiledFor: day("2005-03-31"), Valuation: decimal.NewFromInt(5)},
		{FiledFor: day("2005-03-31"), Valuation: decimal.NewFromInt(7)},
		{FiledFor: day("2005-06-30"), Valuation: decimal.NewFromInt(1)},
	}
	totals := PeriodTotals(positions)
	if !totals["2005-03-31"].Equal(decimal.NewFromInt(12)) {
		t.Errorf("2005-03-31 total = %s, want 12", totals["2005-03-31"])
	}
	if !totals["2005-06-30"].Equal(decimal.NewFromInt(1)) {
		t.Errorf("2005-06-30 total = %s, want 1", totals["2005-06-30"])
	}
}

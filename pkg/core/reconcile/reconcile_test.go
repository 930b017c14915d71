package reconcile

import (
	"errors"
	"os"
	"path/filepath"
	"testing"
	"time"

	"filing_holdings/pkg/core/lookup"
	"filing_holdings/pkg/core/pipeline"
)

func day(s string) time.Time {
	t, err := time.Parse("2006-01-02", s)
	if err != nil {
		panic(err)
	}
	return t
}

func entry(id, value, shares, period string) pipeline.Entry {
	return pipeline.Entry{Identifier: id, Value: value, Shares: shares, FiledFor: day(period)}
}

func newTestReconciler(t *testing.T, corrections []Correction) *Reconciler {
	t.Helper()
	registrants := lookup.NewRegistrants([]lookup.RegistrantMapping{
		{Code: "21344", Cusip8: "19121610"},
		{Code: "4962", Cusip8: "02581610"},
		{Code: "CIK?", Cusip8: "99999999"},
	}, false)
	symbols := lookup.NewSymbols(
		map[string]string{"19121610": "KO"},
		map[string]string{"0000004962": "AXP"},
	)
	corr, err := NewCorrections(corrections)
	if err != nil {
		t.Fatalf("NewCorrections() error = %v", err)
	}
	return NewReconciler(registrants, symbols, corr, Options{ExcludedYears: DefaultExcludedYears})
}

func TestParseAmount(t *testing.T) {
	tests := []struct {
		name    string
		input   string
		want    int64
		wantErr bool
	}{
		{"Plain", "1234", 1234, false},
		{"Grouped", "1,234,567", 1234567, false},
		{"Currency", "$ 2,500", 2500, false},
		{"ZeroFraction", "1067983.0", 1067983, false},
		{"Padded", "  42  ", 42, false},
		{"Fraction", "12.5", 0, true},
		{"Negative", "-5", 0, true},
		{"Text", "N/A", 0, true},
		{"Empty", "", 0, true},
		{"Overflow", "99999999999999999999", 0, true},
		{"FootnoteMarker", "6,778,836 1", 0, true},
		{"SplitDigits", "1 000", 0, true},
		{"TrailingCurrency", "100$", 0, true},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			got, err := ParseAmount(tt.input)
			if tt.wantErr {
				if !errors.Is(err, ErrUnparseable) {
					t.Fatalf("ParseAmount(%q) error = %v, want ErrUnparseable", tt.input, err)
				}
				return
			}
			if err != nil {
				t.Fatalf("ParseAmount(%q) error = %v", tt.input, err)
			}
			if got != tt.want {
				t.Errorf("ParseAmount(%q) = %d, want %d", tt.input, got, tt.want)
			}
		})
	}
}

func TestReconcileJoinsLookups(t *testing.T) {
	r := newTestReconciler(t, nil)
	res := r.Reconcile([]pipeline.Entry{
		entry("19121610", "$1,000", "200,000", "2005-03-31"),
		entry("02581610", "500", "10", "2005-03-31"),
		entry("00000000", "7", "1", "2005-03-31"),
	})

	if len(res.Dropped) != 0 {
		t.Fatalf("Dropped = %v, want none", res.Dropped)
	}
	if len(res.Records) != 3 {
		t.Fatalf("Records = %d, want 3", len(res.Records))
	}

	ko := res.Records[0]
	if ko.RegistrantCode == nil || *ko.RegistrantCode != 21344 {
		t.Errorf("KO registrant = %v, want 21344", ko.RegistrantCode)
	}
	if ko.Symbol != "KO" || ko.Valuation != 1000 || ko.Shares != 200000 {
		t.Errorf("KO record = %+v", ko)
	}

	// Symbol via the registrant fallback map.
	if got := res.Records[1].Symbol; got != "AXP" {
		t.Errorf("fallback symbol = %q, want AXP", got)
	}

	unknown := res.Records[2]
	if unknown.RegistrantCode != nil || unknown.Symbol != "" {
		t.Errorf("unknown record = %+v, want absent code and symbol", unknown)
	}
}

func TestReconcileDrops(t *testing.T) {
	r := newTestReconciler(t, nil)
	res := r.Reconcile([]pipeline.Entry{
		entry("19121610", "1,000", "", "2005-03-31"),
		entry("19121610", "1,000", "10", "1999-12-31"),
		entry("19121610", "abc", "10", "2005-03-31"),
		entry("99999999", "1", "1", "2005-03-31"),
		entry("19121610", "1", "1", "2002-03-31"),
	})

	if len(res.Records) != 1 {
		t.Fatalf("Records = %d, want 1", len(res.Records))
	}
	if got := res.Records[0].FiledFor; !got.Equal(day("2002-03-31")) {
		t.Errorf("kept record period = %v", got)
	}

	tests := []struct {
		kind error
		want int
	}{
		{ErrMissingShares, 1},
		{ErrExcludedPeriod, 1},
		{ErrUnparseable, 2},
	}
	for _, tt := range tests {
		if got := res.DroppedBy(tt.kind); got != tt.want {
			t.Errorf("DroppedBy(%v) = %d, want %d", tt.kind, got, tt.want)
		}
	}
}

func TestReconcileCorrections(t *testing.T) {
	r := newTestReconciler(t, []Correction{
		{Identifier: "02581610", FiledFor: "2004-12-31", StripSuffix: " 1", Shares: "120,255,879"},
		{Identifier: "19121610", FiledFor: "2004-12-31", Value: "9 2", StripSuffix: " 2", Shares: "5"},
		{Identifier: "00000000", FiledFor: "2010-06-30", Shares: "1"},
	})

	res := r.Reconcile([]pipeline.Entry{
		entry("02581610", "6,778,836 1", "", "2004-12-31"),
		entry("19121610", "8", "3", "2004-12-31"),
		entry("19121610", "9 2", "", "2004-12-31"),
	})

	if len(res.Dropped) != 0 {
		t.Fatalf("Dropped = %v, want none", res.Dropped)
	}
	want := []struct {
		valuation, shares int64
	}{
		{6778836, 120255879},
		{8, 3},
		{9, 5},
	}
	for i, w := range want {
		got := res.Records[i]
		if got.Valuation != w.valuation || got.Shares != w.shares {
			t.Errorf("record %d = (%d, %d), want (%d, %d)", i, got.Valuation, got.Shares, w.valuation, w.shares)
		}
	}

	if len(res.UnusedCorrections) != 1 || res.UnusedCorrections[0].Identifier != "00000000" {
		t.Errorf("UnusedCorrections = %+v, want the 00000000 entry", res.UnusedCorrections)
	}
}

func TestReconcileCorrectionSkipsSiblingRows(t *testing.T) {
	r := newTestReconciler(t, []Correction{
		{Identifier: "02581610", FiledFor: "2004-12-31", StripSuffix: " 1", Shares: "120,255,879"},
		{Identifier: "19121610", FiledFor: "2004-12-31", Shares: "42"},
	})

	res := r.Reconcile([]pipeline.Entry{
		entry("02581610", "6,778,836 1", "", "2004-12-31"),
		entry("02581610", "1,001", "77", "2004-12-31"),
		entry("19121610", "5", "", "2004-12-31"),
		entry("19121610", "6", "9", "2004-12-31"),
	})

	if len(res.Dropped) != 0 {
		t.Fatalf("Dropped = %v, want none", res.Dropped)
	}
	want := []struct {
		valuation, shares int64
	}{
		{6778836, 120255879},
		{1001, 77},
		{5, 42},
		{6, 9},
	}
	if len(res.Records) != len(want) {
		t.Fatalf("Records = %d, want %d", len(res.Records), len(want))
	}
	for i, w := range want {
		got := res.Records[i]
		if got.Valuation != w.valuation || got.Shares != w.shares {
			t.Errorf("record %d = (%d, %d), want (%d, %d)", i, got.Valuation, got.Shares, w.valuation, w.shares)
		}
	}
	if len(res.UnusedCorrections) != 0 {
		t.Errorf("UnusedCorrections = %+v, want none", res.UnusedCorrections)
	}
}

func TestReconcileUncorrectedMarkerIsUnparseable(t *testing.T) {
	r := newTestReconciler(t, nil)
	res := r.Reconcile([]pipeline.Entry{
		entry("19121610", "6,778,836 1", "120,255,879", "2004-12-31"),
	})
	if len(res.Records) != 0 || res.DroppedBy(ErrUnparseable) != 1 {
		t.Errorf("Records = %v, Dropped = %v; want one unparseable drop", res.Records, res.Dropped)
	}
}

func TestReconcilePreservesOrder(t *testing.T) {
	r := newTestReconciler(t, nil)
	entries := []pipeline.Entry{
		entry("B0000000", "1", "1", "2004-03-31"),
		entry("A0000000", "2", "2", "2004-03-31"),
		entry("C0000000", "3", "3", "2004-06-30"),
	}
	res := r.Reconcile(entries)
	for i, rec := range res.Records {
		if rec.Identifier != entries[i].Identifier {
			t.Errorf("record %d = %s, want %s", i, rec.Identifier, entries[i].Identifier)
		}
	}
}

func TestNewCorrectionsRejectsInvalid(t *testing.T) {
	tests := []struct {
		name string
		corr Correction
	}{
		{"MissingCusip", Correction{FiledFor: "2004-12-31", Shares: "1"}},
		{"BadPeriod", Correction{Identifier: "02581610", FiledFor: "Q4 2004", Shares: "1"}},
		{"NoChange", Correction{Identifier: "02581610", FiledFor: "2004-12-31"}},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			if _, err := NewCorrections([]Correction{tt.corr}); err == nil {
				t.Errorf("NewCorrections(%+v) error = nil", tt.corr)
			}
		})
	}
}

func TestLoadCorrections(t *testing.T) {
	dir := t.TempDir()
	path := filepath.Join(dir, "corrections.hjson")
	data := `{
  # footnote markers pushed the share counts out of their column
  corrections: [
    {
      cusip: "02581610"
      filed_for: "2004-12-31"
      strip_suffix: " 1"
      shares: "120,255,879"
    }
  ]
}`
	if err := os.WriteFile(path, []byte(data), 0o644); err != nil {
		t.Fatal(err)
	}

	c, err := LoadCorrections(path)
	if err != nil {
		t.Fatalf("LoadCorrections() error = %v", err)
	}
	if c.Len() != 1 {
		t.Fatalf("Len() = %d, want 1", c.Len())
	}
	if i := c.match("02581610", day("2004-12-31"), "6,778,836 1", ""); i != 0 {
		t.Errorf("match() = %d, want 0", i)
	}

	missing, err := LoadCorrections(filepath.Join(dir, "absent.hjson"))
	if err != nil || missing.Len() != 0 {
		t.Errorf("LoadCorrections(absent) = %v, %v; want empty table", missing, err)
	}
}

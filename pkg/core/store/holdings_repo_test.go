package store

import (
	"context"
	"errors"
	"strings"
	"testing"
	"time"

	"filing_holdings/pkg/core/portfolio"
	"filing_holdings/pkg/core/reconcile"
	"filing_holdings/pkg/core/report"

	"github.com/jackc/pgx/v5"
	"github.com/jackc/pgx/v5/pgconn"
	"github.com/shopspring/decimal"
)

// fakeTx records statements. Methods it does not override panic through the
// nil embedded interface.
type fakeTx struct {
	pgx.Tx
	execs      []string
	execArgs   [][]any
	copied     [][]any
	copyTable  pgx.Identifier
	failOn     string
	committed  bool
	rolledBack bool
}

func (tx *fakeTx) Exec(ctx context.Context, sql string, args ...any) (pgconn.CommandTag, error) {
	if tx.failOn != "" && strings.Contains(sql, tx.failOn) {
		return pgconn.CommandTag{}, errors.New("boom")
	}
	tx.execs = append(tx.execs, sql)
	tx.execArgs = append(tx.execArgs, args)
	return pgconn.NewCommandTag("INSERT 0 1"), nil
}

func (tx *fakeTx) CopyFrom(ctx context.Context, table pgx.Identifier, columns []string, src pgx.CopyFromSource) (int64, error) {
	tx.copyTable = table
	for src.Next() {
		values, err := src.Values()
		if err != nil {
			return 0, err
		}
		tx.copied = append(tx.copied, values)
	}
	return int64(len(tx.copied)), src.Err()
}

func (tx *fakeTx) Commit(ctx context.Context) error {
	tx.committed = true
	return nil
}

func (tx *fakeTx) Rollback(ctx context.Context) error {
	if !tx.committed {
		tx.rolledBack = true
	}
	return nil
}

type fakeDB struct {
	tx *fakeTx
}

func (db *fakeDB) Begin(ctx context.Context) (pgx.Tx, error) {
	return db.tx, nil
}

func sampleRun() (*report.Summary, []reconcile.HoldingRecord, []portfolio.Position) {
	cik := int64(21344)
	period := time.Date(2005, 3, 31, 0, 0, 0, 0, time.UTC)
	summary := &report.Summary{RunID: "7f8e4a4e-3b8e-4b0e-9f43-6a2b3c1d0e11", Started: period, Finished: period, Filings: 2, RowsKept: 2}
	records := []reconcile.HoldingRecord{
		{Identifier: "19121610", RegistrantCode: &cik, Symbol: "KO", Valuation: 300, Shares: 10, FiledFor: period},
		{Identifier: "AAAAAAAA", Valuation: 1, Shares: 1, FiledFor: period},
	}
	positions := []portfolio.Position{
		{FiledFor: period, RegistrantCode: &cik, Symbol: "KO", Identifier: "19121610", Shares: 10,
			Valuation: decimal.NewFromInt(300000), Weight: decimal.RequireFromString("0.99")},
	}
	return summary, records, positions
}

func TestSaveRun(t *testing.T) {
	tx := &fakeTx{}
	repo := NewHoldingsRepo(&fakeDB{tx: tx})
	summary, records, positions := sampleRun()

	if err := repo.SaveRun(context.Background(), summary, records, positions); err != nil {
		t.Fatalf("SaveRun() error = %v", err)
	}
	if !tx.committed || tx.rolledBack {
		t.Errorf("committed = %v, rolledBack = %v", tx.committed, tx.rolledBack)
	}

	if len(tx.execs) != 2 {
		t.Fatalf("executed %d statements, want 2", len(tx.execs))
	}
	if !strings.Contains(tx.execs[0], "INSERT INTO holdings_runs") {
		t.Errorf("first statement = %q", tx.execs[0])
	}
	if !strings.Contains(tx.execs[1], "ON CONFLICT (filed_for, position_key)") {
		t.Errorf("second statement = %q", tx.execs[1])
	}
	if got := tx.execArgs[1][1]; got != "21344:KO" {
		t.Errorf("position key arg = %v, want 21344:KO", got)
	}
	if got := tx.execArgs[1][5]; got != "300000" {
		t.Errorf("position valuation arg = %v, want 300000", got)
	}

	if tx.copyTable.Sanitize() != `"holdings"` {
		t.Errorf("copy table = %v", tx.copyTable)
	}
	if len(tx.copied) != 2 {
		t.Fatalf("copied %d rows, want 2", len(tx.copied))
	}
	if tx.copied[1][6] != (*int64)(nil) {
		t.Errorf("absent cik = %#v, want nil pointer", tx.copied[1][6])
	}
	if tx.copied[1][7] != nil {
		t.Errorf("absent ticker = %#v, want nil", tx.copied[1][7])
	}
	if tx.copied[0][7] != "KO" {
		t.Errorf("ticker = %#v, want KO", tx.copied[0][7])
	}
}

func TestSaveRunKeepsRegistrantsApart(t *testing.T) {
	tx := &fakeTx{}
	repo := NewHoldingsRepo(&fakeDB{tx: tx})
	summary, records, _ := sampleRun()
	other := int64(4962)
	positions := []portfolio.Position{
		{FiledFor: summary.Started, RegistrantCode: records[0].RegistrantCode, Symbol: "ABC", Valuation: decimal.NewFromInt(1), Weight: decimal.Zero},
		{FiledFor: summary.Started, RegistrantCode: &other, Symbol: "ABC", Valuation: decimal.NewFromInt(1), Weight: decimal.Zero},
	}

	if err := repo.SaveRun(context.Background(), summary, records, positions); err != nil {
		t.Fatalf("SaveRun() error = %v", err)
	}
	if len(tx.execArgs) != 3 {
		t.Fatalf("executed %d statements, want 3", len(tx.execArgs))
	}
	if a, b := tx.execArgs[1][1], tx.execArgs[2][1]; a == b {
		t.Errorf("both positions upserted under key %v", a)
	}
}

func TestSaveRunRollsBackOnError(t *testing.T) {
	tx := &fakeTx{failOn: "portfolio_positions"}
	repo := NewHoldingsRepo(&fakeDB{tx: tx})
	summary, records, positions := sampleRun()

	err := repo.SaveRun(context.Background(), summary, records, positions)
	if err == nil {
		t.Fatal("SaveRun() error = nil, want failure")
	}
	if tx.committed || !tx.rolledBack {
		t.Errorf("committed = %v, rolledBack = %v; want rollback", tx.committed, tx.rolledBack)
	}
}

func TestEnsureSchema(t *testing.T) {
	tx := &fakeTx{}
	if err := NewHoldingsRepo(&fakeDB{tx: tx}).EnsureSchema(context.Background()); err != nil {
		t.Fatalf("EnsureSchema() error = %v", err)
	}
	if len(tx.execs) != 1 || !strings.Contains(tx.execs[0], "CREATE TABLE IF NOT EXISTS holdings") {
		t.Errorf("execs = %v", tx.execs)
	}
}

func TestConnectRequiresURL(t *testing.T) {
	if _, err := Connect(context.Background(), ""); err == nil {
		t.Error("Connect(\"\") error = nil")
	}
}

package store

import (
	"context"
	"fmt"
	"time"

	"filing_holdings/pkg/core/portfolio"
	"filing_holdings/pkg/core/reconcile"
	"filing_holdings/pkg/core/report"

	"github.com/jackc/pgx/v5"
	"go.uber.org/zap"
)

// Schema creates the tables HoldingsRepo writes to.
const Schema = `
CREATE TABLE IF NOT EXISTS holdings_runs (
	run_id          UUID PRIMARY KEY,
	started_at      TIMESTAMPTZ NOT NULL,
	finished_at     TIMESTAMPTZ NOT NULL,
	filings         INTEGER NOT NULL,
	filings_failed  INTEGER NOT NULL,
	rows_extracted  INTEGER NOT NULL,
	rows_kept       INTEGER NOT NULL
);

CREATE TABLE IF NOT EXISTS holdings (
	run_id     UUID NOT NULL REFERENCES holdings_runs (run_id) ON DELETE CASCADE,
	seq        INTEGER NOT NULL,
	cusip      TEXT NOT NULL,
	valuation  BIGINT NOT NULL,
	shares     BIGINT NOT NULL,
	filed_for  DATE NOT NULL,
	cik        BIGINT,
	ticker     TEXT,
	PRIMARY KEY (run_id, seq)
);

CREATE TABLE IF NOT EXISTS portfolio_positions (
	filed_for     DATE NOT NULL,
	position_key  TEXT NOT NULL,
	cik           BIGINT,
	ticker        TEXT,
	shares        BIGINT NOT NULL,
	valuation     NUMERIC NOT NULL,
	weight        NUMERIC NOT NULL,
	run_id        UUID NOT NULL,
	updated_at    TIMESTAMPTZ NOT NULL,
	PRIMARY KEY (filed_for, position_key)
);
`

var holdingsColumns = []string{"run_id", "seq", "cusip", "valuation", "shares", "filed_for", "cik", "ticker"}

const insertRun = `
	INSERT INTO holdings_runs (run_id, started_at, finished_at, filings, filings_failed, rows_extracted, rows_kept)
	VALUES ($1, $2, $3, $4, $5, $6, $7)`

const upsertPosition = `
	INSERT INTO portfolio_positions (filed_for, position_key, cik, ticker, shares, valuation, weight, run_id, updated_at)
	VALUES ($1, $2, $3, $4, $5, $6, $7, $8, $9)
	ON CONFLICT (filed_for, position_key)
	DO UPDATE SET
		cik = EXCLUDED.cik,
		ticker = EXCLUDED.ticker,
		shares = EXCLUDED.shares,
		valuation = EXCLUDED.valuation,
		weight = EXCLUDED.weight,
		run_id = EXCLUDED.run_id,
		updated_at = EXCLUDED.updated_at`

// HoldingsRepo persists runs to Postgres.
type HoldingsRepo struct {
	db TxBeginner
}

// NewHoldingsRepo creates a repository on db.
func NewHoldingsRepo(db TxBeginner) *HoldingsRepo {
	return &HoldingsRepo{db: db}
}

// EnsureSchema creates the tables if they do not exist.
func (r *HoldingsRepo) EnsureSchema(ctx context.Context) error {
	tx, err := r.db.Begin(ctx)
	if err != nil {
		return fmt.Errorf("failed to begin: %w", err)
	}
	defer tx.Rollback(ctx)

	if _, err := tx.Exec(ctx, Schema); err != nil {
		return fmt.Errorf("failed to create schema: %w", err)
	}
	return tx.Commit(ctx)
}

// SaveRun stores one run in a single transaction: the run row, the run's
// holdings, and the portfolio positions. Positions of a period are replaced by
// the latest run that produced them.
func (r *HoldingsRepo) SaveRun(ctx context.Context, summary *report.Summary, records []reconcile.HoldingRecord, positions []portfolio.Position) error {
	tx, err := r.db.Begin(ctx)
	if err != nil {
		return fmt.Errorf("failed to begin: %w", err)
	}
	defer tx.Rollback(ctx)

	_, err = tx.Exec(ctx, insertRun,
		summary.RunID, summary.Started, summary.Finished,
		summary.Filings, summary.Abandoned+summary.FetchFailed,
		summary.RowsExtracted, summary.RowsKept)
	if err != nil {
		return fmt.Errorf("failed to save run: %w", err)
	}

	rows := make([][]any, len(records))
	for i, rec := range records {
		rows[i] = []any{
			summary.RunID, i, rec.Identifier, rec.Valuation, rec.Shares,
			rec.FiledFor, rec.RegistrantCode, nullable(rec.Symbol),
		}
	}
	n, err := tx.CopyFrom(ctx, pgx.Identifier{"holdings"}, holdingsColumns, pgx.CopyFromRows(rows))
	if err != nil {
		return fmt.Errorf("failed to save holdings: %w", err)
	}

	now := time.Now()
	for _, p := range positions {
		_, err := tx.Exec(ctx, upsertPosition,
			p.FiledFor, p.Key(), p.RegistrantCode, nullable(p.Symbol),
			p.Shares, p.Valuation.String(), p.Weight.String(), summary.RunID, now)
		if err != nil {
			return fmt.Errorf("failed to upsert position %s %s: %w", p.FiledFor.Format("2006-01-02"), p.Key(), err)
		}
	}

	if err := tx.Commit(ctx); err != nil {
		return fmt.Errorf("failed to commit run: %w", err)
	}

	zap.L().Named("store").Info("run saved",
		zap.String("run_id", summary.RunID),
		zap.Int64("holdings", n),
		zap.Int("positions", len(positions)))
	return nil
}

func nullable(s string) any {
	if s == "" {
		return nil
	}
	return s
}

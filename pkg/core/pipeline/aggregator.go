// Package pipeline drives holdings extraction across a batch of filings.
package pipeline

import (
	"context"
	"errors"
	"sort"
	"time"

	"filing_holdings/pkg/core/cusip"
	"filing_holdings/pkg/core/ingest"
	"filing_holdings/pkg/core/table"

	"go.uber.org/zap"
	"golang.org/x/sync/errgroup"
)

// Entry is one extracted holdings row tagged with its filing period. Cells are
// kept as text; typing happens during reconciliation.
type Entry struct {
	Identifier string    // CUSIP, normalized once the batch is complete
	Value      string    // market value cell
	Shares     string    // shares or principal amount cell
	FiledFor   time.Time // period of report
	Source     string    // document reference the row came from
}

// Outcome classifies what happened to one filing.
type Outcome string

const (
	OutcomeExtracted   Outcome = "EXTRACTED"    // contributed rows
	OutcomeEmpty       Outcome = "EMPTY"        // no holdings table or no data rows
	OutcomeAbandoned   Outcome = "ABANDONED"    // unexpected layout, filing skipped
	OutcomeFetchFailed Outcome = "FETCH_FAILED" // document could not be retrieved
)

// FilingOutcome records the result of one filing for the run summary.
type FilingOutcome struct {
	Ref     ingest.FilingRef
	Outcome Outcome
	Blocks  int // holdings blocks found
	Rows    int // rows contributed
	Err     error
}

// Dataset is the aggregate of a batch: all rows plus per-filing outcomes in
// input order.
type Dataset struct {
	Entries []Entry
	Filings []FilingOutcome
}

// Count returns how many filings ended with the given outcome.
func (d *Dataset) Count(outcome Outcome) int {
	n := 0
	for _, f := range d.Filings {
		if f.Outcome == outcome {
			n++
		}
	}
	return n
}

// Options configures an Aggregator.
type Options struct {
	// Workers is the number of filings fetched and parsed concurrently.
	// Values below 1 mean sequential processing.
	Workers   int
	Segmenter table.SegmenterOptions
	Columns   table.Columns
}

// Aggregator extracts holdings rows from a list of filings and concatenates them.
type Aggregator struct {
	fetcher   ingest.DocumentFetcher
	segmenter *table.Segmenter
	extractor *table.Extractor
	workers   int
}

// NewAggregator creates an aggregator reading documents through fetcher.
// A zero Columns value selects table.DefaultColumns.
func NewAggregator(fetcher ingest.DocumentFetcher, opts Options) *Aggregator {
	columns := opts.Columns
	if columns == (table.Columns{}) {
		columns = table.DefaultColumns()
	}
	workers := opts.Workers
	if workers < 1 {
		workers = 1
	}
	return &Aggregator{
		fetcher:   fetcher,
		segmenter: table.NewSegmenter(opts.Segmenter),
		extractor: table.NewExtractor(columns),
		workers:   workers,
	}
}

// Aggregate processes every filing and returns the combined dataset.
//
// A filing that cannot be fetched, has an unexpected layout or yields no rows is
// recorded and skipped; the batch continues. Only context cancellation aborts the
// run. Entries are ordered by period, filings of the same period keep their input
// order. Identifiers are normalized after all filings are collected.
func (a *Aggregator) Aggregate(ctx context.Context, refs []ingest.FilingRef) (*Dataset, error) {
	log := zap.L().Named("aggregator")
	log.Info("starting batch", zap.Int("filings", len(refs)), zap.Int("workers", a.workers))
	start := time.Now()

	results := make([][]Entry, len(refs))
	outcomes := make([]FilingOutcome, len(refs))

	g, gctx := errgroup.WithContext(ctx)
	g.SetLimit(a.workers)
	for i, ref := range refs {
		g.Go(func() error {
			if err := gctx.Err(); err != nil {
				return err
			}
			results[i], outcomes[i] = a.processFiling(gctx, ref)
			return nil
		})
	}
	if err := g.Wait(); err != nil {
		return nil, err
	}
	if err := ctx.Err(); err != nil {
		return nil, err
	}

	dataset := &Dataset{Filings: outcomes}
	for _, entries := range results {
		dataset.Entries = append(dataset.Entries, entries...)
	}
	sort.SliceStable(dataset.Entries, func(i, j int) bool {
		return dataset.Entries[i].FiledFor.Before(dataset.Entries[j].FiledFor)
	})

	for i := range dataset.Entries {
		dataset.Entries[i].Identifier = cusip.Normalize(dataset.Entries[i].Identifier)
	}

	log.Info("batch complete",
		zap.Int("rows", len(dataset.Entries)),
		zap.Int("extracted", dataset.Count(OutcomeExtracted)),
		zap.Int("empty", dataset.Count(OutcomeEmpty)),
		zap.Int("abandoned", dataset.Count(OutcomeAbandoned)),
		zap.Int("fetch_failed", dataset.Count(OutcomeFetchFailed)),
		zap.Duration("elapsed", time.Since(start)))

	return dataset, nil
}

func (a *Aggregator) processFiling(ctx context.Context, ref ingest.FilingRef) ([]Entry, FilingOutcome) {
	log := zap.L().Named("aggregator").With(
		zap.String("period", ref.Period.Format("2006-01-02")),
		zap.String("url", ref.URL))
	outcome := FilingOutcome{Ref: ref}

	document, err := a.fetcher.FetchDocument(ctx, ref)
	if err != nil {
		log.Warn("fetch failed", zap.Error(err))
		outcome.Outcome = OutcomeFetchFailed
		outcome.Err = err
		return nil, outcome
	}

	entries, blocks, err := a.ExtractDocument(ref, document)
	outcome.Blocks = blocks
	switch {
	case err != nil:
		log.Warn("filing abandoned", zap.Error(err), zap.Bool("layout", errors.Is(err, table.ErrLayoutTooNarrow)))
		outcome.Outcome = OutcomeAbandoned
		outcome.Err = err
		return nil, outcome
	case len(entries) == 0:
		log.Debug("no holdings rows")
		outcome.Outcome = OutcomeEmpty
		return nil, outcome
	}

	log.Info("extracted", zap.Int("blocks", blocks), zap.Int("rows", len(entries)))
	outcome.Outcome = OutcomeExtracted
	outcome.Rows = len(entries)
	return entries, outcome
}

// ExtractDocument runs segmentation and row extraction on one document and
// projects the rows onto identifier, value and share count. Any block with an
// unusable layout fails the whole document. The returned int is the number of
// holdings blocks found.
func (a *Aggregator) ExtractDocument(ref ingest.FilingRef, document string) ([]Entry, int, error) {
	blocks := a.segmenter.FindTableBlocks(document)
	columns := a.extractor.Columns()

	var entries []Entry
	for _, block := range blocks {
		rows, err := a.extractor.ExtractRows(block)
		if err != nil {
			return nil, len(blocks), err
		}
		for _, row := range rows {
			entries = append(entries, Entry{
				Identifier: row[columns.Identifier],
				Value:      row[columns.Value],
				Shares:     row[columns.Shares],
				FiledFor:   ref.Period,
				Source:     ref.URL,
			})
		}
	}
	return entries, len(blocks), nil
}

// Package report summarizes one holdings run for logs and for a rendered
// Markdown/HTML report.
package report

import (
	"bytes"
	"fmt"
	"os"
	"path/filepath"
	"strings"
	"time"

	"filing_holdings/pkg/core/pipeline"
	"filing_holdings/pkg/core/portfolio"
	"filing_holdings/pkg/core/reconcile"

	"github.com/google/uuid"
	"github.com/yuin/goldmark"
	"github.com/yuin/goldmark/extension"
	"go.uber.org/zap"
)

// Failure describes one filing that contributed no rows for a reason other
// than having no holdings table.
type Failure struct {
	Period  time.Time
	URL     string
	Outcome pipeline.Outcome
	Reason  string
}

// Summary is the outcome of one run.
type Summary struct {
	RunID    string
	Started  time.Time
	Finished time.Time

	Filings     int
	Extracted   int
	Empty       int
	Abandoned   int
	FetchFailed int
	Failures    []Failure

	RowsExtracted  int
	RowsKept       int
	MissingShares  int
	ExcludedPeriod int
	Unparseable    int

	UnusedCorrections []reconcile.Correction
	Positions         int
	Periods           int
}

// NewRunID returns a fresh run identifier.
func NewRunID() string {
	return uuid.New().String()
}

// NewSummary collects the counters of a finished run. result and positions may
// be nil when the run stopped after aggregation.
func NewSummary(runID string, started time.Time, dataset *pipeline.Dataset, result *reconcile.Result, positions []portfolio.Position) *Summary {
	s := &Summary{
		RunID:    runID,
		Started:  started,
		Finished: time.Now(),
	}

	if dataset != nil {
		s.Filings = len(dataset.Filings)
		s.Extracted = dataset.Count(pipeline.OutcomeExtracted)
		s.Empty = dataset.Count(pipeline.OutcomeEmpty)
		s.Abandoned = dataset.Count(pipeline.OutcomeAbandoned)
		s.FetchFailed = dataset.Count(pipeline.OutcomeFetchFailed)
		s.RowsExtracted = len(dataset.Entries)
		for _, f := range dataset.Filings {
			if f.Err == nil {
				continue
			}
			s.Failures = append(s.Failures, Failure{
				Period:  f.Ref.Period,
				URL:     f.Ref.URL,
				Outcome: f.Outcome,
				Reason:  f.Err.Error(),
			})
		}
	}

	if result != nil {
		s.RowsKept = len(result.Records)
		s.MissingShares = result.DroppedBy(reconcile.ErrMissingShares)
		s.ExcludedPeriod = result.DroppedBy(reconcile.ErrExcludedPeriod)
		s.Unparseable = result.DroppedBy(reconcile.ErrUnparseable)
		s.UnusedCorrections = result.UnusedCorrections
	}

	s.Positions = len(positions)
	s.Periods = len(portfolio.PeriodTotals(positions))
	return s
}

// Log writes the summary as one structured log entry.
func (s *Summary) Log(logger *zap.Logger) {
	logger.Info("run summary",
		zap.String("run_id", s.RunID),
		zap.Duration("elapsed", s.Finished.Sub(s.Started)),
		zap.Int("filings", s.Filings),
		zap.Int("extracted", s.Extracted),
		zap.Int("empty", s.Empty),
		zap.Int("abandoned", s.Abandoned),
		zap.Int("fetch_failed", s.FetchFailed),
		zap.Int("rows_extracted", s.RowsExtracted),
		zap.Int("rows_kept", s.RowsKept),
		zap.Int("dropped_missing_shares", s.MissingShares),
		zap.Int("dropped_excluded_period", s.ExcludedPeriod),
		zap.Int("dropped_unparseable", s.Unparseable),
		zap.Int("unused_corrections", len(s.UnusedCorrections)),
		zap.Int("positions", s.Positions),
	)
}

// Markdown renders the summary as a Markdown document.
func (s *Summary) Markdown() string {
	var b strings.Builder

	fmt.Fprintf(&b, "# Holdings run %s\n\n", s.RunID)
	fmt.Fprintf(&b, "Started %s, finished in %s.\n\n",
		s.Started.UTC().Format(time.RFC3339), s.Finished.Sub(s.Started).Round(time.Millisecond))

	b.WriteString("## Filings\n\n")
	b.WriteString("| Outcome | Count |\n|---|---:|\n")
	fmt.Fprintf(&b, "| Extracted | %d |\n", s.Extracted)
	fmt.Fprintf(&b, "| Empty | %d |\n", s.Empty)
	fmt.Fprintf(&b, "| Abandoned | %d |\n", s.Abandoned)
	fmt.Fprintf(&b, "| Fetch failed | %d |\n", s.FetchFailed)
	fmt.Fprintf(&b, "| **Total** | **%d** |\n\n", s.Filings)

	b.WriteString("## Rows\n\n")
	b.WriteString("| Stage | Count |\n|---|---:|\n")
	fmt.Fprintf(&b, "| Extracted | %d |\n", s.RowsExtracted)
	fmt.Fprintf(&b, "| Dropped: missing shares | %d |\n", s.MissingShares)
	fmt.Fprintf(&b, "| Dropped: excluded period | %d |\n", s.ExcludedPeriod)
	fmt.Fprintf(&b, "| Dropped: unparseable | %d |\n", s.Unparseable)
	fmt.Fprintf(&b, "| Kept | %d |\n", s.RowsKept)
	fmt.Fprintf(&b, "| Positions | %d across %d periods |\n\n", s.Positions, s.Periods)

	if len(s.Failures) > 0 {
		b.WriteString("## Failed filings\n\n")
		b.WriteString("| Period | Outcome | Document | Reason |\n|---|---|---|---|\n")
		for _, f := range s.Failures {
			fmt.Fprintf(&b, "| %s | %s | %s | %s |\n",
				f.Period.Format("2006-01-02"), f.Outcome, escapeCell(f.URL), escapeCell(f.Reason))
		}
		b.WriteString("\n")
	}

	if len(s.UnusedCorrections) > 0 {
		b.WriteString("## Unused corrections\n\n")
		for _, c := range s.UnusedCorrections {
			fmt.Fprintf(&b, "- `%s` %s", c.Identifier, c.FiledFor)
			if c.Note != "" {
				fmt.Fprintf(&b, " (%s)", c.Note)
			}
			b.WriteString("\n")
		}
	}

	return b.String()
}

// HTML renders the Markdown report to HTML.
func (s *Summary) HTML() ([]byte, error) {
	md := goldmark.New(goldmark.WithExtensions(extension.Table))
	var buf bytes.Buffer
	if err := md.Convert([]byte(s.Markdown()), &buf); err != nil {
		return nil, fmt.Errorf("failed to render report: %w", err)
	}
	return buf.Bytes(), nil
}

// WriteFile writes the report to path: HTML for .html/.htm, Markdown otherwise.
func (s *Summary) WriteFile(path string) error {
	var data []byte
	switch strings.ToLower(filepath.Ext(path)) {
	case ".html", ".htm":
		body, err := s.HTML()
		if err != nil {
			return err
		}
		data = body
	default:
		data = []byte(s.Markdown())
	}

	if err := os.MkdirAll(filepath.Dir(path), 0o755); err != nil {
		return fmt.Errorf("failed to create report dir: %w", err)
	}
	if err := os.WriteFile(path, data, 0o644); err != nil {
		return fmt.Errorf("failed to write report: %w", err)
	}
	return nil
}

func escapeCell(s string) string {
	s = strings.ReplaceAll(s, "|", `\|`)
	return strings.ReplaceAll(s, "\n", " ")
}

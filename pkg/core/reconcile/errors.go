package reconcile

import (
	"errors"
	"fmt"

	"filing_holdings/pkg/core/pipeline"
)

// Row-level drop reasons. Check with errors.Is.
var (
	// ErrMissingShares marks a row whose share count is empty.
	ErrMissingShares = errors.New("missing share count")
	// ErrExcludedPeriod marks a row from an excluded coverage year.
	ErrExcludedPeriod = errors.New("excluded period")
	// ErrUnparseable marks a row with a value, share count or registrant code
	// that is not a non-negative integer.
	ErrUnparseable = errors.New("unparseable number")
)

// RowError records why one aggregated row was dropped.
type RowError struct {
	Entry pipeline.Entry
	Err   error
}

func (e RowError) Error() string {
	return fmt.Sprintf("%s %s: %v", e.Entry.FiledFor.Format("2006-01-02"), e.Entry.Identifier, e.Err)
}

func (e RowError) Unwrap() error {
	return e.Err
}

package balance

import (
	"fmt"
	"strings"
)

// Input table names used in reports.
const (
	TableConsumers    = "consumers"
	TableSnapshots    = "balance_snapshots"
	TableTransactions = "transactions"
)

// DataIntegrityError describes a single input row that could not be used.
// The row is excluded from reconstruction; the batch continues.
type DataIntegrityError struct {
	Table      string
	Row        int
	ConsumerID string
	Field      string
	Value      string
	Reason     string
}

func (e DataIntegrityError) Error() string {
	return fmt.Sprintf("%s row %d [%s]: %s %q: %s", e.Table, e.Row, e.ConsumerID, e.Field, e.Value, e.Reason)
}

// MissingAnchorError lists consumers that have transactions, or were
// requested through the consumer roster, but have no balance snapshot. They
// are excluded from every output table.
type MissingAnchorError struct {
	ConsumerIDs []string
}

func (e *MissingAnchorError) Error() string {
	const preview = 5
	ids := e.ConsumerIDs
	suffix := ""
	if len(ids) > preview {
		ids = ids[:preview]
		suffix = ", ..."
	}
	return fmt.Sprintf("%d consumer(s) without a balance snapshot: %s%s", len(e.ConsumerIDs), strings.Join(ids, ", "), suffix)
}

// EmptyInputError reports an input table that held no rows at all.
type EmptyInputError struct {
	Table string
}

func (e EmptyInputError) Error() string {
	return fmt.Sprintf("no %s supplied", e.Table)
}

// Report collects everything that was recovered from locally during a run.
type Report struct {
	Integrity             []DataIntegrityError
	MissingAnchors        *MissingAnchorError
	Empty                 []EmptyInputError
	DuplicateTransactions int
	OutsideRoster         int
	ZeroOnAnchorDate      int
}

// ExcludedRows is the number of input rows dropped for any reason.
func (r Report) ExcludedRows() int {
	return len(r.Integrity) + r.DuplicateTransactions + r.OutsideRoster + r.ZeroOnAnchorDate
}

// ExcludedConsumers is the number of consumers left out for lack of an anchor.
func (r Report) ExcludedConsumers() int {
	if r.MissingAnchors == nil {
		return 0
	}
	return len(r.MissingAnchors.ConsumerIDs)
}

// Errors flattens the report into a list of errors, integrity problems first.
func (r Report) Errors() []error {
	var errs []error
	for _, e := range r.Integrity {
		errs = append(errs, e)
	}
	if r.MissingAnchors != nil {
		errs = append(errs, r.MissingAnchors)
	}
	for _, e := range r.Empty {
		errs = append(errs, e)
	}
	return errs
}

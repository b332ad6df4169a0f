package runlog

import (
	"encoding/csv"
	"fmt"
	"io"
	"os"
	"path/filepath"
	"strconv"
	"strings"
	"time"
)

// Entry is one row in the run log.
type Entry struct {
	Timestamp         time.Time
	RunID             string
	Snapshots         string
	Transactions      string
	Consumers         int
	ForwardRows       int
	BackwardRows      int
	FullRows          int
	ExcludedRows      int
	ExcludedConsumers int
}

// Header is the CSV header of the run log.
const Header = "timestamp,run_id,snapshots,transactions,consumers,forward_rows,backward_rows,full_rows,excluded_rows,excluded_consumers"

const (
	numFields            = 10
	colTimestamp         = 0
	colRunID             = 1
	colSnapshots         = 2
	colTransactions      = 3
	colConsumers         = 4
	colForwardRows       = 5
	colBackwardRows      = 6
	colFullRows          = 7
	colExcludedRows      = 8
	colExcludedConsumers = 9
)

// MarshalEntry converts an Entry to a CSV row.
func MarshalEntry(e Entry) []string {
	row := make([]string, numFields)
	row[colTimestamp] = e.Timestamp.UTC().Format(time.RFC3339)
	row[colRunID] = e.RunID
	row[colSnapshots] = e.Snapshots
	row[colTransactions] = e.Transactions
	row[colConsumers] = strconv.Itoa(e.Consumers)
	row[colForwardRows] = strconv.Itoa(e.ForwardRows)
	row[colBackwardRows] = strconv.Itoa(e.BackwardRows)
	row[colFullRows] = strconv.Itoa(e.FullRows)
	row[colExcludedRows] = strconv.Itoa(e.ExcludedRows)
	row[colExcludedConsumers] = strconv.Itoa(e.ExcludedConsumers)
	return row
}

// UnmarshalEntry converts a CSV row to an Entry.
func UnmarshalEntry(record []string) (Entry, error) {
	if len(record) != numFields {
		return Entry{}, fmt.Errorf("expected %d fields, got %d", numFields, len(record))
	}

	ts, err := time.Parse(time.RFC3339, record[colTimestamp])
	if err != nil {
		return Entry{}, fmt.Errorf("parsing timestamp %q: %w", record[colTimestamp], err)
	}

	e := Entry{
		Timestamp:    ts,
		RunID:        record[colRunID],
		Snapshots:    record[colSnapshots],
		Transactions: record[colTransactions],
	}

	counts := []struct {
		col int
		dst *int
	}{
		{colConsumers, &e.Consumers},
		{colForwardRows, &e.ForwardRows},
		{colBackwardRows, &e.BackwardRows},
		{colFullRows, &e.FullRows},
		{colExcludedRows, &e.ExcludedRows},
		{colExcludedConsumers, &e.ExcludedConsumers},
	}
	for _, c := range counts {
		n, err := strconv.Atoi(record[c.col])
		if err != nil {
			return Entry{}, fmt.Errorf("parsing count %q: %w", record[c.col], err)
		}
		*c.dst = n
	}
	return e, nil
}

// Append writes entries to the log at path, creating the file, its directory
// and the header if needed.
func Append(path string, entries []Entry) error {
	if err := os.MkdirAll(filepath.Dir(path), 0o755); err != nil {
		return fmt.Errorf("creating run log dir: %w", err)
	}

	needsHeader := false
	if _, err := os.Stat(path); os.IsNotExist(err) {
		needsHeader = true
	}

	f, err := os.OpenFile(path, os.O_APPEND|os.O_CREATE|os.O_WRONLY, 0o644)
	if err != nil {
		return fmt.Errorf("opening run log: %w", err)
	}
	defer f.Close()

	cw := csv.NewWriter(f)

	if needsHeader {
		if err := cw.Write(strings.Split(Header, ",")); err != nil {
			return fmt.Errorf("writing header: %w", err)
		}
	}

	for i, e := range entries {
		if err := cw.Write(MarshalEntry(e)); err != nil {
			return fmt.Errorf("writing entry %d: %w", i, err)
		}
	}

	cw.Flush()
	return cw.Error()
}

// Read returns all entries from the log at path.
// Returns an empty slice if the file does not exist.
func Read(path string) ([]Entry, error) {
	f, err := os.Open(path)
	if err != nil {
		if os.IsNotExist(err) {
			return nil, nil
		}
		return nil, fmt.Errorf("opening run log: %w", err)
	}
	defer f.Close()

	return readEntries(f)
}

func readEntries(r io.Reader) ([]Entry, error) {
	cr := csv.NewReader(r)
	cr.FieldsPerRecord = numFields

	records, err := cr.ReadAll()
	if err != nil {
		return nil, fmt.Errorf("reading run log CSV: %w", err)
	}

	if len(records) <= 1 {
		return nil, nil
	}

	var entries []Entry
	for i, rec := range records[1:] {
		e, err := UnmarshalEntry(rec)
		if err != nil {
			return nil, fmt.Errorf("row %d: %w", i+2, err)
		}
		entries = append(entries, e)
	}
	return entries, nil
}

package sink

import (
	"encoding/csv"
	"fmt"
	"io"
	"os"
	"path/filepath"
	"strings"

	"github.com/shopspring/decimal"

	"github.com/cleared-dev/runbal/internal/model"
)

const (
	numFields    = 6
	colConsumer  = 0
	colDate      = 1
	colSigned    = 2
	colRunning   = 3
	colCategory  = 4
	colDirection = 5
)

// CSVWriter writes each table to <Dir>/<name>.csv.
type CSVWriter struct {
	Dir string
}

// Format returns the writer name.
func (w *CSVWriter) Format() string { return "csv" }

// WriteTable writes events to <Dir>/<name>.csv. The file is written under a
// temporary name and renamed into place.
func (w *CSVWriter) WriteTable(name string, events []model.BalanceEvent) (string, error) {
	path := filepath.Join(w.Dir, name+".csv")
	err := writeAtomic(path, func(f io.Writer) error {
		return WriteEvents(f, events)
	})
	if err != nil {
		return "", fmt.Errorf("writing %s: %w", name, err)
	}
	return path, nil
}

// WriteEvents writes events to w as CSV, including the header.
func WriteEvents(w io.Writer, events []model.BalanceEvent) error {
	cw := csv.NewWriter(w)

	if err := cw.Write(strings.Split(Header, ",")); err != nil {
		return fmt.Errorf("writing header: %w", err)
	}

	for i, e := range events {
		if err := cw.Write(MarshalEvent(e)); err != nil {
			return fmt.Errorf("writing row %d: %w", i+2, err)
		}
	}
	cw.Flush()
	return cw.Error()
}

// readEvents reads an output table written by WriteEvents.
func readEvents(r io.Reader) ([]model.BalanceEvent, error) {
	cr := csv.NewReader(r)
	cr.FieldsPerRecord = numFields

	records, err := cr.ReadAll()
	if err != nil {
		return nil, fmt.Errorf("reading balance CSV: %w", err)
	}

	if len(records) == 0 {
		return nil, nil
	}

	// Skip header row.
	var events []model.BalanceEvent
	for i, rec := range records[1:] {
		e, err := UnmarshalEvent(rec)
		if err != nil {
			return nil, fmt.Errorf("row %d: %w", i+2, err)
		}
		events = append(events, e)
	}
	return events, nil
}

// MarshalEvent converts a BalanceEvent to a CSV row. The anchor row has empty
// category and direction.
func MarshalEvent(e model.BalanceEvent) []string {
	row := make([]string, numFields)
	row[colConsumer] = e.ConsumerID
	row[colDate] = model.FormatDate(e.PostedDate)
	row[colSigned] = e.SignedAmount.String()
	row[colRunning] = e.RunningBalance.String()
	row[colCategory] = e.Category
	row[colDirection] = string(e.Direction)
	return row
}

// UnmarshalEvent converts a CSV row to a BalanceEvent. A row with no
// direction is read back as the anchor.
func UnmarshalEvent(record []string) (model.BalanceEvent, error) {
	if len(record) != numFields {
		return model.BalanceEvent{}, fmt.Errorf("expected %d fields, got %d", numFields, len(record))
	}

	date, err := model.ParseDate(record[colDate])
	if err != nil {
		return model.BalanceEvent{}, fmt.Errorf("parsing posted_date: %w", err)
	}

	signed, err := decimal.NewFromString(record[colSigned])
	if err != nil {
		return model.BalanceEvent{}, fmt.Errorf("parsing signed_amount %q: %w", record[colSigned], err)
	}

	running, err := decimal.NewFromString(record[colRunning])
	if err != nil {
		return model.BalanceEvent{}, fmt.Errorf("parsing running_balance %q: %w", record[colRunning], err)
	}

	return model.BalanceEvent{
		ConsumerID:     record[colConsumer],
		PostedDate:     date,
		SignedAmount:   signed,
		RunningBalance: running,
		Category:       record[colCategory],
		Direction:      model.Direction(record[colDirection]),
		Anchor:         record[colDirection] == "",
	}, nil
}

func writeAtomic(path string, write func(io.Writer) error) error {
	if err := os.MkdirAll(filepath.Dir(path), 0o755); err != nil {
		return fmt.Errorf("creating output dir: %w", err)
	}

	tmp, err := os.CreateTemp(filepath.Dir(path), "."+filepath.Base(path)+".*")
	if err != nil {
		return fmt.Errorf("creating temp file: %w", err)
	}
	defer os.Remove(tmp.Name())

	if err := tmp.Chmod(0o644); err != nil {
		tmp.Close()
		return fmt.Errorf("setting file mode: %w", err)
	}

	if err := write(tmp); err != nil {
		tmp.Close()
		return err
	}
	if err := tmp.Close(); err != nil {
		return fmt.Errorf("closing temp file: %w", err)
	}
	if err := os.Rename(tmp.Name(), path); err != nil {
		return fmt.Errorf("renaming into place: %w", err)
	}
	return nil
}

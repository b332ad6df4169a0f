package source

import (
	"encoding/csv"
	"fmt"
	"io"
	"os"

	"github.com/cleared-dev/runbal/internal/balance"
	"github.com/cleared-dev/runbal/internal/model"
)

// CSVReader reads comma-separated tables with a header row. Columns may
// appear in any order; unknown columns are ignored.
type CSVReader struct{}

// Format returns the reader name.
func (c *CSVReader) Format() string { return "csv" }

// ReadConsumers reads a consumers table from path.
func (c *CSVReader) ReadConsumers(path string) ([]model.Consumer, error) {
	return readFile(path, ReadConsumersCSV)
}

// ReadSnapshots reads a balance snapshots table from path.
func (c *CSVReader) ReadSnapshots(path string) ([]model.RawSnapshot, error) {
	return readFile(path, ReadSnapshotsCSV)
}

// ReadTransactions reads a transactions table from path.
func (c *CSVReader) ReadTransactions(path string) ([]model.RawTransaction, error) {
	return readFile(path, ReadTransactionsCSV)
}

func readFile[T any](path string, read func(io.Reader) ([]T, error)) ([]T, error) {
	f, err := os.Open(path)
	if err != nil {
		return nil, fmt.Errorf("opening %s: %w", path, err)
	}
	defer f.Close()

	rows, err := read(f)
	if err != nil {
		return nil, fmt.Errorf("reading %s: %w", path, err)
	}
	return rows, nil
}

// ReadConsumersCSV reads a consumers table.
func ReadConsumersCSV(r io.Reader) ([]model.Consumer, error) {
	header, records, err := readRecords(r, balance.TableConsumers)
	if err != nil || header == nil {
		return nil, err
	}
	idx, err := columnIndex(balance.TableConsumers, header, []string{ColConsumerID}, nil)
	if err != nil {
		return nil, err
	}

	consumers := make([]model.Consumer, 0, len(records))
	for _, rec := range records {
		consumers = append(consumers, model.Consumer{ID: rec[idx[ColConsumerID]]})
	}
	return consumers, nil
}

// ReadSnapshotsCSV reads a balance snapshots table.
func ReadSnapshotsCSV(r io.Reader) ([]model.RawSnapshot, error) {
	header, records, err := readRecords(r, balance.TableSnapshots)
	if err != nil || header == nil {
		return nil, err
	}
	idx, err := columnIndex(balance.TableSnapshots, header, []string{ColConsumerID, ColBalanceDate, ColBalance}, nil)
	if err != nil {
		return nil, err
	}

	snaps := make([]model.RawSnapshot, 0, len(records))
	for i, rec := range records {
		snaps = append(snaps, model.RawSnapshot{
			Row:        i + 1,
			ConsumerID: rec[idx[ColConsumerID]],
			Date:       rec[idx[ColBalanceDate]],
			Balance:    rec[idx[ColBalance]],
		})
	}
	return snaps, nil
}

// ReadTransactionsCSV reads a transactions table. The category column is
// optional.
func ReadTransactionsCSV(r io.Reader) ([]model.RawTransaction, error) {
	header, records, err := readRecords(r, balance.TableTransactions)
	if err != nil || header == nil {
		return nil, err
	}
	idx, err := columnIndex(balance.TableTransactions, header,
		[]string{ColConsumerID, ColPostedDate, ColAmount, ColCreditOrDebit},
		[]string{ColCategory})
	if err != nil {
		return nil, err
	}

	txns := make([]model.RawTransaction, 0, len(records))
	for i, rec := range records {
		txn := model.RawTransaction{
			Row:        i + 1,
			ConsumerID: rec[idx[ColConsumerID]],
			PostedDate: rec[idx[ColPostedDate]],
			Amount:     rec[idx[ColAmount]],
			Direction:  rec[idx[ColCreditOrDebit]],
		}
		if ci := idx[ColCategory]; ci >= 0 {
			txn.Category = rec[ci]
		}
		txns = append(txns, txn)
	}
	return txns, nil
}

// readRecords returns the header and data rows. A completely empty input
// yields a nil header and no error.
func readRecords(r io.Reader, table string) ([]string, [][]string, error) {
	cr := csv.NewReader(r)

	records, err := cr.ReadAll()
	if err != nil {
		return nil, nil, fmt.Errorf("reading %s CSV: %w", table, err)
	}
	if len(records) == 0 {
		return nil, nil, nil
	}
	return records[0], records[1:], nil
}

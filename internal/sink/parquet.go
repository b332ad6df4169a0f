package sink

import (
	"fmt"
	"io"
	"path/filepath"

	"github.com/xitongsys/parquet-go-source/writerfile"
	"github.com/xitongsys/parquet-go/parquet"
	"github.com/xitongsys/parquet-go/writer"

	"github.com/cleared-dev/runbal/internal/model"
)

// ParquetWriter writes each table to <Dir>/<name>.parquet with SNAPPY
// compression. Amounts are stored as DOUBLE; the anchor row has null category
// and direction.
type ParquetWriter struct {
	Dir string
}

type parquetEvent struct {
	ConsumerID     string  `parquet:"name=consumer_id, type=BYTE_ARRAY, convertedtype=UTF8"`
	PostedDate     string  `parquet:"name=posted_date, type=BYTE_ARRAY, convertedtype=UTF8"`
	SignedAmount   float64 `parquet:"name=signed_amount, type=DOUBLE"`
	RunningBalance float64 `parquet:"name=running_balance, type=DOUBLE"`
	Category       *string `parquet:"name=category, type=BYTE_ARRAY, convertedtype=UTF8, repetitiontype=OPTIONAL"`
	CreditOrDebit  *string `parquet:"name=credit_or_debit, type=BYTE_ARRAY, convertedtype=UTF8, repetitiontype=OPTIONAL"`
}

// Format returns the writer name.
func (w *ParquetWriter) Format() string { return "parquet" }

// WriteTable writes events to <Dir>/<name>.parquet.
func (w *ParquetWriter) WriteTable(name string, events []model.BalanceEvent) (string, error) {
	path := filepath.Join(w.Dir, name+".parquet")
	err := writeAtomic(path, func(f io.Writer) error {
		return writeParquet(f, events)
	})
	if err != nil {
		return "", fmt.Errorf("writing %s: %w", name, err)
	}
	return path, nil
}

func writeParquet(w io.Writer, events []model.BalanceEvent) error {
	fw := writerfile.NewWriterFile(w)
	pw, err := writer.NewParquetWriter(fw, new(parquetEvent), 1)
	if err != nil {
		return fmt.Errorf("parquet schema: %w", err)
	}
	pw.CompressionType = parquet.CompressionCodec_SNAPPY

	for _, e := range events {
		if err := pw.Write(toParquet(e)); err != nil {
			pw.WriteStop()
			return fmt.Errorf("parquet write: %w", err)
		}
	}
	if err := pw.WriteStop(); err != nil {
		return fmt.Errorf("parquet flush: %w", err)
	}
	return nil
}

func toParquet(e model.BalanceEvent) *parquetEvent {
	row := &parquetEvent{
		ConsumerID:     e.ConsumerID,
		PostedDate:     model.FormatDate(e.PostedDate),
		SignedAmount:   e.SignedAmount.InexactFloat64(),
		RunningBalance: e.RunningBalance.InexactFloat64(),
	}
	if e.Direction != "" {
		category := e.Category
		direction := string(e.Direction)
		row.Category = &category
		row.CreditOrDebit = &direction
	}
	return row
}

package source

import (
	"fmt"
	"math"
	"strconv"
	"strings"

	"github.com/xitongsys/parquet-go-source/local"
	"github.com/xitongsys/parquet-go/common"
	"github.com/xitongsys/parquet-go/reader"

	"github.com/cleared-dev/runbal/internal/balance"
	"github.com/cleared-dev/runbal/internal/model"
)

// ParquetReader reads parquet tables. Columns are addressed by name through
// the file's own schema, so column order, aliases and REQUIRED or OPTIONAL
// repetition all work. Identifiers, dates and categories are expected as UTF8
// and amounts as DOUBLE; nulls surface as integrity errors.
type ParquetReader struct {
	// Parallelism is the number of goroutines parquet-go uses per file.
	Parallelism int64
}

// Format returns the reader name.
func (p *ParquetReader) Format() string { return "parquet" }

// ReadConsumers reads a consumers table from path.
func (p *ParquetReader) ReadConsumers(path string) ([]model.Consumer, error) {
	t, err := readParquet(path, balance.TableConsumers, p.parallelism(), []string{ColConsumerID}, nil)
	if err != nil {
		return nil, err
	}
	consumers := make([]model.Consumer, t.rows)
	for i := range consumers {
		consumers[i] = model.Consumer{ID: t.get(ColConsumerID, i)}
	}
	return consumers, nil
}

// ReadSnapshots reads a balance snapshots table from path.
func (p *ParquetReader) ReadSnapshots(path string) ([]model.RawSnapshot, error) {
	t, err := readParquet(path, balance.TableSnapshots, p.parallelism(),
		[]string{ColConsumerID, ColBalanceDate, ColBalance}, nil)
	if err != nil {
		return nil, err
	}
	snaps := make([]model.RawSnapshot, t.rows)
	for i := range snaps {
		snaps[i] = model.RawSnapshot{
			Row:        i + 1,
			ConsumerID: t.get(ColConsumerID, i),
			Date:       t.get(ColBalanceDate, i),
			Balance:    t.get(ColBalance, i),
		}
	}
	return snaps, nil
}

// ReadTransactions reads a transactions table from path. The category column
// is optional.
func (p *ParquetReader) ReadTransactions(path string) ([]model.RawTransaction, error) {
	t, err := readParquet(path, balance.TableTransactions, p.parallelism(),
		[]string{ColConsumerID, ColPostedDate, ColAmount, ColCreditOrDebit}, []string{ColCategory})
	if err != nil {
		return nil, err
	}
	txns := make([]model.RawTransaction, t.rows)
	for i := range txns {
		txns[i] = model.RawTransaction{
			Row:        i + 1,
			ConsumerID: t.get(ColConsumerID, i),
			PostedDate: t.get(ColPostedDate, i),
			Amount:     t.get(ColAmount, i),
			Direction:  t.get(ColCreditOrDebit, i),
			Category:   t.get(ColCategory, i),
		}
	}
	return txns, nil
}

func (p *ParquetReader) parallelism() int64 {
	if p.Parallelism <= 0 {
		return 1
	}
	return p.Parallelism
}

// parquetTable holds the columns of a parquet file keyed by canonical name.
type parquetTable struct {
	rows int
	cols map[string][]interface{}
}

// get returns the cell as text. Absent optional columns read as empty.
func (t *parquetTable) get(col string, row int) string {
	values, ok := t.cols[col]
	if !ok {
		return ""
	}
	return cell(values[row])
}

// readParquet opens path without binding a Go schema, resolves the leaf
// columns of its footer through columnIndex and reads the wanted columns.
func readParquet(path, table string, np int64, required, optional []string) (*parquetTable, error) {
	fr, err := local.NewLocalFileReader(path)
	if err != nil {
		return nil, fmt.Errorf("opening %s: %w", path, err)
	}
	defer fr.Close()

	pr, err := reader.NewParquetReader(fr, nil, np)
	if err != nil {
		return nil, fmt.Errorf("reading %s parquet footer: %w", table, err)
	}
	defer pr.ReadStop()

	sh := pr.SchemaHandler
	header := make([]string, len(sh.ValueColumns))
	for i, inPath := range sh.ValueColumns {
		exPath := sh.InPathToExPath[inPath]
		header[i] = exPath[strings.LastIndex(exPath, common.PAR_GO_PATH_DELIMITER)+1:]
	}
	idx, err := columnIndex(table, header, required, optional)
	if err != nil {
		return nil, err
	}

	t := &parquetTable{rows: int(pr.GetNumRows()), cols: make(map[string][]interface{})}
	if t.rows == 0 {
		return t, nil
	}
	for _, col := range append(append([]string{}, required...), optional...) {
		pos := idx[col]
		if pos < 0 {
			continue
		}
		values, _, _, err := pr.ReadColumnByIndex(int64(pos), int64(t.rows))
		if err != nil {
			return nil, fmt.Errorf("reading %s parquet column %s: %w", table, header[pos], err)
		}
		if len(values) != t.rows {
			return nil, fmt.Errorf("%s: parquet column %s has %d values for %d rows: %w",
				table, header[pos], len(values), t.rows, ErrSchemaMismatch)
		}
		t.cols[col] = values
	}
	return t, nil
}

// cell renders a parquet value the way the CSV reader would see it: null
// becomes empty, NaN and infinities keep their names so the normalizer can
// reject them.
func cell(v interface{}) string {
	switch x := v.(type) {
	case nil:
		return ""
	case string:
		return x
	case []byte:
		return string(x)
	case float64:
		return float(x)
	case float32:
		return float(float64(x))
	case int32:
		return strconv.FormatInt(int64(x), 10)
	case int64:
		return strconv.FormatInt(x, 10)
	case bool:
		return strconv.FormatBool(x)
	default:
		return fmt.Sprint(x)
	}
}

func float(f float64) string {
	switch {
	case math.IsNaN(f):
		return "NaN"
	case math.IsInf(f, 1):
		return "+Inf"
	case math.IsInf(f, -1):
		return "-Inf"
	}
	return strconv.FormatFloat(f, 'f', -1, 64)
}

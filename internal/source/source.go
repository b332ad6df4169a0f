package source

import (
	"errors"
	"fmt"
	"slices"
	"strings"

	"github.com/cleared-dev/runbal/internal/model"
)

// ErrSchemaMismatch is returned when an input table lacks a required column.
var ErrSchemaMismatch = errors.New("schema mismatch")

// Reader loads the three input tables from files of one format.
type Reader interface {
	Format() string
	ReadConsumers(path string) ([]model.Consumer, error)
	ReadSnapshots(path string) ([]model.RawSnapshot, error)
	ReadTransactions(path string) ([]model.RawTransaction, error)
}

// Registry holds named readers.
type Registry struct {
	readers map[string]Reader
}

// NewRegistry creates an empty reader registry.
func NewRegistry() *Registry {
	return &Registry{readers: make(map[string]Reader)}
}

// Register adds a reader. Panics on duplicate format.
func (r *Registry) Register(rd Reader) {
	key := strings.ToLower(rd.Format())
	if _, ok := r.readers[key]; ok {
		panic("duplicate reader format: " + key)
	}
	r.readers[key] = rd
}

// Get returns the reader for format, or nil.
func (r *Registry) Get(format string) Reader {
	return r.readers[strings.ToLower(format)]
}

// Formats returns the registered format names, sorted.
func (r *Registry) Formats() []string {
	names := make([]string, 0, len(r.readers))
	for name := range r.readers {
		names = append(names, name)
	}
	slices.Sort(names)
	return names
}

// DefaultRegistry returns a registry with all built-in readers.
// parquetParallelism is passed to the parquet reader; values below 1 mean 1.
func DefaultRegistry(parquetParallelism int64) *Registry {
	r := NewRegistry()
	r.Register(&CSVReader{})
	r.Register(&ParquetReader{Parallelism: parquetParallelism})
	return r
}

// Column names of the input tables.
const (
	ColConsumerID    = "consumer_id"
	ColBalanceDate   = "balance_date"
	ColBalance       = "balance"
	ColPostedDate    = "posted_date"
	ColAmount        = "amount"
	ColCreditOrDebit = "credit_or_debit"
	ColCategory      = "category"
)

// aliases maps alternative header names onto canonical column names.
var aliases = map[string]string{
	"prism_consumer_id": ColConsumerID,
}

func canonical(name string) string {
	name = strings.ToLower(strings.TrimSpace(strings.TrimPrefix(name, "\ufeff")))
	if c, ok := aliases[name]; ok {
		return c
	}
	return name
}

// columnIndex resolves column positions from a header row. Every name in
// required must be present; optional names map to -1 when absent.
func columnIndex(table string, header, required, optional []string) (map[string]int, error) {
	idx := make(map[string]int, len(header))
	for i, h := range header {
		c := canonical(h)
		if _, dup := idx[c]; dup {
			return nil, fmt.Errorf("%s: duplicate column %q: %w", table, c, ErrSchemaMismatch)
		}
		idx[c] = i
	}

	var missing []string
	for _, col := range required {
		if _, ok := idx[col]; !ok {
			missing = append(missing, col)
		}
	}
	if len(missing) > 0 {
		return nil, fmt.Errorf("%s: missing column(s) %s: %w", table, strings.Join(missing, ", "), ErrSchemaMismatch)
	}

	for _, col := range optional {
		if _, ok := idx[col]; !ok {
			idx[col] = -1
		}
	}
	return idx, nil
}

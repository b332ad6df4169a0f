package job

import (
	"bytes"
	"context"
	"os"
	"path/filepath"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"github.com/xitongsys/parquet-go-source/local"
	"github.com/xitongsys/parquet-go/writer"

	"github.com/cleared-dev/runbal/internal/config"
	"github.com/cleared-dev/runbal/internal/logger"
	"github.com/cleared-dev/runbal/internal/runlog"
	"github.com/cleared-dev/runbal/internal/sink"
	"github.com/cleared-dev/runbal/internal/source"
	"github.com/cleared-dev/runbal/internal/store/sqlite"
)

const (
	snapshotsCSV = `consumer_id,balance_date,balance
C1,2023-01-10,60
C1,2023-01-10,40
C1,2023-02-10,999
C2,2023-02-01,200
C3,2023-03-01,5
`
	transactionsCSV = `consumer_id,posted_date,amount,credit_or_debit,category
C1,2023-01-15,50,CREDIT,PAYCHECK
C1,2023-01-20,20,DEBIT,GROCERIES
C2,2023-01-20,30,DEBIT,RENT
C4,2023-01-20,1,DEBIT,FEES
C1,2023-01-21,oops,DEBIT,FEES
`
	wantFull = sink.Header + `
C1,2023-01-10,0,100,,
C1,2023-01-15,50,150,PAYCHECK,CREDIT
C1,2023-01-20,-20,130,GROCERIES,DEBIT
C2,2023-01-20,-30,170,RENT,DEBIT
C2,2023-02-01,0,200,,
C3,2023-03-01,0,5,,
`
	wantForward = sink.Header + `
C1,2023-01-10,0,100,,
C1,2023-01-15,50,150,PAYCHECK,CREDIT
C1,2023-01-20,-20,130,GROCERIES,DEBIT
C2,2023-02-01,0,200,,
C3,2023-03-01,0,5,,
`
	wantBackward = sink.Header + `
C1,2023-01-10,0,100,,
C2,2023-01-20,-30,170,RENT,DEBIT
C2,2023-02-01,0,200,,
C3,2023-03-01,0,5,,
`
)

var testTime = time.Date(2025, 1, 15, 10, 30, 0, 0, time.UTC)

func writeFile(t *testing.T, path, content string) {
	t.Helper()
	require.NoError(t, os.MkdirAll(filepath.Dir(path), 0o755))
	require.NoError(t, os.WriteFile(path, []byte(content), 0o644))
}

// setup writes the scenario inputs into a fresh directory and returns a
// config pointing at them.
func setup(t *testing.T) *config.Config {
	t.Helper()
	dir := t.TempDir()
	writeFile(t, filepath.Join(dir, "data", "balances.csv"), snapshotsCSV)
	writeFile(t, filepath.Join(dir, "data", "transactions.csv"), transactionsCSV)

	cfg := config.Default()
	cfg.Inputs.Snapshots = filepath.Join(dir, "data", "balances.csv")
	cfg.Inputs.Transactions = filepath.Join(dir, "data", "transactions.csv")
	cfg.Outputs.Dir = filepath.Join(dir, "out")
	cfg.Observability.RunLog = filepath.Join(dir, "out", "runs.csv")
	return cfg
}

func newTestRunner() *Runner {
	r := NewRunner(nil)
	r.now = func() time.Time { return testTime }
	return r
}

func readOutput(t *testing.T, cfg *config.Config, table string) string {
	t.Helper()
	data, err := os.ReadFile(filepath.Join(cfg.Outputs.Dir, table+".csv"))
	require.NoError(t, err)
	return string(data)
}

func TestRun_Scenarios(t *testing.T) {
	cfg := setup(t)

	sum, err := newTestRunner().Run(context.Background(), cfg)
	require.NoError(t, err)

	assert.Equal(t, wantFull, readOutput(t, cfg, sink.TableFull))
	assert.Equal(t, wantForward, readOutput(t, cfg, sink.TableForward))
	assert.Equal(t, wantBackward, readOutput(t, cfg, sink.TableBackward))

	assert.Equal(t, 3, sum.Consumers)
	assert.Equal(t, map[string]int{
		sink.TableForward:  5,
		sink.TableBackward: 4,
		sink.TableFull:     6,
	}, sum.Rows)
	assert.Len(t, sum.Outputs, 3)
	assert.Contains(t, sum.RunID, "run-20250115-103000-")

	require.NotNil(t, sum.Report.MissingAnchors)
	assert.Equal(t, []string{"C4"}, sum.Report.MissingAnchors.ConsumerIDs)
	require.Len(t, sum.Report.Integrity, 1)
	assert.Equal(t, 5, sum.Report.Integrity[0].Row)
	assert.Equal(t, 1, sum.Report.ExcludedRows())
}

func TestRun_Idempotent(t *testing.T) {
	cfg := setup(t)
	r := newTestRunner()

	_, err := r.Run(context.Background(), cfg)
	require.NoError(t, err)
	first := map[string]string{}
	for _, name := range Tables {
		first[name] = readOutput(t, cfg, name)
	}

	cfg.Processing.Workers = 1
	_, err = r.Run(context.Background(), cfg)
	require.NoError(t, err)
	for _, name := range Tables {
		assert.Equal(t, first[name], readOutput(t, cfg, name), name)
	}

	entries, err := runlog.Read(cfg.Observability.RunLog)
	require.NoError(t, err)
	require.Len(t, entries, 2)
	assert.NotEqual(t, entries[0].RunID, entries[1].RunID)
	assert.Equal(t, 6, entries[1].FullRows)
	assert.Equal(t, 1, entries[1].ExcludedConsumers)
}

func TestRun_AllOutputFormats(t *testing.T) {
	cfg := setup(t)
	cfg.Outputs.Formats = []string{config.FormatCSV, config.FormatParquet, config.FormatSQLite}
	cfg.Observability.MetricsPath = filepath.Join(cfg.Outputs.Dir, "runbal.prom")

	sum, err := newTestRunner().Run(context.Background(), cfg)
	require.NoError(t, err)
	assert.Len(t, sum.Outputs, 9)

	for _, name := range Tables {
		assert.FileExists(t, filepath.Join(cfg.Outputs.Dir, name+".parquet"))
	}

	store, err := sqlite.New(cfg.SQLiteFile())
	require.NoError(t, err)
	defer store.Close()

	full, err := store.ReadTable(sink.TableFull)
	require.NoError(t, err)
	require.Len(t, full, 6)
	assert.Equal(t, "170", full[3].RunningBalance.String())

	runs, err := store.Runs()
	require.NoError(t, err)
	require.Len(t, runs, 1)
	assert.Equal(t, sum.RunID, runs[0].RunID)
	assert.Equal(t, 3, runs[0].Consumers)

	metrics, err := os.ReadFile(cfg.Observability.MetricsPath)
	require.NoError(t, err)
	assert.Contains(t, string(metrics), "runbal_output_rows")
	assert.Contains(t, string(metrics), sum.RunID)
}

func TestRun_Roster(t *testing.T) {
	cfg := setup(t)
	cfg.Inputs.Consumers = filepath.Join(filepath.Dir(cfg.Inputs.Snapshots), "consumers.csv")
	writeFile(t, cfg.Inputs.Consumers, "consumer_id\nC1\nC2\nC5\n")

	sum, err := newTestRunner().Run(context.Background(), cfg)
	require.NoError(t, err)

	assert.Equal(t, 2, sum.Consumers)
	assert.Equal(t, 2, sum.Report.OutsideRoster)
	require.NotNil(t, sum.Report.MissingAnchors)
	assert.Equal(t, []string{"C5"}, sum.Report.MissingAnchors.ConsumerIDs)
	assert.NotContains(t, readOutput(t, cfg, sink.TableFull), "C3,")
}

func TestRun_EmptyTransactions(t *testing.T) {
	cfg := setup(t)
	writeFile(t, cfg.Inputs.Transactions, "consumer_id,posted_date,amount,credit_or_debit,category\n")

	sum, err := newTestRunner().Run(context.Background(), cfg)
	require.NoError(t, err)

	require.Len(t, sum.Report.Empty, 1)
	assert.Equal(t, 3, sum.Consumers)
	assert.Equal(t, 3, sum.Rows[sink.TableFull])
}

func TestRun_LogsRunID(t *testing.T) {
	cfg := setup(t)
	var buf bytes.Buffer
	log, err := logger.NewWithOptions(logger.Options{Level: "info", Format: logger.FormatJSON, Out: &buf})
	require.NoError(t, err)

	sum, err := newTestRunner().Run(logger.WithContext(context.Background(), log), cfg)
	require.NoError(t, err)

	out := buf.String()
	assert.Contains(t, out, `"run_id":"`+sum.RunID+`"`)
	assert.Contains(t, out, `"message":"run complete"`)
	assert.Contains(t, out, "consumers excluded without a balance snapshot")
}

func TestRun_Errors(t *testing.T) {
	t.Run("invalid config", func(t *testing.T) {
		cfg := setup(t)
		cfg.Processing.Workers = 0
		_, err := newTestRunner().Run(context.Background(), cfg)
		assert.ErrorContains(t, err, "invalid config")
	})

	t.Run("missing input file", func(t *testing.T) {
		cfg := setup(t)
		cfg.Inputs.Transactions = filepath.Join(t.TempDir(), "nope.csv")
		_, err := newTestRunner().Run(context.Background(), cfg)
		require.Error(t, err)
		assert.ErrorIs(t, err, os.ErrNotExist)
		assert.Contains(t, err.Error(), "loading transactions")
	})

	t.Run("missing column", func(t *testing.T) {
		cfg := setup(t)
		writeFile(t, cfg.Inputs.Snapshots, "consumer_id,balance\nC1,100\n")
		_, err := newTestRunner().Run(context.Background(), cfg)
		assert.ErrorIs(t, err, source.ErrSchemaMismatch)
	})

	t.Run("unregistered format", func(t *testing.T) {
		cfg := setup(t)
		_, err := NewRunner(source.NewRegistry()).Run(context.Background(), cfg)
		assert.ErrorContains(t, err, `unknown input format "csv"`)
	})

	t.Run("cancelled", func(t *testing.T) {
		cfg := setup(t)
		ctx, cancel := context.WithCancel(context.Background())
		cancel()
		_, err := newTestRunner().Run(ctx, cfg)
		assert.ErrorIs(t, err, context.Canceled)
		assert.NoFileExists(t, filepath.Join(cfg.Outputs.Dir, sink.TableFull+".csv"))
	})
}

type prismSnapshot struct {
	ConsumerID  string  `parquet:"name=prism_consumer_id, type=BYTE_ARRAY, convertedtype=UTF8"`
	BalanceDate string  `parquet:"name=balance_date, type=BYTE_ARRAY, convertedtype=UTF8"`
	Balance     float64 `parquet:"name=balance, type=DOUBLE"`
}

type prismTransaction struct {
	ConsumerID    string  `parquet:"name=prism_consumer_id, type=BYTE_ARRAY, convertedtype=UTF8"`
	PostedDate    string  `parquet:"name=posted_date, type=BYTE_ARRAY, convertedtype=UTF8"`
	Amount        float64 `parquet:"name=amount, type=DOUBLE"`
	CreditOrDebit string  `parquet:"name=credit_or_debit, type=BYTE_ARRAY, convertedtype=UTF8"`
	Category      string  `parquet:"name=category, type=BYTE_ARRAY, convertedtype=UTF8"`
}

func writeParquet[T any](t *testing.T, path string, rows []T) {
	t.Helper()
	fw, err := local.NewLocalFileWriter(path)
	require.NoError(t, err)
	pw, err := writer.NewParquetWriter(fw, new(T), 1)
	require.NoError(t, err)
	for i := range rows {
		require.NoError(t, pw.Write(&rows[i]))
	}
	require.NoError(t, pw.WriteStop())
	require.NoError(t, fw.Close())
}

func TestRun_ParquetInputs(t *testing.T) {
	dir := t.TempDir()
	cfg := config.Default()
	cfg.Inputs.Format = config.FormatParquet
	cfg.Inputs.Snapshots = filepath.Join(dir, "balances.parquet")
	cfg.Inputs.Transactions = filepath.Join(dir, "transactions.parquet")
	cfg.Outputs.Dir = filepath.Join(dir, "out")
	cfg.Processing.ParquetParallelism = 3

	writeParquet(t, cfg.Inputs.Snapshots, []prismSnapshot{
		{ConsumerID: "C1", BalanceDate: "2023-01-10", Balance: 60},
		{ConsumerID: "C1", BalanceDate: "2023-01-10", Balance: 40},
		{ConsumerID: "C1", BalanceDate: "2023-02-10", Balance: 999},
		{ConsumerID: "C2", BalanceDate: "2023-02-01", Balance: 200},
		{ConsumerID: "C3", BalanceDate: "2023-03-01", Balance: 5},
	})
	writeParquet(t, cfg.Inputs.Transactions, []prismTransaction{
		{ConsumerID: "C1", PostedDate: "2023-01-15", Amount: 50, CreditOrDebit: "CREDIT", Category: "PAYCHECK"},
		{ConsumerID: "C1", PostedDate: "2023-01-20", Amount: 20, CreditOrDebit: "DEBIT", Category: "GROCERIES"},
		{ConsumerID: "C2", PostedDate: "2023-01-20", Amount: 30, CreditOrDebit: "DEBIT", Category: "RENT"},
		{ConsumerID: "C4", PostedDate: "2023-01-20", Amount: 1, CreditOrDebit: "DEBIT", Category: "FEES"},
	})

	sum, err := newTestRunner().Run(context.Background(), cfg)
	require.NoError(t, err)

	assert.Equal(t, wantFull, readOutput(t, cfg, sink.TableFull))
	assert.Equal(t, 1, sum.Report.ExcludedConsumers())
}

package job

import (
	"context"
	"errors"
	"fmt"
	"os"
	"time"

	"github.com/rs/zerolog"

	"github.com/cleared-dev/runbal/internal/balance"
	"github.com/cleared-dev/runbal/internal/config"
	"github.com/cleared-dev/runbal/internal/id"
	"github.com/cleared-dev/runbal/internal/logger"
	"github.com/cleared-dev/runbal/internal/metrics"
	"github.com/cleared-dev/runbal/internal/model"
	"github.com/cleared-dev/runbal/internal/roster"
	"github.com/cleared-dev/runbal/internal/runlog"
	"github.com/cleared-dev/runbal/internal/sink"
	"github.com/cleared-dev/runbal/internal/source"
	"github.com/cleared-dev/runbal/internal/store/sqlite"
)

// Tables lists the output tables in the order they are written.
var Tables = []string{sink.TableForward, sink.TableBackward, sink.TableFull}

// Summary describes a completed run.
type Summary struct {
	RunID     string
	Consumers int
	Rows      map[string]int // output table name -> rows
	Outputs   []string       // everything written, in write order
	Report    balance.Report
	Duration  time.Duration
}

// Runner executes reconstruction jobs.
type Runner struct {
	sources *source.Registry
	now     func() time.Time
}

// NewRunner creates a Runner reading inputs through sources. A nil registry
// means the built-in readers, configured from each run's config.
func NewRunner(sources *source.Registry) *Runner {
	return &Runner{sources: sources, now: time.Now}
}

// Run loads the configured inputs, reconstructs every timeline and writes the
// output tables in every configured format. Row-level problems end up in the
// summary's report; Run fails only on configuration, I/O and schema errors.
func (r *Runner) Run(ctx context.Context, cfg *config.Config) (*Summary, error) {
	if err := cfg.Validate(); err != nil {
		return nil, fmt.Errorf("invalid config: %w", err)
	}

	started := r.now()
	runID := id.NewRunID(started)
	log := logger.FromContext(ctx).With().Str("run_id", runID).Logger()
	ctx = logger.WithContext(ctx, log)

	sources := r.sources
	if sources == nil {
		sources = source.DefaultRegistry(int64(cfg.Processing.ParquetParallelism))
	}
	reader := sources.Get(cfg.Inputs.Format)
	if reader == nil {
		return nil, fmt.Errorf("unknown input format %q (available: %v)", cfg.Inputs.Format, sources.Formats())
	}

	in, ros, err := load(reader, cfg.Inputs)
	if err != nil {
		return nil, err
	}
	ev := log.Info().
		Str("format", reader.Format()).
		Int("snapshots", len(in.Snapshots)).
		Int("transactions", len(in.Transactions))
	if ros != nil {
		ev = ev.Int("roster", ros.Len())
	}
	ev.Msg("inputs loaded")

	rec := metrics.NewRecorder(runID)
	opts := balance.Options{
		Workers:            cfg.Processing.Workers,
		MissingBalance:     balance.MissingPolicy(cfg.Processing.MissingBalance),
		DedupeTransactions: cfg.Processing.DedupeTransactions,
		Observer:           rec,
	}
	if ros != nil {
		opts.Roster = ros
	}

	res, err := balance.NewEngine(opts).Run(ctx, in)
	if err != nil {
		return nil, err
	}
	logReport(log, res.Report)

	outputs := map[string][]model.BalanceEvent{
		sink.TableForward:  res.Forward(),
		sink.TableBackward: res.Backward(),
		sink.TableFull:     res.Full(),
	}
	sum := &Summary{
		RunID:     runID,
		Consumers: len(res.Consumers),
		Rows:      make(map[string]int, len(Tables)),
		Report:    res.Report,
	}
	for _, name := range Tables {
		sum.Rows[name] = len(outputs[name])
		rec.RecordTable(name, len(outputs[name]))
	}

	if err := os.MkdirAll(cfg.Outputs.Dir, 0o755); err != nil {
		return nil, fmt.Errorf("creating output dir: %w", err)
	}
	writers, store, err := openWriters(cfg)
	if err != nil {
		return nil, err
	}
	if store != nil {
		defer store.Close()
	}

	for _, w := range writers {
		for _, name := range Tables {
			if err := ctx.Err(); err != nil {
				return nil, err
			}
			loc, err := w.WriteTable(name, outputs[name])
			if err != nil {
				return nil, fmt.Errorf("%s output: %w", w.Format(), err)
			}
			sum.Outputs = append(sum.Outputs, loc)
			log.Debug().Str("output", loc).Int("rows", len(outputs[name])).Msg("table written")
		}
	}

	finished := r.now()
	sum.Duration = finished.Sub(started)
	rec.RecordResult(res, finished)

	if err := record(cfg, store, rec, sum, finished); err != nil {
		return nil, err
	}

	log.Info().
		Int("consumers", sum.Consumers).
		Int("full_rows", sum.Rows[sink.TableFull]).
		Int("excluded_rows", sum.Report.ExcludedRows()).
		Int("excluded_consumers", sum.Report.ExcludedConsumers()).
		Dur("duration", sum.Duration).
		Msg("run complete")

	return sum, nil
}

// load reads every configured input table. The roster is nil when no
// consumers table is configured.
func load(reader source.Reader, in config.InputsConfig) (balance.Input, *roster.Service, error) {
	var ros *roster.Service
	if in.Consumers != "" {
		consumers, err := reader.ReadConsumers(in.Consumers)
		if err != nil {
			return balance.Input{}, nil, fmt.Errorf("loading consumers: %w", err)
		}
		ros = roster.NewService(consumers)
	}

	snaps, err := reader.ReadSnapshots(in.Snapshots)
	if err != nil {
		return balance.Input{}, nil, fmt.Errorf("loading balance snapshots: %w", err)
	}
	txns, err := reader.ReadTransactions(in.Transactions)
	if err != nil {
		return balance.Input{}, nil, fmt.Errorf("loading transactions: %w", err)
	}
	return balance.Input{Snapshots: snaps, Transactions: txns}, ros, nil
}

// openWriters builds one writer per configured output format. The returned
// store is non-nil when the sqlite output is enabled and must be closed.
func openWriters(cfg *config.Config) ([]sink.Writer, *sqlite.Store, error) {
	var (
		writers []sink.Writer
		store   *sqlite.Store
	)
	for _, f := range cfg.Outputs.Formats {
		switch f {
		case config.FormatCSV:
			writers = append(writers, &sink.CSVWriter{Dir: cfg.Outputs.Dir})
		case config.FormatParquet:
			writers = append(writers, &sink.ParquetWriter{Dir: cfg.Outputs.Dir})
		case config.FormatSQLite:
			if store != nil {
				continue
			}
			s, err := sqlite.New(cfg.SQLiteFile())
			if err != nil {
				return nil, nil, fmt.Errorf("opening sqlite output: %w", err)
			}
			store = s
			writers = append(writers, s)
		}
	}
	return writers, store, nil
}

// record persists the run summary to the sqlite runs table, the metrics
// textfile and the run log, whichever are configured.
func record(cfg *config.Config, store *sqlite.Store, rec *metrics.Recorder, sum *Summary, finished time.Time) error {
	var errs []error

	if store != nil {
		errs = append(errs, store.RecordRun(sqlite.RunRecord{
			RunID:             sum.RunID,
			FinishedAt:        finished,
			Consumers:         sum.Consumers,
			FullRows:          sum.Rows[sink.TableFull],
			ExcludedRows:      sum.Report.ExcludedRows(),
			ExcludedConsumers: sum.Report.ExcludedConsumers(),
		}))
	}

	if path := cfg.Observability.MetricsPath; path != "" {
		errs = append(errs, rec.WriteTextfile(path))
	}

	if path := cfg.Observability.RunLog; path != "" {
		errs = append(errs, runlog.Append(path, []runlog.Entry{{
			Timestamp:         finished,
			RunID:             sum.RunID,
			Snapshots:         cfg.Inputs.Snapshots,
			Transactions:      cfg.Inputs.Transactions,
			Consumers:         sum.Consumers,
			ForwardRows:       sum.Rows[sink.TableForward],
			BackwardRows:      sum.Rows[sink.TableBackward],
			FullRows:          sum.Rows[sink.TableFull],
			ExcludedRows:      sum.Report.ExcludedRows(),
			ExcludedConsumers: sum.Report.ExcludedConsumers(),
		}}))
	}

	if err := errors.Join(errs...); err != nil {
		return fmt.Errorf("recording run: %w", err)
	}
	return nil
}

// logReport logs what was excluded. Individual rows go out at debug level.
func logReport(log zerolog.Logger, rep balance.Report) {
	for _, e := range rep.Empty {
		log.Warn().Str("table", e.Table).Msg(e.Error())
	}
	if len(rep.Integrity) > 0 {
		log.Warn().Int("rows", len(rep.Integrity)).Msg("rows excluded for data integrity problems")
		for _, e := range rep.Integrity {
			log.Debug().
				Str("table", e.Table).
				Int("row", e.Row).
				Str("consumer_id", e.ConsumerID).
				Str("field", e.Field).
				Str("reason", e.Reason).
				Msg("row excluded")
		}
	}
	if rep.MissingAnchors != nil {
		log.Warn().
			Int("consumers", len(rep.MissingAnchors.ConsumerIDs)).
			Strs("consumer_ids", rep.MissingAnchors.ConsumerIDs).
			Msg("consumers excluded without a balance snapshot")
	}
	if rep.DuplicateTransactions > 0 {
		log.Info().Int("rows", rep.DuplicateTransactions).Msg("duplicate transactions dropped")
	}
	if rep.ZeroOnAnchorDate > 0 {
		log.Info().Int("rows", rep.ZeroOnAnchorDate).Msg("zero-amount transactions on the anchor date dropped")
	}
	if rep.OutsideRoster > 0 {
		log.Info().Int("rows", rep.OutsideRoster).Msg("rows outside the consumer roster dropped")
	}
}

package commands

import (
	"errors"
	"fmt"
	"io"
	"os"
	"path/filepath"

	"github.com/spf13/cobra"

	"github.com/cleared-dev/runbal/internal/buildinfo"
	"github.com/cleared-dev/runbal/internal/config"
	"github.com/cleared-dev/runbal/internal/job"
	"github.com/cleared-dev/runbal/internal/logger"
)

type reconstructFlags struct {
	configPath     string
	snapshots      string
	transactions   string
	consumers      string
	format         string
	out            string
	outputFormats  []string
	workers        int
	missingBalance string
	logLevel       string
	logFormat      string
}

func newReconstructCommand() *cobra.Command {
	var f reconstructFlags

	cmd := &cobra.Command{
		Use:   "reconstruct",
		Short: "Rebuild forward, backward and full running-balance tables",
		Args:  cobra.NoArgs,
		RunE: func(cmd *cobra.Command, args []string) error {
			cfg, err := loadConfig(cmd, f)
			if err != nil {
				return err
			}

			log, err := logger.NewWithOptions(logger.Options{
				Level:  cfg.Observability.LogLevel,
				Format: cfg.Observability.LogFormat,
				Out:    cmd.ErrOrStderr(),
			})
			if err != nil {
				return err
			}
			log.Debug().Str("version", buildinfo.String()).Msg("starting")
			ctx := logger.WithContext(cmd.Context(), log)

			sum, err := job.NewRunner(nil).Run(ctx, cfg)
			if err != nil {
				return err
			}
			printSummary(cmd.OutOrStdout(), sum)
			return nil
		},
	}

	fl := cmd.Flags()
	fl.StringVarP(&f.configPath, "config", "c", config.FileName, "config file")
	fl.StringVar(&f.snapshots, "snapshots", "", "balance snapshots table")
	fl.StringVar(&f.transactions, "transactions", "", "transactions table")
	fl.StringVar(&f.consumers, "consumers", "", "consumer roster table (optional)")
	fl.StringVar(&f.format, "format", "", "input format (csv or parquet)")
	fl.StringVarP(&f.out, "out", "o", "", "output directory")
	fl.StringSliceVar(&f.outputFormats, "output-format", nil, "output formats (csv, parquet, sqlite)")
	fl.IntVarP(&f.workers, "workers", "w", 0, "consumers reconstructed in parallel")
	fl.StringVar(&f.missingBalance, "missing-balance", "", "missing snapshot balance policy (exclude or zero)")
	fl.StringVar(&f.logLevel, "log-level", "", "log level")
	fl.StringVar(&f.logFormat, "log-format", "", "log format (console or json)")

	return cmd
}

// loadConfig reads the config file and applies flag overrides. A missing
// config file is only an error when --config was given explicitly. Relative
// paths in the file resolve against its directory; relative flag values
// resolve against the working directory.
func loadConfig(cmd *cobra.Command, f reconstructFlags) (*config.Config, error) {
	cfg, err := config.Load(f.configPath)
	switch {
	case err == nil:
		abs, err := filepath.Abs(filepath.Dir(f.configPath))
		if err != nil {
			return nil, fmt.Errorf("resolving path: %w", err)
		}
		cfg.Resolve(abs)
	case errors.Is(err, os.ErrNotExist) && !cmd.Flags().Changed("config"):
		cfg = config.Default()
	default:
		return nil, err
	}

	fl := cmd.Flags()
	if fl.Changed("snapshots") {
		cfg.Inputs.Snapshots = f.snapshots
	}
	if fl.Changed("transactions") {
		cfg.Inputs.Transactions = f.transactions
	}
	if fl.Changed("consumers") {
		cfg.Inputs.Consumers = f.consumers
	}
	if fl.Changed("format") {
		cfg.Inputs.Format = f.format
	}
	if fl.Changed("out") {
		cfg.Outputs.Dir = f.out
	}
	if fl.Changed("output-format") {
		cfg.Outputs.Formats = f.outputFormats
	}
	if fl.Changed("workers") {
		cfg.Processing.Workers = f.workers
	}
	if fl.Changed("missing-balance") {
		cfg.Processing.MissingBalance = f.missingBalance
	}
	if fl.Changed("log-level") {
		cfg.Observability.LogLevel = f.logLevel
	}
	if fl.Changed("log-format") {
		cfg.Observability.LogFormat = f.logFormat
	}
	return cfg, nil
}

// maxListedProblems caps the report lines printed after a run; the full list
// is in the debug log.
const maxListedProblems = 10

func printSummary(w io.Writer, sum *job.Summary) {
	fmt.Fprintf(w, "Run %s\n", sum.RunID)
	fmt.Fprintf(w, "  %-26s %d\n", "consumers reconstructed:", sum.Consumers)
	for _, name := range job.Tables {
		fmt.Fprintf(w, "  %-26s %d rows\n", name+":", sum.Rows[name])
	}
	fmt.Fprintf(w, "  %-26s %d\n", "excluded rows:", sum.Report.ExcludedRows())
	fmt.Fprintf(w, "  %-26s %d\n", "excluded consumers:", sum.Report.ExcludedConsumers())

	errs := sum.Report.Errors()
	for i, err := range errs {
		if i == maxListedProblems {
			fmt.Fprintf(w, "  ... and %d more\n", len(errs)-i)
			break
		}
		fmt.Fprintf(w, "  warning: %s\n", err)
	}
}

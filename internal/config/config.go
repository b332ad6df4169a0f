package config

import (
	"errors"
	"fmt"
	"os"
	"path/filepath"

	"gopkg.in/yaml.v3"
)

// FileName is the conventional config file name.
const FileName = "runbal.yaml"

// Output formats.
const (
	FormatCSV     = "csv"
	FormatParquet = "parquet"
	FormatSQLite  = "sqlite"
)

// Config represents the top-level runbal.yaml configuration.
type Config struct {
	Inputs        InputsConfig        `yaml:"inputs"`
	Outputs       OutputsConfig       `yaml:"outputs"`
	Processing    ProcessingConfig    `yaml:"processing"`
	Observability ObservabilityConfig `yaml:"observability"`
}

// InputsConfig locates the input tables.
type InputsConfig struct {
	Consumers    string `yaml:"consumers,omitempty"` // optional roster
	Snapshots    string `yaml:"snapshots"`
	Transactions string `yaml:"transactions"`
	Format       string `yaml:"format"` // "csv" or "parquet"
}

// OutputsConfig controls where and how output tables are written.
type OutputsConfig struct {
	Dir        string   `yaml:"dir"`
	Formats    []string `yaml:"formats"`
	SQLitePath string   `yaml:"sqlite_path,omitempty"` // defaults to <dir>/runbal.db
}

// ProcessingConfig tunes the reconstruction.
type ProcessingConfig struct {
	Workers            int    `yaml:"workers"`
	DedupeTransactions bool   `yaml:"dedupe_transactions"`
	MissingBalance     string `yaml:"missing_balance"` // "exclude" or "zero"
	ParquetParallelism int    `yaml:"parquet_parallelism"`
}

// ObservabilityConfig controls logging, metrics and the run log.
type ObservabilityConfig struct {
	LogLevel    string `yaml:"log_level"`
	LogFormat   string `yaml:"log_format"`
	MetricsPath string `yaml:"metrics_path,omitempty"`
	RunLog      string `yaml:"run_log,omitempty"`
}

// Load reads a runbal.yaml file from disk. Fields missing from the file keep
// their default values.
func Load(path string) (*Config, error) {
	data, err := os.ReadFile(path)
	if err != nil {
		return nil, fmt.Errorf("reading config: %w", err)
	}
	cfg := Default()
	if err := yaml.Unmarshal(data, cfg); err != nil {
		return nil, fmt.Errorf("parsing config: %w", err)
	}
	return cfg, nil
}

// Save writes a Config to a YAML file.
func Save(path string, cfg *Config) error {
	data, err := yaml.Marshal(cfg)
	if err != nil {
		return fmt.Errorf("marshaling config: %w", err)
	}
	if err := os.WriteFile(path, data, 0o644); err != nil {
		return fmt.Errorf("writing config: %w", err)
	}
	return nil
}

// Default returns a Config with sensible defaults for a new project.
func Default() *Config {
	return &Config{
		Inputs: InputsConfig{
			Snapshots:    "data/balances.csv",
			Transactions: "data/transactions.csv",
			Format:       FormatCSV,
		},
		Outputs: OutputsConfig{
			Dir:     "out",
			Formats: []string{FormatCSV},
		},
		Processing: ProcessingConfig{
			Workers:            4,
			DedupeTransactions: true,
			MissingBalance:     "exclude",
			ParquetParallelism: 1,
		},
		Observability: ObservabilityConfig{
			LogLevel:  "info",
			LogFormat: "console",
			RunLog:    "out/runs.csv",
		},
	}
}

// SQLiteFile returns the database path used by the sqlite output.
func (c *Config) SQLiteFile() string {
	if c.Outputs.SQLitePath != "" {
		return c.Outputs.SQLitePath
	}
	return filepath.Join(c.Outputs.Dir, "runbal.db")
}

// Validate checks the config for values the job cannot run with. All problems
// are reported together.
func (c *Config) Validate() error {
	var errs []error

	if c.Inputs.Snapshots == "" {
		errs = append(errs, errors.New("inputs.snapshots is required"))
	}
	if c.Inputs.Transactions == "" {
		errs = append(errs, errors.New("inputs.transactions is required"))
	}
	switch c.Inputs.Format {
	case FormatCSV, FormatParquet:
	default:
		errs = append(errs, fmt.Errorf("inputs.format: unknown format %q", c.Inputs.Format))
	}

	if c.Outputs.Dir == "" {
		errs = append(errs, errors.New("outputs.dir is required"))
	}
	if len(c.Outputs.Formats) == 0 {
		errs = append(errs, errors.New("outputs.formats: at least one format is required"))
	}
	for _, f := range c.Outputs.Formats {
		switch f {
		case FormatCSV, FormatParquet, FormatSQLite:
		default:
			errs = append(errs, fmt.Errorf("outputs.formats: unknown format %q", f))
		}
	}

	if c.Processing.Workers <= 0 {
		errs = append(errs, fmt.Errorf("processing.workers must be positive, got %d", c.Processing.Workers))
	}
	if c.Processing.ParquetParallelism < 0 {
		errs = append(errs, fmt.Errorf("processing.parquet_parallelism must not be negative, got %d", c.Processing.ParquetParallelism))
	}
	switch c.Processing.MissingBalance {
	case "exclude", "zero":
	default:
		errs = append(errs, fmt.Errorf("processing.missing_balance: unknown policy %q", c.Processing.MissingBalance))
	}

	switch c.Observability.LogFormat {
	case "", "console", "json":
	default:
		errs = append(errs, fmt.Errorf("observability.log_format: unknown format %q", c.Observability.LogFormat))
	}

	return errors.Join(errs...)
}

// Resolve makes every relative path in the config relative to base, usually
// the directory holding the config file.
func (c *Config) Resolve(base string) {
	for _, p := range []*string{
		&c.Inputs.Consumers,
		&c.Inputs.Snapshots,
		&c.Inputs.Transactions,
		&c.Outputs.Dir,
		&c.Outputs.SQLitePath,
		&c.Observability.MetricsPath,
		&c.Observability.RunLog,
	} {
		if *p != "" && !filepath.IsAbs(*p) {
			*p = filepath.Join(base, *p)
		}
	}
}

/*
Package sqlite persists output tables in a SQLite database.

TABLES:

	forward_running_balance, backward_running_balance, full_running_balance:
	  one row per balance event, same columns as the CSV and parquet outputs.
	  Amounts are stored as TEXT so decimal values survive exactly.
	  position keeps the (consumer_id, posted_date) order of the run.
	runs:
	  one row per completed run (run id, time, counts).

Every run replaces the contents of the event tables inside a single
transaction, so a reader never sees a half-written table.

USAGE:

	store, err := sqlite.New("./out/runbal.db")
	if err != nil {
	    return err
	}
	defer store.Close()
	_, err = store.WriteTable(sink.TableFull, res.Full())
*/
package sqlite

import (
	"database/sql"
	"fmt"
	"sync"
	"time"

	_ "github.com/mattn/go-sqlite3"
	"github.com/shopspring/decimal"

	"github.com/cleared-dev/runbal/internal/model"
	"github.com/cleared-dev/runbal/internal/sink"
)

var eventTables = map[string]bool{
	sink.TableForward:  true,
	sink.TableBackward: true,
	sink.TableFull:     true,
}

// Store writes output tables to SQLite. It implements sink.Writer.
type Store struct {
	db   *sql.DB
	path string
	mu   sync.Mutex
}

// New opens (creating if needed) the database at dbPath.
// Use ":memory:" for an in-memory database.
func New(dbPath string) (*Store, error) {
	db, err := sql.Open("sqlite3", dbPath+"?_journal_mode=WAL")
	if err != nil {
		return nil, fmt.Errorf("failed to open database: %w", err)
	}
	// A single connection keeps ":memory:" databases alive across calls.
	db.SetMaxOpenConns(1)

	store := &Store{db: db, path: dbPath}
	if err := store.migrate(); err != nil {
		db.Close()
		return nil, fmt.Errorf("failed to migrate database: %w", err)
	}

	return store, nil
}

// Close closes the database connection.
func (s *Store) Close() error {
	return s.db.Close()
}

// Format returns the writer name.
func (s *Store) Format() string { return "sqlite" }

func (s *Store) migrate() error {
	for name := range eventTables {
		schema := fmt.Sprintf(`
		CREATE TABLE IF NOT EXISTS %[1]s (
			position INTEGER PRIMARY KEY,
			consumer_id TEXT NOT NULL,
			posted_date TEXT NOT NULL,
			signed_amount TEXT NOT NULL,
			running_balance TEXT NOT NULL,
			category TEXT,
			credit_or_debit TEXT
		);
		CREATE INDEX IF NOT EXISTS idx_%[1]s_consumer_date ON %[1]s(consumer_id, posted_date);
		`, name)
		if _, err := s.db.Exec(schema); err != nil {
			return fmt.Errorf("creating %s: %w", name, err)
		}
	}

	_, err := s.db.Exec(`
	CREATE TABLE IF NOT EXISTS runs (
		run_id TEXT PRIMARY KEY,
		finished_at TEXT NOT NULL,
		consumers INTEGER NOT NULL,
		full_rows INTEGER NOT NULL,
		excluded_rows INTEGER NOT NULL,
		excluded_consumers INTEGER NOT NULL
	);
	`)
	if err != nil {
		return fmt.Errorf("creating runs: %w", err)
	}
	return nil
}

// WriteTable replaces the contents of table name with events.
func (s *Store) WriteTable(name string, events []model.BalanceEvent) (string, error) {
	if !eventTables[name] {
		return "", fmt.Errorf("unknown table %q", name)
	}

	s.mu.Lock()
	defer s.mu.Unlock()

	tx, err := s.db.Begin()
	if err != nil {
		return "", fmt.Errorf("begin: %w", err)
	}
	defer tx.Rollback()

	if _, err := tx.Exec("DELETE FROM " + name); err != nil {
		return "", fmt.Errorf("clearing %s: %w", name, err)
	}

	stmt, err := tx.Prepare(fmt.Sprintf(`INSERT INTO %s
		(position, consumer_id, posted_date, signed_amount, running_balance, category, credit_or_debit)
		VALUES (?, ?, ?, ?, ?, ?, ?)`, name))
	if err != nil {
		return "", fmt.Errorf("preparing insert: %w", err)
	}
	defer stmt.Close()

	for i, e := range events {
		var category, direction sql.NullString
		if e.Direction != "" {
			category = sql.NullString{String: e.Category, Valid: true}
			direction = sql.NullString{String: string(e.Direction), Valid: true}
		}
		_, err := stmt.Exec(i, e.ConsumerID, model.FormatDate(e.PostedDate),
			e.SignedAmount.String(), e.RunningBalance.String(), category, direction)
		if err != nil {
			return "", fmt.Errorf("inserting %s row %d: %w", name, i, err)
		}
	}

	if err := tx.Commit(); err != nil {
		return "", fmt.Errorf("commit: %w", err)
	}
	return s.path + "#" + name, nil
}

// ReadTable returns the events of table name in written order.
func (s *Store) ReadTable(name string) ([]model.BalanceEvent, error) {
	if !eventTables[name] {
		return nil, fmt.Errorf("unknown table %q", name)
	}

	rows, err := s.db.Query(fmt.Sprintf(`SELECT consumer_id, posted_date, signed_amount, running_balance, category, credit_or_debit
		FROM %s ORDER BY position`, name))
	if err != nil {
		return nil, fmt.Errorf("querying %s: %w", name, err)
	}
	defer rows.Close()

	var events []model.BalanceEvent
	for rows.Next() {
		var (
			consumerID, posted, signed, running string
			category, direction                 sql.NullString
		)
		if err := rows.Scan(&consumerID, &posted, &signed, &running, &category, &direction); err != nil {
			return nil, fmt.Errorf("scanning %s: %w", name, err)
		}
		e, err := decodeEvent(consumerID, posted, signed, running, category, direction)
		if err != nil {
			return nil, fmt.Errorf("decoding %s: %w", name, err)
		}
		events = append(events, e)
	}
	return events, rows.Err()
}

func decodeEvent(consumerID, posted, signed, running string, category, direction sql.NullString) (model.BalanceEvent, error) {
	date, err := model.ParseDate(posted)
	if err != nil {
		return model.BalanceEvent{}, err
	}
	sa, err := decimal.NewFromString(signed)
	if err != nil {
		return model.BalanceEvent{}, fmt.Errorf("signed_amount %q: %w", signed, err)
	}
	rb, err := decimal.NewFromString(running)
	if err != nil {
		return model.BalanceEvent{}, fmt.Errorf("running_balance %q: %w", running, err)
	}
	return model.BalanceEvent{
		ConsumerID:     consumerID,
		PostedDate:     date,
		SignedAmount:   sa,
		RunningBalance: rb,
		Category:       category.String,
		Direction:      model.Direction(direction.String),
		Anchor:         !direction.Valid,
	}, nil
}

// RunRecord summarizes a completed run.
type RunRecord struct {
	RunID             string
	FinishedAt        time.Time
	Consumers         int
	FullRows          int
	ExcludedRows      int
	ExcludedConsumers int
}

// RecordRun stores a run summary.
func (s *Store) RecordRun(r RunRecord) error {
	s.mu.Lock()
	defer s.mu.Unlock()

	_, err := s.db.Exec(`INSERT INTO runs
		(run_id, finished_at, consumers, full_rows, excluded_rows, excluded_consumers)
		VALUES (?, ?, ?, ?, ?, ?)`,
		r.RunID, r.FinishedAt.UTC().Format(time.RFC3339), r.Consumers, r.FullRows, r.ExcludedRows, r.ExcludedConsumers)
	if err != nil {
		return fmt.Errorf("recording run %s: %w", r.RunID, err)
	}
	return nil
}

// Runs returns all recorded runs, oldest first.
func (s *Store) Runs() ([]RunRecord, error) {
	rows, err := s.db.Query(`SELECT run_id, finished_at, consumers, full_rows, excluded_rows, excluded_consumers
		FROM runs ORDER BY finished_at, run_id`)
	if err != nil {
		return nil, fmt.Errorf("querying runs: %w", err)
	}
	defer rows.Close()

	var runs []RunRecord
	for rows.Next() {
		var (
			r        RunRecord
			finished string
		)
		if err := rows.Scan(&r.RunID, &finished, &r.Consumers, &r.FullRows, &r.ExcludedRows, &r.ExcludedConsumers); err != nil {
			return nil, fmt.Errorf("scanning runs: %w", err)
		}
		if r.FinishedAt, err = time.Parse(time.RFC3339, finished); err != nil {
			return nil, fmt.Errorf("parsing finished_at %q: %w", finished, err)
		}
		runs = append(runs, r)
	}
	return runs, rows.Err()
}

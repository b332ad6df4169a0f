package balance

import (
	"context"
	"fmt"
	"runtime"
	"time"

	"golang.org/x/sync/errgroup"

	"github.com/cleared-dev/runbal/internal/logger"
	"github.com/cleared-dev/runbal/internal/model"
)

// ConsumerSet is the roster of consumers a run is restricted to.
type ConsumerSet interface {
	Exists(id string) bool
	IDs() []string
}

// Observer receives timing information from a run. Implementations must be
// safe for concurrent use; ObservePartition is called from worker goroutines.
type Observer interface {
	ObserveStage(stage string, d time.Duration)
	ObservePartition(events int, d time.Duration)
}

// Options configures an Engine.
type Options struct {
	Workers            int // <= 0 means GOMAXPROCS
	MissingBalance     MissingPolicy
	DedupeTransactions bool
	Roster             ConsumerSet // nil disables roster filtering
	Observer           Observer    // optional
}

// Input is the fully materialized input of a run.
type Input struct {
	Snapshots    []model.RawSnapshot
	Transactions []model.RawTransaction
}

// Result holds the reconstructed segments of every anchored consumer, ordered
// by consumer ID, and the report of everything excluded along the way.
type Result struct {
	Consumers []Segments
	Report    Report
}

// Forward returns the forward_running_balance table.
func (r *Result) Forward() []model.BalanceEvent {
	return r.flatten(func(s Segments) []model.BalanceEvent { return s.Forward })
}

// Backward returns the backward_running_balance table.
func (r *Result) Backward() []model.BalanceEvent {
	return r.flatten(func(s Segments) []model.BalanceEvent { return s.Backward })
}

// Full returns the full_running_balance table.
func (r *Result) Full() []model.BalanceEvent {
	return r.flatten(func(s Segments) []model.BalanceEvent { return s.Full })
}

func (r *Result) flatten(pick func(Segments) []model.BalanceEvent) []model.BalanceEvent {
	n := 0
	for _, s := range r.Consumers {
		n += len(pick(s))
	}
	out := make([]model.BalanceEvent, 0, n)
	for _, s := range r.Consumers {
		out = append(out, pick(s)...)
	}
	return out
}

// Engine reconstructs running-balance timelines.
type Engine struct {
	opts Options
}

// NewEngine creates an Engine, filling in defaults for unset options.
func NewEngine(opts Options) *Engine {
	if opts.Workers <= 0 {
		opts.Workers = runtime.GOMAXPROCS(0)
	}
	if opts.MissingBalance == "" {
		opts.MissingBalance = MissingExclude
	}
	return &Engine{opts: opts}
}

// Run reconstructs every consumer's timeline from in. Bad rows and consumers
// without a snapshot are excluded and recorded in the result's report; Run
// only fails when ctx is cancelled.
func (e *Engine) Run(ctx context.Context, in Input) (*Result, error) {
	if err := ctx.Err(); err != nil {
		return nil, err
	}

	log := logger.FromContext(ctx)
	res := &Result{}
	rep := &res.Report

	if len(in.Snapshots) == 0 {
		rep.Empty = append(rep.Empty, EmptyInputError{Table: TableSnapshots})
	}
	if len(in.Transactions) == 0 {
		rep.Empty = append(rep.Empty, EmptyInputError{Table: TableTransactions})
	}

	start := time.Now()
	snapRows, txnRows := in.Snapshots, in.Transactions
	var rosterIDs []string
	if e.opts.Roster != nil {
		var dropped int
		snapRows, dropped = filterRoster(snapRows, e.opts.Roster, func(r model.RawSnapshot) string { return r.ConsumerID })
		rep.OutsideRoster += dropped
		txnRows, dropped = filterRoster(txnRows, e.opts.Roster, func(r model.RawTransaction) string { return r.ConsumerID })
		rep.OutsideRoster += dropped
		rosterIDs = e.opts.Roster.IDs()
	}
	if e.opts.DedupeTransactions {
		txnRows, rep.DuplicateTransactions = DedupeTransactions(txnRows)
	}
	e.observeStage("filter", start)

	start = time.Now()
	snaps, snapErrs := ParseSnapshots(snapRows, e.opts.MissingBalance)
	rep.Integrity = append(rep.Integrity, snapErrs...)
	anchors := SelectAnchors(AggregateSnapshots(snaps))
	e.observeStage("anchor", start)

	start = time.Now()
	txns, txnErrs := Normalize(txnRows)
	rep.Integrity = append(rep.Integrity, txnErrs...)
	e.observeStage("normalize", start)

	parts, orphans := PartitionByConsumer(anchors, txns)
	rep.MissingAnchors = MissingAnchors(anchors, orphans, rosterIDs)

	log.Debug().
		Int("anchors", len(anchors)).
		Int("transactions", len(txns)).
		Int("integrity_errors", len(rep.Integrity)).
		Int("missing_anchors", rep.ExcludedConsumers()).
		Msg("inputs prepared")

	start = time.Now()
	res.Consumers = make([]Segments, len(parts))
	g, gctx := errgroup.WithContext(ctx)
	g.SetLimit(e.opts.Workers)
	for i := range parts {
		g.Go(func() error {
			if err := gctx.Err(); err != nil {
				return err
			}
			t0 := time.Now()
			res.Consumers[i] = Reconstruct(parts[i].Anchor, parts[i].Transactions)
			if e.opts.Observer != nil {
				e.opts.Observer.ObservePartition(len(res.Consumers[i].Full), time.Since(t0))
			}
			return nil
		})
	}
	if err := g.Wait(); err != nil {
		return nil, fmt.Errorf("reconstructing timelines: %w", err)
	}
	for _, seg := range res.Consumers {
		rep.ZeroOnAnchorDate += seg.ZeroOnAnchorDate
	}
	e.observeStage("integrate", start)

	log.Debug().
		Int("consumers", len(res.Consumers)).
		Int("workers", e.opts.Workers).
		Msg("timelines reconstructed")

	return res, nil
}

func (e *Engine) observeStage(stage string, start time.Time) {
	if e.opts.Observer != nil {
		e.opts.Observer.ObserveStage(stage, time.Since(start))
	}
}

func filterRoster[T any](rows []T, roster ConsumerSet, id func(T) string) ([]T, int) {
	out := make([]T, 0, len(rows))
	for _, r := range rows {
		if roster.Exists(id(r)) {
			out = append(out, r)
		}
	}
	return out, len(rows) - len(out)
}

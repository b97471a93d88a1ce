// Package runner drives the fetch → aggregate → publish cycle on a
// fixed interval. Each run is independent: a failed stage is logged,
// counted and confined to its run, and the next tick retries from
// scratch.
package runner

import (
	"context"
	"errors"
	"fmt"
	"log"
	"sync"
	"time"

	"github.com/google/uuid"

	"github.com/lfpoulain/ha-sedif/internal/aggregate"
	"github.com/lfpoulain/ha-sedif/internal/domain"
	"github.com/lfpoulain/ha-sedif/internal/publish"
	"github.com/lfpoulain/ha-sedif/internal/source"
)

const (
	outcomeOK            = "ok"
	outcomeAuthFailed    = "auth_failed"
	outcomeNoData        = "no_data"
	outcomeFetchError    = "fetch_error"
	outcomeInvalidSeries = "invalid_series"
	outcomeSinkError     = "sink_error"
)

// Recorder receives each successful run's series and snapshot. Optional.
type Recorder interface {
	Record(series *domain.ReadingSeries, snap aggregate.Snapshot)
}

// Options configures a Runner.
type Options struct {
	Source       source.Source
	Publisher    *publish.Publisher
	Recorder     Recorder // may be nil
	PriceM3EUR   float64  // configured fallback price; 0 defers to the portal's
	Thresholds   aggregate.Thresholds
	Interval     time.Duration
	FetchTimeout time.Duration
}

// Runner executes runs sequentially. Overlapping ticks are skipped, not
// queued: the publisher's idempotency guarantee assumes serialized
// publishes against the sink.
type Runner struct {
	opts Options

	runMu sync.Mutex // held for the duration of one run

	mu       sync.Mutex // guards the latest-result fields below
	snapshot aggregate.Snapshot
	meta     source.Metadata
	runAt    time.Time
	hasRun   bool
}

// New validates options and builds a runner.
func New(opts Options) (*Runner, error) {
	if opts.Source == nil {
		return nil, fmt.Errorf("runner: source is required")
	}
	if opts.Publisher == nil {
		return nil, fmt.Errorf("runner: publisher is required")
	}
	if opts.Interval <= 0 {
		return nil, fmt.Errorf("runner: interval must be positive")
	}
	if opts.FetchTimeout <= 0 {
		opts.FetchTimeout = 2 * time.Minute
	}
	if opts.Thresholds == (aggregate.Thresholds{}) {
		opts.Thresholds = aggregate.DefaultThresholds
	}
	return &Runner{opts: opts}, nil
}

// Run executes one run immediately, then one per interval tick until ctx
// is cancelled. Run errors are logged and never returned: every failure
// class is recoverable at the process level.
func (r *Runner) Run(ctx context.Context) {
	r.tick(ctx)

	ticker := time.NewTicker(r.opts.Interval)
	defer ticker.Stop()
	for {
		select {
		case <-ctx.Done():
			return
		case <-ticker.C:
			r.tick(ctx)
		}
	}
}

func (r *Runner) tick(ctx context.Context) {
	if !r.runMu.TryLock() {
		ticksSkipped.Inc()
		log.Printf("runner: previous run still in flight, skipping tick")
		return
	}
	defer r.runMu.Unlock()
	r.runOnce(ctx)
}

// RunOnce executes a single run synchronously. Used by the -once mode
// and tests; Run serializes its own calls.
func (r *Runner) RunOnce(ctx context.Context) error {
	r.runMu.Lock()
	defer r.runMu.Unlock()
	return r.runOnce(ctx)
}

func (r *Runner) runOnce(ctx context.Context) error {
	runID := uuid.NewString()
	start := time.Now()

	outcome, err := r.stages(ctx, runID)
	observeRun(outcome, time.Since(start))
	if err != nil {
		log.Printf("runner: run %s failed (%s): %v", runID, outcome, err)
		return err
	}
	log.Printf("runner: run %s ok in %s", runID, time.Since(start).Truncate(time.Millisecond))
	return nil
}

func (r *Runner) stages(ctx context.Context, runID string) (string, error) {
	fetchCtx, cancel := context.WithTimeout(ctx, r.opts.FetchTimeout)
	res, err := r.opts.Source.Fetch(fetchCtx)
	cancel()
	if err != nil {
		// The previous snapshot at the sink is left untouched.
		switch {
		case errors.Is(err, source.ErrAuthFailed):
			return outcomeAuthFailed, fmt.Errorf("fetch: %w", err)
		case errors.Is(err, source.ErrNoData):
			return outcomeNoData, fmt.Errorf("fetch: %w", err)
		default:
			return outcomeFetchError, fmt.Errorf("fetch: %w", err)
		}
	}

	series, err := domain.NewReadingSeries(res.Readings)
	if err != nil {
		return outcomeInvalidSeries, fmt.Errorf("build series: %w", err)
	}

	price := domain.PriceReference{PricePerM3EUR: r.opts.PriceM3EUR}
	if price.PricePerM3EUR == 0 && res.PriceM3EUR != nil {
		price.PricePerM3EUR = *res.PriceM3EUR
	}

	snap := aggregate.ComputeWith(series, price, r.opts.Thresholds)

	if err := r.opts.Publisher.Publish(ctx, snap, res.Meta); err != nil {
		// The computed snapshot is discarded; the next run recomputes.
		return outcomeSinkError, fmt.Errorf("publish %s..%s: %w",
			snap.WindowStart, snap.WindowEnd, err)
	}

	if r.opts.Recorder != nil {
		r.opts.Recorder.Record(series, snap)
	}

	r.mu.Lock()
	r.snapshot = snap
	r.meta = res.Meta
	r.runAt = time.Now()
	r.hasRun = true
	r.mu.Unlock()

	return outcomeOK, nil
}

// Latest returns the most recent successful run's snapshot, if any.
func (r *Runner) Latest() (aggregate.Snapshot, source.Metadata, time.Time, bool) {
	r.mu.Lock()
	defer r.mu.Unlock()
	return r.snapshot, r.meta, r.runAt, r.hasRun
}

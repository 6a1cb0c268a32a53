package jobs

import (
	"context"
	"errors"
	"fmt"
	"sync"
	"sync/atomic"
	"time"

	"github.com/google/uuid"
	"go.uber.org/zap"

	"github.com/tenderwatch/ted-adapter/internal/metrics"
	"github.com/tenderwatch/ted-adapter/internal/ted"
	"github.com/tenderwatch/ted-adapter/internal/tender"
	"github.com/tenderwatch/ted-adapter/pkg/model"
)

// ErrRefreshInProgress is returned when a run is requested while another is active.
var ErrRefreshInProgress = errors.New("refresh already in progress")

// Fetcher pulls every lot record matching a query.
type Fetcher interface {
	Fetch(ctx context.Context, q ted.Query) (*ted.Result, error)
}

// Aggregator turns lot records into one tender per procurement.
type Aggregator interface {
	Run(records []tender.RawRecord, now time.Time) ([]model.Tender, model.Stats)
}

// RunStore persists completed runs.
type RunStore interface {
	SaveRun(ctx context.Context, run *model.RunResult) error
	UpsertTenders(ctx context.Context, run *model.RunResult) error
}

// RunPublisher announces completed runs downstream.
type RunPublisher interface {
	PublishRun(ctx context.Context, run *model.RunResult) error
}

// Refresher periodically fetches active notices, aggregates them, caches
// and persists the result, then publishes tender events.
type Refresher struct {
	logger    *zap.Logger
	fetcher   Fetcher
	pipeline  Aggregator
	store     RunStore
	publisher RunPublisher
	query     ted.Query
	interval  time.Duration
	now       func() time.Time

	running  atomic.Bool
	stopCh   chan struct{}
	stopOnce sync.Once
}

// NewRefresher constructs the background job. publisher may be nil.
func NewRefresher(
	logger *zap.Logger,
	fetcher Fetcher,
	pipeline Aggregator,
	store RunStore,
	publisher RunPublisher,
	query ted.Query,
	interval time.Duration,
) *Refresher {
	if logger == nil {
		logger = zap.NewNop()
	}
	return &Refresher{
		logger:    logger,
		fetcher:   fetcher,
		pipeline:  pipeline,
		store:     store,
		publisher: publisher,
		query:     query,
		interval:  interval,
		now:       time.Now,
		stopCh:    make(chan struct{}),
	}
}

// Start runs one refresh immediately, then one per interval until Stop or ctx ends.
func (r *Refresher) Start(ctx context.Context) {
	ticker := time.NewTicker(r.interval)
	defer ticker.Stop()

	r.logger.Info("refresher.started", zap.Duration("interval", r.interval))
	r.tick(ctx)

	for {
		select {
		case <-ticker.C:
			r.tick(ctx)
		case <-r.stopCh:
			r.logger.Info("refresher.stopped", zap.String("reason", "manual stop"))
			return
		case <-ctx.Done():
			r.logger.Info("refresher.stopped", zap.String("reason", "context canceled"))
			return
		}
	}
}

// Stop halts the loop. Safe to call more than once.
func (r *Refresher) Stop() {
	r.stopOnce.Do(func() { close(r.stopCh) })
}

func (r *Refresher) tick(ctx context.Context) {
	if _, err := r.RunOnce(ctx); err != nil && !errors.Is(err, ErrRefreshInProgress) {
		r.logger.Error("refresher.run_failed", zap.Error(err))
	}
}

// RunOnce executes one refresh cycle. Concurrent calls fail fast with
// ErrRefreshInProgress. A publish failure is logged but does not fail the
// run, since the result is already cached.
func (r *Refresher) RunOnce(ctx context.Context) (*model.RunResult, error) {
	if !r.running.CompareAndSwap(false, true) {
		return nil, ErrRefreshInProgress
	}
	defer r.running.Store(false)

	start := r.now()
	runID := uuid.NewString()
	log := r.logger.With(zap.String("run_id", runID))
	log.Info("refresher.running", zap.String("query", r.query.String()))

	res, err := r.fetcher.Fetch(ctx, r.query)
	if err != nil {
		metrics.IncError("refresher", "fetch")
		return nil, fmt.Errorf("fetch: %w", err)
	}

	aggStart := time.Now()
	tenders, stats := r.pipeline.Run(res.Records, start)
	metrics.ObserveDuration(metrics.PipelineDuration, aggStart, "aggregate")

	run := &model.RunResult{
		RunID:       runID,
		GeneratedAt: start.UTC(),
		Query:       res.Query,
		Available:   res.Available,
		Fields:      len(res.Fields),
		Stats:       stats,
		Tenders:     tenders,
	}

	storeStart := time.Now()
	if err := r.store.SaveRun(ctx, run); err != nil {
		metrics.IncError("refresher", "cache")
		return nil, fmt.Errorf("cache run: %w", err)
	}
	if err := r.store.UpsertTenders(ctx, run); err != nil {
		metrics.IncError("refresher", "persist")
		return nil, fmt.Errorf("persist run: %w", err)
	}
	metrics.ObserveDuration(metrics.PipelineDuration, storeStart, "store")

	if r.publisher != nil {
		pubStart := time.Now()
		if err := r.publisher.PublishRun(ctx, run); err != nil {
			metrics.IncError("refresher", "publish")
			log.Warn("refresher.publish_failed", zap.Error(err))
		}
		metrics.ObserveDuration(metrics.PipelineDuration, pubStart, "publish")
	}

	metrics.SetRunComposition(stats.Total, stats.Urgency)
	metrics.SetLastRefresh(run.GeneratedAt)

	log.Info("refresher.success",
		zap.Int("records", len(res.Records)),
		zap.Int("available", res.Available),
		zap.Bool("truncated", res.Truncated),
		zap.Int("tenders", stats.Total),
		zap.Duration("duration", time.Since(start)))
	return run, nil
}

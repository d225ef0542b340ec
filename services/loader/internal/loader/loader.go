// Package loader buffers normalized postings and writes them to ClickHouse
// in batches.
package loader

import (
	"context"
	"fmt"
	"sync"
	"time"

	"jobgrid/common/models"
	"jobgrid/common/telemetry"
	"jobgrid/services/loader/internal/config"
	"jobgrid/services/loader/internal/normalizer"

	"go.opentelemetry.io/otel/trace"
	"go.uber.org/zap"
)

const timestampLayout = "2006-01-02T15:04:05"

// defaultPendingBatches bounds the queue when MaxPendingBatches is unset.
const defaultPendingBatches = 10

type Loader struct {
	logger   *zap.Logger
	store    Inserter
	tracer   trace.Tracer
	config   *config.Config
	now      func() time.Time
	sleep    func(context.Context, time.Duration) error
	flushNow chan struct{}
	mu       sync.Mutex
	pending  []models.JobPosting
	inserted int
	dropped  int
}

func NewLoader(logger *zap.Logger, store Inserter, config *config.Config) *Loader {
	return &Loader{
		logger:   logger,
		store:    store,
		tracer:   telemetry.GetTracer("jobgrid/loader"),
		config:   config,
		now:      time.Now,
		sleep:    sleepContext,
		flushNow: make(chan struct{}, 1),
		pending:  make([]models.JobPosting, 0, max(config.BatchSize, 1)),
	}
}

// Load normalizes one crawled document and queues it. A full batch wakes
// Run instead of flushing inline, so Load never waits on ClickHouse.
func (l *Loader) Load(ctx context.Context, raw []byte) error {
	ctx, span := l.tracer.Start(ctx, "Loader.Load")
	defer span.End()

	posting, err := normalizer.Normalize(raw, l.now)
	if err != nil {
		span.RecordError(err)
		return fmt.Errorf("normalize posting: %w", err)
	}
	span.SetAttributes(telemetry.String("posting.id", fmt.Sprint(posting.PostingID)))

	l.mu.Lock()
	l.pending = append(l.pending, posting)
	l.trimLocked()
	full := len(l.pending) >= l.config.BatchSize
	l.mu.Unlock()

	if full {
		select {
		case l.flushNow <- struct{}{}:
		default:
		}
	}
	return nil
}

// Flush writes everything queued so far. Failed batches are retried up to
// MaxRetries times and then put back in the queue, which keeps at most
// MaxPendingBatches batches.
func (l *Loader) Flush(ctx context.Context) error {
	l.mu.Lock()
	batch := l.pending
	l.pending = make([]models.JobPosting, 0, cap(batch))
	l.mu.Unlock()

	if len(batch) == 0 {
		return nil
	}

	ctx, span := l.tracer.Start(ctx, "Loader.Flush")
	defer span.End()
	span.SetAttributes(telemetry.Int("batch.size", len(batch)))

	var err error
	for attempt := 0; attempt <= l.config.MaxRetries; attempt++ {
		if attempt > 0 {
			if serr := l.sleep(ctx, l.config.RetryDelay); serr != nil {
				err = serr
				break
			}
		}

		insertCtx, cancel := context.WithTimeout(ctx, l.config.InsertTimeout)
		err = l.store.InsertJobPostings(insertCtx, batch)
		cancel()
		if err == nil {
			l.mu.Lock()
			l.inserted += len(batch)
			l.mu.Unlock()
			l.logger.Info("inserted job postings", zap.Int("count", len(batch)))
			return nil
		}

		l.logger.Warn("failed to insert job postings",
			zap.Int("attempt", attempt+1),
			zap.Int("count", len(batch)),
			zap.Error(err))
	}

	span.RecordError(err)
	l.mu.Lock()
	l.pending = append(batch, l.pending...)
	l.trimLocked()
	l.mu.Unlock()
	return fmt.Errorf("insert job postings: %w", err)
}

// trimLocked drops the oldest queued postings beyond the queue bound.
// Callers hold l.mu.
func (l *Loader) trimLocked() {
	batches := l.config.MaxPendingBatches
	if batches <= 0 {
		batches = defaultPendingBatches
	}
	limit := batches * max(l.config.BatchSize, 1)

	excess := len(l.pending) - limit
	if excess <= 0 {
		return
	}
	l.pending = append(l.pending[:0:0], l.pending[excess:]...)
	l.dropped += excess
	l.logger.Warn("queue full, dropping oldest job postings",
		zap.Int("dropped", excess),
		zap.Int("queued", len(l.pending)),
		zap.Int("total_dropped", l.dropped))
}

// Run flushes on every FlushInterval tick and whenever Load fills a batch,
// until ctx is done. It then flushes once more.
func (l *Loader) Run(ctx context.Context) {
	ticker := time.NewTicker(l.config.FlushInterval)
	defer ticker.Stop()

	for {
		select {
		case <-ticker.C:
			if err := l.Flush(ctx); err != nil {
				l.logger.Error("periodic flush failed", zap.Error(err))
			}
		case <-l.flushNow:
			if err := l.Flush(ctx); err != nil {
				l.logger.Error("batch flush failed", zap.Error(err))
			}
		case <-ctx.Done():
			final, cancel := context.WithTimeout(context.Background(), l.config.InsertTimeout)
			if err := l.Flush(final); err != nil {
				l.logger.Error("final flush failed", zap.Error(err))
			}
			cancel()
			return
		}
	}
}

// Stats reports queued and inserted posting counts.
func (l *Loader) Stats() (pending, inserted int) {
	l.mu.Lock()
	defer l.mu.Unlock()
	return len(l.pending), l.inserted
}

// Dropped reports how many postings were discarded because the queue was
// full.
func (l *Loader) Dropped() int {
	l.mu.Lock()
	defer l.mu.Unlock()
	return l.dropped
}

func sleepContext(ctx context.Context, d time.Duration) error {
	t := time.NewTimer(d)
	defer t.Stop()
	select {
	case <-t.C:
		return nil
	case <-ctx.Done():
		return ctx.Err()
	}
}

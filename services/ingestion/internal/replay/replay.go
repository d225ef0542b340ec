// Package replay publishes a JSON-lines dump of crawled postings to NATS.
package replay

import (
	"bufio"
	"context"
	"encoding/json"
	"io"
	"sync"
	"sync/atomic"

	"jobgrid/common/errors"

	"go.uber.org/zap"
)

// Publisher is the part of messaging.Publisher the replayer needs.
type Publisher interface {
	Publish(ctx context.Context, data []byte) error
}

type Stats struct {
	Lines     int32
	Published int32
	Skipped   int32
	Failed    int32
}

type Replayer struct {
	logger       *zap.Logger
	publisher    Publisher
	workers      int
	maxLineBytes int
}

func New(logger *zap.Logger, publisher Publisher, workers, maxLineBytes int) *Replayer {
	if workers < 1 {
		workers = 1
	}
	if maxLineBytes < bufio.MaxScanTokenSize {
		maxLineBytes = bufio.MaxScanTokenSize
	}
	return &Replayer{
		logger:       logger,
		publisher:    publisher,
		workers:      workers,
		maxLineBytes: maxLineBytes,
	}
}

// Run publishes every valid line of r. Blank lines and lines that are not
// a JSON object with a job_id are skipped. It stops early when ctx is done.
func (rp *Replayer) Run(ctx context.Context, r io.Reader) (Stats, error) {
	var stats Stats
	lines := make(chan []byte, rp.workers*2)

	var wg sync.WaitGroup
	for i := 0; i < rp.workers; i++ {
		wg.Add(1)
		go func() {
			defer wg.Done()
			for line := range lines {
				if err := rp.publisher.Publish(ctx, line); err != nil {
					atomic.AddInt32(&stats.Failed, 1)
					continue
				}
				atomic.AddInt32(&stats.Published, 1)
			}
		}()
	}

	scanner := bufio.NewScanner(r)
	scanner.Buffer(make([]byte, 0, 64*1024), rp.maxLineBytes)

	var runErr error
scan:
	for scanner.Scan() {
		if err := ctx.Err(); err != nil {
			runErr = err
			break
		}
		lineNo := atomic.AddInt32(&stats.Lines, 1)
		line := scanner.Bytes()
		if !valid(line) {
			atomic.AddInt32(&stats.Skipped, 1)
			if len(line) > 0 {
				rp.logger.Warn("skipping invalid line", zap.Int32("line", lineNo))
			}
			continue
		}

		data := make([]byte, len(line))
		copy(data, line)
		select {
		case lines <- data:
		case <-ctx.Done():
			runErr = ctx.Err()
			break scan
		}
	}
	close(lines)
	wg.Wait()

	if runErr != nil {
		return stats, runErr
	}
	if err := scanner.Err(); err != nil {
		return stats, errors.InvalidInput("reading replay input", err)
	}

	rp.logger.Info("replay finished",
		zap.Int32("lines", stats.Lines),
		zap.Int32("published", stats.Published),
		zap.Int32("skipped", stats.Skipped),
		zap.Int32("failed", stats.Failed))
	return stats, nil
}

func valid(line []byte) bool {
	var doc struct {
		JobID string `json:"job_id"`
	}
	if len(line) == 0 || json.Unmarshal(line, &doc) != nil {
		return false
	}
	return doc.JobID != ""
}

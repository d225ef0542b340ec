package loader

import (
	"context"
	"errors"
	"fmt"
	"sync"
	"testing"
	"time"

	"github.com/ClickHouse/clickhouse-go/v2/lib/driver"
	"go.uber.org/zap/zaptest"

	"jobgrid/common/models"
	"jobgrid/services/loader/internal/config"
)

type fakeInserter struct {
	mu      sync.Mutex
	batches [][]models.JobPosting
	fail    int
}

func (f *fakeInserter) InsertJobPostings(ctx context.Context, postings []models.JobPosting) error {
	f.mu.Lock()
	defer f.mu.Unlock()
	if f.fail > 0 {
		f.fail--
		return errors.New("clickhouse unavailable")
	}
	f.batches = append(f.batches, append([]models.JobPosting(nil), postings...))
	return nil
}

func newTestLoader(t *testing.T, store Inserter, batchSize, retries int) *Loader {
	t.Helper()
	cfg := &config.Config{
		BatchSize:     batchSize,
		FlushInterval: time.Hour,
		InsertTimeout: time.Second,
		MaxRetries:    retries,
	}
	l := NewLoader(zaptest.NewLogger(t), store, cfg)
	l.sleep = func(context.Context, time.Duration) error { return nil }
	return l
}

func doc(id int) []byte {
	return []byte(fmt.Sprintf(`{"job_id":"job-%d","platform":"wanted","job_title":"Job %d","crawled_at":"2024-06-01T00:00:00Z"}`, id, id))
}

func waitFor(t *testing.T, cond func() bool) {
	t.Helper()
	deadline := time.Now().Add(2 * time.Second)
	for !cond() {
		if time.Now().After(deadline) {
			t.Fatal("condition not met in time")
		}
		time.Sleep(5 * time.Millisecond)
	}
}

func TestLoadSignalsFullBatch(t *testing.T) {
	store := &fakeInserter{}
	l := newTestLoader(t, store, 2, 0)

	for i := 1; i <= 3; i++ {
		if err := l.Load(context.Background(), doc(i)); err != nil {
			t.Fatalf("Load %d: %v", i, err)
		}
	}
	if len(store.batches) != 0 {
		t.Fatal("Load must not insert inline")
	}
	if len(l.flushNow) != 1 {
		t.Fatal("a full batch should request one flush")
	}

	ctx, cancel := context.WithCancel(context.Background())
	defer cancel()
	go l.Run(ctx)

	waitFor(t, func() bool {
		_, inserted := l.Stats()
		return inserted == 3
	})
	store.mu.Lock()
	defer store.mu.Unlock()
	if len(store.batches) != 1 || store.batches[0][2].Title != "Job 3" {
		t.Fatalf("expected all queued postings in one batch, got %v", store.batches)
	}
}

func TestLoadRejectsBadDocument(t *testing.T) {
	store := &fakeInserter{}
	l := newTestLoader(t, store, 1, 0)

	if err := l.Load(context.Background(), []byte(`{"title":"no id"}`)); err == nil {
		t.Fatal("expected an error for a document without job_id")
	}
	if pending, _ := l.Stats(); pending != 0 {
		t.Fatal("bad documents must not be queued")
	}
}

func TestFlushRetries(t *testing.T) {
	store := &fakeInserter{fail: 2}
	l := newTestLoader(t, store, 10, 2)

	_ = l.Load(context.Background(), doc(1))
	if err := l.Flush(context.Background()); err != nil {
		t.Fatalf("Flush should succeed on the third attempt: %v", err)
	}
	if len(store.batches) != 1 {
		t.Fatalf("expected one inserted batch, got %d", len(store.batches))
	}
}

func TestFlushRequeuesAfterFailure(t *testing.T) {
	store := &fakeInserter{fail: 5}
	l := newTestLoader(t, store, 10, 1)

	_ = l.Load(context.Background(), doc(1))
	if err := l.Flush(context.Background()); err == nil {
		t.Fatal("expected flush to fail")
	}
	if pending, inserted := l.Stats(); pending != 1 || inserted != 0 {
		t.Fatalf("failed batch should be queued again, pending=%d inserted=%d", pending, inserted)
	}
}

type failingInserter struct {
	mu    sync.Mutex
	calls int
}

func (f *failingInserter) InsertJobPostings(ctx context.Context, postings []models.JobPosting) error {
	f.mu.Lock()
	f.calls++
	f.mu.Unlock()
	return errors.New("clickhouse unavailable")
}

func TestQueueBoundedWhileInsertsFail(t *testing.T) {
	store := &failingInserter{}
	l := newTestLoader(t, store, 2, 1)
	l.config.MaxPendingBatches = 3

	for i := 1; i <= 10; i++ {
		if err := l.Load(context.Background(), doc(i)); err != nil {
			t.Fatalf("Load %d: %v", i, err)
		}
		if i%2 == 0 {
			if err := l.Flush(context.Background()); err == nil {
				t.Fatal("expected flush to fail")
			}
		}
	}

	pending, inserted := l.Stats()
	if pending != 6 || inserted != 0 {
		t.Fatalf("queue should hold three batches, pending=%d inserted=%d", pending, inserted)
	}
	if l.Dropped() != 4 {
		t.Fatalf("expected the 4 oldest postings dropped, got %d", l.Dropped())
	}
	if l.pending[0].Title != "Job 5" || l.pending[5].Title != "Job 10" {
		t.Fatalf("oldest postings should go first, queue starts at %q", l.pending[0].Title)
	}
	if store.calls != 10 {
		t.Fatalf("expected two attempts per flush, got %d", store.calls)
	}
}

func TestRunFlushesOnShutdown(t *testing.T) {
	store := &fakeInserter{}
	l := newTestLoader(t, store, 10, 0)
	_ = l.Load(context.Background(), doc(1))

	ctx, cancel := context.WithCancel(context.Background())
	done := make(chan struct{})
	go func() {
		l.Run(ctx)
		close(done)
	}()
	cancel()

	select {
	case <-done:
	case <-time.After(2 * time.Second):
		t.Fatal("Run did not return after cancel")
	}
	if _, inserted := l.Stats(); inserted != 1 {
		t.Fatalf("expected final flush, inserted=%d", inserted)
	}
}

type fakeBatch struct {
	driver.Batch
	rows    [][]any
	sent    bool
	aborted bool
}

func (b *fakeBatch) Append(v ...any) error {
	b.rows = append(b.rows, v)
	return nil
}

func (b *fakeBatch) Send() error {
	b.sent = true
	return nil
}

func (b *fakeBatch) Abort() error {
	b.aborted = true
	return nil
}

type fakeBatcher struct {
	batch *fakeBatch
	query string
}

func (f *fakeBatcher) PrepareBatch(ctx context.Context, query string, opts ...driver.PrepareBatchOption) (driver.Batch, error) {
	f.query = query
	return f.batch, nil
}

func TestClickHouseStoreInsert(t *testing.T) {
	conn := &fakeBatcher{batch: &fakeBatch{}}
	s := &ClickHouseStore{conn: conn}

	err := s.InsertJobPostings(context.Background(), []models.JobPosting{{
		PostingID:     1,
		ExperienceMin: models.String("3"),
		URL:           models.String("https://jobs.example.com/1"),
		CrawledAt:     models.String("2024-06-01T03:04:05"),
	}})
	if err != nil {
		t.Fatalf("InsertJobPostings: %v", err)
	}
	if !conn.batch.sent || len(conn.batch.rows) != 1 {
		t.Fatalf("expected one row sent, got %+v", conn.batch)
	}

	row := conn.batch.rows[0]
	if len(row) != 15 {
		t.Fatalf("expected 15 columns, got %d", len(row))
	}
	if v := row[7].(*string); v == nil || *v != "3" {
		t.Fatalf("unexpected experience_min %v", row[7])
	}
	if row[8].(*string) != nil {
		t.Fatal("absent experience_max should be NULL")
	}
	if ts := row[14].(time.Time); !ts.Equal(time.Date(2024, 6, 1, 3, 4, 5, 0, time.UTC)) {
		t.Fatalf("unexpected crawled_at %v", ts)
	}
}

func TestClickHouseStoreRejectsBadTimestamp(t *testing.T) {
	conn := &fakeBatcher{batch: &fakeBatch{}}
	s := &ClickHouseStore{conn: conn}

	err := s.InsertJobPostings(context.Background(), []models.JobPosting{{PostingID: 1}})
	if err == nil || !conn.batch.aborted || conn.batch.sent {
		t.Fatalf("expected aborted batch, err=%v", err)
	}
}

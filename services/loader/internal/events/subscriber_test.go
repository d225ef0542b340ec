package events

import (
	"context"
	stderrors "errors"
	"sync"
	"testing"
	"time"

	"github.com/nats-io/nats.go"
	"go.uber.org/fx"
	"go.uber.org/fx/fxtest"
	"go.opentelemetry.io/otel/trace/noop"
	"go.uber.org/zap"
	"go.uber.org/zap/zapcore"
	"go.uber.org/zap/zaptest/observer"

	"jobgrid/common/errors"
	"jobgrid/services/loader/internal/config"
)

type fakeLoader struct {
	payloads [][]byte
	err      error
}

func (f *fakeLoader) Load(ctx context.Context, raw []byte) error {
	f.payloads = append(f.payloads, raw)
	return f.err
}

func newTestHandler(loader PostingLoader) (*Handler, *observer.ObservedLogs) {
	core, logs := observer.New(zapcore.DebugLevel)
	h := NewHandler(zap.New(core), nil, noop.NewTracerProvider().Tracer("test"), loader, nil)
	return h, logs
}

func TestHandleCrawledPosting(t *testing.T) {
	loader := &fakeLoader{}
	h, logs := newTestHandler(loader)

	h.handleCrawledPosting(&nats.Msg{Subject: "jobs.crawled", Data: []byte(`{"job_id":"1"}`)})

	if len(loader.payloads) != 1 || string(loader.payloads[0]) != `{"job_id":"1"}` {
		t.Fatalf("unexpected payloads %q", loader.payloads)
	}
	if logs.FilterLevelExact(zapcore.ErrorLevel).Len() != 0 {
		t.Fatal("unexpected error log")
	}
}

func TestHandleCrawledPostingFailures(t *testing.T) {
	tests := []struct {
		name  string
		err   error
		level zapcore.Level
	}{
		{name: "bad document", err: errors.InvalidInput("crawled posting has no job_id", nil), level: zapcore.WarnLevel},
		{name: "store down", err: errors.Unavailable("insert job postings", nil), level: zapcore.ErrorLevel},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			h, logs := newTestHandler(&fakeLoader{err: tt.err})
			h.handleCrawledPosting(&nats.Msg{Subject: "jobs.crawled", Data: []byte(`{}`)})

			entries := logs.FilterMessage("failed to load crawled posting").All()
			if len(entries) != 1 || entries[0].Level != tt.level {
				t.Fatalf("expected one %s log, got %v", tt.level, entries)
			}
		})
	}
}

type fakeConn struct {
	mu       sync.Mutex
	subject  string
	queue    string
	handler  nats.MsgHandler
	onClosed nats.ConnHandler
	drainErr error
	inFlight []*nats.Msg
	hang     bool
	drained  bool
	closed   bool
}

func (c *fakeConn) QueueSubscribe(subject, queue string, cb nats.MsgHandler) (*nats.Subscription, error) {
	c.subject, c.queue, c.handler = subject, queue, cb
	return &nats.Subscription{}, nil
}

func (c *fakeConn) SetClosedHandler(cb nats.ConnHandler) {
	c.onClosed = cb
}

// Drain delivers the in-flight messages and then reports the connection
// closed, like the NATS client does in the background.
func (c *fakeConn) Drain() error {
	c.mu.Lock()
	c.drained = true
	c.mu.Unlock()
	if c.drainErr != nil {
		return c.drainErr
	}
	if c.hang {
		return nil
	}
	go func() {
		time.Sleep(20 * time.Millisecond)
		for _, msg := range c.inFlight {
			c.handler(msg)
		}
		c.onClosed(nil)
	}()
	return nil
}

func (c *fakeConn) Close() {
	c.mu.Lock()
	c.closed = true
	c.mu.Unlock()
}

func newSubscribedHandler(t *testing.T, nc *fakeConn, loader PostingLoader) (*Handler, *fxtest.Lifecycle) {
	t.Helper()
	h := &Handler{
		logger: zap.NewNop(),
		nc:     nc,
		tracer: noop.NewTracerProvider().Tracer("test"),
		loader: loader,
		config: &config.Config{Subject: "jobs.crawled", QueueGroup: "loader-service"},
	}
	return h, fxtest.NewLifecycle(t)
}

func TestStopWaitsForDrain(t *testing.T) {
	loader := &fakeLoader{}
	nc := &fakeConn{inFlight: []*nats.Msg{{Subject: "jobs.crawled", Data: []byte(`{"job_id":"late"}`)}}}
	h, lc := newSubscribedHandler(t, nc, loader)

	// Registered first, so it stops last, like the loader's flusher.
	seenAtFlush := -1
	lc.Append(fx.Hook{OnStop: func(context.Context) error {
		seenAtFlush = len(loader.payloads)
		return nil
	}})

	if err := h.RegisterSubscriptions(lc); err != nil {
		t.Fatalf("RegisterSubscriptions: %v", err)
	}
	if nc.subject != "jobs.crawled" || nc.queue != "loader-service" {
		t.Fatalf("unexpected subscription %s/%s", nc.subject, nc.queue)
	}

	lc.RequireStart()
	ctx, cancel := context.WithTimeout(context.Background(), 2*time.Second)
	defer cancel()
	if err := lc.Stop(ctx); err != nil {
		t.Fatalf("Stop: %v", err)
	}

	if !nc.drained || nc.closed {
		t.Fatalf("connection should be drained, not closed outright: drained=%v closed=%v", nc.drained, nc.closed)
	}
	if seenAtFlush != 1 {
		t.Fatalf("in-flight message should be loaded before the final flush, saw %d", seenAtFlush)
	}
}

func TestStopClosesWhenDrainTimesOut(t *testing.T) {
	nc := &fakeConn{hang: true}
	h, lc := newSubscribedHandler(t, nc, &fakeLoader{})
	if err := h.RegisterSubscriptions(lc); err != nil {
		t.Fatalf("RegisterSubscriptions: %v", err)
	}
	lc.RequireStart()

	ctx, cancel := context.WithTimeout(context.Background(), 50*time.Millisecond)
	defer cancel()
	if err := lc.Stop(ctx); !stderrors.Is(err, context.DeadlineExceeded) {
		t.Fatalf("expected deadline error, got %v", err)
	}
	nc.mu.Lock()
	defer nc.mu.Unlock()
	if !nc.closed {
		t.Fatal("connection should be closed when draining takes too long")
	}
}

func TestStopClosesWhenDrainFails(t *testing.T) {
	nc := &fakeConn{drainErr: nats.ErrConnectionClosed}
	h, lc := newSubscribedHandler(t, nc, &fakeLoader{})
	if err := h.RegisterSubscriptions(lc); err != nil {
		t.Fatalf("RegisterSubscriptions: %v", err)
	}
	lc.RequireStart()

	if err := lc.Stop(context.Background()); !stderrors.Is(err, nats.ErrConnectionClosed) {
		t.Fatalf("expected drain error, got %v", err)
	}
	if !nc.closed {
		t.Fatal("connection should be closed after a failed drain")
	}
}

package replay

import (
	"bytes"
	"context"
	"errors"
	"io"
	"sort"
	"strings"
	"sync"
	"testing"

	"go.uber.org/zap/zaptest"
)

type recordingPublisher struct {
	mu       sync.Mutex
	messages []string
	failOn   string
}

func (p *recordingPublisher) Publish(ctx context.Context, data []byte) error {
	if p.failOn != "" && strings.Contains(string(data), p.failOn) {
		return errors.New("nats: connection closed")
	}
	p.mu.Lock()
	defer p.mu.Unlock()
	p.messages = append(p.messages, string(data))
	return nil
}

const dump = `{"job_id":"a","job_title":"Backend"}

not json
{"job_title":"missing id"}
{"job_id":"b"}
{"job_id":"c"}
`

func TestRun(t *testing.T) {
	pub := &recordingPublisher{}
	stats, err := New(zaptest.NewLogger(t), pub, 3, 0).Run(context.Background(), strings.NewReader(dump))
	if err != nil {
		t.Fatalf("Run: %v", err)
	}

	if stats.Lines != 6 || stats.Published != 3 || stats.Skipped != 3 || stats.Failed != 0 {
		t.Fatalf("unexpected stats %+v", stats)
	}
	sort.Strings(pub.messages)
	if pub.messages[0] != `{"job_id":"a","job_title":"Backend"}` {
		t.Fatalf("messages must be published verbatim, got %q", pub.messages[0])
	}
}

func TestRunCountsPublishFailures(t *testing.T) {
	pub := &recordingPublisher{failOn: `"b"`}
	stats, err := New(zaptest.NewLogger(t), pub, 1, 0).Run(context.Background(), strings.NewReader(dump))
	if err != nil {
		t.Fatalf("Run: %v", err)
	}
	if stats.Published != 2 || stats.Failed != 1 {
		t.Fatalf("unexpected stats %+v", stats)
	}
}

func TestRunCancelled(t *testing.T) {
	ctx, cancel := context.WithCancel(context.Background())
	cancel()

	var big bytes.Buffer
	for i := 0; i < 100; i++ {
		big.WriteString(`{"job_id":"x"}` + "\n")
	}

	_, err := New(zaptest.NewLogger(t), &recordingPublisher{}, 1, 0).Run(ctx, &big)
	if !errors.Is(err, context.Canceled) {
		t.Fatalf("expected context.Canceled, got %v", err)
	}
}

func TestWithProgress(t *testing.T) {
	var out bytes.Buffer
	r, finish := WithProgress(strings.NewReader(dump), int64(len(dump)), &out)

	data, err := io.ReadAll(r)
	finish()
	if err != nil {
		t.Fatalf("read: %v", err)
	}
	if string(data) != dump {
		t.Fatal("proxy reader must pass data through unchanged")
	}
	if out.Len() == 0 {
		t.Fatal("expected progress output")
	}
}

package grid

import (
	"context"
	"net/http"
	"net/http/httptest"
	"strings"
	"testing"

	"go.uber.org/zap"
	"go.uber.org/zap/zapcore"
	"go.uber.org/zap/zaptest/observer"

	"jobgrid/common/models"
)

type fakeContainer struct {
	markup string
	writes int
}

func (c *fakeContainer) SetHTML(markup string) {
	c.markup = markup
	c.writes++
}

type fakeDocument struct {
	containers map[string]*fakeContainer
}

func (d *fakeDocument) Container(id string) (Container, bool) {
	c, ok := d.containers[id]
	if !ok {
		return nil, false
	}
	return c, true
}

func newDocument() (*fakeDocument, *fakeContainer) {
	c := &fakeContainer{}
	return &fakeDocument{containers: map[string]*fakeContainer{ContainerID: c}}, c
}

type fakeAPI struct {
	rows  []models.JobPosting
	calls int
}

func (a *fakeAPI) SetRowData(rows []models.JobPosting) {
	a.rows = rows
	a.calls++
}

type fakeWidget struct {
	api API
}

func (w *fakeWidget) API() API { return w.api }

// readyConstructor mimics a widget that hands api to the ready callback.
func readyConstructor(api API, opts **Options) Constructor {
	return func(ctx context.Context, container Container, o *Options) (Widget, error) {
		if opts != nil {
			*opts = o
		}
		w := &fakeWidget{api: api}
		if o.OnReady != nil {
			o.OnReady(ctx, w.api)
		}
		return w, nil
	}
}

type countingSource struct {
	calls int
	rows  []models.JobPosting
	err   error
	limit int
}

func (s *countingSource) JobPostings(ctx context.Context, limit int) ([]models.JobPosting, error) {
	s.calls++
	s.limit = limit
	return s.rows, s.err
}

func newObservedLogger() (*zap.Logger, *observer.ObservedLogs) {
	core, logs := observer.New(zapcore.DebugLevel)
	return zap.New(core), logs
}

func TestMountWithoutContainer(t *testing.T) {
	logger, logs := newObservedLogger()
	source := &countingSource{}
	constructed := false
	newGrid := func(ctx context.Context, c Container, o *Options) (Widget, error) {
		constructed = true
		return &fakeWidget{}, nil
	}

	NewPresenter(logger, source, newGrid).Mount(context.Background(), &fakeDocument{})

	if source.calls != 0 {
		t.Fatalf("expected no fetch, got %d", source.calls)
	}
	if constructed {
		t.Fatal("widget must not be constructed without a container")
	}
	if n := logs.FilterLevelExact(zapcore.ErrorLevel).Len(); n != 1 {
		t.Fatalf("expected exactly one error log, got %d", n)
	}
}

func TestMountWithoutGridLibrary(t *testing.T) {
	logger, logs := newObservedLogger()
	doc, container := newDocument()
	source := &countingSource{}

	NewPresenter(logger, source, nil).Mount(context.Background(), doc)

	if container.markup != LibraryMissingMessage {
		t.Fatalf("unexpected container content %q", container.markup)
	}
	if source.calls != 0 {
		t.Fatal("no fetch may be attempted without a grid library")
	}
	if logs.FilterLevelExact(zapcore.ErrorLevel).Len() == 0 {
		t.Fatal("expected an error log")
	}
}

func TestMountConstructionPanics(t *testing.T) {
	logger, logs := newObservedLogger()
	doc, container := newDocument()
	newGrid := func(ctx context.Context, c Container, o *Options) (Widget, error) {
		panic("bad column definition")
	}

	NewPresenter(logger, &countingSource{}, newGrid).Mount(context.Background(), doc)

	if container.markup != InitFailedMessage {
		t.Fatalf("unexpected container content %q", container.markup)
	}
	entries := logs.FilterMessage("grid construction failed").All()
	if len(entries) != 1 {
		t.Fatalf("expected one construction failure log, got %d", len(entries))
	}
}

func TestMountConstructionError(t *testing.T) {
	logger, _ := newObservedLogger()
	doc, container := newDocument()
	newGrid := func(ctx context.Context, c Container, o *Options) (Widget, error) {
		return nil, context.DeadlineExceeded
	}

	NewPresenter(logger, &countingSource{}, newGrid).Mount(context.Background(), doc)

	if container.markup != InitFailedMessage {
		t.Fatalf("unexpected container content %q", container.markup)
	}
}

func TestMountBindsRows(t *testing.T) {
	server := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		if r.URL.Path != "/jobs/data" || r.URL.Query().Get("limit") != "500" {
			t.Errorf("unexpected request %s", r.URL)
		}
		w.Header().Set("Content-Type", "application/json")
		_, _ = w.Write([]byte(`[
			{"posting_id":1,"company_id":10,"title":"Backend","experience_min":"3","experience_max":"3","crawled_at":"2024-05-01T09:30:00","url":"https://example.com/1"},
			{"posting_id":2,"company_id":11,"title":"Data","experience_min":1,"experience_max":5,"crawled_at":null,"url":null},
			{"posting_id":3,"company_id":12,"title":"Infra","experience_min":"2","experience_max":null}
		]`))
	}))
	defer server.Close()

	logger, logs := newObservedLogger()
	doc, container := newDocument()
	api := &fakeAPI{}
	var opts *Options

	source := NewHTTPSource(server.URL, server.Client(), logger)
	NewPresenter(logger, source, readyConstructor(api, &opts)).Mount(context.Background(), doc)

	if api.calls != 1 {
		t.Fatalf("expected rows to be bound once, got %d", api.calls)
	}
	if len(api.rows) != 3 {
		t.Fatalf("expected 3 rows, got %d", len(api.rows))
	}
	if container.writes != 0 {
		t.Fatalf("container should be left to the widget, got %q", container.markup)
	}
	if n := logs.FilterLevelExact(zapcore.ErrorLevel).Len(); n != 0 {
		t.Fatalf("unexpected error logs: %d", n)
	}

	exp, _ := opts.Column("experience_min")
	collected, _ := opts.Column("crawled_at")
	want := []struct {
		experience string
		collected  string
		hasLink    bool
	}{
		{experience: "3", collected: "2024-05-01", hasLink: true},
		{experience: "1 ~ 5", collected: "", hasLink: false},
		{experience: "2", collected: "", hasLink: false},
	}
	for i, w := range want {
		row := api.rows[i]
		if got := exp.Value(row); got != w.experience {
			t.Errorf("row %d experience: got %q, want %q", i, got, w.experience)
		}
		if got := collected.Display(row); got != w.collected {
			t.Errorf("row %d collected: got %q, want %q", i, got, w.collected)
		}
		if got := LinkCell(row) != ""; got != w.hasLink {
			t.Errorf("row %d link: got %v, want %v", i, got, w.hasLink)
		}
	}
}

func TestMountServerError(t *testing.T) {
	server := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		w.WriteHeader(http.StatusInternalServerError)
		_, _ = w.Write([]byte("db down"))
	}))
	defer server.Close()

	logger, logs := newObservedLogger()
	doc, container := newDocument()
	api := &fakeAPI{}

	source := NewHTTPSource(server.URL, server.Client(), logger)
	NewPresenter(logger, source, readyConstructor(api, nil)).Mount(context.Background(), doc)

	if !strings.Contains(container.markup, "500") || !strings.Contains(container.markup, "db down") {
		t.Fatalf("container should mention status and body, got %q", container.markup)
	}
	if api.calls != 0 {
		t.Fatal("rows must not be bound after a failed fetch")
	}
	if logs.FilterMessage("failed to fetch or decode job postings").Len() != 1 {
		t.Fatal("expected the failure to be logged")
	}
}

func TestMountMalformedBody(t *testing.T) {
	server := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		_, _ = w.Write([]byte(`{"detail":"not a list"}`))
	}))
	defer server.Close()

	logger, _ := newObservedLogger()
	doc, container := newDocument()
	api := &fakeAPI{}

	source := NewHTTPSource(server.URL, server.Client(), logger)
	NewPresenter(logger, source, readyConstructor(api, nil)).Mount(context.Background(), doc)

	if !strings.Contains(container.markup, "decoding job postings") {
		t.Fatalf("expected decode failure message, got %q", container.markup)
	}
	if api.calls != 0 {
		t.Fatal("rows must not be bound after a decode failure")
	}
}

func TestMountTransportError(t *testing.T) {
	server := httptest.NewServer(http.NotFoundHandler())
	url := server.URL
	server.Close()

	logger, _ := newObservedLogger()
	doc, container := newDocument()

	source := NewHTTPSource(url, nil, logger)
	NewPresenter(logger, source, readyConstructor(&fakeAPI{}, nil)).Mount(context.Background(), doc)

	if !strings.Contains(container.markup, "Failed to load job postings") {
		t.Fatalf("expected failure message, got %q", container.markup)
	}
}

func TestMountWithoutAPI(t *testing.T) {
	logger, logs := newObservedLogger()
	doc, container := newDocument()
	source := &countingSource{rows: []models.JobPosting{{PostingID: 1}}}

	NewPresenter(logger, source, readyConstructor(nil, nil)).Mount(context.Background(), doc)

	if source.calls != 1 || source.limit != RowLimit {
		t.Fatalf("expected one fetch with limit %d, got %d calls limit %d", RowLimit, source.calls, source.limit)
	}
	if container.writes != 0 {
		t.Fatalf("no user-facing message expected, got %q", container.markup)
	}
	if logs.FilterMessage("grid API is not available on ready").Len() != 1 {
		t.Fatal("expected a diagnostic error")
	}
}

func TestFailureMessageEscapes(t *testing.T) {
	msg := failureMessage(&StatusError{StatusCode: 502, Status: "Bad Gateway", Body: "<script>x</script>"})
	if strings.Contains(msg, "<script>") {
		t.Fatalf("error text must be escaped: %q", msg)
	}
}

package handler

import (
	"context"
	"encoding/json"
	"io"
	"net/http"
	"net/http/httptest"
	"strings"
	"testing"

	"github.com/PuerkitoBio/goquery"
	"go.uber.org/zap/zaptest"

	"jobgrid/common/errors"
	"jobgrid/common/models"
	"jobgrid/services/web/internal/config"
	"jobgrid/services/web/internal/grid"
)

type fakeJobs struct {
	postings models.JobPostings
	stats    *models.Stats
	err      error
	skip     int
	limit    int
}

func (f *fakeJobs) ListJobPostings(ctx context.Context, skip, limit int) (models.JobPostings, error) {
	f.skip, f.limit = skip, limit
	return f.postings, f.err
}

func (f *fakeJobs) Stats(ctx context.Context, limit int) (*models.Stats, error) {
	f.limit = limit
	return f.stats, f.err
}

func newTestServer(t *testing.T, jobs *fakeJobs) *httptest.Server {
	t.Helper()
	logger := zaptest.NewLogger(t)
	h := NewHandler(logger, &config.Config{AppName: "Job Grid"}, jobs, nil)

	server := httptest.NewServer(h.Router())
	t.Cleanup(server.Close)
	h.source = grid.NewHTTPSource(server.URL, server.Client(), logger)
	return server
}

func get(t *testing.T, url string) (*http.Response, string) {
	t.Helper()
	resp, err := http.Get(url)
	if err != nil {
		t.Fatalf("GET %s: %v", url, err)
	}
	defer resp.Body.Close()
	body, err := io.ReadAll(resp.Body)
	if err != nil {
		t.Fatalf("read body: %v", err)
	}
	return resp, string(body)
}

func TestRootAndHealth(t *testing.T) {
	server := newTestServer(t, &fakeJobs{})

	resp, body := get(t, server.URL+"/")
	if resp.StatusCode != http.StatusOK {
		t.Fatalf("unexpected status %d", resp.StatusCode)
	}
	var msg map[string]string
	if err := json.Unmarshal([]byte(body), &msg); err != nil || msg["message"] != "Welcome to Job Grid" {
		t.Fatalf("unexpected body %q", body)
	}

	if _, body := get(t, server.URL+"/health"); body != "ok" {
		t.Fatalf("unexpected health body %q", body)
	}
}

func TestJobData(t *testing.T) {
	jobs := &fakeJobs{postings: models.JobPostings{{PostingID: 7, Title: "Go developer"}}}
	server := newTestServer(t, jobs)

	resp, body := get(t, server.URL+"/jobs/data?limit=500")
	if resp.StatusCode != http.StatusOK {
		t.Fatalf("unexpected status %d: %s", resp.StatusCode, body)
	}
	if jobs.skip != 0 || jobs.limit != 500 {
		t.Fatalf("unexpected paging %d/%d", jobs.skip, jobs.limit)
	}
	var postings []models.JobPosting
	if err := json.Unmarshal([]byte(body), &postings); err != nil {
		t.Fatalf("decode: %v", err)
	}
	if len(postings) != 1 || postings[0].PostingID != 7 {
		t.Fatalf("unexpected postings %+v", postings)
	}
}

func TestJobDataDefaultsAndValidation(t *testing.T) {
	jobs := &fakeJobs{postings: models.JobPostings{}}
	server := newTestServer(t, jobs)

	if resp, body := get(t, server.URL+"/jobs/data"); resp.StatusCode != http.StatusOK || strings.TrimSpace(body) != "[]" {
		t.Fatalf("unexpected response %d %q", resp.StatusCode, body)
	}
	if jobs.limit != defaultLimit {
		t.Fatalf("expected default limit, got %d", jobs.limit)
	}

	for _, q := range []string{"skip=-1", "skip=a", "limit=0", "limit=x"} {
		if resp, _ := get(t, server.URL+"/jobs/data?"+q); resp.StatusCode != http.StatusBadRequest {
			t.Fatalf("%s: expected 400, got %d", q, resp.StatusCode)
		}
	}
}

func TestJobDataUpstreamFailure(t *testing.T) {
	server := newTestServer(t, &fakeJobs{err: errors.Unavailable("api service returned status 500", nil)})

	resp, body := get(t, server.URL+"/jobs/data?limit=500")
	if resp.StatusCode != http.StatusBadGateway {
		t.Fatalf("expected 502, got %d", resp.StatusCode)
	}
	if !strings.Contains(body, "api service returned status 500") {
		t.Fatalf("error text should be passed through, got %q", body)
	}
}

func TestJobGridRendersRows(t *testing.T) {
	postings := make(models.JobPostings, 0, 20)
	for i := 1; i <= 20; i++ {
		postings = append(postings, models.JobPosting{
			PostingID: int64(i),
			CompanyID: int64(100 + i),
			Title:     "Engineer",
			URL:       models.String("https://jobs.example.com/x"),
		})
	}
	jobs := &fakeJobs{postings: postings}
	server := newTestServer(t, jobs)

	resp, body := get(t, server.URL+"/jobs/grid")
	if resp.StatusCode != http.StatusOK {
		t.Fatalf("unexpected status %d", resp.StatusCode)
	}
	if jobs.limit != grid.RowLimit {
		t.Fatalf("grid should request %d rows, got %d", grid.RowLimit, jobs.limit)
	}

	doc, err := goquery.NewDocumentFromReader(strings.NewReader(body))
	if err != nil {
		t.Fatalf("parse page: %v", err)
	}
	container := doc.Find("#" + grid.ContainerID)
	if container.Length() != 1 {
		t.Fatal("page should contain the grid container")
	}
	if n := container.Find("tbody tr.row").Length(); n != 15 {
		t.Fatalf("expected 15 rows on the first page, got %d", n)
	}
	if got := container.Find(".summary").Text(); got != "Rows 1 to 15 of 20" {
		t.Fatalf("unexpected summary %q", got)
	}
}

func TestJobGridShowsFetchFailure(t *testing.T) {
	server := newTestServer(t, &fakeJobs{err: errors.Unavailable("api down", nil)})

	_, body := get(t, server.URL+"/jobs/grid")
	doc, err := goquery.NewDocumentFromReader(strings.NewReader(body))
	if err != nil {
		t.Fatalf("parse page: %v", err)
	}
	text := doc.Find("#" + grid.ContainerID).Text()
	if !strings.Contains(text, "Failed to load job postings") || !strings.Contains(text, "502") {
		t.Fatalf("expected failure message with status, got %q", text)
	}
	if doc.Find("table").Length() != 0 {
		t.Fatal("failure message replaces the grid")
	}
}

func TestStaticAssets(t *testing.T) {
	server := newTestServer(t, &fakeJobs{})

	resp, body := get(t, server.URL+"/static/grid.css")
	if resp.StatusCode != http.StatusOK || !strings.Contains(body, ".job-grid") {
		t.Fatalf("unexpected stylesheet response %d", resp.StatusCode)
	}
}

func TestJobStatsRendersCounts(t *testing.T) {
	jobs := &fakeJobs{stats: &models.Stats{
		Overview: models.StatsOverview{
			TotalJobs:     12345,
			DataJobs:      3000,
			DataJobRatio:  24.3,
			Companies:     1200,
			Platforms:     3,
			LastCrawledAt: "2024-06-02T10:00:00",
		},
		TechStack: []models.Count{{Name: "python", Count: 4000}, {Name: "go", Count: 1000}},
		Region:    []models.Count{{Name: "강남구", Count: 900}},
	}}
	server := newTestServer(t, jobs)

	resp, body := get(t, server.URL+"/jobs/stats")
	if resp.StatusCode != http.StatusOK {
		t.Fatalf("unexpected status %d", resp.StatusCode)
	}
	if jobs.limit != statsLimit {
		t.Fatalf("expected %d buckets, got %d", statsLimit, jobs.limit)
	}

	doc, err := goquery.NewDocumentFromReader(strings.NewReader(body))
	if err != nil {
		t.Fatalf("parse page: %v", err)
	}

	var values []string
	doc.Find(".overview .metric .value").Each(func(_ int, s *goquery.Selection) {
		values = append(values, s.Text())
	})
	if len(values) != 5 || values[0] != "12,345" || values[1] != "24.3%" || values[2] != "1,200" {
		t.Fatalf("unexpected overview %v", values)
	}
	if !strings.HasPrefix(values[4], "2024-06-02 (") {
		t.Fatalf("unexpected last collected %q", values[4])
	}

	tech := doc.Find("#tech-stack tbody tr")
	if tech.Length() != 2 {
		t.Fatalf("expected 2 tech rows, got %d", tech.Length())
	}
	if got := tech.First().Find("td.count").Text(); got != "4,000" {
		t.Fatalf("unexpected count %q", got)
	}
	if style, _ := tech.Eq(1).Find("td.bar span").Attr("style"); style != "width: 25.0%" {
		t.Fatalf("bars should scale to the largest bucket, got %q", style)
	}
	if got := doc.Find("#region td.name").Text(); got != "강남구" {
		t.Fatalf("unexpected region %q", got)
	}
	if doc.Find("#position p.empty").Length() != 1 {
		t.Fatal("empty statistics should say so")
	}
}

func TestJobStatsUpstreamFailure(t *testing.T) {
	server := newTestServer(t, &fakeJobs{err: errors.Unavailable("api service returned status 500", nil)})

	resp, body := get(t, server.URL+"/jobs/stats")
	if resp.StatusCode != http.StatusBadGateway {
		t.Fatalf("expected 502, got %d", resp.StatusCode)
	}
	doc, err := goquery.NewDocumentFromReader(strings.NewReader(body))
	if err != nil {
		t.Fatalf("parse page: %v", err)
	}
	if text := doc.Find("p.error").Text(); !strings.Contains(text, "api service returned status 500") {
		t.Fatalf("expected error text, got %q", text)
	}
	if doc.Find("section").Length() != 0 {
		t.Fatal("no statistics should render on failure")
	}
}

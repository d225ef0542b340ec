package client

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"net/http"
	"strings"

	"jobgrid/common/cache"
	domainerrors "jobgrid/common/errors"
	"jobgrid/common/models"
	"jobgrid/common/telemetry"
	"jobgrid/services/web/internal/config"

	"go.opentelemetry.io/otel/trace"
	"go.uber.org/zap"
)

var tracer = telemetry.GetTracer("jobgrid/web/client")

// JobPostingClient reads postings from the api service.
type JobPostingClient interface {
	ListJobPostings(ctx context.Context, skip, limit int) (models.JobPostings, error)
	Stats(ctx context.Context, limit int) (*models.Stats, error)
}

type jobPostingClient struct {
	client  *http.Client
	logger  *zap.Logger
	config  *config.Config
	cache   cache.Cache
	baseURL string
}

func NewJobPostingClient(logger *zap.Logger, config *config.Config, c cache.Cache) JobPostingClient {
	return &jobPostingClient{
		client: &http.Client{
			Timeout: config.APITimeout,
		},
		logger:  logger,
		config:  config,
		cache:   c,
		baseURL: strings.TrimRight(config.APIServiceBaseURL, "/"),
	}
}

func (c *jobPostingClient) ListJobPostings(ctx context.Context, skip, limit int) (models.JobPostings, error) {
	ctx, span := tracer.Start(ctx, "ListJobPostings")
	defer span.End()
	span.SetAttributes(
		telemetry.Int("page.skip", skip),
		telemetry.Int("page.limit", limit),
	)

	cacheKey := fmt.Sprintf("jobs:list:%d:%d", skip, limit)

	var cached models.JobPostings
	err := c.cache.Get(ctx, cacheKey, &cached)
	if err == nil {
		span.SetAttributes(telemetry.String("cache.result", "hit"))
		c.logger.Debug("cache hit for job postings", zap.String("key", cacheKey))
		return cached, nil
	} else if !errors.Is(err, cache.ErrNotFound) {
		span.SetAttributes(telemetry.String("cache.result", "error"))
		span.RecordError(err)
		c.logger.Warn("cache error for job postings", zap.Error(err))
	} else {
		span.SetAttributes(telemetry.String("cache.result", "miss"))
	}

	url := fmt.Sprintf("%s/api/?skip=%d&limit=%d", c.baseURL, skip, limit)
	c.logger.Debug("cache miss, fetching job postings", zap.String("url", url))

	var postings models.JobPostings
	status, err := c.getJSON(ctx, url, &postings)
	if err != nil {
		span.RecordError(err)
		return nil, err
	}

	// The api service answers 404 when the table has no rows in range.
	if status == http.StatusNotFound {
		c.logger.Info("api service has no job postings in range",
			zap.Int("skip", skip),
			zap.Int("limit", limit))
		return models.JobPostings{}, nil
	}
	if postings == nil {
		postings = models.JobPostings{}
	}

	c.logger.Debug("successfully fetched job postings", zap.Int("count", len(postings)))

	if err := c.cache.Set(ctx, cacheKey, postings, c.config.CacheTTL); err != nil {
		c.logger.Warn("failed to cache job postings", zap.Error(err))
	}

	return postings, nil
}

// Stats reads the overview and every count dimension. The result is cached
// as one entry so the page never mixes numbers from different moments.
func (c *jobPostingClient) Stats(ctx context.Context, limit int) (*models.Stats, error) {
	ctx, span := tracer.Start(ctx, "Stats")
	defer span.End()
	span.SetAttributes(telemetry.Int("stats.limit", limit))

	cacheKey := fmt.Sprintf("jobs:stats:%d", limit)

	var cached models.Stats
	err := c.cache.Get(ctx, cacheKey, &cached)
	if err == nil {
		span.SetAttributes(telemetry.String("cache.result", "hit"))
		return &cached, nil
	} else if !errors.Is(err, cache.ErrNotFound) {
		span.RecordError(err)
		c.logger.Warn("cache error for statistics", zap.Error(err))
	}

	stats := &models.Stats{}
	targets := []struct {
		path string
		dest any
	}{
		{path: "overview", dest: &stats.Overview},
		{path: "tech-stack", dest: &stats.TechStack},
		{path: "position", dest: &stats.Position},
		{path: "region", dest: &stats.Region},
		{path: "company", dest: &stats.Company},
		{path: "experience", dest: &stats.Experience},
		{path: "education", dest: &stats.Education},
	}
	for _, target := range targets {
		url := c.baseURL + "/api/stats/" + target.path
		if target.path != "overview" {
			url += fmt.Sprintf("?limit=%d", limit)
		}

		status, err := c.getJSON(ctx, url, target.dest)
		if err != nil {
			span.RecordError(err)
			return nil, err
		}
		if status == http.StatusNotFound {
			return nil, domainerrors.NotFound("api service has no "+target.path+" statistics", nil)
		}
	}

	if err := c.cache.Set(ctx, cacheKey, stats, c.config.CacheTTL); err != nil {
		c.logger.Warn("failed to cache statistics", zap.Error(err))
	}
	return stats, nil
}

// getJSON decodes a 200 answer into dest. A 404 is returned as a status
// with dest untouched; any other status is an error.
func (c *jobPostingClient) getJSON(ctx context.Context, url string, dest any) (int, error) {
	span := trace.SpanFromContext(ctx)
	span.SetAttributes(telemetry.String("http.url", url))

	req, err := http.NewRequestWithContext(ctx, http.MethodGet, url, nil)
	if err != nil {
		return 0, domainerrors.Internal("creating request", err)
	}
	req.Header.Set("Accept", "application/json")

	resp, err := c.client.Do(req)
	if err != nil {
		c.logger.Error("failed to execute request", zap.Error(err))
		return 0, domainerrors.Unavailable("executing request", err)
	}
	defer func() {
		if cerr := resp.Body.Close(); cerr != nil {
			c.logger.Warn("failed to close response body", zap.Error(cerr))
		}
	}()

	span.SetAttributes(
		telemetry.Int("http.status_code", resp.StatusCode),
		telemetry.String("http.method", http.MethodGet),
	)

	if resp.StatusCode == http.StatusNotFound {
		return resp.StatusCode, nil
	}
	if resp.StatusCode != http.StatusOK {
		body, _ := io.ReadAll(io.LimitReader(resp.Body, 4096))
		c.logger.Error("unexpected status code",
			zap.String("url", url),
			zap.Int("status_code", resp.StatusCode),
			zap.ByteString("body", body))
		return resp.StatusCode, domainerrors.Unavailable(fmt.Sprintf("api service returned status %d", resp.StatusCode), nil)
	}

	if err := json.NewDecoder(resp.Body).Decode(dest); err != nil {
		c.logger.Error("failed to decode response", zap.String("url", url), zap.Error(err))
		return resp.StatusCode, domainerrors.Internal("decoding response", err)
	}
	return resp.StatusCode, nil
}

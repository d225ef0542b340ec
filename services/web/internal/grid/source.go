package grid

import (
	"context"
	"encoding/json"
	"fmt"
	"io"
	"net/http"
	"strings"

	"jobgrid/common/errors"
	"jobgrid/common/models"
	"jobgrid/common/telemetry"

	"go.uber.org/zap"
)

var tracer = telemetry.GetTracer("jobgrid/web/grid")

// Source supplies the rows bound into the grid.
type Source interface {
	JobPostings(ctx context.Context, limit int) ([]models.JobPosting, error)
}

// StatusError is returned for a non-2xx answer from the data endpoint.
type StatusError struct {
	StatusCode int
	Status     string
	Body       string
}

func (e *StatusError) Error() string {
	return fmt.Sprintf("network response was not ok: %d %s. server says: %s", e.StatusCode, e.Status, e.Body)
}

// HTTPSource reads rows from the /jobs/data endpoint.
type HTTPSource struct {
	client  *http.Client
	baseURL string
	logger  *zap.Logger
}

func NewHTTPSource(baseURL string, client *http.Client, logger *zap.Logger) *HTTPSource {
	if client == nil {
		client = http.DefaultClient
	}
	return &HTTPSource{
		client:  client,
		baseURL: strings.TrimRight(baseURL, "/"),
		logger:  logger,
	}
}

func (s *HTTPSource) JobPostings(ctx context.Context, limit int) ([]models.JobPosting, error) {
	ctx, span := tracer.Start(ctx, "HTTPSource.JobPostings")
	defer span.End()

	url := fmt.Sprintf("%s/jobs/data?limit=%d", s.baseURL, limit)
	span.SetAttributes(telemetry.String("http.url", url))

	req, err := http.NewRequestWithContext(ctx, http.MethodGet, url, nil)
	if err != nil {
		span.RecordError(err)
		return nil, errors.Internal("creating request", err)
	}
	req.Header.Set("Accept", "application/json")

	resp, err := s.client.Do(req)
	if err != nil {
		span.RecordError(err)
		return nil, errors.Unavailable("executing request", err)
	}
	defer func() {
		if cerr := resp.Body.Close(); cerr != nil {
			s.logger.Warn("failed to close response body", zap.Error(cerr))
		}
	}()

	span.SetAttributes(telemetry.Int("http.status_code", resp.StatusCode))
	s.logger.Info("job data response received", zap.Int("status_code", resp.StatusCode))

	if resp.StatusCode < 200 || resp.StatusCode > 299 {
		body, err := io.ReadAll(resp.Body)
		if err != nil {
			s.logger.Warn("failed to read error body", zap.Error(err))
		}
		statusErr := &StatusError{
			StatusCode: resp.StatusCode,
			Status:     http.StatusText(resp.StatusCode),
			Body:       string(body),
		}
		span.RecordError(statusErr)
		return nil, errors.Unavailable("job data request failed", statusErr)
	}

	var rows []models.JobPosting
	if err := json.NewDecoder(resp.Body).Decode(&rows); err != nil {
		span.RecordError(err)
		return nil, errors.InvalidInput("decoding job postings", err)
	}

	span.SetAttributes(telemetry.Int("rows.count", len(rows)))
	return rows, nil
}

package store

import (
	"context"
	"time"

	"jobgrid/common/errors"
	"jobgrid/common/models"
	"jobgrid/common/telemetry"

	"github.com/ClickHouse/clickhouse-go/v2"
	"github.com/ClickHouse/clickhouse-go/v2/lib/driver"
	"go.uber.org/zap"
)

var tracer = telemetry.GetTracer("jobgrid/api/store")

const timestampLayout = "2006-01-02T15:04:05"

const listQuery = `
	SELECT
		posting_id, company_id, platform_id, title, job_type, location, position,
		experience_min, experience_max, education, tech_stack, is_data_job,
		url, apply_end_date, crawled_at
	FROM jobposting FINAL
	ORDER BY posting_id
	LIMIT ? OFFSET ?
`

type queryer interface {
	Query(ctx context.Context, query string, args ...any) (driver.Rows, error)
	QueryRow(ctx context.Context, query string, args ...any) driver.Row
}

// JobPostingStore reads the jobposting table.
type JobPostingStore struct {
	conn   queryer
	logger *zap.Logger
}

func NewJobPostingStore(conn clickhouse.Conn, logger *zap.Logger) *JobPostingStore {
	return &JobPostingStore{conn: conn, logger: logger}
}

// List returns up to limit postings after skipping skip, ordered by posting id.
func (s *JobPostingStore) List(ctx context.Context, skip, limit int) ([]models.JobPosting, error) {
	ctx, span := tracer.Start(ctx, "JobPostingStore.List")
	defer span.End()
	span.SetAttributes(
		telemetry.Int("page.skip", skip),
		telemetry.Int("page.limit", limit),
	)

	s.logger.Info("querying job postings", zap.Int("skip", skip), zap.Int("limit", limit))

	rows, err := s.conn.Query(ctx, listQuery, limit, skip)
	if err != nil {
		span.RecordError(err)
		return nil, errors.Unavailable("querying job postings", err)
	}
	defer rows.Close()

	postings := make([]models.JobPosting, 0, limit)
	for rows.Next() {
		var (
			p              models.JobPosting
			expMin, expMax *string
			url            *string
			crawledAt      time.Time
		)
		if err := rows.Scan(
			&p.PostingID, &p.CompanyID, &p.PlatformID,
			&p.Title, &p.JobType, &p.Location, &p.Position,
			&expMin, &expMax, &p.Education, &p.TechStack, &p.IsDataJob,
			&url, &p.ApplyEndDate, &crawledAt,
		); err != nil {
			span.RecordError(err)
			return nil, errors.Internal("scanning job posting row", err)
		}
		p.ExperienceMin = models.Ptr(expMin)
		p.ExperienceMax = models.Ptr(expMax)
		p.URL = models.Ptr(url)
		if !crawledAt.IsZero() {
			p.CrawledAt = models.String(crawledAt.UTC().Format(timestampLayout))
		}
		postings = append(postings, p)
	}
	if err := rows.Err(); err != nil {
		span.RecordError(err)
		return nil, errors.Internal("iterating job posting rows", err)
	}

	span.SetAttributes(telemetry.Int("rows.count", len(postings)))
	s.logger.Info("job posting query finished", zap.Int("count", len(postings)))

	if len(postings) == 0 {
		s.logTableSize(ctx)
	}
	return postings, nil
}

// logTableSize records the table size so an empty page can be told apart
// from an empty table.
func (s *JobPostingStore) logTableSize(ctx context.Context) {
	var total uint64
	if err := s.conn.QueryRow(ctx, "SELECT count() FROM jobposting").Scan(&total); err != nil {
		s.logger.Warn("failed to count job postings", zap.Error(err))
		return
	}
	s.logger.Info("empty job posting page", zap.Uint64("table_rows", total))
}

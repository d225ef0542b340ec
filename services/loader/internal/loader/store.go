package loader

import (
	"context"
	"fmt"
	"time"

	"jobgrid/common/models"

	"github.com/ClickHouse/clickhouse-go/v2"
	"github.com/ClickHouse/clickhouse-go/v2/lib/driver"
)

const insertQuery = `
	INSERT INTO jobposting (
		posting_id, company_id, platform_id, title, job_type, location, position,
		experience_min, experience_max, education, tech_stack, is_data_job,
		url, apply_end_date, crawled_at
	)
`

// Inserter writes a batch of postings.
type Inserter interface {
	InsertJobPostings(ctx context.Context, postings []models.JobPosting) error
}

type batcher interface {
	PrepareBatch(ctx context.Context, query string, opts ...driver.PrepareBatchOption) (driver.Batch, error)
}

type ClickHouseStore struct {
	conn batcher
}

func NewClickHouseStore(conn clickhouse.Conn) *ClickHouseStore {
	return &ClickHouseStore{conn: conn}
}

func (s *ClickHouseStore) InsertJobPostings(ctx context.Context, postings []models.JobPosting) error {
	batch, err := s.conn.PrepareBatch(ctx, insertQuery)
	if err != nil {
		return fmt.Errorf("prepare batch: %w", err)
	}

	for _, p := range postings {
		crawledAt, err := time.Parse(timestampLayout, p.CrawledAt.String())
		if err != nil {
			_ = batch.Abort()
			return fmt.Errorf("posting %d crawled_at: %w", p.PostingID, err)
		}
		if err := batch.Append(
			p.PostingID, p.CompanyID, p.PlatformID,
			p.Title, p.JobType, p.Location, p.Position,
			nullable(p.ExperienceMin), nullable(p.ExperienceMax),
			p.Education, p.TechStack, p.IsDataJob,
			nullable(p.URL), p.ApplyEndDate, crawledAt,
		); err != nil {
			_ = batch.Abort()
			return fmt.Errorf("append posting %d: %w", p.PostingID, err)
		}
	}

	if err := batch.Send(); err != nil {
		return fmt.Errorf("send batch: %w", err)
	}
	return nil
}

func nullable(t models.Text) *string {
	if !t.Valid {
		return nil
	}
	v := t.Value
	return &v
}

package store

import (
	"context"
	"fmt"
	"regexp"
	"strconv"
	"time"

	"jobgrid/common/errors"
	"jobgrid/common/models"
	"jobgrid/common/telemetry"

	"go.uber.org/zap"
)

// Dimension names a column the statistics endpoints group by.
type Dimension string

const (
	DimensionTechStack  Dimension = "tech-stack"
	DimensionPosition   Dimension = "position"
	DimensionRegion     Dimension = "region"
	DimensionCompany    Dimension = "company"
	DimensionEducation  Dimension = "education"
	DimensionExperience Dimension = "experience"
)

const overviewQuery = `
	SELECT
		count(),
		countIf(is_data_job),
		uniqExact(company_id),
		uniqExact(platform_id),
		max(crawled_at)
	FROM jobposting FINAL
`

// tech_stack is stored as a ", " separated list.
var countQueries = map[Dimension]string{
	DimensionTechStack: `
	SELECT trimBoth(tech) AS name, count() AS n
	FROM jobposting FINAL
	ARRAY JOIN splitByChar(',', tech_stack) AS tech
	WHERE name != ''
	GROUP BY name
	ORDER BY n DESC, name
	LIMIT ?`,
	DimensionPosition: `
	SELECT position AS name, count() AS n
	FROM jobposting FINAL
	WHERE name != ''
	GROUP BY name
	ORDER BY n DESC, name
	LIMIT ?`,
	DimensionRegion: `
	SELECT if(length(splitByChar(' ', location)) > 1, splitByChar(' ', location)[2], location) AS name, count() AS n
	FROM jobposting FINAL
	WHERE name != ''
	GROUP BY name
	ORDER BY n DESC, name
	LIMIT ?`,
	DimensionCompany: `
	SELECT toString(company_id) AS name, count() AS n
	FROM jobposting FINAL
	GROUP BY company_id
	ORDER BY n DESC, company_id
	LIMIT ?`,
	DimensionEducation: `
	SELECT education AS name, count() AS n
	FROM jobposting FINAL
	WHERE name != ''
	GROUP BY name
	ORDER BY n DESC, name
	LIMIT ?`,
}

const experienceQuery = `
	SELECT experience_min, count()
	FROM jobposting FINAL
	GROUP BY experience_min
`

// Experience bands, in display order.
const (
	BandEntry  = "Entry (0)"
	BandJunior = "Junior (1-3)"
	BandMid    = "Mid (4-6)"
	BandSenior = "Senior (7+)"
	BandAny    = "Not specified"
)

var experienceBands = []string{BandEntry, BandJunior, BandMid, BandSenior, BandAny}

var yearsPattern = regexp.MustCompile(`\d+`)

// Dimensions lists every dimension Counts accepts.
func Dimensions() []Dimension {
	return []Dimension{
		DimensionTechStack, DimensionPosition, DimensionRegion,
		DimensionCompany, DimensionEducation, DimensionExperience,
	}
}

func (d Dimension) Valid() bool {
	if d == DimensionExperience {
		return true
	}
	_, ok := countQueries[d]
	return ok
}

// Overview aggregates the table into headline numbers.
func (s *JobPostingStore) Overview(ctx context.Context) (models.StatsOverview, error) {
	ctx, span := tracer.Start(ctx, "JobPostingStore.Overview")
	defer span.End()

	var (
		o         models.StatsOverview
		crawledAt time.Time
	)
	if err := s.conn.QueryRow(ctx, overviewQuery).Scan(
		&o.TotalJobs, &o.DataJobs, &o.Companies, &o.Platforms, &crawledAt,
	); err != nil {
		span.RecordError(err)
		return models.StatsOverview{}, errors.Unavailable("querying statistics overview", err)
	}

	if o.TotalJobs > 0 {
		o.DataJobRatio = float64(o.DataJobs) / float64(o.TotalJobs) * 100
		if !crawledAt.IsZero() {
			o.LastCrawledAt = crawledAt.UTC().Format(timestampLayout)
		}
	}

	span.SetAttributes(telemetry.Int("stats.total_jobs", int(o.TotalJobs)))
	s.logger.Info("statistics overview computed",
		zap.Uint64("total_jobs", o.TotalJobs),
		zap.Uint64("data_jobs", o.DataJobs))
	return o, nil
}

// Counts groups postings by dimension, largest buckets first. Experience
// is always returned as the fixed set of bands and ignores limit.
func (s *JobPostingStore) Counts(ctx context.Context, dim Dimension, limit int) ([]models.Count, error) {
	ctx, span := tracer.Start(ctx, "JobPostingStore.Counts")
	defer span.End()
	span.SetAttributes(
		telemetry.String("stats.dimension", string(dim)),
		telemetry.Int("stats.limit", limit),
	)

	if dim == DimensionExperience {
		return s.experienceCounts(ctx)
	}

	query, ok := countQueries[dim]
	if !ok {
		return nil, errors.InvalidInput(fmt.Sprintf("unknown statistics dimension %q", dim), nil)
	}

	rows, err := s.conn.Query(ctx, query, limit)
	if err != nil {
		span.RecordError(err)
		return nil, errors.Unavailable("querying "+string(dim)+" counts", err)
	}
	defer rows.Close()

	counts := make([]models.Count, 0, limit)
	for rows.Next() {
		var c models.Count
		if err := rows.Scan(&c.Name, &c.Count); err != nil {
			span.RecordError(err)
			return nil, errors.Internal("scanning "+string(dim)+" count", err)
		}
		counts = append(counts, c)
	}
	if err := rows.Err(); err != nil {
		span.RecordError(err)
		return nil, errors.Internal("iterating "+string(dim)+" counts", err)
	}

	s.logger.Debug("statistics counts computed",
		zap.String("dimension", string(dim)),
		zap.Int("buckets", len(counts)))
	return counts, nil
}

func (s *JobPostingStore) experienceCounts(ctx context.Context) ([]models.Count, error) {
	rows, err := s.conn.Query(ctx, experienceQuery)
	if err != nil {
		return nil, errors.Unavailable("querying experience counts", err)
	}
	defer rows.Close()

	totals := make(map[string]uint64, len(experienceBands))
	for rows.Next() {
		var (
			minYears *string
			n        uint64
		)
		if err := rows.Scan(&minYears, &n); err != nil {
			return nil, errors.Internal("scanning experience count", err)
		}
		totals[ExperienceBand(minYears)] += n
	}
	if err := rows.Err(); err != nil {
		return nil, errors.Internal("iterating experience counts", err)
	}

	counts := make([]models.Count, 0, len(experienceBands))
	for _, band := range experienceBands {
		counts = append(counts, models.Count{Name: band, Count: totals[band]})
	}
	return counts, nil
}

// ExperienceBand buckets a minimum-experience value. "신입" (new grad) is
// entry level; values without a number are unspecified.
func ExperienceBand(minYears *string) string {
	if minYears == nil {
		return BandAny
	}
	if *minYears == "신입" {
		return BandEntry
	}
	digits := yearsPattern.FindString(*minYears)
	if digits == "" {
		return BandAny
	}
	years, err := strconv.Atoi(digits)
	if err != nil {
		return BandAny
	}
	switch {
	case years == 0:
		return BandEntry
	case years <= 3:
		return BandJunior
	case years <= 6:
		return BandMid
	}
	return BandSenior
}

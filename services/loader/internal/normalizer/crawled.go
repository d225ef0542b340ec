package normalizer

import (
	"bytes"
	"encoding/json"
	"fmt"
	"strings"
	"time"

	"jobgrid/common/models"
)

// CrawledPosting is one document as produced by the crawlers.
type CrawledPosting struct {
	JobID      string     `json:"job_id"`
	JobURL     string     `json:"job_url"`
	Platform   string     `json:"platform"`
	JobTitle   string     `json:"job_title"`
	Company    Company    `json:"company"`
	WorkType   string     `json:"work_type"`
	Location   Location   `json:"location"`
	Education  string     `json:"education"`
	Experience Experience `json:"experience"`
	Position   Position   `json:"position"`
	TechStack  TechStack  `json:"tech_stack"`
	Deadline   string     `json:"deadline"`
	CrawledAt  Timestamp  `json:"crawled_at"`
}

type Company struct {
	Name     string `json:"name"`
	Size     string `json:"size"`
	Industry string `json:"industry"`
}

type Location struct {
	City     string `json:"city"`
	District string `json:"district"`
}

type Experience struct {
	MinYears    models.Text `json:"min_years"`
	MaxYears    models.Text `json:"max_years"`
	Description string      `json:"description"`
}

type Position struct {
	RawText    string             `json:"raw_text"`
	RawList    []string           `json:"raw_list"`
	Normalized PositionNormalized `json:"normalized"`
}

type PositionNormalized struct {
	PrimaryLabel   string `json:"primary_label"`
	SecondaryLabel string `json:"secondary_label"`
	IsDataRole     bool   `json:"is_data_role"`
}

type TechStack struct {
	RawText string   `json:"raw_text"`
	RawList []string `json:"raw_list"`
}

// Timestamp accepts an ISO 8601 string or a {"$date": "..."} wrapper.
type Timestamp struct {
	time.Time
}

var timestampLayouts = []string{
	time.RFC3339Nano,
	"2006-01-02T15:04:05.999999999",
	"2006-01-02 15:04:05.999999999",
	"2006-01-02",
}

func (t *Timestamp) UnmarshalJSON(data []byte) error {
	data = bytes.TrimSpace(data)
	if bytes.Equal(data, []byte("null")) {
		t.Time = time.Time{}
		return nil
	}

	var raw string
	if len(data) > 0 && data[0] == '{' {
		var wrapped struct {
			Date string `json:"$date"`
		}
		if err := json.Unmarshal(data, &wrapped); err != nil {
			return err
		}
		raw = wrapped.Date
	} else if err := json.Unmarshal(data, &raw); err != nil {
		return fmt.Errorf("crawled_at: %w", err)
	}

	raw = strings.TrimSpace(raw)
	if raw == "" {
		t.Time = time.Time{}
		return nil
	}
	for _, layout := range timestampLayouts {
		if parsed, err := time.Parse(layout, raw); err == nil {
			t.Time = parsed
			return nil
		}
	}
	return fmt.Errorf("crawled_at: unrecognised timestamp %q", raw)
}

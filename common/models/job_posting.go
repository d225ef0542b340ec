package models

import (
	"bytes"
	"encoding/json"
	"fmt"
	"strconv"
)

// JobPosting is one listing as served by the api service and /jobs/data.
type JobPosting struct {
	PostingID     int64  `json:"posting_id"`
	CompanyID     int64  `json:"company_id"`
	PlatformID    int64  `json:"platform_id"`
	Title         string `json:"title"`
	JobType       string `json:"job_type"`
	Location      string `json:"location"`
	Position      string `json:"position"`
	ExperienceMin Text   `json:"experience_min"`
	ExperienceMax Text   `json:"experience_max"`
	Education     string `json:"education"`
	TechStack     string `json:"tech_stack"`
	IsDataJob     bool   `json:"is_data_job"`
	URL           Text   `json:"url"`
	ApplyEndDate  string `json:"apply_end_date"`
	CrawledAt     Text   `json:"crawled_at"`
}

// Field returns the raw value stored under the given JSON field name.
// Unknown names yield an absent value.
func (p JobPosting) Field(name string) Text {
	switch name {
	case "posting_id":
		return Int(p.PostingID)
	case "company_id":
		return Int(p.CompanyID)
	case "platform_id":
		return Int(p.PlatformID)
	case "title":
		return String(p.Title)
	case "job_type":
		return String(p.JobType)
	case "location":
		return String(p.Location)
	case "position":
		return String(p.Position)
	case "experience_min":
		return p.ExperienceMin
	case "experience_max":
		return p.ExperienceMax
	case "education":
		return String(p.Education)
	case "tech_stack":
		return String(p.TechStack)
	case "is_data_job":
		return String(strconv.FormatBool(p.IsDataJob))
	case "url":
		return p.URL
	case "apply_end_date":
		return String(p.ApplyEndDate)
	case "crawled_at":
		return p.CrawledAt
	}
	return Text{}
}

// Text is an optional JSON scalar. Upstream rows carry some bounds as
// numbers and others as strings, so both decode into the same textual form.
type Text struct {
	Value string
	Valid bool
}

func String(s string) Text {
	return Text{Value: s, Valid: true}
}

func Int(n int64) Text {
	return Text{Value: strconv.FormatInt(n, 10), Valid: true}
}

// Ptr converts a nullable column value.
func Ptr(s *string) Text {
	if s == nil {
		return Text{}
	}
	return String(*s)
}

func (t Text) String() string {
	if !t.Valid {
		return ""
	}
	return t.Value
}

func (t Text) MarshalJSON() ([]byte, error) {
	if !t.Valid {
		return []byte("null"), nil
	}
	return json.Marshal(t.Value)
}

func (t *Text) UnmarshalJSON(data []byte) error {
	data = bytes.TrimSpace(data)
	if bytes.Equal(data, []byte("null")) {
		*t = Text{}
		return nil
	}

	if len(data) > 0 && data[0] == '"' {
		var s string
		if err := json.Unmarshal(data, &s); err != nil {
			return err
		}
		*t = String(s)
		return nil
	}

	var n json.Number
	if err := json.Unmarshal(data, &n); err != nil {
		return fmt.Errorf("expected string, number or null, got %s", data)
	}
	*t = String(n.String())
	return nil
}

// JobPostings is the cacheable form of a listing page.
type JobPostings []JobPosting

func (l JobPostings) MarshalBinary() ([]byte, error) {
	return json.Marshal(l)
}

func (l *JobPostings) UnmarshalBinary(data []byte) error {
	return json.Unmarshal(data, l)
}

package models

import "encoding/json"

// StatsOverview summarises the whole jobposting table.
type StatsOverview struct {
	TotalJobs     uint64  `json:"total_jobs"`
	DataJobs      uint64  `json:"data_jobs"`
	DataJobRatio  float64 `json:"data_job_ratio"`
	Companies     uint64  `json:"companies"`
	Platforms     uint64  `json:"platforms"`
	LastCrawledAt string  `json:"last_crawled_at,omitempty"`
}

// Count is one bucket of a GROUP BY aggregation.
type Count struct {
	Name  string `json:"name"`
	Count uint64 `json:"count"`
}

// Stats is everything the statistics page shows, cached as one value.
type Stats struct {
	Overview   StatsOverview `json:"overview"`
	TechStack  []Count       `json:"tech_stack"`
	Position   []Count       `json:"position"`
	Region     []Count       `json:"region"`
	Company    []Count       `json:"company"`
	Experience []Count       `json:"experience"`
	Education  []Count       `json:"education"`
}

func (s Stats) MarshalBinary() ([]byte, error) {
	return json.Marshal(s)
}

func (s *Stats) UnmarshalBinary(data []byte) error {
	return json.Unmarshal(data, s)
}

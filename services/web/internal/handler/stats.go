package handler

import (
	"fmt"
	"html/template"
	"net/http"
	"time"

	"jobgrid/common/models"

	"github.com/dustin/go-humanize"
	"go.uber.org/zap"
)

// statsLimit is the number of buckets shown per statistic.
const statsLimit = 20

var statsTemplate = template.Must(template.ParseFS(assets, "templates/stats.html"))

type metric struct {
	Label string
	Value string
}

type statsRow struct {
	Name  string
	Count string
	Bar   template.CSS
}

type statsSection struct {
	ID    string
	Title string
	Label string
	Rows  []statsRow
}

type statsPage struct {
	Title    string
	Error    string
	Metrics  []metric
	Sections []statsSection
}

// GET /jobs/stats
func (h *Handler) JobStats(w http.ResponseWriter, r *http.Request) {
	data := statsPage{Title: h.config.AppName}
	status := http.StatusOK

	stats, err := h.jobs.Stats(r.Context(), statsLimit)
	if err != nil {
		h.logger.Error("failed to load statistics", zap.Error(err))
		data.Error = err.Error()
		status = http.StatusBadGateway
	} else {
		data.Metrics = overviewMetrics(stats.Overview, time.Now())
		data.Sections = []statsSection{
			section("tech-stack", "Most requested tech stack", "Technology", stats.TechStack),
			section("position", "Postings by position", "Position", stats.Position),
			section("region", "Most active regions", "District", stats.Region),
			section("company", "Postings by company", "Company ID", stats.Company),
			section("experience", "Required experience", "Experience", stats.Experience),
			section("education", "Required education", "Education", stats.Education),
		}
	}

	w.Header().Set("Content-Type", "text/html; charset=utf-8")
	w.WriteHeader(status)
	if err := statsTemplate.Execute(w, data); err != nil {
		h.logger.Error("failed to render statistics page", zap.Error(err))
	}
}

func overviewMetrics(o models.StatsOverview, now time.Time) []metric {
	metrics := []metric{
		{Label: "Postings", Value: humanize.Comma(int64(o.TotalJobs))},
		{Label: "Data job share", Value: fmt.Sprintf("%.1f%%", o.DataJobRatio)},
		{Label: "Companies", Value: humanize.Comma(int64(o.Companies))},
		{Label: "Platforms", Value: humanize.Comma(int64(o.Platforms))},
	}
	if crawled, err := time.Parse("2006-01-02T15:04:05", o.LastCrawledAt); err == nil {
		metrics = append(metrics, metric{
			Label: "Last collected",
			Value: crawled.Format("2006-01-02") + " (" + humanize.RelTime(crawled, now, "ago", "from now") + ")",
		})
	}
	return metrics
}

// section scales every bar against the largest bucket.
func section(id, title, label string, counts []models.Count) statsSection {
	s := statsSection{ID: id, Title: title, Label: label}

	var largest uint64
	for _, c := range counts {
		largest = max(largest, c.Count)
	}
	for _, c := range counts {
		width := 0.0
		if largest > 0 {
			width = float64(c.Count) / float64(largest) * 100
		}
		s.Rows = append(s.Rows, statsRow{
			Name:  c.Name,
			Count: humanize.Comma(int64(c.Count)),
			Bar:   template.CSS(fmt.Sprintf("width: %.1f%%", width)),
		})
	}
	return s
}

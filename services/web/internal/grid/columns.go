package grid

import (
	"html/template"
	"strings"

	"jobgrid/common/models"
)

const linkCaption = "View"

var linkTemplate = template.Must(template.New("link").Parse(
	`<a href="{{.}}" target="_blank" rel="noopener noreferrer">` + linkCaption + `</a>`))

// JobColumns is the fixed column layout of the job posting grid.
func JobColumns() []Column {
	return []Column{
		{Header: "Company ID", Field: "company_id", Sortable: On, Filter: FilterNumber, Width: 120},
		{Header: "Title", Field: "title", Sortable: On, Filter: FilterText, Flex: 3},
		{Header: "Position", Field: "position", Sortable: On, Filter: FilterText, Flex: 1.5},
		{Header: "Location", Field: "location", Sortable: On, Filter: FilterText, Flex: 1.5},
		{Header: "Job Type", Field: "job_type", Sortable: On, Filter: FilterText, Width: 120},
		{Header: "Experience", Field: "experience_min", Sortable: On, Filter: FilterText, Width: 120, Getter: ExperienceRange},
		{Header: "Education", Field: "education", Sortable: On, Filter: FilterText, Width: 120},
		{Header: "Tech Stack", Field: "tech_stack", Sortable: Off, Filter: FilterText, Flex: 2},
		{Header: "Deadline", Field: "apply_end_date", Sortable: On, Filter: FilterText, Width: 130},
		{Header: "Collected", Field: "crawled_at", Sortable: On, Filter: FilterDate, Width: 130, Formatter: DatePart},
		{Header: "URL", Field: "url", Sortable: Off, Filter: FilterNone, Width: 80, Renderer: LinkCell},
	}
}

// ExperienceRange shows "min ~ max", collapsing to min when max is absent
// or equal to it.
func ExperienceRange(p models.JobPosting) string {
	lo := p.ExperienceMin.String()
	hi := p.ExperienceMax.String()
	if lo == hi || hi == "" {
		return lo
	}
	return lo + " ~ " + hi
}

// DatePart keeps the date of an ISO 8601 timestamp.
func DatePart(timestamp string) string {
	date, _, _ := strings.Cut(timestamp, "T")
	return date
}

// LinkCell renders the posting URL as a link opening in a new tab.
// Unsafe schemes are neutralised by html/template.
func LinkCell(p models.JobPosting) template.HTML {
	if p.URL.String() == "" {
		return ""
	}
	var b strings.Builder
	if err := linkTemplate.Execute(&b, p.URL.Value); err != nil {
		return ""
	}
	return template.HTML(b.String())
}

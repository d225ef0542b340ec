package crawler

import (
	"regexp"
	"strconv"
	"strings"

	"jobgrid/common/models"
)

// Posting is the document published on the crawled subject. Field names
// match what the loader decodes.
type Posting struct {
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
	CrawledAt  string     `json:"crawled_at"`
}

type Company struct {
	Name     string `json:"name"`
	Size     string `json:"size"`
	Industry string `json:"industry"`
}

type Location struct {
	RawText  string `json:"raw_text"`
	City     string `json:"city"`
	District string `json:"district"`
}

type Experience struct {
	MinYears    models.Text `json:"min_years"`
	MaxYears    models.Text `json:"max_years"`
	Description string      `json:"description"`
}

type Position struct {
	RawText string   `json:"raw_text"`
	RawList []string `json:"raw_list"`
}

type TechStack struct {
	RawText string   `json:"raw_text"`
	RawList []string `json:"raw_list"`
}

// openEnded is the max_years of "N년 이상" requirements.
const openEnded = 99

var (
	numberPattern   = regexp.MustCompile(`\d+`)
	districtPattern = regexp.MustCompile(`[가-힣]+구`)
)

var cities = []string{"서울", "경기", "부산", "대구", "인천", "광주", "대전", "울산", "세종"}

// ParseExperience reads requirements such as "신입", "경력 3년 이상" or
// "경력 2~5년". Text without a number leaves both bounds null.
func ParseExperience(text string) Experience {
	e := Experience{Description: text}
	if strings.Contains(text, "신입") || strings.Contains(text, "경력무관") {
		e.MinYears, e.MaxYears = models.Int(0), models.Int(0)
		return e
	}

	var years []int64
	for _, digits := range numberPattern.FindAllString(text, -1) {
		if n, err := strconv.ParseInt(digits, 10, 64); err == nil {
			years = append(years, n)
		}
	}
	switch {
	case len(years) == 0:
	case strings.Contains(text, "이상"):
		e.MinYears, e.MaxYears = models.Int(years[0]), models.Int(openEnded)
	default:
		lo, hi := years[0], years[0]
		for _, y := range years[1:] {
			lo, hi = min(lo, y), max(hi, y)
		}
		e.MinYears, e.MaxYears = models.Int(lo), models.Int(hi)
	}
	return e
}

// ParseLocation splits "서울 강남구 ..." into city and district. Only the
// first city named is kept.
func ParseLocation(text string) Location {
	l := Location{RawText: text}
	for _, city := range cities {
		if strings.Contains(text, city) {
			l.City = city
			break
		}
	}
	if l.City != "" {
		l.District = districtPattern.FindString(text)
	}
	return l
}

package crawler

import (
	"net/url"
	"regexp"
	"strconv"
	"strings"
	"time"

	"github.com/PuerkitoBio/goquery"
)

const platform = "saramin"

// Listing is one card of a result page.
type Listing struct {
	URL     string
	RecIdx  string
	Title   string
	Company string
	Sectors []string
}

var recIdxPattern = regexp.MustCompile(`rec_idx[=:](\d+)`)

// RecIdx extracts the posting number from a job URL.
func RecIdx(jobURL string) (string, bool) {
	m := recIdxPattern.FindStringSubmatch(jobURL)
	if m == nil {
		return "", false
	}
	return m[1], true
}

// ParseListing collects at most limit cards from a result page. Relative
// links are resolved against base; cards without a job link are skipped.
func ParseListing(doc *goquery.Document, base *url.URL, limit int) []Listing {
	var listings []Listing
	doc.Find("section.list_recruiting div.list_item").EachWithBreak(func(_ int, item *goquery.Selection) bool {
		if limit > 0 && len(listings) >= limit {
			return false
		}

		link := firstMatch(item,
			"div.job_tit a.str_tit",
			`a[href*="/zf_user/jobs/relay/view"]`,
			`a[href*="/zf_user/jobs/view"]`,
		)
		href, ok := link.Attr("href")
		if !ok {
			return true
		}
		ref, err := url.Parse(strings.TrimSpace(href))
		if err != nil {
			return true
		}
		jobURL := base.ResolveReference(ref).String()
		recIdx, ok := RecIdx(jobURL)
		if !ok || !strings.Contains(jobURL, "/zf_user/jobs/") {
			return true
		}

		title, _ := link.Attr("title")
		if title = strings.TrimSpace(title); title == "" {
			title = text(link)
		}

		company := firstMatch(item, "div.company_nm a", "div.company_nm")

		listings = append(listings, Listing{
			URL:     jobURL,
			RecIdx:  recIdx,
			Title:   title,
			Company: text(company),
			Sectors: texts(item.Find(".job_sector span")),
		})
		return true
	})
	return listings
}

// ParseDetail builds a posting from a detail page. Values found on the
// listing card win over the page's own title and company.
func ParseDetail(doc *goquery.Document, l Listing, now time.Time) Posting {
	section := doc.Find("section.jview-0-" + l.RecIdx).First()
	if section.Length() == 0 {
		section = doc.Selection
	}

	p := Posting{
		JobID:     platform + "_" + strconv.Itoa(now.Year()) + "_" + l.RecIdx,
		JobURL:    l.URL,
		Platform:  platform,
		JobTitle:  l.Title,
		CrawledAt: now.UTC().Format(time.RFC3339),
	}
	if p.JobTitle == "" {
		p.JobTitle = text(firstMatch(section, "h1.tit_job", "div.tit_area h1", "h1", ".job_title h1"))
	}
	p.Company.Name = l.Company
	if p.Company.Name == "" {
		p.Company.Name = text(firstMatch(section, ".company_name", ".cp_area .company", ".tit_company"))
	}

	eachTerm(section.Find("div.jv_summary dl"), func(key, value string) {
		switch key {
		case "경력":
			p.Experience = ParseExperience(value)
		case "학력":
			p.Education = value
		case "근무형태":
			p.WorkType = value
		case "근무지역":
			p.Location = ParseLocation(value)
		}
	})

	eachTerm(section.Find("div.jv_company div.info_area dl"), func(key, value string) {
		switch {
		case strings.Contains(key, "업종"):
			p.Company.Industry = value
		case strings.Contains(key, "기업형태"):
			p.Company.Size = value
		case strings.Contains(key, "사원수") && p.Company.Size == "":
			p.Company.Size = value
		}
	})

	eachTerm(section.Find("dl.info_period"), func(key, value string) {
		if key == "마감일" {
			p.Deadline = value
		}
	})

	sectors := texts(section.Find("div.job_sector span"))
	if len(sectors) == 0 {
		sectors = l.Sectors
	}
	p.Position = Position{RawText: strings.Join(sectors, ", "), RawList: sectors}

	skills := texts(section.Find("div.job_skill .skill"))
	p.TechStack = TechStack{RawText: strings.Join(skills, ", "), RawList: skills}

	return p
}

func firstMatch(s *goquery.Selection, selectors ...string) *goquery.Selection {
	for _, selector := range selectors {
		if found := s.Find(selector).First(); found.Length() > 0 {
			return found
		}
	}
	return s.Slice(0, 0)
}

func text(s *goquery.Selection) string {
	return strings.Join(strings.Fields(s.Text()), " ")
}

// texts returns the non-empty trimmed text of every node in s.
func texts(s *goquery.Selection) []string {
	var out []string
	s.Each(func(_ int, n *goquery.Selection) {
		if t := text(n); t != "" {
			out = append(out, t)
		}
	})
	return out
}

// eachTerm calls fn for every dt in dls that is directly followed by a dd.
func eachTerm(dls *goquery.Selection, fn func(key, value string)) {
	dls.Find("dt").Each(func(_ int, dt *goquery.Selection) {
		dd := dt.NextFiltered("dd")
		if dd.Length() == 0 {
			return
		}
		fn(text(dt), text(dd))
	})
}

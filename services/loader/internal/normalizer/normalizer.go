// Package normalizer turns crawled posting documents into jobposting rows.
package normalizer

import (
	"encoding/binary"
	"encoding/json"
	"regexp"
	"strings"
	"time"

	"jobgrid/common/errors"
	"jobgrid/common/models"

	"github.com/google/uuid"
)

const timestampLayout = "2006-01-02T15:04:05"

var idNamespace = uuid.MustParse("6ba7b810-9dad-11d1-80b4-00c04fd430c8")

var (
	separatorPattern = regexp.MustCompile(`[.\-_\s]+`)
	dataRolePattern  = regexp.MustCompile(`(?i)(data|데이터|machine learning|머신러닝|\bml\b|\bai\b|분석가|analyst)`)
)

// techAliases maps squashed spellings to their canonical name.
var techAliases = map[string]string{
	"js": "javascript", "javascript": "javascript",
	"ts": "typescript", "typescript": "typescript",
	"golang": "go", "go": "go",
	"python": "python", "java": "java", "kotlin": "kotlin", "swift": "swift",
	"rust": "rust", "php": "php", "ruby": "ruby", "scala": "scala",
	"c#": "csharp", "csharp": "csharp", "c++": "cpp", "cpp": "cpp",
	"react": "react", "reactjs": "react",
	"vue": "vue", "vuejs": "vue",
	"angular": "angular", "angularjs": "angular",
	"next": "nextjs", "nextjs": "nextjs",
	"spring": "spring", "springboot": "spring_boot",
	"django": "django", "flask": "flask", "fastapi": "fastapi",
	"express": "express", "expressjs": "express",
	"nestjs": "nestjs", "node": "nodejs", "nodejs": "nodejs",
	"mysql": "mysql", "postgresql": "postgresql", "postgres": "postgresql",
	"mongodb": "mongodb", "mongo": "mongodb", "redis": "redis",
	"oracle": "oracle", "elasticsearch": "elasticsearch",
	"aws": "aws", "amazonwebservices": "aws",
	"gcp": "gcp", "googlecloud": "gcp", "azure": "azure",
	"docker": "docker", "kubernetes": "kubernetes", "k8s": "kubernetes",
	"terraform": "terraform", "jenkins": "jenkins",
	"kafka": "kafka", "apachekafka": "kafka", "rabbitmq": "rabbitmq",
	"spark": "spark", "apachespark": "spark", "airflow": "airflow", "hadoop": "hadoop",
	"tensorflow": "tensorflow", "pytorch": "pytorch",
	"graphql": "graphql", "grpc": "grpc", "git": "git",
}

// Normalize decodes one crawled document. now stamps postings that carry
// no crawl time.
func Normalize(raw []byte, now func() time.Time) (models.JobPosting, error) {
	var doc CrawledPosting
	if err := json.Unmarshal(raw, &doc); err != nil {
		return models.JobPosting{}, errors.InvalidInput("decoding crawled posting", err)
	}
	return FromCrawled(doc, now)
}

func FromCrawled(doc CrawledPosting, now func() time.Time) (models.JobPosting, error) {
	jobID := strings.TrimSpace(doc.JobID)
	if jobID == "" {
		return models.JobPosting{}, errors.InvalidInput("crawled posting has no job_id", nil)
	}
	platform := strings.TrimSpace(doc.Platform)

	crawledAt := doc.CrawledAt.Time
	if crawledAt.IsZero() {
		crawledAt = now()
	}

	expMin, expMax := experienceBounds(doc.Experience)

	return models.JobPosting{
		PostingID:     StableID("posting", platform, jobID),
		CompanyID:     StableID("company", strings.TrimSpace(doc.Company.Name)),
		PlatformID:    StableID("platform", platform),
		Title:         strings.TrimSpace(doc.JobTitle),
		JobType:       strings.TrimSpace(doc.WorkType),
		Location:      joinLocation(doc.Location),
		Position:      positionLabel(doc.Position),
		ExperienceMin: expMin,
		ExperienceMax: expMax,
		Education:     strings.TrimSpace(doc.Education),
		TechStack:     strings.Join(NormalizeTechStack(doc.TechStack.RawList), ", "),
		IsDataJob:     IsDataJob(doc.Position),
		URL:           optional(doc.JobURL),
		ApplyEndDate:  strings.TrimSpace(doc.Deadline),
		CrawledAt:     models.String(crawledAt.UTC().Format(timestampLayout)),
	}, nil
}

// StableID derives a positive int64 from a SHA-1 UUID of the joined parts,
// so the same source record always maps to the same row.
func StableID(parts ...string) int64 {
	id := uuid.NewSHA1(idNamespace, []byte(strings.Join(parts, ":")))
	return int64(binary.BigEndian.Uint64(id[:8]) >> 1)
}

// NormalizeTechStack maps known aliases to canonical names, drops entries
// shorter than two characters and removes duplicates keeping first order.
func NormalizeTechStack(raw []string) []string {
	seen := make(map[string]bool, len(raw))
	out := make([]string, 0, len(raw))
	for _, name := range raw {
		name = strings.TrimSpace(name)
		if len([]rune(name)) < 2 {
			continue
		}
		tech := canonicalTech(name)
		if tech == "" || seen[tech] {
			continue
		}
		seen[tech] = true
		out = append(out, tech)
	}
	return out
}

func canonicalTech(name string) string {
	lower := strings.ToLower(name)
	if tech, ok := techAliases[separatorPattern.ReplaceAllString(lower, "")]; ok {
		return tech
	}
	return strings.ReplaceAll(strings.ReplaceAll(lower, " ", "_"), ".", "")
}

// IsDataJob trusts the crawler's classification and falls back to
// keywords in the raw position text.
func IsDataJob(p Position) bool {
	if p.Normalized.IsDataRole {
		return true
	}
	if dataRolePattern.MatchString(p.RawText) {
		return true
	}
	for _, item := range p.RawList {
		if dataRolePattern.MatchString(item) {
			return true
		}
	}
	return false
}

const unclassified = "미분류"

func positionLabel(p Position) string {
	for _, label := range []string{p.Normalized.SecondaryLabel, p.Normalized.PrimaryLabel} {
		if label = strings.TrimSpace(label); label != "" && label != unclassified {
			return label
		}
	}
	return strings.TrimSpace(p.RawText)
}

func joinLocation(l Location) string {
	return strings.TrimSpace(strings.TrimSpace(l.City) + " " + strings.TrimSpace(l.District))
}

// experienceBounds keeps the bounds textual. A missing max mirrors min so
// single-value requirements display as one number.
func experienceBounds(e Experience) (models.Text, models.Text) {
	lo := trimmed(e.MinYears)
	hi := trimmed(e.MaxYears)
	if !hi.Valid && lo.Valid {
		hi = lo
	}
	return lo, hi
}

func trimmed(t models.Text) models.Text {
	if !t.Valid {
		return t
	}
	return optional(t.Value)
}

func optional(s string) models.Text {
	if s = strings.TrimSpace(s); s == "" {
		return models.Text{}
	}
	return models.String(s)
}

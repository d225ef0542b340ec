// Package crawler scrapes job-category result pages and their detail pages
// and publishes every posting found as a crawled posting document.
package crawler

import (
	"context"
	"encoding/json"
	stderrors "errors"
	"fmt"
	"net/http"
	"net/url"
	"strconv"
	"strings"
	"time"

	"jobgrid/common/errors"
	"jobgrid/common/telemetry"
	"jobgrid/services/ingestion/internal/config"

	"github.com/PuerkitoBio/goquery"
	"go.uber.org/zap"
)

var tracer = telemetry.GetTracer("jobgrid/ingestion/crawler")

const (
	listingPath = "/zf_user/jobs/list/job-category"
	userAgent   = "Mozilla/5.0 (Windows NT 10.0; Win64; x64) AppleWebKit/537.36 (KHTML, like Gecko) Chrome/119.0.0.0 Safari/537.36"

	// A run ends after this many result pages in a row yield nothing.
	maxEmptyPages = 3
)

var errBlocked = stderrors.New("blocked by the job site")

// Publisher is the part of messaging.Publisher the crawler needs.
type Publisher interface {
	Publish(ctx context.Context, data []byte) error
}

type Stats struct {
	Found     int
	Published int
	Failed    int
}

type Crawler struct {
	logger    *zap.Logger
	client    *http.Client
	publisher Publisher
	base      *url.URL
	pages     int
	perPage   int
	retries   int
	delay     time.Duration
	now       func() time.Time
}

func New(logger *zap.Logger, client *http.Client, publisher Publisher, cfg *config.Config) (*Crawler, error) {
	base, err := url.Parse(cfg.CrawlBaseURL)
	if err != nil || base.Scheme == "" || base.Host == "" {
		return nil, errors.InvalidInput(fmt.Sprintf("invalid crawl base URL %q", cfg.CrawlBaseURL), err)
	}
	return &Crawler{
		logger:    logger,
		client:    client,
		publisher: publisher,
		base:      base,
		pages:     max(cfg.CrawlPages, 1),
		perPage:   cfg.CrawlPerPage,
		retries:   max(cfg.CrawlRetries, 1),
		delay:     cfg.CrawlDelay,
		now:       time.Now,
	}, nil
}

// Run walks the result pages, then fetches and publishes every distinct
// posting. A blocked response ends the run early without an error.
func (c *Crawler) Run(ctx context.Context) (Stats, error) {
	ctx, span := tracer.Start(ctx, "Crawler.Run")
	defer span.End()

	var stats Stats
	listings, err := c.collect(ctx)
	stats.Found = len(listings)
	if err != nil {
		return stats, err
	}
	c.logger.Info("collected job URLs", zap.Int("found", stats.Found))

	for i, l := range listings {
		if i > 0 {
			if err := c.wait(ctx); err != nil {
				return stats, err
			}
		}

		data, err := c.crawlDetail(ctx, l)
		if stderrors.Is(err, errBlocked) {
			c.logger.Warn("job site is blocking requests, stopping early", zap.String("url", l.URL))
			break
		}
		if err != nil {
			stats.Failed++
			c.logger.Error("failed to crawl posting", zap.String("url", l.URL), zap.Error(err))
			continue
		}

		if err := c.publisher.Publish(ctx, data); err != nil {
			stats.Failed++
			continue
		}
		stats.Published++
		c.logger.Debug("published posting",
			zap.String("rec_idx", l.RecIdx),
			zap.String("company", l.Company),
			zap.String("title", l.Title))
	}

	span.SetAttributes(
		telemetry.Int("crawl.found", stats.Found),
		telemetry.Int("crawl.published", stats.Published),
	)
	return stats, ctx.Err()
}

func (c *Crawler) collect(ctx context.Context) ([]Listing, error) {
	var (
		listings []Listing
		seen     = make(map[string]bool)
		empty    int
	)
	for page := 1; page <= c.pages && empty < maxEmptyPages; page++ {
		if page > 1 {
			if err := c.wait(ctx); err != nil {
				return listings, err
			}
		}

		doc, err := c.fetch(ctx, c.listingURL(page))
		if stderrors.Is(err, errBlocked) {
			c.logger.Warn("job site is blocking requests, keeping what was collected", zap.Int("page", page))
			break
		}
		if err != nil {
			empty++
			c.logger.Error("failed to fetch result page", zap.Int("page", page), zap.Error(err))
			continue
		}

		found := ParseListing(doc, c.base, c.perPage)
		if len(found) == 0 {
			empty++
			c.logger.Info("result page is empty", zap.Int("page", page), zap.Int("empty_in_a_row", empty))
			continue
		}
		empty = 0
		for _, l := range found {
			if seen[l.RecIdx] {
				continue
			}
			seen[l.RecIdx] = true
			listings = append(listings, l)
		}
		c.logger.Info("result page processed", zap.Int("page", page), zap.Int("urls", len(found)))
	}
	return listings, nil
}

func (c *Crawler) listingURL(page int) string {
	u := c.base.ResolveReference(&url.URL{Path: listingPath})
	q := url.Values{}
	q.Set("cat_mcls", "2")
	q.Set("search_done", "y")
	q.Set("page_count", "50")
	q.Set("sort", "RD")
	q.Set("type", "job-category")
	q.Set("page", strconv.Itoa(page))
	u.RawQuery = q.Encode()
	return u.String()
}

func (c *Crawler) crawlDetail(ctx context.Context, l Listing) ([]byte, error) {
	doc, err := c.fetch(ctx, l.URL)
	if err != nil {
		return nil, err
	}
	data, err := json.Marshal(ParseDetail(doc, l, c.now()))
	if err != nil {
		return nil, errors.Internal("encoding crawled posting", err)
	}
	return data, nil
}

// fetch retries transient failures. Blocked responses are not retried.
func (c *Crawler) fetch(ctx context.Context, target string) (*goquery.Document, error) {
	var err error
	for attempt := 0; attempt < c.retries; attempt++ {
		if attempt > 0 {
			if werr := c.wait(ctx); werr != nil {
				return nil, werr
			}
		}

		var doc *goquery.Document
		doc, err = c.get(ctx, target)
		if err == nil || stderrors.Is(err, errBlocked) || ctx.Err() != nil {
			return doc, err
		}
		c.logger.Debug("retrying request",
			zap.String("url", target),
			zap.Int("attempt", attempt+1),
			zap.Error(err))
	}
	return nil, err
}

func (c *Crawler) get(ctx context.Context, target string) (*goquery.Document, error) {
	req, err := http.NewRequestWithContext(ctx, http.MethodGet, target, nil)
	if err != nil {
		return nil, errors.InvalidInput("building request for "+target, err)
	}
	req.Header.Set("User-Agent", userAgent)
	req.Header.Set("Accept", "text/html,application/xhtml+xml,application/xml;q=0.9,*/*;q=0.8")
	req.Header.Set("Accept-Language", "ko-KR,ko;q=0.8,en-US;q=0.5,en;q=0.3")
	req.Header.Set("Referer", c.base.String())

	resp, err := c.client.Do(req)
	if err != nil {
		return nil, errors.Unavailable("fetching "+target, err)
	}
	defer resp.Body.Close()

	switch {
	case resp.StatusCode == http.StatusForbidden || resp.StatusCode == http.StatusTooManyRequests:
		return nil, fmt.Errorf("%w (status %d)", errBlocked, resp.StatusCode)
	case resp.StatusCode != http.StatusOK:
		return nil, errors.Unavailable(fmt.Sprintf("job site returned status %d", resp.StatusCode), nil)
	}

	doc, err := goquery.NewDocumentFromReader(resp.Body)
	if err != nil {
		return nil, errors.Internal("parsing "+target, err)
	}
	if strings.Contains(doc.Find("title").Text(), "Just a moment") {
		return nil, fmt.Errorf("%w (challenge page)", errBlocked)
	}
	return doc, nil
}

func (c *Crawler) wait(ctx context.Context) error {
	if c.delay <= 0 {
		return ctx.Err()
	}
	t := time.NewTimer(c.delay)
	defer t.Stop()
	select {
	case <-ctx.Done():
		return ctx.Err()
	case <-t.C:
		return nil
	}
}

// CLAUDE:SUMMARY Answers content requests against one tab's DOM: URL precondition, sanitised text reads, rating parsing, page screenshot.
package pilot

import (
	"context"
	"html"
	"log/slog"
	"math"
	"strconv"
	"strings"

	"github.com/microcosm-cc/bluemonday"

	"github.com/hazyhaar/tabpilot/host"
)

// RatingsPreview is the rating summary shown on a task page.
type RatingsPreview struct {
	Average float64 `json:"average"`
	Reviews float64 `json:"reviews"`
}

// Ratings is the full rating breakdown of the feedback page.
type Ratings struct {
	Average           float64 `json:"average"`
	Exceptional       float64 `json:"exceptional"`
	MeetsExpectations float64 `json:"meetsExpectations"`
	SomeIssues        float64 `json:"someIssues"`
	MajorIssues       float64 `json:"majorIssues"`
}

// ContentResponder answers ContentRequests against a page. Every failure is
// logged and reported as a Failed response; Respond never returns an error.
type ContentResponder struct {
	pages     PagesConfig
	selectors SelectorConfig
	policy    *bluemonday.Policy
	logger    *slog.Logger
}

// NewContentResponder creates a ContentResponder for the given pages and selectors.
func NewContentResponder(pages PagesConfig, selectors SelectorConfig, logger *slog.Logger) *ContentResponder {
	if logger == nil {
		logger = slog.Default()
	}
	return &ContentResponder{
		pages:     pages,
		selectors: selectors,
		policy:    bluemonday.StrictPolicy(),
		logger:    logger,
	}
}

// Respond answers req from doc.
func (c *ContentResponder) Respond(ctx context.Context, doc host.Document, req ContentRequest) Response {
	c.logger.Debug("pilot: content request", "action", req.Action())
	switch r := req.(type) {
	case SelectOption:
		return c.selectOption(ctx, doc, r.ID)
	case ReadRatingsPreview:
		if !c.urlHasPrefix(ctx, doc, c.pages.TasksPrefix) {
			return failed()
		}
		return c.readRatingsPreview(ctx, doc)
	case ReadFullRatings:
		if !c.urlHasPrefix(ctx, doc, c.pages.FeedbackURL) {
			return failed()
		}
		return c.readFullRatings(ctx, doc)
	case ScreenshotQAFeedback:
		return c.screenshot(ctx, doc)
	}
	c.logger.Error("pilot: unhandled content request", "action", req.Action())
	return failed()
}

func (c *ContentResponder) currentURL(ctx context.Context, doc host.Document) (string, bool) {
	u, err := doc.URL(ctx)
	if err != nil {
		c.logger.Error("pilot: could not read page url", "error", err)
		return "", false
	}
	return strings.TrimSpace(u), true
}

func (c *ContentResponder) urlHasPrefix(ctx context.Context, doc host.Document, prefix string) bool {
	u, ok := c.currentURL(ctx, doc)
	if !ok {
		return false
	}
	if !strings.HasPrefix(u, prefix) {
		c.logger.Error("pilot: page is not the expected page", "url", u, "expected_prefix", prefix)
		return false
	}
	return true
}

func (c *ContentResponder) selectOption(ctx context.Context, doc host.Document, id string) Response {
	found, err := doc.Click(ctx, id)
	if err != nil {
		c.logger.Error("pilot: click failed", "id", id, "error", err)
		return failed()
	}
	if !found {
		c.logger.Warn("pilot: option not found", "id", id)
		return failed()
	}
	c.logger.Info("pilot: option selected", "id", id)
	return success(nil)
}

func (c *ContentResponder) readRatingsPreview(ctx context.Context, doc host.Document) Response {
	avgText, found, err := doc.QueryHTML(ctx, c.selectors.PreviewAverage)
	if err != nil || !found {
		c.logger.Error("pilot: could not find rating in preview", "selector", c.selectors.PreviewAverage, "error", err)
		return failed()
	}
	avg, ok := parseNumber(c.text(avgText))
	if !ok {
		c.logger.Error("pilot: could not parse average rating", "text", avgText)
		return failed()
	}

	reviewsText, found, err := doc.QueryHTML(ctx, c.selectors.PreviewReviews)
	if err != nil || !found {
		c.logger.Error("pilot: could not find number of reviews in preview", "selector", c.selectors.PreviewReviews, "error", err)
		return failed()
	}
	full := c.text(reviewsText)
	first, _, _ := strings.Cut(full, " ")
	reviews, ok := parseNumber(first)
	if !ok || reviews == 0 {
		c.logger.Error("pilot: could not parse number of reviews", "text", full)
		return failed()
	}

	c.logger.Info("pilot: read ratings preview", "average", avg, "reviews", reviews)
	return success(RatingsPreview{Average: avg, Reviews: reviews})
}

func (c *ContentResponder) readFullRatings(ctx context.Context, doc host.Document) Response {
	texts, err := doc.QueryAllHTML(ctx, c.selectors.FullRatings)
	if err != nil {
		c.logger.Error("pilot: could not query ratings", "selector", c.selectors.FullRatings, "error", err)
		return failed()
	}
	if len(texts) < 4 {
		c.logger.Error("pilot: not enough rating elements", "expected", 4, "found", len(texts))
		return failed()
	}
	counts := make([]float64, len(texts))
	for i, t := range texts {
		n, ok := parseNumber(c.text(t))
		if !ok {
			c.logger.Error("pilot: found non-numeric rating", "index", i, "text", t)
			return failed()
		}
		counts[i] = n
	}

	avgText, found, err := doc.QueryHTML(ctx, c.selectors.FullAverage)
	if err != nil || !found {
		c.logger.Error("pilot: could not find average rating element", "selector", c.selectors.FullAverage, "error", err)
		return failed()
	}
	avg, ok := parseNumber(c.text(avgText))
	if !ok {
		c.logger.Error("pilot: could not parse average rating", "text", avgText)
		return failed()
	}

	return success(Ratings{
		Average:           avg,
		Exceptional:       counts[0],
		MeetsExpectations: counts[1],
		SomeIssues:        counts[2],
		MajorIssues:       counts[3],
	})
}

func (c *ContentResponder) screenshot(ctx context.Context, doc host.Document) Response {
	u, ok := c.currentURL(ctx, doc)
	if !ok {
		return failed()
	}
	if u != c.pages.FeedbackURL {
		c.logger.Error("pilot: page is not the feedback page", "url", u, "expected", c.pages.FeedbackURL)
		return failed()
	}
	data, err := doc.Screenshot(ctx)
	if err != nil || data == "" {
		c.logger.Error("pilot: error taking screenshot of feedback page", "error", err)
		return failed()
	}
	return success(data)
}

// text reduces an element's inner HTML to its visible text: tags and
// comments are dropped, entities decoded.
func (c *ContentResponder) text(s string) string {
	return strings.TrimSpace(html.UnescapeString(c.policy.Sanitize(s)))
}

// parseNumber reads page text as a number. Blank text reads as zero, as
// browsers do; anything else must be a finite decimal number.
func parseNumber(s string) (float64, bool) {
	s = strings.TrimSpace(s)
	if s == "" {
		return 0, true
	}
	n, err := strconv.ParseFloat(s, 64)
	if err != nil || math.IsInf(n, 0) || math.IsNaN(n) {
		return 0, false
	}
	return n, true
}

// Package feed reads RSS and Atom feeds into classifiable items.
package feed

import (
	"context"
	"errors"
	"net/http"
	"strings"
	"time"

	"github.com/PuerkitoBio/goquery"
	"github.com/mmcdole/gofeed"

	"github.com/zombar/truthlens/internal/models"
)

const (
	DefaultLimit = 10
	MaxLimit     = 50

	serviceName = "feed"
)

// Item is one feed entry ready for classification
type Item struct {
	Title     string                     `json:"title"`
	Link      string                     `json:"link"`
	Published *time.Time                 `json:"published,omitempty"`
	Input     models.ClassificationInput `json:"-"`
}

// Reader fetches and parses feeds
type Reader struct {
	parser *gofeed.Parser
}

// NewReader creates a feed reader using client for HTTP
func NewReader(client *http.Client, userAgent string) *Reader {
	parser := gofeed.NewParser()
	parser.Client = client
	if userAgent != "" {
		parser.UserAgent = userAgent
	}
	return &Reader{parser: parser}
}

// ClampLimit bounds a requested item count to [1, MaxLimit]
func ClampLimit(limit int) int {
	switch {
	case limit <= 0:
		return DefaultLimit
	case limit > MaxLimit:
		return MaxLimit
	default:
		return limit
	}
}

// Fetch downloads feedURL and returns up to limit items
func (r *Reader) Fetch(ctx context.Context, feedURL string, limit int) ([]Item, error) {
	parsed, err := r.parser.ParseURLWithContext(feedURL, ctx)
	if err != nil {
		var httpErr gofeed.HTTPError
		if errors.As(err, &httpErr) {
			return nil, &models.UpstreamServiceError{Service: serviceName, StatusCode: httpErr.StatusCode}
		}
		if errors.Is(err, gofeed.ErrFeedTypeNotDetected) {
			return nil, &models.ExtractionError{Format: "feed", Err: err}
		}
		return nil, &models.UpstreamServiceError{Service: serviceName, Err: err}
	}
	return Items(parsed, limit), nil
}

// Parse reads a feed document already in memory
func Parse(data string, limit int) ([]Item, error) {
	parsed, err := gofeed.NewParser().ParseString(data)
	if err != nil {
		return nil, &models.ExtractionError{Format: "feed", Err: err}
	}
	return Items(parsed, limit), nil
}

// Items converts up to limit feed entries
func Items(f *gofeed.Feed, limit int) []Item {
	limit = ClampLimit(limit)
	items := make([]Item, 0, min(limit, len(f.Items)))
	for _, entry := range f.Items {
		if len(items) == limit {
			break
		}
		items = append(items, Item{
			Title:     strings.TrimSpace(entry.Title),
			Link:      entry.Link,
			Published: entry.PublishedParsed,
			Input: models.ClassificationInput{
				Title:       strings.TrimSpace(entry.Title),
				Description: stripHTML(entry.Description),
				Body:        stripHTML(entry.Content),
			},
		})
	}
	return items
}

// stripHTML flattens markup in feed fields, keeping one paragraph per block
func stripHTML(s string) string {
	s = strings.TrimSpace(s)
	if s == "" || !strings.Contains(s, "<") {
		return s
	}

	doc, err := goquery.NewDocumentFromReader(strings.NewReader(s))
	if err != nil {
		return s
	}
	doc.Find("script, style").Remove()

	var paragraphs []string
	doc.Find("p").Each(func(_ int, p *goquery.Selection) {
		if text := strings.Join(strings.Fields(p.Text()), " "); text != "" {
			paragraphs = append(paragraphs, text)
		}
	})
	if len(paragraphs) > 0 {
		return strings.Join(paragraphs, "\n\n")
	}
	return strings.Join(strings.Fields(doc.Text()), " ")
}

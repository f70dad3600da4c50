// Package scraper fetches news pages and extracts the article they contain.
package scraper

import (
	"context"
	"errors"
	"fmt"
	"io"
	"net/http"
	"net/url"
	"time"

	"github.com/PuerkitoBio/goquery"
	gocache "github.com/patrickmn/go-cache"
	"golang.org/x/net/html/charset"
	"golang.org/x/time/rate"

	"github.com/zombar/truthlens/internal/models"
)

const (
	DefaultUserAgent = "TruthLensBot/1.0 (+https://github.com/zombar/truthlens)"
	DefaultTimeout   = 10 * time.Second
	DefaultMaxBytes  = 5 << 20
	DefaultCacheTTL  = 15 * time.Minute

	serviceName = "scraper"
)

// ErrDisallowed is wrapped by fetch errors for pages robots.txt excludes
var ErrDisallowed = errors.New("disallowed by robots.txt")

// Config configures a Scraper
type Config struct {
	UserAgent     string
	Timeout       time.Duration
	MaxBytes      int64
	CacheTTL      time.Duration
	RatePerSecond float64
	IgnoreRobots  bool
}

// Scraper downloads pages and parses them into articles
type Scraper struct {
	cfg     Config
	client  *http.Client
	robots  *RobotsChecker
	cache   *gocache.Cache
	limiter *rate.Limiter
	now     func() time.Time
}

// New creates a Scraper, filling in defaults
func New(cfg Config) *Scraper {
	if cfg.UserAgent == "" {
		cfg.UserAgent = DefaultUserAgent
	}
	if cfg.Timeout <= 0 {
		cfg.Timeout = DefaultTimeout
	}
	if cfg.MaxBytes <= 0 {
		cfg.MaxBytes = DefaultMaxBytes
	}
	if cfg.CacheTTL <= 0 {
		cfg.CacheTTL = DefaultCacheTTL
	}

	limiter := rate.NewLimiter(rate.Inf, 0)
	if cfg.RatePerSecond > 0 {
		limiter = rate.NewLimiter(rate.Limit(cfg.RatePerSecond), 1)
	}

	client := &http.Client{Timeout: cfg.Timeout}
	return &Scraper{
		cfg:     cfg,
		client:  client,
		robots:  NewRobotsChecker(client, cfg.UserAgent, time.Hour),
		cache:   gocache.New(cfg.CacheTTL, 2*cfg.CacheTTL),
		limiter: limiter,
		now:     time.Now,
	}
}

// ParseURL validates a user supplied article URL
func ParseURL(raw string) (*url.URL, error) {
	u, err := url.Parse(raw)
	if err != nil || u.Host == "" || (u.Scheme != "http" && u.Scheme != "https") {
		return nil, &models.InvalidRequestError{Reason: fmt.Sprintf("invalid URL %q: use an absolute http(s) URL", raw)}
	}
	return u, nil
}

// Fetch downloads rawURL and extracts its article. Results are cached per URL.
func (s *Scraper) Fetch(ctx context.Context, rawURL string) (*models.Article, error) {
	u, err := ParseURL(rawURL)
	if err != nil {
		return nil, err
	}
	key := u.String()

	if v, found := s.cache.Get(key); found {
		article := *v.(*models.Article)
		return &article, nil
	}

	if !s.cfg.IgnoreRobots && !s.robots.Allowed(ctx, u) {
		return nil, &models.UpstreamServiceError{
			Service: serviceName,
			Err:     fmt.Errorf("%w: %s", ErrDisallowed, key),
		}
	}

	doc, err := s.download(ctx, u)
	if err != nil {
		return nil, err
	}

	article := parseArticle(doc, u)
	article.ExtractedAt = s.now().UTC()

	s.cache.Set(key, article, gocache.DefaultExpiration)
	copied := *article
	return &copied, nil
}

func (s *Scraper) download(ctx context.Context, u *url.URL) (*goquery.Document, error) {
	if err := s.limiter.Wait(ctx); err != nil {
		return nil, &models.UpstreamServiceError{Service: serviceName, Err: err}
	}

	req, err := http.NewRequestWithContext(ctx, http.MethodGet, u.String(), nil)
	if err != nil {
		return nil, fmt.Errorf("failed to create request: %w", err)
	}
	req.Header.Set("User-Agent", s.cfg.UserAgent)
	req.Header.Set("Accept", "text/html,application/xhtml+xml")
	req.Header.Set("Accept-Language", "es,en;q=0.8")

	resp, err := s.client.Do(req)
	if err != nil {
		return nil, &models.UpstreamServiceError{Service: serviceName, Err: err}
	}
	defer resp.Body.Close()

	if resp.StatusCode != http.StatusOK {
		return nil, &models.UpstreamServiceError{Service: serviceName, StatusCode: resp.StatusCode}
	}

	body, err := charset.NewReader(io.LimitReader(resp.Body, s.cfg.MaxBytes), resp.Header.Get("Content-Type"))
	if err != nil {
		return nil, &models.UpstreamServiceError{Service: serviceName, Err: fmt.Errorf("unsupported charset: %w", err)}
	}

	doc, err := goquery.NewDocumentFromReader(body)
	if err != nil {
		return nil, &models.UpstreamServiceError{Service: serviceName, Err: fmt.Errorf("failed to parse HTML: %w", err)}
	}
	return doc, nil
}

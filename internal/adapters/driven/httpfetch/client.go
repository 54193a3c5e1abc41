// Package httpfetch downloads registry announcement pages and archives over
// HTTP and discovers archive links on the pages.
package httpfetch

import (
	"bytes"
	"context"
	"crypto/sha256"
	"encoding/hex"
	"fmt"
	"io"
	"log/slog"
	"net/http"
	"net/url"
	"path"
	"strconv"
	"strings"
	"time"

	"github.com/PuerkitoBio/goquery"

	"github.com/custodia-labs/zipsync/internal/core/domain"
	"github.com/custodia-labs/zipsync/internal/core/ports/driven"
)

// Verify interface compliance
var _ driven.Fetcher = (*Client)(nil)

const (
	DefaultTimeout   = 2 * time.Minute
	DefaultUserAgent = "zipsync/1.0"
)

// Error is returned for any failed download.
type Error struct {
	URL     string
	Message string
	Cause   error
}

func (e *Error) Error() string {
	if e.Cause != nil {
		return fmt.Sprintf("fetch %s: %s: %v", e.URL, e.Message, e.Cause)
	}
	return fmt.Sprintf("fetch %s: %s", e.URL, e.Message)
}

func (e *Error) Unwrap() error {
	return e.Cause
}

// Config configures a Client.
type Config struct {
	Timeout   time.Duration
	UserAgent string

	// MaxRetries bounds how often a 429 response is retried.
	MaxRetries int

	// Backoff is the first wait after a 429; it doubles on each retry.
	// A Retry-After header in seconds takes precedence.
	Backoff time.Duration

	HTTPClient *http.Client
	Logger     *slog.Logger
}

// Client implements driven.Fetcher.
type Client struct {
	http       *http.Client
	userAgent  string
	maxRetries int
	backoff    time.Duration
	logger     *slog.Logger
}

// NewClient creates a Client, filling unset fields with defaults.
func NewClient(cfg Config) *Client {
	if cfg.Timeout <= 0 {
		cfg.Timeout = DefaultTimeout
	}
	if cfg.UserAgent == "" {
		cfg.UserAgent = DefaultUserAgent
	}
	if cfg.MaxRetries < 0 {
		cfg.MaxRetries = 0
	}
	if cfg.Backoff <= 0 {
		cfg.Backoff = time.Second
	}
	if cfg.HTTPClient == nil {
		cfg.HTTPClient = &http.Client{Timeout: cfg.Timeout}
	}
	if cfg.Logger == nil {
		cfg.Logger = slog.Default()
	}
	return &Client{
		http:       cfg.HTTPClient,
		userAgent:  cfg.UserAgent,
		maxRetries: cfg.MaxRetries,
		backoff:    cfg.Backoff,
		logger:     cfg.Logger,
	}
}

// Fetch downloads rawURL and hashes the body with sha256.
func (c *Client) Fetch(ctx context.Context, rawURL string) (*domain.FetchResult, error) {
	parsed, err := url.Parse(rawURL)
	if err != nil || parsed.Scheme == "" || parsed.Host == "" {
		return nil, &Error{URL: rawURL, Message: "invalid URL", Cause: err}
	}

	wait := c.backoff
	for attempt := 0; ; attempt++ {
		body, status, retryAfter, err := c.get(ctx, rawURL)
		if err != nil {
			return nil, err
		}

		switch {
		case status == http.StatusOK:
			sum := sha256.Sum256(body)
			return &domain.FetchResult{
				URL:  rawURL,
				Body: body,
				Hash: hex.EncodeToString(sum[:]),
			}, nil
		case status == http.StatusTooManyRequests && attempt < c.maxRetries:
			delay := wait
			if retryAfter > 0 {
				delay = retryAfter
			}
			c.logger.Warn("rate limited, backing off",
				"url", rawURL,
				"attempt", attempt+1,
				"delay", delay,
			)
			select {
			case <-ctx.Done():
				return nil, &Error{URL: rawURL, Message: "cancelled during backoff", Cause: ctx.Err()}
			case <-time.After(delay):
			}
			wait *= 2
		default:
			return nil, &Error{URL: rawURL, Message: fmt.Sprintf("HTTP status %d", status)}
		}
	}
}

func (c *Client) get(ctx context.Context, rawURL string) ([]byte, int, time.Duration, error) {
	req, err := http.NewRequestWithContext(ctx, http.MethodGet, rawURL, nil)
	if err != nil {
		return nil, 0, 0, &Error{URL: rawURL, Message: "failed to create request", Cause: err}
	}
	req.Header.Set("User-Agent", c.userAgent)

	resp, err := c.http.Do(req)
	if err != nil {
		return nil, 0, 0, &Error{URL: rawURL, Message: "HTTP request failed", Cause: err}
	}
	defer func() { _ = resp.Body.Close() }()

	if resp.StatusCode != http.StatusOK {
		_, _ = io.Copy(io.Discard, resp.Body)
		return nil, resp.StatusCode, parseRetryAfter(resp.Header.Get("Retry-After")), nil
	}

	body, err := io.ReadAll(resp.Body)
	if err != nil {
		return nil, 0, 0, &Error{URL: rawURL, Message: "failed to read response body", Cause: err}
	}
	return body, resp.StatusCode, 0, nil
}

func parseRetryAfter(v string) time.Duration {
	secs, err := strconv.Atoi(strings.TrimSpace(v))
	if err != nil || secs <= 0 {
		return 0
	}
	return time.Duration(secs) * time.Second
}

// ResolveArchiveURL scans the page for an anchor whose href ends with the
// file name of fallback and returns it as an absolute URL. The first match
// wins. Returns fallback when nothing matches or the page is not HTML.
func (c *Client) ResolveArchiveURL(page *domain.FetchResult, fallback string) string {
	if page == nil || len(page.Body) == 0 {
		return fallback
	}

	fallbackURL, err := url.Parse(fallback)
	if err != nil {
		return fallback
	}
	name := strings.ToLower(path.Base(fallbackURL.Path))
	if name == "" || name == "/" || name == "." {
		return fallback
	}

	base, err := url.Parse(page.URL)
	if err != nil {
		return fallback
	}

	doc, err := goquery.NewDocumentFromReader(bytes.NewReader(page.Body))
	if err != nil {
		return fallback
	}

	found := fallback
	doc.Find("a[href]").EachWithBreak(func(_ int, s *goquery.Selection) bool {
		href, _ := s.Attr("href")
		href = strings.TrimSpace(href)
		link, err := url.Parse(href)
		if err != nil {
			return true
		}
		if !strings.HasSuffix(strings.ToLower(link.Path), "/"+name) && strings.ToLower(link.Path) != name {
			return true
		}
		found = base.ResolveReference(link).String()
		return false
	})

	if found != fallback {
		c.logger.Debug("archive link discovered", "page", page.URL, "archive", found)
	}
	return found
}

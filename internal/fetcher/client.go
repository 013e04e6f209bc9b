// Package fetcher resolves post URLs into media snapshots using public
// mirror APIs.
package fetcher

import (
	"context"
	"encoding/json"
	"fmt"
	"io"
	"log/slog"
	"net/http"
	"net/url"
	"regexp"
	"sync"

	"golang.org/x/time/rate"

	"github.com/iconidentify/xfetch/internal/config"
	"github.com/iconidentify/xfetch/internal/domain"
)

// postIDPattern matches status URLs like:
// https://x.com/user/status/1234567890
// https://twitter.com/user/status/1234567890?s=20
var postIDPattern = regexp.MustCompile(`(?:twitter\.com|x\.com)/\w+/status/(\d+)`)

// ExtractPostID extracts the numeric post ID from various URL formats.
// Returns "" when the URL is not a status link.
func ExtractPostID(postURL string) string {
	matches := postIDPattern.FindStringSubmatch(postURL)
	if len(matches) > 1 {
		return matches[1]
	}
	return ""
}

// Client fetches post data from mirror APIs.
type Client struct {
	httpClient *http.Client
	cfg        config.FetchConfig
	logger     *slog.Logger

	mu       sync.Mutex
	limiters map[string]*rate.Limiter
}

// NewClient creates a new mirror API client.
func NewClient(cfg config.FetchConfig, logger *slog.Logger) *Client {
	return &Client{
		httpClient: &http.Client{
			Timeout: cfg.Timeout,
		},
		cfg:      cfg,
		logger:   logger.With("component", "fetcher"),
		limiters: make(map[string]*rate.Limiter),
	}
}

// Resolve fetches a post snapshot for the given status URL. The primary
// mirror is tried first; any failure (non-2xx, decode error, timeout) falls
// through to the secondary mirror. Both failing yields a single aggregated
// error.
func (c *Client) Resolve(ctx context.Context, postURL string) (*domain.PostSnapshot, error) {
	postID := ExtractPostID(postURL)
	if postID == "" {
		return nil, fmt.Errorf("%w: %s", domain.ErrInvalidPostURL, postURL)
	}

	snapshot, primaryErr := c.fetchPrimary(ctx, postID)
	if primaryErr == nil {
		snapshot.URL = postURL
		return snapshot, nil
	}
	c.logger.Warn("primary mirror failed, trying secondary", "post_id", postID, "error", primaryErr)

	snapshot, secondaryErr := c.fetchSecondary(ctx, postID)
	if secondaryErr == nil {
		snapshot.URL = postURL
		return snapshot, nil
	}
	c.logger.Warn("secondary mirror failed", "post_id", postID, "error", secondaryErr)

	return nil, fmt.Errorf("%w: primary: %v; secondary: %v", domain.ErrFetchFailed, primaryErr, secondaryErr)
}

// limiter returns the rate limiter for a host, creating it on first use.
func (c *Client) limiter(host string) *rate.Limiter {
	c.mu.Lock()
	defer c.mu.Unlock()

	lim, ok := c.limiters[host]
	if !ok {
		lim = rate.NewLimiter(rate.Every(c.cfg.RequestInterval), 1)
		c.limiters[host] = lim
	}
	return lim
}

// getJSON performs a rate-limited GET and decodes the JSON body into v.
func (c *Client) getJSON(ctx context.Context, rawURL string, v any) error {
	parsed, err := url.Parse(rawURL)
	if err != nil {
		return fmt.Errorf("parse url: %w", err)
	}

	if err := c.limiter(parsed.Host).Wait(ctx); err != nil {
		return fmt.Errorf("rate limit wait: %w", err)
	}

	req, err := http.NewRequestWithContext(ctx, http.MethodGet, rawURL, nil)
	if err != nil {
		return fmt.Errorf("create request: %w", err)
	}
	req.Header.Set("User-Agent", c.cfg.UserAgent)
	req.Header.Set("Accept", "application/json")

	resp, err := c.httpClient.Do(req)
	if err != nil {
		return fmt.Errorf("send request: %w", err)
	}
	defer resp.Body.Close()

	if resp.StatusCode != http.StatusOK {
		body, _ := io.ReadAll(io.LimitReader(resp.Body, 512))
		return fmt.Errorf("API error (status %d): %s", resp.StatusCode, string(body))
	}

	if err := json.NewDecoder(resp.Body).Decode(v); err != nil {
		return fmt.Errorf("decode response: %w", err)
	}
	return nil
}

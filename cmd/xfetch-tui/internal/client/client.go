// Package client provides API access to an xfetch server for the TUI.
package client

import (
	"bytes"
	"context"
	"encoding/json"
	"fmt"
	"io"
	"net/http"
	"strings"
	"time"
)

// Client wraps the xfetch HTTP API.
type Client struct {
	baseURL    string
	apiKey     string
	httpClient *http.Client
}

// NewClient creates an API client.
func NewClient(baseURL, apiKey string) *Client {
	return &Client{
		baseURL:    strings.TrimRight(baseURL, "/"),
		apiKey:     apiKey,
		httpClient: &http.Client{Timeout: 5 * time.Minute},
	}
}

// Record is one history entry as returned by the server.
type Record struct {
	ID             string    `json:"id"`
	PostID         string    `json:"post_id"`
	PostURL        string    `json:"post_url"`
	AuthorName     string    `json:"author_name"`
	AuthorHandle   string    `json:"author_handle"`
	Text           string    `json:"text"`
	DownloadedAt   time.Time `json:"downloaded_at"`
	HasThumbnail   bool      `json:"has_thumbnail"`
	MediaURL       string    `json:"media_url"`
	MediaKind      string    `json:"media_kind"`
	StoragePointer string    `json:"storage_pointer"`
	MediaIndex     int       `json:"media_index"`
	MediaCount     int       `json:"media_count"`
}

// HistoryPage is a paginated history listing.
type HistoryPage struct {
	Records []Record `json:"records"`
	Total   int      `json:"total"`
	Limit   int      `json:"limit"`
	Offset  int      `json:"offset"`
}

// Variant is one quality option of a video candidate.
type Variant struct {
	URL         string `json:"url"`
	Quality     string `json:"quality"`
	Bitrate     int    `json:"bitrate"`
	ContentType string `json:"content_type"`
}

// Media is one downloadable candidate of a resolved post.
type Media struct {
	Index        int       `json:"index"`
	URL          string    `json:"url"`
	Kind         string    `json:"kind"`
	ThumbnailURL string    `json:"thumbnail_url"`
	Duration     float64   `json:"duration"`
	Variants     []Variant `json:"variants"`
}

// ResolvedPost is a resolved post with its media candidates.
type ResolvedPost struct {
	PostID       string  `json:"post_id"`
	URL          string  `json:"url"`
	AuthorName   string  `json:"author_name"`
	AuthorHandle string  `json:"author_handle"`
	Text         string  `json:"text"`
	Media        []Media `json:"media"`
}

// Selection picks one media candidate for download.
type Selection struct {
	Index      int    `json:"index"`
	VariantURL string `json:"variant_url,omitempty"`
}

// DownloadItem reports the outcome of one downloaded media item.
type DownloadItem struct {
	Index          int    `json:"index"`
	RecordID       string `json:"record_id"`
	StoragePointer string `json:"storage_pointer"`
	Error          string `json:"error"`
}

// DownloadResult is the server's response to a download request.
type DownloadResult struct {
	PostID string         `json:"post_id"`
	Items  []DownloadItem `json:"items"`
}

// ThumbJob is one thumbnail job state.
type ThumbJob struct {
	RecordID      string    `json:"record_id"`
	State         string    `json:"state"`
	Percent       int       `json:"percent"`
	Error         string    `json:"error"`
	ThumbnailPath string    `json:"thumbnail_path"`
	At            time.Time `json:"at"`
}

// Settings mirrors the server's settings document.
type Settings struct {
	AnimatedThumbnails     bool   `json:"animated_thumbnails"`
	DeleteFilesWithHistory bool   `json:"delete_files_with_history"`
	Username               string `json:"username"`
	Password               string `json:"password,omitempty"`
	AuthToken              string `json:"auth_token,omitempty"`
	SessionCookie          string `json:"session_cookie,omitempty"`
	LoggedIn               bool   `json:"logged_in"`
}

// History lists download history, newest first.
func (c *Client) History(ctx context.Context, limit, offset int) (*HistoryPage, error) {
	var page HistoryPage
	path := fmt.Sprintf("/api/v1/history?limit=%d&offset=%d", limit, offset)
	if err := c.do(ctx, http.MethodGet, path, nil, &page); err != nil {
		return nil, err
	}
	return &page, nil
}

// Resolve fetches a post's media candidates.
func (c *Client) Resolve(ctx context.Context, postURL string) (*ResolvedPost, error) {
	var post ResolvedPost
	body := map[string]string{"post_url": postURL}
	if err := c.do(ctx, http.MethodPost, "/api/v1/posts/resolve", body, &post); err != nil {
		return nil, err
	}
	return &post, nil
}

// Download requests a download of the selected media.
func (c *Client) Download(ctx context.Context, postURL string, selections []Selection) (*DownloadResult, error) {
	var result DownloadResult
	body := map[string]any{"post_url": postURL}
	if len(selections) > 0 {
		body["selections"] = selections
	}
	if err := c.do(ctx, http.MethodPost, "/api/v1/downloads", body, &result); err != nil {
		return nil, err
	}
	return &result, nil
}

// DeleteRecord removes one history record.
func (c *Client) DeleteRecord(ctx context.Context, recordID string) error {
	return c.do(ctx, http.MethodDelete, "/api/v1/history/"+recordID, nil, nil)
}

// DeletePost removes every record of a post.
func (c *Client) DeletePost(ctx context.Context, postID string) error {
	return c.do(ctx, http.MethodDelete, "/api/v1/history/post/"+postID, nil, nil)
}

// RegenerateThumbnail re-enqueues the animated thumbnail job for a record.
func (c *Client) RegenerateThumbnail(ctx context.Context, recordID string) error {
	return c.do(ctx, http.MethodPost, "/api/v1/history/"+recordID+"/thumbnail", nil, nil)
}

// Jobs lists the current thumbnail job states.
func (c *Client) Jobs(ctx context.Context) ([]ThumbJob, error) {
	var resp struct {
		Jobs []ThumbJob `json:"jobs"`
	}
	if err := c.do(ctx, http.MethodGet, "/api/v1/thumbnails/jobs", nil, &resp); err != nil {
		return nil, err
	}
	return resp.Jobs, nil
}

// GetSettings fetches the server settings.
func (c *Client) GetSettings(ctx context.Context) (*Settings, error) {
	var s Settings
	if err := c.do(ctx, http.MethodGet, "/api/v1/settings", nil, &s); err != nil {
		return nil, err
	}
	return &s, nil
}

// PutSettings updates the server settings and returns the stored state.
func (c *Client) PutSettings(ctx context.Context, in *Settings) (*Settings, error) {
	var s Settings
	if err := c.do(ctx, http.MethodPut, "/api/v1/settings", in, &s); err != nil {
		return nil, err
	}
	return &s, nil
}

// Healthy reports whether the server answers its readiness probe.
func (c *Client) Healthy(ctx context.Context) bool {
	req, err := http.NewRequestWithContext(ctx, http.MethodGet, c.baseURL+"/ready", nil)
	if err != nil {
		return false
	}
	resp, err := c.httpClient.Do(req)
	if err != nil {
		return false
	}
	defer resp.Body.Close()
	return resp.StatusCode == http.StatusOK
}

func (c *Client) do(ctx context.Context, method, path string, body, out any) error {
	var reader io.Reader
	if body != nil {
		data, err := json.Marshal(body)
		if err != nil {
			return fmt.Errorf("encode request: %w", err)
		}
		reader = bytes.NewReader(data)
	}

	req, err := http.NewRequestWithContext(ctx, method, c.baseURL+path, reader)
	if err != nil {
		return fmt.Errorf("create request: %w", err)
	}
	req.Header.Set("X-API-Key", c.apiKey)
	if body != nil {
		req.Header.Set("Content-Type", "application/json")
	}

	resp, err := c.httpClient.Do(req)
	if err != nil {
		return fmt.Errorf("request %s %s: %w", method, path, err)
	}
	defer resp.Body.Close()

	if resp.StatusCode < 200 || resp.StatusCode > 299 {
		var apiErr struct {
			Error string `json:"error"`
		}
		if json.NewDecoder(resp.Body).Decode(&apiErr) == nil && apiErr.Error != "" {
			return fmt.Errorf("%s %s: %s (status %d)", method, path, apiErr.Error, resp.StatusCode)
		}
		return fmt.Errorf("%s %s: status %d", method, path, resp.StatusCode)
	}

	if out != nil {
		if err := json.NewDecoder(resp.Body).Decode(out); err != nil {
			return fmt.Errorf("decode response: %w", err)
		}
	}
	return nil
}

package downloader

import (
	"context"
	"errors"
	"fmt"
	"io"
	"log/slog"
	"net/http"
	"strconv"
	"sync"
	"time"

	"github.com/iconidentify/xfetch/internal/config"
	"github.com/iconidentify/xfetch/internal/domain"
)

// HTTPDownloader implements Downloader using HTTP requests.
type HTTPDownloader struct {
	// client is used for short requests (Probe) with overall timeout
	client *http.Client
	// streamClient is used for streaming downloads without overall timeout
	streamClient *http.Client
	userAgent    string
	cfg          config.DownloadConfig
	logger       *slog.Logger
}

// NewHTTPDownloader creates a new HTTP-based media downloader.
func NewHTTPDownloader(cfg config.DownloadConfig) *HTTPDownloader {
	// Transport for streaming downloads - no overall timeout, but header timeout
	streamTransport := &http.Transport{
		ResponseHeaderTimeout: 30 * time.Second,
	}

	return &HTTPDownloader{
		client: &http.Client{
			Timeout: cfg.Timeout,
		},
		// Stream client for large downloads - no overall timeout, we rely on
		// stall detection in the progress reader instead.
		streamClient: &http.Client{
			Transport: streamTransport,
		},
		userAgent: cfg.UserAgent,
		cfg:       cfg,
		logger:    slog.Default(),
	}
}

// SetLogger sets the logger for download progress reporting.
func (d *HTTPDownloader) SetLogger(logger *slog.Logger) {
	d.logger = logger
}

// Download fetches media from URL with retry logic.
// Returns a progress-tracking reader for large file streaming.
func (d *HTTPDownloader) Download(ctx context.Context, url string, onProgress ProgressFunc) (io.ReadCloser, int64, error) {
	type result struct {
		reader io.ReadCloser
		size   int64
	}

	cfg := RetryConfig{
		MaxAttempts:   3,
		InitialDelay:  d.cfg.RetryDelay,
		MaxDelay:      d.cfg.MaxRetryDelay,
		BackoffFactor: 2.0,
	}

	res, err := RetryWithCheck(ctx, cfg, func() (result, error) {
		reader, size, err := d.downloadOnce(ctx, url, onProgress)
		return result{reader, size}, err
	}, isRetryableError)
	if err != nil {
		return nil, 0, fmt.Errorf("%w: %w", domain.ErrDownloadFailed, err)
	}

	return res.reader, res.size, nil
}

func (d *HTTPDownloader) downloadOnce(ctx context.Context, url string, onProgress ProgressFunc) (io.ReadCloser, int64, error) {
	req, err := http.NewRequestWithContext(ctx, "GET", url, nil)
	if err != nil {
		return nil, 0, fmt.Errorf("create request: %w", err)
	}

	// Set headers to mimic browser request
	req.Header.Set("User-Agent", d.userAgent)
	req.Header.Set("Accept", "video/mp4,video/*;q=0.9,image/*;q=0.9,*/*;q=0.8")
	req.Header.Set("Accept-Language", "en-US,en;q=0.5")
	req.Header.Set("Referer", "https://x.com/")

	resp, err := d.streamClient.Do(req)
	if err != nil {
		return nil, 0, fmt.Errorf("send request: %w", err)
	}

	if resp.StatusCode == http.StatusForbidden || resp.StatusCode == http.StatusUnauthorized {
		resp.Body.Close()
		return nil, 0, domain.ErrURLExpired
	}

	if resp.StatusCode == http.StatusTooManyRequests {
		resp.Body.Close()
		return nil, 0, domain.ErrRateLimited
	}

	if resp.StatusCode != http.StatusOK {
		resp.Body.Close()
		return nil, 0, fmt.Errorf("unexpected status code: %d", resp.StatusCode)
	}

	size := resp.ContentLength
	if size < 0 {
		if cl := resp.Header.Get("Content-Length"); cl != "" {
			size, _ = strconv.ParseInt(cl, 10, 64)
		}
	}

	progressReader := newProgressReader(resp.Body, size, d.cfg.ReadTimeout, d.logger, onProgress)
	return progressReader, size, nil
}

// Probe checks URL accessibility without downloading full content.
func (d *HTTPDownloader) Probe(ctx context.Context, url string) (*ProbeResult, error) {
	req, err := http.NewRequestWithContext(ctx, "HEAD", url, nil)
	if err != nil {
		return nil, fmt.Errorf("create request: %w", err)
	}

	req.Header.Set("User-Agent", d.userAgent)
	req.Header.Set("Referer", "https://x.com/")

	resp, err := d.client.Do(req)
	if err != nil {
		return &ProbeResult{
			Accessible: false,
			Error:      err.Error(),
		}, nil
	}
	defer resp.Body.Close()

	result := &ProbeResult{
		ContentType:   resp.Header.Get("Content-Type"),
		ContentLength: resp.ContentLength,
		Accessible:    resp.StatusCode == http.StatusOK,
	}

	if !result.Accessible {
		result.Error = fmt.Sprintf("status code %d", resp.StatusCode)
	}

	return result, nil
}

// SelectBestURL selects the first accessible URL from a list.
// URLs should be provided in order of preference (highest quality first).
func (d *HTTPDownloader) SelectBestURL(ctx context.Context, urls []string) (string, error) {
	for _, url := range urls {
		probe, err := d.Probe(ctx, url)
		if err != nil {
			continue
		}
		if probe.Accessible {
			return url, nil
		}
	}
	return "", domain.ErrNoMediaURLs
}

func isRetryableError(err error) bool {
	// Expired signed URLs need a fresh resolve, retrying the same URL is useless
	if errors.Is(err, domain.ErrURLExpired) {
		return false
	}
	return true
}

// progressReader wraps an io.ReadCloser to track download progress
// and detect stalls (no data for readTimeout).
type progressReader struct {
	reader      io.ReadCloser
	total       int64
	downloaded  int64
	readTimeout time.Duration
	lastRead    time.Time
	lastLog     time.Time
	lastPercent int
	logger      *slog.Logger
	onProgress  ProgressFunc
	mu          sync.Mutex
	closed      bool
}

func newProgressReader(r io.ReadCloser, total int64, readTimeout time.Duration, logger *slog.Logger, onProgress ProgressFunc) *progressReader {
	now := time.Now()
	pr := &progressReader{
		reader:      r,
		total:       total,
		readTimeout: readTimeout,
		lastRead:    now,
		lastLog:     now,
		lastPercent: -1,
		logger:      logger,
		onProgress:  onProgress,
	}
	pr.report(0)
	return pr
}

func (p *progressReader) Read(buf []byte) (int, error) {
	n, err := p.reader.Read(buf)

	p.mu.Lock()
	defer p.mu.Unlock()

	if n > 0 {
		p.downloaded += int64(n)
		p.lastRead = time.Now()

		if p.total > 0 {
			p.report(int(p.downloaded * 100 / p.total))
		}

		if time.Since(p.lastLog) > 30*time.Second {
			p.logProgress()
			p.lastLog = time.Now()
		}
	}

	if err == io.EOF {
		p.report(100)
	}

	// Check for stall on any read (including zero-byte reads)
	if err == nil && p.readTimeout > 0 && time.Since(p.lastRead) > p.readTimeout {
		return n, fmt.Errorf("download stalled: no data received for %v", p.readTimeout)
	}

	return n, err
}

// report invokes the progress callback, deduplicating repeated percentages.
// Caller must hold mu except during construction.
func (p *progressReader) report(percent int) {
	if p.onProgress == nil || percent == p.lastPercent {
		return
	}
	if percent > 100 {
		percent = 100
	}
	p.lastPercent = percent
	p.onProgress(percent)
}

func (p *progressReader) Close() error {
	p.mu.Lock()
	if p.closed {
		p.mu.Unlock()
		return nil
	}
	p.closed = true

	if p.downloaded > 0 {
		p.logProgress()
	}
	p.mu.Unlock()

	return p.reader.Close()
}

func (p *progressReader) logProgress() {
	if p.total > 0 {
		pct := float64(p.downloaded) / float64(p.total) * 100
		p.logger.Info("download progress",
			"downloaded_mb", p.downloaded/(1024*1024),
			"total_mb", p.total/(1024*1024),
			"percent", fmt.Sprintf("%.1f%%", pct),
		)
	} else {
		p.logger.Info("download progress",
			"downloaded_mb", p.downloaded/(1024*1024),
		)
	}
}

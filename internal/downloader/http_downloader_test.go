package downloader

import (
	"context"
	"errors"
	"io"
	"net/http"
	"net/http/httptest"
	"testing"
	"time"

	"github.com/iconidentify/xfetch/internal/config"
	"github.com/iconidentify/xfetch/internal/domain"
)

func testConfig() config.DownloadConfig {
	return config.DownloadConfig{
		Timeout:       5 * time.Second,
		RetryDelay:    10 * time.Millisecond,
		MaxRetryDelay: 100 * time.Millisecond,
		UserAgent:     "test-agent",
	}
}

func TestHTTPDownloader_Download_Success(t *testing.T) {
	content := []byte("video content data here")
	server := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		if r.Method != http.MethodGet {
			t.Errorf("method = %s, want GET", r.Method)
		}
		if ua := r.Header.Get("User-Agent"); ua != "test-agent" {
			t.Errorf("User-Agent = %q, want %q", ua, "test-agent")
		}
		w.Header().Set("Content-Length", "23")
		w.Write(content)
	}))
	defer server.Close()

	dl := NewHTTPDownloader(testConfig())
	reader, size, err := dl.Download(context.Background(), server.URL, nil)
	if err != nil {
		t.Fatalf("Download failed: %v", err)
	}
	defer reader.Close()

	if size != 23 {
		t.Errorf("size = %d, want 23", size)
	}

	data, _ := io.ReadAll(reader)
	if string(data) != string(content) {
		t.Errorf("content = %q, want %q", string(data), string(content))
	}
}

func TestHTTPDownloader_Download_Progress(t *testing.T) {
	content := make([]byte, 64*1024)
	server := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		w.Write(content)
	}))
	defer server.Close()

	var percents []int
	dl := NewHTTPDownloader(testConfig())
	reader, _, err := dl.Download(context.Background(), server.URL, func(percent int) {
		percents = append(percents, percent)
	})
	if err != nil {
		t.Fatalf("Download failed: %v", err)
	}
	defer reader.Close()

	if _, err := io.ReadAll(reader); err != nil {
		t.Fatalf("read: %v", err)
	}

	if len(percents) < 2 {
		t.Fatalf("expected at least start/end progress, got %v", percents)
	}
	if percents[0] != 0 {
		t.Errorf("first progress = %d, want 0", percents[0])
	}
	if percents[len(percents)-1] != 100 {
		t.Errorf("last progress = %d, want 100", percents[len(percents)-1])
	}
	for i := 1; i < len(percents); i++ {
		if percents[i] < percents[i-1] {
			t.Errorf("progress went backwards: %v", percents)
			break
		}
	}
}

func TestHTTPDownloader_Download_ProgressUnknownLength(t *testing.T) {
	server := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		// Chunked response, no Content-Length
		flusher := w.(http.Flusher)
		w.Write([]byte("part1"))
		flusher.Flush()
		w.Write([]byte("part2"))
	}))
	defer server.Close()

	var percents []int
	dl := NewHTTPDownloader(testConfig())
	reader, size, err := dl.Download(context.Background(), server.URL, func(percent int) {
		percents = append(percents, percent)
	})
	if err != nil {
		t.Fatalf("Download failed: %v", err)
	}
	defer reader.Close()

	if size > 0 {
		t.Errorf("size = %d, want unknown", size)
	}

	io.ReadAll(reader)

	// Only bookends when length is unknown
	for _, p := range percents {
		if p != 0 && p != 100 {
			t.Errorf("unexpected intermediate progress %d with unknown length", p)
		}
	}
}

func TestHTTPDownloader_Download_Forbidden(t *testing.T) {
	attempts := 0
	server := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		attempts++
		w.WriteHeader(http.StatusForbidden)
	}))
	defer server.Close()

	dl := NewHTTPDownloader(testConfig())
	_, _, err := dl.Download(context.Background(), server.URL, nil)

	if !errors.Is(err, domain.ErrURLExpired) {
		t.Errorf("expected ErrURLExpired in chain, got %v", err)
	}
	if attempts != 1 {
		t.Errorf("attempts = %d, expired URL must not be retried", attempts)
	}
}

func TestHTTPDownloader_Download_RateLimited(t *testing.T) {
	attempts := 0
	server := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		attempts++
		if attempts < 3 {
			w.WriteHeader(http.StatusTooManyRequests)
			return
		}
		w.Write([]byte("success"))
	}))
	defer server.Close()

	dl := NewHTTPDownloader(testConfig())
	reader, _, err := dl.Download(context.Background(), server.URL, nil)
	if err != nil {
		t.Fatalf("Download should succeed after retries: %v", err)
	}
	reader.Close()

	if attempts != 3 {
		t.Errorf("attempts = %d, want 3", attempts)
	}
}

func TestHTTPDownloader_Download_RateLimitExhausted(t *testing.T) {
	server := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		w.WriteHeader(http.StatusTooManyRequests)
	}))
	defer server.Close()

	dl := NewHTTPDownloader(testConfig())
	_, _, err := dl.Download(context.Background(), server.URL, nil)
	if !errors.Is(err, domain.ErrRateLimited) {
		t.Errorf("expected ErrRateLimited in chain, got %v", err)
	}
	if !errors.Is(err, domain.ErrDownloadFailed) {
		t.Errorf("expected ErrDownloadFailed in chain, got %v", err)
	}
}

func TestHTTPDownloader_Download_ExhaustedRetries(t *testing.T) {
	server := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		w.WriteHeader(http.StatusTooManyRequests)
	}))
	defer server.Close()

	dl := NewHTTPDownloader(testConfig())
	_, _, err := dl.Download(context.Background(), server.URL, nil)

	if !errors.Is(err, domain.ErrDownloadFailed) {
		t.Errorf("expected ErrDownloadFailed, got %v", err)
	}
}

func TestHTTPDownloader_Download_ContextCanceledDuringRetry(t *testing.T) {
	server := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		w.WriteHeader(http.StatusTooManyRequests)
	}))
	defer server.Close()

	dl := NewHTTPDownloader(testConfig())
	ctx, cancel := context.WithCancel(context.Background())
	cancel()

	_, _, err := dl.Download(ctx, server.URL, nil)
	if err == nil {
		t.Fatal("expected context cancellation error")
	}
}

func TestHTTPDownloader_Probe_Success(t *testing.T) {
	server := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		if r.Method != http.MethodHead {
			t.Errorf("Probe should use HEAD, got %s", r.Method)
		}
		w.Header().Set("Content-Type", "video/mp4")
		w.Header().Set("Content-Length", "1024")
		w.WriteHeader(http.StatusOK)
	}))
	defer server.Close()

	dl := NewHTTPDownloader(testConfig())
	result, err := dl.Probe(context.Background(), server.URL)
	if err != nil {
		t.Fatalf("Probe failed: %v", err)
	}

	if !result.Accessible {
		t.Error("Accessible should be true")
	}
	if result.ContentType != "video/mp4" {
		t.Errorf("ContentType = %q, want %q", result.ContentType, "video/mp4")
	}
	if result.ContentLength != 1024 {
		t.Errorf("ContentLength = %d, want 1024", result.ContentLength)
	}
}

func TestHTTPDownloader_Probe_NotFound(t *testing.T) {
	server := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		w.WriteHeader(http.StatusNotFound)
	}))
	defer server.Close()

	dl := NewHTTPDownloader(testConfig())
	result, err := dl.Probe(context.Background(), server.URL)
	if err != nil {
		t.Fatalf("Probe should not return error: %v", err)
	}

	if result.Accessible {
		t.Error("Accessible should be false for 404")
	}
	if result.Error == "" {
		t.Error("Error should contain status code")
	}
}

func TestHTTPDownloader_Probe_NetworkError(t *testing.T) {
	dl := NewHTTPDownloader(testConfig())
	result, err := dl.Probe(context.Background(), "http://invalid-domain-that-does-not-exist-12345.com/video.mp4")

	if err != nil {
		t.Fatalf("Probe should not return error for network failures: %v", err)
	}
	if result.Accessible {
		t.Error("Accessible should be false for network errors")
	}
	if result.Error == "" {
		t.Error("Error should contain network error message")
	}
}

func TestHTTPDownloader_SelectBestURL_FirstAccessible(t *testing.T) {
	server := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		w.WriteHeader(http.StatusOK)
	}))
	defer server.Close()

	dl := NewHTTPDownloader(testConfig())
	urls := []string{server.URL + "/high", server.URL + "/medium", server.URL + "/low"}

	best, err := dl.SelectBestURL(context.Background(), urls)
	if err != nil {
		t.Fatalf("SelectBestURL failed: %v", err)
	}
	if best != urls[0] {
		t.Errorf("should return first accessible URL, got %q", best)
	}
}

func TestHTTPDownloader_SelectBestURL_SkipsInaccessible(t *testing.T) {
	server := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		if r.URL.Path == "/high" || r.URL.Path == "/medium" {
			w.WriteHeader(http.StatusNotFound)
			return
		}
		w.WriteHeader(http.StatusOK)
	}))
	defer server.Close()

	dl := NewHTTPDownloader(testConfig())
	urls := []string{server.URL + "/high", server.URL + "/medium", server.URL + "/low"}

	best, err := dl.SelectBestURL(context.Background(), urls)
	if err != nil {
		t.Fatalf("SelectBestURL failed: %v", err)
	}
	if best != server.URL+"/low" {
		t.Errorf("should return first accessible URL, got %q", best)
	}
}

func TestHTTPDownloader_SelectBestURL_NoneAccessible(t *testing.T) {
	server := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		w.WriteHeader(http.StatusNotFound)
	}))
	defer server.Close()

	dl := NewHTTPDownloader(testConfig())
	urls := []string{server.URL + "/a", server.URL + "/b"}

	_, err := dl.SelectBestURL(context.Background(), urls)
	if !errors.Is(err, domain.ErrNoMediaURLs) {
		t.Errorf("expected ErrNoMediaURLs, got %v", err)
	}
}

func TestIsRetryableError(t *testing.T) {
	tests := []struct {
		name string
		err  error
		want bool
	}{
		{"rate limited", domain.ErrRateLimited, true},
		{"URL expired", domain.ErrURLExpired, false},
		{"generic error", io.EOF, true},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			if got := isRetryableError(tt.err); got != tt.want {
				t.Errorf("isRetryableError(%v) = %v, want %v", tt.err, got, tt.want)
			}
		})
	}
}

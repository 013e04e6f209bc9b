package downloader

import (
	"context"
	"io"
)

// ProgressFunc receives download progress as a 0-100 percentage. When the
// content length is unknown only 0 and 100 are reported.
type ProgressFunc func(percent int)

// Downloader fetches media content from URLs.
type Downloader interface {
	// Download fetches media from URL. The returned reader reports byte
	// progress through onProgress as it is consumed; onProgress may be nil.
	// Caller is responsible for closing the reader.
	Download(ctx context.Context, url string, onProgress ProgressFunc) (io.ReadCloser, int64, error)

	// Probe checks URL accessibility without downloading full content.
	Probe(ctx context.Context, url string) (*ProbeResult, error)
}

// ProbeResult contains information about a media URL.
type ProbeResult struct {
	ContentType   string
	ContentLength int64
	Accessible    bool
	Error         string
}

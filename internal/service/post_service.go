// Package service orchestrates the resolve/download/delete workflows on top
// of the fetcher, downloader, storage, and history layers.
package service

import (
	"context"
	"log/slog"

	"github.com/iconidentify/xfetch/internal/domain"
	"github.com/iconidentify/xfetch/internal/fetcher"
)

// Resolver turns a post URL into a media snapshot.
type Resolver interface {
	Resolve(ctx context.Context, postURL string) (*domain.PostSnapshot, error)
	AttachVariants(ctx context.Context, snapshot *domain.PostSnapshot)
}

// PostService resolves post URLs into downloadable media candidates.
type PostService struct {
	fetcher Resolver
	logger  *slog.Logger
}

// NewPostService creates a post service.
func NewPostService(f Resolver, logger *slog.Logger) *PostService {
	return &PostService{fetcher: f, logger: logger}
}

// Resolve fetches the post snapshot and attaches quality variants to its
// video candidates. Variant attachment is best-effort; the snapshot is
// usable without it.
func (s *PostService) Resolve(ctx context.Context, postURL string) (*domain.PostSnapshot, error) {
	snapshot, err := s.fetcher.Resolve(ctx, postURL)
	if err != nil {
		return nil, err
	}
	s.fetcher.AttachVariants(ctx, snapshot)

	s.logger.Info("post resolved",
		"post_id", snapshot.ID,
		"author", snapshot.AuthorHandle,
		"media_count", len(snapshot.Media))
	return snapshot, nil
}

var _ Resolver = (*fetcher.Client)(nil)

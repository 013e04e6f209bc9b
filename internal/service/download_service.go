package service

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"net/url"
	"os"
	"path"
	"path/filepath"
	"strings"
	"time"

	"github.com/google/uuid"

	"github.com/iconidentify/xfetch/internal/config"
	"github.com/iconidentify/xfetch/internal/domain"
	"github.com/iconidentify/xfetch/internal/downloader"
	"github.com/iconidentify/xfetch/internal/history"
	"github.com/iconidentify/xfetch/internal/settings"
	"github.com/iconidentify/xfetch/internal/storage"
)

// ErrNotVideo is returned when a thumbnail is requested for a record whose
// media has no frames to sample.
var ErrNotVideo = errors.New("record media is not a video")

// ThumbEnqueuer submits animated thumbnail jobs to the durable queue.
type ThumbEnqueuer interface {
	Enqueue(ctx context.Context, job domain.ThumbnailJob) error
}

// StaticThumbnailer produces the inline still thumbnail for a video file.
type StaticThumbnailer interface {
	Static(ctx context.Context, videoPath, outPath string) error
}

// Selection picks one media candidate of a resolved post, optionally pinning
// a specific quality variant.
type Selection struct {
	Index      int    `json:"index"`
	VariantURL string `json:"variant_url,omitempty"`
}

// DownloadRequest asks for some or all media of a post. An empty selection
// list means every candidate.
type DownloadRequest struct {
	PostURL    string      `json:"post_url"`
	Selections []Selection `json:"selections,omitempty"`
}

// ItemResult reports the outcome for one selected media item.
type ItemResult struct {
	Index          int    `json:"index"`
	RecordID       string `json:"record_id,omitempty"`
	StoragePointer string `json:"storage_pointer,omitempty"`
	Error          string `json:"error,omitempty"`
}

// DownloadResult is the per-item outcome of a download request.
type DownloadResult struct {
	PostID domain.PostID `json:"post_id"`
	Items  []ItemResult  `json:"items"`
}

// DownloadService runs the download workflow: fetch, store, record, and
// thumbnail each selected media item.
type DownloadService struct {
	fetcher    Resolver
	downloader downloader.Downloader
	store      storage.Store
	repo       *history.Repository
	settings   *settings.Store
	enqueuer   ThumbEnqueuer
	thumbnails StaticThumbnailer
	storageCfg config.StorageConfig
	progress   *ProgressBroker
	logger     *slog.Logger
}

// SetProgressBroker routes per-item byte progress to the given broker for
// the live stream. Without one, progress surfaces only in logs.
func (s *DownloadService) SetProgressBroker(b *ProgressBroker) {
	s.progress = b
}

// NewDownloadService creates a download service. The enqueuer and static
// thumbnailer may be nil; the corresponding steps are skipped.
func NewDownloadService(
	f Resolver,
	dl downloader.Downloader,
	store storage.Store,
	repo *history.Repository,
	st *settings.Store,
	enqueuer ThumbEnqueuer,
	thumbnails StaticThumbnailer,
	storageCfg config.StorageConfig,
	logger *slog.Logger,
) *DownloadService {
	return &DownloadService{
		fetcher:    f,
		downloader: dl,
		store:      store,
		repo:       repo,
		settings:   st,
		enqueuer:   enqueuer,
		thumbnails: thumbnails,
		storageCfg: storageCfg,
		logger:     logger,
	}
}

// Download resolves the post and downloads each selected media item in
// selection order. A failed item is reported in its result entry and does
// not abort the remaining items.
func (s *DownloadService) Download(ctx context.Context, req DownloadRequest) (*DownloadResult, error) {
	snapshot, err := s.fetcher.Resolve(ctx, req.PostURL)
	if err != nil {
		return nil, err
	}
	if len(snapshot.Media) == 0 {
		return nil, domain.ErrNoMediaURLs
	}
	s.fetcher.AttachVariants(ctx, snapshot)

	selections := req.Selections
	if len(selections) == 0 {
		selections = make([]Selection, len(snapshot.Media))
		for i := range snapshot.Media {
			selections[i] = Selection{Index: i}
		}
	}

	result := &DownloadResult{PostID: snapshot.ID, Items: make([]ItemResult, 0, len(selections))}
	for _, sel := range selections {
		item := ItemResult{Index: sel.Index}
		rec, err := s.downloadOne(ctx, snapshot, sel)
		if err != nil {
			s.logger.Error("media download failed",
				"post_id", snapshot.ID, "index", sel.Index, "error", err)
			item.Error = err.Error()
		} else {
			item.RecordID = string(rec.ID)
			item.StoragePointer = rec.StoragePointer.String()
		}
		result.Items = append(result.Items, item)
	}
	return result, nil
}

func (s *DownloadService) downloadOne(ctx context.Context, snapshot *domain.PostSnapshot, sel Selection) (*domain.DownloadRecord, error) {
	if sel.Index < 0 || sel.Index >= len(snapshot.Media) {
		return nil, fmt.Errorf("media index %d out of range", sel.Index)
	}
	media := snapshot.Media[sel.Index]
	mediaURL := media.EffectiveURL(sel.VariantURL)

	var onProgress downloader.ProgressFunc
	if s.progress != nil {
		onProgress = func(percent int) {
			s.progress.Publish(DownloadProgress{
				PostID:     snapshot.ID,
				MediaIndex: sel.Index,
				Percent:    percent,
				At:         time.Now().UTC(),
			})
		}
	}
	body, size, err := s.downloader.Download(ctx, mediaURL, onProgress)
	if err != nil {
		return nil, err
	}
	defer body.Close()

	name := storage.Filename(snapshot.ID, sel.Index, mediaExt(mediaURL, media.Kind))
	ptr, err := s.store.Save(ctx, media.Kind, name, body)
	if err != nil {
		return nil, err
	}

	rec := &domain.DownloadRecord{
		ID:             domain.RecordID(uuid.NewString()),
		PostID:         snapshot.ID,
		PostURL:        snapshot.URL,
		AuthorName:     snapshot.AuthorName,
		AuthorHandle:   snapshot.AuthorHandle,
		Text:           snapshot.Text,
		DownloadedAt:   time.Now().UTC(),
		MediaURL:       mediaURL,
		MediaKind:      media.Kind,
		StoragePointer: ptr,
		MediaIndex:     sel.Index,
		MediaCount:     len(snapshot.Media),
	}
	op, err := s.repo.Upsert(ctx, rec)
	if err != nil {
		return nil, err
	}

	s.logger.Info("media downloaded",
		"post_id", snapshot.ID, "index", sel.Index,
		"kind", media.Kind, "bytes", size, "op", op)

	if media.Kind == domain.MediaKindVideo || media.Kind == domain.MediaKindGIF {
		s.thumbnailVideo(ctx, rec)
	}
	return rec, nil
}

// thumbnailVideo generates the inline still and, when the toggle is on,
// enqueues the animated job. Thumbnail failures never fail the download.
func (s *DownloadService) thumbnailVideo(ctx context.Context, rec *domain.DownloadRecord) {
	if s.thumbnails != nil {
		videoPath, err := s.store.Path(rec.StoragePointer)
		if err == nil {
			thumbPath := filepath.Join(s.storageCfg.ThumbsPath, string(rec.ID)+".jpg")
			if err := s.thumbnails.Static(ctx, videoPath, thumbPath); err != nil {
				s.logger.Warn("static thumbnail failed", "record_id", rec.ID, "error", err)
			} else if err := s.repo.SetThumbnail(ctx, rec.ID, thumbPath); err != nil {
				s.logger.Warn("record thumbnail update failed", "record_id", rec.ID, "error", err)
			}
		}
	}

	animated, err := s.settings.GetBool(ctx, settings.KeyAnimatedThumbnails)
	if err != nil {
		s.logger.Warn("settings read failed", "key", settings.KeyAnimatedThumbnails, "error", err)
		return
	}
	if !animated || s.enqueuer == nil {
		return
	}
	job := domain.ThumbnailJob{RecordID: rec.ID, Source: rec.StoragePointer, NameID: string(rec.ID)}
	if err := s.enqueuer.Enqueue(ctx, job); err != nil {
		s.logger.Warn("thumbnail job enqueue failed", "record_id", rec.ID, "error", err)
	}
}

// EnqueueThumbnail re-submits the animated thumbnail job for an existing
// record.
func (s *DownloadService) EnqueueThumbnail(ctx context.Context, id domain.RecordID) error {
	rec, err := s.repo.Get(ctx, id)
	if err != nil {
		return err
	}
	if rec.MediaKind != domain.MediaKindVideo && rec.MediaKind != domain.MediaKindGIF {
		return fmt.Errorf("%w: %s", ErrNotVideo, rec.MediaKind)
	}
	if s.enqueuer == nil {
		return errors.New("thumbnail queue not configured")
	}
	job := domain.ThumbnailJob{RecordID: rec.ID, Source: rec.StoragePointer, NameID: string(rec.ID)}
	return s.enqueuer.Enqueue(ctx, job)
}

// Delete removes a history record. When the delete-files toggle is on the
// stored media and thumbnails are removed too; storage failures are logged
// and never block the history mutation.
func (s *DownloadService) Delete(ctx context.Context, id domain.RecordID) error {
	deleteFiles, err := s.settings.GetBool(ctx, settings.KeyDeleteFilesWithHistory)
	if err != nil {
		s.logger.Warn("settings read failed", "key", settings.KeyDeleteFilesWithHistory, "error", err)
	}

	rec, err := s.repo.Delete(ctx, id)
	if err != nil {
		return err
	}
	if deleteFiles {
		s.removeFiles(rec)
	}
	return nil
}

// DeletePost removes every record of a post, with the same file handling as
// Delete.
func (s *DownloadService) DeletePost(ctx context.Context, postID domain.PostID) error {
	deleteFiles, err := s.settings.GetBool(ctx, settings.KeyDeleteFilesWithHistory)
	if err != nil {
		s.logger.Warn("settings read failed", "key", settings.KeyDeleteFilesWithHistory, "error", err)
	}

	records, err := s.repo.DeleteByPost(ctx, postID)
	if err != nil {
		return err
	}
	if deleteFiles {
		for i := range records {
			s.removeFiles(&records[i])
		}
	}
	return nil
}

func (s *DownloadService) removeFiles(rec *domain.DownloadRecord) {
	if rec.StoragePointer != "" {
		if err := s.store.Remove(rec.StoragePointer); err != nil {
			s.logger.Warn("media file removal failed",
				"record_id", rec.ID, "pointer", rec.StoragePointer, "error", err)
		}
	}
	for _, p := range thumbPaths(rec, s.storageCfg.ThumbsPath) {
		if err := os.Remove(p); err != nil && !os.IsNotExist(err) {
			s.logger.Warn("thumbnail removal failed", "record_id", rec.ID, "path", p, "error", err)
		}
	}
}

// thumbPaths lists every thumbnail file a record may have: the recorded path
// plus the conventional still and animated outputs.
func thumbPaths(rec *domain.DownloadRecord, thumbsDir string) []string {
	seen := map[string]bool{}
	var paths []string
	add := func(p string) {
		if p != "" && !seen[p] {
			seen[p] = true
			paths = append(paths, p)
		}
	}
	add(rec.ThumbnailPath)
	add(filepath.Join(thumbsDir, string(rec.ID)+".jpg"))
	add(filepath.Join(thumbsDir, string(rec.ID)+".gif"))
	return paths
}

// mediaExt derives a file extension from the media URL, falling back to a
// kind-appropriate default when the URL path has none.
func mediaExt(rawURL string, kind domain.MediaKind) string {
	if u, err := url.Parse(rawURL); err == nil {
		if ext := strings.ToLower(path.Ext(u.Path)); ext != "" && len(ext) <= 5 {
			return ext
		}
	}
	switch kind {
	case domain.MediaKindImage:
		return ".jpg"
	case domain.MediaKindAudio:
		return ".mp3"
	default:
		// videos and animated GIFs are served as MP4
		return ".mp4"
	}
}

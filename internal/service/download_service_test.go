package service

import (
	"context"
	"database/sql"
	"errors"
	"io"
	"log/slog"
	"os"
	"path/filepath"
	"strings"
	"testing"

	"github.com/iconidentify/xfetch/internal/config"
	"github.com/iconidentify/xfetch/internal/domain"
	"github.com/iconidentify/xfetch/internal/downloader"
	"github.com/iconidentify/xfetch/internal/history"
	"github.com/iconidentify/xfetch/internal/settings"
	"github.com/iconidentify/xfetch/internal/storage"
)

type fakeResolver struct {
	snapshot *domain.PostSnapshot
	err      error
}

func (f *fakeResolver) Resolve(ctx context.Context, postURL string) (*domain.PostSnapshot, error) {
	return f.snapshot, f.err
}

func (f *fakeResolver) AttachVariants(ctx context.Context, snapshot *domain.PostSnapshot) {}

type fakeDownloader struct {
	failSubstring string
}

func (f *fakeDownloader) Download(ctx context.Context, url string, onProgress downloader.ProgressFunc) (io.ReadCloser, int64, error) {
	if f.failSubstring != "" && strings.Contains(url, f.failSubstring) {
		return nil, 0, domain.ErrDownloadFailed
	}
	if onProgress != nil {
		onProgress(50)
		onProgress(100)
	}
	content := "content of " + url
	return io.NopCloser(strings.NewReader(content)), int64(len(content)), nil
}

func (f *fakeDownloader) Probe(ctx context.Context, url string) (*downloader.ProbeResult, error) {
	return &downloader.ProbeResult{Accessible: true}, nil
}

type fakeEnqueuer struct {
	jobs []domain.ThumbnailJob
	err  error
}

func (f *fakeEnqueuer) Enqueue(ctx context.Context, job domain.ThumbnailJob) error {
	if f.err != nil {
		return f.err
	}
	f.jobs = append(f.jobs, job)
	return nil
}

type fakeThumbnailer struct {
	calls int
}

func (f *fakeThumbnailer) Static(ctx context.Context, videoPath, outPath string) error {
	f.calls++
	return os.WriteFile(outPath, []byte("jpeg"), 0o644)
}

func testSnapshot() *domain.PostSnapshot {
	return &domain.PostSnapshot{
		ID:           "1234567890",
		URL:          "https://x.com/someone/status/1234567890",
		AuthorName:   "Some One",
		AuthorHandle: "someone",
		Text:         "two media",
		Media: []domain.MediaCandidate{
			{URL: "https://pbs.twimg.com/media/a.jpg", Kind: domain.MediaKindImage},
			{
				URL:  "https://video.twimg.com/vid/hq.mp4",
				Kind: domain.MediaKindVideo,
				Variants: []domain.VariantCandidate{
					{URL: "https://video.twimg.com/vid/lq.mp4", Quality: "360p"},
				},
			},
		},
	}
}

type testEnv struct {
	svc      *DownloadService
	repo     *history.Repository
	settings *settings.Store
	enqueuer *fakeEnqueuer
	thumbs   *fakeThumbnailer
	dl       *fakeDownloader
	cfg      config.StorageConfig
}

func setupService(t *testing.T) *testEnv {
	t.Helper()

	db, err := sql.Open("sqlite", ":memory:")
	if err != nil {
		t.Fatalf("open db: %v", err)
	}
	t.Cleanup(func() { db.Close() })
	if err := history.Migrate(db); err != nil {
		t.Fatalf("migrate: %v", err)
	}

	cfg := config.StorageConfig{
		FlatPath:   t.TempDir(),
		ThumbsPath: t.TempDir(),
		AppDirName: "xfetch",
	}
	logger := slog.New(slog.NewTextHandler(io.Discard, nil))
	env := &testEnv{
		repo:     history.NewRepository(db, logger),
		settings: settings.NewStore(db),
		enqueuer: &fakeEnqueuer{},
		thumbs:   &fakeThumbnailer{},
		dl:       &fakeDownloader{},
		cfg:      cfg,
	}
	env.svc = NewDownloadService(
		&fakeResolver{snapshot: testSnapshot()},
		env.dl,
		storage.Detect(cfg, logger),
		env.repo,
		env.settings,
		env.enqueuer,
		env.thumbs,
		cfg,
		logger,
	)
	return env
}

func TestDownloadPublishesProgress(t *testing.T) {
	env := setupService(t)
	broker := NewProgressBroker()
	env.svc.SetProgressBroker(broker)
	id, ch := broker.Subscribe()
	defer broker.Unsubscribe(id)

	_, err := env.svc.Download(context.Background(), DownloadRequest{
		PostURL:    "https://x.com/someone/status/1234567890",
		Selections: []Selection{{Index: 0}},
	})
	if err != nil {
		t.Fatalf("Download() error = %v", err)
	}

	var got []DownloadProgress
	for {
		select {
		case p := <-ch:
			got = append(got, p)
			continue
		default:
		}
		break
	}
	if len(got) != 2 {
		t.Fatalf("progress events = %d, want 2", len(got))
	}
	if got[0].Percent != 50 || got[1].Percent != 100 {
		t.Errorf("percents = %d, %d, want 50, 100", got[0].Percent, got[1].Percent)
	}
	if got[0].PostID != "1234567890" || got[0].MediaIndex != 0 {
		t.Errorf("event = %+v, want post 1234567890 index 0", got[0])
	}
}

func TestDownloadAllMedia(t *testing.T) {
	env := setupService(t)
	ctx := context.Background()

	result, err := env.svc.Download(ctx, DownloadRequest{PostURL: "https://x.com/someone/status/1234567890"})
	if err != nil {
		t.Fatalf("Download() error = %v", err)
	}
	if len(result.Items) != 2 {
		t.Fatalf("items = %d, want 2", len(result.Items))
	}
	for _, item := range result.Items {
		if item.Error != "" {
			t.Errorf("item %d error = %q", item.Index, item.Error)
		}
		if item.RecordID == "" || item.StoragePointer == "" {
			t.Errorf("item %d missing record or pointer: %+v", item.Index, item)
		}
	}

	records, err := env.repo.List(ctx, 0, 0)
	if err != nil {
		t.Fatalf("List() error = %v", err)
	}
	if len(records) != 2 {
		t.Fatalf("history records = %d, want 2", len(records))
	}
	for _, rec := range records {
		if rec.MediaCount != 2 {
			t.Errorf("record %s media count = %d, want 2", rec.ID, rec.MediaCount)
		}
		if !strings.Contains(string(rec.StoragePointer), "1234567890") {
			t.Errorf("pointer %q missing post ID", rec.StoragePointer)
		}
		if _, err := os.Stat(string(rec.StoragePointer)); err != nil {
			t.Errorf("stored file missing: %v", err)
		}
	}
}

func TestDownloadSelectedVariant(t *testing.T) {
	env := setupService(t)
	ctx := context.Background()

	result, err := env.svc.Download(ctx, DownloadRequest{
		PostURL:    "https://x.com/someone/status/1234567890",
		Selections: []Selection{{Index: 1, VariantURL: "https://video.twimg.com/vid/lq.mp4"}},
	})
	if err != nil {
		t.Fatalf("Download() error = %v", err)
	}
	if len(result.Items) != 1 || result.Items[0].Error != "" {
		t.Fatalf("unexpected result: %+v", result.Items)
	}

	rec, err := env.repo.Get(ctx, domain.RecordID(result.Items[0].RecordID))
	if err != nil {
		t.Fatalf("Get() error = %v", err)
	}
	if rec.MediaURL != "https://video.twimg.com/vid/lq.mp4" {
		t.Errorf("media URL = %q, want selected variant", rec.MediaURL)
	}
	if rec.MediaIndex != 1 {
		t.Errorf("media index = %d, want 1", rec.MediaIndex)
	}
}

func TestDownloadPartialFailure(t *testing.T) {
	env := setupService(t)
	env.dl.failSubstring = "video.twimg.com"
	ctx := context.Background()

	result, err := env.svc.Download(ctx, DownloadRequest{PostURL: "https://x.com/someone/status/1234567890"})
	if err != nil {
		t.Fatalf("Download() error = %v", err)
	}
	if result.Items[0].Error != "" {
		t.Errorf("image item failed: %q", result.Items[0].Error)
	}
	if result.Items[1].Error == "" {
		t.Error("video item should have failed")
	}

	count, err := env.repo.Count(ctx)
	if err != nil {
		t.Fatalf("Count() error = %v", err)
	}
	if count != 1 {
		t.Errorf("records = %d, want 1 (only the successful item)", count)
	}
}

func TestDownloadInvalidIndex(t *testing.T) {
	env := setupService(t)

	result, err := env.svc.Download(context.Background(), DownloadRequest{
		PostURL:    "https://x.com/someone/status/1234567890",
		Selections: []Selection{{Index: 5}},
	})
	if err != nil {
		t.Fatalf("Download() error = %v", err)
	}
	if result.Items[0].Error == "" {
		t.Error("out of range index should fail the item")
	}
}

func TestDownloadVideoThumbnails(t *testing.T) {
	env := setupService(t)
	ctx := context.Background()

	result, err := env.svc.Download(ctx, DownloadRequest{PostURL: "https://x.com/someone/status/1234567890"})
	if err != nil {
		t.Fatalf("Download() error = %v", err)
	}

	// only the video gets thumbnails
	if env.thumbs.calls != 1 {
		t.Errorf("static thumbnail calls = %d, want 1", env.thumbs.calls)
	}
	if len(env.enqueuer.jobs) != 1 {
		t.Fatalf("enqueued jobs = %d, want 1", len(env.enqueuer.jobs))
	}

	videoID := domain.RecordID(result.Items[1].RecordID)
	job := env.enqueuer.jobs[0]
	if job.RecordID != videoID || job.NameID != string(videoID) {
		t.Errorf("job = %+v, want record %s", job, videoID)
	}

	rec, err := env.repo.Get(ctx, videoID)
	if err != nil {
		t.Fatalf("Get() error = %v", err)
	}
	if rec.ThumbnailPath == "" {
		t.Error("video record has no thumbnail path")
	}
	if _, err := os.Stat(rec.ThumbnailPath); err != nil {
		t.Errorf("thumbnail file missing: %v", err)
	}
}

func TestDownloadAnimatedToggleOff(t *testing.T) {
	env := setupService(t)
	ctx := context.Background()
	if err := env.settings.Set(ctx, settings.KeyAnimatedThumbnails, "false"); err != nil {
		t.Fatal(err)
	}

	if _, err := env.svc.Download(ctx, DownloadRequest{PostURL: "https://x.com/someone/status/1234567890"}); err != nil {
		t.Fatalf("Download() error = %v", err)
	}
	if len(env.enqueuer.jobs) != 0 {
		t.Errorf("enqueued jobs = %d, want 0 with animated thumbnails off", len(env.enqueuer.jobs))
	}
	if env.thumbs.calls != 1 {
		t.Errorf("static thumbnail calls = %d, want 1 (toggle only affects animated)", env.thumbs.calls)
	}
}

func TestEnqueueThumbnailNotVideo(t *testing.T) {
	env := setupService(t)
	ctx := context.Background()

	result, err := env.svc.Download(ctx, DownloadRequest{
		PostURL:    "https://x.com/someone/status/1234567890",
		Selections: []Selection{{Index: 0}},
	})
	if err != nil {
		t.Fatalf("Download() error = %v", err)
	}

	err = env.svc.EnqueueThumbnail(ctx, domain.RecordID(result.Items[0].RecordID))
	if !errors.Is(err, ErrNotVideo) {
		t.Errorf("EnqueueThumbnail() error = %v, want ErrNotVideo", err)
	}
}

func TestDeleteKeepsFilesByDefault(t *testing.T) {
	env := setupService(t)
	ctx := context.Background()

	result, err := env.svc.Download(ctx, DownloadRequest{
		PostURL:    "https://x.com/someone/status/1234567890",
		Selections: []Selection{{Index: 0}},
	})
	if err != nil {
		t.Fatalf("Download() error = %v", err)
	}
	pointer := result.Items[0].StoragePointer

	if err := env.svc.Delete(ctx, domain.RecordID(result.Items[0].RecordID)); err != nil {
		t.Fatalf("Delete() error = %v", err)
	}
	if _, err := env.repo.Get(ctx, domain.RecordID(result.Items[0].RecordID)); !errors.Is(err, domain.ErrRecordNotFound) {
		t.Errorf("record still present after delete: %v", err)
	}
	if _, err := os.Stat(pointer); err != nil {
		t.Errorf("media file removed despite toggle off: %v", err)
	}
}

func TestDeleteRemovesFilesWhenEnabled(t *testing.T) {
	env := setupService(t)
	ctx := context.Background()
	if err := env.settings.Set(ctx, settings.KeyDeleteFilesWithHistory, "true"); err != nil {
		t.Fatal(err)
	}

	result, err := env.svc.Download(ctx, DownloadRequest{PostURL: "https://x.com/someone/status/1234567890"})
	if err != nil {
		t.Fatalf("Download() error = %v", err)
	}
	videoID := domain.RecordID(result.Items[1].RecordID)
	pointer := result.Items[1].StoragePointer
	thumbPath := filepath.Join(env.cfg.ThumbsPath, string(videoID)+".jpg")
	if _, err := os.Stat(thumbPath); err != nil {
		t.Fatalf("thumbnail not created: %v", err)
	}

	if err := env.svc.Delete(ctx, videoID); err != nil {
		t.Fatalf("Delete() error = %v", err)
	}
	if _, err := os.Stat(pointer); !os.IsNotExist(err) {
		t.Errorf("media file still present: %v", err)
	}
	if _, err := os.Stat(thumbPath); !os.IsNotExist(err) {
		t.Errorf("thumbnail still present: %v", err)
	}
}

func TestDeletePost(t *testing.T) {
	env := setupService(t)
	ctx := context.Background()

	if _, err := env.svc.Download(ctx, DownloadRequest{PostURL: "https://x.com/someone/status/1234567890"}); err != nil {
		t.Fatalf("Download() error = %v", err)
	}
	if err := env.svc.DeletePost(ctx, "1234567890"); err != nil {
		t.Fatalf("DeletePost() error = %v", err)
	}
	count, err := env.repo.Count(ctx)
	if err != nil {
		t.Fatal(err)
	}
	if count != 0 {
		t.Errorf("records = %d, want 0", count)
	}
}

func TestMediaExt(t *testing.T) {
	tests := []struct {
		url  string
		kind domain.MediaKind
		want string
	}{
		{"https://pbs.twimg.com/media/abc.jpg", domain.MediaKindImage, ".jpg"},
		{"https://video.twimg.com/vid/720/clip.mp4?tag=12", domain.MediaKindVideo, ".mp4"},
		{"https://video.twimg.com/vid/noext", domain.MediaKindVideo, ".mp4"},
		{"https://pbs.twimg.com/media/noext", domain.MediaKindImage, ".jpg"},
		{"https://example.com/a.PNG", domain.MediaKindImage, ".png"},
	}
	for _, tt := range tests {
		if got := mediaExt(tt.url, tt.kind); got != tt.want {
			t.Errorf("mediaExt(%q, %s) = %q, want %q", tt.url, tt.kind, got, tt.want)
		}
	}
}

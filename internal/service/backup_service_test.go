package service

import (
	"context"
	"database/sql"
	"io"
	"log/slog"
	"strings"
	"testing"
	"time"

	"github.com/google/uuid"

	"github.com/iconidentify/xfetch/internal/domain"
	"github.com/iconidentify/xfetch/internal/history"
	"github.com/iconidentify/xfetch/pkg/crypto"
)

func setupBackup(t *testing.T) (*BackupService, *history.Repository) {
	t.Helper()

	db, err := sql.Open("sqlite", ":memory:")
	if err != nil {
		t.Fatalf("open db: %v", err)
	}
	t.Cleanup(func() { db.Close() })
	if err := history.Migrate(db); err != nil {
		t.Fatalf("migrate: %v", err)
	}

	repo := history.NewRepository(db, slog.New(slog.NewTextHandler(io.Discard, nil)))
	return NewBackupService(repo, slog.New(slog.NewTextHandler(io.Discard, nil))), repo
}

func backupRecord(postID string, index int) *domain.DownloadRecord {
	return &domain.DownloadRecord{
		ID:             domain.RecordID(uuid.NewString()),
		PostID:         domain.PostID(postID),
		PostURL:        "https://x.com/u/status/" + postID,
		AuthorHandle:   "u",
		DownloadedAt:   time.Now().UTC().Truncate(time.Second),
		MediaURL:       "https://video.example/v.mp4",
		MediaKind:      domain.MediaKindVideo,
		StoragePointer: domain.StoragePointer("/data/media/" + postID + ".mp4"),
		MediaIndex:     index,
		MediaCount:     index + 1,
	}
}

func TestBackupRoundTrip(t *testing.T) {
	svc, repo := setupBackup(t)
	ctx := context.Background()

	for _, rec := range []*domain.DownloadRecord{backupRecord("1", 0), backupRecord("2", 0), backupRecord("2", 1)} {
		if _, err := repo.Upsert(ctx, rec); err != nil {
			t.Fatal(err)
		}
	}

	data, err := svc.Export(ctx, "")
	if err != nil {
		t.Fatalf("Export() error = %v", err)
	}
	if !strings.Contains(string(data), `"post_id"`) {
		t.Error("export is not plain JSON")
	}

	// import into a fresh database
	fresh, repo2 := setupBackup(t)
	result, err := fresh.Import(ctx, data, "")
	if err != nil {
		t.Fatalf("Import() error = %v", err)
	}
	if result.Imported != 3 || result.Skipped != 0 || result.Malformed != 0 {
		t.Errorf("result = %+v, want 3 imported", result)
	}

	count, err := repo2.Count(ctx)
	if err != nil {
		t.Fatal(err)
	}
	if count != 3 {
		t.Errorf("records after import = %d, want 3", count)
	}
}

func TestBackupEncrypted(t *testing.T) {
	svc, repo := setupBackup(t)
	ctx := context.Background()
	if _, err := repo.Upsert(ctx, backupRecord("1", 0)); err != nil {
		t.Fatal(err)
	}

	data, err := svc.Export(ctx, "hunter2")
	if err != nil {
		t.Fatalf("Export() error = %v", err)
	}
	if !crypto.IsEncrypted(data) {
		t.Fatal("export with password is not encrypted")
	}
	if strings.Contains(string(data), "post_id") {
		t.Error("encrypted export leaks plaintext")
	}

	fresh, _ := setupBackup(t)
	if _, err := fresh.Import(ctx, data, "wrong"); err == nil {
		t.Error("import with wrong password should fail")
	}

	result, err := fresh.Import(ctx, data, "hunter2")
	if err != nil {
		t.Fatalf("Import() error = %v", err)
	}
	if result.Imported != 1 {
		t.Errorf("imported = %d, want 1", result.Imported)
	}
}

func TestBackupImportSkipsExisting(t *testing.T) {
	svc, repo := setupBackup(t)
	ctx := context.Background()
	if _, err := repo.Upsert(ctx, backupRecord("1", 0)); err != nil {
		t.Fatal(err)
	}

	data, err := svc.Export(ctx, "")
	if err != nil {
		t.Fatal(err)
	}

	// importing into the same database skips everything
	result, err := svc.Import(ctx, data, "")
	if err != nil {
		t.Fatalf("Import() error = %v", err)
	}
	if result.Imported != 0 || result.Skipped != 1 {
		t.Errorf("result = %+v, want everything skipped", result)
	}
}

func TestBackupImportLegacyArchive(t *testing.T) {
	svc, repo := setupBackup(t)
	ctx := context.Background()

	legacy := `[{
		"id": "old-1",
		"post_id": "777",
		"post_url": "https://x.com/u/status/777",
		"downloaded_at": "2024-05-06T07:08:09Z",
		"thumbnail_path": "/thumbs/old.jpg",
		"media_urls": ["https://a/1.jpg", "https://a/2.mp4"],
		"media_kinds": ["image", "video"],
		"storage_pointers": ["/m/1.jpg", "/m/2.mp4"]
	}]`

	result, err := svc.Import(ctx, []byte(legacy), "")
	if err != nil {
		t.Fatalf("Import() error = %v", err)
	}
	if result.Imported != 2 {
		t.Fatalf("imported = %d, want 2 (legacy fan-out)", result.Imported)
	}

	records, err := repo.List(ctx, 0, 0)
	if err != nil {
		t.Fatal(err)
	}
	if len(records) != 2 {
		t.Fatalf("records = %d, want 2", len(records))
	}
}

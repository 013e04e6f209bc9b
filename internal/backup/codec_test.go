package backup

import (
	"encoding/json"
	"errors"
	"testing"
	"time"

	"github.com/iconidentify/xfetch/internal/domain"
)

func sampleRecord(index, count int) domain.DownloadRecord {
	return domain.DownloadRecord{
		ID:             domain.RecordID("rec-1"),
		PostID:         domain.PostID("1234567890"),
		PostURL:        "https://x.com/someone/status/1234567890",
		AuthorName:     "Some One",
		AuthorHandle:   "someone",
		Text:           "hello",
		DownloadedAt:   time.Date(2025, 6, 1, 12, 0, 0, 0, time.UTC),
		ThumbnailPath:  "/thumbs/rec-1.jpg",
		MediaURL:       "https://video.example/1.mp4",
		MediaKind:      domain.MediaKindVideo,
		StoragePointer: domain.StoragePointer("library://movies/xfetch/1234567890_00_1.mp4"),
		MediaIndex:     index,
		MediaCount:     count,
	}
}

func TestEncodeDecodeRoundTrip(t *testing.T) {
	original := []domain.DownloadRecord{sampleRecord(0, 2), sampleRecord(1, 2)}
	original[1].ID = "rec-2"
	original[1].ThumbnailPath = ""

	data, err := Encode(original)
	if err != nil {
		t.Fatalf("Encode() error = %v", err)
	}

	records, stats, err := Decode(data)
	if err != nil {
		t.Fatalf("Decode() error = %v", err)
	}
	if stats.Entries != 2 || stats.Records != 2 || stats.Malformed != 0 {
		t.Errorf("stats = %+v, want 2 entries, 2 records, 0 malformed", stats)
	}
	for i, rec := range records {
		if rec != original[i] {
			t.Errorf("record %d = %+v, want %+v", i, rec, original[i])
		}
	}
}

func TestDecodeLegacyFanOut(t *testing.T) {
	archive := `[{
		"id": "old-1",
		"post_id": "999",
		"post_url": "https://x.com/u/status/999",
		"author_name": "U",
		"author_handle": "u",
		"text": "legacy post",
		"downloaded_at": "2024-01-02T03:04:05Z",
		"thumbnail_path": "/thumbs/old-1.jpg",
		"media_urls": ["https://a/1.jpg", "https://a/2.mp4"],
		"media_kinds": ["image", "video"],
		"storage_pointers": ["library://pictures/xfetch/a.jpg", "library://movies/xfetch/b.mp4"]
	}]`

	records, stats, err := Decode([]byte(archive))
	if err != nil {
		t.Fatalf("Decode() error = %v", err)
	}
	if stats.Entries != 1 || stats.Records != 2 {
		t.Fatalf("stats = %+v, want 1 entry fanning out to 2 records", stats)
	}

	for i, rec := range records {
		if rec.PostID != "999" {
			t.Errorf("record %d post ID = %q, want 999", i, rec.PostID)
		}
		if rec.MediaIndex != i {
			t.Errorf("record %d media index = %d, want %d", i, rec.MediaIndex, i)
		}
		if rec.MediaCount != 2 {
			t.Errorf("record %d media count = %d, want 2", i, rec.MediaCount)
		}
		if rec.ID == "" || rec.ID == "old-1" {
			t.Errorf("record %d kept or lost legacy ID: %q", i, rec.ID)
		}
	}
	if records[0].ThumbnailPath != "/thumbs/old-1.jpg" {
		t.Errorf("first record thumbnail = %q, want legacy thumbnail", records[0].ThumbnailPath)
	}
	if records[1].ThumbnailPath != "" {
		t.Errorf("second record thumbnail = %q, want empty", records[1].ThumbnailPath)
	}
	if records[0].MediaKind != domain.MediaKindImage || records[1].MediaKind != domain.MediaKindVideo {
		t.Errorf("media kinds = %q, %q", records[0].MediaKind, records[1].MediaKind)
	}
	if records[1].StoragePointer != "library://movies/xfetch/b.mp4" {
		t.Errorf("second pointer = %q", records[1].StoragePointer)
	}
}

func TestDecodeMixedShapes(t *testing.T) {
	current, err := json.Marshal(FromRecord(sampleRecord(0, 1)))
	if err != nil {
		t.Fatal(err)
	}
	archive := `[` + string(current) + `,
		{"post_id": "777", "media_urls": ["https://a/x.mp4"], "media_kinds": ["video"], "storage_pointers": ["/tmp/x.mp4"]},
		{"garbage": true},
		"not an object"]`

	records, stats, err := Decode([]byte(archive))
	if err != nil {
		t.Fatalf("Decode() error = %v", err)
	}
	if stats.Entries != 4 {
		t.Errorf("entries = %d, want 4", stats.Entries)
	}
	if stats.Malformed != 2 {
		t.Errorf("malformed = %d, want 2", stats.Malformed)
	}
	if stats.Records != 2 || len(records) != 2 {
		t.Fatalf("records = %d, want 2", len(records))
	}
	if records[0].PostID != "1234567890" || records[1].PostID != "777" {
		t.Errorf("post IDs = %q, %q", records[0].PostID, records[1].PostID)
	}
}

func TestDecodeNotAnArchive(t *testing.T) {
	_, _, err := Decode([]byte(`{"not": "an array"}`))
	if !errors.Is(err, domain.ErrBackupInvalid) {
		t.Errorf("Decode() error = %v, want ErrBackupInvalid", err)
	}
}

func TestDecodeMintsMissingIDs(t *testing.T) {
	archive := `[{"post_id": "55", "media_url": "https://a/1.jpg", "media_kind": "image",
		"storage_pointer": "/tmp/1.jpg", "media_index": 0, "media_count": 1}]`

	records, _, err := Decode([]byte(archive))
	if err != nil {
		t.Fatalf("Decode() error = %v", err)
	}
	if len(records) != 1 || records[0].ID == "" {
		t.Fatalf("expected one record with a minted ID, got %+v", records)
	}
}

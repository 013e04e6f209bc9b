// Package backup encodes download history as a portable JSON archive and
// decodes archives back into records, including archives written by older
// releases that stored one entry per post.
package backup

import (
	"encoding/json"
	"fmt"
	"time"

	"github.com/google/uuid"

	"github.com/iconidentify/xfetch/internal/domain"
)

// Entry is the archive representation of a single download record.
type Entry struct {
	ID             string    `json:"id,omitempty"`
	PostID         string    `json:"post_id"`
	PostURL        string    `json:"post_url"`
	AuthorName     string    `json:"author_name"`
	AuthorHandle   string    `json:"author_handle"`
	Text           string    `json:"text"`
	DownloadedAt   time.Time `json:"downloaded_at"`
	ThumbnailPath  string    `json:"thumbnail_path,omitempty"`
	MediaURL       string    `json:"media_url"`
	MediaKind      string    `json:"media_kind"`
	StoragePointer string    `json:"storage_pointer"`
	MediaIndex     int       `json:"media_index"`
	MediaCount     int       `json:"media_count"`
}

// legacyEntry is the pre-multi-media archive shape: one entry per post with
// parallel arrays for its media assets.
type legacyEntry struct {
	ID              string    `json:"id"`
	PostID          string    `json:"post_id"`
	PostURL         string    `json:"post_url"`
	AuthorName      string    `json:"author_name"`
	AuthorHandle    string    `json:"author_handle"`
	Text            string    `json:"text"`
	DownloadedAt    time.Time `json:"downloaded_at"`
	ThumbnailPath   string    `json:"thumbnail_path"`
	MediaURLs       []string  `json:"media_urls"`
	MediaKinds      []string  `json:"media_kinds"`
	StoragePointers []string  `json:"storage_pointers"`
}

// entryProbe distinguishes the two shapes. media_index is only written by
// the current format; media_urls only by the legacy one.
type entryProbe struct {
	MediaIndex *int     `json:"media_index"`
	MediaURLs  []string `json:"media_urls"`
}

// DecodeStats reports what happened to each archive entry during decoding.
type DecodeStats struct {
	Entries   int // archive entries seen
	Records   int // records produced (legacy entries fan out)
	Malformed int // entries that could not be decoded
}

// FromRecord converts a history record into its archive form.
func FromRecord(rec domain.DownloadRecord) Entry {
	return Entry{
		ID:             string(rec.ID),
		PostID:         string(rec.PostID),
		PostURL:        rec.PostURL,
		AuthorName:     rec.AuthorName,
		AuthorHandle:   rec.AuthorHandle,
		Text:           rec.Text,
		DownloadedAt:   rec.DownloadedAt,
		ThumbnailPath:  rec.ThumbnailPath,
		MediaURL:       rec.MediaURL,
		MediaKind:      string(rec.MediaKind),
		StoragePointer: rec.StoragePointer.String(),
		MediaIndex:     rec.MediaIndex,
		MediaCount:     rec.MediaCount,
	}
}

// ToRecord converts an archive entry back into a history record, minting an
// ID when the entry carries none.
func (e Entry) ToRecord() domain.DownloadRecord {
	id := e.ID
	if id == "" {
		id = uuid.NewString()
	}
	return domain.DownloadRecord{
		ID:             domain.RecordID(id),
		PostID:         domain.PostID(e.PostID),
		PostURL:        e.PostURL,
		AuthorName:     e.AuthorName,
		AuthorHandle:   e.AuthorHandle,
		Text:           e.Text,
		DownloadedAt:   e.DownloadedAt,
		ThumbnailPath:  e.ThumbnailPath,
		MediaURL:       e.MediaURL,
		MediaKind:      domain.MediaKind(e.MediaKind),
		StoragePointer: domain.StoragePointer(e.StoragePointer),
		MediaIndex:     e.MediaIndex,
		MediaCount:     e.MediaCount,
	}
}

// Encode serializes records into the current archive format.
func Encode(records []domain.DownloadRecord) ([]byte, error) {
	entries := make([]Entry, 0, len(records))
	for _, rec := range records {
		entries = append(entries, FromRecord(rec))
	}
	data, err := json.MarshalIndent(entries, "", "  ")
	if err != nil {
		return nil, fmt.Errorf("encode archive: %w", err)
	}
	return data, nil
}

// Decode parses an archive in either format. Entries that fail to decode are
// counted in the stats and skipped rather than failing the whole import.
func Decode(data []byte) ([]domain.DownloadRecord, DecodeStats, error) {
	var raw []json.RawMessage
	if err := json.Unmarshal(data, &raw); err != nil {
		return nil, DecodeStats{}, fmt.Errorf("%w: not a JSON archive: %v", domain.ErrBackupInvalid, err)
	}

	stats := DecodeStats{Entries: len(raw)}
	var records []domain.DownloadRecord
	for _, msg := range raw {
		var probe entryProbe
		if err := json.Unmarshal(msg, &probe); err != nil {
			stats.Malformed++
			continue
		}
		switch {
		case probe.MediaIndex != nil:
			var e Entry
			if err := json.Unmarshal(msg, &e); err != nil || e.PostID == "" {
				stats.Malformed++
				continue
			}
			records = append(records, e.ToRecord())
		case len(probe.MediaURLs) > 0:
			var e legacyEntry
			if err := json.Unmarshal(msg, &e); err != nil || e.PostID == "" {
				stats.Malformed++
				continue
			}
			records = append(records, fanOut(e)...)
		default:
			stats.Malformed++
		}
	}
	stats.Records = len(records)
	return records, stats, nil
}

// fanOut expands a legacy per-post entry into one record per media asset.
// The legacy thumbnail belonged to the post, so it stays on index 0.
func fanOut(e legacyEntry) []domain.DownloadRecord {
	count := len(e.MediaURLs)
	records := make([]domain.DownloadRecord, 0, count)
	for i := 0; i < count; i++ {
		rec := domain.DownloadRecord{
			ID:           domain.RecordID(uuid.NewString()),
			PostID:       domain.PostID(e.PostID),
			PostURL:      e.PostURL,
			AuthorName:   e.AuthorName,
			AuthorHandle: e.AuthorHandle,
			Text:         e.Text,
			DownloadedAt: e.DownloadedAt,
			MediaURL:     e.MediaURLs[i],
			MediaIndex:   i,
			MediaCount:   count,
		}
		if i == 0 {
			rec.ThumbnailPath = e.ThumbnailPath
		}
		if i < len(e.MediaKinds) {
			rec.MediaKind = domain.MediaKind(e.MediaKinds[i])
		}
		if i < len(e.StoragePointers) {
			rec.StoragePointer = domain.StoragePointer(e.StoragePointers[i])
		}
		records = append(records, rec)
	}
	return records
}

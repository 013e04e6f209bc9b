package history

import (
	"context"
	"database/sql"
	"fmt"
	"log/slog"
	"sync"
	"time"

	"github.com/iconidentify/xfetch/internal/domain"
)

// Repository persists download records and notifies subscribers of every
// successful mutation.
type Repository struct {
	db     *sql.DB
	logger *slog.Logger

	mu          sync.RWMutex
	subscribers map[uint64]chan domain.HistoryChange
	nextSubID   uint64
}

// NewRepository creates a history repository over an open database.
func NewRepository(db *sql.DB, logger *slog.Logger) *Repository {
	return &Repository{
		db:          db,
		logger:      logger.With("component", "history"),
		subscribers: make(map[uint64]chan domain.HistoryChange),
	}
}

// Upsert inserts a record or, when a row with the same (post_id,
// media_index) identity already exists, updates it in place keeping the
// existing row ID. Returns the change op that was applied.
func (r *Repository) Upsert(ctx context.Context, rec *domain.DownloadRecord) (domain.ChangeOp, error) {
	var existingID string
	err := r.db.QueryRowContext(ctx,
		`SELECT id FROM records WHERE post_id = ? AND media_index = ?`,
		string(rec.PostID), rec.MediaIndex,
	).Scan(&existingID)

	switch {
	case err == sql.ErrNoRows:
		if _, err := r.db.ExecContext(ctx, `
			INSERT INTO records (id, post_id, post_url, author_name, author_handle, text,
				downloaded_at, thumbnail_path, media_url, media_kind, storage_pointer,
				media_index, media_count)
			VALUES (?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?)`,
			string(rec.ID), string(rec.PostID), rec.PostURL, rec.AuthorName, rec.AuthorHandle,
			rec.Text, rec.DownloadedAt, rec.ThumbnailPath, rec.MediaURL, string(rec.MediaKind),
			string(rec.StoragePointer), rec.MediaIndex, rec.MediaCount,
		); err != nil {
			return "", fmt.Errorf("insert record: %w", err)
		}
		r.publish(domain.HistoryChange{Op: domain.ChangeInserted, Record: rec, At: time.Now()})
		return domain.ChangeInserted, nil

	case err != nil:
		return "", fmt.Errorf("lookup identity: %w", err)

	default:
		rec.ID = domain.RecordID(existingID)
		if _, err := r.db.ExecContext(ctx, `
			UPDATE records SET post_url = ?, author_name = ?, author_handle = ?, text = ?,
				downloaded_at = ?, thumbnail_path = ?, media_url = ?, media_kind = ?,
				storage_pointer = ?, media_count = ?
			WHERE id = ?`,
			rec.PostURL, rec.AuthorName, rec.AuthorHandle, rec.Text,
			rec.DownloadedAt, rec.ThumbnailPath, rec.MediaURL, string(rec.MediaKind),
			string(rec.StoragePointer), rec.MediaCount, existingID,
		); err != nil {
			return "", fmt.Errorf("update record: %w", err)
		}
		r.publish(domain.HistoryChange{Op: domain.ChangeUpdated, Record: rec, At: time.Now()})
		return domain.ChangeUpdated, nil
	}
}

const recordColumns = `id, post_id, post_url, author_name, author_handle, text,
	downloaded_at, thumbnail_path, media_url, media_kind, storage_pointer,
	media_index, media_count`

func scanRecord(row interface{ Scan(...any) error }) (domain.DownloadRecord, error) {
	var rec domain.DownloadRecord
	var id, postID, kind, pointer string
	var thumbnail sql.NullString

	err := row.Scan(&id, &postID, &rec.PostURL, &rec.AuthorName, &rec.AuthorHandle,
		&rec.Text, &rec.DownloadedAt, &thumbnail, &rec.MediaURL, &kind, &pointer,
		&rec.MediaIndex, &rec.MediaCount)
	if err != nil {
		return rec, err
	}

	rec.ID = domain.RecordID(id)
	rec.PostID = domain.PostID(postID)
	rec.MediaKind = domain.MediaKind(kind)
	rec.StoragePointer = domain.StoragePointer(pointer)
	rec.ThumbnailPath = thumbnail.String
	return rec, nil
}

// Get retrieves a record by ID.
func (r *Repository) Get(ctx context.Context, id domain.RecordID) (*domain.DownloadRecord, error) {
	row := r.db.QueryRowContext(ctx,
		`SELECT `+recordColumns+` FROM records WHERE id = ?`, string(id))

	rec, err := scanRecord(row)
	if err == sql.ErrNoRows {
		return nil, domain.ErrRecordNotFound
	}
	if err != nil {
		return nil, fmt.Errorf("get record: %w", err)
	}
	return &rec, nil
}

// List returns records newest-first with pagination. A limit <= 0 means no
// limit.
func (r *Repository) List(ctx context.Context, limit, offset int) ([]domain.DownloadRecord, error) {
	if limit <= 0 {
		limit = -1 // sqlite: no limit
	}
	rows, err := r.db.QueryContext(ctx,
		`SELECT `+recordColumns+` FROM records
		 ORDER BY downloaded_at DESC, media_index ASC
		 LIMIT ? OFFSET ?`, limit, offset)
	if err != nil {
		return nil, fmt.Errorf("list records: %w", err)
	}
	defer rows.Close()

	var records []domain.DownloadRecord
	for rows.Next() {
		rec, err := scanRecord(rows)
		if err != nil {
			return nil, fmt.Errorf("scan record: %w", err)
		}
		records = append(records, rec)
	}
	return records, rows.Err()
}

// Count returns the total number of records.
func (r *Repository) Count(ctx context.Context) (int, error) {
	var n int
	if err := r.db.QueryRowContext(ctx, `SELECT COUNT(*) FROM records`).Scan(&n); err != nil {
		return 0, fmt.Errorf("count records: %w", err)
	}
	return n, nil
}

// ExistsByIdentity reports whether a record with the given post and media
// index already exists.
func (r *Repository) ExistsByIdentity(ctx context.Context, postID domain.PostID, mediaIndex int) (bool, error) {
	var one int
	err := r.db.QueryRowContext(ctx,
		`SELECT 1 FROM records WHERE post_id = ? AND media_index = ?`,
		string(postID), mediaIndex,
	).Scan(&one)
	if err == sql.ErrNoRows {
		return false, nil
	}
	if err != nil {
		return false, fmt.Errorf("check identity: %w", err)
	}
	return true, nil
}

// SetThumbnail updates a record's thumbnail path.
func (r *Repository) SetThumbnail(ctx context.Context, id domain.RecordID, path string) error {
	res, err := r.db.ExecContext(ctx,
		`UPDATE records SET thumbnail_path = ? WHERE id = ?`, path, string(id))
	if err != nil {
		return fmt.Errorf("set thumbnail: %w", err)
	}
	if n, _ := res.RowsAffected(); n == 0 {
		return domain.ErrRecordNotFound
	}

	rec, err := r.Get(ctx, id)
	if err == nil {
		r.publish(domain.HistoryChange{Op: domain.ChangeUpdated, Record: rec, At: time.Now()})
	}
	return nil
}

// Delete removes a record by ID and returns the removed record.
func (r *Repository) Delete(ctx context.Context, id domain.RecordID) (*domain.DownloadRecord, error) {
	rec, err := r.Get(ctx, id)
	if err != nil {
		return nil, err
	}

	if _, err := r.db.ExecContext(ctx, `DELETE FROM records WHERE id = ?`, string(id)); err != nil {
		return nil, fmt.Errorf("delete record: %w", err)
	}

	r.publish(domain.HistoryChange{Op: domain.ChangeDeleted, Record: rec, At: time.Now()})
	return rec, nil
}

// DeleteByPost removes every record of a post and returns the removed
// records.
func (r *Repository) DeleteByPost(ctx context.Context, postID domain.PostID) ([]domain.DownloadRecord, error) {
	rows, err := r.db.QueryContext(ctx,
		`SELECT `+recordColumns+` FROM records WHERE post_id = ? ORDER BY media_index ASC`,
		string(postID))
	if err != nil {
		return nil, fmt.Errorf("list post records: %w", err)
	}
	defer rows.Close()

	var records []domain.DownloadRecord
	for rows.Next() {
		rec, err := scanRecord(rows)
		if err != nil {
			return nil, fmt.Errorf("scan record: %w", err)
		}
		records = append(records, rec)
	}
	if err := rows.Err(); err != nil {
		return nil, err
	}
	if len(records) == 0 {
		return nil, domain.ErrRecordNotFound
	}

	if _, err := r.db.ExecContext(ctx, `DELETE FROM records WHERE post_id = ?`, string(postID)); err != nil {
		return nil, fmt.Errorf("delete post records: %w", err)
	}

	now := time.Now()
	for _, rec := range records {
		r.publish(domain.HistoryChange{Op: domain.ChangeDeleted, Record: &rec, At: now})
	}
	return records, nil
}

// Subscribe registers a change feed subscriber. The returned channel is
// buffered; events are dropped for slow subscribers rather than blocking
// mutations.
func (r *Repository) Subscribe() (uint64, <-chan domain.HistoryChange) {
	r.mu.Lock()
	defer r.mu.Unlock()

	id := r.nextSubID
	r.nextSubID++

	ch := make(chan domain.HistoryChange, 100)
	r.subscribers[id] = ch
	return id, ch
}

// Unsubscribe removes a subscriber and closes its channel.
func (r *Repository) Unsubscribe(id uint64) {
	r.mu.Lock()
	defer r.mu.Unlock()

	if ch, ok := r.subscribers[id]; ok {
		close(ch)
		delete(r.subscribers, id)
	}
}

func (r *Repository) publish(change domain.HistoryChange) {
	r.mu.RLock()
	defer r.mu.RUnlock()

	for id, ch := range r.subscribers {
		select {
		case ch <- change:
		default:
			r.logger.Warn("subscriber buffer full, dropping change event", "subscriber", id)
		}
	}
}

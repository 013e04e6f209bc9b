package service

import (
	"context"
	"fmt"
	"log/slog"

	"github.com/iconidentify/xfetch/internal/backup"
	"github.com/iconidentify/xfetch/internal/history"
	"github.com/iconidentify/xfetch/pkg/crypto"
)

// ImportResult summarizes a backup import.
type ImportResult struct {
	Entries   int `json:"entries"`
	Imported  int `json:"imported"`
	Skipped   int `json:"skipped"`
	Malformed int `json:"malformed"`
}

// BackupService exports history as a portable archive and imports archives,
// optionally password-protected.
type BackupService struct {
	repo   *history.Repository
	logger *slog.Logger
}

// NewBackupService creates a backup service.
func NewBackupService(repo *history.Repository, logger *slog.Logger) *BackupService {
	return &BackupService{repo: repo, logger: logger}
}

// Export serializes the full history. A non-empty password wraps the
// archive in an encrypted container.
func (s *BackupService) Export(ctx context.Context, password string) ([]byte, error) {
	records, err := s.repo.List(ctx, 0, 0)
	if err != nil {
		return nil, fmt.Errorf("list history: %w", err)
	}
	data, err := backup.Encode(records)
	if err != nil {
		return nil, err
	}
	if password != "" {
		data, err = crypto.Encrypt(data, password)
		if err != nil {
			return nil, fmt.Errorf("encrypt archive: %w", err)
		}
	}
	s.logger.Info("history exported", "records", len(records), "encrypted", password != "")
	return data, nil
}

// Import merges an archive into history. Encrypted archives are detected by
// their magic header. Records whose identity already exists are skipped.
func (s *BackupService) Import(ctx context.Context, data []byte, password string) (*ImportResult, error) {
	if crypto.IsEncrypted(data) {
		plain, err := crypto.Decrypt(data, password)
		if err != nil {
			return nil, fmt.Errorf("decrypt archive: %w", err)
		}
		data = plain
	}

	records, stats, err := backup.Decode(data)
	if err != nil {
		return nil, err
	}

	result := &ImportResult{Entries: stats.Entries, Malformed: stats.Malformed}
	for i := range records {
		rec := &records[i]
		exists, err := s.repo.ExistsByIdentity(ctx, rec.PostID, rec.MediaIndex)
		if err != nil {
			return result, fmt.Errorf("check identity: %w", err)
		}
		if exists {
			result.Skipped++
			continue
		}
		if _, err := s.repo.Upsert(ctx, rec); err != nil {
			return result, fmt.Errorf("import record: %w", err)
		}
		result.Imported++
	}

	s.logger.Info("history imported",
		"entries", result.Entries, "imported", result.Imported,
		"skipped", result.Skipped, "malformed", result.Malformed)
	return result, nil
}

// Package storage persists downloaded media files and resolves the opaque
// pointers recorded in history.
package storage

import (
	"context"
	"fmt"
	"io"
	"log/slog"
	"os"
	"path/filepath"
	"time"

	"github.com/iconidentify/xfetch/internal/config"
	"github.com/iconidentify/xfetch/internal/domain"
)

// Store writes media objects and resolves storage pointers.
type Store interface {
	// Save streams r into storage under the given name for the media kind
	// and returns the pointer to record in history.
	Save(ctx context.Context, kind domain.MediaKind, name string, r io.Reader) (domain.StoragePointer, error)

	// Exists reports whether the pointer still resolves to a file.
	Exists(ptr domain.StoragePointer) bool

	// Open opens the pointed-to file for reading.
	Open(ptr domain.StoragePointer) (io.ReadCloser, error)

	// Path resolves the pointer to a filesystem path.
	Path(ptr domain.StoragePointer) (string, error)

	// Remove deletes the pointed-to file.
	Remove(ptr domain.StoragePointer) error
}

// Detect chooses the store for this deployment: the library store when a
// library root is configured and writable, the flat store otherwise. The
// choice is made once at startup.
func Detect(cfg config.StorageConfig, logger *slog.Logger) Store {
	if cfg.LibraryPath != "" {
		if err := probeWritable(cfg.LibraryPath); err == nil {
			logger.Info("using library storage", "root", cfg.LibraryPath)
			return NewLibraryStore(cfg)
		} else {
			logger.Warn("library root not writable, falling back to flat storage",
				"root", cfg.LibraryPath, "error", err)
		}
	}
	logger.Info("using flat storage", "dir", cfg.FlatPath)
	return NewFlatStore(cfg)
}

func probeWritable(dir string) error {
	if err := os.MkdirAll(dir, 0755); err != nil {
		return err
	}
	probe := filepath.Join(dir, ".xfetch-probe")
	f, err := os.Create(probe)
	if err != nil {
		return err
	}
	f.Close()
	return os.Remove(probe)
}

// Filename builds a storage object name embedding the post ID, media index
// and a unix timestamp, so repeated downloads never collide.
func Filename(postID domain.PostID, mediaIndex int, ext string) string {
	return fmt.Sprintf("%s_%02d_%d%s", postID, mediaIndex, time.Now().Unix(), ext)
}

// writeAtomic streams r into path via a temp file in the same directory,
// renamed into place on success.
func writeAtomic(path string, r io.Reader) error {
	dir := filepath.Dir(path)
	if err := os.MkdirAll(dir, 0755); err != nil {
		return fmt.Errorf("create dir: %w", err)
	}

	tmp, err := os.CreateTemp(dir, ".download-*")
	if err != nil {
		return fmt.Errorf("create temp file: %w", err)
	}
	tmpName := tmp.Name()

	if _, err := io.Copy(tmp, r); err != nil {
		tmp.Close()
		os.Remove(tmpName)
		return fmt.Errorf("write: %w", err)
	}
	if err := tmp.Close(); err != nil {
		os.Remove(tmpName)
		return fmt.Errorf("close temp file: %w", err)
	}

	if err := os.Rename(tmpName, path); err != nil {
		os.Remove(tmpName)
		return fmt.Errorf("rename into place: %w", err)
	}
	return nil
}

// resolvePath maps a pointer of either scheme to a filesystem path. Both
// stores use it so history rows written under one scheme keep resolving
// after a storage switch.
func resolvePath(cfg config.StorageConfig, ptr domain.StoragePointer) (string, error) {
	if ptr.IsLibrary() {
		collection, name, ok := ptr.LibraryParts()
		if !ok {
			return "", fmt.Errorf("%w: %s", domain.ErrInvalidPointer, ptr)
		}
		if cfg.LibraryPath == "" {
			return "", fmt.Errorf("%w: no library root configured for %s", domain.ErrInvalidPointer, ptr)
		}
		return filepath.Join(cfg.LibraryPath, collection, cfg.AppDirName, name), nil
	}

	if ptr == "" {
		return "", domain.ErrInvalidPointer
	}
	return string(ptr), nil
}

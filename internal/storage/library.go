package storage

import (
	"context"
	"fmt"
	"io"
	"os"
	"path/filepath"

	"github.com/iconidentify/xfetch/internal/config"
	"github.com/iconidentify/xfetch/internal/domain"
)

// LibraryStore writes media into per-kind collections beneath a shared
// library root and records opaque library:// pointers.
type LibraryStore struct {
	cfg config.StorageConfig
}

// NewLibraryStore creates a library-backed store.
func NewLibraryStore(cfg config.StorageConfig) *LibraryStore {
	return &LibraryStore{cfg: cfg}
}

// collectionFor maps a media kind to its library collection.
func collectionFor(kind domain.MediaKind) string {
	switch kind {
	case domain.MediaKindImage, domain.MediaKindGIF:
		return "pictures"
	case domain.MediaKindAudio:
		return "music"
	default:
		return "movies"
	}
}

func (s *LibraryStore) Save(ctx context.Context, kind domain.MediaKind, name string, r io.Reader) (domain.StoragePointer, error) {
	collection := collectionFor(kind)
	path := filepath.Join(s.cfg.LibraryPath, collection, s.cfg.AppDirName, name)

	if err := ctx.Err(); err != nil {
		return "", err
	}
	if err := writeAtomic(path, r); err != nil {
		return "", fmt.Errorf("save to library: %w", err)
	}

	return domain.StoragePointer(fmt.Sprintf("%s%s/%s", domain.LibraryScheme, collection, name)), nil
}

func (s *LibraryStore) Path(ptr domain.StoragePointer) (string, error) {
	return resolvePath(s.cfg, ptr)
}

func (s *LibraryStore) Exists(ptr domain.StoragePointer) bool {
	path, err := s.Path(ptr)
	if err != nil {
		return false
	}
	_, err = os.Stat(path)
	return err == nil
}

func (s *LibraryStore) Open(ptr domain.StoragePointer) (io.ReadCloser, error) {
	path, err := s.Path(ptr)
	if err != nil {
		return nil, err
	}
	f, err := os.Open(path)
	if err != nil {
		if os.IsNotExist(err) {
			return nil, fmt.Errorf("%w: %s", domain.ErrMediaNotFound, ptr)
		}
		return nil, err
	}
	return f, nil
}

func (s *LibraryStore) Remove(ptr domain.StoragePointer) error {
	path, err := s.Path(ptr)
	if err != nil {
		return err
	}
	if err := os.Remove(path); err != nil && !os.IsNotExist(err) {
		return fmt.Errorf("remove from library: %w", err)
	}
	return nil
}

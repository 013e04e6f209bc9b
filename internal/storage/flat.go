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

// FlatStore writes all media into one app-managed directory and records
// absolute-path pointers.
type FlatStore struct {
	cfg config.StorageConfig
}

// NewFlatStore creates a flat-directory store.
func NewFlatStore(cfg config.StorageConfig) *FlatStore {
	return &FlatStore{cfg: cfg}
}

func (s *FlatStore) Save(ctx context.Context, kind domain.MediaKind, name string, r io.Reader) (domain.StoragePointer, error) {
	path := filepath.Join(s.cfg.FlatPath, name)

	if err := ctx.Err(); err != nil {
		return "", err
	}
	if err := writeAtomic(path, r); err != nil {
		return "", fmt.Errorf("save to flat storage: %w", err)
	}

	abs, err := filepath.Abs(path)
	if err != nil {
		abs = path
	}
	return domain.StoragePointer(abs), nil
}

func (s *FlatStore) Path(ptr domain.StoragePointer) (string, error) {
	return resolvePath(s.cfg, ptr)
}

func (s *FlatStore) Exists(ptr domain.StoragePointer) bool {
	path, err := s.Path(ptr)
	if err != nil {
		return false
	}
	_, err = os.Stat(path)
	return err == nil
}

func (s *FlatStore) Open(ptr domain.StoragePointer) (io.ReadCloser, error) {
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

func (s *FlatStore) Remove(ptr domain.StoragePointer) error {
	path, err := s.Path(ptr)
	if err != nil {
		return err
	}
	if err := os.Remove(path); err != nil && !os.IsNotExist(err) {
		return fmt.Errorf("remove from flat storage: %w", err)
	}
	return nil
}

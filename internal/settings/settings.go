// Package settings stores user preferences and credentials in a sqlite
// key/value table.
package settings

import (
	"context"
	"database/sql"
	"fmt"
)

// Known setting keys.
const (
	KeyAnimatedThumbnails     = "animated_thumbnails"
	KeyDeleteFilesWithHistory = "delete_files_with_history"
	KeyUsername               = "username"
	KeyPassword               = "password"
	KeyAuthToken              = "auth_token"
	KeySessionCookie          = "session_cookie"
)

// defaults for keys that have one; absent keys without a default read as "".
var defaults = map[string]string{
	KeyAnimatedThumbnails:     "true",
	KeyDeleteFilesWithHistory: "false",
}

// Store reads and writes settings.
type Store struct {
	db *sql.DB
}

// NewStore creates a settings store over an open database. The settings
// table is part of the history schema.
func NewStore(db *sql.DB) *Store {
	return &Store{db: db}
}

// Get returns a setting value, falling back to its default when unset.
func (s *Store) Get(ctx context.Context, key string) (string, error) {
	var value string
	err := s.db.QueryRowContext(ctx,
		`SELECT value FROM settings WHERE key = ?`, key).Scan(&value)
	if err == sql.ErrNoRows {
		return defaults[key], nil
	}
	if err != nil {
		return "", fmt.Errorf("get setting %s: %w", key, err)
	}
	return value, nil
}

// GetBool returns a boolean setting.
func (s *Store) GetBool(ctx context.Context, key string) (bool, error) {
	value, err := s.Get(ctx, key)
	if err != nil {
		return false, err
	}
	return value == "true", nil
}

// Set writes a setting value.
func (s *Store) Set(ctx context.Context, key, value string) error {
	_, err := s.db.ExecContext(ctx, `
		INSERT INTO settings (key, value, updated_at) VALUES (?, ?, CURRENT_TIMESTAMP)
		ON CONFLICT(key) DO UPDATE SET value = excluded.value, updated_at = excluded.updated_at`,
		key, value)
	if err != nil {
		return fmt.Errorf("set setting %s: %w", key, err)
	}
	return nil
}

// Settings is the API-facing view of all settings. Credential values gate
// only the reported login state; they are never attached to upstream
// requests.
type Settings struct {
	AnimatedThumbnails     bool   `json:"animated_thumbnails"`
	DeleteFilesWithHistory bool   `json:"delete_files_with_history"`
	Username               string `json:"username"`
	Password               string `json:"password,omitempty"`
	AuthToken              string `json:"auth_token,omitempty"`
	SessionCookie          string `json:"session_cookie,omitempty"`
	LoggedIn               bool   `json:"logged_in"`
}

// All reads every setting into one view.
func (s *Store) All(ctx context.Context) (*Settings, error) {
	out := &Settings{}

	var err error
	if out.AnimatedThumbnails, err = s.GetBool(ctx, KeyAnimatedThumbnails); err != nil {
		return nil, err
	}
	if out.DeleteFilesWithHistory, err = s.GetBool(ctx, KeyDeleteFilesWithHistory); err != nil {
		return nil, err
	}
	if out.Username, err = s.Get(ctx, KeyUsername); err != nil {
		return nil, err
	}
	if out.Password, err = s.Get(ctx, KeyPassword); err != nil {
		return nil, err
	}
	if out.AuthToken, err = s.Get(ctx, KeyAuthToken); err != nil {
		return nil, err
	}
	if out.SessionCookie, err = s.Get(ctx, KeySessionCookie); err != nil {
		return nil, err
	}

	out.LoggedIn = out.AuthToken != "" || (out.Username != "" && out.Password != "")
	return out, nil
}

// Apply writes the fields of a settings view back to the store.
func (s *Store) Apply(ctx context.Context, in *Settings) error {
	pairs := map[string]string{
		KeyAnimatedThumbnails:     boolString(in.AnimatedThumbnails),
		KeyDeleteFilesWithHistory: boolString(in.DeleteFilesWithHistory),
		KeyUsername:               in.Username,
		KeyPassword:               in.Password,
		KeyAuthToken:              in.AuthToken,
		KeySessionCookie:          in.SessionCookie,
	}
	for key, value := range pairs {
		if err := s.Set(ctx, key, value); err != nil {
			return err
		}
	}
	return nil
}

func boolString(b bool) string {
	if b {
		return "true"
	}
	return "false"
}

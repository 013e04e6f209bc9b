// Package handler implements the HTTP handlers for the xfetch API.
package handler

import (
	"encoding/json"
	"errors"
	"net/http"
	"time"

	"github.com/iconidentify/xfetch/internal/domain"
)

func writeJSON(w http.ResponseWriter, status int, v any) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)
	json.NewEncoder(w).Encode(v)
}

func writeError(w http.ResponseWriter, status int, message string) {
	writeJSON(w, status, map[string]string{"error": message})
}

// writeDomainError maps domain sentinel errors onto HTTP status codes.
func writeDomainError(w http.ResponseWriter, err error) {
	switch {
	case errors.Is(err, domain.ErrInvalidPostURL):
		writeError(w, http.StatusBadRequest, err.Error())
	case errors.Is(err, domain.ErrRecordNotFound), errors.Is(err, domain.ErrMediaNotFound):
		writeError(w, http.StatusNotFound, err.Error())
	case errors.Is(err, domain.ErrRateLimited):
		writeError(w, http.StatusTooManyRequests, err.Error())
	case errors.Is(err, domain.ErrFetchFailed), errors.Is(err, domain.ErrURLExpired):
		writeError(w, http.StatusBadGateway, err.Error())
	case errors.Is(err, domain.ErrNoMediaURLs), errors.Is(err, domain.ErrBackupInvalid):
		writeError(w, http.StatusUnprocessableEntity, err.Error())
	default:
		writeError(w, http.StatusInternalServerError, err.Error())
	}
}

// RecordResponse is the JSON shape of a history record.
type RecordResponse struct {
	ID             string    `json:"id"`
	PostID         string    `json:"post_id"`
	PostURL        string    `json:"post_url"`
	AuthorName     string    `json:"author_name,omitempty"`
	AuthorHandle   string    `json:"author_handle,omitempty"`
	Text           string    `json:"text,omitempty"`
	DownloadedAt   time.Time `json:"downloaded_at"`
	HasThumbnail   bool      `json:"has_thumbnail"`
	MediaURL       string    `json:"media_url"`
	MediaKind      string    `json:"media_kind"`
	StoragePointer string    `json:"storage_pointer"`
	MediaIndex     int       `json:"media_index"`
	MediaCount     int       `json:"media_count"`
}

func newRecordResponse(rec *domain.DownloadRecord) RecordResponse {
	return RecordResponse{
		ID:             string(rec.ID),
		PostID:         string(rec.PostID),
		PostURL:        rec.PostURL,
		AuthorName:     rec.AuthorName,
		AuthorHandle:   rec.AuthorHandle,
		Text:           rec.Text,
		DownloadedAt:   rec.DownloadedAt,
		HasThumbnail:   rec.ThumbnailPath != "",
		MediaURL:       rec.MediaURL,
		MediaKind:      string(rec.MediaKind),
		StoragePointer: rec.StoragePointer.String(),
		MediaIndex:     rec.MediaIndex,
		MediaCount:     rec.MediaCount,
	}
}

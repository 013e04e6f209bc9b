package handler

import (
	"encoding/json"
	"log/slog"
	"net/http"

	"github.com/iconidentify/xfetch/internal/domain"
	"github.com/iconidentify/xfetch/internal/service"
)

// PostHandler handles post resolution and download requests.
type PostHandler struct {
	posts     *service.PostService
	downloads *service.DownloadService
	logger    *slog.Logger
}

// NewPostHandler creates a post handler.
func NewPostHandler(posts *service.PostService, downloads *service.DownloadService, logger *slog.Logger) *PostHandler {
	return &PostHandler{posts: posts, downloads: downloads, logger: logger}
}

// ResolveRequest is the body of POST /api/v1/posts/resolve.
type ResolveRequest struct {
	PostURL string `json:"post_url"`
}

// MediaResponse is one downloadable candidate of a resolved post.
type MediaResponse struct {
	Index        int                       `json:"index"`
	URL          string                    `json:"url"`
	Kind         string                    `json:"kind"`
	ThumbnailURL string                    `json:"thumbnail_url,omitempty"`
	Duration     float64                   `json:"duration,omitempty"`
	Variants     []domain.VariantCandidate `json:"variants,omitempty"`
}

// ResolveResponse is the JSON shape of a resolved post.
type ResolveResponse struct {
	PostID       string          `json:"post_id"`
	URL          string          `json:"url"`
	AuthorName   string          `json:"author_name,omitempty"`
	AuthorHandle string          `json:"author_handle,omitempty"`
	Text         string          `json:"text,omitempty"`
	Media        []MediaResponse `json:"media"`
}

// Resolve handles POST /api/v1/posts/resolve.
func (h *PostHandler) Resolve(w http.ResponseWriter, r *http.Request) {
	var req ResolveRequest
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		writeError(w, http.StatusBadRequest, "invalid request body")
		return
	}
	if req.PostURL == "" {
		writeError(w, http.StatusBadRequest, "post_url is required")
		return
	}

	snapshot, err := h.posts.Resolve(r.Context(), req.PostURL)
	if err != nil {
		writeDomainError(w, err)
		return
	}

	resp := ResolveResponse{
		PostID:       string(snapshot.ID),
		URL:          snapshot.URL,
		AuthorName:   snapshot.AuthorName,
		AuthorHandle: snapshot.AuthorHandle,
		Text:         snapshot.Text,
		Media:        make([]MediaResponse, 0, len(snapshot.Media)),
	}
	for i, m := range snapshot.Media {
		resp.Media = append(resp.Media, MediaResponse{
			Index:        i,
			URL:          m.URL,
			Kind:         string(m.Kind),
			ThumbnailURL: m.ThumbnailURL,
			Duration:     m.Duration,
			Variants:     m.Variants,
		})
	}
	writeJSON(w, http.StatusOK, resp)
}

// Download handles POST /api/v1/downloads.
func (h *PostHandler) Download(w http.ResponseWriter, r *http.Request) {
	var req service.DownloadRequest
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		writeError(w, http.StatusBadRequest, "invalid request body")
		return
	}
	if req.PostURL == "" {
		writeError(w, http.StatusBadRequest, "post_url is required")
		return
	}

	result, err := h.downloads.Download(r.Context(), req)
	if err != nil {
		writeDomainError(w, err)
		return
	}
	writeJSON(w, http.StatusOK, result)
}

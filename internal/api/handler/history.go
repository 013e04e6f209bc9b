package handler

import (
	"encoding/json"
	"errors"
	"fmt"
	"log/slog"
	"net/http"
	"strconv"
	"time"

	"github.com/go-chi/chi/v5"

	"github.com/iconidentify/xfetch/internal/domain"
	"github.com/iconidentify/xfetch/internal/history"
	"github.com/iconidentify/xfetch/internal/service"
	"github.com/iconidentify/xfetch/internal/thumbs"
)

const defaultHistoryLimit = 50

// HistoryHandler serves the download history, its live change stream, and
// per-record thumbnail operations.
type HistoryHandler struct {
	repo      *history.Repository
	tracker   *thumbs.Tracker
	downloads *service.DownloadService
	progress  *service.ProgressBroker
	logger    *slog.Logger
}

// NewHistoryHandler creates a history handler.
func NewHistoryHandler(repo *history.Repository, tracker *thumbs.Tracker, downloads *service.DownloadService, progress *service.ProgressBroker, logger *slog.Logger) *HistoryHandler {
	return &HistoryHandler{repo: repo, tracker: tracker, downloads: downloads, progress: progress, logger: logger}
}

// HistoryListResponse is the paginated history list.
type HistoryListResponse struct {
	Records []RecordResponse `json:"records"`
	Total   int              `json:"total"`
	Limit   int              `json:"limit"`
	Offset  int              `json:"offset"`
}

// List handles GET /api/v1/history.
func (h *HistoryHandler) List(w http.ResponseWriter, r *http.Request) {
	limit := defaultHistoryLimit
	if v := r.URL.Query().Get("limit"); v != "" {
		n, err := strconv.Atoi(v)
		if err != nil || n < 0 {
			writeError(w, http.StatusBadRequest, "invalid limit")
			return
		}
		limit = n
	}
	offset := 0
	if v := r.URL.Query().Get("offset"); v != "" {
		n, err := strconv.Atoi(v)
		if err != nil || n < 0 {
			writeError(w, http.StatusBadRequest, "invalid offset")
			return
		}
		offset = n
	}

	records, err := h.repo.List(r.Context(), limit, offset)
	if err != nil {
		writeDomainError(w, err)
		return
	}
	total, err := h.repo.Count(r.Context())
	if err != nil {
		writeDomainError(w, err)
		return
	}

	resp := HistoryListResponse{
		Records: make([]RecordResponse, 0, len(records)),
		Total:   total,
		Limit:   limit,
		Offset:  offset,
	}
	for i := range records {
		resp.Records = append(resp.Records, newRecordResponse(&records[i]))
	}
	writeJSON(w, http.StatusOK, resp)
}

// historyEvent is the SSE payload for a history change.
type historyEvent struct {
	Op     string          `json:"op"`
	Record *RecordResponse `json:"record,omitempty"`
	At     time.Time       `json:"at"`
}

// Stream handles GET /api/v1/history/stream: a Server-Sent Events stream
// merging history changes and thumbnail job progress.
func (h *HistoryHandler) Stream(w http.ResponseWriter, r *http.Request) {
	flusher, ok := w.(http.Flusher)
	if !ok {
		writeError(w, http.StatusInternalServerError, "streaming not supported")
		return
	}

	w.Header().Set("Content-Type", "text/event-stream")
	w.Header().Set("Cache-Control", "no-cache")
	w.Header().Set("Connection", "keep-alive")

	histID, histCh := h.repo.Subscribe()
	defer h.repo.Unsubscribe(histID)
	thumbID, thumbCh := h.tracker.Subscribe()
	defer h.tracker.Unsubscribe(thumbID)
	dlID, dlCh := h.progress.Subscribe()
	defer h.progress.Unsubscribe(dlID)

	h.logger.Info("stream client connected", "remote_addr", r.RemoteAddr)

	fmt.Fprintf(w, "event: connected\ndata: {}\n\n")
	flusher.Flush()

	keepalive := time.NewTicker(30 * time.Second)
	defer keepalive.Stop()

	for {
		select {
		case <-r.Context().Done():
			h.logger.Info("stream client disconnected", "remote_addr", r.RemoteAddr)
			return

		case change, ok := <-histCh:
			if !ok {
				return
			}
			ev := historyEvent{Op: string(change.Op), At: change.At}
			if change.Record != nil {
				rec := newRecordResponse(change.Record)
				ev.Record = &rec
			}
			h.send(w, flusher, "history", ev)

		case progress, ok := <-thumbCh:
			if !ok {
				return
			}
			h.send(w, flusher, "thumbnail", progress)

		case progress, ok := <-dlCh:
			if !ok {
				return
			}
			h.send(w, flusher, "download", progress)

		case <-keepalive.C:
			fmt.Fprintf(w, ": keepalive\n\n")
			flusher.Flush()
		}
	}
}

func (h *HistoryHandler) send(w http.ResponseWriter, flusher http.Flusher, event string, v any) {
	data, err := json.Marshal(v)
	if err != nil {
		h.logger.Warn("stream event serialization failed", "event", event, "error", err)
		return
	}
	fmt.Fprintf(w, "event: %s\ndata: %s\n\n", event, data)
	flusher.Flush()
}

// Thumbnail handles GET /api/v1/history/{recordID}/thumbnail.
func (h *HistoryHandler) Thumbnail(w http.ResponseWriter, r *http.Request) {
	id := domain.RecordID(chi.URLParam(r, "recordID"))
	rec, err := h.repo.Get(r.Context(), id)
	if err != nil {
		writeDomainError(w, err)
		return
	}
	if rec.ThumbnailPath == "" {
		writeError(w, http.StatusNotFound, "record has no thumbnail")
		return
	}
	http.ServeFile(w, r, rec.ThumbnailPath)
}

// RegenerateThumbnail handles POST /api/v1/history/{recordID}/thumbnail: it
// re-enqueues the animated thumbnail job for the record.
func (h *HistoryHandler) RegenerateThumbnail(w http.ResponseWriter, r *http.Request) {
	id := domain.RecordID(chi.URLParam(r, "recordID"))
	if err := h.downloads.EnqueueThumbnail(r.Context(), id); err != nil {
		if errors.Is(err, service.ErrNotVideo) {
			writeError(w, http.StatusUnprocessableEntity, err.Error())
			return
		}
		writeDomainError(w, err)
		return
	}
	writeJSON(w, http.StatusAccepted, map[string]string{"status": "queued"})
}

// Delete handles DELETE /api/v1/history/{recordID}.
func (h *HistoryHandler) Delete(w http.ResponseWriter, r *http.Request) {
	id := domain.RecordID(chi.URLParam(r, "recordID"))
	if err := h.downloads.Delete(r.Context(), id); err != nil {
		writeDomainError(w, err)
		return
	}
	writeJSON(w, http.StatusOK, map[string]string{"status": "deleted"})
}

// DeletePost handles DELETE /api/v1/history/post/{postID}.
func (h *HistoryHandler) DeletePost(w http.ResponseWriter, r *http.Request) {
	postID := domain.PostID(chi.URLParam(r, "postID"))
	if err := h.downloads.DeletePost(r.Context(), postID); err != nil {
		writeDomainError(w, err)
		return
	}
	writeJSON(w, http.StatusOK, map[string]string{"status": "deleted"})
}

// Jobs handles GET /api/v1/thumbnails/jobs: the current thumbnail job
// states, newest first.
func (h *HistoryHandler) Jobs(w http.ResponseWriter, r *http.Request) {
	writeJSON(w, http.StatusOK, map[string]any{"jobs": h.tracker.Jobs()})
}

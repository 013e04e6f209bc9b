package handler

import (
	"encoding/json"
	"log/slog"
	"net/http"

	"github.com/iconidentify/xfetch/internal/settings"
)

// SettingsHandler serves application settings.
type SettingsHandler struct {
	store  *settings.Store
	logger *slog.Logger
}

// NewSettingsHandler creates a settings handler.
func NewSettingsHandler(store *settings.Store, logger *slog.Logger) *SettingsHandler {
	return &SettingsHandler{store: store, logger: logger}
}

// Get handles GET /api/v1/settings.
func (h *SettingsHandler) Get(w http.ResponseWriter, r *http.Request) {
	all, err := h.store.All(r.Context())
	if err != nil {
		writeDomainError(w, err)
		return
	}
	writeJSON(w, http.StatusOK, all)
}

// Put handles PUT /api/v1/settings.
func (h *SettingsHandler) Put(w http.ResponseWriter, r *http.Request) {
	var in settings.Settings
	if err := json.NewDecoder(r.Body).Decode(&in); err != nil {
		writeError(w, http.StatusBadRequest, "invalid request body")
		return
	}
	if err := h.store.Apply(r.Context(), &in); err != nil {
		writeDomainError(w, err)
		return
	}

	all, err := h.store.All(r.Context())
	if err != nil {
		writeDomainError(w, err)
		return
	}
	writeJSON(w, http.StatusOK, all)
}

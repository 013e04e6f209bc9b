package handler

import (
	"errors"
	"io"
	"log/slog"
	"net/http"
	"time"

	"github.com/iconidentify/xfetch/internal/service"
	"github.com/iconidentify/xfetch/pkg/crypto"
)

// maxImportSize caps backup upload bodies at 256 MB.
const maxImportSize = 256 << 20

// BackupHandler serves history export and import.
type BackupHandler struct {
	backups *service.BackupService
	logger  *slog.Logger
}

// NewBackupHandler creates a backup handler.
func NewBackupHandler(backups *service.BackupService, logger *slog.Logger) *BackupHandler {
	return &BackupHandler{backups: backups, logger: logger}
}

// Export handles GET /api/v1/backup/export. A password query parameter
// produces an encrypted archive.
func (h *BackupHandler) Export(w http.ResponseWriter, r *http.Request) {
	password := r.URL.Query().Get("password")

	data, err := h.backups.Export(r.Context(), password)
	if err != nil {
		writeDomainError(w, err)
		return
	}

	filename := "xfetch-backup-" + time.Now().UTC().Format("20060102-150405")
	if password != "" {
		w.Header().Set("Content-Type", "application/octet-stream")
		filename += ".xfbk"
	} else {
		w.Header().Set("Content-Type", "application/json")
		filename += ".json"
	}
	w.Header().Set("Content-Disposition", `attachment; filename="`+filename+`"`)
	w.WriteHeader(http.StatusOK)
	w.Write(data)
}

// Import handles POST /api/v1/backup/import. The body is the archive;
// encrypted archives need the password query parameter.
func (h *BackupHandler) Import(w http.ResponseWriter, r *http.Request) {
	data, err := io.ReadAll(io.LimitReader(r.Body, maxImportSize))
	if err != nil {
		writeError(w, http.StatusBadRequest, "failed to read archive")
		return
	}
	if len(data) == 0 {
		writeError(w, http.StatusBadRequest, "empty archive")
		return
	}

	result, err := h.backups.Import(r.Context(), data, r.URL.Query().Get("password"))
	if err != nil {
		if errors.Is(err, crypto.ErrDecryptFailed) {
			writeError(w, http.StatusUnprocessableEntity, "wrong password or corrupted archive")
			return
		}
		writeDomainError(w, err)
		return
	}
	writeJSON(w, http.StatusOK, result)
}

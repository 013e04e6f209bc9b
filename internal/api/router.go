// Package api wires the HTTP routes for the xfetch server.
package api

import (
	"log/slog"

	"github.com/go-chi/chi/v5"
	"github.com/go-chi/chi/v5/middleware"

	"github.com/iconidentify/xfetch/internal/api/handler"
	mw "github.com/iconidentify/xfetch/internal/api/middleware"
)

// NewRouter creates the HTTP router with all routes configured.
func NewRouter(
	postHandler *handler.PostHandler,
	historyHandler *handler.HistoryHandler,
	backupHandler *handler.BackupHandler,
	settingsHandler *handler.SettingsHandler,
	healthHandler *handler.HealthHandler,
	apiKey string,
	logger *slog.Logger,
) *chi.Mux {
	r := chi.NewRouter()

	r.Use(middleware.CleanPath)
	r.Use(middleware.RequestID)
	r.Use(middleware.RealIP)
	r.Use(mw.Logger(logger))
	r.Use(mw.Recovery(logger))
	r.Use(mw.CORS)

	// Health endpoints (no auth)
	r.Get("/health", healthHandler.Live)
	r.Get("/ready", healthHandler.Ready)

	r.Route("/api/v1", func(r chi.Router) {
		r.Use(mw.APIKeyAuth(apiKey))

		r.Post("/posts/resolve", postHandler.Resolve)
		r.Post("/downloads", postHandler.Download)

		r.Get("/history", historyHandler.List)
		r.Get("/history/stream", historyHandler.Stream)
		r.Get("/history/{recordID}/thumbnail", historyHandler.Thumbnail)
		r.Post("/history/{recordID}/thumbnail", historyHandler.RegenerateThumbnail)
		r.Delete("/history/{recordID}", historyHandler.Delete)
		r.Delete("/history/post/{postID}", historyHandler.DeletePost)

		r.Get("/thumbnails/jobs", historyHandler.Jobs)

		r.Get("/backup/export", backupHandler.Export)
		r.Post("/backup/import", backupHandler.Import)

		r.Get("/settings", settingsHandler.Get)
		r.Put("/settings", settingsHandler.Put)
	})

	return r
}

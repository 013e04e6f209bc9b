package main

import (
	"context"
	"flag"
	"fmt"
	"log/slog"
	"net/http"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/iconidentify/xfetch/internal/api"
	"github.com/iconidentify/xfetch/internal/api/handler"
	"github.com/iconidentify/xfetch/internal/config"
	"github.com/iconidentify/xfetch/internal/downloader"
	"github.com/iconidentify/xfetch/internal/fetcher"
	"github.com/iconidentify/xfetch/internal/history"
	"github.com/iconidentify/xfetch/internal/service"
	"github.com/iconidentify/xfetch/internal/settings"
	"github.com/iconidentify/xfetch/internal/storage"
	"github.com/iconidentify/xfetch/internal/thumbnail"
	"github.com/iconidentify/xfetch/internal/thumbs"
	"github.com/iconidentify/xfetch/pkg/ffmpeg"
)

var (
	Version   = "dev"
	BuildTime = "unknown"
)

func main() {
	configPath := flag.String("config", "", "Path to config file")
	showVersion := flag.Bool("version", false, "Show version and exit")
	flag.Parse()

	if *showVersion {
		fmt.Printf("xfetch %s (built %s)\n", Version, BuildTime)
		os.Exit(0)
	}

	logger := slog.New(slog.NewJSONHandler(os.Stdout, &slog.HandlerOptions{
		Level: slog.LevelInfo,
	}))
	slog.SetDefault(logger)

	logger.Info("starting xfetch",
		"version", Version,
		"build_time", BuildTime,
	)

	cfg, err := config.Load(*configPath)
	if err != nil {
		logger.Error("failed to load config", "error", err)
		os.Exit(1)
	}

	for _, dir := range []string{cfg.Storage.FlatPath, cfg.Storage.ThumbsPath} {
		if err := os.MkdirAll(dir, 0o755); err != nil {
			logger.Error("failed to create storage directory", "dir", dir, "error", err)
			os.Exit(1)
		}
	}

	db, err := history.Open(cfg.Database.Path)
	if err != nil {
		logger.Error("failed to open database", "path", cfg.Database.Path, "error", err)
		os.Exit(1)
	}
	defer db.Close()

	repo := history.NewRepository(db, logger)
	settingsStore := settings.NewStore(db)
	store := storage.Detect(cfg.Storage, logger)

	fetchClient := fetcher.NewClient(cfg.Fetch, logger)
	dl := downloader.NewHTTPDownloader(cfg.Download)
	dl.SetLogger(logger)

	// The thumbnail queue is optional: without it downloads still work,
	// only animated thumbnails are skipped.
	connectCtx, cancelConnect := context.WithTimeout(context.Background(), 15*time.Second)
	queue, err := thumbs.Connect(connectCtx, cfg.Queue, logger)
	cancelConnect()
	if err != nil {
		logger.Warn("thumbnail queue unavailable, animated thumbnails disabled", "error", err)
		queue = nil
	}

	tracker := thumbs.NewTracker(cfg.Thumbnail.SettleDelay)

	var enqueuer service.ThumbEnqueuer
	var queueReady func() bool
	if queue != nil {
		enqueuer = queue
		queueReady = func() bool { return queue.Conn().IsConnected() }
		defer queue.Close()

		unsubscribe, err := thumbs.SubscribeProgress(queue.Conn(), tracker.Update)
		if err != nil {
			logger.Error("failed to subscribe to thumbnail progress", "error", err)
			os.Exit(1)
		}
		defer unsubscribe()
	}

	var stills service.StaticThumbnailer
	if ffmpeg.IsAvailable() {
		proc, err := ffmpeg.NewVideoProcessor()
		if err != nil {
			logger.Warn("video processor unavailable, thumbnails disabled", "error", err)
		} else {
			stills = thumbnail.NewGenerator(proc, cfg.Thumbnail, logger)
		}
	} else {
		logger.Warn("ffmpeg not found, thumbnails disabled")
	}

	postSvc := service.NewPostService(fetchClient, logger)
	downloadSvc := service.NewDownloadService(
		fetchClient, dl, store, repo, settingsStore,
		enqueuer, stills, cfg.Storage, logger)
	progress := service.NewProgressBroker()
	downloadSvc.SetProgressBroker(progress)
	backupSvc := service.NewBackupService(repo, logger)

	router := api.NewRouter(
		handler.NewPostHandler(postSvc, downloadSvc, logger),
		handler.NewHistoryHandler(repo, tracker, downloadSvc, progress, logger),
		handler.NewBackupHandler(backupSvc, logger),
		handler.NewSettingsHandler(settingsStore, logger),
		handler.NewHealthHandler(db, queueReady),
		cfg.Server.APIKey,
		logger,
	)

	// No WriteTimeout: the history stream connection is long-lived.
	srv := &http.Server{
		Addr:        cfg.Server.Address(),
		Handler:     router,
		ReadTimeout: cfg.Server.ReadTimeout,
	}

	go func() {
		logger.Info("starting HTTP server", "addr", srv.Addr)
		if err := srv.ListenAndServe(); err != http.ErrServerClosed {
			logger.Error("server error", "error", err)
			os.Exit(1)
		}
	}()

	quit := make(chan os.Signal, 1)
	signal.Notify(quit, syscall.SIGINT, syscall.SIGTERM)
	<-quit

	logger.Info("shutting down")

	ctx, cancel := context.WithTimeout(context.Background(), 30*time.Second)
	defer cancel()
	if err := srv.Shutdown(ctx); err != nil {
		logger.Error("server shutdown error", "error", err)
	}

	logger.Info("shutdown complete")
}

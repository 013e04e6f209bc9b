package main

import (
	"context"
	"errors"
	"flag"
	"fmt"
	"log/slog"
	"os"
	"os/signal"
	"sync"
	"syscall"
	"time"

	"github.com/iconidentify/xfetch/internal/config"
	"github.com/iconidentify/xfetch/internal/history"
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
		fmt.Printf("xfetch-thumbnailer %s (built %s)\n", Version, BuildTime)
		os.Exit(0)
	}

	logger := slog.New(slog.NewJSONHandler(os.Stdout, &slog.HandlerOptions{
		Level: slog.LevelInfo,
	}))
	slog.SetDefault(logger)

	logger.Info("starting thumbnail worker",
		"version", Version,
		"build_time", BuildTime,
	)

	cfg, err := config.Load(*configPath)
	if err != nil {
		logger.Error("failed to load config", "error", err)
		os.Exit(1)
	}

	if err := os.MkdirAll(cfg.Storage.ThumbsPath, 0o755); err != nil {
		logger.Error("failed to create thumbnail directory", "error", err)
		os.Exit(1)
	}

	if !ffmpeg.IsAvailable() {
		logger.Error("ffmpeg not found, cannot generate thumbnails")
		os.Exit(1)
	}
	proc, err := ffmpeg.NewVideoProcessor()
	if err != nil {
		logger.Error("failed to initialize video processor", "error", err)
		os.Exit(1)
	}
	if version, err := ffmpeg.GetVersion(); err == nil {
		logger.Info("video processor initialized", "ffmpeg_version", version)
	}

	db, err := history.Open(cfg.Database.Path)
	if err != nil {
		logger.Error("failed to open database", "path", cfg.Database.Path, "error", err)
		os.Exit(1)
	}
	defer db.Close()

	ctx, stop := signal.NotifyContext(context.Background(), syscall.SIGINT, syscall.SIGTERM)
	defer stop()

	connectCtx, cancelConnect := context.WithTimeout(ctx, 15*time.Second)
	queue, err := thumbs.Connect(connectCtx, cfg.Queue, logger)
	cancelConnect()
	if err != nil {
		logger.Error("failed to connect to queue", "url", cfg.Queue.URL, "error", err)
		os.Exit(1)
	}
	defer queue.Close()

	worker := thumbs.NewWorker(
		history.NewRepository(db, logger),
		storage.Detect(cfg.Storage, logger),
		thumbnail.NewGenerator(proc, cfg.Thumbnail, logger),
		thumbs.NewProgressPublisher(queue.Conn()),
		cfg.Storage.ThumbsPath,
		logger,
	)

	var wg sync.WaitGroup
	for i := 0; i < cfg.Thumbnail.Workers; i++ {
		wg.Add(1)
		go func(n int) {
			defer wg.Done()
			if err := queue.Consume(ctx, worker.Handle); err != nil && !errors.Is(err, context.Canceled) {
				logger.Error("consumer stopped", "worker", n, "error", err)
			}
		}(i)
	}

	logger.Info("thumbnail worker running", "workers", cfg.Thumbnail.Workers)
	wg.Wait()
	logger.Info("shutdown complete")
}

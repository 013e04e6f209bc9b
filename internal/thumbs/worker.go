package thumbs

import (
	"context"
	"errors"
	"log/slog"
	"os"
	"path/filepath"
	"time"

	"github.com/iconidentify/xfetch/internal/domain"
	"github.com/iconidentify/xfetch/internal/storage"
	"github.com/iconidentify/xfetch/internal/thumbnail"
)

// AnimatedGenerator produces the animated GIF thumbnail for a video file.
type AnimatedGenerator interface {
	Animated(ctx context.Context, videoPath, outPath string, onProgress thumbnail.ProgressFunc) error
}

// Publisher pushes job progress reports to the server.
type Publisher interface {
	Publish(progress domain.ThumbProgress) error
}

// RecordStore is the slice of the history repository the worker needs.
type RecordStore interface {
	Get(ctx context.Context, id domain.RecordID) (*domain.DownloadRecord, error)
	SetThumbnail(ctx context.Context, id domain.RecordID, path string) error
}

// Worker executes thumbnail jobs from the durable queue: it renders the
// animated GIF, updates the history record, and reports progress.
type Worker struct {
	records   RecordStore
	store     storage.Store
	generator AnimatedGenerator
	publisher Publisher
	thumbsDir string
	logger    *slog.Logger
}

// NewWorker creates a thumbnail worker.
func NewWorker(records RecordStore, store storage.Store, generator AnimatedGenerator, publisher Publisher, thumbsDir string, logger *slog.Logger) *Worker {
	return &Worker{
		records:   records,
		store:     store,
		generator: generator,
		publisher: publisher,
		thumbsDir: thumbsDir,
		logger:    logger,
	}
}

// Handle processes one job. A nil return acknowledges the message; an error
// requests redelivery. Permanent failures (missing record, missing source,
// nothing to sample) are acknowledged after a failure report so the queue
// does not retry them.
func (w *Worker) Handle(ctx context.Context, job domain.ThumbnailJob) error {
	outPath := filepath.Join(w.thumbsDir, job.NameID+".gif")

	rec, err := w.records.Get(ctx, job.RecordID)
	if err != nil {
		if errors.Is(err, domain.ErrRecordNotFound) {
			w.logger.Warn("job for deleted record, dropping", "record_id", job.RecordID)
			return nil
		}
		return err
	}

	// Redelivered after a crash between render and ack: the output is
	// already there, just finish the bookkeeping.
	if rec.ThumbnailPath == outPath {
		if _, err := os.Stat(outPath); err == nil {
			w.report(job.RecordID, domain.ThumbJobComplete, 100, "", outPath)
			return nil
		}
	}

	videoPath, err := w.store.Path(job.Source)
	if err != nil || !w.store.Exists(job.Source) {
		w.logger.Warn("job source missing, dropping",
			"record_id", job.RecordID, "source", job.Source, "error", err)
		w.report(job.RecordID, domain.ThumbJobFailed, 0, "source media missing", "")
		return nil
	}

	w.report(job.RecordID, domain.ThumbJobInProgress, 0, "", "")

	err = w.generator.Animated(ctx, videoPath, outPath, func(percent int) {
		w.report(job.RecordID, domain.ThumbJobInProgress, percent, "", "")
	})
	if err != nil {
		if errors.Is(err, domain.ErrNoFrames) {
			w.report(job.RecordID, domain.ThumbJobFailed, 0, err.Error(), "")
			return nil
		}
		w.report(job.RecordID, domain.ThumbJobFailed, 0, err.Error(), "")
		return domain.NewRecordError(job.RecordID, "generate animated thumbnail", err)
	}

	if err := w.records.SetThumbnail(ctx, job.RecordID, outPath); err != nil {
		return domain.NewRecordError(job.RecordID, "record thumbnail path", err)
	}

	w.report(job.RecordID, domain.ThumbJobComplete, 100, "", outPath)
	w.logger.Info("thumbnail generated", "record_id", job.RecordID, "path", outPath)
	return nil
}

func (w *Worker) report(id domain.RecordID, state domain.ThumbJobState, percent int, errMsg, thumbPath string) {
	progress := domain.ThumbProgress{
		RecordID:      id,
		State:         state,
		Percent:       percent,
		Error:         errMsg,
		ThumbnailPath: thumbPath,
		At:            time.Now().UTC(),
	}
	if err := w.publisher.Publish(progress); err != nil {
		w.logger.Warn("progress publish failed", "record_id", id, "error", err)
	}
}

package domain

import (
	"time"
)

// ThumbJobState represents the state of an animated-thumbnail job.
type ThumbJobState string

const (
	ThumbJobNotStarted ThumbJobState = "not_started"
	ThumbJobInProgress ThumbJobState = "in_progress"
	ThumbJobComplete   ThumbJobState = "complete"
	ThumbJobFailed     ThumbJobState = "failed"
)

// Terminal reports whether the state is one the tracker will clear shortly
// after it is observed.
func (s ThumbJobState) Terminal() bool {
	return s == ThumbJobComplete || s == ThumbJobFailed
}

// ThumbnailJob is the durable work-queue message for generating an animated
// thumbnail from an already-downloaded video. The job must be safe to run
// more than once: the queue delivers at least once.
type ThumbnailJob struct {
	RecordID RecordID       `json:"record_id"`
	Source   StoragePointer `json:"source"`
	NameID   string         `json:"name_id"` // used to name output files
}

// ThumbProgress is one progress report published by the worker while a job
// runs, and consumed by the server's job tracker.
type ThumbProgress struct {
	RecordID RecordID      `json:"record_id"`
	State    ThumbJobState `json:"state"`
	Percent  int           `json:"percent"`
	// Error carries a short diagnostic when State is failed.
	Error string `json:"error,omitempty"`
	// ThumbnailPath is set on completion.
	ThumbnailPath string    `json:"thumbnail_path,omitempty"`
	At            time.Time `json:"at"`
}

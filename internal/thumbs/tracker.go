package thumbs

import (
	"sort"
	"sync"
	"time"

	"github.com/iconidentify/xfetch/internal/domain"
)

// Tracker holds the in-memory view of thumbnail job states for the API and
// the event stream. Terminal states are transient: they linger for the
// settle delay so clients can observe them, then the job record is dropped.
type Tracker struct {
	settleDelay time.Duration

	mu          sync.RWMutex
	jobs        map[domain.RecordID]domain.ThumbProgress
	subscribers map[uint64]chan domain.ThumbProgress
	nextSubID   uint64
}

// NewTracker creates a job tracker.
func NewTracker(settleDelay time.Duration) *Tracker {
	return &Tracker{
		settleDelay: settleDelay,
		jobs:        make(map[domain.RecordID]domain.ThumbProgress),
		subscribers: make(map[uint64]chan domain.ThumbProgress),
	}
}

// Update records a progress event and forwards it to subscribers. A
// terminal event schedules removal of the job after the settle delay.
func (t *Tracker) Update(progress domain.ThumbProgress) {
	t.mu.Lock()
	t.jobs[progress.RecordID] = progress

	for _, ch := range t.subscribers {
		select {
		case ch <- progress:
		default:
		}
	}
	t.mu.Unlock()

	if progress.State.Terminal() {
		recordID := progress.RecordID
		at := progress.At
		time.AfterFunc(t.settleDelay, func() {
			t.mu.Lock()
			defer t.mu.Unlock()
			// The job may have been re-enqueued meanwhile; only clear the
			// state we scheduled for.
			if current, ok := t.jobs[recordID]; ok && current.State.Terminal() && current.At.Equal(at) {
				delete(t.jobs, recordID)
			}
		})
	}
}

// Get returns the tracked state of one job.
func (t *Tracker) Get(recordID domain.RecordID) (domain.ThumbProgress, bool) {
	t.mu.RLock()
	defer t.mu.RUnlock()
	progress, ok := t.jobs[recordID]
	return progress, ok
}

// Jobs returns a snapshot of all tracked jobs, newest first.
func (t *Tracker) Jobs() []domain.ThumbProgress {
	t.mu.RLock()
	defer t.mu.RUnlock()

	out := make([]domain.ThumbProgress, 0, len(t.jobs))
	for _, progress := range t.jobs {
		out = append(out, progress)
	}
	sort.Slice(out, func(i, j int) bool {
		return out[i].At.After(out[j].At)
	})
	return out
}

// Subscribe registers a progress subscriber. Slow subscribers drop events
// rather than blocking updates.
func (t *Tracker) Subscribe() (uint64, <-chan domain.ThumbProgress) {
	t.mu.Lock()
	defer t.mu.Unlock()

	id := t.nextSubID
	t.nextSubID++

	ch := make(chan domain.ThumbProgress, 100)
	t.subscribers[id] = ch
	return id, ch
}

// Unsubscribe removes a subscriber and closes its channel.
func (t *Tracker) Unsubscribe(id uint64) {
	t.mu.Lock()
	defer t.mu.Unlock()

	if ch, ok := t.subscribers[id]; ok {
		close(ch)
		delete(t.subscribers, id)
	}
}

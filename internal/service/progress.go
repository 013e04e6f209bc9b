package service

import (
	"sync"
	"time"

	"github.com/iconidentify/xfetch/internal/domain"
)

// DownloadProgress is one byte-progress report for an in-flight media
// download, keyed by post and media index because no record exists yet.
type DownloadProgress struct {
	PostID     domain.PostID `json:"post_id"`
	MediaIndex int           `json:"media_index"`
	Percent    int           `json:"percent"`
	At         time.Time     `json:"at"`
}

// ProgressBroker fans download progress out to stream subscribers.
type ProgressBroker struct {
	mu          sync.Mutex
	nextSubID   uint64
	subscribers map[uint64]chan DownloadProgress
}

// NewProgressBroker creates an empty broker.
func NewProgressBroker() *ProgressBroker {
	return &ProgressBroker{
		subscribers: make(map[uint64]chan DownloadProgress),
	}
}

// Subscribe registers a progress subscriber. The returned channel is
// buffered; events are dropped for slow subscribers rather than blocking
// the download.
func (b *ProgressBroker) Subscribe() (uint64, <-chan DownloadProgress) {
	b.mu.Lock()
	defer b.mu.Unlock()

	id := b.nextSubID
	b.nextSubID++

	ch := make(chan DownloadProgress, 100)
	b.subscribers[id] = ch
	return id, ch
}

// Unsubscribe removes a subscriber and closes its channel.
func (b *ProgressBroker) Unsubscribe(id uint64) {
	b.mu.Lock()
	defer b.mu.Unlock()

	if ch, ok := b.subscribers[id]; ok {
		close(ch)
		delete(b.subscribers, id)
	}
}

// Publish delivers one report to every subscriber that has buffer room.
func (b *ProgressBroker) Publish(p DownloadProgress) {
	b.mu.Lock()
	defer b.mu.Unlock()

	for _, ch := range b.subscribers {
		select {
		case ch <- p:
		default:
		}
	}
}

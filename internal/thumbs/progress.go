package thumbs

import (
	"encoding/json"
	"fmt"
	"strings"

	"github.com/nats-io/nats.go"

	"github.com/iconidentify/xfetch/internal/domain"
)

// progressSubjectPrefix is the core NATS subject namespace for live job
// progress. Progress is fire-and-forget; only the durable job itself needs
// the stream.
const progressSubjectPrefix = "thumbs.progress."

// ProgressPublisher emits job progress over core NATS.
type ProgressPublisher struct {
	nc *nats.Conn
}

// NewProgressPublisher creates a progress publisher.
func NewProgressPublisher(nc *nats.Conn) *ProgressPublisher {
	return &ProgressPublisher{nc: nc}
}

// Publish sends a progress update for its record's subject.
func (p *ProgressPublisher) Publish(progress domain.ThumbProgress) error {
	data, err := json.Marshal(progress)
	if err != nil {
		return fmt.Errorf("marshal progress: %w", err)
	}

	subject := progressSubjectPrefix + sanitizeToken(string(progress.RecordID))
	if err := p.nc.Publish(subject, data); err != nil {
		return fmt.Errorf("publish progress: %w", err)
	}
	return nil
}

// SubscribeProgress invokes handler for every progress update of every job.
// Returns an unsubscribe function.
func SubscribeProgress(nc *nats.Conn, handler func(domain.ThumbProgress)) (func(), error) {
	sub, err := nc.Subscribe(progressSubjectPrefix+">", func(msg *nats.Msg) {
		var progress domain.ThumbProgress
		if err := json.Unmarshal(msg.Data, &progress); err != nil {
			return
		}
		handler(progress)
	})
	if err != nil {
		return nil, fmt.Errorf("subscribe progress: %w", err)
	}

	return func() { sub.Unsubscribe() }, nil
}

// sanitizeToken makes a record ID safe for use as a NATS subject token.
func sanitizeToken(s string) string {
	return strings.Map(func(r rune) rune {
		switch r {
		case '.', '*', '>', ' ':
			return '-'
		}
		return r
	}, s)
}

// Package thumbs provides the durable thumbnail job queue and the live
// progress feed on top of NATS.
package thumbs

import (
	"context"
	"encoding/json"
	"fmt"
	"log/slog"

	"github.com/nats-io/nats.go"
	"github.com/nats-io/nats.go/jetstream"

	"github.com/iconidentify/xfetch/internal/config"
	"github.com/iconidentify/xfetch/internal/domain"
)

// Queue is the durable thumbnail work queue. Jobs survive process death and
// are redelivered until acked or MaxDeliver attempts are exhausted.
type Queue struct {
	nc     *nats.Conn
	js     jetstream.JetStream
	stream jetstream.Stream
	cfg    config.QueueConfig
	logger *slog.Logger
}

// Connect dials NATS and ensures the work queue stream exists.
func Connect(ctx context.Context, cfg config.QueueConfig, logger *slog.Logger) (*Queue, error) {
	nc, err := nats.Connect(cfg.URL)
	if err != nil {
		return nil, fmt.Errorf("connect to NATS: %w", err)
	}

	js, err := jetstream.New(nc)
	if err != nil {
		nc.Close()
		return nil, fmt.Errorf("create JetStream context: %w", err)
	}

	stream, err := js.CreateOrUpdateStream(ctx, jetstream.StreamConfig{
		Name:      cfg.Stream,
		Subjects:  []string{cfg.Subject},
		Retention: jetstream.WorkQueuePolicy,
		Storage:   jetstream.FileStorage,
	})
	if err != nil {
		nc.Close()
		return nil, fmt.Errorf("create stream %s: %w", cfg.Stream, err)
	}

	return &Queue{
		nc:     nc,
		js:     js,
		stream: stream,
		cfg:    cfg,
		logger: logger.With("component", "thumbs-queue"),
	}, nil
}

// Close drains the connection.
func (q *Queue) Close() {
	q.nc.Drain()
}

// Conn exposes the underlying connection for the progress feed.
func (q *Queue) Conn() *nats.Conn {
	return q.nc
}

// Enqueue publishes a thumbnail job to the work queue.
func (q *Queue) Enqueue(ctx context.Context, job domain.ThumbnailJob) error {
	data, err := json.Marshal(job)
	if err != nil {
		return fmt.Errorf("marshal job: %w", err)
	}

	if _, err := q.js.Publish(ctx, q.cfg.Subject, data); err != nil {
		return fmt.Errorf("publish job: %w", err)
	}

	q.logger.Info("thumbnail job enqueued", "record_id", job.RecordID)
	return nil
}

// Consume runs a durable consumer, invoking handler for each job. Handler
// errors Nak the message for redelivery; MaxDeliver bounds retries.
// Blocks until ctx is canceled.
func (q *Queue) Consume(ctx context.Context, handler func(context.Context, domain.ThumbnailJob) error) error {
	consumer, err := q.stream.CreateOrUpdateConsumer(ctx, jetstream.ConsumerConfig{
		Durable:    q.cfg.Durable,
		AckPolicy:  jetstream.AckExplicitPolicy,
		AckWait:    q.cfg.AckWait,
		MaxDeliver: q.cfg.MaxDeliver,
	})
	if err != nil {
		return fmt.Errorf("create consumer %s: %w", q.cfg.Durable, err)
	}

	cc, err := consumer.Consume(func(msg jetstream.Msg) {
		var job domain.ThumbnailJob
		if err := json.Unmarshal(msg.Data(), &job); err != nil {
			q.logger.Error("dropping undecodable job", "error", err)
			msg.Term()
			return
		}

		if err := handler(ctx, job); err != nil {
			q.logger.Warn("job failed, requesting redelivery",
				"record_id", job.RecordID, "error", err)
			msg.Nak()
			return
		}
		msg.Ack()
	})
	if err != nil {
		return fmt.Errorf("start consumer: %w", err)
	}
	defer cc.Stop()

	<-ctx.Done()
	return ctx.Err()
}

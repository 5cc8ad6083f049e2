// Package nats implements the task queue on NATS JetStream.
package nats

import (
	"context"
	"encoding/json"
	"fmt"
	"log/slog"
	"strings"
	"time"

	"github.com/nats-io/nats.go"
	"github.com/nats-io/nats.go/jetstream"

	"github.com/cloudbday/cloudbday/internal/observability/logger"
	"github.com/cloudbday/cloudbday/internal/task"
)

const subjectPrefix = "cloudbday"

// Config holds the JetStream settings.
type Config struct {
	URL        string
	Stream     string
	MaxDeliver int
	AckWait    time.Duration
}

// Queue implements task.Queue using NATS JetStream.
type Queue struct {
	nc  *nats.Conn
	js  jetstream.JetStream
	cfg Config
}

// Subject returns the subject a task is published on.
func Subject(t task.Task) string {
	return subjectPrefix + "." + t.Queue + "." + string(t.Kind)
}

// Connect establishes a connection to NATS and ensures the stream exists.
func Connect(ctx context.Context, cfg Config) (*Queue, error) {
	if cfg.Stream == "" {
		cfg.Stream = "CLOUDBDAY"
	}
	if cfg.MaxDeliver <= 0 {
		cfg.MaxDeliver = 5
	}
	if cfg.AckWait <= 0 {
		cfg.AckWait = time.Minute
	}

	nc, err := nats.Connect(cfg.URL, nats.Name("cloudbday"))
	if err != nil {
		return nil, fmt.Errorf("nats connect: %w", err)
	}

	js, err := jetstream.New(nc)
	if err != nil {
		nc.Close()
		return nil, fmt.Errorf("jetstream init: %w", err)
	}

	_, err = js.CreateOrUpdateStream(ctx, jetstream.StreamConfig{
		Name:       cfg.Stream,
		Subjects:   []string{subjectPrefix + ".>"},
		Retention:  jetstream.WorkQueuePolicy,
		Duplicates: 10 * time.Minute,
	})
	if err != nil {
		nc.Close()
		return nil, fmt.Errorf("jetstream stream create: %w", err)
	}

	slog.Info("nats connected", "url", cfg.URL, "stream", cfg.Stream)
	return &Queue{nc: nc, js: js, cfg: cfg}, nil
}

// Enqueue publishes t. The task id doubles as the JetStream message id, so a
// retried publish of the same task is deduplicated by the server.
func (q *Queue) Enqueue(ctx context.Context, t task.Task) (task.Handle, error) {
	data, err := json.Marshal(t)
	if err != nil {
		return task.Handle{}, fmt.Errorf("encode task: %w", err)
	}
	subject := Subject(t)
	if _, err := q.js.Publish(ctx, subject, data, jetstream.WithMsgID(t.ID)); err != nil {
		return task.Handle{}, fmt.Errorf("nats publish %s: %w", subject, err)
	}
	return task.Handle{ID: t.ID, Queue: t.Queue}, nil
}

// Consume starts a durable consumer for queue and dispatches every message
// through d. Handler errors Nak the message; JetStream redelivers up to
// MaxDeliver times. The returned function stops consumption.
func (q *Queue) Consume(ctx context.Context, queue string, d *task.Dispatcher) (func(), error) {
	consumer, err := q.js.CreateOrUpdateConsumer(ctx, q.cfg.Stream, jetstream.ConsumerConfig{
		Durable:       durableName(queue),
		FilterSubject: subjectPrefix + "." + queue + ".>",
		AckPolicy:     jetstream.AckExplicitPolicy,
		AckWait:       q.cfg.AckWait,
		MaxDeliver:    q.cfg.MaxDeliver,
	})
	if err != nil {
		return nil, fmt.Errorf("nats consumer create: %w", err)
	}

	cons, err := consumer.Consume(func(msg jetstream.Msg) {
		handle(ctx, msg, d)
	})
	if err != nil {
		return nil, fmt.Errorf("nats consume: %w", err)
	}

	slog.Info("nats consumer started", logger.Queue(queue))
	return cons.Stop, nil
}

// message is the subset of jetstream.Msg the handler needs.
type message interface {
	Subject() string
	Data() []byte
	Ack() error
	Nak() error
	Term() error
}

func handle(ctx context.Context, msg message, d *task.Dispatcher) {
	var t task.Task
	if err := json.Unmarshal(msg.Data(), &t); err != nil {
		// Undecodable messages never succeed; drop them instead of redelivering.
		slog.ErrorContext(ctx, "discarding malformed task", "subject", msg.Subject(), logger.Error(err))
		if termErr := msg.Term(); termErr != nil {
			slog.ErrorContext(ctx, "nats term failed", logger.Error(termErr))
		}
		return
	}

	if err := d.Dispatch(ctx, t); err != nil {
		if nakErr := msg.Nak(); nakErr != nil {
			slog.ErrorContext(ctx, "nats nak failed", logger.Error(nakErr))
		}
		return
	}
	if ackErr := msg.Ack(); ackErr != nil {
		slog.ErrorContext(ctx, "nats ack failed", logger.Error(ackErr))
	}
}

func durableName(queue string) string {
	return "cloudbday-" + strings.ReplaceAll(queue, ".", "-")
}

// IsConnected reports whether the connection is up.
func (q *Queue) IsConnected() bool {
	return q.nc.IsConnected()
}

// Drain processes in-flight messages and closes the connection.
func (q *Queue) Drain() error {
	return q.nc.Drain()
}

// Close shuts down the NATS connection.
func (q *Queue) Close() error {
	q.nc.Close()
	return nil
}

// Package notify publishes run reports and rejected records to Kafka.
package notify

import (
	"context"
	"encoding/json"
	"fmt"
	"io"
	"log/slog"
	"time"

	"github.com/segmentio/kafka-go"

	"github.com/cie-hub/cambridge-innovation-events/internal/models"
)

// Rejection is a raw record dropped by validation.
type Rejection struct {
	Source string           `json:"source"`
	Field  string           `json:"field"`
	Error  string           `json:"error"`
	Record models.RawRecord `json:"record"`
}

// Notifier receives the outcome of a run.
type Notifier interface {
	RunCompleted(ctx context.Context, report models.RunReport) error
	Rejected(ctx context.Context, runID string, rejects []Rejection) error
	Close() error
}

type messageWriter interface {
	WriteMessages(ctx context.Context, msgs ...kafka.Message) error
	Close() error
}

// Publisher writes reports to a topic and rejections to its DLQ.
type Publisher struct {
	reports  messageWriter
	dlq      messageWriter
	log      *slog.Logger
	attempts int
	backoff  time.Duration
}

// New returns a Kafka publisher, or a no-op notifier when no brokers are set.
func New(brokers []string, topic string, log *slog.Logger) Notifier {
	if len(brokers) == 0 {
		return Nop{}
	}
	reports := &kafka.Writer{
		Addr:         kafka.TCP(brokers...),
		Topic:        topic,
		Balancer:     &kafka.Hash{},
		MaxAttempts:  3,
		RequiredAcks: kafka.RequireOne,
	}
	dlq := &kafka.Writer{
		Addr:         kafka.TCP(brokers...),
		Topic:        topic + "_dlq",
		Balancer:     &kafka.Hash{},
		MaxAttempts:  3,
		RequiredAcks: kafka.RequireOne,
	}
	return newPublisher(reports, dlq, log, 5, time.Second)
}

func newPublisher(reports, dlq messageWriter, log *slog.Logger, attempts int, backoff time.Duration) *Publisher {
	if log == nil {
		log = slog.New(slog.NewTextHandler(io.Discard, nil))
	}
	if attempts < 1 {
		attempts = 1
	}
	return &Publisher{reports: reports, dlq: dlq, log: log, attempts: attempts, backoff: backoff}
}

// RunCompleted publishes report keyed by its run ID.
func (p *Publisher) RunCompleted(ctx context.Context, report models.RunReport) error {
	payload, err := json.Marshal(report)
	if err != nil {
		return fmt.Errorf("marshal report: %w", err)
	}
	msg := kafka.Message{
		Key:   []byte(report.RunID),
		Value: payload,
		Headers: []kafka.Header{
			{Key: "batch", Value: []byte(report.Batch)},
			{Key: "timestamp", Value: []byte(report.FinishedAt.UTC().Format(time.RFC3339))},
		},
	}
	return p.write(ctx, p.reports, "report", msg)
}

// Rejected sends every rejected record to the DLQ, keyed by source.
func (p *Publisher) Rejected(ctx context.Context, runID string, rejects []Rejection) error {
	if len(rejects) == 0 {
		return nil
	}
	now := time.Now().UTC().Format(time.RFC3339)
	msgs := make([]kafka.Message, 0, len(rejects))
	for _, r := range rejects {
		payload, err := json.Marshal(r.Record)
		if err != nil {
			return fmt.Errorf("marshal rejected record: %w", err)
		}
		msgs = append(msgs, kafka.Message{
			Key:   []byte(r.Source),
			Value: payload,
			Headers: []kafka.Header{
				{Key: "run_id", Value: []byte(runID)},
				{Key: "field", Value: []byte(r.Field)},
				{Key: "error", Value: []byte(r.Error)},
				{Key: "timestamp", Value: []byte(now)},
			},
		})
	}
	return p.write(ctx, p.dlq, "dlq", msgs...)
}

// write retries with exponential backoff.
func (p *Publisher) write(ctx context.Context, w messageWriter, kind string, msgs ...kafka.Message) error {
	var err error
	for attempt := range p.attempts {
		if err = w.WriteMessages(ctx, msgs...); err == nil {
			p.log.Debug("published", slog.String("kind", kind), slog.Int("messages", len(msgs)), slog.Int("attempt", attempt+1))
			return nil
		}
		if attempt == p.attempts-1 {
			break
		}
		backoff := time.Duration(1<<uint(attempt)) * p.backoff
		p.log.Warn("kafka write failed, retrying",
			slog.String("kind", kind),
			slog.Any("err", err),
			slog.Int("attempt", attempt+1),
			slog.Duration("backoff", backoff),
		)
		select {
		case <-time.After(backoff):
		case <-ctx.Done():
			return ctx.Err()
		}
	}
	return fmt.Errorf("publish %s: %w", kind, err)
}

// Close flushes and closes both writers.
func (p *Publisher) Close() error {
	errReports := p.reports.Close()
	errDLQ := p.dlq.Close()
	if errReports != nil {
		return errReports
	}
	return errDLQ
}

// Nop discards everything.
type Nop struct{}

func (Nop) RunCompleted(context.Context, models.RunReport) error { return nil }

func (Nop) Rejected(context.Context, string, []Rejection) error { return nil }

func (Nop) Close() error { return nil }

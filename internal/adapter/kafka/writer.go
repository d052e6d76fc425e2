package kafka

import (
	"context"
	"encoding/json"
	"fmt"
	"log/slog"
	"strconv"
	"time"

	"github.com/cenkalti/backoff/v4"
	kafkago "github.com/segmentio/kafka-go"

	"github.com/couchcryptid/met-downscale/internal/domain"
)

// messageWriter is the subset of *kafkago.Writer the notifier uses.
type messageWriter interface {
	WriteMessages(ctx context.Context, msgs ...kafkago.Message) error
	Close() error
}

// Notifier publishes one message per emitted series.
// It implements pipeline.BatchNotifier.
type Notifier struct {
	writer     messageWriter
	logger     *slog.Logger
	maxElapsed time.Duration
}

// NewNotifier creates a Kafka producer for the emission topic.
func NewNotifier(brokers []string, topic string, logger *slog.Logger) *Notifier {
	w := &kafkago.Writer{
		Addr:         kafkago.TCP(brokers...),
		Topic:        topic,
		Balancer:     &kafkago.Hash{},
		RequiredAcks: kafkago.RequireAll,
	}
	return &Notifier{writer: w, logger: logger, maxElapsed: 30 * time.Second}
}

// Notify serializes and publishes the batch in a single WriteMessages call,
// retrying with exponential backoff until the context ends or the retry
// budget is spent.
func (n *Notifier) Notify(ctx context.Context, emitted []domain.EmittedSeries) error {
	if len(emitted) == 0 {
		return nil
	}
	msgs := make([]kafkago.Message, len(emitted))
	for i := range emitted {
		msg, err := serializeToMessage(emitted[i])
		if err != nil {
			return err
		}
		msgs[i] = msg
	}

	bo := backoff.NewExponentialBackOff()
	bo.MaxElapsedTime = n.maxElapsed
	attempt := 0
	operation := func() error {
		attempt++
		err := n.writer.WriteMessages(ctx, msgs...)
		if err != nil && ctx.Err() != nil {
			return backoff.Permanent(err)
		}
		if err != nil {
			n.logger.Warn("publish emitted series", "attempt", attempt, "error", err)
		}
		return err
	}
	if err := backoff.Retry(operation, backoff.WithContext(bo, ctx)); err != nil {
		return fmt.Errorf("publish emitted series: %w", err)
	}
	return nil
}

func (n *Notifier) Close() error {
	return n.writer.Close()
}

// serializeToMessage marshals an EmittedSeries into a Kafka message keyed by
// file name, so repeated runs of one series land on one partition.
func serializeToMessage(e domain.EmittedSeries) (kafkago.Message, error) {
	data, err := json.Marshal(e)
	if err != nil {
		return kafkago.Message{}, fmt.Errorf("serialize emitted series: %w", err)
	}
	return kafkago.Message{
		Key:   []byte(e.File),
		Value: data,
		Headers: []kafkago.Header{
			{Key: "issue_date", Value: []byte(e.Issue.Format(domain.IssueLayout))},
			{Key: "emitted_at", Value: []byte(e.EmittedAt.Format(time.RFC3339))},
			{Key: "member", Value: []byte(strconv.Itoa(e.Member))},
		},
	}, nil
}

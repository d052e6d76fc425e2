package kafka

import (
	"context"
	"encoding/json"
	"errors"
	"log/slog"
	"testing"
	"time"

	kafkago "github.com/segmentio/kafka-go"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/couchcryptid/met-downscale/internal/domain"
)

func testEmitted() domain.EmittedSeries {
	return domain.EmittedSeries{
		Issue:     time.Date(2024, 6, 1, 0, 0, 0, 0, time.UTC),
		Member:    4,
		Noise:     2,
		File:      "met_20240601_m04_n02.csv",
		Rows:      48,
		NullCells: 3,
		EmittedAt: time.Date(2024, 6, 1, 12, 30, 0, 0, time.UTC),
	}
}

func TestSerializeToMessage(t *testing.T) {
	msg, err := serializeToMessage(testEmitted())
	require.NoError(t, err)

	assert.Equal(t, []byte("met_20240601_m04_n02.csv"), msg.Key)
	assert.Contains(t, string(msg.Value), `"null_cells":3`)
	require.Len(t, msg.Headers, 3)
	assert.Equal(t, "issue_date", msg.Headers[0].Key)
	assert.Equal(t, []byte("2024-06-01"), msg.Headers[0].Value)
	assert.Equal(t, "emitted_at", msg.Headers[1].Key)
	assert.Equal(t, []byte("2024-06-01T12:30:00Z"), msg.Headers[1].Value)
	assert.Equal(t, []byte("4"), msg.Headers[2].Value)

	var back domain.EmittedSeries
	require.NoError(t, json.Unmarshal(msg.Value, &back))
	assert.Equal(t, testEmitted(), back)
}

type fakeWriter struct {
	failures int
	calls    int
	written  []kafkago.Message
}

func (w *fakeWriter) WriteMessages(_ context.Context, msgs ...kafkago.Message) error {
	w.calls++
	if w.calls <= w.failures {
		return errors.New("leader not available")
	}
	w.written = append(w.written, msgs...)
	return nil
}

func (w *fakeWriter) Close() error { return nil }

func newTestNotifier(w *fakeWriter, budget time.Duration) *Notifier {
	return &Notifier{writer: w, logger: slog.Default(), maxElapsed: budget}
}

func TestNotifier_RetriesTransientFailure(t *testing.T) {
	w := &fakeWriter{failures: 2}
	n := newTestNotifier(w, 10*time.Second)

	require.NoError(t, n.Notify(context.Background(), []domain.EmittedSeries{testEmitted(), testEmitted()}))

	assert.Equal(t, 3, w.calls)
	assert.Len(t, w.written, 2)
}

func TestNotifier_GivesUp(t *testing.T) {
	w := &fakeWriter{failures: 1 << 30}
	n := newTestNotifier(w, 200*time.Millisecond)

	err := n.Notify(context.Background(), []domain.EmittedSeries{testEmitted()})

	require.Error(t, err)
	assert.Contains(t, err.Error(), "leader not available")
	assert.Empty(t, w.written)
}

func TestNotifier_CancelledContext(t *testing.T) {
	w := &fakeWriter{failures: 1 << 30}
	n := newTestNotifier(w, time.Minute)
	ctx, cancel := context.WithCancel(context.Background())
	cancel()

	err := n.Notify(ctx, []domain.EmittedSeries{testEmitted()})

	require.Error(t, err)
	assert.Equal(t, 1, w.calls)
}

func TestNotifier_Empty(t *testing.T) {
	w := &fakeWriter{}
	n := newTestNotifier(w, time.Second)

	require.NoError(t, n.Notify(context.Background(), nil))
	assert.Zero(t, w.calls)
}

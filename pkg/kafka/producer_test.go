package kafka

import (
	"context"
	"errors"
	"io"
	"log/slog"
	"sync"
	"testing"

	"github.com/segmentio/kafka-go"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func testLogger() *slog.Logger {
	return slog.New(slog.NewTextHandler(io.Discard, nil))
}

type fakeWriter struct {
	mu       sync.Mutex
	messages []kafka.Message
	err      error
	closed   bool
}

func (w *fakeWriter) WriteMessages(_ context.Context, msgs ...kafka.Message) error {
	w.mu.Lock()
	defer w.mu.Unlock()
	if w.err != nil {
		return w.err
	}
	w.messages = append(w.messages, msgs...)
	return nil
}

func (w *fakeWriter) Close() error {
	w.closed = true
	return nil
}

func headerValue(msg kafka.Message, key string) string {
	for _, h := range msg.Headers {
		if h.Key == key {
			return string(h.Value)
		}
	}
	return ""
}

func TestProducer_Publish(t *testing.T) {
	w := &fakeWriter{}
	p := &Producer{writer: w, logger: testLogger()}

	event, err := NewEvent("media.replaced", "owner-1", "avatar", "media-service", map[string]string{"path": "avatars/x.jpg"})
	require.NoError(t, err)
	event.WithCorrelationID("corr-7")

	require.NoError(t, p.Publish(context.Background(), Topic("media", "replaced"), event))

	require.Len(t, w.messages, 1)
	msg := w.messages[0]
	assert.Equal(t, "classifieds.media.replaced", msg.Topic)
	assert.Equal(t, "owner-1", string(msg.Key))
	assert.Equal(t, "media.replaced", headerValue(msg, "event_type"))
	assert.Equal(t, "corr-7", headerValue(msg, "correlation_id"))

	decoded, err := UnmarshalEvent(msg.Value)
	require.NoError(t, err)
	assert.Equal(t, event.EventID, decoded.EventID)
}

func TestProducer_Publish_WriterError(t *testing.T) {
	w := &fakeWriter{err: errors.New("broker down")}
	p := &Producer{writer: w, logger: testLogger()}

	event, err := NewEvent("media.replaced", "owner-1", "avatar", "media-service", nil)
	require.NoError(t, err)

	err = p.Publish(context.Background(), "classifieds.media.replaced", event)
	require.Error(t, err)
	assert.Contains(t, err.Error(), "broker down")
}

func TestProducer_Ping_NoBrokers(t *testing.T) {
	p := &Producer{writer: &fakeWriter{}, logger: testLogger()}
	require.Error(t, p.Ping(context.Background()))
}

func TestProducer_Close(t *testing.T) {
	w := &fakeWriter{}
	p := &Producer{writer: w, logger: testLogger()}
	require.NoError(t, p.Close())
	assert.True(t, w.closed)
}

func TestDLQProducer_Publish(t *testing.T) {
	w := &fakeWriter{}
	d := &DLQProducer{writer: w, logger: testLogger()}

	original := kafka.Message{
		Topic:     "classifieds.user.deleted",
		Partition: 2,
		Offset:    41,
		Key:       []byte("u-1"),
		Value:     []byte(`{"event_id":"e"}`),
		Headers:   []kafka.Header{{Key: "event_type", Value: []byte("user.deleted")}},
	}
	require.NoError(t, d.Publish(context.Background(), original, errors.New("boom"), "media-service"))

	require.Len(t, w.messages, 1)
	msg := w.messages[0]
	assert.Equal(t, "classifieds.dlq.classifieds.user.deleted", msg.Topic)
	assert.Equal(t, original.Value, msg.Value)
	assert.Equal(t, "user.deleted", headerValue(msg, "event_type"))
	assert.Equal(t, "2", headerValue(msg, "dlq.original_partition"))
	assert.Equal(t, "41", headerValue(msg, "dlq.original_offset"))
	assert.Equal(t, "media-service", headerValue(msg, "dlq.consumer_group"))
	assert.Equal(t, "boom", headerValue(msg, "dlq.error"))
}

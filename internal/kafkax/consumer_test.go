package kafkax

import (
	"context"
	"errors"
	"io"
	"log/slog"
	"sync"
	"sync/atomic"
	"testing"
	"time"

	"github.com/melcdl/melcdl-backend/internal/logging"
	"github.com/segmentio/kafka-go"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func testLogger() logging.Logger {
	return logging.NewSlogLogger(slog.New(slog.DiscardHandler))
}

// fakeReader feeds a fixed sequence of records, then blocks until closed.
type fakeReader struct {
	mu     sync.Mutex
	msgs   []kafka.Message
	closed chan struct{}
}

func newFakeReader(msgs ...kafka.Message) *fakeReader {
	return &fakeReader{msgs: msgs, closed: make(chan struct{})}
}

func (f *fakeReader) ReadMessage(ctx context.Context) (kafka.Message, error) {
	f.mu.Lock()
	if len(f.msgs) > 0 {
		msg := f.msgs[0]
		f.msgs = f.msgs[1:]
		f.mu.Unlock()
		return msg, nil
	}
	f.mu.Unlock()

	select {
	case <-f.closed:
		return kafka.Message{}, io.EOF
	case <-ctx.Done():
		return kafka.Message{}, ctx.Err()
	}
}

func (f *fakeReader) Close() error {
	close(f.closed)
	return nil
}

func newTestConsumer(reg *Registry, reader recordReader) *Consumer {
	c := NewConsumer(ConsumerConfig{Brokers: []string{"localhost:9092"}, GroupID: "test"}, reg, testLogger())
	c.newReader = func(topics []string) recordReader { return reader }
	return c
}

func TestConsumer_DispatchesToRegisteredHandler(t *testing.T) {
	var got []string
	reg := NewRegistry("")
	reg.Register("classify", func(ctx context.Context, msg kafka.Message) error {
		got = append(got, string(msg.Value))
		return nil
	})

	reader := newFakeReader(
		kafka.Message{Topic: "classify", Value: []byte("m1")},
		kafka.Message{Topic: "classify", Value: []byte("m2")},
	)
	c := newTestConsumer(reg, reader)

	done := make(chan error, 1)
	go func() { done <- c.Start(context.Background()) }()

	require.Eventually(t, func() bool { return len(got) == 2 }, time.Second, 5*time.Millisecond)
	require.NoError(t, c.Stop(context.Background()))
	require.NoError(t, <-done)

	assert.Equal(t, []string{"m1", "m2"}, got)
}

func TestConsumer_HandlerErrorDoesNotKillLoop(t *testing.T) {
	var calls int
	reg := NewRegistry("")
	reg.Register("classify", func(ctx context.Context, msg kafka.Message) error {
		calls++
		if calls == 1 {
			return errors.New("poison message")
		}
		return nil
	})

	reader := newFakeReader(
		kafka.Message{Topic: "classify", Value: []byte("bad")},
		kafka.Message{Topic: "classify", Value: []byte("good")},
	)
	c := newTestConsumer(reg, reader)

	done := make(chan error, 1)
	go func() { done <- c.Start(context.Background()) }()

	require.Eventually(t, func() bool { return calls == 2 }, time.Second, 5*time.Millisecond)
	require.NoError(t, c.Stop(context.Background()))
	require.NoError(t, <-done)
}

func TestConsumer_UnknownTopicIsLoggedAndSkipped(t *testing.T) {
	var handled bool
	reg := NewRegistry("")
	reg.Register("classify", func(ctx context.Context, msg kafka.Message) error {
		handled = true
		return nil
	})

	reader := newFakeReader(
		kafka.Message{Topic: "unroutable", Value: []byte("x")},
		kafka.Message{Topic: "classify", Value: []byte("y")},
	)
	c := newTestConsumer(reg, reader)

	done := make(chan error, 1)
	go func() { done <- c.Start(context.Background()) }()

	require.Eventually(t, func() bool { return handled }, time.Second, 5*time.Millisecond)
	require.NoError(t, c.Stop(context.Background()))
	require.NoError(t, <-done)
}

func TestConsumer_StartTwiceFails(t *testing.T) {
	reg := NewRegistry("")
	reg.Register("classify", noopHandler)

	reader := newFakeReader()
	c := newTestConsumer(reg, reader)

	go func() { _ = c.Start(context.Background()) }()
	require.Eventually(t, func() bool {
		c.mu.Lock()
		defer c.mu.Unlock()
		return c.state == stateRunning
	}, time.Second, 5*time.Millisecond)

	assert.Error(t, c.Start(context.Background()))
	require.NoError(t, c.Stop(context.Background()))
}

func TestConsumer_NoTopics(t *testing.T) {
	c := newTestConsumer(NewRegistry(""), newFakeReader())
	assert.Error(t, c.Start(context.Background()))
}

func TestConsumer_StopWaitsForInFlightHandler(t *testing.T) {
	entered := make(chan struct{})
	release := make(chan struct{})
	var finished atomic.Bool

	reg := NewRegistry("")
	reg.Register("classify", func(ctx context.Context, msg kafka.Message) error {
		close(entered)
		<-release
		finished.Store(true)
		return nil
	})

	reader := newFakeReader(kafka.Message{Topic: "classify", Value: []byte("slow")})
	c := newTestConsumer(reg, reader)

	done := make(chan error, 1)
	go func() { done <- c.Start(context.Background()) }()

	// wait until the handler is in flight, then Stop with a short deadline
	<-entered
	ctx, cancel := context.WithTimeout(context.Background(), 50*time.Millisecond)
	defer cancel()
	err := c.Stop(ctx)
	assert.ErrorIs(t, err, context.DeadlineExceeded)
	assert.False(t, finished.Load())

	close(release)
	require.NoError(t, <-done)
	assert.True(t, finished.Load())
}

func TestConsumer_StopBeforeStartPreventsRun(t *testing.T) {
	reg := NewRegistry("")
	reg.Register("classify", noopHandler)
	c := newTestConsumer(reg, newFakeReader())

	require.NoError(t, c.Stop(context.Background()))
	assert.Error(t, c.Start(context.Background()))
	// loop never ran, so a second Stop is still a no-op
	require.NoError(t, c.Stop(context.Background()))
}

func TestPreview_TruncatesLongRecords(t *testing.T) {
	long := make([]byte, 3*recordPreviewLen)
	for i := range long {
		long[i] = 'a'
	}
	assert.Len(t, preview(long), recordPreviewLen)
	assert.Equal(t, "short", preview([]byte("short")))
}

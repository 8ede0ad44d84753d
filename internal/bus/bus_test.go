package bus

import (
	"encoding/json"
	"errors"
	"sync/atomic"
	"testing"
	"time"

	"github.com/rs/zerolog"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/p-blackswan/livetrack/internal/models"
)

// chanSender collects delivered payloads on a channel and can be flipped
// into a failing state.
type chanSender struct {
	ch   chan []byte
	fail atomic.Bool
}

func newChanSender() *chanSender {
	return &chanSender{ch: make(chan []byte, 256)}
}

func (s *chanSender) Send(payload []byte) error {
	if s.fail.Load() {
		return errors.New("transport closed")
	}
	s.ch <- payload
	return nil
}

func (s *chanSender) next(t *testing.T) models.LiveEvent {
	t.Helper()
	select {
	case payload := <-s.ch:
		var ev models.LiveEvent
		require.NoError(t, json.Unmarshal(payload, &ev))
		return ev
	case <-time.After(2 * time.Second):
		t.Fatal("timed out waiting for event")
		return models.LiveEvent{}
	}
}

func newTestBus(t *testing.T, queueSize int) *Bus {
	t.Helper()
	b := New(queueSize, nil, zerolog.Nop())
	t.Cleanup(b.Close)
	return b
}

func TestBus_PublishDeliversToAllSubscribers(t *testing.T) {
	b := newTestBus(t, 16)

	a := newChanSender()
	c := newChanSender()
	b.Subscribe(a, nil)
	b.Subscribe(c, nil)

	b.Publish(models.NewLogAdded("p1", "hello"))

	for _, s := range []*chanSender{a, c} {
		ev := s.next(t)
		assert.Equal(t, models.EventLogAdded, ev.Type)
		assert.Equal(t, "p1", ev.ProjectID)
	}
}

func TestBus_PerSubscriberFIFO(t *testing.T) {
	b := newTestBus(t, 128)

	s := newChanSender()
	b.Subscribe(s, nil)

	const n = 100
	for i := 0; i < n; i++ {
		b.Publish(models.NewProgressUpdate("p1", float64(i), "step"))
	}

	for i := 0; i < n; i++ {
		ev := s.next(t)
		require.Equal(t, models.EventProgressUpdate, ev.Type)
		data, ok := ev.Data.(map[string]any)
		require.True(t, ok)
		assert.Equal(t, float64(i), data["progress"])
	}
}

func TestBus_FailedSubscriberRemoved_OthersUnaffected(t *testing.T) {
	b := newTestBus(t, 16)

	bad := newChanSender()
	bad.fail.Store(true)
	good := newChanSender()

	b.Subscribe(bad, nil)
	b.Subscribe(good, nil)
	require.Equal(t, 2, b.Len())

	b.Publish(models.NewLogAdded("p1", "first"))

	// The failing transport is dropped as a side effect of delivery.
	require.Eventually(t, func() bool { return b.Len() == 1 }, 2*time.Second, 10*time.Millisecond)

	b.Publish(models.NewLogAdded("p1", "second"))

	first := good.next(t)
	second := good.next(t)
	assert.Equal(t, models.EventLogAdded, first.Type)
	assert.Equal(t, models.EventLogAdded, second.Type)
}

func TestBus_Unsubscribe_Idempotent(t *testing.T) {
	b := newTestBus(t, 16)

	s := newChanSender()
	sub := b.Subscribe(s, nil)
	require.Equal(t, 1, b.Len())

	b.Unsubscribe(sub)
	assert.Equal(t, 0, b.Len())

	// Removing an already-absent handle is a no-op.
	b.Unsubscribe(sub)
	assert.Equal(t, 0, b.Len())
}

func TestBus_SlowSubscriberDoesNotStallPublish(t *testing.T) {
	b := newTestBus(t, 4)

	// A sender that never completes a delivery: its pump blocks forever
	// on the first send, so the queue fills up.
	stuck := &blockingSender{release: make(chan struct{})}
	defer close(stuck.release)
	fast := newChanSender()

	b.Subscribe(stuck, nil)
	b.Subscribe(fast, nil)

	start := time.Now()
	const n = 20
	for i := 0; i < n; i++ {
		b.Publish(models.NewLogAdded("p1", "entry"))
	}
	assert.Less(t, time.Since(start), time.Second, "publish must not block on a slow subscriber")

	// The overloaded subscriber is dropped; the fast one got everything.
	require.Eventually(t, func() bool { return b.Len() == 1 }, 2*time.Second, 10*time.Millisecond)
	for i := 0; i < n; i++ {
		fast.next(t)
	}
}

type blockingSender struct {
	release chan struct{}
}

func (s *blockingSender) Send(payload []byte) error {
	<-s.release
	return errors.New("released")
}

func TestBus_ReplayDeliveredBeforeLiveEvents(t *testing.T) {
	b := newTestBus(t, 32)

	s := newChanSender()
	b.Subscribe(s, func(emit func(models.LiveEvent)) {
		emit(models.NewProjectSnapshot(models.ProjectState{ID: "p1", Name: "one"}))
		emit(models.NewProjectSnapshot(models.ProjectState{ID: "p2", Name: "two"}))
	})

	b.Publish(models.NewLogAdded("p1", "after join"))

	first := s.next(t)
	second := s.next(t)
	third := s.next(t)
	assert.Equal(t, models.EventProjectState, first.Type)
	assert.Equal(t, "p1", first.ProjectID)
	assert.Equal(t, models.EventProjectState, second.Type)
	assert.Equal(t, "p2", second.ProjectID)
	assert.Equal(t, models.EventLogAdded, third.Type)
}

func TestBus_Close_DropsAllSubscribers(t *testing.T) {
	b := New(16, nil, zerolog.Nop())
	b.Subscribe(newChanSender(), nil)
	b.Subscribe(newChanSender(), nil)
	require.Equal(t, 2, b.Len())

	b.Close()
	assert.Equal(t, 0, b.Len())
}

// Package bus fans live events out to a dynamic set of subscribers.
//
// Each subscriber gets a bounded queue drained by its own pump goroutine,
// so one slow consumer never stalls the broadcast for the others. A failed
// or overflowing subscriber is removed as a side effect of delivery; the
// failure is never surfaced to the publisher and never retried.
package bus

import (
	"encoding/json"
	"sync"

	"github.com/rs/zerolog"

	"github.com/p-blackswan/livetrack/internal/metrics"
	"github.com/p-blackswan/livetrack/internal/models"
)

// Sender delivers one encoded event to a subscriber's transport. It must
// bound its own send time (e.g. a write deadline) and return an error on
// failure; the bus reacts by dropping the subscription.
type Sender interface {
	Send(payload []byte) error
}

const defaultQueueSize = 64

// Bus is the fan-out broadcaster.
type Bus struct {
	mu        sync.Mutex
	subs      map[*Subscription]struct{}
	queueSize int
	logger    zerolog.Logger
	metrics   *metrics.Metrics
}

// Subscription is a live delivery target registered with the bus.
type Subscription struct {
	sender  Sender
	backlog [][]byte // replay snapshots, sent before any queued event
	queue   chan []byte
	stop    chan struct{}
	once    sync.Once
}

// New creates a bus. metrics may be nil.
func New(queueSize int, m *metrics.Metrics, logger zerolog.Logger) *Bus {
	if queueSize <= 0 {
		queueSize = defaultQueueSize
	}
	return &Bus{
		subs:      make(map[*Subscription]struct{}),
		queueSize: queueSize,
		logger:    logger.With().Str("component", "bus").Logger(),
		metrics:   m,
	}
}

// Subscribe registers a new subscriber and returns its handle. If replay
// is non-nil it runs before the subscriber joins the live set, and the
// events it yields are delivered first; registration and replay happen
// atomically with respect to Publish, so no event published afterwards is
// missed and none is duplicated into the replay.
func (b *Bus) Subscribe(sender Sender, replay func(emit func(models.LiveEvent))) *Subscription {
	sub := &Subscription{
		sender: sender,
		queue:  make(chan []byte, b.queueSize),
		stop:   make(chan struct{}),
	}

	b.mu.Lock()
	if replay != nil {
		replay(func(ev models.LiveEvent) {
			payload, err := json.Marshal(ev)
			if err != nil {
				b.logger.Error().Err(err).Str("event_type", string(ev.Type)).Msg("replay encode failed")
				return
			}
			sub.backlog = append(sub.backlog, payload)
		})
	}
	b.subs[sub] = struct{}{}
	b.mu.Unlock()

	if b.metrics != nil {
		b.metrics.SubscribersLive.Inc()
	}

	go b.pump(sub)
	return sub
}

// Unsubscribe removes a subscription from the live set and stops its
// pump. Removing an already-absent handle is a no-op.
func (b *Bus) Unsubscribe(sub *Subscription) {
	b.mu.Lock()
	_, present := b.subs[sub]
	delete(b.subs, sub)
	b.mu.Unlock()

	sub.once.Do(func() { close(sub.stop) })

	if present && b.metrics != nil {
		b.metrics.SubscribersLive.Dec()
	}
}

// Publish encodes the event once and enqueues it for every live
// subscriber. Enqueueing never blocks: a subscriber whose queue is full
// is dropped, and delivery to the rest continues.
func (b *Bus) Publish(ev models.LiveEvent) {
	payload, err := json.Marshal(ev)
	if err != nil {
		b.logger.Error().Err(err).Str("event_type", string(ev.Type)).Msg("event encode failed")
		return
	}

	if b.metrics != nil {
		b.metrics.RecordPublish(string(ev.Type))
	}

	var overloaded []*Subscription

	b.mu.Lock()
	for sub := range b.subs {
		select {
		case sub.queue <- payload:
		default:
			overloaded = append(overloaded, sub)
		}
	}
	b.mu.Unlock()

	for _, sub := range overloaded {
		b.logger.Warn().Msg("subscriber queue full, dropping subscriber")
		if b.metrics != nil {
			b.metrics.EventsDropped.Inc()
		}
		b.Unsubscribe(sub)
	}
}

// Close drops every subscriber. Used on shutdown.
func (b *Bus) Close() {
	b.mu.Lock()
	subs := make([]*Subscription, 0, len(b.subs))
	for sub := range b.subs {
		subs = append(subs, sub)
	}
	b.mu.Unlock()

	for _, sub := range subs {
		b.Unsubscribe(sub)
	}
}

// Len returns the number of live subscribers.
func (b *Bus) Len() int {
	b.mu.Lock()
	defer b.mu.Unlock()
	return len(b.subs)
}

// pump drains one subscription in FIFO order: replay backlog first, then
// the live queue. A send failure unsubscribes the target.
func (b *Bus) pump(sub *Subscription) {
	for _, payload := range sub.backlog {
		if !b.send(sub, payload) {
			return
		}
	}
	sub.backlog = nil

	for {
		select {
		case <-sub.stop:
			return
		case payload := <-sub.queue:
			if !b.send(sub, payload) {
				return
			}
		}
	}
}

func (b *Bus) send(sub *Subscription, payload []byte) bool {
	if err := sub.sender.Send(payload); err != nil {
		b.logger.Debug().Err(err).Msg("subscriber send failed, dropping subscriber")
		if b.metrics != nil {
			b.metrics.EventsDropped.Inc()
		}
		b.Unsubscribe(sub)
		return false
	}
	if b.metrics != nil {
		b.metrics.EventsDelivered.Inc()
	}
	return true
}

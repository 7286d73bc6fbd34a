// Package notification provides the notification manager for broadcasting events.
package notification

import (
	"sync"

	"github.com/google/uuid"
	zlog "github.com/rs/zerolog/log"

	"github.com/osa030/sdplayer/internal/app/playback"
)

// DefaultQueueSize is the number of events buffered per subscriber.
const DefaultQueueSize = 64

// Stream represents a notification stream for a subscriber.
type Stream interface {
	Send(playback.Event) error
}

// StreamFunc adapts a function to a Stream.
type StreamFunc func(playback.Event) error

// Send calls f(e).
func (f StreamFunc) Send(e playback.Event) error {
	return f(e)
}

// subscription represents a subscriber's subscription.
// Events are delivered by a dedicated goroutine in broadcast order.
type subscription struct {
	id     string
	stream Stream
	queue  chan playback.Event
	done   chan struct{}
}

// Manager manages notification subscriptions and broadcasting.
type Manager struct {
	mu            sync.RWMutex
	subscriptions map[string]*subscription
	queueSize     int
	sequenceNo    uint64
	sequenceNoMu  sync.Mutex
}

// NewManager creates a new notification manager.
func NewManager() *Manager {
	return NewManagerWithQueueSize(DefaultQueueSize)
}

// NewManagerWithQueueSize creates a manager buffering size events per subscriber.
func NewManagerWithQueueSize(size int) *Manager {
	if size <= 0 {
		size = DefaultQueueSize
	}
	return &Manager{
		subscriptions: make(map[string]*subscription),
		queueSize:     size,
	}
}

// Subscribe adds a new subscription and returns the subscription ID.
func (m *Manager) Subscribe(stream Stream) string {
	m.mu.Lock()
	defer m.mu.Unlock()

	id := uuid.New().String()
	sub := &subscription{
		id:     id,
		stream: stream,
		queue:  make(chan playback.Event, m.queueSize),
		done:   make(chan struct{}),
	}
	m.subscriptions[id] = sub
	go m.pump(sub)

	zlog.Debug().Msgf("notification: subscribed: id=%s", id)
	return id
}

// NextSequenceNo returns the next sequence number and increments the counter.
func (m *Manager) NextSequenceNo() uint64 {
	m.sequenceNoMu.Lock()
	defer m.sequenceNoMu.Unlock()
	m.sequenceNo++
	return m.sequenceNo
}

// Unsubscribe removes a subscription and waits for its pending delivery to finish.
func (m *Manager) Unsubscribe(subscriptionID string) {
	sub := m.remove(subscriptionID)
	if sub == nil {
		return
	}
	<-sub.done
	zlog.Debug().Msgf("notification: unsubscribed: id=%s", subscriptionID)
}

// Broadcast stamps the event with the next sequence number and queues it for
// every subscriber. It never blocks: a subscriber whose queue is full misses
// the event.
func (m *Manager) Broadcast(e playback.Event) error {
	e.SequenceNo = m.NextSequenceNo()

	m.mu.RLock()
	defer m.mu.RUnlock()

	for _, sub := range m.subscriptions {
		m.enqueue(sub, e)
	}
	return nil
}

// SubscriberCount returns the number of active subscribers.
func (m *Manager) SubscriberCount() int {
	m.mu.RLock()
	defer m.mu.RUnlock()
	return len(m.subscriptions)
}

// Close closes the manager and removes all subscriptions.
func (m *Manager) Close() {
	m.mu.Lock()
	subs := m.subscriptions
	m.subscriptions = make(map[string]*subscription)
	for _, sub := range subs {
		close(sub.queue)
	}
	m.mu.Unlock()

	for _, sub := range subs {
		<-sub.done
	}
}

// enqueue must be called with at least the read lock held so the queue
// cannot be closed underneath it.
func (m *Manager) enqueue(sub *subscription, e playback.Event) {
	select {
	case sub.queue <- e:
	default:
		zlog.Warn().Msgf("notification: queue full, dropping event: id=%s type=%s seq=%d", sub.id, e.Type, e.SequenceNo)
	}
}

func (m *Manager) remove(subscriptionID string) *subscription {
	m.mu.Lock()
	defer m.mu.Unlock()

	sub, ok := m.subscriptions[subscriptionID]
	if !ok {
		return nil
	}
	delete(m.subscriptions, subscriptionID)
	close(sub.queue)
	return sub
}

func (m *Manager) pump(sub *subscription) {
	defer close(sub.done)

	for e := range sub.queue {
		if err := sub.stream.Send(e); err != nil {
			zlog.Debug().Msgf("notification: send failed, removing subscriber: id=%s: %v", sub.id, err)
			m.remove(sub.id)
			// Drain so a concurrent Unsubscribe or Close is not kept waiting.
			for range sub.queue {
			}
			return
		}
	}
}

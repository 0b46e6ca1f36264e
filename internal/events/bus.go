package events

import (
	"sync"
	"time"

	"github.com/GriffinCanCode/Shelf/backend/internal/infrastructure/logging"
	"github.com/bmatcuk/doublestar/v4"
	"go.uber.org/zap"
)

// Well-known topics
const (
	TopicSourcesChanged  = "sources-changed"
	TopicTrackersChanged = "trackers-changed"
	LoginStatusPrefix    = "login-status."
)

// DefaultBuffer is the per-subscription channel size
const DefaultBuffer = 64

// LoginStatusTopic returns the topic carrying login changes for a tracker
func LoginStatusTopic(id string) string {
	return LoginStatusPrefix + id
}

// Event is one published notification
type Event struct {
	Topic   string    `json:"topic"`
	Payload any       `json:"payload,omitempty"`
	Time    time.Time `json:"time"`
}

// Publisher posts notifications
type Publisher interface {
	Publish(topic string, payload any)
}

// Subscriber receives notifications for topic patterns
type Subscriber interface {
	Subscribe(patterns ...string) *Subscription
}

// Subscription is a live topic subscription
type Subscription struct {
	id       uint64
	patterns []string
	ch       chan Event
	bus      *Bus
}

// C returns the delivery channel; it is closed on Unsubscribe or bus Close
func (s *Subscription) C() <-chan Event {
	return s.ch
}

// Unsubscribe stops delivery and closes the channel
func (s *Subscription) Unsubscribe() {
	s.bus.unsubscribe(s.id)
}

func (s *Subscription) wants(topic string) bool {
	if len(s.patterns) == 0 {
		return true
	}
	for _, p := range s.patterns {
		if p == topic {
			return true
		}
		if ok, err := doublestar.Match(p, topic); err == nil && ok {
			return true
		}
	}
	return false
}

// Bus is an in-process topic bus. Publish never blocks: a subscriber
// whose buffer is full misses the event.
type Bus struct {
	mu     sync.RWMutex
	subs   map[uint64]*Subscription
	nextID uint64
	buffer int
	closed bool
	logger *logging.Logger
}

// NewBus creates a bus with the given per-subscription buffer
func NewBus(buffer int, logger *logging.Logger) *Bus {
	if buffer <= 0 {
		buffer = DefaultBuffer
	}
	if logger == nil {
		logger = logging.NewNop()
	}
	return &Bus{
		subs:   make(map[uint64]*Subscription),
		buffer: buffer,
		logger: logger.Named("events"),
	}
}

// Subscribe registers for topics matching any pattern. Patterns are exact
// topics or globs such as "login-status.*"; no patterns means everything.
func (b *Bus) Subscribe(patterns ...string) *Subscription {
	b.mu.Lock()
	defer b.mu.Unlock()

	b.nextID++
	sub := &Subscription{
		id:       b.nextID,
		patterns: patterns,
		ch:       make(chan Event, b.buffer),
		bus:      b,
	}
	if b.closed {
		close(sub.ch)
		return sub
	}
	b.subs[sub.id] = sub
	return sub
}

// Publish delivers an event to every matching subscriber
func (b *Bus) Publish(topic string, payload any) {
	evt := Event{Topic: topic, Payload: payload, Time: time.Now()}

	b.mu.RLock()
	defer b.mu.RUnlock()
	if b.closed {
		return
	}

	for _, sub := range b.subs {
		if !sub.wants(topic) {
			continue
		}
		select {
		case sub.ch <- evt:
		default:
			b.logger.Warn("Dropping event for slow subscriber",
				zap.String("topic", topic),
				zap.Uint64("subscription", sub.id))
		}
	}
}

// SubscriberCount returns the number of live subscriptions
func (b *Bus) SubscriberCount() int {
	b.mu.RLock()
	defer b.mu.RUnlock()
	return len(b.subs)
}

// Close closes every subscription channel
func (b *Bus) Close() {
	b.mu.Lock()
	defer b.mu.Unlock()
	if b.closed {
		return
	}
	b.closed = true
	for id, sub := range b.subs {
		close(sub.ch)
		delete(b.subs, id)
	}
}

func (b *Bus) unsubscribe(id uint64) {
	b.mu.Lock()
	defer b.mu.Unlock()
	if sub, ok := b.subs[id]; ok {
		close(sub.ch)
		delete(b.subs, id)
	}
}

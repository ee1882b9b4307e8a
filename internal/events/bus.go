package events

import (
	"sync"
	"time"

	"github.com/ai776/daily-picks/internal/logger"
)

type Kind string

const (
	AssetAdded    Kind = "asset.added"
	PricesUpdated Kind = "prices.updated"
	RateUpdated   Kind = "rate.updated"
	NewsUpdated   Kind = "news.updated"
	ChatUpdated   Kind = "chat.updated"
	RefreshFailed Kind = "refresh.failed"
)

// Event is a state-change notification. Payload is JSON-serialisable.
type Event struct {
	Kind    Kind      `json:"kind"`
	At      time.Time `json:"at"`
	Payload any       `json:"payload,omitempty"`
}

// Publisher is implemented by Bus; components depend on this instead.
type Publisher interface {
	Publish(e Event)
}

// Sink receives every event synchronously on the publishing goroutine.
type Sink interface {
	Handle(e Event)
}

const subscriberBuffer = 64

// Bus fans events out to sinks and to buffered subscribers. A subscriber
// that falls behind misses events rather than blocking the publisher.
type Bus struct {
	mu     sync.RWMutex
	subs   map[int]chan Event
	nextID int
	sinks  []Sink
	now    func() time.Time
	logger *logger.Logger
}

func NewBus(log *logger.Logger, sinks ...Sink) *Bus {
	return &Bus{
		subs:   make(map[int]chan Event),
		sinks:  sinks,
		now:    time.Now,
		logger: log,
	}
}

// AddSink registers another synchronous sink.
func (b *Bus) AddSink(s Sink) {
	b.mu.Lock()
	b.sinks = append(b.sinks, s)
	b.mu.Unlock()
}

func (b *Bus) Publish(e Event) {
	if e.At.IsZero() {
		e.At = b.now()
	}

	b.mu.RLock()
	sinks := b.sinks
	for id, ch := range b.subs {
		select {
		case ch <- e:
		default:
			b.logger.Debug("dropping event for slow subscriber", "kind", e.Kind, "subscriber", id)
		}
	}
	b.mu.RUnlock()

	for _, s := range sinks {
		s.Handle(e)
	}
}

// Subscribe returns a channel of future events and a cancel func that
// closes it.
func (b *Bus) Subscribe() (<-chan Event, func()) {
	ch := make(chan Event, subscriberBuffer)

	b.mu.Lock()
	id := b.nextID
	b.nextID++
	b.subs[id] = ch
	b.mu.Unlock()

	var once sync.Once
	return ch, func() {
		once.Do(func() {
			b.mu.Lock()
			delete(b.subs, id)
			b.mu.Unlock()
			close(ch)
		})
	}
}

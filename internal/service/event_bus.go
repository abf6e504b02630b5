package service

import (
	"sync"
	"sync/atomic"

	"custody-vault/internal/core/domain"
	"custody-vault/internal/core/ports"

	"github.com/rs/zerolog"
)

const defaultSubscriptionBuffer = 64

// EventBus fans committed journal records out to in-process subscribers.
// Publish never blocks: a subscriber whose buffer is full misses the record
// and can catch up from the journal by Seq.
type EventBus struct {
	mu     sync.RWMutex
	subs   map[uint64]*subscription
	nextID uint64
	log    zerolog.Logger
}

type subscription struct {
	filter  domain.EventFilter
	ch      chan domain.Event
	dropped atomic.Uint64
}

// NewEventBus creates an empty bus.
func NewEventBus(log zerolog.Logger) *EventBus {
	return &EventBus{
		subs: make(map[uint64]*subscription),
		log:  log,
	}
}

// Publish delivers event to every matching subscriber.
func (b *EventBus) Publish(event *domain.Event) {
	b.mu.RLock()
	defer b.mu.RUnlock()

	for id, sub := range b.subs {
		if !sub.filter.Match(event) {
			continue
		}
		select {
		case sub.ch <- *event:
		default:
			b.log.Warn().
				Uint64("subscription", id).
				Int64("event_seq", event.Seq).
				Uint64("dropped_total", sub.dropped.Add(1)).
				Msg("subscriber buffer full, event dropped")
		}
	}
}

// Subscribe registers a filtered subscription. cancel closes the channel.
func (b *EventBus) Subscribe(filter domain.EventFilter, buffer int) (<-chan domain.Event, func()) {
	if buffer <= 0 {
		buffer = defaultSubscriptionBuffer
	}

	b.mu.Lock()
	id := b.nextID
	b.nextID++
	sub := &subscription{filter: filter, ch: make(chan domain.Event, buffer)}
	b.subs[id] = sub
	b.mu.Unlock()

	var once sync.Once
	cancel := func() {
		once.Do(func() {
			b.mu.Lock()
			delete(b.subs, id)
			b.mu.Unlock()
			close(sub.ch)
		})
	}
	return sub.ch, cancel
}

// Subscribers returns the number of live subscriptions.
func (b *EventBus) Subscribers() int {
	b.mu.RLock()
	defer b.mu.RUnlock()
	return len(b.subs)
}

// Publishers fans a record out to several publishers in order.
type Publishers []ports.EventPublisher

// Publish implements ports.EventPublisher.
func (p Publishers) Publish(event *domain.Event) {
	for _, pub := range p {
		if pub != nil {
			pub.Publish(event)
		}
	}
}

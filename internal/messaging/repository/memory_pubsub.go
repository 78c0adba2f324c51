package repository

import (
	"context"
	"fmt"
	"path"
	"sync"

	"realtime_messaging_service/internal/messaging/domain"
)

const memoryQueueSize = 1024

// MemoryPubSub in-process PubSub with redis pattern semantics, used by tests and local runs
type MemoryPubSub struct {
	mu     sync.RWMutex
	subs   map[int]*memorySubscription
	nextID int

	// SubscribeErr when set is consulted before every Subscribe; a non-nil result fails it
	SubscribeErr func(pattern string) error
}

// NewMemoryPubSub create MemoryPubSub
func NewMemoryPubSub() *MemoryPubSub {
	return &MemoryPubSub{subs: make(map[int]*memorySubscription)}
}

// Publish deliver to every subscription whose pattern matches channel
func (m *MemoryPubSub) Publish(ctx context.Context, channel string, message interface{}) error {
	data, err := marshalPayload(message)
	if err != nil {
		return err
	}

	m.mu.RLock()
	targets := make([]*memorySubscription, 0, len(m.subs))
	for _, s := range m.subs {
		if ok, _ := path.Match(s.pattern, channel); ok {
			targets = append(targets, s)
		}
	}
	m.mu.RUnlock()

	for _, s := range targets {
		s.enqueue(ctx, memoryMessage{channel: channel, payload: data})
	}
	return nil
}

// Subscribe open a subscription
func (m *MemoryPubSub) Subscribe(ctx context.Context, pattern string, handler func(channel string, payload []byte)) (Subscription, error) {
	if hook := m.SubscribeErr; hook != nil {
		if err := hook(pattern); err != nil {
			return nil, fmt.Errorf("%w: psubscribe %s: %v", domain.ErrTransportUnavailable, pattern, err)
		}
	}
	if _, err := path.Match(pattern, ""); err != nil {
		return nil, err
	}

	m.mu.Lock()
	id := m.nextID
	m.nextID++
	s := &memorySubscription{
		subscriptionState: newSubscriptionState(),
		pattern:           pattern,
		queue:             make(chan memoryMessage, memoryQueueSize),
	}
	s.remove = func() {
		m.mu.Lock()
		delete(m.subs, id)
		m.mu.Unlock()
	}
	m.subs[id] = s
	m.mu.Unlock()

	go s.loop(handler)
	return s, nil
}

// Drop ends every open subscription with err, as a lost connection would
func (m *MemoryPubSub) Drop(err error) {
	m.mu.Lock()
	subs := m.subs
	m.subs = make(map[int]*memorySubscription)
	m.mu.Unlock()

	for _, s := range subs {
		s.finish(fmt.Errorf("%w: %v", domain.ErrTransportUnavailable, err))
	}
}

// ActiveSubscriptions number of open subscriptions
func (m *MemoryPubSub) ActiveSubscriptions() int {
	m.mu.RLock()
	defer m.mu.RUnlock()
	return len(m.subs)
}

type memoryMessage struct {
	channel string
	payload []byte
}

type memorySubscription struct {
	*subscriptionState
	pattern string
	queue   chan memoryMessage
	remove  func()
}

func (s *memorySubscription) enqueue(ctx context.Context, msg memoryMessage) {
	select {
	case s.queue <- msg:
	case <-s.done:
	case <-ctx.Done():
	}
}

func (s *memorySubscription) loop(handler func(channel string, payload []byte)) {
	for {
		select {
		case <-s.done:
			return
		case msg := <-s.queue:
			select {
			case <-s.done:
				return
			default:
			}
			handler(msg.channel, msg.payload)
		}
	}
}

// Close unsubscribe
func (s *memorySubscription) Close() error {
	if s.markClosing() {
		return nil
	}
	s.remove()
	s.finish(nil)
	return nil
}

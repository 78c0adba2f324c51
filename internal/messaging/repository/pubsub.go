package repository

import (
	"context"
	"encoding/json"
	"sync"
)

// Subscription handle of an open topic subscription; Close unsubscribes
type Subscription interface {
	Close() error
	// Done is closed when the subscription ends, either by Close or by a transport drop
	Done() <-chan struct{}
	// Err transport error that ended the subscription, nil after Close
	Err() error
}

// PubSub definition the transport collaborator
type PubSub interface {
	Publish(ctx context.Context, channel string, message interface{}) error
	// Subscribe pattern may be an exact channel or a glob such as "typing:*";
	// handler runs on one goroutine per subscription, in publish order
	Subscribe(ctx context.Context, pattern string, handler func(channel string, payload []byte)) (Subscription, error)
}

func marshalPayload(message interface{}) ([]byte, error) {
	switch v := message.(type) {
	case []byte:
		return v, nil
	case string:
		return []byte(v), nil
	default:
		return json.Marshal(message)
	}
}

// subscriptionState shared Done/Err bookkeeping
type subscriptionState struct {
	once    sync.Once
	done    chan struct{}
	mu      sync.Mutex
	err     error
	closing bool
}

func newSubscriptionState() *subscriptionState {
	return &subscriptionState{done: make(chan struct{})}
}

func (s *subscriptionState) markClosing() bool {
	s.mu.Lock()
	defer s.mu.Unlock()
	already := s.closing
	s.closing = true
	return already
}

func (s *subscriptionState) isClosing() bool {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.closing
}

func (s *subscriptionState) finish(err error) {
	s.once.Do(func() {
		s.mu.Lock()
		if !s.closing {
			s.err = err
		}
		s.mu.Unlock()
		close(s.done)
	})
}

func (s *subscriptionState) Done() <-chan struct{} {
	return s.done
}

func (s *subscriptionState) Err() error {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.err
}

package app

import (
	"sync"
	"testing"
	"time"

	"realtime_messaging_service/internal/messaging/repository"
	"realtime_messaging_service/pkg/encrypt"
	"realtime_messaging_service/pkg/logger"

	"github.com/stretchr/testify/require"
)

const (
	waitFor = 2 * time.Second
	tick    = 5 * time.Millisecond
)

func init() {
	logger.SetNewNop()
}

func newTestCipher(t *testing.T, secret string) *encrypt.EnvelopeCipher {
	t.Helper()
	key, err := encrypt.DeriveKey(secret, "unit-test-salt")
	require.NoError(t, err)
	c, err := encrypt.NewEnvelopeCipher(key)
	require.NoError(t, err)
	return c
}

// harness one in-process backend shared by several clients
type harness struct {
	ps     *repository.MemoryPubSub
	feed   *repository.ChangeFeed
	store  *repository.MemoryStore
	cipher *encrypt.EnvelopeCipher
}

func newHarness(t *testing.T) *harness {
	ps := repository.NewMemoryPubSub()
	feed := repository.NewChangeFeed(ps)
	return &harness{
		ps:     ps,
		feed:   feed,
		store:  repository.NewMemoryStore(feed),
		cipher: newTestCipher(t, "unit-test-secret"),
	}
}

func (h *harness) service(pusher Pusher) *Service {
	return NewService(Deps{
		PubSub:        h.ps,
		Messages:      h.store,
		Groups:        h.store,
		Notifications: h.store,
		Presence:      h.store,
		Devices:       h.store,
		Cipher:        h.cipher,
		Pusher:        pusher,
		Config: ServiceConfig{
			Channel:   ChannelManagerConfig{BaseDelay: 5 * time.Millisecond, MaxAttempts: 5},
			TypingTTL: 200 * time.Millisecond,
		},
	})
}

// recorder collects values delivered on transport goroutines
type recorder[T any] struct {
	mu    sync.Mutex
	items []T
}

func (r *recorder[T]) add(v T) {
	r.mu.Lock()
	defer r.mu.Unlock()
	r.items = append(r.items, v)
}

func (r *recorder[T]) all() []T {
	r.mu.Lock()
	defer r.mu.Unlock()
	return append([]T(nil), r.items...)
}

func (r *recorder[T]) len() int {
	r.mu.Lock()
	defer r.mu.Unlock()
	return len(r.items)
}

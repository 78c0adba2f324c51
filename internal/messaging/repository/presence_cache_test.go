package repository

import (
	"context"
	"testing"
	"time"

	"realtime_messaging_service/internal/messaging/domain"
	"realtime_messaging_service/pkg/database"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/mock"
	"github.com/stretchr/testify/require"
)

type mockPresenceCache struct {
	mock.Mock
}

func (m *mockPresenceCache) Set(ctx context.Context, key string, value domain.PresenceStatus, ttl time.Duration) error {
	return m.Called(ctx, key, value, ttl).Error(0)
}

func (m *mockPresenceCache) Get(ctx context.Context, key string) (domain.PresenceStatus, error) {
	args := m.Called(ctx, key)
	return args.Get(0).(domain.PresenceStatus), args.Error(1)
}

func (m *mockPresenceCache) Del(ctx context.Context, key string) error {
	return m.Called(ctx, key).Error(0)
}

func (m *mockPresenceCache) GetTTL(ctx context.Context, key string) (int, error) {
	args := m.Called(ctx, key)
	return args.Int(0), args.Error(1)
}

func (m *mockPresenceCache) ExtendTTL(ctx context.Context, key string, ttl time.Duration) error {
	return m.Called(ctx, key, ttl).Error(0)
}

func TestCachedPresence_ReadThrough(t *testing.T) {
	ctx := context.Background()
	store := NewMemoryStore(nil)
	seen := time.Date(2024, 5, 1, 8, 0, 0, 0, time.UTC)
	require.NoError(t, store.UpdateStatus(ctx, "A", domain.UserStatusBusy, seen))

	cache := new(mockPresenceCache)
	want := domain.PresenceStatus{UserID: "A", Status: domain.UserStatusBusy, LastSeen: seen}
	cache.On("Get", ctx, "A").Return(domain.PresenceStatus{}, database.ErrCacheMiss).Once()
	cache.On("Set", ctx, "A", want, time.Minute).Return(nil).Once()

	repo := NewCachedPresenceRepository(store, cache, time.Minute)
	got, err := repo.FindStatus(ctx, "A")
	require.NoError(t, err)
	assert.Equal(t, want, *got)

	cache.On("Get", ctx, "A").Return(want, nil).Once()
	got, err = repo.FindStatus(ctx, "A")
	require.NoError(t, err)
	assert.Equal(t, domain.UserStatusBusy, got.Status)

	cache.AssertExpectations(t)
}

func TestCachedPresence_UpdateWritesThrough(t *testing.T) {
	ctx := context.Background()
	store := NewMemoryStore(nil)
	cache := new(mockPresenceCache)
	now := time.Now().UTC()

	cache.On("Set", ctx, "B", domain.PresenceStatus{UserID: "B", Status: domain.UserStatusOnline, LastSeen: now}, time.Minute).Return(nil)

	repo := NewCachedPresenceRepository(store, cache, time.Minute)
	require.NoError(t, repo.UpdateStatus(ctx, "B", domain.UserStatusOnline, now))

	row, err := store.FindStatus(ctx, "B")
	require.NoError(t, err)
	assert.Equal(t, domain.UserStatusOnline, row.Status)
	cache.AssertExpectations(t)
}

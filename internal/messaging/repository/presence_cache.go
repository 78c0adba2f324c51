package repository

import (
	"context"
	"errors"
	"time"

	"realtime_messaging_service/internal/messaging/domain"
	"realtime_messaging_service/pkg/database"
	"realtime_messaging_service/pkg/logger"

	"go.uber.org/zap"
)

const presenceCachePrefix = "presence:"

type cachedPresenceRepository struct {
	next  PresenceRepository
	cache database.RedisRepository[domain.PresenceStatus]
	ttl   time.Duration
}

// NewCachedPresenceRepository read-through redis cache in front of the presence rows
func NewCachedPresenceRepository(next PresenceRepository, cache database.RedisRepository[domain.PresenceStatus], ttl time.Duration) PresenceRepository {
	return &cachedPresenceRepository{next: next, cache: cache, ttl: ttl}
}

// PresenceCacheKeyPrefix key prefix for database.NewRedisRepository
func PresenceCacheKeyPrefix() string {
	return presenceCachePrefix
}

func (r *cachedPresenceRepository) UpdateStatus(ctx context.Context, userID string, status domain.UserStatus, lastSeen time.Time) error {
	if err := r.next.UpdateStatus(ctx, userID, status, lastSeen); err != nil {
		return err
	}
	row := domain.PresenceStatus{UserID: userID, Status: status, LastSeen: lastSeen}
	if err := r.cache.Set(ctx, userID, row, r.ttl); err != nil {
		logger.Log.Warn("presence cache set", zap.String("user_id", userID), zap.Error(err))
	}
	return nil
}

func (r *cachedPresenceRepository) FindStatus(ctx context.Context, userID string) (*domain.PresenceStatus, error) {
	row, err := r.cache.Get(ctx, userID)
	if err == nil {
		return &row, nil
	}
	if !errors.Is(err, database.ErrCacheMiss) {
		logger.Log.Warn("presence cache get", zap.String("user_id", userID), zap.Error(err))
	}

	found, err := r.next.FindStatus(ctx, userID)
	if err != nil {
		return nil, err
	}
	if err := r.cache.Set(ctx, userID, *found, r.ttl); err != nil {
		logger.Log.Warn("presence cache set", zap.String("user_id", userID), zap.Error(err))
	}
	return found, nil
}

package repository

import (
	"context"
	"errors"
	"fmt"

	"realtime_messaging_service/internal/messaging/domain"
	"realtime_messaging_service/pkg/logger"

	"github.com/go-redis/redis/v8"
	"go.uber.org/zap"
)

// RedisPubSub definition redis pub/sub transport
type RedisPubSub struct {
	client *redis.Client
}

// NewRedisPubSub create RedisPubSub
func NewRedisPubSub(client *redis.Client) *RedisPubSub {
	return &RedisPubSub{client: client}
}

// Publish 將 message 序列化後，發布到指定 channel
func (r *RedisPubSub) Publish(ctx context.Context, channel string, message interface{}) error {
	data, err := marshalPayload(message)
	if err != nil {
		return err
	}
	return r.client.Publish(ctx, channel, data).Err()
}

// Subscribe 以 PSUBSCRIBE 訂閱, 等到 redis 確認後才回傳
func (r *RedisPubSub) Subscribe(ctx context.Context, pattern string, handler func(channel string, payload []byte)) (Subscription, error) {
	sub := r.client.PSubscribe(ctx, pattern)

	if _, err := sub.Receive(ctx); err != nil {
		_ = sub.Close()
		return nil, fmt.Errorf("%w: psubscribe %s: %v", domain.ErrTransportUnavailable, pattern, err)
	}

	s := &redisSubscription{
		subscriptionState: newSubscriptionState(),
		sub:               sub,
		pattern:           pattern,
	}
	go s.loop(handler)
	return s, nil
}

type redisSubscription struct {
	*subscriptionState
	sub     *redis.PubSub
	pattern string
}

func (s *redisSubscription) loop(handler func(channel string, payload []byte)) {
	for {
		msg, err := s.sub.Receive(context.Background())
		if err != nil {
			if s.isClosing() || errors.Is(err, redis.ErrClosed) {
				s.finish(nil)
				return
			}
			logger.Log.Warn("redis subscription dropped", zap.String("pattern", s.pattern), zap.Error(err))
			s.finish(fmt.Errorf("%w: %v", domain.ErrTransportUnavailable, err))
			_ = s.sub.Close()
			return
		}

		switch m := msg.(type) {
		case *redis.Message:
			handler(m.Channel, []byte(m.Payload))
		case *redis.Subscription, *redis.Pong:
			// 控制訊息
		}
	}
}

// Close unsubscribe and release the connection
func (s *redisSubscription) Close() error {
	if s.markClosing() {
		return nil
	}
	err := s.sub.Close()
	s.finish(nil)
	return err
}

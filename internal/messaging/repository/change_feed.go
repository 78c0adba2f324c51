package repository

import (
	"context"
	"encoding/json"

	"realtime_messaging_service/internal/messaging/domain"
	"realtime_messaging_service/pkg/logger"

	"go.uber.org/zap"
)

// ChangeFeedPrefix channel prefix of store change events
const ChangeFeedPrefix = "realtime:"

// ChangeFeed row level change events of the store, carried over PubSub
type ChangeFeed struct {
	pubsub PubSub
}

// NewChangeFeed create ChangeFeed
func NewChangeFeed(ps PubSub) *ChangeFeed {
	return &ChangeFeed{pubsub: ps}
}

// FeedChannel channel of a table
func FeedChannel(table domain.Table) string {
	return ChangeFeedPrefix + string(table)
}

// Emit publish one event
func (f *ChangeFeed) Emit(ctx context.Context, ev domain.ChangeEvent) error {
	return f.pubsub.Publish(ctx, FeedChannel(ev.Table), ev)
}

// Subscribe deliver events of table whose type is in eventTypes (all types when empty)
func (f *ChangeFeed) Subscribe(ctx context.Context, table domain.Table, eventTypes []domain.ChangeType, callback func(domain.ChangeEvent)) (Subscription, error) {
	wanted := make(map[domain.ChangeType]struct{}, len(eventTypes))
	for _, t := range eventTypes {
		wanted[t] = struct{}{}
	}

	return f.pubsub.Subscribe(ctx, FeedChannel(table), func(channel string, payload []byte) {
		var ev domain.ChangeEvent
		if err := json.Unmarshal(payload, &ev); err != nil {
			logger.Log.Warn("change feed: bad payload", zap.String("channel", channel), zap.Error(err))
			return
		}
		if len(wanted) > 0 {
			if _, ok := wanted[ev.Type]; !ok {
				return
			}
		}
		callback(ev)
	})
}

// emitRow is used by the repositories after a successful write; the row is already
// stored so a publish failure is logged, not returned
func emitRow(ctx context.Context, feed *ChangeFeed, table domain.Table, changeType domain.ChangeType, row interface{}) {
	if feed == nil {
		return
	}
	ev, err := domain.NewChangeEvent(table, changeType, row)
	if err != nil {
		logger.Log.Errorf("change feed: encode row", err, zap.String("table", string(table)))
		return
	}
	if err := feed.Emit(ctx, ev); err != nil {
		logger.Log.Errorf("change feed: publish", err, zap.String("table", string(table)))
	}
}

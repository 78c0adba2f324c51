package app

import (
	"context"
	"encoding/json"
	"fmt"
	"time"

	"realtime_messaging_service/internal/messaging/domain"
	"realtime_messaging_service/internal/messaging/repository"
	errprocess "realtime_messaging_service/pkg/err"
	"realtime_messaging_service/pkg/logger"

	"go.uber.org/zap"
)

// PresenceBroadcaster presence through the store's change feed, typing through ephemeral topics
type PresenceBroadcaster struct {
	presence repository.PresenceRepository
	feed     *repository.ChangeFeed
	pubsub   repository.PubSub
	registry *handlerRegistry
	tracker  *TypingTracker
	now      func() time.Time
}

// NewPresenceBroadcaster create PresenceBroadcaster
func NewPresenceBroadcaster(presence repository.PresenceRepository, feed *repository.ChangeFeed, pubsub repository.PubSub, registry *handlerRegistry, tracker *TypingTracker) *PresenceBroadcaster {
	return &PresenceBroadcaster{
		presence: presence,
		feed:     feed,
		pubsub:   pubsub,
		registry: registry,
		tracker:  tracker,
		now:      func() time.Time { return time.Now().UTC() },
	}
}

// UpdateStatus persist status and last seen; other clients learn it from the users feed
func (p *PresenceBroadcaster) UpdateStatus(ctx context.Context, userID string, status domain.UserStatus) error {
	if userID == "" || !status.Valid() {
		return fmt.Errorf("%w: %q", domain.ErrInvalidStatus, status)
	}
	if err := p.presence.UpdateStatus(ctx, userID, status, p.now()); err != nil {
		return errprocess.Wrap(domain.ErrStoreWriteFailure, "update presence", err)
	}
	return nil
}

// Status last known presence of userID
func (p *PresenceBroadcaster) Status(ctx context.Context, userID string) (*domain.PresenceStatus, error) {
	return p.presence.FindStatus(ctx, userID)
}

// SendTyping publish an ephemeral typing event, nothing is stored
func (p *PresenceBroadcaster) SendTyping(ctx context.Context, self string, target domain.ConversationTarget, isTyping bool) error {
	if err := target.Validate(); err != nil {
		return err
	}
	ev := domain.TypingEvent{
		UserID:    self,
		Target:    target,
		IsTyping:  isTyping,
		Timestamp: p.now(),
	}
	if err := p.pubsub.Publish(ctx, domain.TypingTopic(self, target), ev); err != nil {
		return fmt.Errorf("%w: publish typing: %v", domain.ErrTransportUnavailable, err)
	}
	return nil
}

// OpenPresence subscribe to users row changes
func (p *PresenceBroadcaster) OpenPresence(ctx context.Context, s Session) (repository.Subscription, error) {
	types := []domain.ChangeType{domain.ChangeInsert, domain.ChangeUpdate}
	return p.feed.Subscribe(ctx, domain.TableUsers, types, func(ev domain.ChangeEvent) {
		var row domain.PresenceStatus
		if err := ev.Decode(&row); err != nil {
			logger.Log.Warn("dropping undecodable presence row", zap.Error(err))
			return
		}
		s.Deliver(func() {
			if h := p.registry.statusHandler(); h != nil {
				h(row)
			}
		})
	})
}

// OpenTyping subscribe to every typing topic, keeping events of conversations self takes part in
func (p *PresenceBroadcaster) OpenTyping(ctx context.Context, s Session) (repository.Subscription, error) {
	return p.pubsub.Subscribe(ctx, domain.TypingTopicPrefix+"*", func(channel string, payload []byte) {
		var ev domain.TypingEvent
		if err := json.Unmarshal(payload, &ev); err != nil {
			logger.Log.Warn("dropping undecodable typing event", zap.String("channel", channel), zap.Error(err))
			return
		}
		ind, ok := typingIndicatorFor(s.UserID, ev)
		if !ok {
			return
		}
		s.Deliver(func() {
			ind = p.tracker.Observe(ind, func(expired domain.TypingIndicator) {
				s.Deliver(func() { p.dispatchTyping(expired) })
			})
			p.dispatchTyping(ind)
		})
	})
}

// IsTyping whether userID is typing in the conversation right now, stale indicators count as false
func (p *PresenceBroadcaster) IsTyping(conversationID, userID string) bool {
	return p.tracker.IsTyping(conversationID, userID)
}

// Reset drop every typing timer
func (p *PresenceBroadcaster) Reset() {
	p.tracker.Reset()
}

func (p *PresenceBroadcaster) dispatchTyping(ind domain.TypingIndicator) {
	if h, ok := p.registry.typingHandler(ind.ConversationID); ok {
		h(ind)
	}
}

// typingIndicatorFor resolves the conversation id from the receiver's side
func typingIndicatorFor(self string, ev domain.TypingEvent) (domain.TypingIndicator, bool) {
	if ev.UserID == "" || ev.UserID == self || ev.Target.Validate() != nil {
		return domain.TypingIndicator{}, false
	}
	conversationID := ev.Target.ID
	if !ev.Target.IsGroup() {
		if ev.Target.ID != self {
			return domain.TypingIndicator{}, false
		}
		conversationID = ev.UserID
	}
	return domain.TypingIndicator{
		UserID:         ev.UserID,
		ConversationID: conversationID,
		IsTyping:       ev.IsTyping,
		Timestamp:      ev.Timestamp,
	}, true
}

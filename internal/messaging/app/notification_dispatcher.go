package app

import (
	"context"
	"fmt"
	"sync"
	"time"

	"realtime_messaging_service/internal/messaging/domain"
	"realtime_messaging_service/internal/messaging/repository"
	"realtime_messaging_service/pkg/logger"

	"github.com/google/uuid"
	"go.uber.org/zap"
)

// Pusher OS level push provider
type Pusher interface {
	Push(ctx context.Context, req domain.PushRequest) error
}

// NotificationDispatcher raises a notification for incoming messages addressed to the local user
type NotificationDispatcher struct {
	notifications repository.NotificationRepository
	groups        repository.GroupRepository
	feed          *repository.ChangeFeed
	pusher        Pusher
	registry      *handlerRegistry

	newID func() string
	now   func() time.Time

	mu      sync.RWMutex
	members map[string]map[string]struct{}
	active  string
}

// NewNotificationDispatcher create NotificationDispatcher; pusher may be nil
func NewNotificationDispatcher(notifications repository.NotificationRepository, groups repository.GroupRepository, feed *repository.ChangeFeed, pusher Pusher, registry *handlerRegistry) *NotificationDispatcher {
	return &NotificationDispatcher{
		notifications: notifications,
		groups:        groups,
		feed:          feed,
		pusher:        pusher,
		registry:      registry,
		newID:         func() string { return uuid.New().String() },
		now:           func() time.Time { return time.Now().UTC() },
		members:       make(map[string]map[string]struct{}),
	}
}

// HandleIncoming store a notification for self and push it unless self is viewing the conversation.
// Failures never reach the message path.
func (d *NotificationDispatcher) HandleIncoming(ctx context.Context, self string, msg domain.Message) {
	if msg.SenderID == self {
		return
	}

	n := domain.Notification{
		ID:        d.newID(),
		UserID:    self,
		Read:      false,
		CreatedAt: d.now(),
		Data: map[string]string{
			"message_id":      msg.ID,
			"sender_id":       msg.SenderID,
			"conversation_id": msg.ConversationID(self),
			"message_type":    string(msg.Type),
		},
	}

	if msg.Target.IsGroup() {
		if !d.IsMember(ctx, msg.Target.ID, self) {
			return
		}
		n.Type = domain.NotificationGroup
		n.Title = "New group message"
		n.Message = fmt.Sprintf("New %s message in a group", msg.Type)
		n.Data["group_id"] = msg.Target.ID
	} else {
		if msg.Target.ID != self {
			return
		}
		n.Type = domain.NotificationMessage
		n.Title = "New message"
		n.Message = fmt.Sprintf("New %s message", msg.Type)
	}

	if err := d.notifications.InsertNotification(ctx, &n); err != nil {
		logger.Log.Errorf("insert notification", fmt.Errorf("%w: %v", domain.ErrStoreWriteFailure, err),
			zap.String("user_id", self), zap.String("message_id", msg.ID))
		return
	}

	if d.pusher == nil || d.IsViewing(msg.ConversationID(self)) {
		return
	}
	req := domain.PushRequest{UserID: self, Title: n.Title, Body: n.Message, Data: n.Data}
	if err := d.pusher.Push(ctx, req); err != nil {
		logger.Log.Errorf("push notification", fmt.Errorf("%w: %v", domain.ErrPushDelivery, err),
			zap.String("user_id", self), zap.String("notification_id", n.ID))
	}
}

// IsMember membership of userID in groupID, cached per group for the session
func (d *NotificationDispatcher) IsMember(ctx context.Context, groupID, userID string) bool {
	d.mu.RLock()
	set, ok := d.members[groupID]
	d.mu.RUnlock()

	if !ok {
		members, err := d.groups.FindMembers(ctx, groupID)
		if err != nil {
			logger.Log.Warn("load group members", zap.String("group_id", groupID), zap.Error(err))
			return false
		}
		set = make(map[string]struct{}, len(members))
		for _, m := range members {
			set[m.UserID] = struct{}{}
		}
		d.mu.Lock()
		d.members[groupID] = set
		d.mu.Unlock()
	}

	_, member := set[userID]
	return member
}

// InvalidateGroup forget the cached membership of one group
func (d *NotificationDispatcher) InvalidateGroup(groupID string) {
	d.mu.Lock()
	defer d.mu.Unlock()
	delete(d.members, groupID)
}

// SetActiveConversation conversation currently on screen; "" for none
func (d *NotificationDispatcher) SetActiveConversation(conversationID string) {
	d.mu.Lock()
	defer d.mu.Unlock()
	d.active = conversationID
}

// IsViewing conversation is on screen
func (d *NotificationDispatcher) IsViewing(conversationID string) bool {
	d.mu.RLock()
	defer d.mu.RUnlock()
	return d.active != "" && d.active == conversationID
}

// Reset clear session state
func (d *NotificationDispatcher) Reset() {
	d.mu.Lock()
	defer d.mu.Unlock()
	d.members = make(map[string]map[string]struct{})
	d.active = ""
}

// OpenNotifications subscribe to notifications created for the session user
func (d *NotificationDispatcher) OpenNotifications(ctx context.Context, s Session) (repository.Subscription, error) {
	return d.feed.Subscribe(ctx, domain.TableNotifications, []domain.ChangeType{domain.ChangeInsert}, func(ev domain.ChangeEvent) {
		var n domain.Notification
		if err := ev.Decode(&n); err != nil {
			logger.Log.Warn("dropping undecodable notification row", zap.Error(err))
			return
		}
		if n.UserID != s.UserID {
			return
		}
		s.Deliver(func() {
			if h := d.registry.notificationHandler(); h != nil {
				h(n)
			}
		})
	})
}

// OpenMemberships keep the membership cache in step with group_members changes
func (d *NotificationDispatcher) OpenMemberships(ctx context.Context, s Session) (repository.Subscription, error) {
	return d.feed.Subscribe(ctx, domain.TableGroupMembers, nil, func(ev domain.ChangeEvent) {
		var m domain.GroupMember
		if err := ev.Decode(&m); err != nil {
			logger.Log.Warn("dropping undecodable membership row", zap.Error(err))
			return
		}
		s.Deliver(func() { d.InvalidateGroup(m.GroupID) })
	})
}

// List notifications of userID, newest first
func (d *NotificationDispatcher) List(ctx context.Context, userID string, unreadOnly bool, limit int64) ([]domain.Notification, error) {
	return d.notifications.ListNotifications(ctx, userID, unreadOnly, limit)
}

// MarkRead only the recipient can flip read
func (d *NotificationDispatcher) MarkRead(ctx context.Context, userID, notificationID string) error {
	return d.notifications.MarkNotificationRead(ctx, userID, notificationID)
}

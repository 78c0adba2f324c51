package app

import (
	"context"
	"errors"
	"fmt"
	"strings"
	"time"

	"realtime_messaging_service/internal/messaging/domain"
	"realtime_messaging_service/internal/messaging/repository"
	"realtime_messaging_service/pkg/encrypt"
	errprocess "realtime_messaging_service/pkg/err"
	"realtime_messaging_service/pkg/logger"

	"github.com/google/uuid"
	"go.uber.org/zap"
)

// Cipher envelope codec used for message content
type Cipher interface {
	Encrypt(plaintext string) (string, error)
	Decrypt(envelope string) (string, error)
	IsValidEnvelope(value string) bool
}

// IncomingObserver is told about every inserted message from another user that reached this client
type IncomingObserver interface {
	HandleIncoming(ctx context.Context, self string, msg domain.Message)
}

// MembershipChecker group membership on the delivery path; may be cached
type MembershipChecker interface {
	IsMember(ctx context.Context, groupID, userID string) bool
}

// storeMembership uncached membership straight from the group store
type storeMembership struct {
	groups repository.GroupRepository
}

func (m storeMembership) IsMember(ctx context.Context, groupID, userID string) bool {
	_, err := m.groups.FindMember(ctx, groupID, userID)
	return err == nil
}

// OutgoingMessage send request
type OutgoingMessage struct {
	SenderID string
	Target   domain.ConversationTarget
	Content  string
	Type     domain.MessageType
}

// MessageRouter encrypts outgoing messages and routes decrypted change events to conversation handlers
type MessageRouter struct {
	messages repository.MessageRepository
	groups   repository.GroupRepository
	members  MembershipChecker
	feed     *repository.ChangeFeed
	cipher   Cipher
	registry *handlerRegistry
	observer IncomingObserver

	newID func() string
	now   func() time.Time
}

// NewMessageRouter create MessageRouter; observer may be nil, a nil members reads groups directly
func NewMessageRouter(messages repository.MessageRepository, groups repository.GroupRepository, feed *repository.ChangeFeed, cipher Cipher, registry *handlerRegistry, members MembershipChecker, observer IncomingObserver) *MessageRouter {
	if members == nil && groups != nil {
		members = storeMembership{groups: groups}
	}
	return &MessageRouter{
		messages: messages,
		groups:   groups,
		members:  members,
		feed:     feed,
		cipher:   cipher,
		registry: registry,
		observer: observer,
		newID:    func() string { return uuid.New().String() },
		now:      func() time.Time { return time.Now().UTC() },
	}
}

// Send validate, encrypt and store with status sent. It does not wait for delivery.
func (r *MessageRouter) Send(ctx context.Context, msg OutgoingMessage) (*domain.Message, error) {
	if strings.TrimSpace(msg.SenderID) == "" {
		return nil, fmt.Errorf("%w: sender required", domain.ErrInvalidMessage)
	}
	if err := msg.Target.Validate(); err != nil {
		return nil, err
	}
	if msg.Type == "" {
		msg.Type = domain.MessageTypeText
	}
	if !msg.Type.Valid() {
		return nil, fmt.Errorf("%w: unknown type %q", domain.ErrInvalidMessage, msg.Type)
	}
	if msg.Content == "" {
		return nil, fmt.Errorf("%w: empty content", domain.ErrInvalidMessage)
	}
	if err := r.requireMember(ctx, msg.Target, msg.SenderID); err != nil {
		return nil, err
	}

	envelope, err := r.cipher.Encrypt(msg.Content)
	if err != nil {
		return nil, fmt.Errorf("encrypt message: %w", err)
	}

	rec := domain.NewMessageRecord(r.newID(), msg.SenderID, msg.Target, envelope, msg.Type, r.now())
	if _, err := r.messages.InsertMessage(ctx, &rec); err != nil {
		return nil, errprocess.Wrap(domain.ErrStoreWriteFailure, "insert message", err)
	}

	out, err := rec.ToMessage(msg.Content)
	if err != nil {
		return nil, err
	}
	return &out, nil
}

// UpdateStatus delivered / read receipt by self. Only the receiver of a direct message,
// or a member of the group other than the sender, may move the status.
func (r *MessageRouter) UpdateStatus(ctx context.Context, self, messageID string, status domain.MessageStatus) error {
	if messageID == "" || !status.Valid() {
		return domain.ErrInvalidStatus
	}

	rec, err := r.messages.FindMessage(ctx, messageID)
	if err != nil {
		if errors.Is(err, domain.ErrNotFound) {
			return err
		}
		return fmt.Errorf("load message: %w", err)
	}
	if err := r.canAcknowledge(ctx, self, *rec); err != nil {
		return err
	}

	_, err = r.messages.UpdateMessageStatus(ctx, messageID, status)
	switch {
	case err == nil:
		return nil
	case errors.Is(err, domain.ErrNotFound), errors.Is(err, domain.ErrInvalidStatus):
		return err
	default:
		return errprocess.Wrap(domain.ErrStoreWriteFailure, "update message status", err)
	}
}

// History decrypted messages of a conversation, oldest first
func (r *MessageRouter) History(ctx context.Context, self string, target domain.ConversationTarget, before time.Time, limit int64) ([]domain.Message, error) {
	if err := target.Validate(); err != nil {
		return nil, err
	}
	if err := r.requireMember(ctx, target, self); err != nil {
		return nil, err
	}
	records, err := r.messages.QueryMessages(ctx, domain.ConversationFilter{
		Self:   self,
		Target: target,
		Before: before,
		Limit:  limit,
	})
	if err != nil {
		return nil, err
	}

	out := make([]domain.Message, 0, len(records))
	for _, rec := range records {
		msg, ok := r.open(rec)
		if !ok {
			continue
		}
		out = append(out, msg)
	}
	return out, nil
}

// Open subscribe to message inserts and updates for a session
func (r *MessageRouter) Open(ctx context.Context, s Session) (repository.Subscription, error) {
	types := []domain.ChangeType{domain.ChangeInsert, domain.ChangeUpdate}
	return r.feed.Subscribe(ctx, domain.TableMessages, types, func(ev domain.ChangeEvent) {
		s.Deliver(func() { r.HandleChange(ctx, s.UserID, ev) })
	})
}

// HandleChange route one messages row change as seen by self
func (r *MessageRouter) HandleChange(ctx context.Context, self string, ev domain.ChangeEvent) {
	var rec domain.MessageRecord
	if err := ev.Decode(&rec); err != nil {
		logger.Log.Warn("dropping undecodable message row", zap.Error(err))
		return
	}

	target, err := rec.Target()
	if err != nil {
		logger.Log.Warn("dropping malformed message row", zap.String("message_id", rec.ID), zap.Error(err))
		return
	}
	// 先確認可見, 不是自己的訊息不解密
	if !r.visible(ctx, self, rec.SenderID, target) {
		return
	}

	switch ev.Type {
	case domain.ChangeInsert:
		msg, ok := r.open(rec)
		if !ok {
			return
		}
		conversationID := msg.ConversationID(self)
		r.dispatch(conversationID, domain.MessageEvent{
			Kind:           domain.ChangeInsert,
			ConversationID: conversationID,
			Message:        &msg,
		})
		if msg.SenderID != self && r.observer != nil {
			r.observer.HandleIncoming(ctx, self, msg)
		}

	case domain.ChangeUpdate:
		msg := domain.Message{ID: rec.ID, SenderID: rec.SenderID, Target: target}
		conversationID := msg.ConversationID(self)
		r.dispatch(conversationID, domain.MessageEvent{
			Kind:           domain.ChangeUpdate,
			ConversationID: conversationID,
			Status: &domain.StatusUpdate{
				MessageID: rec.ID,
				Status:    rec.Status,
				UpdatedAt: rec.UpdatedAt,
			},
		})
	}
}

// visible group rows need membership; direct rows between two other users are not ours
func (r *MessageRouter) visible(ctx context.Context, self, senderID string, target domain.ConversationTarget) bool {
	if target.IsGroup() {
		return r.members != nil && r.members.IsMember(ctx, target.ID, self)
	}
	return domain.Message{SenderID: senderID, Target: target}.Involves(self)
}

// requireMember group targets need self in the group
func (r *MessageRouter) requireMember(ctx context.Context, target domain.ConversationTarget, userID string) error {
	if !target.IsGroup() {
		return nil
	}
	if r.groups == nil {
		return domain.ErrNotGroupMember
	}
	_, err := r.groups.FindMember(ctx, target.ID, userID)
	switch {
	case err == nil:
		return nil
	case errors.Is(err, domain.ErrNotGroupMember), errors.Is(err, domain.ErrNotFound):
		return domain.ErrNotGroupMember
	default:
		return fmt.Errorf("load group member: %w", err)
	}
}

// canAcknowledge the sender never acknowledges its own message
func (r *MessageRouter) canAcknowledge(ctx context.Context, self string, rec domain.MessageRecord) error {
	if self == "" || rec.SenderID == self {
		return domain.ErrNotRecipient
	}
	target, err := rec.Target()
	if err != nil {
		return err
	}
	if !target.IsGroup() {
		if target.ID != self {
			return domain.ErrNotRecipient
		}
		return nil
	}
	if err := r.requireMember(ctx, target, self); err != nil {
		if errors.Is(err, domain.ErrNotGroupMember) {
			return domain.ErrNotRecipient
		}
		return err
	}
	return nil
}

// open decrypt a stored row. Plaintext rows pass through; rows that carry the envelope
// prefix but cannot be opened, malformed ones included, carry UndecryptableContent.
func (r *MessageRouter) open(rec domain.MessageRecord) (domain.Message, bool) {
	content := rec.Content
	undecryptable := false

	switch {
	case r.cipher.IsValidEnvelope(content):
		plain, err := r.cipher.Decrypt(content)
		if err != nil {
			logger.Log.Warn("message content undecryptable",
				zap.String("message_id", rec.ID),
				zap.Error(fmt.Errorf("%w: %v", domain.ErrDecryption, err)),
			)
			content = domain.UndecryptableContent
			undecryptable = true
		} else {
			content = plain
		}
	case strings.HasPrefix(content, encrypt.EnvelopePrefix):
		logger.Log.Warn("message content is a malformed envelope",
			zap.String("message_id", rec.ID),
			zap.Error(domain.ErrDecryption),
		)
		content = domain.UndecryptableContent
		undecryptable = true
	}

	msg, err := rec.ToMessage(content)
	if err != nil {
		logger.Log.Warn("dropping malformed message row", zap.String("message_id", rec.ID), zap.Error(err))
		return domain.Message{}, false
	}
	msg.Undecryptable = undecryptable
	return msg, true
}

func (r *MessageRouter) dispatch(conversationID string, ev domain.MessageEvent) {
	if h, ok := r.registry.message(conversationID); ok {
		h(ev)
	}
}

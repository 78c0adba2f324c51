package app

import (
	"context"
	"fmt"
	"io"
	"time"

	"realtime_messaging_service/internal/messaging/domain"
	"realtime_messaging_service/internal/messaging/repository"
	"realtime_messaging_service/pkg/logger"

	"go.uber.org/zap"
)

// ServiceConfig tunables of one Service
type ServiceConfig struct {
	Channel       ChannelManagerConfig
	TypingTTL     time.Duration
	PresignExpiry time.Duration
}

// Deps collaborators of a Service. Pusher, Devices and Attachments are optional.
type Deps struct {
	PubSub        repository.PubSub
	Messages      repository.MessageRepository
	Groups        repository.GroupRepository
	Notifications repository.NotificationRepository
	Presence      repository.PresenceRepository
	Devices       repository.DeviceRepository
	Attachments   repository.AttachmentStorage
	Cipher        Cipher
	Pusher        Pusher
	Config        ServiceConfig
}

// Service is the messaging client of one user: construct it at start-up and pass it to whoever needs it
type Service struct {
	manager     *ChannelManager
	registry    *handlerRegistry
	router      *MessageRouter
	presence    *PresenceBroadcaster
	dispatcher  *NotificationDispatcher
	groups      *GroupUseCase
	attachments *AttachmentUseCase
	devices     repository.DeviceRepository
}

// NewService wire the components
func NewService(d Deps) *Service {
	feed := repository.NewChangeFeed(d.PubSub)
	registry := newHandlerRegistry()

	dispatcher := NewNotificationDispatcher(d.Notifications, d.Groups, feed, d.Pusher, registry)
	router := NewMessageRouter(d.Messages, d.Groups, feed, d.Cipher, registry, dispatcher, dispatcher)
	presence := NewPresenceBroadcaster(d.Presence, feed, d.PubSub, registry, NewTypingTracker(d.Config.TypingTTL))

	manager := NewChannelManager(d.Config.Channel)
	manager.Bind("messages", router.Open)
	manager.Bind("presence", presence.OpenPresence)
	manager.Bind("typing", presence.OpenTyping)
	manager.Bind("notifications", dispatcher.OpenNotifications)
	manager.Bind("memberships", dispatcher.OpenMemberships)

	s := &Service{
		manager:    manager,
		registry:   registry,
		router:     router,
		presence:   presence,
		dispatcher: dispatcher,
		groups:     NewGroupUseCase(d.Groups, dispatcher.InvalidateGroup),
		devices:    d.Devices,
	}
	if d.Attachments != nil {
		s.attachments = NewAttachmentUseCase(d.Attachments, d.Config.PresignExpiry)
	}
	return s
}

// Initialize open every topic for userID and mark the user online
func (s *Service) Initialize(ctx context.Context, userID string) error {
	if err := s.manager.Initialize(ctx, userID); err != nil {
		return err
	}
	if err := s.presence.UpdateStatus(ctx, userID, domain.UserStatusOnline); err != nil {
		logger.Log.Warn("set online", zap.String("user_id", userID), zap.Error(err))
	}
	return nil
}

// Disconnect close every topic, clear every handler, and mark the user offline
func (s *Service) Disconnect(ctx context.Context) {
	userID, had := s.manager.CurrentUserID()

	s.manager.Disconnect()
	s.registry.clear()
	s.presence.Reset()
	s.dispatcher.Reset()

	if had {
		if err := s.presence.UpdateStatus(ctx, userID, domain.UserStatusOffline); err != nil {
			logger.Log.Warn("set offline", zap.String("user_id", userID), zap.Error(err))
		}
	}
}

// IsConnectedToTransport every topic is open
func (s *Service) IsConnectedToTransport() bool {
	return s.manager.IsConnected()
}

// State connection state
func (s *Service) State() ConnectionState {
	return s.manager.State()
}

// LastError last connect failure; wraps ErrTransportUnavailable once unreachable
func (s *Service) LastError() error {
	return s.manager.LastError()
}

// OnStateChange observe connection state
func (s *Service) OnStateChange(listener func(ConnectionState)) {
	s.manager.OnStateChange(listener)
}

// CurrentUserID user of the running session
func (s *Service) CurrentUserID() (string, bool) {
	return s.manager.CurrentUserID()
}

// Send store an encrypted message; independent of the transport state.
// With a running session the sender is the session user.
func (s *Service) Send(ctx context.Context, msg OutgoingMessage) (*domain.Message, error) {
	sender, err := s.sender(msg.SenderID)
	if err != nil {
		return nil, err
	}
	msg.SenderID = sender
	return s.router.Send(ctx, msg)
}

// SendMessage two-field form: exactly one of receiverID / groupID
func (s *Service) SendMessage(ctx context.Context, senderID, content, receiverID, groupID string, msgType domain.MessageType) (*domain.Message, error) {
	target, err := domain.NewTarget(receiverID, groupID)
	if err != nil {
		return nil, err
	}
	return s.Send(ctx, OutgoingMessage{SenderID: senderID, Target: target, Content: content, Type: msgType})
}

// OnMessage handler for a conversation id (peer id or group id); replaces any previous one
func (s *Service) OnMessage(conversationID string, h MessageHandler) {
	s.registry.setMessage(conversationID, h)
}

// OffMessage remove the handler of a conversation
func (s *Service) OffMessage(conversationID string) {
	s.registry.removeMessage(conversationID)
}

// OnTyping handler for typing in a conversation; replaces any previous one
func (s *Service) OnTyping(conversationID string, h TypingHandler) {
	s.registry.setTyping(conversationID, h)
}

// OffTyping remove the typing handler of a conversation
func (s *Service) OffTyping(conversationID string) {
	s.registry.removeTyping(conversationID)
}

// OnUserStatus the single presence handler
func (s *Service) OnUserStatus(h StatusHandler) {
	s.registry.setStatus(h)
}

// OnNotification the single notification handler
func (s *Service) OnNotification(h NotificationHandler) {
	s.registry.setNotification(h)
}

// SendTyping publish typing state of the current user
func (s *Service) SendTyping(ctx context.Context, target domain.ConversationTarget, isTyping bool) error {
	self, err := s.self()
	if err != nil {
		return err
	}
	return s.presence.SendTyping(ctx, self, target, isTyping)
}

// IsTyping userID is typing in the conversation and the indicator is still fresh
func (s *Service) IsTyping(conversationID, userID string) bool {
	return s.presence.IsTyping(conversationID, userID)
}

// UpdateStatus persist presence of userID
func (s *Service) UpdateStatus(ctx context.Context, userID string, status domain.UserStatus) error {
	return s.presence.UpdateStatus(ctx, userID, status)
}

// UserStatus last known presence of userID
func (s *Service) UserStatus(ctx context.Context, userID string) (*domain.PresenceStatus, error) {
	return s.presence.Status(ctx, userID)
}

// MarkDelivered delivery receipt of the current user
func (s *Service) MarkDelivered(ctx context.Context, messageID string) error {
	self, err := s.self()
	if err != nil {
		return err
	}
	return s.router.UpdateStatus(ctx, self, messageID, domain.MessageStatusDelivered)
}

// MarkRead read receipt of the current user
func (s *Service) MarkRead(ctx context.Context, messageID string) error {
	self, err := s.self()
	if err != nil {
		return err
	}
	return s.router.UpdateStatus(ctx, self, messageID, domain.MessageStatusRead)
}

// History decrypted messages of a conversation of the current user, oldest first
func (s *Service) History(ctx context.Context, target domain.ConversationTarget, before time.Time, limit int64) ([]domain.Message, error) {
	self, err := s.self()
	if err != nil {
		return nil, err
	}
	return s.router.History(ctx, self, target, before, limit)
}

// SetActiveConversation conversation on screen; no push is sent for it
func (s *Service) SetActiveConversation(conversationID string) {
	s.dispatcher.SetActiveConversation(conversationID)
}

// Notifications of the current user, newest first
func (s *Service) Notifications(ctx context.Context, unreadOnly bool, limit int64) ([]domain.Notification, error) {
	self, err := s.self()
	if err != nil {
		return nil, err
	}
	return s.dispatcher.List(ctx, self, unreadOnly, limit)
}

// MarkNotificationRead flip read on a notification of the current user
func (s *Service) MarkNotificationRead(ctx context.Context, notificationID string) error {
	self, err := s.self()
	if err != nil {
		return err
	}
	return s.dispatcher.MarkRead(ctx, self, notificationID)
}

// CreateGroup current user becomes admin
func (s *Service) CreateGroup(ctx context.Context, name string, memberIDs []string) (*domain.Group, error) {
	self, err := s.self()
	if err != nil {
		return nil, err
	}
	return s.groups.CreateGroup(ctx, self, name, memberIDs)
}

// AddGroupMember admin only
func (s *Service) AddGroupMember(ctx context.Context, groupID, userID string) error {
	self, err := s.self()
	if err != nil {
		return err
	}
	return s.groups.AddMember(ctx, self, groupID, userID)
}

// RemoveGroupMember admin only, or yourself
func (s *Service) RemoveGroupMember(ctx context.Context, groupID, userID string) error {
	self, err := s.self()
	if err != nil {
		return err
	}
	return s.groups.RemoveMember(ctx, self, groupID, userID)
}

// SetGroupRole admin only
func (s *Service) SetGroupRole(ctx context.Context, groupID, userID string, role domain.GroupRole) error {
	self, err := s.self()
	if err != nil {
		return err
	}
	return s.groups.SetRole(ctx, self, groupID, userID, role)
}

// LeaveGroup current user leaves
func (s *Service) LeaveGroup(ctx context.Context, groupID string) error {
	self, err := s.self()
	if err != nil {
		return err
	}
	return s.groups.Leave(ctx, groupID, self)
}

// GroupMembers members of a group the current user is in
func (s *Service) GroupMembers(ctx context.Context, groupID string) ([]domain.GroupMember, error) {
	self, err := s.self()
	if err != nil {
		return nil, err
	}
	return s.groups.Members(ctx, self, groupID)
}

// RegisterDevice push token of the current user
func (s *Service) RegisterDevice(ctx context.Context, token, platform string) error {
	self, err := s.self()
	if err != nil {
		return err
	}
	if s.devices == nil || token == "" {
		return domain.ErrInvalidMessage
	}
	return s.devices.RegisterDevice(ctx, &domain.Device{
		Token:     token,
		UserID:    self,
		Platform:  platform,
		Active:    true,
		UpdatedAt: time.Now().UTC(),
	})
}

// UploadAttachment store a payload; send its key as the content of an image / file / voice message
func (s *Service) UploadAttachment(ctx context.Context, fileName, contentType string, size int64, r io.Reader) (*Attachment, error) {
	self, err := s.self()
	if err != nil {
		return nil, err
	}
	if s.attachments == nil {
		return nil, domain.ErrStoreWriteFailure
	}
	return s.attachments.Upload(ctx, self, fileName, contentType, size, r)
}

// AttachmentURL presigned download URL
func (s *Service) AttachmentURL(ctx context.Context, key string) (string, error) {
	if s.attachments == nil {
		return "", domain.ErrNotFound
	}
	return s.attachments.DownloadURL(ctx, key)
}

// sender empty takes the session user; anyone else is rejected while a session runs
func (s *Service) sender(claimed string) (string, error) {
	self, ok := s.manager.CurrentUserID()
	if !ok {
		return claimed, nil
	}
	if claimed != "" && claimed != self {
		return "", fmt.Errorf("%w: sender %q is not the session user", domain.ErrInvalidMessage, claimed)
	}
	return self, nil
}

func (s *Service) self() (string, error) {
	if id, ok := s.manager.CurrentUserID(); ok {
		return id, nil
	}
	return "", domain.ErrNotInitialized
}

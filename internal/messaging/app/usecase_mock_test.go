package app

import (
	"context"
	"io"
	"time"

	"realtime_messaging_service/internal/messaging/domain"

	"firebase.google.com/go/v4/messaging"
	"github.com/stretchr/testify/mock"
)

// MockMessageRepository Mock MessageRepository
type MockMessageRepository struct {
	mock.Mock
}

// InsertMessage moke insert message
func (m *MockMessageRepository) InsertMessage(ctx context.Context, rec *domain.MessageRecord) (string, error) {
	args := m.Called(ctx, rec)
	return args.String(0), args.Error(1)
}

// FindMessage moke find message
func (m *MockMessageRepository) FindMessage(ctx context.Context, messageID string) (*domain.MessageRecord, error) {
	args := m.Called(ctx, messageID)
	if args.Get(0) != nil {
		return args.Get(0).(*domain.MessageRecord), args.Error(1)
	}
	return nil, args.Error(1)
}

// UpdateMessageStatus moke update status
func (m *MockMessageRepository) UpdateMessageStatus(ctx context.Context, messageID string, status domain.MessageStatus) (*domain.MessageRecord, error) {
	args := m.Called(ctx, messageID, status)
	if args.Get(0) != nil {
		return args.Get(0).(*domain.MessageRecord), args.Error(1)
	}
	return nil, args.Error(1)
}

// QueryMessages moke query conversation
func (m *MockMessageRepository) QueryMessages(ctx context.Context, filter domain.ConversationFilter) ([]domain.MessageRecord, error) {
	args := m.Called(ctx, filter)
	if args.Get(0) != nil {
		return args.Get(0).([]domain.MessageRecord), args.Error(1)
	}
	return nil, args.Error(1)
}

// MockGroupRepository Mock GroupRepository
type MockGroupRepository struct {
	mock.Mock
}

// CreateGroup moke create group
func (m *MockGroupRepository) CreateGroup(ctx context.Context, group *domain.Group, members []domain.GroupMember) error {
	args := m.Called(ctx, group, members)
	return args.Error(0)
}

// FindGroup moke find group
func (m *MockGroupRepository) FindGroup(ctx context.Context, groupID string) (*domain.Group, error) {
	args := m.Called(ctx, groupID)
	if args.Get(0) != nil {
		return args.Get(0).(*domain.Group), args.Error(1)
	}
	return nil, args.Error(1)
}

// FindMembers moke find members
func (m *MockGroupRepository) FindMembers(ctx context.Context, groupID string) ([]domain.GroupMember, error) {
	args := m.Called(ctx, groupID)
	if args.Get(0) != nil {
		return args.Get(0).([]domain.GroupMember), args.Error(1)
	}
	return nil, args.Error(1)
}

// FindMember moke find member
func (m *MockGroupRepository) FindMember(ctx context.Context, groupID, userID string) (*domain.GroupMember, error) {
	args := m.Called(ctx, groupID, userID)
	if args.Get(0) != nil {
		return args.Get(0).(*domain.GroupMember), args.Error(1)
	}
	return nil, args.Error(1)
}

// AddMember moke add member
func (m *MockGroupRepository) AddMember(ctx context.Context, member *domain.GroupMember) error {
	args := m.Called(ctx, member)
	return args.Error(0)
}

// RemoveMember moke remove member
func (m *MockGroupRepository) RemoveMember(ctx context.Context, groupID, userID string) error {
	args := m.Called(ctx, groupID, userID)
	return args.Error(0)
}

// UpdateRole moke update role
func (m *MockGroupRepository) UpdateRole(ctx context.Context, groupID, userID string, role domain.GroupRole) error {
	args := m.Called(ctx, groupID, userID, role)
	return args.Error(0)
}

// MockNotificationRepository Mock NotificationRepository
type MockNotificationRepository struct {
	mock.Mock
}

// InsertNotification moke insert notification
func (m *MockNotificationRepository) InsertNotification(ctx context.Context, n *domain.Notification) error {
	args := m.Called(ctx, n)
	return args.Error(0)
}

// ListNotifications moke list notifications
func (m *MockNotificationRepository) ListNotifications(ctx context.Context, userID string, unreadOnly bool, limit int64) ([]domain.Notification, error) {
	args := m.Called(ctx, userID, unreadOnly, limit)
	if args.Get(0) != nil {
		return args.Get(0).([]domain.Notification), args.Error(1)
	}
	return nil, args.Error(1)
}

// MarkNotificationRead moke mark read
func (m *MockNotificationRepository) MarkNotificationRead(ctx context.Context, userID, notificationID string) error {
	args := m.Called(ctx, userID, notificationID)
	return args.Error(0)
}

// MockPresenceRepository Mock PresenceRepository
type MockPresenceRepository struct {
	mock.Mock
}

// UpdateStatus moke update presence
func (m *MockPresenceRepository) UpdateStatus(ctx context.Context, userID string, status domain.UserStatus, lastSeen time.Time) error {
	args := m.Called(ctx, userID, status, lastSeen)
	return args.Error(0)
}

// FindStatus moke find presence
func (m *MockPresenceRepository) FindStatus(ctx context.Context, userID string) (*domain.PresenceStatus, error) {
	args := m.Called(ctx, userID)
	if args.Get(0) != nil {
		return args.Get(0).(*domain.PresenceStatus), args.Error(1)
	}
	return nil, args.Error(1)
}

// MockDeviceRepository Mock DeviceRepository
type MockDeviceRepository struct {
	mock.Mock
}

// RegisterDevice moke register device
func (m *MockDeviceRepository) RegisterDevice(ctx context.Context, device *domain.Device) error {
	args := m.Called(ctx, device)
	return args.Error(0)
}

// ActiveDevices moke active devices
func (m *MockDeviceRepository) ActiveDevices(ctx context.Context, userID string) ([]domain.Device, error) {
	args := m.Called(ctx, userID)
	if args.Get(0) != nil {
		return args.Get(0).([]domain.Device), args.Error(1)
	}
	return nil, args.Error(1)
}

// DeactivateDevice moke deactivate device
func (m *MockDeviceRepository) DeactivateDevice(ctx context.Context, token string) error {
	args := m.Called(ctx, token)
	return args.Error(0)
}

// MockAttachmentStorage Mock AttachmentStorage
type MockAttachmentStorage struct {
	mock.Mock
}

// PutObject moke put object
func (m *MockAttachmentStorage) PutObject(ctx context.Context, objectName string, r io.Reader, size int64, contentType string) error {
	args := m.Called(ctx, objectName, r, size, contentType)
	return args.Error(0)
}

// RemoveObject moke remove object
func (m *MockAttachmentStorage) RemoveObject(ctx context.Context, objectName string) error {
	args := m.Called(ctx, objectName)
	return args.Error(0)
}

// PresignGetURL moke presign
func (m *MockAttachmentStorage) PresignGetURL(ctx context.Context, objectName string, expiry time.Duration) (string, error) {
	args := m.Called(ctx, objectName, expiry)
	return args.String(0), args.Error(1)
}

// MockPusher Mock Pusher
type MockPusher struct {
	mock.Mock
}

// Push moke push
func (m *MockPusher) Push(ctx context.Context, req domain.PushRequest) error {
	args := m.Called(ctx, req)
	return args.Error(0)
}

// MockFCMSender Mock FCMSender
type MockFCMSender struct {
	mock.Mock
}

// SendEachForMulticast moke fcm multicast
func (m *MockFCMSender) SendEachForMulticast(ctx context.Context, message *messaging.MulticastMessage) (*messaging.BatchResponse, error) {
	args := m.Called(ctx, message)
	if args.Get(0) != nil {
		return args.Get(0).(*messaging.BatchResponse), args.Error(1)
	}
	return nil, args.Error(1)
}

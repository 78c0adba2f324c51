package repository

import (
	"context"
	"sort"
	"sync"
	"time"

	"realtime_messaging_service/internal/messaging/domain"
)

// MemoryStore in-process store implementing every repository, with the same change events as mongo
type MemoryStore struct {
	mu            sync.RWMutex
	feed          *ChangeFeed
	messages      map[string]domain.MessageRecord
	groups        map[string]domain.Group
	members       map[string]map[string]domain.GroupMember
	notifications map[string]domain.Notification
	presence      map[string]domain.PresenceStatus
	devices       map[string]domain.Device

	// WriteErr when set fails every write
	WriteErr error
}

var (
	_ MessageRepository      = (*MemoryStore)(nil)
	_ GroupRepository        = (*MemoryStore)(nil)
	_ NotificationRepository = (*MemoryStore)(nil)
	_ PresenceRepository     = (*MemoryStore)(nil)
	_ DeviceRepository       = (*MemoryStore)(nil)
)

// NewMemoryStore create MemoryStore; feed may be nil
func NewMemoryStore(feed *ChangeFeed) *MemoryStore {
	return &MemoryStore{
		feed:          feed,
		messages:      make(map[string]domain.MessageRecord),
		groups:        make(map[string]domain.Group),
		members:       make(map[string]map[string]domain.GroupMember),
		notifications: make(map[string]domain.Notification),
		presence:      make(map[string]domain.PresenceStatus),
		devices:       make(map[string]domain.Device),
	}
}

// InsertMessage store a message row
func (s *MemoryStore) InsertMessage(ctx context.Context, rec *domain.MessageRecord) (string, error) {
	if s.WriteErr != nil {
		return "", s.WriteErr
	}
	s.mu.Lock()
	s.messages[rec.ID] = *rec
	s.mu.Unlock()

	emitRow(ctx, s.feed, domain.TableMessages, domain.ChangeInsert, rec)
	return rec.ID, nil
}

// FindMessage message row by id
func (s *MemoryStore) FindMessage(_ context.Context, messageID string) (*domain.MessageRecord, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()
	rec, ok := s.messages[messageID]
	if !ok {
		return nil, domain.ErrNotFound
	}
	return &rec, nil
}

// UpdateMessageStatus forward only status change
func (s *MemoryStore) UpdateMessageStatus(ctx context.Context, messageID string, status domain.MessageStatus) (*domain.MessageRecord, error) {
	if s.WriteErr != nil {
		return nil, s.WriteErr
	}
	if !status.Valid() {
		return nil, domain.ErrInvalidStatus
	}

	s.mu.Lock()
	rec, ok := s.messages[messageID]
	if !ok {
		s.mu.Unlock()
		return nil, domain.ErrNotFound
	}
	if !rec.Status.CanTransitionTo(status) {
		s.mu.Unlock()
		return nil, domain.ErrInvalidStatus
	}
	rec.Status = status
	rec.UpdatedAt = time.Now().UTC()
	s.messages[messageID] = rec
	s.mu.Unlock()

	emitRow(ctx, s.feed, domain.TableMessages, domain.ChangeUpdate, &rec)
	return &rec, nil
}

// QueryMessages conversation history, oldest first
func (s *MemoryStore) QueryMessages(_ context.Context, f domain.ConversationFilter) ([]domain.MessageRecord, error) {
	s.mu.RLock()
	var out []domain.MessageRecord
	for _, rec := range s.messages {
		if !matchConversation(rec, f) {
			continue
		}
		if !f.Before.IsZero() && !rec.CreatedAt.Before(f.Before) {
			continue
		}
		out = append(out, rec)
	}
	s.mu.RUnlock()

	sort.Slice(out, func(i, j int) bool { return out[i].CreatedAt.Before(out[j].CreatedAt) })
	if f.Limit > 0 && int64(len(out)) > f.Limit {
		out = out[int64(len(out))-f.Limit:]
	}
	return out, nil
}

func matchConversation(rec domain.MessageRecord, f domain.ConversationFilter) bool {
	if f.Target.IsGroup() {
		return rec.GroupID == f.Target.ID
	}
	if rec.GroupID != "" {
		return false
	}
	return (rec.SenderID == f.Self && rec.ReceiverID == f.Target.ID) ||
		(rec.SenderID == f.Target.ID && rec.ReceiverID == f.Self)
}

// CreateGroup store group and members
func (s *MemoryStore) CreateGroup(ctx context.Context, group *domain.Group, members []domain.GroupMember) error {
	if s.WriteErr != nil {
		return s.WriteErr
	}
	s.mu.Lock()
	s.groups[group.ID] = *group
	s.mu.Unlock()
	emitRow(ctx, s.feed, domain.TableGroups, domain.ChangeInsert, group)

	for i := range members {
		if err := s.AddMember(ctx, &members[i]); err != nil {
			return err
		}
	}
	return nil
}

// FindGroup find group
func (s *MemoryStore) FindGroup(_ context.Context, groupID string) (*domain.Group, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()
	g, ok := s.groups[groupID]
	if !ok {
		return nil, domain.ErrNotFound
	}
	return &g, nil
}

// FindMembers members of group
func (s *MemoryStore) FindMembers(_ context.Context, groupID string) ([]domain.GroupMember, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()
	out := make([]domain.GroupMember, 0, len(s.members[groupID]))
	for _, m := range s.members[groupID] {
		out = append(out, m)
	}
	sort.Slice(out, func(i, j int) bool { return out[i].UserID < out[j].UserID })
	return out, nil
}

// FindMember one membership
func (s *MemoryStore) FindMember(_ context.Context, groupID, userID string) (*domain.GroupMember, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()
	m, ok := s.members[groupID][userID]
	if !ok {
		return nil, domain.ErrNotGroupMember
	}
	return &m, nil
}

// AddMember upsert membership
func (s *MemoryStore) AddMember(ctx context.Context, member *domain.GroupMember) error {
	if s.WriteErr != nil {
		return s.WriteErr
	}
	s.mu.Lock()
	if s.members[member.GroupID] == nil {
		s.members[member.GroupID] = make(map[string]domain.GroupMember)
	}
	_, existed := s.members[member.GroupID][member.UserID]
	s.members[member.GroupID][member.UserID] = *member
	s.mu.Unlock()

	changeType := domain.ChangeInsert
	if existed {
		changeType = domain.ChangeUpdate
	}
	emitRow(ctx, s.feed, domain.TableGroupMembers, changeType, member)
	return nil
}

// RemoveMember delete membership
func (s *MemoryStore) RemoveMember(ctx context.Context, groupID, userID string) error {
	if s.WriteErr != nil {
		return s.WriteErr
	}
	s.mu.Lock()
	if _, ok := s.members[groupID][userID]; !ok {
		s.mu.Unlock()
		return domain.ErrNotGroupMember
	}
	delete(s.members[groupID], userID)
	s.mu.Unlock()

	emitRow(ctx, s.feed, domain.TableGroupMembers, domain.ChangeDelete, domain.GroupMember{GroupID: groupID, UserID: userID})
	return nil
}

// UpdateRole change role
func (s *MemoryStore) UpdateRole(ctx context.Context, groupID, userID string, role domain.GroupRole) error {
	if s.WriteErr != nil {
		return s.WriteErr
	}
	s.mu.Lock()
	m, ok := s.members[groupID][userID]
	if !ok {
		s.mu.Unlock()
		return domain.ErrNotGroupMember
	}
	m.Role = role
	s.members[groupID][userID] = m
	s.mu.Unlock()

	emitRow(ctx, s.feed, domain.TableGroupMembers, domain.ChangeUpdate, &m)
	return nil
}

// InsertNotification store notification
func (s *MemoryStore) InsertNotification(ctx context.Context, n *domain.Notification) error {
	if s.WriteErr != nil {
		return s.WriteErr
	}
	s.mu.Lock()
	s.notifications[n.ID] = *n
	s.mu.Unlock()

	emitRow(ctx, s.feed, domain.TableNotifications, domain.ChangeInsert, n)
	return nil
}

// ListNotifications newest first
func (s *MemoryStore) ListNotifications(_ context.Context, userID string, unreadOnly bool, limit int64) ([]domain.Notification, error) {
	s.mu.RLock()
	var out []domain.Notification
	for _, n := range s.notifications {
		if n.UserID != userID || (unreadOnly && n.Read) {
			continue
		}
		out = append(out, n)
	}
	s.mu.RUnlock()

	sort.Slice(out, func(i, j int) bool { return out[i].CreatedAt.After(out[j].CreatedAt) })
	if limit > 0 && int64(len(out)) > limit {
		out = out[:limit]
	}
	return out, nil
}

// MarkNotificationRead recipient only
func (s *MemoryStore) MarkNotificationRead(ctx context.Context, userID, notificationID string) error {
	if s.WriteErr != nil {
		return s.WriteErr
	}
	s.mu.Lock()
	n, ok := s.notifications[notificationID]
	if !ok || n.UserID != userID {
		s.mu.Unlock()
		return domain.ErrNotFound
	}
	n.Read = true
	s.notifications[notificationID] = n
	s.mu.Unlock()

	emitRow(ctx, s.feed, domain.TableNotifications, domain.ChangeUpdate, &n)
	return nil
}

// UpdateStatus upsert presence
func (s *MemoryStore) UpdateStatus(ctx context.Context, userID string, status domain.UserStatus, lastSeen time.Time) error {
	if s.WriteErr != nil {
		return s.WriteErr
	}
	row := domain.PresenceStatus{UserID: userID, Status: status, LastSeen: lastSeen}
	s.mu.Lock()
	s.presence[userID] = row
	s.mu.Unlock()

	emitRow(ctx, s.feed, domain.TableUsers, domain.ChangeUpdate, &row)
	return nil
}

// FindStatus presence row
func (s *MemoryStore) FindStatus(_ context.Context, userID string) (*domain.PresenceStatus, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()
	row, ok := s.presence[userID]
	if !ok {
		return nil, domain.ErrNotFound
	}
	return &row, nil
}

// RegisterDevice upsert by token
func (s *MemoryStore) RegisterDevice(_ context.Context, device *domain.Device) error {
	if s.WriteErr != nil {
		return s.WriteErr
	}
	s.mu.Lock()
	defer s.mu.Unlock()
	s.devices[device.Token] = *device
	return nil
}

// ActiveDevices active tokens of user
func (s *MemoryStore) ActiveDevices(_ context.Context, userID string) ([]domain.Device, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()
	var out []domain.Device
	for _, d := range s.devices {
		if d.UserID == userID && d.Active {
			out = append(out, d)
		}
	}
	sort.Slice(out, func(i, j int) bool { return out[i].Token < out[j].Token })
	return out, nil
}

// DeactivateDevice mark token inactive
func (s *MemoryStore) DeactivateDevice(_ context.Context, token string) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	if d, ok := s.devices[token]; ok {
		d.Active = false
		d.UpdatedAt = time.Now().UTC()
		s.devices[token] = d
	}
	return nil
}

// Notifications every notification of user, for assertions
func (s *MemoryStore) Notifications(userID string) []domain.Notification {
	list, _ := s.ListNotifications(context.Background(), userID, false, 0)
	return list
}

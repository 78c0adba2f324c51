//go:build integration

package repository

import (
	"context"
	"testing"
	"time"

	"realtime_messaging_service/internal/messaging/domain"

	"github.com/google/uuid"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestMongoMessageRepository_InsertQueryAndStatus(t *testing.T) {
	ctx := context.Background()
	feed := NewChangeFeed(NewMemoryPubSub())
	repo := NewMongoMessageRepository(mongoDB.Database, feed)

	events := make(chan domain.ChangeEvent, 4)
	sub, err := feed.Subscribe(ctx, domain.TableMessages, nil, func(ev domain.ChangeEvent) { events <- ev })
	require.NoError(t, err)
	defer sub.Close()

	a, b := uuid.NewString(), uuid.NewString()
	base := time.Now().UTC().Truncate(time.Millisecond)
	for i, content := range []string{"first", "second", "third"} {
		rec := domain.NewMessageRecord(uuid.NewString(), a, domain.DirectTarget(b), content, domain.MessageTypeText, base.Add(time.Duration(i)*time.Second))
		_, err := repo.InsertMessage(ctx, &rec)
		require.NoError(t, err)
	}

	// 從 b 的角度查詢同一段對話
	got, err := repo.QueryMessages(ctx, domain.ConversationFilter{Self: b, Target: domain.DirectTarget(a), Limit: 2})
	require.NoError(t, err)
	require.Len(t, got, 2)
	assert.Equal(t, "second", got[0].Content)
	assert.Equal(t, "third", got[1].Content)

	got, err = repo.QueryMessages(ctx, domain.ConversationFilter{Self: a, Target: domain.DirectTarget(b), Before: base.Add(time.Second)})
	require.NoError(t, err)
	require.Len(t, got, 1)
	assert.Equal(t, "first", got[0].Content)

	id := got[0].ID
	found, err := repo.FindMessage(ctx, id)
	require.NoError(t, err)
	assert.Equal(t, b, found.ReceiverID)
	_, err = repo.FindMessage(ctx, "missing")
	assert.ErrorIs(t, err, domain.ErrNotFound)

	updated, err := repo.UpdateMessageStatus(ctx, id, domain.MessageStatusRead)
	require.NoError(t, err)
	assert.Equal(t, domain.MessageStatusRead, updated.Status)

	_, err = repo.UpdateMessageStatus(ctx, id, domain.MessageStatusDelivered)
	assert.ErrorIs(t, err, domain.ErrInvalidStatus)
	_, err = repo.UpdateMessageStatus(ctx, "missing", domain.MessageStatusRead)
	assert.ErrorIs(t, err, domain.ErrNotFound)

	assert.Eventually(t, func() bool { return len(events) == 4 }, 3*time.Second, 10*time.Millisecond)
}

func TestMongoGroupRepository_Membership(t *testing.T) {
	ctx := context.Background()
	repo := NewMongoGroupRepository(mongoDB.Database, nil)

	now := time.Now().UTC()
	g := &domain.Group{ID: uuid.NewString(), Name: "team", CreatedBy: "A", CreatedAt: now}
	require.NoError(t, repo.CreateGroup(ctx, g, []domain.GroupMember{
		{GroupID: g.ID, UserID: "A", Role: domain.GroupRoleAdmin, JoinedAt: now},
		{GroupID: g.ID, UserID: "B", Role: domain.GroupRoleMember, JoinedAt: now},
	}))

	found, err := repo.FindGroup(ctx, g.ID)
	require.NoError(t, err)
	assert.Equal(t, "team", found.Name)

	require.NoError(t, repo.UpdateRole(ctx, g.ID, "B", domain.GroupRoleAdmin))
	m, err := repo.FindMember(ctx, g.ID, "B")
	require.NoError(t, err)
	assert.Equal(t, domain.GroupRoleAdmin, m.Role)

	require.NoError(t, repo.RemoveMember(ctx, g.ID, "A"))
	members, err := repo.FindMembers(ctx, g.ID)
	require.NoError(t, err)
	require.Len(t, members, 1)
	assert.Equal(t, "B", members[0].UserID)

	_, err = repo.FindMember(ctx, g.ID, "A")
	assert.ErrorIs(t, err, domain.ErrNotGroupMember)
	_, err = repo.FindGroup(ctx, "missing")
	assert.ErrorIs(t, err, domain.ErrNotFound)
}

func TestMongoNotificationRepository_RecipientOnlyRead(t *testing.T) {
	ctx := context.Background()
	repo := NewMongoNotificationRepository(mongoDB.Database, nil)

	user := uuid.NewString()
	n := &domain.Notification{ID: uuid.NewString(), UserID: user, Title: "New message", Type: domain.NotificationMessage, CreatedAt: time.Now().UTC()}
	require.NoError(t, repo.InsertNotification(ctx, n))

	assert.ErrorIs(t, repo.MarkNotificationRead(ctx, "someone-else", n.ID), domain.ErrNotFound)
	require.NoError(t, repo.MarkNotificationRead(ctx, user, n.ID))

	unread, err := repo.ListNotifications(ctx, user, true, 10)
	require.NoError(t, err)
	assert.Empty(t, unread)

	all, err := repo.ListNotifications(ctx, user, false, 10)
	require.NoError(t, err)
	require.Len(t, all, 1)
	assert.True(t, all[0].Read)
}

func TestMongoPresenceAndDevices(t *testing.T) {
	ctx := context.Background()
	presence := NewMongoPresenceRepository(mongoDB.Database, nil)
	devices := NewMongoDeviceRepository(mongoDB.Database)

	user := uuid.NewString()
	_, err := presence.FindStatus(ctx, user)
	assert.ErrorIs(t, err, domain.ErrNotFound)

	require.NoError(t, presence.UpdateStatus(ctx, user, domain.UserStatusBusy, time.Now().UTC()))
	st, err := presence.FindStatus(ctx, user)
	require.NoError(t, err)
	assert.Equal(t, domain.UserStatusBusy, st.Status)

	tok := uuid.NewString()
	require.NoError(t, devices.RegisterDevice(ctx, &domain.Device{Token: tok, UserID: user, Platform: "ios", Active: true}))
	active, err := devices.ActiveDevices(ctx, user)
	require.NoError(t, err)
	require.Len(t, active, 1)

	require.NoError(t, devices.DeactivateDevice(ctx, tok))
	active, err = devices.ActiveDevices(ctx, user)
	require.NoError(t, err)
	assert.Empty(t, active)
}

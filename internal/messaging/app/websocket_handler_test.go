package app

import (
	"context"
	"encoding/json"
	"sync"
	"testing"
	"time"

	"realtime_messaging_service/internal/messaging/domain"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

// fakeSocket records frames written by a wsClient
type fakeSocket struct {
	mu     sync.Mutex
	frames []domain.WSResponse
}

func (f *fakeSocket) WriteMessage(_ int, data []byte) error {
	var resp domain.WSResponse
	if err := json.Unmarshal(data, &resp); err != nil {
		return nil
	}
	f.mu.Lock()
	defer f.mu.Unlock()
	f.frames = append(f.frames, resp)
	return nil
}

func (f *fakeSocket) SetWriteDeadline(time.Time) error { return nil }

func (f *fakeSocket) find(action domain.Action) []domain.WSResponse {
	f.mu.Lock()
	defer f.mu.Unlock()
	var out []domain.WSResponse
	for _, r := range f.frames {
		if r.Action == string(action) {
			out = append(out, r)
		}
	}
	return out
}

func openClient(t *testing.T, h *harness, userID string) (*wsClient, *fakeSocket) {
	t.Helper()
	sock := &fakeSocket{}
	c := newWSClient(userID, h.service(nil), sock)
	require.NoError(t, c.open(context.Background()))
	t.Cleanup(func() { c.close(context.Background()) })
	return c, sock
}

func TestWSClient_SendAndReceive(t *testing.T) {
	h := newHarness(t)
	ctx := context.Background()
	alice, _ := openClient(t, h, "A")
	bob, bobSock := openClient(t, h, "B")

	resp := bob.execute(ctx, domain.WSRequest{Action: string(domain.Subscribe), ReceiverID: "A"})
	require.True(t, resp.Success, resp.Error)

	resp = alice.execute(ctx, domain.WSRequest{Action: string(domain.SendMessage), ReceiverID: "B", Content: "hi"})
	require.True(t, resp.Success, resp.Error)
	msg := resp.Payload["message"].(*domain.Message)

	require.Eventually(t, func() bool { return len(bobSock.find(domain.EventMessage)) == 1 }, waitFor, tick)
	ev := bobSock.find(domain.EventMessage)[0].Payload["event"].(map[string]interface{})
	assert.Equal(t, "A", ev["conversation_id"])
	assert.Equal(t, "hi", ev["message"].(map[string]interface{})["content"])

	resp = bob.execute(ctx, domain.WSRequest{Action: string(domain.MarkRead), MessageID: msg.ID})
	assert.True(t, resp.Success, resp.Error)

	resp = bob.execute(ctx, domain.WSRequest{Action: string(domain.History), ReceiverID: "A", Limit: 10})
	require.True(t, resp.Success, resp.Error)
	history := resp.Payload["messages"].([]domain.Message)
	require.Len(t, history, 1)
	assert.Equal(t, domain.MessageStatusRead, history[0].Status)
}

func TestWSClient_ConnectionStateIsPushed(t *testing.T) {
	h := newHarness(t)
	_, sock := openClient(t, h, "A")

	states := sock.find(domain.EventConnectionState)
	require.Len(t, states, 2)
	assert.Equal(t, "connecting", states[0].Payload["state"])
	assert.Equal(t, "connected", states[1].Payload["state"])
}

func TestWSClient_TypingAndPresence(t *testing.T) {
	h := newHarness(t)
	ctx := context.Background()
	alice, _ := openClient(t, h, "A")
	bob, bobSock := openClient(t, h, "B")

	require.True(t, bob.execute(ctx, domain.WSRequest{Action: string(domain.Subscribe), ReceiverID: "A"}).Success)
	require.True(t, alice.execute(ctx, domain.WSRequest{Action: string(domain.Typing), ReceiverID: "B", IsTyping: true}).Success)
	require.Eventually(t, func() bool { return len(bobSock.find(domain.EventTyping)) >= 1 }, waitFor, tick)

	require.True(t, alice.execute(ctx, domain.WSRequest{Action: string(domain.UpdateStatus), Status: domain.UserStatusBusy}).Success)
	require.Eventually(t, func() bool {
		for _, r := range bobSock.find(domain.EventUserStatus) {
			st := r.Payload["status"].(map[string]interface{})
			if st["user_id"] == "A" && st["status"] == "busy" {
				return true
			}
		}
		return false
	}, waitFor, tick)

	resp := bob.execute(ctx, domain.WSRequest{Action: string(domain.GetStatus), UserID: "A"})
	require.True(t, resp.Success, resp.Error)
	assert.Equal(t, domain.UserStatusBusy, resp.Payload["status"].(*domain.PresenceStatus).Status)
}

func TestWSClient_Groups(t *testing.T) {
	h := newHarness(t)
	ctx := context.Background()
	alice, _ := openClient(t, h, "A")
	bob, bobSock := openClient(t, h, "B")

	resp := alice.execute(ctx, domain.WSRequest{Action: string(domain.CreateGroup), GroupName: "team", Members: []string{"B"}})
	require.True(t, resp.Success, resp.Error)
	g := resp.Payload["group"].(*domain.Group)

	require.True(t, bob.execute(ctx, domain.WSRequest{Action: string(domain.Subscribe), GroupID: g.ID}).Success)
	require.True(t, alice.execute(ctx, domain.WSRequest{Action: string(domain.SendMessage), GroupID: g.ID, Content: "hey"}).Success)
	require.Eventually(t, func() bool { return len(bobSock.find(domain.EventMessage)) == 1 }, waitFor, tick)
	require.Eventually(t, func() bool { return len(bobSock.find(domain.EventNotification)) == 1 }, waitFor, tick)

	resp = bob.execute(ctx, domain.WSRequest{Action: string(domain.ListNotifications), UnreadOnly: true})
	require.True(t, resp.Success, resp.Error)
	list := resp.Payload["notifications"].([]domain.Notification)
	require.Len(t, list, 1)
	assert.True(t, bob.execute(ctx, domain.WSRequest{Action: string(domain.ReadNotification), NotificationID: list[0].ID}).Success)

	resp = bob.execute(ctx, domain.WSRequest{Action: string(domain.AddMember), GroupID: g.ID, UserID: "C"})
	assert.False(t, resp.Success)
	assert.Equal(t, domain.ErrNotGroupAdmin.Error(), resp.Error)

	assert.True(t, alice.execute(ctx, domain.WSRequest{Action: string(domain.AddMember), GroupID: g.ID, UserID: "C"}).Success)
	assert.True(t, alice.execute(ctx, domain.WSRequest{Action: string(domain.SetRole), GroupID: g.ID, UserID: "C", Role: domain.GroupRoleAdmin}).Success)
	assert.True(t, alice.execute(ctx, domain.WSRequest{Action: string(domain.RemoveMember), GroupID: g.ID, UserID: "C"}).Success)

	resp = bob.execute(ctx, domain.WSRequest{Action: string(domain.GroupMembers), GroupID: g.ID})
	require.True(t, resp.Success, resp.Error)
	assert.Len(t, resp.Payload["members"], 2)

	assert.True(t, bob.execute(ctx, domain.WSRequest{Action: string(domain.LeaveGroup), GroupID: g.ID}).Success)
	assert.True(t, bob.execute(ctx, domain.WSRequest{Action: string(domain.Unsubscribe), GroupID: g.ID}).Success)
}

func TestWSClient_RejectsBadRequests(t *testing.T) {
	h := newHarness(t)
	ctx := context.Background()
	alice, _ := openClient(t, h, "A")

	resp := alice.execute(ctx, domain.WSRequest{Action: "dance"})
	assert.False(t, resp.Success)
	assert.Equal(t, "dance", resp.Action)
	assert.NotEmpty(t, resp.Error)

	resp = alice.execute(ctx, domain.WSRequest{Action: string(domain.SendMessage), ReceiverID: "B", GroupID: "G1", Content: "x"})
	assert.False(t, resp.Success)
	assert.Equal(t, domain.ErrInvalidMessageShape.Error(), resp.Error)

	resp = alice.execute(ctx, domain.WSRequest{Action: string(domain.RegisterDevice), Token: "tok", Platform: "ios"})
	assert.True(t, resp.Success, resp.Error)

	resp = alice.execute(ctx, domain.WSRequest{Action: string(domain.SetActive), ReceiverID: "B"})
	assert.True(t, resp.Success)
	assert.Equal(t, "B", resp.Payload["conversation_id"])

	resp = alice.execute(ctx, domain.WSRequest{Action: string(domain.AttachmentURL), Key: "A/x"})
	assert.False(t, resp.Success)
}

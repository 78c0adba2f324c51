package domain

import "encoding/json"

// Action websocket request action
type Action string

const (
	// SendMessage websocket action send_message
	SendMessage Action = "send_message"
	// Subscribe websocket action subscribe, start receiving a conversation
	Subscribe Action = "subscribe"
	// Unsubscribe websocket action unsubscribe
	Unsubscribe Action = "unsubscribe"
	// Typing websocket action typing
	Typing Action = "typing"

	// UpdateStatus websocket action update_status
	UpdateStatus Action = "update_status"
	// GetStatus websocket action get_status
	GetStatus Action = "get_status"

	// MarkDelivered websocket action mark_delivered
	MarkDelivered Action = "mark_delivered"
	// MarkRead websocket action mark_read
	MarkRead Action = "mark_read"
	// History websocket action history
	History Action = "history"
	// SetActive websocket action set_active, conversation on screen
	SetActive Action = "set_active"

	// ListNotifications websocket action list_notifications
	ListNotifications Action = "list_notifications"
	// ReadNotification websocket action read_notification
	ReadNotification Action = "read_notification"

	// CreateGroup websocket action create_group
	CreateGroup Action = "create_group"
	// AddMember websocket action add_member
	AddMember Action = "add_member"
	// RemoveMember websocket action remove_member
	RemoveMember Action = "remove_member"
	// SetRole websocket action set_role
	SetRole Action = "set_role"
	// LeaveGroup websocket action leave_group
	LeaveGroup Action = "leave_group"
	// GroupMembers websocket action group_members
	GroupMembers Action = "group_members"

	// RegisterDevice websocket action register_device
	RegisterDevice Action = "register_device"
	// AttachmentURL websocket action attachment_url
	AttachmentURL Action = "attachment_url"
)

// server push, never sent by the client
const (
	// EventMessage insert or status update of a subscribed conversation
	EventMessage Action = "message_event"
	// EventTyping typing indicator of a subscribed conversation
	EventTyping Action = "typing"
	// EventUserStatus presence change
	EventUserStatus Action = "user_status"
	// EventNotification notification for the connected user
	EventNotification Action = "notification"
	// EventConnectionState realtime connection state changed
	EventConnectionState Action = "connection_state"
)

// WSRequest websocket Request
type WSRequest struct {
	Action     string      `json:"action"`
	ReceiverID string      `json:"receiver_id"`
	GroupID    string      `json:"group_id"`
	Content    string      `json:"content"`
	Type       MessageType `json:"type"`
	MessageID  string      `json:"message_id"`
	IsTyping   bool        `json:"is_typing"`
	UserID     string      `json:"user_id"`
	Status     UserStatus  `json:"status"`
	// Before unix seconds, 0 for now
	Before int64 `json:"before"`
	Limit  int64 `json:"limit"`

	NotificationID string    `json:"notification_id"`
	UnreadOnly     bool      `json:"unread_only"`
	GroupName      string    `json:"group_name"`
	Members        []string  `json:"members"`
	Role           GroupRole `json:"role"`
	Token          string    `json:"token"`
	Platform       string    `json:"platform"`
	Key            string    `json:"key"`
}

// Target conversation of the request, from receiver_id / group_id
func (r WSRequest) Target() (ConversationTarget, error) {
	return NewTarget(r.ReceiverID, r.GroupID)
}

// WSResponse websocket Response
type WSResponse struct {
	Action  string                 `json:"action"`
	Success bool                   `json:"success"`
	Payload map[string]interface{} `json:"payload,omitempty"`
	Error   string                 `json:"error,omitempty"`
}

// Encode json of the response
func (r WSResponse) Encode() ([]byte, error) {
	return json.Marshal(r)
}

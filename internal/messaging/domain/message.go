package domain

import (
	"strings"
	"time"
)

// UndecryptableContent replaces the body of a message whose envelope could not be opened
const UndecryptableContent = "[unavailable content]"

// TargetKind 對話種類
type TargetKind string

const (
	// TargetDirect 1對1
	TargetDirect TargetKind = "direct"
	// TargetGroup 群組
	TargetGroup TargetKind = "group"
)

// ConversationTarget is either DirectTarget(userID) or GroupTarget(groupID)
type ConversationTarget struct {
	Kind TargetKind `json:"kind"`
	ID   string     `json:"id"`
}

// Direct target a user
func DirectTarget(userID string) ConversationTarget {
	return ConversationTarget{Kind: TargetDirect, ID: userID}
}

// Group target a group
func GroupTarget(groupID string) ConversationTarget {
	return ConversationTarget{Kind: TargetGroup, ID: groupID}
}

// NewTarget builds a target from the two-field form; exactly one of receiverID / groupID must be set
func NewTarget(receiverID, groupID string) (ConversationTarget, error) {
	receiverID = strings.TrimSpace(receiverID)
	groupID = strings.TrimSpace(groupID)

	switch {
	case receiverID != "" && groupID != "":
		return ConversationTarget{}, ErrInvalidMessageShape
	case receiverID != "":
		return DirectTarget(receiverID), nil
	case groupID != "":
		return GroupTarget(groupID), nil
	default:
		return ConversationTarget{}, ErrInvalidMessageShape
	}
}

// Validate checks the variant is well formed
func (t ConversationTarget) Validate() error {
	if t.ID == "" || (t.Kind != TargetDirect && t.Kind != TargetGroup) {
		return ErrInvalidMessageShape
	}
	return nil
}

// IsGroup target is a group
func (t ConversationTarget) IsGroup() bool {
	return t.Kind == TargetGroup
}

// MessageType 訊息類型
type MessageType string

const (
	// MessageTypeText text
	MessageTypeText MessageType = "text"
	// MessageTypeImage image, content is an attachment key
	MessageTypeImage MessageType = "image"
	// MessageTypeFile file, content is an attachment key
	MessageTypeFile MessageType = "file"
	// MessageTypeVoice voice, content is an attachment key
	MessageTypeVoice MessageType = "voice"
)

// Valid type is known
func (t MessageType) Valid() bool {
	switch t {
	case MessageTypeText, MessageTypeImage, MessageTypeFile, MessageTypeVoice:
		return true
	}
	return false
}

// IsAttachment content refers to an object in attachment storage
func (t MessageType) IsAttachment() bool {
	return t == MessageTypeImage || t == MessageTypeFile || t == MessageTypeVoice
}

// MessageStatus 訊息狀態 sent -> delivered -> read
type MessageStatus string

const (
	// MessageStatusSent stored
	MessageStatusSent MessageStatus = "sent"
	// MessageStatusDelivered reached recipient client
	MessageStatusDelivered MessageStatus = "delivered"
	// MessageStatusRead recipient opened it
	MessageStatusRead MessageStatus = "read"
)

func (s MessageStatus) rank() int {
	switch s {
	case MessageStatusSent:
		return 1
	case MessageStatusDelivered:
		return 2
	case MessageStatusRead:
		return 3
	}
	return 0
}

// Valid status is known
func (s MessageStatus) Valid() bool {
	return s.rank() > 0
}

// CanTransitionTo status only moves forward
func (s MessageStatus) CanTransitionTo(next MessageStatus) bool {
	return next.Valid() && next.rank() > s.rank()
}

// Message is the plaintext view handed to handlers and callers
type Message struct {
	ID            string             `json:"id"`
	SenderID      string             `json:"sender_id"`
	Target        ConversationTarget `json:"target"`
	Content       string             `json:"content"`
	Type          MessageType        `json:"type"`
	Status        MessageStatus      `json:"status"`
	Undecryptable bool               `json:"undecryptable,omitempty"`
	CreatedAt     time.Time          `json:"created_at"`
	UpdatedAt     time.Time          `json:"updated_at"`
}

// ConversationID resolves the handler key from the point of view of self:
// the group id, or for direct messages the other participant
func (m Message) ConversationID(self string) string {
	if m.Target.IsGroup() {
		return m.Target.ID
	}
	if m.SenderID == self {
		return m.Target.ID
	}
	return m.SenderID
}

// Involves direct message sent by or to userID
func (m Message) Involves(userID string) bool {
	return m.SenderID == userID || (!m.Target.IsGroup() && m.Target.ID == userID)
}

// MessageRecord is the stored row; Content holds the envelope
type MessageRecord struct {
	ID         string        `bson:"_id" json:"id"`
	SenderID   string        `bson:"sender_id" json:"sender_id"`
	ReceiverID string        `bson:"receiver_id,omitempty" json:"receiver_id,omitempty"`
	GroupID    string        `bson:"group_id,omitempty" json:"group_id,omitempty"`
	Content    string        `bson:"content" json:"content"`
	Type       MessageType   `bson:"type" json:"type"`
	Status     MessageStatus `bson:"status" json:"status"`
	CreatedAt  time.Time     `bson:"created_at" json:"created_at"`
	UpdatedAt  time.Time     `bson:"updated_at" json:"updated_at"`
}

// NewMessageRecord flattens a target into receiver_id / group_id
func NewMessageRecord(id, senderID string, target ConversationTarget, envelope string, msgType MessageType, now time.Time) MessageRecord {
	rec := MessageRecord{
		ID:        id,
		SenderID:  senderID,
		Content:   envelope,
		Type:      msgType,
		Status:    MessageStatusSent,
		CreatedAt: now,
		UpdatedAt: now,
	}
	if target.IsGroup() {
		rec.GroupID = target.ID
	} else {
		rec.ReceiverID = target.ID
	}
	return rec
}

// Target resolves receiver_id / group_id, rejecting rows with both or neither set
func (r MessageRecord) Target() (ConversationTarget, error) {
	return NewTarget(r.ReceiverID, r.GroupID)
}

// ToMessage converts a record whose content was already opened
func (r MessageRecord) ToMessage(content string) (Message, error) {
	target, err := r.Target()
	if err != nil {
		return Message{}, err
	}
	return Message{
		ID:        r.ID,
		SenderID:  r.SenderID,
		Target:    target,
		Content:   content,
		Type:      r.Type,
		Status:    r.Status,
		CreatedAt: r.CreatedAt,
		UpdatedAt: r.UpdatedAt,
	}, nil
}

// ConversationFilter selects the messages of one conversation as seen by Self
type ConversationFilter struct {
	Self   string
	Target ConversationTarget
	Before time.Time
	Limit  int64
}

// StatusUpdate partial payload of a message update event
type StatusUpdate struct {
	MessageID string        `json:"message_id"`
	Status    MessageStatus `json:"status"`
	UpdatedAt time.Time     `json:"updated_at"`
}

// MessageEvent is what a conversation handler receives: a full message on insert, a status change on update
type MessageEvent struct {
	Kind           ChangeType    `json:"kind"`
	ConversationID string        `json:"conversation_id"`
	Message        *Message      `json:"message,omitempty"`
	Status         *StatusUpdate `json:"status,omitempty"`
}

package domain

import (
	"sort"
	"strings"
	"time"
)

// UserStatus presence value
type UserStatus string

const (
	// UserStatusOnline online
	UserStatusOnline UserStatus = "online"
	// UserStatusOffline offline
	UserStatusOffline UserStatus = "offline"
	// UserStatusBusy busy
	UserStatusBusy UserStatus = "busy"
)

// Valid status is known
func (s UserStatus) Valid() bool {
	switch s {
	case UserStatusOnline, UserStatusOffline, UserStatusBusy:
		return true
	}
	return false
}

// PresenceStatus last known presence of a user
type PresenceStatus struct {
	UserID   string     `bson:"_id" json:"user_id"`
	Status   UserStatus `bson:"status" json:"status"`
	LastSeen time.Time  `bson:"last_seen" json:"last_seen"`
}

// TypingIndicator ephemeral, never persisted
type TypingIndicator struct {
	UserID         string    `json:"user_id"`
	ConversationID string    `json:"conversation_id"`
	IsTyping       bool      `json:"is_typing"`
	Timestamp      time.Time `json:"timestamp"`
}

// IsStale indicator was not refreshed within ttl
func (t TypingIndicator) IsStale(now time.Time, ttl time.Duration) bool {
	return now.Sub(t.Timestamp) > ttl
}

// Active is typing and still fresh
func (t TypingIndicator) Active(now time.Time, ttl time.Duration) bool {
	return t.IsTyping && !t.IsStale(now, ttl)
}

// TypingEvent wire payload on a typing topic
type TypingEvent struct {
	UserID    string             `json:"user_id"`
	Target    ConversationTarget `json:"target"`
	IsTyping  bool               `json:"is_typing"`
	Timestamp time.Time          `json:"timestamp"`
}

// TypingTopicPrefix every typing topic starts with it
const TypingTopicPrefix = "typing:"

// TypingTopic conversation scoped topic; direct conversations share one topic for both participants
func TypingTopic(self string, target ConversationTarget) string {
	if target.IsGroup() {
		return TypingTopicPrefix + "group:" + target.ID
	}
	pair := []string{self, target.ID}
	sort.Strings(pair)
	return TypingTopicPrefix + "direct:" + strings.Join(pair, ":")
}

package domain

import "time"

// NotificationType 通知類型
type NotificationType string

const (
	// NotificationMessage direct message
	NotificationMessage NotificationType = "message"
	// NotificationGroup group message
	NotificationGroup NotificationType = "group"
	// NotificationSystem system
	NotificationSystem NotificationType = "system"
)

// Notification created by the dispatcher, only the recipient flips Read
type Notification struct {
	ID        string            `bson:"_id" json:"id"`
	UserID    string            `bson:"user_id" json:"user_id"`
	Title     string            `bson:"title" json:"title"`
	Message   string            `bson:"message" json:"message"`
	Type      NotificationType  `bson:"type" json:"type"`
	Data      map[string]string `bson:"data,omitempty" json:"data,omitempty"`
	Read      bool              `bson:"read" json:"read"`
	CreatedAt time.Time         `bson:"created_at" json:"created_at"`
}

// PushRequest OS level push for one user
type PushRequest struct {
	UserID string
	Title  string
	Body   string
	Data   map[string]string
}

// Device push token registered by a client
type Device struct {
	Token     string    `bson:"_id" json:"token"`
	UserID    string    `bson:"user_id" json:"user_id"`
	Platform  string    `bson:"platform" json:"platform"`
	Active    bool      `bson:"active" json:"active"`
	UpdatedAt time.Time `bson:"updated_at" json:"updated_at"`
}

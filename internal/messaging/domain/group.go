package domain

import "time"

// GroupRole member role
type GroupRole string

const (
	// GroupRoleAdmin may manage membership and roles
	GroupRoleAdmin GroupRole = "admin"
	// GroupRoleMember regular member
	GroupRoleMember GroupRole = "member"
)

// Valid role is known
func (r GroupRole) Valid() bool {
	return r == GroupRoleAdmin || r == GroupRoleMember
}

// Group chat group
type Group struct {
	ID        string    `bson:"_id" json:"id"`
	Name      string    `bson:"name" json:"name"`
	CreatedBy string    `bson:"created_by" json:"created_by"`
	CreatedAt time.Time `bson:"created_at" json:"created_at"`
}

// GroupMember membership row
type GroupMember struct {
	GroupID  string    `bson:"group_id" json:"group_id"`
	UserID   string    `bson:"user_id" json:"user_id"`
	Role     GroupRole `bson:"role" json:"role"`
	JoinedAt time.Time `bson:"joined_at" json:"joined_at"`
}

package domain

import "encoding/json"

// Table store table (mongo collection) observed by the change feed
type Table string

const (
	// TableMessages messages
	TableMessages Table = "messages"
	// TableUsers users (presence)
	TableUsers Table = "users"
	// TableNotifications notifications
	TableNotifications Table = "notifications"
	// TableGroupMembers group memberships
	TableGroupMembers Table = "group_members"
	// TableGroups groups
	TableGroups Table = "groups"
	// TableDevices push devices
	TableDevices Table = "devices"
)

// ChangeType change feed event type
type ChangeType string

const (
	// ChangeInsert row inserted
	ChangeInsert ChangeType = "INSERT"
	// ChangeUpdate row updated
	ChangeUpdate ChangeType = "UPDATE"
	// ChangeDelete row deleted
	ChangeDelete ChangeType = "DELETE"
)

// ChangeEvent one row change emitted by the store
type ChangeEvent struct {
	Table Table           `json:"table"`
	Type  ChangeType      `json:"type"`
	New   json.RawMessage `json:"new,omitempty"`
	Old   json.RawMessage `json:"old,omitempty"`
}

// Decode unmarshal the new row into v
func (e ChangeEvent) Decode(v interface{}) error {
	return json.Unmarshal(e.New, v)
}

// NewChangeEvent marshal row as the new image
func NewChangeEvent(table Table, changeType ChangeType, row interface{}) (ChangeEvent, error) {
	data, err := json.Marshal(row)
	if err != nil {
		return ChangeEvent{}, err
	}
	return ChangeEvent{Table: table, Type: changeType, New: data}, nil
}

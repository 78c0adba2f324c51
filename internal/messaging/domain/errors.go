package domain

import "errors"

var (
	// ErrTransportUnavailable subscriptions could not be opened after every retry attempt
	ErrTransportUnavailable = errors.New("transport unavailable")
	// ErrDecryption a single message could not be decrypted
	ErrDecryption = errors.New("message decryption failed")
	// ErrInvalidMessageShape both or neither of receiver / group set
	ErrInvalidMessageShape = errors.New("exactly one of receiver_id or group_id must be set")
	// ErrStoreWriteFailure store rejected a write
	ErrStoreWriteFailure = errors.New("store write failed")
	// ErrPushDelivery push provider failed, never propagated to senders
	ErrPushDelivery = errors.New("push delivery failed")

	// ErrNotInitialized operation needs Initialize first
	ErrNotInitialized = errors.New("messaging client not initialized")
	// ErrAlreadyInitialized client is bound to another user
	ErrAlreadyInitialized = errors.New("messaging client already initialized for another user")
	// ErrInvalidMessage sender, content or type invalid
	ErrInvalidMessage = errors.New("invalid message")
	// ErrInvalidStatus status value unknown or moves backwards
	ErrInvalidStatus = errors.New("invalid status")
	// ErrNotGroupAdmin actor is not an admin of the group
	ErrNotGroupAdmin = errors.New("not a group admin")
	// ErrNotGroupMember user is not in the group
	ErrNotGroupMember = errors.New("not a group member")
	// ErrNotRecipient user may not acknowledge the message
	ErrNotRecipient = errors.New("not a recipient of the message")
	// ErrNotFound row not found
	ErrNotFound = errors.New("not found")
)

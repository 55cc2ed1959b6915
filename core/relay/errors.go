package relay

import "errors"

var (
	// ErrRoomNotFound is returned when the referenced room does not exist
	// or has expired. Recoverable: the caller may create a new room.
	ErrRoomNotFound = errors.New("relay: room not found")

	// ErrAlreadySubscribed is returned when a member who already holds a
	// live connection on a room channel attempts to attach another one.
	// Duplicate subscriptions are rejected, never silently merged.
	ErrAlreadySubscribed = errors.New("relay: already subscribed")

	// ErrBackendClosed is returned by mutating operations after Shutdown.
	ErrBackendClosed = errors.New("relay: backend closed")
)

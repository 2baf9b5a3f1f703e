package signaling

import "errors"

var (
	// ErrRoomFull is returned when a join would exceed the pairwise room
	// capacity.
	ErrRoomFull = errors.New("room is full")

	// ErrNotInRoom is returned when a sender tries to relay a message for
	// a room it is not a member of.
	ErrNotInRoom = errors.New("sender is not a room member")

	// errRoomGone marks a room that was garbage-collected between lookup
	// and use; callers retry against a fresh room.
	errRoomGone = errors.New("room no longer exists")
)

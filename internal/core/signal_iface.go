package core

import "github.com/spacesapp/spaces/internal/domain"

// Frame is one encoded wire frame.
type Frame []byte

// SessionID identifies one live connection. A user reconnecting gets a new
// SessionID; the roster stays keyed by user.
type SessionID string

// SignalConnection abstracts the messaging transport of one session.
// Owned by the adapter; the adapter must Close() it.
type SignalConnection interface {
	// TrySend enqueues without blocking. It fails when the peer's outbound
	// queue is full or the connection is already closed.
	TrySend(Frame) error
	Close()
}

// Session binds an authenticated user to its transport endpoint.
// This is what a room actor stores and fans out to.
type Session interface {
	ID() SessionID
	User() *domain.User
	Signal() SignalConnection
}

// Action is a guarded room operation.
type Action string

const (
	ActionSpeak       Action = "speak"
	ActionManageRoles Action = "manage_roles"
	ActionEndRoom     Action = "end_room"
)

// Guard decides whether a role may perform an action. Stateless.
type Guard interface {
	Allow(role domain.Role, action Action) bool
}

// BackpressureAction is what to do with a session whose outbound queue
// rejected a broadcast frame.
type BackpressureAction int

const (
	// DropFrame loses the frame for the slow session only; it stays on
	// the roster and receives later broadcasts once its queue drains.
	DropFrame BackpressureAction = iota
	// KickSession closes the slow session's connection.
	KickSession
)

// BackpressurePolicy is consulted per dropped send; a stalled consumer must
// never delay delivery to the rest of the room.
type BackpressurePolicy interface {
	OnBackpressure(room domain.RoomID, sess Session) BackpressureAction
}

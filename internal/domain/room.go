package domain

const MaxTopicLen = 72

type RoomID string

type RoomState int

const (
	RoomActive RoomState = iota
	RoomEnded
)

func (s RoomState) String() string {
	if s == RoomEnded {
		return "ended"
	}
	return "active"
}

// Room is one ephemeral space. HostID never changes for the room's lifetime.
type Room struct {
	ID       RoomID
	HostID   UserID
	HostName string
	Topic    string
	State    RoomState
}

func NewRoom(id RoomID, host *User, topic string) *Room {
	return &Room{
		ID:       id,
		HostID:   host.ID,
		HostName: host.Name,
		Topic:    truncateRunes(topic, MaxTopicLen),
		State:    RoomActive,
	}
}

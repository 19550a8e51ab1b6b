// Package proto defines the JSON frames exchanged over a space connection.
package proto

import (
	json "github.com/goccy/go-json"

	"github.com/spacesapp/spaces/internal/domain"
)

const (
	TypeMessage     = "message"
	TypeRoleChange  = "role_change"
	TypeUserJoined  = "user_joined"
	TypeUserLeft    = "user_left"
	TypeRoleUpdated = "role_updated"
	TypeSpaceEnd    = "space_end"
	TypeError       = "error"
)

// Close codes a client can distinguish to decide between retry, redirect
// and plain error display.
const (
	CloseAuthFailure    = 4001
	CloseRoomNotFound   = 4004
	CloseMalformedLimit = 4008
)

// Envelope is the minimal shape every inbound frame must decode to.
type Envelope struct {
	Type string `json:"type"`
}

// ChatInbound is a client->server message frame.
type ChatInbound struct {
	Type    string `json:"type"`
	Content string `json:"content"`
}

// RoleChangeInbound is a client->server role change request.
type RoleChangeInbound struct {
	Type    string `json:"type"`
	Content struct {
		TargetUserID domain.UserID `json:"target_user_id"`
		NewRole      domain.Role   `json:"new_role"`
	} `json:"content"`
}

// ChatOutbound echoes a message to every participant, sender included.
type ChatOutbound struct {
	Type     string        `json:"type"`
	Content  string        `json:"content"`
	UserID   domain.UserID `json:"user_id"`
	UserName string        `json:"user_name"`
}

type UserJoined struct {
	Type    string             `json:"type"`
	Content domain.Participant `json:"content"`
}

type UserLeft struct {
	Type    string `json:"type"`
	Content struct {
		UserID   domain.UserID `json:"user_id"`
		UserName string        `json:"user_name"`
	} `json:"content"`
}

type RoleUpdated struct {
	Type    string `json:"type"`
	Content struct {
		UserID   domain.UserID `json:"user_id"`
		UserName string        `json:"user_name"`
		Role     domain.Role   `json:"role"`
	} `json:"content"`
}

type SpaceEnd struct {
	Type string `json:"type"`
}

// PrivateError is sent to one connection only, never broadcast.
type PrivateError struct {
	Type  string `json:"type"`
	Error string `json:"error"`
}

func NewChat(p *domain.Participant, text string) ChatOutbound {
	return ChatOutbound{Type: TypeMessage, Content: text, UserID: p.UserID, UserName: p.Name}
}

func NewUserJoined(p *domain.Participant) UserJoined {
	return UserJoined{Type: TypeUserJoined, Content: *p}
}

func NewUserLeft(p *domain.Participant) UserLeft {
	f := UserLeft{Type: TypeUserLeft}
	f.Content.UserID = p.UserID
	f.Content.UserName = p.Name
	return f
}

func NewRoleUpdated(p *domain.Participant) RoleUpdated {
	f := RoleUpdated{Type: TypeRoleUpdated}
	f.Content.UserID = p.UserID
	f.Content.UserName = p.Name
	f.Content.Role = p.Role
	return f
}

func NewSpaceEnd() SpaceEnd {
	return SpaceEnd{Type: TypeSpaceEnd}
}

func NewPrivateError(msg string) PrivateError {
	return PrivateError{Type: TypeError, Error: msg}
}

// Encode marshals a frame. Marshal failure on these closed types is a
// programming error, so the zero-length frame is acceptable for callers.
func Encode(v any) ([]byte, error) {
	return json.Marshal(v)
}

func Decode(data []byte, v any) error {
	return json.Unmarshal(data, v)
}

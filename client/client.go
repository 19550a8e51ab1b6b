// Package client is the session wrapper around one space connection.
//
// The connection lifecycle is an explicit state machine
// Idle -> Connecting -> Attached -> Closed; Connect is idempotent and
// no-ops outside Idle, so re-entrant callers cannot open a second socket.
// There is no automatic reconnection: after an unexpected close the caller
// builds a fresh Client.
package client

import (
	"context"
	"errors"
	"fmt"
	"net/url"
	"sync"

	json "github.com/goccy/go-json"
	"github.com/gorilla/websocket"

	"github.com/spacesapp/spaces/internal/domain"
	"github.com/spacesapp/spaces/internal/proto"
)

var ErrNotAttached = errors.New("client not attached")

type State int

const (
	StateIdle State = iota
	StateConnecting
	StateAttached
	StateClosed
)

// Event is one server frame projected into a flat shape for consumers.
type Event struct {
	Type        string
	Participant *domain.Participant // user_joined
	UserID      domain.UserID       // user_left, role_updated, message
	UserName    string
	Role        domain.Role // role_updated
	Text        string      // message
	Err         string      // private error frames
}

type Client struct {
	baseURL string
	roomID  domain.RoomID
	token   string

	mu      sync.Mutex
	writeMu sync.Mutex
	state   State
	conn    *websocket.Conn
	events  chan Event
}

// New prepares an idle client. baseURL is the ws scheme origin, e.g.
// "ws://localhost:8080".
func New(baseURL string, roomID domain.RoomID, token string) *Client {
	return &Client{
		baseURL: baseURL,
		roomID:  roomID,
		token:   token,
		state:   StateIdle,
		events:  make(chan Event, 64),
	}
}

func (c *Client) State() State {
	c.mu.Lock()
	defer c.mu.Unlock()
	return c.state
}

// Events delivers server frames in arrival order. The channel closes when
// the connection is gone, whatever the exit path was.
func (c *Client) Events() <-chan Event {
	return c.events
}

// Connect dials and attaches. Calling it again while connecting, attached
// or closed is a no-op.
func (c *Client) Connect(ctx context.Context) error {
	c.mu.Lock()
	if c.state != StateIdle {
		c.mu.Unlock()
		return nil
	}
	c.state = StateConnecting
	c.mu.Unlock()

	u := fmt.Sprintf("%s/api/spaces/ws/%s?token=%s", c.baseURL, url.PathEscape(string(c.roomID)), url.QueryEscape(c.token))
	conn, resp, err := websocket.DefaultDialer.DialContext(ctx, u, nil)
	if resp != nil && resp.Body != nil {
		_ = resp.Body.Close()
	}
	if err != nil {
		c.mu.Lock()
		c.state = StateClosed
		c.mu.Unlock()
		close(c.events)
		return fmt.Errorf("dial space: %w", err)
	}

	c.mu.Lock()
	if c.state != StateConnecting {
		// Closed while the dial was in flight.
		c.mu.Unlock()
		_ = conn.Close()
		close(c.events)
		return ErrNotAttached
	}
	c.conn = conn
	c.state = StateAttached
	c.mu.Unlock()

	go c.readLoop()
	return nil
}

// SendMessage posts a chat message. The echo arrives as a message event.
func (c *Client) SendMessage(text string) error {
	return c.writeJSON(proto.ChatInbound{Type: proto.TypeMessage, Content: text})
}

// ChangeRole asks the host-side guard to promote or demote a participant.
func (c *Client) ChangeRole(target domain.UserID, role domain.Role) error {
	f := proto.RoleChangeInbound{Type: proto.TypeRoleChange}
	f.Content.TargetUserID = target
	f.Content.NewRole = role
	return c.writeJSON(f)
}

// Close releases the socket on every path; safe to call at any state and
// more than once.
func (c *Client) Close() error {
	c.mu.Lock()
	if c.state == StateClosed {
		c.mu.Unlock()
		return nil
	}
	wasIdle := c.state == StateIdle
	c.state = StateClosed
	conn := c.conn
	c.mu.Unlock()

	if conn != nil {
		c.writeMu.Lock()
		_ = conn.WriteMessage(websocket.CloseMessage, websocket.FormatCloseMessage(websocket.CloseNormalClosure, ""))
		c.writeMu.Unlock()
		return conn.Close()
	}
	if wasIdle {
		close(c.events)
	}
	return nil
}

func (c *Client) writeJSON(v any) error {
	c.mu.Lock()
	if c.state != StateAttached {
		c.mu.Unlock()
		return ErrNotAttached
	}
	conn := c.conn
	c.mu.Unlock()

	b, err := json.Marshal(v)
	if err != nil {
		return err
	}
	c.writeMu.Lock()
	defer c.writeMu.Unlock()
	return conn.WriteMessage(websocket.TextMessage, b)
}

// serverFrame is the union shape of everything the server sends.
type serverFrame struct {
	Type     string          `json:"type"`
	Content  json.RawMessage `json:"content"`
	UserID   domain.UserID   `json:"user_id"`
	UserName string          `json:"user_name"`
	Error    string          `json:"error"`
}

func (c *Client) readLoop() {
	defer func() {
		c.mu.Lock()
		c.state = StateClosed
		conn := c.conn
		c.mu.Unlock()
		if conn != nil {
			_ = conn.Close()
		}
		close(c.events)
	}()

	for {
		_, data, err := c.conn.ReadMessage()
		if err != nil {
			return
		}
		var f serverFrame
		if err := json.Unmarshal(data, &f); err != nil {
			continue
		}
		ev, ok := projectEvent(f)
		if !ok {
			continue
		}
		c.events <- ev
	}
}

func projectEvent(f serverFrame) (Event, bool) {
	ev := Event{Type: f.Type}
	switch f.Type {
	case proto.TypeMessage:
		var text string
		if err := json.Unmarshal(f.Content, &text); err != nil {
			return ev, false
		}
		ev.Text = text
		ev.UserID = f.UserID
		ev.UserName = f.UserName
	case proto.TypeUserJoined:
		var p domain.Participant
		if err := json.Unmarshal(f.Content, &p); err != nil {
			return ev, false
		}
		ev.Participant = &p
		ev.UserID = p.UserID
		ev.UserName = p.Name
	case proto.TypeUserLeft, proto.TypeRoleUpdated:
		var body struct {
			UserID   domain.UserID `json:"user_id"`
			UserName string        `json:"user_name"`
			Role     domain.Role   `json:"role"`
		}
		if err := json.Unmarshal(f.Content, &body); err != nil {
			return ev, false
		}
		ev.UserID = body.UserID
		ev.UserName = body.UserName
		ev.Role = body.Role
	case proto.TypeSpaceEnd:
		// No payload.
	case proto.TypeError:
		ev.Err = f.Error
	default:
		return ev, false
	}
	return ev, true
}

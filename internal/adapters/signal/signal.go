// Package signal adapts one WebSocket connection to room actor requests.
package signal

import (
	"errors"
	"net/http"
	"sync"
	"time"

	"github.com/gin-gonic/gin"
	"github.com/google/uuid"
	"github.com/gorilla/websocket"
	"github.com/rs/zerolog/log"

	"github.com/spacesapp/spaces/internal/app"
	"github.com/spacesapp/spaces/internal/auth"
	"github.com/spacesapp/spaces/internal/config"
	"github.com/spacesapp/spaces/internal/core"
	"github.com/spacesapp/spaces/internal/domain"
	"github.com/spacesapp/spaces/internal/proto"
)

var (
	ErrBackpressure = errors.New("backpressure")
	ErrConnClosed   = errors.New("connection closed")
)

var upgrader = websocket.Upgrader{
	CheckOrigin: func(r *http.Request) bool { return true },
}

// Controller upgrades space connections and runs one handler per session.
type Controller struct {
	Registry *app.Registry
	Tokens   *auth.Tokens
	Cfg      *config.Config
}

func NewController(reg *app.Registry, tokens *auth.Tokens, cfg *config.Config) *Controller {
	return &Controller{Registry: reg, Tokens: tokens, Cfg: cfg}
}

// wsConn is the outbound side of one session: a bounded queue drained by
// the write pump, so one slow peer never blocks the room actor.
type wsConn struct {
	conn *websocket.Conn
	send chan core.Frame

	mu     sync.RWMutex
	closed bool
}

func (c *wsConn) TrySend(f core.Frame) error {
	c.mu.RLock()
	defer c.mu.RUnlock()
	if c.closed {
		return ErrConnClosed
	}
	select {
	case c.send <- f:
	default:
		return ErrBackpressure
	}
	return nil
}

// Close stops the outbound queue. The write pump drains what is already
// buffered, sends the close frame and releases the socket.
func (c *wsConn) Close() {
	c.mu.Lock()
	defer c.mu.Unlock()
	if c.closed {
		return
	}
	c.closed = true
	close(c.send)
}

// session is the actor-facing view of one connection.
type session struct {
	id   core.SessionID
	user *domain.User
	conn *wsConn
}

func (s *session) ID() core.SessionID            { return s.id }
func (s *session) User() *domain.User            { return s.user }
func (s *session) Signal() core.SignalConnection { return s.conn }

// HandleSpace runs the per-connection state machine. Authentication and
// room resolution happen before the actor ever sees the session; failures
// close with distinct codes so clients can redirect instead of retrying.
func (ctl *Controller) HandleSpace(c *gin.Context) {
	roomID := domain.RoomID(c.Param("id"))

	ws, err := upgrader.Upgrade(c.Writer, c.Request, nil)
	if err != nil {
		log.Error().Err(err).Str("module", "signal").Msg("ws upgrade")
		return
	}

	// Authenticating: the whole pre-attach phase is bounded.
	deadline := time.Now().Add(ctl.Cfg.AuthTimeout)
	user, err := ctl.Tokens.Verify(c.Query("token"))
	if err != nil {
		log.Warn().Err(err).Str("module", "signal").Str("room", string(roomID)).Msg("auth failure")
		closeWithCode(ws, proto.CloseAuthFailure, "authentication failed", deadline)
		return
	}

	actor, err := ctl.Registry.Get(roomID)
	if err != nil {
		closeWithCode(ws, proto.CloseRoomNotFound, "room not found", deadline)
		return
	}

	conn := &wsConn{conn: ws, send: make(chan core.Frame, ctl.Cfg.SendBuffer)}
	sess := &session{id: core.SessionID(uuid.NewString()), user: user, conn: conn}

	if err := actor.Attach(sess); err != nil {
		closeWithCode(ws, proto.CloseRoomNotFound, "room ended", deadline)
		return
	}
	log.Info().Str("module", "signal").Str("sid", string(sess.id)).Str("user", string(user.ID)).Str("room", string(roomID)).Msg("session attached")

	h := &handler{ctl: ctl, actor: actor, sess: sess, conn: conn, ws: ws}
	go h.writePump(c.Request.Context())
	h.readPump()
}

// handler owns the two pump goroutines of one attached session and
// guarantees exactly one Detach on every exit path.
type handler struct {
	ctl   *Controller
	actor *core.RoomActor
	sess  *session
	conn  *wsConn
	ws    *websocket.Conn

	leaveOnce sync.Once
}

func (h *handler) leave() {
	h.leaveOnce.Do(func() {
		h.actor.Detach(h.sess)
	})
}

func closeWithCode(ws *websocket.Conn, code int, reason string, deadline time.Time) {
	msg := websocket.FormatCloseMessage(code, reason)
	_ = ws.WriteControl(websocket.CloseMessage, msg, deadline)
	_ = ws.Close()
}

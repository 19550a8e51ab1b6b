package signal

import (
	"context"
	"errors"
	"fmt"
	"time"

	"github.com/gorilla/websocket"
	"github.com/rs/zerolog/log"

	"github.com/spacesapp/spaces/internal/core"
	"github.com/spacesapp/spaces/internal/proto"
)

func (h *handler) writePump(ctx context.Context) {
	ticker := time.NewTicker(h.ctl.Cfg.PingPeriod)
	defer func() {
		ticker.Stop()
		_ = h.ws.Close()
		h.leave()
	}()
	for {
		select {
		case <-ctx.Done():
			log.Info().Str("module", "signal").Str("sid", string(h.sess.id)).Msg("writePump ctx done")
			return
		case frame, ok := <-h.conn.send:
			if !ok {
				// Queue closed by the actor (space_end, kick, supersede)
				// or by the read loop on its way out.
				h.writeClose(websocket.CloseNormalClosure, "")
				return
			}
			_ = h.ws.SetWriteDeadline(time.Now().Add(h.ctl.Cfg.WriteTimeout))
			if err := h.ws.WriteMessage(websocket.TextMessage, frame); err != nil {
				log.Error().Err(err).Str("module", "signal").Str("sid", string(h.sess.id)).Msg("writePump write error")
				return
			}
		case <-ticker.C:
			_ = h.ws.SetWriteDeadline(time.Now().Add(h.ctl.Cfg.WriteTimeout))
			if err := h.ws.WriteMessage(websocket.PingMessage, nil); err != nil {
				return
			}
		}
	}
}

func (h *handler) readPump() {
	defer func() {
		log.Info().Str("module", "signal").Str("sid", string(h.sess.id)).Msg("readPump closing")
		h.leave()
		h.conn.Close()
	}()

	pongWait := h.ctl.Cfg.PingPeriod * 10 / 9
	h.ws.SetReadLimit(h.ctl.Cfg.ReadLimit)
	_ = h.ws.SetReadDeadline(time.Now().Add(pongWait))
	h.ws.SetPongHandler(func(string) error {
		return h.ws.SetReadDeadline(time.Now().Add(pongWait))
	})

	malformed := 0
	for {
		_, data, err := h.ws.ReadMessage()
		if err != nil {
			if websocket.IsUnexpectedCloseError(err, websocket.CloseGoingAway, websocket.CloseNormalClosure) {
				log.Warn().Err(err).Str("module", "signal").Str("sid", string(h.sess.id)).Msg("readPump read error")
			}
			return
		}
		if !h.dispatch(data, &malformed) {
			h.writeClose(proto.CloseMalformedLimit, "too many malformed frames")
			return
		}
	}
}

// dispatch routes one inbound frame to the matching actor operation.
// Undecodable frames are dropped but counted; past the threshold the
// connection is closed defensively.
func (h *handler) dispatch(data []byte, malformed *int) bool {
	var env proto.Envelope
	if err := proto.Decode(data, &env); err != nil {
		return h.countMalformed(malformed, err)
	}

	switch env.Type {
	case proto.TypeMessage:
		var in proto.ChatInbound
		if err := proto.Decode(data, &in); err != nil {
			return h.countMalformed(malformed, err)
		}
		if in.Content == "" {
			return true
		}
		h.reply(h.actor.PostMessage(h.sess, in.Content))
	case proto.TypeRoleChange:
		var in proto.RoleChangeInbound
		if err := proto.Decode(data, &in); err != nil {
			return h.countMalformed(malformed, err)
		}
		// A role value outside the protocol vocabulary is a broken frame,
		// not a denied operation. Assignability is the actor's call.
		if !in.Content.NewRole.Valid() {
			return h.countMalformed(malformed, fmt.Errorf("unknown role %q", in.Content.NewRole))
		}
		h.reply(h.actor.ChangeRole(h.sess, in.Content.TargetUserID, in.Content.NewRole))
	default:
		log.Warn().Str("module", "signal").Str("type", env.Type).Msg("unknown frame type")
	}
	return true
}

// reply surfaces a denial to the sender only. Denials are never broadcast.
func (h *handler) reply(err error) {
	if err == nil {
		return
	}
	if errors.Is(err, core.ErrRoomEnded) {
		// The actor is tearing this connection down already.
		return
	}
	h.sendPrivate(proto.NewPrivateError(err.Error()))
}

func (h *handler) countMalformed(malformed *int, err error) bool {
	*malformed++
	log.Warn().Err(err).Str("module", "signal").Str("sid", string(h.sess.id)).Int("count", *malformed).Msg("malformed frame")
	return *malformed < h.ctl.Cfg.MalformedLimit
}

func (h *handler) sendPrivate(v any) {
	b, err := proto.Encode(v)
	if err != nil {
		log.Error().Err(err).Str("module", "signal").Msg("private frame encode")
		return
	}
	_ = h.conn.TrySend(core.Frame(b))
}

func (h *handler) writeClose(code int, reason string) {
	msg := websocket.FormatCloseMessage(code, reason)
	_ = h.ws.WriteControl(websocket.CloseMessage, msg, time.Now().Add(h.ctl.Cfg.WriteTimeout))
}

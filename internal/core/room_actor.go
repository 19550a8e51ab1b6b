package core

import (
	"errors"
	"sync"

	"github.com/rs/zerolog/log"

	"github.com/spacesapp/spaces/internal/domain"
	"github.com/spacesapp/spaces/internal/proto"
)

var (
	ErrRoomEnded = errors.New("room ended")
	ErrDenied    = errors.New("operation denied")
)

// RoomSummary is the lobby view of a room. All fields are fixed at creation.
type RoomSummary struct {
	ID       domain.RoomID `json:"id"`
	HostID   domain.UserID `json:"host_id"`
	HostName string        `json:"host_name"`
	Topic    string        `json:"topic"`
}

// RoomDetails is the pre-attach snapshot clients render before the
// persistent connection delivers live events.
type RoomDetails struct {
	RoomSummary
	Participants []domain.Participant `json:"participants"`
}

// RoomActor owns one room's roster and live sessions. Every mutation runs
// under one mutex, so no two join/leave/role-change/end interleave and all
// sessions observe broadcasts in the same order.
type RoomActor struct {
	mu       sync.Mutex
	room     *domain.Room
	roster   *Roster
	sessions map[domain.UserID]Session

	guard   Guard
	policy  BackpressurePolicy
	onClose func(domain.RoomID)
}

// NewRoomActor creates an active room with the host as its sole participant.
// onClose is invoked exactly once, after teardown, outside the actor lock.
func NewRoomActor(room *domain.Room, host *domain.User, guard Guard, policy BackpressurePolicy, onClose func(domain.RoomID)) *RoomActor {
	a := &RoomActor{
		room:     room,
		roster:   NewRoster(),
		sessions: make(map[domain.UserID]Session),
		guard:    guard,
		policy:   policy,
		onClose:  onClose,
	}
	_ = a.roster.Add(domain.NewParticipant(host, domain.RoleHost))
	return a
}

// Summary reads only creation-time fields and needs no lock; the registry
// calls it while holding its own lock during listings.
func (a *RoomActor) Summary() RoomSummary {
	return RoomSummary{
		ID:       a.room.ID,
		HostID:   a.room.HostID,
		HostName: a.room.HostName,
		Topic:    a.room.Topic,
	}
}

func (a *RoomActor) Details() RoomDetails {
	a.mu.Lock()
	defer a.mu.Unlock()
	return RoomDetails{RoomSummary: a.Summary(), Participants: a.roster.Snapshot()}
}

func (a *RoomActor) Ended() bool {
	a.mu.Lock()
	defer a.mu.Unlock()
	return a.room.State == domain.RoomEnded
}

// PreJoin inserts a roster entry before any connection exists. Idempotent
// with Attach: an already-present user id is a no-op.
func (a *RoomActor) PreJoin(user *domain.User) error {
	a.mu.Lock()
	defer a.mu.Unlock()
	if a.room.State == domain.RoomEnded {
		return ErrRoomEnded
	}
	if _, ok := a.roster.Get(user.ID); ok {
		return nil
	}
	p := domain.NewParticipant(user, a.roleFor(user.ID))
	_ = a.roster.Add(p)
	a.broadcastLocked(a.encode(proto.NewUserJoined(p)), user.ID)
	log.Info().Str("module", "core.room").Str("room", string(a.room.ID)).Str("user", string(user.ID)).Msg("pre-joined")
	return nil
}

// Attach binds a session to the room. A user id that is already connected
// is superseded: the new connection replaces the old one, the old one is
// closed, and no user_joined is broadcast.
func (a *RoomActor) Attach(sess Session) error {
	user := sess.User()
	a.mu.Lock()
	if a.room.State == domain.RoomEnded {
		a.mu.Unlock()
		return ErrRoomEnded
	}
	prev := a.sessions[user.ID]
	a.sessions[user.ID] = sess
	if _, present := a.roster.Get(user.ID); !present {
		p := domain.NewParticipant(user, a.roleFor(user.ID))
		_ = a.roster.Add(p)
		a.broadcastLocked(a.encode(proto.NewUserJoined(p)), user.ID)
	}
	a.mu.Unlock()

	if prev != nil && prev != sess {
		prev.Signal().Close()
		log.Info().Str("module", "core.room").Str("room", string(a.room.ID)).Str("user", string(user.ID)).Msg("session superseded")
	}
	log.Info().Str("module", "core.room").Str("room", string(a.room.ID)).Str("user", string(user.ID)).Str("sid", string(sess.ID())).Msg("session attached")
	return nil
}

// Detach removes the participant bound to sess. A superseded or already
// detached session is a no-op, so a late close of an old connection never
// evicts the live one. A departing host ends the room.
func (a *RoomActor) Detach(sess Session) {
	user := sess.User()
	a.mu.Lock()
	cur, ok := a.sessions[user.ID]
	if !ok || cur != sess {
		a.mu.Unlock()
		return
	}
	delete(a.sessions, user.ID)
	p, ok := a.roster.Remove(user.ID)
	if !ok {
		a.mu.Unlock()
		return
	}
	if p.Role == domain.RoleHost {
		a.endLocked()
		a.mu.Unlock()
		a.onClose(a.room.ID)
		log.Info().Str("module", "core.room").Str("room", string(a.room.ID)).Msg("host left, room ended")
		return
	}
	a.broadcastLocked(a.encode(proto.NewUserLeft(p)), "")
	a.mu.Unlock()
	log.Info().Str("module", "core.room").Str("room", string(a.room.ID)).Str("user", string(user.ID)).Msg("session detached")
}

// PostMessage broadcasts a chat frame to every session, sender included,
// so all participants observe one consistent order.
func (a *RoomActor) PostMessage(sess Session, text string) error {
	a.mu.Lock()
	defer a.mu.Unlock()
	if a.room.State == domain.RoomEnded {
		return ErrRoomEnded
	}
	p, ok := a.roster.Get(sess.User().ID)
	if !ok || !a.guard.Allow(p.Role, ActionSpeak) {
		return ErrDenied
	}
	a.broadcastLocked(a.encode(proto.NewChat(p, text)), "")
	return nil
}

// ChangeRole promotes or demotes a participant between speaker and
// listener. The host entry can never be the target.
func (a *RoomActor) ChangeRole(sess Session, target domain.UserID, role domain.Role) error {
	a.mu.Lock()
	defer a.mu.Unlock()
	if a.room.State == domain.RoomEnded {
		return ErrRoomEnded
	}
	p, ok := a.roster.Get(sess.User().ID)
	if !ok || !a.guard.Allow(p.Role, ActionManageRoles) {
		return ErrDenied
	}
	if target == a.room.HostID {
		return ErrDenied
	}
	tp, err := a.roster.SetRole(target, role)
	if err != nil {
		return err
	}
	a.broadcastLocked(a.encode(proto.NewRoleUpdated(tp)), "")
	log.Info().Str("module", "core.room").Str("room", string(a.room.ID)).Str("target", string(target)).Str("role", string(role)).Msg("role updated")
	return nil
}

// End tears the room down on behalf of a user; only the host is allowed.
// The same path serves the REST end endpoint and the explicit end frame.
func (a *RoomActor) End(by domain.UserID) error {
	a.mu.Lock()
	if a.room.State == domain.RoomEnded {
		a.mu.Unlock()
		return ErrRoomEnded
	}
	p, ok := a.roster.Get(by)
	if !ok || !a.guard.Allow(p.Role, ActionEndRoom) {
		a.mu.Unlock()
		return ErrDenied
	}
	a.endLocked()
	a.mu.Unlock()
	a.onClose(a.room.ID)
	log.Info().Str("module", "core.room").Str("room", string(a.room.ID)).Msg("room ended by host")
	return nil
}

// endLocked broadcasts space_end, closes every connection and empties the
// roster. Caller holds the lock and invokes onClose after releasing it.
func (a *RoomActor) endLocked() {
	a.room.State = domain.RoomEnded
	a.broadcastLocked(a.encode(proto.NewSpaceEnd()), "")
	for _, s := range a.sessions {
		s.Signal().Close()
	}
	a.sessions = make(map[domain.UserID]Session)
	a.roster.Clear()
}

func (a *RoomActor) roleFor(id domain.UserID) domain.Role {
	if id == a.room.HostID {
		return domain.RoleHost
	}
	return domain.RoleListener
}

// broadcastLocked fans a frame out to every session except the given user.
// Sends never block the actor; a full outbound queue is handed to the
// backpressure policy instead.
func (a *RoomActor) broadcastLocked(frame Frame, except domain.UserID) {
	if frame == nil {
		return
	}
	var dropped []Session
	sent := 0
	for id, s := range a.sessions {
		if except != "" && id == except {
			continue
		}
		if err := s.Signal().TrySend(frame); err != nil {
			dropped = append(dropped, s)
			continue
		}
		sent++
	}
	for _, s := range dropped {
		if a.policy != nil && a.policy.OnBackpressure(a.room.ID, s) == KickSession {
			s.Signal().Close()
			log.Warn().Str("module", "core.room").Str("room", string(a.room.ID)).Str("sid", string(s.ID())).Msg("slow consumer kicked")
		}
	}
	log.Debug().Str("module", "core.room").Str("room", string(a.room.ID)).Int("sent_to", sent).Int("dropped", len(dropped)).Msg("broadcast result")
}

func (a *RoomActor) encode(v any) Frame {
	b, err := proto.Encode(v)
	if err != nil {
		log.Error().Err(err).Str("module", "core.room").Msg("frame encode")
		return nil
	}
	return Frame(b)
}

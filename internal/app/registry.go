package app

import (
	"errors"
	"sync"

	"github.com/google/uuid"
	"github.com/rs/zerolog/log"
	"github.com/samber/lo"

	"github.com/spacesapp/spaces/internal/core"
	"github.com/spacesapp/spaces/internal/domain"
)

var (
	ErrAlreadyHosting = errors.New("host already owns an active room")
	ErrRoomNotFound   = errors.New("room not found")
)

// Registry is the process-wide directory of room id -> actor. It owns room
// existence only; roster contents belong to the actors.
type Registry struct {
	mu     sync.RWMutex
	rooms  map[domain.RoomID]*core.RoomActor
	byHost map[domain.UserID]domain.RoomID

	guard  core.Guard
	policy core.BackpressurePolicy
}

func NewRegistry(guard core.Guard, policy core.BackpressurePolicy) *Registry {
	return &Registry{
		rooms:  make(map[domain.RoomID]*core.RoomActor),
		byHost: make(map[domain.UserID]domain.RoomID),
		guard:  guard,
		policy: policy,
	}
}

// Create allocates an active room with host as its sole participant.
// A host with a live room cannot open a second one; that would orphan the
// first, since a departing host tears its room down.
func (r *Registry) Create(host *domain.User, topic string) (*core.RoomActor, error) {
	r.mu.Lock()
	defer r.mu.Unlock()
	if _, ok := r.byHost[host.ID]; ok {
		return nil, ErrAlreadyHosting
	}
	id := domain.RoomID(uuid.NewString())
	actor := core.NewRoomActor(domain.NewRoom(id, host, topic), host, r.guard, r.policy, r.Remove)
	r.rooms[id] = actor
	r.byHost[host.ID] = id
	log.Info().Str("module", "app.registry").Str("room", string(id)).Str("host", string(host.ID)).Msg("room created")
	return actor, nil
}

// Get resolves an id to its live actor. Ended rooms are gone from the
// directory, so they resolve the same as ids that never existed.
func (r *Registry) Get(id domain.RoomID) (*core.RoomActor, error) {
	r.mu.RLock()
	defer r.mu.RUnlock()
	actor, ok := r.rooms[id]
	if !ok {
		return nil, ErrRoomNotFound
	}
	return actor, nil
}

// ListActive snapshots the lobby view. No mutation, no actor locks taken.
func (r *Registry) ListActive() []core.RoomSummary {
	r.mu.RLock()
	defer r.mu.RUnlock()
	return lo.MapToSlice(r.rooms, func(_ domain.RoomID, a *core.RoomActor) core.RoomSummary {
		return a.Summary()
	})
}

// Remove drops a room from the directory. Called only from actor teardown;
// the actor has already closed its sessions by then.
func (r *Registry) Remove(id domain.RoomID) {
	r.mu.Lock()
	defer r.mu.Unlock()
	actor, ok := r.rooms[id]
	if !ok {
		return
	}
	delete(r.rooms, id)
	delete(r.byHost, actor.Summary().HostID)
	log.Info().Str("module", "app.registry").Str("room", string(id)).Msg("room removed")
}

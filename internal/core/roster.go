package core

import (
	"errors"

	"github.com/samber/lo"

	"github.com/spacesapp/spaces/internal/domain"
)

var (
	ErrDuplicateParticipant = errors.New("participant already present")
	ErrNoSuchParticipant    = errors.New("no such participant")
	ErrHostImmutable        = errors.New("host role is immutable")
	ErrRoleNotAssignable    = errors.New("role not assignable")
)

// Roster is the authoritative participant set of one room, keyed by user id
// with join order kept for the display projection. Pure data: no locks, no
// I/O. Only the owning RoomActor mutates it.
type Roster struct {
	byID  map[domain.UserID]*domain.Participant
	order []domain.UserID
}

func NewRoster() *Roster {
	return &Roster{byID: make(map[domain.UserID]*domain.Participant)}
}

func (r *Roster) Len() int { return len(r.byID) }

func (r *Roster) Get(id domain.UserID) (*domain.Participant, bool) {
	p, ok := r.byID[id]
	return p, ok
}

// Add inserts a new participant. A second host or a duplicate user id is
// rejected; the caller decides whether a duplicate means conflict or no-op.
func (r *Roster) Add(p *domain.Participant) error {
	if _, ok := r.byID[p.UserID]; ok {
		return ErrDuplicateParticipant
	}
	if p.Role == domain.RoleHost {
		if _, ok := r.Host(); ok {
			return ErrHostImmutable
		}
	}
	r.byID[p.UserID] = p
	r.order = append(r.order, p.UserID)
	return nil
}

func (r *Roster) Remove(id domain.UserID) (*domain.Participant, bool) {
	p, ok := r.byID[id]
	if !ok {
		return nil, false
	}
	delete(r.byID, id)
	r.order = lo.Without(r.order, id)
	return p, true
}

// SetRole mutates a participant's role. Only speaker/listener are
// assignable and the host entry can never be retargeted.
func (r *Roster) SetRole(id domain.UserID, role domain.Role) (*domain.Participant, error) {
	if !role.Assignable() {
		return nil, ErrRoleNotAssignable
	}
	p, ok := r.byID[id]
	if !ok {
		return nil, ErrNoSuchParticipant
	}
	if p.Role == domain.RoleHost {
		return nil, ErrHostImmutable
	}
	p.Role = role
	return p, nil
}

func (r *Roster) Host() (*domain.Participant, bool) {
	return lo.Find(lo.Values(r.byID), func(p *domain.Participant) bool {
		return p.Role == domain.RoleHost
	})
}

// Snapshot returns participants in join order. Entries are copies; callers
// cannot reach the actor-owned state through them.
func (r *Roster) Snapshot() []domain.Participant {
	return lo.FilterMap(r.order, func(id domain.UserID, _ int) (domain.Participant, bool) {
		p, ok := r.byID[id]
		if !ok {
			return domain.Participant{}, false
		}
		return *p, true
	})
}

func (r *Roster) Clear() {
	r.byID = make(map[domain.UserID]*domain.Participant)
	r.order = nil
}

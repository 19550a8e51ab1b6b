package app

import (
	"github.com/spacesapp/spaces/internal/core"
	"github.com/spacesapp/spaces/internal/domain"
)

// KickPolicy drops a session whose outbound queue overflowed instead of
// letting it stall the room.
type KickPolicy struct{}

func (KickPolicy) OnBackpressure(_ domain.RoomID, _ core.Session) core.BackpressureAction {
	return core.KickSession
}

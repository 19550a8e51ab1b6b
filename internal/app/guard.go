package app

import (
	"github.com/spacesapp/spaces/internal/core"
	"github.com/spacesapp/spaces/internal/domain"
)

// AuthGuard is the role decision table:
//
//	speak        -> host, speaker
//	manage_roles -> host
//	end_room     -> host
type AuthGuard struct{}

func (AuthGuard) Allow(role domain.Role, action core.Action) bool {
	switch action {
	case core.ActionSpeak:
		return role == domain.RoleHost || role == domain.RoleSpeaker
	case core.ActionManageRoles, core.ActionEndRoom:
		return role == domain.RoleHost
	default:
		return false
	}
}

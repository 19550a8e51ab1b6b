package domain

type Role string

const (
	RoleHost     Role = "host"
	RoleSpeaker  Role = "speaker"
	RoleListener Role = "listener"
)

func (r Role) Valid() bool {
	return r == RoleHost || r == RoleSpeaker || r == RoleListener
}

// Assignable reports whether the role may be granted by a role change.
// The host role is fixed at room creation and never reassigned.
func (r Role) Assignable() bool {
	return r == RoleSpeaker || r == RoleListener
}

// Participant is one roster entry: an identity plus its role in one room.
type Participant struct {
	UserID   UserID `json:"user_id"`
	Name     string `json:"user_name"`
	Role     Role   `json:"role"`
	ImageURL string `json:"profile_image_url,omitempty"`
}

func NewParticipant(user *User, role Role) *Participant {
	return &Participant{
		UserID:   user.ID,
		Name:     user.Name,
		Role:     role,
		ImageURL: user.ImageURL,
	}
}

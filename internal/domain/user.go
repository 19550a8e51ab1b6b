// Package domain contains entities without logic, just meta-data
package domain

import (
	"errors"
	"unicode/utf8"
)

const MaxUserNameLen = 36

var (
	ErrUserNameEmpty = errors.New("user name empty")
	ErrUserIDEmpty   = errors.New("user id empty")
)

type UserID string

// User is the authenticated identity behind a participant.
// It carries no role; roles live on the roster of a single room.
type User struct {
	ID       UserID `json:"user_id"`
	Name     string `json:"user_name"`
	ImageURL string `json:"profile_image_url,omitempty"`
}

// NewUser is a tiny helper to avoid ad-hoc struct literals in adapters.
// Over-long names are truncated rather than rejected; identity comes from
// the credential, the name is display-only.
func NewUser(id UserID, name, imageURL string) (*User, error) {
	if id == "" {
		return nil, ErrUserIDEmpty
	}
	if len(name) == 0 {
		return nil, ErrUserNameEmpty
	}
	return &User{ID: id, Name: truncateRunes(name, MaxUserNameLen), ImageURL: imageURL}, nil
}

// truncateRunes cuts on a rune boundary. Lengths are rune counts, not
// bytes, so multi-byte names are never split into invalid UTF-8.
func truncateRunes(s string, max int) string {
	if utf8.RuneCountInString(s) <= max {
		return s
	}
	return string([]rune(s)[:max])
}

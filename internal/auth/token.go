// Package auth resolves the opaque bearer credential to a user identity.
package auth

import (
	"errors"
	"time"

	"github.com/golang-jwt/jwt/v5"

	"github.com/spacesapp/spaces/internal/domain"
)

var ErrInvalidToken = errors.New("invalid token")

// Claims is the data stored inside a signed token.
type Claims struct {
	UserID  string `json:"user_id"`
	Name    string `json:"name"`
	Picture string `json:"picture,omitempty"`
	jwt.RegisteredClaims
}

// Tokens issues and verifies HS256 bearer tokens. The secret comes from
// configuration, never from source.
type Tokens struct {
	secret []byte
	ttl    time.Duration
}

func NewTokens(secret string, ttl time.Duration) *Tokens {
	return &Tokens{secret: []byte(secret), ttl: ttl}
}

// Issue creates a signed token for a user.
func (t *Tokens) Issue(user *domain.User) (string, error) {
	now := time.Now()
	claims := &Claims{
		UserID:  string(user.ID),
		Name:    user.Name,
		Picture: user.ImageURL,
		RegisteredClaims: jwt.RegisteredClaims{
			ExpiresAt: jwt.NewNumericDate(now.Add(t.ttl)),
			IssuedAt:  jwt.NewNumericDate(now),
			Issuer:    "spaces",
		},
	}
	return jwt.NewWithClaims(jwt.SigningMethodHS256, claims).SignedString(t.secret)
}

// Verify checks signature and expiry and maps the claims to a user.
func (t *Tokens) Verify(tokenString string) (*domain.User, error) {
	token, err := jwt.ParseWithClaims(tokenString, &Claims{}, func(_ *jwt.Token) (any, error) {
		return t.secret, nil
	}, jwt.WithValidMethods([]string{jwt.SigningMethodHS256.Alg()}))
	if err != nil {
		return nil, err
	}
	claims, ok := token.Claims.(*Claims)
	if !ok || !token.Valid {
		return nil, ErrInvalidToken
	}
	user, err := domain.NewUser(domain.UserID(claims.UserID), claims.Name, claims.Picture)
	if err != nil {
		return nil, ErrInvalidToken
	}
	return user, nil
}

package auth_test

import (
	"testing"
	"time"

	"github.com/stretchr/testify/require"

	"github.com/spacesapp/spaces/internal/auth"
	"github.com/spacesapp/spaces/internal/domain"
)

func TestTokenRoundTrip(t *testing.T) {
	req := require.New(t)
	tokens := auth.NewTokens("unit-secret", time.Hour)

	user, err := domain.NewUser("u1", "alice", "https://cdn.example/u1.png")
	req.NoError(err)

	raw, err := tokens.Issue(user)
	req.NoError(err)

	got, err := tokens.Verify(raw)
	req.NoError(err)
	req.Equal(user.ID, got.ID)
	req.Equal(user.Name, got.Name)
	req.Equal(user.ImageURL, got.ImageURL)
}

func TestTokenExpired(t *testing.T) {
	req := require.New(t)
	tokens := auth.NewTokens("unit-secret", -time.Minute)

	user, err := domain.NewUser("u1", "alice", "")
	req.NoError(err)
	raw, err := tokens.Issue(user)
	req.NoError(err)

	_, err = tokens.Verify(raw)
	req.Error(err)
}

func TestTokenWrongSecret(t *testing.T) {
	req := require.New(t)
	issuer := auth.NewTokens("secret-a", time.Hour)
	verifier := auth.NewTokens("secret-b", time.Hour)

	user, err := domain.NewUser("u1", "alice", "")
	req.NoError(err)
	raw, err := issuer.Issue(user)
	req.NoError(err)

	_, err = verifier.Verify(raw)
	req.Error(err)
}

func TestTokenGarbage(t *testing.T) {
	tokens := auth.NewTokens("unit-secret", time.Hour)
	_, err := tokens.Verify("not-a-jwt")
	require.Error(t, err)
}

package client_test

import (
	"context"
	"net/http/httptest"
	"strings"
	"testing"
	"time"

	"github.com/stretchr/testify/require"

	"github.com/spacesapp/spaces/client"
	router "github.com/spacesapp/spaces/internal/adapters/http"
	"github.com/spacesapp/spaces/internal/app"
	"github.com/spacesapp/spaces/internal/auth"
	"github.com/spacesapp/spaces/internal/config"
	"github.com/spacesapp/spaces/internal/core"
	"github.com/spacesapp/spaces/internal/domain"
	"github.com/spacesapp/spaces/internal/proto"
)

type env struct {
	reg    *app.Registry
	tokens *auth.Tokens
	wsBase string
}

func startServer(t *testing.T) *env {
	t.Helper()
	cfg := &config.Config{
		Mode:           "test",
		Secret:         "client-test-secret",
		TokenTTL:       time.Hour,
		AuthTimeout:    2 * time.Second,
		ReadLimit:      32768,
		PingPeriod:     54 * time.Second,
		WriteTimeout:   2 * time.Second,
		SendBuffer:     32,
		MalformedLimit: 8,
	}
	tokens := auth.NewTokens(cfg.Secret, cfg.TokenTTL)
	reg := app.NewRegistry(app.AuthGuard{}, app.KickPolicy{})
	srv := httptest.NewServer(router.SetupRouter(cfg, reg, tokens))
	t.Cleanup(srv.Close)
	return &env{reg: reg, tokens: tokens, wsBase: "ws" + strings.TrimPrefix(srv.URL, "http")}
}

func (e *env) user(t *testing.T, id, name string) (*domain.User, string) {
	t.Helper()
	u, err := domain.NewUser(domain.UserID(id), name, "")
	require.NoError(t, err)
	tok, err := e.tokens.Issue(u)
	require.NoError(t, err)
	return u, tok
}

func (e *env) room(t *testing.T, host *domain.User, topic string) *core.RoomActor {
	t.Helper()
	actor, err := e.reg.Create(host, topic)
	require.NoError(t, err)
	return actor
}

// waitFor drains events until one of the wanted type arrives.
func waitFor(t *testing.T, c *client.Client, typ string) client.Event {
	t.Helper()
	deadline := time.After(3 * time.Second)
	for {
		select {
		case ev, ok := <-c.Events():
			require.True(t, ok, "event stream closed while waiting for %q", typ)
			if ev.Type == typ {
				return ev
			}
		case <-deadline:
			t.Fatalf("timed out waiting for %q", typ)
		}
	}
}

func waitClosed(t *testing.T, c *client.Client) {
	t.Helper()
	deadline := time.After(3 * time.Second)
	for {
		select {
		case _, ok := <-c.Events():
			if !ok {
				require.Eventually(t, func() bool { return c.State() == client.StateClosed },
					time.Second, 10*time.Millisecond)
				return
			}
		case <-deadline:
			t.Fatal("event stream did not close")
		}
	}
}

func TestConnectIsIdempotent(t *testing.T) {
	req := require.New(t)
	e := startServer(t)
	host, hostTok := e.user(t, "h1", "hana")
	actor := e.room(t, host, "idempotence")

	c := client.New(e.wsBase, actor.Summary().ID, hostTok)
	req.Equal(client.StateIdle, c.State())

	req.NoError(c.Connect(context.Background()))
	req.Equal(client.StateAttached, c.State())

	// Re-mount semantics: a second connect must not open a second socket.
	req.NoError(c.Connect(context.Background()))
	req.Equal(client.StateAttached, c.State())
	req.Len(actor.Details().Participants, 1)

	req.NoError(c.Close())
	waitClosed(t, c)

	// Closed is terminal; connect stays a no-op.
	req.NoError(c.Connect(context.Background()))
	req.Equal(client.StateClosed, c.State())
}

func TestSendBeforeConnect(t *testing.T) {
	c := client.New("ws://localhost:0", "r", "tok")
	require.ErrorIs(t, c.SendMessage("hello"), client.ErrNotAttached)
}

func TestSpaceSessionFlow(t *testing.T) {
	req := require.New(t)
	e := startServer(t)
	host, hostTok := e.user(t, "h1", "hana")
	_, lenaTok := e.user(t, "l1", "lena")
	actor := e.room(t, host, "flow")
	id := actor.Summary().ID

	hc := client.New(e.wsBase, id, hostTok)
	req.NoError(hc.Connect(context.Background()))

	lc := client.New(e.wsBase, id, lenaTok)
	req.NoError(lc.Connect(context.Background()))

	// Host is told about the new listener.
	joined := waitFor(t, hc, proto.TypeUserJoined)
	req.Equal(domain.UserID("l1"), joined.UserID)
	req.Equal(domain.RoleListener, joined.Participant.Role)

	// Speaking before promotion earns a private denial only.
	req.NoError(lc.SendMessage("am I live?"))
	denial := waitFor(t, lc, proto.TypeError)
	req.NotEmpty(denial.Err)

	// Promotion is visible to everyone.
	req.NoError(hc.ChangeRole("l1", domain.RoleSpeaker))
	req.Equal(domain.RoleSpeaker, waitFor(t, hc, proto.TypeRoleUpdated).Role)
	req.Equal(domain.RoleSpeaker, waitFor(t, lc, proto.TypeRoleUpdated).Role)

	// And the promoted speaker's message echoes to both sides.
	req.NoError(lc.SendMessage("hello from lena"))
	got := waitFor(t, hc, proto.TypeMessage)
	req.Equal("hello from lena", got.Text)
	req.Equal("lena", got.UserName)
	req.Equal("hello from lena", waitFor(t, lc, proto.TypeMessage).Text)

	// Teardown reaches every session exactly once, then the streams end.
	req.NoError(actor.End(host.ID))
	waitFor(t, hc, proto.TypeSpaceEnd)
	waitFor(t, lc, proto.TypeSpaceEnd)
	waitClosed(t, hc)
	waitClosed(t, lc)
}

func TestBadTokenStreamCloses(t *testing.T) {
	req := require.New(t)
	e := startServer(t)
	host, _ := e.user(t, "h1", "hana")
	actor := e.room(t, host, "auth")

	c := client.New(e.wsBase, actor.Summary().ID, "forged")
	req.NoError(c.Connect(context.Background()))
	waitClosed(t, c)
	req.Len(actor.Details().Participants, 1)
}

package http_test

import (
	"bytes"
	nethttp "net/http"
	"net/http/httptest"
	"testing"
	"time"

	"github.com/gin-gonic/gin"
	json "github.com/goccy/go-json"
	"github.com/stretchr/testify/require"

	router "github.com/spacesapp/spaces/internal/adapters/http"
	"github.com/spacesapp/spaces/internal/app"
	"github.com/spacesapp/spaces/internal/auth"
	"github.com/spacesapp/spaces/internal/config"
	"github.com/spacesapp/spaces/internal/domain"
)

func testConfig() *config.Config {
	return &config.Config{
		Mode:           "debug",
		Secret:         "test-secret",
		TokenTTL:       time.Hour,
		AuthTimeout:    time.Second,
		ReadLimit:      32768,
		PingPeriod:     54 * time.Second,
		WriteTimeout:   time.Second,
		SendBuffer:     32,
		MalformedLimit: 8,
	}
}

func newTestRouter(t *testing.T) (*gin.Engine, *auth.Tokens) {
	t.Helper()
	cfg := testConfig()
	tokens := auth.NewTokens(cfg.Secret, cfg.TokenTTL)
	reg := app.NewRegistry(app.AuthGuard{}, app.KickPolicy{})
	return router.SetupRouter(cfg, reg, tokens), tokens
}

func tokenFor(t *testing.T, tokens *auth.Tokens, id, name string) string {
	t.Helper()
	u, err := domain.NewUser(domain.UserID(id), name, "")
	require.NoError(t, err)
	raw, err := tokens.Issue(u)
	require.NoError(t, err)
	return raw
}

func doJSON(t *testing.T, r *gin.Engine, method, path, token string, body any) *httptest.ResponseRecorder {
	t.Helper()
	var buf bytes.Buffer
	if body != nil {
		require.NoError(t, json.NewEncoder(&buf).Encode(body))
	}
	req := httptest.NewRequest(method, path, &buf)
	if token != "" {
		req.Header.Set("Authorization", "Bearer "+token)
	}
	req.Header.Set("Content-Type", "application/json")
	w := httptest.NewRecorder()
	r.ServeHTTP(w, req)
	return w
}

func decodeBody[T any](t *testing.T, w *httptest.ResponseRecorder) T {
	t.Helper()
	var v T
	require.NoError(t, json.Unmarshal(w.Body.Bytes(), &v))
	return v
}

func TestRESTRequiresBearerToken(t *testing.T) {
	req := require.New(t)
	r, _ := newTestRouter(t)

	w := doJSON(t, r, nethttp.MethodPost, "/api/spaces/create", "", gin.H{"topic": "x"})
	req.Equal(nethttp.StatusUnauthorized, w.Code)

	w = doJSON(t, r, nethttp.MethodGet, "/api/spaces/active", "garbage-token", nil)
	req.Equal(nethttp.StatusUnauthorized, w.Code)
}

func TestSpaceLifecycleOverREST(t *testing.T) {
	req := require.New(t)
	r, tokens := newTestRouter(t)
	hostTok := tokenFor(t, tokens, "h1", "hana")
	userTok := tokenFor(t, tokens, "u1", "umi")

	// Create.
	w := doJSON(t, r, nethttp.MethodPost, "/api/spaces/create", hostTok, gin.H{"topic": "morning talk"})
	req.Equal(nethttp.StatusCreated, w.Code)
	created := decodeBody[map[string]string](t, w)
	spaceID := created["space_id"]
	req.NotEmpty(spaceID)

	// One active room per host.
	w = doJSON(t, r, nethttp.MethodPost, "/api/spaces/create", hostTok, gin.H{"topic": "second"})
	req.Equal(nethttp.StatusConflict, w.Code)

	// Lobby listing.
	w = doJSON(t, r, nethttp.MethodGet, "/api/spaces/active", userTok, nil)
	req.Equal(nethttp.StatusOK, w.Code)
	list := decodeBody[[]map[string]string](t, w)
	req.Len(list, 1)
	req.Equal(spaceID, list[0]["id"])
	req.Equal("hana", list[0]["host_name"])

	// Snapshot before any connection: host is the sole participant.
	w = doJSON(t, r, nethttp.MethodGet, "/api/spaces/"+spaceID, userTok, nil)
	req.Equal(nethttp.StatusOK, w.Code)
	details := decodeBody[struct {
		HostID       string               `json:"host_id"`
		Participants []domain.Participant `json:"participants"`
	}](t, w)
	req.Equal("h1", details.HostID)
	req.Len(details.Participants, 1)

	// Pre-join is idempotent.
	w = doJSON(t, r, nethttp.MethodPost, "/api/spaces/join/"+spaceID, userTok, nil)
	req.Equal(nethttp.StatusNoContent, w.Code)
	w = doJSON(t, r, nethttp.MethodPost, "/api/spaces/join/"+spaceID, userTok, nil)
	req.Equal(nethttp.StatusNoContent, w.Code)

	w = doJSON(t, r, nethttp.MethodGet, "/api/spaces/"+spaceID, userTok, nil)
	details = decodeBody[struct {
		HostID       string               `json:"host_id"`
		Participants []domain.Participant `json:"participants"`
	}](t, w)
	req.Len(details.Participants, 2)
	req.Equal(domain.RoleListener, details.Participants[1].Role)

	// Only the host may end.
	w = doJSON(t, r, nethttp.MethodPost, "/api/spaces/end/"+spaceID, userTok, nil)
	req.Equal(nethttp.StatusForbidden, w.Code)

	w = doJSON(t, r, nethttp.MethodPost, "/api/spaces/end/"+spaceID, hostTok, nil)
	req.Equal(nethttp.StatusNoContent, w.Code)

	// Ended room is gone from every surface.
	w = doJSON(t, r, nethttp.MethodGet, "/api/spaces/active", userTok, nil)
	req.Equal("[]", w.Body.String())
	w = doJSON(t, r, nethttp.MethodGet, "/api/spaces/"+spaceID, userTok, nil)
	req.Equal(nethttp.StatusNotFound, w.Code)
	w = doJSON(t, r, nethttp.MethodPost, "/api/spaces/join/"+spaceID, userTok, nil)
	req.Equal(nethttp.StatusNotFound, w.Code)
}

func TestGetUnknownSpace(t *testing.T) {
	r, tokens := newTestRouter(t)
	w := doJSON(t, r, nethttp.MethodGet, "/api/spaces/nope", tokenFor(t, tokens, "u1", "umi"), nil)
	require.Equal(t, nethttp.StatusNotFound, w.Code)
}

func TestDebugTokenIssue(t *testing.T) {
	req := require.New(t)
	r, tokens := newTestRouter(t)

	w := doJSON(t, r, nethttp.MethodPost, "/api/auth/token", "", gin.H{"user_id": "d1", "user_name": "dev"})
	req.Equal(nethttp.StatusOK, w.Code)
	body := decodeBody[map[string]string](t, w)

	user, err := tokens.Verify(body["token"])
	req.NoError(err)
	req.Equal(domain.UserID("d1"), user.ID)

	// Identity fields are mandatory.
	w = doJSON(t, r, nethttp.MethodPost, "/api/auth/token", "", gin.H{"user_id": "d1"})
	req.Equal(nethttp.StatusBadRequest, w.Code)
}

package http

import (
	"errors"
	"net/http"
	"strings"

	"github.com/gin-gonic/gin"
	"github.com/rs/zerolog/log"

	"github.com/spacesapp/spaces/internal/app"
	"github.com/spacesapp/spaces/internal/auth"
	"github.com/spacesapp/spaces/internal/core"
	"github.com/spacesapp/spaces/internal/domain"
)

const userKey = "user"

type Handlers struct {
	Registry *app.Registry
	Tokens   *auth.Tokens
}

func NewHandlers(reg *app.Registry, tokens *auth.Tokens) *Handlers {
	return &Handlers{Registry: reg, Tokens: tokens}
}

// BearerAuth resolves the Authorization header to a user before any space
// handler runs.
func BearerAuth(tokens *auth.Tokens) gin.HandlerFunc {
	return func(c *gin.Context) {
		raw := bearerToken(c.GetHeader("Authorization"))
		if raw == "" {
			c.AbortWithStatusJSON(http.StatusUnauthorized, gin.H{"error": "missing token"})
			return
		}
		user, err := tokens.Verify(raw)
		if err != nil {
			c.AbortWithStatusJSON(http.StatusUnauthorized, gin.H{"error": "invalid token"})
			return
		}
		c.Set(userKey, user)
		c.Next()
	}
}

func bearerToken(header string) string {
	if header == "" {
		return ""
	}
	parts := strings.SplitN(header, " ", 2)
	if len(parts) == 2 && strings.EqualFold(parts[0], "bearer") {
		return parts[1]
	}
	return ""
}

func currentUser(c *gin.Context) *domain.User {
	return c.MustGet(userKey).(*domain.User)
}

type createSpaceRequest struct {
	Topic string `json:"topic"`
}

func (h *Handlers) CreateSpace(c *gin.Context) {
	var req createSpaceRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		c.JSON(http.StatusBadRequest, gin.H{"error": "invalid body"})
		return
	}
	user := currentUser(c)
	actor, err := h.Registry.Create(user, req.Topic)
	if err != nil {
		if errors.Is(err, app.ErrAlreadyHosting) {
			c.JSON(http.StatusConflict, gin.H{"error": "already hosting an active space"})
			return
		}
		c.JSON(http.StatusInternalServerError, gin.H{"error": "create failed"})
		return
	}
	log.Info().Str("module", "adapters.http").Str("room", string(actor.Summary().ID)).Str("host", string(user.ID)).Msg("space created")
	c.JSON(http.StatusCreated, gin.H{"space_id": actor.Summary().ID})
}

func (h *Handlers) ListActive(c *gin.Context) {
	list := h.Registry.ListActive()
	if list == nil {
		list = []core.RoomSummary{}
	}
	c.JSON(http.StatusOK, list)
}

func (h *Handlers) GetSpace(c *gin.Context) {
	actor, err := h.Registry.Get(domain.RoomID(c.Param("id")))
	if errors.Is(err, app.ErrRoomNotFound) {
		c.JSON(http.StatusNotFound, gin.H{"error": "space not found"})
		return
	}
	c.JSON(http.StatusOK, actor.Details())
}

// JoinSpace is the optional pre-join. Idempotent with the connection-level
// join: a user already on the roster gets a 204 and no roster change.
func (h *Handlers) JoinSpace(c *gin.Context) {
	actor, err := h.Registry.Get(domain.RoomID(c.Param("id")))
	if errors.Is(err, app.ErrRoomNotFound) {
		c.JSON(http.StatusNotFound, gin.H{"error": "space not found"})
		return
	}
	if err := actor.PreJoin(currentUser(c)); err != nil {
		c.JSON(http.StatusNotFound, gin.H{"error": "space ended"})
		return
	}
	c.Status(http.StatusNoContent)
}

// EndSpace is the REST teardown path; it routes to the same actor End as
// the connection-level one.
func (h *Handlers) EndSpace(c *gin.Context) {
	actor, err := h.Registry.Get(domain.RoomID(c.Param("id")))
	if errors.Is(err, app.ErrRoomNotFound) {
		c.JSON(http.StatusNotFound, gin.H{"error": "space not found"})
		return
	}
	err = actor.End(currentUser(c).ID)
	switch {
	case errors.Is(err, core.ErrDenied):
		c.JSON(http.StatusForbidden, gin.H{"error": "only the host can end a space"})
	case errors.Is(err, core.ErrRoomEnded):
		c.JSON(http.StatusNotFound, gin.H{"error": "space ended"})
	case err != nil:
		c.JSON(http.StatusInternalServerError, gin.H{"error": "end failed"})
	default:
		c.Status(http.StatusNoContent)
	}
}

type debugTokenRequest struct {
	UserID   string `json:"user_id" binding:"required"`
	UserName string `json:"user_name" binding:"required"`
	ImageURL string `json:"profile_image_url"`
}

func (h *Handlers) DebugToken(c *gin.Context) {
	var req debugTokenRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		c.JSON(http.StatusBadRequest, gin.H{"error": "missing or invalid identity"})
		return
	}
	user, err := domain.NewUser(domain.UserID(req.UserID), req.UserName, req.ImageURL)
	if err != nil {
		c.JSON(http.StatusBadRequest, gin.H{"error": err.Error()})
		return
	}
	token, err := h.Tokens.Issue(user)
	if err != nil {
		c.JSON(http.StatusInternalServerError, gin.H{"error": "token issue failed"})
		return
	}
	c.JSON(http.StatusOK, gin.H{"token": token})
}

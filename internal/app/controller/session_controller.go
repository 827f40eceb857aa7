package controller

import (
	"net/http"

	"github.com/gin-gonic/gin"
	"github.com/ikkim/storefront-backend/config"
	apperrors "github.com/ikkim/storefront-backend/internal/errors"
	"github.com/ikkim/storefront-backend/internal/middleware"
	"github.com/ikkim/storefront-backend/pkg/util"
)

type SessionController struct {
	cfg config.SessionConfig
}

func NewSessionController(cfg config.SessionConfig) *SessionController {
	return &SessionController{cfg: cfg}
}

// CreateSession issues an anonymous cart session token. A valid token
// already presented is returned as is.
// POST /api/v1/session
func (ctrl *SessionController) CreateSession(c *gin.Context) {
	log := middleware.GetLoggerFromContext(c)

	if sessionID, ok := middleware.GetSessionID(c); ok {
		token := c.GetHeader(middleware.SessionTokenHeader)
		if token == "" {
			token = c.Query("token")
		}
		c.JSON(http.StatusOK, gin.H{
			"session_id": sessionID,
			"token":      token,
			"created":    false,
		})
		return
	}

	sessionID := util.NewSessionID()
	token, err := util.GenerateSessionToken(sessionID, ctrl.cfg.Secret, ctrl.cfg.TokenExpiry)
	if err != nil {
		log.Error("Failed to issue session token", err)
		apperrors.InternalError(c, "")
		return
	}

	log.Info("Session issued", map[string]interface{}{
		"session_id": sessionID,
	})

	c.JSON(http.StatusCreated, gin.H{
		"session_id": sessionID,
		"token":      token,
		"created":    true,
	})
}

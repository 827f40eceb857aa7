package middleware

import (
	"errors"

	"github.com/gin-gonic/gin"
	apperrors "github.com/ikkim/storefront-backend/internal/errors"
	"github.com/ikkim/storefront-backend/pkg/util"
)

const (
	SessionTokenHeader = "X-Session-Token"
	SessionIDKey       = "session_id"
)

type SessionMiddleware struct {
	secret string
}

func NewSessionMiddleware(secret string) *SessionMiddleware {
	return &SessionMiddleware{secret: secret}
}

// sessionToken reads the header first, then the token query parameter used
// by WebSocket clients that cannot set headers.
func sessionToken(c *gin.Context) string {
	if token := c.GetHeader(SessionTokenHeader); token != "" {
		return token
	}
	return c.Query("token")
}

// RequireSession rejects requests without a valid session token and stores
// the session id in the context.
func (m *SessionMiddleware) RequireSession() gin.HandlerFunc {
	return func(c *gin.Context) {
		log := GetLoggerFromContext(c)

		token := sessionToken(c)
		if token == "" {
			log.Warn("Missing session token", map[string]interface{}{
				"path": c.Request.URL.Path,
			})
			apperrors.Unauthorized(c, apperrors.SessionRequired, "")
			c.Abort()
			return
		}

		claims, err := util.ValidateSessionToken(token, m.secret)
		if err != nil {
			log.Warn("Session token validation failed", map[string]interface{}{
				"path":  c.Request.URL.Path,
				"error": err.Error(),
			})
			if errors.Is(err, util.ErrExpiredToken) {
				apperrors.Unauthorized(c, apperrors.SessionTokenExpired, "Your session has expired")
			} else {
				apperrors.Unauthorized(c, apperrors.SessionTokenInvalid, "Invalid session token")
			}
			c.Abort()
			return
		}

		c.Set(SessionIDKey, claims.SessionID)
		c.Set("logger", log.WithSession(claims.SessionID))
		c.Next()
	}
}

// OptionalSession sets the session id when a valid token is presented and
// otherwise continues without one.
func (m *SessionMiddleware) OptionalSession() gin.HandlerFunc {
	return func(c *gin.Context) {
		token := sessionToken(c)
		if token == "" {
			c.Next()
			return
		}

		claims, err := util.ValidateSessionToken(token, m.secret)
		if err != nil {
			GetLoggerFromContext(c).Debug("Ignoring invalid session token", map[string]interface{}{
				"path":  c.Request.URL.Path,
				"error": err.Error(),
			})
			c.Next()
			return
		}

		c.Set(SessionIDKey, claims.SessionID)
		c.Next()
	}
}

// GetSessionID extracts the session id set by the session middleware.
func GetSessionID(c *gin.Context) (string, bool) {
	sessionID := c.GetString(SessionIDKey)
	return sessionID, sessionID != ""
}

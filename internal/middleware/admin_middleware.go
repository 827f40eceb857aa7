package middleware

import (
	"github.com/gin-gonic/gin"
	apperrors "github.com/ikkim/storefront-backend/internal/errors"
	"github.com/ikkim/storefront-backend/pkg/util"
)

const AdminKeyHeader = "X-API-KEY"

type AdminMiddleware struct {
	keyHash string
}

// NewAdminMiddleware checks X-API-KEY against a bcrypt hash. An empty hash
// leaves admin routes open.
func NewAdminMiddleware(keyHash string) *AdminMiddleware {
	return &AdminMiddleware{keyHash: keyHash}
}

func (m *AdminMiddleware) RequireAPIKey() gin.HandlerFunc {
	return func(c *gin.Context) {
		log := GetLoggerFromContext(c)

		if m.keyHash == "" {
			log.Debug("Admin key check disabled", map[string]interface{}{
				"path": c.Request.URL.Path,
			})
			c.Next()
			return
		}

		key := c.GetHeader(AdminKeyHeader)
		if key == "" || !util.VerifyAPIKey(m.keyHash, key) {
			log.Warn("Admin key rejected", map[string]interface{}{
				"path":    c.Request.URL.Path,
				"present": key != "",
			})
			apperrors.Forbidden(c, "A valid admin API key is required")
			c.Abort()
			return
		}

		c.Next()
	}
}

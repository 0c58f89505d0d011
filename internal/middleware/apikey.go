package middleware

import (
	"crypto/subtle"

	"github.com/gin-gonic/gin"

	"github.com/xxxsen/ragdex/internal/pkg/errcode"
	"github.com/xxxsen/ragdex/internal/pkg/response"
)

// APIKeyAuth guards admin routes with a static key carried in X-Api-Key.
// With no key configured the guarded routes stay disabled instead of
// silently open.
func APIKeyAuth(key string) gin.HandlerFunc {
	secret := []byte(key)
	return func(c *gin.Context) {
		if len(secret) == 0 {
			response.Error(c, errcode.ErrUnauthorized, "admin api is not enabled")
			c.Abort()
			return
		}
		provided := []byte(c.GetHeader("X-Api-Key"))
		if subtle.ConstantTimeCompare(provided, secret) != 1 {
			response.Error(c, errcode.ErrUnauthorized, "invalid api key")
			c.Abort()
			return
		}
		c.Next()
	}
}

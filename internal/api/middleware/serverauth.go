package middleware

import (
	"crypto/subtle"
	"net/http"

	"github.com/gin-gonic/gin"
)

const serverSecretHeader = "X-Game-Server-Secret"

// ServerAuth guards endpoints reserved for game servers. The shared secret is
// a deployment credential, distinct from player JWTs.
func ServerAuth(secret string) gin.HandlerFunc {
	return func(c *gin.Context) {
		provided := c.GetHeader(serverSecretHeader)

		if secret == "" || subtle.ConstantTimeCompare([]byte(provided), []byte(secret)) != 1 {
			c.JSON(http.StatusUnauthorized, gin.H{
				"error": "Invalid game server credentials",
			})
			c.Abort()
			return
		}

		c.Next()
	}
}

package auth

import (
	"storyweave/backend/internal/config"

	"github.com/gin-gonic/gin"
)

// OptionalAuthMiddleware inspects for a token and sets the userID if present and valid,
// but does not fail if the token is missing or invalid.
func OptionalAuthMiddleware() gin.HandlerFunc {
	return func(c *gin.Context) {
		if userID, ok := userIDFromHeader(c.GetHeader("Authorization"), config.AppConfig.JWTSecret); ok {
			c.Set("userID", userID)
		}
		c.Next()
	}
}

package handler

import (
	"net/http"

	"github.com/gin-gonic/gin"

	"storyweave/backend/internal/database"
	"storyweave/backend/internal/game"
	"storyweave/backend/internal/models"
)

// ErrorResponse represents a generic error response.
type ErrorResponse struct {
	Error string `json:"error" example:"An error message"`
}

// statusForKind maps a coordinator failure to an HTTP status.
func statusForKind(kind game.Kind) int {
	switch kind {
	case game.KindValidation:
		return http.StatusBadRequest
	case game.KindAuthorization:
		return http.StatusForbidden
	case game.KindNotFound:
		return http.StatusNotFound
	case game.KindPhase, game.KindCapacity, game.KindConflict:
		return http.StatusConflict
	default:
		return http.StatusBadGateway
	}
}

// abortGameError writes a coordinator failure as a JSON error response.
func abortGameError(c *gin.Context, err error) {
	c.JSON(statusForKind(game.KindOf(err)), gin.H{"error": err.Error()})
}

// currentIdentity resolves the authenticated caller into the identity the
// coordinator consumes. The role carried by the identity is decided by the
// coordinator per room, never here.
func currentIdentity(c *gin.Context) (game.Identity, bool) {
	userID, exists := c.Get("userID")
	if !exists {
		c.JSON(http.StatusUnauthorized, gin.H{"error": "User not authenticated"})
		return game.Identity{}, false
	}

	var user models.User
	if err := database.DB.First(&user, userID).Error; err != nil {
		c.JSON(http.StatusNotFound, gin.H{"error": "Authenticated user not found"})
		return game.Identity{}, false
	}
	return game.Identity{ID: user.ID, Name: user.Nickname}, true
}

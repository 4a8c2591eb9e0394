package handler

import (
	"net/http"
	"strconv"

	"github.com/gin-gonic/gin"
	"gorm.io/gorm"

	"storyweave/backend/internal/config"
	"storyweave/backend/internal/database"
	"storyweave/backend/internal/game"
	"storyweave/backend/internal/models"
)

// region --- DTOs ---

// CreateRoomInput defines the structure for creating a room.
type CreateRoomInput struct {
	WorldID  uint           `json:"world_id" binding:"required" example:"1"`
	Name     string         `json:"name" binding:"required,max=255" example:"Friday night run"`
	Capacity int            `json:"capacity" binding:"required,min=1,max=10" example:"5"`
	Settings *SettingsInput `json:"settings"`
}

// SettingsInput defines the structure for session settings. Zero-value fields
// fall back to server defaults.
type SettingsInput struct {
	DiscussionSeconds int  `json:"discussion_seconds" example:"300"`
	ActionSeconds     int  `json:"action_seconds" example:"300"`
	AutoContinue      bool `json:"auto_continue" example:"false"`
	RequireAllPlayers bool `json:"require_all_players" example:"true"`
	MaxChapters       int  `json:"max_chapters" example:"5"`
}

func (in *SettingsInput) toSettings() game.Settings {
	if in == nil {
		return game.Settings{}
	}
	return game.Settings{
		DiscussionSeconds: in.DiscussionSeconds,
		ActionSeconds:     in.ActionSeconds,
		AutoContinue:      in.AutoContinue,
		RequireAllPlayers: in.RequireAllPlayers,
		MaxChapters:       in.MaxChapters,
	}
}

// SelectCharacterInput defines the structure for claiming a character.
type SelectCharacterInput struct {
	CharacterID uint `json:"character_id" binding:"required" example:"3"`
}

// MessageInput defines the structure for posting a chat message.
type MessageInput struct {
	Content string `json:"content" binding:"required" example:"Ready when you are."`
}

// endregion

func loadWorldInfo(c *gin.Context, worldID, userID uint) (game.WorldInfo, bool) {
	var world models.World
	if err := database.DB.First(&world, worldID).Error; err != nil {
		c.JSON(http.StatusNotFound, gin.H{"error": "World not found"})
		return game.WorldInfo{}, false
	}
	if !world.IsPublic && world.CreatorID != userID {
		c.JSON(http.StatusForbidden, gin.H{"error": "World is private"})
		return game.WorldInfo{}, false
	}
	return game.WorldInfo{
		ID:      world.ID,
		Title:   world.Title,
		Summary: world.Summary,
		Context: world.Context,
	}, true
}

// region --- Room Handlers ---

// CreateRoom godoc
// @Summary      Create a room
// @Description  Creates a new room in a world, making the creator its admin.
// @Tags         rooms
// @Accept       json
// @Produce      json
// @Security     BearerAuth
// @Param        input body CreateRoomInput true "Room Info"
// @Success      201  {object}  game.RoomView
// @Failure      400  {object}  ErrorResponse
// @Failure      401  {object}  ErrorResponse
// @Failure      404  {object}  ErrorResponse "World not found"
// @Router       /rooms [post]
func CreateRoom(c *gin.Context) {
	identity, ok := currentIdentity(c)
	if !ok {
		return
	}

	var input CreateRoomInput
	if err := c.ShouldBindJSON(&input); err != nil {
		c.JSON(http.StatusBadRequest, gin.H{"error": err.Error()})
		return
	}

	world, ok := loadWorldInfo(c, input.WorldID, identity.ID)
	if !ok {
		return
	}

	settings := input.Settings.toSettings()
	if settings.DiscussionSeconds == 0 {
		settings.DiscussionSeconds = config.AppConfig.DiscussionSeconds
	}
	if settings.ActionSeconds == 0 {
		settings.ActionSeconds = config.AppConfig.ActionSeconds
	}
	if settings.MaxChapters == 0 {
		settings.MaxChapters = config.AppConfig.MaxChapters
	}

	view, err := game.Default.CreateRoom(identity, input.Name, world, input.Capacity, settings)
	if err != nil {
		abortGameError(c, err)
		return
	}

	database.DB.Model(&models.World{}).Where("id = ?", world.ID).
		UpdateColumn("usage_count", gorm.Expr("usage_count + 1"))

	c.JSON(http.StatusCreated, view)
}

// ListRooms godoc
// @Summary      List open rooms
// @Description  Lists rooms still waiting for players.
// @Tags         rooms
// @Produce      json
// @Security     BearerAuth
// @Success      200  {array}  game.RoomView
// @Router       /rooms [get]
func ListRooms(c *gin.Context) {
	c.JSON(http.StatusOK, game.Default.Rooms())
}

// GetRoomByID godoc
// @Summary      Get a room
// @Description  Gets the full live state of a single room.
// @Tags         rooms
// @Produce      json
// @Security     BearerAuth
// @Param        id path int true "Room ID"
// @Success      200  {object}  game.RoomView
// @Failure      404  {object}  ErrorResponse
// @Router       /rooms/{id} [get]
func GetRoomByID(c *gin.Context) {
	roomID, _ := strconv.Atoi(c.Param("id"))

	view, err := game.Default.Room(uint(roomID))
	if err != nil {
		abortGameError(c, err)
		return
	}
	c.JSON(http.StatusOK, view)
}

// GetRoomByCode godoc
// @Summary      Find a room by join code
// @Description  Resolves a join code to the room it belongs to.
// @Tags         rooms
// @Produce      json
// @Security     BearerAuth
// @Param        code path string true "Join code"
// @Success      200  {object}  game.RoomView
// @Failure      404  {object}  ErrorResponse
// @Router       /rooms/code/{code} [get]
func GetRoomByCode(c *gin.Context) {
	view, err := game.Default.RoomByCode(c.Param("code"))
	if err != nil {
		abortGameError(c, err)
		return
	}
	c.JSON(http.StatusOK, view)
}

// JoinRoom godoc
// @Summary      Join a room
// @Description  Joins a waiting room. Joining a room already joined is a no-op.
// @Tags         rooms
// @Produce      json
// @Security     BearerAuth
// @Param        id path int true "Room ID"
// @Success      200  {object}  game.RoomView
// @Failure      404  {object}  ErrorResponse "Room not found"
// @Failure      409  {object}  ErrorResponse "Room is full or already started"
// @Router       /rooms/{id}/join [post]
func JoinRoom(c *gin.Context) {
	identity, ok := currentIdentity(c)
	if !ok {
		return
	}
	roomID, _ := strconv.Atoi(c.Param("id"))

	view, err := game.Default.JoinRoom(uint(roomID), identity)
	if err != nil {
		abortGameError(c, err)
		return
	}
	c.JSON(http.StatusOK, view)
}

// LeaveRoom godoc
// @Summary      Leave a room
// @Description  Leaves a room. Handles admin transfer and teardown of emptied rooms.
// @Tags         rooms
// @Produce      json
// @Security     BearerAuth
// @Param        id path int true "Room ID"
// @Success      200  {object}  map[string]string "{"message": "Left room"}"
// @Failure      404  {object}  ErrorResponse
// @Router       /rooms/{id}/leave [post]
func LeaveRoom(c *gin.Context) {
	userID, _ := c.Get("userID")
	roomID, _ := strconv.Atoi(c.Param("id"))

	if err := game.Default.LeaveRoom(uint(roomID), userID.(uint)); err != nil {
		abortGameError(c, err)
		return
	}
	c.JSON(http.StatusOK, gin.H{"message": "Left room"})
}

// SelectCharacter godoc
// @Summary      Select a character
// @Description  Claims one of the caller's characters for the upcoming session. A character already claimed by another member is rejected.
// @Tags         rooms
// @Accept       json
// @Produce      json
// @Security     BearerAuth
// @Param        id    path int                  true "Room ID"
// @Param        input body SelectCharacterInput true "Character choice"
// @Success      200  {object}  game.RoomView
// @Failure      404  {object}  ErrorResponse "Room or character not found"
// @Failure      409  {object}  ErrorResponse "Character already claimed"
// @Router       /rooms/{id}/character [post]
func SelectCharacter(c *gin.Context) {
	userID, _ := c.Get("userID")
	roomID, _ := strconv.Atoi(c.Param("id"))

	var input SelectCharacterInput
	if err := c.ShouldBindJSON(&input); err != nil {
		c.JSON(http.StatusBadRequest, gin.H{"error": err.Error()})
		return
	}

	var character models.Character
	if err := database.DB.Where("owner_id = ?", userID).First(&character, input.CharacterID).Error; err != nil {
		c.JSON(http.StatusNotFound, gin.H{"error": "Character not found"})
		return
	}

	view, err := game.Default.SelectCharacter(uint(roomID), userID.(uint), game.CharacterInfo{
		ID:         character.ID,
		Name:       character.Name,
		Background: character.Background,
	})
	if err != nil {
		abortGameError(c, err)
		return
	}
	c.JSON(http.StatusOK, view)
}

// ToggleReady godoc
// @Summary      Toggle readiness
// @Description  Flips the caller's ready flag. Readying up requires a selected character. When every member is ready with a character, the session activates.
// @Tags         rooms
// @Produce      json
// @Security     BearerAuth
// @Param        id path int true "Room ID"
// @Success      200  {object}  game.RoomView
// @Failure      404  {object}  ErrorResponse
// @Failure      409  {object}  ErrorResponse "No character selected"
// @Router       /rooms/{id}/ready [post]
func ToggleReady(c *gin.Context) {
	userID, _ := c.Get("userID")
	roomID, _ := strconv.Atoi(c.Param("id"))

	view, err := game.Default.ToggleReady(uint(roomID), userID.(uint))
	if err != nil {
		abortGameError(c, err)
		return
	}
	c.JSON(http.StatusOK, view)
}

// StartRoom godoc
// @Summary      Start a room (Admin only)
// @Description  Moves the room into character selection and creates its session.
// @Tags         rooms
// @Produce      json
// @Security     BearerAuth
// @Param        id path int true "Room ID"
// @Success      200  {object}  game.RoomView
// @Failure      403  {object}  ErrorResponse "Only the admin can start the room"
// @Failure      409  {object}  ErrorResponse "Not enough members or already started"
// @Router       /rooms/{id}/start [post]
func StartRoom(c *gin.Context) {
	userID, _ := c.Get("userID")
	roomID, _ := strconv.Atoi(c.Param("id"))

	view, err := game.Default.StartRoom(uint(roomID), userID.(uint))
	if err != nil {
		abortGameError(c, err)
		return
	}
	c.JSON(http.StatusOK, view)
}

// PostRoomMessage godoc
// @Summary      Post a room message
// @Description  Posts a chat message to the room lobby.
// @Tags         rooms
// @Accept       json
// @Produce      json
// @Security     BearerAuth
// @Param        id    path int          true "Room ID"
// @Param        input body MessageInput true "Message"
// @Success      201  {object}  game.Message
// @Failure      400  {object}  ErrorResponse
// @Failure      404  {object}  ErrorResponse
// @Router       /rooms/{id}/messages [post]
func PostRoomMessage(c *gin.Context) {
	identity, ok := currentIdentity(c)
	if !ok {
		return
	}
	roomID, _ := strconv.Atoi(c.Param("id"))

	var input MessageInput
	if err := c.ShouldBindJSON(&input); err != nil {
		c.JSON(http.StatusBadRequest, gin.H{"error": err.Error()})
		return
	}

	msg, err := game.Default.PostRoomMessage(uint(roomID), identity, input.Content, game.MessageChat)
	if err != nil {
		abortGameError(c, err)
		return
	}
	c.JSON(http.StatusCreated, msg)
}

// ListRoomMessages godoc
// @Summary      List room messages
// @Description  Lists the lobby messages of a room in id order.
// @Tags         rooms
// @Produce      json
// @Security     BearerAuth
// @Param        id path int true "Room ID"
// @Success      200  {array}  game.Message
// @Failure      404  {object}  ErrorResponse
// @Router       /rooms/{id}/messages [get]
func ListRoomMessages(c *gin.Context) {
	roomID, _ := strconv.Atoi(c.Param("id"))

	view, err := game.Default.Room(uint(roomID))
	if err != nil {
		abortGameError(c, err)
		return
	}
	c.JSON(http.StatusOK, view.Messages)
}

// endregion

package handler

import (
	"fmt"
	"net/http"
	"strconv"
	"strings"

	"github.com/gin-gonic/gin"

	"storyweave/backend/internal/game"
)

// region --- DTOs ---

// ContinueInput defines the structure for marking readiness to continue.
type ContinueInput struct {
	Ready bool `json:"ready" example:"true"`
}

// ActionInput defines the structure for proposing a story action.
type ActionInput struct {
	Content string `json:"content" binding:"required" example:"Maren slips out through the tide gate."`
}

// ReviewInput defines the structure for reviewing a proposed action.
type ReviewInput struct {
	Approve bool `json:"approve" example:"true"`
}

// UpdateSettingsInput defines the structure for patching session settings.
// Omitted numeric fields keep their current values.
type UpdateSettingsInput struct {
	DiscussionSeconds *int  `json:"discussion_seconds" example:"180"`
	ActionSeconds     *int  `json:"action_seconds" example:"240"`
	AutoContinue      *bool `json:"auto_continue" example:"true"`
	RequireAllPlayers *bool `json:"require_all_players" example:"false"`
	MaxChapters       *int  `json:"max_chapters" example:"8"`
}

// endregion

// region --- Game Handlers ---

// GetGame godoc
// @Summary      Get a game session
// @Description  Gets the full live state of a session, chapters and actions included.
// @Tags         games
// @Produce      json
// @Security     BearerAuth
// @Param        id path int true "Session ID"
// @Success      200  {object}  game.SessionView
// @Failure      404  {object}  ErrorResponse
// @Router       /games/{id} [get]
func GetGame(c *gin.Context) {
	sessionID, _ := strconv.Atoi(c.Param("id"))

	view, err := game.Default.Session(uint(sessionID))
	if err != nil {
		abortGameError(c, err)
		return
	}
	c.JSON(http.StatusOK, view)
}

// ListGameMembers godoc
// @Summary      List session members
// @Description  Lists the current members of a session with their characters.
// @Tags         games
// @Produce      json
// @Security     BearerAuth
// @Param        id path int true "Session ID"
// @Success      200  {array}  game.MemberView
// @Failure      404  {object}  ErrorResponse
// @Router       /games/{id}/members [get]
func ListGameMembers(c *gin.Context) {
	sessionID, _ := strconv.Atoi(c.Param("id"))

	view, err := game.Default.Session(uint(sessionID))
	if err != nil {
		abortGameError(c, err)
		return
	}
	c.JSON(http.StatusOK, view.Members)
}

// MarkContinue godoc
// @Summary      Mark readiness to continue
// @Description  Records whether the caller is ready to move from discussion to the action phase. When the quorum is reached the session advances.
// @Tags         games
// @Accept       json
// @Produce      json
// @Security     BearerAuth
// @Param        id    path int           true "Session ID"
// @Param        input body ContinueInput true "Readiness"
// @Success      200  {object}  game.SessionView
// @Failure      404  {object}  ErrorResponse
// @Failure      409  {object}  ErrorResponse "Session is not in discussion"
// @Router       /games/{id}/continue [post]
func MarkContinue(c *gin.Context) {
	userID, _ := c.Get("userID")
	sessionID, _ := strconv.Atoi(c.Param("id"))

	var input ContinueInput
	if err := c.ShouldBindJSON(&input); err != nil {
		c.JSON(http.StatusBadRequest, gin.H{"error": err.Error()})
		return
	}

	view, err := game.Default.MarkContinue(uint(sessionID), userID.(uint), input.Ready)
	if err != nil {
		abortGameError(c, err)
		return
	}
	c.JSON(http.StatusOK, view)
}

// ProposeAction godoc
// @Summary      Propose an action
// @Description  Submits a story action for the current chapter during the action phase. The action is attributed to the caller's character and awaits admin review.
// @Tags         games
// @Accept       json
// @Produce      json
// @Security     BearerAuth
// @Param        id    path int         true "Session ID"
// @Param        input body ActionInput true "Action"
// @Success      201  {object}  game.Action
// @Failure      400  {object}  ErrorResponse
// @Failure      404  {object}  ErrorResponse
// @Failure      409  {object}  ErrorResponse "Session is not in the action phase"
// @Router       /games/{id}/actions [post]
func ProposeAction(c *gin.Context) {
	identity, ok := currentIdentity(c)
	if !ok {
		return
	}
	sessionID, _ := strconv.Atoi(c.Param("id"))

	var input ActionInput
	if err := c.ShouldBindJSON(&input); err != nil {
		c.JSON(http.StatusBadRequest, gin.H{"error": err.Error()})
		return
	}

	action, err := game.Default.ProposeAction(uint(sessionID), identity, input.Content)
	if err != nil {
		abortGameError(c, err)
		return
	}
	c.JSON(http.StatusCreated, action)
}

// ListActions godoc
// @Summary      List actions
// @Description  Lists the actions of a session, optionally filtered by chapter.
// @Tags         games
// @Produce      json
// @Security     BearerAuth
// @Param        id      path  int true  "Session ID"
// @Param        chapter query int false "Filter by chapter number"
// @Success      200  {array}  game.Action
// @Failure      404  {object}  ErrorResponse
// @Router       /games/{id}/actions [get]
func ListActions(c *gin.Context) {
	sessionID, _ := strconv.Atoi(c.Param("id"))

	view, err := game.Default.Session(uint(sessionID))
	if err != nil {
		abortGameError(c, err)
		return
	}

	actions := view.Actions
	if chapter := c.Query("chapter"); chapter != "" {
		number, err := strconv.Atoi(chapter)
		if err != nil {
			c.JSON(http.StatusBadRequest, gin.H{"error": "Invalid chapter number"})
			return
		}
		filtered := make([]game.Action, 0, len(actions))
		for _, a := range actions {
			if a.ChapterNumber == number {
				filtered = append(filtered, a)
			}
		}
		actions = filtered
	}

	c.JSON(http.StatusOK, actions)
}

// ReviewAction godoc
// @Summary      Review an action (Admin only)
// @Description  Approves or rejects a pending action. Approved actions feed the next chapter.
// @Tags         games
// @Accept       json
// @Produce      json
// @Security     BearerAuth
// @Param        id       path int         true "Session ID"
// @Param        actionID path int         true "Action ID"
// @Param        input    body ReviewInput true "Decision"
// @Success      200  {object}  game.Action
// @Failure      403  {object}  ErrorResponse "Only the admin can review actions"
// @Failure      404  {object}  ErrorResponse
// @Failure      409  {object}  ErrorResponse "Action is not pending"
// @Router       /games/{id}/actions/{actionID}/review [post]
func ReviewAction(c *gin.Context) {
	userID, _ := c.Get("userID")
	sessionID, _ := strconv.Atoi(c.Param("id"))
	actionID, _ := strconv.Atoi(c.Param("actionID"))

	var input ReviewInput
	if err := c.ShouldBindJSON(&input); err != nil {
		c.JSON(http.StatusBadRequest, gin.H{"error": err.Error()})
		return
	}

	action, err := game.Default.ReviewAction(uint(sessionID), userID.(uint), uint(actionID), input.Approve)
	if err != nil {
		abortGameError(c, err)
		return
	}
	c.JSON(http.StatusOK, action)
}

// PostGameMessage godoc
// @Summary      Post a game message
// @Description  Posts a chat message to a running session.
// @Tags         games
// @Accept       json
// @Produce      json
// @Security     BearerAuth
// @Param        id    path int          true "Session ID"
// @Param        input body MessageInput true "Message"
// @Success      201  {object}  game.Message
// @Failure      404  {object}  ErrorResponse
// @Failure      409  {object}  ErrorResponse "Session has finished"
// @Router       /games/{id}/messages [post]
func PostGameMessage(c *gin.Context) {
	identity, ok := currentIdentity(c)
	if !ok {
		return
	}
	sessionID, _ := strconv.Atoi(c.Param("id"))

	var input MessageInput
	if err := c.ShouldBindJSON(&input); err != nil {
		c.JSON(http.StatusBadRequest, gin.H{"error": err.Error()})
		return
	}

	msg, err := game.Default.PostGameMessage(uint(sessionID), identity, input.Content, game.MessageChat)
	if err != nil {
		abortGameError(c, err)
		return
	}
	c.JSON(http.StatusCreated, msg)
}

// ListMessages godoc
// @Summary      List game messages
// @Description  Lists the messages of a session in id order.
// @Tags         games
// @Produce      json
// @Security     BearerAuth
// @Param        id path int true "Session ID"
// @Success      200  {array}  game.Message
// @Failure      404  {object}  ErrorResponse
// @Router       /games/{id}/messages [get]
func ListMessages(c *gin.Context) {
	sessionID, _ := strconv.Atoi(c.Param("id"))

	view, err := game.Default.Session(uint(sessionID))
	if err != nil {
		abortGameError(c, err)
		return
	}
	c.JSON(http.StatusOK, view.Messages)
}

// ListChapters godoc
// @Summary      List chapters
// @Description  Lists the chapters written so far, in order.
// @Tags         games
// @Produce      json
// @Security     BearerAuth
// @Param        id path int true "Session ID"
// @Success      200  {array}  game.Chapter
// @Failure      404  {object}  ErrorResponse
// @Router       /games/{id}/chapters [get]
func ListChapters(c *gin.Context) {
	sessionID, _ := strconv.Atoi(c.Param("id"))

	view, err := game.Default.Session(uint(sessionID))
	if err != nil {
		abortGameError(c, err)
		return
	}
	c.JSON(http.StatusOK, view.Chapters)
}

// LeaveGame godoc
// @Summary      Leave a game session
// @Description  Leaves a running session. Handles admin transfer and finishes sessions emptied of members.
// @Tags         games
// @Produce      json
// @Security     BearerAuth
// @Param        id path int true "Session ID"
// @Success      200  {object}  map[string]string "{"message": "Left game"}"
// @Failure      404  {object}  ErrorResponse
// @Router       /games/{id}/leave [post]
func LeaveGame(c *gin.Context) {
	userID, _ := c.Get("userID")
	sessionID, _ := strconv.Atoi(c.Param("id"))

	if err := game.Default.LeaveSession(uint(sessionID), userID.(uint)); err != nil {
		abortGameError(c, err)
		return
	}
	c.JSON(http.StatusOK, gin.H{"message": "Left game"})
}

// EndGame godoc
// @Summary      End a game session (Admin only)
// @Description  Finishes the session immediately regardless of phase.
// @Tags         games
// @Produce      json
// @Security     BearerAuth
// @Param        id path int true "Session ID"
// @Success      200  {object}  map[string]string "{"message": "Game ended"}"
// @Failure      403  {object}  ErrorResponse "Only the admin can end the game"
// @Failure      404  {object}  ErrorResponse
// @Router       /games/{id}/end [post]
func EndGame(c *gin.Context) {
	userID, _ := c.Get("userID")
	sessionID, _ := strconv.Atoi(c.Param("id"))

	if err := game.Default.ForceEnd(uint(sessionID), userID.(uint)); err != nil {
		abortGameError(c, err)
		return
	}
	c.JSON(http.StatusOK, gin.H{"message": "Game ended"})
}

// AdvanceGame godoc
// @Summary      Force chapter advance (Admin only)
// @Description  Retries the advance out of an action phase whose deadline has already passed, typically after a failed generation.
// @Tags         games
// @Produce      json
// @Security     BearerAuth
// @Param        id path int true "Session ID"
// @Success      200  {object}  map[string]string "{"message": "Advancing"}"
// @Failure      403  {object}  ErrorResponse
// @Failure      404  {object}  ErrorResponse
// @Failure      409  {object}  ErrorResponse "Deadline has not passed"
// @Router       /games/{id}/advance [post]
func AdvanceGame(c *gin.Context) {
	userID, _ := c.Get("userID")
	sessionID, _ := strconv.Atoi(c.Param("id"))

	if err := game.Default.AdvanceNow(uint(sessionID), userID.(uint)); err != nil {
		abortGameError(c, err)
		return
	}
	c.JSON(http.StatusOK, gin.H{"message": "Advancing"})
}

// UpdateGameSettings godoc
// @Summary      Update session settings (Admin only)
// @Description  Patches the session settings. Changes apply from the next phase transition onward.
// @Tags         games
// @Accept       json
// @Produce      json
// @Security     BearerAuth
// @Param        id    path int                 true "Session ID"
// @Param        input body UpdateSettingsInput true "Settings patch"
// @Success      200  {object}  game.SessionView
// @Failure      403  {object}  ErrorResponse
// @Failure      404  {object}  ErrorResponse
// @Router       /games/{id}/settings [patch]
func UpdateGameSettings(c *gin.Context) {
	userID, _ := c.Get("userID")
	sessionID, _ := strconv.Atoi(c.Param("id"))

	var input UpdateSettingsInput
	if err := c.ShouldBindJSON(&input); err != nil {
		c.JSON(http.StatusBadRequest, gin.H{"error": err.Error()})
		return
	}

	current, err := game.Default.Session(uint(sessionID))
	if err != nil {
		abortGameError(c, err)
		return
	}

	patch := current.Settings
	if input.DiscussionSeconds != nil {
		patch.DiscussionSeconds = *input.DiscussionSeconds
	}
	if input.ActionSeconds != nil {
		patch.ActionSeconds = *input.ActionSeconds
	}
	if input.AutoContinue != nil {
		patch.AutoContinue = *input.AutoContinue
	}
	if input.RequireAllPlayers != nil {
		patch.RequireAllPlayers = *input.RequireAllPlayers
	}
	if input.MaxChapters != nil {
		patch.MaxChapters = *input.MaxChapters
	}

	view, err := game.Default.UpdateSettings(uint(sessionID), userID.(uint), patch)
	if err != nil {
		abortGameError(c, err)
		return
	}
	c.JSON(http.StatusOK, view)
}

// ExportGame godoc
// @Summary      Export the story
// @Description  Downloads the written chapters of a session as plain text.
// @Tags         games
// @Produce      plain
// @Security     BearerAuth
// @Param        id path int true "Session ID"
// @Success      200  {string}  string
// @Failure      404  {object}  ErrorResponse
// @Router       /games/{id}/export [get]
func ExportGame(c *gin.Context) {
	sessionID, _ := strconv.Atoi(c.Param("id"))

	view, err := game.Default.Session(uint(sessionID))
	if err != nil {
		abortGameError(c, err)
		return
	}

	var b strings.Builder
	fmt.Fprintf(&b, "%s\n", view.Name)
	if view.World.Title != "" {
		fmt.Fprintf(&b, "A story set in %s\n", view.World.Title)
	}
	for _, ch := range view.Chapters {
		fmt.Fprintf(&b, "\n\nChapter %d\n\n%s\n", ch.Number, ch.Content)
	}

	c.Header("Content-Disposition", fmt.Sprintf("attachment; filename=\"story-%d.txt\"", view.ID))
	c.Data(http.StatusOK, "text/plain; charset=utf-8", []byte(b.String()))
}

// endregion

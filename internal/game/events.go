package game

import (
	"fmt"
	"time"

	"storyweave/backend/internal/hub"
)

// Broadcaster is the fan-out boundary. Delivery is fire-and-forget relative
// to the mutation that produced the event.
type Broadcaster interface {
	Broadcast(channel string, event hub.Event)
}

// Event types pushed over the room channel.
const (
	EvtSnapshot          = "snapshot"
	EvtRoomUpdate        = "room_update"
	EvtMemberJoined      = "member_joined"
	EvtMemberLeft        = "member_left"
	EvtReadyUpdate       = "ready_update"
	EvtCharacterSelected = "character_selected"
	EvtNewMessage        = "new_message"
	EvtGameStarted       = "game_started"
	EvtRoomClosed        = "room_closed"
)

// Event types pushed over the game channel.
const (
	EvtChapterCreated     = "game:chapter_created"
	EvtDiscussionStarted  = "game:discussion_started"
	EvtActionPhaseStarted = "game:action_phase_started"
	EvtContinueUpdate     = "game:continue_update"
	EvtActionsUpdated     = "game:actions_updated"
	EvtActionReviewed     = "game:action_reviewed"
	EvtPhaseChanged       = "game:phase_changed"
	EvtGameMessage        = "game:new_message"
	EvtGameMemberLeft     = "game:member_left"
	EvtGameFinished       = "game:finished"
	EvtGenerationFailed   = "game:generation_failed"
)

// RoomChannel is the hub channel key for a room.
func RoomChannel(roomID uint) string { return fmt.Sprintf("room:%d", roomID) }

// GameChannel is the hub channel key for a session.
func GameChannel(sessionID uint) string { return fmt.Sprintf("game:%d", sessionID) }

// ChapterCreatedData announces a freshly appended chapter.
type ChapterCreatedData struct {
	ChapterNumber     int    `json:"chapter_number"`
	Content           string `json:"content"`
	DiscussionSeconds int    `json:"discussion_seconds"`
}

// PhaseTimerData announces a timed phase opening.
type PhaseTimerData struct {
	Phase            SessionPhase `json:"phase"`
	EndsAt           time.Time    `json:"ends_at"`
	SecondsTotal     int          `json:"seconds_total"`
	RemainingSeconds int          `json:"remaining_seconds"`
	AutoContinue     bool         `json:"auto_continue"`
}

// ContinueUpdateData reports the ready-to-continue tally.
type ContinueUpdateData struct {
	ReadyCount       int `json:"ready_count"`
	Total            int `json:"total"`
	RemainingSeconds int `json:"remaining_seconds"`
}

// ReadyUpdateData reports the character-selection readiness tally.
type ReadyUpdateData struct {
	UserID     uint `json:"user_id"`
	Ready      bool `json:"ready"`
	ReadyCount int  `json:"ready_count"`
	Total      int  `json:"total"`
}

// MemberData reports a membership delta.
type MemberData struct {
	UserID  uint   `json:"user_id"`
	Name    string `json:"name"`
	AdminID uint   `json:"admin_id"`
	Total   int    `json:"total"`
}

// PhaseChangedData announces the new authoritative phase.
type PhaseChangedData struct {
	Phase SessionPhase `json:"phase"`
}

// ActionsUpdatedData points clients at the chapter whose action list changed.
type ActionsUpdatedData struct {
	ChapterNumber int `json:"chapter_number"`
}

// ActionReviewedData reports an admin decision on an action.
type ActionReviewedData struct {
	ActionID uint         `json:"action_id"`
	Status   ActionStatus `json:"status"`
}

// GenerationFailedData surfaces a content-generation failure to participants.
type GenerationFailedData struct {
	ChapterNumber int    `json:"chapter_number"`
	Reason        string `json:"reason"`
}

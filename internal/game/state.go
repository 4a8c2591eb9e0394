package game

import (
	"sync"
	"time"
)

// Role is a member's capability level inside a room or session.
type Role string

const (
	RoleAdmin  Role = "admin"
	RolePlayer Role = "player"
)

// ActionStatus is the review state of a proposed action. Pending actions
// transition to approved or rejected exactly once.
type ActionStatus string

const (
	ActionPending  ActionStatus = "pending"
	ActionApproved ActionStatus = "approved"
	ActionRejected ActionStatus = "rejected"
)

// MessageType tags a room or session message.
type MessageType string

const (
	MessageChat   MessageType = "chat"
	MessageSystem MessageType = "system"
	MessageAction MessageType = "action"
	MessageStory  MessageType = "story"
)

// Settings is the per-session timing and quorum configuration.
type Settings struct {
	DiscussionSeconds int  `json:"discussion_seconds"`
	ActionSeconds     int  `json:"action_seconds"`
	AutoContinue      bool `json:"auto_continue"`
	RequireAllPlayers bool `json:"require_all_players"`
	MaxChapters       int  `json:"max_chapters"`
}

// WorldInfo is the slice of a world the coordinator and the chapter writer
// need. The full world record stays with the persistence layer.
type WorldInfo struct {
	ID      uint   `json:"id"`
	Title   string `json:"title"`
	Summary string `json:"summary"`
	Context string `json:"context"`
}

// CharacterInfo is the slice of a character the coordinator needs.
type CharacterInfo struct {
	ID         uint   `json:"id"`
	Name       string `json:"name"`
	Background string `json:"background"`
}

// Member is a participant's relationship to a room and, once started, its
// session. Members keep join order; admin transfer follows it.
type Member struct {
	UserID        uint      `json:"user_id"`
	Name          string    `json:"name"`
	Role          Role      `json:"role"`
	Ready         bool      `json:"ready"`
	CharacterID   uint      `json:"character_id,omitempty"`
	CharacterName string    `json:"character_name,omitempty"`
	Background    string    `json:"-"`
	JoinedAt      time.Time `json:"joined_at"`
}

// Chapter is one immutable unit of narrative content.
type Chapter struct {
	Number    int       `json:"number"`
	Content   string    `json:"content"`
	CreatedAt time.Time `json:"created_at"`
	ActionIDs []uint    `json:"action_ids,omitempty"`
}

// Action is a player's proposed in-story action awaiting review.
type Action struct {
	ID            uint         `json:"id"`
	UserID        uint         `json:"user_id"`
	UserName      string       `json:"user_name"`
	CharacterID   uint         `json:"character_id,omitempty"`
	CharacterName string       `json:"character_name,omitempty"`
	Content       string       `json:"content"`
	Status        ActionStatus `json:"status"`
	ChapterNumber int          `json:"chapter_number"`
	CreatedAt     time.Time    `json:"created_at"`
}

// Message is an append-only chat, system or action message. Ordering is the
// store-assigned id, ties broken by insertion order.
type Message struct {
	ID        uint        `json:"id"`
	UserID    uint        `json:"user_id,omitempty"`
	UserName  string      `json:"user_name,omitempty"`
	Content   string      `json:"content"`
	Type      MessageType `json:"type"`
	CreatedAt time.Time   `json:"created_at"`
}

// DeadlineInfo is the active countdown of a session. Remaining time is always
// derived from the absolute expiry, never from a decrementing counter.
type DeadlineInfo struct {
	ExpiresAt    time.Time `json:"ends_at"`
	SecondsTotal int       `json:"seconds_total"`
}

// Remaining reports whole seconds left at now, clamped at zero.
func (d *DeadlineInfo) Remaining(now time.Time) int {
	if d == nil {
		return 0
	}
	left := int(d.ExpiresAt.Sub(now).Seconds())
	if left < 0 {
		return 0
	}
	return left
}

// RoomState is the in-memory authoritative state of a lobby. All mutations go
// through the coordinator under the room's lock.
type RoomState struct {
	mu sync.Mutex

	ID       uint
	Name     string
	JoinCode string
	World    WorldInfo
	Capacity int
	Phase    RoomPhase
	Members  []*Member
	Settings Settings
	Messages []Message

	// SessionID is non-zero once the room is linked; linking happens
	// exactly once.
	SessionID uint

	CreatedAt time.Time
}

func (r *RoomState) member(userID uint) *Member {
	for _, m := range r.Members {
		if m.UserID == userID {
			return m
		}
	}
	return nil
}

func (r *RoomState) admin() *Member {
	for _, m := range r.Members {
		if m.Role == RoleAdmin {
			return m
		}
	}
	return nil
}

// SessionState is the in-memory authoritative state of a live game.
type SessionState struct {
	mu sync.Mutex

	ID             uint
	RoomID         uint
	Name           string
	World          WorldInfo
	Phase          SessionPhase
	CurrentChapter int
	Members        []*Member
	ContinueReady  map[uint]bool
	Settings       Settings
	Deadline       *DeadlineInfo
	Chapters       []Chapter
	Actions        []Action
	Messages       []Message

	// advancing guards the finalize path so a deadline firing and a
	// quorum firing for the same chapter produce one transition.
	advancing bool

	// deadlineSpent marks a countdown that has already produced its
	// transition. A failed advance restores the elapsed record so clients
	// still see the closed window, and the reap path must not replay it.
	deadlineSpent bool

	CreatedAt time.Time
}

func (s *SessionState) member(userID uint) *Member {
	for _, m := range s.Members {
		if m.UserID == userID {
			return m
		}
	}
	return nil
}

func (s *SessionState) admin() *Member {
	for _, m := range s.Members {
		if m.Role == RoleAdmin {
			return m
		}
	}
	return nil
}

func (s *SessionState) readyCount() int {
	n := 0
	for _, m := range s.Members {
		if s.ContinueReady[m.UserID] {
			n++
		}
	}
	return n
}

func (s *SessionState) currentActions() []Action {
	out := make([]Action, 0, len(s.Actions))
	for _, a := range s.Actions {
		if a.ChapterNumber == s.CurrentChapter {
			out = append(out, a)
		}
	}
	return out
}

func (s *SessionState) approvedActions(chapter int) []Action {
	out := []Action{}
	for _, a := range s.Actions {
		if a.ChapterNumber == chapter && a.Status == ActionApproved {
			out = append(out, a)
		}
	}
	return out
}

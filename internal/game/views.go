package game

import "time"

// MemberView is the public projection of a member.
type MemberView struct {
	UserID        uint   `json:"user_id"`
	Name          string `json:"name"`
	Role          Role   `json:"role"`
	Ready         bool   `json:"ready"`
	CharacterID   uint   `json:"character_id,omitempty"`
	CharacterName string `json:"character_name,omitempty"`
}

// DeadlineView reports the active countdown with remaining time derived at
// projection time, so reattaching clients converge regardless of when they
// joined.
type DeadlineView struct {
	EndsAt           time.Time `json:"ends_at"`
	SecondsTotal     int       `json:"seconds_total"`
	RemainingSeconds int       `json:"remaining_seconds"`
}

// RoomView is the public projection of a room, also used as the
// snapshot-on-attach payload for the room channel.
type RoomView struct {
	ID        uint         `json:"id"`
	Name      string       `json:"name"`
	JoinCode  string       `json:"join_code"`
	World     WorldInfo    `json:"world"`
	Capacity  int          `json:"capacity"`
	Phase     RoomPhase    `json:"phase"`
	AdminID   uint         `json:"admin_id"`
	Members   []MemberView `json:"members"`
	Settings  Settings     `json:"settings"`
	SessionID uint         `json:"session_id,omitempty"`
	Messages  []Message    `json:"messages"`
	CreatedAt time.Time    `json:"created_at"`
}

// SessionView is the public projection of a session, also used as the
// snapshot-on-attach payload for the game channel.
type SessionView struct {
	ID             uint          `json:"id"`
	RoomID         uint          `json:"room_id"`
	Name           string        `json:"name"`
	World          WorldInfo     `json:"world"`
	Phase          SessionPhase  `json:"phase"`
	CurrentChapter int           `json:"current_chapter"`
	Members        []MemberView  `json:"members"`
	ReadyCount     int           `json:"ready_count"`
	Settings       Settings      `json:"settings"`
	Deadline       *DeadlineView `json:"deadline,omitempty"`
	Chapters       []Chapter     `json:"chapters"`
	Actions        []Action      `json:"actions"`
	Messages       []Message     `json:"messages"`
	CreatedAt      time.Time     `json:"created_at"`
}

func memberViews(members []*Member) []MemberView {
	out := make([]MemberView, 0, len(members))
	for _, m := range members {
		out = append(out, MemberView{
			UserID:        m.UserID,
			Name:          m.Name,
			Role:          m.Role,
			Ready:         m.Ready,
			CharacterID:   m.CharacterID,
			CharacterName: m.CharacterName,
		})
	}
	return out
}

// view must be called with the room lock held.
func (r *RoomState) view() RoomView {
	v := RoomView{
		ID:        r.ID,
		Name:      r.Name,
		JoinCode:  r.JoinCode,
		World:     r.World,
		Capacity:  r.Capacity,
		Phase:     r.Phase,
		Members:   memberViews(r.Members),
		Settings:  r.Settings,
		SessionID: r.SessionID,
		Messages:  append([]Message{}, r.Messages...),
		CreatedAt: r.CreatedAt,
	}
	if a := r.admin(); a != nil {
		v.AdminID = a.UserID
	}
	return v
}

// view must be called with the session lock held.
func (s *SessionState) view(now time.Time) SessionView {
	v := SessionView{
		ID:             s.ID,
		RoomID:         s.RoomID,
		Name:           s.Name,
		World:          s.World,
		Phase:          s.Phase,
		CurrentChapter: s.CurrentChapter,
		Members:        memberViews(s.Members),
		ReadyCount:     s.readyCount(),
		Settings:       s.Settings,
		Chapters:       append([]Chapter{}, s.Chapters...),
		Actions:        append([]Action{}, s.Actions...),
		Messages:       append([]Message{}, s.Messages...),
		CreatedAt:      s.CreatedAt,
	}
	if s.Deadline != nil {
		v.Deadline = &DeadlineView{
			EndsAt:           s.Deadline.ExpiresAt,
			SecondsTotal:     s.Deadline.SecondsTotal,
			RemainingSeconds: s.Deadline.Remaining(now),
		}
	}
	return v
}

// Package store persists the coordinator's authoritative state. Writes are
// treated as durable; the coordinator never reads its own state back from
// here, so failures are reported but cannot corrupt live sessions.
package store

import (
	"gorm.io/gorm"

	"storyweave/backend/internal/game"
	"storyweave/backend/internal/models"
)

// GormStore implements game.Store on top of the relational schema.
type GormStore struct {
	db *gorm.DB
}

// NewGormStore wraps a gorm connection.
func NewGormStore(db *gorm.DB) *GormStore {
	return &GormStore{db: db}
}

func roomRecord(v game.RoomView) models.Room {
	var sessionID *uint
	if v.SessionID != 0 {
		id := v.SessionID
		sessionID = &id
	}
	return models.Room{
		WorldID:           v.World.ID,
		AdminID:           v.AdminID,
		Name:              v.Name,
		JoinCode:          v.JoinCode,
		Capacity:          v.Capacity,
		Phase:             string(v.Phase),
		DiscussionSeconds: v.Settings.DiscussionSeconds,
		ActionSeconds:     v.Settings.ActionSeconds,
		AutoContinue:      v.Settings.AutoContinue,
		RequireAllPlayers: v.Settings.RequireAllPlayers,
		MaxChapters:       v.Settings.MaxChapters,
		SessionID:         sessionID,
	}
}

func memberRecords(roomID uint, members []game.MemberView) []models.Member {
	out := make([]models.Member, 0, len(members))
	for _, m := range members {
		rec := models.Member{
			RoomID: roomID,
			UserID: m.UserID,
			Role:   string(m.Role),
			Ready:  m.Ready,
		}
		if m.CharacterID != 0 {
			id := m.CharacterID
			rec.CharacterID = &id
		}
		out = append(out, rec)
	}
	return out
}

// CreateRoom persists a new room and reports its allocated id back.
func (s *GormStore) CreateRoom(v *game.RoomView) error {
	rec := roomRecord(*v)
	return s.db.Transaction(func(tx *gorm.DB) error {
		if err := tx.Create(&rec).Error; err != nil {
			return err
		}
		v.ID = rec.ID
		members := memberRecords(rec.ID, v.Members)
		if len(members) == 0 {
			return nil
		}
		return tx.Create(&members).Error
	})
}

// SaveRoom overwrites the durable shadow of a room, membership included.
func (s *GormStore) SaveRoom(v game.RoomView) error {
	rec := roomRecord(v)
	rec.ID = v.ID
	return s.db.Transaction(func(tx *gorm.DB) error {
		if err := tx.Save(&rec).Error; err != nil {
			return err
		}
		if err := tx.Where("room_id = ?", v.ID).Delete(&models.Member{}).Error; err != nil {
			return err
		}
		members := memberRecords(v.ID, v.Members)
		if len(members) == 0 {
			return nil
		}
		return tx.Create(&members).Error
	})
}

// DeleteRoom removes a torn-down room and its membership rows. Messages and
// the linked session survive as history.
func (s *GormStore) DeleteRoom(id uint) error {
	return s.db.Transaction(func(tx *gorm.DB) error {
		if err := tx.Where("room_id = ?", id).Delete(&models.Member{}).Error; err != nil {
			return err
		}
		return tx.Delete(&models.Room{}, id).Error
	})
}

func sessionRecord(v game.SessionView) models.Session {
	return models.Session{
		RoomID:            v.RoomID,
		WorldID:           v.World.ID,
		Name:              v.Name,
		Phase:             string(v.Phase),
		CurrentChapter:    v.CurrentChapter,
		DiscussionSeconds: v.Settings.DiscussionSeconds,
		ActionSeconds:     v.Settings.ActionSeconds,
		AutoContinue:      v.Settings.AutoContinue,
		RequireAllPlayers: v.Settings.RequireAllPlayers,
		MaxChapters:       v.Settings.MaxChapters,
	}
}

// CreateSession persists a new session and reports its allocated id back.
func (s *GormStore) CreateSession(v *game.SessionView) error {
	rec := sessionRecord(*v)
	if err := s.db.Create(&rec).Error; err != nil {
		return err
	}
	v.ID = rec.ID
	return nil
}

// SaveSession overwrites the durable shadow of a session.
func (s *GormStore) SaveSession(v game.SessionView) error {
	rec := sessionRecord(v)
	rec.ID = v.ID
	return s.db.Save(&rec).Error
}

func chapterRecord(sessionID uint, ch game.Chapter) models.Chapter {
	return models.Chapter{
		SessionID: sessionID,
		Number:    ch.Number,
		Content:   ch.Content,
		ActionIDs: ch.ActionIDs,
		CreatedAt: ch.CreatedAt,
	}
}

// AppendChapter persists an immutable chapter, the ids of the actions folded
// into it included.
func (s *GormStore) AppendChapter(sessionID uint, ch game.Chapter) error {
	rec := chapterRecord(sessionID, ch)
	return s.db.Create(&rec).Error
}

// CreateAction persists a proposed action and reports its allocated id back.
func (s *GormStore) CreateAction(sessionID uint, a *game.Action) error {
	rec := models.StoryAction{
		SessionID:     sessionID,
		UserID:        a.UserID,
		Content:       a.Content,
		Status:        string(a.Status),
		ChapterNumber: a.ChapterNumber,
	}
	if a.CharacterID != 0 {
		id := a.CharacterID
		rec.CharacterID = &id
	}
	if err := s.db.Create(&rec).Error; err != nil {
		return err
	}
	a.ID = rec.ID
	return nil
}

// SaveAction records a review decision.
func (s *GormStore) SaveAction(sessionID uint, a game.Action) error {
	return s.db.Model(&models.StoryAction{}).
		Where("id = ? AND session_id = ?", a.ID, sessionID).
		Update("status", string(a.Status)).Error
}

func (s *GormStore) createMessage(rec *models.Message, m *game.Message) error {
	if err := s.db.Create(rec).Error; err != nil {
		return err
	}
	m.ID = rec.ID
	return nil
}

// CreateRoomMessage persists a lobby message.
func (s *GormStore) CreateRoomMessage(roomID uint, m *game.Message) error {
	rec := models.Message{
		RoomID:  &roomID,
		Type:    models.MessageType(m.Type),
		Content: m.Content,
	}
	if m.UserID != 0 {
		id := m.UserID
		rec.UserID = &id
	}
	return s.createMessage(&rec, m)
}

// CreateGameMessage persists a session message.
func (s *GormStore) CreateGameMessage(sessionID uint, m *game.Message) error {
	rec := models.Message{
		SessionID: &sessionID,
		Type:      models.MessageType(m.Type),
		Content:   m.Content,
	}
	if m.UserID != 0 {
		id := m.UserID
		rec.UserID = &id
	}
	return s.createMessage(&rec, m)
}

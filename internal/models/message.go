package models

import "gorm.io/gorm"

type MessageType string

const (
	MessageTypeChat   MessageType = "chat"
	MessageTypeSystem MessageType = "system"
	MessageTypeAction MessageType = "action"
	MessageTypeStory  MessageType = "story"
)

// Message represents a chat message within a room or session. Exactly one of
// RoomID and SessionID is set. Rows are append-only; ordering is the primary
// key, which follows creation order.
type Message struct {
	gorm.Model
	RoomID    *uint       `gorm:"index"`
	SessionID *uint       `gorm:"index"`
	UserID    *uint       // Nullable for system messages
	Type      MessageType `gorm:"size:50;not null;default:'chat'"`
	Content   string      `gorm:"not null"`

	User User `gorm:"foreignKey:UserID"`
}

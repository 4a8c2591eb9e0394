package models

import "gorm.io/gorm"

// Room represents the durable record of a lobby. The authoritative live state
// is held by the game coordinator; this row is the durable-on-write shadow.
type Room struct {
	gorm.Model
	WorldID  uint   `gorm:"not null;index"`
	AdminID  uint   `gorm:"not null"`
	Name     string `gorm:"size:255;not null"`
	JoinCode string `gorm:"size:64;uniqueIndex"`
	Capacity int    `gorm:"not null;default:4"`
	Phase    string `gorm:"size:50;not null;default:'waiting'"`

	DiscussionSeconds int  `gorm:"not null;default:300"`
	ActionSeconds     int  `gorm:"not null;default:300"`
	AutoContinue      bool `gorm:"not null;default:false"`
	RequireAllPlayers bool `gorm:"not null;default:true"`
	MaxChapters       int  `gorm:"not null;default:5"`

	// SessionID is set exactly once, when the room starts.
	SessionID *uint `gorm:"index"`

	World    World     `gorm:"foreignKey:WorldID"`
	Members  []Member  `gorm:"foreignKey:RoomID"`
	Messages []Message `gorm:"foreignKey:RoomID"`
}

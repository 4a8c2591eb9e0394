package models

import "time"

// Member represents a participant's relationship to a room and its session.
// The composite key (RoomID, UserID) keeps membership unique.
type Member struct {
	RoomID      uint   `gorm:"primaryKey"`
	UserID      uint   `gorm:"primaryKey"`
	Role        string `gorm:"size:20;not null;default:'player'"`
	Ready       bool   `gorm:"not null;default:false"`
	CharacterID *uint
	JoinedAt    time.Time
	UpdatedAt   time.Time

	User      User       `gorm:"foreignKey:UserID;references:ID;constraint:OnDelete:CASCADE;"`
	Character *Character `gorm:"foreignKey:CharacterID"`
}

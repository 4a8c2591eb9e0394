package models

import "gorm.io/gorm"

// StoryAction represents a player's proposed in-story action. Status moves
// from pending to approved or rejected exactly once.
type StoryAction struct {
	gorm.Model
	SessionID     uint   `gorm:"not null;index"`
	UserID        uint   `gorm:"not null"`
	CharacterID   *uint
	Content       string `gorm:"not null"`
	Status        string `gorm:"size:20;not null;default:'pending'"`
	ChapterNumber int    `gorm:"not null;index"`
}

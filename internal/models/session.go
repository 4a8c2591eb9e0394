package models

import "gorm.io/gorm"

// Session represents the durable record of a live game.
type Session struct {
	gorm.Model
	RoomID         uint   `gorm:"not null;index"`
	WorldID        uint   `gorm:"not null"`
	Name           string `gorm:"size:255;not null"`
	Phase          string `gorm:"size:50;not null;default:'playing'"`
	CurrentChapter int    `gorm:"not null;default:0"`

	DiscussionSeconds int  `gorm:"not null;default:300"`
	ActionSeconds     int  `gorm:"not null;default:300"`
	AutoContinue      bool `gorm:"not null;default:false"`
	RequireAllPlayers bool `gorm:"not null;default:true"`
	MaxChapters       int  `gorm:"not null;default:5"`

	Chapters []Chapter     `gorm:"foreignKey:SessionID"`
	Actions  []StoryAction `gorm:"foreignKey:SessionID"`
	Messages []Message     `gorm:"foreignKey:SessionID"`
}

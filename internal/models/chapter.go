package models

import "time"

// Chapter represents one immutable unit of narrative content. Rows are
// append-only; they are never edited or deleted.
type Chapter struct {
	ID        uint   `gorm:"primaryKey"`
	SessionID uint   `gorm:"not null;index"`
	Number    int    `gorm:"not null"`
	Content   string
	ActionIDs []uint `gorm:"serializer:json"`
	CreatedAt time.Time
}

package models

import "gorm.io/gorm"

// Character represents a playable character owned by a user. Trait blocks are
// stored as free text, one trait per line.
type Character struct {
	gorm.Model
	OwnerID    uint   `gorm:"not null;index"`
	Name       string `gorm:"size:255;not null"`
	Physical   string
	Mental     string
	Skills     string
	Flaws      string
	Background string
	Beliefs    string

	Owner User `gorm:"foreignKey:OwnerID"`
}

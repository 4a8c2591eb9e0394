package models

import "gorm.io/gorm"

// User represents a registered participant.
type User struct {
	gorm.Model
	Nickname     string `gorm:"size:255;unique;not null"`
	Email        string `gorm:"size:255;unique;not null"`
	PasswordHash string `gorm:"size:255;not null"`

	Worlds     []World     `gorm:"foreignKey:CreatorID"`
	Characters []Character `gorm:"foreignKey:OwnerID"`
}

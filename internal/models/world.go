package models

import "gorm.io/gorm"

// World represents a story setting rooms are created in.
type World struct {
	gorm.Model
	CreatorID  uint   `gorm:"not null;index"`
	Title      string `gorm:"size:255;not null"`
	Summary    string
	Context    string
	Logic      string
	TimePeriod string `gorm:"size:255"`
	Setting    string `gorm:"size:255"`
	IsPublic   bool   `gorm:"not null;default:false"`
	UsageCount int    `gorm:"not null;default:0"`

	Creator User `gorm:"foreignKey:CreatorID"`
}

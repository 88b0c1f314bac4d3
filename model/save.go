package model

import (
	"time"

	"gorm.io/datatypes"
)

// SaveGame is a named world snapshot stored in the database.
type SaveGame struct {
	ID         int64          `gorm:"primaryKey;autoIncrement" json:"id"`
	Name       string         `gorm:"uniqueIndex;size:64;not null" json:"name"`
	Version    int            `gorm:"not null" json:"version"`
	Width      int            `json:"width"`
	Height     int            `json:"height"`
	Tick       uint64         `json:"tick"`
	Characters int            `json:"characters"`
	Furniture  int            `json:"furniture"`
	Data       datatypes.JSON `json:"-"`
	CreatedAt  time.Time      `json:"created_at"`
	UpdatedAt  time.Time      `json:"updated_at"`
}

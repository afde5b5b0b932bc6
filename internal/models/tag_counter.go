package models

import "time"

// TagCounter is the durable sequence row behind asset tag generation.
// NextValue only ever moves forward; a value is issued at most once.
type TagCounter struct {
	Prefix    string    `gorm:"primaryKey;size:16" json:"prefix"`
	NextValue int64     `gorm:"not null;default:1" json:"next_value"`
	UpdatedAt time.Time `json:"updated_at"`
}

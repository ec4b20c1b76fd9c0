package models

import "time"

// Question is a placement prompt presented to users in the first round.
type Question struct {
	ID        uint      `gorm:"primaryKey" json:"id"`
	Question  string    `gorm:"type:text;not null" json:"question" yaml:"question"`
	CreatedAt time.Time `json:"created_at" yaml:"-"`
}

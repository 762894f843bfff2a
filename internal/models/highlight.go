package models

import "time"

// HighlightRowID is the primary key of the single highlight row.
const HighlightRowID uint = 1

// Highlight is the one "current highlight" pointer. Version is bumped on every
// change and guards the conditional update.
type Highlight struct {
	ID              uint       `json:"-" gorm:"primaryKey;autoIncrement:false"`
	LetterID        *uint      `json:"letter_id"`
	HighlightedAt   *time.Time `json:"highlighted_at"`
	HighlightedByID *uint      `json:"highlighted_by_id,omitempty"`
	Version         int64      `json:"version" gorm:"not null;default:0"`
	UpdatedAt       time.Time  `json:"updated_at"`
}

// SetHighlightRequest defines the request body for highlighting a letter
type SetHighlightRequest struct {
	LetterID uint `json:"letter_id" validate:"required"`
}

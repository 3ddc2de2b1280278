package model

import (
	"time"

	"github.com/google/uuid"
)

// Repeat patterns supported by the occurrence engine.
const (
	RepeatDaily   = "daily"
	RepeatWeekly  = "weekly"
	RepeatMonthly = "monthly"
)

type Task struct {
	ID         uuid.UUID  `gorm:"type:uuid;default:uuid_generate_v4();primaryKey"`
	UserID     uuid.UUID  `gorm:"type:uuid;not null;index"`
	ProjectID  *uuid.UUID `gorm:"type:uuid;index"`
	CategoryID *uuid.UUID `gorm:"type:uuid;index"`
	Title      string     `gorm:"not null"`
	Notes      string

	// SeriesID groups all occurrences of one recurring chain. The first
	// occurrence's own ID becomes the series id once recurrence is enabled.
	// At most one row may exist per (series_id, start_date); a partial
	// unique index in the schema enforces this.
	SeriesID *uuid.UUID `gorm:"type:uuid;index"`

	StartDate   time.Time  `gorm:"type:date;not null"`
	DueAt       *time.Time `gorm:"type:date"`
	CompletedOn *time.Time `gorm:"type:date"`
	CompletedAt *time.Time

	RepeatEnabled    bool `gorm:"not null;default:false"`
	RepeatPattern    *string
	RepeatDays       *int
	RepeatWeeklyDay  *int
	RepeatMonthlyDay *int

	CreatedAt time.Time
	UpdatedAt time.Time

	User     User      `gorm:"foreignKey:UserID"`
	Project  *Project  `gorm:"foreignKey:ProjectID"`
	Category *Category `gorm:"foreignKey:CategoryID"`
}

// SeriesAnchor returns the id grouping this task's occurrences: the stored
// series id if set, else the task's own id (a task not yet part of a series
// is its own anchor).
func (t *Task) SeriesAnchor() uuid.UUID {
	if t.SeriesID != nil {
		return *t.SeriesID
	}
	return t.ID
}

// IsDone reports whether the occurrence has been completed.
func (t *Task) IsDone() bool {
	return t.CompletedOn != nil
}

package models

import (
	"time"

	"github.com/google/uuid"
)

// Playback outcome constants
const (
	OutcomeCompleted  = "completed"
	OutcomeFailed     = "failed"
	OutcomeDenylisted = "denylisted"
	OutcomeSkipped    = "skipped"
)

// PlayRecord is one entry in the playback history ledger. Records are
// append-only and exist for diagnostics; playback decisions never read them.
type PlayRecord struct {
	ID        uuid.UUID  `json:"id" gorm:"type:text;primaryKey;column:id"`
	FilePath  string     `json:"file_path" gorm:"type:text;not null;index;column:file_path"`
	Title     string     `json:"title" gorm:"type:text;not null;column:title"`
	Cycle     int        `json:"cycle" gorm:"type:integer;not null;column:cycle"`
	Outcome   string     `json:"outcome" gorm:"type:text;not null;column:outcome"`
	Detail    string     `json:"detail,omitempty" gorm:"type:text;column:detail"`
	StartedAt time.Time  `json:"started_at" gorm:"type:datetime;not null;column:started_at"`
	EndedAt   *time.Time `json:"ended_at,omitempty" gorm:"type:datetime;column:ended_at"`
}

// TableName overrides the GORM table name
func (PlayRecord) TableName() string {
	return "play_records"
}

// NewPlayRecord creates a new PlayRecord with generated UUID and start time
func NewPlayRecord(item MediaItem, cycle int) *PlayRecord {
	return &PlayRecord{
		ID:        uuid.New(),
		FilePath:  item.Path,
		Title:     item.Title(),
		Cycle:     cycle,
		StartedAt: time.Now().UTC(),
	}
}

// Finish sets the outcome and end time on a record
func (r *PlayRecord) Finish(outcome, detail string) {
	now := time.Now().UTC()
	r.Outcome = outcome
	r.Detail = detail
	r.EndedAt = &now
}

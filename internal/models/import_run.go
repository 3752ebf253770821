package models

import (
	"time"

	"gorm.io/datatypes"
	"gorm.io/gorm"
)

// ImportRun records one import session: what was asked for and what happened.
type ImportRun struct {
	ID         string            `json:"id" gorm:"primaryKey;size:36"`
	Source     string            `json:"source" gorm:"size:32;not null"`
	Status     ImportRunStatus   `json:"status" gorm:"size:16;not null;index"`
	Trigger    string            `json:"trigger" gorm:"size:32"`
	DryRun     bool              `json:"dry_run"`
	Options    datatypes.JSONMap `json:"options"`
	Summary    datatypes.JSONMap `json:"summary"`
	Error      *string           `json:"error"`
	StartedAt  *time.Time        `json:"started_at"`
	FinishedAt *time.Time        `json:"finished_at"`
	CreatedAt  time.Time         `json:"created_at"`
	UpdatedAt  time.Time         `json:"updated_at"`
}

type ImportRunStatus string

const (
	ImportRunStatusPending   ImportRunStatus = "PENDING"
	ImportRunStatusRunning   ImportRunStatus = "RUNNING"
	ImportRunStatusCompleted ImportRunStatus = "COMPLETED"
	ImportRunStatusAborted   ImportRunStatus = "ABORTED"
	ImportRunStatusFailed    ImportRunStatus = "FAILED"
)

func (r *ImportRun) BeforeCreate(tx *gorm.DB) error {
	newID(&r.ID)
	return nil
}

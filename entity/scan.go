package entity

import (
	"time"

	"github.com/google/uuid"
	"gorm.io/datatypes"
)

const (
	ScanStatusQueued    = "queued"
	ScanStatusRunning   = "running"
	ScanStatusSucceeded = "succeeded"
	ScanStatusFailed    = "failed"
)

// Scan is the single source of truth for a job's lifecycle. Only the
// repository write path mutates status and timestamps.
type Scan struct {
	ID             uuid.UUID                   `json:"id" gorm:"type:uuid;primaryKey"`
	Status         string                      `json:"status" gorm:"not null;default:queued;index"`
	Profile        string                      `json:"profile" gorm:"not null"`
	Targets        datatypes.JSONSlice[string] `json:"targets" gorm:"not null"`
	Ports          *string                     `json:"ports,omitempty" gorm:"size:255"`
	TimingTemplate string                      `json:"timing_template" gorm:"not null;default:T3"`
	Notes          *string                     `json:"notes,omitempty" gorm:"type:text"`
	Tags           datatypes.JSONSlice[string] `json:"tags"`
	CallbackURL    *string                     `json:"callback_url,omitempty" gorm:"size:2048"`
	ResultXML      *string                     `json:"-" gorm:"type:text"`
	CreatedAt      time.Time                   `json:"created_at"`
	StartedAt      *time.Time                  `json:"started_at,omitempty"`
	FinishedAt     *time.Time                  `json:"finished_at,omitempty"`
	OwnerID        string                      `json:"owner_id" gorm:"index"`
}

func (Scan) TableName() string {
	return "scans"
}

// IsTerminal reports whether the scan reached a state with no outgoing
// transitions.
func (s *Scan) IsTerminal() bool {
	return s.Status == ScanStatusSucceeded || s.Status == ScanStatusFailed
}

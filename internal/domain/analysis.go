package domain

import (
	"time"

	"github.com/google/uuid"
)

// JobStatus is the lifecycle state of an analysis job.
// Valid transitions: pending -> processing -> completed, and
// pending|processing -> error. Idle is the absence of a record.
type JobStatus string

const (
	JobStatusIdle       JobStatus = "idle"
	JobStatusPending    JobStatus = "pending"
	JobStatusProcessing JobStatus = "processing"
	JobStatusCompleted  JobStatus = "completed"
	JobStatusError      JobStatus = "error"
)

// Terminal reports whether no further transitions can follow.
func (s JobStatus) Terminal() bool {
	return s == JobStatusCompleted || s == JobStatusError
}

// InFlight reports whether a job is currently being worked on.
func (s JobStatus) InFlight() bool {
	return s == JobStatusPending || s == JobStatusProcessing
}

// AnalysisJob is one record of a long-running analysis task for a symbol.
// History is append-only per symbol; the most recent record by creation
// time is authoritative.
type AnalysisJob struct {
	ID           uuid.UUID `json:"id"`
	Symbol       string    `json:"symbol"`
	Status       JobStatus `json:"status"`
	Context      string    `json:"context,omitempty"`
	Result       string    `json:"result,omitempty"`
	ErrorMessage string    `json:"error_message,omitempty"`
	CreatedAt    time.Time `json:"created_at"`
	UpdatedAt    time.Time `json:"updated_at"`
}

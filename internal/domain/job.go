package domain

import (
	"time"
)

// Job statuses. A job moves pending -> running -> completed|failed; the
// terminal states are never left.
const (
	JobStatusPending   = "pending"
	JobStatusRunning   = "running"
	JobStatusCompleted = "completed"
	JobStatusFailed    = "failed"
)

// Job trigger reasons.
const (
	TriggerScheduled  = "scheduled"
	TriggerManual     = "manual"
	TriggerDeployment = "deployment"
)

// Job represents one execution attempt of a source's extraction logic.
// Jobs are never deleted; they form the audit trail of every scrape.
type Job struct {
	ID          string `db:"id"           json:"id"`
	SourceID    string `db:"source_id"    json:"source_id"`
	Status      string `db:"status"       json:"status"`
	TriggeredBy string `db:"triggered_by" json:"triggered_by"`

	// WorkflowID is set when the deferred starter hands the job to the
	// worker pool; it guards against duplicate starts.
	WorkflowID *string `db:"workflow_id" json:"workflow_id,omitempty"`

	SessionsFound   int `db:"sessions_found"   json:"sessions_found"`
	SessionsCreated int `db:"sessions_created" json:"sessions_created"`
	SessionsUpdated int `db:"sessions_updated" json:"sessions_updated"`

	ErrorMessage *string    `db:"error_message" json:"error_message,omitempty"`
	StartedAt    *time.Time `db:"started_at"    json:"started_at,omitempty"`
	CompletedAt  *time.Time `db:"completed_at"  json:"completed_at,omitempty"`
	CreatedAt    time.Time  `db:"created_at"    json:"created_at"`
	UpdatedAt    time.Time  `db:"updated_at"    json:"updated_at"`
}

// IsTerminal reports whether the job has reached a terminal status.
func (j *Job) IsTerminal() bool {
	return j.Status == JobStatusCompleted || j.Status == JobStatusFailed
}

// InFlight reports whether the job still counts against its source's
// one-in-flight invariant.
func (j *Job) InFlight() bool {
	return j.Status == JobStatusPending || j.Status == JobStatusRunning
}

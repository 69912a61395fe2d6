package domain

import (
	"time"
)

// Change types recorded against sessions.
const (
	ChangeAdded         = "added"
	ChangeRemoved       = "removed"
	ChangeStatusChanged = "status_changed"
	ChangePriceChanged  = "price_changed"
	ChangeDatesChanged  = "dates_changed"
)

// Change is an immutable record of a detected difference for a session,
// tied to the job that found it. Append-only; never mutated.
type Change struct {
	ID         string    `db:"id"          json:"id"`
	JobID      string    `db:"job_id"      json:"job_id"`
	SessionID  string    `db:"session_id"  json:"session_id"`
	ChangeType string    `db:"change_type" json:"change_type"`
	Detail     JSONBMap  `db:"detail"      json:"detail,omitempty"`
	CreatedAt  time.Time `db:"created_at"  json:"created_at"`
}

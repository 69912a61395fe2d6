package domain

import (
	"database/sql/driver"
	"encoding/json"
	"errors"
	"time"
)

// DevelopmentRequest statuses.
const (
	RequestStatusPending       = "pending"
	RequestStatusInProgress    = "in_progress"
	RequestStatusTesting       = "testing"
	RequestStatusCompleted     = "completed"
	RequestStatusFailed        = "failed"
	RequestStatusNeedsFeedback = "needs_feedback"
)

// Feedback provenance values. Retry-cap logic treats both identically;
// audit views distinguish them.
const (
	FeedbackSourceAutoTest = "auto-test"
	FeedbackSourceHuman    = "human"
)

// DefaultMaxTestRetries bounds the automated generate-test-retry loop.
const DefaultMaxTestRetries = 3

// FeedbackEntry is one entry in a request's feedback history.
type FeedbackEntry struct {
	Timestamp         time.Time `json:"timestamp"`
	Author            string    `json:"author"`
	Source            string    `json:"source"` // auto-test or human
	Text              string    `json:"text"`
	CodeVersionBefore int       `json:"code_version_before"`
}

// FeedbackHistory stores the ordered feedback list as JSONB.
type FeedbackHistory []FeedbackEntry

// Scan implements the sql.Scanner interface.
func (f *FeedbackHistory) Scan(value any) error {
	if value == nil {
		*f = nil
		return nil
	}

	var data []byte
	switch v := value.(type) {
	case string:
		data = []byte(v)
	case []byte:
		data = v
	default:
		return errors.New("unsupported type for FeedbackHistory")
	}

	if len(data) == 0 {
		*f = FeedbackHistory{}
		return nil
	}

	return json.Unmarshal(data, f)
}

// Value implements the driver.Valuer interface.
func (f FeedbackHistory) Value() (driver.Value, error) {
	if len(f) == 0 {
		return []byte("[]"), nil
	}
	return json.Marshal(f)
}

// TestOutcome records the result of the most recent test run.
type TestOutcome struct {
	RanAt         time.Time `json:"ran_at"`
	SessionsFound int       `json:"sessions_found"`
	Error         string    `json:"error,omitempty"`
	ExpectedEmpty bool      `json:"expected_empty,omitempty"`
}

// DevelopmentRequest is a queued unit of work representing "produce or
// repair extraction logic for this source".
type DevelopmentRequest struct {
	ID         string  `db:"id"          json:"id"`
	ParentID   *string `db:"parent_id"   json:"parent_id,omitempty"`
	SourceURL  string  `db:"source_url"  json:"source_url"`
	SourceName string  `db:"source_name" json:"source_name"`
	Market     string  `db:"market"      json:"market"`
	Status     string  `db:"status"      json:"status"`

	ClaimedBy *string    `db:"claimed_by" json:"claimed_by,omitempty"`
	ClaimedAt *time.Time `db:"claimed_at" json:"claimed_at,omitempty"`

	GeneratedCode *string         `db:"generated_code" json:"generated_code,omitempty"`
	CodeVersion   int             `db:"code_version"   json:"code_version"`
	Feedback      FeedbackHistory `db:"feedback"       json:"feedback,omitempty"`

	TestRetryCount int      `db:"test_retry_count" json:"test_retry_count"`
	MaxTestRetries int      `db:"max_test_retries" json:"max_test_retries"`
	LastTest       JSONBMap `db:"last_test"        json:"last_test,omitempty"`

	// Exploration is the persisted site-exploration summary; repeated
	// attempts skip re-exploration once it is set.
	Exploration JSONBMap `db:"exploration" json:"exploration,omitempty"`

	SourceID *string `db:"source_id" json:"source_id,omitempty"`
	Notes    string  `db:"notes"     json:"notes,omitempty"`

	CreatedAt time.Time `db:"created_at" json:"created_at"`
	UpdatedAt time.Time `db:"updated_at" json:"updated_at"`
}

// RetriesExhausted reports whether the automated retry budget is spent.
func (r *DevelopmentRequest) RetriesExhausted() bool {
	return r.TestRetryCount >= r.MaxTestRetries
}

// IsTerminal reports whether the request reached a state the automated
// pipeline will not leave on its own.
func (r *DevelopmentRequest) IsTerminal() bool {
	return r.Status == RequestStatusCompleted || r.Status == RequestStatusFailed
}

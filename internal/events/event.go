// Package events publishes job and alert lifecycle events to Redis
// Streams for downstream consumers.
package events

import (
	"time"

	"github.com/google/uuid"
)

// StreamName is the Redis stream all campscout events land on.
const StreamName = "campscout:events"

// Event types.
const (
	JobCompleted = "job.completed"
	JobFailed    = "job.failed"
	AlertCreated = "alert.created"
)

// Event is the envelope written to the stream.
type Event struct {
	EventID   uuid.UUID      `json:"event_id"`
	EventType string         `json:"event_type"`
	SourceID  string         `json:"source_id,omitempty"`
	Timestamp time.Time      `json:"timestamp"`
	Payload   map[string]any `json:"payload,omitempty"`
}

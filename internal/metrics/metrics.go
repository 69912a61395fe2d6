// Package metrics provides in-process counters for scrape activity.
package metrics

import (
	"sync"
	"time"
)

// Metrics holds counters for job and session processing. All methods
// are safe for concurrent use.
type Metrics struct {
	mu sync.Mutex

	startTime time.Time

	jobsProcessed int64
	jobsSucceeded int64
	jobsFailed    int64

	sessionsFound   int64
	sessionsCreated int64
	sessionsUpdated int64

	lastJobTime   time.Time
	currentSource string
}

// NewMetrics creates a new Metrics instance.
func NewMetrics() *Metrics {
	return &Metrics{startTime: time.Now()}
}

// StartTime returns the time when metrics collection began.
func (m *Metrics) StartTime() time.Time {
	return m.startTime
}

// RecordJob records the outcome of one scrape job.
func (m *Metrics) RecordJob(success bool, found, created, updated int) {
	m.mu.Lock()
	defer m.mu.Unlock()

	m.jobsProcessed++
	if success {
		m.jobsSucceeded++
		m.lastJobTime = time.Now()
	} else {
		m.jobsFailed++
	}

	m.sessionsFound += int64(found)
	m.sessionsCreated += int64(created)
	m.sessionsUpdated += int64(updated)
}

// SetCurrentSource records the source currently being processed.
func (m *Metrics) SetCurrentSource(source string) {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.currentSource = source
}

// Snapshot is a point-in-time copy of the counters.
type Snapshot struct {
	Uptime          time.Duration `json:"uptime"`
	JobsProcessed   int64         `json:"jobs_processed"`
	JobsSucceeded   int64         `json:"jobs_succeeded"`
	JobsFailed      int64         `json:"jobs_failed"`
	SessionsFound   int64         `json:"sessions_found"`
	SessionsCreated int64         `json:"sessions_created"`
	SessionsUpdated int64         `json:"sessions_updated"`
	LastJobTime     time.Time     `json:"last_job_time,omitempty"`
	CurrentSource   string        `json:"current_source,omitempty"`
}

// Snapshot returns a copy of the current counters.
func (m *Metrics) Snapshot() Snapshot {
	m.mu.Lock()
	defer m.mu.Unlock()

	return Snapshot{
		Uptime:          time.Since(m.startTime),
		JobsProcessed:   m.jobsProcessed,
		JobsSucceeded:   m.jobsSucceeded,
		JobsFailed:      m.jobsFailed,
		SessionsFound:   m.sessionsFound,
		SessionsCreated: m.sessionsCreated,
		SessionsUpdated: m.sessionsUpdated,
		LastJobTime:     m.lastJobTime,
		CurrentSource:   m.currentSource,
	}
}

// Reset zeroes all counters and restarts the clock.
func (m *Metrics) Reset() {
	m.mu.Lock()
	defer m.mu.Unlock()

	m.startTime = time.Now()
	m.jobsProcessed = 0
	m.jobsSucceeded = 0
	m.jobsFailed = 0
	m.sessionsFound = 0
	m.sessionsCreated = 0
	m.sessionsUpdated = 0
	m.lastJobTime = time.Time{}
	m.currentSource = ""
}

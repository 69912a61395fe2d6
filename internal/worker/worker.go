package worker

import (
	"context"
	"fmt"
	"sync/atomic"
	"time"

	"github.com/jonesrussell/campscout/internal/domain"
	"github.com/jonesrussell/campscout/internal/logger"
)

// WorkerState represents the current state of a worker.
type WorkerState int32

const (
	// WorkerStateIdle means the worker is waiting for work.
	WorkerStateIdle WorkerState = iota

	// WorkerStateBusy means the worker is processing a job.
	WorkerStateBusy

	// WorkerStateStopped means the worker has stopped.
	WorkerStateStopped
)

// String returns the string representation of a worker state.
func (s WorkerState) String() string {
	switch s {
	case WorkerStateIdle:
		return "idle"
	case WorkerStateBusy:
		return "busy"
	case WorkerStateStopped:
		return "stopped"
	default:
		return "unknown"
	}
}

// JobHandler processes a single scrape job.
type JobHandler func(ctx context.Context, job *domain.Job) error

// Worker represents an individual worker in the pool.
type Worker struct {
	id         int
	state      atomic.Int32
	handler    JobHandler
	jobTimeout time.Duration
	logger     logger.Logger

	// Stats
	jobsProcessed atomic.Int64
	jobsSucceeded atomic.Int64
	jobsFailed    atomic.Int64
	lastJobAt     atomic.Int64

	// Current job tracking
	currentJob   atomic.Value
	jobStartedAt atomic.Int64
}

// NewWorker creates a new worker.
func NewWorker(id int, handler JobHandler, jobTimeout time.Duration, log logger.Logger) *Worker {
	w := &Worker{
		id:         id,
		handler:    handler,
		jobTimeout: jobTimeout,
		logger:     log,
	}
	w.state.Store(int32(WorkerStateIdle))
	return w
}

// ID returns the worker ID.
func (w *Worker) ID() int {
	return w.id
}

// State returns the current worker state.
func (w *Worker) State() WorkerState {
	return WorkerState(w.state.Load())
}

// IsIdle returns true if the worker is idle.
func (w *Worker) IsIdle() bool {
	return w.State() == WorkerStateIdle
}

// IsBusy returns true if the worker is busy.
func (w *Worker) IsBusy() bool {
	return w.State() == WorkerStateBusy
}

// Process runs a job through the handler with the worker's timeout.
func (w *Worker) Process(ctx context.Context, job *domain.Job) error {
	if job == nil {
		return fmt.Errorf("worker %d: job cannot be nil", w.id)
	}

	if !w.state.CompareAndSwap(int32(WorkerStateIdle), int32(WorkerStateBusy)) {
		return fmt.Errorf("worker %d: not idle, current state: %s", w.id, w.State())
	}

	w.currentJob.Store(job)
	w.jobStartedAt.Store(time.Now().UnixNano())

	defer func() {
		w.currentJob.Store((*domain.Job)(nil))
		w.jobStartedAt.Store(0)
		w.state.Store(int32(WorkerStateIdle))
	}()

	jobCtx, cancel := context.WithTimeout(ctx, w.jobTimeout)
	defer cancel()

	w.logger.Info("worker processing job",
		logger.Int("worker_id", w.id),
		logger.String("job_id", job.ID),
		logger.String("source_id", job.SourceID),
	)

	startTime := time.Now()
	err := w.handler(jobCtx, job)
	duration := time.Since(startTime)

	w.jobsProcessed.Add(1)
	w.lastJobAt.Store(time.Now().UnixNano())

	if err != nil {
		w.jobsFailed.Add(1)
		w.logger.Error("worker job failed",
			logger.Int("worker_id", w.id),
			logger.String("job_id", job.ID),
			logger.Duration("duration", duration),
			logger.Error(err),
		)
		return fmt.Errorf("worker %d: job %s failed: %w", w.id, job.ID, err)
	}

	w.jobsSucceeded.Add(1)
	w.logger.Info("worker job completed",
		logger.Int("worker_id", w.id),
		logger.String("job_id", job.ID),
		logger.Duration("duration", duration),
	)

	return nil
}

// Stats returns the worker's statistics.
func (w *Worker) Stats() WorkerStats {
	var currentJobID string
	if v := w.currentJob.Load(); v != nil {
		if job, ok := v.(*domain.Job); ok && job != nil {
			currentJobID = job.ID
		}
	}

	var lastJobTime time.Time
	if ts := w.lastJobAt.Load(); ts > 0 {
		lastJobTime = time.Unix(0, ts)
	}

	var jobStartTime time.Time
	if ts := w.jobStartedAt.Load(); ts > 0 {
		jobStartTime = time.Unix(0, ts)
	}

	return WorkerStats{
		ID:            w.id,
		State:         w.State(),
		JobsProcessed: w.jobsProcessed.Load(),
		JobsSucceeded: w.jobsSucceeded.Load(),
		JobsFailed:    w.jobsFailed.Load(),
		LastJobAt:     lastJobTime,
		CurrentJobID:  currentJobID,
		JobStartedAt:  jobStartTime,
	}
}

// WorkerStats holds statistics for a worker.
type WorkerStats struct {
	ID            int
	State         WorkerState
	JobsProcessed int64
	JobsSucceeded int64
	JobsFailed    int64
	LastJobAt     time.Time
	CurrentJobID  string
	JobStartedAt  time.Time
}

// IsHealthy returns true if the worker is considered healthy.
// A worker stuck on one job for more than twice its timeout is not.
func (s WorkerStats) IsHealthy(jobTimeout time.Duration) bool {
	if s.State == WorkerStateStopped {
		return false
	}
	if s.State == WorkerStateBusy && !s.JobStartedAt.IsZero() {
		if time.Since(s.JobStartedAt) > 2*jobTimeout {
			return false
		}
	}
	return true
}

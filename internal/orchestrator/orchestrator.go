// Package orchestrator schedules and executes scrape jobs: idempotent
// job creation, jittered deferred starts, and the end-to-end workflow
// from extraction to session persistence and health recording.
package orchestrator

import (
	"context"
	"errors"
	"fmt"
	"math/rand"
	"time"

	"github.com/google/uuid"

	"github.com/jonesrussell/campscout/internal/alerts"
	"github.com/jonesrussell/campscout/internal/config"
	"github.com/jonesrussell/campscout/internal/database"
	"github.com/jonesrussell/campscout/internal/dedup"
	"github.com/jonesrussell/campscout/internal/domain"
	"github.com/jonesrussell/campscout/internal/events"
	"github.com/jonesrussell/campscout/internal/extraction"
	"github.com/jonesrussell/campscout/internal/health"
	"github.com/jonesrussell/campscout/internal/logger"
	"github.com/jonesrussell/campscout/internal/metrics"
	"github.com/jonesrussell/campscout/internal/worker"
)

// Sentinel errors returned by CreateJob.
var (
	ErrSourceInactive = errors.New("source is not active")
	ErrSourceNoLogic  = errors.New("source has no extraction logic deployed")
)

// Deps bundles the orchestrator's collaborators.
type Deps struct {
	Sources       database.SourceRepositoryInterface
	Jobs          database.JobRepositoryInterface
	Sessions      database.SessionRepositoryInterface
	Organizations database.OrganizationRepositoryInterface
	Changes       database.ChangeRepositoryInterface

	Matcher   *dedup.Matcher
	Health    *health.Recorder
	Alerts    *alerts.Service
	Extractor extraction.Worker
	Publisher *events.Publisher
	Metrics   *metrics.Metrics

	Config       config.OrchestratorConfig
	WorkerConfig worker.Config
	Logger       logger.Logger
}

// Orchestrator creates scrape jobs and drives them to completion
// through a bounded worker pool.
type Orchestrator struct {
	deps Deps
	pool *worker.Pool
	log  logger.Logger

	// jitter returns the randomized delay before a created job starts.
	// Overridable in tests.
	jitter func() time.Duration
}

// New creates an Orchestrator and its worker pool.
func New(deps Deps) (*Orchestrator, error) {
	o := &Orchestrator{
		deps: deps,
		log:  deps.Logger,
	}

	minMs := deps.Config.StartJitterMinMs
	maxMs := deps.Config.StartJitterMaxMs
	if maxMs <= minMs {
		return nil, fmt.Errorf("invalid start jitter bounds [%d, %d]", minMs, maxMs)
	}
	o.jitter = func() time.Duration {
		return time.Duration(minMs+rand.Intn(maxMs-minMs)) * time.Millisecond
	}

	pool, err := worker.NewPool(deps.WorkerConfig, o.Execute, deps.Logger)
	if err != nil {
		return nil, fmt.Errorf("create worker pool: %w", err)
	}
	o.pool = pool

	return o, nil
}

// Start starts the worker pool.
func (o *Orchestrator) Start() error {
	return o.pool.Start()
}

// Stop drains the worker pool.
func (o *Orchestrator) Stop(ctx context.Context) error {
	return o.pool.Stop(ctx)
}

// Pool exposes the underlying worker pool for health and stats endpoints.
func (o *Orchestrator) Pool() *worker.Pool {
	return o.pool
}

// CreateJob creates a pending job for the source and schedules its
// deferred start. When the source already has a pending or running job
// the call is a no-op and returns nil, nil; callers treat that as
// success.
func (o *Orchestrator) CreateJob(ctx context.Context, sourceID, triggeredBy string) (*domain.Job, error) {
	source, err := o.deps.Sources.GetByID(ctx, sourceID)
	if err != nil {
		return nil, fmt.Errorf("load source: %w", err)
	}
	if !source.IsActive {
		return nil, ErrSourceInactive
	}
	if !source.HasLogic() {
		return nil, ErrSourceNoLogic
	}

	job, err := o.deps.Jobs.CreateIfIdle(ctx, sourceID, triggeredBy)
	if err != nil {
		return nil, fmt.Errorf("create job: %w", err)
	}
	if job == nil {
		o.log.Debug("job creation skipped, source already has one in flight",
			logger.String("source_id", sourceID),
			logger.String("triggered_by", triggeredBy),
		)
		return nil, nil
	}

	o.log.Info("job created",
		logger.String("job_id", job.ID),
		logger.String("source_id", sourceID),
		logger.String("triggered_by", triggeredBy),
	)

	o.deferStart(job)
	return job, nil
}

// deferStart waits out the jitter window, then attempts to claim the
// job for execution. The claim is a compare-and-set: if anything else
// already moved the job out of pending, the start is silently dropped.
func (o *Orchestrator) deferStart(job *domain.Job) {
	delay := o.jitter()

	go func() {
		time.Sleep(delay)

		ctx, cancel := context.WithTimeout(context.Background(), 30*time.Second)
		defer cancel()

		workflowID := uuid.NewString()
		started, err := o.deps.Jobs.MarkRunning(ctx, job.ID, workflowID)
		if err != nil {
			o.log.Error("failed to start job",
				logger.String("job_id", job.ID),
				logger.Error(err),
			)
			return
		}
		if !started {
			o.log.Debug("job already claimed, skipping start",
				logger.String("job_id", job.ID),
			)
			return
		}

		job.Status = domain.JobStatusRunning
		job.WorkflowID = &workflowID

		if submitErr := o.pool.Submit(context.Background(), job); submitErr != nil {
			o.log.Error("failed to submit job to pool",
				logger.String("job_id", job.ID),
				logger.Error(submitErr),
			)
			o.finalizeFailed(ctx, job, submitErr)
		}
	}()
}

// defaultStaleJobTimeout applies when the config leaves the reap
// window unset.
const defaultStaleJobTimeout = 30 * time.Minute

// reapStaleJobs fails out in-flight jobs abandoned by a previous
// process. A crash between CreateIfIdle and the deferred start leaves a
// pending or running row no goroutine will ever finish, and that row
// holds the source's one-in-flight slot until someone clears it.
func (o *Orchestrator) reapStaleJobs(ctx context.Context) {
	timeout := o.deps.Config.StaleJobTimeout
	if timeout <= 0 {
		timeout = defaultStaleJobTimeout
	}

	reaped, err := o.deps.Jobs.FailStale(ctx, time.Now().Add(-timeout))
	if err != nil {
		o.log.Error("failed to reap stale jobs", logger.Error(err))
		return
	}
	if reaped > 0 {
		o.log.Warn("reaped stale in-flight jobs",
			logger.Int("count", reaped),
			logger.Duration("older_than", timeout),
		)
	}
}

// RunDueSources creates jobs for every active source whose scrape
// interval has elapsed. Returns the number of jobs created. Per-source
// failures are logged and skipped so one bad source never blocks the
// pass.
func (o *Orchestrator) RunDueSources(ctx context.Context) (int, error) {
	o.reapStaleJobs(ctx)

	due, err := o.deps.Sources.ListDue(ctx, time.Now())
	if err != nil {
		return 0, fmt.Errorf("list due sources: %w", err)
	}

	created := 0
	for _, source := range due {
		job, createErr := o.CreateJob(ctx, source.ID, domain.TriggerScheduled)
		if createErr != nil {
			o.log.Warn("failed to create scheduled job",
				logger.String("source_id", source.ID),
				logger.Error(createErr),
			)
			continue
		}
		if job != nil {
			created++
		}
	}

	o.log.Info("run-due pass finished",
		logger.Int("due_sources", len(due)),
		logger.Int("jobs_created", created),
	)

	return created, nil
}

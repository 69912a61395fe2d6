package orchestrator

import (
	"context"
	"fmt"
	"time"

	"github.com/robfig/cron/v3"

	"github.com/jonesrussell/campscout/internal/logger"
)

// runDuePassTimeout bounds one scheduled run-due pass.
const runDuePassTimeout = 5 * time.Minute

// Scheduler periodically triggers the orchestrator's run-due pass.
type Scheduler struct {
	cron *cron.Cron
	orch *Orchestrator
	spec string
	log  logger.Logger
}

// NewScheduler creates a Scheduler firing on the given cron spec
// (e.g. "@every 5m").
func NewScheduler(orch *Orchestrator, spec string, log logger.Logger) *Scheduler {
	return &Scheduler{
		cron: cron.New(),
		orch: orch,
		spec: spec,
		log:  log,
	}
}

// Start registers the run-due pass and starts the cron loop.
func (s *Scheduler) Start() error {
	_, err := s.cron.AddFunc(s.spec, s.runPass)
	if err != nil {
		return fmt.Errorf("register schedule %q: %w", s.spec, err)
	}

	s.cron.Start()
	s.log.Info("scheduler started", logger.String("spec", s.spec))
	return nil
}

// Stop stops the cron loop and waits for a running pass to finish.
func (s *Scheduler) Stop(ctx context.Context) error {
	stopCtx := s.cron.Stop()

	select {
	case <-stopCtx.Done():
		s.log.Info("scheduler stopped")
		return nil
	case <-ctx.Done():
		return fmt.Errorf("scheduler stop: %w", ctx.Err())
	}
}

func (s *Scheduler) runPass() {
	ctx, cancel := context.WithTimeout(context.Background(), runDuePassTimeout)
	defer cancel()

	if _, err := s.orch.RunDueSources(ctx); err != nil {
		s.log.Error("run-due pass failed", logger.Error(err))
	}
}

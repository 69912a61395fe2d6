// Package bootstrap handles application initialization and lifecycle.
//
// The serve bootstrap follows these phases:
//   - Phase 1: Config & Logger - Load configuration and create logger
//   - Phase 2: Database - Connect to PostgreSQL and create repositories
//   - Phase 3: Events - Create the Redis event publisher (if enabled)
//   - Phase 4: Services - Orchestrator, scheduler, pipeline, dedup
//   - Phase 5: Server - Build and start the HTTP server
//   - Phase 6: Run - Wait for interrupt signal or error
package bootstrap

import (
	"context"
	"fmt"

	"github.com/jonesrussell/campscout/internal/config"
	"github.com/jonesrussell/campscout/internal/logger"
)

// Deps holds the configuration and logger shared by every command.
type Deps struct {
	Config *config.Config
	Logger logger.Logger
}

// NewDeps loads configuration and creates the logger.
func NewDeps(configPath string, debug bool) (*Deps, error) {
	cfg, err := config.Load(configPath)
	if err != nil {
		return nil, fmt.Errorf("load config: %w", err)
	}
	if debug {
		cfg.Debug = true
	}

	log, err := logger.NewLogger(cfg.Debug)
	if err != nil {
		return nil, fmt.Errorf("create logger: %w", err)
	}

	return &Deps{Config: cfg, Logger: log}, nil
}

// Start runs the scrape orchestration service. It blocks until the
// process is interrupted or the server fails.
func Start(configPath string, debug bool) error {
	// Phase 1: config and logger
	deps, err := NewDeps(configPath, debug)
	if err != nil {
		return err
	}
	log := deps.Logger

	// Phase 2: database and repositories
	db, err := SetupDatabase(deps.Config)
	if err != nil {
		return fmt.Errorf("setup database: %w", err)
	}
	defer db.DB.Close()

	// Phase 3: event publisher
	publisher := SetupEvents(deps.Config, log)

	// Phase 4: domain services
	services, err := SetupServices(deps.Config, log, db, publisher)
	if err != nil {
		return fmt.Errorf("setup services: %w", err)
	}

	if err := services.Orchestrator.Start(); err != nil {
		return fmt.Errorf("start orchestrator: %w", err)
	}
	if err := services.Scheduler.Start(); err != nil {
		return fmt.Errorf("start scheduler: %w", err)
	}
	log.Info("orchestrator started",
		logger.Int("pool_size", deps.Config.Orchestrator.PoolSize),
		logger.String("schedule", deps.Config.Orchestrator.ScheduleSpec),
	)

	// Phase 5: HTTP server
	server := SetupHTTPServer(deps.Config, log, db, services)

	// Phase 6: run until interrupt
	return RunUntilInterrupt(log, server, services)
}

// RunDevWorker runs the extraction-development pipeline loop. It blocks
// until the context is cancelled.
func RunDevWorker(ctx context.Context, configPath string, debug, reconcile bool) error {
	deps, err := NewDeps(configPath, debug)
	if err != nil {
		return err
	}
	log := deps.Logger

	db, err := SetupDatabase(deps.Config)
	if err != nil {
		return fmt.Errorf("setup database: %w", err)
	}
	defer db.DB.Close()

	publisher := SetupEvents(deps.Config, log)

	services, err := SetupServices(deps.Config, log, db, publisher)
	if err != nil {
		return fmt.Errorf("setup services: %w", err)
	}

	// The devworker shares the orchestrator so deployments queue real
	// jobs, but it does not run the cron pass or the HTTP server.
	if err := services.Orchestrator.Start(); err != nil {
		return fmt.Errorf("start orchestrator: %w", err)
	}
	defer func() {
		stopCtx, cancel := context.WithTimeout(context.Background(), shutdownTimeout)
		defer cancel()
		if stopErr := services.Orchestrator.Stop(stopCtx); stopErr != nil {
			log.Error("orchestrator drain failed", logger.Error(stopErr))
		}
	}()

	if reconcile {
		repaired, reconcileErr := services.Pipeline.ReconcileDeployments(ctx, 0)
		if reconcileErr != nil {
			log.Error("deployment reconciliation failed", logger.Error(reconcileErr))
		} else if repaired > 0 {
			log.Info("stranded deployments repaired", logger.Int("count", repaired))
		}
	}

	return services.Pipeline.Run(ctx)
}

package bootstrap

import (
	"fmt"
	"os"

	"github.com/google/uuid"

	"github.com/jonesrussell/campscout/internal/alerts"
	"github.com/jonesrussell/campscout/internal/codegen"
	"github.com/jonesrussell/campscout/internal/config"
	"github.com/jonesrussell/campscout/internal/dedup"
	"github.com/jonesrussell/campscout/internal/events"
	"github.com/jonesrussell/campscout/internal/extraction"
	"github.com/jonesrussell/campscout/internal/health"
	"github.com/jonesrussell/campscout/internal/logger"
	"github.com/jonesrussell/campscout/internal/metrics"
	"github.com/jonesrussell/campscout/internal/orchestrator"
	"github.com/jonesrussell/campscout/internal/pipeline"
	"github.com/jonesrussell/campscout/internal/worker"
)

// ServiceComponents holds the domain services built on top of the
// repositories.
type ServiceComponents struct {
	Alerts       *alerts.Service
	Health       *health.Recorder
	Matcher      *dedup.Matcher
	Scanner      *dedup.Scanner
	Merger       *dedup.Merger
	Extractor    extraction.Worker
	Metrics      *metrics.Metrics
	Orchestrator *orchestrator.Orchestrator
	Scheduler    *orchestrator.Scheduler
	Pipeline     *pipeline.Service
}

// SetupExtraction builds the shared extraction worker: the built-in
// module registry, plus a remote runner for stored script code when one
// is configured.
func SetupExtraction(cfg *config.Config, log logger.Logger) extraction.Worker {
	registry := extraction.NewRegistry()
	registry.Register(extraction.NewHTMLListingLogic(nil))

	var remote extraction.Worker
	if cfg.Extraction.WorkerURL != "" {
		remote = extraction.NewHTTPWorker(cfg.Extraction.WorkerURL, nil)
		log.Info("remote extraction worker configured",
			logger.String("url", cfg.Extraction.WorkerURL))
	}

	timeouts := extraction.Timeouts{
		Fetch:   cfg.Extraction.FetchTimeout,
		Browser: cfg.Extraction.BrowserTimeout,
	}
	return extraction.NewLocalWorker(registry, remote, timeouts, log)
}

// SetupServices wires the orchestrator, scheduler, development pipeline,
// and dedup services.
func SetupServices(
	cfg *config.Config,
	log logger.Logger,
	db *DatabaseComponents,
	publisher *events.Publisher,
) (*ServiceComponents, error) {
	alertSvc := alerts.NewService(db.Alerts, log)
	alertSvc.AttachPublisher(publisher)
	healthRec := health.NewRecorder(db.Sources, alertSvc, health.Thresholds{
		FailureAlert: cfg.Orchestrator.FailureAlertThreshold,
		Regeneration: cfg.Orchestrator.RegenerationThreshold,
	}, log)
	matcher := dedup.NewMatcher(db.Sessions)
	extractor := SetupExtraction(cfg, log)
	scrapeMetrics := metrics.NewMetrics()

	workerCfg := worker.DefaultConfig()
	workerCfg.PoolSize = cfg.Orchestrator.PoolSize

	orch, err := orchestrator.New(orchestrator.Deps{
		Sources:       db.Sources,
		Jobs:          db.Jobs,
		Sessions:      db.Sessions,
		Organizations: db.Organizations,
		Changes:       db.Changes,
		Matcher:       matcher,
		Health:        healthRec,
		Alerts:        alertSvc,
		Extractor:     extractor,
		Publisher:     publisher,
		Metrics:       scrapeMetrics,
		Config:        cfg.Orchestrator,
		WorkerConfig:  workerCfg,
		Logger:        log,
	})
	if err != nil {
		return nil, fmt.Errorf("create orchestrator: %w", err)
	}

	var generator codegen.Generator
	if cfg.Pipeline.CodegenURL != "" {
		generator = codegen.NewHTTPClient(cfg.Pipeline.CodegenURL, nil)
		log.Info("code generation service configured",
			logger.String("url", cfg.Pipeline.CodegenURL))
	}

	pipelineSvc := pipeline.NewService(workerName(), pipeline.Deps{
		Requests:      db.Requests,
		Sources:       db.Sources,
		Organizations: db.Organizations,
		Alerts:        alertSvc,
		Generator:     generator,
		Extractor:     extractor,
		Jobs:          orch,
		Explorer:      pipeline.NewExplorer(cfg.Pipeline.ExplorationDepth, log),
		Config:        cfg.Pipeline,
		Logger:        log,
	})

	return &ServiceComponents{
		Alerts:       alertSvc,
		Health:       healthRec,
		Matcher:      matcher,
		Scanner:      dedup.NewScanner(db.Sessions, alertSvc, log),
		Merger:       dedup.NewMerger(db.Camps, log),
		Extractor:    extractor,
		Metrics:      scrapeMetrics,
		Orchestrator: orch,
		Scheduler:    orchestrator.NewScheduler(orch, cfg.Orchestrator.ScheduleSpec, log),
		Pipeline:     pipelineSvc,
	}, nil
}

// workerName identifies this process in development request claims.
func workerName() string {
	host, err := os.Hostname()
	if err != nil || host == "" {
		return "devworker-" + uuid.NewString()[:8]
	}
	return host
}

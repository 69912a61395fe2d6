// Package pipeline implements the extraction-development pipeline: the
// devworker loop that claims queued requests, explores sites, drives
// the code-generation service, tests its output, and deploys working
// logic to sources.
package pipeline

import (
	"context"
	"fmt"
	"time"

	"github.com/jonesrussell/campscout/internal/alerts"
	"github.com/jonesrussell/campscout/internal/codegen"
	"github.com/jonesrussell/campscout/internal/config"
	"github.com/jonesrussell/campscout/internal/database"
	"github.com/jonesrussell/campscout/internal/domain"
	"github.com/jonesrussell/campscout/internal/extraction"
	"github.com/jonesrussell/campscout/internal/logger"
)

// JobCreator enqueues a scrape job for a source. Deployment always goes
// through this idempotent path, never by inserting job rows directly.
type JobCreator interface {
	CreateJob(ctx context.Context, sourceID, triggeredBy string) (*domain.Job, error)
}

// Deps bundles the pipeline service's collaborators.
type Deps struct {
	Requests      database.RequestRepositoryInterface
	Sources       database.SourceRepositoryInterface
	Organizations database.OrganizationRepositoryInterface

	Alerts    *alerts.Service
	Generator codegen.Generator
	Extractor extraction.Worker
	Jobs      JobCreator
	Explorer  SiteExplorer

	Config config.PipelineConfig
	Logger logger.Logger
}

// Service runs the development pipeline.
type Service struct {
	deps     Deps
	workerID string
	log      logger.Logger
}

// NewService creates a pipeline service identified by workerID in
// claim records.
func NewService(workerID string, deps Deps) *Service {
	return &Service{
		deps:     deps,
		workerID: workerID,
		log:      deps.Logger,
	}
}

// Run polls for pending requests until the context is cancelled. Each
// tick drains the queue one claim at a time.
func (s *Service) Run(ctx context.Context) error {
	interval := s.deps.Config.PollInterval
	if interval <= 0 {
		interval = 30 * time.Second
	}

	ticker := time.NewTicker(interval)
	defer ticker.Stop()

	s.log.Info("development pipeline started",
		logger.String("worker_id", s.workerID),
		logger.String("market", s.deps.Config.Market),
		logger.Duration("poll_interval", interval),
	)

	for {
		for {
			processed, err := s.ProcessNext(ctx)
			if err != nil {
				s.log.Error("pipeline pass failed", logger.Error(err))
				break
			}
			if !processed {
				break
			}
		}

		select {
		case <-ctx.Done():
			s.log.Info("development pipeline stopped")
			return ctx.Err()
		case <-ticker.C:
		}
	}
}

// ProcessNext claims and processes one pending request. Returns false
// when nothing is pending.
func (s *Service) ProcessNext(ctx context.Context) (bool, error) {
	req, err := s.deps.Requests.ClaimNext(ctx, s.workerID, s.deps.Config.Market)
	if err != nil {
		return false, fmt.Errorf("claim request: %w", err)
	}
	if req == nil {
		return false, nil
	}

	if err := s.Process(ctx, req); err != nil {
		return true, fmt.Errorf("process request %s: %w", req.ID, err)
	}
	return true, nil
}

// Process drives one claimed request: explore once, then either expand
// a directory into child requests or run the generate-test cycle.
func (s *Service) Process(ctx context.Context, req *domain.DevelopmentRequest) error {
	s.log.Info("processing development request",
		logger.String("request_id", req.ID),
		logger.String("url", req.SourceURL),
		logger.Int("code_version", req.CodeVersion),
		logger.Int("retry_count", req.TestRetryCount),
	)

	exp, err := s.ensureExploration(ctx, req)
	if err != nil {
		// Exploration failure counts against the retry budget like any
		// other test error.
		return s.failAttempt(ctx, req, fmt.Sprintf("exploration failed: %v", err))
	}

	if exp.IsDirectory {
		return s.expandDirectory(ctx, req, exp)
	}

	return s.generateAndTest(ctx, req, exp)
}

// transition validates and applies a request state change. Engine paths
// go through here; operator overrides (feedback, force-reset) set the
// status directly because they deliberately cut across the machine.
func (s *Service) transition(req *domain.DevelopmentRequest, to string) error {
	if err := ValidateStateTransition(RequestState(req.Status), RequestState(to)); err != nil {
		return fmt.Errorf("request %s: %w", req.ID, err)
	}
	req.Status = to
	return nil
}

// failAttempt records a pre-test failure as a test run. The request
// passes through testing so the retry counter only ever advances out of
// that state, the same cycle a real test drives.
func (s *Service) failAttempt(ctx context.Context, req *domain.DevelopmentRequest, reason string) error {
	if err := s.transition(req, domain.RequestStatusTesting); err != nil {
		return err
	}
	if err := s.deps.Requests.Update(ctx, req); err != nil {
		return fmt.Errorf("record failed attempt: %w", err)
	}
	return s.RecordTestResults(ctx, req, domain.TestOutcome{
		RanAt: time.Now(),
		Error: reason,
	})
}

// ensureExploration explores the site once per request; subsequent
// attempts reuse the persisted result.
func (s *Service) ensureExploration(ctx context.Context, req *domain.DevelopmentRequest) (*Exploration, error) {
	if len(req.Exploration) > 0 {
		return ExplorationFromMap(req.Exploration)
	}

	exp, err := s.deps.Explorer.Explore(ctx, req.SourceURL)
	if err != nil {
		return nil, err
	}

	m, err := exp.ToMap()
	if err != nil {
		return nil, err
	}
	req.Exploration = m

	if updateErr := s.deps.Requests.Update(ctx, req); updateErr != nil {
		return nil, fmt.Errorf("persist exploration: %w", updateErr)
	}
	return exp, nil
}

// generateAndTest runs one generation attempt and tests its output
// against the live URL, all under one wall-clock timeout.
func (s *Service) generateAndTest(ctx context.Context, req *domain.DevelopmentRequest, exp *Exploration) error {
	if s.deps.Generator == nil {
		if err := s.transition(req, domain.RequestStatusNeedsFeedback); err != nil {
			return err
		}
		req.Notes = "no code-generation service configured"
		s.clearClaim(req)
		if err := s.deps.Requests.Update(ctx, req); err != nil {
			return fmt.Errorf("park request without generator: %w", err)
		}
		return nil
	}

	timeout := s.deps.Config.GenerateTestTimeout
	if timeout <= 0 {
		timeout = 5 * time.Minute
	}
	cycleCtx, cancel := context.WithTimeout(ctx, timeout)
	defer cancel()

	genReq := codegen.Request{
		SourceURL:   req.SourceURL,
		SourceName:  req.SourceName,
		Exploration: req.Exploration,
		CodeVersion: req.CodeVersion,
		Feedback:    req.Feedback,
	}
	if req.GeneratedCode != nil {
		genReq.PriorCode = *req.GeneratedCode
	}

	result, err := s.deps.Generator.Generate(cycleCtx, genReq)
	if err != nil {
		return s.failAttempt(ctx, req, fmt.Sprintf("generation failed: %v", err))
	}

	if !result.HasCode() {
		// Automation cannot proceed without code; park for a human.
		if err := s.transition(req, domain.RequestStatusNeedsFeedback); err != nil {
			return err
		}
		req.Notes = "generation service produced no code"
		s.clearClaim(req)
		if updateErr := s.deps.Requests.Update(ctx, req); updateErr != nil {
			return fmt.Errorf("park request for feedback: %w", updateErr)
		}
		s.log.Warn("request needs human feedback",
			logger.String("request_id", req.ID),
		)
		return nil
	}

	req.GeneratedCode = &result.Code
	req.CodeVersion++
	if err := s.transition(req, domain.RequestStatusTesting); err != nil {
		return err
	}
	if err := s.deps.Requests.Update(ctx, req); err != nil {
		return fmt.Errorf("store generated code: %w", err)
	}

	outcome := s.testCode(cycleCtx, req, result.Code)
	return s.RecordTestResults(ctx, req, outcome)
}

func (s *Service) testCode(ctx context.Context, req *domain.DevelopmentRequest, code string) domain.TestOutcome {
	hints := extraction.Hints{ParsingNotes: req.Notes}

	result, err := s.deps.Extractor.Extract(ctx, req.SourceURL, extraction.Spec{ScriptCode: code}, hints)
	outcome := domain.TestOutcome{RanAt: time.Now()}
	if err != nil {
		outcome.Error = err.Error()
		return outcome
	}

	outcome.SessionsFound = len(result.Sessions)
	outcome.ExpectedEmpty = result.ExpectedEmpty
	for _, sess := range result.Sessions {
		if sess.ExpectedEmpty {
			outcome.ExpectedEmpty = true
		}
	}
	return outcome
}

// RecordTestResults interprets one test run and moves the request to
// its next state: retry with synthesized feedback, terminal failure,
// completion with deployment, or completion without one when an empty
// catalog was annotated as expected.
func (s *Service) RecordTestResults(ctx context.Context, req *domain.DevelopmentRequest, outcome domain.TestOutcome) error {
	req.LastTest = domain.JSONBMap{
		"ran_at":         outcome.RanAt.Format(time.RFC3339),
		"sessions_found": outcome.SessionsFound,
		"error":          outcome.Error,
		"expected_empty": outcome.ExpectedEmpty,
	}

	switch {
	case outcome.Error != "":
		return s.retryOrFail(ctx, req, fmt.Sprintf("test run failed: %s", outcome.Error))

	case outcome.SessionsFound == 0 && outcome.ExpectedEmpty:
		if err := s.transition(req, domain.RequestStatusCompleted); err != nil {
			return err
		}
		req.Notes = "completed without deployment: empty catalog annotated as expected (seasonal)"
		s.clearClaim(req)
		if err := s.deps.Requests.Update(ctx, req); err != nil {
			return fmt.Errorf("complete expected-empty request: %w", err)
		}
		s.log.Info("request completed, expected empty catalog",
			logger.String("request_id", req.ID),
		)
		return nil

	case outcome.SessionsFound == 0:
		return s.retryOrFail(ctx, req,
			"test run found no sessions; the page likely has data the extraction logic is missing")

	default:
		return s.completeAndDeploy(ctx, req, outcome)
	}
}

// retryOrFail appends synthesized feedback and returns the request to
// pending, or terminally fails it once the retry budget is spent.
func (s *Service) retryOrFail(ctx context.Context, req *domain.DevelopmentRequest, reason string) error {
	if req.RetriesExhausted() {
		if err := s.transition(req, domain.RequestStatusFailed); err != nil {
			return err
		}
		req.Notes = fmt.Sprintf("retries exhausted after %d attempts: %s", req.TestRetryCount, reason)
		s.clearClaim(req)
		if err := s.deps.Requests.Update(ctx, req); err != nil {
			return fmt.Errorf("fail request: %w", err)
		}
		s.log.Warn("request failed, retries exhausted",
			logger.String("request_id", req.ID),
			logger.Int("retry_count", req.TestRetryCount),
		)
		return nil
	}

	req.Feedback = append(req.Feedback, domain.FeedbackEntry{
		Timestamp:         time.Now(),
		Author:            s.workerID,
		Source:            domain.FeedbackSourceAutoTest,
		Text:              reason,
		CodeVersionBefore: req.CodeVersion,
	})
	req.TestRetryCount++
	if err := s.transition(req, domain.RequestStatusPending); err != nil {
		return err
	}
	s.clearClaim(req)

	if err := s.deps.Requests.Update(ctx, req); err != nil {
		return fmt.Errorf("requeue request: %w", err)
	}

	s.log.Info("request requeued for another attempt",
		logger.String("request_id", req.ID),
		logger.Int("retry_count", req.TestRetryCount),
	)
	return nil
}

// SubmitFeedback appends a human feedback entry and unconditionally
// returns the request to pending. Human steering is exempt from the
// automated retry cap.
func (s *Service) SubmitFeedback(ctx context.Context, requestID, author, text string) error {
	req, err := s.deps.Requests.GetByID(ctx, requestID)
	if err != nil {
		return fmt.Errorf("load request: %w", err)
	}

	req.Feedback = append(req.Feedback, domain.FeedbackEntry{
		Timestamp:         time.Now(),
		Author:            author,
		Source:            domain.FeedbackSourceHuman,
		Text:              text,
		CodeVersionBefore: req.CodeVersion,
	})
	req.Status = domain.RequestStatusPending
	s.clearClaim(req)

	if err := s.deps.Requests.Update(ctx, req); err != nil {
		return fmt.Errorf("submit feedback: %w", err)
	}

	s.log.Info("feedback submitted",
		logger.String("request_id", requestID),
		logger.String("author", author),
	)
	return nil
}

// ForceReset is the operator escalation for a stuck request: clears
// the claim, returns to pending, and resets the retry budget so the
// next run is not immediately exhausted. With clearCode it also drops
// the generated code and feedback history for a clean slate.
func (s *Service) ForceReset(ctx context.Context, requestID string, clearCode bool) error {
	req, err := s.deps.Requests.GetByID(ctx, requestID)
	if err != nil {
		return fmt.Errorf("load request: %w", err)
	}

	req.Status = domain.RequestStatusPending
	req.TestRetryCount = 0
	s.clearClaim(req)

	if clearCode {
		req.GeneratedCode = nil
		req.Feedback = nil
	}

	if err := s.deps.Requests.Update(ctx, req); err != nil {
		return fmt.Errorf("reset request: %w", err)
	}

	s.log.Info("request force-reset",
		logger.String("request_id", requestID),
		logger.Bool("cleared_code", clearCode),
	)
	return nil
}

func (s *Service) clearClaim(req *domain.DevelopmentRequest) {
	req.ClaimedBy = nil
	req.ClaimedAt = nil
}

// Package health maintains per-source rolling health counters and
// derives alerts and the needs-regeneration flag from job outcomes.
//
// Health counters are mutated only here, and only one job runs per
// source at a time, so no two writers ever race on the same source row.
package health

import (
	"context"
	"fmt"
	"strings"

	"github.com/jonesrussell/campscout/internal/alerts"
	"github.com/jonesrussell/campscout/internal/database"
	"github.com/jonesrussell/campscout/internal/domain"
	"github.com/jonesrussell/campscout/internal/logger"
)

// Thresholds configure when health transitions raise alerts or flags.
type Thresholds struct {
	// FailureAlert is the consecutive-failure count that raises a
	// scraper_degraded alert.
	FailureAlert int

	// Regeneration is the consecutive-zero-result count that sets the
	// sticky needs_regeneration flag.
	Regeneration int
}

// DefaultThresholds returns the standard thresholds.
func DefaultThresholds() Thresholds {
	return Thresholds{FailureAlert: 3, Regeneration: 3}
}

// Recorder applies job outcomes to source health state.
type Recorder struct {
	sources    database.SourceRepositoryInterface
	alerts     *alerts.Service
	thresholds Thresholds
	logger     logger.Logger
}

// NewRecorder creates a new health recorder.
func NewRecorder(
	sources database.SourceRepositoryInterface,
	alertSvc *alerts.Service,
	thresholds Thresholds,
	log logger.Logger,
) *Recorder {
	if thresholds.FailureAlert < 1 {
		thresholds.FailureAlert = DefaultThresholds().FailureAlert
	}
	if thresholds.Regeneration < 1 {
		thresholds.Regeneration = DefaultThresholds().Regeneration
	}
	return &Recorder{
		sources:    sources,
		alerts:     alertSvc,
		thresholds: thresholds,
		logger:     log,
	}
}

// RecordSuccess applies a successful job outcome. A success with zero
// sessions is still a completed run, but it counts against the source's
// zero-result streak and eventually flags it for regeneration.
func (r *Recorder) RecordSuccess(ctx context.Context, source *domain.Source, sessionsFound int) error {
	wasFailing := source.ConsecutiveFailures > 0

	source.TotalRuns++
	source.SuccessfulRuns++
	source.ConsecutiveFailures = 0
	source.LastError = nil

	if sessionsFound > 0 {
		source.ConsecutiveZeroResults = 0
	} else {
		source.ConsecutiveZeroResults++

		r.alerts.Raise(ctx, source.ID, domain.AlertZeroResults, domain.SeverityWarning,
			fmt.Sprintf("%s returned 0 sessions (%d consecutive)",
				source.Name, source.ConsecutiveZeroResults))

		if source.ConsecutiveZeroResults >= r.thresholds.Regeneration && !source.NeedsRegeneration {
			// Sticky until a successful deployment clears it.
			source.NeedsRegeneration = true
			r.alerts.Raise(ctx, source.ID, domain.AlertScraperNeedsRegeneration, domain.SeverityCritical,
				fmt.Sprintf("%s flagged for regeneration after %d zero-result runs",
					source.Name, source.ConsecutiveZeroResults))
		}
	}

	source.SuccessRate = successRate(source)

	if wasFailing && sessionsFound > 0 {
		r.alerts.Raise(ctx, source.ID, domain.AlertSourceRecovered, domain.SeverityInfo,
			fmt.Sprintf("%s recovered and found %d sessions", source.Name, sessionsFound))
	}

	if err := r.sources.UpdateHealth(ctx, source); err != nil {
		return fmt.Errorf("record success for source %s: %w", source.ID, err)
	}

	r.logger.Debug("recorded successful run",
		logger.String("source_id", source.ID),
		logger.Int("sessions_found", sessionsFound),
		logger.Float64("success_rate", source.SuccessRate),
	)

	return nil
}

// RecordFailure applies a failed job outcome.
func (r *Recorder) RecordFailure(ctx context.Context, source *domain.Source, jobErr error) error {
	errText := jobErr.Error()

	source.TotalRuns++
	source.ConsecutiveFailures++
	source.LastError = &errText
	source.SuccessRate = successRate(source)

	if isRateLimited(errText) {
		r.alerts.Raise(ctx, source.ID, domain.AlertRateLimited, domain.SeverityWarning,
			fmt.Sprintf("%s appears rate limited: %s", source.Name, errText))
	}

	if source.ConsecutiveFailures >= r.thresholds.FailureAlert {
		r.alerts.Raise(ctx, source.ID, domain.AlertScraperDegraded, domain.SeverityCritical,
			fmt.Sprintf("%s has failed %d consecutive runs: %s",
				source.Name, source.ConsecutiveFailures, errText))
	}

	if err := r.sources.UpdateHealth(ctx, source); err != nil {
		return fmt.Errorf("record failure for source %s: %w", source.ID, err)
	}

	r.logger.Warn("recorded failed run",
		logger.String("source_id", source.ID),
		logger.Int("consecutive_failures", source.ConsecutiveFailures),
		logger.String("error", errText),
	)

	return nil
}

func successRate(s *domain.Source) float64 {
	if s.TotalRuns == 0 {
		return 0
	}
	return float64(s.SuccessfulRuns) / float64(s.TotalRuns)
}

func isRateLimited(errText string) bool {
	lower := strings.ToLower(errText)
	return strings.Contains(lower, "429") ||
		strings.Contains(lower, "rate limit") ||
		strings.Contains(lower, "too many requests")
}

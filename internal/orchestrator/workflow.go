package orchestrator

import (
	"context"
	"fmt"
	"time"

	"github.com/google/uuid"

	"github.com/jonesrussell/campscout/internal/domain"
	"github.com/jonesrussell/campscout/internal/events"
	"github.com/jonesrussell/campscout/internal/extraction"
	"github.com/jonesrussell/campscout/internal/logger"
)

// Execute runs one scrape job end to end: extraction, session
// persistence with change tracking, removed-session detection, and
// health recording. It is the worker pool's job handler.
func (o *Orchestrator) Execute(ctx context.Context, job *domain.Job) error {
	source, err := o.deps.Sources.GetByID(ctx, job.SourceID)
	if err != nil {
		wrapped := fmt.Errorf("load source: %w", err)
		o.finalizeFailed(ctx, job, wrapped)
		return wrapped
	}

	if o.deps.Metrics != nil {
		o.deps.Metrics.SetCurrentSource(source.Name)
		defer o.deps.Metrics.SetCurrentSource("")
	}

	spec, err := extraction.SpecForSource(source)
	if err != nil {
		o.failJob(ctx, job, source, err)
		return err
	}

	hints := extraction.Hints{
		ParsingNotes: source.ParsingNotes,
		ExtraURLs:    source.ExtraURLs,
	}

	scrapeStart := time.Now()

	result, err := o.deps.Extractor.Extract(ctx, source.URL, spec, hints)
	if err != nil {
		o.failJob(ctx, job, source, err)
		return err
	}

	return o.completeJob(ctx, job, source, result, scrapeStart)
}

func (o *Orchestrator) completeJob(
	ctx context.Context,
	job *domain.Job,
	source *domain.Source,
	result *extraction.Result,
	scrapeStart time.Time,
) error {
	created, updated, changeCount, err := o.persistSessions(ctx, job, source, result.Sessions)
	if err != nil {
		o.failJob(ctx, job, source, err)
		return err
	}

	// A zero-session run never deactivates the catalog: a broken scraper
	// must not wipe the listings it used to maintain.
	if len(result.Sessions) > 0 {
		removed, removeErr := o.deps.Sessions.DeactivateUnseen(ctx, source.ID, scrapeStart)
		if removeErr != nil {
			o.failJob(ctx, job, source, removeErr)
			return removeErr
		}
		for _, s := range removed {
			o.recordChange(ctx, job.ID, s.ID, domain.ChangeRemoved, domain.JSONBMap{
				"name": s.Name,
			})
			changeCount++
		}
	}

	if threshold := o.deps.Config.ChangeVolumeThreshold; threshold > 0 && changeCount > threshold {
		o.deps.Alerts.Raise(ctx, source.ID, domain.AlertHighChangeVolume, domain.SeverityWarning,
			fmt.Sprintf("job %s recorded %d changes (threshold %d)", job.ID, changeCount, threshold))
	}

	if healthErr := o.deps.Health.RecordSuccess(ctx, source, len(result.Sessions)); healthErr != nil {
		o.log.Error("failed to record scrape success",
			logger.String("source_id", source.ID),
			logger.Error(healthErr),
		)
	}
	if touchErr := o.deps.Sources.TouchScraped(ctx, source.ID, time.Now()); touchErr != nil {
		o.log.Error("failed to touch source",
			logger.String("source_id", source.ID),
			logger.Error(touchErr),
		)
	}

	if err := ValidateStateTransition(JobState(job.Status), StateCompleted); err != nil {
		return fmt.Errorf("complete job %s: %w", job.ID, err)
	}

	now := time.Now()
	job.Status = domain.JobStatusCompleted
	job.SessionsFound = len(result.Sessions)
	job.SessionsCreated = created
	job.SessionsUpdated = updated
	job.CompletedAt = &now

	if err := o.deps.Jobs.Finalize(ctx, job); err != nil {
		return fmt.Errorf("finalize job: %w", err)
	}

	if o.deps.Metrics != nil {
		o.deps.Metrics.RecordJob(true, job.SessionsFound, created, updated)
	}
	o.deps.Publisher.PublishAsync(events.Event{
		EventType: events.JobCompleted,
		SourceID:  source.ID,
		Payload: map[string]any{
			"job_id":           job.ID,
			"sessions_found":   job.SessionsFound,
			"sessions_created": created,
			"sessions_updated": updated,
		},
	})

	o.log.Info("job completed",
		logger.String("job_id", job.ID),
		logger.String("source_id", source.ID),
		logger.Int("sessions_found", job.SessionsFound),
		logger.Int("sessions_created", created),
		logger.Int("sessions_updated", updated),
	)

	return nil
}

// failJob finalizes the job as failed and records the failure against
// the source's health counters.
func (o *Orchestrator) failJob(ctx context.Context, job *domain.Job, source *domain.Source, jobErr error) {
	o.finalizeFailed(ctx, job, jobErr)

	if healthErr := o.deps.Health.RecordFailure(ctx, source, jobErr); healthErr != nil {
		o.log.Error("failed to record scrape failure",
			logger.String("source_id", source.ID),
			logger.Error(healthErr),
		)
	}
	if touchErr := o.deps.Sources.TouchScraped(ctx, source.ID, time.Now()); touchErr != nil {
		o.log.Error("failed to touch source",
			logger.String("source_id", source.ID),
			logger.Error(touchErr),
		)
	}

	if o.deps.Metrics != nil {
		o.deps.Metrics.RecordJob(false, 0, 0, 0)
	}
	o.deps.Publisher.PublishAsync(events.Event{
		EventType: events.JobFailed,
		SourceID:  job.SourceID,
		Payload: map[string]any{
			"job_id": job.ID,
			"error":  jobErr.Error(),
		},
	})
}

func (o *Orchestrator) finalizeFailed(ctx context.Context, job *domain.Job, jobErr error) {
	if err := ValidateStateTransition(JobState(job.Status), StateFailed); err != nil {
		o.log.Error("refusing to fail job",
			logger.String("job_id", job.ID),
			logger.Error(err),
		)
		return
	}

	now := time.Now()
	errMsg := jobErr.Error()
	job.Status = domain.JobStatusFailed
	job.ErrorMessage = &errMsg
	job.CompletedAt = &now

	if err := o.deps.Jobs.Finalize(ctx, job); err != nil {
		o.log.Error("failed to finalize failed job",
			logger.String("job_id", job.ID),
			logger.Error(err),
		)
	}
}

// persistSessions matches each extracted record against existing
// sessions, creating new ones and updating matches, recording a Change
// row per detected difference.
func (o *Orchestrator) persistSessions(
	ctx context.Context,
	job *domain.Job,
	source *domain.Source,
	extracted []domain.ExtractedSession,
) (created, updated, changes int, err error) {
	orgID := ""
	if source.OrganizationID != nil {
		orgID = *source.OrganizationID
	}

	now := time.Now()

	for i := range extracted {
		rec := &extracted[i]

		match, matchErr := o.deps.Matcher.FindMatch(ctx, source.ID, orgID, rec.Name, rec.StartDate)
		if matchErr != nil {
			return created, updated, changes, fmt.Errorf("match session %q: %w", rec.Name, matchErr)
		}

		if match == nil {
			session := newSession(source, orgID, rec, now)
			if createErr := o.deps.Sessions.Create(ctx, session); createErr != nil {
				return created, updated, changes, fmt.Errorf("create session %q: %w", rec.Name, createErr)
			}
			o.recordChange(ctx, job.ID, session.ID, domain.ChangeAdded, domain.JSONBMap{
				"name": session.Name,
			})
			created++
			changes++
			continue
		}

		sessionChanges := diffSession(match, rec)
		applyExtracted(match, rec, now)

		if updateErr := o.deps.Sessions.Update(ctx, match); updateErr != nil {
			return created, updated, changes, fmt.Errorf("update session %q: %w", rec.Name, updateErr)
		}
		for changeType, detail := range sessionChanges {
			o.recordChange(ctx, job.ID, match.ID, changeType, detail)
			changes++
		}
		updated++
	}

	return created, updated, changes, nil
}

// recordChange appends one change row. The audit trail is best-effort:
// a failed insert is logged but never fails the job.
func (o *Orchestrator) recordChange(ctx context.Context, jobID, sessionID, changeType string, detail domain.JSONBMap) {
	change := &domain.Change{
		ID:         uuid.NewString(),
		JobID:      jobID,
		SessionID:  sessionID,
		ChangeType: changeType,
		Detail:     detail,
	}
	if err := o.deps.Changes.Create(ctx, change); err != nil {
		o.log.Error("failed to record change",
			logger.String("session_id", sessionID),
			logger.String("change_type", changeType),
			logger.Error(err),
		)
	}
}

func newSession(source *domain.Source, orgID string, rec *domain.ExtractedSession, now time.Time) *domain.Session {
	availability := rec.Availability
	if availability == "" {
		availability = domain.AvailabilityUnknown
	}

	return &domain.Session{
		ID:             uuid.NewString(),
		OrganizationID: orgID,
		SourceID:       source.ID,
		Name:           rec.Name,
		StartDate:      rec.StartDate,
		EndDate:        rec.EndDate,
		PriceCents:     rec.PriceCents,
		MinAge:         rec.MinAge,
		MaxAge:         rec.MaxAge,
		Location:       rec.Location,
		Availability:   availability,
		IsActive:       true,
		LastSeenAt:     now,
	}
}

// diffSession compares an existing session with a freshly extracted
// record and returns the change rows to record.
func diffSession(existing *domain.Session, rec *domain.ExtractedSession) map[string]domain.JSONBMap {
	diffs := make(map[string]domain.JSONBMap)

	if !intPtrEqual(existing.PriceCents, rec.PriceCents) && rec.PriceCents != nil {
		diffs[domain.ChangePriceChanged] = domain.JSONBMap{
			"old_price_cents": intPtrValue(existing.PriceCents),
			"new_price_cents": *rec.PriceCents,
		}
	}

	if rec.EndDate != nil && !timePtrEqual(existing.EndDate, rec.EndDate) {
		diffs[domain.ChangeDatesChanged] = domain.JSONBMap{
			"old_end_date": timePtrString(existing.EndDate),
			"new_end_date": rec.EndDate.Format("2006-01-02"),
		}
	}

	if rec.Availability != "" && existing.Availability != rec.Availability {
		diffs[domain.ChangeStatusChanged] = domain.JSONBMap{
			"old_availability": existing.Availability,
			"new_availability": rec.Availability,
		}
	} else if !existing.IsActive {
		// Reappeared after being marked removed.
		diffs[domain.ChangeStatusChanged] = domain.JSONBMap{
			"reactivated": true,
		}
	}

	return diffs
}

// applyExtracted merges the extracted record into the existing session
// and marks it seen.
func applyExtracted(existing *domain.Session, rec *domain.ExtractedSession, now time.Time) {
	if rec.EndDate != nil {
		existing.EndDate = rec.EndDate
	}
	if rec.PriceCents != nil {
		existing.PriceCents = rec.PriceCents
	}
	if rec.MinAge != nil {
		existing.MinAge = rec.MinAge
	}
	if rec.MaxAge != nil {
		existing.MaxAge = rec.MaxAge
	}
	if rec.Location != "" {
		existing.Location = rec.Location
	}
	if rec.Availability != "" {
		existing.Availability = rec.Availability
	}
	existing.IsActive = true
	existing.LastSeenAt = now
}

func intPtrEqual(a, b *int) bool {
	if a == nil || b == nil {
		return a == b
	}
	return *a == *b
}

func intPtrValue(p *int) int {
	if p == nil {
		return 0
	}
	return *p
}

func timePtrEqual(a, b *time.Time) bool {
	if a == nil || b == nil {
		return a == b
	}
	return a.Equal(*b)
}

func timePtrString(p *time.Time) string {
	if p == nil {
		return ""
	}
	return p.Format("2006-01-02")
}

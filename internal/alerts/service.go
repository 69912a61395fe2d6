// Package alerts raises and acknowledges operational alerts. Alerts are
// append-only notifications for external dashboards; nothing in the
// crawl core ever surfaces an error to an end user.
package alerts

import (
	"context"
	"fmt"

	"github.com/jonesrussell/campscout/internal/database"
	"github.com/jonesrussell/campscout/internal/domain"
	"github.com/jonesrussell/campscout/internal/events"
	"github.com/jonesrussell/campscout/internal/logger"
)

// Service creates and acknowledges alerts.
type Service struct {
	repo      database.AlertRepositoryInterface
	publisher *events.Publisher
	logger    logger.Logger
}

// NewService creates a new alert service.
func NewService(repo database.AlertRepositoryInterface, log logger.Logger) *Service {
	return &Service{repo: repo, logger: log}
}

// AttachPublisher enables alert.created event publication. A nil
// publisher stays a no-op.
func (s *Service) AttachPublisher(p *events.Publisher) {
	s.publisher = p
}

// Raise creates an alert tied to a source. A failed insert is logged and
// swallowed: alerting must never break the workflow that detected the
// condition.
func (s *Service) Raise(ctx context.Context, sourceID, alertType, severity, message string) {
	alert := &domain.Alert{
		Type:     alertType,
		Severity: severity,
		Message:  message,
	}
	if sourceID != "" {
		alert.SourceID = &sourceID
	}

	if err := s.repo.Create(ctx, alert); err != nil {
		s.logger.Error("failed to raise alert",
			logger.String("alert_type", alertType),
			logger.String("source_id", sourceID),
			logger.Error(err),
		)
		return
	}

	s.logger.Info("alert raised",
		logger.String("alert_type", alertType),
		logger.String("severity", severity),
		logger.String("source_id", sourceID),
	)

	s.publisher.PublishAsync(events.Event{
		EventType: events.AlertCreated,
		SourceID:  sourceID,
		Payload: map[string]any{
			"alert_id": alert.ID,
			"type":     alertType,
			"severity": severity,
			"message":  message,
		},
	})
}

// RaiseSystem creates a system-wide alert with no source reference.
func (s *Service) RaiseSystem(ctx context.Context, alertType, severity, message string) {
	s.Raise(ctx, "", alertType, severity, message)
}

// Acknowledge marks an alert acknowledged by an operator.
func (s *Service) Acknowledge(ctx context.Context, id, by string) error {
	if err := s.repo.Acknowledge(ctx, id, by); err != nil {
		return fmt.Errorf("acknowledge alert %s: %w", id, err)
	}
	return nil
}

// List returns alerts for dashboard rendering.
func (s *Service) List(ctx context.Context, unacknowledgedOnly bool, limit, offset int) ([]*domain.Alert, error) {
	return s.repo.List(ctx, unacknowledgedOnly, limit, offset)
}

package database

import (
	"context"
	"errors"
	"fmt"

	"github.com/google/uuid"
	"github.com/jmoiron/sqlx"

	"github.com/jonesrussell/campscout/internal/domain"
)

// ErrAlertNotFound is returned when an alert lookup matches no row.
var ErrAlertNotFound = errors.New("alert not found")

// AlertRepository handles database operations for alerts. Alerts are
// append-only; the only mutation is acknowledgment.
type AlertRepository struct {
	db *sqlx.DB
}

// NewAlertRepository creates a new alert repository.
func NewAlertRepository(db *sqlx.DB) *AlertRepository {
	return &AlertRepository{db: db}
}

// Create inserts a new alert.
func (r *AlertRepository) Create(ctx context.Context, alert *domain.Alert) error {
	if !domain.ValidAlertType(alert.Type) {
		return fmt.Errorf("invalid alert type: %s", alert.Type)
	}
	if alert.ID == "" {
		alert.ID = uuid.New().String()
	}

	query := `
		INSERT INTO alerts (id, source_id, type, severity, message)
		VALUES ($1, $2, $3, $4, $5)
		RETURNING created_at
	`

	err := r.db.QueryRowContext(ctx, query,
		alert.ID, alert.SourceID, alert.Type, alert.Severity, alert.Message,
	).Scan(&alert.CreatedAt)
	if err != nil {
		return fmt.Errorf("failed to create alert: %w", err)
	}

	return nil
}

// List retrieves alerts, newest first.
func (r *AlertRepository) List(
	ctx context.Context, unacknowledgedOnly bool, limit, offset int,
) ([]*domain.Alert, error) {
	var alerts []*domain.Alert

	query := `
		SELECT id, source_id, type, severity, message,
		       acknowledged_at, acknowledged_by, created_at
		FROM alerts
	`
	if unacknowledgedOnly {
		query += ` WHERE acknowledged_at IS NULL`
	}
	query += ` ORDER BY created_at DESC LIMIT $1 OFFSET $2`

	if err := r.db.SelectContext(ctx, &alerts, query, limit, offset); err != nil {
		return nil, fmt.Errorf("failed to list alerts: %w", err)
	}

	if alerts == nil {
		alerts = []*domain.Alert{}
	}

	return alerts, nil
}

// Acknowledge marks an alert acknowledged. Acknowledging twice is not an
// error; the first acknowledgment wins.
func (r *AlertRepository) Acknowledge(ctx context.Context, id, by string) error {
	result, err := r.db.ExecContext(ctx,
		`UPDATE alerts SET acknowledged_at = now(), acknowledged_by = $1
		 WHERE id = $2 AND acknowledged_at IS NULL`,
		by, id,
	)
	if err != nil {
		return fmt.Errorf("failed to acknowledge alert: %w", err)
	}

	rowsAffected, err := result.RowsAffected()
	if err != nil {
		return fmt.Errorf("failed to get rows affected: %w", err)
	}
	if rowsAffected == 0 {
		// Either missing or already acknowledged; check which.
		var count int
		if getErr := r.db.GetContext(ctx, &count,
			`SELECT COUNT(*) FROM alerts WHERE id = $1`, id); getErr != nil {
			return fmt.Errorf("failed to check alert: %w", getErr)
		}
		if count == 0 {
			return ErrAlertNotFound
		}
	}

	return nil
}

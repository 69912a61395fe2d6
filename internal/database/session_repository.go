package database

import (
	"context"
	"database/sql"
	"errors"
	"fmt"
	"time"

	"github.com/google/uuid"
	"github.com/jmoiron/sqlx"

	"github.com/jonesrussell/campscout/internal/domain"
)

// ErrSessionNotFound is returned when a session lookup matches no row.
var ErrSessionNotFound = errors.New("session not found")

// SessionRepository handles database operations for camp sessions.
type SessionRepository struct {
	db *sqlx.DB
}

// NewSessionRepository creates a new session repository.
func NewSessionRepository(db *sqlx.DB) *SessionRepository {
	return &SessionRepository{db: db}
}

const sessionColumns = `
	id, camp_id, organization_id, source_id, name, start_date, end_date,
	price_cents, min_age, max_age, location, availability,
	is_active, last_seen_at, created_at, updated_at
`

// Create inserts a new session.
func (r *SessionRepository) Create(ctx context.Context, s *domain.Session) error {
	if s.ID == "" {
		s.ID = uuid.New().String()
	}
	if s.Availability == "" {
		s.Availability = domain.AvailabilityUnknown
	}

	query := `
		INSERT INTO sessions (
			id, camp_id, organization_id, source_id, name, start_date,
			end_date, price_cents, min_age, max_age, location, availability,
			is_active, last_seen_at
		) VALUES ($1, $2, $3, $4, $5, $6, $7, $8, $9, $10, $11, $12, true, now())
		RETURNING created_at, updated_at, last_seen_at
	`

	err := r.db.QueryRowContext(
		ctx,
		query,
		s.ID,
		s.CampID,
		s.OrganizationID,
		s.SourceID,
		s.Name,
		s.StartDate,
		s.EndDate,
		s.PriceCents,
		s.MinAge,
		s.MaxAge,
		s.Location,
		s.Availability,
	).Scan(&s.CreatedAt, &s.UpdatedAt, &s.LastSeenAt)

	if err != nil {
		return fmt.Errorf("failed to create session: %w", err)
	}

	s.IsActive = true
	return nil
}

// Update persists session fields refreshed by a re-scrape.
func (r *SessionRepository) Update(ctx context.Context, s *domain.Session) error {
	query := `
		UPDATE sessions
		SET name = $1, start_date = $2, end_date = $3, price_cents = $4,
		    min_age = $5, max_age = $6, location = $7, availability = $8,
		    is_active = $9, last_seen_at = now(), updated_at = now()
		WHERE id = $10
	`

	result, err := r.db.ExecContext(
		ctx,
		query,
		s.Name,
		s.StartDate,
		s.EndDate,
		s.PriceCents,
		s.MinAge,
		s.MaxAge,
		s.Location,
		s.Availability,
		s.IsActive,
		s.ID,
	)
	if err != nil {
		return fmt.Errorf("failed to update session: %w", err)
	}

	return requireRow(result, ErrSessionNotFound)
}

// GetByID retrieves a session by its ID.
func (r *SessionRepository) GetByID(ctx context.Context, id string) (*domain.Session, error) {
	var s domain.Session
	query := `SELECT ` + sessionColumns + ` FROM sessions WHERE id = $1`

	err := r.db.GetContext(ctx, &s, query, id)
	if err != nil {
		if errors.Is(err, sql.ErrNoRows) {
			return nil, ErrSessionNotFound
		}
		return nil, fmt.Errorf("failed to get session: %w", err)
	}

	return &s, nil
}

// ListBySourceAndDate retrieves a source's sessions sharing a start date.
// The within-source dedup match scans these first.
func (r *SessionRepository) ListBySourceAndDate(
	ctx context.Context, sourceID string, startDate time.Time,
) ([]*domain.Session, error) {
	var sessions []*domain.Session
	query := `SELECT ` + sessionColumns + `
		FROM sessions WHERE source_id = $1 AND start_date = $2`

	if err := r.db.SelectContext(ctx, &sessions, query, sourceID, startDate); err != nil {
		return nil, fmt.Errorf("failed to list sessions by source and date: %w", err)
	}

	return sessions, nil
}

// ListByOrgAndDate retrieves an organization's sessions sharing a start
// date. The dedup fallback uses this for records imported before per-source
// tracking existed.
func (r *SessionRepository) ListByOrgAndDate(
	ctx context.Context, organizationID string, startDate time.Time,
) ([]*domain.Session, error) {
	var sessions []*domain.Session
	query := `SELECT ` + sessionColumns + `
		FROM sessions WHERE organization_id = $1 AND start_date = $2`

	if err := r.db.SelectContext(ctx, &sessions, query, organizationID, startDate); err != nil {
		return nil, fmt.Errorf("failed to list sessions by organization and date: %w", err)
	}

	return sessions, nil
}

// ListActive retrieves every active session. The cross-source duplicate
// scan groups these by (organization_id, start_date).
func (r *SessionRepository) ListActive(ctx context.Context) ([]*domain.Session, error) {
	var sessions []*domain.Session
	query := `SELECT ` + sessionColumns + `
		FROM sessions WHERE is_active = true
		ORDER BY organization_id, start_date`

	if err := r.db.SelectContext(ctx, &sessions, query); err != nil {
		return nil, fmt.Errorf("failed to list active sessions: %w", err)
	}

	return sessions, nil
}

// DeactivateUnseen marks a source's active sessions that the latest
// successful scrape did not touch as inactive and returns them.
func (r *SessionRepository) DeactivateUnseen(
	ctx context.Context, sourceID string, seenSince time.Time,
) ([]*domain.Session, error) {
	var sessions []*domain.Session

	query := `
		UPDATE sessions
		SET is_active = false, updated_at = now()
		WHERE source_id = $1 AND is_active = true AND last_seen_at < $2
		RETURNING ` + sessionColumns

	if err := r.db.SelectContext(ctx, &sessions, query, sourceID, seenSince); err != nil {
		return nil, fmt.Errorf("failed to deactivate unseen sessions: %w", err)
	}

	return sessions, nil
}

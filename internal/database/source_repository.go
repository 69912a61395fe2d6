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

// ErrSourceNotFound is returned when a source lookup matches no row.
var ErrSourceNotFound = errors.New("source not found")

// SourceRepository handles database operations for sources.
type SourceRepository struct {
	db *sqlx.DB
}

// NewSourceRepository creates a new source repository.
func NewSourceRepository(db *sqlx.DB) *SourceRepository {
	return &SourceRepository{db: db}
}

const sourceColumns = `
	id, organization_id, name, url, extra_urls, market,
	scrape_interval_minutes, is_active, last_scraped_at,
	module_name, script_code, parsing_notes,
	consecutive_failures, consecutive_zero_results, total_runs,
	successful_runs, success_rate, needs_regeneration, last_error,
	created_at, updated_at
`

// Create inserts a new source.
func (r *SourceRepository) Create(ctx context.Context, source *domain.Source) error {
	if source.ID == "" {
		source.ID = uuid.New().String()
	}

	query := `
		INSERT INTO sources (
			id, organization_id, name, url, extra_urls, market,
			scrape_interval_minutes, is_active, module_name, script_code,
			parsing_notes
		) VALUES ($1, $2, $3, $4, $5, $6, $7, $8, $9, $10, $11)
		RETURNING created_at, updated_at
	`

	err := r.db.QueryRowContext(
		ctx,
		query,
		source.ID,
		source.OrganizationID,
		source.Name,
		source.URL,
		source.ExtraURLs,
		source.Market,
		source.ScrapeIntervalMinutes,
		source.IsActive,
		source.ModuleName,
		source.ScriptCode,
		source.ParsingNotes,
	).Scan(&source.CreatedAt, &source.UpdatedAt)

	if err != nil {
		return fmt.Errorf("failed to create source: %w", err)
	}

	return nil
}

// GetByID retrieves a source by its ID.
func (r *SourceRepository) GetByID(ctx context.Context, id string) (*domain.Source, error) {
	var source domain.Source
	query := `SELECT ` + sourceColumns + ` FROM sources WHERE id = $1`

	err := r.db.GetContext(ctx, &source, query, id)
	if err != nil {
		if errors.Is(err, sql.ErrNoRows) {
			return nil, ErrSourceNotFound
		}
		return nil, fmt.Errorf("failed to get source: %w", err)
	}

	return &source, nil
}

// GetByURL retrieves a source by its canonical URL.
func (r *SourceRepository) GetByURL(ctx context.Context, url string) (*domain.Source, error) {
	var source domain.Source
	query := `SELECT ` + sourceColumns + ` FROM sources WHERE url = $1`

	err := r.db.GetContext(ctx, &source, query, url)
	if err != nil {
		if errors.Is(err, sql.ErrNoRows) {
			return nil, ErrSourceNotFound
		}
		return nil, fmt.Errorf("failed to get source by url: %w", err)
	}

	return &source, nil
}

// List retrieves sources, optionally restricted to active ones.
func (r *SourceRepository) List(ctx context.Context, activeOnly bool) ([]*domain.Source, error) {
	var sources []*domain.Source
	query := `SELECT ` + sourceColumns + ` FROM sources`
	if activeOnly {
		query += ` WHERE is_active = true`
	}
	query += ` ORDER BY name`

	if err := r.db.SelectContext(ctx, &sources, query); err != nil {
		return nil, fmt.Errorf("failed to list sources: %w", err)
	}

	if sources == nil {
		sources = []*domain.Source{}
	}

	return sources, nil
}

// ListDue retrieves active sources whose scrape interval has elapsed.
func (r *SourceRepository) ListDue(ctx context.Context, now time.Time) ([]*domain.Source, error) {
	var sources []*domain.Source
	query := `
		SELECT ` + sourceColumns + `
		FROM sources
		WHERE is_active = true
		  AND (module_name IS NOT NULL OR script_code IS NOT NULL)
		  AND (
			last_scraped_at IS NULL
			OR last_scraped_at <= $1 - (scrape_interval_minutes * interval '1 minute')
		  )
		ORDER BY last_scraped_at NULLS FIRST
	`

	if err := r.db.SelectContext(ctx, &sources, query, now); err != nil {
		return nil, fmt.Errorf("failed to list due sources: %w", err)
	}

	if sources == nil {
		sources = []*domain.Source{}
	}

	return sources, nil
}

// Update updates a source's mutable descriptive fields.
func (r *SourceRepository) Update(ctx context.Context, source *domain.Source) error {
	query := `
		UPDATE sources
		SET name = $1, url = $2, extra_urls = $3, market = $4,
		    scrape_interval_minutes = $5, parsing_notes = $6,
		    organization_id = $7, updated_at = now()
		WHERE id = $8
	`

	result, err := r.db.ExecContext(
		ctx,
		query,
		source.Name,
		source.URL,
		source.ExtraURLs,
		source.Market,
		source.ScrapeIntervalMinutes,
		source.ParsingNotes,
		source.OrganizationID,
		source.ID,
	)
	if err != nil {
		return fmt.Errorf("failed to update source: %w", err)
	}

	return requireRow(result, ErrSourceNotFound)
}

// UpdateHealth persists the source's health counters. Only job outcome
// handling calls this, and jobs are serialized per source, so no two
// writers race on the same row.
func (r *SourceRepository) UpdateHealth(ctx context.Context, source *domain.Source) error {
	query := `
		UPDATE sources
		SET consecutive_failures = $1, consecutive_zero_results = $2,
		    total_runs = $3, successful_runs = $4, success_rate = $5,
		    needs_regeneration = $6, last_error = $7, updated_at = now()
		WHERE id = $8
	`

	result, err := r.db.ExecContext(
		ctx,
		query,
		source.ConsecutiveFailures,
		source.ConsecutiveZeroResults,
		source.TotalRuns,
		source.SuccessfulRuns,
		source.SuccessRate,
		source.NeedsRegeneration,
		source.LastError,
		source.ID,
	)
	if err != nil {
		return fmt.Errorf("failed to update source health: %w", err)
	}

	return requireRow(result, ErrSourceNotFound)
}

// SetActive activates or deactivates a source.
func (r *SourceRepository) SetActive(ctx context.Context, id string, active bool) error {
	result, err := r.db.ExecContext(ctx,
		`UPDATE sources SET is_active = $1, updated_at = now() WHERE id = $2`,
		active, id,
	)
	if err != nil {
		return fmt.Errorf("failed to set source active: %w", err)
	}

	return requireRow(result, ErrSourceNotFound)
}

// DeployLogic attaches extraction logic to a source, activates it, and
// clears the regeneration flag. Exactly one of moduleName or scriptCode
// may be non-nil.
func (r *SourceRepository) DeployLogic(ctx context.Context, id string, moduleName, scriptCode *string) error {
	if moduleName != nil && scriptCode != nil {
		return domain.ErrAmbiguousLogic
	}

	query := `
		UPDATE sources
		SET module_name = $1, script_code = $2, is_active = true,
		    needs_regeneration = false, consecutive_zero_results = 0,
		    updated_at = now()
		WHERE id = $3
	`

	result, err := r.db.ExecContext(ctx, query, moduleName, scriptCode, id)
	if err != nil {
		return fmt.Errorf("failed to deploy extraction logic: %w", err)
	}

	return requireRow(result, ErrSourceNotFound)
}

// TouchScraped records the time of the latest scrape attempt.
func (r *SourceRepository) TouchScraped(ctx context.Context, id string, at time.Time) error {
	result, err := r.db.ExecContext(ctx,
		`UPDATE sources SET last_scraped_at = $1, updated_at = now() WHERE id = $2`,
		at, id,
	)
	if err != nil {
		return fmt.Errorf("failed to touch source: %w", err)
	}

	return requireRow(result, ErrSourceNotFound)
}

func requireRow(result sql.Result, notFound error) error {
	rowsAffected, err := result.RowsAffected()
	if err != nil {
		return fmt.Errorf("failed to get rows affected: %w", err)
	}
	if rowsAffected == 0 {
		return notFound
	}
	return nil
}

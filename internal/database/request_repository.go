package database

import (
	"context"
	"database/sql"
	"errors"
	"fmt"

	"github.com/google/uuid"
	"github.com/jmoiron/sqlx"

	"github.com/jonesrussell/campscout/internal/domain"
)

// ErrRequestNotFound is returned when a request lookup matches no row.
var ErrRequestNotFound = errors.New("development request not found")

// RequestRepository handles database operations for development requests.
type RequestRepository struct {
	db *sqlx.DB
}

// NewRequestRepository creates a new development request repository.
func NewRequestRepository(db *sqlx.DB) *RequestRepository {
	return &RequestRepository{db: db}
}

const requestColumns = `
	id, parent_id, source_url, source_name, market, status,
	claimed_by, claimed_at, generated_code, code_version, feedback,
	test_retry_count, max_test_retries, last_test, exploration,
	source_id, notes, created_at, updated_at
`

// Create inserts a new development request.
func (r *RequestRepository) Create(ctx context.Context, req *domain.DevelopmentRequest) error {
	if req.ID == "" {
		req.ID = uuid.New().String()
	}
	if req.Status == "" {
		req.Status = domain.RequestStatusPending
	}
	if req.MaxTestRetries == 0 {
		req.MaxTestRetries = domain.DefaultMaxTestRetries
	}

	query := `
		INSERT INTO development_requests (
			id, parent_id, source_url, source_name, market, status,
			feedback, max_test_retries, exploration, notes
		) VALUES ($1, $2, $3, $4, $5, $6, $7, $8, $9, $10)
		RETURNING created_at, updated_at
	`

	err := r.db.QueryRowContext(
		ctx,
		query,
		req.ID,
		req.ParentID,
		req.SourceURL,
		req.SourceName,
		req.Market,
		req.Status,
		req.Feedback,
		req.MaxTestRetries,
		req.Exploration,
		req.Notes,
	).Scan(&req.CreatedAt, &req.UpdatedAt)

	if err != nil {
		return fmt.Errorf("failed to create development request: %w", err)
	}

	return nil
}

// GetByID retrieves a development request by its ID.
func (r *RequestRepository) GetByID(ctx context.Context, id string) (*domain.DevelopmentRequest, error) {
	var req domain.DevelopmentRequest
	query := `SELECT ` + requestColumns + ` FROM development_requests WHERE id = $1`

	err := r.db.GetContext(ctx, &req, query, id)
	if err != nil {
		if errors.Is(err, sql.ErrNoRows) {
			return nil, ErrRequestNotFound
		}
		return nil, fmt.Errorf("failed to get development request: %w", err)
	}

	return &req, nil
}

// List retrieves development requests filtered by status and market.
func (r *RequestRepository) List(
	ctx context.Context, status, market string, limit, offset int,
) ([]*domain.DevelopmentRequest, error) {
	var reqs []*domain.DevelopmentRequest

	query := `SELECT ` + requestColumns + ` FROM development_requests WHERE 1=1`
	args := []any{}

	if status != "" {
		args = append(args, status)
		query += fmt.Sprintf(" AND status = $%d", len(args))
	}
	if market != "" {
		args = append(args, market)
		query += fmt.Sprintf(" AND market = $%d", len(args))
	}

	args = append(args, limit)
	query += fmt.Sprintf(" ORDER BY created_at DESC LIMIT $%d", len(args))
	args = append(args, offset)
	query += fmt.Sprintf(" OFFSET $%d", len(args))

	if err := r.db.SelectContext(ctx, &reqs, query, args...); err != nil {
		return nil, fmt.Errorf("failed to list development requests: %w", err)
	}

	if reqs == nil {
		reqs = []*domain.DevelopmentRequest{}
	}

	return reqs, nil
}

// ClaimNext atomically claims the oldest pending request for a worker.
// FOR UPDATE SKIP LOCKED ensures parallel workers never claim the same
// row. Oldest-first is a scheduling preference, not a guarantee. Returns
// (nil, nil) when nothing is pending.
func (r *RequestRepository) ClaimNext(
	ctx context.Context, workerID, market string,
) (*domain.DevelopmentRequest, error) {
	var req domain.DevelopmentRequest

	query := `
		UPDATE development_requests
		SET status = $1, claimed_by = $2, claimed_at = now(), updated_at = now()
		WHERE id = (
			SELECT id FROM development_requests
			WHERE status = $3 AND ($4 = '' OR market = $4)
			ORDER BY created_at
			LIMIT 1
			FOR UPDATE SKIP LOCKED
		)
		RETURNING ` + requestColumns

	err := r.db.GetContext(ctx, &req, query,
		domain.RequestStatusInProgress, workerID, domain.RequestStatusPending, market,
	)
	if err != nil {
		if errors.Is(err, sql.ErrNoRows) {
			return nil, nil
		}
		return nil, fmt.Errorf("failed to claim development request: %w", err)
	}

	return &req, nil
}

// Update persists the request's mutable pipeline state.
func (r *RequestRepository) Update(ctx context.Context, req *domain.DevelopmentRequest) error {
	query := `
		UPDATE development_requests
		SET status = $1, claimed_by = $2, claimed_at = $3, generated_code = $4,
		    code_version = $5, feedback = $6, test_retry_count = $7,
		    last_test = $8, exploration = $9, source_id = $10, notes = $11,
		    updated_at = now()
		WHERE id = $12
	`

	result, err := r.db.ExecContext(
		ctx,
		query,
		req.Status,
		req.ClaimedBy,
		req.ClaimedAt,
		req.GeneratedCode,
		req.CodeVersion,
		req.Feedback,
		req.TestRetryCount,
		req.LastTest,
		req.Exploration,
		req.SourceID,
		req.Notes,
		req.ID,
	)
	if err != nil {
		return fmt.Errorf("failed to update development request: %w", err)
	}

	return requireRow(result, ErrRequestNotFound)
}

// ExistsForURL reports whether any request already targets the URL.
// Directory expansion uses this to avoid queueing duplicates.
func (r *RequestRepository) ExistsForURL(ctx context.Context, url string) (bool, error) {
	var count int
	err := r.db.GetContext(ctx, &count,
		`SELECT COUNT(*) FROM development_requests WHERE source_url = $1`, url,
	)
	if err != nil {
		return false, fmt.Errorf("failed to check request url: %w", err)
	}

	return count > 0, nil
}

// CountByParent returns the number of child requests created under a
// directory parent.
func (r *RequestRepository) CountByParent(ctx context.Context, parentID string) (int, error) {
	var count int
	err := r.db.GetContext(ctx, &count,
		`SELECT COUNT(*) FROM development_requests WHERE parent_id = $1`, parentID,
	)
	if err != nil {
		return 0, fmt.Errorf("failed to count child requests: %w", err)
	}

	return count, nil
}

// ListStranded returns completed requests that hold generated code but
// whose source link never materialized, or points at a source that was
// never activated or never received the code. Remediation repairs these.
func (r *RequestRepository) ListStranded(ctx context.Context, limit int) ([]*domain.DevelopmentRequest, error) {
	if limit <= 0 {
		limit = 100
	}

	var reqs []*domain.DevelopmentRequest

	query := `
		SELECT ` + requestColumns + `
		FROM development_requests dr
		WHERE dr.status = $1
		  AND dr.generated_code IS NOT NULL
		  AND (
			dr.source_id IS NULL
			OR EXISTS (
				SELECT 1 FROM sources s
				WHERE s.id = dr.source_id
				  AND (s.is_active = false OR (s.module_name IS NULL AND s.script_code IS NULL))
			)
		  )
		ORDER BY dr.created_at
		LIMIT $2
	`

	if err := r.db.SelectContext(ctx, &reqs, query, domain.RequestStatusCompleted, limit); err != nil {
		return nil, fmt.Errorf("failed to list stranded requests: %w", err)
	}

	if reqs == nil {
		reqs = []*domain.DevelopmentRequest{}
	}

	return reqs, nil
}

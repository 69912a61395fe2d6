package database

import (
	"context"
	"database/sql"
	"errors"
	"fmt"

	"github.com/google/uuid"
	"github.com/jmoiron/sqlx"
	"github.com/lib/pq"

	"github.com/jonesrussell/campscout/internal/domain"
)

// ErrOrganizationNotFound is returned when an organization lookup matches
// no row.
var ErrOrganizationNotFound = errors.New("organization not found")

// OrganizationRepository handles database operations for organizations.
type OrganizationRepository struct {
	db *sqlx.DB
}

// NewOrganizationRepository creates a new organization repository.
func NewOrganizationRepository(db *sqlx.DB) *OrganizationRepository {
	return &OrganizationRepository{db: db}
}

// GetByDomain retrieves an organization by its website domain.
func (r *OrganizationRepository) GetByDomain(ctx context.Context, dom string) (*domain.Organization, error) {
	var org domain.Organization
	query := `
		SELECT id, name, website, domain, market, created_at, updated_at
		FROM organizations WHERE domain = $1
	`

	err := r.db.GetContext(ctx, &org, query, dom)
	if err != nil {
		if errors.Is(err, sql.ErrNoRows) {
			return nil, ErrOrganizationNotFound
		}
		return nil, fmt.Errorf("failed to get organization by domain: %w", err)
	}

	return &org, nil
}

// Create inserts a new organization.
func (r *OrganizationRepository) Create(ctx context.Context, org *domain.Organization) error {
	if org.ID == "" {
		org.ID = uuid.New().String()
	}

	query := `
		INSERT INTO organizations (id, name, website, domain, market)
		VALUES ($1, $2, $3, $4, $5)
		RETURNING created_at, updated_at
	`

	err := r.db.QueryRowContext(ctx, query,
		org.ID, org.Name, org.Website, org.Domain, org.Market,
	).Scan(&org.CreatedAt, &org.UpdatedAt)
	if err != nil {
		return fmt.Errorf("failed to create organization: %w", err)
	}

	return nil
}

// CampRepository handles database operations for camps, including the
// destructive administrator merge.
type CampRepository struct {
	db *sqlx.DB
}

// NewCampRepository creates a new camp repository.
func NewCampRepository(db *sqlx.DB) *CampRepository {
	return &CampRepository{db: db}
}

const campColumns = `
	c.id, c.organization_id, c.name, c.normalized_name, c.image_urls,
	c.created_at, c.updated_at,
	(SELECT COUNT(*) FROM sessions s WHERE s.camp_id = c.id) AS session_count
`

// ListByOrganization retrieves an organization's camps with their session
// counts.
func (r *CampRepository) ListByOrganization(ctx context.Context, organizationID string) ([]*domain.Camp, error) {
	var camps []*domain.Camp
	query := `SELECT ` + campColumns + `
		FROM camps c WHERE c.organization_id = $1 ORDER BY c.created_at`

	if err := r.db.SelectContext(ctx, &camps, query, organizationID); err != nil {
		return nil, fmt.Errorf("failed to list camps: %w", err)
	}

	return camps, nil
}

// ListMergeGroups returns camps grouped by (organization_id,
// normalized_name), keyed by "orgID|normalizedName", restricted to groups
// with more than one member. Each group's members are ordered by session
// count descending, then creation time ascending, so the keeper is first.
func (r *CampRepository) ListMergeGroups(ctx context.Context) (map[string][]*domain.Camp, error) {
	var camps []*domain.Camp
	query := `
		SELECT ` + campColumns + `
		FROM camps c
		WHERE (c.organization_id, c.normalized_name) IN (
			SELECT organization_id, normalized_name
			FROM camps
			GROUP BY organization_id, normalized_name
			HAVING COUNT(*) > 1
		)
		ORDER BY c.organization_id, c.normalized_name,
		         session_count DESC, c.created_at
	`

	if err := r.db.SelectContext(ctx, &camps, query); err != nil {
		return nil, fmt.Errorf("failed to list merge groups: %w", err)
	}

	groups := make(map[string][]*domain.Camp)
	for _, c := range camps {
		key := c.OrganizationID + "|" + c.NormalizedName
		groups[key] = append(groups[key], c)
	}

	return groups, nil
}

// MergeGroup collapses duplicate camps into the keeper inside a single
// transaction: sessions are re-pointed, the keeper's image set is
// replaced with the provided union, and the losers are deleted. Any
// failure rolls the whole group back.
func (r *CampRepository) MergeGroup(
	ctx context.Context, keeperID string, loserIDs []string, imageURLs []string,
) error {
	if len(loserIDs) == 0 {
		return nil
	}

	tx, err := r.db.BeginTxx(ctx, nil)
	if err != nil {
		return fmt.Errorf("failed to begin merge transaction: %w", err)
	}
	defer func() { _ = tx.Rollback() }()

	if _, err = tx.ExecContext(ctx,
		`UPDATE sessions SET camp_id = $1, updated_at = now() WHERE camp_id = ANY($2)`,
		keeperID, pq.Array(loserIDs),
	); err != nil {
		return fmt.Errorf("failed to re-point sessions: %w", err)
	}

	if _, err = tx.ExecContext(ctx,
		`UPDATE camps SET image_urls = $1, updated_at = now() WHERE id = $2`,
		domain.StringSlice(imageURLs), keeperID,
	); err != nil {
		return fmt.Errorf("failed to union image urls: %w", err)
	}

	if _, err = tx.ExecContext(ctx,
		`DELETE FROM camps WHERE id = ANY($1)`,
		pq.Array(loserIDs),
	); err != nil {
		return fmt.Errorf("failed to delete merged camps: %w", err)
	}

	if commitErr := tx.Commit(); commitErr != nil {
		return fmt.Errorf("failed to commit merge: %w", commitErr)
	}

	return nil
}

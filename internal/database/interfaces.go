package database

import (
	"context"
	"time"

	"github.com/jonesrussell/campscout/internal/domain"
)

// SourceRepositoryInterface defines the contract for source data access.
type SourceRepositoryInterface interface {
	Create(ctx context.Context, source *domain.Source) error
	GetByID(ctx context.Context, id string) (*domain.Source, error)
	GetByURL(ctx context.Context, url string) (*domain.Source, error)
	List(ctx context.Context, activeOnly bool) ([]*domain.Source, error)
	ListDue(ctx context.Context, now time.Time) ([]*domain.Source, error)
	Update(ctx context.Context, source *domain.Source) error
	UpdateHealth(ctx context.Context, source *domain.Source) error
	SetActive(ctx context.Context, id string, active bool) error
	DeployLogic(ctx context.Context, id string, moduleName, scriptCode *string) error
	TouchScraped(ctx context.Context, id string, at time.Time) error
}

// JobRepositoryInterface defines the contract for job data access.
type JobRepositoryInterface interface {
	// CreateIfIdle inserts a new pending job unless the source already has
	// a pending or running job. Returns nil, nil on the no-op path.
	CreateIfIdle(ctx context.Context, sourceID, triggeredBy string) (*domain.Job, error)

	GetByID(ctx context.Context, id string) (*domain.Job, error)
	List(ctx context.Context, status string, limit, offset int) ([]*domain.Job, error)

	// MarkRunning atomically transitions pending -> running and attaches
	// the workflow handle. Returns false when the job was already started,
	// cancelled, or finished.
	MarkRunning(ctx context.Context, id, workflowID string) (bool, error)

	Finalize(ctx context.Context, job *domain.Job) error

	// FailStale fails out in-flight jobs last touched before the cutoff,
	// unblocking sources orphaned by a process restart.
	FailStale(ctx context.Context, cutoff time.Time) (int, error)

	CountInFlight(ctx context.Context, sourceID string) (int, error)
}

// RequestRepositoryInterface defines the contract for development
// request data access.
type RequestRepositoryInterface interface {
	Create(ctx context.Context, req *domain.DevelopmentRequest) error
	GetByID(ctx context.Context, id string) (*domain.DevelopmentRequest, error)
	List(ctx context.Context, status, market string, limit, offset int) ([]*domain.DevelopmentRequest, error)

	// ClaimNext atomically claims the oldest pending request, optionally
	// scoped to a market. Returns nil, nil when none is pending.
	ClaimNext(ctx context.Context, workerID, market string) (*domain.DevelopmentRequest, error)

	Update(ctx context.Context, req *domain.DevelopmentRequest) error
	ExistsForURL(ctx context.Context, url string) (bool, error)
	CountByParent(ctx context.Context, parentID string) (int, error)

	// ListStranded returns completed requests holding generated code whose
	// source link is missing or points at an inactive/codeless source.
	ListStranded(ctx context.Context, limit int) ([]*domain.DevelopmentRequest, error)
}

// SessionRepositoryInterface defines the contract for session data access.
type SessionRepositoryInterface interface {
	Create(ctx context.Context, s *domain.Session) error
	Update(ctx context.Context, s *domain.Session) error
	GetByID(ctx context.Context, id string) (*domain.Session, error)
	ListBySourceAndDate(ctx context.Context, sourceID string, startDate time.Time) ([]*domain.Session, error)
	ListByOrgAndDate(ctx context.Context, organizationID string, startDate time.Time) ([]*domain.Session, error)
	ListActive(ctx context.Context) ([]*domain.Session, error)

	// DeactivateUnseen marks the source's active sessions not seen since
	// the cutoff as inactive and returns them for change recording.
	DeactivateUnseen(ctx context.Context, sourceID string, seenSince time.Time) ([]*domain.Session, error)
}

// OrganizationRepositoryInterface defines the contract for organization
// data access.
type OrganizationRepositoryInterface interface {
	GetByDomain(ctx context.Context, domain string) (*domain.Organization, error)
	Create(ctx context.Context, org *domain.Organization) error
}

// CampRepositoryInterface defines the contract for camp data access,
// including the destructive admin merge.
type CampRepositoryInterface interface {
	ListByOrganization(ctx context.Context, organizationID string) ([]*domain.Camp, error)
	ListMergeGroups(ctx context.Context) (map[string][]*domain.Camp, error)

	// MergeGroup re-points sessions from losers to the keeper, unions
	// missing image references, and deletes the losers — one transaction.
	MergeGroup(ctx context.Context, keeperID string, loserIDs []string, imageURLs []string) error
}

// AlertRepositoryInterface defines the contract for alert data access.
type AlertRepositoryInterface interface {
	Create(ctx context.Context, alert *domain.Alert) error
	List(ctx context.Context, unacknowledgedOnly bool, limit, offset int) ([]*domain.Alert, error)
	Acknowledge(ctx context.Context, id, by string) error
}

// ChangeRepositoryInterface defines the contract for change data access.
type ChangeRepositoryInterface interface {
	Create(ctx context.Context, change *domain.Change) error
	ListByJob(ctx context.Context, jobID string) ([]*domain.Change, error)
	CountByJob(ctx context.Context, jobID string) (int, error)
}

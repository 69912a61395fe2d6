package pipeline

import (
	"context"
	"errors"
	"fmt"

	"github.com/google/uuid"

	"github.com/jonesrussell/campscout/internal/database"
	"github.com/jonesrussell/campscout/internal/domain"
	"github.com/jonesrussell/campscout/internal/logger"
)

// defaultScrapeIntervalMinutes applies to sources created by deployment.
const defaultScrapeIntervalMinutes = 24 * 60

// completeAndDeploy marks the request completed, attaches the working
// code to its source (locating or creating organization and source as
// needed), activates it, and enqueues an immediate job through the
// idempotent creation path.
func (s *Service) completeAndDeploy(ctx context.Context, req *domain.DevelopmentRequest, outcome domain.TestOutcome) error {
	if req.GeneratedCode == nil {
		return fmt.Errorf("request %s has no generated code to deploy", req.ID)
	}

	sourceID, err := s.deployCode(ctx, req)
	if err != nil {
		return fmt.Errorf("deploy code: %w", err)
	}

	req.SourceID = &sourceID
	if err := s.transition(req, domain.RequestStatusCompleted); err != nil {
		return err
	}
	req.Notes = fmt.Sprintf("deployed: test found %d sessions", outcome.SessionsFound)
	s.clearClaim(req)

	if err := s.deps.Requests.Update(ctx, req); err != nil {
		return fmt.Errorf("complete request: %w", err)
	}

	if _, jobErr := s.deps.Jobs.CreateJob(ctx, sourceID, domain.TriggerDeployment); jobErr != nil {
		// The logic is deployed; the scheduler will pick the source up
		// even if the immediate run could not be queued.
		s.log.Warn("deployed but failed to enqueue immediate job",
			logger.String("request_id", req.ID),
			logger.String("source_id", sourceID),
			logger.Error(jobErr),
		)
	}

	s.log.Info("request completed and deployed",
		logger.String("request_id", req.ID),
		logger.String("source_id", sourceID),
		logger.Int("sessions_found", outcome.SessionsFound),
	)
	return nil
}

// deployCode attaches the request's generated code to its source,
// creating organization and source records when they do not exist yet.
// Returns the source ID.
func (s *Service) deployCode(ctx context.Context, req *domain.DevelopmentRequest) (string, error) {
	source, err := s.locateSource(ctx, req)
	if err != nil {
		return "", err
	}

	if source == nil {
		source, err = s.createSource(ctx, req)
		if err != nil {
			return "", err
		}
	}

	if err := s.deps.Sources.DeployLogic(ctx, source.ID, nil, req.GeneratedCode); err != nil {
		return "", fmt.Errorf("attach code to source %s: %w", source.ID, err)
	}
	return source.ID, nil
}

func (s *Service) locateSource(ctx context.Context, req *domain.DevelopmentRequest) (*domain.Source, error) {
	if req.SourceID != nil {
		source, err := s.deps.Sources.GetByID(ctx, *req.SourceID)
		if err == nil {
			return source, nil
		}
		if !errors.Is(err, database.ErrSourceNotFound) {
			return nil, fmt.Errorf("load linked source: %w", err)
		}
	}

	source, err := s.deps.Sources.GetByURL(ctx, req.SourceURL)
	if err != nil {
		if errors.Is(err, database.ErrSourceNotFound) {
			return nil, nil
		}
		return nil, fmt.Errorf("look up source by url: %w", err)
	}
	return source, nil
}

func (s *Service) createSource(ctx context.Context, req *domain.DevelopmentRequest) (*domain.Source, error) {
	org, err := s.locateOrCreateOrganization(ctx, req)
	if err != nil {
		return nil, err
	}

	name := req.SourceName
	if name == "" {
		name = nameFromURL(req.SourceURL)
	}

	source := &domain.Source{
		ID:                    uuid.NewString(),
		OrganizationID:        &org.ID,
		Name:                  name,
		URL:                   req.SourceURL,
		Market:                req.Market,
		ScrapeIntervalMinutes: defaultScrapeIntervalMinutes,
	}
	if err := s.deps.Sources.Create(ctx, source); err != nil {
		return nil, fmt.Errorf("create source: %w", err)
	}

	s.log.Info("source created for deployment",
		logger.String("source_id", source.ID),
		logger.String("organization_id", org.ID),
		logger.String("url", req.SourceURL),
	)
	return source, nil
}

func (s *Service) locateOrCreateOrganization(ctx context.Context, req *domain.DevelopmentRequest) (*domain.Organization, error) {
	host, err := domainFromURL(req.SourceURL)
	if err != nil {
		return nil, err
	}

	org, err := s.deps.Organizations.GetByDomain(ctx, host)
	if err == nil {
		return org, nil
	}
	if !errors.Is(err, database.ErrOrganizationNotFound) {
		return nil, fmt.Errorf("look up organization: %w", err)
	}

	name := req.SourceName
	if name == "" {
		name = titleFromHost(host)
	}
	org = &domain.Organization{
		ID:      uuid.NewString(),
		Name:    name,
		Website: req.SourceURL,
		Domain:  host,
		Market:  req.Market,
	}
	if err := s.deps.Organizations.Create(ctx, org); err != nil {
		return nil, fmt.Errorf("create organization: %w", err)
	}
	return org, nil
}

// ReconcileDeployments repairs drift between completed requests and
// their sources: requests holding working code whose source link is
// missing, codeless, or inactive get re-deployed and a job enqueued.
// Returns the number of requests repaired.
func (s *Service) ReconcileDeployments(ctx context.Context, limit int) (int, error) {
	stranded, err := s.deps.Requests.ListStranded(ctx, limit)
	if err != nil {
		return 0, fmt.Errorf("list stranded requests: %w", err)
	}

	repaired := 0
	for _, req := range stranded {
		sourceID, deployErr := s.deployCode(ctx, req)
		if deployErr != nil {
			s.log.Error("failed to reconcile request",
				logger.String("request_id", req.ID),
				logger.Error(deployErr),
			)
			continue
		}

		if req.SourceID == nil || *req.SourceID != sourceID {
			req.SourceID = &sourceID
			if updateErr := s.deps.Requests.Update(ctx, req); updateErr != nil {
				s.log.Error("failed to relink reconciled request",
					logger.String("request_id", req.ID),
					logger.Error(updateErr),
				)
				continue
			}
		}

		if _, jobErr := s.deps.Jobs.CreateJob(ctx, sourceID, domain.TriggerDeployment); jobErr != nil {
			s.log.Warn("reconciled but failed to enqueue job",
				logger.String("request_id", req.ID),
				logger.String("source_id", sourceID),
				logger.Error(jobErr),
			)
		}
		repaired++
	}

	if repaired > 0 {
		s.log.Info("deployment reconciliation finished",
			logger.Int("repaired", repaired),
			logger.Int("stranded", len(stranded)),
		)
	}
	return repaired, nil
}

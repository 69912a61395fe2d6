package dedup

import (
	"context"
	"fmt"
	"time"

	"github.com/jonesrussell/campscout/internal/alerts"
	"github.com/jonesrussell/campscout/internal/database"
	"github.com/jonesrussell/campscout/internal/domain"
	"github.com/jonesrussell/campscout/internal/logger"
	"github.com/jonesrussell/campscout/internal/similarity"
)

// DuplicateGroup summarizes one (organization, start date) group with
// cross-source duplicate candidates.
type DuplicateGroup struct {
	OrganizationID string    `json:"organization_id"`
	StartDate      time.Time `json:"start_date"`
	SessionIDs     []string  `json:"session_ids"`
	Names          []string  `json:"names"`
	MatchCount     int       `json:"match_count"`
}

// Scanner performs the batch cross-source duplicate scan. It is purely
// informational: a wrong auto-merge would silently drop one party's
// registrations, so this path only raises an alert.
type Scanner struct {
	sessions database.SessionRepositoryInterface
	alerts   *alerts.Service
	logger   logger.Logger
}

// NewScanner creates a new cross-source duplicate scanner.
func NewScanner(
	sessions database.SessionRepositoryInterface,
	alertSvc *alerts.Service,
	log logger.Logger,
) *Scanner {
	return &Scanner{sessions: sessions, alerts: alertSvc, logger: log}
}

// Scan groups all active sessions by (organization, start date), compares
// pairs originating from different sources, and raises one summary alert
// covering every group that yields two or more cross-source matches.
func (s *Scanner) Scan(ctx context.Context) ([]DuplicateGroup, error) {
	sessions, err := s.sessions.ListActive(ctx)
	if err != nil {
		return nil, fmt.Errorf("list active sessions: %w", err)
	}

	type groupKey struct {
		org  string
		date time.Time
	}
	grouped := make(map[groupKey][]*domain.Session)
	for _, sess := range sessions {
		key := groupKey{org: sess.OrganizationID, date: sess.StartDate}
		grouped[key] = append(grouped[key], sess)
	}

	var flagged []DuplicateGroup
	for key, members := range grouped {
		if len(members) < 2 {
			continue
		}

		matches := 0
		ids := map[string]bool{}
		names := map[string]bool{}
		for i := 0; i < len(members); i++ {
			for j := i + 1; j < len(members); j++ {
				a, b := members[i], members[j]
				// Same-source pairs belong to the within-source matcher,
				// never to this report.
				if a.SourceID == b.SourceID {
					continue
				}
				if similarity.Score(a.Name, b.Name) > similarity.DefaultThreshold {
					matches++
					ids[a.ID], ids[b.ID] = true, true
					names[a.Name], names[b.Name] = true, true
				}
			}
		}

		// A group is flagged once at least two sessions from different
		// sources match each other.
		if len(ids) < 2 {
			continue
		}

		group := DuplicateGroup{
			OrganizationID: key.org,
			StartDate:      key.date,
			MatchCount:     matches,
		}
		for id := range ids {
			group.SessionIDs = append(group.SessionIDs, id)
		}
		for n := range names {
			group.Names = append(group.Names, n)
		}
		flagged = append(flagged, group)
	}

	if len(flagged) > 0 {
		s.alerts.RaiseSystem(ctx, domain.AlertCrossSourceDuplicates, domain.SeverityWarning,
			fmt.Sprintf("cross-source duplicate scan flagged %d session groups", len(flagged)))
	}

	s.logger.Info("cross-source duplicate scan finished",
		logger.Int("sessions", len(sessions)),
		logger.Int("flagged_groups", len(flagged)),
	)

	return flagged, nil
}

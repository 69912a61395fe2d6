// Package dedup prevents duplicate session and camp records, both within
// a single source across re-scrapes and across sources that list the
// same organization.
package dedup

import (
	"context"
	"fmt"
	"time"

	"github.com/jonesrussell/campscout/internal/database"
	"github.com/jonesrussell/campscout/internal/domain"
	"github.com/jonesrussell/campscout/internal/similarity"
)

// Matcher finds the existing session a newly extracted record refers to.
type Matcher struct {
	sessions database.SessionRepositoryInterface
}

// NewMatcher creates a new within-source matcher.
func NewMatcher(sessions database.SessionRepositoryInterface) *Matcher {
	return &Matcher{sessions: sessions}
}

// FindMatch searches existing sessions for one the extracted record
// refers to. Candidates scoped to the same source and start date are
// checked first; if none match, the search widens to the owning
// organization, which covers records imported before per-source tracking
// existed. The first candidate scoring above the similarity threshold
// wins. Returns nil when the record is new.
func (m *Matcher) FindMatch(
	ctx context.Context,
	sourceID string,
	organizationID string,
	name string,
	startDate time.Time,
) (*domain.Session, error) {
	candidates, err := m.sessions.ListBySourceAndDate(ctx, sourceID, startDate)
	if err != nil {
		return nil, fmt.Errorf("list source candidates: %w", err)
	}

	if match := firstMatch(candidates, name); match != nil {
		return match, nil
	}

	if organizationID == "" {
		return nil, nil
	}

	candidates, err = m.sessions.ListByOrgAndDate(ctx, organizationID, startDate)
	if err != nil {
		return nil, fmt.Errorf("list organization candidates: %w", err)
	}

	return firstMatch(candidates, name), nil
}

func firstMatch(candidates []*domain.Session, name string) *domain.Session {
	for _, c := range candidates {
		if similarity.Score(c.Name, name) > similarity.DefaultThreshold {
			return c
		}
	}
	return nil
}

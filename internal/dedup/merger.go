package dedup

import (
	"context"
	"fmt"

	"github.com/jonesrussell/campscout/internal/database"
	"github.com/jonesrussell/campscout/internal/domain"
	"github.com/jonesrussell/campscout/internal/logger"
)

// MergeResult summarizes one executed merge group.
type MergeResult struct {
	KeeperID       string   `json:"keeper_id"`
	KeeperName     string   `json:"keeper_name"`
	MergedIDs      []string `json:"merged_ids"`
	SessionsMoved  int      `json:"sessions_moved"`
	ImagesAdopted  int      `json:"images_adopted"`
	OrganizationID string   `json:"organization_id"`
}

// Merger collapses duplicate camp records. It is administrator-invoked
// and destructive; each group runs in its own atomic transaction and is
// never triggered on a schedule.
type Merger struct {
	camps  database.CampRepositoryInterface
	logger logger.Logger
}

// NewMerger creates a new camp merger.
func NewMerger(camps database.CampRepositoryInterface, log logger.Logger) *Merger {
	return &Merger{camps: camps, logger: log}
}

// MergeDuplicates collapses every group of camps sharing
// (organization, normalized name). Within a group the camp with the most
// attached sessions is kept, ties broken by earliest creation time;
// sessions are re-pointed to the keeper and image references the keeper
// lacks are adopted from the losers before the losers are deleted.
func (m *Merger) MergeDuplicates(ctx context.Context) ([]MergeResult, error) {
	groups, err := m.camps.ListMergeGroups(ctx)
	if err != nil {
		return nil, fmt.Errorf("list merge groups: %w", err)
	}

	var results []MergeResult
	for key, members := range groups {
		if len(members) < 2 {
			continue
		}

		// Members arrive ordered by session count desc, created_at asc.
		keeper := members[0]
		losers := members[1:]

		images, adopted := unionImages(keeper, losers)

		loserIDs := make([]string, 0, len(losers))
		moved := 0
		for _, l := range losers {
			loserIDs = append(loserIDs, l.ID)
			moved += l.SessionCount
		}

		if mergeErr := m.camps.MergeGroup(ctx, keeper.ID, loserIDs, images); mergeErr != nil {
			return results, fmt.Errorf("merge group %s: %w", key, mergeErr)
		}

		results = append(results, MergeResult{
			KeeperID:       keeper.ID,
			KeeperName:     keeper.Name,
			MergedIDs:      loserIDs,
			SessionsMoved:  moved,
			ImagesAdopted:  adopted,
			OrganizationID: keeper.OrganizationID,
		})

		m.logger.Info("merged duplicate camps",
			logger.String("keeper_id", keeper.ID),
			logger.String("keeper_name", keeper.Name),
			logger.Int("merged", len(loserIDs)),
			logger.Int("sessions_moved", moved),
		)
	}

	return results, nil
}

// unionImages returns the keeper's image set extended with loser images
// it lacks, and the number adopted.
func unionImages(keeper *domain.Camp, losers []*domain.Camp) ([]string, int) {
	seen := make(map[string]bool, len(keeper.ImageURLs))
	images := make([]string, 0, len(keeper.ImageURLs))
	for _, u := range keeper.ImageURLs {
		if !seen[u] {
			seen[u] = true
			images = append(images, u)
		}
	}

	adopted := 0
	for _, l := range losers {
		for _, u := range l.ImageURLs {
			if !seen[u] {
				seen[u] = true
				images = append(images, u)
				adopted++
			}
		}
	}

	return images, adopted
}

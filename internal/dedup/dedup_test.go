package dedup

import (
	"context"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/jonesrussell/campscout/internal/alerts"
	"github.com/jonesrussell/campscout/internal/domain"
	"github.com/jonesrussell/campscout/internal/logger"
)

type fakeSessionRepo struct {
	bySourceDate map[string][]*domain.Session
	byOrgDate    map[string][]*domain.Session
	active       []*domain.Session
}

func dateKey(id string, d time.Time) string {
	return id + "|" + d.Format("2006-01-02")
}

func (f *fakeSessionRepo) Create(context.Context, *domain.Session) error { return nil }
func (f *fakeSessionRepo) Update(context.Context, *domain.Session) error { return nil }
func (f *fakeSessionRepo) GetByID(context.Context, string) (*domain.Session, error) {
	return nil, nil
}
func (f *fakeSessionRepo) ListBySourceAndDate(_ context.Context, sourceID string, d time.Time) ([]*domain.Session, error) {
	return f.bySourceDate[dateKey(sourceID, d)], nil
}
func (f *fakeSessionRepo) ListByOrgAndDate(_ context.Context, orgID string, d time.Time) ([]*domain.Session, error) {
	return f.byOrgDate[dateKey(orgID, d)], nil
}
func (f *fakeSessionRepo) ListActive(context.Context) ([]*domain.Session, error) {
	return f.active, nil
}
func (f *fakeSessionRepo) DeactivateUnseen(context.Context, string, time.Time) ([]*domain.Session, error) {
	return nil, nil
}

type fakeAlertRepo struct {
	created []*domain.Alert
}

func (f *fakeAlertRepo) Create(_ context.Context, a *domain.Alert) error {
	f.created = append(f.created, a)
	return nil
}
func (f *fakeAlertRepo) List(context.Context, bool, int, int) ([]*domain.Alert, error) {
	return f.created, nil
}
func (f *fakeAlertRepo) Acknowledge(context.Context, string, string) error { return nil }

var july7 = time.Date(2025, 7, 7, 0, 0, 0, 0, time.UTC)

func TestMatcher_WithinSource(t *testing.T) {
	existing := &domain.Session{
		ID: "sess-1", SourceID: "src-1", OrganizationID: "org-1",
		Name: "Summer Art Camp", StartDate: july7,
	}
	repo := &fakeSessionRepo{
		bySourceDate: map[string][]*domain.Session{
			dateKey("src-1", july7): {existing},
		},
	}

	m := NewMatcher(repo)
	got, err := m.FindMatch(context.Background(), "src-1", "org-1",
		"Summer Art Camp (Ages 6-9)", july7)
	require.NoError(t, err)
	require.NotNil(t, got, "qualifier variant must match, not duplicate")
	assert.Equal(t, "sess-1", got.ID)
}

func TestMatcher_OrgFallback(t *testing.T) {
	historical := &domain.Session{
		ID: "sess-hist", SourceID: "", OrganizationID: "org-1",
		Name: "Robotics Camp", StartDate: july7,
	}
	repo := &fakeSessionRepo{
		byOrgDate: map[string][]*domain.Session{
			dateKey("org-1", july7): {historical},
		},
	}

	m := NewMatcher(repo)
	got, err := m.FindMatch(context.Background(), "src-2", "org-1", "Robotics Camp", july7)
	require.NoError(t, err)
	require.NotNil(t, got, "fallback must cover pre-source historical records")
	assert.Equal(t, "sess-hist", got.ID)
}

func TestMatcher_NoMatch(t *testing.T) {
	repo := &fakeSessionRepo{
		bySourceDate: map[string][]*domain.Session{
			dateKey("src-1", july7): {
				{ID: "sess-1", SourceID: "src-1", Name: "Chess Intensive", StartDate: july7},
			},
		},
	}

	m := NewMatcher(repo)
	got, err := m.FindMatch(context.Background(), "src-1", "", "Pottery Wheel Basics", july7)
	require.NoError(t, err)
	assert.Nil(t, got)
}

func TestScanner_CrossSourceDuplicates(t *testing.T) {
	repo := &fakeSessionRepo{
		active: []*domain.Session{
			{ID: "a", SourceID: "src-1", OrganizationID: "org-1", Name: "Summer Art Camp", StartDate: july7},
			{ID: "b", SourceID: "src-2", OrganizationID: "org-1", Name: "Summer Art Camp (Grades 3-5)", StartDate: july7},
		},
	}
	alertRepo := &fakeAlertRepo{}
	scanner := NewScanner(repo, alerts.NewService(alertRepo, logger.NewNopLogger()), logger.NewNopLogger())

	groups, err := scanner.Scan(context.Background())
	require.NoError(t, err)
	require.Len(t, groups, 1)
	assert.ElementsMatch(t, []string{"a", "b"}, groups[0].SessionIDs)

	require.Len(t, alertRepo.created, 1)
	assert.Equal(t, domain.AlertCrossSourceDuplicates, alertRepo.created[0].Type)
}

func TestScanner_SameSourcePairsIgnored(t *testing.T) {
	repo := &fakeSessionRepo{
		active: []*domain.Session{
			{ID: "a", SourceID: "src-1", OrganizationID: "org-1", Name: "Summer Art Camp", StartDate: july7},
			{ID: "b", SourceID: "src-1", OrganizationID: "org-1", Name: "Summer Art Camp", StartDate: july7},
		},
	}
	alertRepo := &fakeAlertRepo{}
	scanner := NewScanner(repo, alerts.NewService(alertRepo, logger.NewNopLogger()), logger.NewNopLogger())

	groups, err := scanner.Scan(context.Background())
	require.NoError(t, err)
	assert.Empty(t, groups, "same-source pairs belong to the within-source matcher")
	assert.Empty(t, alertRepo.created)
}

func TestScanner_DifferentDatesNotGrouped(t *testing.T) {
	repo := &fakeSessionRepo{
		active: []*domain.Session{
			{ID: "a", SourceID: "src-1", OrganizationID: "org-1", Name: "Summer Art Camp", StartDate: july7},
			{ID: "b", SourceID: "src-2", OrganizationID: "org-1", Name: "Summer Art Camp", StartDate: july7.AddDate(0, 0, 7)},
		},
	}
	alertRepo := &fakeAlertRepo{}
	scanner := NewScanner(repo, alerts.NewService(alertRepo, logger.NewNopLogger()), logger.NewNopLogger())

	groups, err := scanner.Scan(context.Background())
	require.NoError(t, err)
	assert.Empty(t, groups)
}

type fakeCampRepo struct {
	groups map[string][]*domain.Camp
	merges []struct {
		keeper string
		losers []string
		images []string
	}
}

func (f *fakeCampRepo) ListByOrganization(context.Context, string) ([]*domain.Camp, error) {
	return nil, nil
}
func (f *fakeCampRepo) ListMergeGroups(context.Context) (map[string][]*domain.Camp, error) {
	return f.groups, nil
}
func (f *fakeCampRepo) MergeGroup(_ context.Context, keeperID string, loserIDs, imageURLs []string) error {
	f.merges = append(f.merges, struct {
		keeper string
		losers []string
		images []string
	}{keeperID, loserIDs, imageURLs})
	return nil
}

func TestMerger_KeepsMostSessions(t *testing.T) {
	// Group members arrive pre-ordered: session count desc, created_at asc.
	repo := &fakeCampRepo{
		groups: map[string][]*domain.Camp{
			"org-1|summer art camp": {
				{ID: "keep", OrganizationID: "org-1", Name: "Summer Art Camp",
					SessionCount: 9, ImageURLs: domain.StringSlice{"a.jpg"}},
				{ID: "lose-1", OrganizationID: "org-1", Name: "Summer Art Camp",
					SessionCount: 3, ImageURLs: domain.StringSlice{"a.jpg", "b.jpg"}},
				{ID: "lose-2", OrganizationID: "org-1", Name: "Summer Art Camp",
					SessionCount: 1},
			},
		},
	}

	merger := NewMerger(repo, logger.NewNopLogger())
	results, err := merger.MergeDuplicates(context.Background())
	require.NoError(t, err)
	require.Len(t, results, 1)

	assert.Equal(t, "keep", results[0].KeeperID)
	assert.ElementsMatch(t, []string{"lose-1", "lose-2"}, results[0].MergedIDs)
	assert.Equal(t, 4, results[0].SessionsMoved)
	assert.Equal(t, 1, results[0].ImagesAdopted, "only images the keeper lacks are adopted")

	require.Len(t, repo.merges, 1)
	assert.Equal(t, []string{"a.jpg", "b.jpg"}, repo.merges[0].images)
}

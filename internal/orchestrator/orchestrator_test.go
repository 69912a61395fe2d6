package orchestrator

import (
	"context"
	"errors"
	"sync"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/jonesrussell/campscout/internal/alerts"
	"github.com/jonesrussell/campscout/internal/config"
	"github.com/jonesrussell/campscout/internal/dedup"
	"github.com/jonesrussell/campscout/internal/domain"
	"github.com/jonesrussell/campscout/internal/extraction"
	"github.com/jonesrussell/campscout/internal/health"
	"github.com/jonesrussell/campscout/internal/logger"
	"github.com/jonesrussell/campscout/internal/metrics"
	"github.com/jonesrussell/campscout/internal/worker"
)

// --- fakes ---

type fakeSourceRepo struct {
	mu      sync.Mutex
	sources map[string]*domain.Source
	due     []*domain.Source
	touched []string
}

func newFakeSourceRepo(sources ...*domain.Source) *fakeSourceRepo {
	m := make(map[string]*domain.Source, len(sources))
	for _, s := range sources {
		m[s.ID] = s
	}
	return &fakeSourceRepo{sources: m}
}

func (f *fakeSourceRepo) Create(_ context.Context, s *domain.Source) error {
	f.mu.Lock()
	defer f.mu.Unlock()
	f.sources[s.ID] = s
	return nil
}

func (f *fakeSourceRepo) GetByID(_ context.Context, id string) (*domain.Source, error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	s, ok := f.sources[id]
	if !ok {
		return nil, errors.New("source not found")
	}
	return s, nil
}

func (f *fakeSourceRepo) GetByURL(_ context.Context, _ string) (*domain.Source, error) {
	return nil, errors.New("not implemented")
}

func (f *fakeSourceRepo) List(_ context.Context, _ bool) ([]*domain.Source, error) {
	return nil, nil
}

func (f *fakeSourceRepo) ListDue(_ context.Context, _ time.Time) ([]*domain.Source, error) {
	return f.due, nil
}

func (f *fakeSourceRepo) Update(_ context.Context, _ *domain.Source) error      { return nil }
func (f *fakeSourceRepo) UpdateHealth(_ context.Context, _ *domain.Source) error { return nil }
func (f *fakeSourceRepo) SetActive(_ context.Context, _ string, _ bool) error   { return nil }

func (f *fakeSourceRepo) DeployLogic(_ context.Context, _ string, _, _ *string) error {
	return nil
}

func (f *fakeSourceRepo) TouchScraped(_ context.Context, id string, _ time.Time) error {
	f.mu.Lock()
	defer f.mu.Unlock()
	f.touched = append(f.touched, id)
	return nil
}

type fakeJobRepo struct {
	mu         sync.Mutex
	inFlight   map[string]bool
	created    []*domain.Job
	started    []string
	finalized  []*domain.Job
	nextID     int
	markResult bool
}

func newFakeJobRepo() *fakeJobRepo {
	return &fakeJobRepo{inFlight: make(map[string]bool), markResult: true}
}

func (f *fakeJobRepo) CreateIfIdle(_ context.Context, sourceID, triggeredBy string) (*domain.Job, error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	if f.inFlight[sourceID] {
		return nil, nil
	}
	f.inFlight[sourceID] = true
	f.nextID++
	job := &domain.Job{
		ID:          "job-" + string(rune('0'+f.nextID)),
		SourceID:    sourceID,
		Status:      domain.JobStatusPending,
		TriggeredBy: triggeredBy,
		CreatedAt:   time.Now(),
	}
	f.created = append(f.created, job)
	return job, nil
}

func (f *fakeJobRepo) GetByID(_ context.Context, _ string) (*domain.Job, error) {
	return nil, errors.New("not implemented")
}

func (f *fakeJobRepo) List(_ context.Context, _ string, _, _ int) ([]*domain.Job, error) {
	return nil, nil
}

func (f *fakeJobRepo) MarkRunning(_ context.Context, id, _ string) (bool, error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	if !f.markResult {
		return false, nil
	}
	f.started = append(f.started, id)
	return true, nil
}

func (f *fakeJobRepo) Finalize(_ context.Context, job *domain.Job) error {
	f.mu.Lock()
	defer f.mu.Unlock()
	f.finalized = append(f.finalized, job)
	f.inFlight[job.SourceID] = false
	return nil
}

func (f *fakeJobRepo) FailStale(_ context.Context, cutoff time.Time) (int, error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	reaped := 0
	for _, job := range f.created {
		if job.Status != domain.JobStatusPending && job.Status != domain.JobStatusRunning {
			continue
		}
		if !job.CreatedAt.Before(cutoff) {
			continue
		}
		job.Status = domain.JobStatusFailed
		f.finalized = append(f.finalized, job)
		f.inFlight[job.SourceID] = false
		reaped++
	}
	return reaped, nil
}

func (f *fakeJobRepo) CountInFlight(_ context.Context, _ string) (int, error) { return 0, nil }

// seedOrphan plants an in-flight job as a previous process would have
// left it: the row exists but no deferred-start goroutine does.
func (f *fakeJobRepo) seedOrphan(id, sourceID string, createdAt time.Time) {
	f.mu.Lock()
	defer f.mu.Unlock()
	f.inFlight[sourceID] = true
	f.created = append(f.created, &domain.Job{
		ID:          id,
		SourceID:    sourceID,
		Status:      domain.JobStatusPending,
		TriggeredBy: domain.TriggerScheduled,
		CreatedAt:   createdAt,
	})
}

func (f *fakeJobRepo) startedCount() int {
	f.mu.Lock()
	defer f.mu.Unlock()
	return len(f.started)
}

func (f *fakeJobRepo) finalizedJobs() []*domain.Job {
	f.mu.Lock()
	defer f.mu.Unlock()
	out := make([]*domain.Job, len(f.finalized))
	copy(out, f.finalized)
	return out
}

type fakeSessionRepo struct {
	mu          sync.Mutex
	bySource    map[string][]*domain.Session
	created     []*domain.Session
	updated     []*domain.Session
	deactivated []*domain.Session
}

func newFakeSessionRepo() *fakeSessionRepo {
	return &fakeSessionRepo{bySource: make(map[string][]*domain.Session)}
}

func (f *fakeSessionRepo) Create(_ context.Context, s *domain.Session) error {
	f.mu.Lock()
	defer f.mu.Unlock()
	f.created = append(f.created, s)
	f.bySource[s.SourceID] = append(f.bySource[s.SourceID], s)
	return nil
}

func (f *fakeSessionRepo) Update(_ context.Context, s *domain.Session) error {
	f.mu.Lock()
	defer f.mu.Unlock()
	f.updated = append(f.updated, s)
	return nil
}

func (f *fakeSessionRepo) GetByID(_ context.Context, _ string) (*domain.Session, error) {
	return nil, errors.New("not implemented")
}

func (f *fakeSessionRepo) ListBySourceAndDate(_ context.Context, sourceID string, startDate time.Time) ([]*domain.Session, error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	var out []*domain.Session
	for _, s := range f.bySource[sourceID] {
		if s.StartDate.Equal(startDate) {
			out = append(out, s)
		}
	}
	return out, nil
}

func (f *fakeSessionRepo) ListByOrgAndDate(_ context.Context, _ string, _ time.Time) ([]*domain.Session, error) {
	return nil, nil
}

func (f *fakeSessionRepo) ListActive(_ context.Context) ([]*domain.Session, error) { return nil, nil }

func (f *fakeSessionRepo) DeactivateUnseen(_ context.Context, _ string, _ time.Time) ([]*domain.Session, error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	return f.deactivated, nil
}

type fakeOrgRepo struct{}

func (fakeOrgRepo) GetByDomain(_ context.Context, _ string) (*domain.Organization, error) {
	return nil, errors.New("not found")
}
func (fakeOrgRepo) Create(_ context.Context, _ *domain.Organization) error { return nil }

type fakeChangeRepo struct {
	mu      sync.Mutex
	changes []*domain.Change
}

func (f *fakeChangeRepo) Create(_ context.Context, c *domain.Change) error {
	f.mu.Lock()
	defer f.mu.Unlock()
	f.changes = append(f.changes, c)
	return nil
}

func (f *fakeChangeRepo) ListByJob(_ context.Context, _ string) ([]*domain.Change, error) {
	return nil, nil
}

func (f *fakeChangeRepo) CountByJob(_ context.Context, _ string) (int, error) { return 0, nil }

func (f *fakeChangeRepo) byType(changeType string) []*domain.Change {
	f.mu.Lock()
	defer f.mu.Unlock()
	var out []*domain.Change
	for _, c := range f.changes {
		if c.ChangeType == changeType {
			out = append(out, c)
		}
	}
	return out
}

type fakeAlertRepo struct {
	mu     sync.Mutex
	alerts []*domain.Alert
}

func (f *fakeAlertRepo) Create(_ context.Context, a *domain.Alert) error {
	f.mu.Lock()
	defer f.mu.Unlock()
	f.alerts = append(f.alerts, a)
	return nil
}

func (f *fakeAlertRepo) List(_ context.Context, _ bool, _, _ int) ([]*domain.Alert, error) {
	return nil, nil
}

func (f *fakeAlertRepo) Acknowledge(_ context.Context, _, _ string) error { return nil }

// --- harness ---

type harness struct {
	orch     *Orchestrator
	sources  *fakeSourceRepo
	jobs     *fakeJobRepo
	sessions *fakeSessionRepo
	changes  *fakeChangeRepo
	alertLog *fakeAlertRepo
}

func moduleName(name string) *string { return &name }

func testSource(id string) *domain.Source {
	return &domain.Source{
		ID:                    id,
		Name:                  "Test Source " + id,
		URL:                   "https://example.test/camps",
		Market:                "austin",
		ScrapeIntervalMinutes: 60,
		IsActive:              true,
		ModuleName:            moduleName("html_listing"),
	}
}

func newHarness(t *testing.T, extract extraction.WorkerFunc, sources ...*domain.Source) *harness {
	t.Helper()

	log := logger.NewNopLogger()
	sourceRepo := newFakeSourceRepo(sources...)
	jobRepo := newFakeJobRepo()
	sessionRepo := newFakeSessionRepo()
	changeRepo := &fakeChangeRepo{}
	alertRepo := &fakeAlertRepo{}
	alertSvc := alerts.NewService(alertRepo, log)

	workerCfg := worker.DefaultConfig()
	workerCfg.PoolSize = 2
	workerCfg.JobTimeout = 5 * time.Second
	workerCfg.DrainTimeout = 2 * time.Second

	orch, err := New(Deps{
		Sources:       sourceRepo,
		Jobs:          jobRepo,
		Sessions:      sessionRepo,
		Organizations: fakeOrgRepo{},
		Changes:       changeRepo,
		Matcher:       dedup.NewMatcher(sessionRepo),
		Health:        health.NewRecorder(sourceRepo, alertSvc, health.DefaultThresholds(), log),
		Alerts:        alertSvc,
		Extractor:     extract,
		Metrics:       metrics.NewMetrics(),
		Config: config.OrchestratorConfig{
			StartJitterMinMs:      1,
			StartJitterMaxMs:      5,
			ChangeVolumeThreshold: 50,
			StaleJobTimeout:       30 * time.Minute,
		},
		WorkerConfig: workerCfg,
		Logger:       log,
	})
	require.NoError(t, err)
	require.NoError(t, orch.Start())
	t.Cleanup(func() { _ = orch.Stop(context.Background()) })

	return &harness{
		orch:     orch,
		sources:  sourceRepo,
		jobs:     jobRepo,
		sessions: sessionRepo,
		changes:  changeRepo,
		alertLog: alertRepo,
	}
}

func staticExtractor(result *extraction.Result, err error) extraction.WorkerFunc {
	return func(_ context.Context, _ string, _ extraction.Spec, _ extraction.Hints) (*extraction.Result, error) {
		return result, err
	}
}

// --- tests ---

func TestCreateJobIdempotent(t *testing.T) {
	h := newHarness(t, staticExtractor(&extraction.Result{}, nil), testSource("src-1"))
	// Keep the first job pending so the duplicate create observes it.
	h.jobs.markResult = false

	ctx := context.Background()
	first, err := h.orch.CreateJob(ctx, "src-1", domain.TriggerManual)
	require.NoError(t, err)
	require.NotNil(t, first)

	second, err := h.orch.CreateJob(ctx, "src-1", domain.TriggerManual)
	require.NoError(t, err)
	assert.Nil(t, second, "duplicate create while a job is in flight is a no-op")
}

func TestCreateJobRejectsInactiveSource(t *testing.T) {
	src := testSource("src-1")
	src.IsActive = false
	h := newHarness(t, staticExtractor(&extraction.Result{}, nil), src)

	_, err := h.orch.CreateJob(context.Background(), "src-1", domain.TriggerManual)
	assert.ErrorIs(t, err, ErrSourceInactive)
}

func TestCreateJobRejectsSourceWithoutLogic(t *testing.T) {
	src := testSource("src-1")
	src.ModuleName = nil
	h := newHarness(t, staticExtractor(&extraction.Result{}, nil), src)

	_, err := h.orch.CreateJob(context.Background(), "src-1", domain.TriggerManual)
	assert.ErrorIs(t, err, ErrSourceNoLogic)
}

func TestDeferredStartSkipsClaimedJob(t *testing.T) {
	h := newHarness(t, staticExtractor(&extraction.Result{}, nil), testSource("src-1"))
	h.jobs.markResult = false

	job, err := h.orch.CreateJob(context.Background(), "src-1", domain.TriggerManual)
	require.NoError(t, err)
	require.NotNil(t, job)

	// The starter fires after the jitter window but the claim loses the
	// race; nothing must reach the pool.
	time.Sleep(100 * time.Millisecond)
	assert.Empty(t, h.jobs.finalizedJobs())
	assert.Equal(t, 0, h.jobs.startedCount())
}

func TestWorkflowSuccessPersistsSessions(t *testing.T) {
	result := &extraction.Result{
		Sessions: []domain.ExtractedSession{
			{Name: "Forest Explorers", StartDate: time.Date(2026, 7, 6, 0, 0, 0, 0, time.UTC)},
			{Name: "Trail Blazers", StartDate: time.Date(2026, 7, 13, 0, 0, 0, 0, time.UTC)},
		},
	}
	h := newHarness(t, staticExtractor(result, nil), testSource("src-1"))

	job, err := h.orch.CreateJob(context.Background(), "src-1", domain.TriggerManual)
	require.NoError(t, err)
	require.NotNil(t, job)

	require.Eventually(t, func() bool {
		return len(h.jobs.finalizedJobs()) == 1
	}, 2*time.Second, 10*time.Millisecond)

	final := h.jobs.finalizedJobs()[0]
	assert.Equal(t, domain.JobStatusCompleted, final.Status)
	assert.Equal(t, 2, final.SessionsFound)
	assert.Equal(t, 2, final.SessionsCreated)
	assert.Equal(t, 0, final.SessionsUpdated)
	assert.Len(t, h.changes.byType(domain.ChangeAdded), 2)
}

func TestWorkflowRescrapUpdatesExisting(t *testing.T) {
	start := time.Date(2026, 7, 6, 0, 0, 0, 0, time.UTC)
	oldPrice := 40000
	existing := &domain.Session{
		ID:           "sess-1",
		SourceID:     "src-1",
		Name:         "Forest Explorers (Grades 1-3)",
		StartDate:    start,
		PriceCents:   &oldPrice,
		Availability: domain.AvailabilityOpen,
		IsActive:     true,
	}

	newPrice := 42500
	result := &extraction.Result{
		Sessions: []domain.ExtractedSession{
			{
				Name:         "Forest Explorers",
				StartDate:    start,
				PriceCents:   &newPrice,
				Availability: domain.AvailabilityWaitlist,
			},
		},
	}
	h := newHarness(t, staticExtractor(result, nil), testSource("src-1"))
	h.sessions.bySource["src-1"] = []*domain.Session{existing}

	job, err := h.orch.CreateJob(context.Background(), "src-1", domain.TriggerManual)
	require.NoError(t, err)
	require.NotNil(t, job)

	require.Eventually(t, func() bool {
		return len(h.jobs.finalizedJobs()) == 1
	}, 2*time.Second, 10*time.Millisecond)

	final := h.jobs.finalizedJobs()[0]
	assert.Equal(t, domain.JobStatusCompleted, final.Status)
	assert.Equal(t, 0, final.SessionsCreated)
	assert.Equal(t, 1, final.SessionsUpdated)

	assert.Equal(t, newPrice, *existing.PriceCents)
	assert.Equal(t, domain.AvailabilityWaitlist, existing.Availability)
	assert.Len(t, h.changes.byType(domain.ChangePriceChanged), 1)
	assert.Len(t, h.changes.byType(domain.ChangeStatusChanged), 1)
}

func TestWorkflowFailureRecordsHealth(t *testing.T) {
	src := testSource("src-1")
	h := newHarness(t, staticExtractor(nil, errors.New("fetch failed: 500")), src)

	job, err := h.orch.CreateJob(context.Background(), "src-1", domain.TriggerManual)
	require.NoError(t, err)
	require.NotNil(t, job)

	require.Eventually(t, func() bool {
		return len(h.jobs.finalizedJobs()) == 1
	}, 2*time.Second, 10*time.Millisecond)

	final := h.jobs.finalizedJobs()[0]
	assert.Equal(t, domain.JobStatusFailed, final.Status)
	require.NotNil(t, final.ErrorMessage)
	assert.Contains(t, *final.ErrorMessage, "fetch failed")
	assert.Equal(t, 1, src.ConsecutiveFailures)
}

func TestWorkflowRemovedSessions(t *testing.T) {
	start := time.Date(2026, 7, 6, 0, 0, 0, 0, time.UTC)
	result := &extraction.Result{
		Sessions: []domain.ExtractedSession{
			{Name: "Forest Explorers", StartDate: start},
		},
	}
	h := newHarness(t, staticExtractor(result, nil), testSource("src-1"))
	h.sessions.deactivated = []*domain.Session{
		{ID: "gone-1", SourceID: "src-1", Name: "Winter Camp"},
	}

	job, err := h.orch.CreateJob(context.Background(), "src-1", domain.TriggerManual)
	require.NoError(t, err)
	require.NotNil(t, job)

	require.Eventually(t, func() bool {
		return len(h.jobs.finalizedJobs()) == 1
	}, 2*time.Second, 10*time.Millisecond)

	assert.Len(t, h.changes.byType(domain.ChangeRemoved), 1)
}

func TestRunDueSources(t *testing.T) {
	src1 := testSource("src-1")
	src2 := testSource("src-2")
	h := newHarness(t, staticExtractor(&extraction.Result{}, nil), src1, src2)
	h.sources.due = []*domain.Source{src1, src2}
	// Keep the jobs pending so the second pass observes them in flight.
	h.jobs.markResult = false

	created, err := h.orch.RunDueSources(context.Background())
	require.NoError(t, err)
	assert.Equal(t, 2, created)

	// A second pass while jobs are still in flight creates nothing.
	created, err = h.orch.RunDueSources(context.Background())
	require.NoError(t, err)
	assert.Equal(t, 0, created)
}

func TestRunDueSourcesReapsOrphanedJobs(t *testing.T) {
	src := testSource("src-1")
	h := newHarness(t, staticExtractor(&extraction.Result{}, nil), src)
	h.sources.due = []*domain.Source{src}
	h.jobs.markResult = false

	// A pending job a dead process left behind would otherwise hold the
	// source's one-in-flight slot forever.
	h.jobs.seedOrphan("orphan-1", "src-1", time.Now().Add(-time.Hour))

	created, err := h.orch.RunDueSources(context.Background())
	require.NoError(t, err)
	assert.Equal(t, 1, created, "reaping the orphan frees the slot for a fresh job")

	finalized := h.jobs.finalizedJobs()
	require.Len(t, finalized, 1)
	assert.Equal(t, "orphan-1", finalized[0].ID)
	assert.Equal(t, domain.JobStatusFailed, finalized[0].Status)

	// A fresh pending job is not stale and survives the next pass.
	created, err = h.orch.RunDueSources(context.Background())
	require.NoError(t, err)
	assert.Equal(t, 0, created)
	assert.Len(t, h.jobs.finalizedJobs(), 1)
}

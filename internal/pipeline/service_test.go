package pipeline

import (
	"context"
	"errors"
	"fmt"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/jonesrussell/campscout/internal/alerts"
	"github.com/jonesrussell/campscout/internal/codegen"
	"github.com/jonesrussell/campscout/internal/config"
	"github.com/jonesrussell/campscout/internal/database"
	"github.com/jonesrussell/campscout/internal/domain"
	"github.com/jonesrussell/campscout/internal/extraction"
	"github.com/jonesrussell/campscout/internal/logger"
)

// --- fakes ---

type fakeRequestRepo struct {
	requests map[string]*domain.DevelopmentRequest
	created  []*domain.DevelopmentRequest
	stranded []*domain.DevelopmentRequest
	statuses []string
}

func newFakeRequestRepo(reqs ...*domain.DevelopmentRequest) *fakeRequestRepo {
	m := make(map[string]*domain.DevelopmentRequest)
	for _, r := range reqs {
		m[r.ID] = r
	}
	return &fakeRequestRepo{requests: m}
}

func (f *fakeRequestRepo) Create(_ context.Context, req *domain.DevelopmentRequest) error {
	f.requests[req.ID] = req
	f.created = append(f.created, req)
	return nil
}

func (f *fakeRequestRepo) GetByID(_ context.Context, id string) (*domain.DevelopmentRequest, error) {
	r, ok := f.requests[id]
	if !ok {
		return nil, database.ErrRequestNotFound
	}
	return r, nil
}

func (f *fakeRequestRepo) List(_ context.Context, _, _ string, _, _ int) ([]*domain.DevelopmentRequest, error) {
	return nil, nil
}

func (f *fakeRequestRepo) ClaimNext(_ context.Context, workerID, _ string) (*domain.DevelopmentRequest, error) {
	for _, r := range f.requests {
		if r.Status == domain.RequestStatusPending {
			r.Status = domain.RequestStatusInProgress
			r.ClaimedBy = &workerID
			now := time.Now()
			r.ClaimedAt = &now
			return r, nil
		}
	}
	return nil, nil
}

func (f *fakeRequestRepo) Update(_ context.Context, req *domain.DevelopmentRequest) error {
	if _, ok := f.requests[req.ID]; !ok {
		return database.ErrRequestNotFound
	}
	f.requests[req.ID] = req
	f.statuses = append(f.statuses, req.Status)
	return nil
}

func (f *fakeRequestRepo) ExistsForURL(_ context.Context, url string) (bool, error) {
	for _, r := range f.requests {
		if r.SourceURL == url {
			return true, nil
		}
	}
	return false, nil
}

func (f *fakeRequestRepo) CountByParent(_ context.Context, parentID string) (int, error) {
	count := 0
	for _, r := range f.requests {
		if r.ParentID != nil && *r.ParentID == parentID {
			count++
		}
	}
	return count, nil
}

func (f *fakeRequestRepo) ListStranded(_ context.Context, _ int) ([]*domain.DevelopmentRequest, error) {
	return f.stranded, nil
}

type fakeSourceStore struct {
	byID     map[string]*domain.Source
	byURL    map[string]*domain.Source
	deployed []string
}

func newFakeSourceStore() *fakeSourceStore {
	return &fakeSourceStore{
		byID:  make(map[string]*domain.Source),
		byURL: make(map[string]*domain.Source),
	}
}

func (f *fakeSourceStore) Create(_ context.Context, s *domain.Source) error {
	f.byID[s.ID] = s
	f.byURL[s.URL] = s
	return nil
}

func (f *fakeSourceStore) GetByID(_ context.Context, id string) (*domain.Source, error) {
	s, ok := f.byID[id]
	if !ok {
		return nil, database.ErrSourceNotFound
	}
	return s, nil
}

func (f *fakeSourceStore) GetByURL(_ context.Context, url string) (*domain.Source, error) {
	s, ok := f.byURL[url]
	if !ok {
		return nil, database.ErrSourceNotFound
	}
	return s, nil
}

func (f *fakeSourceStore) List(_ context.Context, _ bool) ([]*domain.Source, error)     { return nil, nil }
func (f *fakeSourceStore) ListDue(_ context.Context, _ time.Time) ([]*domain.Source, error) {
	return nil, nil
}
func (f *fakeSourceStore) Update(_ context.Context, _ *domain.Source) error       { return nil }
func (f *fakeSourceStore) UpdateHealth(_ context.Context, _ *domain.Source) error { return nil }
func (f *fakeSourceStore) SetActive(_ context.Context, _ string, _ bool) error    { return nil }

func (f *fakeSourceStore) DeployLogic(_ context.Context, id string, moduleName, scriptCode *string) error {
	s, ok := f.byID[id]
	if !ok {
		return database.ErrSourceNotFound
	}
	s.ModuleName = moduleName
	s.ScriptCode = scriptCode
	s.IsActive = true
	s.NeedsRegeneration = false
	s.ConsecutiveZeroResults = 0
	f.deployed = append(f.deployed, id)
	return nil
}

func (f *fakeSourceStore) TouchScraped(_ context.Context, _ string, _ time.Time) error { return nil }

type fakeOrgStore struct {
	byDomain map[string]*domain.Organization
}

func newFakeOrgStore() *fakeOrgStore {
	return &fakeOrgStore{byDomain: make(map[string]*domain.Organization)}
}

func (f *fakeOrgStore) GetByDomain(_ context.Context, dom string) (*domain.Organization, error) {
	o, ok := f.byDomain[dom]
	if !ok {
		return nil, database.ErrOrganizationNotFound
	}
	return o, nil
}

func (f *fakeOrgStore) Create(_ context.Context, org *domain.Organization) error {
	f.byDomain[org.Domain] = org
	return nil
}

type fakeJobCreator struct {
	created []string
}

func (f *fakeJobCreator) CreateJob(_ context.Context, sourceID, _ string) (*domain.Job, error) {
	f.created = append(f.created, sourceID)
	return &domain.Job{ID: "job-" + sourceID, SourceID: sourceID, Status: domain.JobStatusPending}, nil
}

type fakeExplorer struct {
	result *Exploration
	err    error
	calls  int
}

func (f *fakeExplorer) Explore(_ context.Context, _ string) (*Exploration, error) {
	f.calls++
	return f.result, f.err
}

type fakeGenerator struct {
	result *codegen.Result
	err    error
}

func (f *fakeGenerator) Generate(_ context.Context, _ codegen.Request) (*codegen.Result, error) {
	return f.result, f.err
}

type alertSink struct {
	alerts []*domain.Alert
}

func (a *alertSink) Create(_ context.Context, al *domain.Alert) error {
	a.alerts = append(a.alerts, al)
	return nil
}

func (a *alertSink) List(_ context.Context, _ bool, _, _ int) ([]*domain.Alert, error) {
	return nil, nil
}

func (a *alertSink) Acknowledge(_ context.Context, _, _ string) error { return nil }

// --- harness ---

type harness struct {
	svc       *Service
	requests  *fakeRequestRepo
	sources   *fakeSourceStore
	orgs      *fakeOrgStore
	jobs      *fakeJobCreator
	explorer  *fakeExplorer
	generator *fakeGenerator
	extractor extraction.WorkerFunc
	alertLog  *alertSink
}

func newHarness(reqs ...*domain.DevelopmentRequest) *harness {
	log := logger.NewNopLogger()
	h := &harness{
		requests:  newFakeRequestRepo(reqs...),
		sources:   newFakeSourceStore(),
		orgs:      newFakeOrgStore(),
		jobs:      &fakeJobCreator{},
		explorer:  &fakeExplorer{result: &Exploration{}},
		generator: &fakeGenerator{result: &codegen.Result{Code: "extract()"}},
		alertLog:  &alertSink{},
	}
	h.extractor = func(_ context.Context, _ string, _ extraction.Spec, _ extraction.Hints) (*extraction.Result, error) {
		return &extraction.Result{}, nil
	}

	h.svc = NewService("worker-1", Deps{
		Requests:      h.requests,
		Sources:       h.sources,
		Organizations: h.orgs,
		Alerts:        alerts.NewService(h.alertLog, log),
		Generator:     h.generator,
		Extractor: extraction.WorkerFunc(func(ctx context.Context, url string, spec extraction.Spec, hints extraction.Hints) (*extraction.Result, error) {
			return h.extractor(ctx, url, spec, hints)
		}),
		Jobs:     h.jobs,
		Explorer: h.explorer,
		Config: config.PipelineConfig{
			PollInterval:        time.Millisecond,
			MaxExternalChildren: 30,
			MaxInternalChildren: 50,
			GenerateTestTimeout: 5 * time.Second,
		},
		Logger: log,
	})
	return h
}

func pendingRequest(id, url string) *domain.DevelopmentRequest {
	return &domain.DevelopmentRequest{
		ID:             id,
		SourceURL:      url,
		SourceName:     "Test Request " + id,
		Market:         "austin",
		Status:         domain.RequestStatusPending,
		MaxTestRetries: domain.DefaultMaxTestRetries,
	}
}

// --- tests ---

func TestDirectoryExpansionCreatesChildren(t *testing.T) {
	external := []string{
		"https://cedarridgecamps.com/",
		"https://www.facebook.com/someparkdistrict",
		"https://riverbendcamp.org/summer",
		"https://www.instagram.com/campfeed",
		"https://pinewoodadventures.com/",
		"https://lakesidearts.org/camps",
		"https://summitclimbers.net/youth",
	}
	var internal []string
	for i := 0; i < 10; i++ {
		internal = append(internal, fmt.Sprintf("https://campdirectory.example/listing/%d", i))
	}

	parent := pendingRequest("parent-1", "https://campdirectory.example/")
	h := newHarness(parent)
	h.explorer.result = &Exploration{
		IsDirectory:   true,
		ExternalLinks: external,
		InternalLinks: internal,
	}

	processed, err := h.svc.ProcessNext(context.Background())
	require.NoError(t, err)
	require.True(t, processed)

	// 5 external survive the social-media filter, plus 10 internal.
	assert.Len(t, h.requests.created, 13)
	assert.Equal(t, domain.RequestStatusCompleted, parent.Status)
	assert.Nil(t, parent.GeneratedCode)
	assert.Contains(t, parent.Notes, "13 child requests")

	require.Len(t, h.alertLog.alerts, 1)
	assert.Equal(t, domain.AlertNewSourcesPending, h.alertLog.alerts[0].Type)

	for _, child := range h.requests.created {
		require.NotNil(t, child.ParentID)
		assert.Equal(t, "parent-1", *child.ParentID)
		assert.Equal(t, "austin", child.Market)
		assert.Equal(t, domain.RequestStatusPending, child.Status)
	}
}

func TestDirectoryExpansionSkipsExistingURLs(t *testing.T) {
	parent := pendingRequest("parent-1", "https://campdirectory.example/")
	existing := pendingRequest("dup-1", "https://cedarridgecamps.com")
	existing.Status = domain.RequestStatusCompleted

	h := newHarness(parent, existing)
	h.explorer.result = &Exploration{
		IsDirectory: true,
		ExternalLinks: []string{
			// Trailing slash and tracking params canonicalize away, so
			// this still collides with the existing request.
			"https://cedarridgecamps.com/?utm_source=directory",
			"https://riverbendcamp.org/",
		},
	}

	_, err := h.svc.ProcessNext(context.Background())
	require.NoError(t, err)

	require.Len(t, h.requests.created, 1)
	assert.Equal(t, "https://riverbendcamp.org", h.requests.created[0].SourceURL)
}

func TestGenerateTestDeploySuccess(t *testing.T) {
	req := pendingRequest("req-1", "https://cedarridgecamps.com/camps")
	h := newHarness(req)
	h.extractor = func(_ context.Context, _ string, spec extraction.Spec, _ extraction.Hints) (*extraction.Result, error) {
		require.Equal(t, "extract()", spec.ScriptCode)
		return &extraction.Result{
			Sessions: []domain.ExtractedSession{
				{Name: "Forest Explorers", StartDate: time.Date(2026, 7, 6, 0, 0, 0, 0, time.UTC)},
			},
		}, nil
	}

	_, err := h.svc.ProcessNext(context.Background())
	require.NoError(t, err)

	assert.Equal(t, domain.RequestStatusCompleted, req.Status)
	assert.Equal(t, 1, req.CodeVersion)
	require.NotNil(t, req.SourceID)

	// Organization and source were created from the URL domain, the code
	// attached, and a job queued through the idempotent path.
	source, getErr := h.sources.GetByID(context.Background(), *req.SourceID)
	require.NoError(t, getErr)
	assert.True(t, source.IsActive)
	require.NotNil(t, source.ScriptCode)
	assert.Equal(t, "extract()", *source.ScriptCode)
	assert.NotNil(t, source.OrganizationID)
	assert.Equal(t, []string{*req.SourceID}, h.jobs.created)

	org, orgErr := h.orgs.GetByDomain(context.Background(), "cedarridgecamps.com")
	require.NoError(t, orgErr)
	assert.Equal(t, "austin", org.Market)
}

func TestTestErrorRetriesWithSynthesizedFeedback(t *testing.T) {
	req := pendingRequest("req-1", "https://cedarridgecamps.com/")
	h := newHarness(req)
	h.extractor = func(_ context.Context, _ string, _ extraction.Spec, _ extraction.Hints) (*extraction.Result, error) {
		return nil, errors.New("selector matched nothing")
	}

	_, err := h.svc.ProcessNext(context.Background())
	require.NoError(t, err)

	assert.Equal(t, domain.RequestStatusPending, req.Status)
	assert.Equal(t, 1, req.TestRetryCount)
	assert.Nil(t, req.ClaimedBy)
	require.Len(t, req.Feedback, 1)
	assert.Equal(t, domain.FeedbackSourceAutoTest, req.Feedback[0].Source)
	assert.Contains(t, req.Feedback[0].Text, "selector matched nothing")
}

func TestExplorationFailurePassesThroughTesting(t *testing.T) {
	req := pendingRequest("req-1", "https://cedarridgecamps.com/")
	h := newHarness(req)
	h.explorer.err = errors.New("connection refused")

	_, err := h.svc.ProcessNext(context.Background())
	require.NoError(t, err)

	assert.Equal(t, domain.RequestStatusPending, req.Status)
	assert.Equal(t, 1, req.TestRetryCount)
	require.Len(t, req.Feedback, 1)
	assert.Contains(t, req.Feedback[0].Text, "exploration failed")

	// The retry counter advances through the same testing pass as a real
	// test run, never straight out of in_progress.
	assert.Equal(t,
		[]string{domain.RequestStatusTesting, domain.RequestStatusPending},
		h.requests.statuses,
	)
}

func TestGenerationFailurePassesThroughTesting(t *testing.T) {
	req := pendingRequest("req-1", "https://cedarridgecamps.com/")
	h := newHarness(req)
	h.generator.result = nil
	h.generator.err = errors.New("model unavailable")

	_, err := h.svc.ProcessNext(context.Background())
	require.NoError(t, err)

	assert.Equal(t, domain.RequestStatusPending, req.Status)
	assert.Equal(t, 1, req.TestRetryCount)
	require.Len(t, req.Feedback, 1)
	assert.Contains(t, req.Feedback[0].Text, "generation failed")
	assert.Contains(t, h.requests.statuses, domain.RequestStatusTesting)
}

func TestRetryCapTerminatesInFailed(t *testing.T) {
	req := pendingRequest("req-1", "https://cedarridgecamps.com/")
	req.TestRetryCount = domain.DefaultMaxTestRetries
	h := newHarness(req)
	h.extractor = func(_ context.Context, _ string, _ extraction.Spec, _ extraction.Hints) (*extraction.Result, error) {
		return nil, errors.New("still broken")
	}

	_, err := h.svc.ProcessNext(context.Background())
	require.NoError(t, err)

	assert.Equal(t, domain.RequestStatusFailed, req.Status)
	assert.LessOrEqual(t, req.TestRetryCount, req.MaxTestRetries)
}

func TestZeroResultsRetries(t *testing.T) {
	req := pendingRequest("req-1", "https://cedarridgecamps.com/")
	h := newHarness(req)
	// Default extractor returns zero sessions, not annotated as expected.

	_, err := h.svc.ProcessNext(context.Background())
	require.NoError(t, err)

	assert.Equal(t, domain.RequestStatusPending, req.Status)
	assert.Equal(t, 1, req.TestRetryCount)
	require.Len(t, req.Feedback, 1)
	assert.Contains(t, req.Feedback[0].Text, "no sessions")
}

func TestExpectedEmptyCompletesWithoutDeploy(t *testing.T) {
	req := pendingRequest("req-1", "https://cedarridgecamps.com/")
	h := newHarness(req)
	h.extractor = func(_ context.Context, _ string, _ extraction.Spec, _ extraction.Hints) (*extraction.Result, error) {
		return &extraction.Result{ExpectedEmpty: true}, nil
	}

	_, err := h.svc.ProcessNext(context.Background())
	require.NoError(t, err)

	assert.Equal(t, domain.RequestStatusCompleted, req.Status)
	assert.Nil(t, req.SourceID)
	assert.Empty(t, h.sources.deployed)
	assert.Empty(t, h.jobs.created)
}

func TestGeneratorProducingNothingParksForFeedback(t *testing.T) {
	req := pendingRequest("req-1", "https://cedarridgecamps.com/")
	h := newHarness(req)
	h.generator.result = &codegen.Result{}

	_, err := h.svc.ProcessNext(context.Background())
	require.NoError(t, err)

	assert.Equal(t, domain.RequestStatusNeedsFeedback, req.Status)
	assert.Nil(t, req.GeneratedCode)
}

func TestSubmitFeedbackBypassesRetryCap(t *testing.T) {
	req := pendingRequest("req-1", "https://cedarridgecamps.com/")
	req.Status = domain.RequestStatusFailed
	req.TestRetryCount = domain.DefaultMaxTestRetries
	h := newHarness(req)

	err := h.svc.SubmitFeedback(context.Background(), "req-1", "sam", "the sessions live in an iframe")
	require.NoError(t, err)

	assert.Equal(t, domain.RequestStatusPending, req.Status)
	require.Len(t, req.Feedback, 1)
	assert.Equal(t, domain.FeedbackSourceHuman, req.Feedback[0].Source)
	assert.Equal(t, "sam", req.Feedback[0].Author)
}

func TestForceResetClearsRetryBudget(t *testing.T) {
	code := "broken()"
	claimant := "worker-9"
	now := time.Now()

	req := pendingRequest("req-1", "https://cedarridgecamps.com/")
	req.Status = domain.RequestStatusInProgress
	req.ClaimedBy = &claimant
	req.ClaimedAt = &now
	req.TestRetryCount = 2
	req.GeneratedCode = &code
	req.Feedback = domain.FeedbackHistory{{Text: "old"}}
	h := newHarness(req)

	require.NoError(t, h.svc.ForceReset(context.Background(), "req-1", false))
	assert.Equal(t, domain.RequestStatusPending, req.Status)
	assert.Zero(t, req.TestRetryCount)
	assert.Nil(t, req.ClaimedBy)
	assert.NotNil(t, req.GeneratedCode, "code survives a plain reset")

	require.NoError(t, h.svc.ForceReset(context.Background(), "req-1", true))
	assert.Nil(t, req.GeneratedCode)
	assert.Empty(t, req.Feedback)
}

func TestExplorationPersistedOncePerRequest(t *testing.T) {
	req := pendingRequest("req-1", "https://cedarridgecamps.com/")
	h := newHarness(req)
	h.extractor = func(_ context.Context, _ string, _ extraction.Spec, _ extraction.Hints) (*extraction.Result, error) {
		return nil, errors.New("fail to trigger a retry")
	}

	_, err := h.svc.ProcessNext(context.Background())
	require.NoError(t, err)
	assert.Equal(t, 1, h.explorer.calls)
	assert.NotEmpty(t, req.Exploration)

	// The retry attempt reuses the persisted exploration.
	_, err = h.svc.ProcessNext(context.Background())
	require.NoError(t, err)
	assert.Equal(t, 1, h.explorer.calls)
}

func TestReconcileDeployments(t *testing.T) {
	code := "extract()"
	req := pendingRequest("req-1", "https://cedarridgecamps.com/camps")
	req.Status = domain.RequestStatusCompleted
	req.GeneratedCode = &code

	h := newHarness(req)
	h.requests.stranded = []*domain.DevelopmentRequest{req}

	repaired, err := h.svc.ReconcileDeployments(context.Background(), 10)
	require.NoError(t, err)
	assert.Equal(t, 1, repaired)

	require.NotNil(t, req.SourceID)
	assert.Equal(t, []string{*req.SourceID}, h.jobs.created)
	assert.Len(t, h.sources.deployed, 1)
}

package services

import (
	"errors"
	"sync"
	"testing"

	"github.com/ahmetcoskunkizilkaya/moderation-backend/internal/collab"
	"github.com/ahmetcoskunkizilkaya/moderation-backend/internal/dto"
	"github.com/ahmetcoskunkizilkaya/moderation-backend/internal/models"
	"github.com/ahmetcoskunkizilkaya/moderation-backend/internal/store"
	"github.com/google/uuid"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

const testApp = "posthub"

type fakeRegistry struct {
	mu          sync.Mutex
	hidden      map[string]bool
	banned      []string
	hideCalls   int
	unhideCalls int
	banCalls    int
	failHide    bool
	failUnhide  bool
	flagCount   int
}

func newFakeRegistry() *fakeRegistry {
	return &fakeRegistry{hidden: make(map[string]bool)}
}

func (f *fakeRegistry) Hide(appID string, ref models.ContentRef) error {
	f.mu.Lock()
	defer f.mu.Unlock()
	f.hideCalls++
	if f.failHide {
		return collab.ErrUnavailable
	}
	f.hidden[ref.Key()] = true
	return nil
}

func (f *fakeRegistry) Unhide(appID string, ref models.ContentRef) error {
	f.mu.Lock()
	defer f.mu.Unlock()
	f.unhideCalls++
	if f.failUnhide {
		return collab.ErrUnavailable
	}
	f.hidden[ref.Key()] = false
	return nil
}

func (f *fakeRegistry) BanUser(appID string, userID string) error {
	f.mu.Lock()
	defer f.mu.Unlock()
	f.banCalls++
	f.banned = append(f.banned, userID)
	return nil
}

func (f *fakeRegistry) GetFlagCount(appID string, ref models.ContentRef) (int, error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	return f.flagCount, nil
}

type fakeOracle struct {
	mu       sync.Mutex
	severity models.Severity
	err      error
	calls    int
}

func (f *fakeOracle) Score(text string, reason models.ReasonCode) (models.Severity, error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	f.calls++
	if f.err != nil {
		return "", f.err
	}
	return f.severity, nil
}

type fakeSink struct {
	mu     sync.Mutex
	events []collab.Event
}

func (f *fakeSink) Emit(event collab.Event) {
	f.mu.Lock()
	defer f.mu.Unlock()
	f.events = append(f.events, event)
}

func (f *fakeSink) kinds() []models.AuditAction {
	f.mu.Lock()
	defer f.mu.Unlock()
	out := make([]models.AuditAction, len(f.events))
	for i, e := range f.events {
		out[i] = e.Kind
	}
	return out
}

type testEnv struct {
	engine   *ModerationEngine
	store    *store.MemoryStore
	registry *fakeRegistry
	oracle   *fakeOracle
	sink     *fakeSink
}

func newTestEnv() *testEnv {
	st := store.NewMemoryStore()
	registry := newFakeRegistry()
	oracle := &fakeOracle{severity: models.SeverityLow}
	sink := &fakeSink{}
	return &testEnv{
		engine:   NewModerationEngine(st, registry, oracle, sink),
		store:    st,
		registry: registry,
		oracle:   oracle,
		sink:     sink,
	}
}

func (env *testEnv) setPolicy(t *testing.T, threshold int, escalate models.Severity) {
	t.Helper()
	_, err := env.engine.SetPolicy(testApp, uuid.New(), &dto.PolicyRequest{
		AutoHideThreshold:     threshold,
		AutoEscalateSeverity:  string(escalate),
		SpamDetectionEnabled:  true,
		ToxicityFilterEnabled: true,
	})
	require.NoError(t, err)
}

func spamReq(contentID string) *dto.FileReportRequest {
	return &dto.FileReportRequest{
		ContentType: "post",
		ContentID:   contentID,
		ReasonCode:  "spam",
		Description: "looks like spam",
	}
}

func TestFileReportValidation(t *testing.T) {
	env := newTestEnv()

	_, _, err := env.engine.FileReport(testApp, uuid.New(), &dto.FileReportRequest{
		ContentType: "video", ContentID: "v1", ReasonCode: "spam",
	})
	assert.ErrorContains(t, err, "content_type")

	_, _, err = env.engine.FileReport(testApp, uuid.New(), &dto.FileReportRequest{
		ContentType: "post", ContentID: "p1", ReasonCode: "bogus",
	})
	assert.ErrorContains(t, err, "reason_code")

	_, _, err = env.engine.FileReport(testApp, uuid.New(), &dto.FileReportRequest{
		ContentType: "post", ContentID: "", ReasonCode: "spam",
	})
	assert.ErrorContains(t, err, "content_id")

	long := make([]byte, models.MaxDescriptionLen+1)
	for i := range long {
		long[i] = 'a'
	}
	_, _, err = env.engine.FileReport(testApp, uuid.New(), &dto.FileReportRequest{
		ContentType: "post", ContentID: "p1", ReasonCode: "spam", Description: string(long),
	})
	assert.ErrorContains(t, err, "description")
}

func TestFileReportCoalescesDuplicateReporter(t *testing.T) {
	env := newTestEnv()
	reporter := uuid.New()

	first, coalesced, err := env.engine.FileReport(testApp, reporter, spamReq("post-1"))
	require.NoError(t, err)
	assert.False(t, coalesced)
	assert.Equal(t, 1, first.ReporterCount)
	assert.Equal(t, models.StatusPending, first.Status)

	second, coalesced, err := env.engine.FileReport(testApp, reporter, spamReq("post-1"))
	require.NoError(t, err)
	assert.True(t, coalesced)
	assert.Equal(t, first.ID, second.ID)
	assert.Equal(t, 2, second.ReporterCount)

	trail, err := env.engine.GetAuditTrail(testApp, first.ID)
	require.NoError(t, err)
	require.Len(t, trail, 2)
	assert.Equal(t, models.AuditFiled, trail[0].Action)
	assert.Equal(t, models.AuditAggregated, trail[1].Action)
}

func TestRepeatedFilingKeepsSingleReport(t *testing.T) {
	env := newTestEnv()
	reporter := uuid.New()

	var reportID uuid.UUID
	for i := 0; i < 5; i++ {
		r, _, err := env.engine.FileReport(testApp, reporter, spamReq("post-9"))
		require.NoError(t, err)
		reportID = r.ID
	}

	report, err := env.engine.GetReport(testApp, reportID)
	require.NoError(t, err)
	assert.Equal(t, 5, report.ReporterCount)

	reports, total, err := env.engine.ListReports(testApp, store.ReportFilter{Limit: 50})
	require.NoError(t, err)
	assert.EqualValues(t, 1, total)
	assert.Len(t, reports, 1)
}

func TestAutoHideAtThreshold(t *testing.T) {
	env := newTestEnv()

	// default policy: threshold 3, escalate at critical
	var ids []uuid.UUID
	for i := 0; i < 3; i++ {
		r, _, err := env.engine.FileReport(testApp, uuid.New(), spamReq("post-42"))
		require.NoError(t, err)
		ids = append(ids, r.ID)
	}

	ref := models.ContentRef{Type: models.ContentTypePost, ID: "post-42"}
	assert.True(t, env.registry.hidden[ref.Key()])
	assert.Equal(t, 1, env.registry.hideCalls)

	for _, id := range ids {
		r, err := env.engine.GetReport(testApp, id)
		require.NoError(t, err)
		assert.Equal(t, models.StatusReviewing, r.Status)
	}

	// a fourth reporter re-triggers evaluation but hide is idempotent
	_, _, err := env.engine.FileReport(testApp, uuid.New(), spamReq("post-42"))
	require.NoError(t, err)
	assert.Equal(t, 1, env.registry.hideCalls)

	assert.Contains(t, env.sink.kinds(), models.AuditAutoHidden)
}

func TestBelowThresholdStaysPending(t *testing.T) {
	env := newTestEnv()

	r, _, err := env.engine.FileReport(testApp, uuid.New(), spamReq("post-7"))
	require.NoError(t, err)
	assert.Equal(t, models.StatusPending, r.Status)
	assert.Equal(t, 0, env.registry.hideCalls)
}

func TestCriticalSeverityEscalatesSingleReport(t *testing.T) {
	env := newTestEnv()
	env.oracle.severity = models.SeverityCritical

	r, _, err := env.engine.FileReport(testApp, uuid.New(), &dto.FileReportRequest{
		ContentType: "post",
		ContentID:   "post-13",
		ReasonCode:  "hate_speech",
		Description: "slur-laden rant",
	})
	require.NoError(t, err)

	assert.Equal(t, models.SeverityCritical, r.Severity)
	assert.Equal(t, models.StatusReviewing, r.Status)
	// severity escalation triggers review, not suppression
	assert.Equal(t, 0, env.registry.hideCalls)

	trail, err := env.engine.GetAuditTrail(testApp, r.ID)
	require.NoError(t, err)
	require.Len(t, trail, 2)
	assert.Equal(t, models.AuditFiled, trail[0].Action)
	assert.Equal(t, models.AuditEscalated, trail[1].Action)
	assert.Equal(t, models.SystemActor, trail[1].ActorID)
}

func TestSeverityIsMaxOfBaseAndOracle(t *testing.T) {
	env := newTestEnv()
	env.oracle.severity = models.SeverityLow

	// hate_speech base weight is high; a low oracle score must not dilute it
	r, _, err := env.engine.FileReport(testApp, uuid.New(), &dto.FileReportRequest{
		ContentType: "comment", ContentID: "c-1", ReasonCode: "hate_speech",
	})
	require.NoError(t, err)
	assert.Equal(t, models.SeverityHigh, r.Severity)
}

func TestOracleFailureFallsBackToBaseSeverity(t *testing.T) {
	env := newTestEnv()
	env.oracle.err = collab.ErrUnavailable

	r, _, err := env.engine.FileReport(testApp, uuid.New(), spamReq("post-8"))
	require.NoError(t, err)
	assert.Equal(t, models.SeverityLow, r.Severity)
	assert.Equal(t, models.StatusPending, r.Status)
}

func TestSpamToggleGatesOracle(t *testing.T) {
	env := newTestEnv()
	_, err := env.engine.SetPolicy(testApp, uuid.New(), &dto.PolicyRequest{
		AutoHideThreshold:     3,
		AutoEscalateSeverity:  string(models.SeverityCritical),
		SpamDetectionEnabled:  false,
		ToxicityFilterEnabled: true,
	})
	require.NoError(t, err)

	_, _, err = env.engine.FileReport(testApp, uuid.New(), spamReq("post-11"))
	require.NoError(t, err)
	assert.Equal(t, 0, env.oracle.calls)

	_, _, err = env.engine.FileReport(testApp, uuid.New(), &dto.FileReportRequest{
		ContentType: "post", ContentID: "post-11", ReasonCode: "harassment",
	})
	require.NoError(t, err)
	assert.Equal(t, 1, env.oracle.calls)
}

func TestStartReview(t *testing.T) {
	env := newTestEnv()
	reviewer := uuid.New()

	r, _, err := env.engine.FileReport(testApp, uuid.New(), spamReq("post-2"))
	require.NoError(t, err)

	reviewed, err := env.engine.StartReview(testApp, r.ID, reviewer)
	require.NoError(t, err)
	assert.Equal(t, models.StatusReviewing, reviewed.Status)

	// idempotent second call
	again, err := env.engine.StartReview(testApp, r.ID, reviewer)
	require.NoError(t, err)
	assert.Equal(t, models.StatusReviewing, again.Status)

	trail, err := env.engine.GetAuditTrail(testApp, r.ID)
	require.NoError(t, err)
	assert.Len(t, trail, 2) // filed + review_started, no event for the no-op

	_, err = env.engine.Resolve(testApp, r.ID, reviewer, "content removed")
	require.NoError(t, err)
	_, err = env.engine.StartReview(testApp, r.ID, reviewer)
	assert.ErrorIs(t, err, store.ErrAlreadyTerminal)
}

func TestResolveSetsTerminalFieldsAndHides(t *testing.T) {
	env := newTestEnv()
	reviewer := uuid.New()

	r, _, err := env.engine.FileReport(testApp, uuid.New(), spamReq("post-3"))
	require.NoError(t, err)

	resolved, err := env.engine.Resolve(testApp, r.ID, reviewer, "content removed")
	require.NoError(t, err)
	assert.Equal(t, models.StatusResolved, resolved.Status)
	require.NotNil(t, resolved.ResolvedAt)
	require.NotNil(t, resolved.ResolvedBy)
	assert.Equal(t, reviewer.String(), *resolved.ResolvedBy)
	assert.Equal(t, "content removed", resolved.ActionTaken)
	assert.Equal(t, 1, env.registry.hideCalls)

	// terminal states are immutable, and the caller is told so
	_, err = env.engine.Resolve(testApp, r.ID, reviewer, "again")
	assert.ErrorIs(t, err, store.ErrAlreadyTerminal)
	_, err = env.engine.Dismiss(testApp, r.ID, reviewer)
	assert.ErrorIs(t, err, store.ErrAlreadyTerminal)
}

func TestResolveRequiresAction(t *testing.T) {
	env := newTestEnv()
	r, _, err := env.engine.FileReport(testApp, uuid.New(), spamReq("post-4"))
	require.NoError(t, err)

	_, err = env.engine.Resolve(testApp, r.ID, uuid.New(), "  ")
	assert.ErrorContains(t, err, "action_taken")
}

func TestResolveOneOfManyLeavesSiblingsReviewing(t *testing.T) {
	env := newTestEnv()

	var ids []uuid.UUID
	for i := 0; i < 3; i++ {
		r, _, err := env.engine.FileReport(testApp, uuid.New(), spamReq("post-42"))
		require.NoError(t, err)
		ids = append(ids, r.ID)
	}

	_, err := env.engine.Resolve(testApp, ids[0], uuid.New(), "content removed")
	require.NoError(t, err)

	for _, id := range ids[1:] {
		r, err := env.engine.GetReport(testApp, id)
		require.NoError(t, err)
		assert.Equal(t, models.StatusReviewing, r.Status)
	}
}

func TestResolveAccountReportBansUser(t *testing.T) {
	env := newTestEnv()

	r, _, err := env.engine.FileReport(testApp, uuid.New(), &dto.FileReportRequest{
		ContentType: "account", ContentID: "user-666", ReasonCode: "harassment",
	})
	require.NoError(t, err)

	_, err = env.engine.Resolve(testApp, r.ID, uuid.New(), ActionUserBanned)
	require.NoError(t, err)
	assert.Equal(t, []string{"user-666"}, env.registry.banned)
}

func TestDismissLiftsProvisionalHide(t *testing.T) {
	env := newTestEnv()
	env.setPolicy(t, 1, models.SeverityCritical)

	r, _, err := env.engine.FileReport(testApp, uuid.New(), spamReq("post-5"))
	require.NoError(t, err)

	ref := models.ContentRef{Type: models.ContentTypePost, ID: "post-5"}
	require.True(t, env.registry.hidden[ref.Key()])

	dismissed, err := env.engine.Dismiss(testApp, r.ID, uuid.New())
	require.NoError(t, err)
	assert.Equal(t, models.StatusDismissed, dismissed.Status)
	assert.Equal(t, 1, env.registry.unhideCalls)
	assert.False(t, env.registry.hidden[ref.Key()])
	assert.Contains(t, env.sink.kinds(), models.AuditAutoUnhidden)
}

func TestDismissKeepsHideWhileTriggerHolds(t *testing.T) {
	env := newTestEnv()
	env.setPolicy(t, 2, models.SeverityCritical)

	var ids []uuid.UUID
	for i := 0; i < 3; i++ {
		r, _, err := env.engine.FileReport(testApp, uuid.New(), spamReq("post-6"))
		require.NoError(t, err)
		ids = append(ids, r.ID)
	}
	require.Equal(t, 1, env.registry.hideCalls)

	// 2 of 3 remain, threshold 2 still met
	_, err := env.engine.Dismiss(testApp, ids[0], uuid.New())
	require.NoError(t, err)
	assert.Equal(t, 0, env.registry.unhideCalls)

	// down to 1, trigger gone
	_, err = env.engine.Dismiss(testApp, ids[1], uuid.New())
	require.NoError(t, err)
	assert.Equal(t, 1, env.registry.unhideCalls)
}

func TestDismissNeverLiftsResolvedSuppression(t *testing.T) {
	env := newTestEnv()
	env.setPolicy(t, 2, models.SeverityCritical)

	a, _, err := env.engine.FileReport(testApp, uuid.New(), spamReq("post-10"))
	require.NoError(t, err)
	b, _, err := env.engine.FileReport(testApp, uuid.New(), spamReq("post-10"))
	require.NoError(t, err)

	// reviewer confirms the complaint; the hide is now final
	_, err = env.engine.Resolve(testApp, a.ID, uuid.New(), "content removed")
	require.NoError(t, err)

	_, err = env.engine.Dismiss(testApp, b.ID, uuid.New())
	require.NoError(t, err)
	assert.Equal(t, 0, env.registry.unhideCalls)

	ref := models.ContentRef{Type: models.ContentTypePost, ID: "post-10"}
	assert.True(t, env.registry.hidden[ref.Key()])
}

func TestHideFailureDoesNotBlockTransitions(t *testing.T) {
	env := newTestEnv()
	env.registry.failHide = true
	env.setPolicy(t, 1, models.SeverityCritical)

	r, _, err := env.engine.FileReport(testApp, uuid.New(), spamReq("post-14"))
	require.NoError(t, err)

	// escalation committed despite the failed hide
	fresh, err := env.engine.GetReport(testApp, r.ID)
	require.NoError(t, err)
	assert.Equal(t, models.StatusReviewing, fresh.Status)
}

func TestConcurrentTerminalCallsExactlyOneWins(t *testing.T) {
	env := newTestEnv()
	reviewerA, reviewerB := uuid.New(), uuid.New()

	r, _, err := env.engine.FileReport(testApp, uuid.New(), spamReq("post-15"))
	require.NoError(t, err)

	var wg sync.WaitGroup
	errs := make([]error, 2)
	wg.Add(2)
	go func() {
		defer wg.Done()
		_, errs[0] = env.engine.Resolve(testApp, r.ID, reviewerA, "content removed")
	}()
	go func() {
		defer wg.Done()
		_, errs[1] = env.engine.Dismiss(testApp, r.ID, reviewerB)
	}()
	wg.Wait()

	var failures int
	for _, err := range errs {
		if err != nil {
			failures++
			raceDetected := errors.Is(err, store.ErrAlreadyTerminal) || errors.Is(err, store.ErrConcurrentModification)
			assert.True(t, raceDetected, "unexpected error: %v", err)
		}
	}
	assert.Equal(t, 1, failures)

	fresh, err := env.engine.GetReport(testApp, r.ID)
	require.NoError(t, err)
	assert.True(t, fresh.Terminal())
}

func TestConcurrentReportersSameContent(t *testing.T) {
	env := newTestEnv()

	var wg sync.WaitGroup
	for i := 0; i < 10; i++ {
		wg.Add(1)
		go func() {
			defer wg.Done()
			_, _, err := env.engine.FileReport(testApp, uuid.New(), spamReq("post-16"))
			assert.NoError(t, err)
		}()
	}
	wg.Wait()

	// threshold 3 crossed exactly once
	assert.Equal(t, 1, env.registry.hideCalls)

	agg, err := env.engine.GetAggregate(testApp, models.ContentRef{Type: models.ContentTypePost, ID: "post-16"})
	require.NoError(t, err)
	assert.Equal(t, 10, agg.ReporterCount)
	assert.True(t, agg.Hidden)
}

func TestEveryTransitionHasExactlyOneAuditEvent(t *testing.T) {
	env := newTestEnv()
	reviewer := uuid.New()

	r, _, err := env.engine.FileReport(testApp, uuid.New(), spamReq("post-17"))
	require.NoError(t, err)

	_, err = env.engine.StartReview(testApp, r.ID, reviewer)
	require.NoError(t, err)
	_, err = env.engine.Resolve(testApp, r.ID, reviewer, "warned user")
	require.NoError(t, err)

	trail, err := env.engine.GetAuditTrail(testApp, r.ID)
	require.NoError(t, err)
	require.Len(t, trail, 3)
	assert.Equal(t, models.AuditFiled, trail[0].Action)
	assert.Equal(t, models.AuditReviewStarted, trail[1].Action)
	assert.Equal(t, models.AuditResolved, trail[2].Action)
	assert.Equal(t, models.StatusReviewing, trail[2].BeforeStatus)
	assert.Equal(t, models.StatusResolved, trail[2].AfterStatus)
	assert.True(t, models.VerifyChain(trail))
}

func TestPolicyChangeReevaluatesOpenAggregates(t *testing.T) {
	env := newTestEnv()

	// two reporters, default threshold 3: nothing hidden yet
	a, _, err := env.engine.FileReport(testApp, uuid.New(), spamReq("post-18"))
	require.NoError(t, err)
	_, _, err = env.engine.FileReport(testApp, uuid.New(), spamReq("post-18"))
	require.NoError(t, err)
	require.Equal(t, 0, env.registry.hideCalls)

	env.setPolicy(t, 2, models.SeverityCritical)

	assert.Equal(t, 1, env.registry.hideCalls)
	fresh, err := env.engine.GetReport(testApp, a.ID)
	require.NoError(t, err)
	assert.Equal(t, models.StatusReviewing, fresh.Status)
}

func TestPolicyDoesNotTouchTerminalReports(t *testing.T) {
	env := newTestEnv()
	reviewer := uuid.New()

	r, _, err := env.engine.FileReport(testApp, uuid.New(), spamReq("post-19"))
	require.NoError(t, err)
	_, err = env.engine.Dismiss(testApp, r.ID, reviewer)
	require.NoError(t, err)

	env.setPolicy(t, 1, models.SeverityLow)

	fresh, err := env.engine.GetReport(testApp, r.ID)
	require.NoError(t, err)
	assert.Equal(t, models.StatusDismissed, fresh.Status)
}

func TestPolicyValidationAndVersioning(t *testing.T) {
	env := newTestEnv()
	admin := uuid.New()

	_, err := env.engine.SetPolicy(testApp, admin, &dto.PolicyRequest{
		AutoHideThreshold: 0, AutoEscalateSeverity: "critical",
	})
	assert.ErrorIs(t, err, models.ErrThresholdTooLow)

	_, err = env.engine.SetPolicy(testApp, admin, &dto.PolicyRequest{
		AutoHideThreshold: 5, AutoEscalateSeverity: "apocalyptic",
	})
	assert.ErrorIs(t, err, models.ErrBadSeverity)

	p1, err := env.engine.SetPolicy(testApp, admin, &dto.PolicyRequest{
		AutoHideThreshold: 5, AutoEscalateSeverity: "high",
	})
	require.NoError(t, err)
	assert.Equal(t, 1, p1.Version)

	p2, err := env.engine.SetPolicy(testApp, admin, &dto.PolicyRequest{
		AutoHideThreshold: 4, AutoEscalateSeverity: "high",
	})
	require.NoError(t, err)
	assert.Equal(t, 2, p2.Version)

	current, err := env.engine.GetPolicy(testApp)
	require.NoError(t, err)
	assert.Equal(t, 4, current.AutoHideThreshold)
	assert.Equal(t, admin.String(), current.UpdatedBy)
}

func TestTenantsAreIsolated(t *testing.T) {
	env := newTestEnv()

	r, _, err := env.engine.FileReport(testApp, uuid.New(), spamReq("post-20"))
	require.NoError(t, err)

	_, err = env.engine.GetReport("qna", r.ID)
	assert.ErrorIs(t, err, store.ErrReportNotFound)

	_, total, err := env.engine.ListReports("qna", store.ReportFilter{Limit: 10})
	require.NoError(t, err)
	assert.EqualValues(t, 0, total)
}

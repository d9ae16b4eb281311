package pipeline

import (
	"context"
	"errors"
	"net/http"
	"net/http/httptest"
	"sync"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"zoho-crm-pulse/internal/domain"
	"zoho-crm-pulse/internal/service/formatter"
	"zoho-crm-pulse/internal/service/insight"
	"zoho-crm-pulse/internal/service/metrics"
	"zoho-crm-pulse/internal/snapshot"
)

type fakeCursors struct {
	baseline time.Time
	err      error
}

func (f *fakeCursors) ResetAll(_ context.Context, baseline time.Time) error {
	f.baseline = baseline
	return f.err
}

type fakeSyncer struct {
	leads, deals       int
	leadsErr, dealsErr error
	panicOnLeads       bool
}

func (f *fakeSyncer) ReconcileLeads(context.Context) (int, error) {
	if f.panicOnLeads {
		panic("nil map")
	}
	return f.leads, f.leadsErr
}

func (f *fakeSyncer) ReconcileDeals(ctx context.Context) (int, error) {
	var authErr *domain.AuthError
	if errors.As(f.leadsErr, &authErr) {
		<-ctx.Done()
		return 0, ctx.Err()
	}
	return f.deals, f.dealsErr
}

type fakeMetrics struct {
	err error
}

func (f *fakeMetrics) Gather(context.Context) (*domain.MetricsBundle, error) {
	if f.err != nil {
		return nil, f.err
	}
	return &domain.MetricsBundle{
		Daily:    domain.DailyMetrics{Date: "2026-03-02", NewLeads: 4, DealsClosed: 1, PipelineValue: 750000},
		Sources:  []domain.SourceCount{{Name: "Website", Value: 4}},
		Funnel:   metrics.BuildFunnel(4, 1, []string{"Closed Won"}),
		Averages: domain.HistoricalAverages{AvgLeads: 2, AvgDeals: 1, AvgPipeline: 500000},
		Summary:  domain.DailyMetricsSummary{NewLeadsToday: 4, DealsClosed: 1},
	}, nil
}

type fakeInsights struct{}

func (fakeInsights) AnalystSummary(context.Context, *domain.InsightPayload) (string, error) {
	return "Primary Driver: ok", nil
}

func (fakeInsights) VizInsight(context.Context, domain.VizPayload) (string, error) {
	return "viz", nil
}

func (fakeInsights) MessagingSummary(context.Context, *domain.InsightPayload) (string, error) {
	return "short", nil
}

type fakeSummaries struct {
	mu        sync.Mutex
	daily     *domain.DailyMetricsSummary
	saved     []*domain.SummaryPayload
	dailyErr  error
	createErr error
}

func (f *fakeSummaries) ReplaceDailySummary(_ context.Context, s *domain.DailyMetricsSummary) error {
	f.mu.Lock()
	defer f.mu.Unlock()
	if f.dailyErr != nil {
		return f.dailyErr
	}
	f.daily = s
	return nil
}

func (f *fakeSummaries) GetDailySummary(context.Context) (*domain.DailyMetricsSummary, error) {
	return f.daily, nil
}

func (f *fakeSummaries) CreateAISummary(_ context.Context, p *domain.SummaryPayload) (*domain.AISummary, error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	if f.createErr != nil {
		return nil, f.createErr
	}
	f.saved = append(f.saved, p)
	return &domain.AISummary{ID: int64(len(f.saved))}, nil
}

func (f *fakeSummaries) LatestAISummary(context.Context) (*domain.AISummary, error) {
	return nil, domain.ErrNotFound
}

type recordingSender struct {
	sent []string
	err  error
}

func (s *recordingSender) Channel() string { return "test" }

func (s *recordingSender) Send(_ context.Context, text string) error {
	s.sent = append(s.sent, text)
	return s.err
}

type fixture struct {
	cursors   *fakeCursors
	syncer    *fakeSyncer
	metrics   *fakeMetrics
	summaries *fakeSummaries
	snapshots *snapshot.Store
	sender    *recordingSender
	insights  InsightGenerator
}

func newFixture(t *testing.T) *fixture {
	t.Helper()
	store, err := snapshot.OpenInMemory()
	require.NoError(t, err)
	t.Cleanup(func() { _ = store.Close() })

	return &fixture{
		cursors:   &fakeCursors{},
		syncer:    &fakeSyncer{leads: 3, deals: 2},
		metrics:   &fakeMetrics{},
		summaries: &fakeSummaries{},
		snapshots: store,
		sender:    &recordingSender{},
		insights:  fakeInsights{},
	}
}

var baseline = time.Date(2026, 2, 17, 0, 0, 0, 0, time.UTC)

func (f *fixture) runner() *Runner {
	return NewRunner(Deps{
		Cursors:   f.cursors,
		Syncer:    f.syncer,
		Metrics:   f.metrics,
		Insights:  f.insights,
		Summaries: f.summaries,
		Snapshots: f.snapshots,
		Sender:    f.sender,
	}, baseline, time.UTC)
}

func TestRunSuccessWithDelivery(t *testing.T) {
	f := newFixture(t)

	res := f.runner().Run(context.Background(), RunOptions{Deliver: true})

	require.NoError(t, res.Err())
	assert.Equal(t, StatusSuccess, res.Status)
	assert.NotEmpty(t, res.RunID)
	assert.Equal(t, 3, res.LeadsSynced)
	assert.Equal(t, 2, res.DealsSynced)
	assert.Equal(t, baseline, f.cursors.baseline)
	assert.True(t, res.Delivered)
	assert.Equal(t, []string{"short"}, f.sender.sent)

	require.Len(t, f.summaries.saved, 1)
	saved := f.summaries.saved[0]
	assert.Equal(t, "Primary Driver: ok", saved.AISummary.Text)
	assert.Equal(t, "viz", saved.VizInsights.Text)
	assert.Equal(t, "₹7.5L", saved.Overview.PipelineValue.Value)
	assert.Equal(t, 4, f.summaries.daily.NewLeadsToday)

	var cached domain.SummaryPayload
	_, err := f.snapshots.Get(snapshot.KeyLatestSummary, &cached)
	require.NoError(t, err)
	assert.Equal(t, "short", cached.WhatsappSummary.Text)
}

func TestRunWithoutDelivery(t *testing.T) {
	f := newFixture(t)

	res := f.runner().Run(context.Background(), RunOptions{})

	assert.Equal(t, StatusSuccess, res.Status)
	assert.False(t, res.Delivered)
	assert.Empty(t, f.sender.sent)
}

func TestRunModuleFailureIsPartial(t *testing.T) {
	f := newFixture(t)
	f.syncer.dealsErr = &domain.UpstreamError{Module: domain.ModuleDeals, Page: 2, StatusCode: 500}

	res := f.runner().Run(context.Background(), RunOptions{Deliver: true})

	assert.Equal(t, StatusPartial, res.Status)
	assert.Equal(t, 3, res.LeadsSynced)
	require.Len(t, res.Errors, 1)
	assert.Contains(t, res.Errors[0], "Deals")

	var upstream *domain.UpstreamError
	assert.ErrorAs(t, res.Err(), &upstream)
	assert.Len(t, f.summaries.saved, 1)
	assert.Len(t, f.sender.sent, 1)
}

func TestRunAuthErrorFails(t *testing.T) {
	f := newFixture(t)
	f.syncer.leadsErr = &domain.AuthError{Reason: "invalid_code"}

	res := f.runner().Run(context.Background(), RunOptions{Deliver: true})

	assert.Equal(t, StatusFailed, res.Status)
	var authErr *domain.AuthError
	assert.ErrorAs(t, res.Err(), &authErr)
	assert.Empty(t, f.summaries.saved)
	assert.Empty(t, f.sender.sent)
}

func TestRunResetFailureFails(t *testing.T) {
	f := newFixture(t)
	f.cursors.err = &domain.StoreError{Op: "reset watermarks", Err: errors.New("down")}

	res := f.runner().Run(context.Background(), RunOptions{})

	assert.Equal(t, StatusFailed, res.Status)
	assert.Zero(t, res.LeadsSynced)
}

func TestRunMetricsFailureFails(t *testing.T) {
	f := newFixture(t)
	f.metrics.err = errors.New("read failed")

	res := f.runner().Run(context.Background(), RunOptions{Deliver: true})

	assert.Equal(t, StatusFailed, res.Status)
	assert.Empty(t, f.sender.sent)
}

func TestRunPersistFailureIsPartialAndStillDelivers(t *testing.T) {
	f := newFixture(t)
	f.summaries.createErr = errors.New("insert failed")
	f.summaries.dailyErr = errors.New("replace failed")

	res := f.runner().Run(context.Background(), RunOptions{Deliver: true})

	assert.Equal(t, StatusPartial, res.Status)
	assert.Len(t, res.Errors, 2)
	assert.Len(t, f.sender.sent, 1)
}

func TestRunDeliveryFailureDoesNotFailRun(t *testing.T) {
	f := newFixture(t)
	f.sender.err = errors.New("twilio down")

	res := f.runner().Run(context.Background(), RunOptions{Deliver: true})

	assert.Equal(t, StatusSuccess, res.Status)
	assert.False(t, res.Delivered)
}

func TestRunRecoversFromPanic(t *testing.T) {
	f := newFixture(t)
	f.syncer.panicOnLeads = true

	var res *Result
	require.NotPanics(t, func() {
		res = f.runner().Run(context.Background(), RunOptions{})
	})
	assert.Equal(t, StatusFailed, res.Status)
	assert.Contains(t, res.Errors[0], "panic")
}

func TestRunInsightTimeoutContinues(t *testing.T) {
	release := make(chan struct{})
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		select {
		case <-release:
		case <-r.Context().Done():
		}
	}))
	defer srv.Close()
	defer close(release)

	short := insight.Limits{Timeout: 30 * time.Millisecond, NumPredict: 10}
	f := newFixture(t)
	f.insights = insight.NewGenerator(srv.URL, "m", formatter.NewFormatter()).
		WithLimits(insight.KindAnalyst, short).
		WithLimits(insight.KindViz, short).
		WithLimits(insight.KindMessaging, short)

	res := f.runner().Run(context.Background(), RunOptions{Deliver: true})

	assert.Equal(t, StatusSuccess, res.Status)
	require.Len(t, f.summaries.saved, 1)
	assert.Equal(t, insight.AnalystFallback, f.summaries.saved[0].AISummary.Text)
	assert.Equal(t, insight.VizFallback, f.summaries.saved[0].VizInsights.Text)
	require.Len(t, f.sender.sent, 1)
	assert.Contains(t, f.sender.sent[0], "• New Leads: 4")
}

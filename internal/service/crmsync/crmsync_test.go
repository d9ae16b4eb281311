package crmsync

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"zoho-crm-pulse/internal/domain"
)

type memoryState struct {
	marks  map[string]time.Time
	getErr error
	setErr error
}

func newMemoryState() *memoryState {
	return &memoryState{marks: map[string]time.Time{}}
}

func (m *memoryState) GetWatermark(_ context.Context, module string) (time.Time, error) {
	if m.getErr != nil {
		return time.Time{}, m.getErr
	}
	t, ok := m.marks[module]
	if !ok {
		return time.Time{}, domain.ErrNotFound
	}
	return t, nil
}

func (m *memoryState) SetWatermark(_ context.Context, module string, t time.Time) error {
	if m.setErr != nil {
		return m.setErr
	}
	if cur, ok := m.marks[module]; !ok || t.After(cur) {
		m.marks[module] = t
	}
	return nil
}

func (m *memoryState) ResetWatermarks(_ context.Context, modules []string, baseline time.Time) error {
	for _, module := range modules {
		m.marks[module] = baseline
	}
	return nil
}

type memoryCRM struct {
	leads     map[string]domain.Lead
	deals     map[string]domain.Deal
	batches   [][]string
	upsertErr error
}

func newMemoryCRM() *memoryCRM {
	return &memoryCRM{leads: map[string]domain.Lead{}, deals: map[string]domain.Deal{}}
}

func (m *memoryCRM) UpsertLeads(_ context.Context, leads []domain.Lead) error {
	if m.upsertErr != nil {
		return m.upsertErr
	}
	ids := make([]string, 0, len(leads))
	seen := map[string]bool{}
	for _, l := range leads {
		if seen[l.LeadID] {
			return fmt.Errorf("ON CONFLICT DO UPDATE command cannot affect row a second time")
		}
		seen[l.LeadID] = true
		m.leads[l.LeadID] = l
		ids = append(ids, l.LeadID)
	}
	m.batches = append(m.batches, ids)
	return nil
}

func (m *memoryCRM) UpsertDeals(_ context.Context, deals []domain.Deal) error {
	if m.upsertErr != nil {
		return m.upsertErr
	}
	for _, d := range deals {
		m.deals[d.DealID] = d
	}
	return nil
}

func (m *memoryCRM) CountLeads(context.Context) (int, error)          { return len(m.leads), nil }
func (m *memoryCRM) CountConvertedLeads(context.Context) (int, error) { return 0, nil }
func (m *memoryCRM) CountLeadsCreated(context.Context, domain.DateRange) (int, error) {
	return 0, nil
}
func (m *memoryCRM) ListLeadSources(context.Context) ([]string, error)  { return nil, nil }
func (m *memoryCRM) ListLeadStatuses(context.Context) ([]string, error) { return nil, nil }
func (m *memoryCRM) ListLeadCreatedTimes(context.Context, time.Time) ([]time.Time, error) {
	return nil, nil
}
func (m *memoryCRM) ListLeads(context.Context, *domain.DateRange) ([]domain.Lead, error) {
	return nil, nil
}
func (m *memoryCRM) ListDeals(context.Context) ([]domain.Deal, error) { return nil, nil }
func (m *memoryCRM) ListDealsCreatedSince(context.Context, time.Time) ([]domain.Deal, error) {
	return nil, nil
}
func (m *memoryCRM) ListDealsTouchedSince(context.Context, *time.Time) ([]domain.Deal, error) {
	return nil, nil
}

type stubFetcher struct {
	records map[string][]json.RawMessage
	err     error
	seen    map[string]time.Time
}

func (f *stubFetcher) FetchModifiedSince(_ context.Context, module string, watermark time.Time) ([]json.RawMessage, error) {
	if f.seen == nil {
		f.seen = map[string]time.Time{}
	}
	f.seen[module] = watermark
	if f.err != nil {
		return nil, f.err
	}
	return f.records[module], nil
}

func raw(s string) json.RawMessage { return json.RawMessage(s) }

func TestGetWatermarkFallback(t *testing.T) {
	store := NewCursorStore(newMemoryState())
	store.now = func() time.Time {
		return time.Date(2026, 3, 2, 10, 15, 30, 999000000, time.FixedZone("IST", 19800))
	}

	got := store.GetWatermark(context.Background(), domain.ModuleLeads)

	assert.Equal(t, time.Date(2026, 3, 1, 4, 45, 30, 0, time.UTC), got)
	assert.Equal(t, time.UTC, got.Location())
	assert.Equal(t, "2026-03-01T04:45:30Z", got.Format(time.RFC3339))
}

func TestGetWatermarkFallbackOnReadError(t *testing.T) {
	state := newMemoryState()
	state.getErr = errors.New("connection refused")
	store := NewCursorStore(state)
	now := time.Date(2026, 3, 2, 0, 0, 0, 0, time.UTC)
	store.now = func() time.Time { return now }

	assert.Equal(t, now.Add(-24*time.Hour), store.GetWatermark(context.Background(), domain.ModuleDeals))
}

func TestResetAll(t *testing.T) {
	state := newMemoryState()
	state.marks[domain.ModuleLeads] = time.Date(2026, 5, 1, 0, 0, 0, 0, time.UTC)
	store := NewCursorStore(state)
	baseline := time.Date(2026, 2, 17, 0, 0, 0, 0, time.UTC)

	require.NoError(t, store.ResetAll(context.Background(), baseline))

	assert.Equal(t, baseline, state.marks[domain.ModuleLeads])
	assert.Equal(t, baseline, state.marks[domain.ModuleDeals])
}

func TestReconcileLeadsDedupesAndAdvancesCursor(t *testing.T) {
	state := newMemoryState()
	state.marks[domain.ModuleLeads] = time.Date(2026, 2, 17, 0, 0, 0, 0, time.UTC)
	crm := newMemoryCRM()
	fetcher := &stubFetcher{records: map[string][]json.RawMessage{
		domain.ModuleLeads: {
			raw(`{"id":"L1","Lead_Status":"New","Lead_Source":"Website","Created_Time":"2026-03-01T09:00:00+05:30","Modified_Time":"2026-03-01T09:00:00+05:30"}`),
			raw(`{"id":"L2","Owner":{"id":"u1","name":"Asha"},"Created_Time":"2026-03-01T10:00:00+05:30","Modified_Time":"2026-03-01T12:00:00+05:30","Is_Converted":true}`),
			raw(`{"id":"L1","Lead_Status":"Contacted","Lead_Source":"Website","Created_Time":"2026-03-01T09:00:00+05:30","Modified_Time":"2026-03-01T11:00:00+05:30"}`),
		},
	}}

	r := NewReconciler(fetcher, NewCursorStore(state), crm)
	n, err := r.ReconcileLeads(context.Background())
	require.NoError(t, err)

	assert.Equal(t, 2, n)
	assert.Equal(t, [][]string{{"L1", "L2"}}, crm.batches)
	assert.Equal(t, "Contacted", crm.leads["L1"].Status)
	assert.Equal(t, domain.UnknownValue, crm.leads["L1"].OwnerName)

	l2 := crm.leads["L2"]
	assert.Equal(t, "Asha", l2.OwnerName)
	assert.Equal(t, domain.UnknownValue, l2.Status)
	assert.Equal(t, domain.UnknownValue, l2.Source)
	assert.True(t, l2.IsConverted)

	assert.Equal(t, time.Date(2026, 3, 1, 6, 30, 0, 0, time.UTC), state.marks[domain.ModuleLeads])
	assert.Equal(t, time.Date(2026, 2, 17, 0, 0, 0, 0, time.UTC), fetcher.seen[domain.ModuleLeads])
}

func TestReconcileEmptyFetchLeavesCursor(t *testing.T) {
	state := newMemoryState()
	mark := time.Date(2026, 2, 20, 0, 0, 0, 0, time.UTC)
	state.marks[domain.ModuleDeals] = mark

	r := NewReconciler(&stubFetcher{}, NewCursorStore(state), newMemoryCRM())
	n, err := r.ReconcileDeals(context.Background())
	require.NoError(t, err)

	assert.Zero(t, n)
	assert.Equal(t, mark, state.marks[domain.ModuleDeals])
}

func TestReconcileStoreFailureLeavesCursor(t *testing.T) {
	state := newMemoryState()
	mark := time.Date(2026, 2, 20, 0, 0, 0, 0, time.UTC)
	state.marks[domain.ModuleLeads] = mark
	crm := newMemoryCRM()
	crm.upsertErr = &domain.StoreError{Op: "upsert leads", Err: errors.New("disk full")}
	fetcher := &stubFetcher{records: map[string][]json.RawMessage{
		domain.ModuleLeads: {raw(`{"id":"L1","Created_Time":"2026-03-01T09:00:00Z","Modified_Time":"2026-03-01T09:00:00Z"}`)},
	}}

	r := NewReconciler(fetcher, NewCursorStore(state), crm)
	_, err := r.ReconcileLeads(context.Background())

	var storeErr *domain.StoreError
	require.ErrorAs(t, err, &storeErr)
	assert.Equal(t, mark, state.marks[domain.ModuleLeads])
}

func TestReconcileUpstreamFailureLeavesCursor(t *testing.T) {
	state := newMemoryState()
	crm := newMemoryCRM()
	fetcher := &stubFetcher{err: &domain.UpstreamError{Module: domain.ModuleDeals, Page: 3, StatusCode: 500}}

	r := NewReconciler(fetcher, NewCursorStore(state), crm)
	_, err := r.ReconcileDeals(context.Background())

	var upstream *domain.UpstreamError
	require.ErrorAs(t, err, &upstream)
	assert.Empty(t, state.marks)
	assert.Empty(t, crm.deals)
}

func TestReconcileDealsMapping(t *testing.T) {
	state := newMemoryState()
	crm := newMemoryCRM()
	fetcher := &stubFetcher{records: map[string][]json.RawMessage{
		domain.ModuleDeals: {
			raw(`{"id":"D1","Deal_Name":"Rooftop","Lead_Name":{"id":"L9","name":"x"},"Stage":"Closed Won","Amount":"250000","Created_Time":"2026-03-01T09:00:00Z","Modified_Time":"2026-03-02T09:00:00Z"}`),
			raw(`{"id":"D2","Stage":"Proposal Shared","Amount":null,"Created_Time":"2026-03-01T09:00:00Z","Modified_Time":"2026-03-01T10:00:00Z"}`),
			raw(`{"id":"D3","Created_Time":"broken","Modified_Time":"2026-03-05T10:00:00Z"}`),
		},
	}}

	r := NewReconciler(fetcher, NewCursorStore(state), crm)
	n, err := r.ReconcileDeals(context.Background())
	require.NoError(t, err)
	assert.Equal(t, 2, n)

	d1 := crm.deals["D1"]
	require.NotNil(t, d1.LeadID)
	assert.Equal(t, "L9", *d1.LeadID)
	assert.Equal(t, 250000.0, d1.Amount)
	require.NotNil(t, d1.ClosedTime)
	assert.Equal(t, d1.ModifiedTime, *d1.ClosedTime)
	assert.Equal(t, domain.UnknownValue, d1.Source)

	d2 := crm.deals["D2"]
	assert.Nil(t, d2.LeadID)
	assert.Nil(t, d2.ClosedTime)
	assert.Zero(t, d2.Amount)

	// Метка считается по всей исходной пачке, включая отброшенные записи
	assert.Equal(t, time.Date(2026, 3, 5, 10, 0, 0, 0, time.UTC), state.marks[domain.ModuleDeals])
}

func TestDedupeKeepsLastValueFirstPosition(t *testing.T) {
	type rec struct{ id, v string }
	got := dedupe([]rec{{"a", "1"}, {"b", "1"}, {"a", "2"}, {"c", "1"}, {"b", "3"}}, func(r rec) string { return r.id })

	assert.Equal(t, []rec{{"a", "2"}, {"b", "3"}, {"c", "1"}}, got)
}

package insight

import (
	"context"
	"encoding/json"
	"net/http"
	"net/http/httptest"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"zoho-crm-pulse/internal/domain"
	"zoho-crm-pulse/internal/service/formatter"
)

func payload() *domain.InsightPayload {
	return &domain.InsightPayload{
		Date:                  "2026-03-02",
		NewLeadsToday:         7,
		NewLeadsChangePercent: -30,
		LeadsBySource:         []domain.SourceLeads{{Source: "Website", Leads: 5}},
		Funnel:                domain.FunnelSummary{Leads: 50, ActiveDeals: 10, Won: 2, ConversionRate: 4},
		Pipeline:              domain.PipelineSummary{TotalValue: 2500000, ChangePercent: 12.5, ClosedWonToday: 1},
		AnomalyFlags:          []string{},
	}
}

func TestAnalystSummaryPassesThroughText(t *testing.T) {
	var got generateRequest
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		assert.Equal(t, "/api/generate", r.URL.Path)
		require.NoError(t, json.NewDecoder(r.Body).Decode(&got))
		_, _ = w.Write([]byte(`{"response":"  Primary Driver: leads are down.  ","done":true}`))
	}))
	defer srv.Close()

	g := NewGenerator(srv.URL+"/", "llama3.2:1b", formatter.NewFormatter())

	text, err := g.AnalystSummary(context.Background(), payload())
	require.NoError(t, err)

	assert.Equal(t, "Primary Driver: leads are down.", text)
	assert.Equal(t, "llama3.2:1b", got.Model)
	assert.False(t, got.Stream)
	assert.Equal(t, 0.1, got.Options.Temperature)
	assert.Equal(t, 480, got.Options.NumPredict)
	assert.Contains(t, got.Prompt, "New Leads Today: 7 (-30% vs 7-day avg)")
	assert.Contains(t, got.Prompt, "Total Pipeline Value: ₹25.0L (12.5% vs 7-day avg)")
	assert.Contains(t, got.Prompt, "Lead-to-Deal Conversion: 20.0%")
	assert.Contains(t, got.Prompt, "Source Distribution: Website: 5")
}

func TestAnalystSummaryTimeoutUsesFallback(t *testing.T) {
	release := make(chan struct{})
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		select {
		case <-release:
		case <-r.Context().Done():
		}
	}))
	defer srv.Close()
	defer close(release)

	g := NewGenerator(srv.URL, "m", formatter.NewFormatter()).
		WithLimits(KindAnalyst, Limits{Timeout: 50 * time.Millisecond, NumPredict: 10})

	text, err := g.AnalystSummary(context.Background(), payload())

	assert.Equal(t, AnalystFallback, text)
	var insightErr *domain.InsightError
	require.ErrorAs(t, err, &insightErr)
	assert.True(t, insightErr.Timeout)
	assert.Equal(t, KindAnalyst, insightErr.Kind)
}

func TestVizInsightErrorStatusUsesFallback(t *testing.T) {
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		w.WriteHeader(http.StatusInternalServerError)
	}))
	defer srv.Close()

	g := NewGenerator(srv.URL, "m", formatter.NewFormatter())

	text, err := g.VizInsight(context.Background(), domain.VizPayload{})

	assert.Equal(t, VizFallback, text)
	var insightErr *domain.InsightError
	require.ErrorAs(t, err, &insightErr)
	assert.False(t, insightErr.Timeout)
}

func TestMessagingSummaryFallbackIsDataDerived(t *testing.T) {
	g := NewGenerator("http://127.0.0.1:1", "m", formatter.NewFormatter())

	text, err := g.MessagingSummary(context.Background(), payload())

	assert.Error(t, err)
	assert.Contains(t, text, "• New Leads: 7")
	assert.Contains(t, text, "• Deals Won: 1")
	assert.Contains(t, text, "• Pipeline: ₹25.0L")
}

func TestEmptyResponseIsAnError(t *testing.T) {
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		_, _ = w.Write([]byte(`{"response":"   "}`))
	}))
	defer srv.Close()

	g := NewGenerator(srv.URL, "m", formatter.NewFormatter())

	text, err := g.VizInsight(context.Background(), domain.VizPayload{})
	assert.Error(t, err)
	assert.Equal(t, VizFallback, text)
}

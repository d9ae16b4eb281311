package api

import (
	"net/http"
	"time"

	"github.com/labstack/echo/v4"
	"github.com/rs/zerolog/log"
	"golang.org/x/sync/errgroup"

	"zoho-crm-pulse/internal/domain"
	"zoho-crm-pulse/internal/snapshot"
)

// topSources - сколько источников показывать на графике
const topSources = 6

// allTimeLabel отключает фильтр по датам
const allTimeLabel = "All Time"

type analyticsResponse struct {
	Funnel   domain.FunnelSnapshot   `json:"funnel"`
	Sources  []domain.SourceCount    `json:"sources"`
	Pipeline domain.PipelineSnapshot `json:"pipeline"`
}

// Analytics - воронка, источники и пайплайн
func (h *Handler) Analytics(c echo.Context) error {
	var resp analyticsResponse

	g, ctx := errgroup.WithContext(c.Request().Context())
	g.Go(func() (err error) {
		resp.Funnel, err = h.analytics.Funnel(ctx)
		return err
	})
	g.Go(func() (err error) {
		resp.Sources, err = h.analytics.Sources(ctx)
		return err
	})
	g.Go(func() (err error) {
		resp.Pipeline, err = h.analytics.Pipeline(ctx)
		return err
	})

	if err := g.Wait(); err != nil {
		log.Error().Err(err).Str("component", "api").Msg("Analytics failed")
		return errorJSON(c, http.StatusInternalServerError, err.Error())
	}

	if len(resp.Sources) > topSources {
		resp.Sources = resp.Sources[:topSources]
	}
	return c.JSON(http.StatusOK, resp)
}

type dashboardPayload struct {
	Leads     []domain.Lead                `json:"leads"`
	Deals     []domain.Deal                `json:"deals"`
	Metrics   []domain.DailyMetricsSummary `json:"metrics"`
	AITable   []domain.AISummary           `json:"ai_table"`
	Timestamp string                       `json:"timestamp"`
	Source    string                       `json:"source"`
	Error     string                       `json:"error,omitempty"`
}

// DashboardData - сырые данные для дашборда с откатом на локальный кэш
func (h *Handler) DashboardData(c echo.Context) error {
	label := c.QueryParam("range_label")
	var (
		rng   *domain.DateRange
		since *time.Time
	)

	if label != allTimeLabel && c.QueryParam("start_utc") != "" {
		start, err := time.Parse(time.RFC3339, c.QueryParam("start_utc"))
		if err != nil {
			return errorJSON(c, http.StatusBadRequest, "invalid start_utc")
		}
		rng = &domain.DateRange{From: start}
		if end := c.QueryParam("end_utc"); end != "" {
			to, err := time.Parse(time.RFC3339, end)
			if err != nil {
				return errorJSON(c, http.StatusBadRequest, "invalid end_utc")
			}
			rng.To = to
		}
		since = &start
	}

	payload, err := h.loadDashboard(c, rng, since)
	if err == nil {
		if cacheErr := h.snapshots.Put(snapshot.KeyDashboard, payload); cacheErr != nil {
			log.Warn().Err(cacheErr).Str("component", "api").Msg("Failed to cache dashboard snapshot")
		}
		payload.Source = "live"
		return c.JSON(http.StatusOK, payload)
	}

	log.Error().Err(err).Str("component", "api").Str("range", label).Msg("Dashboard fetch failed, serving cache")

	var cached dashboardPayload
	if _, cacheErr := h.snapshots.Get(snapshot.KeyDashboard, &cached); cacheErr != nil {
		return c.JSON(http.StatusBadGateway, map[string]string{
			"error":   "store unreachable and no cache found",
			"details": err.Error(),
		})
	}
	cached.Source = "cache"
	cached.Error = err.Error()
	return c.JSON(http.StatusOK, cached)
}

func (h *Handler) loadDashboard(c echo.Context, rng *domain.DateRange, since *time.Time) (*dashboardPayload, error) {
	payload := &dashboardPayload{
		Metrics: []domain.DailyMetricsSummary{},
		AITable: []domain.AISummary{},
	}

	ctx := c.Request().Context()
	g, gctx := errgroup.WithContext(ctx)
	g.Go(func() (err error) {
		payload.Leads, err = h.repo.ListLeads(gctx, rng)
		return err
	})
	g.Go(func() (err error) {
		payload.Deals, err = h.repo.ListDealsTouchedSince(gctx, since)
		return err
	})
	if err := g.Wait(); err != nil {
		return nil, err
	}

	// Сводка и тексты необязательны
	if row, err := h.repo.GetDailySummary(ctx); err == nil && row != nil {
		payload.Metrics = append(payload.Metrics, *row)
	}
	if latest, err := h.repo.LatestAISummary(ctx); err == nil && latest != nil {
		payload.AITable = append(payload.AITable, *latest)
	}

	if payload.Leads == nil {
		payload.Leads = []domain.Lead{}
	}
	if payload.Deals == nil {
		payload.Deals = []domain.Deal{}
	}
	payload.Timestamp = time.Now().UTC().Format(time.RFC3339)
	return payload, nil
}

// Путь: internal/service/metrics/engine.go
package metrics

import (
	"context"
	"fmt"
	"time"

	"github.com/rs/zerolog/log"
	"golang.org/x/sync/errgroup"

	"zoho-crm-pulse/internal/domain"
	repoInterface "zoho-crm-pulse/internal/repository/interface"
)

// Engine считает производные показатели по локальной копии CRM. Только чтение.
type Engine struct {
	repo repoInterface.CRMRepository
	loc  *time.Location
	now  func() time.Time
}

// NewEngine создает движок метрик для часового пояса отчета
func NewEngine(repo repoInterface.CRMRepository, loc *time.Location) *Engine {
	if loc == nil {
		loc = time.Local
	}
	return &Engine{repo: repo, loc: loc, now: time.Now}
}

// Location - часовой пояс, в котором считается "сегодня"
func (e *Engine) Location() *time.Location {
	return e.loc
}

// Daily - лиды за сегодня, закрытые сегодня сделки и активный пайплайн
func (e *Engine) Daily(ctx context.Context) (domain.DailyMetrics, error) {
	today := DayRange(e.now(), e.loc)

	newLeads, err := e.repo.CountLeadsCreated(ctx, today)
	if err != nil {
		return domain.DailyMetrics{}, fmt.Errorf("failed to count today's leads: %w", err)
	}
	deals, err := e.repo.ListDeals(ctx)
	if err != nil {
		return domain.DailyMetrics{}, fmt.Errorf("failed to list deals: %w", err)
	}
	return BuildDaily(today, newLeads, deals), nil
}

// Sources - распределение лидов по источникам
func (e *Engine) Sources(ctx context.Context) ([]domain.SourceCount, error) {
	sources, err := e.repo.ListLeadSources(ctx)
	if err != nil {
		return nil, fmt.Errorf("failed to list lead sources: %w", err)
	}
	return SourceDistribution(sources), nil
}

// Funnel - накопительная воронка и воронка утечек
func (e *Engine) Funnel(ctx context.Context) (domain.FunnelSnapshot, error) {
	total, err := e.repo.CountLeads(ctx)
	if err != nil {
		return domain.FunnelSnapshot{}, fmt.Errorf("failed to count leads: %w", err)
	}
	converted, err := e.repo.CountConvertedLeads(ctx)
	if err != nil {
		return domain.FunnelSnapshot{}, fmt.Errorf("failed to count converted leads: %w", err)
	}
	deals, err := e.repo.ListDeals(ctx)
	if err != nil {
		return domain.FunnelSnapshot{}, fmt.Errorf("failed to list deals: %w", err)
	}

	stages := make([]string, len(deals))
	for i, d := range deals {
		stages[i] = d.Stage
	}
	return BuildFunnel(total, converted, stages), nil
}

// Pipeline - суммы сделок по корзинам
func (e *Engine) Pipeline(ctx context.Context) (domain.PipelineSnapshot, error) {
	deals, err := e.repo.ListDeals(ctx)
	if err != nil {
		return domain.PipelineSnapshot{}, fmt.Errorf("failed to list deals: %w", err)
	}
	return BuildPipeline(deals), nil
}

// Trend - лиды по дням за последние 30 дней
func (e *Engine) Trend(ctx context.Context) ([]domain.TrendPoint, error) {
	now := e.now()
	since := StartOfDay(now, e.loc).AddDate(0, 0, -(TrendDays - 1))

	created, err := e.repo.ListLeadCreatedTimes(ctx, since)
	if err != nil {
		return nil, fmt.Errorf("failed to list lead creation times: %w", err)
	}
	return BuildTrend(created, now, e.loc), nil
}

// Averages - средние за 7 дней. При ошибке чтения возвращает безопасные значения.
func (e *Engine) Averages(ctx context.Context) domain.HistoricalAverages {
	since := StartOfDay(e.now(), e.loc).AddDate(0, 0, -averageDays)

	created, err := e.repo.ListLeadCreatedTimes(ctx, since)
	if err != nil {
		log.Warn().Err(err).Str("component", "metrics").Msg("Using fallback averages")
		return FallbackAverages()
	}
	deals, err := e.repo.ListDealsCreatedSince(ctx, since)
	if err != nil {
		log.Warn().Err(err).Str("component", "metrics").Msg("Using fallback averages")
		return FallbackAverages()
	}
	return BuildAverages(len(created), deals)
}

// SummaryRow - строка daily_metrics_summary на текущий момент
func (e *Engine) SummaryRow(ctx context.Context) (domain.DailyMetricsSummary, error) {
	today := DayRange(e.now(), e.loc)

	newLeads, err := e.repo.CountLeadsCreated(ctx, today)
	if err != nil {
		return domain.DailyMetricsSummary{}, fmt.Errorf("failed to count today's leads: %w", err)
	}
	statuses, err := e.repo.ListLeadStatuses(ctx)
	if err != nil {
		return domain.DailyMetricsSummary{}, fmt.Errorf("failed to list lead statuses: %w", err)
	}
	deals, err := e.repo.ListDeals(ctx)
	if err != nil {
		return domain.DailyMetricsSummary{}, fmt.Errorf("failed to list deals: %w", err)
	}
	return BuildSummaryRow(today, newLeads, statuses, deals), nil
}

// Gather считает все показатели параллельно
func (e *Engine) Gather(ctx context.Context) (*domain.MetricsBundle, error) {
	bundle := &domain.MetricsBundle{}

	g, gctx := errgroup.WithContext(ctx)
	g.Go(func() (err error) {
		bundle.Daily, err = e.Daily(gctx)
		return err
	})
	g.Go(func() (err error) {
		bundle.Sources, err = e.Sources(gctx)
		return err
	})
	g.Go(func() (err error) {
		bundle.Funnel, err = e.Funnel(gctx)
		return err
	})
	g.Go(func() (err error) {
		bundle.Pipeline, err = e.Pipeline(gctx)
		return err
	})
	g.Go(func() (err error) {
		bundle.Trend, err = e.Trend(gctx)
		return err
	})
	g.Go(func() error {
		bundle.Averages = e.Averages(gctx)
		return nil
	})
	g.Go(func() (err error) {
		bundle.Summary, err = e.SummaryRow(gctx)
		return err
	})

	if err := g.Wait(); err != nil {
		return nil, err
	}

	bundle.ComputedAt = e.now()
	log.Info().
		Str("component", "metrics").
		Int("new_leads", bundle.Daily.NewLeads).
		Int("deals_closed", bundle.Daily.DealsClosed).
		Float64("pipeline_value", bundle.Pipeline.TotalValue).
		Msg("Metrics gathered")

	return bundle, nil
}

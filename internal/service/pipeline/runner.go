// Путь: internal/service/pipeline/runner.go
package pipeline

import (
	"context"
	"errors"
	"fmt"
	"time"

	"github.com/google/uuid"
	"github.com/rs/zerolog"
	"github.com/rs/zerolog/log"
	"golang.org/x/sync/errgroup"

	"zoho-crm-pulse/internal/domain"
	repoInterface "zoho-crm-pulse/internal/repository/interface"
	"zoho-crm-pulse/internal/service/delivery"
	"zoho-crm-pulse/internal/service/formatter"
	"zoho-crm-pulse/internal/snapshot"
)

// CursorResetter сбрасывает водяные метки
type CursorResetter interface {
	ResetAll(ctx context.Context, baseline time.Time) error
}

// Syncer переносит изменения модулей CRM
type Syncer interface {
	ReconcileLeads(ctx context.Context) (int, error)
	ReconcileDeals(ctx context.Context) (int, error)
}

// MetricsGatherer считает показатели
type MetricsGatherer interface {
	Gather(ctx context.Context) (*domain.MetricsBundle, error)
}

// InsightGenerator возвращает текст или запасной текст вместе с ошибкой
type InsightGenerator interface {
	AnalystSummary(ctx context.Context, p *domain.InsightPayload) (string, error)
	VizInsight(ctx context.Context, p domain.VizPayload) (string, error)
	MessagingSummary(ctx context.Context, p *domain.InsightPayload) (string, error)
}

// SnapshotWriter - локальный кэш последней сводки
type SnapshotWriter interface {
	Put(key string, value interface{}) error
}

// Deps - зависимости запуска
type Deps struct {
	Cursors   CursorResetter
	Syncer    Syncer
	Metrics   MetricsGatherer
	Insights  InsightGenerator
	Summaries repoInterface.SummaryRepository
	Snapshots SnapshotWriter
	Sender    delivery.Sender
}

// RunOptions - параметры одного запуска
type RunOptions struct {
	Deliver bool
}

// Runner выполняет запуск: сброс меток, синхронизация, метрики, тексты, сохранение, доставка
type Runner struct {
	deps     Deps
	baseline time.Time
	loc      *time.Location
	now      func() time.Time
}

// NewRunner создает оркестратор
func NewRunner(deps Deps, baseline time.Time, loc *time.Location) *Runner {
	if loc == nil {
		loc = time.Local
	}
	return &Runner{deps: deps, baseline: baseline, loc: loc, now: time.Now}
}

// Run выполняет один запуск и никогда не паникует наружу
func (r *Runner) Run(ctx context.Context, opts RunOptions) (result *Result) {
	result = &Result{RunID: uuid.NewString(), StartedAt: r.now()}
	logger := log.With().Str("component", "pipeline").Str("run_id", result.RunID).Logger()

	defer func() {
		if rec := recover(); rec != nil {
			result.fail(fmt.Errorf("panic: %v", rec))
		}
		result.finish(r.now())

		event := logger.Info()
		if result.Status != StatusSuccess {
			event = logger.Error().Err(result.Err())
		}
		event.
			Str("status", string(result.Status)).
			Int("leads", result.LeadsSynced).
			Int("deals", result.DealsSynced).
			Dur("duration", result.Duration()).
			Msg("Pipeline run finished")
	}()

	logger.Info().Bool("deliver", opts.Deliver).Msg("Pipeline run started")

	logger.Info().Time("baseline", r.baseline).Msg("Resetting sync cursors")
	if err := r.deps.Cursors.ResetAll(ctx, r.baseline); err != nil {
		result.fail(fmt.Errorf("failed to reset cursors: %w", err))
		return result
	}

	if !r.sync(ctx, result, logger) {
		return result
	}

	logger.Info().Msg("Gathering metrics")
	bundle, err := r.deps.Metrics.Gather(ctx)
	if err != nil {
		result.fail(fmt.Errorf("failed to gather metrics: %w", err))
		return result
	}
	if err := r.deps.Summaries.ReplaceDailySummary(ctx, &bundle.Summary); err != nil {
		result.record(fmt.Errorf("failed to replace daily summary: %w", err))
	}

	payload := r.insights(ctx, bundle, logger)
	result.Payload = payload

	r.persist(ctx, result, payload, logger)

	if opts.Deliver {
		logger.Info().Str("channel", r.deps.Sender.Channel()).Msg("Delivering summary")
		// Ошибка доставки не влияет на итог запуска
		result.Delivered = delivery.Deliver(ctx, r.deps.Sender, payload.WhatsappSummary.Text) == nil
	} else {
		logger.Info().Msg("Skipping delivery")
	}

	return result
}

// sync синхронизирует лиды и сделки параллельно. false - продолжать нельзя.
func (r *Runner) sync(ctx context.Context, result *Result, logger zerolog.Logger) bool {
	var leadsErr, dealsErr error

	g, gctx := errgroup.WithContext(ctx)
	g.Go(guard(func() error {
		result.LeadsSynced, leadsErr = r.deps.Syncer.ReconcileLeads(gctx)
		return fatalOnly(leadsErr)
	}))
	g.Go(guard(func() error {
		result.DealsSynced, dealsErr = r.deps.Syncer.ReconcileDeals(gctx)
		return fatalOnly(dealsErr)
	}))

	if err := g.Wait(); err != nil {
		result.fail(err)
		return false
	}

	if leadsErr != nil {
		result.record(fmt.Errorf("failed to sync %s: %w", domain.ModuleLeads, leadsErr))
	}
	if dealsErr != nil {
		result.record(fmt.Errorf("failed to sync %s: %w", domain.ModuleDeals, dealsErr))
	}

	logger.Info().Int("leads", result.LeadsSynced).Int("deals", result.DealsSynced).Msg("Modules synchronized")
	return true
}

// guard превращает панику в горутине в ошибку запуска
func guard(fn func() error) func() error {
	return func() (err error) {
		defer func() {
			if rec := recover(); rec != nil {
				err = fmt.Errorf("panic: %v", rec)
			}
		}()
		return fn()
	}
}

// fatalOnly пропускает наружу только ошибки авторизации: они останавливают обе ветки
func fatalOnly(err error) error {
	var authErr *domain.AuthError
	if errors.As(err, &authErr) {
		return err
	}
	return nil
}

func (r *Runner) insights(ctx context.Context, bundle *domain.MetricsBundle, logger zerolog.Logger) *domain.SummaryPayload {
	insightPayload := formatter.InsightPayload(bundle)

	logger.Info().Msg("Requesting insights")
	analyst, err := r.deps.Insights.AnalystSummary(ctx, insightPayload)
	logInsightError(logger, err)

	viz, err := r.deps.Insights.VizInsight(ctx, domain.VizPayload{Funnel: bundle.Funnel.FullFunnel, Sources: bundle.Sources})
	logInsightError(logger, err)

	messaging, err := r.deps.Insights.MessagingSummary(ctx, insightPayload)
	logInsightError(logger, err)

	return &domain.SummaryPayload{
		Date:     bundle.Daily.Date,
		Overview: formatter.Overview(bundle),
		AISummary: domain.InsightText{
			LastRunTime: r.now().In(r.loc).Format("02/01/2006, 15:04:05"),
			Text:        orDefault(analyst, "⚠️ AI analysis was skipped or timed out."),
		},
		WhatsappSummary: domain.InsightText{Text: orDefault(messaging, "⚠️ WhatsApp summary not available.")},
		VizInsights:     domain.InsightText{Text: orDefault(viz, "Visualization insight not available.")},
	}
}

func logInsightError(logger zerolog.Logger, err error) {
	if err != nil {
		logger.Warn().Err(err).Msg("Insight degraded to fallback text")
	}
}

func orDefault(text, fallback string) string {
	if text == "" {
		return fallback
	}
	return text
}

func (r *Runner) persist(ctx context.Context, result *Result, payload *domain.SummaryPayload, logger zerolog.Logger) {
	logger.Info().Msg("Persisting summary")
	if saved, err := r.deps.Summaries.CreateAISummary(ctx, payload); err != nil {
		result.record(fmt.Errorf("failed to save summary: %w", err))
	} else {
		logger.Info().Int64("summary_id", saved.ID).Msg("Summary saved")
	}

	if r.deps.Snapshots == nil {
		return
	}
	if err := r.deps.Snapshots.Put(snapshot.KeyLatestSummary, payload); err != nil {
		logger.Warn().Err(err).Msg("Failed to write summary snapshot")
	}
}

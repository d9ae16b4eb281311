package api

import (
	"context"
	"net/http"
	"sync"
	"time"

	"github.com/labstack/echo/v4"

	"zoho-crm-pulse/internal/domain"
	repoInterface "zoho-crm-pulse/internal/repository/interface"
	"zoho-crm-pulse/internal/service/pipeline"
)

// PipelineRunner запускает оркестратор
type PipelineRunner interface {
	Run(ctx context.Context, opts pipeline.RunOptions) *pipeline.Result
}

// AnalyticsProvider - производные показатели для дашборда
type AnalyticsProvider interface {
	Funnel(ctx context.Context) (domain.FunnelSnapshot, error)
	Sources(ctx context.Context) ([]domain.SourceCount, error)
	Pipeline(ctx context.Context) (domain.PipelineSnapshot, error)
}

// SnapshotStore - локальный кэш последних успешных ответов
type SnapshotStore interface {
	Put(key string, value interface{}) error
	Get(key string, out interface{}) (time.Time, error)
}

// Handler - обработчики API
type Handler struct {
	repo      repoInterface.Repository
	analytics AnalyticsProvider
	runner    PipelineRunner
	snapshots SnapshotStore
	loc       *time.Location

	// фоновые запуски из вебхука живут дольше запроса
	baseCtx context.Context
	wg      sync.WaitGroup
}

// NewHandler создает обработчики. baseCtx ограничивает фоновые запуски.
func NewHandler(
	baseCtx context.Context,
	repo repoInterface.Repository,
	analytics AnalyticsProvider,
	runner PipelineRunner,
	snapshots SnapshotStore,
	loc *time.Location,
) *Handler {
	if loc == nil {
		loc = time.Local
	}
	return &Handler{
		repo:      repo,
		analytics: analytics,
		runner:    runner,
		snapshots: snapshots,
		loc:       loc,
		baseCtx:   baseCtx,
	}
}

// Wait дожидается фоновых запусков (graceful shutdown)
func (h *Handler) Wait() {
	h.wg.Wait()
}

func (h *Handler) Health(c echo.Context) error {
	return c.JSON(http.StatusOK, map[string]string{
		"status": "ok",
		"time":   time.Now().UTC().Format(time.RFC3339),
	})
}

func errorJSON(c echo.Context, status int, msg string) error {
	return c.JSON(status, map[string]string{"error": msg})
}

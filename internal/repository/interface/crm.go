package _interface

import (
	"context"
	"time"

	"zoho-crm-pulse/internal/domain"
)

// SyncStateRepository - водяные метки синхронизации (sync_state)
type SyncStateRepository interface {
	// GetWatermark возвращает domain.ErrNotFound, если модуль еще не синхронизировался
	GetWatermark(ctx context.Context, module string) (time.Time, error)
	// SetWatermark двигает метку только вперед
	SetWatermark(ctx context.Context, module string, watermark time.Time) error
	// ResetWatermarks принудительно выставляет метку всем модулям
	ResetWatermarks(ctx context.Context, modules []string, baseline time.Time) error
}

// CRMRepository - локальная копия лидов и сделок
type CRMRepository interface {
	// Запись (одна транзакция на пачку)
	UpsertLeads(ctx context.Context, leads []domain.Lead) error
	UpsertDeals(ctx context.Context, deals []domain.Deal) error

	// Лиды
	CountLeads(ctx context.Context) (int, error)
	CountConvertedLeads(ctx context.Context) (int, error)
	CountLeadsCreated(ctx context.Context, r domain.DateRange) (int, error)
	ListLeadSources(ctx context.Context) ([]string, error)
	ListLeadStatuses(ctx context.Context) ([]string, error)
	ListLeadCreatedTimes(ctx context.Context, since time.Time) ([]time.Time, error)
	ListLeads(ctx context.Context, r *domain.DateRange) ([]domain.Lead, error)

	// Сделки
	ListDeals(ctx context.Context) ([]domain.Deal, error)
	ListDealsCreatedSince(ctx context.Context, since time.Time) ([]domain.Deal, error)
	ListDealsTouchedSince(ctx context.Context, since *time.Time) ([]domain.Deal, error)
}

// SummaryRepository - сводка дня и сохраненные тексты
type SummaryRepository interface {
	ReplaceDailySummary(ctx context.Context, summary *domain.DailyMetricsSummary) error
	GetDailySummary(ctx context.Context) (*domain.DailyMetricsSummary, error)
	CreateAISummary(ctx context.Context, payload *domain.SummaryPayload) (*domain.AISummary, error)
	LatestAISummary(ctx context.Context) (*domain.AISummary, error)
}

// Repository - полный набор операций над хранилищем
type Repository interface {
	SyncStateRepository
	CRMRepository
	SummaryRepository
}

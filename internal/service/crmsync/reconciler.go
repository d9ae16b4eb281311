// Путь: internal/service/crmsync/reconciler.go
package crmsync

import (
	"context"
	"encoding/json"
	"time"

	"github.com/rs/zerolog/log"

	"zoho-crm-pulse/internal/domain"
	repoInterface "zoho-crm-pulse/internal/repository/interface"
	"zoho-crm-pulse/internal/zoho"
)

// Fetcher - источник измененных записей CRM
type Fetcher interface {
	FetchModifiedSince(ctx context.Context, module string, watermark time.Time) ([]json.RawMessage, error)
}

// Reconciler переносит изменения из CRM в локальное хранилище
type Reconciler struct {
	fetcher Fetcher
	cursors *CursorStore
	repo    repoInterface.CRMRepository
}

// NewReconciler создает сервис синхронизации
func NewReconciler(fetcher Fetcher, cursors *CursorStore, repo repoInterface.CRMRepository) *Reconciler {
	return &Reconciler{fetcher: fetcher, cursors: cursors, repo: repo}
}

// ReconcileLeads синхронизирует лиды и возвращает число записанных строк
func (r *Reconciler) ReconcileLeads(ctx context.Context) (int, error) {
	return reconcile(ctx, r, domain.ModuleLeads, MapLead,
		func(l domain.Lead) string { return l.LeadID },
		r.repo.UpsertLeads)
}

// ReconcileDeals синхронизирует сделки и возвращает число записанных строк
func (r *Reconciler) ReconcileDeals(ctx context.Context) (int, error) {
	return reconcile(ctx, r, domain.ModuleDeals, MapDeal,
		func(d domain.Deal) string { return d.DealID },
		r.repo.UpsertDeals)
}

func reconcile[T any](
	ctx context.Context,
	r *Reconciler,
	module string,
	mapRecord func(json.RawMessage) (T, error),
	key func(T) string,
	upsert func(context.Context, []T) error,
) (int, error) {
	watermark := r.cursors.GetWatermark(ctx, module)

	raw, err := r.fetcher.FetchModifiedSince(ctx, module, watermark)
	if err != nil {
		return 0, err
	}
	if len(raw) == 0 {
		log.Info().Str("component", "reconciler").Str("module", module).Msg("No changes since watermark")
		return 0, nil
	}

	mapped := make([]T, 0, len(raw))
	for _, rec := range raw {
		item, err := mapRecord(rec)
		if err != nil {
			log.Warn().Err(err).Str("component", "reconciler").Str("module", module).Msg("Skipping malformed record")
			continue
		}
		mapped = append(mapped, item)
	}

	unique := dedupe(mapped, key)
	if len(unique) > 0 {
		if err := upsert(ctx, unique); err != nil {
			return 0, err
		}
	}

	// Метка двигается только после успешной записи и считается по исходной пачке
	if next, ok := zoho.MaxModifiedTime(raw); ok {
		if err := r.cursors.SetWatermark(ctx, module, next); err != nil {
			return len(unique), err
		}
	}

	log.Info().
		Str("component", "reconciler").
		Str("module", module).
		Int("fetched", len(raw)).
		Int("upserted", len(unique)).
		Msg("Module synchronized")

	return len(unique), nil
}

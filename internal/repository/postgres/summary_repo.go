package postgres

import (
	"context"
	"database/sql"
	"encoding/json"
	"errors"
	"fmt"

	"github.com/jmoiron/sqlx"

	"zoho-crm-pulse/internal/domain"
)

// ReplaceDailySummary атомарно заменяет единственную строку сводки:
// читатели видят либо старую, либо новую строку, но не пустую таблицу
func (r *Repository) ReplaceDailySummary(ctx context.Context, summary *domain.DailyMetricsSummary) error {
	err := r.inTx(ctx, func(ctx context.Context, tx *sqlx.Tx) error {
		if _, err := tx.ExecContext(ctx, `DELETE FROM daily_metrics_summary`); err != nil {
			return fmt.Errorf("failed to clear daily summary: %w", err)
		}
		_, err := tx.NamedExecContext(ctx, `
            INSERT INTO daily_metrics_summary (
                new_leads_today, leads_contacted, qualified_leads, demos_scheduled, demos_held,
                proposals_sent, negotiations_active, deals_closed, deal_amount_won, deal_amount_lost, total_revenue
            ) VALUES (
                :new_leads_today, :leads_contacted, :qualified_leads, :demos_scheduled, :demos_held,
                :proposals_sent, :negotiations_active, :deals_closed, :deal_amount_won, :deal_amount_lost, :total_revenue
            )
        `, summary)
		if err != nil {
			return fmt.Errorf("failed to insert daily summary: %w", err)
		}
		return nil
	})
	if err != nil {
		return &domain.StoreError{Op: "replace daily summary", Err: err}
	}
	return nil
}

// GetDailySummary возвращает текущую строку сводки
func (r *Repository) GetDailySummary(ctx context.Context) (*domain.DailyMetricsSummary, error) {
	ctx, cancel := withTimeout(ctx)
	defer cancel()

	var summary domain.DailyMetricsSummary
	err := r.db.GetContext(ctx, &summary, `
        SELECT new_leads_today, leads_contacted, qualified_leads, demos_scheduled, demos_held,
               proposals_sent, negotiations_active, deals_closed, deal_amount_won, deal_amount_lost, total_revenue
        FROM daily_metrics_summary
        LIMIT 1
    `)
	if errors.Is(err, sql.ErrNoRows) {
		return nil, domain.ErrNotFound
	}
	if err != nil {
		return nil, err
	}
	return &summary, nil
}

// CreateAISummary добавляет новую сводку
func (r *Repository) CreateAISummary(ctx context.Context, payload *domain.SummaryPayload) (*domain.AISummary, error) {
	ctx, cancel := withTimeout(ctx)
	defer cancel()

	payloadJSON, err := json.Marshal(payload)
	if err != nil {
		return nil, fmt.Errorf("failed to marshal summary payload: %w", err)
	}

	summary := &domain.AISummary{Payload: payloadJSON}
	err = r.db.QueryRowContext(ctx,
		`INSERT INTO ai_summaries (payload, created_at) VALUES ($1, NOW()) RETURNING id, created_at`,
		payloadJSON,
	).Scan(&summary.ID, &summary.CreatedAt)
	if err != nil {
		return nil, &domain.StoreError{Op: "create ai summary", Err: err}
	}
	return summary, nil
}

// LatestAISummary возвращает самую свежую сводку
func (r *Repository) LatestAISummary(ctx context.Context) (*domain.AISummary, error) {
	ctx, cancel := withTimeout(ctx)
	defer cancel()

	var summary domain.AISummary
	err := r.db.GetContext(ctx, &summary,
		`SELECT id, payload, created_at FROM ai_summaries ORDER BY created_at DESC LIMIT 1`)
	if errors.Is(err, sql.ErrNoRows) {
		return nil, domain.ErrNotFound
	}
	if err != nil {
		return nil, err
	}
	return &summary, nil
}

// Путь: internal/repository/postgres/crm_repo.go
package postgres

import (
	"context"
	"fmt"
	"time"

	"github.com/jmoiron/sqlx"

	"zoho-crm-pulse/internal/domain"
)

const upsertLeadsQuery = `
        INSERT INTO crm_leads (lead_id, owner_name, status, source, created_time, modified_time, is_converted)
        VALUES (:lead_id, :owner_name, :status, :source, :created_time, :modified_time, :is_converted)
        ON CONFLICT (lead_id) DO UPDATE SET
            owner_name = EXCLUDED.owner_name,
            status = EXCLUDED.status,
            source = EXCLUDED.source,
            created_time = EXCLUDED.created_time,
            modified_time = EXCLUDED.modified_time,
            is_converted = EXCLUDED.is_converted
    `

const upsertDealsQuery = `
        INSERT INTO crm_deals (deal_id, lead_id, deal_name, owner_name, stage, source, amount, created_time, modified_time, closed_time)
        VALUES (:deal_id, :lead_id, :deal_name, :owner_name, :stage, :source, :amount, :created_time, :modified_time, :closed_time)
        ON CONFLICT (deal_id) DO UPDATE SET
            lead_id = EXCLUDED.lead_id,
            deal_name = EXCLUDED.deal_name,
            owner_name = EXCLUDED.owner_name,
            stage = EXCLUDED.stage,
            source = EXCLUDED.source,
            amount = EXCLUDED.amount,
            created_time = EXCLUDED.created_time,
            modified_time = EXCLUDED.modified_time,
            closed_time = EXCLUDED.closed_time
    `

const dealColumns = `deal_id, lead_id, deal_name, owner_name, stage, source, amount, created_time, modified_time, closed_time`

const leadColumns = `lead_id, owner_name, status, source, created_time, modified_time, is_converted`

// UpsertLeads записывает лидов одной транзакцией: либо все, либо ничего
func (r *Repository) UpsertLeads(ctx context.Context, leads []domain.Lead) error {
	if len(leads) == 0 {
		return nil
	}
	err := r.inTx(ctx, func(ctx context.Context, tx *sqlx.Tx) error {
		for start := 0; start < len(leads); start += upsertBatchSize {
			end := min(start+upsertBatchSize, len(leads))
			if _, err := tx.NamedExecContext(ctx, upsertLeadsQuery, leads[start:end]); err != nil {
				return fmt.Errorf("failed to upsert leads batch at %d: %w", start, err)
			}
		}
		return nil
	})
	if err != nil {
		return &domain.StoreError{Op: "upsert leads", Err: err}
	}
	return nil
}

// UpsertDeals записывает сделки одной транзакцией
func (r *Repository) UpsertDeals(ctx context.Context, deals []domain.Deal) error {
	if len(deals) == 0 {
		return nil
	}
	err := r.inTx(ctx, func(ctx context.Context, tx *sqlx.Tx) error {
		for start := 0; start < len(deals); start += upsertBatchSize {
			end := min(start+upsertBatchSize, len(deals))
			if _, err := tx.NamedExecContext(ctx, upsertDealsQuery, deals[start:end]); err != nil {
				return fmt.Errorf("failed to upsert deals batch at %d: %w", start, err)
			}
		}
		return nil
	})
	if err != nil {
		return &domain.StoreError{Op: "upsert deals", Err: err}
	}
	return nil
}

// CountLeads считает всех лидов
func (r *Repository) CountLeads(ctx context.Context) (int, error) {
	ctx, cancel := withTimeout(ctx)
	defer cancel()

	var count int
	err := r.db.GetContext(ctx, &count, `SELECT COUNT(*) FROM crm_leads`)
	return count, err
}

// CountConvertedLeads считает сконвертированных лидов
func (r *Repository) CountConvertedLeads(ctx context.Context) (int, error) {
	ctx, cancel := withTimeout(ctx)
	defer cancel()

	var count int
	err := r.db.GetContext(ctx, &count, `SELECT COUNT(*) FROM crm_leads WHERE is_converted = TRUE`)
	return count, err
}

// CountLeadsCreated считает лидов, созданных в интервале [From, To)
func (r *Repository) CountLeadsCreated(ctx context.Context, rng domain.DateRange) (int, error) {
	ctx, cancel := withTimeout(ctx)
	defer cancel()

	var count int
	err := r.db.GetContext(ctx, &count,
		`SELECT COUNT(*) FROM crm_leads WHERE created_time >= $1 AND created_time < $2`,
		rng.From, rng.To,
	)
	return count, err
}

// ListLeadSources возвращает источники всех лидов
func (r *Repository) ListLeadSources(ctx context.Context) ([]string, error) {
	ctx, cancel := withTimeout(ctx)
	defer cancel()

	var sources []string
	err := r.db.SelectContext(ctx, &sources, `SELECT source FROM crm_leads`)
	return sources, err
}

// ListLeadStatuses возвращает статусы всех лидов
func (r *Repository) ListLeadStatuses(ctx context.Context) ([]string, error) {
	ctx, cancel := withTimeout(ctx)
	defer cancel()

	var statuses []string
	err := r.db.SelectContext(ctx, &statuses, `SELECT status FROM crm_leads`)
	return statuses, err
}

// ListLeadCreatedTimes возвращает даты создания лидов начиная с since
func (r *Repository) ListLeadCreatedTimes(ctx context.Context, since time.Time) ([]time.Time, error) {
	ctx, cancel := withTimeout(ctx)
	defer cancel()

	var times []time.Time
	err := r.db.SelectContext(ctx, &times,
		`SELECT created_time FROM crm_leads WHERE created_time >= $1 ORDER BY created_time`, since)
	return times, err
}

// ListLeads возвращает лидов, созданных в интервале (или всех, если интервал не задан)
func (r *Repository) ListLeads(ctx context.Context, rng *domain.DateRange) ([]domain.Lead, error) {
	ctx, cancel := withTimeout(ctx)
	defer cancel()

	var leads []domain.Lead
	if rng == nil {
		err := r.db.SelectContext(ctx, &leads, `SELECT `+leadColumns+` FROM crm_leads ORDER BY created_time DESC`)
		return leads, err
	}

	query := `SELECT ` + leadColumns + ` FROM crm_leads WHERE created_time >= $1`
	args := []interface{}{rng.From}
	if !rng.To.IsZero() {
		query += ` AND created_time < $2`
		args = append(args, rng.To)
	}
	query += ` ORDER BY created_time DESC`

	err := r.db.SelectContext(ctx, &leads, query, args...)
	return leads, err
}

// ListDeals возвращает все сделки
func (r *Repository) ListDeals(ctx context.Context) ([]domain.Deal, error) {
	ctx, cancel := withTimeout(ctx)
	defer cancel()

	var deals []domain.Deal
	err := r.db.SelectContext(ctx, &deals, `SELECT `+dealColumns+` FROM crm_deals`)
	return deals, err
}

// ListDealsCreatedSince возвращает сделки, созданные начиная с since
func (r *Repository) ListDealsCreatedSince(ctx context.Context, since time.Time) ([]domain.Deal, error) {
	ctx, cancel := withTimeout(ctx)
	defer cancel()

	var deals []domain.Deal
	err := r.db.SelectContext(ctx, &deals,
		`SELECT `+dealColumns+` FROM crm_deals WHERE created_time >= $1`, since)
	return deals, err
}

// ListDealsTouchedSince возвращает сделки, созданные, измененные или закрытые начиная с since
func (r *Repository) ListDealsTouchedSince(ctx context.Context, since *time.Time) ([]domain.Deal, error) {
	ctx, cancel := withTimeout(ctx)
	defer cancel()

	var deals []domain.Deal
	if since == nil {
		err := r.db.SelectContext(ctx, &deals, `SELECT `+dealColumns+` FROM crm_deals ORDER BY modified_time DESC`)
		return deals, err
	}

	err := r.db.SelectContext(ctx, &deals, `
        SELECT `+dealColumns+`
        FROM crm_deals
        WHERE created_time >= $1 OR modified_time >= $1 OR closed_time >= $1
        ORDER BY modified_time DESC
    `, *since)
	return deals, err
}

// inTx выполняет fn в транзакции с ограничением по времени
func (r *Repository) inTx(ctx context.Context, fn func(ctx context.Context, tx *sqlx.Tx) error) error {
	ctx, cancel := withTimeout(ctx)
	defer cancel()

	tx, err := r.db.BeginTxx(ctx, nil)
	if err != nil {
		return fmt.Errorf("failed to begin transaction: %w", err)
	}
	defer tx.Rollback()

	if err := fn(ctx, tx); err != nil {
		return err
	}

	if err := tx.Commit(); err != nil {
		return fmt.Errorf("failed to commit transaction: %w", err)
	}
	return nil
}

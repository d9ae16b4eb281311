package postgres

import (
	"context"
	"database/sql"
	"errors"
	"fmt"
	"time"

	"github.com/jmoiron/sqlx"

	"zoho-crm-pulse/internal/domain"
)

// GetWatermark возвращает сохраненную метку модуля
func (r *Repository) GetWatermark(ctx context.Context, module string) (time.Time, error) {
	ctx, cancel := withTimeout(ctx)
	defer cancel()

	var cursor domain.SyncCursor
	err := r.db.GetContext(ctx, &cursor,
		`SELECT module_name, last_sync_time, updated_at FROM sync_state WHERE module_name = $1`, module)
	if errors.Is(err, sql.ErrNoRows) {
		return time.Time{}, domain.ErrNotFound
	}
	if err != nil {
		return time.Time{}, fmt.Errorf("failed to get watermark for %s: %w", module, err)
	}
	return cursor.Watermark.UTC(), nil
}

// SetWatermark сохраняет метку; более ранняя метка не затирает более позднюю
func (r *Repository) SetWatermark(ctx context.Context, module string, watermark time.Time) error {
	ctx, cancel := withTimeout(ctx)
	defer cancel()

	_, err := r.db.ExecContext(ctx, `
        INSERT INTO sync_state (module_name, last_sync_time, updated_at)
        VALUES ($1, $2, NOW())
        ON CONFLICT (module_name) DO UPDATE SET
            last_sync_time = GREATEST(sync_state.last_sync_time, EXCLUDED.last_sync_time),
            updated_at = NOW()
    `, module, watermark.UTC())
	if err != nil {
		return &domain.StoreError{Op: "set watermark " + module, Err: err}
	}
	return nil
}

// ResetWatermarks выставляет всем модулям одну и ту же метку
func (r *Repository) ResetWatermarks(ctx context.Context, modules []string, baseline time.Time) error {
	err := r.inTx(ctx, func(ctx context.Context, tx *sqlx.Tx) error {
		for _, module := range modules {
			_, err := tx.ExecContext(ctx, `
                INSERT INTO sync_state (module_name, last_sync_time, updated_at)
                VALUES ($1, $2, NOW())
                ON CONFLICT (module_name) DO UPDATE SET
                    last_sync_time = EXCLUDED.last_sync_time,
                    updated_at = NOW()
            `, module, baseline.UTC())
			if err != nil {
				return fmt.Errorf("failed to reset %s: %w", module, err)
			}
		}
		return nil
	})
	if err != nil {
		return &domain.StoreError{Op: "reset watermarks", Err: err}
	}
	return nil
}

// Путь: internal/service/crmsync/cursor.go
package crmsync

import (
	"context"
	"errors"
	"time"

	"github.com/rs/zerolog/log"

	"zoho-crm-pulse/internal/domain"
	repoInterface "zoho-crm-pulse/internal/repository/interface"
)

// fallbackWindow - насколько назад смотрим, если модуль еще не синхронизировался
const fallbackWindow = 24 * time.Hour

// Modules - модули CRM в порядке синхронизации
var Modules = []string{domain.ModuleLeads, domain.ModuleDeals}

// CursorStore хранит водяные метки синхронизации
type CursorStore struct {
	repo repoInterface.SyncStateRepository
	now  func() time.Time
}

// NewCursorStore создает хранилище меток
func NewCursorStore(repo repoInterface.SyncStateRepository) *CursorStore {
	return &CursorStore{repo: repo, now: time.Now}
}

// GetWatermark возвращает сохраненную метку или "сутки назад", если метки нет
func (s *CursorStore) GetWatermark(ctx context.Context, module string) time.Time {
	watermark, err := s.repo.GetWatermark(ctx, module)
	if err == nil {
		return watermark.UTC()
	}

	fallback := s.now().UTC().Add(-fallbackWindow).Truncate(time.Second)

	event := log.Warn().Str("component", "sync_cursor").Str("module", module).Time("fallback", fallback)
	if !errors.Is(err, domain.ErrNotFound) {
		event = event.Err(err)
	}
	event.Msg("Watermark unavailable, using fallback")

	return fallback
}

// SetWatermark сохраняет метку модуля
func (s *CursorStore) SetWatermark(ctx context.Context, module string, watermark time.Time) error {
	if err := s.repo.SetWatermark(ctx, module, watermark.UTC()); err != nil {
		return err
	}
	log.Info().Str("component", "sync_cursor").Str("module", module).Time("watermark", watermark.UTC()).Msg("Watermark advanced")
	return nil
}

// ResetAll выставляет всем модулям базовую метку
func (s *CursorStore) ResetAll(ctx context.Context, baseline time.Time) error {
	if err := s.repo.ResetWatermarks(ctx, Modules, baseline.UTC()); err != nil {
		return err
	}
	log.Info().Str("component", "sync_cursor").Time("baseline", baseline.UTC()).Msg("Watermarks reset")
	return nil
}

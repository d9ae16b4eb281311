// Путь: internal/service/pipeline/scheduler.go
package pipeline

import (
	"context"
	"fmt"
	"time"

	"github.com/rs/zerolog/log"
)

// RunStarter запускает оркестратор
type RunStarter interface {
	Run(ctx context.Context, opts RunOptions) *Result
}

// Scheduler запускает оркестратор раз в день в заданное время
type Scheduler struct {
	runner RunStarter
	hour   int
	minute int
	loc    *time.Location
	now    func() time.Time
	until  func(time.Time) time.Duration
	runCtx context.Context
}

// ParseClock разбирает время вида "06:00"
func ParseClock(value string) (int, int, error) {
	t, err := time.Parse("15:04", value)
	if err != nil {
		return 0, 0, fmt.Errorf("invalid schedule time %q: %w", value, err)
	}
	return t.Hour(), t.Minute(), nil
}

// NewScheduler создает планировщик
func NewScheduler(runner RunStarter, at string, loc *time.Location) (*Scheduler, error) {
	hour, minute, err := ParseClock(at)
	if err != nil {
		return nil, err
	}
	if loc == nil {
		loc = time.Local
	}
	return &Scheduler{
		runner: runner,
		hour:   hour,
		minute: minute,
		loc:    loc,
		now:    time.Now,
		until:  time.Until,
	}, nil
}

// NextRun - ближайший момент запуска строго после now
func NextRun(now time.Time, hour, minute int, loc *time.Location) time.Time {
	local := now.In(loc)
	next := time.Date(local.Year(), local.Month(), local.Day(), hour, minute, 0, 0, loc)
	if !next.After(local) {
		next = next.AddDate(0, 0, 1)
	}
	return next
}

// WithRunContext задает контекст самих запусков. По умолчанию запуск не отменяется вместе с Start.
func (s *Scheduler) WithRunContext(ctx context.Context) *Scheduler {
	s.runCtx = ctx
	return s
}

// Start блокируется до отмены ctx. Отмена ctx не прерывает уже идущий запуск:
// Start возвращается после его завершения. Ошибки запусков только логируются.
func (s *Scheduler) Start(ctx context.Context) {
	for ctx.Err() == nil {
		next := NextRun(s.now(), s.hour, s.minute, s.loc)
		log.Info().Str("component", "scheduler").Time("next_run", next).Msg("Daily pipeline scheduled")

		timer := time.NewTimer(s.until(next))
		select {
		case <-ctx.Done():
			timer.Stop()
		case <-timer.C:
			runCtx := s.runCtx
			if runCtx == nil {
				runCtx = context.WithoutCancel(ctx)
			}
			result := s.runner.Run(runCtx, RunOptions{Deliver: true})
			log.Info().
				Str("component", "scheduler").
				Str("run_id", result.RunID).
				Str("status", string(result.Status)).
				Msg("Scheduled run completed")
		}
	}
	log.Info().Str("component", "scheduler").Msg("Scheduler stopped")
}

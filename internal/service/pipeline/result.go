// Путь: internal/service/pipeline/result.go
package pipeline

import (
	"errors"
	"time"

	"zoho-crm-pulse/internal/domain"
)

// Status - итог запуска
type Status string

const (
	StatusSuccess Status = "success"
	StatusPartial Status = "partial"
	StatusFailed  Status = "failed"
)

// Result - типизированный итог запуска. Политику реакции выбирает вызывающий.
type Result struct {
	RunID       string                 `json:"runId"`
	Status      Status                 `json:"status"`
	LeadsSynced int                    `json:"leadsSynced"`
	DealsSynced int                    `json:"dealsSynced"`
	StartedAt   time.Time              `json:"startedAt"`
	FinishedAt  time.Time              `json:"finishedAt"`
	Errors      []string               `json:"errors,omitempty"`
	Payload     *domain.SummaryPayload `json:"payload,omitempty"`
	Delivered   bool                   `json:"delivered"`

	errs  []error
	fatal bool
}

// Err объединяет все ошибки запуска, nil при успехе
func (r *Result) Err() error {
	return errors.Join(r.errs...)
}

// Duration - длительность запуска
func (r *Result) Duration() time.Duration {
	return r.FinishedAt.Sub(r.StartedAt)
}

func (r *Result) fail(err error) {
	r.record(err)
	r.fatal = true
}

func (r *Result) record(err error) {
	r.errs = append(r.errs, err)
	r.Errors = append(r.Errors, err.Error())
}

func (r *Result) finish(now time.Time) {
	r.FinishedAt = now
	switch {
	case r.fatal:
		r.Status = StatusFailed
	case len(r.errs) > 0:
		r.Status = StatusPartial
	default:
		r.Status = StatusSuccess
	}
}

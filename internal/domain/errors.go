package domain

import (
	"errors"
	"fmt"
)

// ErrNotFound - запись отсутствует в хранилище
var ErrNotFound = errors.New("not found")

// AuthError - не удалось получить токен доступа к CRM. Фатальна для запуска.
type AuthError struct {
	Reason string
	Err    error
}

func (e *AuthError) Error() string {
	if e.Err != nil {
		return fmt.Sprintf("zoho auth error: %s: %v", e.Reason, e.Err)
	}
	return "zoho auth error: " + e.Reason
}

func (e *AuthError) Unwrap() error { return e.Err }

// UpstreamError - запрос страницы к CRM завершился ошибкой
type UpstreamError struct {
	Module     string
	Page       int
	StatusCode int
	Body       string
	Err        error
}

func (e *UpstreamError) Error() string {
	if e.StatusCode == 0 {
		return fmt.Sprintf("zoho %s page %d: %v", e.Module, e.Page, e.Err)
	}
	if e.Body != "" {
		return fmt.Sprintf("zoho %s page %d (status %d): %s", e.Module, e.Page, e.StatusCode, e.Body)
	}
	return fmt.Sprintf("zoho %s page %d (status %d)", e.Module, e.Page, e.StatusCode)
}

func (e *UpstreamError) Unwrap() error { return e.Err }

// StoreError - ошибка записи в локальное хранилище
type StoreError struct {
	Op  string
	Err error
}

func (e *StoreError) Error() string {
	return fmt.Sprintf("store %s: %v", e.Op, e.Err)
}

func (e *StoreError) Unwrap() error { return e.Err }

// InsightError - генерация текста недоступна, используется запасной текст
type InsightError struct {
	Kind    string
	Timeout bool
	Err     error
}

func (e *InsightError) Error() string {
	if e.Timeout {
		return fmt.Sprintf("insight %s timed out: %v", e.Kind, e.Err)
	}
	return fmt.Sprintf("insight %s failed: %v", e.Kind, e.Err)
}

func (e *InsightError) Unwrap() error { return e.Err }

// DeliveryError - не удалось отправить сообщение
type DeliveryError struct {
	Channel string
	Err     error
}

func (e *DeliveryError) Error() string {
	return fmt.Sprintf("delivery via %s failed: %v", e.Channel, e.Err)
}

func (e *DeliveryError) Unwrap() error { return e.Err }

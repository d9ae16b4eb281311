package postgres

import (
	"context"
	"time"

	"github.com/jmoiron/sqlx"

	repoInterface "zoho-crm-pulse/internal/repository/interface"
)

// operationTimeout - верхняя граница ожидания одного обращения к БД
const operationTimeout = 15 * time.Second

// upsertBatchSize - строк в одном INSERT ... VALUES
const upsertBatchSize = 500

// Repository - PostgreSQL реализация хранилища
type Repository struct {
	db *sqlx.DB
}

// NewRepository создает новый репозиторий
func NewRepository(db *sqlx.DB) *Repository {
	return &Repository{db: db}
}

var _ repoInterface.Repository = (*Repository)(nil)

func withTimeout(ctx context.Context) (context.Context, context.CancelFunc) {
	return context.WithTimeout(ctx, operationTimeout)
}

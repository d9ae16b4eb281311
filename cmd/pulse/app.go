package main

import (
	"fmt"

	"github.com/jmoiron/sqlx"
	_ "github.com/lib/pq"
	"github.com/rs/zerolog/log"

	"zoho-crm-pulse/config"
	"zoho-crm-pulse/internal/repository/postgres"
	"zoho-crm-pulse/internal/service/crmsync"
	"zoho-crm-pulse/internal/service/delivery"
	"zoho-crm-pulse/internal/service/encryption"
	"zoho-crm-pulse/internal/service/formatter"
	"zoho-crm-pulse/internal/service/insight"
	"zoho-crm-pulse/internal/service/metrics"
	"zoho-crm-pulse/internal/service/pipeline"
	"zoho-crm-pulse/internal/snapshot"
	"zoho-crm-pulse/internal/zoho"
)

// app - собранные зависимости процесса
type app struct {
	cfg       *config.Config
	db        *sqlx.DB
	repo      *postgres.Repository
	snapshots *snapshot.Store
	cursors   *crmsync.CursorStore
	engine    *metrics.Engine
	runner    *pipeline.Runner
}

// loadConfig читает конфигурацию и расшифровывает секреты enc:
func loadConfig() (*config.Config, error) {
	cfg := config.Load()

	enc := encryption.NewEncryptor(cfg.EncryptionKey)
	err := enc.OpenAll(map[string]*string{
		"ZOHO_CLIENT_SECRET":  &cfg.Zoho.ClientSecret,
		"ZOHO_REFRESH_TOKEN":  &cfg.Zoho.RefreshToken,
		"TWILIO_AUTH_TOKEN":   &cfg.Twilio.AuthToken,
		"YANDEX_BOT_TOKEN":    &cfg.Yandex.BotToken,
		"OPERATOR_JWT_SECRET": &cfg.OperatorJWTSecret,
		"DATABASE_DSN":        &cfg.DatabaseDSN,
	})
	if err != nil {
		return nil, err
	}
	return cfg, nil
}

// connect открывает БД и применяет миграции
func connect(cfg *config.Config) (*sqlx.DB, error) {
	db, err := sqlx.Connect("postgres", cfg.DatabaseDSN)
	if err != nil {
		return nil, fmt.Errorf("failed to connect to database: %w", err)
	}
	if err := postgres.RunMigrations(db.DB); err != nil {
		db.Close()
		return nil, fmt.Errorf("failed to run migrations: %w", err)
	}
	return db, nil
}

// newApp собирает все сервисы
func newApp() (*app, error) {
	cfg, err := loadConfig()
	if err != nil {
		return nil, err
	}

	db, err := connect(cfg)
	if err != nil {
		return nil, err
	}

	snapshots, err := snapshot.Open(cfg.CacheDir)
	if err != nil {
		db.Close()
		return nil, err
	}

	repo := postgres.NewRepository(db)
	loc := cfg.Location()

	broker := zoho.NewBroker(zoho.Credentials{
		ClientID:     cfg.Zoho.ClientID,
		ClientSecret: cfg.Zoho.ClientSecret,
		RefreshToken: cfg.Zoho.RefreshToken,
		TokenURL:     cfg.Zoho.AccountsURL,
	}, nil)
	zohoClient := zoho.NewClient(cfg.Zoho.APIURL, broker)

	cursors := crmsync.NewCursorStore(repo)
	reconciler := crmsync.NewReconciler(zohoClient, cursors, repo)
	engine := metrics.NewEngine(repo, loc)
	generator := insight.NewGenerator(cfg.OllamaBaseURL, cfg.OllamaModel, formatter.NewFormatter())

	runner := pipeline.NewRunner(pipeline.Deps{
		Cursors:   cursors,
		Syncer:    reconciler,
		Metrics:   engine,
		Insights:  generator,
		Summaries: repo,
		Snapshots: snapshots,
		Sender:    delivery.NewSender(cfg),
	}, cfg.SyncBaseline, loc)

	log.Info().
		Str("timezone", loc.String()).
		Str("delivery", cfg.DeliveryChannel).
		Str("model", cfg.OllamaModel).
		Msg("Application initialized")

	return &app{
		cfg:       cfg,
		db:        db,
		repo:      repo,
		snapshots: snapshots,
		cursors:   cursors,
		engine:    engine,
		runner:    runner,
	}, nil
}

func (a *app) Close() {
	if err := a.snapshots.Close(); err != nil {
		log.Warn().Err(err).Msg("Failed to close snapshot store")
	}
	a.db.Close()
}

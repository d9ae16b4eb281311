package main

import (
	"context"
	"errors"
	"net/http"
	"os"
	"os/signal"
	"sync"
	"syscall"
	"time"

	"github.com/labstack/echo/v4"
	echomw "github.com/labstack/echo/v4/middleware"
	"github.com/rs/zerolog/log"
	"github.com/spf13/cobra"

	"zoho-crm-pulse/internal/service/pipeline"
	"zoho-crm-pulse/internal/transport/api"
	"zoho-crm-pulse/internal/transport/middleware"
)

// drainTimeout - сколько ждать идущие запуски при остановке
const drainTimeout = 3 * time.Minute

func serveCmd() *cobra.Command {
	var noSchedule bool

	cmd := &cobra.Command{
		Use:   "serve",
		Short: "Start the HTTP API and the daily scheduler",
		RunE: func(cmd *cobra.Command, args []string) error {
			a, err := newApp()
			if err != nil {
				return err
			}
			defer a.Close()

			ctx, stop := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
			defer stop()

			auth := middleware.NewOperatorAuth(a.cfg.OperatorJWTSecret, a.cfg.OperatorAPIKeyHash)
			if !auth.Enabled() {
				log.Warn().Msg("Operator auth is not configured, manual trigger is open")
			}

			// Фоновые запуски переживают сигнал и отменяются только по истечении drainTimeout
			runCtx, cancelRuns := context.WithCancel(context.WithoutCancel(ctx))
			defer cancelRuns()

			handler := api.NewHandler(runCtx, a.repo, a.engine, a.runner, a.snapshots, a.cfg.Location())

			e := echo.New()
			e.HideBanner = true
			e.Use(middleware.Recovery())
			e.Use(middleware.RequestLogger())
			e.Use(echomw.CORS())
			api.SetupRoutes(e.Group("/api"), handler, auth)

			var wg sync.WaitGroup
			if !noSchedule {
				scheduler, err := pipeline.NewScheduler(a.runner, a.cfg.ScheduleAt, a.cfg.Location())
				if err != nil {
					return err
				}
				scheduler.WithRunContext(runCtx)

				wg.Add(1)
				go func() {
					defer wg.Done()
					scheduler.Start(ctx)
				}()
			}

			go func() {
				if err := e.Start(":" + a.cfg.Port); err != nil && !errors.Is(err, http.ErrServerClosed) {
					log.Error().Err(err).Msg("Server stopped")
					stop()
				}
			}()

			<-ctx.Done()
			log.Info().Msg("Shutting down")

			shutdownCtx, cancel := context.WithTimeout(context.Background(), 10*time.Second)
			defer cancel()
			if err := e.Shutdown(shutdownCtx); err != nil {
				log.Error().Err(err).Msg("Server shutdown failed")
			}

			drained := make(chan struct{})
			go func() {
				handler.Wait()
				wg.Wait()
				close(drained)
			}()

			select {
			case <-drained:
				log.Info().Msg("Background runs finished")
			case <-time.After(drainTimeout):
				log.Warn().Dur("timeout", drainTimeout).Msg("Background runs did not finish, cancelling")
				cancelRuns()
				<-drained
			}
			return nil
		},
	}

	cmd.Flags().BoolVar(&noSchedule, "no-schedule", false, "serve the API without the daily run")
	return cmd
}

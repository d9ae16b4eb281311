package main

import (
	"os"
	"strings"
	"time"

	"github.com/rs/zerolog"
	"github.com/rs/zerolog/log"
	"github.com/spf13/cobra"

	"zoho-crm-pulse/config"
)

func main() {
	root := &cobra.Command{
		Use:           "pulse",
		Short:         "Zoho CRM sync and daily revenue brief",
		SilenceUsage:  true,
		SilenceErrors: true,
		PersistentPreRun: func(cmd *cobra.Command, args []string) {
			setupLogging(config.Load())
		},
	}

	root.AddCommand(
		serveCmd(),
		runCmd(),
		resetCursorsCmd(),
		migrateCmd(),
		encryptSecretCmd(),
		hashAPIKeyCmd(),
		issueTokenCmd(),
	)

	if err := root.Execute(); err != nil {
		log.Error().Err(err).Msg("Command failed")
		os.Exit(1)
	}
}

// setupLogging настраивает глобальный zerolog
func setupLogging(cfg *config.Config) {
	level, err := zerolog.ParseLevel(strings.ToLower(cfg.LogLevel))
	if err != nil || level == zerolog.NoLevel {
		level = zerolog.InfoLevel
	}
	zerolog.SetGlobalLevel(level)
	zerolog.TimeFieldFormat = time.RFC3339

	if cfg.LogFormat == "console" {
		log.Logger = log.Output(zerolog.ConsoleWriter{Out: os.Stderr, TimeFormat: time.Kitchen})
	}
}

package main

import (
	"context"
	"fmt"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/rs/zerolog/log"
	"github.com/spf13/cobra"

	"zoho-crm-pulse/internal/service/crmsync"
	"zoho-crm-pulse/internal/service/encryption"
	"zoho-crm-pulse/internal/service/pipeline"
	"zoho-crm-pulse/internal/transport/middleware"
)

func runCmd() *cobra.Command {
	var deliver bool

	cmd := &cobra.Command{
		Use:   "run",
		Short: "Run the pipeline once",
		RunE: func(cmd *cobra.Command, args []string) error {
			a, err := newApp()
			if err != nil {
				return err
			}
			defer a.Close()

			ctx, stop := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
			defer stop()

			result := a.runner.Run(ctx, pipeline.RunOptions{Deliver: deliver})
			fmt.Fprintf(cmd.OutOrStdout(), "run %s: %s (leads %d, deals %d, %s)\n",
				result.RunID, result.Status, result.LeadsSynced, result.DealsSynced, result.Duration().Round(time.Millisecond))
			for _, e := range result.Errors {
				fmt.Fprintf(cmd.OutOrStdout(), "  - %s\n", e)
			}

			if result.Status == pipeline.StatusFailed {
				return result.Err()
			}
			return nil
		},
	}

	cmd.Flags().BoolVar(&deliver, "deliver", true, "send the brief to the configured channel")
	return cmd
}

func resetCursorsCmd() *cobra.Command {
	return &cobra.Command{
		Use:   "reset-cursors",
		Short: "Reset sync watermarks of all modules to the baseline",
		RunE: func(cmd *cobra.Command, args []string) error {
			a, err := newApp()
			if err != nil {
				return err
			}
			defer a.Close()

			if err := a.cursors.ResetAll(cmd.Context(), a.cfg.SyncBaseline); err != nil {
				return err
			}
			log.Info().Strs("modules", crmsync.Modules).Time("baseline", a.cfg.SyncBaseline).Msg("Watermarks reset")
			return nil
		},
	}
}

func migrateCmd() *cobra.Command {
	return &cobra.Command{
		Use:   "migrate",
		Short: "Apply database migrations",
		RunE: func(cmd *cobra.Command, args []string) error {
			cfg, err := loadConfig()
			if err != nil {
				return err
			}
			db, err := connect(cfg)
			if err != nil {
				return err
			}
			defer db.Close()

			log.Info().Msg("Migrations applied")
			return nil
		},
	}
}

func encryptSecretCmd() *cobra.Command {
	return &cobra.Command{
		Use:   "encrypt-secret <value>",
		Short: "Encrypt a secret with ENCRYPTION_KEY for use in the environment",
		Args:  cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			cfg, err := loadConfig()
			if err != nil {
				return err
			}
			if cfg.EncryptionKey == "" {
				return fmt.Errorf("ENCRYPTION_KEY is not set")
			}
			sealed, err := encryption.NewEncryptor(cfg.EncryptionKey).Seal(args[0])
			if err != nil {
				return err
			}
			fmt.Fprintln(cmd.OutOrStdout(), sealed)
			return nil
		},
	}
}

func hashAPIKeyCmd() *cobra.Command {
	return &cobra.Command{
		Use:   "hash-api-key <key>",
		Short: "Print the bcrypt hash for OPERATOR_API_KEY_HASH",
		Args:  cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			hash, err := middleware.HashAPIKey(args[0])
			if err != nil {
				return err
			}
			fmt.Fprintln(cmd.OutOrStdout(), hash)
			return nil
		},
	}
}

func issueTokenCmd() *cobra.Command {
	var ttl time.Duration

	cmd := &cobra.Command{
		Use:   "issue-token <subject>",
		Short: "Issue an operator JWT for the manual trigger",
		Args:  cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			cfg, err := loadConfig()
			if err != nil {
				return err
			}
			token, err := middleware.NewOperatorAuth(cfg.OperatorJWTSecret, "").GenerateJWT(args[0], ttl)
			if err != nil {
				return err
			}
			fmt.Fprintln(cmd.OutOrStdout(), token)
			return nil
		},
	}

	cmd.Flags().DurationVar(&ttl, "ttl", 24*time.Hour, "token lifetime")
	return cmd
}

package main

import (
	"fmt"
	"time"

	"github.com/spf13/cobra"

	"github.com/kibanana/geteam-http-api/internal/auth"
	"github.com/kibanana/geteam-http-api/internal/db"
	"github.com/kibanana/geteam-http-api/internal/reconcile"
	"github.com/kibanana/geteam-http-api/internal/store/postgres"
)

var migrateCmd = &cobra.Command{
	Use:   "migrate",
	Short: "Apply the PostgreSQL schema",
	RunE: func(cmd *cobra.Command, args []string) error {
		cfg, _, err := loadConfig()
		if err != nil {
			return fmt.Errorf("config: %w", err)
		}
		ctx := cmd.Context()
		pool, err := db.NewPostgresPool(ctx, cfg.DatabaseURL)
		if err != nil {
			return fmt.Errorf("postgres: %w", err)
		}
		defer pool.Close()

		if err := db.Migrate(ctx, pool); err != nil {
			return err
		}
		fmt.Fprintln(cmd.OutOrStdout(), "schema applied")
		return nil
	},
}

var reconcileCmd = &cobra.Command{
	Use:   "reconcile",
	Short: "Recompute board application and accept counts once",
	RunE: func(cmd *cobra.Command, args []string) error {
		cfg, logger, err := loadConfig()
		if err != nil {
			return fmt.Errorf("config: %w", err)
		}
		ctx := cmd.Context()
		pool, err := db.NewPostgresPool(ctx, cfg.DatabaseURL)
		if err != nil {
			return fmt.Errorf("postgres: %w", err)
		}
		defer pool.Close()

		fixed, err := reconcile.New(postgres.New(pool), cfg.ReconcileSpec, logger).RunOnce(ctx)
		if err != nil {
			return err
		}
		fmt.Fprintf(cmd.OutOrStdout(), "%d board(s) corrected\n", fixed)
		return nil
	},
}

var tokenTTL time.Duration

var tokenCmd = &cobra.Command{
	Use:   "token <accountId>",
	Short: "Sign a JWT for accountId with JWT_SECRET (development only)",
	Args:  cobra.ExactArgs(1),
	RunE: func(cmd *cobra.Command, args []string) error {
		cfg, _, err := loadConfig()
		if err != nil {
			return fmt.Errorf("config: %w", err)
		}
		token, err := auth.NewVerifier(cfg.JWTSecret, cfg.JWTIssuer).Issue(args[0], tokenTTL)
		if err != nil {
			return err
		}
		fmt.Fprintln(cmd.OutOrStdout(), token)
		return nil
	},
}

func init() {
	tokenCmd.Flags().DurationVar(&tokenTTL, "ttl", 24*time.Hour, "token lifetime")
	rootCmd.AddCommand(migrateCmd, reconcileCmd, tokenCmd)
}

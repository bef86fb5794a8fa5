package main

import (
	"context"
	"errors"
	"fmt"

	"github.com/spf13/cobra"
	"go.uber.org/zap"

	"github.com/spec-kit/mentor-queue/internal/config"
	"github.com/spec-kit/mentor-queue/internal/observability"
	"github.com/spec-kit/mentor-queue/internal/persistence"
)

var steps int

func newMigrateCommand() *cobra.Command {
	cmd := &cobra.Command{
		Use:   "migrate",
		Short: "Database migration tools",
	}

	down := &cobra.Command{
		Use:   "down",
		Short: "Rollback migrations",
		RunE: withDatabase(func(ctx context.Context, pg *persistence.Postgres, logger *zap.Logger) error {
			return persistence.RollbackMigrations(ctx, pg.PoolHandle(), logger, steps)
		}),
	}
	down.Flags().IntVarP(&steps, "steps", "n", 1, "Number of migrations to rollback")

	cmd.AddCommand(
		&cobra.Command{
			Use:   "up",
			Short: "Run all pending migrations",
			RunE: withDatabase(func(ctx context.Context, pg *persistence.Postgres, logger *zap.Logger) error {
				return persistence.RunMigrations(ctx, pg.PoolHandle(), logger)
			}),
		},
		down,
		&cobra.Command{
			Use:   "status",
			Short: "Show migration status",
			RunE: withDatabase(func(ctx context.Context, pg *persistence.Postgres, logger *zap.Logger) error {
				return persistence.MigrationStatus(ctx, pg.PoolHandle(), logger)
			}),
		},
	)
	return cmd
}

func withDatabase(fn func(context.Context, *persistence.Postgres, *zap.Logger) error) func(*cobra.Command, []string) error {
	return func(cmd *cobra.Command, _ []string) error {
		cfg, err := config.Load()
		if err != nil {
			return fmt.Errorf("failed to load config: %w", err)
		}
		logger, err := observability.NewLogger(cfg.Logger)
		if err != nil {
			return fmt.Errorf("failed to init logger: %w", err)
		}
		defer logger.Sync() //nolint:errcheck

		if cfg.Postgres.DSN == "" {
			return errors.New("POSTGRES_DSN is required for migrations")
		}
		pg, err := persistence.NewPostgres(cmd.Context(), cfg.Postgres, logger)
		if err != nil {
			return fmt.Errorf("failed to connect postgres: %w", err)
		}
		defer pg.Close()

		return fn(cmd.Context(), pg, logger)
	}
}

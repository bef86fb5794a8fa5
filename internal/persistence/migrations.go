package persistence

import (
	"context"
	"database/sql"
	"embed"
	"fmt"

	"github.com/jackc/pgx/v5/pgxpool"
	"github.com/jackc/pgx/v5/stdlib"
	"github.com/pressly/goose/v3"
	"go.uber.org/zap"
)

const migrationsDir = "migrations"

//go:embed migrations/*.sql
var migrationFS embed.FS

// RunMigrations applies every pending migration.
func RunMigrations(ctx context.Context, pool *pgxpool.Pool, logger *zap.Logger) error {
	return withGoose(pool, logger, func(m *migrator) error {
		before, err := m.version(ctx)
		if err != nil {
			return err
		}
		if err := goose.UpContext(ctx, m.db(), migrationsDir); err != nil {
			return fmt.Errorf("apply migrations: %w", err)
		}
		after, err := m.version(ctx)
		if err != nil {
			return err
		}
		logger.Info("migrations applied", zap.Int64("from_version", before), zap.Int64("to_version", after))
		return nil
	})
}

// RollbackMigrations reverts the given number of migrations.
func RollbackMigrations(ctx context.Context, pool *pgxpool.Pool, logger *zap.Logger, steps int) error {
	if steps <= 0 {
		steps = 1
	}
	return withGoose(pool, logger, func(m *migrator) error {
		for i := 0; i < steps; i++ {
			if err := goose.DownContext(ctx, m.db(), migrationsDir); err != nil {
				return fmt.Errorf("rollback migration: %w", err)
			}
		}
		logger.Info("migrations rolled back", zap.Int("steps", steps))
		return nil
	})
}

// MigrationStatus logs the applied state of each migration.
func MigrationStatus(ctx context.Context, pool *pgxpool.Pool, logger *zap.Logger) error {
	return withGoose(pool, logger, func(m *migrator) error {
		return goose.StatusContext(ctx, m.db(), migrationsDir)
	})
}

type migrator struct {
	sqlDB *sql.DB
}

func (m *migrator) db() *sql.DB {
	return m.sqlDB
}

func (m *migrator) version(ctx context.Context) (int64, error) {
	v, err := goose.GetDBVersionContext(ctx, m.db())
	if err != nil {
		return 0, fmt.Errorf("read migration version: %w", err)
	}
	return v, nil
}

func withGoose(pool *pgxpool.Pool, logger *zap.Logger, fn func(*migrator) error) error {
	if pool == nil {
		logger.Warn("no postgres pool available; skipping migrations")
		return nil
	}
	goose.SetBaseFS(migrationFS)
	goose.SetLogger(gooseLogger{logger.Sugar().With("component", "goose")})
	if err := goose.SetDialect("postgres"); err != nil {
		return fmt.Errorf("set goose dialect: %w", err)
	}

	db := stdlib.OpenDBFromPool(pool)
	defer db.Close()
	return fn(&migrator{sqlDB: db})
}

type gooseLogger struct {
	s *zap.SugaredLogger
}

func (l gooseLogger) Fatalf(format string, v ...any) { l.s.Fatalf(format, v...) }
func (l gooseLogger) Printf(format string, v ...any) { l.s.Infof(format, v...) }

package cli

import (
	"context"
	"fmt"

	"quiz-retry-service/internal/config"
	"quiz-retry-service/internal/infra/postgres"
	pgmigrations "quiz-retry-service/internal/infra/postgres/migrations"
	"quiz-retry-service/internal/logger"
	"github.com/spf13/cobra"
	"github.com/uptrace/bun/migrate"
)

// NewMigrateCmd applies database migrations.
func NewMigrateCmd(configPath *string) *cobra.Command {
	return &cobra.Command{
		Use:   "migrate",
		Short: "Create or upgrade the Postgres quiz catalog schema",
		RunE: func(cmd *cobra.Command, args []string) error {
			cfg, log, err := bootstrap(*configPath)
			if err != nil {
				return err
			}
			defer log.Sync()
			return runMigrationsWithConfig(cmd.Context(), cfg, log)
		},
	}
}

func runMigrationsWithConfig(ctx context.Context, cfg config.Config, log *logger.Logger) error {
	if cfg.Postgres.URL == "" {
		return fmt.Errorf("postgres url not configured")
	}

	db := postgres.OpenBun(cfg.Postgres.URL)
	defer db.Close()

	migrator := migrate.NewMigrator(db, pgmigrations.Migrations)

	if err := migrator.Init(ctx); err != nil {
		return err
	}

	group, err := migrator.Migrate(ctx)
	if err != nil {
		return err
	}
	if group.IsZero() {
		log.Info("no new migrations")
		return nil
	}
	log.Info("migrations applied", "group", group.String())
	return nil
}

// bootstrap loads config and builds the logger every subcommand shares.
func bootstrap(path string) (config.Config, *logger.Logger, error) {
	cfg, err := config.Load(path)
	if err != nil {
		return cfg, nil, fmt.Errorf("load config %s: %w", path, err)
	}
	log, err := logger.New(cfg.Log.Mode)
	if err != nil {
		return cfg, nil, fmt.Errorf("init logger: %w", err)
	}
	return cfg, log, nil
}

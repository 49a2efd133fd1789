package cli

import (
	"fmt"

	"quiz-retry-service/internal/infra/postgres"
	"quiz-retry-service/internal/infra/sqlite"
	"github.com/spf13/cobra"
)

// NewImportCmd copies the JSON quiz files of catalog.dir into the configured database.
func NewImportCmd(configPath *string) *cobra.Command {
	var target string
	cmd := &cobra.Command{
		Use:   "import",
		Short: "Import quiz JSON files into Postgres or SQLite",
		RunE: func(cmd *cobra.Command, args []string) error {
			ctx := cmd.Context()
			cfg, log, err := bootstrap(*configPath)
			if err != nil {
				return err
			}
			defer log.Sync()

			docs, err := filesystemLoader(cfg, log).Documents(ctx)
			if err != nil {
				return err
			}
			if len(docs) == 0 {
				log.Warn("nothing to import", "dir", catalogDir(cfg))
				return nil
			}

			if target == "" {
				target = "postgres"
				if cfg.Postgres.URL == "" {
					target = "sqlite"
				}
			}

			var n int
			switch target {
			case "postgres":
				if err := runMigrationsWithConfig(ctx, cfg, log); err != nil {
					return err
				}
				db := postgres.OpenBun(cfg.Postgres.URL)
				defer db.Close()
				n, err = postgres.Import(ctx, db, docs)
			case "sqlite":
				if cfg.SQLite.Path == "" {
					return fmt.Errorf("sqlite path not configured")
				}
				loader, openErr := sqlite.Open(ctx, cfg.SQLite.Path)
				if openErr != nil {
					return openErr
				}
				defer loader.Close()
				n, err = loader.Import(ctx, docs)
			default:
				return fmt.Errorf("unknown import target %q", target)
			}
			if err != nil {
				return err
			}
			log.Info("quizzes imported", "target", target, "count", n)
			return nil
		},
	}
	cmd.Flags().StringVar(&target, "target", "", "postgres or sqlite (default: postgres when configured)")
	return cmd
}

// NewListCmd prints the quiz catalog the server would offer.
func NewListCmd(configPath *string) *cobra.Command {
	return &cobra.Command{
		Use:   "list",
		Short: "List available quizzes",
		RunE: func(cmd *cobra.Command, args []string) error {
			ctx := cmd.Context()
			cfg, log, err := bootstrap(*configPath)
			if err != nil {
				return err
			}
			defer log.Sync()

			loader, source, closeLoader, err := openCatalog(ctx, cfg, log)
			if err != nil {
				return err
			}
			defer closeLoader()

			quizzes, err := loader.ListQuizzes(ctx)
			if err != nil {
				return err
			}
			out := cmd.OutOrStdout()
			fmt.Fprintf(out, "%d quizzes from %s\n", len(quizzes), source)
			for _, q := range quizzes {
				fmt.Fprintf(out, "  %-24s %s\n", q.ID, q.Title)
			}
			return nil
		},
	}
}

package cmd

import (
	"context"
	"errors"
	"fmt"

	"github.com/spf13/cobra"

	"github.com/kozaktomas/missing-persons/internal/config"
	"github.com/kozaktomas/missing-persons/internal/database"
	"github.com/kozaktomas/missing-persons/internal/database/postgres"
	"github.com/kozaktomas/missing-persons/internal/database/sqlite"
)

var migrateCmd = &cobra.Command{
	Use:   "migrate",
	Short: "Create or upgrade the database schema",
	Long: `Apply pending schema migrations for the configured store backend.

PostgreSQL migrations are embedded SQL files tracked in schema_migrations.
The SQLite schema is created in place. The memory backend has no schema.`,
	Args: cobra.NoArgs,
	RunE: runMigrate,
}

func init() {
	rootCmd.AddCommand(migrateCmd)
}

func runMigrate(cmd *cobra.Command, args []string) error {
	ctx := context.Background()
	cfg := config.Load()

	switch cfg.Store.Backend {
	case database.BackendPostgres:
		if cfg.Database.URL == "" {
			return errors.New("DATABASE_URL environment variable is required")
		}
		pool, err := postgres.NewPool(ctx, &cfg.Database)
		if err != nil {
			return fmt.Errorf("failed to connect to PostgreSQL: %w", err)
		}
		defer pool.Close()

		applied, err := pool.Migrate(ctx)
		if err != nil {
			return fmt.Errorf("failed to run migrations: %w", err)
		}
		if len(applied) == 0 {
			fmt.Println("Database schema is up to date")
			return nil
		}
		for _, name := range applied {
			fmt.Printf("Applied %s\n", name)
		}
		return nil

	case database.BackendSQLite:
		store, err := sqlite.NewPersonStore(cfg.SQLite.Path, cfg.ActiveModel().Dim)
		if err != nil {
			return err
		}
		defer store.Close()
		fmt.Printf("SQLite schema ready at %s\n", cfg.SQLite.Path)
		return nil

	case database.BackendMemory:
		fmt.Println("Memory backend has no schema")
		return nil
	}
	return fmt.Errorf("unknown store backend %q", cfg.Store.Backend)
}

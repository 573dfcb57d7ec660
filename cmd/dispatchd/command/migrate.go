package command

import (
	"context"
	"fmt"
	"time"

	"github.com/spf13/cobra"

	"dispatch/internal/app"
	"dispatch/internal/repository/postgres"
)

var migrateCmd = &cobra.Command{
	Use:   "migrate",
	Short: "Create the drivers and rides tables",
	Long: `Create the drivers and rides tables in the configured PostgreSQL
database. Existing tables are left untouched.`,
	Args: cobra.NoArgs,
	RunE: migrate,
}

func migrate(cmd *cobra.Command, _ []string) error {
	cfg, logger, err := loadConfig()
	if err != nil {
		return err
	}

	ctx, cancel := context.WithTimeout(cmd.Context(), 30*time.Second)
	defer cancel()

	db, err := app.NewDatabase(ctx, cfg.Database, nil)
	if err != nil {
		return fmt.Errorf("connecting to database: %w", err)
	}
	defer db.Close()

	if err := postgres.Migrate(ctx, db); err != nil {
		return err
	}
	logger.Info("schema applied", "database", cfg.Database.DBName)
	return nil
}

package main

import (
	"context"
	"fmt"
	"os"

	"taskmaster/internal/platform/config"
	"taskmaster/internal/platform/database"
	"taskmaster/internal/platform/logging"

	"github.com/spf13/cobra"
)

var migrateCmd = &cobra.Command{
	Use:   "migrate",
	Short: "Create or update the PostgreSQL schema",
	Long: `Apply the schema to the database described by the configuration.

Examples:
  taskmaster migrate
  taskmaster migrate --config config.yaml`,
	RunE: runMigrate,
}

func runMigrate(cmd *cobra.Command, args []string) error {
	cfg, err := config.Load(configPath)
	if err != nil {
		return fmt.Errorf("load config: %w", err)
	}
	logger := logging.Setup(os.Stderr, cfg.LogLevel, cfg.LogFormat)

	ctx := cmd.Context()
	if ctx == nil {
		ctx = context.Background()
	}
	db, err := database.Connect(ctx, cfg.DBConnStr)
	if err != nil {
		return err
	}
	defer database.Close()

	if err := database.Migrate(ctx, db); err != nil {
		return err
	}
	logger.Info("schema is up to date", "database", cfg.DBName)
	return nil
}

package cmd

import (
	"fmt"

	"github.com/spf13/cobra"

	"github.com/selldesk/concierge/db"
	"github.com/selldesk/concierge/internal/config"
	"github.com/selldesk/concierge/internal/log"
)

var migrateCmd = &cobra.Command{
	Use:   "migrate",
	Short: "Run pending database migrations",
	Long: `Apply all pending database migrations.

Migrations are embedded in the binary and tracked in the schema_migrations
table, so running this repeatedly is safe.`,
	RunE: func(*cobra.Command, []string) error {
		return runMigrate()
	},
}

func init() {
	rootCmd.AddCommand(migrateCmd)
}

func runMigrate() error {
	cfg, err := config.Load()
	if err != nil {
		return fmt.Errorf("loading config: %w", err)
	}

	logger := log.New(log.Config{})
	if err := db.Migrate(cfg.PostgresURL(), logger); err != nil {
		return fmt.Errorf("migrating database: %w", err)
	}
	return nil
}

package app

import (
	"fmt"
	"log/slog"

	"github.com/golang-migrate/migrate/v4"
	"github.com/spf13/cobra"
)

var migrateStatusCmd = &cobra.Command{
	Use:   "status",
	Short: "Show the current database migration version",
	Long: `Show the current schema version of the database named in the config
file, and whether the last migration left it in a dirty state.`,
	RunE: runMigrateStatus,
}

func runMigrateStatus(cmd *cobra.Command, _ []string) error {
	m, cfg, err := newMigrator(cmd)
	if err != nil {
		return err
	}

	version, dirty, err := m.Version()
	if err != nil {
		if err == migrate.ErrNilVersion {
			slog.Info("No migrations have been applied",
				"database", fmt.Sprintf("%s:%d/%s", cfg.Database.Host, cfg.Database.Port, cfg.Database.Database))
			return nil
		}
		return fmt.Errorf("failed to get migration version: %w", err)
	}

	slog.Info("Current migration version",
		"version", version,
		"dirty", dirty,
		"database", fmt.Sprintf("%s:%d/%s", cfg.Database.Host, cfg.Database.Port, cfg.Database.Database))
	if dirty {
		slog.Warn("Migration state is dirty - manual intervention may be required")
	}
	return nil
}

package cmd

import (
	"context"
	"fmt"
	"log/slog"

	"github.com/spf13/cobra"

	"github.com/jmylchreest/reelarr/internal/database"
	"github.com/jmylchreest/reelarr/internal/database/migrations"
	"github.com/jmylchreest/reelarr/internal/observability"
)

var migrateCmd = &cobra.Command{
	Use:   "migrate",
	Short: "Database migration commands",
	Long: `Commands for managing the catalog schema.

The schema is migrated automatically by every command that opens the catalog;
these commands exist for inspecting and rolling back migrations.`,
}

var migrateUpCmd = &cobra.Command{
	Use:   "up",
	Short: "Apply pending migrations",
	Args:  cobra.NoArgs,
	RunE: func(cmd *cobra.Command, _ []string) error {
		return withMigrator(cmd, func(ctx context.Context, m *migrations.Migrator) error {
			return m.Up(ctx)
		})
	},
}

var migrateDownCmd = &cobra.Command{
	Use:   "down",
	Short: "Roll back the latest migration",
	Args:  cobra.NoArgs,
	RunE: func(cmd *cobra.Command, _ []string) error {
		return withMigrator(cmd, func(ctx context.Context, m *migrations.Migrator) error {
			return m.Down(ctx)
		})
	},
}

var migrateStatusCmd = &cobra.Command{
	Use:   "status",
	Short: "Show applied and pending migrations",
	Args:  cobra.NoArgs,
	RunE: func(cmd *cobra.Command, _ []string) error {
		return withMigrator(cmd, func(ctx context.Context, m *migrations.Migrator) error {
			statuses, err := m.Status(ctx)
			if err != nil {
				return err
			}
			rows := make([][]string, 0, len(statuses))
			for _, st := range statuses {
				applied := "pending"
				if st.Applied && st.AppliedAt != nil {
					applied = st.AppliedAt.Format("2006-01-02 15:04:05")
				}
				rows = append(rows, []string{st.Version, st.Description, applied})
			}
			renderTable(cmd.OutOrStdout(), []string{"Version", "Description", "Applied"}, rows)
			return nil
		})
	},
}

func init() {
	rootCmd.AddCommand(migrateCmd)
	migrateCmd.AddCommand(migrateUpCmd, migrateDownCmd, migrateStatusCmd)
}

func withMigrator(cmd *cobra.Command, fn func(ctx context.Context, m *migrations.Migrator) error) error {
	cfg, err := loadConfig()
	if err != nil {
		return err
	}
	logger := observability.WithComponent(slog.Default(), "database")

	db, err := database.New(cfg.Database, logger, nil)
	if err != nil {
		return fmt.Errorf("opening database: %w", err)
	}
	defer func() { _ = db.Close() }()

	m := migrations.NewMigrator(db.DB, logger)
	m.RegisterAll(migrations.AllMigrations())
	return fn(cmd.Context(), m)
}

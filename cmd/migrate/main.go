// cmd/migrate/main.go
package main

import (
	"database/sql"
	"log/slog"
	"os"

	"finance-tracker/internal/app"
	"finance-tracker/internal/storage/postgres"

	"github.com/spf13/cobra"
)

var dsn string

var rootCmd = &cobra.Command{
	Use:   "migrate",
	Short: "Manage the finance-tracker database schema",
	Long: `Apply, roll back or inspect the embedded goose migrations.

The connection string comes from --dsn or DATABASE_URL.

Example:
  migrate up
  migrate status --dsn postgres://localhost:5432/finance`,
	SilenceUsage: true,
}

var upCmd = &cobra.Command{
	Use:   "up",
	Short: "Apply all pending migrations",
	RunE: func(cmd *cobra.Command, args []string) error {
		return withDB(func(db *sql.DB) error {
			return postgres.MigrateDB(cmd.Context(), db)
		})
	},
}

var downCmd = &cobra.Command{
	Use:   "down",
	Short: "Roll back the most recent migration",
	RunE: func(cmd *cobra.Command, args []string) error {
		return withDB(func(db *sql.DB) error {
			return postgres.Rollback(cmd.Context(), db)
		})
	},
}

var statusCmd = &cobra.Command{
	Use:   "status",
	Short: "Show which migrations are applied",
	RunE: func(cmd *cobra.Command, args []string) error {
		return withDB(func(db *sql.DB) error {
			return postgres.Status(cmd.Context(), db)
		})
	},
}

func withDB(fn func(db *sql.DB) error) error {
	db, err := postgres.OpenSQL(dsn)
	if err != nil {
		return err
	}
	defer db.Close()
	return fn(db)
}

func main() {
	cfg := app.MustLoadConfig()

	rootCmd.PersistentFlags().StringVar(&dsn, "dsn", cfg.DBConn, "Postgres connection string")
	rootCmd.AddCommand(upCmd, downCmd, statusCmd)

	ctx, stop := app.SignalContext()
	defer stop()

	if err := rootCmd.ExecuteContext(ctx); err != nil {
		slog.Error("Migration failed", "error", err)
		os.Exit(1)
	}
}

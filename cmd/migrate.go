package cmd

import (
	"context"
	"fmt"
	"log/slog"
	"time"

	"github.com/matrixise/chainbridge/internal/config"
	"github.com/matrixise/chainbridge/internal/logger"
	"github.com/matrixise/chainbridge/internal/storage"
	"github.com/spf13/cobra"
)

var migrateTimeout time.Duration

var migrateCmd = &cobra.Command{
	Use:   "migrate",
	Short: "Manage the transfer journal schema",
	Long: `Run, rollback, or check the status of the transfer journal migrations.
The journal database is taken from DATABASE_URL.`,
}

// migration is one goose operation exposed as a subcommand.
type migration struct {
	use, short string
	run        func(ctx context.Context, dsn string) error
	done       string
}

var migrations = []migration{
	{use: "up", short: "Apply all pending journal migrations", run: storage.RunMigrations, done: "Journal schema is up to date"},
	{use: "down", short: "Roll back the last journal migration", run: storage.MigrateDown, done: "Journal migration rolled back"},
	{use: "status", short: "Show journal migration status", run: storage.MigrateStatus},
}

func init() {
	rootCmd.AddCommand(migrateCmd)
	for _, m := range migrations {
		migrateCmd.AddCommand(&cobra.Command{
			Use:   m.use,
			Short: m.short,
			Args:  cobra.NoArgs,
			RunE: func(cmd *cobra.Command, args []string) error {
				return runMigration(m)
			},
		})
	}

	migrateCmd.PersistentFlags().DurationVar(&migrateTimeout, "timeout", time.Minute, "give up after this long")
}

func runMigration(m migration) error {
	logger.Setup(logLevel)

	dsn, err := config.RequireDatabaseURL()
	if err != nil {
		return err
	}

	ctx, cancel := context.WithTimeout(context.Background(), migrateTimeout)
	defer cancel()
	if err := m.run(ctx, dsn); err != nil {
		slog.Error("Journal migration failed", "command", m.use, "error", err)
		return fmt.Errorf("migrate %s: %w", m.use, err)
	}

	if m.done != "" {
		slog.Info(m.done)
	}
	return nil
}

package main

import (
	"context"
	"database/sql"
	"errors"
	"fmt"
	"io"
	"io/fs"
	"os"
	"os/signal"
	"syscall"
	"text/tabwriter"
	"time"

	_ "github.com/lib/pq"
	"github.com/urfave/cli/v3"
	"go.uber.org/zap"

	"github.com/twosmallonions/recipes/backend/internal/database"
	"github.com/twosmallonions/recipes/backend/internal/logger"
	"github.com/twosmallonions/recipes/backend/migrations"
)

func main() {
	ctx, stop := signal.NotifyContext(context.Background(), syscall.SIGINT, syscall.SIGTERM)
	defer stop()

	if err := newCommand(os.Stdout).Run(ctx, os.Args); err != nil {
		fmt.Fprintf(os.Stderr, "migrate: %v\n", err)
		os.Exit(1)
	}
}

func newCommand(out io.Writer) *cli.Command {
	return &cli.Command{
		Name:  "migrate",
		Usage: "Manage the recipes database schema",
		Flags: []cli.Flag{
			&cli.StringFlag{
				Name:     "database-url",
				Usage:    "PostgreSQL connection string",
				Sources:  cli.EnvVars("DATABASE_URL"),
				Required: true,
			},
			&cli.StringFlag{
				Name:    "dir",
				Usage:   "Directory of SQL migrations (defaults to the embedded set)",
				Sources: cli.EnvVars("MIGRATIONS_DIR"),
			},
			&cli.StringFlag{
				Name:    "log-level",
				Value:   "info",
				Usage:   "Log level (debug, info, warn, error)",
				Sources: cli.EnvVars("LOG_LEVEL"),
			},
		},
		Commands: []*cli.Command{
			{
				Name:  "up",
				Usage: "Apply all pending migrations",
				Action: withMigrator(func(ctx context.Context, m *database.Migrator) error {
					applied, err := m.Up(ctx)
					for _, name := range applied {
						fmt.Fprintf(out, "applied %s\n", name)
					}
					if err != nil {
						return err
					}
					if len(applied) == 0 {
						fmt.Fprintln(out, "schema is up to date")
					}
					return nil
				}),
			},
			{
				Name:  "down",
				Usage: "Roll back the most recent migration",
				Action: withMigrator(func(ctx context.Context, m *database.Migrator) error {
					name, err := m.Down(ctx)
					if errors.Is(err, database.ErrNothingToRollback) {
						fmt.Fprintln(out, "no migrations to roll back")
						return nil
					}
					if err != nil {
						return err
					}
					fmt.Fprintf(out, "rolled back %s\n", name)
					return nil
				}),
			},
			{
				Name:  "status",
				Usage: "List migrations and when they were applied",
				Action: withMigrator(func(ctx context.Context, m *database.Migrator) error {
					status, err := m.Status(ctx)
					if err != nil {
						return err
					}
					return printStatus(out, status)
				}),
			},
		},
	}
}

func withMigrator(fn func(context.Context, *database.Migrator) error) cli.ActionFunc {
	return func(ctx context.Context, cmd *cli.Command) error {
		log, err := logger.New(cmd.String("log-level"), "console")
		if err != nil {
			return err
		}
		defer func() { _ = log.Sync() }()

		db, err := sql.Open("postgres", cmd.String("database-url"))
		if err != nil {
			return fmt.Errorf("failed to open database: %w", err)
		}
		defer db.Close()

		pingCtx, cancel := context.WithTimeout(ctx, 10*time.Second)
		defer cancel()
		if err := db.PingContext(pingCtx); err != nil {
			return fmt.Errorf("failed to connect to database: %w", err)
		}
		log.Debug("connected to database")

		return fn(ctx, database.NewMigrator(db, migrationFiles(cmd.String("dir")), log.With(zap.String("component", "migrate"))))
	}
}

func migrationFiles(dir string) fs.FS {
	if dir == "" {
		return migrations.FS
	}
	return os.DirFS(dir)
}

func printStatus(out io.Writer, status []database.MigrationStatus) error {
	w := tabwriter.NewWriter(out, 0, 0, 2, ' ', 0)
	fmt.Fprintln(w, "MIGRATION\tAPPLIED AT")
	for _, s := range status {
		applied := "pending"
		if s.AppliedAt != nil {
			applied = s.AppliedAt.UTC().Format(time.RFC3339)
		}
		fmt.Fprintf(w, "%s\t%s\n", s.Name, applied)
	}
	return w.Flush()
}

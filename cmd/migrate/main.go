package main

import (
	"context"
	"errors"
	"flag"
	"fmt"
	"io"
	"os"
	"strings"
	"time"

	"github.com/vladislavdragonenkov/specialorders/internal/app"
	"github.com/vladislavdragonenkov/specialorders/internal/storage/postgres"
)

const migrateTimeout = 30 * time.Second

type options struct {
	direction string
	steps     int
	dsn       string
}

func main() {
	ctx, cancel := context.WithTimeout(context.Background(), migrateTimeout)
	err := run(ctx, os.Args[1:], os.Getenv, os.Stdout)
	cancel()
	if err != nil {
		_, _ = fmt.Fprintln(os.Stderr, err)
		os.Exit(1)
	}
}

func parseOptions(args []string, getenv func(string) string) (options, error) {
	var opts options
	fs := flag.NewFlagSet("migrate", flag.ContinueOnError)
	fs.SetOutput(io.Discard)
	fs.StringVar(&opts.direction, "direction", "up", "up|down|status")
	fs.IntVar(&opts.steps, "steps", 0, "сколько миграций применить (0 = все) или откатить (0 = одну)")
	fs.StringVar(&opts.dsn, "dsn", "", "DSN PostgreSQL, по умолчанию "+app.EnvPostgresDSN)
	if err := fs.Parse(args); err != nil {
		return options{}, err
	}

	opts.direction = strings.ToLower(strings.TrimSpace(opts.direction))
	switch opts.direction {
	case "up", "down", "status":
	default:
		return options{}, fmt.Errorf("unsupported direction %q (use up|down|status)", opts.direction)
	}

	opts.dsn = strings.TrimSpace(opts.dsn)
	if opts.dsn == "" && getenv != nil {
		opts.dsn = strings.TrimSpace(getenv(app.EnvPostgresDSN))
	}
	if opts.dsn == "" {
		return options{}, errors.New(app.EnvPostgresDSN + " or -dsn is required")
	}
	return opts, nil
}

func run(ctx context.Context, args []string, getenv func(string) string, out io.Writer) error {
	opts, err := parseOptions(args, getenv)
	if err != nil {
		return err
	}

	store, err := postgres.Open(ctx, opts.dsn)
	if err != nil {
		return fmt.Errorf("open postgres: %w", err)
	}
	defer store.Close()

	var applied []postgres.AppliedMigration
	switch opts.direction {
	case "up":
		applied, err = store.MigrateUp(ctx, opts.steps)
	case "down":
		applied, err = store.MigrateDown(ctx, opts.steps)
	}
	if err != nil {
		return fmt.Errorf("migrate %s: %w", opts.direction, err)
	}
	if opts.direction != "status" {
		printApplied(out, applied)
	}

	state, err := store.MigrationStatus(ctx)
	if err != nil {
		return fmt.Errorf("migration status: %w", err)
	}
	printState(out, state)
	return nil
}

// printApplied печатает миграции, затронутые текущим запуском.
func printApplied(w io.Writer, applied []postgres.AppliedMigration) {
	if len(applied) == 0 {
		_, _ = fmt.Fprintln(w, "no migrations to apply")
		return
	}
	for _, m := range applied {
		_, _ = fmt.Fprintf(w, "%s %04d_%s\n", m.Direction, m.Version, m.Name)
	}
}

func printState(w io.Writer, state postgres.MigrationState) {
	_, _ = fmt.Fprintf(w, "schema version=%d applied=%d pending=%d\n", state.Version, state.Applied, len(state.Pending))
	for _, m := range state.Pending {
		_, _ = fmt.Fprintf(w, "pending %04d_%s\n", m.Version, m.Name)
	}
}

package main

import (
	"errors"
	"flag"
	"fmt"
	"io"
	"strings"

	"github.com/golang-migrate/migrate/v4"

	"github.com/4xmen/pairchat/internal/db"
	"github.com/4xmen/pairchat/pkg/config"
)

type migrateOptions struct {
	Action   string
	Database string
}

func parseMigrateArgs(cfg *config.Config, args []string) (migrateOptions, error) {
	opts := migrateOptions{Action: "up"}
	if len(args) > 0 && !strings.HasPrefix(args[0], "-") {
		opts.Action = args[0]
		args = args[1:]
	}

	fs := flag.NewFlagSet("migrate", flag.ContinueOnError)
	fs.SetOutput(io.Discard)
	fs.StringVar(&opts.Database, "database", cfg.DatabasePath, "path to the SQLite database")
	if err := fs.Parse(args); err != nil {
		return opts, err
	}
	if fs.NArg() > 0 {
		return opts, fmt.Errorf("unexpected migrate argument: %s", fs.Arg(0))
	}

	switch opts.Action {
	case "up", "down", "version":
	default:
		return opts, fmt.Errorf("unknown migrate action: %s", opts.Action)
	}
	return opts, nil
}

// runMigrate applies all pending migrations, rolls back the latest one or
// reports the current schema version.
func runMigrate(cfg *config.Config, out io.Writer, args []string) error {
	opts, err := parseMigrateArgs(cfg, args)
	if err != nil {
		return err
	}

	conn, err := db.Open(opts.Database)
	if err != nil {
		return err
	}
	defer conn.Close()

	m, err := db.NewMigrator(conn)
	if err != nil {
		return err
	}

	switch opts.Action {
	case "up":
		err = m.Up()
	case "down":
		err = m.Steps(-1)
	}
	if errors.Is(err, migrate.ErrNoChange) {
		fmt.Fprintln(out, "no change")
		err = nil
	}
	if err != nil {
		return fmt.Errorf("migrate %s: %w", opts.Action, err)
	}

	version, dirty, err := m.Version()
	if errors.Is(err, migrate.ErrNilVersion) {
		fmt.Fprintln(out, "schema version: none")
		return nil
	}
	if err != nil {
		return fmt.Errorf("failed to read schema version: %w", err)
	}

	fmt.Fprintf(out, "schema version: %d", version)
	if dirty {
		fmt.Fprint(out, " (dirty)")
	}
	fmt.Fprintln(out)
	return nil
}

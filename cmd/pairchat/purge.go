package main

import (
	"context"
	"flag"
	"fmt"
	"io"
	"time"

	"github.com/4xmen/pairchat/internal/chat"
	"github.com/4xmen/pairchat/internal/db"
	"github.com/4xmen/pairchat/pkg/config"
)

const defaultPurgeAge = 30 * 24 * time.Hour

type purgeOptions struct {
	OlderThan time.Duration
	DryRun    bool
}

func parsePurgeArgs(args []string) (purgeOptions, error) {
	opts := purgeOptions{}

	fs := flag.NewFlagSet("purge-rooms", flag.ContinueOnError)
	fs.SetOutput(io.Discard)
	fs.DurationVar(&opts.OlderThan, "older-than", defaultPurgeAge, "purge rooms inactive for longer than this")
	fs.BoolVar(&opts.DryRun, "dry-run", false, "list rooms without deleting them")
	if err := fs.Parse(args); err != nil {
		return opts, err
	}
	if fs.NArg() > 0 {
		return opts, fmt.Errorf("unexpected purge-rooms argument: %s", fs.Arg(0))
	}
	if opts.OlderThan <= 0 {
		return opts, fmt.Errorf("--older-than must be positive")
	}
	return opts, nil
}

func runPurgeRooms(ctx context.Context, cfg *config.Config, out io.Writer, args []string) error {
	opts, err := parsePurgeArgs(args)
	if err != nil {
		return err
	}

	database, err := db.New(cfg.DatabasePath)
	if err != nil {
		return fmt.Errorf("failed to initialize database: %w", err)
	}
	defer database.Close()

	svc, _, closeCache, err := newChatService(ctx, cfg, database)
	if err != nil {
		return err
	}
	defer closeCache()

	return purgeRooms(ctx, svc, out, opts, time.Now())
}

// purgeRooms deletes every inactive room last updated before now minus
// opts.OlderThan, including its messages and stored files.
func purgeRooms(ctx context.Context, svc *chat.Service, out io.Writer, opts purgeOptions, now time.Time) error {
	cutoff := now.Add(-opts.OlderThan)
	ids, err := svc.InactiveRoomsBefore(ctx, cutoff)
	if err != nil {
		return err
	}

	if opts.DryRun {
		for _, id := range ids {
			fmt.Fprintf(out, "would purge room %d\n", id)
		}
		fmt.Fprintf(out, "%d room(s) inactive since before %s\n", len(ids), cutoff.UTC().Format(time.RFC3339))
		return nil
	}

	var rooms, files int
	for _, id := range ids {
		n, purged, err := svc.PurgeRoom(ctx, id, cutoff)
		if err != nil {
			if chat.KindOf(err) == chat.KindNotFound {
				continue
			}
			return fmt.Errorf("purge room %d: %w", id, err)
		}
		if !purged {
			fmt.Fprintf(out, "skipped room %d (active again)\n", id)
			continue
		}
		rooms++
		files += n
		fmt.Fprintf(out, "purged room %d (%d files)\n", id, n)
	}
	fmt.Fprintf(out, "purged %d room(s), %d file(s)\n", rooms, files)
	return nil
}

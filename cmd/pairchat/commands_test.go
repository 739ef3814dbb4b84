package main

import (
	"bytes"
	"context"
	"path/filepath"
	"strings"
	"testing"
	"time"

	"github.com/rs/zerolog"

	"github.com/4xmen/pairchat/internal/chat"
	"github.com/4xmen/pairchat/internal/db"
	"github.com/4xmen/pairchat/internal/storage"
	"github.com/4xmen/pairchat/pkg/config"
)

func TestParseMigrateArgs(t *testing.T) {
	cfg := &config.Config{DatabasePath: "default.db"}

	tests := []struct {
		args       []string
		wantAction string
		wantDB     string
		wantErr    bool
	}{
		{args: nil, wantAction: "up", wantDB: "default.db"},
		{args: []string{"version"}, wantAction: "version", wantDB: "default.db"},
		{args: []string{"down", "--database", "other.db"}, wantAction: "down", wantDB: "other.db"},
		{args: []string{"--database=x.db"}, wantAction: "up", wantDB: "x.db"},
		{args: []string{"sideways"}, wantErr: true},
		{args: []string{"up", "extra"}, wantErr: true},
		{args: []string{"up", "--bogus"}, wantErr: true},
	}

	for _, tt := range tests {
		opts, err := parseMigrateArgs(cfg, tt.args)
		if tt.wantErr {
			if err == nil {
				t.Errorf("parseMigrateArgs(%v) expected error", tt.args)
			}
			continue
		}
		if err != nil {
			t.Errorf("parseMigrateArgs(%v) returned error: %v", tt.args, err)
			continue
		}
		if opts.Action != tt.wantAction || opts.Database != tt.wantDB {
			t.Errorf("parseMigrateArgs(%v) = %+v", tt.args, opts)
		}
	}
}

func TestRunMigrate(t *testing.T) {
	path := filepath.Join(t.TempDir(), "migrate.db")
	cfg := &config.Config{DatabasePath: path}

	steps := []struct {
		args []string
		want string
	}{
		{[]string{"up"}, "schema version: 1\n"},
		{[]string{"up"}, "no change\nschema version: 1\n"},
		{[]string{"down"}, "schema version: none\n"},
		{[]string{"version"}, "schema version: none\n"},
		{[]string{"up", "--database", path}, "schema version: 1\n"},
	}

	for _, step := range steps {
		var out bytes.Buffer
		if err := runMigrate(cfg, &out, step.args); err != nil {
			t.Fatalf("migrate %v: %v", step.args, err)
		}
		if out.String() != step.want {
			t.Fatalf("migrate %v output = %q, want %q", step.args, out.String(), step.want)
		}
	}
}

func TestParsePurgeArgs(t *testing.T) {
	opts, err := parsePurgeArgs(nil)
	if err != nil {
		t.Fatalf("parsePurgeArgs returned error: %v", err)
	}
	if opts.OlderThan != 720*time.Hour || opts.DryRun {
		t.Fatalf("unexpected defaults: %+v", opts)
	}

	opts, err = parsePurgeArgs([]string{"--older-than", "48h", "--dry-run"})
	if err != nil {
		t.Fatalf("parsePurgeArgs returned error: %v", err)
	}
	if opts.OlderThan != 48*time.Hour || !opts.DryRun {
		t.Fatalf("unexpected options: %+v", opts)
	}

	for _, args := range [][]string{{"--older-than", "0s"}, {"--older-than", "soon"}, {"now"}} {
		if _, err := parsePurgeArgs(args); err == nil {
			t.Errorf("parsePurgeArgs(%v) expected error", args)
		}
	}
}

func TestPurgeRooms(t *testing.T) {
	cfg, _, roomID := seedData(t)
	ctx := context.Background()

	database, err := db.New(cfg.DatabasePath)
	if err != nil {
		t.Fatalf("db.New: %v", err)
	}
	defer database.Close()
	blobs, err := storage.NewLocalStorage(cfg.FileStoragePath)
	if err != nil {
		t.Fatalf("NewLocalStorage: %v", err)
	}

	left := time.Now().Add(-72 * time.Hour)
	svc := chat.New(database.GetConn(), blobs, chat.WithClock(func() time.Time { return left }))

	var alice int64
	if err := database.GetConn().QueryRow("SELECT id FROM users WHERE username = 'alice'").Scan(&alice); err != nil {
		t.Fatalf("lookup alice: %v", err)
	}
	if err := svc.LeaveRoom(ctx, roomID, alice); err != nil {
		t.Fatalf("LeaveRoom: %v", err)
	}

	now := time.Now()

	var out bytes.Buffer
	if err := purgeRooms(ctx, svc, &out, purgeOptions{OlderThan: 96 * time.Hour}, now); err != nil {
		t.Fatalf("purgeRooms: %v", err)
	}
	if !strings.Contains(out.String(), "purged 0 room(s)") {
		t.Fatalf("recently left room was purged:\n%s", out.String())
	}

	out.Reset()
	if err := purgeRooms(ctx, svc, &out, purgeOptions{OlderThan: 24 * time.Hour, DryRun: true}, now); err != nil {
		t.Fatalf("dry run: %v", err)
	}
	if !strings.Contains(out.String(), "would purge room") {
		t.Fatalf("dry run output:\n%s", out.String())
	}
	if ids, _ := svc.InactiveRoomsBefore(ctx, now); len(ids) != 1 {
		t.Fatalf("dry run deleted rooms: %v", ids)
	}

	out.Reset()
	if err := purgeRooms(ctx, svc, &out, purgeOptions{OlderThan: 24 * time.Hour}, now); err != nil {
		t.Fatalf("purgeRooms: %v", err)
	}
	if !strings.Contains(out.String(), "purged 1 room(s), 1 file(s)") {
		t.Fatalf("unexpected output:\n%s", out.String())
	}

	status := collectStatus(cfg, now)
	if status.ActiveRooms+status.InactiveRooms != 0 || status.Messages != 0 || status.Files != 0 {
		t.Fatalf("room data survived purge: %+v", status)
	}
	if status.UploadFileCount != 0 {
		t.Fatalf("UploadFileCount = %d, want 0", status.UploadFileCount)
	}
}

func TestRunCommandUnknown(t *testing.T) {
	if err := runCommand(context.Background(), &config.Config{}, zerolog.Nop(), []string{"frobnicate"}); err == nil {
		t.Fatal("expected error for unknown command")
	}
}

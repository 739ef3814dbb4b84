package main

import (
	"bytes"
	"context"
	"encoding/json"
	"os"
	"path/filepath"
	"strings"
	"testing"
	"time"

	"github.com/4xmen/pairchat/internal/auth"
	"github.com/4xmen/pairchat/internal/chat"
	"github.com/4xmen/pairchat/internal/db"
	"github.com/4xmen/pairchat/internal/storage"
	"github.com/4xmen/pairchat/pkg/config"
)

func TestFormatBytes(t *testing.T) {
	tests := []struct {
		input int64
		want  string
	}{
		{input: 0, want: "0 B"},
		{input: 1023, want: "1023 B"},
		{input: 1024, want: "1.0 KiB"},
		{input: 1536, want: "1.5 KiB"},
		{input: 1048576, want: "1.0 MiB"},
	}

	for _, tt := range tests {
		got := formatBytes(tt.input)
		if got != tt.want {
			t.Fatalf("formatBytes(%d) = %q, want %q", tt.input, got, tt.want)
		}
	}
}

func TestDirUsage(t *testing.T) {
	root := t.TempDir()

	nested := filepath.Join(root, "chat_files", "old")
	if err := os.MkdirAll(nested, 0o755); err != nil {
		t.Fatalf("mkdir nested: %v", err)
	}
	if err := os.WriteFile(filepath.Join(root, "a.txt"), []byte("hello"), 0o644); err != nil {
		t.Fatalf("write a.txt: %v", err)
	}
	if err := os.WriteFile(filepath.Join(nested, "b.txt"), []byte("go"), 0o644); err != nil {
		t.Fatalf("write b.txt: %v", err)
	}

	bytes, files, err := dirUsage(root)
	if err != nil {
		t.Fatalf("dirUsage returned error: %v", err)
	}
	if files != 2 || bytes != 7 {
		t.Fatalf("dirUsage = (%d bytes, %d files), want (7, 2)", bytes, files)
	}
}

func TestParseStatusArgs(t *testing.T) {
	opts, err := parseStatusArgs([]string{"--json"})
	if err != nil {
		t.Fatalf("parseStatusArgs returned error: %v", err)
	}
	if !opts.JSON {
		t.Fatalf("parseStatusArgs JSON = false, want true")
	}

	if _, err := parseStatusArgs([]string{"--bad"}); err == nil {
		t.Fatalf("parseStatusArgs expected error for unknown flag")
	}
}

// seedData creates two users, a room between them and one message with a
// text attachment, returning the config that points at it.
func seedData(t *testing.T) (*config.Config, *chat.Service, int64) {
	t.Helper()
	dir := t.TempDir()
	cfg := &config.Config{
		Environment:     "development",
		Port:            "8080",
		DatabasePath:    filepath.Join(dir, "pairchat.db"),
		StorageDriver:   "local",
		FileStoragePath: filepath.Join(dir, "uploads"),
	}

	database, err := db.New(cfg.DatabasePath)
	if err != nil {
		t.Fatalf("db.New: %v", err)
	}
	t.Cleanup(func() { database.Close() })

	blobs, err := storage.NewLocalStorage(cfg.FileStoragePath)
	if err != nil {
		t.Fatalf("NewLocalStorage: %v", err)
	}

	ctx := context.Background()
	authSvc := auth.New(database.GetConn(), "secret")
	alice, err := authSvc.Register(ctx, "alice", "password123", "")
	if err != nil {
		t.Fatalf("register alice: %v", err)
	}
	bob, err := authSvc.Register(ctx, "bob", "password123", "")
	if err != nil {
		t.Fatalf("register bob: %v", err)
	}

	svc := chat.New(database.GetConn(), blobs)
	room, _, err := svc.OpenRoom(ctx, alice, bob)
	if err != nil {
		t.Fatalf("OpenRoom: %v", err)
	}

	data := []byte("status report")
	_, err = svc.SendMessage(ctx, chat.SendRequest{
		RoomID:   room.ID,
		SenderID: alice,
		Content:  "hi",
		Files: []chat.Attachment{{
			Name:        "report.txt",
			ContentType: "text/plain",
			Size:        int64(len(data)),
			Content:     bytes.NewReader(data),
		}},
	})
	if err != nil {
		t.Fatalf("SendMessage: %v", err)
	}
	return cfg, svc, room.ID
}

func TestCollectStatus(t *testing.T) {
	cfg, _, _ := seedData(t)

	status := collectStatus(cfg, time.Now())
	if !status.DBMetricsReady {
		t.Fatalf("metrics not ready: %s", status.DBWarning)
	}
	if status.Users != 2 || status.ActiveRooms != 1 || status.InactiveRooms != 0 {
		t.Fatalf("unexpected counts: users=%d active=%d inactive=%d", status.Users, status.ActiveRooms, status.InactiveRooms)
	}
	if status.Messages != 1 || status.UnreadMessages != 1 || status.MessagesLast24h != 1 {
		t.Fatalf("unexpected message counts: %+v", status)
	}
	if status.Files != 1 || status.UploadedBytes != int64(len("status report")) {
		t.Fatalf("unexpected file stats: files=%d bytes=%d", status.Files, status.UploadedBytes)
	}
	if status.UploadFileCount != 1 {
		t.Fatalf("UploadFileCount = %d, want 1", status.UploadFileCount)
	}
	if status.LatestMessageAt == "" {
		t.Fatal("LatestMessageAt is empty")
	}

	later := collectStatus(cfg, time.Now().Add(48*time.Hour))
	if later.MessagesLast24h != 0 {
		t.Fatalf("MessagesLast24h two days later = %d, want 0", later.MessagesLast24h)
	}
}

func TestCollectStatusMissingDatabase(t *testing.T) {
	dir := t.TempDir()
	cfg := &config.Config{
		DatabasePath:    filepath.Join(dir, "missing.db"),
		StorageDriver:   "local",
		FileStoragePath: dir,
	}

	status := collectStatus(cfg, time.Now())
	if status.DBMetricsReady {
		t.Fatal("metrics ready for a missing database")
	}
	if !strings.HasPrefix(status.DBWarning, "database unavailable") {
		t.Fatalf("DBWarning = %q", status.DBWarning)
	}
	if _, err := os.Stat(cfg.DatabasePath); !os.IsNotExist(err) {
		t.Fatal("status created the database file")
	}

	var out bytes.Buffer
	printStatus(&out, status)
	if !strings.Contains(out.String(), "Database metrics  : n/a") {
		t.Fatalf("unexpected output:\n%s", out.String())
	}
}

func TestPrintStatusJSON(t *testing.T) {
	status := appStatus{
		GeneratedAt:     time.Date(2026, 2, 18, 10, 0, 0, 0, time.UTC),
		Environment:     "development",
		Port:            "8080",
		DatabasePath:    "/tmp/pairchat.db",
		StorageDriver:   "s3",
		StorageLocation: "s3://attachments",
		Users:           3,
		ActiveRooms:     2,
		DBMetricsReady:  true,
	}

	var out bytes.Buffer
	if err := printStatusJSON(&out, status); err != nil {
		t.Fatalf("printStatusJSON returned error: %v", err)
	}

	var payload map[string]any
	if err := json.Unmarshal(out.Bytes(), &payload); err != nil {
		t.Fatalf("invalid JSON output: %v", err)
	}
	if payload["storage_location"] != "s3://attachments" {
		t.Fatalf("unexpected storage_location: %#v", payload["storage_location"])
	}
	metrics := payload["metrics"].(map[string]any)
	if metrics["active_rooms"] != float64(2) || metrics["latest_message_at"] != "n/a" {
		t.Fatalf("unexpected metrics: %#v", metrics)
	}
}

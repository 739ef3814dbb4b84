package storage

import (
	"bytes"
	"context"
	"errors"
	"io"
	"os"
	"path/filepath"
	"strings"
	"testing"
)

func newTestStorage(t *testing.T) *LocalStorage {
	t.Helper()
	s, err := NewLocalStorage(filepath.Join(t.TempDir(), "uploads"))
	if err != nil {
		t.Fatalf("NewLocalStorage: %v", err)
	}
	return s
}

func TestLocalStorageRoundTrip(t *testing.T) {
	s := newTestStorage(t)
	ctx := context.Background()
	content := []byte("hello attachment")

	if err := s.Write(ctx, "chat_files/abc.txt", bytes.NewReader(content), int64(len(content)), "text/plain"); err != nil {
		t.Fatalf("Write: %v", err)
	}

	rc, err := s.Read(ctx, "chat_files/abc.txt")
	if err != nil {
		t.Fatalf("Read: %v", err)
	}
	defer rc.Close()
	got, _ := io.ReadAll(rc)
	if !bytes.Equal(got, content) {
		t.Fatalf("Read = %q, want %q", got, content)
	}

	entries, _ := os.ReadDir(filepath.Join(s.BasePath(), "chat_files"))
	for _, e := range entries {
		if strings.HasPrefix(e.Name(), ".tmp-") {
			t.Fatalf("temp file left behind: %s", e.Name())
		}
	}
}

func TestLocalStorageMissingKey(t *testing.T) {
	s := newTestStorage(t)
	ctx := context.Background()

	_, err := s.Read(ctx, "chat_files/missing.png")
	if !errors.Is(err, ErrNotFound) {
		t.Fatalf("Read error = %v, want ErrNotFound", err)
	}

	if err := s.Delete(ctx, "chat_files/missing.png"); err != nil {
		t.Fatalf("Delete of missing key: %v", err)
	}
}

func TestLocalStorageRejectsTraversal(t *testing.T) {
	s := newTestStorage(t)
	ctx := context.Background()

	for _, key := range []string{"../escape.txt", "..", "/etc/passwd", "chat_files/../../x"} {
		err := s.Write(ctx, key, strings.NewReader("x"), 1, "text/plain")
		if err == nil {
			t.Errorf("Write(%q) succeeded, want error", key)
		}
	}
}

func TestLocalStorageDelete(t *testing.T) {
	s := newTestStorage(t)
	ctx := context.Background()

	if err := s.Write(ctx, "chat_files/del.txt", strings.NewReader("bye"), 3, "text/plain"); err != nil {
		t.Fatalf("Write: %v", err)
	}
	if err := s.Delete(ctx, "chat_files/del.txt"); err != nil {
		t.Fatalf("Delete: %v", err)
	}
	if _, err := s.Read(ctx, "chat_files/del.txt"); !errors.Is(err, ErrNotFound) {
		t.Fatalf("Read after Delete = %v, want ErrNotFound", err)
	}
}

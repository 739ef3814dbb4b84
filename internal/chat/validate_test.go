package chat

import (
	"errors"
	"fmt"
	"strings"
	"testing"
)

func TestNormalizeContentType(t *testing.T) {
	tests := map[string]string{
		"image/png":                 "image/png",
		"IMAGE/PNG":                 "image/png",
		" text/plain; charset=utf-8": "text/plain",
		"video/quicktime":           "video/quicktime",
		"not a type":                "not a type",
		"":                          "",
	}
	for in, want := range tests {
		if got := NormalizeContentType(in); got != want {
			t.Errorf("NormalizeContentType(%q) = %q, want %q", in, got, want)
		}
	}
}

func TestIsAllowedType(t *testing.T) {
	for _, ct := range []string{"image/jpeg", "image/png", "image/gif", "image/webp", "video/mp4", "video/avi", "video/mov", "video/quicktime", "application/pdf", "text/plain"} {
		if !IsAllowedType(ct) {
			t.Errorf("%s should be allowed", ct)
		}
	}
	for _, ct := range []string{"text/html", "application/octet-stream", "image/svg+xml", "application/x-msdownload", ""} {
		if IsAllowedType(ct) {
			t.Errorf("%s should not be allowed", ct)
		}
	}
}

func TestStorageKey(t *testing.T) {
	tests := []struct {
		name    string
		wantExt string
	}{
		{"photo.png", ".png"},
		{"REPORT.PDF", ".PDF"},
		{"noext", ""},
		{"../../etc/passwd", ""},
		{"weird.p?ng", ""},
		{"long.abcdefghijklmnopq", ""},
	}
	seen := map[string]bool{}
	for _, tt := range tests {
		key := storageKey(tt.name)
		if !strings.HasPrefix(key, "chat_files/") {
			t.Fatalf("storageKey(%q) = %q, missing prefix", tt.name, key)
		}
		if !strings.HasSuffix(key, tt.wantExt) || strings.Count(key, "/") != 1 {
			t.Fatalf("storageKey(%q) = %q, want extension %q", tt.name, key, tt.wantExt)
		}
		if seen[key] {
			t.Fatalf("duplicate key %q", key)
		}
		seen[key] = true
	}
}

func TestHumanSize(t *testing.T) {
	if got := humanSize(DefaultMaxFileSize); got != "10MB" {
		t.Fatalf("humanSize(10MiB) = %q", got)
	}
	if got := humanSize(1500); got != "1500 bytes" {
		t.Fatalf("humanSize(1500) = %q", got)
	}
}

func TestErrorFormatting(t *testing.T) {
	err := Invalid(msgUnsupportedType, "a.exe", "application/x-msdownload")
	if err.Text() != "unsupported file type: a.exe (application/x-msdownload)" {
		t.Fatalf("Text() = %q", err.Text())
	}

	cause := errors.New("disk full")
	wrapped := fmt.Errorf("send: %w", Internal("failed to save file", cause))
	if KindOf(wrapped) != KindInternal {
		t.Fatalf("KindOf(wrapped internal) = %v", KindOf(wrapped))
	}
	if !errors.Is(wrapped, cause) {
		t.Fatal("cause should be reachable through errors.Is")
	}
	if wrapped.Error() != "send: failed to save file: disk full" {
		t.Fatalf("Error() = %q", wrapped.Error())
	}

	if KindOf(fmt.Errorf("x: %w", NotFound(msgRoomNotFound))) != KindNotFound {
		t.Fatal("KindOf should see through wrapping")
	}
	if KindOf(errors.New("plain")) != KindInternal {
		t.Fatal("plain errors are internal")
	}
}

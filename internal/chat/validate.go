package chat

import (
	"fmt"
	"mime"
	"path/filepath"
	"strings"

	"github.com/google/uuid"
)

var allowedTypes = map[string]bool{
	"image/jpeg":      true,
	"image/png":       true,
	"image/gif":       true,
	"image/webp":      true,
	"video/mp4":       true,
	"video/avi":       true,
	"video/mov":       true,
	"video/quicktime": true,
	"application/pdf": true,
	"text/plain":      true,
}

// NormalizeContentType strips parameters and lower-cases a declared MIME
// type, so "text/plain; charset=utf-8" becomes "text/plain".
func NormalizeContentType(declared string) string {
	declared = strings.TrimSpace(declared)
	if mediaType, _, err := mime.ParseMediaType(declared); err == nil {
		return mediaType
	}
	return strings.ToLower(declared)
}

func IsAllowedType(contentType string) bool {
	return allowedTypes[NormalizeContentType(contentType)]
}

// humanSize renders a byte limit for error messages.
func humanSize(n int64) string {
	const mb = 1024 * 1024
	if n >= mb && n%mb == 0 {
		return fmt.Sprintf("%dMB", n/mb)
	}
	return fmt.Sprintf("%d bytes", n)
}

// storageKey returns a fresh blob key. Only the extension of the original
// name survives, and only when it is short and alphanumeric.
func storageKey(originalName string) string {
	return "chat_files/" + uuid.NewString() + safeExtension(originalName)
}

func safeExtension(name string) string {
	ext := filepath.Ext(name)
	if len(ext) < 2 || len(ext) > 16 {
		return ""
	}
	for _, r := range ext[1:] {
		if !(r >= 'a' && r <= 'z' || r >= 'A' && r <= 'Z' || r >= '0' && r <= '9') {
			return ""
		}
	}
	return ext
}

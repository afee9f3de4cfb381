package storage

import (
	"fmt"
	"path"
	"path/filepath"
	"strings"
	"time"

	"github.com/google/uuid"

	"github.com/timmy/memehub/internal/domain"
)

// GenerateKey returns a fresh object key of the form yyyy/mm/<uuid><ext>.
func GenerateKey(now time.Time, ext string) string {
	return fmt.Sprintf("%04d/%02d/%s%s", now.Year(), int(now.Month()), uuid.NewString(), ext)
}

// PickExt prefers the filename extension and falls back to the MIME type.
func PickExt(filename, mimeType string) string {
	if ext := strings.ToLower(filepath.Ext(filename)); ext != "" {
		return ext
	}
	m := strings.ToLower(mimeType)
	switch {
	case strings.Contains(m, "png"):
		return ".png"
	case strings.Contains(m, "jpeg"), strings.Contains(m, "jpg"):
		return ".jpg"
	case strings.Contains(m, "gif"):
		return ".gif"
	case strings.Contains(m, "webp"):
		return ".webp"
	}
	return ""
}

// SanitizeKey normalizes separators and rejects keys that would escape the
// storage root.
func SanitizeKey(key string) (string, error) {
	k := strings.ReplaceAll(key, `\`, "/")
	for _, seg := range strings.Split(k, "/") {
		if seg == ".." {
			return "", fmt.Errorf("%w: parent directory segment in %q", domain.ErrInvalidKey, key)
		}
	}
	k = strings.TrimLeft(path.Clean("/"+k), "/")
	if k == "" {
		return "", fmt.Errorf("%w: empty key", domain.ErrInvalidKey)
	}
	return k, nil
}

func isAbsoluteURL(s string) bool {
	lower := strings.ToLower(s)
	return strings.HasPrefix(lower, "http://") || strings.HasPrefix(lower, "https://")
}

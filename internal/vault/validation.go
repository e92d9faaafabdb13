package vault

import (
	"mime"
	"strings"
	"unicode/utf8"
)

// DefaultMaxUploadBytes is the reference upload ceiling (50 MiB).
const DefaultMaxUploadBytes int64 = 50 << 20

var defaultAllowedKinds = []string{
	"image/jpeg", "image/png", "image/gif", "image/webp",
	"text/plain", "text/markdown", "text/html", "text/css", "text/javascript",
	"application/pdf", "application/json",
	"application/vnd.openxmlformats-officedocument.wordprocessingml.document",
	"application/vnd.openxmlformats-officedocument.spreadsheetml.sheet",
	"application/vnd.openxmlformats-officedocument.presentationml.presentation",
}

// Limits gates admission of uploads into the store.
type Limits struct {
	MaxUploadBytes int64
	allowed        map[string]struct{}
}

// NewLimits builds upload limits from a byte ceiling plus extra allowed kinds on top of
// the built-in allow-list. A non-positive ceiling selects DefaultMaxUploadBytes.
func NewLimits(maxUploadBytes int64, extraKinds ...string) Limits {
	if maxUploadBytes <= 0 {
		maxUploadBytes = DefaultMaxUploadBytes
	}
	l := Limits{MaxUploadBytes: maxUploadBytes, allowed: map[string]struct{}{}}
	for _, k := range defaultAllowedKinds {
		l.allowed[k] = struct{}{}
	}
	for _, k := range extraKinds {
		if k = NormalizeKind(k); k != "" {
			l.allowed[k] = struct{}{}
		}
	}
	return l
}

// DefaultLimits returns the reference limits.
func DefaultLimits() Limits { return NewLimits(DefaultMaxUploadBytes) }

// NormalizeKind lowercases a content kind and strips any parameters ("; charset=...").
func NormalizeKind(kind string) string {
	kind = strings.TrimSpace(kind)
	if kind == "" {
		return ""
	}
	if mt, _, err := mime.ParseMediaType(kind); err == nil {
		return mt
	}
	base, _, _ := strings.Cut(kind, ";")
	return strings.ToLower(strings.TrimSpace(base))
}

// KindAllowed reports whether a (normalized) content kind may be uploaded.
// Any text/* kind is accepted regardless of the allow-list.
func (l Limits) KindAllowed(kind string) bool {
	kind = NormalizeKind(kind)
	if strings.HasPrefix(kind, "text/") {
		return true
	}
	_, ok := l.allowed[kind]
	return ok
}

// ValidateUpload checks the size ceiling and content kind of an upload.
func (l Limits) ValidateUpload(contentKind string, sizeBytes int64, content []byte) error {
	if sizeBytes < 0 {
		return validationf("size must not be negative")
	}
	if int64(len(content)) != sizeBytes {
		return validationf("declared size %d does not match content length %d", sizeBytes, len(content))
	}
	if sizeBytes > l.MaxUploadBytes {
		return validationf("file size %d bytes exceeds maximum allowed size of %d bytes", sizeBytes, l.MaxUploadBytes)
	}
	if !l.KindAllowed(contentKind) {
		return validationf("content kind %q is not supported", contentKind)
	}
	return nil
}

// ValidateName rejects empty, whitespace-only or non-UTF-8 names and
// returns the trimmed name.
func ValidateName(name string) (string, error) {
	trimmed := strings.TrimSpace(name)
	if trimmed == "" {
		return "", validationf("name cannot be empty")
	}
	if !utf8.ValidString(trimmed) {
		return "", validationf("name contains invalid UTF-8 characters")
	}
	return trimmed, nil
}

// ValidatePIN accepts an empty PIN (unprotected folder) or exactly four ASCII digits.
func ValidatePIN(pin string) error {
	if pin == "" {
		return nil
	}
	if len(pin) != 4 {
		return validationf("PIN must be exactly 4 digits")
	}
	for i := 0; i < len(pin); i++ {
		if pin[i] < '0' || pin[i] > '9' {
			return validationf("PIN must be exactly 4 digits")
		}
	}
	return nil
}

// ViewerFor derives the preview hint purely from a content kind.
func ViewerFor(contentKind string) Viewer {
	kind := NormalizeKind(contentKind)
	switch {
	case strings.HasPrefix(kind, "image/"):
		return ViewerImage
	case strings.HasPrefix(kind, "text/"), kind == "application/json":
		return ViewerText
	default:
		return ViewerBinary
	}
}

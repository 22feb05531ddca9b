package service

import (
	"fmt"
	"path/filepath"
	"strings"
)

// Validation failure reasons
const (
	ReasonTooLarge      = "size exceeds maximum"
	ReasonNoFilename    = "no filename"
	ReasonFormat        = "format not allowed"
	ReasonNotAudio      = "not an audio file"
	ReasonLanguage      = "unsupported language"
	ReasonNegativeValue = "value must not be negative"
)

// FileInfo describes an incoming upload before any byte is persisted
type FileInfo struct {
	Filename    string
	ContentType string
	// Size is the declared length, -1 when unknown
	Size int64
}

// Validator checks uploads against size, extension and content-type rules
type Validator struct {
	maxSize int64
	allowed map[string]struct{}
}

func NewValidator(maxSize int64, allowedFormats []string) *Validator {
	allowed := make(map[string]struct{}, len(allowedFormats))
	for _, f := range allowedFormats {
		allowed[strings.ToLower(strings.TrimPrefix(strings.TrimSpace(f), "."))] = struct{}{}
	}
	return &Validator{maxSize: maxSize, allowed: allowed}
}

// MaxSize returns the configured upload limit in bytes
func (v *Validator) MaxSize() int64 {
	return v.maxSize
}

// Validate returns false and a reason on the first failing rule
func (v *Validator) Validate(info FileInfo) (bool, string) {
	if info.Size >= 0 && v.maxSize > 0 && info.Size > v.maxSize {
		return false, ReasonTooLarge
	}
	if strings.TrimSpace(info.Filename) == "" {
		return false, ReasonNoFilename
	}
	if !v.FormatAllowed(Extension(info.Filename)) {
		return false, ReasonFormat
	}
	if info.ContentType != "" && !strings.HasPrefix(strings.ToLower(info.ContentType), "audio/") {
		return false, ReasonNotAudio
	}
	return true, ""
}

// FormatAllowed reports whether format is in the allow-set
func (v *Validator) FormatAllowed(format string) bool {
	_, ok := v.allowed[strings.ToLower(format)]
	return ok
}

// Extension returns the lower-cased extension of filename without the dot
func Extension(filename string) string {
	return strings.ToLower(strings.TrimPrefix(filepath.Ext(filename), "."))
}

// FormatFileSize renders a byte count for humans, e.g. "1.5 MB"
func FormatFileSize(size int64) string {
	if size <= 0 {
		return "0 B"
	}
	units := []string{"B", "KB", "MB", "GB"}
	value := float64(size)
	i := 0
	for value >= 1024 && i < len(units)-1 {
		value /= 1024
		i++
	}
	return fmt.Sprintf("%.1f %s", value, units[i])
}

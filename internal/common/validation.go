package common

import (
	"fmt"
	"slices"
	"strings"

	"atsmatch/internal/types"
)

// ValidateOutputFormat validates format against configured supported formats
func ValidateOutputFormat(format string, supportedFormats []string) error {
	if len(supportedFormats) == 0 {
		return nil // no restrictions configured
	}

	if slices.Contains(supportedFormats, format) {
		return nil
	}

	return fmt.Errorf("unsupported output format '%s'. Supported formats: %v",
		format, supportedFormats)
}

// GetSupportedFormats returns the list of supported formats
func GetSupportedFormats(supportedFormats []string) []string {
	return supportedFormats
}

// ValidateTopK rejects negative excerpt counts and counts above maxTopK.
// Zero means the configured default.
func ValidateTopK(topK, maxTopK int) error {
	if topK < 0 {
		return fmt.Errorf("top_k must not be negative, got %d", topK)
	}
	if maxTopK > 0 && topK > maxTopK {
		return fmt.Errorf("top_k must be at most %d, got %d", maxTopK, topK)
	}
	return nil
}

// WarnUnknownMode reports whether mode would silently fall back to semantic
func WarnUnknownMode(mode string) bool {
	m := types.Mode(strings.ToLower(strings.TrimSpace(mode)))
	return m != "" && m != types.ModeSemantic && m != types.ModeStrict
}

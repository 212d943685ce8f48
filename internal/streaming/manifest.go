package streaming

import (
	"fmt"
	"os"
	"path/filepath"
	"strings"

	"shufflecast/internal/models"
)

// WriteManifest writes a concat-demuxer manifest listing the given items in
// order, atomically (temp file + rename) so a partially written manifest is
// never observed.
func WriteManifest(path string, items []models.MediaItem) error {
	if len(items) == 0 {
		return fmt.Errorf("cannot write empty manifest")
	}

	if err := os.MkdirAll(filepath.Dir(path), 0755); err != nil {
		return fmt.Errorf("failed to create manifest directory: %w", err)
	}

	var b strings.Builder
	for _, item := range items {
		fmt.Fprintf(&b, "file '%s'\n", escapeManifestPath(item.Path))
	}

	tmpPath := path + ".tmp"
	if err := os.WriteFile(tmpPath, []byte(b.String()), 0644); err != nil {
		return fmt.Errorf("failed to write manifest: %w", err)
	}
	if err := os.Rename(tmpPath, path); err != nil {
		os.Remove(tmpPath)
		return fmt.Errorf("failed to replace manifest: %w", err)
	}

	return nil
}

// escapeManifestPath escapes a path for the concat demuxer's single-quoted
// file directive: backslashes are doubled and embedded single quotes close
// the string, emit an escaped quote, and reopen it.
func escapeManifestPath(path string) string {
	escaped := strings.ReplaceAll(path, `\`, `\\`)
	return strings.ReplaceAll(escaped, `'`, `'\''`)
}

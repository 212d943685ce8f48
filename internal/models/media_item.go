// Package models defines the core data types shared across the service.
package models

import (
	"fmt"
	"path/filepath"
	"strings"
)

// MediaItem is a validated media file in the active inventory.
// Identity is the absolute file path; items are immutable once validated.
type MediaItem struct {
	Path            string  `json:"path"`
	SizeBytes       int64   `json:"size_bytes"`
	DurationSeconds float64 `json:"duration_seconds"`
}

// Title returns a display name derived from the filename
func (m MediaItem) Title() string {
	base := filepath.Base(m.Path)
	return strings.TrimSuffix(base, filepath.Ext(base))
}

// DurationString returns duration in HH:MM:SS format
func (m MediaItem) DurationString() string {
	total := int64(m.DurationSeconds)
	hours := total / 3600
	minutes := (total % 3600) / 60
	seconds := total % 60
	return fmt.Sprintf("%02d:%02d:%02d", hours, minutes, seconds)
}

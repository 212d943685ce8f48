package media

import (
	"context"
	"errors"
	"os"
	"path/filepath"
	"testing"

	"shufflecast/internal/config"
)

func writeSized(t *testing.T, path string, size int) {
	t.Helper()
	if err := os.MkdirAll(filepath.Dir(path), 0755); err != nil {
		t.Fatalf("Failed to create dir: %v", err)
	}
	if err := os.WriteFile(path, make([]byte, size), 0644); err != nil {
		t.Fatalf("Failed to write file: %v", err)
	}
}

func TestScanner_IsSupportedFile(t *testing.T) {
	s := NewScanner(config.MediaConfig{SupportedFormats: []string{"mp4", ".MKV", "avi"}})

	tests := []struct {
		path     string
		expected bool
	}{
		{"/media/show.mp4", true},
		{"/media/show.MP4", true},
		{"/media/show.mkv", true},
		{"/media/show.avi", true},
		{"/media/show.srt", false},
		{"/media/show.mp4.part", false},
		{"/media/noext", false},
	}

	for _, tt := range tests {
		if got := s.isSupportedFile(tt.path); got != tt.expected {
			t.Errorf("isSupportedFile(%q) = %v, want %v", tt.path, got, tt.expected)
		}
	}
}

func TestScanner_FindCandidates(t *testing.T) {
	dir := t.TempDir()
	writeSized(t, filepath.Join(dir, "big.mp4"), 4096)
	writeSized(t, filepath.Join(dir, "small.mp4"), 10)
	writeSized(t, filepath.Join(dir, "notes.txt"), 4096)
	writeSized(t, filepath.Join(dir, "season1", "nested.mkv"), 4096)

	s := NewScanner(config.MediaConfig{
		LibraryPath:      dir,
		MinFileSizeBytes: 1024,
		SupportedFormats: []string{"mp4", "mkv"},
	})

	candidates := s.findCandidates(context.Background(), dir)

	paths := make(map[string]bool, len(candidates))
	for _, c := range candidates {
		paths[filepath.Base(c.path)] = true
	}

	if !paths["big.mp4"] {
		t.Error("Expected big.mp4 to be a candidate")
	}
	if !paths["nested.mkv"] {
		t.Error("Expected nested.mkv from subdirectory to be a candidate")
	}
	if paths["small.mp4"] {
		t.Error("Undersized file should have been filtered")
	}
	if paths["notes.txt"] {
		t.Error("Unsupported extension should have been filtered")
	}
}

func TestBuildInventory_MissingDirectory(t *testing.T) {
	s := NewScanner(config.MediaConfig{
		LibraryPath:      filepath.Join(t.TempDir(), "nope"),
		SupportedFormats: []string{"mp4"},
	})

	_, err := s.BuildInventory(context.Background())
	if !errors.Is(err, ErrInvalidDirectory) {
		t.Errorf("error = %v, want %v", err, ErrInvalidDirectory)
	}
}

func TestBuildInventory_NotADirectory(t *testing.T) {
	file := filepath.Join(t.TempDir(), "file.mp4")
	writeSized(t, file, 10)

	s := NewScanner(config.MediaConfig{
		LibraryPath:      file,
		SupportedFormats: []string{"mp4"},
	})

	_, err := s.BuildInventory(context.Background())
	if !errors.Is(err, ErrInvalidDirectory) {
		t.Errorf("error = %v, want %v", err, ErrInvalidDirectory)
	}
}

func TestBuildInventory_NoCandidates(t *testing.T) {
	dir := t.TempDir()
	writeSized(t, filepath.Join(dir, "notes.txt"), 4096)

	s := NewScanner(config.MediaConfig{
		LibraryPath:      dir,
		MinFileSizeBytes: 1024,
		SupportedFormats: []string{"mp4"},
	})

	_, err := s.BuildInventory(context.Background())
	if !errors.Is(err, ErrNoMediaFound) {
		t.Errorf("error = %v, want %v", err, ErrNoMediaFound)
	}
}

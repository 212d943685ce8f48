package streaming

import (
	"os"
	"path/filepath"
	"testing"
)

func writeFile(t *testing.T, path string) {
	t.Helper()
	if err := os.WriteFile(path, []byte("x"), 0644); err != nil {
		t.Fatalf("Failed to write %s: %v", path, err)
	}
}

func TestPrepareOutputDir_RemovesStaleArtifacts(t *testing.T) {
	dir := t.TempDir()
	writeFile(t, filepath.Join(dir, "stream0.ts"))
	writeFile(t, filepath.Join(dir, "stream12.ts"))
	writeFile(t, filepath.Join(dir, "stream.m3u8"))
	writeFile(t, filepath.Join(dir, "unrelated.txt"))

	if err := PrepareOutputDir(dir); err != nil {
		t.Fatalf("PrepareOutputDir failed: %v", err)
	}

	for _, name := range []string{"stream0.ts", "stream12.ts", "stream.m3u8"} {
		if _, err := os.Stat(filepath.Join(dir, name)); !os.IsNotExist(err) {
			t.Errorf("%s should have been removed", name)
		}
	}
	if _, err := os.Stat(filepath.Join(dir, "unrelated.txt")); err != nil {
		t.Error("Unrelated file should have been left alone")
	}
}

func TestPrepareOutputDir_CreatesMissingDir(t *testing.T) {
	dir := filepath.Join(t.TempDir(), "hls")

	if err := PrepareOutputDir(dir); err != nil {
		t.Fatalf("PrepareOutputDir failed: %v", err)
	}

	info, err := os.Stat(dir)
	if err != nil || !info.IsDir() {
		t.Error("Output directory was not created")
	}
}

func TestResetSegments_KeepsPlaylist(t *testing.T) {
	dir := t.TempDir()
	writeFile(t, filepath.Join(dir, "stream3.ts"))
	writeFile(t, filepath.Join(dir, "stream4.ts"))
	writeFile(t, filepath.Join(dir, "stream.m3u8"))

	if err := ResetSegments(dir); err != nil {
		t.Fatalf("ResetSegments failed: %v", err)
	}

	if _, err := os.Stat(filepath.Join(dir, "stream3.ts")); !os.IsNotExist(err) {
		t.Error("Segments should have been removed")
	}
	if _, err := os.Stat(filepath.Join(dir, "stream.m3u8")); err != nil {
		t.Error("Playlist should survive a segment reset")
	}
}

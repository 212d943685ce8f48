package streaming

import (
	"fmt"
	"os"
	"path/filepath"
	"strings"

	"shufflecast/internal/logger"
)

// minFreeSpaceBytes is the free-space floor below which segment writing is
// considered at risk (500MB)
const minFreeSpaceBytes = 500 * 1024 * 1024

// PrepareOutputDir ensures the HLS output directory exists and is empty of
// any artifacts from a previous run, so clients never see stale segments
// after a restart.
func PrepareOutputDir(dir string) error {
	if err := os.MkdirAll(dir, 0755); err != nil {
		return fmt.Errorf("failed to create output directory: %w", err)
	}

	removed, err := removeStreamArtifacts(dir, true)
	if err != nil {
		return err
	}
	if removed > 0 {
		logger.Log.Info().
			Int("files", removed).
			Str("dir", dir).
			Msg("Cleared stale stream artifacts")
	}

	if free, err := getAvailableSpace(dir); err == nil && free < minFreeSpaceBytes {
		logger.Log.Warn().
			Uint64("free_bytes", free).
			Str("dir", dir).
			Msg("Low disk space on segment output directory")
	}

	return nil
}

// ResetSegments removes segment files between runs while leaving the
// playlist in place, so polling clients keep receiving a valid (if briefly
// stale) playlist across item boundaries.
func ResetSegments(dir string) error {
	removed, err := removeStreamArtifacts(dir, false)
	if err != nil {
		return err
	}
	logger.Log.Debug().
		Int("files", removed).
		Msg("Removed expired segments")
	return nil
}

// removeStreamArtifacts deletes stream output files from dir. Segments are
// always removed; the playlist only when includePlaylist is set.
func removeStreamArtifacts(dir string, includePlaylist bool) (int, error) {
	entries, err := os.ReadDir(dir)
	if err != nil {
		return 0, fmt.Errorf("failed to read output directory: %w", err)
	}

	removed := 0
	for _, entry := range entries {
		if entry.IsDir() {
			continue
		}
		name := entry.Name()
		isSegment := strings.HasPrefix(name, "stream") && strings.HasSuffix(name, ".ts")
		isPlaylist := name == PlaylistName
		if !isSegment && !(includePlaylist && isPlaylist) {
			continue
		}
		if err := os.Remove(filepath.Join(dir, name)); err != nil {
			logger.Log.Warn().
				Err(err).
				Str("file", name).
				Msg("Failed to remove stream artifact")
			continue
		}
		removed++
	}

	return removed, nil
}

// Package media implements the inventory validator: it scans a library
// directory for candidate files and filters out anything the transcoder
// could not play (too small, too short, unreadable, unparseable).
package media

import (
	"context"
	"errors"
	"fmt"
	"os"
	"path/filepath"
	"strings"

	"shufflecast/internal/config"
	"shufflecast/internal/logger"
	"shufflecast/internal/models"
)

// Common scanner errors
var (
	ErrNoMediaFound     = errors.New("no playable media files found")
	ErrInvalidDirectory = errors.New("invalid directory path")
)

// Scanner builds a validated media inventory from a library directory
type Scanner struct {
	cfg              config.MediaConfig
	supportedFormats map[string]bool
}

// NewScanner creates a new inventory scanner
func NewScanner(cfg config.MediaConfig) *Scanner {
	formats := make(map[string]bool, len(cfg.SupportedFormats))
	for _, f := range cfg.SupportedFormats {
		formats["."+strings.ToLower(strings.TrimPrefix(f, "."))] = true
	}
	return &Scanner{
		cfg:              cfg,
		supportedFormats: formats,
	}
}

// BuildInventory scans the library directory and returns the validated
// candidate set. Probe failures and timeouts exclude single candidates;
// only an empty result is an error.
func (s *Scanner) BuildInventory(ctx context.Context) ([]models.MediaItem, error) {
	info, err := os.Stat(s.cfg.LibraryPath)
	if err != nil {
		if os.IsNotExist(err) {
			return nil, fmt.Errorf("%w: directory does not exist: %s", ErrInvalidDirectory, s.cfg.LibraryPath)
		}
		return nil, fmt.Errorf("%w: %w", ErrInvalidDirectory, err)
	}
	if !info.IsDir() {
		return nil, fmt.Errorf("%w: path is not a directory: %s", ErrInvalidDirectory, s.cfg.LibraryPath)
	}

	candidates := s.findCandidates(ctx, s.cfg.LibraryPath)
	if ctx.Err() != nil {
		return nil, ctx.Err()
	}
	if len(candidates) == 0 {
		return nil, fmt.Errorf("%w in %s", ErrNoMediaFound, s.cfg.LibraryPath)
	}

	logger.Log.Info().
		Int("candidates", len(candidates)).
		Str("directory", s.cfg.LibraryPath).
		Msg("Found candidate media files, validating with ffprobe")

	inventory := make([]models.MediaItem, 0, len(candidates))
	for i, candidate := range candidates {
		select {
		case <-ctx.Done():
			return nil, ctx.Err()
		default:
		}

		item, ok := s.validateCandidate(ctx, candidate)
		if !ok {
			continue
		}
		inventory = append(inventory, item)

		logger.Log.Debug().
			Str("file", candidate.path).
			Int("progress", i+1).
			Int("total", len(candidates)).
			Msg("Validated media file")
	}

	if len(inventory) == 0 {
		return nil, fmt.Errorf("%w: all %d candidates failed validation", ErrNoMediaFound, len(candidates))
	}

	logger.Log.Info().
		Int("valid", len(inventory)).
		Int("candidates", len(candidates)).
		Msg("Inventory validation complete")

	return inventory, nil
}

// candidate is a file that passed the cheap extension and size filters
type candidate struct {
	path string
	size int64
}

// findCandidates walks the directory tree applying the extension and
// minimum-size filters. Walk errors skip the entry, never abort the scan.
func (s *Scanner) findCandidates(ctx context.Context, dirPath string) []candidate {
	var candidates []candidate

	err := filepath.Walk(dirPath, func(path string, info os.FileInfo, err error) error {
		select {
		case <-ctx.Done():
			return ctx.Err()
		default:
		}

		if err != nil {
			logger.Log.Warn().
				Str("path", path).
				Err(err).
				Msg("Error during directory walk")
			return nil // Continue walking
		}

		if info.IsDir() {
			return nil
		}

		if !s.isSupportedFile(path) {
			return nil
		}

		if info.Size() < s.cfg.MinFileSizeBytes {
			logger.Log.Debug().
				Str("path", path).
				Int64("size_bytes", info.Size()).
				Int64("min_size_bytes", s.cfg.MinFileSizeBytes).
				Msg("Skipping small file")
			return nil
		}

		candidates = append(candidates, candidate{path: path, size: info.Size()})
		return nil
	})

	if err != nil && !errors.Is(err, context.Canceled) {
		logger.Log.Error().Err(err).Msg("Directory walk failed")
	}

	return candidates
}

// validateCandidate probes a single candidate with a bounded timeout and
// applies the minimum-duration filter
func (s *Scanner) validateCandidate(ctx context.Context, c candidate) (models.MediaItem, bool) {
	probeCtx, cancel := context.WithTimeout(ctx, s.cfg.ProbeTimeout)
	defer cancel()

	probe, err := ProbeFile(probeCtx, c.path)
	if err != nil {
		logger.Log.Warn().
			Str("file", c.path).
			Err(err).
			Msg("Probe failed, excluding candidate")
		return models.MediaItem{}, false
	}

	if probe.DurationSeconds < float64(s.cfg.MinDurationSeconds) {
		logger.Log.Debug().
			Str("file", c.path).
			Float64("duration", probe.DurationSeconds).
			Int("min_duration", s.cfg.MinDurationSeconds).
			Msg("Skipping short file")
		return models.MediaItem{}, false
	}

	return models.MediaItem{
		Path:            c.path,
		SizeBytes:       c.size,
		DurationSeconds: probe.DurationSeconds,
	}, true
}

// isSupportedFile checks if a file has a supported video extension
func (s *Scanner) isSupportedFile(filePath string) bool {
	return s.supportedFormats[strings.ToLower(filepath.Ext(filePath))]
}

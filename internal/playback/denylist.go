package playback

import (
	"bufio"
	"fmt"
	"os"
	"path/filepath"
	"strings"
	"sync"

	"shufflecast/internal/logger"
)

// Denylist is a persisted, append-only set of media paths known to crash
// the transcoder. Entries are one path per line; the file is read once at
// startup and appended to as failures are observed. Entries never expire;
// refreshing the set is an operator action (delete the file).
type Denylist struct {
	path    string
	entries map[string]bool
	mu      sync.Mutex
}

// NewDenylist loads the denylist from the given file path, creating the
// parent directory if needed. A missing file is an empty denylist.
func NewDenylist(path string) (*Denylist, error) {
	d := &Denylist{
		path:    path,
		entries: make(map[string]bool),
	}

	if err := os.MkdirAll(filepath.Dir(path), 0755); err != nil {
		return nil, fmt.Errorf("failed to create denylist directory: %w", err)
	}

	file, err := os.Open(path)
	if err != nil {
		if os.IsNotExist(err) {
			return d, nil
		}
		return nil, fmt.Errorf("failed to open denylist: %w", err)
	}
	defer file.Close()

	scanner := bufio.NewScanner(file)
	for scanner.Scan() {
		line := strings.TrimSpace(scanner.Text())
		if line == "" {
			continue
		}
		d.entries[line] = true
	}
	if err := scanner.Err(); err != nil {
		return nil, fmt.Errorf("failed to read denylist: %w", err)
	}

	if len(d.entries) > 0 {
		logger.Log.Info().
			Int("entries", len(d.entries)).
			Str("path", path).
			Msg("Loaded denylist")
	}

	return d, nil
}

// Contains reports whether a path is denylisted
func (d *Denylist) Contains(path string) bool {
	d.mu.Lock()
	defer d.mu.Unlock()
	return d.entries[path]
}

// Add appends a path to the denylist file and the in-memory set.
// Adding an already-present path is a no-op.
func (d *Denylist) Add(path string) error {
	d.mu.Lock()
	defer d.mu.Unlock()

	if d.entries[path] {
		return nil
	}

	file, err := os.OpenFile(d.path, os.O_APPEND|os.O_CREATE|os.O_WRONLY, 0644)
	if err != nil {
		return fmt.Errorf("failed to open denylist for append: %w", err)
	}
	defer file.Close()

	if _, err := fmt.Fprintln(file, path); err != nil {
		return fmt.Errorf("failed to append to denylist: %w", err)
	}
	if err := file.Sync(); err != nil {
		return fmt.Errorf("failed to sync denylist: %w", err)
	}

	d.entries[path] = true

	logger.Log.Warn().
		Str("file", path).
		Int("entries", len(d.entries)).
		Msg("Path added to denylist")

	return nil
}

// Len returns the number of denylisted paths
func (d *Denylist) Len() int {
	d.mu.Lock()
	defer d.mu.Unlock()
	return len(d.entries)
}

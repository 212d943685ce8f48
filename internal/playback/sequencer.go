// Package playback implements the playback sequencing policy: a shuffled,
// non-repeating order over the validated inventory that reshuffles on
// exhaustion and permanently drops items reported as bad.
package playback

import (
	"errors"
	"math/rand"
	"sync"

	"shufflecast/internal/logger"
	"shufflecast/internal/models"
)

// historyCap bounds the diagnostic history; oldest entries are dropped
const historyCap = 500

// Common sequencer errors
var (
	ErrNoPlayableMedia = errors.New("no playable media remaining")
)

// SequencerStats is a point-in-time snapshot for diagnostics
type SequencerStats struct {
	ItemsPlayed int      `json:"items_played"`
	Cycle       int      `json:"cycle"`
	LibrarySize int      `json:"library_size"`
	Remaining   int      `json:"remaining_in_cycle"`
	Recent      []string `json:"recent"`
}

// Sequencer yields media items in a uniformly shuffled order, visiting each
// item exactly once per cycle. Callers are expected to be a single owner
// (the supervisor run loop); the mutex covers the status reporter reading
// stats concurrently.
type Sequencer struct {
	mu          sync.Mutex
	order       []models.MediaItem
	cursor      int
	history     []string
	itemsPlayed int
	cycle       int
	denylist    *Denylist
	rng         *rand.Rand
}

// NewSequencer builds a sequencer over the validated inventory, excluding
// anything already denylisted, and performs the initial shuffle.
func NewSequencer(inventory []models.MediaItem, denylist *Denylist, seed int64) (*Sequencer, error) {
	order := make([]models.MediaItem, 0, len(inventory))
	for _, item := range inventory {
		if denylist.Contains(item.Path) {
			logger.Log.Info().
				Str("file", item.Path).
				Msg("Excluding denylisted item from sequence")
			continue
		}
		order = append(order, item)
	}

	if len(order) == 0 {
		return nil, ErrNoPlayableMedia
	}

	s := &Sequencer{
		order:    order,
		denylist: denylist,
		rng:      rand.New(rand.NewSource(seed)),
	}
	s.reshuffleLocked()

	logger.Log.Info().
		Int("items", len(order)).
		Msg("Playback sequence initialized")

	return s, nil
}

// Next returns the next item to play, reshuffling when the cycle is
// exhausted. Fails with ErrNoPlayableMedia once every item has been
// denylisted.
func (s *Sequencer) Next() (models.MediaItem, error) {
	s.mu.Lock()
	defer s.mu.Unlock()

	if len(s.order) == 0 {
		return models.MediaItem{}, ErrNoPlayableMedia
	}

	if s.cursor >= len(s.order) {
		logger.Log.Info().
			Int("cycle", s.cycle).
			Msg("Cycle exhausted, reshuffling")
		s.reshuffleLocked()
	}

	item := s.order[s.cursor]
	s.cursor++
	s.itemsPlayed++

	s.history = append(s.history, item.Path)
	if len(s.history) > historyCap {
		s.history = s.history[len(s.history)-historyCap:]
	}

	logger.Log.Info().
		Str("file", item.Path).
		Int("position", s.cursor).
		Int("of", len(s.order)).
		Int("cycle", s.cycle).
		Msg("Next item selected")

	return item, nil
}

// ReportBad removes a path from the live order and persists it to the
// denylist so future reshuffles exclude it. Idempotent.
func (s *Sequencer) ReportBad(path string) error {
	s.mu.Lock()
	defer s.mu.Unlock()

	kept := s.order[:0]
	for i, item := range s.order {
		if item.Path == path {
			if i < s.cursor {
				s.cursor--
			}
			continue
		}
		kept = append(kept, item)
	}
	s.order = kept
	if s.cursor > len(s.order) {
		s.cursor = len(s.order)
	}

	if err := s.denylist.Add(path); err != nil {
		return err
	}

	logger.Log.Warn().
		Str("file", path).
		Int("remaining", len(s.order)).
		Msg("Item dropped from playback sequence")

	return nil
}

// Remaining returns the number of unplayed items left in the current cycle
func (s *Sequencer) Remaining() int {
	s.mu.Lock()
	defer s.mu.Unlock()
	return len(s.order) - s.cursor
}

// Cycle returns the current shuffle cycle number, starting at 1
func (s *Sequencer) Cycle() int {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.cycle
}

// Order returns a copy of the current shuffled order. Used to build the
// concat manifest in looped mode.
func (s *Sequencer) Order() []models.MediaItem {
	s.mu.Lock()
	defer s.mu.Unlock()
	order := make([]models.MediaItem, len(s.order))
	copy(order, s.order)
	return order
}

// Reshuffle forces a new cycle immediately. Used in concat mode when the
// manifest must be regenerated after a denylisting.
func (s *Sequencer) Reshuffle() {
	s.mu.Lock()
	defer s.mu.Unlock()
	if len(s.order) == 0 {
		return
	}
	s.reshuffleLocked()
}

// Stats returns a snapshot for the status reporter
func (s *Sequencer) Stats() SequencerStats {
	s.mu.Lock()
	defer s.mu.Unlock()

	recentCount := 5
	if len(s.history) < recentCount {
		recentCount = len(s.history)
	}
	recent := make([]string, recentCount)
	copy(recent, s.history[len(s.history)-recentCount:])

	return SequencerStats{
		ItemsPlayed: s.itemsPlayed,
		Cycle:       s.cycle,
		LibrarySize: len(s.order),
		Remaining:   len(s.order) - s.cursor,
		Recent:      recent,
	}
}

// reshuffleLocked re-randomizes the order and resets the cursor (must hold lock)
func (s *Sequencer) reshuffleLocked() {
	s.rng.Shuffle(len(s.order), func(i, j int) {
		s.order[i], s.order[j] = s.order[j], s.order[i]
	})
	s.cursor = 0
	s.cycle++
}

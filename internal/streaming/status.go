package streaming

import (
	"sync"
	"time"

	"shufflecast/internal/logger"
	"shufflecast/internal/playback"
)

// StatusReporter periodically logs a one-line summary of playback health:
// what is playing, sequence progress, and denylist size.
type StatusReporter struct {
	interval   time.Duration
	supervisor *Supervisor
	sequencer  *playback.Sequencer
	denylist   *playback.Denylist
	startedAt  time.Time

	stopChan chan struct{}
	doneChan chan struct{}
	stopOnce sync.Once
}

// NewStatusReporter creates a status reporter with the given interval
func NewStatusReporter(interval time.Duration, supervisor *Supervisor, sequencer *playback.Sequencer, denylist *playback.Denylist) *StatusReporter {
	return &StatusReporter{
		interval:   interval,
		supervisor: supervisor,
		sequencer:  sequencer,
		denylist:   denylist,
		stopChan:   make(chan struct{}),
		doneChan:   make(chan struct{}),
	}
}

// Start launches the reporting loop in the background
func (r *StatusReporter) Start() {
	r.startedAt = time.Now()
	go r.run()
}

// Stop terminates the reporting loop and waits for it to exit
func (r *StatusReporter) Stop() {
	r.stopOnce.Do(func() {
		close(r.stopChan)
	})
	<-r.doneChan
}

func (r *StatusReporter) run() {
	defer close(r.doneChan)

	ticker := time.NewTicker(r.interval)
	defer ticker.Stop()

	for {
		select {
		case <-r.stopChan:
			return
		case <-ticker.C:
			r.report()
		}
	}
}

// report logs the current playback summary
func (r *StatusReporter) report() {
	status := r.supervisor.Status()
	stats := r.sequencer.Stats()

	logger.Log.Info().
		Str("mode", status.Mode).
		Bool("transcoding", status.Running).
		Str("current", status.CurrentItem).
		Int("items_played", stats.ItemsPlayed).
		Int("cycle", stats.Cycle).
		Int("remaining_in_cycle", stats.Remaining).
		Int("library_size", stats.LibrarySize).
		Int("denylisted", r.denylist.Len()).
		Int("restarts", status.Restarts).
		Dur("uptime", time.Since(r.startedAt).Round(time.Second)).
		Msg("Playback status")
}

package streaming

import (
	"context"
	"fmt"
	"math"
	"sync"
	"time"

	"github.com/google/uuid"

	"shufflecast/internal/config"
	"shufflecast/internal/db"
	"shufflecast/internal/logger"
	"shufflecast/internal/models"
	"shufflecast/internal/playback"
)

// Spawn circuit breaker tuning
const (
	spawnFailureThreshold = 3
	spawnResetTimeout     = 30 * time.Second
)

// Backoff tuning for restarts after failures
const (
	baseBackoff = 1 * time.Second
	maxBackoff  = 8 * time.Second
)

// recordTimeout bounds ledger writes so a stuck database never stalls playback
const recordTimeout = 5 * time.Second

// resultKind classifies how one supervised run ended
type resultKind int

const (
	runCompleted resultKind = iota
	runSpawnFailed
	runCriticalDecode
	runTransientExit
	runHung
	runStopped
)

// runResult is the outcome of one supervised transcoder run
type runResult struct {
	kind        resultKind
	detail      string
	suspectPath string // input attributed to a critical decode failure
}

// Status is a point-in-time snapshot of the supervisor for diagnostics
type Status struct {
	Mode         string    `json:"mode"`
	Running      bool      `json:"running"`
	CurrentItem  string    `json:"current_item,omitempty"`
	RunID        string    `json:"run_id,omitempty"`
	Restarts     int       `json:"restarts"`
	LastActivity time.Time `json:"last_activity,omitempty"`
	CircuitState string    `json:"circuit_state"`
}

// Supervisor owns the transcoder lifecycle: it asks the sequencer what to
// play, runs ffmpeg, watches its diagnostic output for health signals, and
// turns failures into restart, skip, or denylist decisions. Exactly one run
// is live at a time.
type Supervisor struct {
	cfg       config.StreamingConfig
	sequencer *playback.Sequencer
	history   *db.HistoryRepository
	breaker   *CircuitBreaker
	binary    string

	mu           sync.Mutex
	running      bool
	currentItem  string
	currentRunID uuid.UUID
	restarts     int
	lastActivity time.Time

	stopChan chan struct{}
	doneChan chan struct{}
	fatal    chan error
	stopOnce sync.Once
}

// NewSupervisor creates a supervisor over the given sequencer. The history
// repository is optional; a nil repository disables the playback ledger.
func NewSupervisor(cfg config.StreamingConfig, sequencer *playback.Sequencer, history *db.HistoryRepository) *Supervisor {
	return &Supervisor{
		cfg:       cfg,
		sequencer: sequencer,
		history:   history,
		breaker:   NewCircuitBreaker(spawnFailureThreshold, spawnResetTimeout),
		binary:    "ffmpeg",
		stopChan:  make(chan struct{}),
		doneChan:  make(chan struct{}),
		fatal:     make(chan error, 1),
	}
}

// Start launches the supervision loop in the background
func (s *Supervisor) Start() {
	logger.Log.Info().
		Str("mode", s.cfg.Mode).
		Str("output_dir", s.cfg.OutputDir).
		Msg("Starting transcode supervisor")

	go s.run()
}

// Stop terminates the current run and waits for the loop to exit
func (s *Supervisor) Stop() {
	s.stopOnce.Do(func() {
		close(s.stopChan)
	})
	<-s.doneChan
	logger.Log.Info().Msg("Transcode supervisor stopped")
}

// Err returns a channel that receives at most one fatal supervisor error.
// Fatal means playback cannot continue: the catalog is exhausted or the
// transcoder cannot be spawned.
func (s *Supervisor) Err() <-chan error {
	return s.fatal
}

// Status returns a snapshot of the supervisor state
func (s *Supervisor) Status() Status {
	s.mu.Lock()
	defer s.mu.Unlock()

	st := Status{
		Mode:         s.cfg.Mode,
		Running:      s.running,
		CurrentItem:  s.currentItem,
		Restarts:     s.restarts,
		LastActivity: s.lastActivity,
		CircuitState: s.breaker.GetState().String(),
	}
	if s.currentRunID != uuid.Nil {
		st.RunID = s.currentRunID.String()
	}
	return st
}

// run is the top-level supervision loop, dispatching on mode
func (s *Supervisor) run() {
	defer close(s.doneChan)

	if s.cfg.Mode == config.ModeConcat {
		s.runConcatMode()
		return
	}
	s.runEpisodeMode()
}

// runEpisodeMode plays one item per transcoder process. A clean exit means
// the item finished; the loop advances and starts the next one.
func (s *Supervisor) runEpisodeMode() {
	for {
		if s.stopped() {
			return
		}

		item, err := s.sequencer.Next()
		if err != nil {
			s.fail(fmt.Errorf("sequencer has nothing to play: %w", err))
			return
		}

		record := s.recordStart(item)

		if !s.playEpisode(item, record) {
			return
		}

		if !s.idleWait(s.cfg.IdleGap) {
			return
		}
	}
}

// playEpisode runs one item to completion, absorbing recoverable failures.
// A single transient failure is retried once before the item is skipped.
// Returns false when the loop must stop (shutdown or fatal error).
func (s *Supervisor) playEpisode(item models.MediaItem, record *models.PlayRecord) bool {
	transientRetried := false

	for {
		result := s.superviseOnce(item)

		switch result.kind {
		case runCompleted:
			logger.Log.Info().
				Str("file", item.Path).
				Msg("Item playback completed")
			s.recordFinish(record, models.OutcomeCompleted, "")
			return true

		case runStopped:
			s.recordFinish(record, models.OutcomeSkipped, "shutdown")
			return false

		case runSpawnFailed:
			if !s.absorbSpawnFailure(result) {
				s.recordFinish(record, models.OutcomeFailed, result.detail)
				return false
			}
			continue

		case runCriticalDecode:
			logger.Log.Error().
				Str("file", item.Path).
				Str("detail", result.detail).
				Msg("Critical decode failure, denylisting item")
			if err := s.sequencer.ReportBad(item.Path); err != nil {
				logger.Log.Error().Err(err).Msg("Failed to persist denylist entry")
			}
			s.recordFinish(record, models.OutcomeDenylisted, result.detail)
			return true

		case runHung:
			logger.Log.Warn().
				Str("file", item.Path).
				Dur("window", s.cfg.LivenessWindow).
				Msg("Transcoder produced no output, skipping item")
			s.recordFinish(record, models.OutcomeSkipped, result.detail)
			return true

		case runTransientExit:
			if !transientRetried {
				transientRetried = true
				logger.Log.Warn().
					Str("file", item.Path).
					Str("detail", result.detail).
					Msg("Transcoder exited unexpectedly, retrying item once")
				if !s.idleWait(s.backoff(1)) {
					s.recordFinish(record, models.OutcomeSkipped, "shutdown")
					return false
				}
				continue
			}
			// A second unexplained exit on the same item is treated as
			// that item being bad
			logger.Log.Error().
				Str("file", item.Path).
				Str("detail", result.detail).
				Msg("Item failed twice, denylisting")
			if err := s.sequencer.ReportBad(item.Path); err != nil {
				logger.Log.Error().Err(err).Msg("Failed to persist denylist entry")
			}
			s.recordFinish(record, models.OutcomeDenylisted, result.detail)
			return true
		}
	}
}

// runConcatMode runs a single long-lived transcoder over a shuffled concat
// manifest. Any exit is a failure (the input loops forever); critical decode
// failures denylist the attributed file and regenerate the manifest.
func (s *Supervisor) runConcatMode() {
	consecutiveFailures := 0

	for {
		if s.stopped() {
			return
		}

		order := s.sequencer.Order()
		if len(order) == 0 {
			s.fail(fmt.Errorf("sequencer has nothing to play: %w", playback.ErrNoPlayableMedia))
			return
		}
		if err := WriteManifest(s.cfg.ManifestPath, order); err != nil {
			s.fail(fmt.Errorf("cannot write concat manifest: %w", err))
			return
		}
		logger.Log.Info().
			Int("items", len(order)).
			Str("manifest", s.cfg.ManifestPath).
			Msg("Concat manifest written")

		result := s.superviseConcat()

		switch result.kind {
		case runStopped:
			return

		case runSpawnFailed:
			if !s.absorbSpawnFailure(result) {
				return
			}
			continue

		case runCriticalDecode:
			consecutiveFailures = 0
			if result.suspectPath != "" {
				logger.Log.Error().
					Str("file", result.suspectPath).
					Str("detail", result.detail).
					Msg("Critical decode failure, denylisting attributed file")
				if err := s.sequencer.ReportBad(result.suspectPath); err != nil {
					logger.Log.Error().Err(err).Msg("Failed to persist denylist entry")
				}
			} else {
				logger.Log.Error().
					Str("detail", result.detail).
					Msg("Critical decode failure with no attributable file")
			}
			s.sequencer.Reshuffle()

		case runTransientExit:
			consecutiveFailures++
			// A repeat unexplained exit is pinned on the attributed file
			if consecutiveFailures >= 2 && result.suspectPath != "" {
				logger.Log.Error().
					Str("file", result.suspectPath).
					Str("detail", result.detail).
					Msg("Repeated exits, denylisting attributed file")
				if err := s.sequencer.ReportBad(result.suspectPath); err != nil {
					logger.Log.Error().Err(err).Msg("Failed to persist denylist entry")
				}
				s.sequencer.Reshuffle()
				consecutiveFailures = 0
			} else {
				logger.Log.Warn().
					Str("detail", result.detail).
					Int("consecutive", consecutiveFailures).
					Msg("Transcoder exited, restarting")
			}

		case runHung:
			consecutiveFailures++
			logger.Log.Warn().
				Str("detail", result.detail).
				Int("consecutive", consecutiveFailures).
				Msg("Transcoder run ended, restarting")

		case runCompleted:
			// The concat input loops forever, so even a clean exit means
			// a restart is needed
			consecutiveFailures = 0
			logger.Log.Warn().Msg("Transcoder exited cleanly, restarting loop")
		}

		s.mu.Lock()
		s.restarts++
		s.mu.Unlock()

		if !s.idleWait(s.backoff(consecutiveFailures)) {
			return
		}
	}
}

// superviseOnce runs the transcoder for a single item and watches it to
// completion or failure.
func (s *Supervisor) superviseOnce(item models.MediaItem) runResult {
	command, err := BuildEpisodeCommand(EncodeParams{
		InputPath:       item.Path,
		OutputDir:       s.cfg.OutputDir,
		SegmentDuration: s.cfg.SegmentDuration,
		PlaylistSize:    s.cfg.PlaylistSize,
		RealtimePacing:  s.cfg.RealtimePacing,
		EncodingPreset:  s.cfg.EncodingPreset,
	})
	if err != nil {
		s.breaker.RecordFailure()
		return runResult{kind: runSpawnFailed, detail: err.Error()}
	}

	if err := ResetSegments(s.cfg.OutputDir); err != nil {
		logger.Log.Warn().Err(err).Msg("Failed to reset segments before run")
	}

	return s.watch(command, item.Path, nil)
}

// superviseConcat runs the long-lived concat transcoder, recording per-file
// ledger entries as the demuxer reports each input opening.
func (s *Supervisor) superviseConcat() runResult {
	command, err := BuildConcatCommand(EncodeParams{
		InputPath:       s.cfg.ManifestPath,
		OutputDir:       s.cfg.OutputDir,
		SegmentDuration: s.cfg.SegmentDuration,
		PlaylistSize:    s.cfg.PlaylistSize,
		RealtimePacing:  s.cfg.RealtimePacing,
	})
	if err != nil {
		s.breaker.RecordFailure()
		return runResult{kind: runSpawnFailed, detail: err.Error()}
	}

	tracker := newLedgerTracker(s)
	result := s.watch(command, "", tracker.observe)
	tracker.finish(result)
	return result
}

// watch starts the transcoder and consumes its health signals until exit,
// hang, shutdown, or critical failure. currentPath is the known input in
// single-item mode; in concat mode it starts empty and follows the demuxer's
// open reports. onSignal, when set, observes every signal (ledger tracking).
func (s *Supervisor) watch(command *FFmpegCommand, currentPath string, onSignal func(HealthSignal)) runResult {
	proc, err := startProcess(s.binary, command)
	if err != nil {
		s.breaker.RecordFailure()
		return runResult{kind: runSpawnFailed, detail: err.Error()}
	}
	s.breaker.RecordSuccess()

	runID := uuid.New()
	s.setRunning(true, currentPath, runID)
	defer s.setRunning(false, "", uuid.Nil)

	liveness := time.NewTimer(s.cfg.LivenessWindow)
	defer liveness.Stop()

	signals := proc.signals

	for {
		select {
		case <-s.stopChan:
			proc.terminate()
			return runResult{kind: runStopped, detail: "shutdown requested"}

		case sig, ok := <-signals:
			if !ok {
				// Diagnostic stream closed; only the exit status remains
				signals = nil
				continue
			}
			if onSignal != nil {
				onSignal(sig)
			}
			switch sig.Kind {
			case SignalProgress:
				s.touch()
				if !liveness.Stop() {
					<-liveness.C
				}
				liveness.Reset(s.cfg.LivenessWindow)
			case SignalOpeningFile:
				currentPath = sig.Path
				s.touch()
				logger.Log.Debug().
					Str("file", sig.Path).
					Msg("Demuxer opened input")
			case SignalCriticalDecode:
				logger.Log.Error().
					Str("line", sig.Line).
					Str("suspect", currentPath).
					Msg("Critical decode signal")
				proc.terminate()
				return runResult{
					kind:        runCriticalDecode,
					detail:      sig.Line,
					suspectPath: currentPath,
				}
			case SignalWarning:
				logger.Log.Warn().
					Str("line", sig.Line).
					Msg("Transcoder warning")
			}

		case err := <-proc.exited:
			if err == nil {
				return runResult{kind: runCompleted}
			}
			return runResult{
				kind:        runTransientExit,
				detail:      err.Error(),
				suspectPath: currentPath,
			}

		case <-liveness.C:
			logger.Log.Error().
				Dur("window", s.cfg.LivenessWindow).
				Str("file", currentPath).
				Msg("No transcoder output within liveness window")
			proc.terminate()
			return runResult{
				kind:        runHung,
				detail:      fmt.Sprintf("no output for %s", s.cfg.LivenessWindow),
				suspectPath: currentPath,
			}
		}
	}
}

// absorbSpawnFailure applies backoff after a spawn failure. Returns false
// when the circuit has opened and the supervisor must give up.
func (s *Supervisor) absorbSpawnFailure(result runResult) bool {
	if !s.breaker.CanAttempt() {
		s.fail(NewRunError(ErrorTypeSpawn, result.detail, ErrSpawnExhausted))
		return false
	}
	logger.Log.Error().
		Str("detail", result.detail).
		Int("failures", s.breaker.GetFailures()).
		Msg("Transcoder spawn failed, backing off")
	return s.idleWait(s.backoff(s.breaker.GetFailures()))
}

// backoff returns the exponential delay for the given consecutive failure
// count, capped at maxBackoff. Zero failures still yields the base delay.
func (s *Supervisor) backoff(failures int) time.Duration {
	if failures < 1 {
		failures = 1
	}
	d := time.Duration(math.Pow(2, float64(failures-1))) * baseBackoff
	if d > maxBackoff {
		d = maxBackoff
	}
	return d
}

// idleWait sleeps for the given duration unless a stop arrives. Returns
// false when the supervisor is stopping.
func (s *Supervisor) idleWait(d time.Duration) bool {
	if d <= 0 {
		return !s.stopped()
	}
	select {
	case <-s.stopChan:
		return false
	case <-time.After(d):
		return true
	}
}

// stopped reports whether shutdown has been requested
func (s *Supervisor) stopped() bool {
	select {
	case <-s.stopChan:
		return true
	default:
		return false
	}
}

// fail delivers a fatal error to the Err channel without blocking
func (s *Supervisor) fail(err error) {
	logger.Log.Error().Err(err).Msg("Supervisor cannot continue")
	select {
	case s.fatal <- err:
	default:
	}
}

func (s *Supervisor) setRunning(running bool, item string, runID uuid.UUID) {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.running = running
	s.currentItem = item
	s.currentRunID = runID
	if running {
		s.lastActivity = time.Now()
	}
}

// touch marks transcoder activity for the status snapshot
func (s *Supervisor) touch() {
	s.mu.Lock()
	s.lastActivity = time.Now()
	s.mu.Unlock()
}

// recordStart opens a ledger entry for an item, if the ledger is enabled
func (s *Supervisor) recordStart(item models.MediaItem) *models.PlayRecord {
	s.mu.Lock()
	s.currentItem = item.Path
	s.mu.Unlock()

	if s.history == nil {
		return nil
	}
	record := models.NewPlayRecord(item, s.sequencer.Cycle())
	ctx, cancel := context.WithTimeout(context.Background(), recordTimeout)
	defer cancel()
	if err := s.history.Create(ctx, record); err != nil {
		logger.Log.Warn().Err(err).Msg("Failed to write ledger entry")
		return nil
	}
	return record
}

// recordFinish closes a ledger entry with an outcome
func (s *Supervisor) recordFinish(record *models.PlayRecord, outcome, detail string) {
	if record == nil || s.history == nil {
		return
	}
	record.Finish(outcome, detail)
	ctx, cancel := context.WithTimeout(context.Background(), recordTimeout)
	defer cancel()
	if err := s.history.Update(ctx, record); err != nil {
		logger.Log.Warn().Err(err).Msg("Failed to update ledger entry")
	}
}

// ledgerTracker maintains per-file ledger entries during a concat run by
// following the demuxer's open reports.
type ledgerTracker struct {
	sup     *Supervisor
	current *models.PlayRecord
}

func newLedgerTracker(sup *Supervisor) *ledgerTracker {
	return &ledgerTracker{sup: sup}
}

// observe reacts to file-open signals: the previous file played through to
// the next open, so its entry closes as completed.
func (t *ledgerTracker) observe(sig HealthSignal) {
	if sig.Kind != SignalOpeningFile {
		return
	}
	t.sup.recordFinish(t.current, models.OutcomeCompleted, "")
	t.current = t.sup.recordStart(models.MediaItem{Path: sig.Path})
}

// finish closes the in-flight entry according to how the run ended
func (t *ledgerTracker) finish(result runResult) {
	if t.current == nil {
		return
	}
	switch result.kind {
	case runCriticalDecode:
		t.sup.recordFinish(t.current, models.OutcomeDenylisted, result.detail)
	case runStopped:
		t.sup.recordFinish(t.current, models.OutcomeSkipped, "shutdown")
	default:
		t.sup.recordFinish(t.current, models.OutcomeFailed, result.detail)
	}
	t.current = nil
}

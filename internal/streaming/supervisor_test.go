package streaming

import (
	"path/filepath"
	"runtime"
	"testing"
	"time"

	"shufflecast/internal/config"
	"shufflecast/internal/models"
	"shufflecast/internal/playback"
)

func testSupervisor(t *testing.T) *Supervisor {
	t.Helper()

	denylist, err := playback.NewDenylist(filepath.Join(t.TempDir(), "denylist.txt"))
	if err != nil {
		t.Fatalf("NewDenylist failed: %v", err)
	}
	sequencer, err := playback.NewSequencer([]models.MediaItem{
		{Path: "/media/a.mp4"},
		{Path: "/media/b.mp4"},
	}, denylist, 1)
	if err != nil {
		t.Fatalf("NewSequencer failed: %v", err)
	}

	cfg := config.StreamingConfig{
		OutputDir:       t.TempDir(),
		Mode:            config.ModeEpisode,
		SegmentDuration: 6,
		PlaylistSize:    10,
		LivenessWindow:  45 * time.Second,
	}
	return NewSupervisor(cfg, sequencer, nil)
}

func TestSupervisor_Backoff(t *testing.T) {
	s := testSupervisor(t)

	tests := []struct {
		failures int
		expected time.Duration
	}{
		{0, 1 * time.Second},
		{1, 1 * time.Second},
		{2, 2 * time.Second},
		{3, 4 * time.Second},
		{4, 8 * time.Second},
		{5, 8 * time.Second}, // capped
		{10, 8 * time.Second},
	}

	for _, tt := range tests {
		if got := s.backoff(tt.failures); got != tt.expected {
			t.Errorf("backoff(%d) = %v, want %v", tt.failures, got, tt.expected)
		}
	}
}

func TestSupervisor_StatusIdle(t *testing.T) {
	s := testSupervisor(t)

	status := s.Status()

	if status.Running {
		t.Error("Running = true before start")
	}
	if status.Mode != config.ModeEpisode {
		t.Errorf("Mode = %q, want %q", status.Mode, config.ModeEpisode)
	}
	if status.CircuitState != "closed" {
		t.Errorf("CircuitState = %q, want closed", status.CircuitState)
	}
	if status.RunID != "" {
		t.Errorf("RunID = %q, want empty before any run", status.RunID)
	}
}

func TestSupervisor_SpawnFailureIsFatalWhenCircuitOpens(t *testing.T) {
	s := testSupervisor(t)
	s.binary = filepath.Join(t.TempDir(), "no-such-ffmpeg")
	s.cfg.IdleGap = 0

	s.Start()
	t.Cleanup(s.Stop)

	select {
	case err := <-s.Err():
		if err == nil {
			t.Fatal("Expected fatal error, got nil")
		}
	case <-time.After(30 * time.Second):
		t.Fatal("Supervisor did not surface a fatal error after repeated spawn failures")
	}
}

// A critical decode signal must be pinned to the input the demuxer most
// recently reported opening, not an earlier one.
func TestSupervisor_WatchAttributesCriticalToOpenFile(t *testing.T) {
	if runtime.GOOS == "windows" {
		t.Skip("uses /bin/sh as a transcoder stand-in")
	}

	s := testSupervisor(t)
	s.binary = "/bin/sh"

	script := `printf "%s\n" "[concat @ 0x1] Opening '/media/good.mkv' for reading" >&2;` +
		`printf "%s\n" "[concat @ 0x1] Opening '/media/bad.mkv' for reading" >&2;` +
		`printf "%s\n" "Error while decoding stream #0:0: Invalid data found when processing input" >&2;` +
		`sleep 2`
	cmd := &FFmpegCommand{Args: []string{"-c", script}}

	result := s.watch(cmd, "", nil)

	if result.kind != runCriticalDecode {
		t.Fatalf("result.kind = %v, want %v", result.kind, runCriticalDecode)
	}
	if result.suspectPath != "/media/bad.mkv" {
		t.Errorf("suspectPath = %q, want /media/bad.mkv", result.suspectPath)
	}
}

func TestSupervisor_WatchCleanExit(t *testing.T) {
	if runtime.GOOS == "windows" {
		t.Skip("uses /bin/sh as a transcoder stand-in")
	}

	s := testSupervisor(t)
	s.binary = "/bin/sh"

	cmd := &FFmpegCommand{Args: []string{"-c", "exit 0"}}
	result := s.watch(cmd, "/media/a.mp4", nil)

	if result.kind != runCompleted {
		t.Errorf("result.kind = %v, want %v", result.kind, runCompleted)
	}
}

func TestSupervisor_WatchTransientExit(t *testing.T) {
	if runtime.GOOS == "windows" {
		t.Skip("uses /bin/sh as a transcoder stand-in")
	}

	s := testSupervisor(t)
	s.binary = "/bin/sh"

	cmd := &FFmpegCommand{Args: []string{"-c", "exit 1"}}
	result := s.watch(cmd, "/media/a.mp4", nil)

	if result.kind != runTransientExit {
		t.Errorf("result.kind = %v, want %v", result.kind, runTransientExit)
	}
	if result.suspectPath != "/media/a.mp4" {
		t.Errorf("suspectPath = %q, want /media/a.mp4", result.suspectPath)
	}
}

// Once a critical decode signal is seen the watch loop stops consuming
// diagnostics. Termination must still drain the rest of the stream so the
// exit status is reaped promptly instead of riding out the kill grace
// periods while the scanner sits blocked on a full channel.
func TestSupervisor_WatchReapsPromptlyUnderDiagnosticFlood(t *testing.T) {
	if runtime.GOOS == "windows" {
		t.Skip("uses /bin/sh as a transcoder stand-in")
	}

	s := testSupervisor(t)
	s.binary = "/bin/sh"

	script := `printf "%s\n" "Error while decoding stream #0:0: Invalid data found when processing input" >&2;` +
		`i=0; while [ "$i" -lt 300 ]; do printf "noise %s\n" "$i" >&2; i=$((i+1)); done;` +
		`exec sleep 30`
	cmd := &FFmpegCommand{Args: []string{"-c", script}}

	start := time.Now()
	result := s.watch(cmd, "/media/a.mp4", nil)
	elapsed := time.Since(start)

	if result.kind != runCriticalDecode {
		t.Fatalf("result.kind = %v, want %v", result.kind, runCriticalDecode)
	}
	if elapsed >= termGracePeriod {
		t.Errorf("watch took %v, want exit reaped well inside the %v SIGTERM grace period", elapsed, termGracePeriod)
	}
}

// A transcoder that produces no output for the liveness window is killed
// and reported as hung, without denylisting the current item.
func TestSupervisor_WatchKillsHungTranscoder(t *testing.T) {
	if runtime.GOOS == "windows" {
		t.Skip("uses /bin/sh as a transcoder stand-in")
	}

	denylist, err := playback.NewDenylist(filepath.Join(t.TempDir(), "denylist.txt"))
	if err != nil {
		t.Fatalf("NewDenylist failed: %v", err)
	}
	sequencer, err := playback.NewSequencer([]models.MediaItem{
		{Path: "/media/a.mp4"},
	}, denylist, 1)
	if err != nil {
		t.Fatalf("NewSequencer failed: %v", err)
	}
	cfg := config.StreamingConfig{
		OutputDir:       t.TempDir(),
		Mode:            config.ModeEpisode,
		SegmentDuration: 6,
		PlaylistSize:    10,
		LivenessWindow:  200 * time.Millisecond,
	}
	s := NewSupervisor(cfg, sequencer, nil)
	s.binary = "/bin/sh"

	cmd := &FFmpegCommand{Args: []string{"-c", "exec sleep 10"}}
	start := time.Now()
	result := s.watch(cmd, "/media/a.mp4", nil)
	elapsed := time.Since(start)

	if result.kind != runHung {
		t.Fatalf("result.kind = %v, want %v", result.kind, runHung)
	}
	if result.suspectPath != "/media/a.mp4" {
		t.Errorf("suspectPath = %q, want /media/a.mp4", result.suspectPath)
	}
	if elapsed >= 3*time.Second {
		t.Errorf("watch took %v, want prompt kill after the liveness window", elapsed)
	}
	if denylist.Len() != 0 {
		t.Errorf("denylist has %d entries, want 0 after a hang", denylist.Len())
	}
}

// A command-build failure must count toward the spawn circuit so a
// deterministic misconfiguration cannot be retried forever.
func TestSupervisor_BuildFailureCountsTowardCircuit(t *testing.T) {
	s := testSupervisor(t)
	s.cfg.OutputDir = ""

	result := s.superviseOnce(models.MediaItem{Path: "/media/a.mp4"})

	if result.kind != runSpawnFailed {
		t.Fatalf("result.kind = %v, want %v", result.kind, runSpawnFailed)
	}
	if got := s.breaker.GetFailures(); got != 1 {
		t.Errorf("breaker failures = %d, want 1", got)
	}
}

func TestScanCRLines(t *testing.T) {
	input := "line one\nframe=  100 fps= 25\rframe=  200 fps= 25\rlast line"

	var lines []string
	data := []byte(input)
	for len(data) > 0 {
		advance, token, err := scanCRLines(data, true)
		if err != nil {
			t.Fatalf("scanCRLines error: %v", err)
		}
		if advance == 0 && token == nil {
			break
		}
		lines = append(lines, string(token))
		data = data[advance:]
	}

	expected := []string{"line one", "frame=  100 fps= 25", "frame=  200 fps= 25", "last line"}
	if len(lines) != len(expected) {
		t.Fatalf("Got %d lines, want %d: %v", len(lines), len(expected), lines)
	}
	for i := range expected {
		if lines[i] != expected[i] {
			t.Errorf("Line %d = %q, want %q", i, lines[i], expected[i])
		}
	}
}

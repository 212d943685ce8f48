package streaming

import (
	"bufio"
	"fmt"
	"os/exec"
	"syscall"
	"time"

	"shufflecast/internal/logger"
)

// Process termination timeouts
const (
	termGracePeriod = 5 * time.Second
	killGracePeriod = 2 * time.Second
)

// stderr lines can be long (progress lines with many fields); give the
// scanner headroom beyond the default 64KB token limit.
const maxLineSize = 256 * 1024

// transcodeProcess wraps one running ffmpeg invocation. The diagnostic
// stream is fully drained before the exit status is collected, so signal
// delivery and Wait never race on the shared pipe.
type transcodeProcess struct {
	cmd     *exec.Cmd
	signals chan HealthSignal
	exited  chan error
}

// startProcess launches ffmpeg with the given arguments and begins
// classifying its diagnostic output. The returned signals channel is closed
// when the diagnostic stream reaches EOF; exited receives the final Wait
// result exactly once.
func startProcess(binary string, command *FFmpegCommand) (*transcodeProcess, error) {
	cmd := exec.Command(binary, command.Args...)

	stderr, err := cmd.StderrPipe()
	if err != nil {
		return nil, fmt.Errorf("failed to open diagnostic pipe: %w", err)
	}

	if err := cmd.Start(); err != nil {
		return nil, fmt.Errorf("failed to start transcoder: %w", err)
	}

	logger.Log.Info().
		Int("pid", cmd.Process.Pid).
		Msg("Transcoder process started")

	p := &transcodeProcess{
		cmd:     cmd,
		signals: make(chan HealthSignal, 64),
		exited:  make(chan error, 1),
	}

	go func() {
		scanner := bufio.NewScanner(stderr)
		scanner.Buffer(make([]byte, 0, 64*1024), maxLineSize)
		// ffmpeg progress lines end in \r without a newline; split on both
		scanner.Split(scanCRLines)
		for scanner.Scan() {
			line := scanner.Text()
			if line == "" {
				continue
			}
			p.signals <- ClassifyLine(line)
		}
		close(p.signals)

		// Wait must only run after the pipe is drained
		p.exited <- cmd.Wait()
		close(p.exited)
	}()

	return p, nil
}

// pid returns the process id of the running transcoder
func (p *transcodeProcess) pid() int {
	return p.cmd.Process.Pid
}

// terminate stops the transcoder, first politely with SIGTERM, then with
// SIGKILL if it does not exit within the grace period. Safe to call after
// the process has already exited.
func (p *transcodeProcess) terminate() {
	// The caller stops consuming signals once it decides to terminate;
	// drain the rest so the scanner reaches EOF and Wait can reap the
	// exit status.
	go func() {
		for range p.signals {
		}
	}()

	if err := p.cmd.Process.Signal(syscall.SIGTERM); err != nil {
		// Already gone
		return
	}

	select {
	case <-p.exited:
		return
	case <-time.After(termGracePeriod):
	}

	logger.Log.Warn().
		Int("pid", p.pid()).
		Msg("Transcoder ignored SIGTERM, sending SIGKILL")

	if err := p.cmd.Process.Kill(); err != nil {
		return
	}

	select {
	case <-p.exited:
	case <-time.After(killGracePeriod):
		logger.Log.Error().
			Int("pid", p.pid()).
			Msg("Transcoder did not exit after SIGKILL")
	}
}

// scanCRLines is a bufio.SplitFunc that treats both \n and \r as line
// terminators, so in-place progress updates become individual lines.
func scanCRLines(data []byte, atEOF bool) (advance int, token []byte, err error) {
	if atEOF && len(data) == 0 {
		return 0, nil, nil
	}
	for i, b := range data {
		if b == '\n' || b == '\r' {
			return i + 1, data[:i], nil
		}
	}
	if atEOF {
		return len(data), data, nil
	}
	return 0, nil, nil
}

package media

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"os/exec"
	"strconv"

	"shufflecast/internal/logger"
)

// Common probe errors
var (
	ErrFFprobeNotFound = errors.New("ffprobe not found in PATH")
	ErrInvalidFile     = errors.New("invalid or corrupted video file")
	ErrProbeTimeout    = errors.New("ffprobe execution timed out")
)

// ffprobeResult represents the top-level JSON output from FFprobe
type ffprobeResult struct {
	Streams []ffprobeStream `json:"streams"`
	Format  ffprobeFormat   `json:"format"`
}

// ffprobeStream represents a video or audio stream
type ffprobeStream struct {
	CodecName string `json:"codec_name"`
	CodecType string `json:"codec_type"` // "video" or "audio"
	Width     int    `json:"width,omitempty"`
	Height    int    `json:"height,omitempty"`
	Duration  string `json:"duration,omitempty"`
}

// ffprobeFormat represents the file format information
type ffprobeFormat struct {
	FormatName string `json:"format_name"`
	Duration   string `json:"duration"`
	Size       string `json:"size"`
}

// ProbeResult holds the metadata the inventory validator cares about
type ProbeResult struct {
	DurationSeconds float64
	VideoCodec      string
	AudioCodec      string
	SizeBytes       int64
}

// CheckFFprobeInstalled checks if FFprobe is available in PATH
func CheckFFprobeInstalled() error {
	if _, err := exec.LookPath("ffprobe"); err != nil {
		return ErrFFprobeNotFound
	}
	return nil
}

// ProbeFile executes FFprobe on the given file and returns metadata.
// The context should carry the caller's probe timeout.
func ProbeFile(ctx context.Context, filePath string) (*ProbeResult, error) {
	logger.Log.Debug().
		Str("file_path", filePath).
		Msg("Probing video file with FFprobe")

	cmd := exec.CommandContext(ctx,
		"ffprobe",
		"-v", "quiet",
		"-print_format", "json",
		"-show_format",
		"-show_streams",
		filePath,
	)

	output, err := cmd.Output()
	if err != nil {
		if errors.Is(ctx.Err(), context.DeadlineExceeded) {
			logger.Log.Warn().
				Str("file_path", filePath).
				Msg("FFprobe execution timed out")
			return nil, ErrProbeTimeout
		}

		var exitErr *exec.ExitError
		if errors.As(err, &exitErr) && len(exitErr.Stderr) > 0 {
			return nil, fmt.Errorf("%w: %s", ErrInvalidFile, string(exitErr.Stderr))
		}
		return nil, fmt.Errorf("%w: %v", ErrInvalidFile, err)
	}

	var result ffprobeResult
	if err := json.Unmarshal(output, &result); err != nil {
		return nil, fmt.Errorf("failed to parse ffprobe output: %w", err)
	}

	probe, err := extractProbeResult(&result)
	if err != nil {
		return nil, err
	}

	logger.Log.Debug().
		Str("file_path", filePath).
		Float64("duration", probe.DurationSeconds).
		Str("video_codec", probe.VideoCodec).
		Str("audio_codec", probe.AudioCodec).
		Msg("Successfully probed video file")

	return probe, nil
}

// extractProbeResult converts raw FFprobe JSON into a ProbeResult
func extractProbeResult(result *ffprobeResult) (*ProbeResult, error) {
	probe := &ProbeResult{}

	var videoStream *ffprobeStream
	var audioStream *ffprobeStream
	for i := range result.Streams {
		stream := &result.Streams[i]
		if stream.CodecType == "video" && videoStream == nil {
			videoStream = stream
		}
		if stream.CodecType == "audio" && audioStream == nil {
			audioStream = stream
		}
	}

	if videoStream != nil {
		probe.VideoCodec = videoStream.CodecName
	}
	if audioStream != nil {
		probe.AudioCodec = audioStream.CodecName
	}

	// Duration: prefer the video stream, fall back to the container
	if videoStream != nil && videoStream.Duration != "" {
		if d, err := strconv.ParseFloat(videoStream.Duration, 64); err == nil {
			probe.DurationSeconds = d
		}
	}
	if probe.DurationSeconds == 0 && result.Format.Duration != "" {
		if d, err := strconv.ParseFloat(result.Format.Duration, 64); err == nil {
			probe.DurationSeconds = d
		}
	}

	if result.Format.Size != "" {
		if size, err := strconv.ParseInt(result.Format.Size, 10, 64); err == nil {
			probe.SizeBytes = size
		}
	}

	if probe.DurationSeconds == 0 {
		return nil, fmt.Errorf("%w: could not determine video duration", ErrInvalidFile)
	}

	return probe, nil
}

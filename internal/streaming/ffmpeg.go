// Package streaming implements the transcode supervisor: it owns the
// external encoder's lifecycle, classifies its diagnostic output into
// health signals, and converts failures into sequencing decisions.
package streaming

import (
	"errors"
	"path/filepath"
	"strconv"
)

// Output file naming inside the HLS directory
const (
	PlaylistName   = "stream.m3u8"
	segmentPattern = "stream%d.ts"
)

// Audio encoding constants
const (
	audioBitrateKbps = 128
	audioSampleRate  = 44100
)

// Common command-building errors
var (
	ErrEmptyInput     = errors.New("input path cannot be empty")
	ErrEmptyOutputDir = errors.New("output directory cannot be empty")
)

// EncodeParams contains the parameters needed to build a transcoder command
type EncodeParams struct {
	InputPath       string // media file (episode mode) or manifest path (concat mode)
	OutputDir       string // HLS output directory
	SegmentDuration int    // segment length in seconds
	PlaylistSize    int    // rolling window of segments kept in the playlist
	RealtimePacing  bool   // read input at native frame rate (-re)
	EncodingPreset  string // libx264 preset for episode mode
}

// FFmpegCommand represents a built transcoder command
type FFmpegCommand struct {
	Args []string // arguments without the "ffmpeg" binary itself
}

// BuildEpisodeCommand builds the command for a single-item run: one input
// file encoded until EOF, clean exit on completion.
func BuildEpisodeCommand(params EncodeParams) (*FFmpegCommand, error) {
	if err := validateEncodeParams(params); err != nil {
		return nil, err
	}

	args := make([]string, 0, 40)
	args = append(args, "-hide_banner", "-loglevel", "warning", "-stats")
	if params.RealtimePacing {
		args = append(args, "-re")
	}
	args = append(args, "-i", params.InputPath)
	args = append(args, buildVideoArgs(params.EncodingPreset, params.SegmentDuration)...)
	args = append(args, buildAudioArgs()...)
	args = append(args, buildHLSArgs(params, false)...)
	args = append(args, filepath.Join(params.OutputDir, PlaylistName))

	return &FFmpegCommand{Args: args}, nil
}

// BuildConcatCommand builds the command for a manifest-looped run: the
// concat demuxer reads the shuffled manifest as one continuous input and
// loops it forever. Verbose enough logging to emit per-file open reports,
// which the classifier needs for error attribution.
func BuildConcatCommand(params EncodeParams) (*FFmpegCommand, error) {
	if err := validateEncodeParams(params); err != nil {
		return nil, err
	}

	args := make([]string, 0, 40)
	args = append(args, "-hide_banner", "-loglevel", "info")
	if params.RealtimePacing {
		args = append(args, "-re")
	}
	args = append(args,
		"-f", "concat",
		"-safe", "0",
		"-stream_loop", "-1",
		"-i", params.InputPath,
	)
	args = append(args, buildVideoArgs("ultrafast", params.SegmentDuration)...)
	args = append(args, "-tune", "zerolatency")
	args = append(args, buildAudioArgs()...)
	args = append(args, buildHLSArgs(params, true)...)
	args = append(args, filepath.Join(params.OutputDir, PlaylistName))

	return &FFmpegCommand{Args: args}, nil
}

// validateEncodeParams validates the shared command parameters
func validateEncodeParams(params EncodeParams) error {
	if params.InputPath == "" {
		return ErrEmptyInput
	}
	if params.OutputDir == "" {
		return ErrEmptyOutputDir
	}
	if params.SegmentDuration <= 0 {
		return errors.New("segment duration must be positive")
	}
	if params.PlaylistSize <= 0 {
		return errors.New("playlist size must be positive")
	}
	return nil
}

// buildVideoArgs builds the libx264 encoding arguments. Keyframe cadence is
// locked to the segment duration so segment boundaries land on keyframes.
func buildVideoArgs(preset string, segmentDuration int) []string {
	if preset == "" {
		preset = "veryfast"
	}
	// Keyframe every segmentDuration seconds at an assumed 30fps
	gop := strconv.Itoa(segmentDuration * 30)
	return []string{
		"-c:v", "libx264",
		"-preset", preset,
		"-crf", "26",
		"-g", gop,
		"-keyint_min", gop,
		"-sc_threshold", "0",
	}
}

// buildAudioArgs builds the AAC audio encoding arguments
func buildAudioArgs() []string {
	return []string{
		"-c:a", "aac",
		"-b:a", strconv.Itoa(audioBitrateKbps) + "k",
		"-ar", strconv.Itoa(audioSampleRate),
	}
}

// buildHLSArgs builds the HLS muxer arguments. Concat mode lets the muxer
// delete expired segments itself; episode mode resets segments between runs
// instead so the rolling window survives item boundaries.
func buildHLSArgs(params EncodeParams, deleteSegments bool) []string {
	flags := "independent_segments"
	if deleteSegments {
		flags = "delete_segments+independent_segments"
	}
	return []string{
		"-f", "hls",
		"-hls_time", strconv.Itoa(params.SegmentDuration),
		"-hls_list_size", strconv.Itoa(params.PlaylistSize),
		"-hls_flags", flags,
		"-hls_segment_type", "mpegts",
		"-hls_allow_cache", "0",
		"-hls_segment_filename", filepath.Join(params.OutputDir, segmentPattern),
	}
}

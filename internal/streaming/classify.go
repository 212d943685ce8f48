package streaming

import (
	"regexp"
	"strings"
)

// SignalKind is the classification of one transcoder diagnostic line
type SignalKind int

const (
	// SignalNoise is an uninteresting line (banner, stream mapping, etc.)
	SignalNoise SignalKind = iota
	// SignalProgress is a frame/throughput report; resets the liveness timer
	SignalProgress
	// SignalWarning is a non-fatal complaint worth logging
	SignalWarning
	// SignalOpeningFile reports the input file the demuxer just opened
	SignalOpeningFile
	// SignalCriticalDecode is a decoder-level corruption report identifying
	// the currently open input as suspect
	SignalCriticalDecode
)

// String returns the string representation of SignalKind
func (k SignalKind) String() string {
	switch k {
	case SignalNoise:
		return "noise"
	case SignalProgress:
		return "progress"
	case SignalWarning:
		return "warning"
	case SignalOpeningFile:
		return "opening_file"
	case SignalCriticalDecode:
		return "critical_decode"
	default:
		return "unknown"
	}
}

// HealthSignal is the classified form of one diagnostic line
type HealthSignal struct {
	Kind SignalKind
	Path string // set for SignalOpeningFile
	Line string
}

// openingFilePattern matches the demuxer's file-open report. The captured
// path is how the supervisor attributes decode errors to an input file.
var openingFilePattern = regexp.MustCompile(`Opening '(.+?)' for reading`)

// criticalDecodePatterns are decoder failure markers that identify the
// currently open input as corrupt. Matching is substring, case-sensitive,
// against ffmpeg's exact message text.
var criticalDecodePatterns = []string{
	"Error submitting packet to decoder",
	"Decoder thread returned error",
	"Internal bug, should not have happened",
	"Invalid data found when processing input",
	"Error while decoding stream",
}

// warningPatterns are non-fatal complaints surfaced at warning level
var warningPatterns = []string{
	"warning",
	"deprecated",
	"could not",
	"non-monotonic",
	"corrupt",
}

// ClassifyLine classifies one diagnostic line into a health signal. It is a
// pure function: the supervisor's read loop feeds it every line and acts on
// the result.
func ClassifyLine(line string) HealthSignal {
	for _, pattern := range criticalDecodePatterns {
		if strings.Contains(line, pattern) {
			return HealthSignal{Kind: SignalCriticalDecode, Line: line}
		}
	}

	if match := openingFilePattern.FindStringSubmatch(line); match != nil {
		return HealthSignal{Kind: SignalOpeningFile, Path: match[1], Line: line}
	}

	if strings.Contains(line, "frame=") && strings.Contains(line, "fps=") {
		return HealthSignal{Kind: SignalProgress, Line: line}
	}

	lower := strings.ToLower(line)
	for _, pattern := range warningPatterns {
		if strings.Contains(lower, pattern) {
			return HealthSignal{Kind: SignalWarning, Line: line}
		}
	}

	return HealthSignal{Kind: SignalNoise, Line: line}
}

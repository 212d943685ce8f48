package api

import (
	"net/http"
	"os"
	"path/filepath"
	"regexp"
	"strings"

	"github.com/gin-gonic/gin"

	"shufflecast/internal/logger"
	"shufflecast/internal/streaming"
)

// segmentNamePattern matches the transcoder's segment naming scheme. Anything
// else at the root path is not ours to serve.
var segmentNamePattern = regexp.MustCompile(`^stream\d+\.ts$`)

// StreamHandler serves the live playlist and its segments from the
// transcoder's output directory.
type StreamHandler struct {
	outputDir string
}

// NewStreamHandler creates a stream handler over the given output directory
func NewStreamHandler(outputDir string) *StreamHandler {
	return &StreamHandler{outputDir: outputDir}
}

// setLiveHeaders disables caching at every layer. The playlist and segments
// mutate continuously under the same names, so any cached copy is wrong;
// these are set on errors too so a cached 404 cannot outlive the file
// appearing moments later.
func setLiveHeaders(c *gin.Context) {
	c.Header("Cache-Control", "no-cache, no-store, must-revalidate")
	c.Header("Pragma", "no-cache")
	c.Header("Expires", "0")
}

// GetPlaylist handles GET /stream.m3u8
func (h *StreamHandler) GetPlaylist(c *gin.Context) {
	setLiveHeaders(c)

	playlistPath := filepath.Join(h.outputDir, streaming.PlaylistName)

	content, err := os.ReadFile(playlistPath)
	if err != nil {
		if os.IsNotExist(err) {
			c.JSON(http.StatusNotFound, ErrorResponse{
				Error:   "playlist_not_ready",
				Message: "Stream is starting, please retry in a moment",
			})
			return
		}
		logger.Log.Error().
			Err(err).
			Str("path", playlistPath).
			Msg("Failed to read playlist")
		c.JSON(http.StatusInternalServerError, ErrorResponse{
			Error:   "read_failed",
			Message: "Failed to read playlist",
		})
		return
	}

	c.Data(http.StatusOK, "application/vnd.apple.mpegurl", content)
}

// GetSegment handles GET /:segment for transcoder-named segment files
func (h *StreamHandler) GetSegment(c *gin.Context) {
	setLiveHeaders(c)

	segment := c.Param("segment")

	if !segmentNamePattern.MatchString(segment) ||
		strings.Contains(segment, "..") ||
		strings.ContainsAny(segment, `/\`) {
		c.JSON(http.StatusNotFound, ErrorResponse{
			Error:   "not_found",
			Message: "Unknown resource",
		})
		return
	}

	segmentPath := filepath.Join(h.outputDir, segment)

	// The resolved path must stay inside the output directory
	absOutputDir, err := filepath.Abs(h.outputDir)
	if err != nil {
		c.JSON(http.StatusInternalServerError, ErrorResponse{
			Error:   "path_error",
			Message: "Failed to validate segment path",
		})
		return
	}
	absSegmentPath, err := filepath.Abs(segmentPath)
	if err != nil || !strings.HasPrefix(absSegmentPath, absOutputDir+string(filepath.Separator)) {
		logger.Log.Warn().
			Str("segment", segment).
			Msg("Path traversal attempt blocked")
		c.JSON(http.StatusNotFound, ErrorResponse{
			Error:   "not_found",
			Message: "Unknown resource",
		})
		return
	}

	if _, err := os.Stat(segmentPath); os.IsNotExist(err) {
		// Expired segments 404 during normal operation as the window slides
		c.JSON(http.StatusNotFound, ErrorResponse{
			Error:   "segment_not_found",
			Message: "Segment not found",
		})
		return
	}

	c.Header("Content-Type", "video/MP2T")
	c.File(segmentPath)
}

// SetupStreamRoutes registers the playlist and segment routes at the router
// root, matching the transcoder's flat output layout.
func SetupStreamRoutes(router *gin.Engine, outputDir string) {
	handler := NewStreamHandler(outputDir)

	router.GET("/"+streaming.PlaylistName, handler.GetPlaylist)
	router.GET("/:segment", handler.GetSegment)
}

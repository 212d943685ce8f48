package api

import (
	"context"
	"net/http"
	"time"

	"github.com/gin-gonic/gin"

	"shufflecast/internal/db"
	"shufflecast/internal/logger"
	"shufflecast/internal/models"
	"shufflecast/internal/playback"
	"shufflecast/internal/streaming"
)

// StatusResponse is the playback status report
type StatusResponse struct {
	Supervisor streaming.Status        `json:"supervisor"`
	Sequence   playback.SequencerStats `json:"sequence"`
	Denylisted int                     `json:"denylisted"`
	History    []*models.PlayRecord    `json:"history,omitempty"`
}

// StatusHandler reports playback state for operators
type StatusHandler struct {
	supervisor *streaming.Supervisor
	sequencer  *playback.Sequencer
	denylist   *playback.Denylist
	history    *db.HistoryRepository
}

// NewStatusHandler creates a new status handler
func NewStatusHandler(supervisor *streaming.Supervisor, sequencer *playback.Sequencer, denylist *playback.Denylist, history *db.HistoryRepository) *StatusHandler {
	return &StatusHandler{
		supervisor: supervisor,
		sequencer:  sequencer,
		denylist:   denylist,
		history:    history,
	}
}

// Get handles GET /api/status
func (h *StatusHandler) Get(c *gin.Context) {
	response := StatusResponse{
		Supervisor: h.supervisor.Status(),
		Sequence:   h.sequencer.Stats(),
		Denylisted: h.denylist.Len(),
	}

	if h.history != nil {
		ctx, cancel := context.WithTimeout(c.Request.Context(), 2*time.Second)
		defer cancel()

		records, err := h.history.Recent(ctx, 10)
		if err != nil {
			logger.Log.Warn().Err(err).Msg("Failed to fetch recent history")
		} else {
			response.History = records
		}
	}

	c.JSON(http.StatusOK, response)
}

// SetupStatusRoutes registers status reporting routes
func SetupStatusRoutes(apiGroup *gin.RouterGroup, handler *StatusHandler) {
	apiGroup.GET("/status", handler.Get)
}

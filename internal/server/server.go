// Package server provides the HTTP server setup and routing configuration.
package server

import (
	"context"
	"fmt"
	"net/http"

	"github.com/gin-contrib/cors"
	"github.com/gin-gonic/gin"

	"shufflecast/internal/api"
	"shufflecast/internal/config"
	"shufflecast/internal/db"
	"shufflecast/internal/logger"
	"shufflecast/internal/middleware"
	"shufflecast/internal/playback"
	"shufflecast/internal/streaming"
)

// Server represents the HTTP server
type Server struct {
	config     *config.Config
	db         *db.DB
	history    *db.HistoryRepository
	supervisor *streaming.Supervisor
	sequencer  *playback.Sequencer
	denylist   *playback.Denylist
	reporter   *streaming.StatusReporter
	router     *gin.Engine
	server     *http.Server
}

// New creates a new server instance. The database may be nil, which disables
// the history ledger endpoints' database content.
func New(cfg *config.Config, database *db.DB, supervisor *streaming.Supervisor, sequencer *playback.Sequencer, denylist *playback.Denylist) *Server {
	var history *db.HistoryRepository
	if database != nil {
		history = db.NewHistoryRepository(database)
	}

	return &Server{
		config:     cfg,
		db:         database,
		history:    history,
		supervisor: supervisor,
		sequencer:  sequencer,
		denylist:   denylist,
		reporter:   streaming.NewStatusReporter(cfg.Streaming.StatusInterval, supervisor, sequencer, denylist),
	}
}

// setupRouter initializes the Gin router with middleware and routes
func (s *Server) setupRouter() {
	if s.config.Logging.Level == "debug" {
		gin.SetMode(gin.DebugMode)
	} else {
		gin.SetMode(gin.ReleaseMode)
	}

	s.router = gin.New()

	s.router.Use(middleware.RequestLogger())
	s.router.Use(gin.Recovery())
	s.router.Use(cors.Default()) // players fetch from arbitrary origins

	api.SetupStreamRoutes(s.router, s.config.Streaming.OutputDir)

	apiGroup := s.router.Group("/api")
	api.SetupHealthRoutes(apiGroup, s.db)
	api.SetupStatusRoutes(apiGroup, api.NewStatusHandler(s.supervisor, s.sequencer, s.denylist, s.history))
}

// Start starts the supervisor, status reporter, and HTTP server. Blocks
// serving until the listener fails or Shutdown is called.
func (s *Server) Start() error {
	s.setupRouter()

	s.supervisor.Start()
	s.reporter.Start()

	addr := fmt.Sprintf("%s:%d", s.config.Server.Host, s.config.Server.Port)

	s.server = &http.Server{
		Addr:           addr,
		Handler:        s.router,
		ReadTimeout:    s.config.Server.ReadTimeout,
		WriteTimeout:   s.config.Server.WriteTimeout,
		MaxHeaderBytes: 1 << 20, // 1 MB
	}

	logger.Log.Info().
		Str("host", s.config.Server.Host).
		Int("port", s.config.Server.Port).
		Str("playlist", "/"+streaming.PlaylistName).
		Msg("Starting HTTP server")

	return s.server.ListenAndServe()
}

// Shutdown gracefully shuts down the server and its workers
func (s *Server) Shutdown(ctx context.Context) error {
	logger.Log.Info().Msg("Shutting down server gracefully")

	if s.reporter != nil {
		s.reporter.Stop()
	}

	if s.supervisor != nil {
		s.supervisor.Stop()
	}

	if s.server != nil {
		if err := s.server.Shutdown(ctx); err != nil {
			return fmt.Errorf("server shutdown error: %w", err)
		}
	}

	logger.Log.Info().Msg("Server stopped")
	return nil
}

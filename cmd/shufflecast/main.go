package main

import (
	"context"
	"errors"
	"net/http"
	"os"
	"os/signal"
	"syscall"
	"time"

	"shufflecast/internal/config"
	"shufflecast/internal/db"
	"shufflecast/internal/logger"
	"shufflecast/internal/media"
	"shufflecast/internal/playback"
	"shufflecast/internal/server"
	"shufflecast/internal/streaming"
)

const shutdownTimeout = 10 * time.Second

func main() {
	cfg, err := config.Load()
	if err != nil {
		logger.Init("info", false)
		logger.Log.Fatal().Err(err).Msg("Failed to load configuration")
	}

	logger.Init(cfg.Logging.Level, cfg.Logging.Pretty)

	logger.Log.Info().
		Str("library", cfg.Media.LibraryPath).
		Str("mode", cfg.Streaming.Mode).
		Msg("Starting shufflecast")

	if err := media.CheckFFprobeInstalled(); err != nil {
		logger.Log.Fatal().Err(err).Msg("ffprobe is required for inventory validation")
	}

	ctx, stop := signal.NotifyContext(context.Background(), syscall.SIGINT, syscall.SIGTERM)
	defer stop()

	// The history ledger is best-effort: playback runs without it
	database, err := db.New(cfg.Database.Path, cfg.Database.EnableWAL)
	if err != nil {
		logger.Log.Warn().Err(err).Msg("History ledger disabled, database unavailable")
		database = nil
	} else {
		defer database.Close()
		sqlDB, err := database.GetSQLDB()
		if err == nil {
			err = db.RunMigrations(sqlDB, cfg.Database.MigrationsPath)
		}
		if err != nil {
			logger.Log.Warn().Err(err).Msg("History ledger disabled, migrations failed")
			database = nil
		}
	}

	scanner := media.NewScanner(cfg.Media)
	inventory, err := scanner.BuildInventory(ctx)
	if err != nil {
		logger.Log.Fatal().Err(err).Msg("Inventory validation failed")
	}

	denylist, err := playback.NewDenylist(cfg.Streaming.DenylistPath)
	if err != nil {
		logger.Log.Fatal().Err(err).Msg("Failed to load denylist")
	}

	sequencer, err := playback.NewSequencer(inventory, denylist, time.Now().UnixNano())
	if err != nil {
		logger.Log.Fatal().Err(err).Msg("No playable media after filtering")
	}

	if err := streaming.PrepareOutputDir(cfg.Streaming.OutputDir); err != nil {
		logger.Log.Fatal().Err(err).Msg("Failed to prepare output directory")
	}

	var history *db.HistoryRepository
	if database != nil {
		history = db.NewHistoryRepository(database)
	}
	supervisor := streaming.NewSupervisor(cfg.Streaming, sequencer, history)

	srv := server.New(cfg, database, supervisor, sequencer, denylist)

	serverErr := make(chan error, 1)
	go func() {
		if err := srv.Start(); err != nil && !errors.Is(err, http.ErrServerClosed) {
			serverErr <- err
		}
	}()

	select {
	case <-ctx.Done():
		logger.Log.Info().Msg("Shutdown signal received")
	case err := <-serverErr:
		logger.Log.Error().Err(err).Msg("HTTP server failed")
	case err := <-supervisor.Err():
		logger.Log.Error().Err(err).Msg("Playback cannot continue")
	}

	shutdownCtx, cancel := context.WithTimeout(context.Background(), shutdownTimeout)
	defer cancel()

	if err := srv.Shutdown(shutdownCtx); err != nil {
		logger.Log.Error().Err(err).Msg("Graceful shutdown failed")
		os.Exit(1)
	}
}

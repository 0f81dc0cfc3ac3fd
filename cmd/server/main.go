package main

import (
	"context"
	"errors"
	"net/http"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/aristath/tradecal/internal/config"
	"github.com/aristath/tradecal/internal/modules/calendar"
	"github.com/aristath/tradecal/internal/modules/calendar/sources"
	"github.com/aristath/tradecal/internal/scheduler"
	"github.com/aristath/tradecal/internal/server"
	"github.com/aristath/tradecal/pkg/logger"
)

// walCheckpointSchedule runs the sqlite WAL check at the top of every hour
const walCheckpointSchedule = "0 0 * * * *"

// main loads configuration, builds the calendar source and serves the HTTP API
// until SIGINT or SIGTERM.
func main() {
	cfg, err := config.Load()
	if err != nil {
		// Use fallback logger if config fails
		fallbackLog := logger.New(logger.Config{
			Level:  "info",
			Pretty: true,
		})
		fallbackLog.Fatal().Err(err).Msg("Failed to load configuration")
	}

	log := logger.New(logger.Config{
		Level:  cfg.LogLevel,
		Pretty: cfg.LogPretty,
	})
	logger.SetGlobalLogger(log)

	log.Info().
		Str("source", cfg.Calendar.Source).
		Str("data_dir", cfg.DataDir).
		Msg("Starting trading calendar")

	startupCtx, startupCancel := context.WithTimeout(context.Background(), 2*time.Minute)
	defer startupCancel()

	source, closeSource, err := sources.Open(startupCtx, sources.Options{
		Kind: cfg.Calendar.Source,
		File: cfg.Calendar.File,
		S3: sources.S3Config{
			Endpoint:        cfg.Calendar.S3Endpoint,
			Region:          cfg.Calendar.S3Region,
			AccessKeyID:     cfg.Calendar.S3AccessKey,
			SecretAccessKey: cfg.Calendar.S3SecretKey,
		},
		Bucket:     cfg.Calendar.S3Bucket,
		Key:        cfg.Calendar.S3Key,
		SQLitePath: cfg.Calendar.SQLitePath,
		ImportFile: cfg.Calendar.ImportFile,
		FromYear:   cfg.Calendar.RulesFromYear,
		ToYear:     cfg.Calendar.RulesToYear,
	}, log)
	if err != nil {
		log.Fatal().Err(err).Msg("Failed to open calendar source")
	}
	defer func() {
		if err := closeSource(); err != nil {
			log.Error().Err(err).Msg("Failed to close calendar source")
		}
	}()

	// A service that cannot load its calendar must not answer questions about it
	store := calendar.NewStore(nil, source, log)
	if _, err := store.Reload(startupCtx); err != nil {
		log.Fatal().Err(err).Msg("Failed to load calendar")
	}

	sched := scheduler.New(log)

	if cfg.Calendar.ReloadSchedule != "" {
		reloadJob := scheduler.NewReloadCalendarJob(store, 0)
		reloadJob.SetLogger(log)
		if err := sched.AddJob(cfg.Calendar.ReloadSchedule, reloadJob); err != nil {
			log.Fatal().Err(err).Msg("Failed to schedule calendar reload")
		}
	}

	if sqliteSource, ok := source.(*sources.SQLiteSource); ok {
		walJob := scheduler.NewCheckWALCheckpointsJob(sqliteSource.DB())
		walJob.SetLogger(log)
		if err := sched.AddJob(walCheckpointSchedule, walJob); err != nil {
			log.Fatal().Err(err).Msg("Failed to schedule WAL checkpoints")
		}
	}

	if sched.Len() > 0 {
		sched.Start()
	}

	srv := server.New(server.Config{
		Log:     log,
		Store:   store,
		Port:    cfg.Port,
		DevMode: cfg.DevMode,
	})

	go func() {
		if err := srv.Start(); err != nil && !errors.Is(err, http.ErrServerClosed) {
			log.Fatal().Err(err).Msg("Failed to start server")
		}
	}()

	log.Info().Int("port", cfg.Port).Msg("Server started successfully")

	quit := make(chan os.Signal, 1)
	signal.Notify(quit, syscall.SIGINT, syscall.SIGTERM)
	<-quit

	log.Info().Msg("Shutting down server...")

	sched.Stop()

	shutdownCtx, shutdownCancel := context.WithTimeout(context.Background(), 10*time.Second)
	defer shutdownCancel()

	if err := srv.Shutdown(shutdownCtx); err != nil {
		log.Error().Err(err).Msg("Server forced to shutdown")
	}

	log.Info().Msg("Server stopped")
}

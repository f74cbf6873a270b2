package main

import (
	"context"
	"fmt"
	"net/http"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/quranlocator/verse-engine/internal/app"
	"github.com/quranlocator/verse-engine/internal/config"
	"github.com/quranlocator/verse-engine/internal/observability"
	"github.com/quranlocator/verse-engine/internal/server"
)

func main() {
	// Load configuration
	cfg, err := config.Load()
	if err != nil {
		// Use fmt for fatal errors before logger is initialized
		fmt.Fprintf(os.Stderr, "Failed to load configuration: %v\n", err)
		os.Exit(1)
	}

	// Initialize structured logger
	observability.InitLogger(cfg.LogLevel, cfg.LogPretty)
	logger := observability.GetLogger()

	logger.Info().
		Str("port", cfg.Port).
		Str("corpus", cfg.CorpusPath).
		Str("asr_engine", cfg.ASREngine).
		Str("log_level", cfg.LogLevel).
		Bool("metrics_enabled", cfg.MetricsEnabled).
		Msg("Verse engine starting")

	startCtx, cancelStart := context.WithTimeout(context.Background(), 60*time.Second)
	engine, err := app.New(startCtx, cfg)
	cancelStart()
	if err != nil {
		logger.Fatal().Err(err).Msg("Failed to initialize verse engine")
	}
	defer engine.Close()

	logger.Info().
		Int("verses", engine.Corpus.Len()).
		Int("chapters", engine.Corpus.Chapters()).
		Bool("playback_loaded", engine.Playback != nil).
		Msg("Verse engine ready")

	// Create HTTP server with timeouts. Websocket streams outlive
	// WriteTimeout, so it is applied per message instead.
	srv := &http.Server{
		Addr:              fmt.Sprintf(":%s", cfg.Port),
		Handler:           server.New(engine).Handler(),
		ReadHeaderTimeout: 15 * time.Second,
		IdleTimeout:       60 * time.Second,
	}

	// Start server in a goroutine
	go func() {
		logger.Info().
			Str("port", cfg.Port).
			Str("endpoint", fmt.Sprintf("http://localhost:%s/process_chunk", cfg.Port)).
			Msg("Server listening")
		if err := srv.ListenAndServe(); err != nil && err != http.ErrServerClosed {
			logger.Fatal().Err(err).Msg("Server failed to start")
		}
	}()

	// Wait for interrupt signal to gracefully shutdown the server
	quit := make(chan os.Signal, 1)
	signal.Notify(quit, syscall.SIGINT, syscall.SIGTERM)
	<-quit

	logger.Info().Msg("Shutting down server...")

	// Graceful shutdown with timeout
	ctx, cancel := context.WithTimeout(context.Background(), 30*time.Second)
	defer cancel()

	if err := srv.Shutdown(ctx); err != nil {
		logger.Error().Err(err).Msg("Server forced to shutdown")
	}

	logger.Info().Msg("Server exited gracefully")
}

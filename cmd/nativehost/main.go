package main

import (
	"context"
	"errors"
	"fmt"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/quranlocator/verse-engine/internal/app"
	"github.com/quranlocator/verse-engine/internal/config"
	"github.com/quranlocator/verse-engine/internal/nativehost"
	"github.com/quranlocator/verse-engine/internal/observability"
)

func main() {
	cfg, err := config.Load()
	if err != nil {
		fmt.Fprintf(os.Stderr, "Failed to load configuration: %v\n", err)
		os.Exit(1)
	}

	// stdout carries protocol frames
	observability.InitLoggerTo(os.Stderr, cfg.LogLevel, cfg.LogPretty)
	logger := observability.GetLogger()

	ctx, stop := signal.NotifyContext(context.Background(), syscall.SIGINT, syscall.SIGTERM)
	defer stop()

	startCtx, cancelStart := context.WithTimeout(ctx, 60*time.Second)
	engine, err := app.New(startCtx, cfg)
	cancelStart()
	if err != nil {
		logger.Error().Err(err).Msg("Failed to initialize verse engine")
		os.Exit(1)
	}
	defer engine.Close()

	session, err := engine.Registry.Begin("native")
	if err != nil {
		logger.Error().Err(err).Msg("Failed to open session")
		os.Exit(1)
	}
	defer engine.Registry.End(session.ID())

	host := nativehost.New(engine.Pipeline, session, cfg.SampleRate)
	if err := host.Run(ctx, os.Stdin, os.Stdout); err != nil && !errors.Is(err, context.Canceled) {
		logger.Error().Err(err).Msg("Native messaging host failed")
		os.Exit(1)
	}
}

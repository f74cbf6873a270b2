// Package asr turns audio windows into transcripts.
package asr

import (
	"context"
	"errors"
	"fmt"
	"time"

	"github.com/quranlocator/verse-engine/internal/config"
	"github.com/quranlocator/verse-engine/internal/resilience"
)

// ErrNoAudio is returned by engines handed an empty window.
var ErrNoAudio = errors.New("no audio to transcribe")

// Engine transcribes mono samples at the processing rate.
type Engine interface {
	Transcribe(ctx context.Context, samples []float32) (string, error)
	Name() string
}

// HealthChecker is implemented by engines that can probe their backend.
type HealthChecker interface {
	HealthCheck(ctx context.Context) (bool, error)
}

// Closer is implemented by engines holding connections.
type Closer interface {
	Close() error
}

// Static returns a fixed transcript. It serves offline runs and tests.
type Static struct {
	Text string
}

// Transcribe implements Engine.
func (s Static) Transcribe(ctx context.Context, samples []float32) (string, error) {
	return s.Text, nil
}

// Name implements Engine.
func (s Static) Name() string {
	return config.EngineStatic
}

// Func adapts a function to Engine.
type Func func(ctx context.Context, samples []float32) (string, error)

// Transcribe implements Engine.
func (f Func) Transcribe(ctx context.Context, samples []float32) (string, error) {
	return f(ctx, samples)
}

// Name implements Engine.
func (f Func) Name() string {
	return "func"
}

// New builds the engine selected by cfg and wraps it in a Guard.
func New(ctx context.Context, cfg *config.Config) (*Guard, error) {
	var (
		engine Engine
		err    error
	)

	switch cfg.ASREngine {
	case config.EngineDeepgram:
		engine, err = NewDeepgram(DeepgramConfig{
			APIKey:     cfg.DeepgramAPIKey,
			Model:      cfg.DeepgramModel,
			Language:   cfg.ASRLanguage,
			SampleRate: cfg.SampleRate,
		})
	case config.EngineWhisper:
		engine, err = NewWhisper(WhisperConfig{
			APIKey:     cfg.OpenAIAPIKey,
			BaseURL:    cfg.OpenAIBaseURL,
			Model:      cfg.WhisperModel,
			Language:   cfg.ASRLanguage,
			SampleRate: cfg.SampleRate,
		})
	case config.EngineRemote:
		engine, err = NewRemote(ctx, RemoteConfig{
			Addr:        cfg.ASRRemoteAddr,
			DialTimeout: time.Duration(cfg.ASRRemoteTimeout) * time.Second,
			SampleRate:  cfg.SampleRate,
			Reconnect: &resilience.ReconnectConfig{
				MaxAttempts: cfg.ReconnectMaxAttempts,
				Backoff:     time.Duration(cfg.ReconnectBackoff) * time.Millisecond,
				Multiplier:  2.0,
				MaxBackoff:  30 * time.Second,
			},
		})
	case config.EngineStatic:
		engine = Static{Text: cfg.StaticTranscript}
	default:
		return nil, fmt.Errorf("unknown ASR engine %q", cfg.ASREngine)
	}
	if err != nil {
		return nil, fmt.Errorf("failed to create %s engine: %w", cfg.ASREngine, err)
	}

	return NewGuard(engine, GuardConfig{
		Timeout:             cfg.ASRTimeout,
		MaxFailures:         cfg.CircuitBreakerMaxFailures,
		ResetTimeout:        time.Duration(cfg.CircuitBreakerResetTimeout) * time.Second,
		RetryMaxAttempts:    cfg.RetryMaxAttempts,
		RetryInitialBackoff: time.Duration(cfg.RetryInitialBackoff) * time.Millisecond,
	}), nil
}

package asr

import (
	"context"
	"errors"
	"strings"
	"time"

	"github.com/rs/zerolog"
	"github.com/rs/zerolog/log"

	"github.com/quranlocator/verse-engine/internal/observability"
	"github.com/quranlocator/verse-engine/internal/resilience"
)

// GuardConfig tunes the protection around an engine.
type GuardConfig struct {
	Timeout             time.Duration // per attempt; zero means none
	MaxFailures         int
	ResetTimeout        time.Duration
	RetryMaxAttempts    int
	RetryInitialBackoff time.Duration
}

// DefaultGuardConfig mirrors the configuration defaults.
func DefaultGuardConfig() GuardConfig {
	return GuardConfig{
		Timeout:             15 * time.Second,
		MaxFailures:         5,
		ResetTimeout:        30 * time.Second,
		RetryMaxAttempts:    3,
		RetryInitialBackoff: 100 * time.Millisecond,
	}
}

// Guard wraps an engine with a circuit breaker and retries. Every failure
// is logged, counted and reported as an empty transcript, so Transcribe
// never returns an error.
type Guard struct {
	engine  Engine
	cfg     GuardConfig
	breaker *resilience.CircuitBreaker
	retry   *resilience.RetryConfig
	logger  zerolog.Logger
}

// NewGuard wraps engine.
func NewGuard(engine Engine, cfg GuardConfig) *Guard {
	breaker := resilience.NewCircuitBreaker(engine.Name(), cfg.MaxFailures, cfg.ResetTimeout)
	breaker.OnStateChange(func(name string, from, to resilience.CircuitState) {
		observability.UpdateCircuitBreakerState(name, int(to))
		log.Warn().
			Str("engine", name).
			Str("from", from.String()).
			Str("to", to.String()).
			Msg("ASR circuit breaker changed state")
	})

	return &Guard{
		engine:  engine,
		cfg:     cfg,
		breaker: breaker,
		retry: &resilience.RetryConfig{
			MaxAttempts:       cfg.RetryMaxAttempts,
			InitialBackoff:    cfg.RetryInitialBackoff,
			MaxBackoff:        5 * time.Second,
			BackoffMultiplier: 2.0,
			Jitter:            true,
		},
		logger: log.With().Str("component", "asr").Str("engine", engine.Name()).Logger(),
	}
}

// Name implements Engine.
func (g *Guard) Name() string {
	return g.engine.Name()
}

// Engine returns the wrapped engine.
func (g *Guard) Engine() Engine {
	return g.engine
}

// Breaker returns the circuit breaker protecting the engine.
func (g *Guard) Breaker() *resilience.CircuitBreaker {
	return g.breaker
}

// Transcribe implements Engine. The returned error is always nil.
func (g *Guard) Transcribe(ctx context.Context, samples []float32) (string, error) {
	if len(samples) == 0 {
		return "", nil
	}

	start := time.Now()
	var text string
	err := g.breaker.Call(func() error {
		return resilience.RetryContext(ctx, func() error {
			attemptCtx := ctx
			if g.cfg.Timeout > 0 {
				var cancel context.CancelFunc
				attemptCtx, cancel = context.WithTimeout(ctx, g.cfg.Timeout)
				defer cancel()
			}
			var err error
			text, err = g.engine.Transcribe(attemptCtx, samples)
			return err
		}, g.retry, resilience.IsRetryableNetworkError)
	})

	observability.ObserveASRLatency(time.Since(start))
	observability.RecordASRRequest(g.engine.Name(), err == nil)

	if err != nil {
		if !errors.Is(err, resilience.ErrCircuitOpen) {
			observability.IncrementCircuitBreakerFailures(g.engine.Name())
		}
		observability.RecordError("transcription", "asr")
		g.logger.Warn().Err(err).Dur("elapsed", time.Since(start)).Msg("Transcription failed")
		return "", nil
	}

	return strings.TrimSpace(text), nil
}

// HealthCheck reports whether the circuit is closed and the engine's own
// check, when it has one, passes.
func (g *Guard) HealthCheck(ctx context.Context) (bool, error) {
	if g.breaker.GetState() == resilience.StateOpen {
		return false, resilience.ErrCircuitOpen
	}
	if hc, ok := g.engine.(HealthChecker); ok {
		return hc.HealthCheck(ctx)
	}
	return true, nil
}

// Close releases the engine's connections.
func (g *Guard) Close() error {
	if c, ok := g.engine.(Closer); ok {
		return c.Close()
	}
	return nil
}

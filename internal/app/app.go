// Package app assembles the corpus, matcher, ASR engine and pipeline from
// configuration. Every host binary starts from an App.
package app

import (
	"context"
	"errors"
	"fmt"
	"os"

	"github.com/rs/zerolog/log"

	"github.com/quranlocator/verse-engine/internal/asr"
	"github.com/quranlocator/verse-engine/internal/audio"
	"github.com/quranlocator/verse-engine/internal/config"
	"github.com/quranlocator/verse-engine/internal/corpus"
	"github.com/quranlocator/verse-engine/internal/match"
	"github.com/quranlocator/verse-engine/internal/observability"
	"github.com/quranlocator/verse-engine/internal/playback"
	"github.com/quranlocator/verse-engine/internal/textnorm"
)

// ErrNoPlayback is returned when a playback-driven pass is requested without
// a loaded waveform.
var ErrNoPlayback = errors.New("no playback audio loaded")

// App is a fully wired engine.
type App struct {
	Config     *config.Config
	Normalizer *textnorm.Normalizer
	Corpus     *corpus.Corpus
	Matcher    match.Matcher
	Engine     asr.Engine
	Pipeline   *playback.Pipeline
	Registry   *playback.Registry
	Playback   *audio.Clip // nil unless PLAYBACK_AUDIO_PATH is set
}

// New loads the corpus, connects the ASR engine and builds the pipeline.
// An empty corpus is fatal.
func New(ctx context.Context, cfg *config.Config) (*App, error) {
	n, err := NewNormalizer(cfg)
	if err != nil {
		return nil, err
	}

	c, err := LoadCorpus(ctx, cfg, n)
	if err != nil {
		return nil, err
	}

	engine, err := asr.New(ctx, cfg)
	if err != nil {
		return nil, err
	}

	a := Assemble(cfg, n, c, engine)
	if cfg.PlaybackAudioPath != "" {
		clip, err := LoadPlayback(cfg.PlaybackAudioPath, cfg.SampleRate)
		if err != nil {
			a.Close()
			return nil, err
		}
		a.Playback = clip
	}
	return a, nil
}

// Assemble wires already constructed parts. A nil normalizer uses the
// default one.
func Assemble(cfg *config.Config, n *textnorm.Normalizer, c *corpus.Corpus, engine asr.Engine) *App {
	if n == nil {
		n = textnorm.Default()
	}
	matcher := match.NewIndexed(c, n, MatchConfig(cfg))
	return &App{
		Config:     cfg,
		Normalizer: n,
		Corpus:     c,
		Matcher:    matcher,
		Engine:     engine,
		Pipeline:   playback.NewPipeline(engine, matcher, PipelineConfig(cfg)),
		Registry:   playback.NewRegistry(cfg.DebounceInterval),
	}
}

// NewNormalizer builds the normalizer selected by cfg.
func NewNormalizer(cfg *config.Config) (*textnorm.Normalizer, error) {
	if !cfg.LenientLetters {
		return textnorm.Default(), nil
	}
	opts := textnorm.DefaultOptions()
	opts.Lenient = true
	n, err := textnorm.New(opts, textnorm.DefaultCacheSize)
	if err != nil {
		return nil, fmt.Errorf("failed to create normalizer: %w", err)
	}
	return n, nil
}

// LoadCorpus reads the configured corpus. Unlike corpus.Load it fails when
// nothing was loaded.
func LoadCorpus(ctx context.Context, cfg *config.Config, n *textnorm.Normalizer) (*corpus.Corpus, error) {
	format, err := corpus.ParseFormat(cfg.CorpusFormat)
	if err != nil {
		return nil, err
	}

	c, loadErr := corpus.Load(ctx, corpus.Source{Path: cfg.CorpusPath, Format: format},
		corpus.WithNormalizer(n))
	observability.SetCorpusVerses(c.Len())
	if err := corpus.Require(c); err != nil {
		if loadErr != nil {
			return nil, errors.Join(err, loadErr)
		}
		return nil, err
	}
	return c, nil
}

// LoadPlayback decodes a WAV file and resamples it to rate.
func LoadPlayback(path string, rate int) (*audio.Clip, error) {
	f, err := os.Open(path)
	if err != nil {
		return nil, fmt.Errorf("failed to open playback audio: %w", err)
	}
	defer f.Close()

	clip, err := audio.DecodeWAV(f)
	if err != nil {
		return nil, fmt.Errorf("failed to decode %s: %w", path, err)
	}
	if err := clip.ToProcessing(rate); err != nil {
		return nil, fmt.Errorf("failed to resample %s: %w", path, err)
	}

	log.Info().
		Str("path", path).
		Float64("duration", clip.Duration()).
		Int("channels", clip.Channels).
		Msg("Playback audio loaded")
	return clip, nil
}

// MatchConfig returns the matcher thresholds from cfg.
func MatchConfig(cfg *config.Config) match.Config {
	return match.Config{
		MinQueryLength: cfg.MinMatchLength,
		MinSimilarity:  cfg.MinSimilarityScore,
	}
}

// PipelineConfig returns the pipeline thresholds from cfg.
func PipelineConfig(cfg *config.Config) playback.Config {
	return playback.Config{
		Window: audio.WindowConfig{
			SampleRate: cfg.SampleRate,
			Forward:    cfg.WindowForward,
			Backward:   cfg.WindowBackward,
		},
		EnergyThreshold: cfg.EnergyThreshold,
	}
}

// VADConfig returns the stream VAD settings from cfg.
func VADConfig(cfg *config.Config) *audio.VADConfig {
	return &audio.VADConfig{
		EnergyThreshold: cfg.VADEnergyThreshold,
		SilenceFrames:   cfg.VADSilenceFrames,
		FrameSize:       cfg.VADFrameSize,
		MaxUtterance:    cfg.VADMaxUtterance,
	}
}

// ProcessPlayback runs a playback-driven pass against the loaded waveform.
func (a *App) ProcessPlayback(ctx context.Context, s *playback.Session, t float64) (playback.Result, error) {
	if a.Playback == nil {
		return playback.Result{}, ErrNoPlayback
	}
	return a.Pipeline.ProcessAt(ctx, s, a.Playback.Samples, t), nil
}

// Checks returns the readiness checks of the app.
func (a *App) Checks() []observability.Check {
	checks := []observability.Check{{
		Name: "corpus",
		Check: func(ctx context.Context) (bool, error) {
			if err := corpus.Require(a.Corpus); err != nil {
				return false, err
			}
			return true, nil
		},
	}}
	if hc, ok := a.Engine.(asr.HealthChecker); ok {
		checks = append(checks, observability.Check{Name: "asr", Check: hc.HealthCheck})
	}
	return checks
}

// Close releases the ASR engine.
func (a *App) Close() error {
	if c, ok := a.Engine.(asr.Closer); ok {
		return c.Close()
	}
	return nil
}

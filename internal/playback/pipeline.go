package playback

import (
	"context"
	"time"

	"github.com/rs/zerolog"
	"github.com/rs/zerolog/log"

	"github.com/quranlocator/verse-engine/internal/asr"
	"github.com/quranlocator/verse-engine/internal/audio"
	"github.com/quranlocator/verse-engine/internal/match"
	"github.com/quranlocator/verse-engine/internal/observability"
)

// Config holds the pipeline thresholds.
type Config struct {
	Window          audio.WindowConfig
	EnergyThreshold float64
}

// DefaultConfig returns the standard window and silence threshold.
func DefaultConfig() Config {
	return Config{
		Window:          audio.DefaultWindowConfig(),
		EnergyThreshold: audio.DefaultEnergyThreshold,
	}
}

// Pipeline runs window -> silence gate -> ASR -> match -> debounce. A pass
// is synchronous; one pipeline serves any number of sessions, and passes on
// the same session are serialized.
type Pipeline struct {
	engine  asr.Engine
	matcher match.Matcher
	cfg     Config
	metrics *observability.Metrics
}

// NewPipeline creates a pipeline.
func NewPipeline(engine asr.Engine, matcher match.Matcher, cfg Config) *Pipeline {
	return &Pipeline{
		engine:  engine,
		matcher: matcher,
		cfg:     cfg,
		metrics: observability.NewStreamMetrics("oneshot"),
	}
}

// Config returns the pipeline thresholds.
func (p *Pipeline) Config() Config {
	return p.cfg
}

// ProcessAt analyzes the window of waveform around playback position t
// (seconds). The debounce compares playback positions, so a session driven
// by ProcessAt should not also be driven by ProcessChunk.
func (p *Pipeline) ProcessAt(ctx context.Context, s *Session, waveform []float32, t float64) Result {
	ts := t
	w, ok := audio.SelectWindow(waveform, t, p.cfg.Window)
	if !ok {
		return p.finish(s, Result{Status: StatusNoChunk, Timestamp: &ts})
	}

	release := acquire(s)
	defer release()

	res := p.analyze(ctx, s, w.Samples, time.Duration(t*float64(time.Second)))
	res.Timestamp = &ts
	return p.finish(s, res)
}

// ProcessChunk analyzes a chunk of samples at the processing rate. The
// debounce uses the session clock.
func (p *Pipeline) ProcessChunk(ctx context.Context, s *Session, samples []float32) Result {
	if len(samples) == 0 {
		return p.finish(s, Result{Status: StatusEmptyChunk})
	}

	release := acquire(s)
	defer release()

	// Read the clock after taking the pass so queued chunks are stamped in
	// the order they run.
	var at time.Duration
	if s != nil {
		at = s.Elapsed()
	}
	return p.finish(s, p.analyze(ctx, s, samples, at))
}

// acquire takes the session's pass lock. A nil session is never shared.
func acquire(s *Session) func() {
	if s == nil {
		return func() {}
	}
	s.pass.Lock()
	return s.pass.Unlock
}

func (p *Pipeline) analyze(ctx context.Context, s *Session, samples []float32, at time.Duration) Result {
	m := p.metricsFor(s)
	m.RecordAudio("analyzed", audio.DurationOf(len(samples), p.cfg.Window.SampleRate).Seconds())

	if audio.IsSilent(samples, p.cfg.EnergyThreshold) {
		return Result{Status: StatusSilence}
	}

	start := time.Now()
	transcript, err := p.engine.Transcribe(ctx, samples)
	asrTime := time.Since(start)
	if err != nil {
		m.RecordError("transcription", "pipeline")
		p.loggerFor(s).Warn().Err(err).Msg("Transcription failed")
		transcript = ""
	}

	res := Result{Transcript: transcript, ASRTime: asrTime}
	if transcript == "" {
		res.Status = StatusNoTranscription
		return res
	}

	start = time.Now()
	best, ok := p.matcher.FindBestMatch(ctx, transcript)
	res.MatchTime = time.Since(start)
	m.RecordMatch(res.MatchTime)
	if !ok {
		res.Status = StatusNoMatch
		return res
	}

	if s != nil && !s.Admit(best.Verse.Key(), at) {
		res.Status = StatusOK
		return res
	}

	res.Status = StatusMatched
	res.Chapter = best.Verse.Chapter
	res.ChapterName = best.Verse.ChapterName
	res.Verse = best.Verse.Number
	res.ArabicText = best.Verse.Text
	res.Confidence = best.Confidence
	res.Exact = best.Exact
	return res
}

func (p *Pipeline) finish(s *Session, res Result) Result {
	p.metricsFor(s).RecordResult(string(res.Status))

	logger := p.loggerFor(s)
	if res.Matched() {
		logger.Info().
			Int("surah", res.Chapter).
			Int("ayah", res.Verse).
			Float64("confidence", res.Confidence).
			Dur("asr_time", res.ASRTime).
			Dur("match_time", res.MatchTime).
			Msg("Verse matched")
	} else {
		logger.Debug().Str("status", string(res.Status)).Str("transcript", res.Transcript).Msg("Pass finished")
	}
	return res
}

func (p *Pipeline) metricsFor(s *Session) *observability.Metrics {
	if s != nil {
		return s.metrics
	}
	return p.metrics
}

func (p *Pipeline) loggerFor(s *Session) *zerolog.Logger {
	if s != nil {
		return &s.logger
	}
	return &log.Logger
}

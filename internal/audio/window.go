package audio

import (
	"math"
	"time"
)

const (
	// DefaultSampleRate is the processing rate every window is expressed in.
	DefaultSampleRate = 16000

	DefaultForward         = 2.0
	DefaultBackward        = 4.0
	DefaultEnergyThreshold = 0.002
)

// WindowConfig describes how much audio around a playback position is
// analyzed.
type WindowConfig struct {
	SampleRate int
	Forward    float64 // seconds after t
	Backward   float64 // seconds before t
}

// DefaultWindowConfig returns the standard window around a playback position.
func DefaultWindowConfig() WindowConfig {
	return WindowConfig{
		SampleRate: DefaultSampleRate,
		Forward:    DefaultForward,
		Backward:   DefaultBackward,
	}
}

// Window is a half-open range [Start, End) of a waveform.
type Window struct {
	Start   int
	End     int
	Rate    int
	Samples []float32 // shares storage with the waveform
}

// Len returns the number of samples in the window.
func (w Window) Len() int {
	return w.End - w.Start
}

// Duration returns the length of the window.
func (w Window) Duration() time.Duration {
	if w.Rate <= 0 {
		return 0
	}
	return time.Duration(float64(w.Len()) / float64(w.Rate) * float64(time.Second))
}

// SelectWindow returns the samples around playback position t (seconds).
// It reports false when t is negative or at or past the end of the waveform.
func SelectWindow(samples []float32, t float64, cfg WindowConfig) (Window, bool) {
	length := len(samples)
	rate := float64(cfg.SampleRate)
	if t < 0 || math.IsNaN(t) || rate <= 0 || t*rate >= float64(length) {
		return Window{}, false
	}

	start := int(math.Round((t - cfg.Backward) * rate))
	if start < 0 {
		start = 0
	}
	end := int(math.Round((t + cfg.Forward) * rate))
	if end > length {
		end = length
	}
	if start >= length || start >= end {
		return Window{}, false
	}

	return Window{
		Start:   start,
		End:     end,
		Rate:    cfg.SampleRate,
		Samples: samples[start:end],
	}, true
}

// IsSilent reports whether the RMS energy of samples is below threshold.
func IsSilent(samples []float32, threshold float64) bool {
	return DetectSilence(samples, threshold)
}

// DurationOf returns the playback length of n samples at rate.
func DurationOf(n, rate int) time.Duration {
	if rate <= 0 {
		return 0
	}
	return time.Duration(float64(n) / float64(rate) * float64(time.Second))
}

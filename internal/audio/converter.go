package audio

import (
	"fmt"
	"math"
)

// PCM16ToFloat32 converts little-endian 16-bit signed PCM to samples in
// [-1, 1).
func PCM16ToFloat32(pcmData []byte) ([]float32, error) {
	if len(pcmData)%2 != 0 {
		return nil, fmt.Errorf("PCM data length must be even (16-bit samples), got %d bytes", len(pcmData))
	}

	samples := make([]float32, len(pcmData)/2)
	for i := range samples {
		s := int16(pcmData[i*2]) | int16(pcmData[i*2+1])<<8
		samples[i] = float32(s) / 32768.0
	}
	return samples, nil
}

// Float32ToPCM16 converts samples to little-endian 16-bit PCM, clipping
// values outside [-1, 1].
func Float32ToPCM16(samples []float32) []byte {
	out := make([]byte, len(samples)*2)
	for i, s := range samples {
		v := toInt16(s)
		out[i*2] = byte(v)
		out[i*2+1] = byte(v >> 8)
	}
	return out
}

func toInt16(s float32) int16 {
	switch {
	case s >= 1.0:
		return math.MaxInt16
	case s <= -1.0:
		return math.MinInt16
	}
	return int16(s * 32767.0)
}

// Downmix averages interleaved frames of the given channel count into mono.
func Downmix(interleaved []float32, channels int) []float32 {
	if channels <= 1 {
		return interleaved
	}

	frames := len(interleaved) / channels
	mono := make([]float32, frames)
	for f := 0; f < frames; f++ {
		var sum float32
		for c := 0; c < channels; c++ {
			sum += interleaved[f*channels+c]
		}
		mono[f] = sum / float32(channels)
	}
	return mono
}

// NormalizeAudio scales samples down so no sample exceeds maxAmplitude.
// Samples already within range are returned unchanged.
func NormalizeAudio(samples []float32, maxAmplitude float32) []float32 {
	if len(samples) == 0 {
		return samples
	}

	var peak float32
	for _, s := range samples {
		if a := float32(math.Abs(float64(s))); a > peak {
			peak = a
		}
	}
	if peak <= maxAmplitude {
		return samples
	}

	ratio := maxAmplitude / peak
	normalized := make([]float32, len(samples))
	for i, s := range samples {
		normalized[i] = s * ratio
	}
	return normalized
}

// CalculateRMS calculates the root mean square of samples. An empty slice
// has zero energy.
func CalculateRMS(samples []float32) float64 {
	if len(samples) == 0 {
		return 0.0
	}

	sum := 0.0
	for _, s := range samples {
		sum += float64(s) * float64(s)
	}
	return math.Sqrt(sum / float64(len(samples)))
}

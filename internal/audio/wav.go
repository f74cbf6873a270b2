package audio

import (
	"bytes"
	"errors"
	"fmt"
	"io"
	"math"

	goaudio "github.com/go-audio/audio"
	"github.com/go-audio/wav"
)

const (
	wavFormatPCM        = 1
	wavFormatFloat      = 3
	wavFormatExtensible = 0xFFFE
)

var (
	// ErrEmptyAudio is returned for clips without a single sample.
	ErrEmptyAudio = errors.New("empty audio")

	// ErrSampleRateMismatch is returned when a clip is not at the processing rate.
	ErrSampleRateMismatch = errors.New("sample rate mismatch")

	// ErrInvalidWAV is returned for data that is not a decodable WAV file.
	ErrInvalidWAV = errors.New("invalid wav")
)

// SampleRateError reports a clip at the wrong rate.
type SampleRateError struct {
	Got  int
	Want int
}

func (e *SampleRateError) Error() string {
	return fmt.Sprintf("sample-rate %d != %d", e.Got, e.Want)
}

// Is makes SampleRateError match ErrSampleRateMismatch.
func (e *SampleRateError) Is(target error) bool {
	return target == ErrSampleRateMismatch
}

// Clip is decoded mono audio.
type Clip struct {
	Samples  []float32
	Rate     int
	Channels int // channel count of the source before downmixing
}

// Duration returns the clip length in seconds.
func (c *Clip) Duration() float64 {
	if c.Rate <= 0 {
		return 0
	}
	return float64(len(c.Samples)) / float64(c.Rate)
}

// RequireRate fails with a *SampleRateError unless the clip is at rate.
func (c *Clip) RequireRate(rate int) error {
	if c.Rate != rate {
		return &SampleRateError{Got: c.Rate, Want: rate}
	}
	return nil
}

// DecodeWAV decodes a PCM or IEEE float WAV stream and downmixes it to mono.
func DecodeWAV(r io.Reader) (*Clip, error) {
	rs, ok := r.(io.ReadSeeker)
	if !ok {
		data, err := io.ReadAll(r)
		if err != nil {
			return nil, fmt.Errorf("read wav: %w", err)
		}
		rs = bytes.NewReader(data)
	}

	decoder := wav.NewDecoder(rs)
	if !decoder.IsValidFile() {
		return nil, ErrInvalidWAV
	}

	format := decoder.WavAudioFormat
	if format != wavFormatPCM && format != wavFormatFloat && format != wavFormatExtensible {
		return nil, fmt.Errorf("%w: unsupported audio format %d", ErrInvalidWAV, format)
	}

	buf, err := decoder.FullPCMBuffer()
	if err != nil {
		return nil, fmt.Errorf("%w: %v", ErrInvalidWAV, err)
	}

	channels := int(decoder.NumChans)
	if channels < 1 {
		channels = 1
	}
	interleaved, err := intsToFloat32(buf.Data, int(decoder.BitDepth), format == wavFormatFloat)
	if err != nil {
		return nil, err
	}

	clip := &Clip{
		Samples:  Downmix(interleaved, channels),
		Rate:     int(decoder.SampleRate),
		Channels: channels,
	}
	if len(clip.Samples) == 0 {
		return clip, ErrEmptyAudio
	}
	return clip, nil
}

func intsToFloat32(data []int, bitDepth int, float bool) ([]float32, error) {
	out := make([]float32, len(data))
	if float {
		if bitDepth != 32 {
			return nil, fmt.Errorf("%w: unsupported float bit depth %d", ErrInvalidWAV, bitDepth)
		}
		for i, v := range data {
			out[i] = math.Float32frombits(uint32(int32(v)))
		}
		return out, nil
	}

	switch bitDepth {
	case 8:
		// 8-bit PCM is unsigned
		for i, v := range data {
			out[i] = float32(v-128) / 128.0
		}
	case 16, 24, 32:
		scale := float32(int64(1) << uint(bitDepth-1))
		for i, v := range data {
			out[i] = float32(v) / scale
		}
	default:
		return nil, fmt.Errorf("%w: unsupported bit depth %d", ErrInvalidWAV, bitDepth)
	}
	return out, nil
}

// EncodeWAV writes mono samples as a 16-bit PCM WAV file.
func EncodeWAV(samples []float32, rate int) ([]byte, error) {
	data := make([]int, len(samples))
	for i, s := range samples {
		data[i] = int(toInt16(s))
	}

	out := &seekBuffer{}
	enc := wav.NewEncoder(out, rate, 16, 1, wavFormatPCM)
	buf := &goaudio.IntBuffer{
		Format:         &goaudio.Format{NumChannels: 1, SampleRate: rate},
		Data:           data,
		SourceBitDepth: 16,
	}
	if err := enc.Write(buf); err != nil {
		return nil, fmt.Errorf("encode wav: %w", err)
	}
	if err := enc.Close(); err != nil {
		return nil, fmt.Errorf("finalize wav: %w", err)
	}
	return out.buf, nil
}

// seekBuffer is an in-memory io.WriteSeeker; the encoder seeks back to
// patch chunk sizes on Close.
type seekBuffer struct {
	buf []byte
	pos int
}

func (b *seekBuffer) Write(p []byte) (int, error) {
	if need := b.pos + len(p); need > len(b.buf) {
		b.buf = append(b.buf, make([]byte, need-len(b.buf))...)
	}
	n := copy(b.buf[b.pos:], p)
	b.pos += n
	return n, nil
}

func (b *seekBuffer) Seek(offset int64, whence int) (int64, error) {
	var abs int64
	switch whence {
	case io.SeekStart:
		abs = offset
	case io.SeekCurrent:
		abs = int64(b.pos) + offset
	case io.SeekEnd:
		abs = int64(len(b.buf)) + offset
	default:
		return 0, fmt.Errorf("invalid whence %d", whence)
	}
	if abs < 0 {
		return 0, fmt.Errorf("negative position %d", abs)
	}
	b.pos = int(abs)
	return abs, nil
}

package audio

import (
	"bytes"
	"encoding/binary"
	"errors"
	"math"
	"testing"
)

// rawWAV builds a canonical single-chunk WAV file.
func rawWAV(format, channels, rate, bits int, data []byte) []byte {
	var b bytes.Buffer
	b.WriteString("RIFF")
	binary.Write(&b, binary.LittleEndian, uint32(36+len(data)))
	b.WriteString("WAVE")
	b.WriteString("fmt ")
	binary.Write(&b, binary.LittleEndian, uint32(16))
	binary.Write(&b, binary.LittleEndian, uint16(format))
	binary.Write(&b, binary.LittleEndian, uint16(channels))
	binary.Write(&b, binary.LittleEndian, uint32(rate))
	binary.Write(&b, binary.LittleEndian, uint32(rate*channels*bits/8))
	binary.Write(&b, binary.LittleEndian, uint16(channels*bits/8))
	binary.Write(&b, binary.LittleEndian, uint16(bits))
	b.WriteString("data")
	binary.Write(&b, binary.LittleEndian, uint32(len(data)))
	b.Write(data)
	return b.Bytes()
}

func TestEncodeDecodeWAV(t *testing.T) {
	samples := make([]float32, 1600)
	for i := range samples {
		samples[i] = float32(0.5 * math.Sin(2*math.Pi*440*float64(i)/16000))
	}

	data, err := EncodeWAV(samples, 16000)
	if err != nil {
		t.Fatalf("EncodeWAV failed: %v", err)
	}
	if string(data[:4]) != "RIFF" || string(data[8:12]) != "WAVE" {
		t.Fatalf("Expected a RIFF/WAVE header, got %q", data[:12])
	}

	clip, err := DecodeWAV(bytes.NewReader(data))
	if err != nil {
		t.Fatalf("DecodeWAV failed: %v", err)
	}
	if clip.Rate != 16000 {
		t.Errorf("Expected rate 16000, got %d", clip.Rate)
	}
	if len(clip.Samples) != len(samples) {
		t.Fatalf("Expected %d samples, got %d", len(samples), len(clip.Samples))
	}
	for i := range samples {
		if math.Abs(float64(clip.Samples[i]-samples[i])) > 1e-3 {
			t.Fatalf("Sample %d: expected %f, got %f", i, samples[i], clip.Samples[i])
		}
	}
}

func TestDecodeWAV_StereoDownmix(t *testing.T) {
	frames := []int16{16384, 0, 16384, 0}
	pcm := make([]byte, len(frames)*2)
	for i, s := range frames {
		binary.LittleEndian.PutUint16(pcm[i*2:], uint16(s))
	}

	clip, err := DecodeWAV(bytes.NewReader(rawWAV(1, 2, 8000, 16, pcm)))
	if err != nil {
		t.Fatalf("DecodeWAV failed: %v", err)
	}
	if clip.Channels != 2 {
		t.Errorf("Expected 2 source channels, got %d", clip.Channels)
	}
	if len(clip.Samples) != 2 {
		t.Fatalf("Expected 2 mono frames, got %d", len(clip.Samples))
	}
	if math.Abs(float64(clip.Samples[0])-0.25) > 1e-4 {
		t.Errorf("Expected 0.25 after downmix, got %f", clip.Samples[0])
	}
}

func TestDecodeWAV_Float32(t *testing.T) {
	values := []float32{0.5, -0.25, 0.125}
	raw := make([]byte, len(values)*4)
	for i, v := range values {
		binary.LittleEndian.PutUint32(raw[i*4:], math.Float32bits(v))
	}

	clip, err := DecodeWAV(bytes.NewReader(rawWAV(3, 1, 16000, 32, raw)))
	if err != nil {
		t.Fatalf("DecodeWAV failed: %v", err)
	}
	for i, v := range values {
		if clip.Samples[i] != v {
			t.Errorf("Sample %d: expected %f, got %f", i, v, clip.Samples[i])
		}
	}
}

func TestDecodeWAV_Invalid(t *testing.T) {
	_, err := DecodeWAV(bytes.NewReader([]byte("definitely not a wav file")))
	if !errors.Is(err, ErrInvalidWAV) {
		t.Errorf("Expected ErrInvalidWAV, got %v", err)
	}
}

func TestClip_RequireRate(t *testing.T) {
	clip := &Clip{Samples: []float32{0}, Rate: 44100}

	err := clip.RequireRate(16000)
	if !errors.Is(err, ErrSampleRateMismatch) {
		t.Fatalf("Expected ErrSampleRateMismatch, got %v", err)
	}
	if err.Error() != "sample-rate 44100 != 16000" {
		t.Errorf("Expected %q, got %q", "sample-rate 44100 != 16000", err.Error())
	}

	clip.Rate = 16000
	if err := clip.RequireRate(16000); err != nil {
		t.Errorf("Expected no error, got %v", err)
	}
}

func TestResample_SameRate(t *testing.T) {
	in := []float32{0.1, 0.2}
	out, err := Resample(in, 16000, 16000)
	if err != nil {
		t.Fatalf("Resample failed: %v", err)
	}
	if len(out) != 2 || out[0] != 0.1 {
		t.Errorf("Expected samples unchanged, got %v", out)
	}
}

func TestResample_Downsample(t *testing.T) {
	in := make([]float32, 48000)
	for i := range in {
		in[i] = float32(0.3 * math.Sin(2*math.Pi*300*float64(i)/48000))
	}

	out, err := Resample(in, 48000, 16000)
	if err != nil {
		t.Fatalf("Resample failed: %v", err)
	}

	// One second in, about one second out; the filter may hold back a tail.
	if len(out) < 15000 || len(out) > 16500 {
		t.Errorf("Expected about 16000 samples, got %d", len(out))
	}
}

func TestResample_InvalidRate(t *testing.T) {
	if _, err := Resample([]float32{0.1}, 0, 16000); err == nil {
		t.Error("Expected error for a zero input rate")
	}
}

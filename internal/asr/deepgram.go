package asr

import (
	"bytes"
	"context"
	"fmt"
	"io"

	interfaces "github.com/deepgram/deepgram-go-sdk/v3/pkg/client/interfaces"
	listenClient "github.com/deepgram/deepgram-go-sdk/v3/pkg/client/listen"
	"github.com/rs/zerolog/log"

	"github.com/quranlocator/verse-engine/internal/audio"
	"github.com/quranlocator/verse-engine/internal/config"
)

// DeepgramConfig configures the prerecorded Deepgram engine.
type DeepgramConfig struct {
	APIKey     string
	Model      string // nova-2, enhanced, base
	Language   string
	SampleRate int
	Host       string // optional API host override
}

// prerecordedStreamer is the part of the Deepgram REST client the engine uses.
type prerecordedStreamer interface {
	DoStream(ctx context.Context, src io.Reader, options *interfaces.PreRecordedTranscriptionOptions, resBody interface{}) error
}

// prerecordedResponse holds the fields of a prerecorded response we read.
type prerecordedResponse struct {
	Results struct {
		Channels []struct {
			Alternatives []struct {
				Transcript string  `json:"transcript"`
				Confidence float64 `json:"confidence"`
			} `json:"alternatives"`
		} `json:"channels"`
	} `json:"results"`
}

// Deepgram transcribes windows with Deepgram's prerecorded REST API.
type Deepgram struct {
	client  prerecordedStreamer
	options *interfaces.PreRecordedTranscriptionOptions
	rate    int
}

// NewDeepgram creates a Deepgram engine.
func NewDeepgram(cfg DeepgramConfig) (*Deepgram, error) {
	if cfg.APIKey == "" {
		return nil, fmt.Errorf("deepgram API key is required")
	}

	client := listenClient.NewREST(cfg.APIKey, &interfaces.ClientOptions{Host: cfg.Host})
	return newDeepgramWithClient(client, cfg), nil
}

func newDeepgramWithClient(client prerecordedStreamer, cfg DeepgramConfig) *Deepgram {
	rate := cfg.SampleRate
	if rate <= 0 {
		rate = audio.DefaultSampleRate
	}
	d := &Deepgram{
		client: client,
		options: &interfaces.PreRecordedTranscriptionOptions{
			Model:    cfg.Model,
			Language: cfg.Language,
		},
		rate: rate,
	}
	log.Debug().Str("model", cfg.Model).Str("language", cfg.Language).Msg("Deepgram engine ready")
	return d
}

// Name implements Engine.
func (d *Deepgram) Name() string {
	return config.EngineDeepgram
}

// Transcribe implements Engine.
func (d *Deepgram) Transcribe(ctx context.Context, samples []float32) (string, error) {
	if len(samples) == 0 {
		return "", ErrNoAudio
	}

	wav, err := audio.EncodeWAV(samples, d.rate)
	if err != nil {
		return "", err
	}

	var res prerecordedResponse
	if err := d.client.DoStream(ctx, bytes.NewReader(wav), d.options, &res); err != nil {
		return "", fmt.Errorf("deepgram transcription failed: %w", err)
	}

	// The first alternative of the first channel is the best guess
	for _, ch := range res.Results.Channels {
		if len(ch.Alternatives) > 0 {
			return ch.Alternatives[0].Transcript, nil
		}
	}
	return "", nil
}

package asr

import (
	"bytes"
	"context"
	"fmt"
	"net/http"

	"github.com/openai/openai-go"
	"github.com/openai/openai-go/option"

	"github.com/quranlocator/verse-engine/internal/audio"
	"github.com/quranlocator/verse-engine/internal/config"
)

// WhisperConfig configures the OpenAI transcription engine. BaseURL points
// it at any OpenAI-compatible server, including local Whisper deployments.
type WhisperConfig struct {
	APIKey     string
	BaseURL    string
	Model      string
	Language   string
	SampleRate int
	HTTPClient *http.Client
}

// Whisper transcribes windows through the audio transcriptions endpoint.
type Whisper struct {
	client   *openai.Client
	model    string
	language string
	rate     int
}

// NewWhisper creates a Whisper engine.
func NewWhisper(cfg WhisperConfig) (*Whisper, error) {
	if cfg.APIKey == "" && cfg.BaseURL == "" {
		return nil, fmt.Errorf("an API key or base URL is required")
	}

	httpClient := cfg.HTTPClient
	if httpClient == nil {
		httpClient = http.DefaultClient
	}
	apiKey := cfg.APIKey
	if apiKey == "" {
		// Local servers ignore the key but the client requires one.
		apiKey = "local"
	}

	clientOpts := []option.RequestOption{
		option.WithAPIKey(apiKey),
		option.WithHTTPClient(httpClient),
		// Retries belong to the Guard.
		option.WithMaxRetries(0),
	}
	if cfg.BaseURL != "" {
		clientOpts = append(clientOpts, option.WithBaseURL(cfg.BaseURL))
	}
	client := openai.NewClient(clientOpts...)

	model := cfg.Model
	if model == "" {
		model = "whisper-1"
	}
	rate := cfg.SampleRate
	if rate <= 0 {
		rate = audio.DefaultSampleRate
	}

	return &Whisper{
		client:   &client,
		model:    model,
		language: cfg.Language,
		rate:     rate,
	}, nil
}

// Name implements Engine.
func (w *Whisper) Name() string {
	return config.EngineWhisper
}

// Transcribe implements Engine.
func (w *Whisper) Transcribe(ctx context.Context, samples []float32) (string, error) {
	if len(samples) == 0 {
		return "", ErrNoAudio
	}

	wav, err := audio.EncodeWAV(samples, w.rate)
	if err != nil {
		return "", err
	}

	params := openai.AudioTranscriptionNewParams{
		File:  openai.File(bytes.NewReader(wav), "chunk.wav", "audio/wav"),
		Model: openai.AudioModel(w.model),
	}
	if w.language != "" {
		params.Language = openai.String(w.language)
	}

	res, err := w.client.Audio.Transcriptions.New(ctx, params)
	if err != nil {
		return "", fmt.Errorf("whisper transcription failed: %w", err)
	}
	return res.Text, nil
}

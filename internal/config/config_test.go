package config

import (
	"strings"
	"testing"
	"time"
)

func TestLoad(t *testing.T) {
	t.Setenv("ASR_ENGINE", "deepgram")
	t.Setenv("DEEPGRAM_API_KEY", "test-deepgram-key")

	cfg, err := Load()
	if err != nil {
		t.Fatalf("Load() failed: %v", err)
	}

	if cfg.DeepgramAPIKey != "test-deepgram-key" {
		t.Errorf("Expected DeepgramAPIKey 'test-deepgram-key', got '%s'", cfg.DeepgramAPIKey)
	}
	if cfg.ASREngine != EngineDeepgram {
		t.Errorf("Expected ASREngine 'deepgram', got '%s'", cfg.ASREngine)
	}
}

func TestLoad_MissingRequired(t *testing.T) {
	t.Setenv("ASR_ENGINE", "deepgram")
	t.Setenv("DEEPGRAM_API_KEY", "")

	_, err := Load()
	if err == nil {
		t.Fatal("Expected error when the Deepgram key is missing")
	}
	if !strings.Contains(err.Error(), "DEEPGRAM_API_KEY") {
		t.Errorf("Expected error to name DEEPGRAM_API_KEY, got %v", err)
	}
}

func TestLoad_Defaults(t *testing.T) {
	t.Setenv("ASR_ENGINE", "static")

	cfg, err := Load()
	if err != nil {
		t.Fatalf("Load() failed: %v", err)
	}

	if cfg.Port != "8080" {
		t.Errorf("Expected default Port '8080', got '%s'", cfg.Port)
	}
	if cfg.SampleRate != 16000 {
		t.Errorf("Expected default SampleRate 16000, got %d", cfg.SampleRate)
	}
	if cfg.WindowForward != 2.0 {
		t.Errorf("Expected default WindowForward 2.0, got %f", cfg.WindowForward)
	}
	if cfg.WindowBackward != 4.0 {
		t.Errorf("Expected default WindowBackward 4.0, got %f", cfg.WindowBackward)
	}
	if cfg.MinMatchLength != 8 {
		t.Errorf("Expected default MinMatchLength 8, got %d", cfg.MinMatchLength)
	}
	if cfg.MinSimilarityScore != 65 {
		t.Errorf("Expected default MinSimilarityScore 65, got %f", cfg.MinSimilarityScore)
	}
	if cfg.EnergyThreshold != 0.002 {
		t.Errorf("Expected default EnergyThreshold 0.002, got %f", cfg.EnergyThreshold)
	}
	if cfg.DebounceInterval != 2*time.Second {
		t.Errorf("Expected default DebounceInterval 2s, got %s", cfg.DebounceInterval)
	}
	if cfg.CorpusFormat != "auto" {
		t.Errorf("Expected default CorpusFormat 'auto', got '%s'", cfg.CorpusFormat)
	}
	if cfg.ASRLanguage != "ar" {
		t.Errorf("Expected default ASRLanguage 'ar', got '%s'", cfg.ASRLanguage)
	}
	if cfg.DeepgramModel != "nova-2" {
		t.Errorf("Expected default DeepgramModel 'nova-2', got '%s'", cfg.DeepgramModel)
	}
	if cfg.WhisperModel != "whisper-1" {
		t.Errorf("Expected default WhisperModel 'whisper-1', got '%s'", cfg.WhisperModel)
	}
	if cfg.VADFrameSize != 320 {
		t.Errorf("Expected default VADFrameSize 320, got %d", cfg.VADFrameSize)
	}
	if cfg.CircuitBreakerMaxFailures != 5 {
		t.Errorf("Expected default CircuitBreakerMaxFailures 5, got %d", cfg.CircuitBreakerMaxFailures)
	}
	if cfg.LogLevel != "info" {
		t.Errorf("Expected default LogLevel 'info', got '%s'", cfg.LogLevel)
	}
	if !cfg.MetricsEnabled {
		t.Error("Expected metrics to be enabled by default")
	}
}

func TestLoad_Overrides(t *testing.T) {
	t.Setenv("ASR_ENGINE", " Static ")
	t.Setenv("DEBOUNCE_INTERVAL", "500ms")
	t.Setenv("MIN_SIMILARITY_SCORE", "80")
	t.Setenv("LENIENT_LETTERS", "true")

	cfg, err := Load()
	if err != nil {
		t.Fatalf("Load() failed: %v", err)
	}
	if cfg.ASREngine != EngineStatic {
		t.Errorf("Expected ASREngine normalized to 'static', got '%s'", cfg.ASREngine)
	}
	if cfg.DebounceInterval != 500*time.Millisecond {
		t.Errorf("Expected DebounceInterval 500ms, got %s", cfg.DebounceInterval)
	}
	if cfg.MinSimilarityScore != 80 {
		t.Errorf("Expected MinSimilarityScore 80, got %f", cfg.MinSimilarityScore)
	}
	if !cfg.LenientLetters {
		t.Error("Expected LenientLetters to be true")
	}
}

func TestValidate(t *testing.T) {
	base := func() Config {
		return Config{
			SampleRate:         16000,
			WindowForward:      2,
			WindowBackward:     4,
			MinMatchLength:     8,
			MinSimilarityScore: 65,
			ASREngine:          EngineStatic,
			ASRRemoteAddr:      "localhost:50051",
		}
	}

	tests := []struct {
		name    string
		mutate  func(*Config)
		wantErr string
	}{
		{"valid", func(c *Config) {}, ""},
		{"zero sample rate", func(c *Config) { c.SampleRate = 0 }, "SAMPLE_RATE"},
		{"similarity above 100", func(c *Config) { c.MinSimilarityScore = 101 }, "MIN_SIMILARITY_SCORE"},
		{"empty window", func(c *Config) { c.WindowForward, c.WindowBackward = 0, 0 }, "positive duration"},
		{"unknown engine", func(c *Config) { c.ASREngine = "vosk" }, "unknown ASR_ENGINE"},
		{"whisper without key", func(c *Config) { c.ASREngine = EngineWhisper }, "OPENAI_API_KEY"},
		{"whisper with local server", func(c *Config) {
			c.ASREngine = EngineWhisper
			c.OpenAIBaseURL = "http://localhost:8000/v1"
		}, ""},
		{"remote without address", func(c *Config) {
			c.ASREngine = EngineRemote
			c.ASRRemoteAddr = ""
		}, "ASR_REMOTE_ADDR"},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			cfg := base()
			tt.mutate(&cfg)
			err := cfg.Validate()
			if tt.wantErr == "" {
				if err != nil {
					t.Errorf("Expected no error, got %v", err)
				}
				return
			}
			if err == nil || !strings.Contains(err.Error(), tt.wantErr) {
				t.Errorf("Expected error containing %q, got %v", tt.wantErr, err)
			}
		})
	}
}

func TestOrigins(t *testing.T) {
	cfg := Config{AllowedOrigins: "chrome-extension://abc, http://localhost:3000,,"}
	origins := cfg.Origins()
	if len(origins) != 2 {
		t.Fatalf("Expected 2 origins, got %v", origins)
	}
	if origins[1] != "http://localhost:3000" {
		t.Errorf("Expected trimmed origin, got %q", origins[1])
	}
}

func TestGetEnv(t *testing.T) {
	t.Setenv("VERSE_ENGINE_TEST_KEY", "value")
	if GetEnv("VERSE_ENGINE_TEST_KEY", "default") != "value" {
		t.Error("Expected environment value")
	}
	if GetEnv("VERSE_ENGINE_MISSING_KEY", "default") != "default" {
		t.Error("Expected default value")
	}
}

func TestParse_SkipsASRValidation(t *testing.T) {
	t.Setenv("ASR_ENGINE", " Deepgram ")
	t.Setenv("DEEPGRAM_API_KEY", "")

	cfg, err := Parse()
	if err != nil {
		t.Fatalf("Parse() failed: %v", err)
	}
	if cfg.ASREngine != EngineDeepgram {
		t.Errorf("Expected normalized engine name, got %q", cfg.ASREngine)
	}
	if err := cfg.ValidateCore(); err != nil {
		t.Errorf("Expected core settings to be valid, got %v", err)
	}
	if err := cfg.ValidateASR(); err == nil {
		t.Error("Expected ValidateASR to require the Deepgram key")
	}
}

package config

import (
	"errors"
	"fmt"
	"os"
	"strings"
	"time"

	"github.com/joho/godotenv"
	"github.com/kelseyhightower/envconfig"
)

// ASR engine names accepted by ASR_ENGINE.
const (
	EngineDeepgram = "deepgram"
	EngineWhisper  = "whisper"
	EngineRemote   = "remote"
	EngineStatic   = "static"
)

// Config holds all configuration for the verse engine
type Config struct {
	// Server configuration
	Port           string `envconfig:"PORT" default:"8080"`
	MaxUploadBytes int64  `envconfig:"MAX_UPLOAD_BYTES" default:"10485760"` // Largest accepted /process_chunk body
	AllowedOrigins string `envconfig:"ALLOWED_ORIGINS" default:"*"`         // Comma separated CORS origins

	// Corpus configuration
	CorpusPath     string `envconfig:"CORPUS_PATH" default:"data/quran.json"`
	CorpusFormat   string `envconfig:"CORPUS_FORMAT" default:"auto"` // auto, json, verse-table, word-table, chapter-dir
	LenientLetters bool   `envconfig:"LENIENT_LETTERS" default:"false"`

	// Matching and playback window configuration
	SampleRate         int           `envconfig:"SAMPLE_RATE" default:"16000"`
	WindowForward      float64       `envconfig:"WINDOW_FORWARD" default:"2.0"`  // seconds after the playback position
	WindowBackward     float64       `envconfig:"WINDOW_BACKWARD" default:"4.0"` // seconds before the playback position
	MinMatchLength     int           `envconfig:"MIN_MATCH_LENGTH" default:"8"`
	MinSimilarityScore float64       `envconfig:"MIN_SIMILARITY_SCORE" default:"65"`
	EnergyThreshold    float64       `envconfig:"ENERGY_THRESHOLD" default:"0.002"` // RMS below which a window is silence
	DebounceInterval   time.Duration `envconfig:"DEBOUNCE_INTERVAL" default:"2s"`
	PlaybackAudioPath  string        `envconfig:"PLAYBACK_AUDIO_PATH" default:""` // Waveform served by POST /process

	// ASR configuration
	ASREngine        string        `envconfig:"ASR_ENGINE" default:"deepgram"` // deepgram, whisper, remote, static
	ASRLanguage      string        `envconfig:"ASR_LANGUAGE" default:"ar"`
	ASRTimeout       time.Duration `envconfig:"ASR_TIMEOUT" default:"15s"`
	DeepgramAPIKey   string        `envconfig:"DEEPGRAM_API_KEY"`
	DeepgramModel    string        `envconfig:"DEEPGRAM_MODEL" default:"nova-2"`
	OpenAIAPIKey     string        `envconfig:"OPENAI_API_KEY"`
	OpenAIBaseURL    string        `envconfig:"OPENAI_BASE_URL" default:""` // OpenAI-compatible local servers
	WhisperModel     string        `envconfig:"WHISPER_MODEL" default:"whisper-1"`
	ASRRemoteAddr    string        `envconfig:"ASR_REMOTE_ADDR" default:"localhost:50051"`
	ASRRemoteTimeout int           `envconfig:"ASR_REMOTE_TIMEOUT" default:"10"` // seconds, dial timeout
	StaticTranscript string        `envconfig:"STATIC_TRANSCRIPT" default:""`

	// Stream VAD configuration
	VADEnergyThreshold float64 `envconfig:"VAD_ENERGY_THRESHOLD" default:"0.01"` // RMS energy threshold for VAD
	VADSilenceFrames   int     `envconfig:"VAD_SILENCE_FRAMES" default:"25"`     // Frames of silence to mark speech end
	VADFrameSize       int     `envconfig:"VAD_FRAME_SIZE" default:"320"`        // Samples per VAD frame
	VADMaxUtterance    float64 `envconfig:"VAD_MAX_UTTERANCE" default:"8.0"`     // Seconds before a running utterance is cut

	// Resilience configuration
	CircuitBreakerMaxFailures  int `envconfig:"CIRCUIT_BREAKER_MAX_FAILURES" default:"5"`   // Failures before opening circuit
	CircuitBreakerResetTimeout int `envconfig:"CIRCUIT_BREAKER_RESET_TIMEOUT" default:"30"` // Seconds before attempting recovery
	RetryMaxAttempts           int `envconfig:"RETRY_MAX_ATTEMPTS" default:"3"`             // Maximum retry attempts
	RetryInitialBackoff        int `envconfig:"RETRY_INITIAL_BACKOFF" default:"100"`        // Initial backoff in milliseconds
	ReconnectMaxAttempts       int `envconfig:"RECONNECT_MAX_ATTEMPTS" default:"5"`         // Maximum reconnection attempts
	ReconnectBackoff           int `envconfig:"RECONNECT_BACKOFF" default:"1000"`           // Reconnection backoff in milliseconds

	// Observability configuration
	LogLevel       string `envconfig:"LOG_LEVEL" default:"info"`       // Log level: debug, info, warn, error
	LogPretty      bool   `envconfig:"LOG_PRETTY" default:"false"`     // Pretty print logs (for development)
	MetricsEnabled bool   `envconfig:"METRICS_ENABLED" default:"true"` // Enable Prometheus metrics
}

// Load reads configuration from environment variables
// It first attempts to load from .env file if it exists, then from environment
func Load() (*Config, error) {
	// Try to load .env file (ignore error if it doesn't exist)
	_ = godotenv.Load()
	return LoadFromEnv()
}

// LoadFromEnv loads configuration directly from environment variables
// without attempting to load .env file (useful for containerized deployments)
func LoadFromEnv() (*Config, error) {
	cfg, err := Parse()
	if err != nil {
		return nil, err
	}
	if err := cfg.Validate(); err != nil {
		return nil, err
	}
	return cfg, nil
}

// Parse reads environment variables without validating them. Tools that
// never transcribe use it with ValidateCore.
func Parse() (*Config, error) {
	var cfg Config
	if err := envconfig.Process("", &cfg); err != nil {
		return nil, fmt.Errorf("failed to load config: %w", err)
	}
	cfg.ASREngine = strings.ToLower(strings.TrimSpace(cfg.ASREngine))
	return &cfg, nil
}

// Validate checks value ranges and the keys the selected ASR engine needs
func (c *Config) Validate() error {
	return errors.Join(c.ValidateCore(), c.ValidateASR())
}

// ValidateCore checks the matching and window settings
func (c *Config) ValidateCore() error {
	var errs []error

	if c.SampleRate <= 0 {
		errs = append(errs, fmt.Errorf("SAMPLE_RATE must be positive, got %d", c.SampleRate))
	}
	if c.WindowForward < 0 || c.WindowBackward < 0 {
		errs = append(errs, fmt.Errorf("WINDOW_FORWARD and WINDOW_BACKWARD must not be negative"))
	}
	if c.WindowForward+c.WindowBackward <= 0 {
		errs = append(errs, fmt.Errorf("playback window must span a positive duration"))
	}
	if c.MinSimilarityScore < 0 || c.MinSimilarityScore > 100 {
		errs = append(errs, fmt.Errorf("MIN_SIMILARITY_SCORE must be within [0, 100], got %g", c.MinSimilarityScore))
	}
	if c.MinMatchLength < 0 {
		errs = append(errs, fmt.Errorf("MIN_MATCH_LENGTH must not be negative, got %d", c.MinMatchLength))
	}
	if c.DebounceInterval < 0 {
		errs = append(errs, fmt.Errorf("DEBOUNCE_INTERVAL must not be negative, got %s", c.DebounceInterval))
	}
	return errors.Join(errs...)
}

// ValidateASR checks the keys the selected ASR engine needs
func (c *Config) ValidateASR() error {
	var errs []error
	switch c.ASREngine {
	case EngineDeepgram:
		if c.DeepgramAPIKey == "" {
			errs = append(errs, fmt.Errorf("DEEPGRAM_API_KEY is required when ASR_ENGINE=deepgram"))
		}
	case EngineWhisper:
		if c.OpenAIAPIKey == "" && c.OpenAIBaseURL == "" {
			errs = append(errs, fmt.Errorf("OPENAI_API_KEY or OPENAI_BASE_URL is required when ASR_ENGINE=whisper"))
		}
	case EngineRemote:
		if c.ASRRemoteAddr == "" {
			errs = append(errs, fmt.Errorf("ASR_REMOTE_ADDR is required when ASR_ENGINE=remote"))
		}
	case EngineStatic:
	default:
		errs = append(errs, fmt.Errorf("unknown ASR_ENGINE %q", c.ASREngine))
	}

	return errors.Join(errs...)
}

// Origins returns the configured CORS origins
func (c *Config) Origins() []string {
	var origins []string
	for _, o := range strings.Split(c.AllowedOrigins, ",") {
		if o = strings.TrimSpace(o); o != "" {
			origins = append(origins, o)
		}
	}
	return origins
}

// GetEnv returns the value of an environment variable or a default value
func GetEnv(key, defaultValue string) string {
	if value := os.Getenv(key); value != "" {
		return value
	}
	return defaultValue
}

package asr

import (
	"bytes"
	"context"
	"encoding/json"
	"errors"
	"io"
	"net"
	"net/http"
	"net/http/httptest"
	"strings"
	"testing"
	"time"

	interfaces "github.com/deepgram/deepgram-go-sdk/v3/pkg/client/interfaces"
	"google.golang.org/grpc"
	"google.golang.org/grpc/test/bufconn"

	"github.com/quranlocator/verse-engine/internal/audio"
	"github.com/quranlocator/verse-engine/internal/config"
)

func tone(n int) []float32 {
	samples := make([]float32, n)
	for i := range samples {
		if i%2 == 0 {
			samples[i] = 0.2
		} else {
			samples[i] = -0.2
		}
	}
	return samples
}

type fakeStreamer struct {
	gotWAV  []byte
	options *interfaces.PreRecordedTranscriptionOptions
	body    string
	err     error
}

func (f *fakeStreamer) DoStream(ctx context.Context, src io.Reader, options *interfaces.PreRecordedTranscriptionOptions, resBody interface{}) error {
	if f.err != nil {
		return f.err
	}
	f.gotWAV, _ = io.ReadAll(src)
	f.options = options
	return json.Unmarshal([]byte(f.body), resBody)
}

func TestDeepgram_Transcribe(t *testing.T) {
	fake := &fakeStreamer{
		body: `{"results":{"channels":[{"alternatives":[{"transcript":"قل هو الله أحد","confidence":0.93}]}]}}`,
	}
	d := newDeepgramWithClient(fake, DeepgramConfig{Model: "nova-2", Language: "ar", SampleRate: 16000})

	text, err := d.Transcribe(context.Background(), tone(1600))
	if err != nil {
		t.Fatalf("Transcribe failed: %v", err)
	}
	if text != "قل هو الله أحد" {
		t.Errorf("Expected transcript, got %q", text)
	}
	if fake.options.Model != "nova-2" || fake.options.Language != "ar" {
		t.Errorf("Expected model and language to be forwarded, got %+v", fake.options)
	}

	clip, err := audio.DecodeWAV(bytes.NewReader(fake.gotWAV))
	if err != nil {
		t.Fatalf("Expected a decodable WAV upload, got %v", err)
	}
	if clip.Rate != 16000 || len(clip.Samples) != 1600 {
		t.Errorf("Expected 1600 samples at 16000 Hz, got %d at %d", len(clip.Samples), clip.Rate)
	}
}

func TestDeepgram_EmptyResults(t *testing.T) {
	d := newDeepgramWithClient(&fakeStreamer{body: `{"results":{"channels":[]}}`}, DeepgramConfig{})
	text, err := d.Transcribe(context.Background(), tone(10))
	if err != nil || text != "" {
		t.Errorf("Expected empty transcript without error, got %q, %v", text, err)
	}
}

func TestDeepgram_Errors(t *testing.T) {
	d := newDeepgramWithClient(&fakeStreamer{err: errors.New("401 unauthorized")}, DeepgramConfig{})
	if _, err := d.Transcribe(context.Background(), tone(10)); err == nil {
		t.Error("Expected the client error to surface")
	}
	if _, err := d.Transcribe(context.Background(), nil); !errors.Is(err, ErrNoAudio) {
		t.Errorf("Expected ErrNoAudio, got %v", err)
	}
	if _, err := NewDeepgram(DeepgramConfig{}); err == nil {
		t.Error("Expected an error without an API key")
	}
}

func TestWhisper_Transcribe(t *testing.T) {
	var gotModel, gotLanguage, gotFile string
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		if !strings.HasSuffix(r.URL.Path, "/audio/transcriptions") {
			http.NotFound(w, r)
			return
		}
		if err := r.ParseMultipartForm(1 << 20); err != nil {
			http.Error(w, err.Error(), http.StatusBadRequest)
			return
		}
		gotModel = r.FormValue("model")
		gotLanguage = r.FormValue("language")
		if _, header, err := r.FormFile("file"); err == nil {
			gotFile = header.Filename
		}
		w.Header().Set("Content-Type", "application/json")
		w.Write([]byte(`{"text":"الحمد لله رب العالمين"}`))
	}))
	defer srv.Close()

	wh, err := NewWhisper(WhisperConfig{
		BaseURL:    srv.URL + "/",
		Model:      "whisper-large-v3",
		Language:   "ar",
		SampleRate: 16000,
		HTTPClient: srv.Client(),
	})
	if err != nil {
		t.Fatalf("NewWhisper failed: %v", err)
	}

	text, err := wh.Transcribe(context.Background(), tone(1600))
	if err != nil {
		t.Fatalf("Transcribe failed: %v", err)
	}
	if text != "الحمد لله رب العالمين" {
		t.Errorf("Expected transcript, got %q", text)
	}
	if gotModel != "whisper-large-v3" {
		t.Errorf("Expected model 'whisper-large-v3', got %q", gotModel)
	}
	if gotLanguage != "ar" {
		t.Errorf("Expected language 'ar', got %q", gotLanguage)
	}
	if gotFile != "chunk.wav" {
		t.Errorf("Expected upload named chunk.wav, got %q", gotFile)
	}
}

func TestWhisper_ServerError(t *testing.T) {
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		http.Error(w, `{"error":{"message":"overloaded"}}`, http.StatusServiceUnavailable)
	}))
	defer srv.Close()

	wh, err := NewWhisper(WhisperConfig{BaseURL: srv.URL + "/", HTTPClient: srv.Client()})
	if err != nil {
		t.Fatalf("NewWhisper failed: %v", err)
	}
	if _, err := wh.Transcribe(context.Background(), tone(100)); err == nil {
		t.Error("Expected an error for a 503 response")
	}
}

func TestNewWhisper_RequiresKeyOrBaseURL(t *testing.T) {
	if _, err := NewWhisper(WhisperConfig{}); err == nil {
		t.Error("Expected error without key or base URL")
	}
}

func startTranscriber(t *testing.T, engine Engine) *bufconn.Listener {
	t.Helper()
	lis := bufconn.Listen(1 << 20)
	s := grpc.NewServer()
	RegisterTranscriberServer(s, &EngineServer{Engine: engine, SampleRate: 16000})
	go s.Serve(lis)
	t.Cleanup(s.Stop)
	return lis
}

func dialBufconn(lis *bufconn.Listener) grpc.DialOption {
	return grpc.WithContextDialer(func(ctx context.Context, _ string) (net.Conn, error) {
		return lis.DialContext(ctx)
	})
}

func TestRemote_Transcribe(t *testing.T) {
	var gotSamples int
	lis := startTranscriber(t, Func(func(ctx context.Context, samples []float32) (string, error) {
		gotSamples = len(samples)
		return "إياك نعبد وإياك نستعين", nil
	}))

	r, err := NewRemote(context.Background(), RemoteConfig{
		Addr:        "bufnet",
		DialTimeout: time.Second,
		SampleRate:  16000,
		DialOptions: []grpc.DialOption{dialBufconn(lis)},
	})
	if err != nil {
		t.Fatalf("NewRemote failed: %v", err)
	}
	defer r.Close()

	text, err := r.Transcribe(context.Background(), tone(3200))
	if err != nil {
		t.Fatalf("Transcribe failed: %v", err)
	}
	if text != "إياك نعبد وإياك نستعين" {
		t.Errorf("Expected transcript, got %q", text)
	}
	if gotSamples != 3200 {
		t.Errorf("Expected the server to receive 3200 samples, got %d", gotSamples)
	}

	healthy, err := r.HealthCheck(context.Background())
	if err != nil || !healthy {
		t.Errorf("Expected healthy remote, got %v, %v", healthy, err)
	}
}

func TestRemote_ServerError(t *testing.T) {
	lis := startTranscriber(t, Func(func(ctx context.Context, samples []float32) (string, error) {
		return "", errors.New("model crashed")
	}))

	r, err := NewRemote(context.Background(), RemoteConfig{
		Addr:        "bufnet",
		SampleRate:  16000,
		DialOptions: []grpc.DialOption{dialBufconn(lis)},
	})
	if err != nil {
		t.Fatalf("NewRemote failed: %v", err)
	}
	defer r.Close()

	if _, err := r.Transcribe(context.Background(), tone(100)); err == nil {
		t.Error("Expected the server error to surface")
	}
	if !r.IsConnected() {
		t.Error("Expected an application error to keep the connection")
	}
}

func TestRemote_RateMismatchRejected(t *testing.T) {
	lis := startTranscriber(t, Static{Text: "unused"})

	r, err := NewRemote(context.Background(), RemoteConfig{
		Addr:        "bufnet",
		SampleRate:  8000,
		DialOptions: []grpc.DialOption{dialBufconn(lis)},
	})
	if err != nil {
		t.Fatalf("NewRemote failed: %v", err)
	}
	defer r.Close()

	_, err = r.Transcribe(context.Background(), tone(100))
	if err == nil || !strings.Contains(err.Error(), "sample-rate 8000 != 16000") {
		t.Errorf("Expected a sample-rate error, got %v", err)
	}
}

func TestNew_Static(t *testing.T) {
	cfg := &config.Config{
		ASREngine:                  config.EngineStatic,
		StaticTranscript:           "الله لا إله إلا هو الحي القيوم",
		CircuitBreakerMaxFailures:  5,
		CircuitBreakerResetTimeout: 30,
		RetryMaxAttempts:           3,
		RetryInitialBackoff:        100,
	}

	g, err := New(context.Background(), cfg)
	if err != nil {
		t.Fatalf("New failed: %v", err)
	}
	text, _ := g.Transcribe(context.Background(), tone(10))
	if text != cfg.StaticTranscript {
		t.Errorf("Expected static transcript, got %q", text)
	}
}

func TestNew_UnknownEngine(t *testing.T) {
	if _, err := New(context.Background(), &config.Config{ASREngine: "vosk"}); err == nil {
		t.Error("Expected error for an unknown engine")
	}
}

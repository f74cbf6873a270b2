package asr

import (
	"context"
	"fmt"
	"sync"
	"time"

	"github.com/rs/zerolog/log"
	"google.golang.org/grpc"
	"google.golang.org/grpc/codes"
	"google.golang.org/grpc/credentials/insecure"
	healthpb "google.golang.org/grpc/health/grpc_health_v1"
	"google.golang.org/grpc/keepalive"
	"google.golang.org/grpc/status"
	"google.golang.org/protobuf/types/known/wrapperspb"

	"github.com/quranlocator/verse-engine/internal/audio"
	"github.com/quranlocator/verse-engine/internal/config"
	"github.com/quranlocator/verse-engine/internal/resilience"
)

// RemoteConfig configures the gRPC transcription engine.
type RemoteConfig struct {
	Addr        string
	DialTimeout time.Duration
	SampleRate  int
	Reconnect   *resilience.ReconnectConfig
	DialOptions []grpc.DialOption // appended after the defaults
}

// Remote sends windows as WAV bytes to a Transcriber service.
type Remote struct {
	cfg         RemoteConfig
	rate        int
	conn        *grpc.ClientConn
	mu          sync.RWMutex
	isConnected bool
	ctx         context.Context
	cancel      context.CancelFunc
	reconnectMu sync.Mutex
}

// NewRemote dials the Transcriber at cfg.Addr.
func NewRemote(ctx context.Context, cfg RemoteConfig) (*Remote, error) {
	if cfg.Addr == "" {
		return nil, fmt.Errorf("remote ASR address is required")
	}
	if cfg.DialTimeout <= 0 {
		cfg.DialTimeout = 10 * time.Second
	}
	rate := cfg.SampleRate
	if rate <= 0 {
		rate = audio.DefaultSampleRate
	}

	rctx, cancel := context.WithCancel(context.Background())
	r := &Remote{
		cfg:    cfg,
		rate:   rate,
		ctx:    rctx,
		cancel: cancel,
	}
	if err := r.connect(ctx); err != nil {
		cancel()
		return nil, fmt.Errorf("failed to connect to remote ASR: %w", err)
	}
	return r, nil
}

// connect establishes the gRPC connection
func (r *Remote) connect(ctx context.Context) error {
	r.mu.Lock()
	defer r.mu.Unlock()

	if r.isConnected && r.conn != nil {
		return nil
	}

	opts := []grpc.DialOption{
		grpc.WithTransportCredentials(insecure.NewCredentials()),
		grpc.WithKeepaliveParams(keepalive.ClientParameters{
			Time:                10 * time.Second,
			Timeout:             3 * time.Second,
			PermitWithoutStream: true,
		}),
	}
	opts = append(opts, r.cfg.DialOptions...)

	dialCtx, cancel := context.WithTimeout(ctx, r.cfg.DialTimeout)
	defer cancel()

	conn, err := grpc.DialContext(dialCtx, r.cfg.Addr, opts...)
	if err != nil {
		return fmt.Errorf("failed to dial %s: %w", r.cfg.Addr, err)
	}

	r.conn = conn
	r.isConnected = true
	log.Info().Str("addr", r.cfg.Addr).Msg("Connected to remote ASR")
	return nil
}

// Name implements Engine.
func (r *Remote) Name() string {
	return config.EngineRemote
}

// Transcribe implements Engine.
func (r *Remote) Transcribe(ctx context.Context, samples []float32) (string, error) {
	if len(samples) == 0 {
		return "", ErrNoAudio
	}

	r.mu.RLock()
	conn := r.conn
	connected := r.isConnected
	r.mu.RUnlock()
	if !connected || conn == nil {
		go r.attemptReconnect()
		return "", status.Error(codes.Unavailable, "remote ASR is not connected")
	}

	wav, err := audio.EncodeWAV(samples, r.rate)
	if err != nil {
		return "", err
	}

	out := &wrapperspb.StringValue{}
	if err := conn.Invoke(ctx, TranscribeMethod, wrapperspb.Bytes(wav), out); err != nil {
		if status.Code(err) == codes.Unavailable {
			r.markDisconnected(conn)
			go r.attemptReconnect()
		}
		return "", fmt.Errorf("remote transcription failed: %w", err)
	}
	return out.GetValue(), nil
}

func (r *Remote) markDisconnected(conn *grpc.ClientConn) {
	r.mu.Lock()
	defer r.mu.Unlock()
	if r.conn == conn {
		r.isConnected = false
	}
}

// attemptReconnect redials with backoff. Concurrent callers collapse into
// one attempt.
func (r *Remote) attemptReconnect() {
	if !r.reconnectMu.TryLock() {
		return
	}
	defer r.reconnectMu.Unlock()

	select {
	case <-r.ctx.Done():
		return
	default:
	}

	r.mu.Lock()
	if r.isConnected {
		r.mu.Unlock()
		return
	}
	old := r.conn
	r.conn = nil
	r.mu.Unlock()
	if old != nil {
		old.Close()
	}

	err := resilience.Reconnect(r.ctx, func() error {
		return r.connect(r.ctx)
	}, r.cfg.Reconnect)
	if err != nil {
		log.Error().Err(err).Str("addr", r.cfg.Addr).Msg("Failed to reconnect to remote ASR")
	}
}

// HealthCheck asks the server's health service about the Transcriber.
func (r *Remote) HealthCheck(ctx context.Context) (bool, error) {
	r.mu.RLock()
	conn := r.conn
	connected := r.isConnected
	r.mu.RUnlock()
	if !connected || conn == nil {
		return false, fmt.Errorf("remote ASR is not connected")
	}

	resp, err := healthpb.NewHealthClient(conn).Check(ctx, &healthpb.HealthCheckRequest{Service: TranscriberService})
	if err != nil {
		return false, fmt.Errorf("health check failed: %w", err)
	}
	return resp.GetStatus() == healthpb.HealthCheckResponse_SERVING, nil
}

// IsConnected returns whether the client is currently connected
func (r *Remote) IsConnected() bool {
	r.mu.RLock()
	defer r.mu.RUnlock()
	return r.isConnected
}

// Close closes the gRPC connection and stops reconnection attempts.
func (r *Remote) Close() error {
	r.cancel()

	r.mu.Lock()
	defer r.mu.Unlock()
	if r.conn == nil {
		return nil
	}
	err := r.conn.Close()
	r.conn = nil
	r.isConnected = false
	return err
}

package playback

import (
	"errors"
	"sync"
	"time"

	"github.com/google/uuid"
	"github.com/rs/zerolog"

	"github.com/quranlocator/verse-engine/internal/corpus"
	"github.com/quranlocator/verse-engine/internal/observability"
)

// DefaultDebounceInterval is how long a repeated match stays suppressed.
const DefaultDebounceInterval = 2 * time.Second

var (
	ErrSessionExists   = errors.New("stream session already exists")
	ErrSessionNotFound = errors.New("stream session not found")
)

// Session holds the debounce state of one stream. Pipeline passes on a
// session run one at a time, so debounce decisions follow the order in
// which passes were admitted.
type Session struct {
	id       string
	debounce time.Duration
	clock    func() time.Time
	started  time.Time
	metrics  *observability.Metrics
	logger   zerolog.Logger

	// held for a whole pass, ASR call included
	pass sync.Mutex

	mu       sync.Mutex
	lastKey  corpus.Key
	hasLast  bool
	lastEmit time.Duration
	emitted  int
}

func newSession(id string, debounce time.Duration, clock func() time.Time) *Session {
	return &Session{
		id:       id,
		debounce: debounce,
		clock:    clock,
		started:  clock(),
		metrics:  observability.NewStreamMetrics(id),
		logger:   observability.ForStream(id),
	}
}

// NewSession creates a session outside a registry.
func NewSession(id string, debounce time.Duration) *Session {
	if id == "" {
		id = uuid.New().String()
	}
	return newSession(id, debounce, time.Now)
}

// ID returns the stream ID.
func (s *Session) ID() string {
	return s.id
}

// Metrics returns the stream's metrics tracker.
func (s *Session) Metrics() *observability.Metrics {
	return s.metrics
}

// Logger returns the stream's logger.
func (s *Session) Logger() zerolog.Logger {
	return s.logger
}

// Elapsed returns the session clock reading since Begin.
func (s *Session) Elapsed() time.Duration {
	return s.clock().Sub(s.started)
}

// Admit decides whether a match on key at position at is emitted. A match
// is suppressed when key equals the last emitted key and less than the
// debounce interval has passed since that emission. A position before the
// last emission is a seek and always emits. Only emissions update state.
func (s *Session) Admit(key corpus.Key, at time.Duration) bool {
	s.mu.Lock()
	defer s.mu.Unlock()

	if s.hasLast && key == s.lastKey {
		elapsed := at - s.lastEmit
		if elapsed >= 0 && elapsed < s.debounce {
			return false
		}
	}

	s.lastKey = key
	s.lastEmit = at
	s.hasLast = true
	s.emitted++
	return true
}

// Last returns the last emitted key and its position.
func (s *Session) Last() (corpus.Key, time.Duration, bool) {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.lastKey, s.lastEmit, s.hasLast
}

// Emitted returns the number of emissions so far.
func (s *Session) Emitted() int {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.emitted
}

// Reset forgets the last emission.
func (s *Session) Reset() {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.lastKey = corpus.Key{}
	s.lastEmit = 0
	s.hasLast = false
}

// Registry tracks the open sessions of a process.
type Registry struct {
	debounce time.Duration
	clock    func() time.Time

	mu       sync.RWMutex
	sessions map[string]*Session
}

// RegistryOption configures a Registry.
type RegistryOption func(*Registry)

// WithClock replaces the wall clock used for chunk-driven debouncing.
func WithClock(clock func() time.Time) RegistryOption {
	return func(r *Registry) {
		r.clock = clock
	}
}

// NewRegistry creates an empty registry.
func NewRegistry(debounce time.Duration, opts ...RegistryOption) *Registry {
	r := &Registry{
		debounce: debounce,
		clock:    time.Now,
		sessions: make(map[string]*Session),
	}
	for _, opt := range opts {
		opt(r)
	}
	return r
}

// Begin opens a session. An empty id gets a generated one.
func (r *Registry) Begin(id string) (*Session, error) {
	if id == "" {
		id = uuid.New().String()
	}

	r.mu.Lock()
	defer r.mu.Unlock()
	if _, exists := r.sessions[id]; exists {
		return nil, ErrSessionExists
	}

	s := newSession(id, r.debounce, r.clock)
	r.sessions[id] = s
	s.metrics.RecordStreamStart()
	s.logger.Info().Msg("Stream session started")
	return s, nil
}

// Get returns an open session.
func (r *Registry) Get(id string) (*Session, bool) {
	r.mu.RLock()
	defer r.mu.RUnlock()
	s, ok := r.sessions[id]
	return s, ok
}

// GetOrBegin returns the session for id, opening it when needed.
func (r *Registry) GetOrBegin(id string) (*Session, error) {
	if s, ok := r.Get(id); ok {
		return s, nil
	}
	s, err := r.Begin(id)
	if errors.Is(err, ErrSessionExists) {
		if s, ok := r.Get(id); ok {
			return s, nil
		}
	}
	return s, err
}

// End closes a session.
func (r *Registry) End(id string) error {
	r.mu.Lock()
	s, ok := r.sessions[id]
	delete(r.sessions, id)
	r.mu.Unlock()

	if !ok {
		return ErrSessionNotFound
	}
	s.metrics.RecordStreamEnd()
	s.logger.Info().Int("emitted", s.Emitted()).Msg("Stream session ended")
	return nil
}

// Len returns the number of open sessions.
func (r *Registry) Len() int {
	r.mu.RLock()
	defer r.mu.RUnlock()
	return len(r.sessions)
}

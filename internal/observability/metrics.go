package observability

import (
	"time"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promauto"
)

var (
	// Stream metrics
	activeStreams = promauto.NewGauge(prometheus.GaugeOpts{
		Name: "verse_engine_active_streams",
		Help: "Number of open recitation streams",
	})

	totalStreams = promauto.NewCounter(prometheus.CounterOpts{
		Name: "verse_engine_streams_total",
		Help: "Total number of streams opened",
	})

	streamDuration = promauto.NewHistogram(prometheus.HistogramOpts{
		Name:    "verse_engine_stream_duration_seconds",
		Help:    "Duration of recitation streams in seconds",
		Buckets: []float64{1, 5, 10, 30, 60, 300, 900, 3600},
	})

	windowsDropped = promauto.NewCounter(prometheus.CounterOpts{
		Name: "verse_engine_windows_dropped_total",
		Help: "Pending windows replaced by a newer window before processing",
	})

	// ASR metrics
	asrRequests = promauto.NewCounterVec(prometheus.CounterOpts{
		Name: "verse_engine_asr_requests_total",
		Help: "Total number of ASR requests",
	}, []string{"engine", "status"})

	asrLatency = promauto.NewHistogram(prometheus.HistogramOpts{
		Name:    "verse_engine_asr_latency_seconds",
		Help:    "ASR latency in seconds",
		Buckets: []float64{0.1, 0.25, 0.5, 1.0, 2.0, 5.0},
	})

	// Match metrics
	matchLatency = promauto.NewHistogram(prometheus.HistogramOpts{
		Name:    "verse_engine_match_latency_seconds",
		Help:    "Verse matching latency in seconds",
		Buckets: []float64{0.001, 0.005, 0.01, 0.025, 0.05, 0.1, 0.25},
	})

	results = promauto.NewCounterVec(prometheus.CounterOpts{
		Name: "verse_engine_results_total",
		Help: "Pipeline results by status",
	}, []string{"status"})

	corpusVerses = promauto.NewGauge(prometheus.GaugeOpts{
		Name: "verse_engine_corpus_verses",
		Help: "Number of verses in the loaded corpus",
	})

	// Error metrics
	errorsTotal = promauto.NewCounterVec(prometheus.CounterOpts{
		Name: "verse_engine_errors_total",
		Help: "Total number of errors",
	}, []string{"type", "component"})

	// Circuit breaker metrics
	circuitBreakerState = promauto.NewGaugeVec(prometheus.GaugeOpts{
		Name: "verse_engine_circuit_breaker_state",
		Help: "Circuit breaker state (0=closed, 1=open, 2=half-open)",
	}, []string{"service"})

	circuitBreakerFailures = promauto.NewCounterVec(prometheus.CounterOpts{
		Name: "verse_engine_circuit_breaker_failures_total",
		Help: "Total circuit breaker failures",
	}, []string{"service"})

	// Audio metrics
	audioSeconds = promauto.NewCounterVec(prometheus.CounterOpts{
		Name: "verse_engine_audio_seconds_total",
		Help: "Seconds of audio received or analyzed",
	}, []string{"direction"}) // direction: "in" or "analyzed"
)

// Metrics tracks metrics for a single stream
type Metrics struct {
	streamID  string
	startTime time.Time
}

// NewStreamMetrics creates a new metrics tracker for a stream
func NewStreamMetrics(streamID string) *Metrics {
	return &Metrics{
		streamID:  streamID,
		startTime: time.Now(),
	}
}

// StreamID returns the tracked stream
func (m *Metrics) StreamID() string {
	return m.streamID
}

// RecordStreamStart records the start of a stream
func (m *Metrics) RecordStreamStart() {
	activeStreams.Inc()
	totalStreams.Inc()
}

// RecordStreamEnd records the end of a stream
func (m *Metrics) RecordStreamEnd() {
	activeStreams.Dec()
	streamDuration.Observe(time.Since(m.startTime).Seconds())
}

// RecordMatch records the duration of a matching pass
func (m *Metrics) RecordMatch(d time.Duration) {
	matchLatency.Observe(d.Seconds())
}

// RecordResult counts a pipeline result by status
func (m *Metrics) RecordResult(status string) {
	results.WithLabelValues(status).Inc()
}

// RecordWindowDropped counts a window superseded before processing
func (m *Metrics) RecordWindowDropped() {
	windowsDropped.Inc()
}

// RecordError records an error
func (m *Metrics) RecordError(errorType, component string) {
	RecordError(errorType, component)
}

// RecordAudio records seconds of audio received or analyzed
func (m *Metrics) RecordAudio(direction string, seconds float64) {
	audioSeconds.WithLabelValues(direction).Add(seconds)
}

// RecordASRRequest counts a transcription request outside a stream
func RecordASRRequest(engine string, success bool) {
	status := "success"
	if !success {
		status = "error"
	}
	asrRequests.WithLabelValues(engine, status).Inc()
}

// ObserveASRLatency records a transcription latency outside a stream
func ObserveASRLatency(d time.Duration) {
	asrLatency.Observe(d.Seconds())
}

// RecordError records an error
func RecordError(errorType, component string) {
	errorsTotal.WithLabelValues(errorType, component).Inc()
}

// SetCorpusVerses publishes the loaded corpus size
func SetCorpusVerses(n int) {
	corpusVerses.Set(float64(n))
}

// UpdateCircuitBreakerState updates circuit breaker state metric
func UpdateCircuitBreakerState(service string, state int) {
	circuitBreakerState.WithLabelValues(service).Set(float64(state))
}

// IncrementCircuitBreakerFailures increments circuit breaker failure counter
func IncrementCircuitBreakerFailures(service string) {
	circuitBreakerFailures.WithLabelValues(service).Inc()
}

package resilience

import (
	"errors"
	"testing"
	"time"
)

var errTranscriber = errors.New("transcriber unavailable")

// openBreaker returns a breaker for name already tripped by maxFailures
// consecutive failures.
func openBreaker(t *testing.T, name string, maxFailures int, resetTimeout time.Duration) *CircuitBreaker {
	t.Helper()
	cb := NewCircuitBreaker(name, maxFailures, resetTimeout)
	for i := 0; i < maxFailures; i++ {
		cb.RecordResult(false)
	}
	if cb.GetState() != StateOpen {
		t.Fatalf("Expected %s breaker to be open after %d failures, got %s", name, maxFailures, cb.GetState())
	}
	return cb
}

func TestCircuitBreaker_ConsecutiveFailures(t *testing.T) {
	tests := []struct {
		name    string
		results []bool
		want    CircuitState
	}{
		{"no traffic", nil, StateClosed},
		{"healthy engine", []bool{true, true, true}, StateClosed},
		{"below threshold", []bool{false, false}, StateClosed},
		{"success clears the streak", []bool{false, false, true, false, false}, StateClosed},
		{"threshold reached", []bool{true, false, false, false}, StateOpen},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			cb := NewCircuitBreaker("deepgram", 3, time.Minute)
			for _, ok := range tt.results {
				cb.RecordResult(ok)
			}
			if got := cb.GetState(); got != tt.want {
				t.Errorf("Expected state %s, got %s", tt.want, got)
			}
		})
	}
}

func TestCircuitBreaker_OpenSkipsEngine(t *testing.T) {
	cb := openBreaker(t, "whisper", 2, time.Minute)

	calls := 0
	err := cb.Call(func() error {
		calls++
		return nil
	})
	if !errors.Is(err, ErrCircuitOpen) {
		t.Errorf("Expected ErrCircuitOpen, got %v", err)
	}
	if calls != 0 {
		t.Errorf("Expected the engine not to be called while open, got %d calls", calls)
	}
}

func TestCircuitBreaker_CallPassesErrorThrough(t *testing.T) {
	cb := NewCircuitBreaker("remote", 3, time.Minute)

	if err := cb.Call(func() error { return nil }); err != nil {
		t.Errorf("Expected no error, got %v", err)
	}
	if err := cb.Call(func() error { return errTranscriber }); !errors.Is(err, errTranscriber) {
		t.Errorf("Expected the engine error, got %v", err)
	}
}

func TestCircuitBreaker_Recovery(t *testing.T) {
	tests := []struct {
		name   string
		probes []error
		want   CircuitState
	}{
		{"engine back", []error{nil, nil, nil}, StateClosed},
		{"still down", []error{errTranscriber}, StateOpen},
		{"fails on the last probe", []error{nil, nil, errTranscriber}, StateOpen},
		{"partial recovery", []error{nil, nil}, StateHalfOpen},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			cb := openBreaker(t, "remote", 1, 30*time.Millisecond)
			time.Sleep(50 * time.Millisecond)

			for i, probe := range tt.probes {
				err := cb.Call(func() error { return probe })
				if errors.Is(err, ErrCircuitOpen) {
					t.Fatalf("Expected probe %d to be admitted", i)
				}
			}
			if got := cb.GetState(); got != tt.want {
				t.Errorf("Expected state %s, got %s", tt.want, got)
			}
		})
	}
}

func TestCircuitBreaker_HalfOpenAdmitsThreeProbes(t *testing.T) {
	cb := openBreaker(t, "deepgram", 1, 30*time.Millisecond)
	time.Sleep(50 * time.Millisecond)

	admitted := 0
	for i := 0; i < 5; i++ {
		if cb.allowRequest() {
			admitted++
		}
	}
	if admitted != 3 {
		t.Errorf("Expected 3 probes admitted while half-open, got %d", admitted)
	}
}

func TestCircuitBreaker_Stats(t *testing.T) {
	cb := NewCircuitBreaker("whisper", 5, time.Minute)
	for _, ok := range []bool{true, false, true, false} {
		cb.RecordResult(ok)
	}

	state, requests, failures, rate := cb.GetStats()
	if state != StateClosed {
		t.Errorf("Expected state closed, got %s", state)
	}
	if requests != 4 || failures != 2 {
		t.Errorf("Expected 4 requests and 2 failures, got %d and %d", requests, failures)
	}
	if rate != 50 {
		t.Errorf("Expected failure rate 50%%, got %.2f%%", rate)
	}
}

func TestCircuitBreaker_Reset(t *testing.T) {
	cb := openBreaker(t, "remote", 2, time.Minute)
	cb.Reset()

	state, requests, failures, _ := cb.GetStats()
	if state != StateClosed || requests != 0 || failures != 0 {
		t.Errorf("Expected a cleared closed breaker, got %s with %d requests and %d failures", state, requests, failures)
	}
	if err := cb.Call(func() error { return nil }); err != nil {
		t.Errorf("Expected calls to pass after reset, got %v", err)
	}
}

func TestCircuitBreaker_MinimumThreshold(t *testing.T) {
	cb := NewCircuitBreaker("static", 0, time.Minute)
	cb.RecordResult(false)
	if cb.GetState() != StateOpen {
		t.Errorf("Expected a zero threshold to trip on the first failure, got %s", cb.GetState())
	}
}

func TestCircuitBreaker_OnStateChange(t *testing.T) {
	cb := NewCircuitBreaker("asr", 1, 30*time.Millisecond)

	var transitions []string
	cb.OnStateChange(func(name string, from, to CircuitState) {
		transitions = append(transitions, name+":"+from.String()+"->"+to.String())
	})

	cb.Call(func() error { return errTranscriber })
	time.Sleep(50 * time.Millisecond)
	for i := 0; i < 3; i++ {
		cb.Call(func() error { return nil })
	}

	expected := []string{"asr:closed->open", "asr:open->half-open", "asr:half-open->closed"}
	if len(transitions) != len(expected) {
		t.Fatalf("Expected %v, got %v", expected, transitions)
	}
	for i := range expected {
		if transitions[i] != expected[i] {
			t.Errorf("Transition %d: expected %s, got %s", i, expected[i], transitions[i])
		}
	}
}

func TestCircuitState_String(t *testing.T) {
	states := map[CircuitState]string{
		StateClosed:      "closed",
		StateOpen:        "open",
		StateHalfOpen:    "half-open",
		CircuitState(42): "unknown",
	}
	for state, want := range states {
		if got := state.String(); got != want {
			t.Errorf("Expected %q, got %q", want, got)
		}
	}
}

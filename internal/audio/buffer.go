package audio

import (
	"sync"
)

// RingBuffer is a thread-safe rolling buffer of mono samples. Once full,
// new samples overwrite the oldest ones, so it always holds the most recent
// Capacity() samples.
type RingBuffer struct {
	buffer []float32
	size   int
	write  int
	count  int
	total  int64
	mu     sync.RWMutex
}

// NewRingBuffer creates a ring buffer holding up to size samples.
func NewRingBuffer(size int) *RingBuffer {
	if size < 1 {
		size = 1
	}
	return &RingBuffer{
		buffer: make([]float32, size),
		size:   size,
	}
}

// NewRingBufferFor creates a ring buffer holding seconds of audio at rate.
func NewRingBufferFor(seconds float64, rate int) *RingBuffer {
	return NewRingBuffer(int(seconds * float64(rate)))
}

// Write appends samples, overwriting the oldest ones when full.
// Returns the number of samples that were overwritten.
func (rb *RingBuffer) Write(samples []float32) int {
	rb.mu.Lock()
	defer rb.mu.Unlock()

	overwritten := 0
	for _, s := range samples {
		rb.buffer[rb.write] = s
		rb.write = (rb.write + 1) % rb.size
		if rb.count == rb.size {
			overwritten++
		} else {
			rb.count++
		}
	}
	rb.total += int64(len(samples))
	return overwritten
}

// Recent returns a copy of the last n samples in capture order. Fewer are
// returned when the buffer holds less than n.
func (rb *RingBuffer) Recent(n int) []float32 {
	rb.mu.RLock()
	defer rb.mu.RUnlock()

	if n > rb.count {
		n = rb.count
	}
	if n <= 0 {
		return nil
	}

	out := make([]float32, n)
	start := (rb.write - n + rb.size) % rb.size
	for i := 0; i < n; i++ {
		out[i] = rb.buffer[(start+i)%rb.size]
	}
	return out
}

// Snapshot returns every buffered sample in capture order.
func (rb *RingBuffer) Snapshot() []float32 {
	return rb.Recent(rb.Available())
}

// Available returns the number of buffered samples.
func (rb *RingBuffer) Available() int {
	rb.mu.RLock()
	defer rb.mu.RUnlock()
	return rb.count
}

// Capacity returns the maximum number of buffered samples.
func (rb *RingBuffer) Capacity() int {
	return rb.size
}

// Total returns the number of samples ever written, including overwritten ones.
func (rb *RingBuffer) Total() int64 {
	rb.mu.RLock()
	defer rb.mu.RUnlock()
	return rb.total
}

// Clear empties the buffer. Total is kept.
func (rb *RingBuffer) Clear() {
	rb.mu.Lock()
	defer rb.mu.Unlock()

	rb.write = 0
	rb.count = 0
}

// IsEmpty returns true if the buffer holds no samples.
func (rb *RingBuffer) IsEmpty() bool {
	rb.mu.RLock()
	defer rb.mu.RUnlock()
	return rb.count == 0
}

// IsFull returns true once the buffer has wrapped.
func (rb *RingBuffer) IsFull() bool {
	rb.mu.RLock()
	defer rb.mu.RUnlock()
	return rb.count == rb.size
}

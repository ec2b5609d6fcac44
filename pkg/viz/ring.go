// ABOUTME: Circular sample buffer for waveform rendering
// ABOUTME: Lock-guarded ring with a write cursor and ordered snapshots
package viz

import (
	"sync"

	"github.com/liveplanting/liveplanting-go/pkg/audio"
)

const (
	// DefaultCapacity is the number of samples kept for display
	DefaultCapacity = 256

	// DefaultDecimation keeps every 8th sample of a decoded block
	DefaultDecimation = 8
)

// Ring is a fixed-capacity circular buffer of samples. Every slot is always
// present (zero until written); writes overwrite the oldest slot.
type Ring struct {
	mu     sync.RWMutex
	buf    []float32
	cursor int
}

// NewRing creates a ring with the given capacity, or DefaultCapacity if
// capacity is not positive
func NewRing(capacity int) *Ring {
	if capacity <= 0 {
		capacity = DefaultCapacity
	}
	return &Ring{buf: make([]float32, capacity)}
}

// Capacity returns the number of slots
func (r *Ring) Capacity() int {
	return len(r.buf)
}

// Ingest writes samples starting at the cursor, wrapping around
func (r *Ring) Ingest(samples []float32) {
	if len(samples) == 0 {
		return
	}

	r.mu.Lock()
	defer r.mu.Unlock()

	n := len(r.buf)
	// Only the last n samples survive
	if len(samples) > n {
		r.cursor = (r.cursor + len(samples) - n) % n
		samples = samples[len(samples)-n:]
	}
	for _, s := range samples {
		r.buf[r.cursor] = s
		r.cursor = (r.cursor + 1) % n
	}
}

// IngestBlock writes every step-th sample of the block's first channel
func (r *Ring) IngestBlock(block audio.Block, step int) {
	if block.IsEmpty() {
		return
	}
	if step <= 0 {
		step = 1
	}

	src := block.Channel(0)
	picked := make([]float32, 0, (len(src)+step-1)/step)
	for i := 0; i < len(src); i += step {
		picked = append(picked, src[i])
	}
	r.Ingest(picked)
}

// Snapshot returns every slot, oldest first
func (r *Ring) Snapshot() []float32 {
	r.mu.RLock()
	defer r.mu.RUnlock()

	out := make([]float32, len(r.buf))
	n := copy(out, r.buf[r.cursor:])
	copy(out[n:], r.buf[:r.cursor])
	return out
}

// Reset zeroes every slot and rewinds the cursor
func (r *Ring) Reset() {
	r.mu.Lock()
	defer r.mu.Unlock()

	for i := range r.buf {
		r.buf[i] = 0
	}
	r.cursor = 0
}

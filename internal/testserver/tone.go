// ABOUTME: Test tone generator for the loopback server
// ABOUTME: Produces stereo float32 sine blocks
package testserver

import (
	"math"
	"sync"

	"github.com/liveplanting/liveplanting-go/pkg/audio"
)

// Tone generates a continuous sine wave
type Tone struct {
	mu          sync.Mutex
	sampleIndex uint64
	sampleRate  int
	frequency   float64
	amplitude   float64
}

// NewTone creates a tone generator at 50% amplitude
func NewTone(sampleRate int, frequency float64) *Tone {
	return &Tone{
		sampleRate: sampleRate,
		frequency:  frequency,
		amplitude:  0.5,
	}
}

// Next returns the next frames of the tone, identical on both channels
func (t *Tone) Next(frames int) audio.Block {
	t.mu.Lock()
	defer t.mu.Unlock()

	left := make([]float32, frames)
	for i := range left {
		ts := float64(t.sampleIndex+uint64(i)) / float64(t.sampleRate)
		left[i] = float32(t.amplitude * math.Sin(2*math.Pi*t.frequency*ts))
	}
	right := make([]float32, frames)
	copy(right, left)

	t.sampleIndex += uint64(frames)

	// Equal lengths, cannot fail
	block, _ := audio.NewBlock(left, right)
	return block
}

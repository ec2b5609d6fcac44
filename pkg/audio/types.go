// ABOUTME: Audio type definitions
// ABOUTME: Defines the stream format and the decoded stereo block
package audio

import (
	"fmt"
	"time"
)

const (
	// Channels is the only channel layout the installation server emits
	Channels = 2

	// BytesPerSample is the width of one float32 sample on the wire
	BytesPerSample = 4

	// FrameSize is the width of one interleaved stereo frame on the wire
	FrameSize = Channels * BytesPerSample
)

// Format describes audio stream format
type Format struct {
	SampleRate int
	Channels   int
}

// Block is one decoded unit of multi-channel audio.
//
// A Block is immutable once built: the slices returned by Channel must be
// treated as read-only. Producers that need different samples build a new
// Block with NewBlock.
type Block struct {
	channels [][]float32
}

// NewBlock builds a block from per-channel sample slices of equal length.
// The slices are retained, not copied.
func NewBlock(channels ...[]float32) (Block, error) {
	if len(channels) == 0 {
		return Block{}, fmt.Errorf("block needs at least one channel")
	}
	frames := len(channels[0])
	for i, ch := range channels[1:] {
		if len(ch) != frames {
			return Block{}, fmt.Errorf("channel %d has %d samples, channel 0 has %d", i+1, len(ch), frames)
		}
	}
	return Block{channels: channels}, nil
}

// Silence returns a stereo block of the given length filled with zeros
func Silence(frames int) Block {
	chans := make([][]float32, Channels)
	for i := range chans {
		chans[i] = make([]float32, frames)
	}
	return Block{channels: chans}
}

// Frames returns the number of samples per channel
func (b Block) Frames() int {
	if len(b.channels) == 0 {
		return 0
	}
	return len(b.channels[0])
}

// ChannelCount returns the number of channels
func (b Block) ChannelCount() int {
	return len(b.channels)
}

// Channel returns the samples of channel ch (read-only)
func (b Block) Channel(ch int) []float32 {
	return b.channels[ch]
}

// IsEmpty reports whether the block carries no frames
func (b Block) IsEmpty() bool {
	return b.Frames() == 0
}

// Duration returns the playback length in seconds at the given sample rate
func (b Block) Duration(sampleRate int) float64 {
	if sampleRate <= 0 {
		return 0
	}
	return float64(b.Frames()) / float64(sampleRate)
}

// Interleave returns the samples as [L0, R0, L1, R1, ...]
func (b Block) Interleave() []float32 {
	n := b.ChannelCount()
	frames := b.Frames()
	out := make([]float32, frames*n)
	for ch := 0; ch < n; ch++ {
		src := b.channels[ch]
		for i := 0; i < frames; i++ {
			out[i*n+ch] = src[i]
		}
	}
	return out
}

// SecondsToDuration converts a clock reading in seconds to a time.Duration
func SecondsToDuration(s float64) time.Duration {
	return time.Duration(s * float64(time.Second))
}

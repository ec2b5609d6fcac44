// ABOUTME: Linear crossfade between consecutive audio blocks
// ABOUTME: Blends the head of each block with the tail of the previous one
package player

import (
	"math"

	"github.com/liveplanting/liveplanting-go/pkg/audio"
)

// Crossfader blends each block's first samples with the stored tail of the
// block before it. It is not safe for concurrent use; the Scheduler owns it.
type Crossfader struct {
	seconds float64
	tail    [][]float32
}

// NewCrossfader creates a crossfader with the given blend length
func NewCrossfader(seconds float64) *Crossfader {
	return &Crossfader{seconds: seconds}
}

// Length returns the blend length in frames at the given rate
func (c *Crossfader) Length(sampleRate int) int {
	if c.seconds <= 0 || sampleRate <= 0 {
		return 0
	}
	return int(math.Floor(c.seconds * float64(sampleRate)))
}

// TailLen returns the number of frames held from the previous block
func (c *Crossfader) TailLen() int {
	if len(c.tail) == 0 {
		return 0
	}
	return len(c.tail[0])
}

// Reset discards the stored tail so the next block passes through unblended
func (c *Crossfader) Reset() {
	c.tail = nil
}

// Apply returns block with its first K frames blended against the stored
// tail, K being the blend length capped to the tail and block lengths:
//
//	out[i] = new[i]*(i/K) + tail[i]*(1 - i/K)
//
// The tail is then replaced with the last frames of the returned block.
func (c *Crossfader) Apply(block audio.Block, sampleRate int) audio.Block {
	full := c.Length(sampleRate)
	frames := block.Frames()

	k := min(full, c.TailLen(), frames)
	if len(c.tail) != block.ChannelCount() {
		k = 0
	}

	out := block
	if k > 0 {
		channels := make([][]float32, block.ChannelCount())
		for ch := range channels {
			src := block.Channel(ch)
			dst := make([]float32, frames)
			copy(dst, src)

			tail := c.tail[ch]
			for i := 0; i < k; i++ {
				gain := float32(i) / float32(k)
				dst[i] = src[i]*gain + tail[i]*(1-gain)
			}
			channels[ch] = dst
		}
		// Same shape as block, cannot fail
		out, _ = audio.NewBlock(channels...)
	}

	c.keepTail(out, min(full, frames))
	return out
}

func (c *Crossfader) keepTail(block audio.Block, n int) {
	if n <= 0 {
		c.tail = nil
		return
	}

	frames := block.Frames()
	if len(c.tail) != block.ChannelCount() {
		c.tail = make([][]float32, block.ChannelCount())
	}
	for ch := range c.tail {
		if cap(c.tail[ch]) < n {
			c.tail[ch] = make([]float32, n)
		}
		c.tail[ch] = c.tail[ch][:n]
		copy(c.tail[ch], block.Channel(ch)[frames-n:])
	}
}

// ABOUTME: Pull-side playback timeline shared by all output backends
// ABOUTME: Places blocks at frame positions and mixes them as the device pulls
package output

import (
	"encoding/binary"
	"fmt"
	"io"
	"math"
	"sort"
	"sync"

	"github.com/liveplanting/liveplanting-go/pkg/audio"
)

// scheduledBlock is a block pinned to an absolute frame position
type scheduledBlock struct {
	start int64
	block audio.Block
}

func (s scheduledBlock) end() int64 {
	return s.start + int64(s.block.Frames())
}

// Timeline is the device clock. Its position advances only when the device
// pulls frames through Render or Read, so Now never runs ahead of output.
type Timeline struct {
	mu         sync.Mutex
	sampleRate int
	channels   int
	position   int64 // frames rendered since creation
	pending    []scheduledBlock
	scratch    []float32
	closed     bool
}

// NewTimeline creates a timeline for the device's actual format
func NewTimeline(sampleRate, channels int) *Timeline {
	return &Timeline{
		sampleRate: sampleRate,
		channels:   channels,
	}
}

// SampleRate returns the timeline's frame rate
func (t *Timeline) SampleRate() int {
	return t.sampleRate
}

// Now returns the number of seconds rendered so far
func (t *Timeline) Now() float64 {
	t.mu.Lock()
	defer t.mu.Unlock()
	return float64(t.position) / float64(t.sampleRate)
}

// ScheduleAt pins a block at the frame nearest to the given time.
// Frames that fall before the current position are skipped when mixed.
func (t *Timeline) ScheduleAt(at float64, block audio.Block) error {
	if block.ChannelCount() != t.channels {
		return fmt.Errorf("block has %d channels, output has %d", block.ChannelCount(), t.channels)
	}
	if block.IsEmpty() {
		return nil
	}

	start := int64(math.Round(at * float64(t.sampleRate)))

	t.mu.Lock()
	defer t.mu.Unlock()

	if t.closed {
		return fmt.Errorf("output closed")
	}

	item := scheduledBlock{start: start, block: block}
	idx := sort.Search(len(t.pending), func(i int) bool {
		return t.pending[i].start > start
	})
	t.pending = append(t.pending, scheduledBlock{})
	copy(t.pending[idx+1:], t.pending[idx:])
	t.pending[idx] = item

	return nil
}

// Flush drops every pending block
func (t *Timeline) Flush() {
	t.mu.Lock()
	defer t.mu.Unlock()
	t.pending = nil
}

// Pending returns the number of blocks not yet fully rendered
func (t *Timeline) Pending() int {
	t.mu.Lock()
	defer t.mu.Unlock()
	return len(t.pending)
}

// Render mixes the next len(out)/channels frames into out (interleaved) and
// advances the clock. Gaps render as silence.
func (t *Timeline) Render(out []float32) int {
	for i := range out {
		out[i] = 0
	}

	t.mu.Lock()
	defer t.mu.Unlock()

	frames := len(out) / t.channels
	from := t.position
	to := from + int64(frames)

	kept := t.pending[:0]
	for _, item := range t.pending {
		if item.start >= to {
			kept = append(kept, item)
			continue
		}

		lo := max(item.start, from)
		hi := min(item.end(), to)
		for f := lo; f < hi; f++ {
			src := int(f - item.start)
			dst := int(f-from) * t.channels
			for ch := 0; ch < t.channels; ch++ {
				out[dst+ch] += item.block.Channel(ch)[src]
			}
		}

		if item.end() > to {
			kept = append(kept, item)
		}
	}
	for i := len(kept); i < len(t.pending); i++ {
		t.pending[i] = scheduledBlock{}
	}
	t.pending = kept
	t.position = to

	return frames
}

// Read renders float32 little-endian frames into p, for pull-based players.
func (t *Timeline) Read(p []byte) (int, error) {
	t.mu.Lock()
	closed := t.closed
	t.mu.Unlock()
	if closed {
		return 0, io.EOF
	}

	frameBytes := t.channels * audio.BytesPerSample
	frames := len(p) / frameBytes
	if frames == 0 {
		return 0, nil
	}

	samples := frames * t.channels
	if cap(t.scratch) < samples {
		t.scratch = make([]float32, samples)
	}
	buf := t.scratch[:samples]
	t.Render(buf)

	for i, s := range buf {
		binary.LittleEndian.PutUint32(p[i*audio.BytesPerSample:], math.Float32bits(s))
	}
	return frames * frameBytes, nil
}

// Close stops the timeline; Read returns io.EOF afterwards
func (t *Timeline) Close() {
	t.mu.Lock()
	defer t.mu.Unlock()
	t.closed = true
	t.pending = nil
}

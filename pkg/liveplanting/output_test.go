// ABOUTME: Simulated output device for player tests
// ABOUTME: Records scheduled blocks against a manually advanced clock
package liveplanting

import (
	"fmt"
	"sync"

	"github.com/liveplanting/liveplanting-go/pkg/audio"
)

// fakeOutput is an output device whose clock only moves when told to
type fakeOutput struct {
	mu       sync.Mutex
	rate     int // actual rate; 0 means accept the requested one
	now      float64
	opened   bool
	closed   bool
	starts   []float64
	frames   []int
	flushes  int
	openFail error
}

func (f *fakeOutput) Open(sampleRate, channels int) error {
	f.mu.Lock()
	defer f.mu.Unlock()
	if f.openFail != nil {
		return f.openFail
	}
	if channels != audio.Channels {
		return fmt.Errorf("unexpected channel count %d", channels)
	}
	if f.rate == 0 {
		f.rate = sampleRate
	}
	f.opened = true
	return nil
}

func (f *fakeOutput) SampleRate() int {
	f.mu.Lock()
	defer f.mu.Unlock()
	return f.rate
}

func (f *fakeOutput) Now() float64 {
	f.mu.Lock()
	defer f.mu.Unlock()
	return f.now
}

func (f *fakeOutput) ScheduleAt(at float64, block audio.Block) error {
	f.mu.Lock()
	defer f.mu.Unlock()
	f.starts = append(f.starts, at)
	f.frames = append(f.frames, block.Frames())
	return nil
}

func (f *fakeOutput) Flush() {
	f.mu.Lock()
	defer f.mu.Unlock()
	f.flushes++
}

func (f *fakeOutput) Close() error {
	f.mu.Lock()
	defer f.mu.Unlock()
	f.closed = true
	return nil
}

func (f *fakeOutput) scheduledStarts() []float64 {
	f.mu.Lock()
	defer f.mu.Unlock()
	return append([]float64(nil), f.starts...)
}

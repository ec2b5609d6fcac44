// ABOUTME: Simulated output clock for scheduler tests
// ABOUTME: Records scheduled blocks against a manually advanced clock
package player

import (
	"sync"
	"testing"

	"github.com/liveplanting/liveplanting-go/pkg/audio"
)

type scheduledCall struct {
	at    float64
	block audio.Block
}

// fakeSink is a device clock that only moves when the test advances it
type fakeSink struct {
	mu      sync.Mutex
	now     float64
	rate    int
	calls   []scheduledCall
	flushes int
	fail    error // returned by ScheduleAt when set
}

func newFakeSink(rate int) *fakeSink {
	return &fakeSink{rate: rate}
}

func (f *fakeSink) Now() float64 {
	f.mu.Lock()
	defer f.mu.Unlock()
	return f.now
}

func (f *fakeSink) SampleRate() int {
	return f.rate
}

func (f *fakeSink) ScheduleAt(at float64, block audio.Block) error {
	f.mu.Lock()
	defer f.mu.Unlock()
	if f.fail != nil {
		return f.fail
	}
	f.calls = append(f.calls, scheduledCall{at: at, block: block})
	return nil
}

func (f *fakeSink) Flush() {
	f.mu.Lock()
	defer f.mu.Unlock()
	f.flushes++
}

func (f *fakeSink) setFail(err error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	f.fail = err
}

func (f *fakeSink) advance(seconds float64) {
	f.mu.Lock()
	defer f.mu.Unlock()
	f.now += seconds
}

func (f *fakeSink) scheduled() []scheduledCall {
	f.mu.Lock()
	defer f.mu.Unlock()
	return append([]scheduledCall(nil), f.calls...)
}

// stereo builds a block whose samples are all v
func stereo(t *testing.T, frames int, v float32) audio.Block {
	t.Helper()
	l := make([]float32, frames)
	r := make([]float32, frames)
	for i := range l {
		l[i] = v
		r[i] = v
	}
	block, err := audio.NewBlock(l, r)
	if err != nil {
		t.Fatalf("failed to build block: %v", err)
	}
	return block
}

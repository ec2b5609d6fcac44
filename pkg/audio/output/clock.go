// ABOUTME: Timeline-backed clock shared by the device backends
// ABOUTME: Delegates Now, ScheduleAt and Flush to the open timeline
package output

import (
	"fmt"
	"sync"

	"github.com/liveplanting/liveplanting-go/pkg/audio"
)

// timelineClock implements the clock half of Output for backends that
// pull from a Timeline.
type timelineClock struct {
	mu       sync.RWMutex
	timeline *Timeline
}

func (c *timelineClock) attach(t *Timeline) {
	c.mu.Lock()
	c.timeline = t
	c.mu.Unlock()
}

func (c *timelineClock) detach() *Timeline {
	c.mu.Lock()
	defer c.mu.Unlock()
	t := c.timeline
	c.timeline = nil
	return t
}

func (c *timelineClock) current() *Timeline {
	c.mu.RLock()
	defer c.mu.RUnlock()
	return c.timeline
}

// SampleRate returns the actual device rate, or 0 before Open
func (c *timelineClock) SampleRate() int {
	if t := c.current(); t != nil {
		return t.SampleRate()
	}
	return 0
}

// Now returns the device clock in seconds
func (c *timelineClock) Now() float64 {
	if t := c.current(); t != nil {
		return t.Now()
	}
	return 0
}

// ScheduleAt queues a block on the device timeline
func (c *timelineClock) ScheduleAt(at float64, block audio.Block) error {
	t := c.current()
	if t == nil {
		return fmt.Errorf("output not initialized")
	}
	return t.ScheduleAt(at, block)
}

// Flush drops every block still queued on the device
func (c *timelineClock) Flush() {
	if t := c.current(); t != nil {
		t.Flush()
	}
}

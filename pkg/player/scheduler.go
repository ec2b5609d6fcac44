// ABOUTME: Gapless playback scheduler driven by the output device clock
// ABOUTME: Keeps a lookahead buffer and recovers from underruns
package player

import (
	"errors"
	"fmt"
	"log"
	"math"
	"sync"
	"time"

	"github.com/liveplanting/liveplanting-go/pkg/audio"
)

// ErrNotScheduling is returned when a block arrives outside Start/Stop
var ErrNotScheduling = errors.New("scheduler not running")

// Sink is the output clock blocks are scheduled against
type Sink interface {
	// Now returns the device clock in seconds
	Now() float64
	// ScheduleAt queues a block to start at the given device time
	ScheduleAt(at float64, block audio.Block) error
	// SampleRate returns the actual device rate
	SampleRate() int
}

// Flusher is implemented by sinks that can release queued blocks
type Flusher interface {
	Flush()
}

// Config holds scheduler configuration
type Config struct {
	// Lookahead is how far ahead of the device clock the first block plays
	Lookahead time.Duration

	// RecoveryBuffer is the lookahead re-established after an underrun
	RecoveryBuffer time.Duration

	// Crossfade is the blend length at each block seam
	Crossfade time.Duration

	// UnderrunLogEvery logs the first underrun and then every Nth
	UnderrunLogEvery int
}

// DefaultConfig returns the standard scheduling parameters
func DefaultConfig() Config {
	return Config{
		Lookahead:        150 * time.Millisecond,
		RecoveryBuffer:   300 * time.Millisecond,
		Crossfade:        2 * time.Millisecond,
		UnderrunLogEvery: 50,
	}
}

// State is the scheduler lifecycle state
type State int

const (
	StateIdle State = iota
	StateScheduling
	StateStopped
)

func (s State) String() string {
	switch s {
	case StateIdle:
		return "idle"
	case StateScheduling:
		return "scheduling"
	case StateStopped:
		return "stopped"
	default:
		return fmt.Sprintf("state(%d)", int(s))
	}
}

// Stats tracks scheduler metrics
type Stats struct {
	Scheduled int64 // blocks handed to the sink since creation
	Underruns int64
	Blocks    int64 // blocks since the last Start
}

// Scheduler places blocks back to back on the sink's clock
type Scheduler struct {
	mu        sync.Mutex
	sink      Sink
	config    Config
	crossfade *Crossfader

	state        State
	nextPlayTime float64

	// whole-frame position of nextPlayTime once the rate is known
	nextFrame int64
	frameRate int

	stats Stats
}

// NewScheduler creates a scheduler. Zero config fields take their defaults.
func NewScheduler(sink Sink, config Config) *Scheduler {
	defaults := DefaultConfig()
	if config.Lookahead <= 0 {
		config.Lookahead = defaults.Lookahead
	}
	if config.RecoveryBuffer <= 0 {
		config.RecoveryBuffer = defaults.RecoveryBuffer
	}
	if config.Crossfade < 0 {
		config.Crossfade = 0
	}
	if config.UnderrunLogEvery <= 0 {
		config.UnderrunLogEvery = defaults.UnderrunLogEvery
	}

	return &Scheduler{
		sink:      sink,
		config:    config,
		crossfade: NewCrossfader(config.Crossfade.Seconds()),
	}
}

// Config returns the effective configuration
func (s *Scheduler) Config() Config {
	return s.config
}

// Start begins a new schedule one lookahead ahead of the device clock.
// Calling Start while scheduling rebases the timeline.
func (s *Scheduler) Start() {
	s.mu.Lock()
	defer s.mu.Unlock()

	s.anchor(s.sink.Now()+s.config.Lookahead.Seconds(), s.sink.SampleRate())
	s.stats.Blocks = 0
	s.crossfade.Reset()
	s.state = StateScheduling

	log.Printf("Scheduler started: first block at %.3fs (lookahead %v)",
		s.nextPlayTime, s.config.Lookahead)
}

// Schedule crossfades block and queues it at the end of the timeline,
// returning the device time it will start at.
func (s *Scheduler) Schedule(block audio.Block) (float64, error) {
	s.mu.Lock()
	defer s.mu.Unlock()

	if s.state != StateScheduling {
		return 0, ErrNotScheduling
	}
	if block.IsEmpty() {
		return s.nextPlayTime, nil
	}

	rate := s.sink.SampleRate()
	if rate <= 0 {
		return 0, fmt.Errorf("sink has no sample rate")
	}

	if rate != s.frameRate {
		s.anchor(s.nextPlayTime, rate)
	}

	now := s.sink.Now()
	if s.nextPlayTime < now {
		s.stats.Underruns++
		if s.stats.Underruns == 1 || s.stats.Underruns%int64(s.config.UnderrunLogEvery) == 0 {
			log.Printf("Buffer underrun #%d: %.1fms behind, rebuffering %v",
				s.stats.Underruns, (now-s.nextPlayTime)*1000, s.config.RecoveryBuffer)
		}
		s.anchor(now+s.config.RecoveryBuffer.Seconds(), rate)
		s.crossfade.Reset()
	}

	blended := s.crossfade.Apply(block, rate)

	at := s.nextPlayTime
	if err := s.sink.ScheduleAt(at, blended); err != nil {
		// a block the device never got must not seed the next seam
		s.crossfade.Reset()
		return 0, fmt.Errorf("failed to schedule block: %w", err)
	}

	s.nextFrame += int64(block.Frames())
	s.nextPlayTime = float64(s.nextFrame) / float64(rate)
	s.stats.Blocks++
	s.stats.Scheduled++

	return at, nil
}

// Stop discards the schedule and releases queued blocks on the sink.
// Blocks are rejected until the next Start.
func (s *Scheduler) Stop() {
	s.mu.Lock()
	defer s.mu.Unlock()

	if s.state != StateScheduling {
		s.state = StateStopped
		return
	}

	s.state = StateStopped
	s.nextPlayTime = 0
	s.nextFrame = 0
	s.frameRate = 0
	s.crossfade.Reset()

	if f, ok := s.sink.(Flusher); ok {
		f.Flush()
	}

	log.Printf("Scheduler stopped after %d blocks", s.stats.Blocks)
}

// anchor moves the schedule to the frame nearest t. With no rate yet the
// time is kept as is and snapped on the first block.
func (s *Scheduler) anchor(t float64, rate int) {
	if rate <= 0 {
		s.nextPlayTime = t
		s.frameRate = 0
		return
	}
	s.frameRate = rate
	s.nextFrame = int64(math.Round(t * float64(rate)))
	s.nextPlayTime = float64(s.nextFrame) / float64(rate)
}

// State returns the lifecycle state
func (s *Scheduler) State() State {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.state
}

// NextPlayTime returns the device time the next block will start at
func (s *Scheduler) NextPlayTime() float64 {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.nextPlayTime
}

// BufferDepth returns how much scheduled audio is ahead of the device clock
func (s *Scheduler) BufferDepth() time.Duration {
	s.mu.Lock()
	defer s.mu.Unlock()

	if s.state != StateScheduling {
		return 0
	}
	ahead := s.nextPlayTime - s.sink.Now()
	if ahead < 0 {
		return 0
	}
	return audio.SecondsToDuration(ahead)
}

// TailLen returns the number of frames held for the next crossfade
func (s *Scheduler) TailLen() int {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.crossfade.TailLen()
}

// Stats returns scheduler statistics
func (s *Scheduler) Stats() Stats {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.stats
}

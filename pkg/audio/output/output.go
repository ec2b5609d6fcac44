// ABOUTME: Audio output interface definition
// ABOUTME: Common interface for clock-scheduled playback backends
package output

import (
	"fmt"

	"github.com/liveplanting/liveplanting-go/pkg/audio"
)

// Output represents an audio output device with its own clock.
//
// Blocks are not written in order; they are placed at a point on the device
// clock and mixed in when the device reaches it.
type Output interface {
	// Open initializes the output device. The device may run at a different
	// rate than requested; SampleRate reports the actual one.
	Open(sampleRate, channels int) error

	// SampleRate returns the rate the device actually runs at
	SampleRate() int

	// Now returns the device clock in seconds since Open
	Now() float64

	// ScheduleAt queues a block to start at the given device time
	ScheduleAt(at float64, block audio.Block) error

	// Flush releases every block that has not finished playing
	Flush()

	// Close releases output resources
	Close() error
}

// Backend names accepted by New
const (
	BackendMalgo     = "malgo"
	BackendOto       = "oto"
	BackendPortAudio = "portaudio"
)

// New creates an unopened output for the named backend
func New(backend string) (Output, error) {
	switch backend {
	case "", BackendMalgo:
		return NewMalgo(), nil
	case BackendOto:
		return NewOto(), nil
	case BackendPortAudio:
		return NewPortAudio(), nil
	default:
		return nil, fmt.Errorf("unknown output backend: %s", backend)
	}
}

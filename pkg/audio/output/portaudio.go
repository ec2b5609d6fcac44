//go:build portaudio

// ABOUTME: PortAudio output implementation
// ABOUTME: Cross-platform audio output using a PortAudio callback stream
package output

import (
	"fmt"
	"log"
	"sync"

	"github.com/gordonklaus/portaudio"
)

// PortAudio output implementation
type PortAudio struct {
	timelineClock

	mu     sync.Mutex
	stream *portaudio.Stream
}

// NewPortAudio creates a new PortAudio output
func NewPortAudio() Output {
	return &PortAudio{}
}

// Open initializes PortAudio and starts a callback stream
func (p *PortAudio) Open(sampleRate, channels int) error {
	p.mu.Lock()
	defer p.mu.Unlock()

	if p.stream != nil {
		log.Printf("Audio output already initialized, reusing stream")
		return nil
	}

	if err := portaudio.Initialize(); err != nil {
		return fmt.Errorf("failed to initialize portaudio: %w", err)
	}

	// The callback runs before the timeline is attached, render silence until then
	callback := func(out []float32) {
		if t := p.current(); t != nil {
			t.Render(out)
			return
		}
		for i := range out {
			out[i] = 0
		}
	}

	stream, err := portaudio.OpenDefaultStream(0, channels, float64(sampleRate), portaudio.FramesPerBufferUnspecified, callback)
	if err != nil {
		portaudio.Terminate()
		return fmt.Errorf("failed to open stream: %w", err)
	}

	actualRate := int(stream.Info().SampleRate)
	if actualRate == 0 {
		actualRate = sampleRate
	}
	p.attach(NewTimeline(actualRate, channels))

	if err := stream.Start(); err != nil {
		stream.Close()
		portaudio.Terminate()
		p.detach()
		return fmt.Errorf("failed to start stream: %w", err)
	}

	p.stream = stream

	log.Printf("Audio output initialized: %dHz, %d channels (portaudio)", actualRate, channels)

	return nil
}

// Close releases PortAudio resources
func (p *PortAudio) Close() error {
	p.mu.Lock()
	defer p.mu.Unlock()

	if p.stream == nil {
		return nil
	}

	if err := p.stream.Stop(); err != nil {
		log.Printf("Warning: stream stop error: %v", err)
	}
	if err := p.stream.Close(); err != nil {
		log.Printf("Warning: stream close error: %v", err)
	}
	p.stream = nil

	if t := p.detach(); t != nil {
		t.Close()
	}

	return portaudio.Terminate()
}

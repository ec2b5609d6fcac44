// ABOUTME: Oto-based audio output implementation
// ABOUTME: Streams float32 frames from the timeline through a persistent oto player
package output

import (
	"fmt"
	"log"
	"sync"
	"time"

	"github.com/ebitengine/oto/v3"
)

// otoBufferSize keeps oto's own read-ahead well under the scheduler lookahead
const otoBufferSize = 40 * time.Millisecond

// Oto output implementation using oto library
type Oto struct {
	timelineClock

	mu         sync.Mutex
	otoCtx     *oto.Context
	player     *oto.Player
	sampleRate int
	channels   int
}

// NewOto creates a new Oto output
func NewOto() Output {
	return &Oto{}
}

// Open initializes the output device.
// oto allows only one context per process, so a second Open reuses it.
func (o *Oto) Open(sampleRate, channels int) error {
	o.mu.Lock()
	defer o.mu.Unlock()

	if o.otoCtx != nil {
		if o.sampleRate != sampleRate || o.channels != channels {
			log.Printf("Warning: format change (%dHz %dch -> %dHz %dch) but oto doesn't support reinitialization, keeping %dHz",
				o.sampleRate, o.channels, sampleRate, channels, o.sampleRate)
		}
		if o.player == nil {
			return o.startPlayer()
		}
		log.Printf("Audio output already initialized, reusing context")
		return nil
	}

	op := &oto.NewContextOptions{
		SampleRate:   sampleRate,
		ChannelCount: channels,
		Format:       oto.FormatFloat32LE,
		BufferSize:   otoBufferSize,
	}

	ctx, readyChan, err := oto.NewContext(op)
	if err != nil {
		return fmt.Errorf("failed to create oto context: %w", err)
	}

	<-readyChan

	o.otoCtx = ctx
	o.sampleRate = sampleRate
	o.channels = channels
	if err := o.startPlayer(); err != nil {
		return err
	}

	log.Printf("Audio output initialized: %dHz, %d channels (oto/float32)", sampleRate, channels)

	return nil
}

// startPlayer creates the persistent player reading from a fresh timeline
func (o *Oto) startPlayer() error {
	// oto exposes no device rate; it consumes frames at the context rate
	t := NewTimeline(o.sampleRate, o.channels)
	o.attach(t)

	o.player = o.otoCtx.NewPlayer(t)
	o.player.Play()

	if err := o.otoCtx.Resume(); err != nil {
		return fmt.Errorf("failed to resume oto context: %w", err)
	}
	return nil
}

// Close releases output resources
func (o *Oto) Close() error {
	o.mu.Lock()
	defer o.mu.Unlock()

	if t := o.detach(); t != nil {
		t.Close()
	}
	if o.player != nil {
		if err := o.player.Close(); err != nil {
			log.Printf("Warning: oto player close error: %v", err)
		}
		o.player = nil
	}
	if o.otoCtx != nil {
		if err := o.otoCtx.Suspend(); err != nil {
			log.Printf("Warning: oto suspend error: %v", err)
		}
	}
	return nil
}

// ABOUTME: Audio streaming engine for the loopback server
// ABOUTME: Generates tone blocks and fans them out to stream and viz clients
package testserver

import (
	"log"
	"sync"
	"time"

	"github.com/liveplanting/liveplanting-go/pkg/audio"
	"github.com/liveplanting/liveplanting-go/pkg/audio/encode"
)

// Engine produces one block per interval while running
type Engine struct {
	server  *Server
	tone    *Tone
	encoder encode.Encoder

	blockIndex uint64
	mu         sync.Mutex

	stopChan chan struct{}
	stopOnce sync.Once
}

// NewEngine creates an engine for the server's format
func NewEngine(server *Server) (*Engine, error) {
	enc, err := encode.NewFloat32(audio.Format{
		SampleRate: server.config.SampleRate,
		Channels:   audio.Channels,
	})
	if err != nil {
		return nil, err
	}

	return &Engine{
		server:   server,
		tone:     NewTone(server.config.SampleRate, server.config.Frequency),
		encoder:  enc,
		stopChan: make(chan struct{}),
	}, nil
}

// Interval returns the real-time length of one block
func (e *Engine) Interval() time.Duration {
	frames := e.server.config.BlockFrames
	return time.Duration(frames) * time.Second / time.Duration(e.server.config.SampleRate)
}

// Start runs the engine until Stop is called
func (e *Engine) Start() {
	log.Printf("Audio engine starting: %d frames every %v", e.server.config.BlockFrames, e.Interval())

	ticker := time.NewTicker(e.Interval())
	defer ticker.Stop()

	for {
		select {
		case <-ticker.C:
			e.Step()
		case <-e.stopChan:
			log.Printf("Audio engine stopping")
			return
		}
	}
}

// Stop stops the engine
func (e *Engine) Stop() {
	e.stopOnce.Do(func() {
		close(e.stopChan)
	})
}

// Step generates one block and sends it to every listening client
func (e *Engine) Step() {
	e.mu.Lock()
	defer e.mu.Unlock()

	block := e.tone.Next(e.server.config.BlockFrames)
	frame, err := e.encoder.Encode(block)
	if err != nil {
		log.Printf("Error encoding block: %v", err)
		return
	}
	e.server.broadcastAudio(frame)

	if e.blockIndex%uint64(e.server.config.VizEvery) == 0 && e.server.IsPlaying() {
		e.server.broadcastViz(vizFrame(block, e.server.config.VizDecimation))
	}
	e.blockIndex++
}

// vizFrame encodes every step-th sample of the left channel
func vizFrame(block audio.Block, step int) []byte {
	src := block.Channel(0)
	picked := make([]float32, 0, len(src)/step+1)
	for i := 0; i < len(src); i += step {
		picked = append(picked, src[i])
	}
	return encode.EncodeSamples(picked)
}

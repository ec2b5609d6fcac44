// ABOUTME: Transport control facade for the Live Planting listener
// ABOUTME: Owns the connection, playback pipeline and recording state
package liveplanting

import (
	"context"
	"errors"
	"fmt"
	"log"
	"sync"
	"sync/atomic"
	"time"

	"github.com/google/uuid"

	"github.com/liveplanting/liveplanting-go/pkg/audio"
	"github.com/liveplanting/liveplanting-go/pkg/audio/decode"
	"github.com/liveplanting/liveplanting-go/pkg/audio/output"
	"github.com/liveplanting/liveplanting-go/pkg/player"
	"github.com/liveplanting/liveplanting-go/pkg/protocol"
	"github.com/liveplanting/liveplanting-go/pkg/viz"
)

var (
	// ErrNotConnected is returned by operations that need a live server
	ErrNotConnected = errors.New("not connected to audio server")

	// ErrNotRunning is returned by Stop when nothing was started
	ErrNotRunning = errors.New("player not running")

	// ErrStartCancelled is returned by a Start that Stop overtook
	ErrStartCancelled = errors.New("start cancelled")
)

// Mode selects the server variant
type Mode string

const (
	// ModeStream receives audio over a WebSocket and plays it locally
	ModeStream Mode = "stream"

	// ModeHTTP drives a server that plays audio itself
	ModeHTTP Mode = "http"
)

const (
	defaultSampleRate = 48000
	defaultServerURL  = "ws://localhost:8765"
	defaultHTTPURL    = "http://localhost:8080"
	commandTimeout    = 5 * time.Second
	vizConnectTimeout = 2 * time.Second
	rejectLogEvery    = 100
)

// Output is an audio device the player can open and schedule against
type Output interface {
	player.Sink
	Open(sampleRate, channels int) error
	Flush()
	Close() error
}

// PlayerConfig holds player configuration
type PlayerConfig struct {
	// Mode selects the server variant (default: ModeStream)
	Mode Mode

	// ServerURL is the WebSocket audio endpoint for ModeStream
	ServerURL string

	// HTTPURL is the command base URL for ModeHTTP
	HTTPURL string

	// VizURL is the optional visualization socket for ModeHTTP
	VizURL string

	// ClientID identifies this session to the server (default: random UUID)
	ClientID string

	// SampleRate is the rate requested from the output device (default: 48000).
	// The device may choose another; scheduling always uses the actual rate.
	SampleRate int

	// Scheduler tunes lookahead, underrun recovery and crossfade
	// (default: player.DefaultConfig)
	Scheduler player.Config

	// ConnectTimeout bounds the WebSocket handshake (default: 15s)
	ConnectTimeout time.Duration

	// Reconnect redials with backoff after the stream drops
	Reconnect bool

	// VizCapacity is the waveform ring size (default: 256)
	VizCapacity int

	// VizDecimation keeps every Nth sample for the waveform (default: 8)
	VizDecimation int

	// Output is the audio device (default: malgo)
	Output Output

	// Metrics receives pipeline events (default: discarded)
	Metrics Recorder

	// OnStateChange is called when the player status changes
	OnStateChange func(Status)
}

// Status describes the current state
type Status struct {
	Mode       Mode
	Running    bool
	Connection protocol.ConnectionState
	Recording  bool
	SampleRate int    // actual device rate, 0 before the first Start
	LastStatus string // last status reported by the server
}

// Stats contains playback statistics
type Stats struct {
	Received    int64
	Scheduled   int64
	Rejected    int64
	Underruns   int64
	BufferDepth time.Duration
}

// Player listens to a Live Planting server
type Player struct {
	config    PlayerConfig
	output    Output
	scheduler *player.Scheduler
	ring      *viz.Ring
	metrics   Recorder

	mu          sync.Mutex
	decoder     decode.Decoder
	client      *protocol.Client
	httpClient  *protocol.HTTPClient
	vizClient   *protocol.Client
	startCancel context.CancelFunc
	opened      bool
	active      bool   // between Start and Stop, including while dialing
	gen         uint64 // incremented by every Start
	status      Status

	received      atomic.Int64
	rejected      atomic.Int64
	underrunsSeen atomic.Int64
}

// NewPlayer creates a new player with the given configuration
func NewPlayer(config PlayerConfig) (*Player, error) {
	if config.Mode == "" {
		config.Mode = ModeStream
	}
	if config.Mode != ModeStream && config.Mode != ModeHTTP {
		return nil, fmt.Errorf("unknown mode: %q", config.Mode)
	}
	if config.ServerURL == "" {
		config.ServerURL = defaultServerURL
	}
	if config.HTTPURL == "" {
		config.HTTPURL = defaultHTTPURL
	}
	if config.ClientID == "" {
		config.ClientID = uuid.New().String()
	}
	if config.SampleRate <= 0 {
		config.SampleRate = defaultSampleRate
	}
	if config.Scheduler == (player.Config{}) {
		config.Scheduler = player.DefaultConfig()
	}
	if config.ConnectTimeout <= 0 {
		config.ConnectTimeout = protocol.DefaultConnectTimeout
	}
	if config.VizDecimation <= 0 {
		config.VizDecimation = viz.DefaultDecimation
	}
	if config.Metrics == nil {
		config.Metrics = nopRecorder{}
	}

	out := config.Output
	if out == nil {
		out = output.NewMalgo()
	}

	p := &Player{
		config:    config,
		output:    out,
		scheduler: player.NewScheduler(out, config.Scheduler),
		ring:      viz.NewRing(config.VizCapacity),
		metrics:   config.Metrics,
		status: Status{
			Mode:       config.Mode,
			Connection: protocol.StateDisconnected,
		},
	}

	return p, nil
}

// Start connects to the server and begins playback. It reports success only
// once the server is reachable; Stop cancels a Start that is still dialing.
func (p *Player) Start(ctx context.Context) error {
	p.mu.Lock()
	if p.active {
		p.mu.Unlock()
		return nil
	}
	startCtx, cancel := context.WithCancel(ctx)
	p.startCancel = cancel
	p.active = true
	p.gen++
	gen := p.gen
	p.mu.Unlock()

	var err error
	if p.config.Mode == ModeHTTP {
		err = p.startHTTP(startCtx, gen)
	} else {
		err = p.startStream(startCtx, gen)
	}

	if err != nil {
		cancel()
		p.mu.Lock()
		if p.gen == gen && p.active {
			p.active = false
			p.startCancel = nil
		}
		p.mu.Unlock()
		p.notify()
		return err
	}

	p.mu.Lock()
	if !p.currentLocked(gen) {
		p.mu.Unlock()
		return ErrStartCancelled
	}
	p.status.Running = true
	p.mu.Unlock()
	p.notify()

	log.Printf("Player running (%s mode)", p.config.Mode)
	return nil
}

// openOutput opens the device once and builds the decoder for its rate
func (p *Player) openOutput() error {
	p.mu.Lock()
	defer p.mu.Unlock()

	if p.opened {
		return nil
	}

	if err := p.output.Open(p.config.SampleRate, audio.Channels); err != nil {
		return fmt.Errorf("failed to initialize output: %w", err)
	}

	rate := p.output.SampleRate()
	if rate != p.config.SampleRate {
		log.Printf("Output device runs at %d Hz (requested %d Hz)", rate, p.config.SampleRate)
	}

	dec, err := decode.NewFloat32(audio.Format{SampleRate: rate, Channels: audio.Channels})
	if err != nil {
		p.output.Close()
		return fmt.Errorf("failed to create decoder: %w", err)
	}

	p.decoder = dec
	p.opened = true
	p.status.SampleRate = rate
	return nil
}

// currentLocked reports whether the Start with this generation still owns
// the player
func (p *Player) currentLocked(gen uint64) bool {
	return p.active && p.gen == gen
}

func (p *Player) startStream(ctx context.Context, gen uint64) error {
	if err := p.openOutput(); err != nil {
		return err
	}

	client := protocol.NewClient(protocol.Config{
		URL:            p.config.ServerURL,
		ClientID:       p.config.ClientID,
		ConnectTimeout: p.config.ConnectTimeout,
		Reconnect:      p.config.Reconnect,
	})
	client.OnBinary(p.handleFrame)
	client.OnControl(p.handleStatus)
	client.OnStateChange(p.handleConnectionState)

	p.mu.Lock()
	if !p.currentLocked(gen) {
		p.mu.Unlock()
		return ErrStartCancelled
	}
	p.client = client
	p.mu.Unlock()

	if err := client.Connect(ctx); err != nil {
		p.mu.Lock()
		if p.client == client {
			p.client = nil
		}
		p.mu.Unlock()
		// Keep the Error state rather than the Disconnected that Close reports
		client.OnStateChange(nil)
		client.Close()
		return fmt.Errorf("connection failed: %w", err)
	}

	p.mu.Lock()
	current := p.currentLocked(gen)
	p.mu.Unlock()
	if !current {
		// Stop already closed the client
		return ErrStartCancelled
	}

	p.sendCommand(protocol.CommandStartAudio)
	return nil
}

func (p *Player) startHTTP(ctx context.Context, gen uint64) error {
	httpClient := protocol.NewHTTPClient(p.config.HTTPURL, commandTimeout)
	httpClient.OnControl(p.handleStatus)

	p.setConnection(protocol.StateConnecting)

	cmdCtx, cancel := context.WithTimeout(ctx, p.config.ConnectTimeout)
	defer cancel()

	_, err := httpClient.Send(cmdCtx, protocol.CommandStartAudio)
	p.metrics.CommandSent(string(protocol.CommandStartAudio), err)

	p.mu.Lock()
	if !p.currentLocked(gen) {
		p.mu.Unlock()
		// Stop never saw this client, and the server may have taken the
		// start even when Stop cut the reply short
		stopCtx, cancelStop := context.WithTimeout(context.Background(), commandTimeout)
		_, stopErr := httpClient.Send(stopCtx, protocol.CommandStopAudio)
		cancelStop()
		p.metrics.CommandSent(string(protocol.CommandStopAudio), stopErr)
		if stopErr != nil {
			log.Printf("Stop after cancelled start failed: %v", stopErr)
		}
		return ErrStartCancelled
	}
	state := protocol.StateConnected
	if err != nil {
		state = protocol.StateError
	} else {
		p.httpClient = httpClient
	}
	p.status.Connection = state
	p.mu.Unlock()
	p.metrics.ConnectionChanged(state.String())
	p.notify()

	if err != nil {
		return fmt.Errorf("start failed: %w", err)
	}

	if p.config.VizURL != "" {
		p.connectViz(ctx, gen)
	}
	return nil
}

// connectViz opens the optional visualization socket; failure is not fatal
func (p *Player) connectViz(ctx context.Context, gen uint64) {
	vizClient := protocol.NewClient(protocol.Config{
		URL:            p.config.VizURL,
		ClientID:       p.config.ClientID,
		ConnectTimeout: vizConnectTimeout,
	})
	vizClient.OnBinary(p.handleVizFrame)

	if err := vizClient.Connect(ctx); err != nil {
		log.Printf("Visualization socket unavailable: %v", err)
		vizClient.Close()
		return
	}

	p.mu.Lock()
	if !p.currentLocked(gen) {
		p.mu.Unlock()
		vizClient.Close()
		return
	}
	p.vizClient = vizClient
	p.mu.Unlock()
	log.Printf("Visualization socket connected")
}

// Stop sends a best-effort stop command and tears down local playback.
// It is safe at any time and leaves the player restartable.
func (p *Player) Stop() error {
	p.mu.Lock()
	if !p.active {
		p.mu.Unlock()
		return ErrNotRunning
	}
	p.active = false
	cancel := p.startCancel
	p.startCancel = nil
	client, httpClient, vizClient := p.client, p.httpClient, p.vizClient
	p.client, p.httpClient, p.vizClient = nil, nil, nil
	p.mu.Unlock()

	if cancel != nil {
		cancel()
	}

	// Best effort: the server may already be gone
	if client != nil && client.IsConnected() {
		err := client.Send(protocol.CommandStopAudio)
		p.metrics.CommandSent(string(protocol.CommandStopAudio), err)
	}
	if httpClient != nil {
		ctx, cancelCmd := context.WithTimeout(context.Background(), commandTimeout)
		_, err := httpClient.Send(ctx, protocol.CommandStopAudio)
		cancelCmd()
		p.metrics.CommandSent(string(protocol.CommandStopAudio), err)
		if err != nil {
			log.Printf("Stop command failed: %v", err)
		}
	}

	p.scheduler.Stop()

	if client != nil {
		client.Close()
	}
	if vizClient != nil {
		vizClient.Close()
	}
	p.ring.Reset()

	p.mu.Lock()
	p.status.Running = false
	p.status.Recording = false
	p.status.LastStatus = ""
	p.status.Connection = protocol.StateDisconnected
	p.mu.Unlock()
	p.metrics.ConnectionChanged(protocol.StateDisconnected.String())
	p.notify()

	log.Printf("Player stopped")
	return nil
}

// ToggleRecording asks the server to start or stop recording a loop.
// Recording state changes only when the server acknowledges.
func (p *Player) ToggleRecording() error {
	p.mu.Lock()
	connected := p.isConnectedLocked()
	recording := p.status.Recording
	p.mu.Unlock()

	if !connected {
		return ErrNotConnected
	}

	cmd := protocol.CommandStartRec
	if recording {
		cmd = protocol.CommandStopRec
	}
	return p.sendCommand(cmd)
}

// ClearLoops asks the server to drop its recorded loops
func (p *Player) ClearLoops() {
	if err := p.sendCommand(protocol.CommandClearLoops); err != nil {
		log.Printf("Clear loops failed: %v", err)
	}
}

// ClearAmbience asks the server to silence its ambient voices
func (p *Player) ClearAmbience() {
	if err := p.sendCommand(protocol.CommandClearAmbient); err != nil {
		log.Printf("Clear ambience failed: %v", err)
	}
}

// sendCommand routes a command over whichever transport is active
func (p *Player) sendCommand(cmd protocol.Command) error {
	p.mu.Lock()
	client, httpClient := p.client, p.httpClient
	p.mu.Unlock()

	var err error
	switch {
	case httpClient != nil:
		ctx, cancel := context.WithTimeout(context.Background(), commandTimeout)
		_, err = httpClient.Send(ctx, cmd)
		cancel()
	case client != nil:
		err = client.Send(cmd)
	default:
		log.Printf("Dropping command %s: not connected", cmd)
		err = ErrNotConnected
	}

	p.metrics.CommandSent(string(cmd), err)
	return err
}

func (p *Player) isConnectedLocked() bool {
	if p.httpClient != nil {
		return p.status.Connection == protocol.StateConnected
	}
	return p.client != nil && p.client.IsConnected()
}

// handleFrame runs on the connection's read goroutine for each binary frame
func (p *Player) handleFrame(data []byte) {
	p.received.Add(1)
	p.metrics.BlockReceived()

	p.mu.Lock()
	dec := p.decoder
	p.mu.Unlock()
	if dec == nil {
		return
	}

	block, err := dec.Decode(data)
	if err != nil {
		n := p.rejected.Add(1)
		reason := "decode"
		switch {
		case errors.Is(err, decode.ErrFrameLength):
			reason = "length"
		case errors.Is(err, decode.ErrNonFinite):
			reason = "non_finite"
		}
		p.metrics.BlockRejected(reason)
		if n == 1 || n%rejectLogEvery == 0 {
			log.Printf("Dropped frame #%d (%d bytes): %v", n, len(data), err)
		}
		return
	}
	if block.IsEmpty() {
		return
	}

	if _, err := p.scheduler.Schedule(block); err != nil {
		if !errors.Is(err, player.ErrNotScheduling) {
			log.Printf("Playback error: %v", err)
		}
		return
	}

	if underruns := p.scheduler.Stats().Underruns; underruns > p.underrunsSeen.Load() {
		p.underrunsSeen.Store(underruns)
		p.metrics.Underrun()
	}
	p.metrics.BlockScheduled(p.scheduler.BufferDepth())

	p.ring.IngestBlock(block, p.config.VizDecimation)
}

// handleVizFrame feeds mono visualization frames into the ring
func (p *Player) handleVizFrame(data []byte) {
	samples, err := decode.DecodeMono(data)
	if err != nil {
		log.Printf("Dropped visualization frame: %v", err)
		return
	}
	p.ring.Ingest(samples)
}

// handleStatus applies a server reply to the player state
func (p *Player) handleStatus(s protocol.Status) {
	p.mu.Lock()
	switch v := s.(type) {
	case protocol.RecordingStatus:
		p.status.Recording = v.Recording
	case protocol.Stopped:
		if v.Recording != nil {
			p.status.Recording = *v.Recording
		}
	}
	p.status.LastStatus = s.Name()
	p.mu.Unlock()

	p.notify()
}

// handleConnectionState follows the stream connection. Each (re)connect
// starts a fresh schedule.
func (p *Player) handleConnectionState(state protocol.ConnectionState) {
	p.mu.Lock()
	active := p.active
	if state == protocol.StateConnected {
		if !active {
			// Stop won the race; its Disconnected stands
			p.mu.Unlock()
			return
		}
		// Under p.mu so a concurrent Stop always stops after this start
		p.scheduler.Start()
	}
	p.mu.Unlock()

	if !active {
		return
	}
	if state == protocol.StateDisconnected || state == protocol.StateError {
		log.Printf("Connection lost (%s), buffered audio will drain", state)
	}

	p.setConnection(state)
}

func (p *Player) setConnection(state protocol.ConnectionState) {
	p.mu.Lock()
	changed := p.status.Connection != state
	p.status.Connection = state
	p.mu.Unlock()

	if changed {
		p.metrics.ConnectionChanged(state.String())
		p.notify()
	}
}

// Status returns the current player state
func (p *Player) Status() Status {
	p.mu.Lock()
	defer p.mu.Unlock()
	return p.status
}

// Stats returns playback statistics
func (p *Player) Stats() Stats {
	s := p.scheduler.Stats()
	return Stats{
		Received:    p.received.Load(),
		Scheduled:   s.Scheduled,
		Rejected:    p.rejected.Load(),
		Underruns:   s.Underruns,
		BufferDepth: p.scheduler.BufferDepth(),
	}
}

// Feed returns the waveform ring
func (p *Player) Feed() *viz.Ring {
	return p.ring
}

// Close stops the player and releases the output device
func (p *Player) Close() error {
	p.Stop()

	p.mu.Lock()
	opened := p.opened
	p.opened = false
	p.decoder = nil
	p.mu.Unlock()

	if opened {
		return p.output.Close()
	}
	return nil
}

// notify calls the OnStateChange callback if set
func (p *Player) notify() {
	if p.config.OnStateChange != nil {
		p.config.OnStateChange(p.Status())
	}
}

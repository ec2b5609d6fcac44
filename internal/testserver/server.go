// ABOUTME: Loopback Live Planting server for tests and manual runs
// ABOUTME: Streams float32 frames over WebSocket and answers control commands
package testserver

import (
	"context"
	"encoding/json"
	"fmt"
	"log"
	"net/http"
	"sync"
	"time"

	"github.com/google/uuid"
	"github.com/gorilla/websocket"

	"github.com/liveplanting/liveplanting-go/internal/discovery"
	"github.com/liveplanting/liveplanting-go/pkg/protocol"
)

// Config holds server configuration
type Config struct {
	Port          int
	Name          string
	EnableMDNS    bool
	AutoStart     bool    // stream to clients as soon as they connect
	SampleRate    int     // default 48000
	BlockFrames   int     // frames per binary message, default 2048
	Frequency     float64 // test tone, default 440 Hz
	VizEvery      int     // send a viz frame every Nth block, default 4
	VizDecimation int     // keep every Nth sample in viz frames, default 8
}

// Server emulates the installation's audio server
type Server struct {
	config   Config
	serverID string

	upgrader   websocket.Upgrader
	httpServer *http.Server
	mux        *http.ServeMux

	clients   map[string]*Client
	clientsMu sync.RWMutex

	engine      *Engine
	mdnsManager *discovery.Manager

	stateMu   sync.RWMutex
	playing   bool
	recording bool
	failing   bool
	commands  []protocol.Command

	stopChan   chan struct{}
	stopOnce   sync.Once
	shutdownMu sync.RWMutex
	isShutdown bool
	wg         sync.WaitGroup
}

// Client is a connected WebSocket peer
type Client struct {
	ID   string
	Conn *websocket.Conn
	Viz  bool // visualization socket rather than audio stream

	mu        sync.RWMutex
	streaming bool

	sendChan chan interface{}
}

func (c *Client) isStreaming() bool {
	c.mu.RLock()
	defer c.mu.RUnlock()
	return c.streaming
}

func (c *Client) setStreaming(on bool) {
	c.mu.Lock()
	c.streaming = on
	c.mu.Unlock()
}

// New creates a server with routes registered
func New(config Config) (*Server, error) {
	if config.Name == "" {
		config.Name = "Live Planting Test Server"
	}
	if config.SampleRate <= 0 {
		config.SampleRate = 48000
	}
	if config.BlockFrames <= 0 {
		config.BlockFrames = 2048
	}
	if config.Frequency <= 0 {
		config.Frequency = 440
	}
	if config.VizEvery <= 0 {
		config.VizEvery = 4
	}
	if config.VizDecimation <= 0 {
		config.VizDecimation = 8
	}

	s := &Server{
		config:   config,
		serverID: uuid.New().String(),
		mux:      http.NewServeMux(),
		upgrader: websocket.Upgrader{
			// Local installation network; browsers on any origin may connect
			CheckOrigin: func(r *http.Request) bool { return true },
		},
		clients:  make(map[string]*Client),
		stopChan: make(chan struct{}),
	}

	engine, err := NewEngine(s)
	if err != nil {
		return nil, fmt.Errorf("failed to create audio engine: %w", err)
	}
	s.engine = engine

	s.mux.HandleFunc("GET /{$}", s.handleStream)
	s.mux.HandleFunc("GET /viz", s.handleViz)
	for _, cmd := range []protocol.Command{
		protocol.CommandStartAudio, protocol.CommandStopAudio,
		protocol.CommandStartRec, protocol.CommandStopRec,
		protocol.CommandClearLoops, protocol.CommandClearAmbient,
	} {
		s.mux.HandleFunc("POST "+cmd.Endpoint(), s.handleHTTPCommand(cmd))
	}
	s.mux.HandleFunc("OPTIONS /", s.handleOptions)

	return s, nil
}

// Handler returns the HTTP handler serving every endpoint
func (s *Server) Handler() http.Handler {
	return s.mux
}

// Engine returns the audio engine, for driving blocks by hand in tests
func (s *Server) Engine() *Engine {
	return s.engine
}

// Start serves on the configured port until Stop is called
func (s *Server) Start() error {
	log.Printf("Server starting: %s (ID: %s)", s.config.Name, s.serverID)

	if s.config.EnableMDNS {
		s.mdnsManager = discovery.NewManager(discovery.Config{
			ServiceName: s.config.Name,
			Port:        s.config.Port,
		})
		if err := s.mdnsManager.Advertise(); err != nil {
			log.Printf("Failed to start mDNS advertisement: %v", err)
		}
	}

	s.wg.Add(1)
	go func() {
		defer s.wg.Done()
		s.engine.Start()
	}()

	addr := fmt.Sprintf(":%d", s.config.Port)
	log.Printf("Listening on %s (stream: /, viz: /viz)", addr)

	s.httpServer = &http.Server{
		Addr:    addr,
		Handler: s.mux,
	}

	errChan := make(chan error, 1)
	go func() {
		if err := s.httpServer.ListenAndServe(); err != http.ErrServerClosed {
			errChan <- err
		}
	}()

	var serverErr error
	select {
	case <-s.stopChan:
		log.Printf("Server shutting down...")
	case err := <-errChan:
		log.Printf("HTTP server error: %v", err)
		serverErr = err
	}

	s.shutdownMu.Lock()
	s.isShutdown = true
	s.shutdownMu.Unlock()

	s.engine.Stop()

	if s.mdnsManager != nil {
		s.mdnsManager.Stop()
	}

	ctx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
	defer cancel()
	if err := s.httpServer.Shutdown(ctx); err != nil {
		log.Printf("HTTP server shutdown error: %v", err)
	}

	s.wg.Wait()
	log.Printf("Server stopped cleanly")

	if serverErr != nil {
		return fmt.Errorf("HTTP server failed: %w", serverErr)
	}
	return nil
}

// Stop stops the server
func (s *Server) Stop() {
	s.stopOnce.Do(func() {
		close(s.stopChan)
	})
}

// IsPlaying reports whether audio has been started over HTTP
func (s *Server) IsPlaying() bool {
	s.stateMu.RLock()
	defer s.stateMu.RUnlock()
	return s.playing
}

// Recording reports the server's recording flag
func (s *Server) Recording() bool {
	s.stateMu.RLock()
	defer s.stateMu.RUnlock()
	return s.recording
}

// Commands returns every command received so far, in order
func (s *Server) Commands() []protocol.Command {
	s.stateMu.RLock()
	defer s.stateMu.RUnlock()
	return append([]protocol.Command(nil), s.commands...)
}

// SetFailing makes HTTP commands answer 503
func (s *Server) SetFailing(failing bool) {
	s.stateMu.Lock()
	s.failing = failing
	s.stateMu.Unlock()
}

// ClientCount returns the number of connected WebSocket clients
func (s *Server) ClientCount() int {
	s.clientsMu.RLock()
	defer s.clientsMu.RUnlock()
	return len(s.clients)
}

// SendFrame sends a raw binary frame to every streaming client
func (s *Server) SendFrame(frame []byte) {
	s.broadcastAudio(frame)
}

// SendText sends a raw text message to every streaming client
func (s *Server) SendText(text string) {
	s.eachClient(func(c *Client) {
		if !c.Viz {
			s.enqueue(c, []byte(text), websocket.TextMessage)
		}
	})
}

// apply updates server state for a command and returns the reply
func (s *Server) apply(cmd protocol.Command, viaHTTP bool) (protocol.Status, error) {
	s.stateMu.Lock()
	defer s.stateMu.Unlock()

	s.commands = append(s.commands, cmd)

	switch cmd {
	case protocol.CommandStartAudio:
		s.playing = true
		if viaHTTP {
			return protocol.Started{Message: "audio started"}, nil
		}
		return protocol.AudioStarted{}, nil
	case protocol.CommandStopAudio:
		s.playing = false
		if viaHTTP {
			return protocol.Stopped{Message: "audio stopped"}, nil
		}
		return protocol.AudioStopped{}, nil
	case protocol.CommandStartRec:
		s.recording = true
		return protocol.RecordingStatus{Recording: true}, nil
	case protocol.CommandStopRec:
		s.recording = false
		off := false
		return protocol.Stopped{Recording: &off}, nil
	case protocol.CommandClearLoops:
		return protocol.LoopsCleared{}, nil
	case protocol.CommandClearAmbient:
		return protocol.AmbientCleared{}, nil
	default:
		return nil, fmt.Errorf("unknown command: %q", cmd)
	}
}

// handleHTTPCommand answers POST /<command> with a JSON status
func (s *Server) handleHTTPCommand(cmd protocol.Command) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		w.Header().Set("Access-Control-Allow-Origin", "*")

		s.stateMu.RLock()
		failing := s.failing
		s.stateMu.RUnlock()
		if failing {
			http.Error(w, "audio engine unavailable", http.StatusServiceUnavailable)
			return
		}

		status, err := s.apply(cmd, true)
		if err != nil {
			http.Error(w, err.Error(), http.StatusBadRequest)
			return
		}

		data, err := protocol.EncodeStatus(status)
		if err != nil {
			http.Error(w, err.Error(), http.StatusInternalServerError)
			return
		}

		log.Printf("[HTTP] %s -> %s", cmd, status.Name())
		w.Header().Set("Content-Type", "application/json")
		w.Write(data)
	}
}

// handleOptions answers CORS preflight requests
func (s *Server) handleOptions(w http.ResponseWriter, r *http.Request) {
	w.Header().Set("Access-Control-Allow-Origin", "*")
	w.Header().Set("Access-Control-Allow-Methods", "POST, OPTIONS")
	w.Header().Set("Access-Control-Allow-Headers", "Content-Type")
	w.WriteHeader(http.StatusOK)
}

// handleStream serves the audio WebSocket
func (s *Server) handleStream(w http.ResponseWriter, r *http.Request) {
	s.serveWebSocket(w, r, false)
}

// handleViz serves the visualization WebSocket
func (s *Server) handleViz(w http.ResponseWriter, r *http.Request) {
	s.serveWebSocket(w, r, true)
}

func (s *Server) serveWebSocket(w http.ResponseWriter, r *http.Request, viz bool) {
	s.shutdownMu.RLock()
	shutdown := s.isShutdown
	s.shutdownMu.RUnlock()
	if shutdown {
		http.Error(w, "shutting down", http.StatusServiceUnavailable)
		return
	}

	conn, err := s.upgrader.Upgrade(w, r, nil)
	if err != nil {
		log.Printf("WebSocket upgrade error: %v", err)
		return
	}
	defer conn.Close()

	id := r.Header.Get(protocol.ClientIDHeader)
	if id == "" {
		id = uuid.New().String()
	}
	if viz {
		id = "viz-" + id
	}

	client := &Client{
		ID:        id,
		Conn:      conn,
		Viz:       viz,
		streaming: s.config.AutoStart && !viz,
		sendChan:  make(chan interface{}, 100),
	}

	s.clientsMu.Lock()
	if _, exists := s.clients[client.ID]; exists {
		s.clientsMu.Unlock()
		log.Printf("Client ID %s already connected, rejecting duplicate", client.ID)
		conn.WriteMessage(websocket.CloseMessage,
			websocket.FormatCloseMessage(websocket.ClosePolicyViolation, "duplicate client id"))
		return
	}
	s.clients[client.ID] = client
	s.clientsMu.Unlock()

	log.Printf("Client connected: %s from %s (viz: %v)", client.ID, r.RemoteAddr, viz)

	writerDone := make(chan struct{})
	go func() {
		defer close(writerDone)
		s.clientWriter(client)
	}()

	defer func() {
		s.clientsMu.Lock()
		delete(s.clients, client.ID)
		close(client.sendChan)
		s.clientsMu.Unlock()
		<-writerDone
		log.Printf("Client disconnected: %s", client.ID)
	}()

	for {
		_, data, err := conn.ReadMessage()
		if err != nil {
			if websocket.IsUnexpectedCloseError(err, websocket.CloseGoingAway, websocket.CloseNormalClosure) {
				log.Printf("WebSocket error: %v", err)
			}
			return
		}
		if !viz {
			s.handleClientMessage(client, data)
		}
	}
}

// handleClientMessage processes a command sent over the audio socket
func (s *Server) handleClientMessage(client *Client, data []byte) {
	var msg protocol.CommandMessage
	if err := json.Unmarshal(data, &msg); err != nil {
		log.Printf("Error unmarshaling command: %v", err)
		return
	}

	status, err := s.apply(msg.Command, false)
	if err != nil {
		log.Printf("Client %s: %v", client.ID, err)
		return
	}

	switch msg.Command {
	case protocol.CommandStartAudio:
		client.setStreaming(true)
	case protocol.CommandStopAudio:
		client.setStreaming(false)
	}

	reply, err := protocol.EncodeStatus(status)
	if err != nil {
		log.Printf("Error encoding status: %v", err)
		return
	}
	s.enqueue(client, reply, websocket.TextMessage)
}

type outbound struct {
	kind int
	data []byte
}

// clientWriter sends queued messages to the client
func (s *Server) clientWriter(client *Client) {
	ticker := time.NewTicker(30 * time.Second)
	defer ticker.Stop()

	const writeDeadline = 10 * time.Second

	for {
		select {
		case msg, ok := <-client.sendChan:
			if !ok {
				return
			}
			out := msg.(outbound)
			client.Conn.SetWriteDeadline(time.Now().Add(writeDeadline))
			if err := client.Conn.WriteMessage(out.kind, out.data); err != nil {
				log.Printf("Error writing to %s: %v", client.ID, err)
				// Keep draining so senders never block
				continue
			}

		case <-ticker.C:
			if err := client.Conn.WriteControl(websocket.PingMessage, []byte{}, time.Now().Add(10*time.Second)); err != nil {
				log.Printf("Ping to %s failed: %v", client.ID, err)
			}
		}
	}
}

// enqueue queues a message without blocking. Callers hold clientsMu or run
// on the client's own read loop, so sendChan is never closed underneath.
func (s *Server) enqueue(client *Client, data []byte, kind int) {
	select {
	case client.sendChan <- outbound{kind: kind, data: data}:
	default:
		log.Printf("Client %s send buffer full, dropping message", client.ID)
	}
}

func (s *Server) eachClient(fn func(*Client)) {
	s.clientsMu.RLock()
	defer s.clientsMu.RUnlock()
	for _, c := range s.clients {
		fn(c)
	}
}

func (s *Server) broadcastAudio(frame []byte) {
	s.eachClient(func(c *Client) {
		if !c.Viz && c.isStreaming() {
			s.enqueue(c, frame, websocket.BinaryMessage)
		}
	})
}

func (s *Server) broadcastViz(frame []byte) {
	s.eachClient(func(c *Client) {
		if c.Viz {
			s.enqueue(c, frame, websocket.BinaryMessage)
		}
	})
}

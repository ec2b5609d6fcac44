// ABOUTME: WebSocket client for the Live Planting streaming server
// ABOUTME: Handles connection state, the read loop and command sending
package protocol

import (
	"context"
	"errors"
	"fmt"
	"log"
	"net/http"
	"sync"
	"time"

	"github.com/gorilla/websocket"
)

// ErrNotConnected is returned when a command is sent without a connection
var ErrNotConnected = errors.New("not connected")

const (
	// DefaultConnectTimeout bounds the WebSocket handshake
	DefaultConnectTimeout = 15 * time.Second

	// ClientIDHeader carries the session ID on the handshake request
	ClientIDHeader = "X-Client-ID"

	writeTimeout = 5 * time.Second
)

// Reconnect backoff bounds
var (
	MinBackoff = 1 * time.Second
	MaxBackoff = 30 * time.Second
)

// ConnectionState is the state of a transport connection
type ConnectionState int

const (
	StateDisconnected ConnectionState = iota
	StateConnecting
	StateConnected
	StateError
)

func (s ConnectionState) String() string {
	switch s {
	case StateDisconnected:
		return "disconnected"
	case StateConnecting:
		return "connecting"
	case StateConnected:
		return "connected"
	case StateError:
		return "error"
	default:
		return fmt.Sprintf("state(%d)", int(s))
	}
}

// Config holds client configuration
type Config struct {
	URL            string        // ws:// or wss:// endpoint
	ClientID       string        // sent as X-Client-ID when set
	ConnectTimeout time.Duration // defaults to DefaultConnectTimeout
	Reconnect      bool          // redial with backoff after the connection drops
}

// Client is a WebSocket connection to the audio server. Handlers run on the
// client's single read goroutine, in wire order.
type Client struct {
	config Config

	mu        sync.RWMutex
	conn      *websocket.Conn
	state     ConnectionState
	closed    bool
	onBinary  func([]byte)
	onControl func(Status)
	onState   func(ConnectionState)

	writeMu sync.Mutex

	ctx    context.Context
	cancel context.CancelFunc
	wg     sync.WaitGroup
}

// NewClient creates a new WebSocket client
func NewClient(config Config) *Client {
	if config.ConnectTimeout <= 0 {
		config.ConnectTimeout = DefaultConnectTimeout
	}
	ctx, cancel := context.WithCancel(context.Background())
	return &Client{
		config: config,
		ctx:    ctx,
		cancel: cancel,
	}
}

// OnBinary sets the handler for binary frames
func (c *Client) OnBinary(handler func([]byte)) {
	c.mu.Lock()
	c.onBinary = handler
	c.mu.Unlock()
}

// OnControl sets the handler for decoded status messages
func (c *Client) OnControl(handler func(Status)) {
	c.mu.Lock()
	c.onControl = handler
	c.mu.Unlock()
}

// OnStateChange sets the handler for connection state transitions
func (c *Client) OnStateChange(handler func(ConnectionState)) {
	c.mu.Lock()
	c.onState = handler
	c.mu.Unlock()
}

// State returns the current connection state
func (c *Client) State() ConnectionState {
	c.mu.RLock()
	defer c.mu.RUnlock()
	return c.state
}

// IsConnected reports whether commands can be sent
func (c *Client) IsConnected() bool {
	return c.State() == StateConnected
}

func (c *Client) setState(state ConnectionState) {
	c.mu.Lock()
	if c.state == state || (c.closed && state != StateDisconnected) {
		c.mu.Unlock()
		return
	}
	c.state = state
	handler := c.onState
	c.mu.Unlock()

	if handler != nil {
		handler(state)
	}
}

// Connect dials the server and starts the read loop. The dial is bounded by
// the connect timeout and by ctx.
func (c *Client) Connect(ctx context.Context) error {
	c.mu.RLock()
	closed := c.closed
	connected := c.conn != nil
	c.mu.RUnlock()

	if closed {
		return fmt.Errorf("client closed")
	}
	if connected {
		return nil
	}

	if err := c.dial(ctx); err != nil {
		c.setState(StateError)
		return err
	}
	return nil
}

func (c *Client) dial(ctx context.Context) error {
	c.setState(StateConnecting)
	log.Printf("Connecting to %s", c.config.URL)

	dialCtx, cancel := context.WithTimeout(ctx, c.config.ConnectTimeout)
	defer cancel()

	// Close() cancels an in-flight dial
	stop := context.AfterFunc(c.ctx, cancel)
	defer stop()

	header := http.Header{}
	if c.config.ClientID != "" {
		header.Set(ClientIDHeader, c.config.ClientID)
	}

	conn, _, err := websocket.DefaultDialer.DialContext(dialCtx, c.config.URL, header)
	if err != nil {
		return fmt.Errorf("dial failed: %w", err)
	}

	c.mu.Lock()
	if c.closed {
		c.mu.Unlock()
		conn.Close()
		return fmt.Errorf("client closed")
	}
	c.conn = conn
	c.wg.Add(1)
	c.mu.Unlock()

	log.Printf("Connected to %s", c.config.URL)

	// Reading waits for the Connected handler, which may itself call Close
	ready := make(chan struct{})
	go c.readMessages(conn, ready)
	c.setState(StateConnected)
	close(ready)

	return nil
}

// readMessages reads and routes incoming messages until the connection ends
func (c *Client) readMessages(conn *websocket.Conn, ready <-chan struct{}) {
	defer c.wg.Done()

	select {
	case <-ready:
	case <-c.ctx.Done():
		return
	}

	for {
		messageType, data, err := conn.ReadMessage()
		if err != nil {
			c.connectionLost(conn, err)
			return
		}

		switch messageType {
		case websocket.BinaryMessage:
			c.mu.RLock()
			handler := c.onBinary
			c.mu.RUnlock()
			if handler != nil {
				handler(data)
			}
		case websocket.TextMessage:
			c.handleText(data)
		default:
			log.Printf("Unknown WebSocket message type: %d", messageType)
		}
	}
}

func (c *Client) handleText(data []byte) {
	status, err := DecodeStatus(data)
	if err != nil {
		log.Printf("Ignoring control message: %v", err)
		return
	}

	if detail := status.Detail(); detail != "" {
		log.Printf("Server status %s: %s", status.Name(), detail)
	} else {
		log.Printf("Server status %s", status.Name())
	}

	c.mu.RLock()
	handler := c.onControl
	c.mu.RUnlock()
	if handler != nil {
		handler(status)
	}
}

func (c *Client) connectionLost(conn *websocket.Conn, err error) {
	c.mu.Lock()
	if c.conn == conn {
		c.conn = nil
	}
	closed := c.closed
	reconnect := !closed && c.config.Reconnect
	if reconnect {
		c.wg.Add(1)
	}
	c.mu.Unlock()
	conn.Close()

	if closed {
		return
	}

	if websocket.IsCloseError(err, websocket.CloseNormalClosure, websocket.CloseGoingAway) {
		log.Printf("Server closed connection")
		c.setState(StateDisconnected)
	} else {
		log.Printf("Read error: %v", err)
		c.setState(StateError)
	}

	if reconnect {
		go c.reconnect()
	}
}

// reconnect redials with exponential backoff until it succeeds or the
// client is closed
func (c *Client) reconnect() {
	defer c.wg.Done()

	backoff := MinBackoff
	for {
		log.Printf("Reconnecting in %v", backoff)
		select {
		case <-c.ctx.Done():
			return
		case <-time.After(backoff):
		}

		err := c.dial(c.ctx)
		if err == nil {
			return
		}
		if c.ctx.Err() != nil {
			return
		}
		log.Printf("Reconnect failed: %v", err)
		c.setState(StateError)

		backoff *= 2
		if backoff > MaxBackoff {
			backoff = MaxBackoff
		}
	}
}

// Send transmits a command. Commands issued while not connected are dropped.
func (c *Client) Send(cmd Command) error {
	c.mu.RLock()
	conn := c.conn
	state := c.state
	c.mu.RUnlock()

	if conn == nil || state != StateConnected {
		log.Printf("Dropping command %s: not connected", cmd)
		return ErrNotConnected
	}

	c.writeMu.Lock()
	defer c.writeMu.Unlock()

	conn.SetWriteDeadline(time.Now().Add(writeTimeout))
	if err := conn.WriteJSON(CommandMessage{Command: cmd}); err != nil {
		log.Printf("Failed to send command %s: %v", cmd, err)
		return fmt.Errorf("failed to send %s: %w", cmd, err)
	}

	log.Printf("Sent command %s", cmd)
	return nil
}

// Close ends the connection and waits for the read loop to exit. It is
// idempotent. It must not be called from a binary or control handler; the
// state handler may call it.
func (c *Client) Close() {
	c.mu.Lock()
	if c.closed {
		c.mu.Unlock()
		return
	}
	c.closed = true
	conn := c.conn
	c.conn = nil
	c.mu.Unlock()

	c.cancel()

	if conn != nil {
		c.writeMu.Lock()
		conn.WriteControl(websocket.CloseMessage,
			websocket.FormatCloseMessage(websocket.CloseNormalClosure, ""),
			time.Now().Add(time.Second))
		c.writeMu.Unlock()
		conn.Close()
		log.Printf("Connection closed")
	}

	c.wg.Wait()
	c.setState(StateDisconnected)
}

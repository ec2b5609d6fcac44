// ABOUTME: HTTP command client for servers that play audio locally
// ABOUTME: Posts commands to fixed endpoints and decodes JSON status replies
package protocol

import (
	"context"
	"fmt"
	"io"
	"log"
	"net/http"
	"strings"
	"sync"
	"time"
)

// DefaultHTTPTimeout bounds a single command request
const DefaultHTTPTimeout = 10 * time.Second

// maxReplySize caps how much of a reply body is read
const maxReplySize = 64 * 1024

// HTTPStatusError is returned when the server answers a command with a
// non-2xx status
type HTTPStatusError struct {
	Command    Command
	StatusCode int
	Body       string
}

func (e *HTTPStatusError) Error() string {
	if e.Body == "" {
		return fmt.Sprintf("%s: HTTP %d", e.Command, e.StatusCode)
	}
	return fmt.Sprintf("%s: HTTP %d: %s", e.Command, e.StatusCode, e.Body)
}

// HTTPClient sends commands as POST requests against a base URL
type HTTPClient struct {
	baseURL string
	client  *http.Client

	mu        sync.RWMutex
	onControl func(Status)
}

// NewHTTPClient creates a command client. A zero timeout selects
// DefaultHTTPTimeout.
func NewHTTPClient(baseURL string, timeout time.Duration) *HTTPClient {
	if timeout <= 0 {
		timeout = DefaultHTTPTimeout
	}
	return &HTTPClient{
		baseURL: strings.TrimRight(baseURL, "/"),
		client:  &http.Client{Timeout: timeout},
	}
}

// BaseURL returns the server URL commands are posted to
func (h *HTTPClient) BaseURL() string {
	return h.baseURL
}

// OnControl sets the handler for decoded replies
func (h *HTTPClient) OnControl(handler func(Status)) {
	h.mu.Lock()
	h.onControl = handler
	h.mu.Unlock()
}

// Send posts cmd and returns the decoded reply. Failures are returned to the
// caller and not retried.
func (h *HTTPClient) Send(ctx context.Context, cmd Command) (Status, error) {
	if !cmd.Valid() {
		return nil, fmt.Errorf("unknown command: %q", cmd)
	}

	url := h.baseURL + cmd.Endpoint()
	req, err := http.NewRequestWithContext(ctx, http.MethodPost, url, nil)
	if err != nil {
		return nil, fmt.Errorf("failed to build request: %w", err)
	}
	req.Header.Set("Content-Type", "application/json")

	log.Printf("POST %s", url)
	resp, err := h.client.Do(req)
	if err != nil {
		return nil, fmt.Errorf("%s failed: %w", cmd, err)
	}
	defer resp.Body.Close()

	body, err := io.ReadAll(io.LimitReader(resp.Body, maxReplySize))
	if err != nil {
		return nil, fmt.Errorf("failed to read %s reply: %w", cmd, err)
	}

	if resp.StatusCode < 200 || resp.StatusCode > 299 {
		return nil, &HTTPStatusError{
			Command:    cmd,
			StatusCode: resp.StatusCode,
			Body:       strings.TrimSpace(string(body)),
		}
	}

	status, err := DecodeStatus(body)
	if err != nil {
		return nil, fmt.Errorf("%s reply: %w", cmd, err)
	}

	if detail := status.Detail(); detail != "" {
		log.Printf("Server status %s: %s", status.Name(), detail)
	} else {
		log.Printf("Server status %s", status.Name())
	}

	h.mu.RLock()
	handler := h.onControl
	h.mu.RUnlock()
	if handler != nil {
		handler(status)
	}

	return status, nil
}

package delivery

import (
	"bufio"
	"context"
	"encoding/json"
	"fmt"
	"strings"
	"sync"
	"time"

	"github.com/zeronotes/client-go/internal/api"
)

const (
	SSEReconnectInterval    = 5 * time.Second
	SSEMaxReconnectAttempts = 10
)

// SSEStrategy delivers change hints over a server-sent events stream.
type SSEStrategy struct {
	apiClient     *api.Client
	handler       Handler
	cancel        context.CancelFunc
	mu            sync.RWMutex
	reconnectWait time.Duration
	attempts      int
	started       bool
	connected     chan struct{} // closed when the first connection is established
	connectedOnce sync.Once
	lastError     error
}

// NewSSEStrategy creates a new SSE strategy.
func NewSSEStrategy(cfg Config) *SSEStrategy {
	return &SSEStrategy{
		apiClient:     cfg.APIClient,
		reconnectWait: SSEReconnectInterval,
		connected:     make(chan struct{}),
	}
}

// Name returns the strategy name.
func (s *SSEStrategy) Name() string {
	return "sse"
}

// Connected returns a channel that's closed when the SSE connection is established.
func (s *SSEStrategy) Connected() <-chan struct{} {
	return s.connected
}

// LastError returns the last connection error, if any.
func (s *SSEStrategy) LastError() error {
	s.mu.RLock()
	defer s.mu.RUnlock()
	return s.lastError
}

// Start begins streaming change hints to the handler.
func (s *SSEStrategy) Start(ctx context.Context, handler Handler) error {
	s.mu.Lock()
	s.handler = handler
	s.started = true
	s.mu.Unlock()

	ctx, s.cancel = context.WithCancel(ctx)
	go s.connectLoop(ctx)
	return nil
}

// Stop gracefully shuts down the strategy.
func (s *SSEStrategy) Stop() error {
	s.mu.Lock()
	s.started = false
	s.mu.Unlock()

	if s.cancel != nil {
		s.cancel()
	}
	return nil
}

func (s *SSEStrategy) connectLoop(ctx context.Context) {
	for {
		select {
		case <-ctx.Done():
			return
		default:
		}

		err := s.connect(ctx)
		if err == nil {
			// Clean disconnect
			return
		}

		s.attempts++
		if s.attempts >= SSEMaxReconnectAttempts {
			return
		}

		wait := s.reconnectWait * time.Duration(1<<(s.attempts-1))
		select {
		case <-ctx.Done():
			return
		case <-time.After(wait):
		}
	}
}

func (s *SSEStrategy) connect(ctx context.Context) error {
	if s.apiClient == nil {
		err := fmt.Errorf("SSE strategy: API client is nil")
		s.mu.Lock()
		s.lastError = err
		s.mu.Unlock()
		return err
	}

	resp, err := s.apiClient.OpenEventStream(ctx)
	if err != nil {
		s.mu.Lock()
		s.lastError = err
		s.mu.Unlock()
		return err
	}
	defer resp.Body.Close()

	// Reset attempts on successful connection
	s.attempts = 0

	s.connectedOnce.Do(func() {
		close(s.connected)
	})

	scanner := bufio.NewScanner(resp.Body)
	for scanner.Scan() {
		line := scanner.Text()

		// Skip empty lines and comments
		if line == "" || strings.HasPrefix(line, ":") {
			continue
		}

		if strings.HasPrefix(line, "data: ") {
			data := strings.TrimPrefix(line, "data: ")

			var event api.ChangeEvent
			if err := json.Unmarshal([]byte(data), &event); err != nil {
				continue // Skip malformed events
			}

			s.mu.RLock()
			handler := s.handler
			s.mu.RUnlock()

			if handler != nil {
				handler(ctx, Hint{SyncVersion: event.SyncVersion})
			}
		}
	}

	return scanner.Err()
}

// Close closes the SSE strategy.
func (s *SSEStrategy) Close() error {
	return s.Stop()
}

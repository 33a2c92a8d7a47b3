package delivery

import (
	"context"
	"time"
)

// AutoStrategy automatically selects between SSE and polling.
type AutoStrategy struct {
	cfg     Config
	current Strategy
}

// NewAutoStrategy creates a new auto strategy.
func NewAutoStrategy(cfg Config) *AutoStrategy {
	return &AutoStrategy{cfg: cfg}
}

// Name returns the strategy name.
func (a *AutoStrategy) Name() string {
	if a.current != nil {
		return "auto:" + a.current.Name()
	}
	return "auto"
}

// Start tries SSE first and falls back to polling when the stream does
// not come up within the connection timeout.
func (a *AutoStrategy) Start(ctx context.Context, handler Handler) error {
	sse := NewSSEStrategy(a.cfg)
	if err := sse.Start(ctx, handler); err != nil {
		return a.startPolling(ctx, handler)
	}

	select {
	case <-sse.Connected():
		a.current = sse
		return nil
	case <-time.After(a.cfg.sseConnectionTimeout()):
		sse.Stop()
		return a.startPolling(ctx, handler)
	case <-ctx.Done():
		sse.Stop()
		return ctx.Err()
	}
}

func (a *AutoStrategy) startPolling(ctx context.Context, handler Handler) error {
	polling := NewPollingStrategy(a.cfg)
	if err := polling.Start(ctx, handler); err != nil {
		return err
	}
	a.current = polling
	return nil
}

// Stop gracefully shuts down the strategy.
func (a *AutoStrategy) Stop() error {
	if a.current != nil {
		return a.current.Stop()
	}
	return nil
}

// Close closes the auto strategy.
func (a *AutoStrategy) Close() error {
	return a.Stop()
}

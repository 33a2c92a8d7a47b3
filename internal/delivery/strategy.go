package delivery

import (
	"context"
	"time"

	"github.com/zeronotes/client-go/internal/api"
)

// Hint tells the client the account moved past a sync version. It is a
// wake-up signal only; the client reacts by running a sync cycle and
// never trusts the hint's content beyond the version number.
type Hint struct {
	SyncVersion uint64
}

// Handler is invoked for each change hint. Implementations must be fast;
// slow handlers delay subsequent hints.
type Handler func(ctx context.Context, hint Hint)

// Strategy defines how change hints reach the client.
// Implementations include PollingStrategy, SSEStrategy, and AutoStrategy.
//
// The typical lifecycle is:
//  1. Create a strategy with NewXxxStrategy(cfg)
//  2. Call Start(ctx, handler) to begin receiving hints
//  3. Call Stop() when done to release resources
//
// All implementations are safe for concurrent use.
type Strategy interface {
	// Start begins delivering change hints to the handler.
	// Start returns immediately; delivery is asynchronous.
	Start(ctx context.Context, handler Handler) error

	// Stop gracefully shuts down the strategy and releases resources.
	// After Stop returns, no more hints are delivered.
	// Stop is idempotent and safe to call multiple times.
	Stop() error

	// Name returns the strategy name for logging and debugging.
	// Examples: "polling", "sse", "auto:sse", "auto:polling"
	Name() string
}

// Config holds configuration shared by all delivery strategies.
type Config struct {
	// APIClient is the API client used for making requests to the server.
	APIClient *api.Client

	// PollingInitialInterval is the starting interval between polls.
	// If zero, defaults to DefaultPollingInitialInterval.
	PollingInitialInterval time.Duration

	// PollingMaxBackoff is the maximum interval between polls.
	// If zero, defaults to DefaultPollingMaxBackoff.
	PollingMaxBackoff time.Duration

	// PollingBackoffMultiplier is the factor by which the interval
	// increases after each poll with no changes.
	// If zero, defaults to DefaultPollingBackoffMultiplier.
	PollingBackoffMultiplier float64

	// PollingJitterFactor is the maximum random jitter added to poll
	// intervals, as a fraction of the interval.
	// If zero, defaults to DefaultPollingJitterFactor.
	PollingJitterFactor float64

	// SSEConnectionTimeout is the maximum time to wait for an SSE
	// connection before falling back to polling in auto mode.
	// If zero, defaults to DefaultSSEConnectionTimeout.
	SSEConnectionTimeout time.Duration
}

// Default polling configuration values.
const (
	DefaultPollingInitialInterval   = 2 * time.Second
	DefaultPollingMaxBackoff        = 30 * time.Second
	DefaultPollingBackoffMultiplier = 1.5
	DefaultPollingJitterFactor      = 0.3
	DefaultSSEConnectionTimeout     = 5 * time.Second
)

func (c Config) pollingInitialInterval() time.Duration {
	if c.PollingInitialInterval > 0 {
		return c.PollingInitialInterval
	}
	return DefaultPollingInitialInterval
}

func (c Config) pollingMaxBackoff() time.Duration {
	if c.PollingMaxBackoff > 0 {
		return c.PollingMaxBackoff
	}
	return DefaultPollingMaxBackoff
}

func (c Config) pollingBackoffMultiplier() float64 {
	if c.PollingBackoffMultiplier > 0 {
		return c.PollingBackoffMultiplier
	}
	return DefaultPollingBackoffMultiplier
}

func (c Config) pollingJitterFactor() float64 {
	if c.PollingJitterFactor > 0 {
		return c.PollingJitterFactor
	}
	return DefaultPollingJitterFactor
}

func (c Config) sseConnectionTimeout() time.Duration {
	if c.SSEConnectionTimeout > 0 {
		return c.SSEConnectionTimeout
	}
	return DefaultSSEConnectionTimeout
}

package delivery

import (
	"context"
	"math/rand"
	"sync"
	"time"
)

// PollingStrategy delivers change hints by polling the sync status
// endpoint with adaptive backoff: quiet accounts are polled less often,
// and the interval resets as soon as a change is seen.
type PollingStrategy struct {
	cfg         Config
	handler     Handler
	cancel      context.CancelFunc
	mu          sync.RWMutex
	started     bool
	lastVersion uint64
	haveVersion bool
	interval    time.Duration
}

// NewPollingStrategy creates a new polling strategy.
func NewPollingStrategy(cfg Config) *PollingStrategy {
	return &PollingStrategy{
		cfg:      cfg,
		interval: cfg.pollingInitialInterval(),
	}
}

// Name returns the strategy name.
func (p *PollingStrategy) Name() string {
	return "polling"
}

// Start begins polling for sync version movement.
func (p *PollingStrategy) Start(ctx context.Context, handler Handler) error {
	p.mu.Lock()
	p.handler = handler
	p.started = true
	p.mu.Unlock()

	ctx, p.cancel = context.WithCancel(ctx)
	go p.pollLoop(ctx)
	return nil
}

// Stop gracefully shuts down the strategy.
func (p *PollingStrategy) Stop() error {
	p.mu.Lock()
	p.started = false
	p.mu.Unlock()

	if p.cancel != nil {
		p.cancel()
	}
	return nil
}

func (p *PollingStrategy) pollLoop(ctx context.Context) {
	for {
		select {
		case <-ctx.Done():
			return
		default:
		}

		p.poll(ctx)

		select {
		case <-ctx.Done():
			return
		case <-time.After(p.waitDuration()):
		}
	}
}

func (p *PollingStrategy) poll(ctx context.Context) {
	if p.cfg.APIClient == nil {
		return
	}

	status, err := p.cfg.APIClient.SyncStatus(ctx)
	if err != nil {
		return
	}

	p.mu.Lock()
	changed := p.haveVersion && status.CurrentSyncVersion > p.lastVersion
	first := !p.haveVersion
	p.lastVersion = status.CurrentSyncVersion
	p.haveVersion = true

	if changed {
		p.interval = p.cfg.pollingInitialInterval()
	} else if !first {
		// No movement, back off.
		next := time.Duration(float64(p.interval) * p.cfg.pollingBackoffMultiplier())
		if next > p.cfg.pollingMaxBackoff() {
			next = p.cfg.pollingMaxBackoff()
		}
		p.interval = next
	}
	handler := p.handler
	version := status.CurrentSyncVersion
	p.mu.Unlock()

	if changed && handler != nil {
		handler(ctx, Hint{SyncVersion: version})
	}
}

func (p *PollingStrategy) waitDuration() time.Duration {
	p.mu.RLock()
	interval := p.interval
	p.mu.RUnlock()

	// Jitter prevents synchronized polling across devices.
	jitter := time.Duration(rand.Float64() * p.cfg.pollingJitterFactor() * float64(interval))
	return interval + jitter
}

// Close closes the polling strategy.
func (p *PollingStrategy) Close() error {
	return p.Stop()
}

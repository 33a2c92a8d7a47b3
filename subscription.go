package zeronotes

import (
	"strconv"
	"sync"
	"sync/atomic"
)

// subscription represents an active change subscription.
type subscription struct {
	id       string
	callback func(*SyncReport)
	active   atomic.Bool
}

// subscriptionManager handles change subscriptions with safe lifecycle
// management. It ensures callbacks are never invoked after
// unsubscription completes.
type subscriptionManager struct {
	mu     sync.RWMutex
	subs   map[string]*subscription
	nextID atomic.Uint64
}

// newSubscriptionManager creates a new subscription manager.
func newSubscriptionManager() *subscriptionManager {
	return &subscriptionManager{
		subs: make(map[string]*subscription),
	}
}

// subscribe registers a callback invoked after each sync cycle that
// applied remote changes. Returns an unsubscribe function that must be
// called to clean up.
func (m *subscriptionManager) subscribe(callback func(*SyncReport)) func() {
	id := strconv.FormatUint(m.nextID.Add(1), 10)

	sub := &subscription{
		id:       id,
		callback: callback,
	}
	sub.active.Store(true)

	m.mu.Lock()
	m.subs[id] = sub
	m.mu.Unlock()

	return func() {
		m.unsubscribe(id)
	}
}

// unsubscribe removes a subscription. Safe to call multiple times.
func (m *subscriptionManager) unsubscribe(id string) {
	m.mu.Lock()
	defer m.mu.Unlock()

	if sub, ok := m.subs[id]; ok {
		sub.active.Store(false) // Mark inactive before removing
		delete(m.subs, id)
	}
}

// notify calls all registered callbacks. Callbacks are invoked
// synchronously after releasing the read lock; the active flag is
// checked before invoking to prevent calls after unsubscribe.
func (m *subscriptionManager) notify(report *SyncReport) {
	m.mu.RLock()
	subs := make([]*subscription, 0, len(m.subs))
	for _, sub := range m.subs {
		subs = append(subs, sub)
	}
	m.mu.RUnlock()

	for _, sub := range subs {
		if sub.active.Load() {
			sub.callback(report)
		}
	}
}

// clear removes all subscriptions. Called during Client.Close().
func (m *subscriptionManager) clear() {
	m.mu.Lock()
	defer m.mu.Unlock()

	for _, sub := range m.subs {
		sub.active.Store(false)
	}
	m.subs = make(map[string]*subscription)
}

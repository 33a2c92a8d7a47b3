package zeronotes

import (
	"net/http"
	"time"

	"go.uber.org/zap"
)

// DeliveryStrategy specifies how the client learns about remote changes.
type DeliveryStrategy string

const (
	// StrategyAuto tries SSE first, falls back to polling.
	StrategyAuto DeliveryStrategy = "auto"
	// StrategySSE uses Server-Sent Events for real-time change hints.
	StrategySSE DeliveryStrategy = "sse"
	// StrategyPolling uses periodic status checks with exponential backoff.
	StrategyPolling DeliveryStrategy = "polling"
)

const (
	defaultBaseURL      = "https://api.zeronotes.io"
	defaultTimeout      = 30 * time.Second
	defaultSyncDebounce = 3 * time.Second
)

// clientConfig holds configuration for the client.
type clientConfig struct {
	baseURL          string
	httpClient       *http.Client
	dataDir          string
	deviceID         string
	logger           *zap.Logger
	deliveryStrategy DeliveryStrategy
	timeout          time.Duration
	retries          int
	autoSync         bool
	syncDebounce     time.Duration
	syncInterval     time.Duration
	fileSyncPath     string
	onSyncError      func(error)

	// Polling configuration
	pollingInitialInterval   time.Duration
	pollingMaxBackoff        time.Duration
	pollingBackoffMultiplier float64
	pollingJitterFactor      float64
	sseConnectionTimeout     time.Duration
}

// noteConfig holds configuration for note creation.
type noteConfig struct {
	folderID string
	tags     []string
	pinned   bool
}

// folderConfig holds configuration for folder creation.
type folderConfig struct {
	parentID string
	order    int
}

// Option configures the client.
type Option func(*clientConfig)

// NoteOption configures note creation.
type NoteOption func(*noteConfig)

// FolderOption configures folder creation.
type FolderOption func(*folderConfig)

// WithBaseURL sets the API base URL.
func WithBaseURL(url string) Option {
	return func(c *clientConfig) {
		c.baseURL = url
	}
}

// WithHTTPClient sets a custom HTTP client.
func WithHTTPClient(client *http.Client) Option {
	return func(c *clientConfig) {
		c.httpClient = client
	}
}

// WithDataDir sets the directory for the local encrypted store.
// Default: a "zeronotes" directory under the user config directory.
func WithDataDir(dir string) Option {
	return func(c *clientConfig) {
		c.dataDir = dir
	}
}

// WithDeviceID sets a fixed device identifier. When unset, a random ID
// is generated on first use and persisted in the local store.
func WithDeviceID(id string) Option {
	return func(c *clientConfig) {
		c.deviceID = id
	}
}

// WithLogger sets the structured logger. Default: a no-op logger.
func WithLogger(logger *zap.Logger) Option {
	return func(c *clientConfig) {
		c.logger = logger
	}
}

// WithDeliveryStrategy sets the change notification strategy.
func WithDeliveryStrategy(strategy DeliveryStrategy) Option {
	return func(c *clientConfig) {
		c.deliveryStrategy = strategy
	}
}

// WithTimeout sets the default timeout for API calls.
func WithTimeout(timeout time.Duration) Option {
	return func(c *clientConfig) {
		c.timeout = timeout
	}
}

// WithRetries sets the number of retries for API calls.
func WithRetries(count int) Option {
	return func(c *clientConfig) {
		c.retries = count
	}
}

// WithAutoSync enables background synchronization: local edits schedule
// a debounced sync cycle and remote change hints trigger one.
func WithAutoSync(enabled bool) Option {
	return func(c *clientConfig) {
		c.autoSync = enabled
	}
}

// WithSyncDebounce sets the quiet period between a local edit and the
// background sync it schedules. Bursts of edits within the period
// collapse into one cycle.
// Default: 3 seconds
func WithSyncDebounce(d time.Duration) Option {
	return func(c *clientConfig) {
		c.syncDebounce = d
	}
}

// WithSyncInterval additionally runs a full sync cycle on a fixed
// period while logged in, independent of edits and change hints.
// Requires WithAutoSync(true). Zero disables the periodic cycle.
func WithSyncInterval(d time.Duration) Option {
	return func(c *clientConfig) {
		c.syncInterval = d
	}
}

// WithFileSyncTarget syncs against a local state file instead of a
// server. Useful for single-machine setups and network shares.
func WithFileSyncTarget(path string) Option {
	return func(c *clientConfig) {
		c.fileSyncPath = path
	}
}

// WithOnSyncError sets a callback for background sync failures.
// Foreground Sync calls return their errors directly.
func WithOnSyncError(fn func(error)) Option {
	return func(c *clientConfig) {
		c.onSyncError = fn
	}
}

// WithPollingInitialInterval sets the initial polling interval.
// Default: 2 seconds
func WithPollingInitialInterval(interval time.Duration) Option {
	return func(c *clientConfig) {
		c.pollingInitialInterval = interval
	}
}

// WithPollingMaxBackoff sets the maximum polling backoff interval.
// When the account is quiet, the polling interval increases up to this maximum.
// Default: 30 seconds
func WithPollingMaxBackoff(maxBackoff time.Duration) Option {
	return func(c *clientConfig) {
		c.pollingMaxBackoff = maxBackoff
	}
}

// WithPollingBackoffMultiplier sets the backoff multiplier for polling.
// After each poll with no changes, the interval is multiplied by this factor.
// Default: 1.5
func WithPollingBackoffMultiplier(multiplier float64) Option {
	return func(c *clientConfig) {
		c.pollingBackoffMultiplier = multiplier
	}
}

// WithPollingJitterFactor sets the jitter factor for polling intervals.
// Random jitter up to this fraction of the interval is added to prevent
// synchronized polling across multiple devices.
// Default: 0.3 (30%)
func WithPollingJitterFactor(factor float64) Option {
	return func(c *clientConfig) {
		c.pollingJitterFactor = factor
	}
}

// WithSSEConnectionTimeout sets the timeout for SSE connection establishment.
// When using StrategyAuto, if the SSE connection is not established within
// this timeout, the client falls back to polling.
// Default: 5 seconds
func WithSSEConnectionTimeout(timeout time.Duration) Option {
	return func(c *clientConfig) {
		c.sseConnectionTimeout = timeout
	}
}

// InFolder places the new note in the given folder.
func InFolder(folderID string) NoteOption {
	return func(c *noteConfig) {
		c.folderID = folderID
	}
}

// WithTags sets the initial tags of the new note.
func WithTags(tags ...string) NoteOption {
	return func(c *noteConfig) {
		c.tags = append([]string(nil), tags...)
	}
}

// Pinned creates the note pinned.
func Pinned() NoteOption {
	return func(c *noteConfig) {
		c.pinned = true
	}
}

// WithParent nests the new folder under the given parent folder.
func WithParent(parentID string) FolderOption {
	return func(c *folderConfig) {
		c.parentID = parentID
	}
}

// WithOrder sets the manual sort position of the new folder.
func WithOrder(order int) FolderOption {
	return func(c *folderConfig) {
		c.order = order
	}
}

// ProtectOption configures SetFolderPassword.
type ProtectOption func(*protectConfig)

type protectConfig struct {
	inherit bool
}

// WithoutInherit protects only the folder itself. Descendant folders
// and notes stay on their current keys and are not marked protected.
func WithoutInherit() ProtectOption {
	return func(c *protectConfig) {
		c.inherit = false
	}
}

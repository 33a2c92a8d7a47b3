package zeronotes

import (
	"errors"
	"fmt"
	"time"

	"github.com/zeronotes/client-go/internal/api"
	"github.com/zeronotes/client-go/internal/syncer"
)

// Sentinel errors for errors.Is() checks
var (
	// ErrClientClosed is returned when operations are attempted on a closed client.
	ErrClientClosed = errors.New("client has been closed")

	// ErrNotLoggedIn is returned when an operation requires an authenticated session.
	ErrNotLoggedIn = errors.New("not logged in")

	// ErrInvalidPassword is returned for any wrong password, account or
	// note alike. The message is deliberately generic; it never reveals
	// whether the password was close or which check failed.
	ErrInvalidPassword = errors.New("incorrect password")

	// ErrUnauthorized is returned when the session token is invalid or expired.
	ErrUnauthorized = errors.New("invalid or expired session")

	// ErrAccountExists is returned when registering an address that already has an account.
	ErrAccountExists = errors.New("account already exists")

	// ErrAccountNotFound is returned when no account exists for the address.
	ErrAccountNotFound = errors.New("account not found")

	// ErrRateLimited is returned when the API rate limit is exceeded.
	ErrRateLimited = errors.New("rate limit exceeded")

	// ErrNoteNotFound is returned when a note is not found.
	ErrNoteNotFound = errors.New("note not found")

	// ErrFolderNotFound is returned when a folder is not found.
	ErrFolderNotFound = errors.New("folder not found")

	// ErrNoteLocked is returned when a protected entity is accessed
	// without unlocking it first, or while its lockout window is active.
	ErrNoteLocked = errors.New("note is locked")

	// ErrNotProtected is returned when a password operation targets an
	// entity that has no secondary password.
	ErrNotProtected = errors.New("entity has no password")

	// ErrAlreadyProtected is returned when setting a password on an
	// entity that already has one.
	ErrAlreadyProtected = errors.New("entity already has a password")

	// ErrSyncInProgress is returned when a sync cycle is requested while
	// another one is still running.
	ErrSyncInProgress = errors.New("sync already in progress")

	// ErrInvalidRecoveryPhrase is returned when a recovery phrase fails
	// validation or does not match the account.
	ErrInvalidRecoveryPhrase = errors.New("invalid recovery phrase")

	// ErrFolderDepthExceeded is returned when a folder move or create
	// would nest deeper than the supported maximum.
	ErrFolderDepthExceeded = errors.New("folder nesting too deep")

	// ErrFolderCycle is returned when a folder move would create a cycle.
	ErrFolderCycle = errors.New("folder move would create a cycle")

	// ErrVersionNotFound is returned when a note version is not found.
	ErrVersionNotFound = errors.New("note version not found")
)

// ZeroNotesError is implemented by all SDK errors.
type ZeroNotesError interface {
	error
	ZeroNotesError() // marker method
}

// APIError represents an HTTP error from the zeronotes API.
type APIError struct {
	StatusCode int
	Message    string
	RequestID  string // if returned by server
}

func (e *APIError) Error() string {
	if e.RequestID != "" {
		if e.Message != "" {
			return fmt.Sprintf("API error %d: %s (request_id: %s)", e.StatusCode, e.Message, e.RequestID)
		}
		return fmt.Sprintf("API error %d (request_id: %s)", e.StatusCode, e.RequestID)
	}
	if e.Message != "" {
		return fmt.Sprintf("API error %d: %s", e.StatusCode, e.Message)
	}
	return fmt.Sprintf("API error %d", e.StatusCode)
}

// ZeroNotesError implements the ZeroNotesError interface.
func (e *APIError) ZeroNotesError() {}

// Is implements errors.Is for sentinel error matching.
func (e *APIError) Is(target error) bool {
	switch e.StatusCode {
	case 401:
		return target == ErrUnauthorized
	case 404:
		return target == ErrAccountNotFound
	case 409:
		return target == ErrAccountExists
	case 429:
		return target == ErrRateLimited
	}
	return false
}

// NetworkError represents a network-level failure.
type NetworkError struct {
	Err     error
	URL     string
	Attempt int
}

func (e *NetworkError) Error() string {
	return fmt.Sprintf("network error: %v", e.Err)
}

// Unwrap returns the underlying error.
func (e *NetworkError) Unwrap() error {
	return e.Err
}

// ZeroNotesError implements the ZeroNotesError interface.
func (e *NetworkError) ZeroNotesError() {}

// LockedError is returned when unlock attempts are rejected during an
// active lockout window.
type LockedError struct {
	Until time.Time
}

func (e *LockedError) Error() string {
	return fmt.Sprintf("locked until %s after too many failed attempts", e.Until.Format(time.RFC3339))
}

// Is implements errors.Is for sentinel error matching.
func (e *LockedError) Is(target error) bool {
	return target == ErrNoteLocked
}

// ZeroNotesError implements the ZeroNotesError interface.
func (e *LockedError) ZeroNotesError() {}

// ValidationError contains multiple validation failures.
type ValidationError struct {
	Errors []string
}

func (e *ValidationError) Error() string {
	return fmt.Sprintf("validation failed: %v", e.Errors)
}

// ZeroNotesError implements the ZeroNotesError interface.
func (e *ValidationError) ZeroNotesError() {}

// wrapError converts internal API errors to public errors.
// This ensures that errors.Is() checks work with public sentinel errors.
func wrapError(err error) error {
	if err == nil {
		return nil
	}

	if errors.Is(err, syncer.ErrSyncInProgress) {
		return ErrSyncInProgress
	}

	var apiErr *api.APIError
	if errors.As(err, &apiErr) {
		return &APIError{
			StatusCode: apiErr.StatusCode,
			Message:    apiErr.Message,
			RequestID:  apiErr.RequestID,
		}
	}

	var netErr *api.NetworkError
	if errors.As(err, &netErr) {
		return &NetworkError{
			Err:     netErr.Err,
			URL:     netErr.URL,
			Attempt: netErr.Attempt,
		}
	}

	return err
}

package api

import (
	"encoding/json"
	"time"

	"github.com/zeronotes/client-go/internal/entity"
)

// AuthParams holds the public key-derivation parameters for an account.
// The salt is public by design; it gates nothing without the password.
type AuthParams struct {
	KDFSalt []byte `json:"kdfSalt"`
}

// RegisterRequest creates a new account. KeyCheck is a ciphertext the
// client can decrypt with the account KEK to detect a wrong password
// before touching any real data.
type RegisterRequest struct {
	Email            string          `json:"email"`
	Verifier         string          `json:"verifier"`
	KDFSalt          []byte          `json:"kdfSalt"`
	KeyCheck         json.RawMessage `json:"keyCheck"`
	EncryptedSecrets json.RawMessage `json:"encryptedSecrets"`
	RecoverySecrets  json.RawMessage `json:"recoverySecrets"`
	RecoveryHash     string          `json:"recoveryHash"`
	DeviceID         string          `json:"deviceId"`
	SigningPublicKey []byte          `json:"signingPublicKey"`
}

// RegisterResponse is the server reply to a successful registration.
type RegisterResponse struct {
	Token string `json:"token"`
}

// LoginRequest authenticates with the derived verifier, never the password.
type LoginRequest struct {
	Email    string `json:"email"`
	Verifier string `json:"verifier"`
	DeviceID string `json:"deviceId"`
}

// LoginResponse carries the session token and the account material the
// client needs to rebuild its key hierarchy locally.
type LoginResponse struct {
	Token            string          `json:"token"`
	KDFSalt          []byte          `json:"kdfSalt"`
	KeyCheck         json.RawMessage `json:"keyCheck"`
	EncryptedSecrets json.RawMessage `json:"encryptedSecrets"`
	RecoverySecrets  json.RawMessage `json:"recoverySecrets"`
	SigningPublicKey []byte          `json:"signingPublicKey"`
}

// UpdateKeysRequest atomically replaces the account's authentication
// material after a password change or recovery reset. Note payloads are
// not part of this request; only wrapped keys are rewrapped.
type UpdateKeysRequest struct {
	Verifier         string           `json:"verifier"`
	KDFSalt          []byte           `json:"kdfSalt"`
	KeyCheck         json.RawMessage  `json:"keyCheck"`
	EncryptedSecrets json.RawMessage  `json:"encryptedSecrets"`
	RecoverySecrets  json.RawMessage  `json:"recoverySecrets,omitempty"`
	RecoveryHash     string           `json:"recoveryHash,omitempty"`
	Notes            []*entity.Note   `json:"notes,omitempty"`
	Folders          []*entity.Folder `json:"folders,omitempty"`
}

// VerifyRecoveryRequest checks a normalized recovery phrase hash.
type VerifyRecoveryRequest struct {
	Email        string `json:"email"`
	RecoveryHash string `json:"recoveryHash"`
}

// SyncStatusResponse reports the account's current sync version.
type SyncStatusResponse struct {
	CurrentSyncVersion uint64 `json:"currentSyncVersion"`
}

// ChangeEvent is one server-sent event on the change stream. It is a
// hint that the account moved past the given version; clients react by
// running a sync cycle, never by trusting the event payload itself.
type ChangeEvent struct {
	SyncVersion uint64 `json:"syncVersion"`
}

// PullResponse returns every entity changed after the requested sync
// version, plus the account's current version counter.
type PullResponse struct {
	Notes              []*entity.Note   `json:"notes"`
	Folders            []*entity.Folder `json:"folders"`
	CurrentSyncVersion uint64           `json:"currentSyncVersion"`
}

// PushRequest uploads locally modified entities for arbitration.
type PushRequest struct {
	DeviceID string           `json:"deviceId"`
	Notes    []*entity.Note   `json:"notes,omitempty"`
	Folders  []*entity.Folder `json:"folders,omitempty"`
}

// EntityResult reports the server-assigned version for an accepted entity.
type EntityResult struct {
	ID          string `json:"id"`
	SyncVersion uint64 `json:"syncVersion"`
}

// ConflictResult reports a rejected entity together with the server
// state that won, so the client can re-evaluate without another pull.
type ConflictResult struct {
	ID              string    `json:"id"`
	ServerVersion   uint64    `json:"serverVersion"`
	ServerUpdatedAt time.Time `json:"serverUpdatedAt"`
}

// PushOutcome is the per-kind arbitration result.
type PushOutcome struct {
	Created   []EntityResult   `json:"created"`
	Updated   []EntityResult   `json:"updated"`
	Conflicts []ConflictResult `json:"conflicts"`
}

// PushResponse is the server reply to a push.
type PushResponse struct {
	Results struct {
		Notes   PushOutcome `json:"notes"`
		Folders PushOutcome `json:"folders"`
	} `json:"results"`
	CurrentSyncVersion uint64 `json:"currentSyncVersion"`
}

// Package syncer implements the pull-merge-push synchronization cycle
// over opaque encrypted entities. The engine never inspects ciphertext;
// arbitration uses only metadata (sync versions and timestamps).
package syncer

import (
	"context"
	"time"

	"github.com/zeronotes/client-go/internal/entity"
)

// ChangeSet is the server's answer to a pull: everything changed after
// the requested version, plus the account's current version counter.
type ChangeSet struct {
	Notes              []*entity.Note
	Folders            []*entity.Folder
	CurrentSyncVersion uint64
}

// Accepted reports the server-assigned version for an entity the server
// took during a push.
type Accepted struct {
	ID          string
	SyncVersion uint64
}

// Conflict reports an entity the server rejected because its stored
// version was newer than the base version the client pushed.
type Conflict struct {
	ID              string
	Kind            entity.Kind
	ServerVersion   uint64
	ServerUpdatedAt time.Time
}

// PushResult is the arbitration outcome of a push.
type PushResult struct {
	AcceptedNotes      []Accepted
	AcceptedFolders    []Accepted
	Conflicts          []Conflict
	CurrentSyncVersion uint64
}

// Transport moves change sets between the local store and a sync target.
// Implementations carry ciphertext only.
type Transport interface {
	// TestConnection verifies the target is reachable and the session valid.
	TestConnection(ctx context.Context) error
	// PullChanges returns all entities changed after sinceVersion.
	PullChanges(ctx context.Context, sinceVersion uint64) (*ChangeSet, error)
	// PushChanges uploads modified entities and returns the arbitration result.
	PushChanges(ctx context.Context, deviceID string, notes []*entity.Note, folders []*entity.Folder) (*PushResult, error)
}

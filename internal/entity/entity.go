// Package entity defines the synchronized domain model: notes, folders,
// bounded note history, and the per-entity lockout state machine. Entities
// hold only ciphertext, wrapped keys and metadata; plaintext never appears
// here.
package entity

import (
	"time"

	"github.com/zeronotes/client-go/internal/crypto"
)

// Limits enforced by the domain model.
const (
	// MaxNoteVersions bounds the per-note history; the oldest version by
	// creation time is evicted once exceeded.
	MaxNoteVersions = 50

	// MaxFolderDepth bounds folder nesting.
	MaxFolderDepth = 10
)

// Kind identifies the entity type inside sync payloads.
type Kind string

const (
	KindNote   Kind = "note"
	KindFolder Kind = "folder"
)

// Meta carries the fields shared by every synchronized entity: identity,
// sync bookkeeping, the tombstone, and the device signature over the
// encrypted payload.
type Meta struct {
	ID string `json:"id"`

	// SyncVersion strictly increases by one per server-accepted mutation
	// and never decreases. Together with UpdatedAt it is the tie-breaker
	// for merges.
	SyncVersion          uint64    `json:"syncVersion"`
	LastModifiedDeviceID string    `json:"lastModifiedDeviceId"`
	CreatedAt            time.Time `json:"createdAt"`
	UpdatedAt            time.Time `json:"updatedAt"`

	// IsDeleted marks a tombstone. Deletion travels through the same
	// version and conflict machinery as any other mutation; the protocol
	// layer never hard-deletes.
	IsDeleted bool       `json:"isDeleted"`
	DeletedAt *time.Time `json:"deletedAt,omitempty"`

	// Dirty marks a local mutation not yet accepted by the server. It is
	// local bookkeeping and is not pushed.
	Dirty bool `json:"dirty,omitempty"`

	// Signature is the detached Ed25519 signature over the entity's
	// encrypted payload, made by the device named in SignedBy.
	Signature []byte `json:"signature,omitempty"`
	SignedBy  []byte `json:"signedBy,omitempty"`
}

// Protection carries the secondary-password state shared by notes and
// folders.
type Protection struct {
	// HasPassword is true when the entity is protected by its own
	// secondary password.
	HasPassword bool `json:"hasPassword"`

	// PasswordSalt is the KDF salt for the secondary password, encrypted
	// under the account KEK. Starting a verification attempt therefore
	// requires an authenticated session, which blocks offline
	// brute-forcing from ciphertext alone.
	PasswordSalt *crypto.EncryptedBlob `json:"passwordSalt,omitempty"`

	// PasswordHash is a one-way hash over the derived password-KEK. It
	// cannot be computed without first decrypting PasswordSalt, so it
	// leaks nothing offline; with a session it gives a fast wrong-password
	// check before any unwrap work.
	PasswordHash string `json:"passwordHash,omitempty"`

	// Lockout is the durable per-entity failed-attempt state.
	Lockout Lockout `json:"lockout"`
}

// Note is a synchronized note. Title and content are sealed under the
// note's DEK; the DEK is persisted only in wrapped form.
type Note struct {
	Meta
	Protection

	EncryptedTitle   *crypto.EncryptedBlob `json:"encryptedTitle,omitempty"`
	EncryptedContent *crypto.EncryptedBlob `json:"encryptedContent,omitempty"`

	// EncryptedDEK is the note DEK wrapped under the account KEK, or
	// under the password-derived KEK when the note is protected.
	EncryptedDEK *crypto.WrappedKey `json:"encryptedDEK,omitempty"`

	// RecoveryDEK optionally wraps the same DEK under the recovery KEK in
	// parallel, so an account reset via recovery can reach protected
	// notes too. Up to three wraps of one DEK may coexist.
	RecoveryDEK *crypto.WrappedKey `json:"recoveryDEK,omitempty"`

	// PasswordInherited marks protection cascaded from the containing
	// folder rather than a password set on the note itself.
	PasswordInherited bool `json:"passwordInherited"`

	FolderID string     `json:"folderId,omitempty"`
	IsPinned bool       `json:"isPinned"`
	PinnedAt *time.Time `json:"pinnedAt,omitempty"`
	Tags     []string   `json:"tags,omitempty"`
}

// Folder is a synchronized folder. The folder name is sealed under the
// folder's own DEK.
type Folder struct {
	Meta
	Protection

	EncryptedName *crypto.EncryptedBlob `json:"encryptedName,omitempty"`
	EncryptedDEK  *crypto.WrappedKey    `json:"encryptedDEK,omitempty"`
	RecoveryDEK   *crypto.WrappedKey    `json:"recoveryDEK,omitempty"`

	ParentID string `json:"parentId,omitempty"`
	Order    int    `json:"order"`

	// PasswordInherited marks protection cascaded from an ancestor, as
	// opposed to the folder's own password. Removing a parent's password
	// clears only inherited flags.
	PasswordInherited bool `json:"passwordInherited"`
}

// NoteVersion is one entry of a note's bounded edit history.
type NoteVersion struct {
	ID               string                `json:"id"`
	NoteID           string                `json:"noteId"`
	EncryptedTitle   *crypto.EncryptedBlob `json:"encryptedTitle,omitempty"`
	EncryptedContent *crypto.EncryptedBlob `json:"encryptedContent,omitempty"`
	CreatedAt        time.Time             `json:"createdAt"`
}

// Touch records a local mutation: bumps UpdatedAt, stamps the device and
// marks the entity dirty for the next sync cycle.
func (m *Meta) Touch(deviceID string, now time.Time) {
	m.UpdatedAt = now
	m.LastModifiedDeviceID = deviceID
	m.Dirty = true
}

// MarkDeleted turns the entity into a tombstone.
func (m *Meta) MarkDeleted(deviceID string, now time.Time) {
	m.IsDeleted = true
	m.DeletedAt = &now
	m.Touch(deviceID, now)
}

// Clone returns a deep copy of the note.
func (n *Note) Clone() *Note {
	c := *n
	c.EncryptedTitle = cloneBlob(n.EncryptedTitle)
	c.EncryptedContent = cloneBlob(n.EncryptedContent)
	c.EncryptedDEK = cloneWrapped(n.EncryptedDEK)
	c.RecoveryDEK = cloneWrapped(n.RecoveryDEK)
	c.PasswordSalt = cloneBlob(n.PasswordSalt)
	c.Tags = append([]string(nil), n.Tags...)
	c.PinnedAt = cloneTime(n.PinnedAt)
	c.DeletedAt = cloneTime(n.DeletedAt)
	c.Lockout.LockedUntil = cloneTime(n.Lockout.LockedUntil)
	c.Signature = append([]byte(nil), n.Signature...)
	c.SignedBy = append([]byte(nil), n.SignedBy...)
	return &c
}

// Clone returns a deep copy of the folder.
func (f *Folder) Clone() *Folder {
	c := *f
	c.EncryptedName = cloneBlob(f.EncryptedName)
	c.EncryptedDEK = cloneWrapped(f.EncryptedDEK)
	c.RecoveryDEK = cloneWrapped(f.RecoveryDEK)
	c.PasswordSalt = cloneBlob(f.PasswordSalt)
	c.DeletedAt = cloneTime(f.DeletedAt)
	c.Lockout.LockedUntil = cloneTime(f.Lockout.LockedUntil)
	c.Signature = append([]byte(nil), f.Signature...)
	c.SignedBy = append([]byte(nil), f.SignedBy...)
	return &c
}

func cloneBlob(b *crypto.EncryptedBlob) *crypto.EncryptedBlob {
	if b == nil {
		return nil
	}
	return &crypto.EncryptedBlob{
		IV:         append([]byte(nil), b.IV...),
		Ciphertext: append([]byte(nil), b.Ciphertext...),
		Tag:        append([]byte(nil), b.Tag...),
		Algorithm:  b.Algorithm,
	}
}

func cloneWrapped(w *crypto.WrappedKey) *crypto.WrappedKey {
	if w == nil {
		return nil
	}
	return &crypto.WrappedKey{
		Key:       append([]byte(nil), w.Key...),
		Algorithm: w.Algorithm,
	}
}

func cloneTime(t *time.Time) *time.Time {
	if t == nil {
		return nil
	}
	c := *t
	return &c
}

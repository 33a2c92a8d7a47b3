// Package store defines the local per-device durable store for encrypted
// entities and provides a bbolt-backed implementation plus an in-memory
// one for tests. The store only ever sees ciphertext, wrapped keys and
// metadata.
package store

import (
	"errors"

	"github.com/zeronotes/client-go/internal/entity"
)

var (
	// ErrNotFound is returned when an entity does not exist locally.
	ErrNotFound = errors.New("store: not found")

	// ErrClosed is returned when operations are attempted on a closed store.
	ErrClosed = errors.New("store: closed")
)

// Metadata keys used by the client and sync engine.
const (
	MetaLastSyncVersion = "lastSyncVersion"
	MetaDeviceID        = "deviceId"
	MetaAccount         = "account"
)

// Store is the local durable store contract. Implementations must return
// copies: mutating a returned entity must not change stored state until
// it is put back.
type Store interface {
	PutNote(n *entity.Note) error
	GetNote(id string) (*entity.Note, error)
	DeleteNote(id string) error
	ListNotes() ([]*entity.Note, error)
	ListNotesByFolder(folderID string) ([]*entity.Note, error)
	DirtyNotes() ([]*entity.Note, error)

	PutFolder(f *entity.Folder) error
	GetFolder(id string) (*entity.Folder, error)
	DeleteFolder(id string) error
	ListFolders() ([]*entity.Folder, error)
	DirtyFolders() ([]*entity.Folder, error)

	// AddNoteVersion appends a history entry, evicting the oldest entry
	// by creation time once the note exceeds entity.MaxNoteVersions.
	AddNoteVersion(v *entity.NoteVersion) error
	ListNoteVersions(noteID string) ([]*entity.NoteVersion, error)
	DeleteNoteVersions(noteID string) error

	// GetMeta returns nil (no error) for a missing key.
	GetMeta(key string) ([]byte, error)
	PutMeta(key string, value []byte) error

	Close() error
}

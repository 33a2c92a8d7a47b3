package zeronotes

import (
	"errors"
	"time"

	"github.com/google/uuid"

	"github.com/zeronotes/client-go/internal/crypto"
	"github.com/zeronotes/client-go/internal/entity"
	"github.com/zeronotes/client-go/internal/store"
)

// Note is the decrypted view of a note. Protected notes that have not
// been unlocked appear with Locked set and empty title and content.
type Note struct {
	ID          string
	Title       string
	Content     string
	FolderID    string
	Tags        []string
	IsPinned    bool
	PinnedAt    *time.Time
	CreatedAt   time.Time
	UpdatedAt   time.Time
	HasPassword bool
	Locked      bool
	SyncVersion uint64
}

// NoteVersion is one decrypted entry of a note's edit history.
type NoteVersion struct {
	ID        string
	Title     string
	Content   string
	CreatedAt time.Time
}

// CreateNote creates a note encrypted under a fresh DEK. The DEK is
// wrapped under the account KEK and, in parallel, under the recovery
// KEK so the note stays reachable after a recovery reset.
func (c *Client) CreateNote(title, content string, opts ...NoteOption) (*Note, error) {
	s, err := c.currentSession()
	if err != nil {
		return nil, err
	}

	cfg := &noteConfig{}
	for _, opt := range opts {
		opt(cfg)
	}
	if cfg.folderID != "" {
		if _, err := c.liveFolder(cfg.folderID); err != nil {
			return nil, err
		}
	}

	dek, err := crypto.GenerateDEK()
	if err != nil {
		return nil, err
	}
	defer crypto.Zero(dek)

	now := time.Now().UTC()
	n := &entity.Note{
		Meta: entity.Meta{
			ID:        uuid.NewString(),
			CreatedAt: now,
		},
		FolderID: cfg.folderID,
		Tags:     cfg.tags,
		IsPinned: cfg.pinned,
	}
	if cfg.pinned {
		n.PinnedAt = &now
	}
	if err := c.sealNote(n, s, dek, title, content); err != nil {
		return nil, err
	}
	if n.EncryptedDEK, err = crypto.WrapDEK(dek, s.accountKEK); err != nil {
		return nil, err
	}
	if n.RecoveryDEK, err = crypto.WrapDEK(dek, s.recoveryKEK); err != nil {
		return nil, err
	}
	n.Touch(c.deviceID, now)

	if err := c.store.PutNote(n); err != nil {
		return nil, err
	}
	c.markMutated()

	return c.decryptNote(n, dek)
}

// GetNote returns the decrypted note. A protected note must be unlocked
// with UnlockNote first; until then GetNote returns ErrNoteLocked.
func (c *Client) GetNote(id string) (*Note, error) {
	s, err := c.currentSession()
	if err != nil {
		return nil, err
	}
	n, err := c.liveNote(id)
	if err != nil {
		return nil, err
	}
	dek, err := c.noteDEK(n, s)
	if err != nil {
		return nil, err
	}
	defer crypto.Zero(dek)
	return c.decryptNote(n, dek)
}

// UpdateNote replaces a note's title and content, snapshotting the
// previous ciphertext into the bounded version history.
func (c *Client) UpdateNote(id, title, content string) (*Note, error) {
	s, err := c.currentSession()
	if err != nil {
		return nil, err
	}
	n, err := c.liveNote(id)
	if err != nil {
		return nil, err
	}
	dek, err := c.noteDEK(n, s)
	if err != nil {
		return nil, err
	}
	defer crypto.Zero(dek)

	if err := c.snapshotVersion(n); err != nil {
		return nil, err
	}
	if err := c.sealNote(n, s, dek, title, content); err != nil {
		return nil, err
	}
	n.Touch(c.deviceID, time.Now().UTC())

	if err := c.store.PutNote(n); err != nil {
		return nil, err
	}
	c.markMutated()
	return c.decryptNote(n, dek)
}

// DeleteNote turns the note into a tombstone. The tombstone propagates
// through sync like any other mutation; local version history is purged
// immediately.
func (c *Client) DeleteNote(id string) error {
	if _, err := c.currentSession(); err != nil {
		return err
	}
	n, err := c.liveNote(id)
	if err != nil {
		return err
	}

	n.EncryptedTitle = nil
	n.EncryptedContent = nil
	n.MarkDeleted(c.deviceID, time.Now().UTC())

	if err := c.store.PutNote(n); err != nil {
		return err
	}
	if err := c.store.DeleteNoteVersions(id); err != nil {
		return err
	}
	c.markMutated()
	return nil
}

// ListNotes returns all live notes. Unprotected notes are decrypted;
// protected ones appear locked unless previously unlocked.
func (c *Client) ListNotes() ([]*Note, error) {
	s, err := c.currentSession()
	if err != nil {
		return nil, err
	}
	stored, err := c.store.ListNotes()
	if err != nil {
		return nil, err
	}

	notes := make([]*Note, 0, len(stored))
	for _, n := range stored {
		if n.IsDeleted {
			continue
		}
		view, err := c.noteView(n, s)
		if err != nil {
			return nil, err
		}
		notes = append(notes, view)
	}
	return notes, nil
}

// ListNotesInFolder returns the live notes of one folder.
func (c *Client) ListNotesInFolder(folderID string) ([]*Note, error) {
	s, err := c.currentSession()
	if err != nil {
		return nil, err
	}
	stored, err := c.store.ListNotesByFolder(folderID)
	if err != nil {
		return nil, err
	}

	notes := make([]*Note, 0, len(stored))
	for _, n := range stored {
		if n.IsDeleted {
			continue
		}
		view, err := c.noteView(n, s)
		if err != nil {
			return nil, err
		}
		notes = append(notes, view)
	}
	return notes, nil
}

// MoveNote moves a note into the given folder; an empty folder ID moves
// it to the root.
func (c *Client) MoveNote(id, folderID string) error {
	return c.mutateNote(id, func(n *entity.Note) error {
		if folderID != "" {
			if _, err := c.liveFolder(folderID); err != nil {
				return err
			}
		}
		n.FolderID = folderID
		return nil
	})
}

// PinNote pins a note.
func (c *Client) PinNote(id string) error {
	return c.mutateNote(id, func(n *entity.Note) error {
		if n.IsPinned {
			return nil
		}
		now := time.Now().UTC()
		n.IsPinned = true
		n.PinnedAt = &now
		return nil
	})
}

// UnpinNote unpins a note.
func (c *Client) UnpinNote(id string) error {
	return c.mutateNote(id, func(n *entity.Note) error {
		n.IsPinned = false
		n.PinnedAt = nil
		return nil
	})
}

// SetNoteTags replaces a note's tags.
func (c *Client) SetNoteTags(id string, tags ...string) error {
	return c.mutateNote(id, func(n *entity.Note) error {
		n.Tags = append([]string(nil), tags...)
		return nil
	})
}

// NoteVersions returns the decrypted edit history of a note, oldest
// first. The history is bounded; old entries are evicted.
func (c *Client) NoteVersions(id string) ([]*NoteVersion, error) {
	s, err := c.currentSession()
	if err != nil {
		return nil, err
	}
	n, err := c.liveNote(id)
	if err != nil {
		return nil, err
	}
	dek, err := c.noteDEK(n, s)
	if err != nil {
		return nil, err
	}
	defer crypto.Zero(dek)

	stored, err := c.store.ListNoteVersions(id)
	if err != nil {
		return nil, err
	}

	versions := make([]*NoteVersion, 0, len(stored))
	for _, v := range stored {
		title, content, err := openNoteBlobs(dek, v.EncryptedTitle, v.EncryptedContent)
		if err != nil {
			return nil, err
		}
		versions = append(versions, &NoteVersion{
			ID:        v.ID,
			Title:     title,
			Content:   content,
			CreatedAt: v.CreatedAt,
		})
	}
	return versions, nil
}

// RestoreNoteVersion makes a history entry the current content. The
// content being replaced is snapshotted first, so a restore is itself
// undoable.
func (c *Client) RestoreNoteVersion(noteID, versionID string) (*Note, error) {
	s, err := c.currentSession()
	if err != nil {
		return nil, err
	}
	n, err := c.liveNote(noteID)
	if err != nil {
		return nil, err
	}
	dek, err := c.noteDEK(n, s)
	if err != nil {
		return nil, err
	}
	defer crypto.Zero(dek)

	stored, err := c.store.ListNoteVersions(noteID)
	if err != nil {
		return nil, err
	}
	var target *entity.NoteVersion
	for _, v := range stored {
		if v.ID == versionID {
			target = v
			break
		}
	}
	if target == nil {
		return nil, ErrVersionNotFound
	}

	if err := c.snapshotVersion(n); err != nil {
		return nil, err
	}
	title, content, err := openNoteBlobs(dek, target.EncryptedTitle, target.EncryptedContent)
	if err != nil {
		return nil, err
	}
	if err := c.sealNote(n, s, dek, title, content); err != nil {
		return nil, err
	}
	n.Touch(c.deviceID, time.Now().UTC())

	if err := c.store.PutNote(n); err != nil {
		return nil, err
	}
	c.markMutated()
	return c.decryptNote(n, dek)
}

// liveNote loads a note that exists and is not a tombstone.
func (c *Client) liveNote(id string) (*entity.Note, error) {
	n, err := c.store.GetNote(id)
	if errors.Is(err, store.ErrNotFound) {
		return nil, ErrNoteNotFound
	}
	if err != nil {
		return nil, err
	}
	if n.IsDeleted {
		return nil, ErrNoteNotFound
	}
	return n, nil
}

// mutateNote applies a metadata mutation and persists it as a local
// change. Metadata mutations do not require the note to be unlocked.
func (c *Client) mutateNote(id string, fn func(*entity.Note) error) error {
	if _, err := c.currentSession(); err != nil {
		return err
	}
	n, err := c.liveNote(id)
	if err != nil {
		return err
	}
	if err := fn(n); err != nil {
		return err
	}
	n.Touch(c.deviceID, time.Now().UTC())
	if err := c.store.PutNote(n); err != nil {
		return err
	}
	c.markMutated()
	return nil
}

// noteDEK resolves a note's DEK: protected notes come from the unlock
// cache, everything else unwraps under the account KEK.
func (c *Client) noteDEK(n *entity.Note, s *session) ([]byte, error) {
	if n.HasPassword {
		c.mu.RLock()
		dek, ok := s.unlockedDEKs[n.ID]
		c.mu.RUnlock()
		if !ok {
			return nil, ErrNoteLocked
		}
		return append([]byte(nil), dek...), nil
	}
	if n.EncryptedDEK == nil {
		return nil, crypto.ErrInvalidPayload
	}
	return crypto.UnwrapDEK(n.EncryptedDEK, s.accountKEK)
}

// sealNote encrypts title and content under dek and signs the fresh
// ciphertext with the account signing key.
func (c *Client) sealNote(n *entity.Note, s *session, dek []byte, title, content string) error {
	titleBlob, err := crypto.Encrypt(dek, []byte(title))
	if err != nil {
		return err
	}
	contentBlob, err := crypto.Encrypt(dek, []byte(content))
	if err != nil {
		return err
	}
	n.EncryptedTitle = titleBlob
	n.EncryptedContent = contentBlob
	c.signNote(n, s)
	return nil
}

// signNote writes the detached signature over the note's ciphertext.
// The server can store it but never forge it; any payload swap upstream
// fails verification on the next decrypt.
func (c *Client) signNote(n *entity.Note, s *session) {
	if s.signer == nil {
		return
	}
	n.Signature = s.signer.Sign(noteSigningMessage(n))
	n.SignedBy = append([]byte(nil), s.signer.PublicKey...)
}

func noteSigningMessage(n *entity.Note) []byte {
	var msg []byte
	if n.EncryptedTitle != nil {
		msg = append(msg, n.EncryptedTitle.Ciphertext...)
	}
	if n.EncryptedContent != nil {
		msg = append(msg, n.EncryptedContent.Ciphertext...)
	}
	return msg
}

// decryptNote opens a note with its DEK, verifying the payload
// signature when one is present.
func (c *Client) decryptNote(n *entity.Note, dek []byte) (*Note, error) {
	if len(n.Signature) > 0 && len(n.SignedBy) > 0 {
		if err := crypto.VerifySignature(n.SignedBy, noteSigningMessage(n), n.Signature); err != nil {
			return nil, err
		}
	}
	title, content, err := openNoteBlobs(dek, n.EncryptedTitle, n.EncryptedContent)
	if err != nil {
		return nil, err
	}
	view := noteMetaView(n)
	view.Title = title
	view.Content = content
	return view, nil
}

func openNoteBlobs(dek []byte, titleBlob, contentBlob *crypto.EncryptedBlob) (string, string, error) {
	var title, content string
	if titleBlob != nil {
		plain, err := crypto.Decrypt(dek, titleBlob)
		if err != nil {
			return "", "", err
		}
		title = string(plain)
	}
	if contentBlob != nil {
		plain, err := crypto.Decrypt(dek, contentBlob)
		if err != nil {
			return "", "", err
		}
		content = string(plain)
	}
	return title, content, nil
}

// noteView decrypts an unprotected or unlocked note and renders a
// locked placeholder otherwise.
func (c *Client) noteView(n *entity.Note, s *session) (*Note, error) {
	dek, err := c.noteDEK(n, s)
	if errors.Is(err, ErrNoteLocked) {
		view := noteMetaView(n)
		view.Locked = true
		return view, nil
	}
	if err != nil {
		return nil, err
	}
	defer crypto.Zero(dek)
	return c.decryptNote(n, dek)
}

func noteMetaView(n *entity.Note) *Note {
	return &Note{
		ID:          n.ID,
		FolderID:    n.FolderID,
		Tags:        append([]string(nil), n.Tags...),
		IsPinned:    n.IsPinned,
		PinnedAt:    n.PinnedAt,
		CreatedAt:   n.CreatedAt,
		UpdatedAt:   n.UpdatedAt,
		HasPassword: n.HasPassword,
		SyncVersion: n.SyncVersion,
	}
}

// snapshotVersion appends the note's current ciphertext to its history.
func (c *Client) snapshotVersion(n *entity.Note) error {
	if n.EncryptedTitle == nil && n.EncryptedContent == nil {
		return nil
	}
	return c.store.AddNoteVersion(&entity.NoteVersion{
		ID:               uuid.NewString(),
		NoteID:           n.ID,
		EncryptedTitle:   n.EncryptedTitle,
		EncryptedContent: n.EncryptedContent,
		CreatedAt:        n.UpdatedAt,
	})
}

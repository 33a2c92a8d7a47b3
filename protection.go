package zeronotes

import (
	"time"

	"github.com/zeronotes/client-go/internal/crypto"
	"github.com/zeronotes/client-go/internal/entity"
)

// SetNotePassword protects a note with its own secondary password. The
// note gets a fresh DEK wrapped under a KEK derived from the password;
// from then on reading the note requires both the account session and
// the note password. The note stays unlocked in the current session.
func (c *Client) SetNotePassword(id, password string) error {
	s, err := c.currentSession()
	if err != nil {
		return err
	}
	if password == "" {
		return &ValidationError{Errors: []string{"note password must not be empty"}}
	}
	n, err := c.liveNote(id)
	if err != nil {
		return err
	}
	if n.HasPassword {
		return ErrAlreadyProtected
	}

	oldDEK, err := crypto.UnwrapDEK(n.EncryptedDEK, s.accountKEK)
	if err != nil {
		return err
	}

	pp, err := newPasswordProtection(password, s.accountKEK)
	if err != nil {
		crypto.Zero(oldDEK)
		return err
	}
	defer pp.zero()

	dek, err := c.rotateNoteKey(n, s, oldDEK, pp.kek)
	crypto.Zero(oldDEK)
	if err != nil {
		return err
	}
	pp.install(&n.Protection)
	n.Touch(c.deviceID, time.Now().UTC())

	if err := c.store.PutNote(n); err != nil {
		crypto.Zero(dek)
		return err
	}

	c.cacheDEK(s, n.ID, dek)
	c.markMutated()
	return nil
}

// UnlockNote verifies the note password and returns the decrypted note.
// The note stays unlocked for the session or until LockNote. Failed
// attempts count toward the durable lockout; attempts during an active
// lockout window are rejected without consuming a slot.
func (c *Client) UnlockNote(id, password string) (*Note, error) {
	s, err := c.currentSession()
	if err != nil {
		return nil, err
	}
	n, err := c.liveNote(id)
	if err != nil {
		return nil, err
	}
	if !n.HasPassword {
		return nil, ErrNotProtected
	}

	dek, err := c.verifyEntityPassword(&n.Protection, n.EncryptedDEK, password, s, func() error {
		return c.store.PutNote(n)
	})
	if err != nil {
		return nil, err
	}

	c.cacheDEK(s, n.ID, dek)
	view, err := c.decryptNote(n, dek)
	if err != nil {
		return nil, err
	}
	return view, nil
}

// LockNote drops the note's unlocked DEK from the session. The next
// read requires the note password again.
func (c *Client) LockNote(id string) {
	c.mu.Lock()
	defer c.mu.Unlock()
	if c.session == nil {
		return
	}
	if dek, ok := c.session.unlockedDEKs[id]; ok {
		crypto.Zero(dek)
		delete(c.session.unlockedDEKs, id)
	}
}

// LockFolder drops the folder's unlocked DEK from the session, along
// with every descendant unlocked through it.
func (c *Client) LockFolder(id string) {
	f, err := c.liveFolder(id)
	if err != nil {
		c.LockNote(id)
		return
	}
	hash := f.PasswordHash
	c.LockNote(id)

	folderIDs, err := c.subtreeFolderIDs(id)
	if err != nil {
		return
	}
	for _, folderID := range folderIDs {
		if folderID == id {
			continue
		}
		child, err := c.liveFolder(folderID)
		if err != nil {
			continue
		}
		if child.PasswordInherited && child.PasswordHash == hash {
			c.LockNote(child.ID)
		}
	}
	for _, folderID := range folderIDs {
		notes, err := c.store.ListNotesByFolder(folderID)
		if err != nil {
			continue
		}
		for _, n := range notes {
			if n.PasswordInherited && n.PasswordHash == hash {
				c.LockNote(n.ID)
			}
		}
	}
}

// RemoveNotePassword removes a note's secondary password after
// verifying it. The content is re-encrypted under a brand-new DEK
// wrapped only under the account KEK, so material derived from the
// removed password opens nothing that exists afterwards.
func (c *Client) RemoveNotePassword(id, password string) error {
	s, err := c.currentSession()
	if err != nil {
		return err
	}
	n, err := c.liveNote(id)
	if err != nil {
		return err
	}
	if !n.HasPassword {
		return ErrNotProtected
	}

	oldDEK, err := c.verifyEntityPassword(&n.Protection, n.EncryptedDEK, password, s, func() error {
		return c.store.PutNote(n)
	})
	if err != nil {
		return err
	}

	dek, err := c.rotateNoteKey(n, s, oldDEK, s.accountKEK)
	crypto.Zero(oldDEK)
	if err != nil {
		return err
	}
	crypto.Zero(dek)
	n.Protection = entity.Protection{}
	n.PasswordInherited = false
	n.Touch(c.deviceID, time.Now().UTC())

	if err := c.store.PutNote(n); err != nil {
		return err
	}
	c.LockNote(id)
	c.markMutated()
	return nil
}

// SetFolderPassword protects a folder and, unless WithoutInherit is
// given, cascades the protection to every unprotected descendant folder
// and note. Descendants that carry their own password keep it; cascaded
// descendants are marked inherited so removing the folder password
// releases exactly them.
func (c *Client) SetFolderPassword(id, password string, opts ...ProtectOption) error {
	s, err := c.currentSession()
	if err != nil {
		return err
	}
	cfg := protectConfig{inherit: true}
	for _, opt := range opts {
		opt(&cfg)
	}
	if password == "" {
		return &ValidationError{Errors: []string{"folder password must not be empty"}}
	}
	f, err := c.liveFolder(id)
	if err != nil {
		return err
	}
	if f.HasPassword {
		return ErrAlreadyProtected
	}

	oldDEK, err := crypto.UnwrapDEK(f.EncryptedDEK, s.accountKEK)
	if err != nil {
		return err
	}
	// One salt, one KEK, one hash for the folder and its whole cascade.
	pp, err := newPasswordProtection(password, s.accountKEK)
	if err != nil {
		crypto.Zero(oldDEK)
		return err
	}
	defer pp.zero()

	dek, err := c.rotateFolderKey(f, s, oldDEK, pp.kek)
	crypto.Zero(oldDEK)
	if err != nil {
		return err
	}
	pp.install(&f.Protection)
	now := time.Now().UTC()
	f.Touch(c.deviceID, now)
	if err := c.store.PutFolder(f); err != nil {
		crypto.Zero(dek)
		return err
	}
	c.cacheDEK(s, f.ID, dek)

	if !cfg.inherit {
		c.markMutated()
		return nil
	}

	// Cascade to every unprotected descendant.
	folderIDs, err := c.subtreeFolderIDs(id)
	if err != nil {
		return err
	}
	for _, folderID := range folderIDs {
		if folderID == id {
			continue
		}
		child, err := c.liveFolder(folderID)
		if err != nil {
			return err
		}
		if child.HasPassword {
			continue
		}
		oldChildDEK, err := crypto.UnwrapDEK(child.EncryptedDEK, s.accountKEK)
		if err != nil {
			return err
		}
		childDEK, err := c.rotateFolderKey(child, s, oldChildDEK, pp.kek)
		crypto.Zero(oldChildDEK)
		if err != nil {
			return err
		}
		pp.install(&child.Protection)
		child.PasswordInherited = true
		child.Touch(c.deviceID, now)
		if err := c.store.PutFolder(child); err != nil {
			crypto.Zero(childDEK)
			return err
		}
		c.cacheDEK(s, child.ID, childDEK)
	}
	for _, folderID := range folderIDs {
		notes, err := c.store.ListNotesByFolder(folderID)
		if err != nil {
			return err
		}
		for _, n := range notes {
			if n.IsDeleted || n.HasPassword {
				continue
			}
			oldNoteDEK, err := crypto.UnwrapDEK(n.EncryptedDEK, s.accountKEK)
			if err != nil {
				return err
			}
			noteDEK, err := c.rotateNoteKey(n, s, oldNoteDEK, pp.kek)
			crypto.Zero(oldNoteDEK)
			if err != nil {
				return err
			}
			pp.install(&n.Protection)
			n.PasswordInherited = true
			n.Touch(c.deviceID, now)
			if err := c.store.PutNote(n); err != nil {
				crypto.Zero(noteDEK)
				return err
			}
			c.cacheDEK(s, n.ID, noteDEK)
		}
	}

	c.markMutated()
	return nil
}

// UnlockFolder verifies the folder password and unlocks the folder and
// every descendant whose protection was inherited from it.
func (c *Client) UnlockFolder(id, password string) (*Folder, error) {
	s, err := c.currentSession()
	if err != nil {
		return nil, err
	}
	f, err := c.liveFolder(id)
	if err != nil {
		return nil, err
	}
	if !f.HasPassword {
		return nil, ErrNotProtected
	}

	dek, err := c.verifyEntityPassword(&f.Protection, f.EncryptedDEK, password, s, func() error {
		return c.store.PutFolder(f)
	})
	if err != nil {
		return nil, err
	}
	c.cacheDEK(s, f.ID, dek)

	// The same password KEK opens every inherited descendant.
	passKEK, err := derivePassKEK(&f.Protection, password, s)
	if err != nil {
		return nil, err
	}
	defer crypto.Zero(passKEK)

	folderIDs, err := c.subtreeFolderIDs(id)
	if err != nil {
		return nil, err
	}
	for _, folderID := range folderIDs {
		if folderID == id {
			continue
		}
		child, err := c.liveFolder(folderID)
		if err != nil {
			return nil, err
		}
		if !child.PasswordInherited || child.PasswordHash != f.PasswordHash {
			continue
		}
		childDEK, err := crypto.UnwrapDEK(child.EncryptedDEK, passKEK)
		if err != nil {
			return nil, err
		}
		c.cacheDEK(s, child.ID, childDEK)
	}
	for _, folderID := range folderIDs {
		notes, err := c.store.ListNotesByFolder(folderID)
		if err != nil {
			return nil, err
		}
		for _, n := range notes {
			if n.IsDeleted || !n.PasswordInherited || n.PasswordHash != f.PasswordHash {
				continue
			}
			noteDEK, err := crypto.UnwrapDEK(n.EncryptedDEK, passKEK)
			if err != nil {
				return nil, err
			}
			c.cacheDEK(s, n.ID, noteDEK)
		}
	}

	return c.folderView(f, s)
}

// RemoveFolderPassword removes a folder's password after verifying it,
// releasing the folder and exactly the descendants whose protection was
// inherited from it. Every released entity gets a brand-new DEK wrapped
// only under the account KEK.
func (c *Client) RemoveFolderPassword(id, password string) error {
	s, err := c.currentSession()
	if err != nil {
		return err
	}
	f, err := c.liveFolder(id)
	if err != nil {
		return err
	}
	if !f.HasPassword {
		return ErrNotProtected
	}

	hash := f.PasswordHash
	oldDEK, err := c.verifyEntityPassword(&f.Protection, f.EncryptedDEK, password, s, func() error {
		return c.store.PutFolder(f)
	})
	if err != nil {
		return err
	}
	passKEK, err := derivePassKEK(&f.Protection, password, s)
	if err != nil {
		crypto.Zero(oldDEK)
		return err
	}
	defer crypto.Zero(passKEK)

	now := time.Now().UTC()

	dek, err := c.rotateFolderKey(f, s, oldDEK, s.accountKEK)
	crypto.Zero(oldDEK)
	if err != nil {
		return err
	}
	crypto.Zero(dek)
	f.Protection = entity.Protection{}
	f.PasswordInherited = false
	f.Touch(c.deviceID, now)
	if err := c.store.PutFolder(f); err != nil {
		return err
	}
	c.LockNote(f.ID)

	folderIDs, err := c.subtreeFolderIDs(id)
	if err != nil {
		return err
	}
	for _, folderID := range folderIDs {
		if folderID == id {
			continue
		}
		child, err := c.liveFolder(folderID)
		if err != nil {
			return err
		}
		if !child.PasswordInherited || child.PasswordHash != hash {
			continue
		}
		oldChildDEK, err := crypto.UnwrapDEK(child.EncryptedDEK, passKEK)
		if err != nil {
			return err
		}
		childDEK, err := c.rotateFolderKey(child, s, oldChildDEK, s.accountKEK)
		crypto.Zero(oldChildDEK)
		if err != nil {
			return err
		}
		crypto.Zero(childDEK)
		child.Protection = entity.Protection{}
		child.PasswordInherited = false
		child.Touch(c.deviceID, now)
		if err := c.store.PutFolder(child); err != nil {
			return err
		}
		c.LockNote(child.ID)
	}
	for _, folderID := range folderIDs {
		notes, err := c.store.ListNotesByFolder(folderID)
		if err != nil {
			return err
		}
		for _, n := range notes {
			if n.IsDeleted || !n.PasswordInherited || n.PasswordHash != hash {
				continue
			}
			oldNoteDEK, err := crypto.UnwrapDEK(n.EncryptedDEK, passKEK)
			if err != nil {
				return err
			}
			noteDEK, err := c.rotateNoteKey(n, s, oldNoteDEK, s.accountKEK)
			crypto.Zero(oldNoteDEK)
			if err != nil {
				return err
			}
			crypto.Zero(noteDEK)
			n.Protection = entity.Protection{}
			n.PasswordInherited = false
			n.Touch(c.deviceID, now)
			if err := c.store.PutNote(n); err != nil {
				return err
			}
			c.LockNote(n.ID)
		}
	}

	c.markMutated()
	return nil
}

// rotateNoteKey replaces the note's DEK: current ciphertext and the
// version history are re-encrypted under a fresh DEK, which is wrapped
// under wrapKEK with the recovery wrap refreshed in parallel. Once the
// old wraps are gone, nothing that remains opens under the old key.
func (c *Client) rotateNoteKey(n *entity.Note, s *session, oldDEK, wrapKEK []byte) ([]byte, error) {
	title, content, err := openNoteBlobs(oldDEK, n.EncryptedTitle, n.EncryptedContent)
	if err != nil {
		return nil, err
	}
	dek, err := crypto.GenerateDEK()
	if err != nil {
		return nil, err
	}
	if err := c.sealNote(n, s, dek, title, content); err != nil {
		crypto.Zero(dek)
		return nil, err
	}
	if err := c.reencryptNoteHistory(n.ID, oldDEK, dek); err != nil {
		crypto.Zero(dek)
		return nil, err
	}
	wrapped, err := crypto.WrapDEK(dek, wrapKEK)
	if err != nil {
		crypto.Zero(dek)
		return nil, err
	}
	n.EncryptedDEK = wrapped
	recovery, err := crypto.WrapDEK(dek, s.recoveryKEK)
	if err != nil {
		crypto.Zero(dek)
		return nil, err
	}
	n.RecoveryDEK = recovery
	return dek, nil
}

// rotateFolderKey is the folder counterpart of rotateNoteKey.
func (c *Client) rotateFolderKey(f *entity.Folder, s *session, oldDEK, wrapKEK []byte) ([]byte, error) {
	dek, err := crypto.GenerateDEK()
	if err != nil {
		return nil, err
	}
	if f.EncryptedName != nil {
		name, err := crypto.Decrypt(oldDEK, f.EncryptedName)
		if err != nil {
			crypto.Zero(dek)
			return nil, err
		}
		blob, err := crypto.Encrypt(dek, name)
		if err != nil {
			crypto.Zero(dek)
			return nil, err
		}
		f.EncryptedName = blob
	}
	wrapped, err := crypto.WrapDEK(dek, wrapKEK)
	if err != nil {
		crypto.Zero(dek)
		return nil, err
	}
	f.EncryptedDEK = wrapped
	recovery, err := crypto.WrapDEK(dek, s.recoveryKEK)
	if err != nil {
		crypto.Zero(dek)
		return nil, err
	}
	f.RecoveryDEK = recovery
	return dek, nil
}

// reencryptNoteHistory rewrites every history entry under the new DEK,
// preserving order. History must stay openable with the note's current
// key or RestoreNoteVersion would dead-end after a protection change.
func (c *Client) reencryptNoteHistory(noteID string, oldDEK, newDEK []byte) error {
	versions, err := c.store.ListNoteVersions(noteID)
	if err != nil || len(versions) == 0 {
		return err
	}
	if err := c.store.DeleteNoteVersions(noteID); err != nil {
		return err
	}
	for _, v := range versions {
		if v.EncryptedTitle != nil {
			plain, err := crypto.Decrypt(oldDEK, v.EncryptedTitle)
			if err != nil {
				return err
			}
			if v.EncryptedTitle, err = crypto.Encrypt(newDEK, plain); err != nil {
				return err
			}
		}
		if v.EncryptedContent != nil {
			plain, err := crypto.Decrypt(oldDEK, v.EncryptedContent)
			if err != nil {
				return err
			}
			if v.EncryptedContent, err = crypto.Encrypt(newDEK, plain); err != nil {
				return err
			}
		}
		if err := c.store.AddNoteVersion(v); err != nil {
			return err
		}
	}
	return nil
}

// subtreeFolderIDs returns the folder and all its live descendants,
// parents before children.
func (c *Client) subtreeFolderIDs(id string) ([]string, error) {
	children, err := c.childFolders()
	if err != nil {
		return nil, err
	}
	ids := []string{id}
	for i := 0; i < len(ids); i++ {
		ids = append(ids, children[ids[i]]...)
	}
	return ids, nil
}

// cacheDEK stores an unlocked DEK in the session.
func (c *Client) cacheDEK(s *session, id string, dek []byte) {
	c.mu.Lock()
	defer c.mu.Unlock()
	if old, ok := s.unlockedDEKs[id]; ok {
		crypto.Zero(old)
	}
	s.unlockedDEKs[id] = dek
}

// passwordProtection is the derived material of one secondary
// password: the password KEK, the salt sealed under the account KEK,
// and the stored hash. A folder cascade applies the same material to
// every descendant, so the one folder password opens them all.
type passwordProtection struct {
	kek        []byte
	sealedSalt *crypto.EncryptedBlob
	hash       string
}

func newPasswordProtection(password string, accountKEK []byte) (*passwordProtection, error) {
	salt, err := crypto.NewSalt()
	if err != nil {
		return nil, err
	}
	defer crypto.Zero(salt)

	kek, err := crypto.DeriveKeyFromPassword(password, salt, crypto.LabelNotePasswordKEK)
	if err != nil {
		return nil, err
	}
	// Sealing the salt under the account KEK means a verification
	// attempt needs an authenticated session; there is no offline
	// oracle in the ciphertext alone.
	sealedSalt, err := crypto.Encrypt(accountKEK, salt)
	if err != nil {
		crypto.Zero(kek)
		return nil, err
	}
	return &passwordProtection{kek: kek, sealedSalt: sealedSalt, hash: hashKEK(kek)}, nil
}

func (pp *passwordProtection) zero() {
	crypto.Zero(pp.kek)
}

// install writes the protection state onto an entity whose DEK is
// already wrapped under pp.kek.
func (pp *passwordProtection) install(p *entity.Protection) {
	p.HasPassword = true
	p.PasswordSalt = pp.sealedSalt
	p.PasswordHash = pp.hash
	p.Lockout = entity.Lockout{}
}

// derivePassKEK reopens the sealed salt and derives the password KEK.
func derivePassKEK(p *entity.Protection, password string, s *session) ([]byte, error) {
	if p.PasswordSalt == nil {
		return nil, crypto.ErrInvalidPayload
	}
	salt, err := crypto.Decrypt(s.accountKEK, p.PasswordSalt)
	if err != nil {
		return nil, err
	}
	defer crypto.Zero(salt)
	return crypto.DeriveKeyFromPassword(password, salt, crypto.LabelNotePasswordKEK)
}

// verifyEntityPassword runs the full unlock check for a protected
// entity and returns its DEK. Wrong passwords consume a lockout slot
// and persist the updated lockout via persist; attempts during an
// active window are rejected immediately without consuming one. The
// error for a wrong password is always the generic ErrInvalidPassword.
func (c *Client) verifyEntityPassword(p *entity.Protection, wrapped *crypto.WrappedKey, password string, s *session, persist func() error) ([]byte, error) {
	now := time.Now().UTC()
	if p.Lockout.Locked(now) {
		return nil, &LockedError{Until: *p.Lockout.LockedUntil}
	}

	passKEK, err := derivePassKEK(p, password, s)
	if err != nil {
		return nil, err
	}
	defer crypto.Zero(passKEK)

	if hashKEK(passKEK) != p.PasswordHash {
		p.Lockout.RecordFailure(now)
		if err := persist(); err != nil {
			return nil, err
		}
		return nil, ErrInvalidPassword
	}

	dek, err := crypto.UnwrapDEK(wrapped, passKEK)
	if err != nil {
		// The hash matched but the unwrap failed; treat as corrupt
		// state rather than a wrong password.
		return nil, err
	}

	if p.Lockout.Attempts > 0 {
		p.Lockout.Reset()
		if err := persist(); err != nil {
			crypto.Zero(dek)
			return nil, err
		}
	}
	return dek, nil
}

package zeronotes

import (
	"errors"
	"time"

	"github.com/google/uuid"

	"github.com/zeronotes/client-go/internal/crypto"
	"github.com/zeronotes/client-go/internal/entity"
	"github.com/zeronotes/client-go/internal/store"
)

// Folder is the decrypted view of a folder.
type Folder struct {
	ID          string
	Name        string
	ParentID    string
	Order       int
	CreatedAt   time.Time
	UpdatedAt   time.Time
	HasPassword bool
	Inherited   bool
	Locked      bool
	SyncVersion uint64
}

// CreateFolder creates a folder with its name sealed under a fresh DEK.
func (c *Client) CreateFolder(name string, opts ...FolderOption) (*Folder, error) {
	s, err := c.currentSession()
	if err != nil {
		return nil, err
	}

	cfg := &folderConfig{}
	for _, opt := range opts {
		opt(cfg)
	}
	if cfg.parentID != "" {
		depth, err := c.folderDepth(cfg.parentID)
		if err != nil {
			return nil, err
		}
		if depth+1 >= entity.MaxFolderDepth {
			return nil, ErrFolderDepthExceeded
		}
	}

	dek, err := crypto.GenerateDEK()
	if err != nil {
		return nil, err
	}
	defer crypto.Zero(dek)

	now := time.Now().UTC()
	f := &entity.Folder{
		Meta: entity.Meta{
			ID:        uuid.NewString(),
			CreatedAt: now,
		},
		ParentID: cfg.parentID,
		Order:    cfg.order,
	}
	if f.EncryptedName, err = crypto.Encrypt(dek, []byte(name)); err != nil {
		return nil, err
	}
	if f.EncryptedDEK, err = crypto.WrapDEK(dek, s.accountKEK); err != nil {
		return nil, err
	}
	if f.RecoveryDEK, err = crypto.WrapDEK(dek, s.recoveryKEK); err != nil {
		return nil, err
	}
	f.Touch(c.deviceID, now)

	if err := c.store.PutFolder(f); err != nil {
		return nil, err
	}
	c.markMutated()
	return c.folderView(f, s)
}

// GetFolder returns the decrypted folder.
func (c *Client) GetFolder(id string) (*Folder, error) {
	s, err := c.currentSession()
	if err != nil {
		return nil, err
	}
	f, err := c.liveFolder(id)
	if err != nil {
		return nil, err
	}
	return c.folderView(f, s)
}

// ListFolders returns all live folders.
func (c *Client) ListFolders() ([]*Folder, error) {
	s, err := c.currentSession()
	if err != nil {
		return nil, err
	}
	stored, err := c.store.ListFolders()
	if err != nil {
		return nil, err
	}

	folders := make([]*Folder, 0, len(stored))
	for _, f := range stored {
		if f.IsDeleted {
			continue
		}
		view, err := c.folderView(f, s)
		if err != nil {
			return nil, err
		}
		folders = append(folders, view)
	}
	return folders, nil
}

// RenameFolder replaces the folder's name.
func (c *Client) RenameFolder(id, name string) error {
	s, err := c.currentSession()
	if err != nil {
		return err
	}
	f, err := c.liveFolder(id)
	if err != nil {
		return err
	}
	dek, err := c.folderDEK(f, s)
	if err != nil {
		return err
	}
	defer crypto.Zero(dek)

	if f.EncryptedName, err = crypto.Encrypt(dek, []byte(name)); err != nil {
		return err
	}
	f.Touch(c.deviceID, time.Now().UTC())
	if err := c.store.PutFolder(f); err != nil {
		return err
	}
	c.markMutated()
	return nil
}

// MoveFolder reparents a folder. Moves that would create a cycle or
// exceed the maximum nesting depth are rejected.
func (c *Client) MoveFolder(id, newParentID string) error {
	if _, err := c.currentSession(); err != nil {
		return err
	}
	f, err := c.liveFolder(id)
	if err != nil {
		return err
	}

	if newParentID != "" {
		if newParentID == id {
			return ErrFolderCycle
		}
		// Walking up from the new parent must not pass through the
		// folder being moved.
		ancestor := newParentID
		for ancestor != "" {
			parent, err := c.liveFolder(ancestor)
			if err != nil {
				return err
			}
			if parent.ID == id {
				return ErrFolderCycle
			}
			ancestor = parent.ParentID
		}

		parentDepth, err := c.folderDepth(newParentID)
		if err != nil {
			return err
		}
		height, err := c.subtreeHeight(id)
		if err != nil {
			return err
		}
		if parentDepth+1+height >= entity.MaxFolderDepth {
			return ErrFolderDepthExceeded
		}
	}

	f.ParentID = newParentID
	f.Touch(c.deviceID, time.Now().UTC())
	if err := c.store.PutFolder(f); err != nil {
		return err
	}
	c.markMutated()
	return nil
}

// DeleteFolder tombstones the folder and everything below it: child
// folders recursively and every note inside.
func (c *Client) DeleteFolder(id string) error {
	if _, err := c.currentSession(); err != nil {
		return err
	}
	if _, err := c.liveFolder(id); err != nil {
		return err
	}

	children, err := c.childFolders()
	if err != nil {
		return err
	}

	now := time.Now().UTC()
	queue := []string{id}
	for len(queue) > 0 {
		current := queue[0]
		queue = queue[1:]

		f, err := c.liveFolder(current)
		if err != nil {
			return err
		}
		f.EncryptedName = nil
		f.MarkDeleted(c.deviceID, now)
		if err := c.store.PutFolder(f); err != nil {
			return err
		}

		notes, err := c.store.ListNotesByFolder(current)
		if err != nil {
			return err
		}
		for _, n := range notes {
			if n.IsDeleted {
				continue
			}
			n.EncryptedTitle = nil
			n.EncryptedContent = nil
			n.MarkDeleted(c.deviceID, now)
			if err := c.store.PutNote(n); err != nil {
				return err
			}
			if err := c.store.DeleteNoteVersions(n.ID); err != nil {
				return err
			}
		}

		queue = append(queue, children[current]...)
	}

	c.markMutated()
	return nil
}

// liveFolder loads a folder that exists and is not a tombstone.
func (c *Client) liveFolder(id string) (*entity.Folder, error) {
	f, err := c.store.GetFolder(id)
	if errors.Is(err, store.ErrNotFound) {
		return nil, ErrFolderNotFound
	}
	if err != nil {
		return nil, err
	}
	if f.IsDeleted {
		return nil, ErrFolderNotFound
	}
	return f, nil
}

// folderDepth counts ancestors of a folder; a root folder has depth 0.
func (c *Client) folderDepth(id string) (int, error) {
	depth := 0
	current := id
	for current != "" {
		f, err := c.liveFolder(current)
		if err != nil {
			return 0, err
		}
		if f.ParentID == "" {
			return depth, nil
		}
		depth++
		if depth > entity.MaxFolderDepth {
			// Defensive bound against corrupted parent chains.
			return depth, ErrFolderDepthExceeded
		}
		current = f.ParentID
	}
	return depth, nil
}

// subtreeHeight returns the height of a folder's subtree; a leaf has
// height 0.
func (c *Client) subtreeHeight(id string) (int, error) {
	children, err := c.childFolders()
	if err != nil {
		return 0, err
	}

	type frame struct {
		id    string
		depth int
	}
	height := 0
	queue := []frame{{id, 0}}
	for i := 0; i < len(queue); i++ {
		cur := queue[i]
		if cur.depth > height {
			height = cur.depth
		}
		for _, child := range children[cur.id] {
			queue = append(queue, frame{child, cur.depth + 1})
		}
	}
	return height, nil
}

// childFolders builds a parent -> live child folder IDs index.
func (c *Client) childFolders() (map[string][]string, error) {
	folders, err := c.store.ListFolders()
	if err != nil {
		return nil, err
	}
	children := make(map[string][]string)
	for _, f := range folders {
		if f.IsDeleted || f.ParentID == "" {
			continue
		}
		children[f.ParentID] = append(children[f.ParentID], f.ID)
	}
	return children, nil
}

// folderDEK resolves a folder's DEK, mirroring noteDEK.
func (c *Client) folderDEK(f *entity.Folder, s *session) ([]byte, error) {
	if f.HasPassword {
		c.mu.RLock()
		dek, ok := s.unlockedDEKs[f.ID]
		c.mu.RUnlock()
		if !ok {
			return nil, ErrNoteLocked
		}
		return append([]byte(nil), dek...), nil
	}
	if f.EncryptedDEK == nil {
		return nil, crypto.ErrInvalidPayload
	}
	return crypto.UnwrapDEK(f.EncryptedDEK, s.accountKEK)
}

// folderView decrypts an accessible folder and renders a locked
// placeholder otherwise.
func (c *Client) folderView(f *entity.Folder, s *session) (*Folder, error) {
	view := &Folder{
		ID:          f.ID,
		ParentID:    f.ParentID,
		Order:       f.Order,
		CreatedAt:   f.CreatedAt,
		UpdatedAt:   f.UpdatedAt,
		HasPassword: f.HasPassword,
		Inherited:   f.PasswordInherited,
		SyncVersion: f.SyncVersion,
	}

	dek, err := c.folderDEK(f, s)
	if errors.Is(err, ErrNoteLocked) {
		view.Locked = true
		return view, nil
	}
	if err != nil {
		return nil, err
	}
	defer crypto.Zero(dek)

	if f.EncryptedName != nil {
		name, err := crypto.Decrypt(dek, f.EncryptedName)
		if err != nil {
			return nil, err
		}
		view.Name = string(name)
	}
	return view, nil
}

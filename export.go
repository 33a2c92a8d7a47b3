package zeronotes

import (
	"encoding/json"
	"fmt"
	"os"
	"time"

	"go.uber.org/zap"

	"github.com/zeronotes/client-go/internal/entity"
)

// backupFormatVersion identifies the backup file layout.
const backupFormatVersion = 1

// Backup is a portable snapshot of an account's local state. Entities
// are stored exactly as synced: ciphertext and wrapped keys only, so a
// backup file is as safe at rest as the server's copy.
type Backup struct {
	Version    int              `json:"version"`
	Email      string           `json:"email"`
	KDFSalt    []byte           `json:"kdfSalt"`
	ExportedAt time.Time        `json:"exportedAt"`
	Notes      []*entity.Note   `json:"notes"`
	Folders    []*entity.Folder `json:"folders"`
}

// ExportBackup returns a snapshot of every entity, tombstones included.
func (c *Client) ExportBackup() (*Backup, error) {
	s, err := c.currentSession()
	if err != nil {
		return nil, err
	}

	notes, err := c.store.ListNotes()
	if err != nil {
		return nil, err
	}
	folders, err := c.store.ListFolders()
	if err != nil {
		return nil, err
	}

	return &Backup{
		Version:    backupFormatVersion,
		Email:      s.email,
		KDFSalt:    append([]byte(nil), s.kdfSalt...),
		ExportedAt: time.Now().UTC(),
		Notes:      notes,
		Folders:    folders,
	}, nil
}

// ExportBackupToFile writes the backup as JSON, readable only by the
// owning user.
func (c *Client) ExportBackupToFile(path string) error {
	backup, err := c.ExportBackup()
	if err != nil {
		return err
	}
	data, err := json.MarshalIndent(backup, "", "  ")
	if err != nil {
		return err
	}
	if err := os.WriteFile(path, data, 0o600); err != nil {
		return fmt.Errorf("write backup: %w", err)
	}
	c.log.Info("backup exported",
		zap.String("path", path),
		zap.Int("notes", len(backup.Notes)),
		zap.Int("folders", len(backup.Folders)))
	return nil
}

// ImportBackup restores entities from a backup into the local store.
// Imported entities are marked dirty so the next sync cycle offers them
// to the server, where normal conflict arbitration applies. Entities
// already present locally with a newer UpdatedAt are kept.
func (c *Client) ImportBackup(backup *Backup) (int, error) {
	s, err := c.currentSession()
	if err != nil {
		return 0, err
	}
	if backup.Version != backupFormatVersion {
		return 0, &ValidationError{Errors: []string{
			fmt.Sprintf("unsupported backup version %d", backup.Version),
		}}
	}
	if backup.Email != s.email {
		return 0, &ValidationError{Errors: []string{
			"backup belongs to a different account",
		}}
	}

	imported := 0
	for _, f := range backup.Folders {
		ok, err := c.importFolder(f)
		if err != nil {
			return imported, err
		}
		if ok {
			imported++
		}
	}
	for _, n := range backup.Notes {
		ok, err := c.importNote(n)
		if err != nil {
			return imported, err
		}
		if ok {
			imported++
		}
	}

	if imported > 0 {
		c.markMutated()
	}
	c.log.Info("backup imported", zap.Int("imported", imported))
	return imported, nil
}

// ImportBackupFromFile reads a backup file and restores it.
func (c *Client) ImportBackupFromFile(path string) (int, error) {
	data, err := os.ReadFile(path)
	if err != nil {
		return 0, fmt.Errorf("read backup: %w", err)
	}
	var backup Backup
	if err := json.Unmarshal(data, &backup); err != nil {
		return 0, fmt.Errorf("parse backup: %w", err)
	}
	return c.ImportBackup(&backup)
}

func (c *Client) importNote(n *entity.Note) (bool, error) {
	existing, err := c.store.GetNote(n.ID)
	if err == nil && !existing.UpdatedAt.Before(n.UpdatedAt) {
		return false, nil
	}
	restored := n.Clone()
	restored.Dirty = true
	if err := c.store.PutNote(restored); err != nil {
		return false, err
	}
	return true, nil
}

func (c *Client) importFolder(f *entity.Folder) (bool, error) {
	existing, err := c.store.GetFolder(f.ID)
	if err == nil && !existing.UpdatedAt.Before(f.UpdatedAt) {
		return false, nil
	}
	restored := f.Clone()
	restored.Dirty = true
	if err := c.store.PutFolder(restored); err != nil {
		return false, err
	}
	return true, nil
}

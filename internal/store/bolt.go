package store

import (
	"bytes"
	"encoding/json"
	"fmt"
	"os"
	"path/filepath"
	"time"

	"go.etcd.io/bbolt"

	"github.com/zeronotes/client-go/internal/entity"
)

// Bucket names.
var (
	notesBucket    = []byte("notes")
	foldersBucket  = []byte("folders")
	versionsBucket = []byte("versions") // nested: one sub-bucket per note ID
	metaBucket     = []byte("meta")
)

// BoltStore is a bbolt-backed Store. Entities are stored as JSON values
// keyed by ID; note history lives in per-note sub-buckets keyed by
// creation time so eviction is a cursor walk.
type BoltStore struct {
	db *bbolt.DB
}

// OpenBolt opens (or creates) the store database at path with 0600
// permissions, creating parent directories as needed.
func OpenBolt(path string) (*BoltStore, error) {
	if err := os.MkdirAll(filepath.Dir(path), 0700); err != nil {
		return nil, fmt.Errorf("create store directory: %w", err)
	}

	db, err := bbolt.Open(path, 0600, &bbolt.Options{Timeout: 10 * time.Second})
	if err != nil {
		return nil, fmt.Errorf("open store: %w", err)
	}

	err = db.Update(func(tx *bbolt.Tx) error {
		for _, name := range [][]byte{notesBucket, foldersBucket, versionsBucket, metaBucket} {
			if _, err := tx.CreateBucketIfNotExists(name); err != nil {
				return err
			}
		}
		return nil
	})
	if err != nil {
		db.Close()
		return nil, fmt.Errorf("init store: %w", err)
	}

	return &BoltStore{db: db}, nil
}

// Close closes the underlying database.
func (s *BoltStore) Close() error {
	return s.db.Close()
}

func (s *BoltStore) PutNote(n *entity.Note) error {
	return s.putJSON(notesBucket, n.ID, n)
}

func (s *BoltStore) GetNote(id string) (*entity.Note, error) {
	var n entity.Note
	if err := s.getJSON(notesBucket, id, &n); err != nil {
		return nil, err
	}
	return &n, nil
}

func (s *BoltStore) DeleteNote(id string) error {
	return s.db.Update(func(tx *bbolt.Tx) error {
		return tx.Bucket(notesBucket).Delete([]byte(id))
	})
}

func (s *BoltStore) ListNotes() ([]*entity.Note, error) {
	return s.filterNotes(func(*entity.Note) bool { return true })
}

func (s *BoltStore) ListNotesByFolder(folderID string) ([]*entity.Note, error) {
	return s.filterNotes(func(n *entity.Note) bool { return n.FolderID == folderID })
}

func (s *BoltStore) DirtyNotes() ([]*entity.Note, error) {
	return s.filterNotes(func(n *entity.Note) bool { return n.Dirty })
}

func (s *BoltStore) filterNotes(keep func(*entity.Note) bool) ([]*entity.Note, error) {
	var notes []*entity.Note
	err := s.db.View(func(tx *bbolt.Tx) error {
		return tx.Bucket(notesBucket).ForEach(func(_, v []byte) error {
			var n entity.Note
			if err := json.Unmarshal(v, &n); err != nil {
				return fmt.Errorf("decode note: %w", err)
			}
			if keep(&n) {
				notes = append(notes, &n)
			}
			return nil
		})
	})
	if err != nil {
		return nil, err
	}
	return notes, nil
}

func (s *BoltStore) PutFolder(f *entity.Folder) error {
	return s.putJSON(foldersBucket, f.ID, f)
}

func (s *BoltStore) GetFolder(id string) (*entity.Folder, error) {
	var f entity.Folder
	if err := s.getJSON(foldersBucket, id, &f); err != nil {
		return nil, err
	}
	return &f, nil
}

func (s *BoltStore) DeleteFolder(id string) error {
	return s.db.Update(func(tx *bbolt.Tx) error {
		return tx.Bucket(foldersBucket).Delete([]byte(id))
	})
}

func (s *BoltStore) ListFolders() ([]*entity.Folder, error) {
	return s.filterFolders(func(*entity.Folder) bool { return true })
}

func (s *BoltStore) DirtyFolders() ([]*entity.Folder, error) {
	return s.filterFolders(func(f *entity.Folder) bool { return f.Dirty })
}

func (s *BoltStore) filterFolders(keep func(*entity.Folder) bool) ([]*entity.Folder, error) {
	var folders []*entity.Folder
	err := s.db.View(func(tx *bbolt.Tx) error {
		return tx.Bucket(foldersBucket).ForEach(func(_, v []byte) error {
			var f entity.Folder
			if err := json.Unmarshal(v, &f); err != nil {
				return fmt.Errorf("decode folder: %w", err)
			}
			if keep(&f) {
				folders = append(folders, &f)
			}
			return nil
		})
	})
	if err != nil {
		return nil, err
	}
	return folders, nil
}

// versionKey orders history entries by creation time, with the entry ID as
// a tiebreak for entries created in the same nanosecond.
func versionKey(v *entity.NoteVersion) []byte {
	return []byte(fmt.Sprintf("%020d:%s", v.CreatedAt.UnixNano(), v.ID))
}

func (s *BoltStore) AddNoteVersion(v *entity.NoteVersion) error {
	data, err := json.Marshal(v)
	if err != nil {
		return fmt.Errorf("encode version: %w", err)
	}
	return s.db.Update(func(tx *bbolt.Tx) error {
		parent := tx.Bucket(versionsBucket)
		b, err := parent.CreateBucketIfNotExists([]byte(v.NoteID))
		if err != nil {
			return err
		}
		if err := b.Put(versionKey(v), data); err != nil {
			return err
		}

		// Evict oldest entries beyond the retention cap. Keys sort by
		// creation time, so eviction walks from the front.
		excess := b.Stats().KeyN + 1 - entity.MaxNoteVersions
		if excess <= 0 {
			return nil
		}
		c := b.Cursor()
		for k, _ := c.First(); k != nil && excess > 0; k, _ = c.Next() {
			if err := b.Delete(k); err != nil {
				return err
			}
			excess--
		}
		return nil
	})
}

func (s *BoltStore) ListNoteVersions(noteID string) ([]*entity.NoteVersion, error) {
	var versions []*entity.NoteVersion
	err := s.db.View(func(tx *bbolt.Tx) error {
		b := tx.Bucket(versionsBucket).Bucket([]byte(noteID))
		if b == nil {
			return nil
		}
		return b.ForEach(func(_, v []byte) error {
			var nv entity.NoteVersion
			if err := json.Unmarshal(v, &nv); err != nil {
				return fmt.Errorf("decode version: %w", err)
			}
			versions = append(versions, &nv)
			return nil
		})
	})
	if err != nil {
		return nil, err
	}
	return versions, nil
}

func (s *BoltStore) DeleteNoteVersions(noteID string) error {
	return s.db.Update(func(tx *bbolt.Tx) error {
		parent := tx.Bucket(versionsBucket)
		if parent.Bucket([]byte(noteID)) == nil {
			return nil
		}
		return parent.DeleteBucket([]byte(noteID))
	})
}

func (s *BoltStore) GetMeta(key string) ([]byte, error) {
	var value []byte
	err := s.db.View(func(tx *bbolt.Tx) error {
		v := tx.Bucket(metaBucket).Get([]byte(key))
		if v != nil {
			value = bytes.Clone(v)
		}
		return nil
	})
	if err != nil {
		return nil, err
	}
	return value, nil
}

func (s *BoltStore) PutMeta(key string, value []byte) error {
	return s.db.Update(func(tx *bbolt.Tx) error {
		return tx.Bucket(metaBucket).Put([]byte(key), value)
	})
}

func (s *BoltStore) putJSON(bucket []byte, id string, v interface{}) error {
	if id == "" {
		return fmt.Errorf("empty entity id")
	}
	data, err := json.Marshal(v)
	if err != nil {
		return fmt.Errorf("encode entity: %w", err)
	}
	return s.db.Update(func(tx *bbolt.Tx) error {
		return tx.Bucket(bucket).Put([]byte(id), data)
	})
}

func (s *BoltStore) getJSON(bucket []byte, id string, v interface{}) error {
	return s.db.View(func(tx *bbolt.Tx) error {
		data := tx.Bucket(bucket).Get([]byte(id))
		if data == nil {
			return ErrNotFound
		}
		return json.Unmarshal(data, v)
	})
}

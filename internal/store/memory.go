package store

import (
	"bytes"
	"sort"
	"sync"

	"github.com/zeronotes/client-go/internal/entity"
)

// MemoryStore is an in-memory Store used in tests and as a scratch store.
type MemoryStore struct {
	mu       sync.RWMutex
	notes    map[string]*entity.Note
	folders  map[string]*entity.Folder
	versions map[string][]*entity.NoteVersion
	meta     map[string][]byte
	closed   bool
}

// NewMemory creates an empty in-memory store.
func NewMemory() *MemoryStore {
	return &MemoryStore{
		notes:    make(map[string]*entity.Note),
		folders:  make(map[string]*entity.Folder),
		versions: make(map[string][]*entity.NoteVersion),
		meta:     make(map[string][]byte),
	}
}

func (s *MemoryStore) PutNote(n *entity.Note) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	if s.closed {
		return ErrClosed
	}
	s.notes[n.ID] = n.Clone()
	return nil
}

func (s *MemoryStore) GetNote(id string) (*entity.Note, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()
	if s.closed {
		return nil, ErrClosed
	}
	n, ok := s.notes[id]
	if !ok {
		return nil, ErrNotFound
	}
	return n.Clone(), nil
}

func (s *MemoryStore) DeleteNote(id string) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	if s.closed {
		return ErrClosed
	}
	delete(s.notes, id)
	return nil
}

func (s *MemoryStore) ListNotes() ([]*entity.Note, error) {
	return s.filterNotes(func(*entity.Note) bool { return true })
}

func (s *MemoryStore) ListNotesByFolder(folderID string) ([]*entity.Note, error) {
	return s.filterNotes(func(n *entity.Note) bool { return n.FolderID == folderID })
}

func (s *MemoryStore) DirtyNotes() ([]*entity.Note, error) {
	return s.filterNotes(func(n *entity.Note) bool { return n.Dirty })
}

func (s *MemoryStore) filterNotes(keep func(*entity.Note) bool) ([]*entity.Note, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()
	if s.closed {
		return nil, ErrClosed
	}
	var notes []*entity.Note
	for _, n := range s.notes {
		if keep(n) {
			notes = append(notes, n.Clone())
		}
	}
	sort.Slice(notes, func(i, j int) bool { return notes[i].ID < notes[j].ID })
	return notes, nil
}

func (s *MemoryStore) PutFolder(f *entity.Folder) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	if s.closed {
		return ErrClosed
	}
	s.folders[f.ID] = f.Clone()
	return nil
}

func (s *MemoryStore) GetFolder(id string) (*entity.Folder, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()
	if s.closed {
		return nil, ErrClosed
	}
	f, ok := s.folders[id]
	if !ok {
		return nil, ErrNotFound
	}
	return f.Clone(), nil
}

func (s *MemoryStore) DeleteFolder(id string) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	if s.closed {
		return ErrClosed
	}
	delete(s.folders, id)
	return nil
}

func (s *MemoryStore) ListFolders() ([]*entity.Folder, error) {
	return s.filterFolders(func(*entity.Folder) bool { return true })
}

func (s *MemoryStore) DirtyFolders() ([]*entity.Folder, error) {
	return s.filterFolders(func(f *entity.Folder) bool { return f.Dirty })
}

func (s *MemoryStore) filterFolders(keep func(*entity.Folder) bool) ([]*entity.Folder, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()
	if s.closed {
		return nil, ErrClosed
	}
	var folders []*entity.Folder
	for _, f := range s.folders {
		if keep(f) {
			folders = append(folders, f.Clone())
		}
	}
	sort.Slice(folders, func(i, j int) bool { return folders[i].ID < folders[j].ID })
	return folders, nil
}

func (s *MemoryStore) AddNoteVersion(v *entity.NoteVersion) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	if s.closed {
		return ErrClosed
	}
	c := *v
	versions := append(s.versions[v.NoteID], &c)
	sort.Slice(versions, func(i, j int) bool {
		return versions[i].CreatedAt.Before(versions[j].CreatedAt)
	})
	if excess := len(versions) - entity.MaxNoteVersions; excess > 0 {
		versions = versions[excess:]
	}
	s.versions[v.NoteID] = versions
	return nil
}

func (s *MemoryStore) ListNoteVersions(noteID string) ([]*entity.NoteVersion, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()
	if s.closed {
		return nil, ErrClosed
	}
	versions := make([]*entity.NoteVersion, 0, len(s.versions[noteID]))
	for _, v := range s.versions[noteID] {
		c := *v
		versions = append(versions, &c)
	}
	return versions, nil
}

func (s *MemoryStore) DeleteNoteVersions(noteID string) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	if s.closed {
		return ErrClosed
	}
	delete(s.versions, noteID)
	return nil
}

func (s *MemoryStore) GetMeta(key string) ([]byte, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()
	if s.closed {
		return nil, ErrClosed
	}
	v, ok := s.meta[key]
	if !ok {
		return nil, nil
	}
	return bytes.Clone(v), nil
}

func (s *MemoryStore) PutMeta(key string, value []byte) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	if s.closed {
		return ErrClosed
	}
	s.meta[key] = bytes.Clone(value)
	return nil
}

func (s *MemoryStore) Close() error {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.closed = true
	return nil
}

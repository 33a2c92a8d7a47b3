package syncer

import (
	"github.com/zeronotes/client-go/internal/entity"
)

// serverState is the arbitration side of a sync target: a version
// counter plus the latest accepted copy of every entity. FileTransport
// persists one of these; test servers embed one in memory.
type serverState struct {
	SyncVersion uint64                    `json:"syncVersion"`
	Notes       map[string]*entity.Note   `json:"notes"`
	Folders     map[string]*entity.Folder `json:"folders"`
}

func newServerState() *serverState {
	return &serverState{
		Notes:   make(map[string]*entity.Note),
		Folders: make(map[string]*entity.Folder),
	}
}

// changesSince returns every entity whose accepted version is strictly
// greater than since.
func (s *serverState) changesSince(since uint64) *ChangeSet {
	cs := &ChangeSet{CurrentSyncVersion: s.SyncVersion}
	for _, n := range s.Notes {
		if n.SyncVersion > since {
			cs.Notes = append(cs.Notes, n.Clone())
		}
	}
	for _, f := range s.Folders {
		if f.SyncVersion > since {
			cs.Folders = append(cs.Folders, f.Clone())
		}
	}
	return cs
}

// apply arbitrates one push. An entity is accepted when the server has
// never seen it or when the pushed base version matches the stored
// version; anything else is a conflict and the stored copy stands.
func (s *serverState) apply(deviceID string, notes []*entity.Note, folders []*entity.Folder) *PushResult {
	result := &PushResult{}

	for _, n := range notes {
		stored, exists := s.Notes[n.ID]
		if exists && stored.SyncVersion > n.SyncVersion {
			result.Conflicts = append(result.Conflicts, Conflict{
				ID:              n.ID,
				Kind:            entity.KindNote,
				ServerVersion:   stored.SyncVersion,
				ServerUpdatedAt: stored.UpdatedAt,
			})
			continue
		}
		s.SyncVersion++
		accepted := n.Clone()
		accepted.SyncVersion = s.SyncVersion
		accepted.LastModifiedDeviceID = deviceID
		accepted.Dirty = false
		s.Notes[n.ID] = accepted
		result.AcceptedNotes = append(result.AcceptedNotes, Accepted{ID: n.ID, SyncVersion: s.SyncVersion})
	}

	for _, f := range folders {
		stored, exists := s.Folders[f.ID]
		if exists && stored.SyncVersion > f.SyncVersion {
			result.Conflicts = append(result.Conflicts, Conflict{
				ID:              f.ID,
				Kind:            entity.KindFolder,
				ServerVersion:   stored.SyncVersion,
				ServerUpdatedAt: stored.UpdatedAt,
			})
			continue
		}
		s.SyncVersion++
		accepted := f.Clone()
		accepted.SyncVersion = s.SyncVersion
		accepted.LastModifiedDeviceID = deviceID
		accepted.Dirty = false
		s.Folders[f.ID] = accepted
		result.AcceptedFolders = append(result.AcceptedFolders, Accepted{ID: f.ID, SyncVersion: s.SyncVersion})
	}

	result.CurrentSyncVersion = s.SyncVersion
	return result
}

package syncer

import (
	"context"

	"github.com/zeronotes/client-go/internal/api"
	"github.com/zeronotes/client-go/internal/entity"
)

// HTTPTransport syncs against a zeronotes server over the HTTP API.
type HTTPTransport struct {
	client *api.Client
}

// NewHTTPTransport wraps an authenticated API client as a sync transport.
func NewHTTPTransport(client *api.Client) *HTTPTransport {
	return &HTTPTransport{client: client}
}

func (t *HTTPTransport) TestConnection(ctx context.Context) error {
	return t.client.Health(ctx)
}

func (t *HTTPTransport) PullChanges(ctx context.Context, sinceVersion uint64) (*ChangeSet, error) {
	resp, err := t.client.PullChanges(ctx, sinceVersion)
	if err != nil {
		return nil, err
	}
	return &ChangeSet{
		Notes:              resp.Notes,
		Folders:            resp.Folders,
		CurrentSyncVersion: resp.CurrentSyncVersion,
	}, nil
}

func (t *HTTPTransport) PushChanges(ctx context.Context, deviceID string, notes []*entity.Note, folders []*entity.Folder) (*PushResult, error) {
	resp, err := t.client.PushChanges(ctx, &api.PushRequest{
		DeviceID: deviceID,
		Notes:    notes,
		Folders:  folders,
	})
	if err != nil {
		return nil, err
	}

	result := &PushResult{CurrentSyncVersion: resp.CurrentSyncVersion}
	for _, r := range resp.Results.Notes.Created {
		result.AcceptedNotes = append(result.AcceptedNotes, Accepted{ID: r.ID, SyncVersion: r.SyncVersion})
	}
	for _, r := range resp.Results.Notes.Updated {
		result.AcceptedNotes = append(result.AcceptedNotes, Accepted{ID: r.ID, SyncVersion: r.SyncVersion})
	}
	for _, r := range resp.Results.Folders.Created {
		result.AcceptedFolders = append(result.AcceptedFolders, Accepted{ID: r.ID, SyncVersion: r.SyncVersion})
	}
	for _, r := range resp.Results.Folders.Updated {
		result.AcceptedFolders = append(result.AcceptedFolders, Accepted{ID: r.ID, SyncVersion: r.SyncVersion})
	}
	for _, c := range resp.Results.Notes.Conflicts {
		result.Conflicts = append(result.Conflicts, Conflict{
			ID:              c.ID,
			Kind:            entity.KindNote,
			ServerVersion:   c.ServerVersion,
			ServerUpdatedAt: c.ServerUpdatedAt,
		})
	}
	for _, c := range resp.Results.Folders.Conflicts {
		result.Conflicts = append(result.Conflicts, Conflict{
			ID:              c.ID,
			Kind:            entity.KindFolder,
			ServerVersion:   c.ServerVersion,
			ServerUpdatedAt: c.ServerUpdatedAt,
		})
	}
	return result, nil
}

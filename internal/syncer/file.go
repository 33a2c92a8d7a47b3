package syncer

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"io/fs"
	"os"
	"path/filepath"
	"sync"

	"github.com/zeronotes/client-go/internal/entity"
)

// FileTransport syncs against a JSON state file instead of a server.
// It runs the same arbitration a server would, which makes it useful
// for single-machine setups, network-share sync and tests.
type FileTransport struct {
	mu   sync.Mutex
	path string
}

// NewFileTransport creates a transport backed by the given state file.
// The file is created on first push.
func NewFileTransport(path string) *FileTransport {
	return &FileTransport{path: path}
}

func (t *FileTransport) TestConnection(ctx context.Context) error {
	dir := filepath.Dir(t.path)
	info, err := os.Stat(dir)
	if err != nil {
		return fmt.Errorf("sync target directory: %w", err)
	}
	if !info.IsDir() {
		return fmt.Errorf("sync target %s is not a directory", dir)
	}
	return nil
}

func (t *FileTransport) PullChanges(ctx context.Context, sinceVersion uint64) (*ChangeSet, error) {
	t.mu.Lock()
	defer t.mu.Unlock()

	state, err := t.load()
	if err != nil {
		return nil, err
	}
	return state.changesSince(sinceVersion), nil
}

func (t *FileTransport) PushChanges(ctx context.Context, deviceID string, notes []*entity.Note, folders []*entity.Folder) (*PushResult, error) {
	t.mu.Lock()
	defer t.mu.Unlock()

	state, err := t.load()
	if err != nil {
		return nil, err
	}
	result := state.apply(deviceID, notes, folders)
	if err := t.save(state); err != nil {
		return nil, err
	}
	return result, nil
}

func (t *FileTransport) load() (*serverState, error) {
	data, err := os.ReadFile(t.path)
	if errors.Is(err, fs.ErrNotExist) {
		return newServerState(), nil
	}
	if err != nil {
		return nil, fmt.Errorf("read sync state: %w", err)
	}

	state := newServerState()
	if err := json.Unmarshal(data, state); err != nil {
		return nil, fmt.Errorf("parse sync state: %w", err)
	}
	return state, nil
}

// save writes the state atomically so a crash mid-write never leaves a
// truncated file behind.
func (t *FileTransport) save(state *serverState) error {
	data, err := json.Marshal(state)
	if err != nil {
		return fmt.Errorf("encode sync state: %w", err)
	}

	tmp := t.path + ".tmp"
	if err := os.WriteFile(tmp, data, 0o600); err != nil {
		return fmt.Errorf("write sync state: %w", err)
	}
	if err := os.Rename(tmp, t.path); err != nil {
		os.Remove(tmp)
		return fmt.Errorf("replace sync state: %w", err)
	}
	return nil
}

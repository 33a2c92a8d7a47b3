package syncer

import (
	"context"
	"errors"
	"sync"
	"testing"
	"time"

	"github.com/zeronotes/client-go/internal/entity"
	"github.com/zeronotes/client-go/internal/store"
)

// memTransport runs server arbitration in memory, the same logic the
// file transport persists.
type memTransport struct {
	mu      sync.Mutex
	state   *serverState
	failing bool
	block   chan struct{}
}

func newMemTransport() *memTransport {
	return &memTransport{state: newServerState()}
}

func (t *memTransport) TestConnection(ctx context.Context) error { return nil }

func (t *memTransport) PullChanges(ctx context.Context, since uint64) (*ChangeSet, error) {
	if t.block != nil {
		<-t.block
	}
	t.mu.Lock()
	defer t.mu.Unlock()
	if t.failing {
		return nil, errors.New("transport down")
	}
	return t.state.changesSince(since), nil
}

func (t *memTransport) PushChanges(ctx context.Context, deviceID string, notes []*entity.Note, folders []*entity.Folder) (*PushResult, error) {
	t.mu.Lock()
	defer t.mu.Unlock()
	if t.failing {
		return nil, errors.New("transport down")
	}
	return t.state.apply(deviceID, notes, folders), nil
}

func dirtyNote(id string, updatedAt time.Time) *entity.Note {
	return &entity.Note{
		Meta: entity.Meta{
			ID:        id,
			CreatedAt: updatedAt,
			UpdatedAt: updatedAt,
			Dirty:     true,
		},
	}
}

func newEngine(t *testing.T, transport Transport) (*Engine, *store.MemoryStore) {
	t.Helper()
	s := store.NewMemory()
	return NewEngine(s, transport, "device-a", nil), s
}

func TestEngine_PushAssignsVersions(t *testing.T) {
	transport := newMemTransport()
	eng, s := newEngine(t, transport)

	now := time.Date(2025, 6, 1, 12, 0, 0, 0, time.UTC)
	if err := s.PutNote(dirtyNote("n1", now)); err != nil {
		t.Fatal(err)
	}
	if err := s.PutNote(dirtyNote("n2", now)); err != nil {
		t.Fatal(err)
	}

	report, err := eng.Sync(context.Background())
	if err != nil {
		t.Fatal(err)
	}
	if report.Pushed != 2 || report.Conflicts != 0 {
		t.Errorf("report = %+v, want 2 pushed, 0 conflicts", report)
	}
	if report.SyncVersion != 2 {
		t.Errorf("sync version = %d, want 2", report.SyncVersion)
	}

	n1, err := s.GetNote("n1")
	if err != nil {
		t.Fatal(err)
	}
	if n1.Dirty {
		t.Error("accepted note still dirty")
	}
	if n1.SyncVersion == 0 {
		t.Error("accepted note has no assigned version")
	}

	// Versions are strictly monotonic across the account.
	n2, _ := s.GetNote("n2")
	if n2.SyncVersion == n1.SyncVersion {
		t.Errorf("versions not unique: %d and %d", n1.SyncVersion, n2.SyncVersion)
	}
}

func TestEngine_PullAppliesRemoteChanges(t *testing.T) {
	transport := newMemTransport()

	// Another device seeds the server.
	now := time.Date(2025, 6, 1, 12, 0, 0, 0, time.UTC)
	transport.state.apply("device-b", []*entity.Note{dirtyNote("n1", now)}, nil)

	eng, s := newEngine(t, transport)
	report, err := eng.Sync(context.Background())
	if err != nil {
		t.Fatal(err)
	}
	if report.Pulled != 1 {
		t.Errorf("pulled = %d, want 1", report.Pulled)
	}

	n, err := s.GetNote("n1")
	if err != nil {
		t.Fatal(err)
	}
	if n.Dirty || n.SyncVersion != 1 {
		t.Errorf("pulled note = %+v", n.Meta)
	}

	// Second cycle pulls nothing new.
	report, err = eng.Sync(context.Background())
	if err != nil {
		t.Fatal(err)
	}
	if report.Pulled != 0 {
		t.Errorf("second cycle pulled = %d, want 0", report.Pulled)
	}
}

func TestEngine_ConflictRemoteWins(t *testing.T) {
	transport := newMemTransport()
	eng, s := newEngine(t, transport)

	base := time.Date(2025, 6, 1, 12, 0, 0, 0, time.UTC)

	// Both sides edit n1; the remote edit is newer.
	transport.state.apply("device-b", []*entity.Note{dirtyNote("n1", base.Add(time.Hour))}, nil)
	if err := s.PutNote(dirtyNote("n1", base)); err != nil {
		t.Fatal(err)
	}

	report, err := eng.Sync(context.Background())
	if err != nil {
		t.Fatal(err)
	}
	if report.Conflicts != 1 {
		t.Errorf("conflicts = %d, want 1", report.Conflicts)
	}

	n, _ := s.GetNote("n1")
	if n.Dirty {
		t.Error("losing local edit should have been replaced by the remote copy")
	}
	if !n.UpdatedAt.Equal(base.Add(time.Hour)) {
		t.Errorf("updatedAt = %v, want remote timestamp", n.UpdatedAt)
	}
}

func TestEngine_ConflictLocalWins(t *testing.T) {
	transport := newMemTransport()
	eng, s := newEngine(t, transport)

	base := time.Date(2025, 6, 1, 12, 0, 0, 0, time.UTC)

	// Local edit is strictly newer than the remote one.
	transport.state.apply("device-b", []*entity.Note{dirtyNote("n1", base)}, nil)
	if err := s.PutNote(dirtyNote("n1", base.Add(time.Hour))); err != nil {
		t.Fatal(err)
	}

	report, err := eng.Sync(context.Background())
	if err != nil {
		t.Fatal(err)
	}
	if report.Conflicts != 1 {
		t.Errorf("conflicts = %d, want 1", report.Conflicts)
	}
	if report.Pushed != 1 {
		t.Errorf("pushed = %d, want 1 (winning local edit uploaded)", report.Pushed)
	}

	// The server now holds the local edit.
	remote := transport.state.Notes["n1"]
	if !remote.UpdatedAt.Equal(base.Add(time.Hour)) {
		t.Errorf("server updatedAt = %v, want local timestamp", remote.UpdatedAt)
	}
}

func TestEngine_ConflictTieKeepsLocal(t *testing.T) {
	transport := newMemTransport()
	eng, s := newEngine(t, transport)

	base := time.Date(2025, 6, 1, 12, 0, 0, 0, time.UTC)
	transport.state.apply("device-b", []*entity.Note{dirtyNote("n1", base)}, nil)
	if err := s.PutNote(dirtyNote("n1", base)); err != nil {
		t.Fatal(err)
	}

	report, err := eng.Sync(context.Background())
	if err != nil {
		t.Fatal(err)
	}
	if report.Conflicts != 1 || report.Pushed != 1 {
		t.Errorf("report = %+v, want the local copy to win the tie and be pushed", report)
	}
}

func TestEngine_TombstonePropagates(t *testing.T) {
	transport := newMemTransport()

	now := time.Date(2025, 6, 1, 12, 0, 0, 0, time.UTC)
	deleted := dirtyNote("n1", now)
	deleted.MarkDeleted("device-b", now)
	transport.state.apply("device-b", []*entity.Note{deleted}, nil)

	eng, s := newEngine(t, transport)
	if _, err := eng.Sync(context.Background()); err != nil {
		t.Fatal(err)
	}

	n, err := s.GetNote("n1")
	if err != nil {
		t.Fatal(err)
	}
	if !n.IsDeleted || n.DeletedAt == nil {
		t.Errorf("tombstone not applied: %+v", n.Meta)
	}
}

func TestEngine_TransportFailureKeepsDirty(t *testing.T) {
	transport := newMemTransport()
	transport.failing = true
	eng, s := newEngine(t, transport)

	now := time.Date(2025, 6, 1, 12, 0, 0, 0, time.UTC)
	if err := s.PutNote(dirtyNote("n1", now)); err != nil {
		t.Fatal(err)
	}

	if _, err := eng.Sync(context.Background()); err == nil {
		t.Fatal("expected transport error")
	}

	n, _ := s.GetNote("n1")
	if !n.Dirty {
		t.Error("dirty flag cleared despite failed cycle")
	}

	// The next cycle retries the same change.
	transport.failing = false
	report, err := eng.Sync(context.Background())
	if err != nil {
		t.Fatal(err)
	}
	if report.Pushed != 1 {
		t.Errorf("pushed = %d after recovery, want 1", report.Pushed)
	}
}

func TestEngine_RejectsConcurrentCycles(t *testing.T) {
	transport := newMemTransport()
	transport.block = make(chan struct{})
	eng, _ := newEngine(t, transport)

	done := make(chan error, 1)
	go func() {
		_, err := eng.Sync(context.Background())
		done <- err
	}()

	// Wait until the first cycle is inside the transport.
	deadline := time.After(2 * time.Second)
	for !eng.InProgress() {
		select {
		case <-deadline:
			t.Fatal("first cycle never started")
		default:
			time.Sleep(time.Millisecond)
		}
	}

	if _, err := eng.Sync(context.Background()); !errors.Is(err, ErrSyncInProgress) {
		t.Errorf("expected ErrSyncInProgress, got %v", err)
	}

	close(transport.block)
	if err := <-done; err != nil {
		t.Fatal(err)
	}

	// The flag clears once the cycle completes.
	if eng.InProgress() {
		t.Error("in-progress flag not cleared")
	}
}

func TestFileTransport_RoundTrip(t *testing.T) {
	path := t.TempDir() + "/sync-state.json"
	transport := NewFileTransport(path)

	if err := transport.TestConnection(context.Background()); err != nil {
		t.Fatal(err)
	}

	now := time.Date(2025, 6, 1, 12, 0, 0, 0, time.UTC)
	result, err := transport.PushChanges(context.Background(), "device-a", []*entity.Note{dirtyNote("n1", now)}, nil)
	if err != nil {
		t.Fatal(err)
	}
	if len(result.AcceptedNotes) != 1 || result.AcceptedNotes[0].SyncVersion != 1 {
		t.Errorf("unexpected push result: %+v", result)
	}

	// A fresh transport on the same file sees the pushed state.
	reopened := NewFileTransport(path)
	cs, err := reopened.PullChanges(context.Background(), 0)
	if err != nil {
		t.Fatal(err)
	}
	if len(cs.Notes) != 1 || cs.CurrentSyncVersion != 1 {
		t.Errorf("unexpected change set: %+v", cs)
	}

	// Pulling from the current version returns nothing.
	cs, err = reopened.PullChanges(context.Background(), 1)
	if err != nil {
		t.Fatal(err)
	}
	if len(cs.Notes) != 0 {
		t.Errorf("expected empty change set, got %d notes", len(cs.Notes))
	}
}

func TestFileTransport_ConflictArbitration(t *testing.T) {
	path := t.TempDir() + "/sync-state.json"
	transport := NewFileTransport(path)

	now := time.Date(2025, 6, 1, 12, 0, 0, 0, time.UTC)
	if _, err := transport.PushChanges(context.Background(), "device-a", []*entity.Note{dirtyNote("n1", now)}, nil); err != nil {
		t.Fatal(err)
	}

	// A second device pushes the same note against a stale base version.
	stale := dirtyNote("n1", now.Add(time.Minute))
	stale.SyncVersion = 0
	result, err := transport.PushChanges(context.Background(), "device-b", []*entity.Note{stale}, nil)
	if err != nil {
		t.Fatal(err)
	}
	if len(result.Conflicts) != 1 {
		t.Fatalf("conflicts = %d, want 1", len(result.Conflicts))
	}
	if result.Conflicts[0].ServerVersion != 1 {
		t.Errorf("server version = %d, want 1", result.Conflicts[0].ServerVersion)
	}
}

func TestDebouncer_CoalescesTriggers(t *testing.T) {
	var mu sync.Mutex
	fired := 0
	d := NewDebouncer(50*time.Millisecond, func() {
		mu.Lock()
		fired++
		mu.Unlock()
	})
	defer d.Stop()

	for i := 0; i < 5; i++ {
		d.Trigger()
		time.Sleep(5 * time.Millisecond)
	}

	time.Sleep(150 * time.Millisecond)
	mu.Lock()
	defer mu.Unlock()
	if fired != 1 {
		t.Errorf("fired = %d, want 1", fired)
	}
}

func TestDebouncer_StopCancelsPending(t *testing.T) {
	var mu sync.Mutex
	fired := 0
	d := NewDebouncer(30*time.Millisecond, func() {
		mu.Lock()
		fired++
		mu.Unlock()
	})

	d.Trigger()
	d.Stop()
	d.Trigger()

	time.Sleep(100 * time.Millisecond)
	mu.Lock()
	defer mu.Unlock()
	if fired != 0 {
		t.Errorf("fired = %d, want 0", fired)
	}
}

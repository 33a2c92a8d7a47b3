package zeronotes

import (
	"context"
	"testing"
	"time"
)

func TestSyncBetweenTwoDevices(t *testing.T) {
	fs := newFakeServer(t)
	ctx := context.Background()
	syncPath := sharedSyncPath(t)

	a := newTestClient(t, fs, syncPath)
	if _, err := a.Register(ctx, "multi@example.com", "password"); err != nil {
		t.Fatalf("Register() error = %v", err)
	}
	note, err := a.CreateNote("shared", "from device A")
	if err != nil {
		t.Fatalf("CreateNote() error = %v", err)
	}

	report, err := a.Sync(ctx)
	if err != nil {
		t.Fatalf("a.Sync() error = %v", err)
	}
	if report.Pushed != 1 {
		t.Errorf("a pushed %d, want 1", report.Pushed)
	}

	b := newTestClient(t, fs, syncPath)
	if err := b.Login(ctx, "multi@example.com", "password"); err != nil {
		t.Fatalf("b.Login() error = %v", err)
	}
	report, err = b.Sync(ctx)
	if err != nil {
		t.Fatalf("b.Sync() error = %v", err)
	}
	if report.Pulled != 1 {
		t.Errorf("b pulled %d, want 1", report.Pulled)
	}

	got, err := b.GetNote(note.ID)
	if err != nil {
		t.Fatalf("b.GetNote() error = %v", err)
	}
	if got.Content != "from device A" {
		t.Errorf("content on B = %q", got.Content)
	}

	// An edit flows back the other way.
	if _, err := b.UpdateNote(note.ID, "shared", "edited on B"); err != nil {
		t.Fatalf("b.UpdateNote() error = %v", err)
	}
	if _, err := b.Sync(ctx); err != nil {
		t.Fatalf("b.Sync() error = %v", err)
	}
	if _, err := a.Sync(ctx); err != nil {
		t.Fatalf("a.Sync() error = %v", err)
	}
	got, err = a.GetNote(note.ID)
	if err != nil {
		t.Fatalf("a.GetNote() error = %v", err)
	}
	if got.Content != "edited on B" {
		t.Errorf("content on A = %q", got.Content)
	}
}

func TestSyncConflictNewestEditWins(t *testing.T) {
	fs := newFakeServer(t)
	ctx := context.Background()
	syncPath := sharedSyncPath(t)

	a := newTestClient(t, fs, syncPath)
	if _, err := a.Register(ctx, "conflict@example.com", "password"); err != nil {
		t.Fatalf("Register() error = %v", err)
	}
	note, err := a.CreateNote("doc", "base")
	if err != nil {
		t.Fatalf("CreateNote() error = %v", err)
	}
	if _, err := a.Sync(ctx); err != nil {
		t.Fatalf("a.Sync() error = %v", err)
	}

	b := newTestClient(t, fs, syncPath)
	if err := b.Login(ctx, "conflict@example.com", "password"); err != nil {
		t.Fatalf("b.Login() error = %v", err)
	}
	if _, err := b.Sync(ctx); err != nil {
		t.Fatalf("b.Sync() error = %v", err)
	}

	// Both devices edit while "offline"; B edits last.
	if _, err := a.UpdateNote(note.ID, "doc", "from A"); err != nil {
		t.Fatalf("a.UpdateNote() error = %v", err)
	}
	time.Sleep(10 * time.Millisecond)
	if _, err := b.UpdateNote(note.ID, "doc", "from B"); err != nil {
		t.Fatalf("b.UpdateNote() error = %v", err)
	}

	if _, err := a.Sync(ctx); err != nil {
		t.Fatalf("a.Sync() error = %v", err)
	}
	report, err := b.Sync(ctx)
	if err != nil {
		t.Fatalf("b.Sync() error = %v", err)
	}
	if report.Conflicts == 0 {
		t.Error("concurrent edits produced no conflict report")
	}

	// B's edit is newer, so it wins everywhere.
	if _, err := a.Sync(ctx); err != nil {
		t.Fatalf("a.Sync() error = %v", err)
	}
	for name, c := range map[string]*Client{"a": a, "b": b} {
		got, err := c.GetNote(note.ID)
		if err != nil {
			t.Fatalf("%s.GetNote() error = %v", name, err)
		}
		if got.Content != "from B" {
			t.Errorf("content on %s = %q, want \"from B\"", name, got.Content)
		}
	}
}

func TestSyncPropagatesTombstones(t *testing.T) {
	fs := newFakeServer(t)
	ctx := context.Background()
	syncPath := sharedSyncPath(t)

	a := newTestClient(t, fs, syncPath)
	if _, err := a.Register(ctx, "tomb@example.com", "password"); err != nil {
		t.Fatalf("Register() error = %v", err)
	}
	note, err := a.CreateNote("doomed", "soon gone")
	if err != nil {
		t.Fatalf("CreateNote() error = %v", err)
	}
	if _, err := a.Sync(ctx); err != nil {
		t.Fatalf("a.Sync() error = %v", err)
	}

	b := newTestClient(t, fs, syncPath)
	if err := b.Login(ctx, "tomb@example.com", "password"); err != nil {
		t.Fatalf("b.Login() error = %v", err)
	}
	if _, err := b.Sync(ctx); err != nil {
		t.Fatalf("b.Sync() error = %v", err)
	}
	if _, err := b.GetNote(note.ID); err != nil {
		t.Fatalf("b.GetNote() before delete error = %v", err)
	}

	if err := a.DeleteNote(note.ID); err != nil {
		t.Fatalf("a.DeleteNote() error = %v", err)
	}
	if _, err := a.Sync(ctx); err != nil {
		t.Fatalf("a.Sync() error = %v", err)
	}
	if _, err := b.Sync(ctx); err != nil {
		t.Fatalf("b.Sync() error = %v", err)
	}

	notes, err := b.ListNotes()
	if err != nil {
		t.Fatalf("b.ListNotes() error = %v", err)
	}
	if len(notes) != 0 {
		t.Errorf("deleted note still listed on B: %d notes", len(notes))
	}
}

func TestIntervalSyncPullsRemoteEdits(t *testing.T) {
	fs := newFakeServer(t)
	ctx := context.Background()
	syncPath := sharedSyncPath(t)

	a := newTestClient(t, fs, syncPath)
	if _, err := a.Register(ctx, "interval@example.com", "password"); err != nil {
		t.Fatalf("Register() error = %v", err)
	}
	if _, err := a.CreateNote("n", "from A"); err != nil {
		t.Fatalf("a.CreateNote() error = %v", err)
	}
	if _, err := a.Sync(ctx); err != nil {
		t.Fatalf("a.Sync() error = %v", err)
	}

	b, err := New(
		WithBaseURL(fs.srv.URL),
		WithDataDir(t.TempDir()),
		WithFileSyncTarget(syncPath),
		WithAutoSync(true),
		WithSyncInterval(50*time.Millisecond),
	)
	if err != nil {
		t.Fatalf("New() error = %v", err)
	}
	t.Cleanup(func() { b.Close() })
	if err := b.Login(ctx, "interval@example.com", "password"); err != nil {
		t.Fatalf("b.Login() error = %v", err)
	}

	deadline := time.Now().Add(2 * time.Second)
	for {
		notes, err := b.ListNotes()
		if err != nil {
			t.Fatalf("b.ListNotes() error = %v", err)
		}
		if len(notes) == 1 {
			break
		}
		if time.Now().After(deadline) {
			t.Fatal("periodic sync never pulled the remote note")
		}
		time.Sleep(10 * time.Millisecond)
	}
}

func TestWatchChangesDeliversReports(t *testing.T) {
	fs := newFakeServer(t)
	ctx := context.Background()
	syncPath := sharedSyncPath(t)

	a := newTestClient(t, fs, syncPath)
	if _, err := a.Register(ctx, "watch@example.com", "password"); err != nil {
		t.Fatalf("Register() error = %v", err)
	}
	if _, err := a.CreateNote("n", "c"); err != nil {
		t.Fatalf("a.CreateNote() error = %v", err)
	}
	if _, err := a.Sync(ctx); err != nil {
		t.Fatalf("a.Sync() error = %v", err)
	}

	b := newTestClient(t, fs, syncPath)
	if err := b.Login(ctx, "watch@example.com", "password"); err != nil {
		t.Fatalf("b.Login() error = %v", err)
	}

	watchCtx, cancel := context.WithCancel(ctx)
	defer cancel()
	ch := b.WatchChanges(watchCtx)

	if _, err := b.Sync(ctx); err != nil {
		t.Fatalf("b.Sync() error = %v", err)
	}

	select {
	case report := <-ch:
		if report.Pulled != 1 {
			t.Errorf("report.Pulled = %d, want 1", report.Pulled)
		}
	case <-time.After(2 * time.Second):
		t.Fatal("no report delivered after a pulling sync")
	}
}

func TestSyncInProgressFlag(t *testing.T) {
	fs := newFakeServer(t)
	c := newTestClient(t, fs, sharedSyncPath(t))
	if _, err := c.Register(context.Background(), "flag@example.com", "password"); err != nil {
		t.Fatalf("Register() error = %v", err)
	}
	if c.SyncInProgress() {
		t.Error("SyncInProgress() = true with no cycle running")
	}
	if err := c.TestConnection(context.Background()); err != nil {
		t.Errorf("TestConnection() error = %v", err)
	}
}

package zeronotes

import (
	"errors"
	"testing"
)

func TestNoteLifecycle(t *testing.T) {
	c, _ := registerTestAccount(t, "notes@example.com")

	note, err := c.CreateNote("shopping", "milk", WithTags("errands"), Pinned())
	if err != nil {
		t.Fatalf("CreateNote() error = %v", err)
	}
	if !note.IsPinned || note.PinnedAt == nil {
		t.Error("note not created pinned")
	}
	if len(note.Tags) != 1 || note.Tags[0] != "errands" {
		t.Errorf("tags = %v", note.Tags)
	}

	updated, err := c.UpdateNote(note.ID, "shopping", "milk, eggs")
	if err != nil {
		t.Fatalf("UpdateNote() error = %v", err)
	}
	if updated.Content != "milk, eggs" {
		t.Errorf("content = %q", updated.Content)
	}
	if !updated.UpdatedAt.After(note.CreatedAt) && !updated.UpdatedAt.Equal(note.CreatedAt) {
		t.Error("UpdatedAt went backwards")
	}

	if err := c.DeleteNote(note.ID); err != nil {
		t.Fatalf("DeleteNote() error = %v", err)
	}
	if _, err := c.GetNote(note.ID); !errors.Is(err, ErrNoteNotFound) {
		t.Errorf("GetNote() after delete error = %v, want ErrNoteNotFound", err)
	}
	notes, err := c.ListNotes()
	if err != nil {
		t.Fatalf("ListNotes() error = %v", err)
	}
	if len(notes) != 0 {
		t.Errorf("ListNotes() returned %d notes after delete", len(notes))
	}
}

func TestNoteMetadataMutations(t *testing.T) {
	c, _ := registerTestAccount(t, "meta@example.com")

	folder, err := c.CreateFolder("work")
	if err != nil {
		t.Fatalf("CreateFolder() error = %v", err)
	}
	note, err := c.CreateNote("todo", "things")
	if err != nil {
		t.Fatalf("CreateNote() error = %v", err)
	}

	if err := c.MoveNote(note.ID, folder.ID); err != nil {
		t.Fatalf("MoveNote() error = %v", err)
	}
	if err := c.PinNote(note.ID); err != nil {
		t.Fatalf("PinNote() error = %v", err)
	}
	if err := c.SetNoteTags(note.ID, "a", "b"); err != nil {
		t.Fatalf("SetNoteTags() error = %v", err)
	}

	got, err := c.GetNote(note.ID)
	if err != nil {
		t.Fatalf("GetNote() error = %v", err)
	}
	if got.FolderID != folder.ID || !got.IsPinned || len(got.Tags) != 2 {
		t.Errorf("metadata = folder %q pinned %v tags %v", got.FolderID, got.IsPinned, got.Tags)
	}

	inFolder, err := c.ListNotesInFolder(folder.ID)
	if err != nil {
		t.Fatalf("ListNotesInFolder() error = %v", err)
	}
	if len(inFolder) != 1 || inFolder[0].ID != note.ID {
		t.Errorf("ListNotesInFolder() = %d notes", len(inFolder))
	}

	if err := c.UnpinNote(note.ID); err != nil {
		t.Fatalf("UnpinNote() error = %v", err)
	}
	got, _ = c.GetNote(note.ID)
	if got.IsPinned || got.PinnedAt != nil {
		t.Error("note still pinned after UnpinNote")
	}

	if err := c.MoveNote(note.ID, "missing-folder"); !errors.Is(err, ErrFolderNotFound) {
		t.Errorf("MoveNote(missing) error = %v, want ErrFolderNotFound", err)
	}
}

func TestNoteVersionHistory(t *testing.T) {
	c, _ := registerTestAccount(t, "history@example.com")

	note, err := c.CreateNote("draft", "v1")
	if err != nil {
		t.Fatalf("CreateNote() error = %v", err)
	}
	if _, err := c.UpdateNote(note.ID, "draft", "v2"); err != nil {
		t.Fatalf("UpdateNote() error = %v", err)
	}
	if _, err := c.UpdateNote(note.ID, "draft", "v3"); err != nil {
		t.Fatalf("UpdateNote() error = %v", err)
	}

	versions, err := c.NoteVersions(note.ID)
	if err != nil {
		t.Fatalf("NoteVersions() error = %v", err)
	}
	if len(versions) != 2 {
		t.Fatalf("history has %d entries, want 2", len(versions))
	}
	if versions[0].Content != "v1" || versions[1].Content != "v2" {
		t.Errorf("history = %q, %q; want v1, v2", versions[0].Content, versions[1].Content)
	}

	restored, err := c.RestoreNoteVersion(note.ID, versions[0].ID)
	if err != nil {
		t.Fatalf("RestoreNoteVersion() error = %v", err)
	}
	if restored.Content != "v1" {
		t.Errorf("restored content = %q, want v1", restored.Content)
	}

	// The restore itself is undoable: v3 was snapshotted first.
	versions, err = c.NoteVersions(note.ID)
	if err != nil {
		t.Fatalf("NoteVersions() error = %v", err)
	}
	if len(versions) != 3 || versions[2].Content != "v3" {
		t.Errorf("history after restore has %d entries, last %q", len(versions), versions[len(versions)-1].Content)
	}

	if _, err := c.RestoreNoteVersion(note.ID, "no-such-version"); !errors.Is(err, ErrVersionNotFound) {
		t.Errorf("RestoreNoteVersion(missing) error = %v, want ErrVersionNotFound", err)
	}
}

func TestDeleteNotePurgesHistory(t *testing.T) {
	c, _ := registerTestAccount(t, "purge@example.com")

	note, err := c.CreateNote("n", "v1")
	if err != nil {
		t.Fatalf("CreateNote() error = %v", err)
	}
	if _, err := c.UpdateNote(note.ID, "n", "v2"); err != nil {
		t.Fatalf("UpdateNote() error = %v", err)
	}
	if err := c.DeleteNote(note.ID); err != nil {
		t.Fatalf("DeleteNote() error = %v", err)
	}

	versions, err := c.store.ListNoteVersions(note.ID)
	if err != nil {
		t.Fatalf("ListNoteVersions() error = %v", err)
	}
	if len(versions) != 0 {
		t.Errorf("history survived deletion: %d entries", len(versions))
	}
}

package session

import (
	"testing"

	"github.com/starford/gebo/internal/storage"
)

func testManager(t *testing.T) (*Manager, storage.Provider) {
	t.Helper()
	store, err := storage.NewFS(t.TempDir())
	if err != nil {
		t.Fatalf("NewFS: %v", err)
	}
	return NewManager(store), store
}

func TestAcquire_LoadsFromStorage(t *testing.T) {
	m, store := testManager(t)
	_ = store.Write("a.org", []byte("content\n"))

	buf, err := m.Acquire("a.org")
	if err != nil {
		t.Fatalf("Acquire: %v", err)
	}
	if buf.Content() != "content\n" {
		t.Errorf("content = %q", buf.Content())
	}
	if buf.Dirty() {
		t.Error("fresh buffer should be clean")
	}
}

func TestAcquire_ReusesOpenBuffer(t *testing.T) {
	m, store := testManager(t)
	_ = store.Write("a.org", []byte("v1"))

	buf, _ := m.Acquire("a.org")
	buf.SetContent("edited")

	// The file changes on disk, but the open buffer wins.
	_ = store.Write("a.org", []byte("v2"))
	again, err := m.Acquire("a.org")
	if err != nil {
		t.Fatalf("Acquire: %v", err)
	}
	if again != buf {
		t.Error("expected the same buffer instance")
	}
	if again.Content() != "edited" {
		t.Errorf("content = %q, want the unsaved edit", again.Content())
	}
}

func TestAcquire_Missing(t *testing.T) {
	m, _ := testManager(t)
	if _, err := m.Acquire("nope.org"); err == nil {
		t.Error("expected error for missing file")
	}
}

func TestPersist_WritesThroughAndCleans(t *testing.T) {
	m, store := testManager(t)
	_ = store.Write("a.org", []byte("v1"))

	buf, _ := m.Acquire("a.org")
	buf.SetContent("v2")
	if !buf.Dirty() {
		t.Fatal("SetContent should mark the buffer dirty")
	}
	if err := m.Persist("a.org"); err != nil {
		t.Fatalf("Persist: %v", err)
	}
	if buf.Dirty() {
		t.Error("persisted buffer should be clean")
	}
	got, _ := store.Read("a.org")
	if string(got) != "v2" {
		t.Errorf("disk content = %q", got)
	}
}

func TestPersist_NoBufferIsNoop(t *testing.T) {
	m, _ := testManager(t)
	if err := m.Persist("never-opened.org"); err != nil {
		t.Errorf("Persist: %v", err)
	}
}

func TestDiscard_RefusesUnsaved(t *testing.T) {
	m, store := testManager(t)
	_ = store.Write("a.org", []byte("v1"))

	buf, _ := m.Acquire("a.org")
	buf.SetContent("unsaved")

	if m.Discard("a.org") {
		t.Fatal("Discard dropped an unsaved buffer")
	}
	again, _ := m.Acquire("a.org")
	if again.Content() != "unsaved" {
		t.Errorf("content = %q, unsaved edit lost", again.Content())
	}
}

func TestDiscard_DropsClean(t *testing.T) {
	m, store := testManager(t)
	_ = store.Write("a.org", []byte("v1"))

	_, _ = m.Acquire("a.org")
	if !m.Discard("a.org") {
		t.Fatal("Discard refused a clean buffer")
	}

	// Re-acquire reloads from disk.
	_ = store.Write("a.org", []byte("v2"))
	buf, _ := m.Acquire("a.org")
	if buf.Content() != "v2" {
		t.Errorf("content = %q, want reload from disk", buf.Content())
	}
}

func TestDiscard_UnknownPath(t *testing.T) {
	m, _ := testManager(t)
	if !m.Discard("never-opened.org") {
		t.Error("Discard of unknown path should report dropped")
	}
}

func TestEvict_DropsUnsaved(t *testing.T) {
	m, store := testManager(t)
	_ = store.Write("a.org", []byte("v1"))

	buf, _ := m.Acquire("a.org")
	buf.SetContent("unsaved")
	m.Evict("a.org")

	again, _ := m.Acquire("a.org")
	if again == buf {
		t.Error("expected a fresh buffer after Evict")
	}
	if again.Content() != "v1" {
		t.Errorf("content = %q, want disk content", again.Content())
	}
}

func TestUnsaved_SortedDirtyPaths(t *testing.T) {
	m, store := testManager(t)
	_ = store.Write("b.org", []byte("b"))
	_ = store.Write("a.org", []byte("a"))
	_ = store.Write("c.org", []byte("c"))

	for _, p := range []string{"b.org", "a.org", "c.org"} {
		buf, _ := m.Acquire(p)
		if p != "c.org" {
			buf.SetContent(p + " edited")
		}
	}

	got := m.Unsaved()
	if len(got) != 2 || got[0] != "a.org" || got[1] != "b.org" {
		t.Errorf("unsaved = %v, want [a.org b.org]", got)
	}
}

func TestSaveAll(t *testing.T) {
	m, store := testManager(t)
	_ = store.Write("a.org", []byte("a"))
	_ = store.Write("b.org", []byte("b"))

	for _, p := range []string{"a.org", "b.org"} {
		buf, _ := m.Acquire(p)
		buf.SetContent(p + " edited")
	}

	saved, err := m.SaveAll()
	if err != nil {
		t.Fatalf("SaveAll: %v", err)
	}
	if len(saved) != 2 {
		t.Errorf("saved = %v, want both paths", saved)
	}
	if got := m.Unsaved(); len(got) != 0 {
		t.Errorf("unsaved after SaveAll = %v", got)
	}
	data, _ := store.Read("a.org")
	if string(data) != "a.org edited" {
		t.Errorf("disk content = %q", data)
	}
}

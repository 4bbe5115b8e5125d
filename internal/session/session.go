// Package session manages in-memory representations of vault files.
//
// A Buffer is the editable content of one file. The merge engine edits
// buffers, persists them through storage, and drops them according to its
// save/discard policy. The one rule the manager enforces itself is the
// data-loss guard: Discard never drops unsaved content, no matter which
// policy asked for it. Evict is the explicit override for content that is
// already durable elsewhere.
package session

import (
	"fmt"
	"sort"
	"sync"

	"github.com/starford/gebo/internal/storage"
)

// Buffer is the in-memory representation of a single vault file. Buffers are
// not safe for concurrent mutation; callers serialize operations.
type Buffer struct {
	path    string
	content string
	dirty   bool
}

// Path returns the vault-relative path the buffer represents.
func (b *Buffer) Path() string { return b.path }

// Content returns the buffer's current content.
func (b *Buffer) Content() string { return b.content }

// Dirty reports whether the buffer holds changes not yet persisted.
func (b *Buffer) Dirty() bool { return b.dirty }

// SetContent replaces the buffer's content and marks it unsaved.
func (b *Buffer) SetContent(s string) {
	if s == b.content {
		return
	}
	b.content = s
	b.dirty = true
}

// Manager owns the open buffers for one process.
type Manager struct {
	store storage.Provider

	mu   sync.Mutex
	open map[string]*Buffer
}

// NewManager creates a buffer manager backed by the given storage.
func NewManager(store storage.Provider) *Manager {
	return &Manager{
		store: store,
		open:  make(map[string]*Buffer),
	}
}

// Acquire returns the open buffer for path, loading one from storage when the
// file is not yet open. A reused buffer keeps whatever unsaved state it had.
func (m *Manager) Acquire(path string) (*Buffer, error) {
	m.mu.Lock()
	defer m.mu.Unlock()

	if buf, ok := m.open[path]; ok {
		return buf, nil
	}
	data, err := m.store.Read(path)
	if err != nil {
		return nil, fmt.Errorf("session: acquire %s: %w", path, err)
	}
	buf := &Buffer{path: path, content: string(data)}
	m.open[path] = buf
	return buf, nil
}

// Persist writes the buffer for path through storage and clears its unsaved
// flag. Persisting a path with no open buffer is a no-op.
func (m *Manager) Persist(path string) error {
	m.mu.Lock()
	buf, ok := m.open[path]
	m.mu.Unlock()
	if !ok {
		return nil
	}
	if err := m.store.Write(path, []byte(buf.content)); err != nil {
		return fmt.Errorf("session: persist %s: %w", path, err)
	}
	buf.dirty = false
	return nil
}

// Discard drops the buffer for path only when it is clean, and reports
// whether it was dropped. Unsaved content survives every Discard.
func (m *Manager) Discard(path string) bool {
	m.mu.Lock()
	defer m.mu.Unlock()

	buf, ok := m.open[path]
	if !ok {
		return true
	}
	if buf.dirty {
		return false
	}
	delete(m.open, path)
	return true
}

// Evict drops the buffer for path regardless of unsaved state. Callers use it
// only when the content is already durable elsewhere, such as a merge source
// whose body has been persisted into the destination.
func (m *Manager) Evict(path string) {
	m.mu.Lock()
	defer m.mu.Unlock()
	delete(m.open, path)
}

// Unsaved returns the sorted paths of buffers holding unsaved changes.
func (m *Manager) Unsaved() []string {
	m.mu.Lock()
	defer m.mu.Unlock()

	var out []string
	for path, buf := range m.open {
		if buf.dirty {
			out = append(out, path)
		}
	}
	sort.Strings(out)
	return out
}

// SaveAll persists every unsaved buffer and returns the paths written. The
// first write failure stops the sweep.
func (m *Manager) SaveAll() ([]string, error) {
	var saved []string
	for _, path := range m.Unsaved() {
		if err := m.Persist(path); err != nil {
			return saved, err
		}
		saved = append(saved, path)
	}
	return saved, nil
}

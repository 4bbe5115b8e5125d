// Package testutil provides shared test helpers for setting up vaults and databases.
package testutil

import (
	"io"
	"log/slog"
	"os"
	"testing"

	"github.com/starford/gebo/internal/index"
	"github.com/starford/gebo/internal/merge"
	"github.com/starford/gebo/internal/noteservice"
	"github.com/starford/gebo/internal/session"
	"github.com/starford/gebo/internal/storage"
)

// TestDB creates a temporary SQLite database that is automatically cleaned up.
func TestDB(t *testing.T) *index.DB {
	t.Helper()
	dbFile, err := os.CreateTemp("", "gebo-test-*.db")
	if err != nil {
		t.Fatal(err)
	}
	dbFile.Close()
	t.Cleanup(func() { os.Remove(dbFile.Name()) })

	db, err := index.Open(dbFile.Name())
	if err != nil {
		t.Fatal(err)
	}
	t.Cleanup(func() { db.Close() })
	return db
}

// TestVault creates a temporary vault directory with a storage.Provider.
func TestVault(t *testing.T) (string, storage.Provider) {
	t.Helper()
	vaultDir := t.TempDir()
	store, err := storage.NewFS(vaultDir)
	if err != nil {
		t.Fatal(err)
	}
	return vaultDir, store
}

// TestService assembles the full consolidation stack on a temporary vault:
// storage, index, session manager, merge engine with the given options, and
// the note service on top. Logs are discarded.
func TestService(t *testing.T, opts merge.Options) (*noteservice.Service, storage.Provider, string) {
	t.Helper()
	vaultDir, store := TestVault(t)
	db := TestDB(t)
	sessions := session.NewManager(store)
	logger := slog.New(slog.NewTextHandler(io.Discard, nil))
	merger := merge.NewMerger(store, sessions, db, opts, logger)
	return noteservice.NewService(store, db, sessions, merger), store, vaultDir
}

// Package testutil provides shared test helpers for setting up project stores.
package testutil

import (
	"path/filepath"
	"testing"

	"github.com/starford/projectsync/internal/projectlist"
	"github.com/starford/projectsync/internal/storage"
)

// SyncScheduler runs deferred work immediately on the caller's goroutine.
var SyncScheduler = projectlist.SchedulerFunc(func(fn func()) { fn() })

// TestStore creates a temporary projects directory with an FS provider.
func TestStore(t *testing.T) (string, *storage.FS) {
	t.Helper()
	dir := t.TempDir()
	store, err := storage.NewFS(dir)
	if err != nil {
		t.Fatal(err)
	}
	return dir, store
}

// TestDB creates a temporary SQLite provider that is closed on cleanup.
func TestDB(t *testing.T) *storage.SQLite {
	t.Helper()
	db, err := storage.OpenSQLite(filepath.Join(t.TempDir(), "projects.db"))
	if err != nil {
		t.Fatal(err)
	}
	t.Cleanup(func() { db.Close() })
	return db
}

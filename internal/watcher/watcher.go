// Package watcher turns changes to the project documents directory into
// project notifications.
package watcher

import (
	"context"
	"log/slog"
	"os"
	"path/filepath"
	"time"

	"github.com/fsnotify/fsnotify"

	"github.com/starford/projectsync/internal/checksum"
	"github.com/starford/projectsync/internal/events"
	"github.com/starford/projectsync/internal/projectfile"
	"github.com/starford/projectsync/internal/storage"
)

// Dispatcher publishes notifications.
type Dispatcher interface {
	Dispatch(e events.Event)
}

// reconcileDelay debounces rename reconciliation.
const reconcileDelay = 200 * time.Millisecond

// Watch starts an fsnotify watcher on dir and dispatches
// project-object-changed and project-object-deleted notifications until ctx
// is cancelled. Documents whose content is unchanged are not reported again.
func Watch(ctx context.Context, dir string, bus Dispatcher, logger *slog.Logger) error {
	w, err := fsnotify.NewWatcher()
	if err != nil {
		return err
	}
	defer w.Close()

	if err := w.Add(dir); err != nil {
		return err
	}

	known := snapshot(dir)
	logger.Info("watcher: started", slog.String("dir", dir), slog.Int("documents", len(known)))

	var reconcileTimer *time.Timer
	var reconcileCh <-chan time.Time

	scheduleReconcile := func() {
		if reconcileTimer == nil {
			reconcileTimer = time.NewTimer(reconcileDelay)
			reconcileCh = reconcileTimer.C
		} else {
			reconcileTimer.Reset(reconcileDelay)
		}
	}

	for {
		select {
		case <-ctx.Done():
			if reconcileTimer != nil {
				reconcileTimer.Stop()
			}
			logger.Info("watcher: stopped")
			return nil

		case <-reconcileCh:
			reconcile(dir, known, bus, logger)

		case ev, ok := <-w.Events:
			if !ok {
				return nil
			}
			id, isDoc := storage.IDFromPath(ev.Name)
			if !isDoc {
				continue
			}

			switch {
			case ev.Op&(fsnotify.Create|fsnotify.Write) != 0:
				changed(ev.Name, id, known, bus, logger)

			case ev.Op&fsnotify.Remove != 0:
				if _, ok := known[id]; ok {
					delete(known, id)
					logger.Debug("watcher: deleted", slog.String("id", id))
					bus.Dispatch(events.Event{Type: events.ProjectObjectDeleted, Detail: events.ProjectDeleted{ID: id}})
				}

			case ev.Op&fsnotify.Rename != 0:
				// Rename fires on the old path only; the new path arrives as
				// a Create if it stays inside the directory.
				if _, ok := known[id]; ok {
					delete(known, id)
					bus.Dispatch(events.Event{Type: events.ProjectObjectDeleted, Detail: events.ProjectDeleted{ID: id}})
				}
				scheduleReconcile()
			}

		case watchErr, ok := <-w.Errors:
			if !ok {
				return nil
			}
			logger.Error("watcher: error", slog.String("error", watchErr.Error()))
		}
	}
}

// changed reads the document at path and dispatches it when its content
// differs from the last one seen.
func changed(path, id string, known map[string]string, bus Dispatcher, logger *slog.Logger) {
	data, err := os.ReadFile(path)
	if err != nil {
		logger.Warn("watcher: read failed", slog.String("path", path), slog.String("error", err.Error()))
		return
	}
	sum := checksum.Sum(data)
	if known[id] == sum {
		return
	}
	p, err := projectfile.Parse(data)
	if err != nil {
		// Editors often write in several steps; a later event will carry the
		// complete document.
		logger.Debug("watcher: parse failed", slog.String("path", path), slog.String("error", err.Error()))
		return
	}
	if p.ID == "" {
		p.ID = id
	}
	known[id] = sum
	logger.Debug("watcher: changed", slog.String("id", p.ID))
	bus.Dispatch(events.Event{Type: events.ProjectObjectChanged, Detail: events.ProjectChanged{Project: p}})
}

// snapshot returns the checksum of every document in dir keyed by ID.
func snapshot(dir string) map[string]string {
	out := make(map[string]string)
	entries, err := os.ReadDir(dir)
	if err != nil {
		return out
	}
	for _, e := range entries {
		if e.IsDir() {
			continue
		}
		id, ok := storage.IDFromPath(e.Name())
		if !ok {
			continue
		}
		data, err := os.ReadFile(filepath.Join(dir, e.Name()))
		if err != nil {
			continue
		}
		out[id] = checksum.Sum(data)
	}
	return out
}

// reconcile compares the directory with what has been reported and
// dispatches the differences.
func reconcile(dir string, known map[string]string, bus Dispatcher, logger *slog.Logger) {
	disk := snapshot(dir)
	for id := range known {
		if _, ok := disk[id]; !ok {
			delete(known, id)
			logger.Debug("reconcile: removed stale", slog.String("id", id))
			bus.Dispatch(events.Event{Type: events.ProjectObjectDeleted, Detail: events.ProjectDeleted{ID: id}})
		}
	}
	for id, sum := range disk {
		if known[id] == sum {
			continue
		}
		changed(filepath.Join(dir, id+storage.Ext), id, known, bus, logger)
	}
}

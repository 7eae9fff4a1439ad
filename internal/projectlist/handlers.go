package projectlist

import (
	"log/slog"
	"slices"

	"github.com/starford/projectsync/internal/events"
	"github.com/starford/projectsync/internal/models"
)

const (
	outcomeApplied = "applied"
	outcomeIgnored = "ignored"
)

// handleDataImported reloads the list after an import.
func (c *Consumer) handleDataImported(e events.Event) {
	if e.Cancelable {
		c.metrics.ObserveNotification(e.Type, outcomeIgnored)
		return
	}
	c.metrics.ObserveNotification(e.Type, outcomeApplied)
	c.Refresh()
}

// handleDatastoreDestroyed clears and reloads the list when the projects
// store was among the destroyed ones.
func (c *Consumer) handleDatastoreDestroyed(e events.Event) {
	if e.Cancelable {
		c.metrics.ObserveNotification(e.Type, outcomeIgnored)
		return
	}
	stores, ok := storeNames(e.Detail)
	if !ok || !(slices.Contains(stores, LegacyProjectsStore) || slices.Contains(stores, AllStores)) {
		c.metrics.ObserveNotification(e.Type, outcomeIgnored)
		return
	}
	c.metrics.ObserveNotification(e.Type, outcomeApplied)
	c.logger.Debug("projects: datastore destroyed", slog.Any("stores", stores))
	c.SetProjects(nil)
	c.Refresh()
}

// storeNames extracts the destroyed store names. A single string is a
// one-element set; any other shape is rejected.
func storeNames(detail any) ([]string, bool) {
	var raw any
	switch d := detail.(type) {
	case events.DatastoreDestroyedDetail:
		raw = d.Datastore
	case *events.DatastoreDestroyedDetail:
		if d == nil {
			return nil, false
		}
		raw = d.Datastore
	default:
		return nil, false
	}
	switch v := raw.(type) {
	case string:
		return []string{v}, true
	case []string:
		return v, true
	case []any:
		out := make([]string, 0, len(v))
		for _, item := range v {
			if s, ok := item.(string); ok {
				out = append(out, s)
			}
		}
		return out, true
	default:
		return nil, false
	}
}

// handleProjectChanged replaces the project with the same ID or appends it.
func (c *Consumer) handleProjectChanged(e events.Event) {
	p := changedProject(e.Detail)
	if e.Cancelable || p == nil || p.ID == "" {
		c.metrics.ObserveNotification(e.Type, outcomeIgnored)
		return
	}
	c.metrics.ObserveNotification(e.Type, outcomeApplied)

	c.mu.Lock()
	list := make([]models.Project, len(c.projects), len(c.projects)+1)
	copy(list, c.projects)
	if i := indexOf(list, p.ID); i >= 0 {
		list[i] = *p
	} else {
		// A new project always goes last.
		list = append(list, *p)
	}
	changed := c.setLocked(list)
	c.mu.Unlock()

	if changed {
		c.publish()
	}
}

func changedProject(detail any) *models.Project {
	switch d := detail.(type) {
	case events.ProjectChanged:
		return d.Project
	case *events.ProjectChanged:
		if d != nil {
			return d.Project
		}
	}
	return nil
}

// handleProjectDeleted removes the first project with the deleted ID.
func (c *Consumer) handleProjectDeleted(e events.Event) {
	id := deletedID(e.Detail)

	c.mu.Lock()
	if e.Cancelable || len(c.projects) == 0 || id == "" {
		c.mu.Unlock()
		c.metrics.ObserveNotification(e.Type, outcomeIgnored)
		return
	}
	i := indexOf(c.projects, id)
	if i < 0 {
		c.mu.Unlock()
		c.metrics.ObserveNotification(e.Type, outcomeIgnored)
		return
	}
	list := slices.Delete(slices.Clone(c.projects), i, i+1)
	changed := c.setLocked(list)
	c.mu.Unlock()

	c.metrics.ObserveNotification(e.Type, outcomeApplied)
	if changed {
		c.publish()
	}
}

func deletedID(detail any) string {
	switch d := detail.(type) {
	case events.ProjectDeleted:
		return d.ID
	case *events.ProjectDeleted:
		if d != nil {
			return d.ID
		}
	}
	return ""
}

func indexOf(list []models.Project, id string) int {
	return slices.IndexFunc(list, func(p models.Project) bool { return p.ID == id })
}

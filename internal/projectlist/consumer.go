// Package projectlist keeps a local list of legacy projects in sync with
// storage by reacting to lifecycle notifications.
//
// A Consumer holds the cached list and a derived HasProjects flag. Attach
// subscribes it to a notification source; from then on data imports,
// datastore resets and single project changes or deletions are reflected in
// the cache. Every replacement of the list is published as a
// projects-changed notification.
//
// Full reloads requested through Refresh are debounced: at most one deferred
// reload is pending at a time, and the guard is cleared just before the
// reload runs.
package projectlist

import (
	"cmp"
	"context"
	"errors"
	"log/slog"
	"slices"
	"sync"

	"github.com/starford/projectsync/internal/events"
	"github.com/starford/projectsync/internal/metrics"
	"github.com/starford/projectsync/internal/models"
)

// Store names that trigger a reload when destroyed.
const (
	LegacyProjectsStore = "legacy-projects"
	AllStores           = "all"
)

// analyticsPrefix tags every exception reported by the consumer.
const analyticsPrefix = "[projects-list-consumer]: "

// Lister returns every stored project.
type Lister interface {
	ListProjects(ctx context.Context) ([]models.Project, error)
}

// Notifier is the notification source the consumer subscribes to and
// publishes on.
type Notifier interface {
	Subscribe(typ string, h events.Handler) func()
	Dispatch(e events.Event)
}

// Consumer caches the project list. It is safe for concurrent use.
type Consumer struct {
	store    Lister
	bus      Notifier
	sched    Scheduler
	logger   *slog.Logger
	metrics  *metrics.Metrics
	onResize func()
	ctx      context.Context
	noAuto   bool

	mu          sync.Mutex
	projects    []models.Project
	hasProjects bool
	refreshing  bool
	unsubscribe []func()
	version     uint64 // bumped on every list replacement
	published   uint64 // version of the last published list

	// pubMu serializes projects-changed notifications so that the last one
	// always carries the cached list.
	pubMu sync.Mutex
}

// New creates a Consumer reading from store and talking to bus.
func New(store Lister, bus Notifier, opts ...Option) *Consumer {
	c := &Consumer{
		store:  store,
		bus:    bus,
		sched:  GoScheduler,
		logger: slog.Default(),
		ctx:    context.Background(),
	}
	for _, opt := range opts {
		opt(c)
	}
	return c
}

// Attach subscribes the notification handlers and, unless disabled or a list
// was supplied, requests the initial load.
func (c *Consumer) Attach() {
	c.mu.Lock()
	if len(c.unsubscribe) > 0 {
		c.mu.Unlock()
		return
	}
	c.unsubscribe = []func(){
		c.bus.Subscribe(events.ProjectObjectChanged, c.handleProjectChanged),
		c.bus.Subscribe(events.ProjectObjectDeleted, c.handleProjectDeleted),
		c.bus.Subscribe(events.DatastoreDestroyed, c.handleDatastoreDestroyed),
		c.bus.Subscribe(events.DataImported, c.handleDataImported),
	}
	load := !c.noAuto && c.projects == nil
	c.mu.Unlock()

	if load {
		c.Refresh()
	}
}

// Detach removes the notification handlers.
func (c *Consumer) Detach() {
	c.mu.Lock()
	unsub := c.unsubscribe
	c.unsubscribe = nil
	c.mu.Unlock()
	for _, fn := range unsub {
		fn()
	}
}

// Projects returns the cached list. A nil result means no list is loaded.
func (c *Consumer) Projects() []models.Project {
	c.mu.Lock()
	defer c.mu.Unlock()
	return slices.Clone(c.projects)
}

// HasProjects reports whether the cached list has items.
func (c *Consumer) HasProjects() bool {
	c.mu.Lock()
	defer c.mu.Unlock()
	return c.hasProjects
}

// SetProjects replaces the cached list with a copy of list and publishes it.
// Setting nil while no list is cached is a no-op.
func (c *Consumer) SetProjects(list []models.Project) {
	c.replace(slices.Clone(list))
}

// replace takes ownership of list.
func (c *Consumer) replace(list []models.Project) {
	c.mu.Lock()
	changed := c.setLocked(list)
	c.mu.Unlock()
	if changed {
		c.publish()
	}
}

// setLocked stores list and reports whether it differs from the current one.
// c.mu must be held.
func (c *Consumer) setLocked(list []models.Project) bool {
	if sameList(c.projects, list) {
		return false
	}
	c.projects = list
	c.hasProjects = len(list) > 0
	c.version++
	return true
}

// publish announces the cached list. A publish overtaken by a newer one is
// dropped. Handlers of projects-changed must not modify the consumer.
func (c *Consumer) publish() {
	c.pubMu.Lock()
	defer c.pubMu.Unlock()

	c.mu.Lock()
	if c.published == c.version {
		c.mu.Unlock()
		return
	}
	c.published = c.version
	list := slices.Clone(c.projects)
	c.mu.Unlock()

	c.metrics.SetCached(len(list))
	c.bus.Dispatch(events.Event{
		Type:   events.ProjectsChanged,
		Detail: events.ProjectsChangedDetail{Value: list},
	})
}

// Refresh schedules one deferred reload. Calls made while a reload is
// pending are ignored.
func (c *Consumer) Refresh() {
	c.mu.Lock()
	if c.refreshing {
		c.mu.Unlock()
		return
	}
	c.refreshing = true
	c.mu.Unlock()

	c.sched.Schedule(func() {
		c.mu.Lock()
		c.refreshing = false
		c.mu.Unlock()
		if err := c.Reload(c.ctx); err != nil {
			if errors.Is(err, context.Canceled) {
				return
			}
			c.logger.Warn("projects: deferred reload failed", slog.String("error", err.Error()))
		}
	})
}

// Refreshing reports whether a deferred reload is pending.
func (c *Consumer) Refreshing() bool {
	c.mu.Lock()
	defer c.mu.Unlock()
	return c.refreshing
}

// Reload reads the whole list from storage, sorts it by order and replaces
// the cache. A failure is reported to analytics and returned unchanged.
func (c *Consumer) Reload(ctx context.Context) error {
	list, err := c.store.ListProjects(ctx)
	if errors.Is(err, context.Canceled) && ctx.Err() != nil {
		// Cancelled by the caller; nothing to report.
		return err
	}
	c.metrics.ObserveReload(err)
	if err != nil {
		return c.reportError(err)
	}
	if list == nil {
		list = []models.Project{}
	}
	slices.SortStableFunc(list, compareOrder)
	c.replace(list)
	c.logger.Debug("projects: reloaded", slog.Int("count", len(list)))

	if c.onResize != nil {
		c.sched.Schedule(c.onResize)
	}
	return nil
}

func compareOrder(a, b models.Project) int {
	return cmp.Compare(a.Order, b.Order)
}

// reportError forwards err to the analytics sink and returns it.
func (c *Consumer) reportError(err error) error {
	c.bus.Dispatch(events.Event{
		Type: events.SendAnalytics,
		Detail: events.Analytics{
			Type:        "exception",
			Description: analyticsPrefix + err.Error(),
			Fatal:       false,
		},
	})
	return err
}

// Suggestions returns autocomplete suggestions for the cached list.
func (c *Consumer) Suggestions() []Suggestion {
	c.mu.Lock()
	defer c.mu.Unlock()
	return Autocomplete(c.projects)
}

// ProcessSelected partitions selected against the cached list.
func (c *Consumer) ProcessSelected(selected []string) Selection {
	c.mu.Lock()
	defer c.mu.Unlock()
	return PartitionSelected(c.projects, selected)
}

// sameList reports whether a and b are the same list instance.
func sameList(a, b []models.Project) bool {
	if a == nil || b == nil {
		return a == nil && b == nil
	}
	if len(a) != len(b) || cap(a) != cap(b) {
		return false
	}
	if len(a) == 0 {
		return false
	}
	return &a[0] == &b[0]
}

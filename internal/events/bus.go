// Package events implements the notification bus that connects storage
// mutations, the project list consumer and its observers.
package events

import (
	"sync"

	"github.com/starford/projectsync/internal/models"
)

// Notification types.
const (
	DataImported         = "data-imported"
	DatastoreDestroyed   = "datastore-destroyed"
	ProjectObjectChanged = "project-object-changed"
	ProjectObjectDeleted = "project-object-deleted"
	ProjectsChanged      = "projects-changed"
	SendAnalytics        = "send-analytics"
)

// Event is a single notification. Cancelable events are pre-flight checks,
// not committed facts.
type Event struct {
	Type       string
	Cancelable bool
	Detail     any
}

// ProjectChanged is the detail of a project-object-changed event.
type ProjectChanged struct {
	Project *models.Project `json:"project"`
}

// ProjectDeleted is the detail of a project-object-deleted event.
type ProjectDeleted struct {
	ID string `json:"id"`
}

// DatastoreDestroyedDetail is the detail of a datastore-destroyed event.
// Datastore is either a string or a list of store names.
type DatastoreDestroyedDetail struct {
	Datastore any `json:"datastore"`
}

// ProjectsChangedDetail carries the new list; Value is nil when the list was
// cleared.
type ProjectsChangedDetail struct {
	Value []models.Project `json:"value"`
}

// Analytics is the detail of a send-analytics event.
type Analytics struct {
	Type        string `json:"type"`
	Description string `json:"description"`
	Fatal       bool   `json:"fatal"`
}

// Handler reacts to a dispatched event.
type Handler func(Event)

type subscription struct {
	id uint64
	h  Handler
}

// Bus dispatches events synchronously to subscribers, in subscription order.
// It is safe for concurrent use.
type Bus struct {
	mu     sync.RWMutex
	nextID uint64
	subs   map[string][]subscription
}

// NewBus creates an empty bus.
func NewBus() *Bus {
	return &Bus{subs: make(map[string][]subscription)}
}

// Subscribe registers h for events of type typ. The returned function
// removes the subscription and may be called more than once.
func (b *Bus) Subscribe(typ string, h Handler) func() {
	b.mu.Lock()
	b.nextID++
	id := b.nextID
	b.subs[typ] = append(b.subs[typ], subscription{id: id, h: h})
	b.mu.Unlock()

	var once sync.Once
	return func() {
		once.Do(func() { b.remove(typ, id) })
	}
}

func (b *Bus) remove(typ string, id uint64) {
	b.mu.Lock()
	defer b.mu.Unlock()
	list := b.subs[typ]
	for i, s := range list {
		if s.id == id {
			// Copy so that a dispatch iterating the old slice is not disturbed.
			next := make([]subscription, 0, len(list)-1)
			next = append(next, list[:i]...)
			next = append(next, list[i+1:]...)
			if len(next) == 0 {
				delete(b.subs, typ)
			} else {
				b.subs[typ] = next
			}
			return
		}
	}
}

// Dispatch delivers e to every handler subscribed to e.Type. Handlers run on
// the caller's goroutine and may subscribe, unsubscribe or dispatch.
func (b *Bus) Dispatch(e Event) {
	b.mu.RLock()
	list := b.subs[e.Type]
	b.mu.RUnlock()
	for _, s := range list {
		s.h(e)
	}
}

// Count returns the number of handlers subscribed to typ.
func (b *Bus) Count(typ string) int {
	b.mu.RLock()
	defer b.mu.RUnlock()
	return len(b.subs[typ])
}

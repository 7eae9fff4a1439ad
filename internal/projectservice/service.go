// Package projectservice applies project mutations to storage and announces
// each committed change on the notification bus.
package projectservice

import (
	"context"
	"errors"
	"fmt"
	"slices"
	"time"

	validation "github.com/go-ozzo/ozzo-validation/v4"
	"github.com/google/uuid"

	"github.com/starford/projectsync/internal/apperr"
	"github.com/starford/projectsync/internal/checksum"
	"github.com/starford/projectsync/internal/events"
	"github.com/starford/projectsync/internal/models"
	"github.com/starford/projectsync/internal/projectfile"
	"github.com/starford/projectsync/internal/projectlist"
	"github.com/starford/projectsync/internal/storage"
)

// Dispatcher publishes notifications.
type Dispatcher interface {
	Dispatch(e events.Event)
}

// Changes holds the fields of an update. Nil fields are left untouched.
type Changes struct {
	Name        *string  `json:"name,omitempty"`
	Description *string  `json:"description,omitempty"`
	Order       *int     `json:"order,omitempty"`
	Requests    []string `json:"requests,omitempty"`
}

// Service coordinates storage and notifications.
type Service struct {
	store storage.Provider
	bus   Dispatcher
	now   func() time.Time
}

// NewService creates a new project service.
func NewService(store storage.Provider, bus Dispatcher) *Service {
	return &Service{store: store, bus: bus, now: time.Now}
}

// Get returns one stored project.
func (s *Service) Get(ctx context.Context, id string) (*models.Project, error) {
	return s.store.GetProject(ctx, id)
}

// List returns every stored project in storage order.
func (s *Service) List(ctx context.Context) ([]models.Project, error) {
	return s.store.ListProjects(ctx)
}

// ETag returns the version tag of p used for optimistic concurrency.
func ETag(p *models.Project) string {
	data, err := projectfile.Format(p)
	if err != nil {
		return ""
	}
	return checksum.Sum(data)
}

// Create stores a new project placed after every existing one.
func (s *Service) Create(ctx context.Context, name, description string) (*models.Project, error) {
	if err := validation.Validate(name, validation.Required, validation.Length(1, 256)); err != nil {
		return nil, fmt.Errorf("%w: name: %s", apperr.ErrInvalid, err.Error())
	}
	list, err := s.store.ListProjects(ctx)
	if err != nil {
		return nil, err
	}
	now := s.now().UTC()
	p := &models.Project{
		ID:          uuid.NewString(),
		Name:        name,
		Order:       nextOrder(list),
		Description: description,
		Created:     now,
		Updated:     now,
	}
	if err := s.save(ctx, p); err != nil {
		return nil, err
	}
	s.changed(p)
	return p, nil
}

// Update applies ch to a stored project. A non-empty ifMatch must equal the
// current ETag.
func (s *Service) Update(ctx context.Context, id string, ch Changes, ifMatch string) (*models.Project, error) {
	p, err := s.store.GetProject(ctx, id)
	if err != nil {
		return nil, err
	}
	if ifMatch != "" && ifMatch != ETag(p) {
		return nil, apperr.ErrConflict
	}
	if ch.Name != nil {
		p.Name = *ch.Name
	}
	if ch.Description != nil {
		p.Description = *ch.Description
	}
	if ch.Order != nil {
		p.Order = *ch.Order
	}
	if ch.Requests != nil {
		p.Requests = slices.Clone(ch.Requests)
	}
	p.Updated = s.now().UTC()
	if err := s.save(ctx, p); err != nil {
		return nil, err
	}
	s.changed(p)
	return p, nil
}

// Delete removes a stored project.
func (s *Service) Delete(ctx context.Context, id string) error {
	if err := s.store.DeleteProject(ctx, id); err != nil {
		return err
	}
	s.bus.Dispatch(events.Event{Type: events.ProjectObjectDeleted, Detail: events.ProjectDeleted{ID: id}})
	return nil
}

// Import stores every project in list and announces a bulk import. Projects
// without an ID get a fresh one; a zero order places the project last.
// Import stops at the first invalid project; the ones saved before it stay
// and are still announced.
func (s *Service) Import(ctx context.Context, list []models.Project) (n int, err error) {
	existing, err := s.store.ListProjects(ctx)
	if err != nil {
		return 0, err
	}
	defer func() {
		if n > 0 || err == nil {
			s.bus.Dispatch(events.Event{Type: events.DataImported})
		}
	}()

	next := nextOrder(existing)
	now := s.now().UTC()
	for i := range list {
		p := list[i]
		if p.ID == "" {
			p.ID = uuid.NewString()
		}
		if p.Order == 0 {
			p.Order = next
			next++
		}
		if p.Created.IsZero() {
			p.Created = now
		}
		if p.Updated.IsZero() {
			p.Updated = now
		}
		if err := s.save(ctx, &p); err != nil {
			return n, fmt.Errorf("import %q: %w", p.Name, err)
		}
		n++
	}
	return n, nil
}

// DestroyDatastore clears project storage when stores names the projects
// store or all stores, then announces the reset either way.
func (s *Service) DestroyDatastore(ctx context.Context, stores []string) error {
	if len(stores) == 0 {
		return fmt.Errorf("%w: no datastore named", apperr.ErrInvalid)
	}
	if slices.Contains(stores, projectlist.LegacyProjectsStore) || slices.Contains(stores, projectlist.AllStores) {
		if err := s.store.Clear(ctx); err != nil {
			return err
		}
	}
	s.bus.Dispatch(events.Event{
		Type:   events.DatastoreDestroyed,
		Detail: events.DatastoreDestroyedDetail{Datastore: slices.Clone(stores)},
	})
	return nil
}

func (s *Service) save(ctx context.Context, p *models.Project) error {
	if err := p.Validate(); err != nil {
		var verrs validation.Errors
		if errors.As(err, &verrs) {
			return fmt.Errorf("%w: %s", apperr.ErrInvalid, verrs.Error())
		}
		return fmt.Errorf("%w: %s", apperr.ErrInvalid, err.Error())
	}
	return s.store.SaveProject(ctx, p)
}

func (s *Service) changed(p *models.Project) {
	cp := *p
	cp.Requests = slices.Clone(p.Requests)
	s.bus.Dispatch(events.Event{Type: events.ProjectObjectChanged, Detail: events.ProjectChanged{Project: &cp}})
}

func nextOrder(list []models.Project) int {
	next := 0
	for _, p := range list {
		if p.Order >= next {
			next = p.Order + 1
		}
	}
	return next
}

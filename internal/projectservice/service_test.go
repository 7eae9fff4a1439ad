package projectservice

import (
	"context"
	"errors"
	"sync"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/starford/projectsync/internal/apperr"
	"github.com/starford/projectsync/internal/events"
	"github.com/starford/projectsync/internal/models"
	"github.com/starford/projectsync/internal/projectlist"
	"github.com/starford/projectsync/internal/storage"
	"github.com/starford/projectsync/internal/testutil"
)

type recorder struct {
	mu  sync.Mutex
	got []events.Event
}

func (r *recorder) Dispatch(e events.Event) {
	r.mu.Lock()
	defer r.mu.Unlock()
	r.got = append(r.got, e)
}

func (r *recorder) all() []events.Event {
	r.mu.Lock()
	defer r.mu.Unlock()
	return append([]events.Event(nil), r.got...)
}

func setup(t *testing.T) (*Service, storage.Provider, *recorder) {
	t.Helper()
	_, store := testutil.TestStore(t)
	rec := &recorder{}
	svc := NewService(store, rec)
	svc.now = func() time.Time { return time.Date(2024, 5, 1, 12, 0, 0, 0, time.UTC) }
	return svc, store, rec
}

func TestCreate(t *testing.T) {
	svc, store, rec := setup(t)
	ctx := context.Background()

	first, err := svc.Create(ctx, "first", "about")
	require.NoError(t, err)
	second, err := svc.Create(ctx, "second", "")
	require.NoError(t, err)

	assert.NotEmpty(t, first.ID)
	assert.NotEqual(t, first.ID, second.ID)
	assert.Equal(t, 0, first.Order)
	assert.Equal(t, 1, second.Order)

	stored, err := store.GetProject(ctx, first.ID)
	require.NoError(t, err)
	assert.Equal(t, "first", stored.Name)
	assert.Equal(t, "about", stored.Description)

	got := rec.all()
	require.Len(t, got, 2)
	assert.Equal(t, events.ProjectObjectChanged, got[0].Type)
	assert.False(t, got[0].Cancelable)
	assert.Equal(t, first.ID, got[0].Detail.(events.ProjectChanged).Project.ID)
}

func TestCreate_RequiresName(t *testing.T) {
	svc, _, rec := setup(t)

	_, err := svc.Create(context.Background(), "", "")

	assert.True(t, errors.Is(err, apperr.ErrInvalid))
	assert.Empty(t, rec.all())
}

func TestUpdate(t *testing.T) {
	svc, store, rec := setup(t)
	ctx := context.Background()
	p, err := svc.Create(ctx, "name", "")
	require.NoError(t, err)

	name := "renamed"
	order := 7
	updated, err := svc.Update(ctx, p.ID, Changes{Name: &name, Order: &order, Requests: []string{"r1"}}, ETag(p))
	require.NoError(t, err)

	assert.Equal(t, "renamed", updated.Name)
	assert.Equal(t, 7, updated.Order)
	stored, err := store.GetProject(ctx, p.ID)
	require.NoError(t, err)
	assert.Equal(t, []string{"r1"}, stored.Requests)
	assert.Len(t, rec.all(), 2)
}

func TestUpdate_Conflict(t *testing.T) {
	svc, _, _ := setup(t)
	ctx := context.Background()
	p, err := svc.Create(ctx, "name", "")
	require.NoError(t, err)

	name := "x"
	_, err = svc.Update(ctx, p.ID, Changes{Name: &name}, "stale")
	assert.True(t, errors.Is(err, apperr.ErrConflict))
}

func TestUpdate_NotFound(t *testing.T) {
	svc, _, rec := setup(t)

	_, err := svc.Update(context.Background(), "missing", Changes{}, "")

	assert.True(t, errors.Is(err, apperr.ErrNotFound))
	assert.Empty(t, rec.all())
}

func TestDelete(t *testing.T) {
	svc, _, rec := setup(t)
	ctx := context.Background()
	p, err := svc.Create(ctx, "name", "")
	require.NoError(t, err)

	require.NoError(t, svc.Delete(ctx, p.ID))

	got := rec.all()
	require.Len(t, got, 2)
	assert.Equal(t, events.ProjectObjectDeleted, got[1].Type)
	assert.Equal(t, p.ID, got[1].Detail.(events.ProjectDeleted).ID)

	err = svc.Delete(ctx, p.ID)
	assert.True(t, errors.Is(err, apperr.ErrNotFound))
	assert.Len(t, rec.all(), 2)
}

func TestImport(t *testing.T) {
	svc, _, rec := setup(t)
	ctx := context.Background()

	n, err := svc.Import(ctx, []models.Project{
		{ID: "keep", Name: "kept", Order: 5},
		{Name: "fresh"},
	})
	require.NoError(t, err)
	assert.Equal(t, 2, n)

	list, err := svc.List(ctx)
	require.NoError(t, err)
	require.Len(t, list, 2)

	var fresh models.Project
	for _, p := range list {
		if p.Name == "fresh" {
			fresh = p
		}
	}
	assert.NotEmpty(t, fresh.ID)
	assert.Equal(t, 0, fresh.Order)

	got := rec.all()
	require.Len(t, got, 1)
	assert.Equal(t, events.DataImported, got[0].Type)
}

func TestImport_InvalidProject(t *testing.T) {
	svc, _, rec := setup(t)

	_, err := svc.Import(context.Background(), []models.Project{{ID: "a"}})

	assert.True(t, errors.Is(err, apperr.ErrInvalid))
	assert.Empty(t, rec.all())
}

func TestImport_PartialFailureStillAnnounced(t *testing.T) {
	store := testutil.TestDB(t)
	bus := events.NewBus()
	svc := NewService(store, bus)
	c := projectlist.New(store, bus,
		projectlist.WithNoAutoProjects(true),
		projectlist.WithScheduler(testutil.SyncScheduler),
	)
	c.Attach()
	defer c.Detach()
	ctx := context.Background()

	n, err := svc.Import(ctx, []models.Project{{Name: "ok"}, {Name: ""}})

	assert.True(t, errors.Is(err, apperr.ErrInvalid))
	assert.Equal(t, 1, n)
	stored, err := svc.List(ctx)
	require.NoError(t, err)
	require.Len(t, stored, 1)
	list := c.Projects()
	require.Len(t, list, 1)
	assert.Equal(t, "ok", list[0].Name)
}

func TestDestroyDatastore(t *testing.T) {
	tests := []struct {
		name      string
		stores    []string
		wantClear bool
	}{
		{name: "projects store", stores: []string{projectlist.LegacyProjectsStore}, wantClear: true},
		{name: "all", stores: []string{"history", projectlist.AllStores}, wantClear: true},
		{name: "other store", stores: []string{"history"}, wantClear: false},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			svc, _, rec := setup(t)
			ctx := context.Background()
			_, err := svc.Create(ctx, "name", "")
			require.NoError(t, err)

			require.NoError(t, svc.DestroyDatastore(ctx, tt.stores))

			list, err := svc.List(ctx)
			require.NoError(t, err)
			if tt.wantClear {
				assert.Empty(t, list)
			} else {
				assert.Len(t, list, 1)
			}
			got := rec.all()
			require.Len(t, got, 2)
			assert.Equal(t, events.DatastoreDestroyed, got[1].Type)
			assert.Equal(t, tt.stores, got[1].Detail.(events.DatastoreDestroyedDetail).Datastore)
		})
	}
}

func TestDestroyDatastore_RequiresStore(t *testing.T) {
	svc, _, rec := setup(t)

	err := svc.DestroyDatastore(context.Background(), nil)

	assert.True(t, errors.Is(err, apperr.ErrInvalid))
	assert.Empty(t, rec.all())
}

func TestServiceDrivesConsumer(t *testing.T) {
	store := testutil.TestDB(t)
	bus := events.NewBus()
	svc := NewService(store, bus)
	c := projectlist.New(store, bus, projectlist.WithNoAutoProjects(true))
	c.Attach()
	defer c.Detach()
	ctx := context.Background()
	require.NoError(t, c.Reload(ctx))

	a, err := svc.Create(ctx, "a", "")
	require.NoError(t, err)
	_, err = svc.Create(ctx, "b", "")
	require.NoError(t, err)
	require.Len(t, c.Projects(), 2)

	require.NoError(t, svc.Delete(ctx, a.ID))
	list := c.Projects()
	require.Len(t, list, 1)
	assert.Equal(t, "b", list[0].Name)
	assert.Equal(t, []projectlist.Suggestion{{Value: "b", ID: list[0].ID}}, c.Suggestions())
}

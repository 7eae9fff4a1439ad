package api

import (
	"net/http"

	"github.com/go-chi/chi/v5"

	"github.com/starford/projectsync/internal/projectlist"
	"github.com/starford/projectsync/internal/projectservice"
)

// NewRouter creates a chi router with all API routes mounted.
// authEnabled controls whether Bearer token auth is enforced.
// sseHandler, if non-nil, is mounted at GET /events inside the auth group.
func NewRouter(svc *projectservice.Service, list *projectlist.Consumer, authEnabled bool, token string, sseHandler http.Handler) chi.Router {
	h := NewHandler(svc, list)

	r := chi.NewRouter()
	r.Use(AuthMiddleware(authEnabled, token))

	// Cached list.
	r.Get("/projects", h.ListProjects)
	r.Post("/projects/refresh", h.RefreshProjects)
	r.Post("/projects/reload", h.ReloadProjects)
	r.Get("/projects/autocomplete", h.Autocomplete)
	r.Post("/projects/selection", h.ProcessSelection)

	// Projects CRUD.
	r.Post("/projects", h.CreateProject)
	r.Get("/projects/{id}", h.GetProject)
	r.Put("/projects/{id}", h.UpdateProject)
	r.Delete("/projects/{id}", h.DeleteProject)

	// Bulk operations.
	r.Post("/import", h.Import)
	r.Post("/datastore/destroy", h.DestroyDatastore)

	// SSE endpoint (protected by same auth middleware).
	if sseHandler != nil {
		r.Get("/events", sseHandler.ServeHTTP)
	}

	return r
}

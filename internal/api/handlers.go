package api

import (
	"encoding/json"
	"log/slog"
	"net/http"
	"strings"

	"github.com/go-chi/chi/v5"

	"github.com/starford/projectsync/internal/projectlist"
	"github.com/starford/projectsync/internal/projectservice"
)

const maxBody = 10 << 20

// Handler holds API route handlers.
type Handler struct {
	svc  *projectservice.Service
	list *projectlist.Consumer
}

// NewHandler creates a new Handler.
func NewHandler(svc *projectservice.Service, list *projectlist.Consumer) *Handler {
	return &Handler{svc: svc, list: list}
}

func decode(w http.ResponseWriter, r *http.Request, v any) bool {
	r.Body = http.MaxBytesReader(w, r.Body, maxBody)
	if err := json.NewDecoder(r.Body).Decode(v); err != nil {
		writeJSON(w, http.StatusBadRequest, errorBody("invalid JSON body"))
		return false
	}
	return true
}

func setETag(w http.ResponseWriter, p *Project) {
	if tag := projectservice.ETag(p); tag != "" {
		w.Header().Set("ETag", `"`+tag+`"`)
	}
}

// ListProjects handles GET /api/projects.
//
//	@Summary		Get the cached project list
//	@Tags			projects
//	@Produce		json
//	@Success		200	{object}	ProjectListResponse
//	@Security		BearerAuth
//	@Router			/projects [get]
func (h *Handler) ListProjects(w http.ResponseWriter, r *http.Request) {
	list := h.list.Projects()
	writeJSON(w, http.StatusOK, ProjectListResponse{
		Projects:    list,
		HasProjects: h.list.HasProjects(),
		Loaded:      list != nil,
		Refreshing:  h.list.Refreshing(),
	})
}

// RefreshProjects handles POST /api/projects/refresh.
//
//	@Summary		Schedule a debounced reload of the cached list
//	@Tags			projects
//	@Success		202	"Reload scheduled"
//	@Security		BearerAuth
//	@Router			/projects/refresh [post]
func (h *Handler) RefreshProjects(w http.ResponseWriter, r *http.Request) {
	h.list.Refresh()
	writeJSON(w, http.StatusAccepted, map[string]bool{"refreshing": true})
}

// ReloadProjects handles POST /api/projects/reload.
//
//	@Summary		Reload the cached list and return it
//	@Tags			projects
//	@Produce		json
//	@Success		200	{object}	ProjectListResponse
//	@Failure		500	{object}	errResponse
//	@Security		BearerAuth
//	@Router			/projects/reload [post]
func (h *Handler) ReloadProjects(w http.ResponseWriter, r *http.Request) {
	if err := h.list.Reload(r.Context()); err != nil {
		slog.Error("reload projects failed", slog.String("error", err.Error()))
		writeJSON(w, http.StatusInternalServerError, errorBody("reload failed"))
		return
	}
	h.ListProjects(w, r)
}

// Autocomplete handles GET /api/projects/autocomplete.
//
//	@Summary		Autocomplete suggestions from the cached list
//	@Tags			projects
//	@Produce		json
//	@Success		200	{object}	AutocompleteResponse
//	@Success		204	"No list loaded or list empty"
//	@Security		BearerAuth
//	@Router			/projects/autocomplete [get]
func (h *Handler) Autocomplete(w http.ResponseWriter, r *http.Request) {
	suggestions := h.list.Suggestions()
	if suggestions == nil {
		w.WriteHeader(http.StatusNoContent)
		return
	}
	writeJSON(w, http.StatusOK, AutocompleteResponse{Suggestions: suggestions})
}

// ProcessSelection handles POST /api/projects/selection.
//
//	@Summary		Split a selection into existing projects and names to create
//	@Tags			projects
//	@Accept			json
//	@Produce		json
//	@Param			body	body		SelectionRequest	true	"Selected entries"
//	@Success		200		{object}	SelectionResponse
//	@Failure		400		{object}	errResponse
//	@Security		BearerAuth
//	@Router			/projects/selection [post]
func (h *Handler) ProcessSelection(w http.ResponseWriter, r *http.Request) {
	var req SelectionRequest
	if !decode(w, r, &req) {
		return
	}
	writeJSON(w, http.StatusOK, h.list.ProcessSelected(req.Projects))
}

// CreateProject handles POST /api/projects.
//
//	@Summary		Create a project
//	@Tags			projects
//	@Accept			json
//	@Produce		json
//	@Param			body	body		CreateProjectRequest	true	"Project to create"
//	@Success		201		{object}	Project
//	@Failure		400		{object}	errResponse
//	@Security		BearerAuth
//	@Router			/projects [post]
func (h *Handler) CreateProject(w http.ResponseWriter, r *http.Request) {
	var req CreateProjectRequest
	if !decode(w, r, &req) {
		return
	}
	if strings.TrimSpace(req.Name) == "" {
		writeJSON(w, http.StatusBadRequest, errorBody("name is required"))
		return
	}
	p, err := h.svc.Create(r.Context(), req.Name, req.Description)
	if err != nil {
		writeServiceError(w, "create project", err, slog.String("name", req.Name))
		return
	}
	setETag(w, p)
	writeJSON(w, http.StatusCreated, p)
}

// GetProject handles GET /api/projects/{id}.
//
//	@Summary		Get a stored project
//	@Tags			projects
//	@Produce		json
//	@Param			id	path		string	true	"Project ID"
//	@Success		200	{object}	Project
//	@Failure		404	{object}	errResponse
//	@Security		BearerAuth
//	@Router			/projects/{id} [get]
func (h *Handler) GetProject(w http.ResponseWriter, r *http.Request) {
	id := chi.URLParam(r, "id")
	p, err := h.svc.Get(r.Context(), id)
	if err != nil {
		writeServiceError(w, "get project", err, slog.String("id", id))
		return
	}
	setETag(w, p)
	writeJSON(w, http.StatusOK, p)
}

// UpdateProject handles PUT /api/projects/{id}.
//
//	@Summary		Update a project with optimistic concurrency
//	@Tags			projects
//	@Accept			json
//	@Produce		json
//	@Param			id			path		string					true	"Project ID"
//	@Param			If-Match	header		string					false	"ETag for optimistic concurrency"
//	@Param			body		body		UpdateProjectRequest	true	"Fields to change"
//	@Success		200			{object}	Project
//	@Failure		400			{object}	errResponse
//	@Failure		404			{object}	errResponse
//	@Failure		409			{object}	errResponse
//	@Security		BearerAuth
//	@Router			/projects/{id} [put]
func (h *Handler) UpdateProject(w http.ResponseWriter, r *http.Request) {
	id := chi.URLParam(r, "id")
	var req UpdateProjectRequest
	if !decode(w, r, &req) {
		return
	}

	// Strip surrounding quotes if present (standard ETag format).
	ifMatch := strings.Trim(r.Header.Get("If-Match"), `"`)

	p, err := h.svc.Update(r.Context(), id, req, ifMatch)
	if err != nil {
		writeServiceError(w, "update project", err, slog.String("id", id))
		return
	}
	setETag(w, p)
	writeJSON(w, http.StatusOK, p)
}

// DeleteProject handles DELETE /api/projects/{id}.
//
//	@Summary		Delete a project
//	@Tags			projects
//	@Param			id	path	string	true	"Project ID"
//	@Success		204	"Project deleted"
//	@Failure		404	{object}	errResponse
//	@Security		BearerAuth
//	@Router			/projects/{id} [delete]
func (h *Handler) DeleteProject(w http.ResponseWriter, r *http.Request) {
	id := chi.URLParam(r, "id")
	if err := h.svc.Delete(r.Context(), id); err != nil {
		writeServiceError(w, "delete project", err, slog.String("id", id))
		return
	}
	w.WriteHeader(http.StatusNoContent)
}

// Import handles POST /api/import.
//
//	@Summary		Import projects in bulk
//	@Tags			data
//	@Accept			json
//	@Produce		json
//	@Param			body	body		ImportRequest	true	"Projects to import"
//	@Success		200		{object}	ImportResponse
//	@Failure		400		{object}	errResponse
//	@Security		BearerAuth
//	@Router			/import [post]
func (h *Handler) Import(w http.ResponseWriter, r *http.Request) {
	var req ImportRequest
	if !decode(w, r, &req) {
		return
	}
	n, err := h.svc.Import(r.Context(), req.Projects)
	if err != nil {
		writeServiceError(w, "import", err, slog.Int("imported", n))
		return
	}
	writeJSON(w, http.StatusOK, ImportResponse{Imported: n})
}

// DestroyDatastore handles POST /api/datastore/destroy.
//
//	@Summary		Reset one or more datastores
//	@Tags			data
//	@Accept			json
//	@Param			body	body	DestroyRequest	true	"Stores to reset"
//	@Success		204		"Datastore reset"
//	@Failure		400		{object}	errResponse
//	@Security		BearerAuth
//	@Router			/datastore/destroy [post]
func (h *Handler) DestroyDatastore(w http.ResponseWriter, r *http.Request) {
	var req DestroyRequest
	if !decode(w, r, &req) {
		return
	}
	stores, err := req.Stores()
	if err != nil {
		writeJSON(w, http.StatusBadRequest, errorBody(err.Error()))
		return
	}
	if err := h.svc.DestroyDatastore(r.Context(), stores); err != nil {
		writeServiceError(w, "destroy datastore", err, slog.Any("stores", stores))
		return
	}
	w.WriteHeader(http.StatusNoContent)
}

package api

import (
	"encoding/json"
	"errors"

	"github.com/starford/projectsync/internal/models"
	"github.com/starford/projectsync/internal/projectlist"
	"github.com/starford/projectsync/internal/projectservice"
)

// Project is the project response type (aliased from the domain layer).
type Project = models.Project

// ProjectListResponse is the cached project list. Projects is null when no
// list has been loaded yet.
type ProjectListResponse struct {
	Projects    []Project `json:"projects"`
	HasProjects bool      `json:"has_projects" example:"true"`
	Loaded      bool      `json:"loaded" example:"true"`
	Refreshing  bool      `json:"refreshing" example:"false"`
}

// AutocompleteResponse wraps suggestions for the project picker.
type AutocompleteResponse struct {
	Suggestions []projectlist.Suggestion `json:"suggestions" validate:"required"`
}

// SelectionRequest is the request body for partitioning a selection.
type SelectionRequest struct {
	Projects []string `json:"projects" example:"id-1,New project"`
}

// SelectionResponse is the partitioned selection.
type SelectionResponse = projectlist.Selection

// CreateProjectRequest is the request body for creating a project.
type CreateProjectRequest struct {
	Name        string `json:"name" example:"API" validate:"required"`
	Description string `json:"description,omitempty" example:"Public API requests"`
}

// UpdateProjectRequest is the request body for updating a project.
type UpdateProjectRequest = projectservice.Changes

// ImportRequest is the request body for a bulk import.
type ImportRequest struct {
	Projects []Project `json:"projects" validate:"required"`
}

// ImportResponse reports how many projects were stored.
type ImportResponse struct {
	Imported int `json:"imported" example:"3"`
}

// DestroyRequest names the stores to reset. Datastore is a store name or a
// list of names.
type DestroyRequest struct {
	Datastore json.RawMessage `json:"datastore" swaggertype:"array,string"`
}

var errNoDatastore = errors.New("datastore is required")

// Stores decodes Datastore into a list of names.
func (r DestroyRequest) Stores() ([]string, error) {
	if len(r.Datastore) == 0 || string(r.Datastore) == "null" {
		return nil, errNoDatastore
	}
	var one string
	if err := json.Unmarshal(r.Datastore, &one); err == nil {
		if one == "" {
			return nil, errNoDatastore
		}
		return []string{one}, nil
	}
	var many []string
	if err := json.Unmarshal(r.Datastore, &many); err != nil {
		return nil, errors.New("datastore must be a string or a list of strings")
	}
	if len(many) == 0 {
		return nil, errNoDatastore
	}
	return many, nil
}

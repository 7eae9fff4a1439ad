// Package storage defines the project storage abstraction and its drivers.
package storage

import (
	"context"
	"fmt"

	"github.com/starford/projectsync/internal/models"
)

// Drivers.
const (
	DriverFS     = "fs"
	DriverSQLite = "sqlite"
)

// Provider is the interface for project persistence.
type Provider interface {
	// ListProjects returns every stored project.
	ListProjects(ctx context.Context) ([]models.Project, error)
	// GetProject returns the project with id or apperr.ErrNotFound.
	GetProject(ctx context.Context, id string) (*models.Project, error)
	// SaveProject inserts or replaces a project.
	SaveProject(ctx context.Context, p *models.Project) error
	// DeleteProject removes the project with id or returns apperr.ErrNotFound.
	DeleteProject(ctx context.Context, id string) error
	// Clear removes every project.
	Clear(ctx context.Context) error
	// Close releases resources held by the driver.
	Close() error
}

// Open opens the driver named by driver at path.
func Open(driver, path string) (Provider, error) {
	var (
		p   Provider
		err error
	)
	switch driver {
	case DriverFS:
		p, err = NewFS(path)
	case DriverSQLite:
		p, err = OpenSQLite(path)
	default:
		return nil, fmt.Errorf("storage: unknown driver %q", driver)
	}
	if err != nil {
		return nil, err
	}
	return p, nil
}

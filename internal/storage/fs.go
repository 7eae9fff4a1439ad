package storage

import (
	"context"
	"errors"
	"fmt"
	"io/fs"
	"os"
	"path/filepath"
	"strings"

	"github.com/starford/projectsync/internal/apperr"
	"github.com/starford/projectsync/internal/models"
	"github.com/starford/projectsync/internal/projectfile"
)

// Ext is the file extension of project documents.
const Ext = ".md"

// FS implements Provider with one project document per file.
type FS struct {
	root string // absolute path to the projects directory
}

var _ Provider = (*FS)(nil)

// NewFS creates a new FS provider rooted at the given directory, creating it
// when missing.
func NewFS(root string) (*FS, error) {
	abs, err := filepath.Abs(root)
	if err != nil {
		return nil, fmt.Errorf("storage: resolve root: %w", err)
	}
	if err := os.MkdirAll(abs, 0o755); err != nil {
		return nil, fmt.Errorf("storage: create root: %w", err)
	}
	info, err := os.Stat(abs)
	if err != nil {
		return nil, fmt.Errorf("storage: stat root: %w", err)
	}
	if !info.IsDir() {
		return nil, fmt.Errorf("storage: root is not a directory: %s", abs)
	}
	return &FS{root: abs}, nil
}

// Root returns the absolute projects directory.
func (f *FS) Root() string {
	return f.root
}

// IDFromPath returns the project ID encoded in a document path, or false
// when path is not a project document.
func IDFromPath(path string) (string, bool) {
	name := filepath.Base(path)
	if !strings.HasSuffix(name, Ext) || strings.HasPrefix(name, ".") {
		return "", false
	}
	return strings.TrimSuffix(name, Ext), true
}

// projectPath resolves the document path for id and rejects anything that
// would escape the root.
func (f *FS) projectPath(id string) (string, error) {
	if id == "" {
		return "", fmt.Errorf("storage: %w: empty project id", apperr.ErrInvalid)
	}
	if strings.ContainsAny(id, `/\`) || id == "." || id == ".." || strings.HasPrefix(id, ".") {
		return "", fmt.Errorf("storage: %w: project id %q", apperr.ErrInvalid, id)
	}
	abs := filepath.Join(f.root, id+Ext)
	if filepath.Dir(abs) != f.root {
		return "", fmt.Errorf("storage: path escapes root: %s", id)
	}
	return abs, nil
}

// ListProjects reads every project document in the root directory.
func (f *FS) ListProjects(ctx context.Context) ([]models.Project, error) {
	entries, err := os.ReadDir(f.root)
	if err != nil {
		return nil, fmt.Errorf("storage: list: %w", err)
	}
	out := make([]models.Project, 0, len(entries))
	for _, entry := range entries {
		if err := ctx.Err(); err != nil {
			return nil, err
		}
		if entry.IsDir() {
			continue
		}
		if _, ok := IDFromPath(entry.Name()); !ok {
			continue
		}
		p, err := f.read(filepath.Join(f.root, entry.Name()))
		if err != nil {
			return nil, err
		}
		out = append(out, *p)
	}
	return out, nil
}

// GetProject reads one project document.
func (f *FS) GetProject(_ context.Context, id string) (*models.Project, error) {
	path, err := f.projectPath(id)
	if err != nil {
		return nil, err
	}
	return f.read(path)
}

func (f *FS) read(path string) (*models.Project, error) {
	data, err := os.ReadFile(path)
	if err != nil {
		if errors.Is(err, fs.ErrNotExist) {
			return nil, fmt.Errorf("storage: read %s: %w", filepath.Base(path), apperr.ErrNotFound)
		}
		return nil, fmt.Errorf("storage: read %s: %w", filepath.Base(path), err)
	}
	p, err := projectfile.Parse(data)
	if err != nil {
		return nil, fmt.Errorf("storage: parse %s: %w", filepath.Base(path), err)
	}
	if id, _ := IDFromPath(path); p.ID == "" {
		p.ID = id
	}
	return p, nil
}

// SaveProject atomically writes the document: tmp file → fsync → rename.
func (f *FS) SaveProject(_ context.Context, p *models.Project) error {
	abs, err := f.projectPath(p.ID)
	if err != nil {
		return err
	}
	content, err := projectfile.Format(p)
	if err != nil {
		return err
	}
	return writeAtomic(abs, content)
}

func writeAtomic(abs string, content []byte) error {
	dir := filepath.Dir(abs)
	tmp, err := os.CreateTemp(dir, ".projectsync-tmp-*")
	if err != nil {
		return fmt.Errorf("storage: create temp: %w", err)
	}
	tmpName := tmp.Name()

	success := false
	defer func() {
		if !success {
			_ = tmp.Close()
			_ = os.Remove(tmpName)
		}
	}()

	if _, err := tmp.Write(content); err != nil {
		return fmt.Errorf("storage: write temp: %w", err)
	}
	if err := tmp.Sync(); err != nil {
		return fmt.Errorf("storage: fsync: %w", err)
	}
	if err := tmp.Close(); err != nil {
		return fmt.Errorf("storage: close temp: %w", err)
	}
	if err := os.Rename(tmpName, abs); err != nil {
		return fmt.Errorf("storage: rename: %w", err)
	}
	success = true
	return nil
}

// DeleteProject removes a project document.
func (f *FS) DeleteProject(_ context.Context, id string) error {
	abs, err := f.projectPath(id)
	if err != nil {
		return err
	}
	if err := os.Remove(abs); err != nil {
		if errors.Is(err, fs.ErrNotExist) {
			return fmt.Errorf("storage: delete %s: %w", id, apperr.ErrNotFound)
		}
		return fmt.Errorf("storage: delete %s: %w", id, err)
	}
	return nil
}

// Clear removes every project document, leaving other files alone.
func (f *FS) Clear(_ context.Context) error {
	entries, err := os.ReadDir(f.root)
	if err != nil {
		return fmt.Errorf("storage: clear: %w", err)
	}
	for _, entry := range entries {
		if entry.IsDir() {
			continue
		}
		if _, ok := IDFromPath(entry.Name()); !ok {
			continue
		}
		if err := os.Remove(filepath.Join(f.root, entry.Name())); err != nil && !errors.Is(err, fs.ErrNotExist) {
			return fmt.Errorf("storage: clear %s: %w", entry.Name(), err)
		}
	}
	return nil
}

// Close is a no-op for the file system driver.
func (f *FS) Close() error { return nil }

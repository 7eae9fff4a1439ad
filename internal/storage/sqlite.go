package storage

import (
	"context"
	"database/sql"
	"encoding/json"
	"errors"
	"fmt"
	"time"

	_ "github.com/mattn/go-sqlite3"

	"github.com/starford/projectsync/internal/apperr"
	"github.com/starford/projectsync/internal/models"
)

const schemaSQL = `
CREATE TABLE IF NOT EXISTS projects (
	id          TEXT PRIMARY KEY,
	name        TEXT NOT NULL DEFAULT '',
	ord         INTEGER NOT NULL DEFAULT 0,
	description TEXT NOT NULL DEFAULT '',
	requests    TEXT NOT NULL DEFAULT '[]',
	created_at  DATETIME NOT NULL DEFAULT CURRENT_TIMESTAMP,
	updated_at  DATETIME NOT NULL DEFAULT CURRENT_TIMESTAMP
);

CREATE INDEX IF NOT EXISTS idx_projects_ord ON projects(ord);
`

// SQLite implements Provider on a SQLite database.
type SQLite struct {
	conn *sql.DB
}

var _ Provider = (*SQLite)(nil)

// OpenSQLite opens (or creates) the database and applies the schema.
func OpenSQLite(dsn string) (*SQLite, error) {
	conn, err := sql.Open("sqlite3", dsn+"?_journal_mode=WAL&_busy_timeout=5000&_foreign_keys=on")
	if err != nil {
		return nil, fmt.Errorf("storage: open db: %w", err)
	}
	if err := conn.Ping(); err != nil {
		conn.Close()
		return nil, fmt.Errorf("storage: ping: %w", err)
	}
	if _, err := conn.Exec(schemaSQL); err != nil {
		conn.Close()
		return nil, fmt.Errorf("storage: apply schema: %w", err)
	}
	return &SQLite{conn: conn}, nil
}

// Close closes the underlying database connection.
func (db *SQLite) Close() error {
	return db.conn.Close()
}

// ListProjects returns all projects in insertion order.
func (db *SQLite) ListProjects(ctx context.Context) ([]models.Project, error) {
	rows, err := db.conn.QueryContext(ctx, `
		SELECT id, name, ord, description, requests, created_at, updated_at
		FROM projects
		ORDER BY rowid
	`)
	if err != nil {
		return nil, fmt.Errorf("storage: list: %w", err)
	}
	defer rows.Close()

	out := []models.Project{}
	for rows.Next() {
		p, err := scanProject(rows)
		if err != nil {
			return nil, err
		}
		out = append(out, *p)
	}
	return out, rows.Err()
}

// GetProject returns one project.
func (db *SQLite) GetProject(ctx context.Context, id string) (*models.Project, error) {
	row := db.conn.QueryRowContext(ctx, `
		SELECT id, name, ord, description, requests, created_at, updated_at
		FROM projects
		WHERE id = ?
	`, id)
	p, err := scanProject(row)
	if errors.Is(err, sql.ErrNoRows) {
		return nil, fmt.Errorf("storage: get %s: %w", id, apperr.ErrNotFound)
	}
	return p, err
}

type scanner interface {
	Scan(dest ...any) error
}

func scanProject(s scanner) (*models.Project, error) {
	var (
		p        models.Project
		requests string
		created  time.Time
		updated  time.Time
	)
	if err := s.Scan(&p.ID, &p.Name, &p.Order, &p.Description, &requests, &created, &updated); err != nil {
		if errors.Is(err, sql.ErrNoRows) {
			return nil, err
		}
		return nil, fmt.Errorf("storage: scan project: %w", err)
	}
	if requests != "" && requests != "[]" {
		if err := json.Unmarshal([]byte(requests), &p.Requests); err != nil {
			return nil, fmt.Errorf("storage: decode requests of %s: %w", p.ID, err)
		}
	}
	p.Created = created
	p.Updated = updated
	return &p, nil
}

// SaveProject inserts or replaces a project within a transaction.
func (db *SQLite) SaveProject(ctx context.Context, p *models.Project) error {
	if p.ID == "" {
		return fmt.Errorf("storage: %w: empty project id", apperr.ErrInvalid)
	}
	tx, err := db.conn.BeginTx(ctx, nil)
	if err != nil {
		return fmt.Errorf("storage: begin tx: %w", err)
	}
	defer tx.Rollback() //nolint:errcheck // best-effort on failure path

	requests := []byte("[]")
	if len(p.Requests) > 0 {
		requests, _ = json.Marshal(p.Requests)
	}

	_, err = tx.ExecContext(ctx, `
		INSERT INTO projects (id, name, ord, description, requests, created_at, updated_at)
		VALUES (?, ?, ?, ?, ?, ?, ?)
		ON CONFLICT(id) DO UPDATE SET
			name        = excluded.name,
			ord         = excluded.ord,
			description = excluded.description,
			requests    = excluded.requests,
			created_at  = excluded.created_at,
			updated_at  = excluded.updated_at
	`, p.ID, p.Name, p.Order, p.Description, string(requests), p.Created.UTC(), p.Updated.UTC())
	if err != nil {
		return fmt.Errorf("storage: upsert project: %w", err)
	}
	return tx.Commit()
}

// DeleteProject removes a project.
func (db *SQLite) DeleteProject(ctx context.Context, id string) error {
	res, err := db.conn.ExecContext(ctx, `DELETE FROM projects WHERE id = ?`, id)
	if err != nil {
		return fmt.Errorf("storage: delete %s: %w", id, err)
	}
	n, err := res.RowsAffected()
	if err != nil {
		return fmt.Errorf("storage: delete %s: %w", id, err)
	}
	if n == 0 {
		return fmt.Errorf("storage: delete %s: %w", id, apperr.ErrNotFound)
	}
	return nil
}

// Clear removes every project.
func (db *SQLite) Clear(ctx context.Context) error {
	if _, err := db.conn.ExecContext(ctx, `DELETE FROM projects`); err != nil {
		return fmt.Errorf("storage: clear: %w", err)
	}
	return nil
}

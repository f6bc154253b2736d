// Package project persists saved creations in a local SQLite database.
package project

import (
	"context"
	"database/sql"
	"errors"
	"fmt"
	"regexp"
	"strings"
	"time"

	"github.com/google/uuid"
	_ "modernc.org/sqlite"
)

// MaxProjects is how many of the most recently updated projects are kept.
const MaxProjects = 50

const defaultTitle = "My Creation"

// ErrNotFound is returned when no project has the requested id.
var ErrNotFound = errors.New("project not found")

// Project is one saved creation. Timestamps are Unix milliseconds.
type Project struct {
	ID        string `json:"id"`
	Title     string `json:"title"`
	Prompt    string `json:"prompt"`
	Code      string `json:"code"`
	CreatedAt int64  `json:"createdAt"`
	UpdatedAt int64  `json:"updatedAt"`
	Thumbnail string `json:"thumbnail,omitempty"`
}

const schema = `
CREATE TABLE IF NOT EXISTS projects (
	id         TEXT PRIMARY KEY,
	title      TEXT NOT NULL,
	prompt     TEXT NOT NULL,
	code       TEXT NOT NULL,
	created_at INTEGER NOT NULL,
	updated_at INTEGER NOT NULL,
	thumbnail  TEXT NOT NULL DEFAULT ''
);
CREATE INDEX IF NOT EXISTS projects_updated_at ON projects(updated_at DESC);
`

// Store is a SQLite-backed project repository.
type Store struct {
	db    *sql.DB
	now   func() time.Time
	newID func() string
}

// Open opens (creating if needed) the database at path. Use ":memory:" for
// a throwaway store.
func Open(ctx context.Context, path string) (*Store, error) {
	db, err := sql.Open("sqlite", path)
	if err != nil {
		return nil, fmt.Errorf("open %s: %w", path, err)
	}
	// A single connection keeps :memory: databases shared and serialises writers.
	db.SetMaxOpenConns(1)
	if _, err := db.ExecContext(ctx, schema); err != nil {
		db.Close()
		return nil, fmt.Errorf("init schema: %w", err)
	}
	return &Store{
		db:    db,
		now:   time.Now,
		newID: func() string { return "project_" + uuid.NewString() },
	}, nil
}

// Close releases the database.
func (s *Store) Close() error { return s.db.Close() }

func (s *Store) millis() int64 { return s.now().UnixMilli() }

// Save updates the code and prompt of existingID when it exists, and
// otherwise creates a new project titled from the prompt.
func (s *Store) Save(ctx context.Context, prompt, code, existingID string) (*Project, error) {
	now := s.millis()
	if existingID != "" {
		res, err := s.db.ExecContext(ctx,
			`UPDATE projects SET code = ?, prompt = ?, updated_at = ? WHERE id = ?`,
			code, prompt, now, existingID)
		if err != nil {
			return nil, fmt.Errorf("update project: %w", err)
		}
		if n, _ := res.RowsAffected(); n > 0 {
			return s.Get(ctx, existingID)
		}
	}

	p := &Project{
		ID:        s.newID(),
		Title:     Title(prompt),
		Prompt:    prompt,
		Code:      code,
		CreatedAt: now,
		UpdatedAt: now,
	}
	tx, err := s.db.BeginTx(ctx, nil)
	if err != nil {
		return nil, fmt.Errorf("begin: %w", err)
	}
	defer tx.Rollback()

	if _, err := tx.ExecContext(ctx,
		`INSERT INTO projects (id, title, prompt, code, created_at, updated_at) VALUES (?, ?, ?, ?, ?, ?)`,
		p.ID, p.Title, p.Prompt, p.Code, p.CreatedAt, p.UpdatedAt); err != nil {
		return nil, fmt.Errorf("insert project: %w", err)
	}
	if _, err := tx.ExecContext(ctx,
		`DELETE FROM projects WHERE id NOT IN (
			SELECT id FROM projects ORDER BY updated_at DESC, created_at DESC, rowid DESC LIMIT ?
		)`, MaxProjects); err != nil {
		return nil, fmt.Errorf("prune projects: %w", err)
	}
	if err := tx.Commit(); err != nil {
		return nil, fmt.Errorf("commit: %w", err)
	}
	return p, nil
}

const selectColumns = `SELECT id, title, prompt, code, created_at, updated_at, thumbnail FROM projects`

type scanner interface {
	Scan(dest ...any) error
}

func scanProject(row scanner) (*Project, error) {
	var p Project
	if err := row.Scan(&p.ID, &p.Title, &p.Prompt, &p.Code, &p.CreatedAt, &p.UpdatedAt, &p.Thumbnail); err != nil {
		return nil, err
	}
	return &p, nil
}

// List returns every project, most recently updated first.
func (s *Store) List(ctx context.Context) ([]*Project, error) {
	rows, err := s.db.QueryContext(ctx, selectColumns+` ORDER BY updated_at DESC, created_at DESC, rowid DESC`)
	if err != nil {
		return nil, fmt.Errorf("list projects: %w", err)
	}
	defer rows.Close()

	projects := []*Project{}
	for rows.Next() {
		p, err := scanProject(rows)
		if err != nil {
			return nil, fmt.Errorf("scan project: %w", err)
		}
		projects = append(projects, p)
	}
	return projects, rows.Err()
}

// Get returns the project with id or ErrNotFound.
func (s *Store) Get(ctx context.Context, id string) (*Project, error) {
	p, err := scanProject(s.db.QueryRowContext(ctx, selectColumns+` WHERE id = ?`, id))
	if errors.Is(err, sql.ErrNoRows) {
		return nil, ErrNotFound
	}
	if err != nil {
		return nil, fmt.Errorf("get project: %w", err)
	}
	return p, nil
}

// UpdateTitle renames a project and bumps its update time.
func (s *Store) UpdateTitle(ctx context.Context, id, title string) error {
	return s.execOne(ctx, `UPDATE projects SET title = ?, updated_at = ? WHERE id = ?`, title, s.millis(), id)
}

// Delete removes a project.
func (s *Store) Delete(ctx context.Context, id string) error {
	return s.execOne(ctx, `DELETE FROM projects WHERE id = ?`, id)
}

// Clear removes every project.
func (s *Store) Clear(ctx context.Context) error {
	if _, err := s.db.ExecContext(ctx, `DELETE FROM projects`); err != nil {
		return fmt.Errorf("clear projects: %w", err)
	}
	return nil
}

func (s *Store) execOne(ctx context.Context, query string, args ...any) error {
	res, err := s.db.ExecContext(ctx, query, args...)
	if err != nil {
		return err
	}
	if n, _ := res.RowsAffected(); n == 0 {
		return ErrNotFound
	}
	return nil
}

var nonWord = regexp.MustCompile(`[^\w\s]`)

// Title derives a project title from a prompt: punctuation removed, at most
// 30 characters, "My Creation" when nothing is left.
func Title(prompt string) string {
	cleaned := []rune(nonWord.ReplaceAllString(strings.TrimSpace(prompt), ""))
	if len(cleaned) > 30 {
		cleaned = cleaned[:30]
	}
	if len(cleaned) == 0 {
		return defaultTitle
	}
	return string(cleaned)
}

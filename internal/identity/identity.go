// Package identity resolves who users are and what they may do in a
// project. Both concerns belong to the wider platform; this package only
// reads them.
package identity

import (
	"context"
	"database/sql"
	"errors"
	"fmt"
	"strings"
)

var ErrNotMember = errors.New("identity: not a project member")

// Schema is the subset of platform tables this service reads. Production
// databases already carry it; local SQLite runs create it via Migrate.
const Schema = `
CREATE TABLE IF NOT EXISTS users (
    id           TEXT PRIMARY KEY,
    display_name TEXT NOT NULL
);

CREATE TABLE IF NOT EXISTS project_members (
    project_id TEXT NOT NULL,
    user_id    TEXT NOT NULL,
    role       TEXT NOT NULL,
    PRIMARY KEY (project_id, user_id)
);
`

func Migrate(ctx context.Context, db *sql.DB) error {
	if _, err := db.ExecContext(ctx, Schema); err != nil {
		return fmt.Errorf("identity: migrate: %w", err)
	}
	return nil
}

// SQLDirectory reads display names from the users table.
type SQLDirectory struct {
	db *sql.DB
}

func NewSQLDirectory(db *sql.DB) *SQLDirectory { return &SQLDirectory{db: db} }

// Names returns the display name of every id it knows. Unknown ids are absent.
func (d *SQLDirectory) Names(ctx context.Context, ids []string) (map[string]string, error) {
	out := make(map[string]string, len(ids))
	if len(ids) == 0 {
		return out, nil
	}

	marks := make([]string, len(ids))
	args := make([]any, len(ids))
	for i, id := range ids {
		marks[i] = fmt.Sprintf("$%d", i+1)
		args[i] = id
	}
	stmt := `SELECT id, display_name FROM users WHERE id IN (` + strings.Join(marks, ", ") + `)`

	rows, err := d.db.QueryContext(ctx, stmt, args...)
	if err != nil {
		return nil, fmt.Errorf("identity.Names: %w", err)
	}
	defer func() { _ = rows.Close() }()

	for rows.Next() {
		var id, name string
		if err := rows.Scan(&id, &name); err != nil {
			return nil, fmt.Errorf("identity.Names: scan: %w", err)
		}
		out[id] = name
	}
	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("identity.Names: rows: %w", err)
	}
	return out, nil
}

// StaticDirectory is a fixed id -> name table for tests and CLI runs.
type StaticDirectory map[string]string

func (d StaticDirectory) Names(_ context.Context, ids []string) (map[string]string, error) {
	out := make(map[string]string, len(ids))
	for _, id := range ids {
		if n, ok := d[id]; ok {
			out[id] = n
		}
	}
	return out, nil
}

// SQLMembership reads project roles from project_members.
type SQLMembership struct {
	db *sql.DB
}

func NewSQLMembership(db *sql.DB) *SQLMembership { return &SQLMembership{db: db} }

func (m *SQLMembership) ProjectRole(ctx context.Context, projectID, userID string) (string, error) {
	const stmt = `SELECT role FROM project_members WHERE project_id = $1 AND user_id = $2`
	var role string
	if err := m.db.QueryRowContext(ctx, stmt, projectID, userID).Scan(&role); err != nil {
		if errors.Is(err, sql.ErrNoRows) {
			return "", ErrNotMember
		}
		return "", fmt.Errorf("identity.ProjectRole: %w", err)
	}
	return role, nil
}

// StaticMembership maps project -> user -> role.
type StaticMembership map[string]map[string]string

func (m StaticMembership) ProjectRole(_ context.Context, projectID, userID string) (string, error) {
	if role, ok := m[projectID][userID]; ok {
		return role, nil
	}
	return "", ErrNotMember
}

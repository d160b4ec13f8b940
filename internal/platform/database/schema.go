package database

import (
	"context"
	"database/sql"
	"fmt"
)

// migrations are applied in order inside one transaction. Every statement is
// idempotent so Migrate can run on each start.
var migrations = []string{
	`CREATE TABLE IF NOT EXISTS users (
		id                    TEXT PRIMARY KEY,
		username              TEXT NOT NULL UNIQUE,
		email                 TEXT NOT NULL UNIQUE,
		hashed_password       TEXT NOT NULL,
		first_name            TEXT NOT NULL DEFAULT '',
		last_name             TEXT NOT NULL DEFAULT '',
		role                  TEXT NOT NULL DEFAULT 'user',
		reset_token_hash      TEXT,
		reset_token_expires   TIMESTAMPTZ,
		last_login            TIMESTAMPTZ,
		created_at            TIMESTAMPTZ NOT NULL DEFAULT NOW(),
		updated_at            TIMESTAMPTZ NOT NULL DEFAULT NOW()
	)`,
	`CREATE UNIQUE INDEX IF NOT EXISTS idx_users_username_lower ON users (LOWER(username))`,
	`CREATE TABLE IF NOT EXISTS projects (
		seq              BIGSERIAL UNIQUE,
		id               TEXT PRIMARY KEY,
		name             TEXT NOT NULL,
		slug             TEXT NOT NULL,
		description      TEXT NOT NULL,
		status           TEXT NOT NULL,
		priority         TEXT NOT NULL,
		owner_id         TEXT NOT NULL,
		tags             TEXT[] NOT NULL DEFAULT '{}',
		progress         INTEGER NOT NULL DEFAULT 0,
		budget_allocated DOUBLE PRECISION NOT NULL DEFAULT 0,
		budget_spent     DOUBLE PRECISION NOT NULL DEFAULT 0,
		start_date       TIMESTAMPTZ,
		end_date         TIMESTAMPTZ,
		created_at       TIMESTAMPTZ NOT NULL,
		updated_at       TIMESTAMPTZ NOT NULL
	)`,
	`CREATE TABLE IF NOT EXISTS project_members (
		project_id TEXT NOT NULL REFERENCES projects(id) ON DELETE CASCADE,
		user_id    TEXT NOT NULL,
		role       TEXT NOT NULL,
		joined_at  TIMESTAMPTZ NOT NULL,
		position   BIGSERIAL,
		PRIMARY KEY (project_id, user_id)
	)`,
	`CREATE TABLE IF NOT EXISTS tasks (
		seq             BIGSERIAL UNIQUE,
		id              TEXT PRIMARY KEY,
		title           TEXT NOT NULL,
		description     TEXT NOT NULL DEFAULT '',
		project_id      TEXT NOT NULL REFERENCES projects(id) ON DELETE CASCADE,
		status          TEXT NOT NULL,
		priority        TEXT NOT NULL,
		type            TEXT NOT NULL,
		assigned_to     TEXT,
		reporter_id     TEXT NOT NULL,
		estimated_hours DOUBLE PRECISION NOT NULL DEFAULT 0,
		actual_hours    DOUBLE PRECISION NOT NULL DEFAULT 0,
		due_date        TIMESTAMPTZ,
		tags            TEXT[] NOT NULL DEFAULT '{}',
		completed_at    TIMESTAMPTZ,
		created_at      TIMESTAMPTZ NOT NULL,
		updated_at      TIMESTAMPTZ NOT NULL
	)`,
	`CREATE INDEX IF NOT EXISTS idx_tasks_project ON tasks(project_id)`,
	`CREATE INDEX IF NOT EXISTS idx_tasks_assigned_to ON tasks(assigned_to)`,
	`CREATE TABLE IF NOT EXISTS task_comments (
		id         TEXT PRIMARY KEY,
		task_id    TEXT NOT NULL REFERENCES tasks(id) ON DELETE CASCADE,
		author_id  TEXT NOT NULL,
		text       TEXT NOT NULL,
		created_at TIMESTAMPTZ NOT NULL,
		position   BIGSERIAL
	)`,
	`CREATE TABLE IF NOT EXISTS task_subtasks (
		id         TEXT PRIMARY KEY,
		task_id    TEXT NOT NULL REFERENCES tasks(id) ON DELETE CASCADE,
		title      TEXT NOT NULL,
		completed  BOOLEAN NOT NULL DEFAULT FALSE,
		created_at TIMESTAMPTZ NOT NULL,
		position   BIGSERIAL
	)`,
}

// Migrate creates the schema used by the Postgres repositories.
func Migrate(ctx context.Context, db *sql.DB) error {
	tx, err := db.BeginTx(ctx, nil)
	if err != nil {
		return fmt.Errorf("begin migration: %w", err)
	}
	defer tx.Rollback()

	for i, stmt := range migrations {
		if _, err := tx.ExecContext(ctx, stmt); err != nil {
			return fmt.Errorf("migration %d: %w", i+1, err)
		}
	}
	if err := tx.Commit(); err != nil {
		return fmt.Errorf("commit migration: %w", err)
	}
	return nil
}

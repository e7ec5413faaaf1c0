package database

import (
	"context"
	"fmt"
	"time"
)

// migration is one forward-only schema step. The DDL is shared by Postgres and SQLite.
type migration struct {
	version    int
	name       string
	statements []string
}

var migrations = []migration{
	{
		version: 1,
		name:    "create_users",
		statements: []string{
			`CREATE TABLE IF NOT EXISTS users (
				id            TEXT PRIMARY KEY,
				name          TEXT NOT NULL,
				email         TEXT NOT NULL UNIQUE,
				mobile        TEXT,
				flat_number   TEXT NOT NULL,
				role          TEXT NOT NULL CHECK (role IN ('owner', 'tenant')),
				status        TEXT NOT NULL CHECK (status IN ('pending', 'approved', 'rejected')),
				password_hash TEXT NOT NULL,
				created_at    TIMESTAMP NOT NULL,
				updated_at    TIMESTAMP NOT NULL
			)`,
			// at most one approved owner and one approved tenant per flat
			`CREATE UNIQUE INDEX IF NOT EXISTS users_approved_flat_role_uidx
				ON users (flat_number, role) WHERE status = 'approved'`,
			`CREATE INDEX IF NOT EXISTS users_status_created_idx ON users (status, created_at)`,
		},
	},
	{
		version: 2,
		name:    "create_visits",
		statements: []string{
			`CREATE TABLE IF NOT EXISTS visits (
				id                   TEXT PRIMARY KEY,
				visitor_name         TEXT NOT NULL,
				visitor_type         TEXT NOT NULL CHECK (visitor_type IN ('Guest', 'Delivery', 'Other')),
				flat_number          TEXT NOT NULL,
				entry_time           TIMESTAMP NOT NULL,
				exit_time            TIMESTAMP,
				status               TEXT NOT NULL CHECK (status IN ('Inside', 'Exited', 'Pre-Approved')),
				gate_pass_code       TEXT,
				approved_by          TEXT NOT NULL,
				gate_pass_expires_at TIMESTAMP,
				CHECK ((status = 'Exited') = (exit_time IS NOT NULL)),
				CHECK ((gate_pass_code IS NULL) = (gate_pass_expires_at IS NULL))
			)`,
			`CREATE UNIQUE INDEX IF NOT EXISTS visits_gate_pass_code_uidx
				ON visits (gate_pass_code) WHERE gate_pass_code IS NOT NULL`,
			`CREATE INDEX IF NOT EXISTS visits_status_idx ON visits (status, entry_time)`,
			`CREATE INDEX IF NOT EXISTS visits_approved_by_idx ON visits (approved_by, entry_time)`,
		},
	},
	{
		version: 3,
		name:    "create_admin_users",
		statements: []string{
			`CREATE TABLE IF NOT EXISTS admin_users (
				id            TEXT PRIMARY KEY,
				email         TEXT NOT NULL UNIQUE,
				password_hash TEXT NOT NULL,
				full_name     TEXT NOT NULL,
				flat_number   TEXT,
				is_active     BOOLEAN NOT NULL,
				last_login_at TIMESTAMP,
				created_at    TIMESTAMP NOT NULL,
				updated_at    TIMESTAMP NOT NULL
			)`,
		},
	},
	{
		version: 4,
		name:    "create_refresh_tokens",
		statements: []string{
			`CREATE TABLE IF NOT EXISTS refresh_tokens (
				id           TEXT PRIMARY KEY,
				principal_id TEXT NOT NULL,
				token_hash   TEXT NOT NULL UNIQUE,
				ip_address   TEXT,
				user_agent   TEXT,
				created_at   TIMESTAMP NOT NULL,
				expires_at   TIMESTAMP NOT NULL,
				last_used_at TIMESTAMP,
				revoked      BOOLEAN NOT NULL,
				revoked_at   TIMESTAMP
			)`,
			`CREATE INDEX IF NOT EXISTS refresh_tokens_principal_idx ON refresh_tokens (principal_id)`,
		},
	},
	{
		version: 5,
		name:    "create_login_attempts_and_audit_logs",
		statements: []string{
			`CREATE TABLE IF NOT EXISTS login_attempts (
				id           TEXT PRIMARY KEY,
				email        TEXT NOT NULL,
				ip_address   TEXT NOT NULL,
				success      BOOLEAN NOT NULL,
				attempted_at TIMESTAMP NOT NULL
			)`,
			`CREATE INDEX IF NOT EXISTS login_attempts_email_idx ON login_attempts (email, attempted_at)`,
			`CREATE INDEX IF NOT EXISTS login_attempts_ip_idx ON login_attempts (ip_address, attempted_at)`,
			`CREATE TABLE IF NOT EXISTS audit_logs (
				id          TEXT PRIMARY KEY,
				actor_id    TEXT,
				action      TEXT NOT NULL,
				entity_type TEXT NOT NULL,
				entity_id   TEXT,
				ip_address  TEXT,
				user_agent  TEXT,
				details     TEXT,
				created_at  TIMESTAMP NOT NULL
			)`,
			`CREATE INDEX IF NOT EXISTS audit_logs_actor_idx ON audit_logs (actor_id, created_at)`,
		},
	},
}

// Migrate applies every migration that has not been recorded in schema_migrations.
// Each migration runs in its own transaction.
func Migrate(ctx context.Context, db *SQLDB) error {
	_, err := db.ExecContext(ctx, `CREATE TABLE IF NOT EXISTS schema_migrations (
		version    INTEGER PRIMARY KEY,
		name       TEXT NOT NULL,
		applied_at TIMESTAMP NOT NULL
	)`)
	if err != nil {
		return fmt.Errorf("failed to create schema_migrations: %w", err)
	}

	var applied []int
	if err := db.SelectContext(ctx, &applied, `SELECT version FROM schema_migrations`); err != nil {
		return fmt.Errorf("failed to read schema_migrations: %w", err)
	}
	done := make(map[int]bool, len(applied))
	for _, v := range applied {
		done[v] = true
	}

	for _, m := range migrations {
		if done[m.version] {
			continue
		}

		tx, err := db.BeginTxx(ctx, nil)
		if err != nil {
			return fmt.Errorf("failed to begin migration %d: %w", m.version, err)
		}

		for _, stmt := range m.statements {
			if _, err := tx.ExecContext(ctx, stmt); err != nil {
				tx.Rollback()
				return fmt.Errorf("migration %d (%s) failed: %w", m.version, m.name, err)
			}
		}

		_, err = tx.ExecContext(ctx,
			tx.Rebind(`INSERT INTO schema_migrations (version, name, applied_at) VALUES (?, ?, ?)`),
			m.version, m.name, time.Now().UTC(),
		)
		if err != nil {
			tx.Rollback()
			return fmt.Errorf("failed to record migration %d: %w", m.version, err)
		}

		if err := tx.Commit(); err != nil {
			return fmt.Errorf("failed to commit migration %d: %w", m.version, err)
		}
	}

	return nil
}

// SchemaVersion returns the highest applied migration version, or 0
func SchemaVersion(ctx context.Context, db DB) (int, error) {
	var version int
	err := db.GetContext(ctx, &version, `SELECT COALESCE(MAX(version), 0) FROM schema_migrations`)
	if err != nil {
		return 0, fmt.Errorf("failed to read schema version: %w", err)
	}
	return version, nil
}

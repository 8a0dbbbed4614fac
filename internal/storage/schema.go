package storage

import (
	"context"
	"fmt"
)

var schemaStatements = []string{
	`CREATE TABLE IF NOT EXISTS users (
		id TEXT PRIMARY KEY,
		created_at TIMESTAMP NOT NULL,
		updated_at TIMESTAMP NOT NULL,
		email TEXT NOT NULL UNIQUE,
		name TEXT NOT NULL DEFAULT '',
		password_hash TEXT NOT NULL,
		is_admin BOOLEAN NOT NULL DEFAULT FALSE,
		is_active BOOLEAN NOT NULL DEFAULT TRUE,
		last_login_at TIMESTAMP NULL
	)`,
	`CREATE TABLE IF NOT EXISTS devices (
		id TEXT PRIMARY KEY,
		created_at TIMESTAMP NOT NULL,
		updated_at TIMESTAMP NOT NULL,
		user_id TEXT NOT NULL REFERENCES users(id) ON DELETE CASCADE,
		name TEXT NOT NULL,
		platform TEXT NOT NULL DEFAULT 'OTHER',
		time_zone TEXT NOT NULL DEFAULT '',
		token_hash TEXT NOT NULL,
		schedule TEXT NOT NULL DEFAULT '{}',
		forced_state TEXT NULL,
		forced_extra TEXT NOT NULL DEFAULT '',
		last_state TEXT NULL,
		last_extra TEXT NOT NULL DEFAULT '',
		last_seen_at TIMESTAMP NULL
	)`,
	`CREATE INDEX IF NOT EXISTS devices_user_id_idx ON devices (user_id)`,
	`CREATE TABLE IF NOT EXISTS app_groups (
		id TEXT PRIMARY KEY,
		created_at TIMESTAMP NOT NULL,
		updated_at TIMESTAMP NOT NULL,
		user_id TEXT NOT NULL REFERENCES users(id) ON DELETE CASCADE,
		name TEXT NOT NULL,
		apps TEXT NOT NULL DEFAULT '[]',
		UNIQUE (user_id, name)
	)`,
	`CREATE TABLE IF NOT EXISTS usage_reports (
		id TEXT PRIMARY KEY,
		created_at TIMESTAMP NOT NULL,
		device_id TEXT NOT NULL REFERENCES devices(id) ON DELETE CASCADE,
		reported_at TIMESTAMP NOT NULL,
		usage TEXT NOT NULL DEFAULT '[]',
		state TEXT NOT NULL,
		state_extra TEXT NOT NULL DEFAULT ''
	)`,
	`CREATE INDEX IF NOT EXISTS usage_reports_device_idx ON usage_reports (device_id, reported_at)`,
	`CREATE TABLE IF NOT EXISTS event_logs (
		id TEXT PRIMARY KEY,
		created_at TIMESTAMP NOT NULL,
		device_id TEXT NULL,
		user_id TEXT NULL,
		type TEXT NOT NULL,
		description TEXT NOT NULL DEFAULT '',
		details TEXT NULL
	)`,
	`CREATE INDEX IF NOT EXISTS event_logs_device_idx ON event_logs (device_id, created_at)`,
}

// Migrate creates missing tables and indexes
func (s *SQLStore) Migrate(ctx context.Context) error {
	for i, stmt := range schemaStatements {
		if _, err := s.exec(ctx, stmt); err != nil {
			return fmt.Errorf("migration statement %d: %w", i, err)
		}
	}
	return nil
}

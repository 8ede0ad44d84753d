package store

import (
	"fmt"
)

func (s *Store) migrate() error {
	return s.migrateV1()
}

func (s *Store) migrateV1() error {
	schema := `
	CREATE TABLE IF NOT EXISTS projects (
		id             TEXT PRIMARY KEY,
		name           TEXT NOT NULL,
		status         TEXT NOT NULL DEFAULT 'initializing',
		progress       REAL NOT NULL DEFAULT 0,
		current_step   TEXT NOT NULL DEFAULT '',
		created_files  TEXT NOT NULL DEFAULT '[]',
		modified_files TEXT NOT NULL DEFAULT '[]',
		errors         TEXT NOT NULL DEFAULT '[]',
		logs           TEXT NOT NULL DEFAULT '[]',
		updated_at     INTEGER NOT NULL
	);

	CREATE INDEX IF NOT EXISTS idx_projects_status ON projects(status);
	CREATE INDEX IF NOT EXISTS idx_projects_updated ON projects(updated_at);

	CREATE TABLE IF NOT EXISTS meta (
		key   TEXT PRIMARY KEY,
		value TEXT NOT NULL
	);

	INSERT OR REPLACE INTO meta(key, value) VALUES ('schema_version', '1');
	`

	if _, err := s.db.Exec(schema); err != nil {
		return fmt.Errorf("failed to execute migration v1: %w", err)
	}

	return nil
}

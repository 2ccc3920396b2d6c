package store

import (
	"context"
	"errors"
	"fmt"
)

var schemaStatements = []string{
	`CREATE TABLE IF NOT EXISTS projects (
		id TEXT PRIMARY KEY,
		name TEXT NOT NULL,
		owner_login TEXT NOT NULL,
		description TEXT,
		stargazer_count INTEGER,
		fork_count INTEGER,
		primary_language TEXT,
		created_at INTEGER,
		pushed_at INTEGER,
		license_name TEXT,
		is_archived INTEGER,
		is_disabled INTEGER,
		is_fork INTEGER,
		url TEXT,
		last_extracted_at INTEGER NOT NULL
	);`,
	`CREATE INDEX IF NOT EXISTS idx_projects_owner_name ON projects(owner_login COLLATE NOCASE, name COLLATE NOCASE);`,
	`CREATE TABLE IF NOT EXISTS project_topics (
		project_id TEXT NOT NULL REFERENCES projects(id) ON DELETE CASCADE,
		topic TEXT NOT NULL,
		PRIMARY KEY (project_id, topic)
	);`,
	// build config and dependency tables are created for downstream analysis
	// jobs that share the database; extraction does not write them
	`CREATE TABLE IF NOT EXISTS project_build_configs (
		id INTEGER PRIMARY KEY AUTOINCREMENT,
		project_id TEXT NOT NULL REFERENCES projects(id) ON DELETE CASCADE,
		file_path TEXT NOT NULL,
		config_type TEXT,
		parsed_content TEXT,
		raw_content TEXT,
		UNIQUE (project_id, file_path)
	);`,
	`CREATE TABLE IF NOT EXISTS project_dependencies (
		id INTEGER PRIMARY KEY AUTOINCREMENT,
		project_id TEXT NOT NULL REFERENCES projects(id) ON DELETE CASCADE,
		package_name TEXT NOT NULL,
		version TEXT,
		dependency_type TEXT,
		UNIQUE (project_id, package_name, dependency_type)
	);`,
	`CREATE TABLE IF NOT EXISTS quota_snapshots (
		slot INTEGER PRIMARY KEY,
		quota_limit INTEGER NOT NULL,
		cost INTEGER NOT NULL,
		remaining INTEGER NOT NULL,
		reset_at INTEGER,
		observed_at INTEGER NOT NULL
	);`,
	`CREATE TABLE IF NOT EXISTS extraction_runs (
		id TEXT PRIMARY KEY,
		source TEXT,
		started_at INTEGER NOT NULL,
		finished_at INTEGER,
		total INTEGER NOT NULL DEFAULT 0,
		loaded INTEGER NOT NULL DEFAULT 0,
		skipped INTEGER NOT NULL DEFAULT 0,
		failed INTEGER NOT NULL DEFAULT 0,
		failures TEXT
	);`,
	`CREATE INDEX IF NOT EXISTS idx_extraction_runs_started ON extraction_runs(started_at);`,
}

// Migrate ensures the required database tables exist.
func (s *Store) Migrate(ctx context.Context) error {
	if s == nil || s.DB == nil {
		return errors.New("store is not initialized")
	}

	if ctx == nil {
		ctx = context.Background()
	}

	for _, stmt := range schemaStatements {
		if _, err := s.DB.ExecContext(ctx, stmt); err != nil {
			return fmt.Errorf("store migration failed: %w", err)
		}
	}

	return nil
}

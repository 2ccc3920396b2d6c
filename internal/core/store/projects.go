package store

import (
	"context"
	"database/sql"
	"errors"
	"fmt"
	"strings"
	"time"

	"github.com/namelens/repolens/internal/core"
)

const upsertProjectSQL = `
	INSERT INTO projects (
		id, name, owner_login, description, stargazer_count, fork_count,
		primary_language, created_at, pushed_at, license_name,
		is_archived, is_disabled, is_fork, url, last_extracted_at
	)
	VALUES (?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?)
	ON CONFLICT(id) DO UPDATE SET
		name = excluded.name,
		owner_login = excluded.owner_login,
		description = excluded.description,
		stargazer_count = excluded.stargazer_count,
		fork_count = excluded.fork_count,
		primary_language = excluded.primary_language,
		created_at = excluded.created_at,
		pushed_at = excluded.pushed_at,
		license_name = excluded.license_name,
		is_archived = excluded.is_archived,
		is_disabled = excluded.is_disabled,
		is_fork = excluded.is_fork,
		url = excluded.url,
		last_extracted_at = excluded.last_extracted_at
`

const insertTopicSQL = `
	INSERT INTO project_topics (project_id, topic)
	VALUES (?, ?)
	ON CONFLICT(project_id, topic) DO NOTHING
`

// UpsertProjects writes a batch of projects and their topics in one
// transaction. Existing rows are updated in place.
func (s *Store) UpsertProjects(ctx context.Context, projects []core.Project) error {
	if s == nil || s.DB == nil {
		return errors.New("store is not initialized")
	}
	if ctx == nil {
		ctx = context.Background()
	}
	if len(projects) == 0 {
		return nil
	}

	tx, err := s.DB.BeginTx(ctx, nil)
	if err != nil {
		return fmt.Errorf("begin project upsert: %w", err)
	}
	defer tx.Rollback() // nolint:errcheck // no-op after commit

	for _, project := range projects {
		if strings.TrimSpace(project.ID) == "" {
			return errors.New("project id is required")
		}

		_, err := tx.ExecContext(ctx, upsertProjectSQL,
			project.ID,
			project.Name,
			project.OwnerLogin,
			nullString(project.Description),
			project.StargazerCount,
			project.ForkCount,
			nullString(project.PrimaryLanguage),
			nullUnix(project.CreatedAt),
			nullUnix(project.PushedAt),
			nullString(project.LicenseName),
			boolToInt(project.IsArchived),
			boolToInt(project.IsDisabled),
			boolToInt(project.IsFork),
			project.URL,
			project.LastExtractedAt.UTC().Unix(),
		)
		if err != nil {
			return fmt.Errorf("upsert project %s: %w", project.ID, err)
		}

		for _, topic := range project.Topics {
			if _, err := tx.ExecContext(ctx, insertTopicSQL, project.ID, topic); err != nil {
				return fmt.Errorf("insert topic %s for %s: %w", topic, project.ID, err)
			}
		}
	}

	if err := tx.Commit(); err != nil {
		return fmt.Errorf("commit project upsert: %w", err)
	}
	return nil
}

// GetProject returns a stored project by GitHub node id, or nil when absent.
func (s *Store) GetProject(ctx context.Context, id string) (*core.Project, error) {
	if s == nil || s.DB == nil {
		return nil, errors.New("store is not initialized")
	}
	if ctx == nil {
		ctx = context.Background()
	}

	id = strings.TrimSpace(id)
	if id == "" {
		return nil, errors.New("project id is required")
	}

	var (
		project         core.Project
		description     sql.NullString
		stargazers      sql.NullInt64
		forks           sql.NullInt64
		language        sql.NullString
		createdAt       sql.NullInt64
		pushedAt        sql.NullInt64
		license         sql.NullString
		archived        sql.NullInt64
		disabled        sql.NullInt64
		fork            sql.NullInt64
		url             sql.NullString
		lastExtractedAt int64
	)

	row := s.DB.QueryRowContext(ctx, `
		SELECT id, name, owner_login, description, stargazer_count, fork_count,
			primary_language, created_at, pushed_at, license_name,
			is_archived, is_disabled, is_fork, url, last_extracted_at
		FROM projects
		WHERE id = ?
	`, id)
	err := row.Scan(&project.ID, &project.Name, &project.OwnerLogin, &description, &stargazers, &forks,
		&language, &createdAt, &pushedAt, &license, &archived, &disabled, &fork, &url, &lastExtractedAt)
	if err != nil {
		if errors.Is(err, sql.ErrNoRows) {
			return nil, nil
		}
		return nil, fmt.Errorf("fetch project: %w", err)
	}

	project.Description = stringPtr(description)
	project.StargazerCount = int(stargazers.Int64)
	project.ForkCount = int(forks.Int64)
	project.PrimaryLanguage = stringPtr(language)
	project.CreatedAt = timePtr(createdAt)
	project.PushedAt = timePtr(pushedAt)
	project.LicenseName = stringPtr(license)
	project.IsArchived = archived.Int64 != 0
	project.IsDisabled = disabled.Int64 != 0
	project.IsFork = fork.Int64 != 0
	project.URL = url.String
	project.LastExtractedAt = time.Unix(lastExtractedAt, 0).UTC()

	topics, err := s.projectTopics(ctx, project.ID)
	if err != nil {
		return nil, err
	}
	project.Topics = topics

	return &project, nil
}

// LastExtracted returns when owner/name was last written, or nil if it never was.
// Matching is case-insensitive like GitHub's own lookup.
func (s *Store) LastExtracted(ctx context.Context, owner, name string) (*time.Time, error) {
	if s == nil || s.DB == nil {
		return nil, errors.New("store is not initialized")
	}
	if ctx == nil {
		ctx = context.Background()
	}

	var extracted int64
	row := s.DB.QueryRowContext(ctx, `
		SELECT last_extracted_at
		FROM projects
		WHERE owner_login = ? COLLATE NOCASE AND name = ? COLLATE NOCASE
		ORDER BY last_extracted_at DESC
		LIMIT 1
	`, strings.TrimSpace(owner), strings.TrimSpace(name))
	if err := row.Scan(&extracted); err != nil {
		if errors.Is(err, sql.ErrNoRows) {
			return nil, nil
		}
		return nil, fmt.Errorf("fetch last extraction: %w", err)
	}

	value := time.Unix(extracted, 0).UTC()
	return &value, nil
}

// CountProjects returns the number of stored projects.
func (s *Store) CountProjects(ctx context.Context) (int, error) {
	if s == nil || s.DB == nil {
		return 0, errors.New("store is not initialized")
	}
	if ctx == nil {
		ctx = context.Background()
	}

	var count int
	if err := s.DB.QueryRowContext(ctx, `SELECT COUNT(*) FROM projects`).Scan(&count); err != nil {
		return 0, fmt.Errorf("count projects: %w", err)
	}
	return count, nil
}

func (s *Store) projectTopics(ctx context.Context, id string) ([]string, error) {
	rows, err := s.DB.QueryContext(ctx, `
		SELECT topic FROM project_topics WHERE project_id = ? ORDER BY topic
	`, id)
	if err != nil {
		return nil, fmt.Errorf("list topics: %w", err)
	}
	defer rows.Close() // nolint:errcheck // best-effort cleanup on SQL rows

	var topics []string
	for rows.Next() {
		var topic string
		if err := rows.Scan(&topic); err != nil {
			return nil, fmt.Errorf("scan topic: %w", err)
		}
		topics = append(topics, topic)
	}
	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("list topics: %w", err)
	}
	return topics, nil
}

func nullString(value *string) sql.NullString {
	if value == nil {
		return sql.NullString{}
	}
	return sql.NullString{String: *value, Valid: true}
}

func nullUnix(value *time.Time) sql.NullInt64 {
	if value == nil {
		return sql.NullInt64{}
	}
	return sql.NullInt64{Int64: value.UTC().Unix(), Valid: true}
}

func stringPtr(value sql.NullString) *string {
	if !value.Valid {
		return nil
	}
	out := value.String
	return &out
}

func timePtr(value sql.NullInt64) *time.Time {
	if !value.Valid {
		return nil
	}
	out := time.Unix(value.Int64, 0).UTC()
	return &out
}

func boolToInt(value bool) int {
	if value {
		return 1
	}
	return 0
}

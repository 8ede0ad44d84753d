package store

import (
	"database/sql"
	"encoding/json"
	"fmt"
	"sort"
	"time"

	"github.com/p-blackswan/livetrack/internal/models"
)

// patchColumns is the allowlist for UpdateProjectFields. Slice-valued
// fields are JSON-encoded before writing.
var patchColumns = map[string]bool{
	"name":           true,
	"status":         true,
	"progress":       true,
	"current_step":   true,
	"created_files":  true,
	"modified_files": true,
	"errors":         true,
	"logs":           true,
}

// SaveProject inserts or replaces a full project snapshot.
func (s *Store) SaveProject(p models.ProjectState) error {
	s.mu.Lock()
	defer s.mu.Unlock()

	createdFiles, err := encodeList(p.CreatedFiles)
	if err != nil {
		return err
	}
	modifiedFiles, err := encodeList(p.ModifiedFiles)
	if err != nil {
		return err
	}
	errList, err := encodeList(p.Errors)
	if err != nil {
		return err
	}
	logs, err := encodeList(p.Logs)
	if err != nil {
		return err
	}

	query := `
	INSERT OR REPLACE INTO projects (
		id, name, status, progress, current_step,
		created_files, modified_files, errors, logs, updated_at
	) VALUES (?, ?, ?, ?, ?, ?, ?, ?, ?, ?)
	`

	_, err = s.db.Exec(query,
		p.ID, p.Name, string(p.Status), p.Progress, p.CurrentStep,
		createdFiles, modifiedFiles, errList, logs,
		p.Timestamp.UnixMilli(),
	)
	if err != nil {
		return fmt.Errorf("failed to save project: %w", err)
	}
	return nil
}

// UpdateProjectFields applies a partial update to a project row. Field
// names follow the wire encoding; unknown fields are rejected.
func (s *Store) UpdateProjectFields(id string, fields map[string]any) error {
	if len(fields) == 0 {
		return nil
	}

	s.mu.Lock()
	defer s.mu.Unlock()

	names := make([]string, 0, len(fields))
	for name := range fields {
		if !patchColumns[name] {
			return fmt.Errorf("unknown project field: %s", name)
		}
		names = append(names, name)
	}
	sort.Strings(names)

	query := "UPDATE projects SET "
	args := make([]any, 0, len(names)+2)
	for i, name := range names {
		if i > 0 {
			query += ", "
		}
		query += name + " = ?"

		value := fields[name]
		if list, ok := value.([]string); ok {
			encoded, err := encodeList(list)
			if err != nil {
				return err
			}
			value = encoded
		}
		args = append(args, value)
	}
	query += ", updated_at = ? WHERE id = ?"
	args = append(args, time.Now().UnixMilli(), id)

	result, err := s.db.Exec(query, args...)
	if err != nil {
		return fmt.Errorf("failed to patch project: %w", err)
	}

	rows, err := result.RowsAffected()
	if err != nil {
		return fmt.Errorf("failed to get rows affected: %w", err)
	}
	if rows == 0 {
		return fmt.Errorf("project not found: %s", id)
	}
	return nil
}

// GetProject retrieves one project row, or nil if absent.
func (s *Store) GetProject(id string) (*models.ProjectState, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()

	row := s.db.QueryRow(`
	SELECT id, name, status, progress, current_step,
	       created_files, modified_files, errors, logs, updated_at
	FROM projects WHERE id = ?
	`, id)

	p, err := scanProject(row)
	if err == sql.ErrNoRows {
		return nil, nil
	}
	if err != nil {
		return nil, fmt.Errorf("failed to get project: %w", err)
	}
	return p, nil
}

// ListProjects returns all persisted projects, oldest first. Used to
// rehydrate the registry at startup.
func (s *Store) ListProjects() ([]models.ProjectState, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()

	rows, err := s.db.Query(`
	SELECT id, name, status, progress, current_step,
	       created_files, modified_files, errors, logs, updated_at
	FROM projects ORDER BY updated_at ASC
	`)
	if err != nil {
		return nil, fmt.Errorf("failed to list projects: %w", err)
	}
	defer rows.Close()

	var projects []models.ProjectState
	for rows.Next() {
		p, err := scanProject(rows)
		if err != nil {
			return nil, fmt.Errorf("failed to scan project: %w", err)
		}
		projects = append(projects, *p)
	}
	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("error iterating projects: %w", err)
	}
	return projects, nil
}

type rowScanner interface {
	Scan(dest ...any) error
}

func scanProject(row rowScanner) (*models.ProjectState, error) {
	var (
		p             models.ProjectState
		status        string
		createdFiles  string
		modifiedFiles string
		errList       string
		logs          string
		updatedAt     int64
	)

	err := row.Scan(
		&p.ID, &p.Name, &status, &p.Progress, &p.CurrentStep,
		&createdFiles, &modifiedFiles, &errList, &logs, &updatedAt,
	)
	if err != nil {
		return nil, err
	}

	p.Status = models.Status(status)
	p.Timestamp = time.UnixMilli(updatedAt).UTC()

	if err := decodeList(createdFiles, &p.CreatedFiles); err != nil {
		return nil, err
	}
	if err := decodeList(modifiedFiles, &p.ModifiedFiles); err != nil {
		return nil, err
	}
	if err := decodeList(errList, &p.Errors); err != nil {
		return nil, err
	}
	if err := decodeList(logs, &p.Logs); err != nil {
		return nil, err
	}

	return &p, nil
}

func encodeList(list []string) (string, error) {
	if list == nil {
		list = []string{}
	}
	b, err := json.Marshal(list)
	if err != nil {
		return "", fmt.Errorf("failed to encode list: %w", err)
	}
	return string(b), nil
}

func decodeList(raw string, dst *[]string) error {
	if raw == "" {
		*dst = nil
		return nil
	}
	if err := json.Unmarshal([]byte(raw), dst); err != nil {
		return fmt.Errorf("failed to decode list: %w", err)
	}
	return nil
}

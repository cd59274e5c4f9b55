package store

import (
	"database/sql"
	"fmt"
	"strings"
	"time"

	"github.com/mytalk-labs/mytalk/pkg/core"
)

// CreateScript inserts a new script.
func (s *SQLStore) CreateScript(script *core.Script) error {
	if s.db == nil {
		return fmt.Errorf("database not opened")
	}

	if script.ID == "" {
		script.ID = generateID()
	}
	if script.Category == "" {
		script.Category = core.CategoryEveryday
	}
	now := time.Now().UTC()
	if script.CreatedAt.IsZero() {
		script.CreatedAt = now
	}
	script.UpdatedAt = now

	_, err := s.db.Exec(s.q(
		`INSERT INTO scripts (id, title, title_ko, category, source_kind, source, project_dir, created_at, updated_at)
		 VALUES (?, ?, ?, ?, ?, ?, ?, ?, ?)`),
		script.ID, script.Title, script.TitleKo, script.Category, script.SourceKind,
		script.Source, script.ProjectDir, script.CreatedAt, script.UpdatedAt,
	)
	if err != nil {
		return fmt.Errorf("failed to create script: %w", err)
	}
	return nil
}

// GetScript retrieves a script by ID.
func (s *SQLStore) GetScript(id string) (*core.Script, error) {
	if s.db == nil {
		return nil, fmt.Errorf("database not opened")
	}

	script := &core.Script{}
	err := s.db.QueryRow(s.q(
		`SELECT id, title, title_ko, category, source_kind, source, project_dir, created_at, updated_at
		 FROM scripts WHERE id = ?`),
		id,
	).Scan(&script.ID, &script.Title, &script.TitleKo, &script.Category, &script.SourceKind,
		&script.Source, &script.ProjectDir, &script.CreatedAt, &script.UpdatedAt)

	if err == sql.ErrNoRows {
		return nil, fmt.Errorf("script not found: %s", id)
	}
	if err != nil {
		return nil, fmt.Errorf("failed to get script: %w", err)
	}
	return script, nil
}

// ListScripts retrieves scripts newest first, optionally filtered by
// category and a search query over titles and version content.
func (s *SQLStore) ListScripts(opts core.SearchOptions) ([]*core.Script, error) {
	if s.db == nil {
		return nil, fmt.Errorf("database not opened")
	}

	query := `SELECT id, title, title_ko, category, source_kind, source, project_dir, created_at, updated_at FROM scripts`
	var conds []string
	var args []any

	if opts.Category != "" {
		conds = append(conds, "category = ?")
		args = append(args, opts.Category)
	}
	if opts.Query != "" {
		needle := "%" + strings.ToLower(opts.Query) + "%"
		conds = append(conds, `(LOWER(title) LIKE ? OR LOWER(title_ko) LIKE ?
			OR id IN (SELECT script_id FROM versions WHERE LOWER(content) LIKE ?))`)
		args = append(args, needle, needle, needle)
	}
	if len(conds) > 0 {
		query += " WHERE " + strings.Join(conds, " AND ")
	}
	query += " ORDER BY created_at DESC"
	if opts.Limit > 0 {
		query += " LIMIT ?"
		args = append(args, opts.Limit)
	}

	rows, err := s.db.Query(s.q(query), args...)
	if err != nil {
		return nil, fmt.Errorf("failed to list scripts: %w", err)
	}
	defer rows.Close()

	var scripts []*core.Script
	for rows.Next() {
		script := &core.Script{}
		err := rows.Scan(&script.ID, &script.Title, &script.TitleKo, &script.Category, &script.SourceKind,
			&script.Source, &script.ProjectDir, &script.CreatedAt, &script.UpdatedAt)
		if err != nil {
			return nil, fmt.Errorf("failed to scan script: %w", err)
		}
		scripts = append(scripts, script)
	}
	return scripts, rows.Err()
}

// UpdateScript updates a script's mutable fields.
func (s *SQLStore) UpdateScript(script *core.Script) error {
	if s.db == nil {
		return fmt.Errorf("database not opened")
	}

	script.UpdatedAt = time.Now().UTC()
	result, err := s.db.Exec(s.q(
		`UPDATE scripts SET title = ?, title_ko = ?, category = ?, project_dir = ?, updated_at = ? WHERE id = ?`),
		script.Title, script.TitleKo, script.Category, script.ProjectDir, script.UpdatedAt, script.ID,
	)
	if err != nil {
		return fmt.Errorf("failed to update script: %w", err)
	}

	rowsAffected, _ := result.RowsAffected()
	if rowsAffected == 0 {
		return fmt.Errorf("script not found: %s", script.ID)
	}
	return nil
}

// DeleteScript removes a script and, via cascade, its versions.
func (s *SQLStore) DeleteScript(id string) error {
	if s.db == nil {
		return fmt.Errorf("database not opened")
	}

	result, err := s.db.Exec(s.q(`DELETE FROM scripts WHERE id = ?`), id)
	if err != nil {
		return fmt.Errorf("failed to delete script: %w", err)
	}

	rowsAffected, _ := result.RowsAffected()
	if rowsAffected == 0 {
		return fmt.Errorf("script not found: %s", id)
	}
	return nil
}

// SaveVersion inserts a version or, when one already exists for the
// script and kind, replaces its content in place keeping the ID.
func (s *SQLStore) SaveVersion(v *core.Version) error {
	if s.db == nil {
		return fmt.Errorf("database not opened")
	}

	existing, err := s.GetVersion(v.ScriptID, v.Kind)
	if err != nil {
		return fmt.Errorf("failed to check existing version: %w", err)
	}

	if existing != nil {
		v.ID = existing.ID
		v.CreatedAt = existing.CreatedAt

		_, err := s.db.Exec(s.q(
			`UPDATE versions SET content = ?, translation = ?, audio_path = ?, voice = ?, engine = ? WHERE id = ?`),
			v.Content, v.Translation, v.AudioPath, v.Voice, v.Engine, v.ID,
		)
		if err != nil {
			return fmt.Errorf("failed to update version: %w", err)
		}
		return nil
	}

	if v.ID == "" {
		v.ID = generateID()
	}
	v.CreatedAt = time.Now().UTC()

	_, err = s.db.Exec(s.q(
		`INSERT INTO versions (id, script_id, kind, content, translation, audio_path, voice, engine, created_at)
		 VALUES (?, ?, ?, ?, ?, ?, ?, ?, ?)`),
		v.ID, v.ScriptID, v.Kind, v.Content, v.Translation, v.AudioPath, v.Voice, v.Engine, v.CreatedAt,
	)
	if err != nil {
		return fmt.Errorf("failed to insert version: %w", err)
	}
	return nil
}

// GetVersion retrieves one version of a script. Returns nil without
// error when the script has no version of that kind.
func (s *SQLStore) GetVersion(scriptID string, kind core.VersionKind) (*core.Version, error) {
	if s.db == nil {
		return nil, fmt.Errorf("database not opened")
	}

	v := &core.Version{}
	err := s.db.QueryRow(s.q(
		`SELECT id, script_id, kind, content, translation, audio_path, voice, engine, created_at
		 FROM versions WHERE script_id = ? AND kind = ?`),
		scriptID, kind,
	).Scan(&v.ID, &v.ScriptID, &v.Kind, &v.Content, &v.Translation, &v.AudioPath, &v.Voice, &v.Engine, &v.CreatedAt)

	if err == sql.ErrNoRows {
		return nil, nil
	}
	if err != nil {
		return nil, fmt.Errorf("failed to get version: %w", err)
	}
	return v, nil
}

// ListVersions retrieves all versions of a script, original first.
func (s *SQLStore) ListVersions(scriptID string) ([]*core.Version, error) {
	if s.db == nil {
		return nil, fmt.Errorf("database not opened")
	}

	rows, err := s.db.Query(s.q(
		`SELECT id, script_id, kind, content, translation, audio_path, voice, engine, created_at
		 FROM versions WHERE script_id = ?
		 ORDER BY CASE kind WHEN 'original' THEN 0 ELSE 1 END, kind`),
		scriptID,
	)
	if err != nil {
		return nil, fmt.Errorf("failed to list versions: %w", err)
	}
	defer rows.Close()

	var versions []*core.Version
	for rows.Next() {
		v := &core.Version{}
		err := rows.Scan(&v.ID, &v.ScriptID, &v.Kind, &v.Content, &v.Translation, &v.AudioPath, &v.Voice, &v.Engine, &v.CreatedAt)
		if err != nil {
			return nil, fmt.Errorf("failed to scan version: %w", err)
		}
		versions = append(versions, v)
	}
	return versions, rows.Err()
}

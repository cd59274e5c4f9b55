package store

import (
	"database/sql"
	"fmt"
	"time"

	"github.com/mytalk-labs/mytalk/pkg/core"
)

// CreateRun starts a new creation pipeline run.
func (s *SQLStore) CreateRun() (*core.Run, error) {
	if s.db == nil {
		return nil, fmt.Errorf("database not opened")
	}

	run := &core.Run{
		ID:        generateID(),
		Status:    core.RunStatusRunning,
		StartedAt: time.Now().UTC(),
	}

	_, err := s.db.Exec(s.q(
		`INSERT INTO runs (id, status, started_at) VALUES (?, ?, ?)`),
		run.ID, run.Status, run.StartedAt,
	)
	if err != nil {
		return nil, fmt.Errorf("failed to create run: %w", err)
	}
	return run, nil
}

// AttachRunScript links a run to the script it produced.
func (s *SQLStore) AttachRunScript(runID, scriptID string) error {
	if s.db == nil {
		return fmt.Errorf("database not opened")
	}

	result, err := s.db.Exec(s.q(`UPDATE runs SET script_id = ? WHERE id = ?`), scriptID, runID)
	if err != nil {
		return fmt.Errorf("failed to attach script to run: %w", err)
	}

	rowsAffected, _ := result.RowsAffected()
	if rowsAffected == 0 {
		return fmt.Errorf("run not found: %s", runID)
	}
	return nil
}

// CompleteRun marks a run as finished with the given status.
func (s *SQLStore) CompleteRun(id string, status core.RunStatus, errMsg string) error {
	if s.db == nil {
		return fmt.Errorf("database not opened")
	}

	now := time.Now().UTC()
	var errorPtr *string
	if errMsg != "" {
		errorPtr = &errMsg
	}

	result, err := s.db.Exec(s.q(
		`UPDATE runs SET status = ?, completed_at = ?, error = ? WHERE id = ?`),
		status, now, errorPtr, id,
	)
	if err != nil {
		return fmt.Errorf("failed to complete run: %w", err)
	}

	rowsAffected, _ := result.RowsAffected()
	if rowsAffected == 0 {
		return fmt.Errorf("run not found: %s", id)
	}
	return nil
}

// GetRun retrieves a run by ID.
func (s *SQLStore) GetRun(id string) (*core.Run, error) {
	if s.db == nil {
		return nil, fmt.Errorf("database not opened")
	}

	run := &core.Run{}
	var scriptID sql.NullString
	var completedAt sql.NullTime
	var errMsg sql.NullString

	err := s.db.QueryRow(s.q(
		`SELECT id, script_id, status, started_at, completed_at, error FROM runs WHERE id = ?`),
		id,
	).Scan(&run.ID, &scriptID, &run.Status, &run.StartedAt, &completedAt, &errMsg)

	if err == sql.ErrNoRows {
		return nil, fmt.Errorf("run not found: %s", id)
	}
	if err != nil {
		return nil, fmt.Errorf("failed to get run: %w", err)
	}

	if scriptID.Valid {
		run.ScriptID = scriptID.String
	}
	if completedAt.Valid {
		run.CompletedAt = &completedAt.Time
	}
	if errMsg.Valid {
		run.Error = errMsg.String
	}
	return run, nil
}

// ListRuns retrieves the most recent runs, newest first.
func (s *SQLStore) ListRuns(limit int) ([]*core.Run, error) {
	if s.db == nil {
		return nil, fmt.Errorf("database not opened")
	}
	if limit <= 0 {
		limit = 20
	}

	rows, err := s.db.Query(s.q(
		`SELECT id, script_id, status, started_at, completed_at, error
		 FROM runs ORDER BY started_at DESC LIMIT ?`),
		limit,
	)
	if err != nil {
		return nil, fmt.Errorf("failed to list runs: %w", err)
	}
	defer rows.Close()

	var runs []*core.Run
	for rows.Next() {
		run := &core.Run{}
		var scriptID sql.NullString
		var completedAt sql.NullTime
		var errMsg sql.NullString

		err := rows.Scan(&run.ID, &scriptID, &run.Status, &run.StartedAt, &completedAt, &errMsg)
		if err != nil {
			return nil, fmt.Errorf("failed to scan run: %w", err)
		}

		if scriptID.Valid {
			run.ScriptID = scriptID.String
		}
		if completedAt.Valid {
			run.CompletedAt = &completedAt.Time
		}
		if errMsg.Valid {
			run.Error = errMsg.String
		}
		runs = append(runs, run)
	}
	return runs, rows.Err()
}

// RecordStep records the start of a pipeline step.
func (s *SQLStore) RecordStep(step *core.StepRun) error {
	if s.db == nil {
		return fmt.Errorf("database not opened")
	}

	if step.ID == "" {
		step.ID = generateID()
	}
	if step.Status == "" {
		step.Status = core.StepStatusRunning
	}
	if step.StartedAt.IsZero() {
		step.StartedAt = time.Now().UTC()
	}

	_, err := s.db.Exec(s.q(
		`INSERT INTO step_runs (id, run_id, name, status, started_at) VALUES (?, ?, ?, ?, ?)`),
		step.ID, step.RunID, step.Name, step.Status, step.StartedAt,
	)
	if err != nil {
		return fmt.Errorf("failed to record step: %w", err)
	}
	return nil
}

// UpdateStep finishes a pipeline step with the given status.
func (s *SQLStore) UpdateStep(id string, status core.StepStatus, errMsg string) error {
	if s.db == nil {
		return fmt.Errorf("database not opened")
	}

	now := time.Now().UTC()
	var errorPtr *string
	if errMsg != "" {
		errorPtr = &errMsg
	}

	result, err := s.db.Exec(s.q(
		`UPDATE step_runs SET status = ?, completed_at = ?, error = ? WHERE id = ?`),
		status, now, errorPtr, id,
	)
	if err != nil {
		return fmt.Errorf("failed to update step: %w", err)
	}

	rowsAffected, _ := result.RowsAffected()
	if rowsAffected == 0 {
		return fmt.Errorf("step not found: %s", id)
	}
	return nil
}

// StepsForRun retrieves all steps of a run in execution order.
func (s *SQLStore) StepsForRun(runID string) ([]*core.StepRun, error) {
	if s.db == nil {
		return nil, fmt.Errorf("database not opened")
	}

	rows, err := s.db.Query(s.q(
		`SELECT id, run_id, name, status, started_at, completed_at, error
		 FROM step_runs WHERE run_id = ? ORDER BY started_at`),
		runID,
	)
	if err != nil {
		return nil, fmt.Errorf("failed to get steps: %w", err)
	}
	defer rows.Close()

	var steps []*core.StepRun
	for rows.Next() {
		step := &core.StepRun{}
		var completedAt sql.NullTime
		var errMsg sql.NullString

		err := rows.Scan(&step.ID, &step.RunID, &step.Name, &step.Status, &step.StartedAt, &completedAt, &errMsg)
		if err != nil {
			return nil, fmt.Errorf("failed to scan step: %w", err)
		}

		if completedAt.Valid {
			step.CompletedAt = &completedAt.Time
		}
		if errMsg.Valid {
			step.Error = errMsg.String
		}
		steps = append(steps, step)
	}
	return steps, rows.Err()
}

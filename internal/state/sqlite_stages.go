package state

import (
	"database/sql"
	"fmt"
	"time"
)

// --- Stage run operations ---

// CreateStageRun records a stage as planned for the given run.
// The stage starts out pending until StartStageRun is called.
func (s *Store) CreateStageRun(runID, stage string) (*StageRun, error) {
	if s.db == nil {
		return nil, fmt.Errorf("database not opened")
	}

	sr := &StageRun{
		ID:        generateID(),
		RunID:     runID,
		Stage:     stage,
		Status:    StageStatusPending,
		StartedAt: time.Now().UTC(),
	}

	_, err := s.db.Exec(
		`INSERT INTO stage_runs (id, run_id, stage, status, started_at, duration_ms)
		 VALUES (?, ?, ?, ?, ?, 0)`,
		sr.ID, sr.RunID, sr.Stage, sr.Status, sr.StartedAt,
	)
	if err != nil {
		return nil, fmt.Errorf("failed to create stage run: %w", err)
	}

	return sr, nil
}

// StartStageRun marks a stage run as running and resets its start time.
func (s *Store) StartStageRun(id string) error {
	if s.db == nil {
		return fmt.Errorf("database not opened")
	}

	result, err := s.db.Exec(
		`UPDATE stage_runs SET status = ?, started_at = ? WHERE id = ?`,
		StageStatusRunning, time.Now().UTC(), id,
	)
	if err != nil {
		return fmt.Errorf("failed to start stage run: %w", err)
	}

	rowsAffected, _ := result.RowsAffected()
	if rowsAffected == 0 {
		return fmt.Errorf("stage run not found: %s", id)
	}

	return nil
}

// CompleteStageRun marks a stage run as finished with the given status.
// Execution time is measured from the recorded start time.
func (s *Store) CompleteStageRun(id string, status StageStatus, errMsg string) error {
	if s.db == nil {
		return fmt.Errorf("database not opened")
	}

	now := time.Now().UTC()
	var errorPtr *string
	if errMsg != "" {
		errorPtr = &errMsg
	}

	var startedAt time.Time
	err := s.db.QueryRow(`SELECT started_at FROM stage_runs WHERE id = ?`, id).Scan(&startedAt)
	if err == sql.ErrNoRows {
		return fmt.Errorf("stage run not found: %s", id)
	}
	if err != nil {
		return fmt.Errorf("failed to get stage run start time: %w", err)
	}

	durationMS := now.Sub(startedAt).Milliseconds()

	_, err = s.db.Exec(
		`UPDATE stage_runs SET status = ?, completed_at = ?, error = ?, duration_ms = ? WHERE id = ?`,
		status, now, errorPtr, durationMS, id,
	)
	if err != nil {
		return fmt.Errorf("failed to complete stage run: %w", err)
	}

	return nil
}

// MarkStageSkipped marks a stage run as skipped. The reason is stored
// in the error column.
func (s *Store) MarkStageSkipped(id, reason string) error {
	if s.db == nil {
		return fmt.Errorf("database not opened")
	}

	var reasonPtr *string
	if reason != "" {
		reasonPtr = &reason
	}

	result, err := s.db.Exec(
		`UPDATE stage_runs SET status = ?, completed_at = ?, error = ? WHERE id = ?`,
		StageStatusSkipped, time.Now().UTC(), reasonPtr, id,
	)
	if err != nil {
		return fmt.Errorf("failed to mark stage run skipped: %w", err)
	}

	rowsAffected, _ := result.RowsAffected()
	if rowsAffected == 0 {
		return fmt.Errorf("stage run not found: %s", id)
	}

	return nil
}

// StageRunsForRun retrieves all stage runs for a given pipeline run.
func (s *Store) StageRunsForRun(runID string) ([]*StageRun, error) {
	if s.db == nil {
		return nil, fmt.Errorf("database not opened")
	}

	rows, err := s.db.Query(
		`SELECT id, run_id, stage, status, started_at, completed_at, error, duration_ms
		 FROM stage_runs WHERE run_id = ? ORDER BY started_at`,
		runID,
	)
	if err != nil {
		return nil, fmt.Errorf("failed to get stage runs: %w", err)
	}
	defer rows.Close()

	var stageRuns []*StageRun
	for rows.Next() {
		sr := &StageRun{}
		var completedAt sql.NullTime
		var errMsg sql.NullString

		if err := rows.Scan(&sr.ID, &sr.RunID, &sr.Stage, &sr.Status, &sr.StartedAt, &completedAt, &errMsg, &sr.DurationMS); err != nil {
			return nil, fmt.Errorf("failed to scan stage run: %w", err)
		}

		if completedAt.Valid {
			sr.CompletedAt = &completedAt.Time
		}
		if errMsg.Valid {
			sr.Error = errMsg.String
		}
		stageRuns = append(stageRuns, sr)
	}

	return stageRuns, rows.Err()
}

// GetLatestStageRun retrieves the most recent execution of a stage
// across all runs. It returns nil without error when the stage has
// never run.
func (s *Store) GetLatestStageRun(stage string) (*StageRun, error) {
	if s.db == nil {
		return nil, fmt.Errorf("database not opened")
	}

	sr := &StageRun{}
	var completedAt sql.NullTime
	var errMsg sql.NullString

	err := s.db.QueryRow(
		`SELECT id, run_id, stage, status, started_at, completed_at, error, duration_ms
		 FROM stage_runs WHERE stage = ? ORDER BY started_at DESC LIMIT 1`,
		stage,
	).Scan(&sr.ID, &sr.RunID, &sr.Stage, &sr.Status, &sr.StartedAt, &completedAt, &errMsg, &sr.DurationMS)

	if err == sql.ErrNoRows {
		return nil, nil // Stage has never run
	}
	if err != nil {
		return nil, fmt.Errorf("failed to get latest stage run: %w", err)
	}

	if completedAt.Valid {
		sr.CompletedAt = &completedAt.Time
	}
	if errMsg.Valid {
		sr.Error = errMsg.String
	}

	return sr, nil
}

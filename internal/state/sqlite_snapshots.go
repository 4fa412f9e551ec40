package state

import (
	"context"
	"database/sql"
	"errors"
	"fmt"
	"time"
)

// SaveVocabSnapshot stores the vocabulary state produced by a run.
// specialTokens are recorded in ID order (index i is token ID i) so a
// later run can detect when the reserved token layout changed.
func (s *Store) SaveVocabSnapshot(snap *VocabSnapshot, specialTokens []string) error {
	if s.db == nil {
		return fmt.Errorf("database not open")
	}

	snap.CreatedAt = time.Now().UTC()

	ctx := context.Background()
	tx, err := s.db.BeginTx(ctx, nil)
	if err != nil {
		return fmt.Errorf("begin transaction: %w", err)
	}
	defer func() { _ = tx.Rollback() }()

	_, err = tx.ExecContext(ctx, `
		INSERT OR REPLACE INTO vocab_snapshots
		(run_id, path, size, content_hash, created_at)
		VALUES (?, ?, ?, ?, ?)
	`, snap.RunID, snap.Path, snap.Size, snap.ContentHash, snap.CreatedAt)
	if err != nil {
		return fmt.Errorf("insert snapshot: %w", err)
	}

	stmt, err := tx.PrepareContext(ctx, `
		INSERT OR REPLACE INTO vocab_special_tokens
		(run_id, token, token_id)
		VALUES (?, ?, ?)
	`)
	if err != nil {
		return fmt.Errorf("prepare statement: %w", err)
	}
	defer func() { _ = stmt.Close() }()

	for i, tok := range specialTokens {
		if _, err := stmt.ExecContext(ctx, snap.RunID, tok, i); err != nil {
			return fmt.Errorf("insert special token %s: %w", tok, err)
		}
	}

	if err := tx.Commit(); err != nil {
		return fmt.Errorf("commit transaction: %w", err)
	}

	return nil
}

// GetLatestVocabSnapshot returns the most recently recorded snapshot.
// It returns nil without error when no snapshot exists.
func (s *Store) GetLatestVocabSnapshot() (*VocabSnapshot, error) {
	if s.db == nil {
		return nil, fmt.Errorf("database not open")
	}

	snap := &VocabSnapshot{}
	err := s.db.QueryRow(`
		SELECT run_id, path, size, content_hash, created_at
		FROM vocab_snapshots
		ORDER BY created_at DESC
		LIMIT 1
	`).Scan(&snap.RunID, &snap.Path, &snap.Size, &snap.ContentHash, &snap.CreatedAt)

	if errors.Is(err, sql.ErrNoRows) {
		return nil, nil // No snapshot exists
	}
	if err != nil {
		return nil, fmt.Errorf("get latest snapshot: %w", err)
	}

	return snap, nil
}

// GetVocabSpecials returns the special tokens recorded for a run's
// snapshot, in token ID order.
func (s *Store) GetVocabSpecials(runID string) ([]string, error) {
	if s.db == nil {
		return nil, fmt.Errorf("database not open")
	}

	rows, err := s.db.Query(`
		SELECT token FROM vocab_special_tokens
		WHERE run_id = ?
		ORDER BY token_id
	`, runID)
	if err != nil {
		return nil, fmt.Errorf("query special tokens: %w", err)
	}
	defer func() { _ = rows.Close() }()

	var tokens []string
	for rows.Next() {
		var tok string
		if err := rows.Scan(&tok); err != nil {
			return nil, fmt.Errorf("scan token: %w", err)
		}
		tokens = append(tokens, tok)
	}

	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("rows error: %w", err)
	}

	return tokens, nil
}

// DeleteOldSnapshots removes snapshots older than the last N runs.
// This keeps the database size manageable while retaining recent history.
func (s *Store) DeleteOldSnapshots(keepRuns int) error {
	if s.db == nil {
		return fmt.Errorf("database not open")
	}

	// Special token rows are cleared by the cascade on run_id.
	_, err := s.db.Exec(`
		DELETE FROM vocab_snapshots
		WHERE run_id NOT IN (
			SELECT run_id FROM vocab_snapshots
			ORDER BY created_at DESC
			LIMIT ?
		)
	`, keepRuns)
	if err != nil {
		return fmt.Errorf("delete old snapshots: %w", err)
	}

	return nil
}

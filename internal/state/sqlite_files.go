package state

import (
	"database/sql"
	"fmt"
	"time"
)

// --- Corpus file operations ---

// UpsertCorpusFile registers a corpus file or updates an existing
// entry with the same path. The file's ID and timestamps are filled in
// on return.
func (s *Store) UpsertCorpusFile(file *CorpusFile) error {
	if s.db == nil {
		return fmt.Errorf("database not opened")
	}

	now := time.Now().UTC()

	existing, err := s.GetCorpusFile(file.Path)
	if err != nil {
		return fmt.Errorf("failed to check existing corpus file: %w", err)
	}

	if existing != nil {
		file.ID = existing.ID
		file.CreatedAt = existing.CreatedAt
		file.UpdatedAt = now

		_, err := s.db.Exec(
			`UPDATE corpus_files SET name = ?, content_hash = ?, token_count = ?, updated_at = ? WHERE id = ?`,
			file.Name, file.ContentHash, file.TokenCount, file.UpdatedAt, file.ID,
		)
		if err != nil {
			return fmt.Errorf("failed to update corpus file: %w", err)
		}
	} else {
		if file.ID == "" {
			file.ID = generateID()
		}
		file.CreatedAt = now
		file.UpdatedAt = now

		_, err := s.db.Exec(
			`INSERT INTO corpus_files (id, path, name, content_hash, token_count, created_at, updated_at)
			 VALUES (?, ?, ?, ?, ?, ?, ?)`,
			file.ID, file.Path, file.Name, file.ContentHash, file.TokenCount, file.CreatedAt, file.UpdatedAt,
		)
		if err != nil {
			return fmt.Errorf("failed to insert corpus file: %w", err)
		}
	}

	return nil
}

// GetCorpusFile retrieves a corpus file by path.
// It returns nil without error when the path is not tracked.
func (s *Store) GetCorpusFile(path string) (*CorpusFile, error) {
	if s.db == nil {
		return nil, fmt.Errorf("database not opened")
	}

	file := &CorpusFile{}

	err := s.db.QueryRow(
		`SELECT id, path, name, content_hash, token_count, created_at, updated_at
		 FROM corpus_files WHERE path = ?`,
		path,
	).Scan(&file.ID, &file.Path, &file.Name, &file.ContentHash, &file.TokenCount, &file.CreatedAt, &file.UpdatedAt)

	if err == sql.ErrNoRows {
		return nil, nil // Not found, return nil without error
	}
	if err != nil {
		return nil, fmt.Errorf("failed to get corpus file: %w", err)
	}

	return file, nil
}

// ListCorpusFiles retrieves all tracked corpus files ordered by path.
func (s *Store) ListCorpusFiles() ([]*CorpusFile, error) {
	if s.db == nil {
		return nil, fmt.Errorf("database not opened")
	}

	rows, err := s.db.Query(
		`SELECT id, path, name, content_hash, token_count, created_at, updated_at
		 FROM corpus_files ORDER BY path`,
	)
	if err != nil {
		return nil, fmt.Errorf("failed to list corpus files: %w", err)
	}
	defer rows.Close()

	var files []*CorpusFile
	for rows.Next() {
		file := &CorpusFile{}
		if err := rows.Scan(&file.ID, &file.Path, &file.Name, &file.ContentHash, &file.TokenCount, &file.CreatedAt, &file.UpdatedAt); err != nil {
			return nil, fmt.Errorf("failed to scan corpus file: %w", err)
		}
		files = append(files, file)
	}

	return files, rows.Err()
}

// DeleteCorpusFile removes a corpus file entry by path. Deleting an
// untracked path is not an error.
func (s *Store) DeleteCorpusFile(path string) error {
	if s.db == nil {
		return fmt.Errorf("database not opened")
	}

	_, err := s.db.Exec(`DELETE FROM corpus_files WHERE path = ?`, path)
	if err != nil {
		return fmt.Errorf("failed to delete corpus file: %w", err)
	}

	return nil
}

package state

import (
	"database/sql"
	"fmt"
	"time"
)

// --- File hash operations ---

// GetContentHash retrieves the stored content hash for a file path.
// It returns an empty string without error when no hash is stored.
func (s *Store) GetContentHash(filePath string) (string, error) {
	if s.db == nil {
		return "", fmt.Errorf("database not opened")
	}

	var hash string
	err := s.db.QueryRow(`SELECT hash FROM file_hashes WHERE path = ?`, filePath).Scan(&hash)

	if err == sql.ErrNoRows {
		return "", nil // Not found, return empty string
	}
	if err != nil {
		return "", fmt.Errorf("failed to get content hash: %w", err)
	}

	return hash, nil
}

// SetContentHash stores the content hash for a file path, replacing
// any previous value.
func (s *Store) SetContentHash(filePath, hash, fileType string) error {
	if s.db == nil {
		return fmt.Errorf("database not opened")
	}

	_, err := s.db.Exec(
		`INSERT OR REPLACE INTO file_hashes (path, hash, file_type, updated_at) VALUES (?, ?, ?, ?)`,
		filePath, hash, fileType, time.Now().UTC(),
	)
	if err != nil {
		return fmt.Errorf("failed to set content hash: %w", err)
	}

	return nil
}

// DeleteContentHash removes the content hash for a file path.
func (s *Store) DeleteContentHash(filePath string) error {
	if s.db == nil {
		return fmt.Errorf("database not opened")
	}

	_, err := s.db.Exec(`DELETE FROM file_hashes WHERE path = ?`, filePath)
	if err != nil {
		return fmt.Errorf("failed to delete content hash: %w", err)
	}

	return nil
}

// ListHashedPaths retrieves all paths with a stored hash of the given
// file type, ordered by path.
func (s *Store) ListHashedPaths(fileType string) ([]string, error) {
	if s.db == nil {
		return nil, fmt.Errorf("database not opened")
	}

	rows, err := s.db.Query(`SELECT path FROM file_hashes WHERE file_type = ? ORDER BY path`, fileType)
	if err != nil {
		return nil, fmt.Errorf("failed to list hashed paths: %w", err)
	}
	defer rows.Close()

	var paths []string
	for rows.Next() {
		var path string
		if err := rows.Scan(&path); err != nil {
			return nil, fmt.Errorf("failed to scan path: %w", err)
		}
		paths = append(paths, path)
	}

	return paths, rows.Err()
}

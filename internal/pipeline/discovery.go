package pipeline

import (
	"crypto/sha256"
	"encoding/hex"
	"fmt"
	"os"
	"path/filepath"
	"strings"
	"time"
)

// DiscoveryOptions configures corpus discovery.
type DiscoveryOptions struct {
	// Force treats every file as changed regardless of stored hashes
	Force bool
}

// DiscoveryResult contains statistics about a corpus scan.
type DiscoveryResult struct {
	FilesTotal   int
	FilesChanged int
	FilesSkipped int
	FilesDeleted int

	Duration time.Duration
}

// Summary returns a human-readable summary.
func (r *DiscoveryResult) Summary() string {
	return fmt.Sprintf(
		"Corpus: %d files (%d changed, %d unchanged, %d deleted) | Duration: %s",
		r.FilesTotal, r.FilesChanged, r.FilesSkipped, r.FilesDeleted,
		r.Duration.Round(time.Millisecond),
	)
}

// corpusEntry is an in-memory record of a discovered corpus file.
type corpusEntry struct {
	path    string // absolute source path
	name    string // base name without the .txt extension
	hash    string
	changed bool
}

// Discover scans the corpus directory, reconciles tracked files against
// the state database, and records which files need re-tokenization.
func (p *Pipeline) Discover(opts DiscoveryOptions) (*DiscoveryResult, error) {
	start := time.Now()
	result := &DiscoveryResult{}

	absCorpusDir, err := filepath.Abs(p.cfg.CorpusDir)
	if err != nil {
		return nil, fmt.Errorf("failed to resolve corpus directory: %w", err)
	}
	if _, err := os.Stat(absCorpusDir); os.IsNotExist(err) {
		return nil, fmt.Errorf("corpus directory does not exist: %s", absCorpusDir)
	}

	p.logger.Debug("scanning corpus", "corpus_dir", absCorpusDir)

	p.corpus = nil
	seenFiles := make(map[string]bool)

	err = filepath.Walk(absCorpusDir, func(path string, info os.FileInfo, walkErr error) error {
		if walkErr != nil || info.IsDir() || !strings.HasSuffix(info.Name(), ".txt") {
			return nil //nolint:nilerr // Skip directories and non-.txt files
		}

		absPath, _ := filepath.Abs(path)
		seenFiles[absPath] = true
		result.FilesTotal++

		content, err := os.ReadFile(absPath) //nolint:gosec // G304: path comes from the corpus walk
		if err != nil {
			return fmt.Errorf("failed to read corpus file %s: %w", absPath, err)
		}

		entry := &corpusEntry{
			path: absPath,
			name: strings.TrimSuffix(info.Name(), ".txt"),
			hash: computeHash(content),
		}

		entry.changed = true
		if !opts.Force {
			existing, err := p.store.GetCorpusFile(absPath)
			if err != nil {
				return fmt.Errorf("failed to look up corpus file: %w", err)
			}
			if existing != nil && existing.ContentHash == entry.hash {
				entry.changed = false
			}
		}

		if entry.changed {
			result.FilesChanged++
		} else {
			result.FilesSkipped++
		}

		p.corpus = append(p.corpus, entry)
		return nil
	})
	if err != nil {
		return result, err
	}

	deleted, err := p.cleanupDeletedFiles(seenFiles)
	if err != nil {
		return result, err
	}
	result.FilesDeleted = deleted

	result.Duration = time.Since(start)

	p.logger.Info("corpus scanned",
		"files_total", result.FilesTotal,
		"files_changed", result.FilesChanged,
		"files_deleted", result.FilesDeleted,
		"duration_ms", result.Duration.Milliseconds())

	return result, nil
}

// cleanupDeletedFiles drops state entries and artifacts for corpus
// files that no longer exist on disk.
func (p *Pipeline) cleanupDeletedFiles(seenFiles map[string]bool) (int, error) {
	tracked, err := p.store.ListCorpusFiles()
	if err != nil {
		return 0, fmt.Errorf("failed to list tracked corpus files: %w", err)
	}

	deleted := 0
	for _, file := range tracked {
		if seenFiles[file.Path] {
			continue
		}

		p.logger.Debug("corpus file removed", "path", file.Path)

		if err := p.store.DeleteCorpusFile(file.Path); err != nil {
			return deleted, err
		}

		// Stale artifacts would leak into vocab and ngram counts.
		_ = os.Remove(p.tokenizedPath(file.Name))
		_ = os.Remove(p.encodedPath(file.Name))
		deleted++
	}

	return deleted, nil
}

// computeHash generates a SHA256 hash of content.
func computeHash(content []byte) string {
	h := sha256.Sum256(content)
	return hex.EncodeToString(h[:8]) // Use first 8 bytes for brevity
}

// Package state persists pipeline history using SQLite.
// It tracks runs, per-stage executions, discovered corpus files,
// artifact content hashes, and vocabulary snapshots.
package state

import "time"

// RunStatus represents the status of a pipeline run.
type RunStatus string

// Run status constants.
const (
	RunStatusRunning   RunStatus = "running"
	RunStatusCompleted RunStatus = "completed"
	RunStatusFailed    RunStatus = "failed"
)

// Run represents a pipeline execution session.
type Run struct {
	ID          string
	Profile     string
	Status      RunStatus
	StartedAt   time.Time
	CompletedAt *time.Time
	Error       string
}

// StageStatus represents the status of an individual stage execution.
type StageStatus string

// Stage status constants.
const (
	StageStatusPending StageStatus = "pending"
	StageStatusRunning StageStatus = "running"
	StageStatusSuccess StageStatus = "success"
	StageStatusFailed  StageStatus = "failed"
	StageStatusSkipped StageStatus = "skipped"
)

// StageRun represents a single execution of a stage within a run.
type StageRun struct {
	ID          string
	RunID       string
	Stage       string
	Status      StageStatus
	StartedAt   time.Time
	CompletedAt *time.Time
	Error       string
	DurationMS  int64
}

// CorpusFile represents a corpus file tracked in the state database.
// Files are keyed by path; the content hash drives change detection.
type CorpusFile struct {
	ID          string
	Path        string
	Name        string
	ContentHash string
	TokenCount  int64
	CreatedAt   time.Time
	UpdatedAt   time.Time
}

// VocabSnapshot records the vocabulary produced by a run.
type VocabSnapshot struct {
	RunID       string
	Path        string
	Size        int64
	ContentHash string
	CreatedAt   time.Time
}

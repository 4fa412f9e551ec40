package state

import (
	"testing"
	"time"
)

func setupTestStore(t *testing.T) *Store {
	t.Helper()
	store := NewStore(nil)
	if err := store.Open(":memory:"); err != nil {
		t.Fatalf("failed to open store: %v", err)
	}
	if err := store.Migrate(); err != nil {
		t.Fatalf("failed to migrate: %v", err)
	}
	return store
}

func TestStore_OpenClose(t *testing.T) {
	store := NewStore(nil)

	if err := store.Open(":memory:"); err != nil {
		t.Fatalf("failed to open in-memory store: %v", err)
	}
	if store.Path() != ":memory:" {
		t.Errorf("expected path ':memory:', got %q", store.Path())
	}

	if err := store.Close(); err != nil {
		t.Fatalf("failed to close store: %v", err)
	}
}

func TestStore_Migrate(t *testing.T) {
	store := setupTestStore(t)
	defer store.Close()

	// Verify tables exist by querying them
	tables := []string{"runs", "stage_runs", "corpus_files", "file_hashes", "vocab_snapshots", "vocab_special_tokens"}
	for _, table := range tables {
		rows, err := store.db.Query("SELECT 1 FROM " + table + " LIMIT 1")
		if err != nil {
			t.Errorf("table %s does not exist: %v", table, err)
		} else {
			rows.Close()
		}
	}

	version, err := store.MigrationVersion()
	if err != nil {
		t.Fatalf("failed to get migration version: %v", err)
	}
	if version < 1 {
		t.Errorf("expected migration version >= 1, got %d", version)
	}
}

func TestStore_NotOpened(t *testing.T) {
	store := NewStore(nil)

	if _, err := store.CreateRun("dev"); err == nil {
		t.Error("expected error creating run on unopened store")
	}
	if err := store.Migrate(); err == nil {
		t.Error("expected error migrating unopened store")
	}
	if _, err := store.GetContentHash("x"); err == nil {
		t.Error("expected error reading hash on unopened store")
	}
}

// --- Run lifecycle tests ---

func TestStore_RunLifecycle(t *testing.T) {
	tests := []struct {
		name      string
		setup     func(t *testing.T, store *Store) *Run
		operation func(t *testing.T, store *Store, run *Run)
		verify    func(t *testing.T, store *Store, run *Run)
	}{
		{
			name: "create run",
			setup: func(t *testing.T, store *Store) *Run {
				run, err := store.CreateRun("default")
				if err != nil {
					t.Fatalf("failed to create run: %v", err)
				}
				return run
			},
			verify: func(t *testing.T, store *Store, run *Run) {
				if run.ID == "" {
					t.Error("run ID should not be empty")
				}
				if run.Profile != "default" {
					t.Errorf("expected profile 'default', got %q", run.Profile)
				}
				if run.Status != RunStatusRunning {
					t.Errorf("expected status 'running', got %q", run.Status)
				}
			},
		},
		{
			name: "get run",
			setup: func(t *testing.T, store *Store) *Run {
				run, err := store.CreateRun("large")
				if err != nil {
					t.Fatalf("failed to create run: %v", err)
				}
				return run
			},
			operation: func(t *testing.T, store *Store, run *Run) {
				retrieved, err := store.GetRun(run.ID)
				if err != nil {
					t.Fatalf("failed to get run: %v", err)
				}
				if retrieved.ID != run.ID {
					t.Errorf("expected ID %q, got %q", run.ID, retrieved.ID)
				}
				if retrieved.Profile != "large" {
					t.Errorf("expected profile 'large', got %q", retrieved.Profile)
				}
			},
		},
		{
			name: "get run not found",
			setup: func(t *testing.T, store *Store) *Run {
				return nil
			},
			operation: func(t *testing.T, store *Store, run *Run) {
				_, err := store.GetRun("nonexistent-id")
				if err == nil {
					t.Error("expected error for nonexistent run")
				}
			},
		},
		{
			name: "complete run success",
			setup: func(t *testing.T, store *Store) *Run {
				run, _ := store.CreateRun("default")
				return run
			},
			operation: func(t *testing.T, store *Store, run *Run) {
				err := store.CompleteRun(run.ID, RunStatusCompleted, "")
				if err != nil {
					t.Fatalf("failed to complete run: %v", err)
				}
			},
			verify: func(t *testing.T, store *Store, run *Run) {
				retrieved, _ := store.GetRun(run.ID)
				if retrieved.Status != RunStatusCompleted {
					t.Errorf("expected status 'completed', got %q", retrieved.Status)
				}
				if retrieved.CompletedAt == nil {
					t.Error("completed_at should not be nil")
				}
				if retrieved.Error != "" {
					t.Errorf("expected no error message, got %q", retrieved.Error)
				}
			},
		},
		{
			name: "complete run with error",
			setup: func(t *testing.T, store *Store) *Run {
				run, _ := store.CreateRun("default")
				return run
			},
			operation: func(t *testing.T, store *Store, run *Run) {
				err := store.CompleteRun(run.ID, RunStatusFailed, "tokenize stage failed")
				if err != nil {
					t.Fatalf("failed to complete run: %v", err)
				}
			},
			verify: func(t *testing.T, store *Store, run *Run) {
				retrieved, _ := store.GetRun(run.ID)
				if retrieved.Status != RunStatusFailed {
					t.Errorf("expected status 'failed', got %q", retrieved.Status)
				}
				if retrieved.Error != "tokenize stage failed" {
					t.Errorf("expected error message, got %q", retrieved.Error)
				}
			},
		},
		{
			name: "complete run not found",
			setup: func(t *testing.T, store *Store) *Run {
				return nil
			},
			operation: func(t *testing.T, store *Store, run *Run) {
				err := store.CompleteRun("nonexistent-id", RunStatusCompleted, "")
				if err == nil {
					t.Error("expected error for nonexistent run")
				}
			},
		},
		{
			name: "get latest run",
			setup: func(t *testing.T, store *Store) *Run {
				store.CreateRun("default")
				time.Sleep(10 * time.Millisecond)
				run2, _ := store.CreateRun("default")
				return run2
			},
			verify: func(t *testing.T, store *Store, run *Run) {
				latest, err := store.GetLatestRun("default")
				if err != nil {
					t.Fatalf("failed to get latest run: %v", err)
				}
				if latest == nil {
					t.Fatal("expected latest run, got nil")
				}
				if latest.ID != run.ID {
					t.Errorf("expected latest run ID %q, got %q", run.ID, latest.ID)
				}
			},
		},
		{
			name: "get latest run none",
			setup: func(t *testing.T, store *Store) *Run {
				return nil
			},
			operation: func(t *testing.T, store *Store, run *Run) {
				latest, err := store.GetLatestRun("untouched")
				if err != nil {
					t.Fatalf("unexpected error: %v", err)
				}
				if latest != nil {
					t.Errorf("expected nil for profile with no runs, got %+v", latest)
				}
			},
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			store := setupTestStore(t)
			defer store.Close()

			var run *Run
			if tt.setup != nil {
				run = tt.setup(t, store)
			}
			if tt.operation != nil {
				tt.operation(t, store, run)
			}
			if tt.verify != nil {
				tt.verify(t, store, run)
			}
		})
	}
}

func TestStore_ListRuns(t *testing.T) {
	store := setupTestStore(t)
	defer store.Close()

	for i := 0; i < 3; i++ {
		if _, err := store.CreateRun("default"); err != nil {
			t.Fatalf("failed to create run: %v", err)
		}
		time.Sleep(10 * time.Millisecond)
	}
	last, _ := store.CreateRun("large")

	runs, err := store.ListRuns(2)
	if err != nil {
		t.Fatalf("failed to list runs: %v", err)
	}
	if len(runs) != 2 {
		t.Fatalf("expected 2 runs, got %d", len(runs))
	}
	if runs[0].ID != last.ID {
		t.Errorf("expected newest run first, got %q", runs[0].ID)
	}

	all, err := store.ListRuns(100)
	if err != nil {
		t.Fatalf("failed to list all runs: %v", err)
	}
	if len(all) != 4 {
		t.Errorf("expected 4 runs, got %d", len(all))
	}
}

// --- Stage run tests ---

func TestStore_StageRuns(t *testing.T) {
	tests := []struct {
		name      string
		operation func(t *testing.T, store *Store, run *Run) *StageRun
		verify    func(t *testing.T, store *Store, run *Run, sr *StageRun)
	}{
		{
			name: "create stage run pending",
			operation: func(t *testing.T, store *Store, run *Run) *StageRun {
				sr, err := store.CreateStageRun(run.ID, "tokenize")
				if err != nil {
					t.Fatalf("failed to create stage run: %v", err)
				}
				return sr
			},
			verify: func(t *testing.T, store *Store, run *Run, sr *StageRun) {
				if sr.ID == "" {
					t.Error("stage run ID should be generated")
				}
				if sr.Status != StageStatusPending {
					t.Errorf("expected status 'pending', got %q", sr.Status)
				}
			},
		},
		{
			name: "start and complete stage run",
			operation: func(t *testing.T, store *Store, run *Run) *StageRun {
				sr, _ := store.CreateStageRun(run.ID, "vocab")
				if err := store.StartStageRun(sr.ID); err != nil {
					t.Fatalf("failed to start stage run: %v", err)
				}

				time.Sleep(10 * time.Millisecond)

				if err := store.CompleteStageRun(sr.ID, StageStatusSuccess, ""); err != nil {
					t.Fatalf("failed to complete stage run: %v", err)
				}
				return sr
			},
			verify: func(t *testing.T, store *Store, run *Run, sr *StageRun) {
				stageRuns, _ := store.StageRunsForRun(run.ID)
				if len(stageRuns) != 1 {
					t.Fatalf("expected 1 stage run, got %d", len(stageRuns))
				}
				if stageRuns[0].Status != StageStatusSuccess {
					t.Errorf("expected status 'success', got %q", stageRuns[0].Status)
				}
				if stageRuns[0].CompletedAt == nil {
					t.Error("completed_at should not be nil")
				}
				if stageRuns[0].DurationMS == 0 {
					t.Error("duration_ms should be > 0")
				}
			},
		},
		{
			name: "complete stage run with error",
			operation: func(t *testing.T, store *Store, run *Run) *StageRun {
				sr, _ := store.CreateStageRun(run.ID, "encode")
				store.StartStageRun(sr.ID)
				if err := store.CompleteStageRun(sr.ID, StageStatusFailed, "vocab file missing"); err != nil {
					t.Fatalf("failed to complete stage run: %v", err)
				}
				return sr
			},
			verify: func(t *testing.T, store *Store, run *Run, sr *StageRun) {
				stageRuns, _ := store.StageRunsForRun(run.ID)
				if stageRuns[0].Status != StageStatusFailed {
					t.Errorf("expected status 'failed', got %q", stageRuns[0].Status)
				}
				if stageRuns[0].Error != "vocab file missing" {
					t.Errorf("expected error message, got %q", stageRuns[0].Error)
				}
			},
		},
		{
			name: "mark stage skipped",
			operation: func(t *testing.T, store *Store, run *Run) *StageRun {
				sr, _ := store.CreateStageRun(run.ID, "ngrams")
				if err := store.MarkStageSkipped(sr.ID, "upstream stage tokenize failed"); err != nil {
					t.Fatalf("failed to mark stage skipped: %v", err)
				}
				return sr
			},
			verify: func(t *testing.T, store *Store, run *Run, sr *StageRun) {
				stageRuns, _ := store.StageRunsForRun(run.ID)
				if stageRuns[0].Status != StageStatusSkipped {
					t.Errorf("expected status 'skipped', got %q", stageRuns[0].Status)
				}
				if stageRuns[0].Error != "upstream stage tokenize failed" {
					t.Errorf("expected skip reason, got %q", stageRuns[0].Error)
				}
			},
		},
		{
			name: "complete stage run not found",
			operation: func(t *testing.T, store *Store, run *Run) *StageRun {
				err := store.CompleteStageRun("nonexistent-id", StageStatusSuccess, "")
				if err == nil {
					t.Error("expected error for nonexistent stage run")
				}
				return nil
			},
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			store := setupTestStore(t)
			defer store.Close()

			run, err := store.CreateRun("default")
			if err != nil {
				t.Fatalf("failed to create run: %v", err)
			}

			var sr *StageRun
			if tt.operation != nil {
				sr = tt.operation(t, store, run)
			}
			if tt.verify != nil {
				tt.verify(t, store, run, sr)
			}
		})
	}
}

func TestStore_GetLatestStageRun(t *testing.T) {
	store := setupTestStore(t)
	defer store.Close()

	run1, _ := store.CreateRun("default")
	sr1, _ := store.CreateStageRun(run1.ID, "tokenize")
	store.StartStageRun(sr1.ID)
	store.CompleteStageRun(sr1.ID, StageStatusSuccess, "")

	time.Sleep(10 * time.Millisecond)

	run2, _ := store.CreateRun("default")
	sr2, _ := store.CreateStageRun(run2.ID, "tokenize")
	store.StartStageRun(sr2.ID)

	latest, err := store.GetLatestStageRun("tokenize")
	if err != nil {
		t.Fatalf("failed to get latest stage run: %v", err)
	}
	if latest == nil {
		t.Fatal("expected latest stage run, got nil")
	}
	if latest.ID != sr2.ID {
		t.Errorf("expected latest stage run ID %q, got %q", sr2.ID, latest.ID)
	}

	never, err := store.GetLatestStageRun("batches")
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if never != nil {
		t.Errorf("expected nil for stage that never ran, got %+v", never)
	}
}

// --- Corpus file tests ---

func TestStore_CorpusFiles(t *testing.T) {
	store := setupTestStore(t)
	defer store.Close()

	file := &CorpusFile{
		Path:        "corpus/train.txt",
		Name:        "train",
		ContentHash: "abc123",
		TokenCount:  42,
	}
	if err := store.UpsertCorpusFile(file); err != nil {
		t.Fatalf("failed to upsert corpus file: %v", err)
	}
	if file.ID == "" {
		t.Error("corpus file ID should be generated")
	}

	retrieved, err := store.GetCorpusFile("corpus/train.txt")
	if err != nil {
		t.Fatalf("failed to get corpus file: %v", err)
	}
	if retrieved == nil {
		t.Fatal("expected corpus file, got nil")
	}
	if retrieved.ContentHash != "abc123" {
		t.Errorf("expected hash 'abc123', got %q", retrieved.ContentHash)
	}
	if retrieved.TokenCount != 42 {
		t.Errorf("expected 42 tokens, got %d", retrieved.TokenCount)
	}

	// Upsert with the same path updates in place
	originalID := file.ID
	updated := &CorpusFile{
		Path:        "corpus/train.txt",
		Name:        "train",
		ContentHash: "def456",
		TokenCount:  99,
	}
	if err := store.UpsertCorpusFile(updated); err != nil {
		t.Fatalf("failed to update corpus file: %v", err)
	}
	if updated.ID != originalID {
		t.Errorf("expected ID %q preserved on update, got %q", originalID, updated.ID)
	}

	retrieved, _ = store.GetCorpusFile("corpus/train.txt")
	if retrieved.ContentHash != "def456" {
		t.Errorf("expected updated hash 'def456', got %q", retrieved.ContentHash)
	}

	missing, err := store.GetCorpusFile("corpus/nope.txt")
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if missing != nil {
		t.Errorf("expected nil for untracked path, got %+v", missing)
	}
}

func TestStore_ListAndDeleteCorpusFiles(t *testing.T) {
	store := setupTestStore(t)
	defer store.Close()

	for _, path := range []string{"corpus/b.txt", "corpus/a.txt", "corpus/c.txt"} {
		err := store.UpsertCorpusFile(&CorpusFile{Path: path, Name: path, ContentHash: "h"})
		if err != nil {
			t.Fatalf("failed to upsert %s: %v", path, err)
		}
	}

	files, err := store.ListCorpusFiles()
	if err != nil {
		t.Fatalf("failed to list corpus files: %v", err)
	}
	if len(files) != 3 {
		t.Fatalf("expected 3 files, got %d", len(files))
	}
	if files[0].Path != "corpus/a.txt" {
		t.Errorf("expected files ordered by path, got %q first", files[0].Path)
	}

	if err := store.DeleteCorpusFile("corpus/b.txt"); err != nil {
		t.Fatalf("failed to delete corpus file: %v", err)
	}
	files, _ = store.ListCorpusFiles()
	if len(files) != 2 {
		t.Errorf("expected 2 files after delete, got %d", len(files))
	}

	// Deleting an untracked path is not an error
	if err := store.DeleteCorpusFile("corpus/nope.txt"); err != nil {
		t.Errorf("unexpected error deleting untracked path: %v", err)
	}
}

// --- File hash tests ---

func TestStore_ContentHashes(t *testing.T) {
	store := setupTestStore(t)
	defer store.Close()

	hash, err := store.GetContentHash("out/vocab.yaml")
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if hash != "" {
		t.Errorf("expected empty hash for untracked path, got %q", hash)
	}

	if err := store.SetContentHash("out/vocab.yaml", "aaaa1111", "vocab"); err != nil {
		t.Fatalf("failed to set content hash: %v", err)
	}
	hash, _ = store.GetContentHash("out/vocab.yaml")
	if hash != "aaaa1111" {
		t.Errorf("expected hash 'aaaa1111', got %q", hash)
	}

	// Setting again replaces the stored hash
	if err := store.SetContentHash("out/vocab.yaml", "bbbb2222", "vocab"); err != nil {
		t.Fatalf("failed to replace content hash: %v", err)
	}
	hash, _ = store.GetContentHash("out/vocab.yaml")
	if hash != "bbbb2222" {
		t.Errorf("expected hash 'bbbb2222', got %q", hash)
	}

	store.SetContentHash("chonker.yaml", "cccc3333", "config")
	paths, err := store.ListHashedPaths("vocab")
	if err != nil {
		t.Fatalf("failed to list hashed paths: %v", err)
	}
	if len(paths) != 1 || paths[0] != "out/vocab.yaml" {
		t.Errorf("expected only the vocab path, got %v", paths)
	}

	if err := store.DeleteContentHash("out/vocab.yaml"); err != nil {
		t.Fatalf("failed to delete content hash: %v", err)
	}
	hash, _ = store.GetContentHash("out/vocab.yaml")
	if hash != "" {
		t.Errorf("expected empty hash after delete, got %q", hash)
	}
}

// --- Vocab snapshot tests ---

func TestStore_VocabSnapshots(t *testing.T) {
	store := setupTestStore(t)
	defer store.Close()

	none, err := store.GetLatestVocabSnapshot()
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if none != nil {
		t.Errorf("expected nil before any snapshot, got %+v", none)
	}

	run1, _ := store.CreateRun("default")
	snap1 := &VocabSnapshot{RunID: run1.ID, Path: "out/vocab.yaml", Size: 100, ContentHash: "v1"}
	if err := store.SaveVocabSnapshot(snap1, []string{"<unk>", "<bos>", "<eos>"}); err != nil {
		t.Fatalf("failed to save snapshot: %v", err)
	}

	time.Sleep(10 * time.Millisecond)

	run2, _ := store.CreateRun("default")
	snap2 := &VocabSnapshot{RunID: run2.ID, Path: "out/vocab.yaml", Size: 120, ContentHash: "v2"}
	if err := store.SaveVocabSnapshot(snap2, []string{"<unk>", "<bos>", "<eos>"}); err != nil {
		t.Fatalf("failed to save second snapshot: %v", err)
	}

	latest, err := store.GetLatestVocabSnapshot()
	if err != nil {
		t.Fatalf("failed to get latest snapshot: %v", err)
	}
	if latest == nil {
		t.Fatal("expected latest snapshot, got nil")
	}
	if latest.RunID != run2.ID {
		t.Errorf("expected latest snapshot for run %q, got %q", run2.ID, latest.RunID)
	}
	if latest.Size != 120 {
		t.Errorf("expected size 120, got %d", latest.Size)
	}

	specials, err := store.GetVocabSpecials(run1.ID)
	if err != nil {
		t.Fatalf("failed to get specials: %v", err)
	}
	if len(specials) != 3 {
		t.Fatalf("expected 3 special tokens, got %d", len(specials))
	}
	if specials[0] != "<unk>" || specials[2] != "<eos>" {
		t.Errorf("expected specials in token ID order, got %v", specials)
	}
}

func TestStore_DeleteOldSnapshots(t *testing.T) {
	store := setupTestStore(t)
	defer store.Close()

	var runs []*Run
	for i := 0; i < 3; i++ {
		run, _ := store.CreateRun("default")
		snap := &VocabSnapshot{RunID: run.ID, Path: "out/vocab.yaml", Size: int64(100 + i), ContentHash: "h"}
		if err := store.SaveVocabSnapshot(snap, []string{"<unk>"}); err != nil {
			t.Fatalf("failed to save snapshot %d: %v", i, err)
		}
		runs = append(runs, run)
		time.Sleep(10 * time.Millisecond)
	}

	if err := store.DeleteOldSnapshots(1); err != nil {
		t.Fatalf("failed to delete old snapshots: %v", err)
	}

	latest, _ := store.GetLatestVocabSnapshot()
	if latest == nil {
		t.Fatal("expected newest snapshot to survive")
	}
	if latest.RunID != runs[2].ID {
		t.Errorf("expected snapshot for run %q, got %q", runs[2].ID, latest.RunID)
	}

	// Special tokens for pruned runs are cascaded away
	specials, err := store.GetVocabSpecials(runs[0].ID)
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if len(specials) != 0 {
		t.Errorf("expected no specials for pruned run, got %v", specials)
	}

	kept, _ := store.GetVocabSpecials(runs[2].ID)
	if len(kept) != 1 {
		t.Errorf("expected specials for kept run, got %v", kept)
	}
}

package pipeline

import (
	"context"
	"fmt"
	"strings"
	"time"

	"github.com/cmdowney88/chonker/internal/dag"
	"github.com/cmdowney88/chonker/internal/state"
)

// RunOptions controls stage selection for a pipeline run.
type RunOptions struct {
	// Select names the stages to run. Empty means all stages.
	Select []string
	// Downstream also runs the dependents of the selected stages.
	Downstream bool
	// Force re-processes corpus files even when hashes are unchanged.
	Force bool
}

// Run discovers the corpus and executes the selected stages in
// dependency order. Stage outcomes are recorded on the returned run.
func (p *Pipeline) Run(ctx context.Context, opts RunOptions) (*state.Run, error) {
	p.logger.Info("starting run", "profile", p.cfg.Profile, "select", opts.Select)

	if _, err := p.Discover(DiscoveryOptions{Force: opts.Force}); err != nil {
		return nil, err
	}

	target := p.graph
	if len(opts.Select) > 0 {
		for _, name := range opts.Select {
			if _, ok := p.graph.Node(name); !ok {
				return nil, fmt.Errorf("unknown stage %q (available: %s)",
					name, strings.Join(p.StageNames(), ", "))
			}
		}

		affected := opts.Select
		if opts.Downstream {
			affected = p.graph.Affected(opts.Select)
		}
		target = p.graph.Subgraph(affected)
	}

	sorted, err := target.TopologicalSort()
	if err != nil {
		return nil, fmt.Errorf("stage sort failed: %w", err)
	}

	run, err := p.store.CreateRun(p.cfg.Profile)
	if err != nil {
		return nil, fmt.Errorf("failed to create run: %w", err)
	}

	p.logger.Debug("created run", "run_id", run.ID, "stages", len(sorted))

	// Record every planned stage before executing any
	stageRuns := make([]*state.StageRun, len(sorted))
	for i, node := range sorted {
		sr, err := p.store.CreateStageRun(run.ID, node.ID)
		if err != nil {
			_ = p.store.CompleteRun(run.ID, state.RunStatusFailed,
				fmt.Sprintf("failed to record stage %s: %v", node.ID, err))
			return run, fmt.Errorf("failed to record stage run: %w", err)
		}
		stageRuns[i] = sr
	}

	runErr := p.executeStages(ctx, run.ID, sorted, stageRuns, opts)

	if runErr != nil {
		p.logger.Info("run failed", "run_id", run.ID, "error", runErr.Error())
		_ = p.store.CompleteRun(run.ID, state.RunStatusFailed, runErr.Error())
	} else {
		p.logger.Info("run completed", "run_id", run.ID)
		_ = p.store.CompleteRun(run.ID, state.RunStatusCompleted, "")
		_ = p.store.DeleteOldSnapshots(p.cfg.KeepRuns)
	}

	run, _ = p.store.GetRun(run.ID)
	return run, runErr
}

// executeStages runs the sorted stages, marking everything after a
// failure as skipped.
func (p *Pipeline) executeStages(ctx context.Context, runID string, sorted []*dag.Node[*Stage], stageRuns []*state.StageRun, opts RunOptions) error {
	sc := stageContext{runID: runID, force: opts.Force}

	for i, node := range sorted {
		stage := node.Data

		if err := ctx.Err(); err != nil {
			for j := i; j < len(sorted); j++ {
				_ = p.store.MarkStageSkipped(stageRuns[j].ID, "run cancelled")
			}
			return err
		}

		_ = p.store.StartStageRun(stageRuns[i].ID)
		p.logger.Info("running stage", "stage", stage.Name)

		start := time.Now()
		err := stage.run(ctx, p, sc)
		elapsed := time.Since(start)

		if err != nil {
			p.logger.Debug("stage failed", "stage", stage.Name, "error", err)
			_ = p.store.CompleteStageRun(stageRuns[i].ID, state.StageStatusFailed, err.Error())

			// Mark remaining stages as skipped
			for j := i + 1; j < len(sorted); j++ {
				_ = p.store.MarkStageSkipped(stageRuns[j].ID,
					fmt.Sprintf("upstream stage %s failed", stage.Name))
			}

			return fmt.Errorf("stage %s: %w", stage.Name, err)
		}

		p.logger.Debug("stage completed", "stage", stage.Name, "duration_ms", elapsed.Milliseconds())
		_ = p.store.CompleteStageRun(stageRuns[i].ID, state.StageStatusSuccess, "")
	}

	return nil
}

package commands

import (
	"fmt"
	"strings"
	"time"

	"github.com/cmdowney88/chonker/internal/cli/output"
	"github.com/cmdowney88/chonker/internal/pipeline"
	"github.com/cmdowney88/chonker/internal/state"
	"github.com/spf13/cobra"
)

// RunOptions holds options for the run command.
type RunOptions struct {
	Select     string
	Downstream bool
	Force      bool
	Watch      bool
	JSONOutput bool
}

// NewRunCommand creates the run command.
func NewRunCommand() *cobra.Command {
	opts := &RunOptions{}

	cmd := &cobra.Command{
		Use:   "run",
		Short: "Run the corpus processing pipeline",
		Long: `Execute pipeline stages in dependency order.

By default runs every stage, re-processing only the corpus files whose
content changed since the last run. Use --select to run specific stages
and --force to re-process unchanged files.`,
		Example: `  # Run the full pipeline
  chonker run

  # Run only the vocab stage
  chonker run --select vocab

  # Run tokenize and everything that depends on it
  chonker run --select tokenize --downstream

  # Re-run automatically when corpus files change
  chonker run --watch

  # Emit JSON event lines for CI integration
  chonker run --json`,
		Aliases: []string{"build"},
		RunE: func(cmd *cobra.Command, _ []string) error {
			return runRun(cmd, opts)
		},
	}

	cmd.Flags().StringVarP(&opts.Select, "select", "s", "", "Comma-separated list of stages to run")
	cmd.Flags().BoolVar(&opts.Downstream, "downstream", false, "Include downstream stages when using --select")
	cmd.Flags().BoolVar(&opts.Force, "force", false, "Re-process corpus files even when unchanged")
	cmd.Flags().BoolVar(&opts.Watch, "watch", false, "Watch the corpus directory and re-run on changes")
	cmd.Flags().BoolVar(&opts.JSONOutput, "json", false, "Output as JSON lines for progress tracking")

	return cmd
}

func runRun(cmd *cobra.Command, opts *RunOptions) error {
	cctx, cleanup, err := NewCommandContext(cmd)
	if err != nil {
		return err
	}
	defer cleanup()

	if err := cctx.Cfg.ValidateDirectories(); err != nil {
		return err
	}

	runOpts := pipeline.RunOptions{
		Downstream: opts.Downstream,
		Force:      opts.Force,
	}
	for _, s := range strings.Split(opts.Select, ",") {
		if s = strings.TrimSpace(s); s != "" {
			runOpts.Select = append(runOpts.Select, s)
		}
	}

	jsonMode := opts.JSONOutput || cctx.Renderer.EffectiveMode() == output.ModeJSON

	if opts.Watch {
		return runWatch(cmd, cctx, runOpts, jsonMode)
	}
	if jsonMode {
		return runJSON(cmd, cctx, runOpts)
	}
	return runText(cmd, cctx, runOpts)
}

// runText executes the pipeline with text or TSV output.
func runText(cmd *cobra.Command, cctx *CommandContext, opts pipeline.RunOptions) error {
	r := cctx.Renderer

	if r.EffectiveMode() == output.ModeText {
		r.Printf("Running stages: %s\n", strings.Join(plannedStages(cctx.Pipeline, opts), ", "))
	}

	run, runErr := cctx.Pipeline.Run(cmd.Context(), opts)
	if run == nil {
		return runErr
	}

	renderRunResult(cctx, run)
	return runErr
}

// runJSON executes the pipeline and emits JSON event lines.
func runJSON(cmd *cobra.Command, cctx *CommandContext, opts pipeline.RunOptions) error {
	planned := plannedStages(cctx.Pipeline, opts)
	start := time.Now()

	run, runErr := cctx.Pipeline.Run(cmd.Context(), opts)

	emitRunEvents(cctx, planned, run, runErr, time.Since(start).Milliseconds())
	return runErr
}

// runWatch performs an initial run, then re-runs on corpus changes
// until interrupted.
func runWatch(cmd *cobra.Command, cctx *CommandContext, opts pipeline.RunOptions, jsonMode bool) error {
	r := cctx.Renderer
	planned := plannedStages(cctx.Pipeline, opts)

	onRun := func(run *state.Run, err error) {
		if jsonMode {
			emitRunEvents(cctx, planned, run, err, runDurationMS(run))
			return
		}
		if run == nil {
			if err != nil {
				r.Printf("Run failed: %v\n", err)
			}
			return
		}
		renderRunResult(cctx, run)
	}

	// Initial pass so the watcher starts from a processed corpus. Stage
	// failures are reported and watching continues; a run that could
	// not even start (bad selection, missing corpus) aborts.
	run, err := cctx.Pipeline.Run(cmd.Context(), opts)
	if run == nil && err != nil {
		return err
	}
	onRun(run, err)

	if !jsonMode {
		r.Println("")
		r.Printf("Watching %s for changes (Ctrl-C to stop)\n", cctx.Cfg.CorpusDir)
	}

	return cctx.Pipeline.Watch(cmd.Context(), opts, onRun)
}

// renderRunResult prints per-stage status lines followed by a run
// summary. StatusLine adapts the rows to text or TSV mode.
func renderRunResult(cctx *CommandContext, run *state.Run) {
	r := cctx.Renderer

	stageRuns, err := cctx.Pipeline.Store().StageRunsForRun(run.ID)
	if err == nil {
		for _, sr := range stageRuns {
			detail := ""
			switch sr.Status {
			case state.StageStatusSuccess:
				detail = fmt.Sprintf("%dms", sr.DurationMS)
			case state.StageStatusFailed, state.StageStatusSkipped:
				detail = sr.Error
			}
			r.StatusLine(sr.Stage, string(sr.Status), detail)
		}
	}

	if r.EffectiveMode() != output.ModeText {
		r.Println("run\t" + run.ID + "\t" + string(run.Status) + "\t" + fmt.Sprintf("%dms", runDurationMS(run)))
		return
	}

	elapsed := time.Duration(runDurationMS(run)) * time.Millisecond
	r.Println("")
	if run.Status == state.RunStatusCompleted {
		r.Success(fmt.Sprintf("Run %s completed in %s", run.ID, elapsed))
	} else {
		r.Println(r.Styles().Bad.Sprint("✗") + fmt.Sprintf(" Run %s %s", run.ID, run.Status))
	}
}

// emitRunEvents renders one finished run as JSON event lines, from
// run_start through run_complete.
func emitRunEvents(cctx *CommandContext, planned []string, run *state.Run, runErr error, totalMS int64) {
	r := cctx.Renderer

	startEvent := output.RunEvent{Event: "run_start", Profile: cctx.Cfg.Profile, Stages: planned}
	if run != nil {
		startEvent.RunID = run.ID
	}
	r.Emit(startEvent)

	var successful, failed, skipped int
	if run != nil {
		if stageRuns, err := cctx.Pipeline.Store().StageRunsForRun(run.ID); err == nil {
			for _, sr := range stageRuns {
				r.Emit(output.RunEvent{Event: "stage_start", RunID: run.ID, Stage: sr.Stage})

				event := output.RunEvent{
					Event:      "stage_complete",
					RunID:      run.ID,
					Stage:      sr.Stage,
					Status:     string(sr.Status),
					DurationMS: sr.DurationMS,
				}
				switch sr.Status {
				case state.StageStatusSuccess:
					successful++
				case state.StageStatusFailed:
					failed++
					event.Error = sr.Error
				case state.StageStatusSkipped:
					skipped++
				}
				r.Emit(event)
			}
		}
	}

	status := "completed"
	if runErr != nil || (run != nil && run.Status == state.RunStatusFailed) {
		status = "failed"
	}
	completeEvent := output.RunEvent{
		Event:       "run_complete",
		Status:      status,
		TotalStages: len(planned),
		Successful:  successful,
		Failed:      failed,
		Skipped:     skipped,
		TotalMS:     totalMS,
	}
	if run != nil {
		completeEvent.RunID = run.ID
	}
	if runErr != nil {
		completeEvent.Error = runErr.Error()
	}
	r.Emit(completeEvent)
}

// plannedStages resolves a selection to the stage names that will run,
// in dependency order.
func plannedStages(p *pipeline.Pipeline, opts pipeline.RunOptions) []string {
	if len(opts.Select) == 0 {
		return p.StageNames()
	}

	names := opts.Select
	if opts.Downstream {
		names = p.Graph().Affected(opts.Select)
	}
	sorted, err := p.Graph().Subgraph(names).TopologicalSort()
	if err != nil {
		return names
	}
	out := make([]string, len(sorted))
	for i, node := range sorted {
		out[i] = node.ID
	}
	return out
}

// runDurationMS returns the run's wall time in milliseconds, zero when
// the run is still open.
func runDurationMS(run *state.Run) int64 {
	if run == nil || run.CompletedAt == nil {
		return 0
	}
	return run.CompletedAt.Sub(run.StartedAt).Milliseconds()
}

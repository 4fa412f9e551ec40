package commands

import (
	"fmt"
	"time"

	"github.com/jedib0t/go-pretty/v6/table"

	"github.com/cmdowney88/chonker/internal/cli/output"
	"github.com/cmdowney88/chonker/internal/state"
	"github.com/spf13/cobra"
)

// NewRunsCommand creates the runs command.
func NewRunsCommand() *cobra.Command {
	var limit int

	cmd := &cobra.Command{
		Use:   "runs",
		Short: "List recent pipeline runs",
		Long:  `Show recent pipeline runs from the state store, newest first.`,
		RunE: func(cmd *cobra.Command, _ []string) error {
			return runRuns(cmd, limit)
		},
	}

	cmd.Flags().IntVar(&limit, "limit", 10, "Maximum number of runs to show")

	return cmd
}

func runRuns(cmd *cobra.Command, limit int) error {
	cctx, cleanup, err := NewCommandContext(cmd)
	if err != nil {
		return err
	}
	defer cleanup()

	runs, err := cctx.Pipeline.Store().ListRuns(limit)
	if err != nil {
		return fmt.Errorf("failed to list runs: %w", err)
	}

	switch cctx.Renderer.EffectiveMode() {
	case output.ModeJSON:
		return runsJSON(cctx, runs)
	case output.ModeTSV:
		return runsTSV(cctx, runs)
	default:
		return runsText(cctx, runs)
	}
}

func runsText(cctx *CommandContext, runs []*state.Run) error {
	r := cctx.Renderer

	if len(runs) == 0 {
		r.Println("No runs recorded yet. Run 'chonker run' first.")
		return nil
	}

	t := r.Table()
	t.AppendHeader(table.Row{"RUN", "PROFILE", "STATUS", "STARTED", "DURATION", "STAGES"})
	for _, run := range runs {
		t.AppendRow(table.Row{
			run.ID,
			run.Profile,
			styledStatus(r, string(run.Status)),
			run.StartedAt.Local().Format("2006-01-02 15:04:05"),
			formatRunDuration(run),
			stageTally(cctx, run.ID),
		})
	}
	t.Render()

	return nil
}

func runsTSV(cctx *CommandContext, runs []*state.Run) error {
	r := cctx.Renderer
	for _, run := range runs {
		r.Println(run.ID + "\t" + run.Profile + "\t" + string(run.Status) +
			"\t" + run.StartedAt.UTC().Format(time.RFC3339) +
			"\t" + formatRunDuration(run) +
			"\t" + stageTally(cctx, run.ID))
	}
	return nil
}

func runsJSON(cctx *CommandContext, runs []*state.Run) error {
	out := output.RunsOutput{
		Runs:  make([]output.RunInfo, 0, len(runs)),
		Total: len(runs),
	}

	for _, run := range runs {
		info := output.RunInfo{
			ID:        run.ID,
			Profile:   run.Profile,
			Status:    string(run.Status),
			StartedAt: run.StartedAt.UTC().Format(time.RFC3339),
			Error:     errPtr(run.Error),
		}
		if run.CompletedAt != nil {
			info.CompletedAt = run.CompletedAt.UTC().Format(time.RFC3339)
		}

		stageRuns, err := cctx.Pipeline.Store().StageRunsForRun(run.ID)
		if err == nil {
			for _, sr := range stageRuns {
				info.Stages = append(info.Stages, output.StageRunInfo{
					Stage:      sr.Stage,
					Status:     string(sr.Status),
					DurationMS: sr.DurationMS,
					Error:      errPtr(sr.Error),
				})
			}
		}

		out.Runs = append(out.Runs, info)
	}

	return cctx.Renderer.JSON(out)
}

// stageTally summarizes a run's stages as "successful/total".
func stageTally(cctx *CommandContext, runID string) string {
	stageRuns, err := cctx.Pipeline.Store().StageRunsForRun(runID)
	if err != nil || len(stageRuns) == 0 {
		return "-"
	}
	successful := 0
	for _, sr := range stageRuns {
		if sr.Status == state.StageStatusSuccess {
			successful++
		}
	}
	return fmt.Sprintf("%d/%d", successful, len(stageRuns))
}

func formatRunDuration(run *state.Run) string {
	if run.CompletedAt == nil {
		return "-"
	}
	return run.CompletedAt.Sub(run.StartedAt).Round(time.Millisecond).String()
}

// styledStatus colors a status word for terminal tables.
func styledStatus(r *output.Renderer, status string) string {
	switch status {
	case "completed", "success":
		return r.Styles().Good.Sprint(status)
	case "failed":
		return r.Styles().Bad.Sprint(status)
	default:
		return status
	}
}

// errPtr returns nil for empty strings so JSON omits clean records.
func errPtr(s string) *string {
	if s == "" {
		return nil
	}
	return &s
}

package commands

import (
	"github.com/jedib0t/go-pretty/v6/table"

	"github.com/cmdowney88/chonker/internal/cli/config"
	"github.com/cmdowney88/chonker/internal/cli/output"
	"github.com/cmdowney88/chonker/internal/pipeline"
	"github.com/cmdowney88/chonker/pkg/batch"
	"github.com/cmdowney88/chonker/pkg/wrangle"
	"github.com/spf13/cobra"
)

// batchTableLimit caps the per-batch table in text mode.
const batchTableLimit = 20

// BatchesOptions holds options for the batches command.
type BatchesOptions struct {
	Size      int
	By        string
	SeqLen    int
	GradAccum int
	Pad       int
	DropFinal bool
}

// NewBatchesCommand creates the batches command.
func NewBatchesCommand() *cobra.Command {
	opts := &BatchesOptions{}

	cmd := &cobra.Command{
		Use:   "batches <encoded-file>",
		Short: "Plan padded batches from an encoded file",
		Long: `Plan batches from a file of encoded sequences, one sequence of
space-separated vocabulary IDs per line.

With --by sequences or tokens, sequences are sorted by length and
grouped into padded batches, and the padding overhead of each batch is
reported. With --by stream, sequence boundaries are dropped and the
flat token stream is reshaped into parallel columns cut into
fixed-length windows.

Settings default to the batch section of the config.`,
		Example: `  # Plan batches of 32 sequences
  chonker batches build/encoded/corpus.ids.txt

  # Token-budget batches with an explicit padding ID
  chonker batches --by tokens --size 4096 --pad 1 corpus.ids.txt

  # Fixed windows over the flat stream
  chonker batches --by stream --size 20 --seq-len 70 corpus.ids.txt`,
		Args: cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			return runBatches(cmd, args[0], opts)
		},
	}

	cmd.Flags().IntVar(&opts.Size, "size", 0, "Sequences per batch, or the token budget with --by tokens (default from config)")
	cmd.Flags().StringVar(&opts.By, "by", "", "Batching unit: sequences, tokens, or stream (default from config)")
	cmd.Flags().IntVar(&opts.SeqLen, "seq-len", 0, "Window length with --by stream (default from config)")
	cmd.Flags().IntVar(&opts.GradAccum, "grad-accum", 0, "Gradient accumulation granularity for dropped batches (default from config)")
	cmd.Flags().IntVar(&opts.Pad, "pad", -1, "Pad value (default: the configured pad token's ID in the project vocabulary, or 0)")
	cmd.Flags().BoolVar(&opts.DropFinal, "drop-final", false, "Drop trailing sequences that cannot fill a full batch")

	return cmd
}

func runBatches(cmd *cobra.Command, path string, opts *BatchesOptions) error {
	cctx := NewCommandContextWithoutPipeline(cmd)

	size := opts.Size
	if size == 0 {
		size = cctx.Cfg.Batch.Size
	}
	by := opts.By
	if by == "" {
		by = cctx.Cfg.Batch.By
	}
	seqLen := opts.SeqLen
	if seqLen == 0 {
		seqLen = cctx.Cfg.Batch.SeqLen
	}
	accum := opts.GradAccum
	if accum == 0 {
		accum = cctx.Cfg.Batch.GradAccum
	}
	pad := opts.Pad
	if pad < 0 {
		pad = resolvePadValue(cctx.Cfg)
	}

	data, err := readEncoded(path)
	if err != nil {
		return err
	}

	if by == "stream" {
		return planStream(cctx, data, seqLen, size)
	}
	return planDataset(cctx, data, batch.DatasetConfig{
		BatchSize:            size,
		PadValue:             pad,
		BatchBy:              batch.BatchBy(by),
		GradientAccumulation: accum,
		KeepFinal:            !opts.DropFinal,
	})
}

func planDataset(cctx *CommandContext, data [][]int, cfg batch.DatasetConfig) error {
	ds, err := batch.NewDataset(data, cfg)
	if err != nil {
		return err
	}

	plan := output.BatchPlanOutput{
		TotalBatches:   ds.Len(),
		TotalSequences: ds.TotalSequences(),
	}
	for i := 0; i < ds.Len(); i++ {
		b, err := ds.At(i)
		if err != nil {
			return err
		}
		steps := len(b.Data)
		seqs := len(b.Lengths)
		tokens := 0
		for _, l := range b.Lengths {
			tokens += l
		}
		padTokens := steps*seqs - tokens
		plan.TotalTokens += tokens
		plan.PadTokens += padTokens
		plan.Batches = append(plan.Batches, output.BatchInfo{
			Index:     i,
			Sequences: seqs,
			Steps:     steps,
			PadTokens: padTokens,
		})
	}
	if cells := plan.TotalTokens + plan.PadTokens; cells > 0 {
		plan.PadOverheadPct = 100 * float64(plan.PadTokens) / float64(cells)
	}

	switch cctx.Renderer.EffectiveMode() {
	case output.ModeJSON:
		return cctx.Renderer.JSON(plan)
	case output.ModeTSV:
		return batchesTSV(cctx, plan)
	default:
		return batchesText(cctx, plan, len(data)-ds.TotalSequences())
	}
}

func planStream(cctx *CommandContext, data [][]int, seqLen, size int) error {
	total := 0
	for _, seq := range data {
		total += len(seq)
	}
	flat := make([]int, 0, total)
	for _, seq := range data {
		flat = append(flat, seq...)
	}

	s, err := batch.Partition(flat, seqLen, size)
	if err != nil {
		return err
	}

	plan := output.BatchPlanOutput{
		TotalBatches:   s.NumBatches(),
		TotalSequences: s.BatchSize(),
		TotalTokens:    s.Used(),
	}
	for i := 0; i < s.NumBatches(); i++ {
		plan.Batches = append(plan.Batches, output.BatchInfo{
			Index:     i,
			Sequences: s.BatchSize(),
			Steps:     seqLen,
		})
	}

	switch cctx.Renderer.EffectiveMode() {
	case output.ModeJSON:
		return cctx.Renderer.JSON(plan)
	case output.ModeTSV:
		return batchesTSV(cctx, plan)
	default:
		r := cctx.Renderer
		r.Printf("%d windows of %d steps x %d columns (%d tokens)\n",
			s.NumBatches(), seqLen, s.BatchSize(), s.Used())
		if discarded := len(flat) - s.Used(); discarded > 0 {
			r.Println(r.Styles().Muted.Sprintf("discarded %d trailing tokens", discarded))
		}
		return nil
	}
}

func batchesText(cctx *CommandContext, plan output.BatchPlanOutput, dropped int) error {
	r := cctx.Renderer

	r.Printf("%d batches over %d sequences, %d tokens (%.1f%% padding)\n",
		plan.TotalBatches, plan.TotalSequences, plan.TotalTokens, plan.PadOverheadPct)
	if dropped > 0 {
		r.Println(r.Styles().Muted.Sprintf("dropped %d trailing sequences", dropped))
	}
	r.Println()

	t := r.Table()
	t.AppendHeader(table.Row{"BATCH", "SEQUENCES", "STEPS", "PAD"})
	shown := plan.Batches
	if len(shown) > batchTableLimit {
		shown = shown[:batchTableLimit]
	}
	for _, b := range shown {
		t.AppendRow(table.Row{b.Index, b.Sequences, b.Steps, b.PadTokens})
	}
	t.Render()

	if len(shown) < len(plan.Batches) {
		r.Println(r.Styles().Muted.Sprintf("showing %d of %d batches", len(shown), len(plan.Batches)))
	}
	return nil
}

func batchesTSV(cctx *CommandContext, plan output.BatchPlanOutput) error {
	for _, b := range plan.Batches {
		cctx.Renderer.Printf("%d\t%d\t%d\t%d\n", b.Index, b.Sequences, b.Steps, b.PadTokens)
	}
	return nil
}

// resolvePadValue looks the configured pad token up in the project
// vocabulary, when one has been built.
func resolvePadValue(cfg *config.Config) int {
	v := wrangle.New("")
	if err := v.LoadFile(pipeline.VocabArtifact(cfg.OutDir)); err != nil {
		return 0
	}
	if id, ok := v.ID(cfg.Batch.PadToken); ok {
		return id
	}
	return 0
}

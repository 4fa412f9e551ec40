package commands

import (
	"strings"

	"github.com/jedib0t/go-pretty/v6/table"

	"github.com/cmdowney88/chonker/internal/cli/output"
	"github.com/cmdowney88/chonker/pkg/wrangle"
	"github.com/spf13/cobra"
)

// NGramsOptions holds options for the ngrams command.
type NGramsOptions struct {
	MaxLength int
	MinCount  int
	Limit     int
}

// NewNGramsCommand creates the ngrams command.
func NewNGramsCommand() *cobra.Command {
	opts := &NGramsOptions{}

	cmd := &cobra.Command{
		Use:   "ngrams <file...>",
		Short: "Count n-grams in tokenized files",
		Long: `Count n-grams of length 1 up to --max-length across tokenized files.

Counts are sorted most frequent first, with ties broken alphabetically.
Settings default to the ngrams section of the config. Input files are
expected to be tokenized, one sequence per line.`,
		Example: `  # Count unigrams and bigrams
  chonker ngrams build/tokenized/*.tok.txt

  # Trigrams seen at least five times, top 20
  chonker ngrams --max-length 3 --min-count 5 --limit 20 corpus.tok.txt`,
		Args: cobra.MinimumNArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			return runNGrams(cmd, args, opts)
		},
	}

	cmd.Flags().IntVar(&opts.MaxLength, "max-length", 0, "Longest n-gram to count (default from config)")
	cmd.Flags().IntVar(&opts.MinCount, "min-count", 0, "Drop n-grams seen fewer times (default from config)")
	cmd.Flags().IntVar(&opts.Limit, "limit", 0, "Show only the most frequent N n-grams (0 shows all)")

	return cmd
}

func runNGrams(cmd *cobra.Command, args []string, opts *NGramsOptions) error {
	cctx := NewCommandContextWithoutPipeline(cmd)

	maxLen := opts.MaxLength
	if maxLen == 0 {
		maxLen = cctx.Cfg.NGrams.MaxLength
	}
	minCount := opts.MinCount
	if minCount == 0 {
		minCount = cctx.Cfg.NGrams.MinCount
	}

	corpus, err := readTokenizedFiles(args)
	if err != nil {
		return err
	}

	counts, err := wrangle.CountNGrams(corpus, maxLen, minCount)
	if err != nil {
		return err
	}

	sorted := counts.SortedNGrams()
	if opts.Limit > 0 && opts.Limit < len(sorted) {
		sorted = sorted[:opts.Limit]
	}

	switch cctx.Renderer.EffectiveMode() {
	case output.ModeJSON:
		return ngramsJSON(cctx, counts, sorted)
	case output.ModeTSV:
		return ngramsTSV(cctx, counts, sorted)
	default:
		return ngramsText(cctx, counts, sorted)
	}
}

func ngramsText(cctx *CommandContext, counts *wrangle.NGramCounts, sorted [][]string) error {
	r := cctx.Renderer

	if len(sorted) == 0 {
		r.Println("No n-grams met the minimum count.")
		return nil
	}

	t := r.Table()
	t.AppendHeader(table.Row{"N-GRAM", "N", "COUNT"})
	for _, ngram := range sorted {
		t.AppendRow(table.Row{
			strings.Join(ngram, " "),
			len(ngram),
			counts.Count(ngram...),
		})
	}
	t.Render()

	if len(sorted) < counts.Len() {
		r.Println(r.Styles().Muted.Sprintf("showing %d of %d distinct n-grams", len(sorted), counts.Len()))
	} else {
		r.Println(r.Styles().Muted.Sprintf("%d distinct n-grams", counts.Len()))
	}
	return nil
}

// ngramsTSV writes rows in the same "ngram<TAB>count" form the pipeline
// uses for its ngrams.tsv artifact.
func ngramsTSV(cctx *CommandContext, counts *wrangle.NGramCounts, sorted [][]string) error {
	for _, ngram := range sorted {
		cctx.Renderer.Printf("%s\t%d\n", strings.Join(ngram, " "), counts.Count(ngram...))
	}
	return nil
}

func ngramsJSON(cctx *CommandContext, counts *wrangle.NGramCounts, sorted [][]string) error {
	out := output.NGramsOutput{
		NGrams:   make([]output.NGramInfo, 0, len(sorted)),
		Distinct: counts.Len(),
	}
	for _, ngram := range sorted {
		out.NGrams = append(out.NGrams, output.NGramInfo{
			NGram: strings.Join(ngram, " "),
			N:     len(ngram),
			Count: counts.Count(ngram...),
		})
	}
	return cctx.Renderer.JSON(out)
}

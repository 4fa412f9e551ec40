package commands

import (
	"fmt"
	"strings"

	"github.com/cmdowney88/chonker/pkg/wrangle"
	"github.com/spf13/cobra"
)

// TokenizeOptions holds options for the tokenize command.
type TokenizeOptions struct {
	Level        string
	PreserveCase bool
	SplitTags    bool
	EdgeTokens   bool
	Delimiter    string
	Normalize    string
	Out          string
}

// NewTokenizeCommand creates the tokenize command.
func NewTokenizeCommand() *cobra.Command {
	opts := &TokenizeOptions{}

	cmd := &cobra.Command{
		Use:   "tokenize <file>",
		Short: "Tokenize a text file",
		Long: `Tokenize a single text file without touching project state.

Settings default to the tokenizer section of chonker.yaml; flags
override individual settings. Pass "-" to read from stdin. Output is
one line per input line with tokens separated by spaces.`,
		Example: `  # Word-tokenize with project settings
  chonker tokenize notes.txt

  # Character-level tokens with sentence boundaries
  chonker tokenize --level char --edge-tokens notes.txt

  # Tokenize from stdin into a file
  cat notes.txt | chonker tokenize - --out notes.tok.txt`,
		Args: cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			return runTokenize(cmd, opts, args[0])
		},
	}

	cmd.Flags().StringVar(&opts.Level, "level", "", "Tokenization level (word|char)")
	cmd.Flags().BoolVar(&opts.PreserveCase, "preserve-case", false, "Keep the original casing")
	cmd.Flags().BoolVar(&opts.SplitTags, "split-tags", false, "Separate <tag> markup from adjacent text")
	cmd.Flags().BoolVar(&opts.EdgeTokens, "edge-tokens", false, "Wrap each line in <bos> and <eos>")
	cmd.Flags().StringVar(&opts.Delimiter, "delimiter", "", "Token boundary regex for word level")
	cmd.Flags().StringVar(&opts.Normalize, "normalize", "", "Unicode normalization (none|nfc|nfd|nfkc|nfkd)")
	cmd.Flags().StringVar(&opts.Out, "out", "", "Write output to a file instead of stdout")

	return cmd
}

func runTokenize(cmd *cobra.Command, opts *TokenizeOptions, path string) error {
	cctx := NewCommandContextWithoutPipeline(cmd)

	wopts := cctx.Cfg.TokenizerOptions()
	flags := cmd.Flags()
	if flags.Changed("level") {
		wopts.Level = wrangle.Level(opts.Level)
	}
	if flags.Changed("preserve-case") {
		wopts.PreserveCase = opts.PreserveCase
	}
	if flags.Changed("split-tags") {
		wopts.SplitTags = opts.SplitTags
	}
	if flags.Changed("edge-tokens") {
		wopts.EdgeTokens = opts.EdgeTokens
	}
	if flags.Changed("delimiter") {
		wopts.Delimiter = opts.Delimiter
	}
	if flags.Changed("normalize") {
		wopts.Normalize = wrangle.NormalForm(opts.Normalize)
	}

	tok, err := wrangle.NewTokenizer(wopts)
	if err != nil {
		return err
	}

	var seqs [][]string
	if path == "-" {
		seqs, err = tok.TokenizeReader(cmd.InOrStdin())
	} else {
		seqs, err = tok.TokenizeFile(path)
	}
	if err != nil {
		return err
	}

	var buf strings.Builder
	for _, seq := range seqs {
		buf.WriteString(strings.Join(seq, " "))
		buf.WriteByte('\n')
	}

	return writeTextOutput(cctx, opts.Out, buf.String(),
		fmt.Sprintf("Tokenized %d lines to %s", len(seqs), opts.Out))
}

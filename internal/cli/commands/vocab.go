package commands

import (
	"fmt"
	"strconv"
	"strings"

	"github.com/google/renameio/v2"

	"github.com/cmdowney88/chonker/pkg/wrangle"
	"github.com/spf13/cobra"
)

// NewVocabCommand creates the vocab command and its subcommands.
func NewVocabCommand() *cobra.Command {
	cmd := &cobra.Command{
		Use:   "vocab",
		Short: "Build and apply vocabularies",
		Long: `Work with token vocabularies outside the pipeline.

Vocabularies map tokens to integer IDs with the unknown token at ID 0,
and are stored as YAML. Input files are expected to be tokenized, one
sequence per line with tokens separated by whitespace.`,
	}

	cmd.AddCommand(newVocabBuildCommand())
	cmd.AddCommand(newVocabEncodeCommand())
	cmd.AddCommand(newVocabDecodeCommand())

	return cmd
}

func newVocabBuildCommand() *cobra.Command {
	var (
		out      string
		unk      string
		specials []string
	)

	cmd := &cobra.Command{
		Use:   "build <file...>",
		Short: "Build a vocabulary from tokenized files",
		Example: `  # Build a vocabulary and print it
  chonker vocab build build/tokenized/*.tok.txt

  # Reserve padding and mask tokens after <unk>
  chonker vocab build --special "<pad>" --special "<mask>" --out vocab.yaml corpus.tok.txt`,
		Args: cobra.MinimumNArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			cctx := NewCommandContextWithoutPipeline(cmd)

			if unk == "" {
				unk = cctx.Cfg.Vocab.UnkToken
			}
			if len(specials) == 0 {
				specials = cctx.Cfg.Vocab.Specials
			}

			corpus, err := readTokenizedFiles(args)
			if err != nil {
				return err
			}

			v := wrangle.New(unk, specials...)
			v.AddCorpus(corpus)

			if out == "" {
				return v.Save(cctx.Renderer.Writer())
			}
			if err := v.SaveFile(out); err != nil {
				return err
			}
			cctx.Renderer.Success(fmt.Sprintf("Vocabulary of %d tokens written to %s", v.Size(), out))
			return nil
		},
	}

	cmd.Flags().StringVar(&out, "out", "", "Write the vocabulary to a file instead of stdout")
	cmd.Flags().StringVar(&unk, "unk", "", "Unknown token (default from config)")
	cmd.Flags().StringArrayVar(&specials, "special", nil, "Reserved token placed after the unknown token (repeatable)")

	return cmd
}

func newVocabEncodeCommand() *cobra.Command {
	var out string

	cmd := &cobra.Command{
		Use:   "encode <vocab> <file>",
		Short: "Encode a tokenized file to vocabulary IDs",
		Example: `  # Encode a tokenized file against a saved vocabulary
  chonker vocab encode vocab.yaml corpus.tok.txt --out corpus.ids.txt`,
		Args: cobra.ExactArgs(2),
		RunE: func(cmd *cobra.Command, args []string) error {
			cctx := NewCommandContextWithoutPipeline(cmd)

			v := wrangle.New("")
			if err := v.LoadFile(args[0]); err != nil {
				return err
			}

			corpus, err := readTokenizedFiles(args[1:])
			if err != nil {
				return err
			}

			var buf strings.Builder
			for _, seq := range corpus {
				ids := v.ToIDs(seq)
				fields := make([]string, len(ids))
				for i, id := range ids {
					fields[i] = strconv.Itoa(id)
				}
				buf.WriteString(strings.Join(fields, " "))
				buf.WriteByte('\n')
			}

			return writeTextOutput(cctx, out, buf.String(),
				fmt.Sprintf("Encoded %d sequences to %s", len(corpus), out))
		},
	}

	cmd.Flags().StringVar(&out, "out", "", "Write output to a file instead of stdout")

	return cmd
}

func newVocabDecodeCommand() *cobra.Command {
	var (
		out  string
		join string
	)

	cmd := &cobra.Command{
		Use:   "decode <vocab> <file>",
		Short: "Decode vocabulary IDs back to tokens",
		Example: `  # Decode IDs to words
  chonker vocab decode vocab.yaml corpus.ids.txt

  # Character-level vocabularies decode with no separator
  chonker vocab decode --join "" char-vocab.yaml corpus.ids.txt`,
		Args: cobra.ExactArgs(2),
		RunE: func(cmd *cobra.Command, args []string) error {
			cctx := NewCommandContextWithoutPipeline(cmd)

			v := wrangle.New("")
			if err := v.LoadFile(args[0]); err != nil {
				return err
			}

			data, err := readEncoded(args[1])
			if err != nil {
				return err
			}

			var buf strings.Builder
			for _, ids := range data {
				buf.WriteString(strings.Join(v.ToTokens(ids), join))
				buf.WriteByte('\n')
			}

			return writeTextOutput(cctx, out, buf.String(),
				fmt.Sprintf("Decoded %d sequences to %s", len(data), out))
		},
	}

	cmd.Flags().StringVar(&out, "out", "", "Write output to a file instead of stdout")
	cmd.Flags().StringVar(&join, "join", " ", "Separator between decoded tokens")

	return cmd
}

// readTokenizedFiles loads whitespace-tokenized files as one corpus.
func readTokenizedFiles(paths []string) ([][]string, error) {
	var corpus [][]string
	for _, path := range paths {
		lines, err := wrangle.ReadLines(path)
		if err != nil {
			return nil, err
		}
		corpus = append(corpus, wrangle.SplitLines(lines, nil)...)
	}
	return corpus, nil
}

// readEncoded parses a file of space-separated vocabulary IDs, one
// sequence per line.
func readEncoded(path string) ([][]int, error) {
	lines, err := wrangle.ReadLines(path)
	if err != nil {
		return nil, err
	}
	data := make([][]int, 0, len(lines))
	for i, line := range lines {
		fields := strings.Fields(line)
		seq := make([]int, len(fields))
		for j, f := range fields {
			id, err := strconv.Atoi(f)
			if err != nil {
				return nil, fmt.Errorf("%s:%d: invalid token ID %q", path, i+1, f)
			}
			seq[j] = id
		}
		data = append(data, seq)
	}
	return data, nil
}

// writeTextOutput writes content to a file (atomically) or, with no
// path, to the renderer's output stream.
func writeTextOutput(cctx *CommandContext, path, content, successMsg string) error {
	if path == "" {
		cctx.Renderer.Printf("%s", content)
		return nil
	}
	if err := renameio.WriteFile(path, []byte(content), 0o644); err != nil {
		return fmt.Errorf("failed to write %s: %w", path, err)
	}
	cctx.Renderer.Success(successMsg)
	return nil
}

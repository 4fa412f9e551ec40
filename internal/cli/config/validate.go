package config

import (
	"fmt"
	"os"
	"strings"

	"github.com/cmdowney88/chonker/internal/cli/output"
	"github.com/cmdowney88/chonker/pkg/wrangle"
)

// Validate checks if the merged configuration is valid. Directory
// existence is checked separately so that help and init commands work
// without an existing project.
func (c *Config) Validate() error {
	if c.CorpusDir == "" {
		return fmt.Errorf("corpus_dir is required")
	}
	if c.OutDir == "" {
		return fmt.Errorf("out_dir is required")
	}

	// Tokenizer settings are validated by constructing one
	if _, err := wrangle.NewTokenizer(c.TokenizerOptions()); err != nil {
		return fmt.Errorf("invalid tokenizer config: %w", err)
	}

	if !output.ValidMode(c.OutputFormat) {
		return fmt.Errorf("unknown output format %q (accepted: %s)", c.OutputFormat, strings.Join(output.Modes(), ", "))
	}

	switch c.Batch.By {
	case "", "sequences", "tokens", "stream":
	default:
		return fmt.Errorf("unknown batch mode %q (accepted: sequences, tokens, stream)", c.Batch.By)
	}

	if c.NGrams.MaxLength < 1 {
		return fmt.Errorf("ngrams.max_length must be positive, got %d", c.NGrams.MaxLength)
	}
	if c.NGrams.MinCount < 1 {
		return fmt.Errorf("ngrams.min_count must be positive, got %d", c.NGrams.MinCount)
	}
	if c.Batch.Size < 1 {
		return fmt.Errorf("batch.size must be positive, got %d", c.Batch.Size)
	}
	if c.Batch.SeqLen < 1 {
		return fmt.Errorf("batch.seq_len must be positive, got %d", c.Batch.SeqLen)
	}
	if c.Batch.GradAccum < 1 {
		return fmt.Errorf("batch.grad_accum must be positive, got %d", c.Batch.GradAccum)
	}

	return nil
}

// ValidateDirectories checks if required directories exist.
func (c *Config) ValidateDirectories() error {
	if _, err := os.Stat(c.CorpusDir); os.IsNotExist(err) {
		return fmt.Errorf("corpus directory does not exist: %s\nHint: Run 'chonker init' to scaffold a project or use --corpus-dir to specify a different path", c.CorpusDir)
	}
	return nil
}

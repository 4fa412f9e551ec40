// Package config provides configuration management for the chonker CLI.
//
// Configuration is layered from defaults, a chonker.yaml project file,
// CHONKER_-prefixed environment variables, and command-line flags, in
// ascending precedence. Named profiles can replace whole sections of
// the base configuration.
package config

import (
	"github.com/cmdowney88/chonker/pkg/wrangle"
)

// TokenizerConfig configures the tokenize stage and the one-shot
// tokenize command.
type TokenizerConfig struct {
	Level        string `koanf:"level"`
	PreserveCase bool   `koanf:"preserve_case"`
	SplitTags    bool   `koanf:"split_tags"`
	EdgeTokens   bool   `koanf:"edge_tokens"`
	Delimiter    string `koanf:"delimiter"`
	Normalize    string `koanf:"normalize"`
}

// VocabConfig configures vocabulary construction.
type VocabConfig struct {
	UnkToken string   `koanf:"unk_token"`
	Specials []string `koanf:"specials"`
}

// NGramsConfig configures n-gram counting.
type NGramsConfig struct {
	MaxLength int `koanf:"max_length"`
	MinCount  int `koanf:"min_count"`
}

// BatchConfig configures batch planning.
type BatchConfig struct {
	Size      int    `koanf:"size"`
	By        string `koanf:"by"`
	PadToken  string `koanf:"pad_token"`
	SeqLen    int    `koanf:"seq_len"`
	GradAccum int    `koanf:"grad_accum"`
}

// ProfileConfig holds profile-specific configuration overrides. A
// section given in a profile replaces the base section wholesale, so
// profiles must spell out every field of the sections they override.
type ProfileConfig struct {
	CorpusDir string           `koanf:"corpus_dir"`
	OutDir    string           `koanf:"out_dir"`
	Tokenizer *TokenizerConfig `koanf:"tokenizer"`
	Vocab     *VocabConfig     `koanf:"vocab"`
	NGrams    *NGramsConfig    `koanf:"ngrams"`
	Batch     *BatchConfig     `koanf:"batch"`
}

// Config holds all CLI configuration options.
type Config struct {
	CorpusDir    string                   `koanf:"corpus_dir"`
	OutDir       string                   `koanf:"out_dir"`
	StatePath    string                   `koanf:"state_path"`
	Profile      string                   `koanf:"profile"`
	Verbose      bool                     `koanf:"verbose"`
	OutputFormat string                   `koanf:"output"`
	Tokenizer    TokenizerConfig          `koanf:"tokenizer"`
	Vocab        VocabConfig              `koanf:"vocab"`
	NGrams       NGramsConfig             `koanf:"ngrams"`
	Batch        BatchConfig              `koanf:"batch"`
	Profiles     map[string]ProfileConfig `koanf:"profiles"`

	// ProjectRoot is the directory relative paths resolve against.
	// Derived during loading, never read from the file itself.
	ProjectRoot string `koanf:"-"`
}

// Default configuration values.
const (
	DefaultCorpusDir = "corpus"
	DefaultOutDir    = "build"
	DefaultStateFile = ".chonker/state.db"
	DefaultProfile   = "default"
	DefaultOutput    = "auto" // Auto-detect: TTY=text, non-TTY=tsv
)

// TokenizerOptions maps the tokenizer section onto wrangle.Options.
func (c *Config) TokenizerOptions() wrangle.Options {
	return wrangle.Options{
		Level:        wrangle.Level(c.Tokenizer.Level),
		PreserveCase: c.Tokenizer.PreserveCase,
		SplitTags:    c.Tokenizer.SplitTags,
		EdgeTokens:   c.Tokenizer.EdgeTokens,
		Delimiter:    c.Tokenizer.Delimiter,
		Normalize:    wrangle.NormalForm(c.Tokenizer.Normalize),
	}
}

// applyProfile overlays profile-specific overrides onto the base
// configuration.
func (c *Config) applyProfile(p ProfileConfig) {
	if p.CorpusDir != "" {
		c.CorpusDir = p.CorpusDir
	}
	if p.OutDir != "" {
		c.OutDir = p.OutDir
	}
	if p.Tokenizer != nil {
		c.Tokenizer = *p.Tokenizer
	}
	if p.Vocab != nil {
		c.Vocab = *p.Vocab
	}
	if p.NGrams != nil {
		c.NGrams = *p.NGrams
	}
	if p.Batch != nil {
		c.Batch = *p.Batch
	}
}

package commands

import (
	"log/slog"
	"os"
	"path/filepath"

	"github.com/cmdowney88/chonker/internal/cli/config"
	"github.com/cmdowney88/chonker/internal/cli/output"
	"github.com/cmdowney88/chonker/internal/pipeline"
	"github.com/spf13/cobra"
)

// CommandContext holds common dependencies for CLI commands.
type CommandContext struct {
	Cfg      *config.Config
	Logger   *slog.Logger
	Pipeline *pipeline.Pipeline
	Renderer *output.Renderer
}

// NewCommandContext creates a CommandContext with pipeline and renderer.
// Returns the context and a cleanup function that must be called
// (typically via defer).
func NewCommandContext(cmd *cobra.Command) (*CommandContext, func(), error) {
	cfg := getConfig()
	logger := config.GetLogger(cmd.Context())

	p, err := createPipeline(cfg, logger)
	if err != nil {
		return nil, nil, err
	}

	mode := output.Mode(cfg.OutputFormat)
	r := output.NewRenderer(cmd.OutOrStdout(), cmd.ErrOrStderr(), mode)

	cleanup := func() {
		_ = p.Close()
	}

	return &CommandContext{
		Cfg:      cfg,
		Logger:   logger,
		Pipeline: p,
		Renderer: r,
	}, cleanup, nil
}

// NewCommandContextWithoutPipeline creates a CommandContext without a
// pipeline. Useful for commands that don't touch the state store.
func NewCommandContextWithoutPipeline(cmd *cobra.Command) *CommandContext {
	cfg := getConfig()
	logger := config.GetLogger(cmd.Context())
	mode := output.Mode(cfg.OutputFormat)
	r := output.NewRenderer(cmd.OutOrStdout(), cmd.ErrOrStderr(), mode)

	return &CommandContext{
		Cfg:      cfg,
		Logger:   logger,
		Renderer: r,
	}
}

// Helper functions shared across commands

// getConfig returns the current configuration.
// It uses config.GetCurrentConfig() if available, otherwise falls back
// to environment variables.
func getConfig() *config.Config {
	if cfg := config.GetCurrentConfig(); cfg != nil {
		return cfg
	}

	// Fallback: read from environment with defaults
	return &config.Config{
		CorpusDir:    getEnvOrDefault("CHONKER_CORPUS_DIR", config.DefaultCorpusDir),
		OutDir:       getEnvOrDefault("CHONKER_OUT_DIR", config.DefaultOutDir),
		StatePath:    getEnvOrDefault("CHONKER_STATE_PATH", config.DefaultStateFile),
		Profile:      getEnvOrDefault("CHONKER_PROFILE", config.DefaultProfile),
		Verbose:      os.Getenv("CHONKER_VERBOSE") == "true",
		OutputFormat: os.Getenv("CHONKER_OUTPUT"),
		Tokenizer:    config.TokenizerConfig{Level: "word", Delimiter: `\s+`, Normalize: "none"},
		Vocab:        config.VocabConfig{UnkToken: "<unk>"},
		NGrams:       config.NGramsConfig{MaxLength: 2, MinCount: 1},
		Batch:        config.BatchConfig{Size: 32, By: "sequences", PadToken: "<pad>", SeqLen: 64, GradAccum: 1},
	}
}

func getEnvOrDefault(key, defaultVal string) string {
	if val := os.Getenv(key); val != "" {
		return val
	}
	return defaultVal
}

func createPipeline(cfg *config.Config, logger *slog.Logger) (*pipeline.Pipeline, error) {
	// Ensure state directory exists
	stateDir := filepath.Dir(cfg.StatePath)
	if stateDir != "." && stateDir != "" {
		if err := os.MkdirAll(stateDir, 0750); err != nil {
			return nil, err
		}
	}

	pipeCfg := pipeline.Config{
		CorpusDir:     cfg.CorpusDir,
		OutDir:        cfg.OutDir,
		StatePath:     cfg.StatePath,
		Profile:       cfg.Profile,
		Tokenizer:     cfg.TokenizerOptions(),
		UnkToken:      cfg.Vocab.UnkToken,
		Specials:      cfg.Vocab.Specials,
		NGramMaxLen:   cfg.NGrams.MaxLength,
		NGramMinCount: cfg.NGrams.MinCount,
		Logger:        logger,
	}

	return pipeline.New(pipeCfg)
}

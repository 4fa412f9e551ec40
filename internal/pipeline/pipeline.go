// Package pipeline provides the corpus processing pipeline.
// It handles stage dependency resolution, topological execution, and
// incremental re-processing driven by content hashes.
package pipeline

import (
	"context"
	"fmt"
	"log/slog"
	"runtime"

	"github.com/cmdowney88/chonker/internal/dag"
	"github.com/cmdowney88/chonker/internal/state"
	"github.com/cmdowney88/chonker/pkg/wrangle"
)

// Stage names, usable with RunOptions.Select.
const (
	StageTokenize = "tokenize"
	StageVocab    = "vocab"
	StageNGrams   = "ngrams"
	StageEncode   = "encode"
)

// stageContext carries per-run information into stage functions.
type stageContext struct {
	runID string
	force bool
}

// Stage is a single unit of pipeline work.
type Stage struct {
	// Name identifies the stage in selections and state records
	Name string
	// Deps are the stages that must run before this one
	Deps []string

	run func(ctx context.Context, p *Pipeline, sc stageContext) error
}

// Config holds pipeline configuration.
type Config struct {
	// CorpusDir is the directory scanned for corpus .txt files
	CorpusDir string
	// OutDir is the directory stage artifacts are written under
	OutDir string
	// StatePath is the path to the SQLite state database
	StatePath string
	// Profile is the active configuration profile name
	Profile string
	// Tokenizer configures the tokenize stage
	Tokenizer wrangle.Options
	// UnkToken is the vocabulary's unknown token (default "<unk>")
	UnkToken string
	// Specials are extra reserved tokens placed after the unknown token
	Specials []string
	// NGramMaxLen is the longest n-gram counted (default 2)
	NGramMaxLen int
	// NGramMinCount prunes n-grams seen fewer times (default 1)
	NGramMinCount int
	// Workers caps concurrent tokenization (default GOMAXPROCS)
	Workers int
	// KeepRuns bounds retained vocab snapshots (default 5)
	KeepRuns int
	// Logger is the structured logger (optional, uses discard if nil)
	Logger *slog.Logger
}

// Pipeline orchestrates the execution of corpus processing stages.
type Pipeline struct {
	cfg    Config
	logger *slog.Logger
	store  *state.Store
	tok    *wrangle.Tokenizer
	graph  *dag.Graph[*Stage]
	corpus []*corpusEntry
}

// New creates a pipeline, opening the state database and preparing the
// stage graph.
func New(cfg Config) (*Pipeline, error) {
	logger := cfg.Logger
	if logger == nil {
		logger = slog.New(slog.DiscardHandler)
	}

	if cfg.CorpusDir == "" {
		return nil, fmt.Errorf("corpus directory is required")
	}
	if cfg.OutDir == "" {
		return nil, fmt.Errorf("output directory is required")
	}
	if cfg.StatePath == "" {
		return nil, fmt.Errorf("state path is required")
	}
	if cfg.Profile == "" {
		cfg.Profile = "default"
	}
	if cfg.NGramMaxLen == 0 {
		cfg.NGramMaxLen = 2
	}
	if cfg.NGramMinCount == 0 {
		cfg.NGramMinCount = 1
	}
	if cfg.Workers < 1 {
		cfg.Workers = runtime.GOMAXPROCS(0)
	}
	if cfg.KeepRuns < 1 {
		cfg.KeepRuns = 5
	}

	logger.Debug("initializing pipeline",
		"corpus_dir", cfg.CorpusDir, "out_dir", cfg.OutDir, "profile", cfg.Profile)

	tok, err := wrangle.NewTokenizer(cfg.Tokenizer)
	if err != nil {
		return nil, fmt.Errorf("invalid tokenizer options: %w", err)
	}

	store := state.NewStore(logger)
	if err := store.Open(cfg.StatePath); err != nil {
		return nil, fmt.Errorf("failed to open state store: %w", err)
	}
	if err := store.Migrate(); err != nil {
		_ = store.Close()
		return nil, fmt.Errorf("failed to migrate state store: %w", err)
	}

	p := &Pipeline{
		cfg:    cfg,
		logger: logger,
		store:  store,
		tok:    tok,
		graph:  dag.New[*Stage](),
	}

	if err := p.buildGraph(); err != nil {
		_ = store.Close()
		return nil, err
	}

	return p, nil
}

// buildGraph wires the static stage dependency graph.
func (p *Pipeline) buildGraph() error {
	p.graph.Clear()

	stages := []*Stage{
		{Name: StageTokenize, run: runTokenize},
		{Name: StageVocab, Deps: []string{StageTokenize}, run: runVocab},
		{Name: StageNGrams, Deps: []string{StageTokenize}, run: runNGrams},
		{Name: StageEncode, Deps: []string{StageTokenize, StageVocab}, run: runEncode},
	}

	for _, s := range stages {
		p.graph.AddNode(s.Name, s)
	}
	for _, s := range stages {
		for _, dep := range s.Deps {
			if err := p.graph.AddEdge(dep, s.Name); err != nil {
				return fmt.Errorf("failed to add dependency %s -> %s: %w", dep, s.Name, err)
			}
		}
	}

	if hasCycle, cyclePath := p.graph.HasCycle(); hasCycle {
		return fmt.Errorf("circular stage dependency: %v", cyclePath)
	}

	return nil
}

// Close releases the state store.
func (p *Pipeline) Close() error {
	p.logger.Debug("closing pipeline")

	if p.store != nil {
		return p.store.Close()
	}
	return nil
}

// Store returns the state store.
func (p *Pipeline) Store() *state.Store {
	return p.store
}

// Graph returns the stage dependency graph.
func (p *Pipeline) Graph() *dag.Graph[*Stage] {
	return p.graph
}

// StageNames returns all stage names in dependency order.
func (p *Pipeline) StageNames() []string {
	sorted, err := p.graph.TopologicalSort()
	if err != nil {
		return nil
	}
	names := make([]string, len(sorted))
	for i, node := range sorted {
		names[i] = node.ID
	}
	return names
}

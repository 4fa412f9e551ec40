// Package embedding imports pretrained token embeddings stored as
// NumPy arrays and aligns them to a vocabulary.
package embedding

import (
	"encoding/json"
	"fmt"
	"log/slog"
	"math/rand/v2"
	"os"

	"github.com/sbinet/npyio"
	"gonum.org/v1/gonum/mat"

	"github.com/cmdowney88/chonker/pkg/wrangle"
)

// Option configures Load.
type Option func(*loadConfig)

type loadConfig struct {
	indicesPath string
	initRange   float64
	logger      *slog.Logger
	rng         *rand.Rand
}

// WithIndicesPath overrides the path of the token-index sidecar, which
// defaults to {base}_indices.json.
func WithIndicesPath(path string) Option {
	return func(c *loadConfig) { c.indicesPath = path }
}

// WithInitRange sets the half-width of the uniform range around zero
// used to initialize vectors for tokens without a pretrained row. The
// default is 1.0.
func WithInitRange(r float64) Option {
	return func(c *loadConfig) { c.initRange = r }
}

// WithLogger routes informational messages to the given logger.
func WithLogger(logger *slog.Logger) Option {
	return func(c *loadConfig) { c.logger = logger }
}

// WithRand sets the source used for random initialization. The default
// is the shared global source.
func WithRand(rng *rand.Rand) Option {
	return func(c *loadConfig) { c.rng = rng }
}

// Table is a vocabulary-aligned embedding matrix: row i holds the
// vector for the token with ID i. Missing lists the tokens that had no
// pretrained row and were randomly initialized.
type Table struct {
	Weights *mat.Dense
	Dim     int
	Missing []string
}

// Load reads pretrained embeddings from {base}.npy and their token
// index from the sidecar JSON file, then assembles a matrix aligned to
// the vocabulary's IDs. Vocabulary tokens without a pretrained row get
// a random vector, and pretrained rows for tokens outside the
// vocabulary are ignored.
func Load(base string, vocab *wrangle.Vocab, opts ...Option) (*Table, error) {
	cfg := loadConfig{
		indicesPath: base + "_indices.json",
		initRange:   1.0,
	}
	for _, opt := range opts {
		opt(&cfg)
	}
	if cfg.logger == nil {
		cfg.logger = slog.New(slog.DiscardHandler)
	}
	if vocab.Size() == 0 {
		return nil, fmt.Errorf("vocabulary is empty")
	}

	npyPath := base + ".npy"
	cfg.logger.Info("importing pretrained embeddings", "path", npyPath)

	f, err := os.Open(npyPath) //nolint:gosec // G304: path comes from user configuration
	if err != nil {
		return nil, fmt.Errorf("failed to open embeddings: %w", err)
	}
	defer func() { _ = f.Close() }()

	var pretrained mat.Dense
	if err := npyio.Read(f, &pretrained); err != nil {
		return nil, fmt.Errorf("failed to read embeddings: %w", err)
	}
	rows, dim := pretrained.Dims()
	if dim < 1 {
		return nil, fmt.Errorf("embedding matrix has no columns")
	}

	raw, err := os.ReadFile(cfg.indicesPath) //nolint:gosec // G304: path comes from user configuration
	if err != nil {
		return nil, fmt.Errorf("failed to read embedding indices: %w", err)
	}
	var indices map[string]int
	if err := json.Unmarshal(raw, &indices); err != nil {
		return nil, fmt.Errorf("failed to parse embedding indices: %w", err)
	}

	size := vocab.Size()
	weights := mat.NewDense(size, dim, nil)
	var missing []string
	for id := 0; id < size; id++ {
		token, _ := vocab.Token(id)
		row, ok := indices[token]
		if !ok {
			for j := 0; j < dim; j++ {
				weights.Set(id, j, uniform(cfg.rng, cfg.initRange))
			}
			missing = append(missing, token)
			continue
		}
		if row < 0 || row >= rows {
			return nil, fmt.Errorf("embedding index %d for token %q outside matrix of %d rows", row, token, rows)
		}
		weights.SetRow(id, mat.Row(nil, row, &pretrained))
	}
	if len(missing) > 0 {
		cfg.logger.Info("randomly initializing tokens without pretrained embeddings",
			"tokens", missing)
	}

	return &Table{Weights: weights, Dim: dim, Missing: missing}, nil
}

func uniform(rng *rand.Rand, halfWidth float64) float64 {
	if rng != nil {
		return (rng.Float64()*2 - 1) * halfWidth
	}
	return (rand.Float64()*2 - 1) * halfWidth
}

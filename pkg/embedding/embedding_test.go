package embedding

import (
	"encoding/json"
	"math/rand/v2"
	"os"
	"path/filepath"
	"testing"

	"github.com/sbinet/npyio"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"gonum.org/v1/gonum/mat"

	"github.com/cmdowney88/chonker/pkg/wrangle"
)

func writeFixture(t *testing.T, indices map[string]int) string {
	t.Helper()
	base := filepath.Join(t.TempDir(), "embeddings")

	m := mat.NewDense(2, 3, []float64{
		0.1, 0.2, 0.3,
		1.1, 1.2, 1.3,
	})
	f, err := os.Create(base + ".npy")
	require.NoError(t, err)
	defer func() { _ = f.Close() }()
	require.NoError(t, npyio.Write(f, m))

	raw, err := json.Marshal(indices)
	require.NoError(t, err)
	require.NoError(t, os.WriteFile(base+"_indices.json", raw, 0o644))
	return base
}

func TestLoad(t *testing.T) {
	base := writeFixture(t, map[string]int{"a": 0, "b": 1})
	vocab := wrangle.FromCorpus([][]string{{"a", "b"}}, "")

	table, err := Load(base, vocab)
	require.NoError(t, err)

	rows, cols := table.Weights.Dims()
	assert.Equal(t, 3, rows, "expected one row per vocabulary ID")
	assert.Equal(t, 3, cols)
	assert.Equal(t, 3, table.Dim)

	assert.Equal(t, []float64{0.1, 0.2, 0.3}, mat.Row(nil, 1, table.Weights))
	assert.Equal(t, []float64{1.1, 1.2, 1.3}, mat.Row(nil, 2, table.Weights))

	// The unknown token has no pretrained row and is randomized.
	assert.Equal(t, []string{wrangle.DefaultUnkToken}, table.Missing)
	for _, v := range mat.Row(nil, 0, table.Weights) {
		assert.GreaterOrEqual(t, v, -1.0)
		assert.LessOrEqual(t, v, 1.0)
	}
}

func TestLoad_InitRange(t *testing.T) {
	base := writeFixture(t, map[string]int{"a": 0})
	vocab := wrangle.FromCorpus([][]string{{"a", "b", "c"}}, "")

	table, err := Load(base, vocab,
		WithInitRange(0.25),
		WithRand(rand.New(rand.NewPCG(5, 17))),
	)
	require.NoError(t, err)

	assert.Equal(t, []string{wrangle.DefaultUnkToken, "b", "c"}, table.Missing)
	for _, id := range []int{0, 2, 3} {
		for _, v := range mat.Row(nil, id, table.Weights) {
			assert.GreaterOrEqual(t, v, -0.25)
			assert.LessOrEqual(t, v, 0.25)
		}
	}
}

func TestLoad_IndicesPathOverride(t *testing.T) {
	base := writeFixture(t, map[string]int{})
	other := filepath.Join(t.TempDir(), "index.json")
	require.NoError(t, os.WriteFile(other, []byte(`{"a": 1}`), 0o644))

	vocab := wrangle.FromCorpus([][]string{{"a"}}, "")
	table, err := Load(base, vocab, WithIndicesPath(other))
	require.NoError(t, err)

	assert.Equal(t, []float64{1.1, 1.2, 1.3}, mat.Row(nil, 1, table.Weights))
}

func TestLoad_Errors(t *testing.T) {
	vocab := wrangle.FromCorpus([][]string{{"a"}}, "")

	_, err := Load(filepath.Join(t.TempDir(), "nope"), vocab)
	require.Error(t, err, "expected error for missing .npy file")

	base := writeFixture(t, map[string]int{"a": 5})
	_, err = Load(base, vocab)
	require.Error(t, err, "expected error for out-of-range embedding index")

	base = writeFixture(t, nil)
	require.NoError(t, os.WriteFile(base+"_indices.json", []byte("not json"), 0o644))
	_, err = Load(base, vocab)
	require.Error(t, err, "expected error for malformed index file")
}

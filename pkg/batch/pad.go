package batch

import (
	"fmt"
	"math/rand/v2"
)

// Batch is one padded batch of variable-length sequences. Data is time
// major: Data[t][b] is token t of the batch's b-th sequence, with
// positions beyond a sequence's length filled by the pad value.
type Batch struct {
	Data    [][]int
	Lengths []int
}

// PadCollate pads a group of sequences to the length of its longest
// member and stacks them into a single time-major batch.
func PadCollate(seqs [][]int, padValue int) Batch {
	maxLen := 0
	for _, seq := range seqs {
		if len(seq) > maxLen {
			maxLen = len(seq)
		}
	}
	return padTo(seqs, padValue, maxLen)
}

func padTo(seqs [][]int, padValue, maxLen int) Batch {
	lengths := make([]int, len(seqs))
	for i, seq := range seqs {
		lengths[i] = len(seq)
	}
	data := make([][]int, maxLen)
	for t := 0; t < maxLen; t++ {
		row := make([]int, len(seqs))
		for b, seq := range seqs {
			if t < len(seq) {
				row[b] = seq[t]
			} else {
				row[b] = padValue
			}
		}
		data[t] = row
	}
	return Batch{Data: data, Lengths: lengths}
}

// PadConfig controls PadAndBatch.
type PadConfig struct {
	// BatchSize is the number of sequences per batch.
	BatchSize int

	// PadValue fills positions beyond a sequence's length.
	PadValue int

	// GradientAccumulation is the number of optimizer sub-steps a full
	// batch is split across. Trailing sequences are dropped at this
	// granularity. Zero means 1.
	GradientAccumulation int

	// ShuffleBatches randomly reorders the finished batches.
	ShuffleBatches bool

	// Rand is the source used when shuffling. Nil uses the shared
	// global source.
	Rand *rand.Rand
}

// BatchSet holds length-sorted padded batches together with the
// permutations relating them to the original sequence order. The
// shuffle permutations are nil unless batch shuffling was requested.
type BatchSet struct {
	Batches       []Batch
	SortPerm      []int
	UnsortPerm    []int
	ShufflePerm   []int
	UnshufflePerm []int
}

// PadAndBatch sorts sequences into descending length order, pads them
// all to the length of the longest, and groups them into fixed-size
// batches, so every batch shares one shape. Sequences beyond the last
// full batch, measured at gradient-accumulation granularity, are
// dropped from the tail of the input before sorting.
func PadAndBatch(data [][]int, cfg PadConfig) (*BatchSet, error) {
	if cfg.BatchSize < 1 {
		return nil, fmt.Errorf("batch size must be positive, got %d", cfg.BatchSize)
	}
	accum := cfg.GradientAccumulation
	if accum == 0 {
		accum = 1
	}
	if accum < 0 {
		return nil, fmt.Errorf("gradient accumulation must be positive, got %d", accum)
	}

	fullBatch := cfg.BatchSize * accum
	numFull := len(data) / fullBatch
	if numFull == 0 {
		return nil, fmt.Errorf("%d sequences cannot fill a batch of %d", len(data), fullBatch)
	}
	data = data[:numFull*fullBatch]
	numBatches := numFull * accum

	lengths := make([]int, len(data))
	for i, seq := range data {
		lengths[i] = len(seq)
	}
	sortPerm, unsortPerm := SortPermutation(lengths, true)
	sorted, err := Apply(sortPerm, data)
	if err != nil {
		return nil, err
	}

	maxLen := len(sorted[0])
	batches := make([]Batch, numBatches)
	for i := 0; i < numBatches; i++ {
		group := sorted[i*cfg.BatchSize : (i+1)*cfg.BatchSize]
		batches[i] = padTo(group, cfg.PadValue, maxLen)
	}

	set := &BatchSet{
		Batches:    batches,
		SortPerm:   sortPerm,
		UnsortPerm: unsortPerm,
	}
	if cfg.ShuffleBatches {
		shufflePerm, unshufflePerm := ShufflePermutation(numBatches, cfg.Rand)
		shuffled, err := Apply(shufflePerm, batches)
		if err != nil {
			return nil, err
		}
		set.Batches = shuffled
		set.ShufflePerm = shufflePerm
		set.UnshufflePerm = unshufflePerm
	}
	return set, nil
}

package batch

import "fmt"

// BatchBy selects the unit a Dataset batches with.
type BatchBy string

const (
	// BySequences makes every batch hold a fixed number of sequences.
	BySequences BatchBy = "sequences"

	// ByTokens packs each batch with sequences up to a padded token
	// budget, so batches differ in sequence count but stay roughly the
	// same total size.
	ByTokens BatchBy = "tokens"
)

// DatasetConfig controls NewDataset.
type DatasetConfig struct {
	// BatchSize is the number of sequences per batch under
	// BySequences, or the padded token budget per batch under
	// ByTokens.
	BatchSize int

	// PadValue fills positions beyond a sequence's length.
	PadValue int

	// BatchBy selects the batching unit. Empty means BySequences.
	BatchBy BatchBy

	// GradientAccumulation is the granularity at which incomplete
	// trailing batches are dropped. Zero means 1.
	GradientAccumulation int

	// KeepFinal retains trailing sequences that do not fill a full
	// batch instead of dropping them.
	KeepFinal bool
}

// Dataset holds variable-length sequences grouped into padded batches.
// Sequences are sorted into descending length order and each batch is
// padded only to the length of its own longest member, unlike
// PadAndBatch, which pads every batch to the global maximum.
type Dataset struct {
	batches    []Batch
	total      int
	sortPerm   []int
	unsortPerm []int
}

// NewDataset sorts the given sequences by length and groups them into
// padded batches.
func NewDataset(data [][]int, cfg DatasetConfig) (*Dataset, error) {
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
	by := cfg.BatchBy
	if by == "" {
		by = BySequences
	}
	if by != BySequences && by != ByTokens {
		return nil, fmt.Errorf("batch-by option %q is not valid", by)
	}

	// Under BySequences the trailing partial batch is dropped up front,
	// before sorting, so the cut falls on the input order.
	if by == BySequences && !cfg.KeepFinal {
		fullBatch := cfg.BatchSize * accum
		numFull := len(data) / fullBatch
		data = data[:numFull*fullBatch]
	}

	lengths := make([]int, len(data))
	for i, seq := range data {
		lengths[i] = len(seq)
	}
	sortPerm, unsortPerm := SortPermutation(lengths, true)
	sorted, err := Apply(sortPerm, data)
	if err != nil {
		return nil, err
	}
	sortedLengths, err := Apply(sortPerm, lengths)
	if err != nil {
		return nil, err
	}

	ds := &Dataset{
		total:      len(sorted),
		sortPerm:   sortPerm,
		unsortPerm: unsortPerm,
	}
	for index := 0; index < len(sorted); {
		next := index
		switch by {
		case BySequences:
			next = index + cfg.BatchSize
		case ByTokens:
			// The first sequence is the longest left, so the batch
			// size divided by its length bounds the padded total.
			perBatch := 1
			if l := sortedLengths[index]; l > 0 {
				if perBatch = cfg.BatchSize / l; perBatch < 1 {
					perBatch = 1
				}
			}
			next = index + perBatch
		}
		if next > len(sorted) {
			next = len(sorted)
		}
		ds.batches = append(ds.batches, PadCollate(sorted[index:next], cfg.PadValue))
		index = next
	}

	// Under ByTokens batch boundaries are only known after grouping, so
	// the drop happens here, trimming to a whole number of
	// gradient-accumulation groups.
	if by == ByTokens && !cfg.KeepFinal {
		keep := len(ds.batches) / accum * accum
		for _, batch := range ds.batches[keep:] {
			ds.total -= len(batch.Lengths)
		}
		ds.batches = ds.batches[:keep]
	}
	return ds, nil
}

// Len returns the number of batches.
func (d *Dataset) Len() int { return len(d.batches) }

// At returns the i-th batch.
func (d *Dataset) At(i int) (Batch, error) {
	if i < 0 || i >= len(d.batches) {
		return Batch{}, fmt.Errorf("batch %d out of range, have %d", i, len(d.batches))
	}
	return d.batches[i], nil
}

// TotalSequences returns the number of sequences kept across all
// batches.
func (d *Dataset) TotalSequences() int { return d.total }

// SortPerm returns the permutation that sorted the input sequences.
func (d *Dataset) SortPerm() []int { return d.sortPerm }

// UnsortPerm returns the permutation restoring the original input
// order.
func (d *Dataset) UnsortPerm() []int { return d.unsortPerm }

package batch

import "fmt"

// Stream is a flat token stream reshaped into parallel columns and cut
// into equal-length training windows.
type Stream struct {
	rows   [][]int
	seqLen int
	used   int
}

// Partition reshapes a flat token stream into batchSize parallel
// columns cut into windows of seqLen steps each. Row t holds the t-th
// token of every column, so window i spans rows i*seqLen through
// (i+1)*seqLen. Trailing tokens that cannot fill a whole window in
// every column are discarded.
func Partition(stream []int, seqLen, batchSize int) (*Stream, error) {
	if seqLen < 1 {
		return nil, fmt.Errorf("sequence length must be positive, got %d", seqLen)
	}
	if batchSize < 1 {
		return nil, fmt.Errorf("batch size must be positive, got %d", batchSize)
	}

	window := seqLen * batchSize
	numBatches := len(stream) / window
	if numBatches == 0 {
		return nil, fmt.Errorf("stream of %d tokens cannot fill a %d-token window", len(stream), window)
	}
	steps := numBatches * seqLen

	rows := make([][]int, steps)
	for t := 0; t < steps; t++ {
		row := make([]int, batchSize)
		for b := 0; b < batchSize; b++ {
			row[b] = stream[b*steps+t]
		}
		rows[t] = row
	}
	return &Stream{rows: rows, seqLen: seqLen, used: numBatches * window}, nil
}

// Steps returns the number of time steps across all windows.
func (s *Stream) Steps() int { return len(s.rows) }

// BatchSize returns the number of parallel columns.
func (s *Stream) BatchSize() int {
	if len(s.rows) == 0 {
		return 0
	}
	return len(s.rows[0])
}

// NumBatches returns the number of windows.
func (s *Stream) NumBatches() int { return len(s.rows) / s.seqLen }

// Used returns how many tokens of the original stream were kept.
func (s *Stream) Used() int { return s.used }

// Batch returns the i-th window as a view of seqLen rows.
func (s *Stream) Batch(i int) ([][]int, error) {
	if i < 0 || i >= s.NumBatches() {
		return nil, fmt.Errorf("window %d out of range, have %d", i, s.NumBatches())
	}
	return s.rows[i*s.seqLen : (i+1)*s.seqLen], nil
}

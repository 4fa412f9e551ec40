// Package compute provides numeric routines for lattice decoding over
// gonum matrices.
package compute

import (
	"fmt"
	"math"
	"slices"

	"gonum.org/v1/gonum/mat"
)

// Arc is a directed edge between two boundaries of a position lattice.
type Arc struct {
	From int
	To   int
}

// AcyclicViterbi finds the highest-scoring path through an acyclic
// position lattice. For a sequence of length L the lattice has
// boundaries 0 through L, and trans must be an L by L matrix whose
// entry (i, j) is the additive score of an arc from boundary i to
// boundary j+1. The returned arcs connect boundary 0 to boundary L;
// ties between predecessors go to the earliest one.
func AcyclicViterbi(trans mat.Matrix) ([]Arc, float64, error) {
	rows, cols := trans.Dims()
	if rows != cols {
		return nil, 0, fmt.Errorf("transition matrix must be square, got %dx%d", rows, cols)
	}
	if rows == 0 {
		return nil, 0, fmt.Errorf("transition matrix is empty")
	}
	length := rows

	scores := make([]float64, length+1)
	previous := make([]int, length+1)
	for position := 1; position <= length; position++ {
		best := math.Inf(-1)
		bestPrev := 0
		for prev := 0; prev < position; prev++ {
			score := scores[prev] + trans.At(prev, position-1)
			if score > best {
				best = score
				bestPrev = prev
			}
		}
		scores[position] = best
		previous[position] = bestPrev
	}

	position := length
	prev := previous[position]
	path := []Arc{{From: prev, To: position}}
	for prev > 0 {
		position = prev
		prev = previous[position]
		path = append(path, Arc{From: prev, To: position})
	}
	slices.Reverse(path)

	return path, scores[length], nil
}

package batch

import (
	"fmt"
	"math/rand/v2"
	"sort"
)

// SortPermutation returns the permutation that sorts values by size,
// together with the permutation that restores the sorted order to the
// original one. The sort is stable, so equal values keep their relative
// order in both directions.
func SortPermutation(values []int, descending bool) (sortPerm, unsortPerm []int) {
	sortPerm = make([]int, len(values))
	for i := range sortPerm {
		sortPerm[i] = i
	}
	sort.SliceStable(sortPerm, func(a, b int) bool {
		if descending {
			return values[sortPerm[a]] > values[sortPerm[b]]
		}
		return values[sortPerm[a]] < values[sortPerm[b]]
	})

	unsortPerm = make([]int, len(sortPerm))
	for i, j := range sortPerm {
		unsortPerm[j] = i
	}
	return sortPerm, unsortPerm
}

// ShufflePermutation returns a uniformly random permutation of length n
// and the permutation that restores the shuffled order. A nil rng falls
// back to the shared global source.
func ShufflePermutation(n int, rng *rand.Rand) (shufflePerm, unshufflePerm []int) {
	if rng != nil {
		shufflePerm = rng.Perm(n)
	} else {
		shufflePerm = rand.Perm(n)
	}

	unshufflePerm = make([]int, n)
	for i, j := range shufflePerm {
		unshufflePerm[j] = i
	}
	return shufflePerm, unshufflePerm
}

// Apply reorders xs by the given permutation, returning a new slice
// whose entry i is xs[perm[i]].
func Apply[T any](perm []int, xs []T) ([]T, error) {
	if len(perm) != len(xs) {
		return nil, fmt.Errorf("permutation length %d does not match slice length %d", len(perm), len(xs))
	}
	out := make([]T, len(xs))
	for i, j := range perm {
		if j < 0 || j >= len(xs) {
			return nil, fmt.Errorf("permutation index %d out of range for length %d", j, len(xs))
		}
		out[i] = xs[j]
	}
	return out, nil
}

package compute

import (
	"reflect"
	"testing"

	"gonum.org/v1/gonum/mat"
)

const noArc = -100.0

func TestAcyclicViterbi(t *testing.T) {
	// Boundaries 0..3; entry (i, j) scores the arc i -> j+1. Invalid
	// arcs (self loops and backward edges) carry a prohibitive score.
	trans := mat.NewDense(3, 3, []float64{
		-1, -5, -9,
		noArc, -1, -3,
		noArc, noArc, -1,
	})

	path, score, err := AcyclicViterbi(trans)
	if err != nil {
		t.Fatalf("AcyclicViterbi failed: %v", err)
	}

	want := []Arc{{0, 1}, {1, 2}, {2, 3}}
	if !reflect.DeepEqual(path, want) {
		t.Errorf("path = %v, expected %v", path, want)
	}
	if score != -3 {
		t.Errorf("score = %v, expected -3", score)
	}
}

func TestAcyclicViterbi_SkipsBoundaries(t *testing.T) {
	trans := mat.NewDense(3, 3, []float64{
		-1, -1, -9,
		noArc, -4, -1,
		noArc, noArc, -1,
	})

	path, score, err := AcyclicViterbi(trans)
	if err != nil {
		t.Fatalf("AcyclicViterbi failed: %v", err)
	}

	// Boundary 2 never enters the best path. The arc 1->3 and the arc
	// 2->3 tie on total score, and the earlier predecessor wins.
	want := []Arc{{0, 1}, {1, 3}}
	if !reflect.DeepEqual(path, want) {
		t.Errorf("path = %v, expected %v", path, want)
	}
	if score != -2 {
		t.Errorf("score = %v, expected -2", score)
	}
}

func TestAcyclicViterbi_SingleArc(t *testing.T) {
	trans := mat.NewDense(1, 1, []float64{2.5})

	path, score, err := AcyclicViterbi(trans)
	if err != nil {
		t.Fatalf("AcyclicViterbi failed: %v", err)
	}
	if want := []Arc{{0, 1}}; !reflect.DeepEqual(path, want) {
		t.Errorf("path = %v, expected %v", path, want)
	}
	if score != 2.5 {
		t.Errorf("score = %v, expected 2.5", score)
	}
}

func TestAcyclicViterbi_Errors(t *testing.T) {
	if _, _, err := AcyclicViterbi(mat.NewDense(2, 3, nil)); err == nil {
		t.Error("expected error for non-square matrix")
	}

	var empty mat.Dense
	if _, _, err := AcyclicViterbi(&empty); err == nil {
		t.Error("expected error for empty matrix")
	}
}

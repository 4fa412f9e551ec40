package batch

import (
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestPartition(t *testing.T) {
	stream := make([]int, 24)
	for i := range stream {
		stream[i] = i
	}

	s, err := Partition(stream, 3, 2)
	require.NoError(t, err)

	assert.Equal(t, 12, s.Steps())
	assert.Equal(t, 2, s.BatchSize())
	assert.Equal(t, 4, s.NumBatches())
	assert.Equal(t, 24, s.Used())

	first, err := s.Batch(0)
	require.NoError(t, err)
	assert.Equal(t, [][]int{{0, 12}, {1, 13}, {2, 14}}, first)

	last, err := s.Batch(3)
	require.NoError(t, err)
	assert.Equal(t, [][]int{{9, 21}, {10, 22}, {11, 23}}, last)
}

func TestPartition_DropsTrailingTokens(t *testing.T) {
	stream := make([]int, 14)
	for i := range stream {
		stream[i] = i
	}

	s, err := Partition(stream, 2, 3)
	require.NoError(t, err)

	assert.Equal(t, 12, s.Used())
	assert.Equal(t, 2, s.NumBatches())

	second, err := s.Batch(1)
	require.NoError(t, err)
	assert.Equal(t, [][]int{{2, 6, 10}, {3, 7, 11}}, second)
}

func TestPartition_Errors(t *testing.T) {
	_, err := Partition([]int{1, 2, 3}, 2, 2)
	require.Error(t, err, "expected error for stream shorter than one window")

	_, err = Partition(nil, 1, 1)
	require.Error(t, err, "expected error for empty stream")

	_, err = Partition([]int{1}, 0, 1)
	require.Error(t, err, "expected error for zero sequence length")

	_, err = Partition([]int{1}, 1, 0)
	require.Error(t, err, "expected error for zero batch size")
}

func TestStream_BatchOutOfRange(t *testing.T) {
	s, err := Partition([]int{1, 2, 3, 4}, 2, 2)
	require.NoError(t, err)

	_, err = s.Batch(1)
	require.Error(t, err)
	_, err = s.Batch(-1)
	require.Error(t, err)
}

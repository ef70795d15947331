package vectordb

import (
	"errors"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestFlatIndex_SelfMatch(t *testing.T) {
	vectors := [][]float32{
		{1, 0, 0},
		{0, 1, 0},
		{0.5, 0.5, 0.5},
	}
	idx, err := Build(vectors)
	require.NoError(t, err)

	for i, v := range vectors {
		hits, err := idx.Search(v, 1)
		require.NoError(t, err)
		require.Len(t, hits, 1)
		assert.Equal(t, i, hits[0].Position)
		assert.Zero(t, hits[0].Distance)
	}
}

func TestFlatIndex_OrderingAndTies(t *testing.T) {
	idx, err := Build([][]float32{
		{3, 0},  // distance 9
		{1, 0},  // distance 1
		{0, 1},  // distance 1, tie with position 1
		{0, -2}, // distance 4
	})
	require.NoError(t, err)

	hits, err := idx.Search([]float32{0, 0}, 4)
	require.NoError(t, err)

	positions := make([]int, len(hits))
	for i, h := range hits {
		positions[i] = h.Position
	}
	assert.Equal(t, []int{1, 2, 3, 0}, positions)

	for i := 1; i < len(hits); i++ {
		assert.LessOrEqual(t, hits[i-1].Distance, hits[i].Distance)
	}
}

func TestFlatIndex_ClampsTopK(t *testing.T) {
	idx, err := Build([][]float32{{1}, {2}})
	require.NoError(t, err)

	hits, err := idx.Search([]float32{0}, 10)
	require.NoError(t, err)
	assert.Len(t, hits, 2)
}

func TestFlatIndex_EmptyIndex(t *testing.T) {
	idx, err := Build(nil)
	require.NoError(t, err)
	assert.Equal(t, 0, idx.Size())

	hits, err := idx.Search([]float32{1, 2, 3}, 3)
	require.NoError(t, err)
	assert.Empty(t, hits)
}

func TestFlatIndex_NonPositiveTopK(t *testing.T) {
	idx, _ := Build([][]float32{{1}})

	hits, err := idx.Search([]float32{1}, 0)
	require.NoError(t, err)
	assert.Empty(t, hits)
}

func TestFlatIndex_DimensionMismatch(t *testing.T) {
	_, err := Build([][]float32{{1, 2}, {1}})
	assert.True(t, errors.Is(err, ErrDimensionMismatch))

	idx, _ := Build([][]float32{{1, 2}})
	_, err = idx.Search([]float32{1}, 1)
	assert.True(t, errors.Is(err, ErrDimensionMismatch))
}

func TestFlatIndex_StoresCopies(t *testing.T) {
	v := []float32{1, 1}
	idx, _ := Build([][]float32{v})
	v[0] = 100

	hits, err := idx.Search([]float32{1, 1}, 1)
	require.NoError(t, err)
	assert.Zero(t, hits[0].Distance)
}

func TestSquaredL2(t *testing.T) {
	assert.Equal(t, 25.0, squaredL2([]float32{0, 0}, []float32{3, 4}))
	assert.Zero(t, squaredL2([]float32{1, 2}, []float32{1, 2}))
}

// Package vectordb provides the in-memory nearest-neighbour index.
// Adapter implementing entities.SearchIndex with an exact brute-force scan.
package vectordb

import (
	"errors"
	"fmt"
	"sort"

	"github.com/0xcro3dile/docqa-go/internal/domain/entities"
)

var _ entities.SearchIndex = (*FlatIndex)(nil)

// ErrDimensionMismatch is returned when vectors of different lengths meet.
var ErrDimensionMismatch = errors.New("vector dimension mismatch")

// FlatIndex is an immutable exact index over squared Euclidean distance.
// Position i always refers to the i-th vector passed to Build.
type FlatIndex struct {
	dimension int
	vectors   [][]float32
}

// Build copies vectors into a new index. All vectors must share one dimension.
func Build(vectors [][]float32) (*FlatIndex, error) {
	idx := &FlatIndex{vectors: make([][]float32, len(vectors))}
	for i, v := range vectors {
		if i == 0 {
			idx.dimension = len(v)
		} else if len(v) != idx.dimension {
			return nil, fmt.Errorf("vector %d has %d dimensions, want %d: %w", i, len(v), idx.dimension, ErrDimensionMismatch)
		}
		cp := make([]float32, len(v))
		copy(cp, v)
		idx.vectors[i] = cp
	}
	return idx, nil
}

// BuildIndex adapts Build to ports.IndexBuilder.
func BuildIndex(vectors [][]float32) (entities.SearchIndex, error) {
	return Build(vectors)
}

// Size returns the number of indexed vectors.
func (x *FlatIndex) Size() int {
	return len(x.vectors)
}

// Dimension returns the vector length, 0 for an empty index.
func (x *FlatIndex) Dimension() int {
	return x.dimension
}

// Search returns the topK nearest positions by ascending squared distance.
// Equal distances keep insertion order.
func (x *FlatIndex) Search(query []float32, topK int) ([]entities.Hit, error) {
	if len(x.vectors) == 0 || topK <= 0 {
		return []entities.Hit{}, nil
	}
	if len(query) != x.dimension {
		return nil, fmt.Errorf("query has %d dimensions, index has %d: %w", len(query), x.dimension, ErrDimensionMismatch)
	}

	hits := make([]entities.Hit, len(x.vectors))
	for i, v := range x.vectors {
		hits[i] = entities.Hit{Position: i, Distance: squaredL2(query, v)}
	}

	sort.SliceStable(hits, func(i, j int) bool {
		return hits[i].Distance < hits[j].Distance
	})

	if topK > len(hits) {
		topK = len(hits)
	}
	return hits[:topK], nil
}

// squaredL2 computes the squared Euclidean distance of equal-length vectors.
func squaredL2(a, b []float32) float64 {
	var sum float64
	for i := range a {
		d := float64(a[i]) - float64(b[i])
		sum += d * d
	}
	return sum
}

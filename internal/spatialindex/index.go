// Package spatialindex owns the swath-to-grid spatial correspondence used
// for resampling: building it with a k-d tree, persisting and reloading it,
// and the overlap strategies that decide how swath geometry is prepared
// before the index is built.
package spatialindex

import (
	"fmt"
	"math"
	"sort"
)

// SpatialIndex maps each target grid cell to the source swath pixels within
// the search radius of its center. Source pixel indices are flat row-major
// indices into the original granule layout, so the same index applies to any
// layer read from the source granule. Once built, an index is read-only and
// shared across product stages.
type SpatialIndex struct {
	gridRows, gridCols int
	srcRows, srcCols   int
	radiusMeters       float64

	// CSR layout: sources for cell i are sources[offsets[i]:offsets[i+1]],
	// sorted ascending.
	offsets []int32
	sources []int32
}

// GridShape returns the target grid dimensions the index was built against.
func (ix *SpatialIndex) GridShape() (rows, cols int) { return ix.gridRows, ix.gridCols }

// NumCells returns the target cell count.
func (ix *SpatialIndex) NumCells() int { return ix.gridRows * ix.gridCols }

// RadiusMeters returns the search radius the index was built with.
func (ix *SpatialIndex) RadiusMeters() float64 { return ix.radiusMeters }

// Sources returns the source pixel indices for a target cell. The returned
// slice aliases the index's storage and must not be modified.
func (ix *SpatialIndex) Sources(cell int) []int32 {
	return ix.sources[ix.offsets[cell]:ix.offsets[cell+1]]
}

// SampleCounts returns the number of contributing source pixels per cell.
func (ix *SpatialIndex) SampleCounts() []int {
	counts := make([]int, ix.NumCells())
	for i := range counts {
		counts[i] = int(ix.offsets[i+1] - ix.offsets[i])
	}
	return counts
}

// Reducer aggregates the source samples contributing to one cell. ok is
// false when the samples carry no usable value.
type Reducer func(samples []float64) (value float64, ok bool)

// Mean reduces samples to their arithmetic mean, skipping NaN values.
func Mean(samples []float64) (float64, bool) {
	var sum float64
	var n int
	for _, v := range samples {
		if math.IsNaN(v) {
			continue
		}
		sum += v
		n++
	}
	if n == 0 {
		return 0, false
	}
	return sum / float64(n), true
}

// Mode reduces samples to their most frequent value, skipping NaN. Ties
// resolve to the smallest value for determinism. Used for categorical layers
// such as cloud masks.
func Mode(samples []float64) (float64, bool) {
	counts := make(map[float64]int, len(samples))
	for _, v := range samples {
		if math.IsNaN(v) {
			continue
		}
		counts[v]++
	}
	if len(counts) == 0 {
		return 0, false
	}
	var best float64
	bestN := -1
	for v, n := range counts {
		if n > bestN || (n == bestN && v < best) {
			best, bestN = v, n
		}
	}
	return best, true
}

// Resample maps source-layout values onto the target grid, reducing the
// contributing samples of each cell and filling cells without coverage.
func (ix *SpatialIndex) Resample(values []float64, reduce Reducer, fill float64) ([]float64, error) {
	if len(values) != ix.srcRows*ix.srcCols {
		return nil, fmt.Errorf("source length %d does not match index source shape %dx%d",
			len(values), ix.srcRows, ix.srcCols)
	}
	out := make([]float64, ix.NumCells())
	samples := make([]float64, 0, 16)
	for cell := range out {
		samples = samples[:0]
		for _, s := range ix.Sources(cell) {
			samples = append(samples, values[s])
		}
		if v, ok := reduce(samples); ok {
			out[cell] = v
		} else {
			out[cell] = fill
		}
	}
	return out, nil
}

// builder accumulates the CSR arrays for an index under construction.
type builder struct {
	ix *SpatialIndex
}

func newBuilder(gridRows, gridCols, srcRows, srcCols int, radius float64) *builder {
	return &builder{
		ix: &SpatialIndex{
			gridRows:     gridRows,
			gridCols:     gridCols,
			srcRows:      srcRows,
			srcCols:      srcCols,
			radiusMeters: radius,
			offsets:      make([]int32, 1, gridRows*gridCols+1),
		},
	}
}

// add appends the sources of the next cell, in ascending order.
func (b *builder) add(sources []int32) {
	sort.Slice(sources, func(i, j int) bool { return sources[i] < sources[j] })
	b.ix.sources = append(b.ix.sources, sources...)
	b.ix.offsets = append(b.ix.offsets, int32(len(b.ix.sources)))
}

func (b *builder) finish() *SpatialIndex { return b.ix }

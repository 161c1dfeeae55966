// Package geometry owns swath and grid geometry for the resampling pipeline.
//
// Responsibilities: per-pixel swath geolocation, target lattice construction
// (geographic or local projected), and the cross-track tail clip used by the
// edge-overlap strategy. Key types: SwathGeometry, GridGeometry.
//
// Geometry values are read-only once constructed; transforms return new
// values instead of mutating in place.
package geometry

import (
	"fmt"
	"math"
)

// Cross-track pixel range producing duplicate ground footprints between
// adjacent scans. Columns at or beyond overlapTailStart are dropped by
// ClipTails; scanWidth is the nominal full cross-track width.
const (
	overlapTailStart = 105
	scanWidth        = 128
)

// SwathGeometry holds per-pixel geolocation for an instrument swath, indexed
// by scan line (row) and cross-track pixel (column). The shape is fixed at
// construction.
type SwathGeometry struct {
	rows, cols int
	lat, lon   []float64 // row-major, len rows*cols

	// Source layout bookkeeping so that clipped and per-scan views can
	// still address pixels in the original granule layout.
	srcRows   int
	srcCols   int
	rowOffset int
}

// NewSwathGeometry constructs a swath geometry from row-major latitude and
// longitude arrays of length rows*cols.
func NewSwathGeometry(rows, cols int, lat, lon []float64) (*SwathGeometry, error) {
	if rows <= 0 || cols <= 0 {
		return nil, fmt.Errorf("invalid swath shape %dx%d", rows, cols)
	}
	if len(lat) != rows*cols || len(lon) != rows*cols {
		return nil, fmt.Errorf("geolocation length %d/%d does not match shape %dx%d",
			len(lat), len(lon), rows, cols)
	}
	return &SwathGeometry{
		rows:    rows,
		cols:    cols,
		lat:     lat,
		lon:     lon,
		srcRows: rows,
		srcCols: cols,
	}, nil
}

// Shape returns the scan-line and cross-track pixel counts.
func (s *SwathGeometry) Shape() (rows, cols int) { return s.rows, s.cols }

// Rows returns the scan-line count.
func (s *SwathGeometry) Rows() int { return s.rows }

// Cols returns the cross-track pixel count.
func (s *SwathGeometry) Cols() int { return s.cols }

// LatLonAt returns the geolocation of the pixel at (row, col).
func (s *SwathGeometry) LatLonAt(row, col int) (lat, lon float64) {
	i := row*s.cols + col
	return s.lat[i], s.lon[i]
}

// SourceIndex returns the flat index of (row, col) in the original granule
// layout. For an unclipped whole-swath geometry this is row*cols+col; clipped
// and per-scan views map back into their parent layout.
func (s *SwathGeometry) SourceIndex(row, col int) int {
	return (s.rowOffset+row)*s.srcCols + col
}

// SourceShape returns the shape of the original granule layout this geometry
// addresses into.
func (s *SwathGeometry) SourceShape() (rows, cols int) {
	return s.srcRows, s.srcCols
}

// ScanLine returns a view of a single scan line. The view shares the parent's
// geolocation storage and addresses source pixels in the parent layout.
func (s *SwathGeometry) ScanLine(row int) (*SwathGeometry, error) {
	if row < 0 || row >= s.rows {
		return nil, fmt.Errorf("scan line %d out of range [0,%d)", row, s.rows)
	}
	start := row * s.cols
	return &SwathGeometry{
		rows:      1,
		cols:      s.cols,
		lat:       s.lat[start : start+s.cols],
		lon:       s.lon[start : start+s.cols],
		srcRows:   s.srcRows,
		srcCols:   s.srcCols,
		rowOffset: s.rowOffset + row,
	}, nil
}

// ClipTails returns a new geometry with the overlapping cross-track tail
// removed. Columns at or beyond overlapTailStart are dropped; a geometry
// narrower than the tail start is returned unchanged, which makes the
// transform idempotent.
func ClipTails(s *SwathGeometry) *SwathGeometry {
	if s.cols <= overlapTailStart {
		return s
	}
	keep := overlapTailStart
	lat := make([]float64, s.rows*keep)
	lon := make([]float64, s.rows*keep)
	for r := 0; r < s.rows; r++ {
		copy(lat[r*keep:(r+1)*keep], s.lat[r*s.cols:r*s.cols+keep])
		copy(lon[r*keep:(r+1)*keep], s.lon[r*s.cols:r*s.cols+keep])
	}
	return &SwathGeometry{
		rows:      s.rows,
		cols:      keep,
		lat:       lat,
		lon:       lon,
		srcRows:   s.srcRows,
		srcCols:   s.srcCols,
		rowOffset: s.rowOffset,
	}
}

// Bounds returns the geographic bounding box of the swath, ignoring pixels
// with NaN geolocation. ok is false when no pixel has valid geolocation.
func (s *SwathGeometry) Bounds() (latMin, latMax, lonMin, lonMax float64, ok bool) {
	latMin, lonMin = math.Inf(1), math.Inf(1)
	latMax, lonMax = math.Inf(-1), math.Inf(-1)
	for i := range s.lat {
		if math.IsNaN(s.lat[i]) || math.IsNaN(s.lon[i]) {
			continue
		}
		ok = true
		latMin = math.Min(latMin, s.lat[i])
		latMax = math.Max(latMax, s.lat[i])
		lonMin = math.Min(lonMin, s.lon[i])
		lonMax = math.Max(lonMax, s.lon[i])
	}
	return latMin, latMax, lonMin, lonMax, ok
}

// Centroid returns the mean geolocation of the swath, ignoring NaN pixels.
func (s *SwathGeometry) Centroid() (lat, lon float64) {
	var sumLat, sumLon float64
	var n int
	for i := range s.lat {
		if math.IsNaN(s.lat[i]) || math.IsNaN(s.lon[i]) {
			continue
		}
		sumLat += s.lat[i]
		sumLon += s.lon[i]
		n++
	}
	if n == 0 {
		return math.NaN(), math.NaN()
	}
	return sumLat / float64(n), sumLon / float64(n)
}

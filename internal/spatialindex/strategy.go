package spatialindex

import (
	"fmt"

	"github.com/terrascope-data/gridded.report/internal/geometry"
)

// Strategy selects how swath overlap between adjacent scans is reconciled
// before the spatial index is built.
type Strategy int

const (
	// Checkerboard indexes the full swath as-is; overlapping footprints
	// from adjacent scans interleave in the output.
	Checkerboard Strategy = iota
	// ScanByScan builds one index per scan line and composites them in
	// scan order, so later scans overwrite overlap from earlier ones.
	ScanByScan
	// ClippedTails drops the cross-track pixel tail that duplicates ground
	// coverage between adjacent scans, then indexes the clipped swath.
	ClippedTails
)

// Strategy names as they appear in run configuration.
const (
	strategyCheckerboardName = "checkerboard"
	strategyScanByScanName   = "scan_by_scan"
	strategyClippedTailsName = "remove_edge_overlap"
)

// ParseStrategy maps a configuration string to a Strategy. Unrecognized
// values are a configuration error; no filesystem work happens before this
// validation.
func ParseStrategy(s string) (Strategy, error) {
	switch s {
	case strategyCheckerboardName:
		return Checkerboard, nil
	case strategyScanByScanName:
		return ScanByScan, nil
	case strategyClippedTailsName:
		return ClippedTails, nil
	default:
		return 0, fmt.Errorf("unrecognized overlap strategy: %q", s)
	}
}

func (s Strategy) String() string {
	switch s {
	case Checkerboard:
		return strategyCheckerboardName
	case ScanByScan:
		return strategyScanByScanName
	case ClippedTails:
		return strategyClippedTailsName
	default:
		return fmt.Sprintf("Strategy(%d)", int(s))
	}
}

// Resolved is the outcome of strategy dispatch: the geometry that was
// actually indexed and either a single whole-swath index or an ordered
// per-scan sequence. It is resolved once per run and shared read-only
// across all product stages.
type Resolved struct {
	Strategy Strategy
	Swath    *geometry.SwathGeometry
	Whole    *SpatialIndex
	Scans    []*SpatialIndex
}

// ResolveStrategy prepares swath geometry per the strategy and resolves the
// index (or index sequence) through the cache. For Checkerboard and
// ClippedTails the location is a single file path; for ScanByScan it is a
// directory.
func (c *Cache) ResolveStrategy(strategy Strategy, swath *geometry.SwathGeometry, grid *geometry.GridGeometry, radiusMeters float64, location string) (*Resolved, error) {
	switch strategy {
	case Checkerboard:
		ix, err := c.Resolve(swath, grid, radiusMeters, location)
		if err != nil {
			return nil, err
		}
		return &Resolved{Strategy: strategy, Swath: swath, Whole: ix}, nil

	case ScanByScan:
		scans, err := c.ResolveScans(swath, grid, radiusMeters, location)
		if err != nil {
			return nil, err
		}
		return &Resolved{Strategy: strategy, Swath: swath, Scans: scans}, nil

	case ClippedTails:
		clipped := geometry.ClipTails(swath)
		ix, err := c.Resolve(clipped, grid, radiusMeters, location)
		if err != nil {
			return nil, err
		}
		return &Resolved{Strategy: strategy, Swath: clipped, Whole: ix}, nil

	default:
		return nil, fmt.Errorf("unrecognized overlap strategy: %v", strategy)
	}
}

// GridShape returns the target grid dimensions of the resolved index.
func (r *Resolved) GridShape() (rows, cols int) {
	if r.Whole != nil {
		return r.Whole.GridShape()
	}
	if len(r.Scans) > 0 {
		return r.Scans[0].GridShape()
	}
	return 0, 0
}

// Resample maps source-layout values onto the target grid. For whole-swath
// strategies this is a single reduction per cell; for scan-by-scan each scan
// is resampled independently and composited in scan order, later scans
// overwriting cells already covered by earlier ones.
func (r *Resolved) Resample(values []float64, reduce Reducer, fill float64) ([]float64, error) {
	if r.Whole != nil {
		return r.Whole.Resample(values, reduce, fill)
	}

	if len(r.Scans) == 0 {
		return nil, fmt.Errorf("resolved index has neither whole-swath nor scan indexes")
	}
	rows, cols := r.Scans[0].GridShape()
	out := make([]float64, rows*cols)
	for i := range out {
		out[i] = fill
	}
	samples := make([]float64, 0, 16)
	for _, scan := range r.Scans {
		if scan.NumCells() != len(out) {
			return nil, fmt.Errorf("scan index grid shape mismatch")
		}
		if len(values) != scan.srcRows*scan.srcCols {
			return nil, fmt.Errorf("source length %d does not match index source shape %dx%d",
				len(values), scan.srcRows, scan.srcCols)
		}
		for cell := 0; cell < len(out); cell++ {
			srcs := scan.Sources(cell)
			if len(srcs) == 0 {
				continue
			}
			samples = samples[:0]
			for _, s := range srcs {
				samples = append(samples, values[s])
			}
			if v, ok := reduce(samples); ok {
				out[cell] = v
			}
		}
	}
	return out, nil
}

// SampleCounts returns the per-cell contributing pixel counts, summed across
// scans for the scan-by-scan strategy.
func (r *Resolved) SampleCounts() []int {
	if r.Whole != nil {
		return r.Whole.SampleCounts()
	}
	if len(r.Scans) == 0 {
		return nil
	}
	counts := make([]int, r.Scans[0].NumCells())
	for _, scan := range r.Scans {
		for i, n := range scan.SampleCounts() {
			counts[i] += n
		}
	}
	return counts
}

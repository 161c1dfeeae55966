package granule

import (
	"fmt"
	"math"
	"sort"
	"time"

	"github.com/terrascope-data/gridded.report/internal/fsutil"
	"github.com/terrascope-data/gridded.report/internal/geometry"
	"github.com/terrascope-data/gridded.report/internal/spatialindex"
)

// GriddedGranule is an output product granule on a regular target lattice.
type GriddedGranule struct {
	Path      string
	container *Container
}

// BuildParams carries the provenance metadata attached to a gridded product.
type BuildParams struct {
	GranuleID      string
	PGEName        string
	PGEVersion     string
	Build          string
	InputFiles     []string
	ProductionTime time.Time

	// Variables restricts which source layers are gridded. Empty means all.
	Variables []string
}

// FromSwath resamples a swath granule onto the target grid through the
// resolved spatial index and writes the gridded product to outPath.
// Continuous layers reduce by NaN-skipping mean with NaN fill; categorical
// layers reduce by modal value with zero fill.
func FromSwath(fs fsutil.FileSystem, src *SwathGranule, outPath string, grid *geometry.GridGeometry, index *spatialindex.Resolved, params BuildParams) (*GriddedGranule, error) {
	names := src.LayerNames()
	if len(params.Variables) > 0 {
		allowed := make(map[string]bool, len(params.Variables))
		for _, v := range params.Variables {
			allowed[v] = true
		}
		var kept []string
		for _, name := range names {
			if allowed[name] {
				kept = append(kept, name)
			}
		}
		names = kept
	}
	if len(names) == 0 {
		return nil, fmt.Errorf("granule %s: no layers selected for gridding", src.Path)
	}

	layers := make(map[string][]float64, len(names))
	for _, name := range names {
		values, err := src.Layer(name)
		if err != nil {
			return nil, err
		}
		reduce, fill := spatialindex.Reducer(spatialindex.Mean), math.NaN()
		if IsCategoricalLayer(name) {
			reduce, fill = spatialindex.Mode, 0
		}
		gridded, err := index.Resample(values, reduce, fill)
		if err != nil {
			return nil, fmt.Errorf("failed to resample layer %s of %s: %w", name, src.Path, err)
		}
		layers[name] = gridded
	}

	c := &Container{
		GranuleID:    params.GranuleID,
		TimeUTC:      src.TimeUTC(),
		LandFraction: src.LandFraction(),
		Rows:         grid.Rows,
		Cols:         grid.Cols,
		Grid:         grid,
		Layers:       layers,
		Provenance: Provenance{
			PGEName:        params.PGEName,
			PGEVersion:     params.PGEVersion,
			Build:          params.Build,
			InputFiles:     params.InputFiles,
			ProductionTime: params.ProductionTime,
		},
	}
	if err := WriteContainer(fs, outPath, c); err != nil {
		return nil, err
	}
	return &GriddedGranule{Path: outPath, container: c}, nil
}

// OpenGridded opens an existing gridded product read-only. No integrity
// verification is performed on the file contents.
func OpenGridded(fs fsutil.FileSystem, path string) (*GriddedGranule, error) {
	c, err := ReadContainer(fs, path)
	if err != nil {
		return nil, err
	}
	if c.Grid == nil {
		return nil, fmt.Errorf("granule %s is swath, expected gridded", path)
	}
	return &GriddedGranule{Path: path, container: c}, nil
}

// GranuleID returns the granule identifier recorded in the file.
func (g *GriddedGranule) GranuleID() string { return g.container.GranuleID }

// Grid returns the product's grid geometry.
func (g *GriddedGranule) Grid() *geometry.GridGeometry { return g.container.Grid }

// Shape returns the product's grid dimensions.
func (g *GriddedGranule) Shape() (rows, cols int) { return g.container.Rows, g.container.Cols }

// Provenance returns the product's provenance metadata.
func (g *GriddedGranule) Provenance() Provenance { return g.container.Provenance }

// Layer returns the named gridded layer in row-major grid layout.
func (g *GriddedGranule) Layer(name string) ([]float64, error) {
	layer, ok := g.container.Layers[name]
	if !ok {
		return nil, fmt.Errorf("granule %s has no layer %q", g.Path, name)
	}
	return layer, nil
}

// LayerNames returns the product's layer names in sorted order.
func (g *GriddedGranule) LayerNames() []string {
	names := make([]string, 0, len(g.container.Layers))
	for name := range g.container.Layers {
		names = append(names, name)
	}
	sort.Strings(names)
	return names
}

// Subset extracts a rectangular window of the product as a new container,
// used for tiling. The window is clamped to the product extent.
func (g *GriddedGranule) Subset(rowStart, rowEnd, colStart, colEnd int, granuleID string) (*Container, error) {
	rows, cols := g.Shape()
	rowStart, rowEnd = clamp(rowStart, 0, rows), clamp(rowEnd, 0, rows)
	colStart, colEnd = clamp(colStart, 0, cols), clamp(colEnd, 0, cols)
	if rowEnd <= rowStart || colEnd <= colStart {
		return nil, fmt.Errorf("granule %s: empty subset window", g.Path)
	}

	subRows, subCols := rowEnd-rowStart, colEnd-colStart
	layers := make(map[string][]float64, len(g.container.Layers))
	for name, layer := range g.container.Layers {
		sub := make([]float64, subRows*subCols)
		for r := 0; r < subRows; r++ {
			srcOff := (rowStart+r)*cols + colStart
			copy(sub[r*subCols:(r+1)*subCols], layer[srcOff:srcOff+subCols])
		}
		layers[name] = sub
	}

	grid := *g.container.Grid
	grid.Rows, grid.Cols = subRows, subCols
	grid.XMin += float64(colStart) * grid.CellSize
	grid.YMax -= float64(rowStart) * grid.CellSize

	return &Container{
		GranuleID:    granuleID,
		TimeUTC:      g.container.TimeUTC,
		LandFraction: g.container.LandFraction,
		Rows:         subRows,
		Cols:         subCols,
		Grid:         &grid,
		Layers:       layers,
		Provenance:   g.container.Provenance,
	}, nil
}

func clamp(v, lo, hi int) int {
	if v < lo {
		return lo
	}
	if v > hi {
		return hi
	}
	return v
}

package product

import (
	"fmt"
	"math"

	"gonum.org/v1/plot"
	"gonum.org/v1/plot/palette"
	"gonum.org/v1/plot/plotter"
	"gonum.org/v1/plot/vg"

	"github.com/terrascope-data/gridded.report/internal/fsutil"
	"github.com/terrascope-data/gridded.report/internal/geometry"
	"github.com/terrascope-data/gridded.report/internal/granule"
)

// layerGrid adapts a gridded layer to plotter.GridXYZ. Row 0 of the layer
// is the northernmost row, while the plotter wants Y increasing with the
// row index, so rows are flipped here. Empty cells render at the low end
// of the palette.
type layerGrid struct {
	grid     *geometry.GridGeometry
	z        []float64
	min, max float64
}

func newLayerGrid(grid *geometry.GridGeometry, z []float64) layerGrid {
	min, max := math.Inf(1), math.Inf(-1)
	for _, v := range z {
		if math.IsNaN(v) {
			continue
		}
		min = math.Min(min, v)
		max = math.Max(max, v)
	}
	if min > max {
		min, max = 0, 1
	} else if min == max {
		max = min + 1
	}
	return layerGrid{grid: grid, z: z, min: min, max: max}
}

func (g layerGrid) Dims() (c, r int) { return g.grid.Cols, g.grid.Rows }

func (g layerGrid) X(c int) float64 {
	return g.grid.XMin + (float64(c)+0.5)*g.grid.CellSize
}

func (g layerGrid) Y(r int) float64 {
	return g.grid.YMax - (float64(g.grid.Rows-r)-0.5)*g.grid.CellSize
}

func (g layerGrid) Z(c, r int) float64 {
	v := g.z[(g.grid.Rows-1-r)*g.grid.Cols+c]
	if math.IsNaN(v) {
		return g.min
	}
	return v
}

// RenderBrowse renders one layer of a gridded product as a PNG heatmap.
func RenderBrowse(fs fsutil.FileSystem, g *granule.GriddedGranule, layer, path string) error {
	values, err := g.Layer(layer)
	if err != nil {
		return err
	}

	lg := newLayerGrid(g.Grid(), values)
	hm := plotter.NewHeatMap(lg, palette.Heat(64, 1))
	hm.Min, hm.Max = lg.min, lg.max

	p := plot.New()
	p.Title.Text = fmt.Sprintf("%s %s", g.GranuleID(), layer)
	p.X.Label.Text = "longitude"
	p.Y.Label.Text = "latitude"
	p.Add(hm)

	wt, err := p.WriterTo(8*vg.Inch, 6*vg.Inch, "png")
	if err != nil {
		return fmt.Errorf("failed to render browse image: %w", err)
	}
	f, err := fs.Create(path)
	if err != nil {
		return fmt.Errorf("failed to create browse file %s: %w", path, err)
	}
	if _, err := wt.WriteTo(f); err != nil {
		f.Close()
		return fmt.Errorf("failed to write browse file %s: %w", path, err)
	}
	return f.Close()
}

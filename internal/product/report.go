package product

import (
	"bytes"
	"fmt"
	"math"

	"github.com/go-echarts/go-echarts/v2/charts"
	"github.com/go-echarts/go-echarts/v2/opts"

	"github.com/terrascope-data/gridded.report/internal/fsutil"
	"github.com/terrascope-data/gridded.report/internal/granule"
)

// maxReportPoints caps the number of cells plotted in a coverage report so
// the HTML stays loadable for large grids.
const maxReportPoints = 20000

// coverageStride picks a row/column stride that keeps the plotted cell
// count under the cap.
func coverageStride(rows, cols int) int {
	stride := int(math.Ceil(math.Sqrt(float64(rows*cols) / float64(maxReportPoints))))
	if stride < 1 {
		stride = 1
	}
	return stride
}

// WriteCoverageReport renders a standalone HTML scatter of per-cell
// contributing sample counts, one point per grid cell center. Cells with
// zero contributing pixels are omitted so coverage gaps show as holes.
func WriteCoverageReport(fs fsutil.FileSystem, g *granule.GriddedGranule, counts []int, path string) error {
	grid := g.Grid()
	rows, cols := g.Shape()
	if len(counts) != rows*cols {
		return fmt.Errorf("product %s: sample count length %d does not match grid %dx%d",
			g.GranuleID(), len(counts), rows, cols)
	}

	stride := coverageStride(rows, cols)
	maxCount := 0
	data := make([]opts.ScatterData, 0, rows*cols/(stride*stride)+1)
	for r := 0; r < rows; r += stride {
		for c := 0; c < cols; c += stride {
			n := counts[r*cols+c]
			if n == 0 {
				continue
			}
			if n > maxCount {
				maxCount = n
			}
			lat, lon := grid.CellLatLon(r, c)
			data = append(data, opts.ScatterData{Value: []interface{}{lon, lat, n}})
		}
	}

	scatter := charts.NewScatter()
	scatter.SetGlobalOptions(
		charts.WithInitializationOpts(opts.Initialization{PageTitle: "Coverage " + g.GranuleID(), Width: "900px", Height: "900px"}),
		charts.WithTitleOpts(opts.Title{Title: "Sample coverage", Subtitle: fmt.Sprintf("granule=%s cells=%d stride=%d", g.GranuleID(), len(data), stride)}),
		charts.WithTooltipOpts(opts.Tooltip{Show: opts.Bool(true)}),
		charts.WithXAxisOpts(opts.XAxis{Name: "longitude", NameLocation: "middle", NameGap: 25, Scale: opts.Bool(true)}),
		charts.WithYAxisOpts(opts.YAxis{Name: "latitude", NameLocation: "middle", NameGap: 30, Scale: opts.Bool(true)}),
		charts.WithVisualMapOpts(opts.VisualMap{
			Show:       opts.Bool(true),
			Calculable: opts.Bool(true),
			Min:        0,
			Max:        float32(maxCount),
			InRange:    &opts.VisualMapInRange{Color: []string{"#440154", "#31688e", "#35b779", "#fde725"}},
		}),
	)
	scatter.AddSeries("coverage", data, charts.WithScatterChartOpts(opts.ScatterChart{SymbolSize: 4}))

	var buf bytes.Buffer
	if err := scatter.Render(&buf); err != nil {
		return fmt.Errorf("failed to render coverage report: %w", err)
	}
	if err := fs.WriteFile(path, buf.Bytes(), 0644); err != nil {
		return fmt.Errorf("failed to write coverage report %s: %w", path, err)
	}
	return nil
}

package product

import (
	"strings"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/terrascope-data/gridded.report/internal/fsutil"
	"github.com/terrascope-data/gridded.report/internal/geometry"
	"github.com/terrascope-data/gridded.report/internal/granule"
	"github.com/terrascope-data/gridded.report/internal/spatialindex"
)

// buildTestProduct grids a small synthetic swath into /out/prod.grd and
// returns the filesystem, the product, and the resolved index.
func buildTestProduct(t *testing.T, rows, cols int) (fsutil.FileSystem, *granule.GriddedGranule, *spatialindex.Resolved) {
	t.Helper()
	fs := fsutil.NewMemoryFileSystem()

	lat := make([]float64, rows*cols)
	lon := make([]float64, rows*cols)
	lst := make([]float64, rows*cols)
	mask := make([]float64, rows*cols)
	for r := 0; r < rows; r++ {
		for c := 0; c < cols; c++ {
			i := r*cols + c
			lat[i] = 34.0 + float64(r)*0.001
			lon[i] = -118.0 + float64(c)*0.001
			lst[i] = 290 + float64(i)
			mask[i] = float64(i % 2)
		}
	}
	c := &granule.Container{
		GranuleID:    "src",
		TimeUTC:      time.Date(2026, 7, 14, 18, 30, 15, 0, time.UTC),
		LandFraction: 0.9,
		Rows:         rows,
		Cols:         cols,
		Lat:          lat,
		Lon:          lon,
		Layers:       map[string][]float64{granule.LayerLST: lst, granule.LayerCloudMask: mask},
	}
	require.NoError(t, granule.WriteContainer(fs, "/in/src.grd", c))

	src, err := granule.OpenSwath(fs, "/in/src.grd")
	require.NoError(t, err)
	grid, err := geometry.Geographic(src.Geometry(), 0.001)
	require.NoError(t, err)
	index, err := spatialindex.NewCache(fs, true).
		ResolveStrategy(spatialindex.Checkerboard, src.Geometry(), grid, 80, "")
	require.NoError(t, err)

	out, err := granule.FromSwath(fs, src, "/out/prod.grd", grid, index, granule.BuildParams{GranuleID: "prod"})
	require.NoError(t, err)
	return fs, out, index
}

// countingRenderer stands in for the PNG renderer so stages can run
// against the in-memory filesystem without image output.
func countingRenderer(calls *int) Renderer {
	return func(fs fsutil.FileSystem, g *granule.GriddedGranule, layer, path string) error {
		*calls++
		return fs.WriteFile(path, []byte("png "+layer), 0644)
	}
}

func TestStageEnsureIdempotent(t *testing.T) {
	fs, _, _ := buildTestProduct(t, 3, 4)

	builds, renders := 0, 0
	stage := &Stage{Name: "LSTG", Primary: "/out/stage.grd", Render: countingRenderer(&renders)}
	builder := func() (*granule.GriddedGranule, error) {
		builds++
		data, err := fs.ReadFile("/out/prod.grd")
		if err != nil {
			return nil, err
		}
		if err := fs.WriteFile(stage.Primary, data, 0644); err != nil {
			return nil, err
		}
		return granule.OpenGridded(fs, stage.Primary)
	}

	g, built, err := stage.Ensure(fs, builder)
	require.NoError(t, err)
	assert.True(t, built)
	assert.Equal(t, 1, builds)
	assert.Equal(t, 1, renders)

	primary, err := fs.ReadFile(stage.Primary)
	require.NoError(t, err)
	browse, err := fs.ReadFile(granule.BrowsePath(stage.Primary))
	require.NoError(t, err)

	// Second run must touch nothing and never invoke the builder.
	g2, built, err := stage.Ensure(fs, func() (*granule.GriddedGranule, error) {
		t.Fatal("builder invoked for a complete stage")
		return nil, nil
	})
	require.NoError(t, err)
	assert.False(t, built)
	assert.Equal(t, g.GranuleID(), g2.GranuleID())

	primary2, err := fs.ReadFile(stage.Primary)
	require.NoError(t, err)
	browse2, err := fs.ReadFile(granule.BrowsePath(stage.Primary))
	require.NoError(t, err)
	assert.Equal(t, primary, primary2)
	assert.Equal(t, browse, browse2)
}

func TestStageRebuildsWhenBrowseMissing(t *testing.T) {
	fs, _, _ := buildTestProduct(t, 3, 4)

	builds, renders := 0, 0
	stage := &Stage{Name: "LSTG", Primary: "/out/prod.grd", Render: countingRenderer(&renders)}
	builder := func() (*granule.GriddedGranule, error) {
		builds++
		return granule.OpenGridded(fs, "/out/prod.grd")
	}

	// Primary exists but browse does not: the stage is incomplete.
	_, built, err := stage.Ensure(fs, builder)
	require.NoError(t, err)
	assert.True(t, built)
	assert.Equal(t, 1, builds)
	assert.Equal(t, 1, renders)
}

func TestRenderBrowse(t *testing.T) {
	fs, g, _ := buildTestProduct(t, 4, 4)

	require.NoError(t, RenderBrowse(fs, g, granule.LayerLST, "/out/prod.png"))
	data, err := fs.ReadFile("/out/prod.png")
	require.NoError(t, err)
	assert.Equal(t, "\x89PNG", string(data[:4]))
}

func TestWriteTiles(t *testing.T) {
	fs, g, _ := buildTestProduct(t, 4, 4)

	paths, err := WriteTiles(fs, g, "/out/tiles", 1.0, nil, nil)
	require.NoError(t, err)
	require.Len(t, paths, 1, "a sub-degree product fits one whole-degree tile")
	assert.Contains(t, paths[0], "N34W118")

	tile, err := granule.OpenGridded(fs, paths[0])
	require.NoError(t, err)
	rows, cols := tile.Shape()
	srcRows, srcCols := g.Shape()
	assert.Equal(t, srcRows, rows)
	assert.Equal(t, srcCols, cols)
}

func TestWriteTilesRejectsProjected(t *testing.T) {
	fs := fsutil.NewMemoryFileSystem()
	c := &granule.Container{
		GranuleID: "proj",
		Rows:      2,
		Cols:      2,
		Grid: &geometry.GridGeometry{
			Proj: geometry.LocalProjected, Rows: 2, Cols: 2, CellSize: 70,
		},
		Layers: map[string][]float64{"v": {1, 2, 3, 4}},
	}
	require.NoError(t, granule.WriteContainer(fs, "/proj.grd", c))
	g, err := granule.OpenGridded(fs, "/proj.grd")
	require.NoError(t, err)

	_, err = WriteTiles(fs, g, "/tiles", 1.0, nil, nil)
	assert.Error(t, err)
}

func TestWriteTilesTileNameFilter(t *testing.T) {
	fs, g, _ := buildTestProduct(t, 4, 4)

	paths, err := WriteTiles(fs, g, "/out/tiles", 1.0, []string{"N99E099"}, nil)
	require.NoError(t, err)
	assert.Empty(t, paths, "no tile of the product matches the allow-list")

	paths, err = WriteTiles(fs, g, "/out/tiles", 1.0, []string{"N34W118"}, nil)
	require.NoError(t, err)
	require.Len(t, paths, 1)
	assert.Contains(t, paths[0], "N34W118")
}

func TestWriteTilesVariableFilter(t *testing.T) {
	fs, g, _ := buildTestProduct(t, 4, 4)

	paths, err := WriteTiles(fs, g, "/out/tiles", 1.0, nil, []string{granule.LayerLST})
	require.NoError(t, err)
	require.Len(t, paths, 1)

	tile, err := granule.OpenGridded(fs, paths[0])
	require.NoError(t, err)
	assert.Equal(t, []string{granule.LayerLST}, tile.LayerNames())

	_, err = WriteTiles(fs, g, "/out/more", 1.0, nil, []string{"no_such_layer"})
	assert.Error(t, err, "an allow-list matching no product layer is rejected")
}

func TestTileTag(t *testing.T) {
	tests := []struct {
		lat, lon float64
		want     string
	}{
		{34, -119, "N34W119"},
		{-12, 7, "S12E007"},
		{0, 0, "N00E000"},
	}
	for _, tt := range tests {
		assert.Equal(t, tt.want, tileTag(tt.lat, tt.lon))
	}
}

func TestWriteCoverageReport(t *testing.T) {
	fs, g, index := buildTestProduct(t, 4, 4)

	require.NoError(t, WriteCoverageReport(fs, g, index.SampleCounts(), "/out/coverage.html"))
	data, err := fs.ReadFile("/out/coverage.html")
	require.NoError(t, err)
	assert.True(t, strings.Contains(string(data), "echarts"))

	// Wrong count length must be rejected.
	err = WriteCoverageReport(fs, g, []int{1, 2}, "/out/bad.html")
	assert.Error(t, err)
}

func TestCoverageStride(t *testing.T) {
	assert.Equal(t, 1, coverageStride(10, 10))
	assert.Greater(t, coverageStride(4000, 4000), 1)
}

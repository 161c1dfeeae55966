package pipeline

import (
	"fmt"
	"io"
	"math"
	"path/filepath"
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

func sceneTime() time.Time {
	return time.Date(2026, 7, 14, 18, 30, 15, 0, time.UTC)
}

// writeScene writes the radiance, LST and cloud swaths of one synthetic
// scene, all on the same 3x4 scan geometry, and returns their paths.
func writeScene(t *testing.T, fs fsutil.FileSystem, dir string, landFraction float64) (radPath, lstPath, cloudPath string) {
	t.Helper()
	const rows, cols = 3, 4
	lat := make([]float64, rows*cols)
	lon := make([]float64, rows*cols)
	radiance := make([]float64, rows*cols)
	lst := make([]float64, rows*cols)
	mask := make([]float64, rows*cols)
	for r := 0; r < rows; r++ {
		for c := 0; c < cols; c++ {
			i := r*cols + c
			lat[i] = 34.0 + float64(r)*0.001
			lon[i] = -118.0 + float64(c)*0.001
			radiance[i] = 7.5 + float64(i)*0.1
			lst[i] = 290 + float64(i)
			mask[i] = float64(i % 2)
		}
	}

	write := func(product string, layers map[string][]float64) string {
		id := granule.GranuleID(product, 123, 45, sceneTime(), "0700", 1)
		path := filepath.Join(dir, id+granule.DataSuffix)
		c := &granule.Container{
			GranuleID:    id,
			TimeUTC:      sceneTime(),
			LandFraction: landFraction,
			Rows:         rows,
			Cols:         cols,
			Lat:          lat,
			Lon:          lon,
			Layers:       layers,
		}
		require.NoError(t, granule.WriteContainer(fs, path, c))
		return path
	}

	radPath = write(granule.ProductRadiance, map[string][]float64{granule.LayerRadiancePrefix + "1": radiance})
	lstPath = write(granule.ProductLST, map[string][]float64{granule.LayerLST: lst, granule.LayerEmissivity: lst})
	cloudPath = write(granule.ProductCloud, map[string][]float64{granule.LayerCloudMask: mask})
	return radPath, lstPath, cloudPath
}

func sceneConfig(radPath, lstPath, cloudPath, outDir string) Config {
	return Config{
		RadiancePath:       radPath,
		LSTPath:            lstPath,
		CloudPath:          cloudPath,
		OutputDir:          outDir,
		Strategy:           spatialindex.Checkerboard,
		Projection:         geometry.GlobalGeographic,
		CellSizeDegrees:    0.001,
		SearchRadiusMeters: 80,
		Orbit:              123,
		Scene:              45,
		Build:              "0700",
		TrustCache:         true,
	}
}

type memoryRecorder struct {
	rows []RunSummary
}

func (m *memoryRecorder) RecordRun(s RunSummary) error {
	m.rows = append(m.rows, s)
	return nil
}

func TestOutcomeExitCodes(t *testing.T) {
	tests := []struct {
		kind OutcomeKind
		name string
		code int
	}{
		{Success, "success", 0},
		{ConfigurationError, "configuration_error", 1},
		{InputError, "input_error", 2},
		{SkippedOceanScene, "skipped_ocean_scene", 3},
	}
	for _, tt := range tests {
		assert.Equal(t, tt.name, tt.kind.String())
		assert.Equal(t, tt.code, tt.kind.ExitCode())
	}
}

func TestLandFilterShortCircuit(t *testing.T) {
	fs := fsutil.NewMemoryFileSystem()
	radPath, lstPath, cloudPath := writeScene(t, fs, "/in", 0)

	rec := &memoryRecorder{}
	o := New(fs, sceneConfig(radPath, lstPath, cloudPath, "/out"), rec)
	outcome, err := o.Run()
	require.NoError(t, err)
	assert.Equal(t, SkippedOceanScene, outcome.Kind)
	assert.Equal(t, 3, outcome.ExitCode())
	assert.Contains(t, outcome.Reason, "land fraction")

	// No stage may have run: the output directory stays untouched.
	_, err = fs.ReadDir("/out")
	assert.Error(t, err, "output directory must not be created for an ocean scene")

	require.Len(t, rec.rows, 1)
	assert.Equal(t, "skipped_ocean_scene", rec.rows[0].Outcome)
}

func TestConfigurationErrorOutcome(t *testing.T) {
	fs := fsutil.NewMemoryFileSystem()
	o := New(fs, Config{}, nil)
	outcome, err := o.Run()
	require.NoError(t, err, "anticipated failures come back as outcomes, not errors")
	assert.Equal(t, ConfigurationError, outcome.Kind)
	assert.Equal(t, 1, outcome.ExitCode())
}

func TestUnknownStrategyOrProjectionIsConfigurationError(t *testing.T) {
	fs := fsutil.NewMemoryFileSystem()
	radPath, lstPath, cloudPath := writeScene(t, fs, "/in", 0.8)

	cfg := sceneConfig(radPath, lstPath, cloudPath, "/out")
	cfg.Strategy = spatialindex.Strategy(42)
	outcome, err := New(fs, cfg, nil).Run()
	require.NoError(t, err)
	assert.Equal(t, ConfigurationError, outcome.Kind)
	assert.Contains(t, outcome.Reason, "strategy")

	cfg = sceneConfig(radPath, lstPath, cloudPath, "/out")
	cfg.Projection = geometry.Projection(42)
	outcome, err = New(fs, cfg, nil).Run()
	require.NoError(t, err)
	assert.Equal(t, ConfigurationError, outcome.Kind)
	assert.Contains(t, outcome.Reason, "projection")
}

func TestCorruptIndexFileIsInputError(t *testing.T) {
	fs := fsutil.NewMemoryFileSystem()
	radPath, lstPath, cloudPath := writeScene(t, fs, "/in", 0.8)

	cfg := sceneConfig(radPath, lstPath, cloudPath, "/out")
	cfg.IndexLocation = "/index/scene.kdindex"
	require.NoError(t, fs.WriteFile(cfg.IndexLocation, []byte("not an index"), 0644))

	// The trusted but unreadable cache file is an input fault, not a
	// configuration one.
	outcome, err := New(fs, cfg, nil).Run()
	require.NoError(t, err)
	assert.Equal(t, InputError, outcome.Kind)
	assert.Equal(t, 2, outcome.ExitCode())
	assert.Contains(t, outcome.Reason, "spatial index")
}

func TestMissingInputOutcome(t *testing.T) {
	fs := fsutil.NewMemoryFileSystem()
	_, lstPath, cloudPath := writeScene(t, fs, "/in", 0.8)

	cfg := sceneConfig("/in/absent.grd", lstPath, cloudPath, "/out")
	outcome, err := New(fs, cfg, nil).Run()
	require.NoError(t, err)
	assert.Equal(t, InputError, outcome.Kind)
	assert.Equal(t, 2, outcome.ExitCode())
}

func TestMismatchedGeometryOutcome(t *testing.T) {
	fs := fsutil.NewMemoryFileSystem()
	radPath, lstPath, cloudPath := writeScene(t, fs, "/in", 0.8)

	// Replace the cloud swath with one of a different shape.
	c := &granule.Container{
		GranuleID:    "odd",
		TimeUTC:      sceneTime(),
		LandFraction: 0.8,
		Rows:         2,
		Cols:         2,
		Lat:          []float64{34, 34, 34.001, 34.001},
		Lon:          []float64{-118, -117.999, -118, -117.999},
		Layers:       map[string][]float64{granule.LayerCloudMask: {0, 1, 0, 1}},
	}
	require.NoError(t, granule.WriteContainer(fs, cloudPath, c))

	outcome, err := New(fs, sceneConfig(radPath, lstPath, cloudPath, "/out"), nil).Run()
	require.NoError(t, err)
	assert.Equal(t, InputError, outcome.Kind)
}

func TestEndToEndScene(t *testing.T) {
	fs := fsutil.OSFileSystem{}
	dir := t.TempDir()
	radPath, lstPath, cloudPath := writeScene(t, fs, dir, 0.8)

	outDir := filepath.Join(dir, "out")
	indexPath := filepath.Join(dir, "index", "scene.kdindex")
	cfg := sceneConfig(radPath, lstPath, cloudPath, outDir)
	cfg.IndexLocation = indexPath
	cfg.CoverageReport = true

	rec := &memoryRecorder{}
	outcome, err := New(fs, cfg, rec).Run()
	require.NoError(t, err)
	assert.Equal(t, Success, outcome.Kind)
	assert.Equal(t, 0, outcome.ExitCode())

	// The persisted index must exist at the configured location.
	assert.True(t, fs.Exists(indexPath))

	// All three products with their browse images.
	expectShape := func(path string) {
		g, err := granule.OpenGridded(fs, path)
		require.NoError(t, err)
		rows, cols := g.Shape()
		// 3x4 swath at 0.001 degree spacing spans 0.002 x 0.003 degrees,
		// so the ceil rule gives a 2x3 lattice.
		assert.Equal(t, 2, rows)
		assert.Equal(t, 3, cols)
	}
	for _, product := range []string{granule.ProductRadianceGrid, granule.ProductLSTGrid, granule.ProductCloudGrid} {
		id := granule.GranuleID(product, 123, 45, sceneTime(), "0700", 1)
		primary := filepath.Join(outDir, id+granule.DataSuffix)
		assert.True(t, fs.Exists(primary), "missing %s", primary)
		assert.True(t, fs.Exists(granule.BrowsePath(primary)), "missing browse for %s", primary)
		expectShape(primary)
	}

	lstID := granule.GranuleID(granule.ProductLSTGrid, 123, 45, sceneTime(), "0700", 1)
	assert.True(t, fs.Exists(filepath.Join(outDir, lstID+".coverage.html")))

	require.Len(t, rec.rows, 1)
	assert.Equal(t, "success", rec.rows[0].Outcome)
	assert.Equal(t, 1, rec.rows[0].IndexBuilds)
	assert.Equal(t, 0, rec.rows[0].IndexLoads)

	// Gridded LST values stay within the source value range.
	g, err := granule.OpenGridded(fs, filepath.Join(outDir, lstID+granule.DataSuffix))
	require.NoError(t, err)
	values, err := g.Layer(granule.LayerLST)
	require.NoError(t, err)
	for _, v := range values {
		if !math.IsNaN(v) {
			assert.GreaterOrEqual(t, v, 290.0)
			assert.LessOrEqual(t, v, 301.0)
		}
	}
}

func TestSecondRunReusesEverything(t *testing.T) {
	fs := fsutil.OSFileSystem{}
	dir := t.TempDir()
	radPath, lstPath, cloudPath := writeScene(t, fs, dir, 0.8)

	outDir := filepath.Join(dir, "out")
	cfg := sceneConfig(radPath, lstPath, cloudPath, outDir)
	cfg.IndexLocation = filepath.Join(dir, "index", "scene.kdindex")

	_, err := New(fs, cfg, nil).Run()
	require.NoError(t, err)

	lstID := granule.GranuleID(granule.ProductLSTGrid, 123, 45, sceneTime(), "0700", 1)
	primary := filepath.Join(outDir, lstID+granule.DataSuffix)
	first, err := fs.ReadFile(primary)
	require.NoError(t, err)

	rec := &memoryRecorder{}
	outcome, err := New(fs, cfg, rec).Run()
	require.NoError(t, err)
	assert.Equal(t, Success, outcome.Kind)

	// Stages were complete, so nothing was rebuilt and the index came
	// from disk rather than a fresh build.
	second, err := fs.ReadFile(primary)
	require.NoError(t, err)
	assert.Equal(t, first, second)
	require.Len(t, rec.rows, 1)
	assert.Equal(t, 0, rec.rows[0].IndexBuilds)
	assert.Equal(t, 1, rec.rows[0].IndexLoads)
}

func TestTileAllowListsReachTiling(t *testing.T) {
	fs := fsutil.NewMemoryFileSystem()
	radPath, lstPath, cloudPath := writeScene(t, fs, "/in", 0.8)

	cfg := sceneConfig(radPath, lstPath, cloudPath, "/out")
	cfg.TileSizeDegrees = 1
	cfg.TileNames = []string{"N34W118"}
	cfg.TileVariables = []string{granule.LayerLST}

	outcome, err := New(fs, cfg, nil).Run()
	require.NoError(t, err)
	assert.Equal(t, Success, outcome.Kind)

	tileDir := filepath.Join("/out", "tiles", granule.ProductLSTGrid)
	names, err := fs.ReadDir(tileDir)
	require.NoError(t, err)
	require.Len(t, names, 1)
	assert.Contains(t, names[0], "N34W118")

	// The variable allow-list drops the emissivity layer from the tile.
	tile, err := granule.OpenGridded(fs, filepath.Join(tileDir, names[0]))
	require.NoError(t, err)
	assert.Equal(t, []string{granule.LayerLST}, tile.LayerNames())
}

// failingCreateFS refuses file creation under a path prefix to fault the
// product stage writes.
type failingCreateFS struct {
	fsutil.FileSystem
	prefix string
}

func (f failingCreateFS) Create(name string) (io.WriteCloser, error) {
	if strings.HasPrefix(name, f.prefix) {
		return nil, fmt.Errorf("create %s: no space left", name)
	}
	return f.FileSystem.Create(name)
}

func TestCacheStatsSurviveFailedRun(t *testing.T) {
	mem := fsutil.NewMemoryFileSystem()
	radPath, lstPath, cloudPath := writeScene(t, mem, "/in", 0.8)

	cfg := sceneConfig(radPath, lstPath, cloudPath, "/out")
	cfg.IndexLocation = "/index/scene.kdindex"
	o := New(failingCreateFS{FileSystem: mem, prefix: "/out/"}, cfg, nil)

	_, err := o.Run()
	require.Error(t, err, "a stage write fault is not an anticipated outcome")

	// The index was resolved before the stage failed; its build must still
	// be visible after the run.
	assert.Equal(t, 1, o.CacheStats().Builds)
}

func TestLocalProjectedScene(t *testing.T) {
	fs := fsutil.NewMemoryFileSystem()
	radPath, lstPath, cloudPath := writeScene(t, fs, "/in", 0.8)

	cfg := sceneConfig(radPath, lstPath, cloudPath, "/out")
	cfg.Projection = geometry.LocalProjected
	cfg.CellSizeMeters = 70

	outcome, err := New(fs, cfg, nil).Run()
	require.NoError(t, err)
	assert.Equal(t, Success, outcome.Kind)
}

// Package pipeline sequences a full product run: open the input swaths,
// resolve one spatial index, and drive the product stages in a fixed
// order. Anticipated failures are mapped to a closed outcome set at the
// Run boundary; anything unanticipated propagates to the caller.
package pipeline

import (
	"fmt"
	"log"
	"path/filepath"
	"time"

	"github.com/terrascope-data/gridded.report/internal/fsutil"
	"github.com/terrascope-data/gridded.report/internal/geometry"
	"github.com/terrascope-data/gridded.report/internal/granule"
	"github.com/terrascope-data/gridded.report/internal/product"
	"github.com/terrascope-data/gridded.report/internal/spatialindex"
	"github.com/terrascope-data/gridded.report/internal/version"
)

// Default gridding parameters, used when the corresponding Config fields
// are zero.
const (
	DefaultCellSizeDegrees    = 0.0007
	DefaultCellSizeMeters     = 70
	DefaultSearchRadiusMeters = 100
)

// Config is the immutable per-run configuration. Callers fill it once;
// the orchestrator never mutates it.
type Config struct {
	RadiancePath string
	LSTPath      string
	CloudPath    string
	OutputDir    string

	// IndexLocation is where the spatial index persists: a file path for
	// whole-swath strategies, a directory for scan-by-scan. Empty keeps
	// indexes in memory only.
	IndexLocation string
	TrustCache    bool

	Strategy   spatialindex.Strategy
	Projection geometry.Projection

	CellSizeDegrees    float64
	CellSizeMeters     float64
	SearchRadiusMeters float64

	Orbit          int
	Scene          int
	Build          string
	ProductCounter int
	ProductionTime time.Time
	JobID          string

	// TileSizeDegrees enables degree tiling of geographic products when
	// positive. A non-empty TileNames restricts output to the named tiles
	// (e.g. "N34W118"); a non-empty TileVariables restricts each tile to
	// the named layers.
	TileSizeDegrees float64
	TileNames       []string
	TileVariables   []string

	// CoverageReport enables the HTML coverage report next to the
	// products.
	CoverageReport bool
}

// withDefaults returns a copy of the config with zero gridding parameters
// replaced by the package defaults.
func (c Config) withDefaults() Config {
	if c.CellSizeDegrees == 0 {
		c.CellSizeDegrees = DefaultCellSizeDegrees
	}
	if c.CellSizeMeters == 0 {
		c.CellSizeMeters = DefaultCellSizeMeters
	}
	if c.SearchRadiusMeters == 0 {
		c.SearchRadiusMeters = DefaultSearchRadiusMeters
	}
	if c.ProductionTime.IsZero() {
		c.ProductionTime = time.Now().UTC()
	}
	if c.ProductCounter == 0 {
		c.ProductCounter = 1
	}
	return c
}

// RunSummary is the row handed to a RunRecorder after every run.
type RunSummary struct {
	JobID     string
	GranuleID string
	Orbit     int
	Scene     int
	Strategy  string
	Outcome   string
	Reason    string
	Started   time.Time
	Duration  time.Duration

	IndexBuilds   int
	IndexLoads    int
	IndexMemoHits int
}

// RunRecorder receives a run summary. Recording failures are logged, not
// fatal.
type RunRecorder interface {
	RecordRun(RunSummary) error
}

// Orchestrator runs the three-product pipeline over one scene.
type Orchestrator struct {
	fs       fsutil.FileSystem
	cfg      Config
	recorder RunRecorder

	cacheStats spatialindex.Stats
}

// New creates an orchestrator. recorder may be nil.
func New(fs fsutil.FileSystem, cfg Config, recorder RunRecorder) *Orchestrator {
	return &Orchestrator{fs: fs, cfg: cfg.withDefaults(), recorder: recorder}
}

// Run executes the pipeline. Anticipated domain failures come back as a
// non-success Outcome with a nil error; unanticipated errors are returned
// for the caller to propagate.
func (o *Orchestrator) Run() (Outcome, error) {
	started := time.Now()
	outcome, granuleID, err := o.run()
	if err != nil {
		if mapped, ok := AsOutcome(err); ok {
			log.Printf("pipeline: %s: %s", mapped.Kind, mapped.Reason)
			outcome = mapped
		} else {
			log.Printf("pipeline: unanticipated failure: %v", err)
			return Outcome{}, err
		}
	}
	o.record(granuleID, outcome, started)
	return outcome, nil
}

func (o *Orchestrator) record(granuleID string, outcome Outcome, started time.Time) {
	if o.recorder == nil {
		return
	}
	err := o.recorder.RecordRun(RunSummary{
		JobID:     o.cfg.JobID,
		GranuleID: granuleID,
		Orbit:     o.cfg.Orbit,
		Scene:     o.cfg.Scene,
		Strategy:  o.cfg.Strategy.String(),
		Outcome:   outcome.Kind.String(),
		Reason:    outcome.Reason,
		Started:   started.UTC(),
		Duration:  time.Since(started),

		IndexBuilds:   o.cacheStats.Builds,
		IndexLoads:    o.cacheStats.Loads,
		IndexMemoHits: o.cacheStats.MemoHits,
	})
	if err != nil {
		log.Printf("pipeline: failed to record run: %v", err)
	}
}

func (o *Orchestrator) validate() error {
	c := o.cfg
	if c.LSTPath == "" || c.RadiancePath == "" || c.CloudPath == "" {
		return Configf("all three input swath paths are required")
	}
	if c.OutputDir == "" {
		return Configf("output directory is required")
	}
	if c.CellSizeDegrees <= 0 {
		return Configf("cell size %g degrees is not positive", c.CellSizeDegrees)
	}
	if c.CellSizeMeters <= 0 {
		return Configf("cell size %g meters is not positive", c.CellSizeMeters)
	}
	if c.SearchRadiusMeters <= 0 {
		return Configf("search radius %g meters is not positive", c.SearchRadiusMeters)
	}
	switch c.Strategy {
	case spatialindex.Checkerboard, spatialindex.ScanByScan, spatialindex.ClippedTails:
	default:
		return Configf("unrecognized overlap strategy: %v", c.Strategy)
	}
	switch c.Projection {
	case geometry.GlobalGeographic, geometry.LocalProjected:
	default:
		return Configf("unrecognized projection system: %v", c.Projection)
	}
	return nil
}

func (o *Orchestrator) openSwath(path, role string) (*granule.SwathGranule, error) {
	g, err := granule.OpenSwath(o.fs, path)
	if err != nil {
		return nil, WrapInput(err, "cannot open %s swath", role)
	}
	return g, nil
}

// stagePlan pairs one output product with its source granule and layers.
type stagePlan struct {
	product     string
	source      *granule.SwathGranule
	browseLayer string
}

func (o *Orchestrator) run() (Outcome, string, error) {
	if err := o.validate(); err != nil {
		return Outcome{}, "", err
	}

	lst, err := o.openSwath(o.cfg.LSTPath, "LST")
	if err != nil {
		return Outcome{}, "", err
	}
	sceneID := granule.GranuleID(version.PGEName, o.cfg.Orbit, o.cfg.Scene, lst.TimeUTC(), o.cfg.Build, o.cfg.ProductCounter)

	// Ocean scenes carry no land pixels worth gridding. This is the one
	// early exit that is not a failure.
	if lst.LandFraction() == 0 {
		log.Printf("pipeline: skipping ocean scene %s, land fraction is zero", sceneID)
		return Outcome{
			Kind:   SkippedOceanScene,
			Reason: fmt.Sprintf("scene %05d/%03d reports zero land fraction", o.cfg.Orbit, o.cfg.Scene),
		}, sceneID, nil
	}

	rad, err := o.openSwath(o.cfg.RadiancePath, "radiance")
	if err != nil {
		return Outcome{}, sceneID, err
	}
	cloud, err := o.openSwath(o.cfg.CloudPath, "cloud")
	if err != nil {
		return Outcome{}, sceneID, err
	}

	// Index reuse across stages requires all inputs on the same scan
	// geometry.
	geom := lst.Geometry()
	for _, g := range []*granule.SwathGranule{rad, cloud} {
		rows, cols := g.Geometry().Shape()
		wantRows, wantCols := geom.Shape()
		if rows != wantRows || cols != wantCols {
			return Outcome{}, sceneID, Inputf("swath %s shape %dx%d does not match primary %dx%d",
				g.Path, rows, cols, wantRows, wantCols)
		}
	}

	grid, err := geometry.FromSwath(geom, o.cfg.Projection, o.cfg.CellSizeDegrees, o.cfg.CellSizeMeters)
	if err != nil {
		return Outcome{}, sceneID, WrapInput(err, "cannot derive target grid")
	}

	cache := spatialindex.NewCache(o.fs, o.cfg.TrustCache)
	defer func() { o.cacheStats = cache.Stats() }()

	// Strategy and projection were validated up front; a failure here is an
	// index I/O or geometry fault.
	index, err := cache.ResolveStrategy(o.cfg.Strategy, geom, grid, o.cfg.SearchRadiusMeters, o.cfg.IndexLocation)
	if err != nil {
		return Outcome{}, sceneID, WrapInput(err, "cannot resolve spatial index")
	}

	if err := o.fs.MkdirAll(o.cfg.OutputDir, 0755); err != nil {
		return Outcome{}, sceneID, fmt.Errorf("failed to create output directory: %w", err)
	}

	plans := []stagePlan{
		{product: granule.ProductRadianceGrid, source: rad, browseLayer: ""},
		{product: granule.ProductLSTGrid, source: lst, browseLayer: granule.LayerLST},
		{product: granule.ProductCloudGrid, source: cloud, browseLayer: granule.LayerCloudMask},
	}
	inputs := []string{o.cfg.RadiancePath, o.cfg.LSTPath, o.cfg.CloudPath}

	for _, plan := range plans {
		id := granule.GranuleID(plan.product, o.cfg.Orbit, o.cfg.Scene, lst.TimeUTC(), o.cfg.Build, o.cfg.ProductCounter)
		primary := filepath.Join(o.cfg.OutputDir, id+granule.DataSuffix)
		stage := &product.Stage{Name: plan.product, Primary: primary, BrowseLayer: plan.browseLayer}

		// The grid is recomputed per stage from the same geometry. This
		// is deterministic, so every stage lands on an identical lattice.
		stageGrid, err := geometry.FromSwath(geom, o.cfg.Projection, o.cfg.CellSizeDegrees, o.cfg.CellSizeMeters)
		if err != nil {
			return Outcome{}, sceneID, WrapInput(err, "cannot derive target grid")
		}
		src := plan.source

		g, built, err := stage.Ensure(o.fs, func() (*granule.GriddedGranule, error) {
			return granule.FromSwath(o.fs, src, primary, stageGrid, index, granule.BuildParams{
				GranuleID:      id,
				PGEName:        version.PGEName,
				PGEVersion:     version.Version,
				Build:          o.cfg.Build,
				InputFiles:     inputs,
				ProductionTime: o.cfg.ProductionTime,
			})
		})
		if err != nil {
			return Outcome{}, sceneID, err
		}
		log.Printf("pipeline: stage %s done, built=%v", plan.product, built)

		if o.cfg.TileSizeDegrees > 0 && grid.Proj == geometry.GlobalGeographic {
			tileDir := filepath.Join(o.cfg.OutputDir, "tiles", plan.product)
			paths, err := product.WriteTiles(o.fs, g, tileDir, o.cfg.TileSizeDegrees, o.cfg.TileNames, o.cfg.TileVariables)
			if err != nil {
				log.Printf("pipeline: tiling %s failed: %v", plan.product, err)
			} else {
				log.Printf("pipeline: wrote %d tiles for %s", len(paths), plan.product)
			}
		}
	}

	if o.cfg.CoverageReport {
		id := granule.GranuleID(granule.ProductLSTGrid, o.cfg.Orbit, o.cfg.Scene, lst.TimeUTC(), o.cfg.Build, o.cfg.ProductCounter)
		g, err := granule.OpenGridded(o.fs, filepath.Join(o.cfg.OutputDir, id+granule.DataSuffix))
		if err == nil {
			report := filepath.Join(o.cfg.OutputDir, id+".coverage.html")
			if err := product.WriteCoverageReport(o.fs, g, index.SampleCounts(), report); err != nil {
				log.Printf("pipeline: coverage report failed: %v", err)
			}
		}
	}

	st := cache.Stats()
	log.Printf("pipeline: scene %s complete, index builds=%d loads=%d memo hits=%d",
		sceneID, st.Builds, st.Loads, st.MemoHits)
	return Outcome{Kind: Success}, sceneID, nil
}

// CacheStats reports spatial index cache activity from the last Run,
// including runs that failed after the index was resolved.
func (o *Orchestrator) CacheStats() spatialindex.Stats { return o.cacheStats }

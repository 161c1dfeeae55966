// swathgrid runs the swath-to-grid product pipeline for one scene,
// driven by an XML run-config.
package main

import (
	"errors"
	"flag"
	"fmt"
	"log"
	"os"
	"strings"

	"github.com/terrascope-data/gridded.report/internal/fsutil"
	"github.com/terrascope-data/gridded.report/internal/geometry"
	"github.com/terrascope-data/gridded.report/internal/pipeline"
	"github.com/terrascope-data/gridded.report/internal/provenance"
	"github.com/terrascope-data/gridded.report/internal/runconfig"
	"github.com/terrascope-data/gridded.report/internal/spatialindex"
	"github.com/terrascope-data/gridded.report/internal/version"
)

var (
	strategyName   = flag.String("strategy", "checkerboard", "overlap strategy: checkerboard, scan_by_scan or remove_edge_overlap")
	projectionName = flag.String("projection", "global_geographic", "target lattice: global_geographic or local_projected")
	cellDegrees    = flag.Float64("cell-degrees", pipeline.DefaultCellSizeDegrees, "cell size in degrees for geographic grids")
	cellMeters     = flag.Float64("cell-meters", pipeline.DefaultCellSizeMeters, "cell size in meters for projected grids")
	searchRadius   = flag.Float64("radius", pipeline.DefaultSearchRadiusMeters, "search radius in meters around each cell center")
	indexPath      = flag.String("index", "", "spatial index location (file, or directory for scan_by_scan); overrides the run-config")
	trustCache     = flag.Bool("trust-cache", true, "reuse persisted spatial indexes instead of rebuilding")
	tileDegrees    = flag.Float64("tiles", 0, "tile size in degrees; 0 disables tiling")
	tileNames      = flag.String("tile-names", "", "comma-separated tile names to write (e.g. N34W118); empty writes all")
	tileVariables  = flag.String("tile-variables", "", "comma-separated layer names to keep in tiles; empty keeps all")
	coverage       = flag.Bool("coverage", false, "write an HTML coverage report next to the products")
	ledgerPath     = flag.String("ledger", "", "sqlite run ledger path; empty disables recording")
	showVersion    = flag.Bool("version", false, "print version and exit")
)

func main() {
	flag.Usage = func() {
		fmt.Fprintf(flag.CommandLine.Output(), "usage: swathgrid [flags] RunConfig.xml\n")
		flag.PrintDefaults()
	}
	flag.Parse()
	os.Exit(run())
}

func run() int {
	if *showVersion {
		fmt.Printf("%s %s (%s)\n", version.PGEName, version.Version, version.GitSHA)
		return 0
	}

	if flag.NArg() != 1 {
		flag.Usage()
		return pipeline.ConfigurationError.ExitCode()
	}

	fs := fsutil.OSFileSystem{}

	strategy, err := spatialindex.ParseStrategy(*strategyName)
	if err != nil {
		log.Printf("swathgrid: %v", err)
		return pipeline.ConfigurationError.ExitCode()
	}
	projection, err := geometry.ParseProjection(*projectionName)
	if err != nil {
		log.Printf("swathgrid: %v", err)
		return pipeline.ConfigurationError.ExitCode()
	}

	rc, err := runconfig.Load(fs, flag.Arg(0))
	if err != nil {
		log.Printf("swathgrid: %v", err)
		if errors.Is(err, runconfig.ErrMissingValue) {
			return pipeline.ConfigurationError.ExitCode()
		}
		return pipeline.InputError.ExitCode()
	}

	indexLocation := rc.SpatialIndexPath
	if *indexPath != "" {
		indexLocation = *indexPath
	}

	cfg := pipeline.Config{
		RadiancePath:       rc.RadiancePath,
		LSTPath:            rc.LSTPath,
		CloudPath:          rc.CloudPath,
		OutputDir:          rc.OutputDir,
		IndexLocation:      indexLocation,
		TrustCache:         *trustCache,
		Strategy:           strategy,
		Projection:         projection,
		CellSizeDegrees:    *cellDegrees,
		CellSizeMeters:     *cellMeters,
		SearchRadiusMeters: *searchRadius,
		Orbit:              rc.Orbit,
		Scene:              rc.Scene,
		Build:              rc.Build,
		ProductCounter:     rc.ProductCounter,
		ProductionTime:     rc.ProductionTime,
		JobID:              rc.JobID,
		TileSizeDegrees:    *tileDegrees,
		TileNames:          splitList(*tileNames),
		TileVariables:      splitList(*tileVariables),
		CoverageReport:     *coverage,
	}

	return execute(fs, cfg, *ledgerPath)
}

// execute runs the pipeline with an optional run ledger. Errors return an
// exit code rather than calling log.Fatalf so the ledger close still runs.
func execute(fs fsutil.FileSystem, cfg pipeline.Config, ledgerPath string) int {
	var recorder pipeline.RunRecorder
	if ledgerPath != "" {
		ledger, err := provenance.Open(ledgerPath)
		if err != nil {
			log.Printf("swathgrid: %v", err)
			return pipeline.InputError.ExitCode()
		}
		defer ledger.Close()
		recorder = ledger
	}

	outcome, err := pipeline.New(fs, cfg, recorder).Run()
	if err != nil {
		log.Printf("swathgrid: %v", err)
		return 1
	}
	log.Printf("swathgrid: %s (exit %d)", outcome.Kind, outcome.ExitCode())
	return outcome.ExitCode()
}

// splitList parses a comma-separated flag value into a list, dropping
// empty entries.
func splitList(s string) []string {
	var out []string
	for _, part := range strings.Split(s, ",") {
		if part = strings.TrimSpace(part); part != "" {
			out = append(out, part)
		}
	}
	return out
}

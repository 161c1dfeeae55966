package product

import (
	"fmt"
	"log"
	"math"
	"path/filepath"

	"github.com/terrascope-data/gridded.report/internal/fsutil"
	"github.com/terrascope-data/gridded.report/internal/geometry"
	"github.com/terrascope-data/gridded.report/internal/granule"
)

// tileTag names a tile by the latitude and longitude of its southwest
// corner, e.g. "N34W119".
func tileTag(latSouth, lonWest float64) string {
	ns, lat := "N", latSouth
	if lat < 0 {
		ns, lat = "S", -lat
	}
	ew, lon := "E", lonWest
	if lon < 0 {
		ew, lon = "W", -lon
	}
	return fmt.Sprintf("%s%02.0f%s%03.0f", ns, lat, ew, lon)
}

// allowSet turns an allow-list into a membership set, nil when the list is
// empty so callers can tell "no filter" from "filter everything out".
func allowSet(names []string) map[string]bool {
	if len(names) == 0 {
		return nil
	}
	set := make(map[string]bool, len(names))
	for _, n := range names {
		set[n] = true
	}
	return set
}

// WriteTiles cuts a gridded product into tiles of sizeDegrees aligned to
// whole-degree boundaries and writes each as its own granule under dir.
// A non-empty tiles list restricts output to the named tiles, and a
// non-empty variables list restricts each tile to the named layers. Only
// geographic products can be tiled. A failed tile is logged and skipped;
// the paths of all tiles written are returned.
func WriteTiles(fs fsutil.FileSystem, g *granule.GriddedGranule, dir string, sizeDegrees float64, tiles, variables []string) ([]string, error) {
	grid := g.Grid()
	if grid.Proj != geometry.GlobalGeographic {
		return nil, fmt.Errorf("product %s: only geographic products can be tiled", g.GranuleID())
	}
	if sizeDegrees <= 0 {
		return nil, fmt.Errorf("product %s: invalid tile size %g", g.GranuleID(), sizeDegrees)
	}
	tileAllow := allowSet(tiles)
	layerAllow := allowSet(variables)
	if layerAllow != nil {
		kept := 0
		for _, name := range g.LayerNames() {
			if layerAllow[name] {
				kept++
			}
		}
		if kept == 0 {
			return nil, fmt.Errorf("product %s has none of the requested tile variables %v", g.GranuleID(), variables)
		}
	}
	if err := fs.MkdirAll(dir, 0755); err != nil {
		return nil, fmt.Errorf("failed to create tile directory %s: %w", dir, err)
	}

	rows, cols := g.Shape()
	yMin := grid.YMax - float64(rows)*grid.CellSize
	xMax := grid.XMin + float64(cols)*grid.CellSize

	lonStart := math.Floor(grid.XMin/sizeDegrees) * sizeDegrees
	latStart := math.Floor(yMin/sizeDegrees) * sizeDegrees

	var paths []string
	for latSouth := latStart; latSouth < grid.YMax; latSouth += sizeDegrees {
		for lonWest := lonStart; lonWest < xMax; lonWest += sizeDegrees {
			latNorth := latSouth + sizeDegrees
			rowStart := int(math.Floor((grid.YMax - latNorth) / grid.CellSize))
			rowEnd := int(math.Ceil((grid.YMax - latSouth) / grid.CellSize))
			colStart := int(math.Floor((lonWest - grid.XMin) / grid.CellSize))
			colEnd := int(math.Ceil((lonWest + sizeDegrees - grid.XMin) / grid.CellSize))

			tag := tileTag(latSouth, lonWest)
			if tileAllow != nil && !tileAllow[tag] {
				continue
			}
			id := fmt.Sprintf("%s_%s", g.GranuleID(), tag)
			sub, err := g.Subset(rowStart, rowEnd, colStart, colEnd, id)
			if err != nil {
				log.Printf("product: skipping tile %s of %s: %v", tag, g.GranuleID(), err)
				continue
			}
			if layerAllow != nil {
				for name := range sub.Layers {
					if !layerAllow[name] {
						delete(sub.Layers, name)
					}
				}
			}
			path := filepath.Join(dir, id+granule.DataSuffix)
			if err := granule.WriteContainer(fs, path, sub); err != nil {
				log.Printf("product: failed to write tile %s: %v", path, err)
				continue
			}
			paths = append(paths, path)
		}
	}
	return paths, nil
}

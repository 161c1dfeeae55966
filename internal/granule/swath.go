package granule

import (
	"fmt"
	"sort"
	"time"

	"github.com/terrascope-data/gridded.report/internal/fsutil"
	"github.com/terrascope-data/gridded.report/internal/geometry"
)

// Standard layer names carried by the input swath granules.
const (
	LayerRadiancePrefix = "radiance_"
	LayerLST            = "LST"
	LayerEmissivity     = "EmisWB"
	LayerCloudMask      = "cloud_mask"
)

// categoricalLayers are resampled by modal value rather than mean.
var categoricalLayers = map[string]bool{
	LayerCloudMask: true,
}

// IsCategoricalLayer reports whether a layer holds class values rather than
// continuous measurements.
func IsCategoricalLayer(name string) bool { return categoricalLayers[name] }

// SwathGranule is an input granule carrying per-pixel measurements on the
// instrument's native scan geometry.
type SwathGranule struct {
	Path      string
	container *Container
	geom      *geometry.SwathGeometry
}

// OpenSwath opens a swath granule file and validates its geolocation.
func OpenSwath(fs fsutil.FileSystem, path string) (*SwathGranule, error) {
	c, err := ReadContainer(fs, path)
	if err != nil {
		return nil, err
	}
	if c.Grid != nil {
		return nil, fmt.Errorf("granule %s is gridded, expected swath", path)
	}
	geom, err := geometry.NewSwathGeometry(c.Rows, c.Cols, c.Lat, c.Lon)
	if err != nil {
		return nil, fmt.Errorf("granule %s: %w", path, err)
	}
	return &SwathGranule{Path: path, container: c, geom: geom}, nil
}

// GranuleID returns the granule identifier recorded in the file.
func (g *SwathGranule) GranuleID() string { return g.container.GranuleID }

// TimeUTC returns the granule's acquisition timestamp.
func (g *SwathGranule) TimeUTC() time.Time { return g.container.TimeUTC }

// LandFraction returns the fraction of swath pixels over land, in [0,1].
// A value of exactly zero marks an ocean scene with nothing to grid.
func (g *SwathGranule) LandFraction() float64 { return g.container.LandFraction }

// Geometry returns the swath geometry. The geometry is fixed once read and
// shared; callers must not mutate the returned value.
func (g *SwathGranule) Geometry() *geometry.SwathGeometry { return g.geom }

// Layer returns the named measurement layer in the swath's row-major layout.
func (g *SwathGranule) Layer(name string) ([]float64, error) {
	layer, ok := g.container.Layers[name]
	if !ok {
		return nil, fmt.Errorf("granule %s has no layer %q", g.Path, name)
	}
	return layer, nil
}

// LayerNames returns the granule's layer names in sorted order.
func (g *SwathGranule) LayerNames() []string {
	names := make([]string, 0, len(g.container.Layers))
	for name := range g.container.Layers {
		names = append(names, name)
	}
	sort.Strings(names)
	return names
}

package geometry

import (
	"fmt"
	"math"

	"github.com/terrascope-data/gridded.report/internal/geodesy"
)

// Projection selects the coordinate system of a target grid.
type Projection int

const (
	// GlobalGeographic is a regular latitude/longitude lattice with cell
	// size in degrees.
	GlobalGeographic Projection = iota
	// LocalProjected is a local tangent-plane lattice centred on the swath
	// with cell size in meters.
	LocalProjected
)

// Projection names as they appear in run configuration.
const (
	projectionGeographicName = "global_geographic"
	projectionLocalName      = "local_projected"
)

// ParseProjection maps a configuration string to a Projection. Unrecognized
// values are a configuration error.
func ParseProjection(s string) (Projection, error) {
	switch s {
	case projectionGeographicName:
		return GlobalGeographic, nil
	case projectionLocalName:
		return LocalProjected, nil
	default:
		return 0, fmt.Errorf("unrecognized projection system: %q", s)
	}
}

func (p Projection) String() string {
	switch p {
	case GlobalGeographic:
		return projectionGeographicName
	case LocalProjected:
		return projectionLocalName
	default:
		return fmt.Sprintf("Projection(%d)", int(p))
	}
}

// GridGeometry is a regular target lattice covering a swath's extent. Row 0
// is the top (northernmost) row. Fields are exported for serialization into
// gridded product containers; treat values as read-only once constructed.
type GridGeometry struct {
	Proj       Projection
	Rows, Cols int

	// CellSize is in degrees for GlobalGeographic and meters for
	// LocalProjected.
	CellSize float64

	// XMin and YMax locate the top-left corner in the grid's native
	// coordinates (degrees or tangent-plane meters).
	XMin, YMax float64

	// Tangent point for LocalProjected grids; unused for geographic.
	TangentLat, TangentLon float64
}

// Geographic derives a regular latitude/longitude grid covering the swath,
// with the given cell size in degrees. Grid shape is ceil(extent/cellSize)
// in each axis, with a minimum of one cell.
func Geographic(s *SwathGeometry, cellSizeDegrees float64) (*GridGeometry, error) {
	if cellSizeDegrees <= 0 {
		return nil, fmt.Errorf("invalid cell size %v degrees", cellSizeDegrees)
	}
	latMin, latMax, lonMin, lonMax, ok := s.Bounds()
	if !ok {
		return nil, fmt.Errorf("swath has no valid geolocation")
	}
	return &GridGeometry{
		Proj:     GlobalGeographic,
		Rows:     cellCount(latMax-latMin, cellSizeDegrees),
		Cols:     cellCount(lonMax-lonMin, cellSizeDegrees),
		CellSize: cellSizeDegrees,
		XMin:     lonMin,
		YMax:     latMax,
	}, nil
}

// Projected derives a local tangent-plane grid covering the swath, with the
// given cell size in meters. The tangent point is the swath centroid.
func Projected(s *SwathGeometry, cellSizeMeters float64) (*GridGeometry, error) {
	if cellSizeMeters <= 0 {
		return nil, fmt.Errorf("invalid cell size %v meters", cellSizeMeters)
	}
	lat0, lon0 := s.Centroid()
	if math.IsNaN(lat0) {
		return nil, fmt.Errorf("swath has no valid geolocation")
	}

	xMin, yMin := math.Inf(1), math.Inf(1)
	xMax, yMax := math.Inf(-1), math.Inf(-1)
	rows, cols := s.Shape()
	for r := 0; r < rows; r++ {
		for c := 0; c < cols; c++ {
			lat, lon := s.LatLonAt(r, c)
			if math.IsNaN(lat) || math.IsNaN(lon) {
				continue
			}
			x, y := geodesy.TangentPlane(lat0, lon0, lat, lon)
			xMin = math.Min(xMin, x)
			xMax = math.Max(xMax, x)
			yMin = math.Min(yMin, y)
			yMax = math.Max(yMax, y)
		}
	}

	return &GridGeometry{
		Proj:       LocalProjected,
		Rows:       cellCount(yMax-yMin, cellSizeMeters),
		Cols:       cellCount(xMax-xMin, cellSizeMeters),
		CellSize:   cellSizeMeters,
		XMin:       xMin,
		YMax:       yMax,
		TangentLat: lat0,
		TangentLon: lon0,
	}, nil
}

// FromSwath builds the target grid for a swath under the given projection
// mode. Each product stage calls this independently; the derivation is
// deterministic, so repeated calls yield equal grids.
func FromSwath(s *SwathGeometry, proj Projection, cellSizeDegrees, cellSizeMeters float64) (*GridGeometry, error) {
	switch proj {
	case GlobalGeographic:
		return Geographic(s, cellSizeDegrees)
	case LocalProjected:
		return Projected(s, cellSizeMeters)
	default:
		return nil, fmt.Errorf("unrecognized projection system: %v", proj)
	}
}

func cellCount(extent, cellSize float64) int {
	n := int(math.Ceil(extent / cellSize))
	if n < 1 {
		n = 1
	}
	return n
}

// Shape returns the grid's row and column counts.
func (g *GridGeometry) Shape() (rows, cols int) { return g.Rows, g.Cols }

// NumCells returns the total cell count.
func (g *GridGeometry) NumCells() int { return g.Rows * g.Cols }

// CellCenter returns the center of cell (row, col) in the grid's native
// coordinates: x east, y north.
func (g *GridGeometry) CellCenter(row, col int) (x, y float64) {
	x = g.XMin + (float64(col)+0.5)*g.CellSize
	y = g.YMax - (float64(row)+0.5)*g.CellSize
	return x, y
}

// CellLatLon returns the geographic coordinate of a cell center.
func (g *GridGeometry) CellLatLon(row, col int) (lat, lon float64) {
	x, y := g.CellCenter(row, col)
	if g.Proj == LocalProjected {
		return geodesy.TangentPlaneInverse(g.TangentLat, g.TangentLon, x, y)
	}
	return y, x
}

// Equal reports whether two grids describe the same lattice.
func (g *GridGeometry) Equal(o *GridGeometry) bool {
	if g == nil || o == nil {
		return g == o
	}
	return g.Proj == o.Proj && g.Rows == o.Rows && g.Cols == o.Cols &&
		g.CellSize == o.CellSize && g.XMin == o.XMin && g.YMax == o.YMax &&
		g.TangentLat == o.TangentLat && g.TangentLon == o.TangentLon
}

package spatialindex

import (
	"math"

	"gonum.org/v1/gonum/spatial/kdtree"

	"github.com/terrascope-data/gridded.report/internal/geodesy"
	"github.com/terrascope-data/gridded.report/internal/geometry"
)

// swathPoint is one swath pixel in the index coordinate space: ECEF meters
// for geographic grids, tangent-plane meters (z=0) for projected grids. src
// is the pixel's flat index in the original granule layout.
type swathPoint struct {
	x, y, z float64
	src     int32
}

func (p swathPoint) Compare(c kdtree.Comparable, d kdtree.Dim) float64 {
	q := c.(swathPoint)
	switch d {
	case 0:
		return p.x - q.x
	case 1:
		return p.y - q.y
	default:
		return p.z - q.z
	}
}

func (p swathPoint) Dims() int { return 3 }

// Distance returns the squared Euclidean distance, matching the metric the
// kdtree keepers expect.
func (p swathPoint) Distance(c kdtree.Comparable) float64 {
	q := c.(swathPoint)
	dx, dy, dz := p.x-q.x, p.y-q.y, p.z-q.z
	return dx*dx + dy*dy + dz*dz
}

type swathPoints []swathPoint

func (p swathPoints) Index(i int) kdtree.Comparable         { return p[i] }
func (p swathPoints) Len() int                              { return len(p) }
func (p swathPoints) Pivot(d kdtree.Dim) int                { return plane{Dim: d, swathPoints: p}.Pivot() }
func (p swathPoints) Slice(start, end int) kdtree.Interface { return p[start:end] }

// plane is a helper for partitioning swathPoints along one dimension.
type plane struct {
	kdtree.Dim
	swathPoints
}

func (p plane) Less(i, j int) bool {
	switch p.Dim {
	case 0:
		return p.swathPoints[i].x < p.swathPoints[j].x
	case 1:
		return p.swathPoints[i].y < p.swathPoints[j].y
	default:
		return p.swathPoints[i].z < p.swathPoints[j].z
	}
}

func (p plane) Pivot() int { return kdtree.Partition(p, kdtree.MedianOfMedians(p)) }

func (p plane) Slice(start, end int) kdtree.SortSlicer {
	p.swathPoints = p.swathPoints[start:end]
	return p
}

func (p plane) Swap(i, j int) {
	p.swathPoints[i], p.swathPoints[j] = p.swathPoints[j], p.swathPoints[i]
}

// indexCoord maps a geographic coordinate into the index coordinate space
// for the given grid.
func indexCoord(grid *geometry.GridGeometry, lat, lon float64) (x, y, z float64) {
	if grid.Proj == geometry.LocalProjected {
		x, y = geodesy.TangentPlane(grid.TangentLat, grid.TangentLon, lat, lon)
		return x, y, 0
	}
	return geodesy.ECEF(lat, lon)
}

// Build constructs the spatial index for a swath geometry against a target
// grid: for every cell center, the source pixels within radiusMeters are
// located through a balanced k-d tree over the swath geolocations. Pixels
// with NaN geolocation never enter the tree.
func Build(swath *geometry.SwathGeometry, grid *geometry.GridGeometry, radiusMeters float64) (*SpatialIndex, error) {
	rows, cols := swath.Shape()
	pts := make(swathPoints, 0, rows*cols)
	for r := 0; r < rows; r++ {
		for c := 0; c < cols; c++ {
			lat, lon := swath.LatLonAt(r, c)
			if math.IsNaN(lat) || math.IsNaN(lon) {
				continue
			}
			x, y, z := indexCoord(grid, lat, lon)
			pts = append(pts, swathPoint{x: x, y: y, z: z, src: int32(swath.SourceIndex(r, c))})
		}
	}

	srcRows, srcCols := swath.SourceShape()
	b := newBuilder(grid.Rows, grid.Cols, srcRows, srcCols, radiusMeters)

	if len(pts) == 0 {
		for cell := 0; cell < grid.NumCells(); cell++ {
			b.add(nil)
		}
		return b.finish(), nil
	}

	tree := kdtree.New(pts, false)
	radiusSq := radiusMeters * radiusMeters
	var cellSources []int32
	for row := 0; row < grid.Rows; row++ {
		for col := 0; col < grid.Cols; col++ {
			lat, lon := grid.CellLatLon(row, col)
			x, y, z := indexCoord(grid, lat, lon)

			keeper := kdtree.NewDistKeeper(radiusSq)
			tree.NearestSet(keeper, swathPoint{x: x, y: y, z: z})

			cellSources = cellSources[:0]
			for _, c := range keeper.Heap {
				if c.Comparable == nil {
					continue
				}
				cellSources = append(cellSources, c.Comparable.(swathPoint).src)
			}
			b.add(cellSources)
		}
	}
	return b.finish(), nil
}

// Command gen-swath writes a synthetic scene (radiance, LST and cloud
// swath granules) for local pipeline runs and benchmarking.
package main

import (
	"flag"
	"log"
	"math"
	"math/rand"
	"path/filepath"
	"time"

	"github.com/terrascope-data/gridded.report/internal/fsutil"
	"github.com/terrascope-data/gridded.report/internal/granule"
)

var (
	outDir       = flag.String("o", ".", "output directory")
	rows         = flag.Int("rows", 44, "scan lines")
	cols         = flag.Int("cols", 128, "cross-track pixels per scan")
	orbit        = flag.Int("orbit", 123, "orbit number")
	scene        = flag.Int("scene", 45, "scene number")
	build        = flag.String("build", "0700", "build identifier")
	centerLat    = flag.Float64("lat", 34.0, "scene center latitude")
	centerLon    = flag.Float64("lon", -118.0, "scene center longitude")
	landFraction = flag.Float64("land", 0.8, "land fraction (0 makes an ocean scene)")
	seed         = flag.Int64("seed", 1, "random seed")
)

func main() {
	flag.Parse()

	fs := fsutil.OSFileSystem{}
	rng := rand.New(rand.NewSource(*seed))
	now := time.Now().UTC().Truncate(time.Second)

	n := *rows * *cols
	lat := make([]float64, n)
	lon := make([]float64, n)
	radiance := make([]float64, n)
	lst := make([]float64, n)
	emis := make([]float64, n)
	mask := make([]float64, n)

	// Pixel spacing ~70m with a slight cross-track skew so consecutive
	// scans overlap the way a real whip-broom swath does.
	const spacing = 0.0007
	for r := 0; r < *rows; r++ {
		for c := 0; c < *cols; c++ {
			i := r**cols + c
			skew := 0.1 * spacing * float64(c)
			lat[i] = *centerLat + (float64(r)-float64(*rows)/2)*spacing + rng.Float64()*spacing*0.05
			lon[i] = *centerLon + (float64(c)-float64(*cols)/2)*spacing + skew/float64(*cols)
			radiance[i] = 8 + math.Sin(float64(c)/20)*2 + rng.Float64()*0.3
			lst[i] = 295 + math.Cos(float64(r)/8)*5 + rng.Float64()
			emis[i] = 0.96 + rng.Float64()*0.02
			mask[i] = float64(rng.Intn(2))
		}
	}

	if err := fs.MkdirAll(*outDir, 0755); err != nil {
		log.Fatal(err)
	}

	write := func(product string, layers map[string][]float64) {
		id := granule.GranuleID(product, *orbit, *scene, now, *build, 1)
		path := filepath.Join(*outDir, id+granule.DataSuffix)
		c := &granule.Container{
			GranuleID:    id,
			TimeUTC:      now,
			LandFraction: *landFraction,
			Rows:         *rows,
			Cols:         *cols,
			Lat:          lat,
			Lon:          lon,
			Layers:       layers,
		}
		if err := granule.WriteContainer(fs, path, c); err != nil {
			log.Fatalf("failed to write %s: %v", path, err)
		}
		log.Printf("wrote %s", path)
	}

	write(granule.ProductRadiance, map[string][]float64{
		granule.LayerRadiancePrefix + "1": radiance,
	})
	write(granule.ProductLST, map[string][]float64{
		granule.LayerLST:        lst,
		granule.LayerEmissivity: emis,
	})
	write(granule.ProductCloud, map[string][]float64{
		granule.LayerCloudMask: mask,
	})
}

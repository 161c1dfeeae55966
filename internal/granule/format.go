// Package granule owns reading and writing of swath and gridded product
// granules: the binary container format, product naming conventions, and
// the gridded-product builders that consume a resolved spatial index.
package granule

import (
	"bytes"
	"compress/gzip"
	"encoding/gob"
	"fmt"
	"time"

	"github.com/terrascope-data/gridded.report/internal/fsutil"
	"github.com/terrascope-data/gridded.report/internal/geometry"
)

// Provenance records how a product file was generated.
type Provenance struct {
	PGEName        string
	PGEVersion     string
	Build          string
	InputFiles     []string
	ProductionTime time.Time
}

// Container is the on-disk form of a granule: metadata, geometry, and named
// float64 layers. Swath granules carry per-pixel geolocation; gridded
// granules carry a grid definition instead.
type Container struct {
	GranuleID    string
	TimeUTC      time.Time
	LandFraction float64

	Rows, Cols int
	Lat, Lon   []float64              // swath granules only
	Grid       *geometry.GridGeometry // gridded granules only

	Layers     map[string][]float64
	Provenance Provenance
}

// Validate checks internal consistency of the container.
func (c *Container) Validate() error {
	if c.Rows <= 0 || c.Cols <= 0 {
		return fmt.Errorf("granule %s: invalid shape %dx%d", c.GranuleID, c.Rows, c.Cols)
	}
	n := c.Rows * c.Cols
	if c.Grid == nil {
		if len(c.Lat) != n || len(c.Lon) != n {
			return fmt.Errorf("granule %s: geolocation length %d/%d does not match shape %dx%d",
				c.GranuleID, len(c.Lat), len(c.Lon), c.Rows, c.Cols)
		}
	}
	for name, layer := range c.Layers {
		if len(layer) != n {
			return fmt.Errorf("granule %s: layer %s length %d does not match shape %dx%d",
				c.GranuleID, name, len(layer), c.Rows, c.Cols)
		}
	}
	return nil
}

// WriteContainer serializes a container to path as a gzip-compressed gob
// blob. The write is not atomic: a failure can leave a partial file behind.
func WriteContainer(fs fsutil.FileSystem, path string, c *Container) error {
	if err := c.Validate(); err != nil {
		return err
	}
	w, err := fs.Create(path)
	if err != nil {
		return fmt.Errorf("failed to create granule file %s: %w", path, err)
	}
	gz := gzip.NewWriter(w)
	if err := gob.NewEncoder(gz).Encode(c); err != nil {
		gz.Close()
		w.Close()
		return fmt.Errorf("failed to encode granule %s: %w", path, err)
	}
	if err := gz.Close(); err != nil {
		w.Close()
		return err
	}
	return w.Close()
}

// ReadContainer deserializes a container previously written by
// WriteContainer.
func ReadContainer(fs fsutil.FileSystem, path string) (*Container, error) {
	data, err := fs.ReadFile(path)
	if err != nil {
		return nil, fmt.Errorf("failed to read granule file %s: %w", path, err)
	}
	gz, err := gzip.NewReader(bytes.NewReader(data))
	if err != nil {
		return nil, fmt.Errorf("failed to create gzip reader for %s: %w", path, err)
	}
	defer gz.Close()

	var c Container
	if err := gob.NewDecoder(gz).Decode(&c); err != nil {
		return nil, fmt.Errorf("failed to decode granule file %s: %w", path, err)
	}
	if err := c.Validate(); err != nil {
		return nil, err
	}
	return &c, nil
}

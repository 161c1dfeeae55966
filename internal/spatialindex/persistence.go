package spatialindex

import (
	"bytes"
	"compress/gzip"
	"encoding/gob"
	"fmt"

	"github.com/terrascope-data/gridded.report/internal/fsutil"
)

// IndexFileSuffix is the file suffix for persisted spatial indexes. The
// scan-by-scan strategy stores one such file per scan line in a directory.
const IndexFileSuffix = ".kdindex"

// indexBlob is the serialized form of a SpatialIndex. The on-disk content is
// trusted blindly on load: there is no schema version and no check that the
// stored correspondence matches the current swath or grid geometry. A stale
// cache path silently yields an incorrect index.
type indexBlob struct {
	GridRows, GridCols int
	SrcRows, SrcCols   int
	RadiusMeters       float64
	Offsets            []int32
	Sources            []int32
}

// Save writes the index to path as a gzip-compressed gob blob.
func (ix *SpatialIndex) Save(fs fsutil.FileSystem, path string) error {
	w, err := fs.Create(path)
	if err != nil {
		return fmt.Errorf("failed to create index file %s: %w", path, err)
	}
	gz := gzip.NewWriter(w)
	enc := gob.NewEncoder(gz)
	blob := indexBlob{
		GridRows:     ix.gridRows,
		GridCols:     ix.gridCols,
		SrcRows:      ix.srcRows,
		SrcCols:      ix.srcCols,
		RadiusMeters: ix.radiusMeters,
		Offsets:      ix.offsets,
		Sources:      ix.sources,
	}
	if err := enc.Encode(blob); err != nil {
		gz.Close()
		w.Close()
		return fmt.Errorf("failed to encode index: %w", err)
	}
	if err := gz.Close(); err != nil {
		w.Close()
		return err
	}
	return w.Close()
}

// Load reads an index previously written by Save.
func Load(fs fsutil.FileSystem, path string) (*SpatialIndex, error) {
	data, err := fs.ReadFile(path)
	if err != nil {
		return nil, fmt.Errorf("failed to read index file %s: %w", path, err)
	}
	if len(data) == 0 {
		return nil, fmt.Errorf("empty index file: %s", path)
	}
	gz, err := gzip.NewReader(bytes.NewReader(data))
	if err != nil {
		return nil, fmt.Errorf("failed to create gzip reader for %s: %w", path, err)
	}
	defer gz.Close()

	var blob indexBlob
	if err := gob.NewDecoder(gz).Decode(&blob); err != nil {
		return nil, fmt.Errorf("failed to decode index file %s: %w", path, err)
	}
	return &SpatialIndex{
		gridRows:     blob.GridRows,
		gridCols:     blob.GridCols,
		srcRows:      blob.SrcRows,
		srcCols:      blob.SrcCols,
		radiusMeters: blob.RadiusMeters,
		offsets:      blob.Offsets,
		sources:      blob.Sources,
	}, nil
}
